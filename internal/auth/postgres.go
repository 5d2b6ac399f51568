package auth

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"kadro.org/internal/ids"
)

var _ Store = (*PGStore)(nil)

// PGStore implements Store using PostgreSQL.
type PGStore struct {
	db *sql.DB
}

func NewPGStore(db *sql.DB) *PGStore {
	return &PGStore{db: db}
}

func (s *PGStore) Users(ctx context.Context) UserStore       { return &userStore{db: s.db} }
func (s *PGStore) Sessions(ctx context.Context) SessionStore { return &sessionStore{db: s.db} }

// User store ---------------------------------------------------------------
type userStore struct{ db *sql.DB }

const userColumns = `id, email, name, avatar_url, provider, password_hash, role, created_at, updated_at`

func (s *userStore) Create(ctx context.Context, u *User) error {
	if u.ID == "" {
		u.ID = ids.New()
	}
	if u.Role == "" {
		u.Role = RoleUser
	}
	if u.Provider == "" {
		u.Provider = ProviderLocal
	}
	u.Email = strings.TrimSpace(strings.ToLower(u.Email))
	_, err := s.db.ExecContext(ctx,
		`insert into users(id, email, name, avatar_url, provider, password_hash, role)
		 values($1,$2,$3,$4,$5,$6,$7)`,
		u.ID, u.Email, u.Name, nullable(u.AvatarURL), string(u.Provider),
		nullable(u.PasswordHash), string(u.Role),
	)
	if isUniqueViolation(err) {
		return ErrAlreadyExists
	}
	return err
}

func (s *userStore) Find(ctx context.Context, id string) (*User, error) {
	row := s.db.QueryRowContext(ctx,
		`select `+userColumns+` from users where id=$1`, id)
	return scanUser(row)
}

func (s *userStore) FindByEmail(ctx context.Context, email string) (*User, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	row := s.db.QueryRowContext(ctx,
		`select `+userColumns+` from users where email=$1`, email)
	return scanUser(row)
}

func (s *userStore) List(ctx context.Context) ([]*User, error) {
	rows, err := s.db.QueryContext(ctx,
		`select `+userColumns+` from users order by created_at asc`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []*User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func (s *userStore) UpdateProfile(ctx context.Context, id, name, avatarURL string) error {
	res, err := s.db.ExecContext(ctx,
		`update users set name=$2, avatar_url=$3, updated_at=now() where id=$1`,
		id, name, nullable(avatarURL),
	)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (s *userStore) UpdateRole(ctx context.Context, id string, role Role) error {
	res, err := s.db.ExecContext(ctx,
		`update users set role=$2, updated_at=now() where id=$1`,
		id, string(role),
	)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (s *userStore) CountByRole(ctx context.Context, role Role) (int, error) {
	row := s.db.QueryRowContext(ctx,
		`select count(*) from users where role=$1`, string(role))
	var count int
	if err := row.Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

// Session store ------------------------------------------------------------
type sessionStore struct{ db *sql.DB }

const sessionColumns = `id, user_id, refresh_token, device_info, ip_address, location, is_active, created_at, last_active`

func (s *sessionStore) Create(ctx context.Context, sess *Session) error {
	if sess.ID == "" {
		sess.ID = ids.New()
	}
	now := time.Now().UTC()
	if sess.CreatedAt.IsZero() {
		sess.CreatedAt = now
	}
	if sess.LastActive.IsZero() {
		sess.LastActive = sess.CreatedAt
	}
	sess.IsActive = true
	_, err := s.db.ExecContext(ctx,
		`insert into sessions(id, user_id, refresh_token, device_info, ip_address, location, is_active, created_at, last_active)
		 values($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		sess.ID, sess.UserID, sess.RefreshToken, sess.DeviceInfo, sess.IPAddress,
		sess.Location, sess.IsActive, sess.CreatedAt, sess.LastActive,
	)
	return err
}

func (s *sessionStore) Find(ctx context.Context, id string) (*Session, error) {
	row := s.db.QueryRowContext(ctx,
		`select `+sessionColumns+` from sessions where id=$1`, id)
	return scanSession(row)
}

func (s *sessionStore) FindActiveByToken(ctx context.Context, refreshToken string) (*Session, error) {
	row := s.db.QueryRowContext(ctx,
		`select `+sessionColumns+` from sessions where refresh_token=$1 and is_active`, refreshToken)
	return scanSession(row)
}

func (s *sessionStore) Touch(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx,
		`update sessions set last_active=now() where id=$1`, id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (s *sessionStore) Revoke(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx,
		`update sessions set is_active=false where id=$1`, id)
	return err
}

func (s *sessionStore) ListActiveForUser(ctx context.Context, userID string) ([]*Session, error) {
	rows, err := s.db.QueryContext(ctx,
		`select `+sessionColumns+` from sessions where user_id=$1 and is_active order by last_active desc`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []*Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, sess)
	}
	return sessions, rows.Err()
}

func (s *sessionStore) RevokeAllForUser(ctx context.Context, userID string) error {
	_, err := s.db.ExecContext(ctx,
		`update sessions set is_active=false where user_id=$1 and is_active`, userID)
	return err
}

// helpers ------------------------------------------------------------------

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*User, error) {
	var (
		u        User
		avatar   sql.NullString
		pwdHash  sql.NullString
		provider string
		role     string
	)
	err := row.Scan(&u.ID, &u.Email, &u.Name, &avatar, &provider, &pwdHash, &role, &u.CreatedAt, &u.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	u.AvatarURL = avatar.String
	u.PasswordHash = pwdHash.String
	u.Provider = Provider(provider)
	u.Role = Role(role)
	return &u, nil
}

func scanSession(row rowScanner) (*Session, error) {
	var sess Session
	err := row.Scan(&sess.ID, &sess.UserID, &sess.RefreshToken, &sess.DeviceInfo,
		&sess.IPAddress, &sess.Location, &sess.IsActive, &sess.CreatedAt, &sess.LastActive)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &sess, nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// isUniqueViolation reports whether the error is a Postgres unique constraint
// violation (SQLSTATE 23505).
func isUniqueViolation(err error) bool {
	var pg *pgconn.PgError
	return errors.As(err, &pg) && pg.Code == "23505"
}
