package auth

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
)

func newMockStore(t *testing.T) (*PGStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewPGStore(db), mock
}

func TestUserStoreCreateDuplicate(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec(regexp.QuoteMeta(`insert into users`)).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "users_email_key"})

	u := &User{Email: "Bota@Example.com", Name: "Bota"}
	err := store.Users(context.Background()).Create(context.Background(), u)
	if !errors.Is(err, ErrAlreadyExists) {
		t.Fatalf("expected ErrAlreadyExists, got %v", err)
	}
	if u.Email != "bota@example.com" {
		t.Fatalf("email not normalised: %s", u.Email)
	}
	if u.ID == "" || u.Role != RoleUser || u.Provider != ProviderLocal {
		t.Fatalf("defaults not applied: %+v", u)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestUserStoreFindByEmail(t *testing.T) {
	store, mock := newMockStore(t)
	now := time.Now().UTC()

	rows := sqlmock.NewRows([]string{"id", "email", "name", "avatar_url", "provider", "password_hash", "role", "created_at", "updated_at"}).
		AddRow("u01", "bota@example.com", "Bota", nil, "local", "hash", "ADMIN", now, now)
	mock.ExpectQuery(regexp.QuoteMeta(`from users where email=$1`)).
		WithArgs("bota@example.com").
		WillReturnRows(rows)

	u, err := store.Users(context.Background()).FindByEmail(context.Background(), " BOTA@example.com ")
	if err != nil {
		t.Fatalf("FindByEmail: %v", err)
	}
	if u.ID != "u01" || u.Role != RoleAdmin || u.AvatarURL != "" {
		t.Fatalf("unexpected user: %+v", u)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestUserStoreFindMissing(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery(regexp.QuoteMeta(`from users where id=$1`)).
		WithArgs("nope").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := store.Users(context.Background()).Find(context.Background(), "nope")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestUserStoreUpdateRoleMissing(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec(regexp.QuoteMeta(`update users set role=$2`)).
		WithArgs("nope", "ADMIN").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := store.Users(context.Background()).UpdateRole(context.Background(), "nope", RoleAdmin)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSessionStoreCreateDefaults(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec(regexp.QuoteMeta(`insert into sessions`)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	sess := &Session{UserID: "u01", RefreshToken: "tok", IPAddress: "203.0.113.9"}
	if err := store.Sessions(context.Background()).Create(context.Background(), sess); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if sess.ID == "" || !sess.IsActive || sess.CreatedAt.IsZero() {
		t.Fatalf("defaults not applied: %+v", sess)
	}
	if !sess.LastActive.Equal(sess.CreatedAt) {
		t.Fatalf("last_active should start at created_at")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestSessionStoreFindActiveByTokenMiss(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery(regexp.QuoteMeta(`where refresh_token=$1 and is_active`)).
		WithArgs("revoked-token").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := store.Sessions(context.Background()).FindActiveByToken(context.Background(), "revoked-token")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSessionStoreListActiveForUser(t *testing.T) {
	store, mock := newMockStore(t)
	now := time.Now().UTC()

	rows := sqlmock.NewRows([]string{"id", "user_id", "refresh_token", "device_info", "ip_address", "location", "is_active", "created_at", "last_active"}).
		AddRow("s02", "u01", "tok2", "Chrome on macOS", "203.0.113.9", "Almaty, Kazakhstan", true, now, now).
		AddRow("s01", "u01", "tok1", "Firefox on Linux", "198.51.100.7", "Astana, Kazakhstan", true, now.Add(-time.Hour), now.Add(-time.Hour))
	mock.ExpectQuery(regexp.QuoteMeta(`where user_id=$1 and is_active order by last_active desc`)).
		WithArgs("u01").
		WillReturnRows(rows)

	sessions, err := store.Sessions(context.Background()).ListActiveForUser(context.Background(), "u01")
	if err != nil {
		t.Fatalf("ListActiveForUser: %v", err)
	}
	if len(sessions) != 2 {
		t.Fatalf("expected 2 sessions, got %d", len(sessions))
	}
	if sessions[0].ID != "s02" {
		t.Fatalf("expected most recently used first, got %s", sessions[0].ID)
	}
}

func TestSessionStoreRevokeIdempotent(t *testing.T) {
	store, mock := newMockStore(t)

	// Zero rows affected is still success.
	mock.ExpectExec(regexp.QuoteMeta(`update sessions set is_active=false where id=$1`)).
		WithArgs("s01").
		WillReturnResult(sqlmock.NewResult(0, 0))

	if err := store.Sessions(context.Background()).Revoke(context.Background(), "s01"); err != nil {
		t.Fatalf("Revoke: %v", err)
	}
}
