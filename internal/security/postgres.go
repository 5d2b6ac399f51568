package security

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"kadro.org/internal/ids"
)

var _ EventStore = (*PGEventStore)(nil)

// PGEventStore implements EventStore using PostgreSQL.
type PGEventStore struct {
	db *sql.DB
}

func NewPGEventStore(db *sql.DB) *PGEventStore {
	return &PGEventStore{db: db}
}

func (s *PGEventStore) Append(ctx context.Context, evt *Event) error {
	if evt.ID == "" {
		evt.ID = ids.New()
	}
	if evt.CreatedAt.IsZero() {
		evt.CreatedAt = time.Now().UTC()
	}
	meta, _ := json.Marshal(evt.Metadata)
	_, err := s.db.ExecContext(ctx,
		`insert into security_events(id, user_id, event_type, ip_address, metadata, created_at)
		 values($1,$2,$3,$4,$5,$6)`,
		evt.ID, evt.UserID, string(evt.Kind), evt.IPAddress, meta, evt.CreatedAt,
	)
	return err
}

func (s *PGEventStore) Query(ctx context.Context, f Filter) ([]*Event, error) {
	query := `select id, user_id, event_type, ip_address, metadata, created_at
		 from security_events where 1=1`
	var args []any
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	if f.Kind != "" {
		query += ` and event_type=` + arg(string(f.Kind))
	}
	if f.UserID != "" {
		query += ` and user_id=` + arg(f.UserID)
	}
	if !f.Since.IsZero() {
		query += ` and created_at >= ` + arg(f.Since)
	}
	if !f.Until.IsZero() {
		query += ` and created_at < ` + arg(f.Until)
	}
	query += ` order by created_at desc`
	limit := f.Limit
	if limit <= 0 {
		limit = 20
	}
	query += ` limit ` + arg(limit)
	if f.Offset > 0 {
		query += ` offset ` + arg(f.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []*Event
	for rows.Next() {
		evt, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, evt)
	}
	return res, rows.Err()
}

func (s *PGEventStore) CountFailedByIP(ctx context.Context, ip string, since time.Time) (int, error) {
	row := s.db.QueryRowContext(ctx,
		`select count(*) from security_events
		 where ip_address=$1 and event_type=$2 and created_at >= $3`,
		ip, string(EventFailedLogin), since,
	)
	var count int
	if err := row.Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

func (s *PGEventStore) LastActiveSession(ctx context.Context, userID string, since time.Time) (*Event, error) {
	row := s.db.QueryRowContext(ctx,
		`select id, user_id, event_type, ip_address, metadata, created_at
		 from security_events
		 where user_id=$1 and event_type=$2 and created_at >= $3
		 order by created_at desc limit 1`,
		userID, string(EventActiveSession), since,
	)
	evt, err := scanEvent(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return evt, nil
}

func (s *PGEventStore) ActiveUserSummaries(ctx context.Context, since time.Time) ([]*UserActivity, error) {
	rows, err := s.db.QueryContext(ctx,
		`select e.user_id, max(e.created_at) as last_seen, count(*) as total_logins,
		        (select ip_address from security_events
		         where user_id = e.user_id and event_type = $1
		         order by created_at desc limit 1) as last_ip
		 from security_events e
		 where e.event_type=$1 and e.created_at >= $2 and e.user_id is not null
		 group by e.user_id
		 order by last_seen desc`,
		string(EventActiveSession), since,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []*UserActivity
	for rows.Next() {
		var a UserActivity
		var lastIP sql.NullString
		if err := rows.Scan(&a.UserID, &a.LastSeen, &a.TotalLogins, &lastIP); err != nil {
			return nil, err
		}
		a.LastIP = lastIP.String
		res = append(res, &a)
	}
	return res, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEvent(row rowScanner) (*Event, error) {
	var (
		evt      Event
		userID   sql.NullString
		kind     string
		metadata []byte
	)
	if err := row.Scan(&evt.ID, &userID, &kind, &evt.IPAddress, &metadata, &evt.CreatedAt); err != nil {
		return nil, err
	}
	if userID.Valid {
		evt.UserID = &userID.String
	}
	evt.Kind = EventKind(kind)
	_ = json.Unmarshal(metadata, &evt.Metadata)
	return &evt, nil
}
