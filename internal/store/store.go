package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/andresmejia3/chroma/internal/decode"
	"github.com/andresmejia3/chroma/internal/lookup"
	"github.com/andresmejia3/chroma/internal/types"
	"github.com/jackc/pgx/v5"
)

// Store manages the PostgreSQL connection holding lookup entries and scan history.
type Store struct {
	conn *pgx.Conn
}

// Session is one row of scan_sessions.
type Session struct {
	ID         string
	StartedAt  time.Time
	FinishedAt *time.Time
	Outcome    string
	Found      int
}

// New establishes a connection to the database and ensures the schema is initialized.
func New(ctx context.Context, connString string) (*Store, error) {
	conn, err := pgx.Connect(ctx, connString)
	if err != nil {
		return nil, err
	}

	// Initialize schema (Auto-Migration)
	if err := initSchema(ctx, conn); err != nil {
		conn.Close(ctx)
		return nil, fmt.Errorf("failed to initialize database schema: %w", err)
	}

	return &Store{conn: conn}, nil
}

func initSchema(ctx context.Context, conn *pgx.Conn) error {
	query := `
		CREATE TABLE IF NOT EXISTS qr_lookup (
			channel TEXT NOT NULL,
			payload TEXT NOT NULL,
			display_text TEXT NOT NULL,
			spoken_text TEXT NOT NULL,
			updated_at TIMESTAMPTZ DEFAULT NOW(),
			PRIMARY KEY (channel, payload)
		);
		CREATE TABLE IF NOT EXISTS scan_sessions (
			id TEXT PRIMARY KEY,
			started_at TIMESTAMPTZ NOT NULL,
			finished_at TIMESTAMPTZ,
			outcome TEXT NOT NULL DEFAULT 'searching'
		);
		CREATE TABLE IF NOT EXISTS scan_results (
			session_id TEXT REFERENCES scan_sessions(id) ON DELETE CASCADE,
			channel TEXT NOT NULL,
			raw_payload TEXT NOT NULL,
			method TEXT NOT NULL,
			display_text TEXT NOT NULL,
			spoken_text TEXT NOT NULL,
			found_at TIMESTAMPTZ NOT NULL,
			PRIMARY KEY (session_id, channel)
		);
	`
	_, err := conn.Exec(ctx, query)
	return err
}

// Close terminates the database connection.
func (s *Store) Close(ctx context.Context) {
	s.conn.Close(ctx)
}

// UpsertLookup adds or replaces the entry for (channel, payload).
func (s *Store) UpsertLookup(ctx context.Context, ch types.Channel, payload string, e types.LookupEntry) error {
	_, err := s.conn.Exec(ctx, `
		INSERT INTO qr_lookup (channel, payload, display_text, spoken_text, updated_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (channel, payload) DO UPDATE
		SET display_text = EXCLUDED.display_text, spoken_text = EXCLUDED.spoken_text, updated_at = NOW()
	`, ch.Lower(), payload, e.DisplayText, e.SpokenText)
	return err
}

// LoadLookup reads every stored entry into an in-memory table.
func (s *Store) LoadLookup(ctx context.Context) (*lookup.Table, error) {
	rows, err := s.conn.Query(ctx, "SELECT channel, payload, display_text, spoken_text FROM qr_lookup")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	table := lookup.NewTable()
	for rows.Next() {
		var chName, payload string
		var e types.LookupEntry
		if err := rows.Scan(&chName, &payload, &e.DisplayText, &e.SpokenText); err != nil {
			return nil, err
		}
		ch, err := types.ParseChannel(chName)
		if err != nil {
			return nil, fmt.Errorf("qr_lookup row %q: %w", payload, err)
		}
		// Rows written outside the label command may carry whitespace.
		if decode.Normalize(payload) == "" {
			return nil, fmt.Errorf("qr_lookup row for %s has an empty payload", ch)
		}
		table.Put(ch, payload, e)
	}
	return table, rows.Err()
}

// BeginSession registers a new scan session.
func (s *Store) BeginSession(ctx context.Context, id string, started time.Time) error {
	_, err := s.conn.Exec(ctx, "INSERT INTO scan_sessions (id, started_at) VALUES ($1, $2)", id, started)
	return err
}

// RecordResult saves a found code. A channel is recorded at most once per session.
func (s *Store) RecordResult(ctx context.Context, sessionID string, r types.FoundResult) error {
	_, err := s.conn.Exec(ctx, `
		INSERT INTO scan_results (session_id, channel, raw_payload, method, display_text, spoken_text, found_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (session_id, channel) DO NOTHING
	`, sessionID, r.Channel.Lower(), r.RawPayload, r.Method.String(), r.DisplayText, r.SpokenText, r.FoundAt)
	return err
}

// FinishSession stamps the outcome of a session.
func (s *Store) FinishSession(ctx context.Context, id, outcome string, finished time.Time) error {
	tag, err := s.conn.Exec(ctx, "UPDATE scan_sessions SET outcome = $1, finished_at = $2 WHERE id = $3", outcome, finished, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("session %s not found", id)
	}
	return nil
}

// ListSessions returns the most recent sessions first, at most limit rows.
func (s *Store) ListSessions(ctx context.Context, limit int) ([]Session, error) {
	rows, err := s.conn.Query(ctx, `
		SELECT s.id, s.started_at, s.finished_at, s.outcome, COUNT(r.channel)
		FROM scan_sessions s
		LEFT JOIN scan_results r ON r.session_id = s.id
		GROUP BY s.id
		ORDER BY s.started_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []Session
	for rows.Next() {
		var sess Session
		if err := rows.Scan(&sess.ID, &sess.StartedAt, &sess.FinishedAt, &sess.Outcome, &sess.Found); err != nil {
			return nil, err
		}
		sessions = append(sessions, sess)
	}
	return sessions, rows.Err()
}

// ListResults returns the codes found in a session in discovery order.
func (s *Store) ListResults(ctx context.Context, sessionID string) ([]types.FoundResult, error) {
	rows, err := s.conn.Query(ctx, `
		SELECT channel, raw_payload, method, display_text, spoken_text, found_at
		FROM scan_results WHERE session_id = $1 ORDER BY found_at ASC
	`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []types.FoundResult
	for rows.Next() {
		var chName, method string
		var r types.FoundResult
		if err := rows.Scan(&chName, &r.RawPayload, &method, &r.DisplayText, &r.SpokenText, &r.FoundAt); err != nil {
			return nil, err
		}
		if r.Channel, err = types.ParseChannel(chName); err != nil {
			return nil, err
		}
		if r.Method, err = types.ParseMethod(method); err != nil {
			return nil, err
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

// ErrSessionNotFound is returned by ResolveSession when no session matches.
var ErrSessionNotFound = errors.New("session not found")

// ResolveSession expands a unique id prefix to the full session id.
func (s *Store) ResolveSession(ctx context.Context, prefix string) (string, error) {
	rows, err := s.conn.Query(ctx, "SELECT id FROM scan_sessions WHERE id LIKE $1 || '%' LIMIT 2", prefix)
	if err != nil {
		return "", err
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return "", err
	}
	switch len(ids) {
	case 0:
		return "", fmt.Errorf("%w: %s", ErrSessionNotFound, prefix)
	case 1:
		return ids[0], nil
	}
	return "", fmt.Errorf("session prefix %q is ambiguous", prefix)
}

// Reset drops all application tables to clear the database state.
// This is useful for development to force a schema refresh without migrations.
func (s *Store) Reset(ctx context.Context) error {
	_, err := s.conn.Exec(ctx, `
		DROP TABLE IF EXISTS scan_results CASCADE;
		DROP TABLE IF EXISTS scan_sessions CASCADE;
		DROP TABLE IF EXISTS qr_lookup CASCADE;
	`)
	return err
}
