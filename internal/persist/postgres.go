package persist

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vk/stepgrid/internal/graph"
)

// PGStore keeps one jsonb document per session. Saves upsert the whole
// snapshot, matching the file store's overwrite semantics.
type PGStore struct {
	pool *pgxpool.Pool
}

// NewPGStore connects a pool and ensures the schema exists.
func NewPGStore(ctx context.Context, connString string) (*PGStore, error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("persist: connecting postgres: %w", err)
	}
	s := &PGStore{pool: pool}
	if err := s.createSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// Close releases the connection pool.
func (s *PGStore) Close() {
	s.pool.Close()
}

func (s *PGStore) createSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS sessions (
			session_id TEXT PRIMARY KEY,
			status     TEXT NOT NULL,
			document   JSONB NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`)
	if err != nil {
		return fmt.Errorf("persist: creating sessions table: %w", err)
	}
	return nil
}

// SaveSnapshot implements graph.SnapshotSaver.
func (s *PGStore) SaveSnapshot(ctx context.Context, snap *graph.Snapshot) error {
	raw, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("persist: encoding session %q: %w", snap.SessionID, err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO sessions (session_id, status, document, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (session_id)
		DO UPDATE SET status = $2, document = $3, updated_at = now()`,
		snap.SessionID, snap.Status, raw)
	if err != nil {
		return fmt.Errorf("persist: upserting session %q: %w", snap.SessionID, err)
	}
	return nil
}

// LoadSnapshot implements Store.
func (s *PGStore) LoadSnapshot(ctx context.Context, sessionID string) (*graph.Snapshot, error) {
	var raw []byte
	err := s.pool.QueryRow(ctx,
		`SELECT document FROM sessions WHERE session_id = $1`, sessionID).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %q", ErrSessionNotFound, sessionID)
	}
	if err != nil {
		return nil, fmt.Errorf("persist: loading session %q: %w", sessionID, err)
	}
	var snap graph.Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return nil, fmt.Errorf("persist: decoding session %q: %w", sessionID, err)
	}
	return &snap, nil
}

// ListSessions returns every stored session id, newest first.
func (s *PGStore) ListSessions(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT session_id FROM sessions ORDER BY updated_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("persist: listing sessions: %w", err)
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("persist: scanning session id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("persist: listing sessions: %w", err)
	}
	return ids, nil
}
