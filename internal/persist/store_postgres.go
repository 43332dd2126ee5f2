package persist

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	_ "github.com/lib/pq"

	"intake/pkg/platform/sentinel"
)

// PostgresEnvelopeStore persists envelopes in a two-table layout: one row per
// access code plus a single-row pointer table for the last used code.
type PostgresEnvelopeStore struct {
	db *sql.DB
}

// Schema for the envelope tables. Applied by the operator or a migration
// tool, kept here as the reference.
const Schema = `
CREATE TABLE IF NOT EXISTS intake_envelopes (
    code     TEXT PRIMARY KEY,
    payload  JSONB NOT NULL,
    saved_at BIGINT NOT NULL
);

CREATE TABLE IF NOT EXISTS intake_last_code (
    id   BOOLEAN PRIMARY KEY DEFAULT TRUE CHECK (id),
    code TEXT NOT NULL
);
`

func NewPostgresEnvelopeStore(db *sql.DB) *PostgresEnvelopeStore {
	return &PostgresEnvelopeStore{db: db}
}

// OpenPostgres connects using the lib/pq driver and verifies the connection.
func OpenPostgres(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("postgres ping failed: %w", err)
	}
	return db, nil
}

func (s *PostgresEnvelopeStore) Get(ctx context.Context, code string) (Envelope, error) {
	var payload []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT payload FROM intake_envelopes WHERE code = $1`, code,
	).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return Envelope{}, sentinel.ErrNotFound
	}
	if err != nil {
		return Envelope{}, fmt.Errorf("get envelope: %w", err)
	}
	var env Envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return Envelope{}, fmt.Errorf("decode envelope: %w", err)
	}
	return env, nil
}

func (s *PostgresEnvelopeStore) Put(ctx context.Context, code string, env Envelope) error {
	payload, err := json.Marshal(env)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO intake_envelopes (code, payload, saved_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (code) DO UPDATE SET payload = $2, saved_at = $3`,
		code, payload, env.SavedAt,
	)
	if err != nil {
		return fmt.Errorf("put envelope: %w", err)
	}
	return nil
}

func (s *PostgresEnvelopeStore) Delete(ctx context.Context, code string) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM intake_envelopes WHERE code = $1`, code)
	if err != nil {
		return fmt.Errorf("delete envelope: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *PostgresEnvelopeStore) List(ctx context.Context) (map[string]Envelope, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT code, payload FROM intake_envelopes`)
	if err != nil {
		return nil, fmt.Errorf("list envelopes: %w", err)
	}
	defer rows.Close()

	out := map[string]Envelope{}
	for rows.Next() {
		var (
			code    string
			payload []byte
		)
		if err := rows.Scan(&code, &payload); err != nil {
			return nil, err
		}
		var env Envelope
		if err := json.Unmarshal(payload, &env); err != nil {
			continue // corrupt row, leave for manual inspection
		}
		out[code] = env
	}
	return out, rows.Err()
}

func (s *PostgresEnvelopeStore) SetLastCode(ctx context.Context, code string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO intake_last_code (id, code) VALUES (TRUE, $1)
		ON CONFLICT (id) DO UPDATE SET code = $1`, code)
	return err
}

func (s *PostgresEnvelopeStore) LastCode(ctx context.Context) (string, error) {
	var code string
	err := s.db.QueryRowContext(ctx,
		`SELECT code FROM intake_last_code WHERE id = TRUE`).Scan(&code)
	if errors.Is(err, sql.ErrNoRows) {
		return "", sentinel.ErrNotFound
	}
	return code, err
}
