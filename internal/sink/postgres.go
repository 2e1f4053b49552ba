package sink

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bcdannyboy/EmailHunter/internal/aggregate"
)

const createFindings = `
CREATE TABLE IF NOT EXISTS email_findings (
	run_id     TEXT NOT NULL,
	domain     TEXT NOT NULL,
	kind       TEXT NOT NULL,
	email      TEXT NOT NULL,
	source     TEXT NOT NULL,
	category   TEXT NOT NULL,
	first_seen TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (run_id, kind, email, source)
)`

const insertFinding = `
INSERT INTO email_findings (run_id, domain, kind, email, source, category)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (run_id, kind, email, source) DO NOTHING`

// PostgresSink stores one row per (email, source) pair.
type PostgresSink struct {
	pool *pgxpool.Pool
}

// NewPostgresSink connects, pings and creates the findings table.
func NewPostgresSink(ctx context.Context, dsn string) (*PostgresSink, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres ping failed: %w", err)
	}
	if _, err := pool.Exec(ctx, createFindings); err != nil {
		pool.Close()
		return nil, fmt.Errorf("create findings table: %w", err)
	}
	return &PostgresSink{pool: pool}, nil
}

// Write upserts m. Rows already present are left untouched, so writing the
// same mapping again is harmless.
func (s *PostgresSink) Write(ctx context.Context, runID, domain string, kind aggregate.Kind, m aggregate.Mapping) error {
	if len(m) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, email := range m.Emails() {
		category := Category(email)
		for _, src := range m[email].Sorted() {
			batch.Queue(insertFinding, runID, domain, string(kind), email, src, category)
		}
	}

	br := s.pool.SendBatch(ctx, batch)
	for i := 0; i < batch.Len(); i++ {
		if _, err := br.Exec(); err != nil {
			br.Close()
			return fmt.Errorf("insert %s findings: %w", kind, err)
		}
	}
	if err := br.Close(); err != nil {
		return fmt.Errorf("insert %s findings: %w", kind, err)
	}
	return nil
}

// Count returns the number of stored rows for a run and kind.
func (s *PostgresSink) Count(ctx context.Context, runID string, kind aggregate.Kind) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx,
		`SELECT count(*) FROM email_findings WHERE run_id = $1 AND kind = $2`, runID, string(kind)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count findings: %w", err)
	}
	return n, nil
}

func (s *PostgresSink) Close() {
	s.pool.Close()
}
