// Package db provides a pgxpool-based connection pool with prepared statement
// registration and health checking for the Postgres state backend.
package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// StateTable holds the single-row state document.
const StateTable = "dropwatch_state"

// Options tunes the pool. Zero values fall back to defaults.
type Options struct {
	MinConns int
	MaxConns int
	MaxLife  time.Duration
}

// Pool wraps pgxpool.Pool with application-specific helpers.
type Pool struct {
	*pgxpool.Pool
}

// New creates and validates a new connection pool, creating the state table
// if it does not exist.
func New(ctx context.Context, databaseURL string, opts Options) (*Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database URL: %w", err)
	}

	if opts.MinConns > 0 {
		poolCfg.MinConns = int32(opts.MinConns)
	}
	poolCfg.MaxConns = 2
	if opts.MaxConns > 0 {
		poolCfg.MaxConns = int32(opts.MaxConns)
	}
	poolCfg.MaxConnLifetime = 30 * time.Minute
	if opts.MaxLife > 0 {
		poolCfg.MaxConnLifetime = opts.MaxLife
	}
	poolCfg.MaxConnIdleTime = 5 * time.Minute

	// Statements reference the state table, so it must exist before the
	// first pooled connection registers them.
	if err := ensureSchema(ctx, poolCfg.ConnConfig); err != nil {
		return nil, err
	}
	poolCfg.AfterConnect = registerPreparedStatements

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	// Verify connectivity
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &Pool{Pool: pool}, nil
}

func ensureSchema(ctx context.Context, connCfg *pgx.ConnConfig) error {
	conn, err := pgx.ConnectConfig(ctx, connCfg.Copy())
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer conn.Close(ctx)

	if _, err := conn.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// HealthCheck runs a trivial query to verify the database is reachable.
func (p *Pool) HealthCheck(ctx context.Context) error {
	var n int
	return p.QueryRow(ctx, "health_check").Scan(&n)
}

var schemaSQL = `CREATE TABLE IF NOT EXISTS ` + StateTable + ` (
	id         smallint PRIMARY KEY,
	document   jsonb NOT NULL,
	updated_at timestamptz NOT NULL DEFAULT now()
)`

// Prepared statement names.
const (
	StmtLoadState = "state_load"
	StmtSaveState = "state_save"
)

func registerPreparedStatements(ctx context.Context, conn *pgx.Conn) error {
	stmts := map[string]string{
		"health_check": "SELECT 1",

		StmtLoadState: "SELECT document FROM " + StateTable + " WHERE id = $1",
		StmtSaveState: "INSERT INTO " + StateTable + " (id, document, updated_at) VALUES ($1, $2, now()) " +
			"ON CONFLICT (id) DO UPDATE SET document = EXCLUDED.document, updated_at = EXCLUDED.updated_at",
	}

	for name, sql := range stmts {
		if _, err := conn.Prepare(ctx, name, sql); err != nil {
			return fmt.Errorf("prepare %q: %w", name, err)
		}
	}
	return nil
}
