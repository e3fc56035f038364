package state

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"

	"github.com/albapepper/dropwatch/internal/db"
	"github.com/albapepper/dropwatch/internal/pricing"
)

// stateRowID is the key of the single state row.
const stateRowID = 1

// PostgresBackend stores the document as jsonb in one row.
type PostgresBackend struct {
	pool   *db.Pool
	logger *slog.Logger
}

// NewPostgresBackend wraps an open pool.
func NewPostgresBackend(pool *db.Pool, logger *slog.Logger) *PostgresBackend {
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresBackend{pool: pool, logger: logger.With("backend", "postgres")}
}

// Load reads the state row. No row means first run.
func (b *PostgresBackend) Load(ctx context.Context) (*pricing.Store, *pricing.Ledger, error) {
	var data []byte
	err := b.pool.QueryRow(ctx, db.StmtLoadState, stateRowID).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		b.logger.Info("No state row, starting empty")
		return pricing.NewStore(), pricing.NewLedger(), nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("load state: %w", err)
	}

	store, ledger, err := Decode(data, db.StateTable)
	if err != nil {
		return nil, nil, err
	}
	b.logger.Info("State loaded",
		"tracked_skus", store.CountTrackedItems(), "ledger_entries", ledger.Len())
	return store, ledger, nil
}

// Save upserts the state row in a transaction.
func (b *PostgresBackend) Save(ctx context.Context, store *pricing.Store, ledger *pricing.Ledger) error {
	data, err := Encode(store, ledger)
	if err != nil {
		return err
	}

	tx, err := b.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, db.StmtSaveState, stateRowID, data); err != nil {
		return fmt.Errorf("upsert state: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit state: %w", err)
	}

	b.logger.Debug("State saved",
		"tracked_skus", store.CountTrackedItems(), "ledger_entries", ledger.Len(), "bytes", len(data))
	return nil
}
