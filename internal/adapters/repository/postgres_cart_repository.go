package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/storefront/core/internal/domain/entities"
	"github.com/storefront/core/internal/infrastructure/database"
	"github.com/storefront/core/internal/infrastructure/logger"
	"github.com/storefront/core/internal/ports"
)

// PostgresCartRepository keeps the cart store in the visitors table.
// Mapping order is the seq column.
type PostgresCartRepository struct {
	db     *database.DB
	logger *logger.Logger
}

// NewPostgresCartRepository creates a postgres-backed cart repository
func NewPostgresCartRepository(db *database.DB, appLogger *logger.Logger) ports.CartRepository {
	return &PostgresCartRepository{
		db:     db,
		logger: appLogger.WithComponent("postgres_cart_repository"),
	}
}

type visitorRow struct {
	ID        string `db:"id"`
	Computers int    `db:"computers"`
	Phones    int    `db:"phones"`
	Printers  int    `db:"printers"`
}

func (r *PostgresCartRepository) Load(ctx context.Context) (*entities.CartStore, error) {
	start := time.Now()
	store, err := loadVisitors(ctx, r.db.DB)
	r.logger.LogStoreOperation("load", storeLen(store), msSince(start), err)
	return store, err
}

// Persist replaces the table contents with store. Rows are rewritten so seq
// follows the store order.
func (r *PostgresCartRepository) Persist(ctx context.Context, store *entities.CartStore) error {
	start := time.Now()
	err := r.db.WithTransaction(ctx, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, `LOCK TABLE visitors IN SHARE ROW EXCLUSIVE MODE`); err != nil {
			return fmt.Errorf("lock visitors: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM visitors`); err != nil {
			return fmt.Errorf("clear visitors: %w", err)
		}
		return persistVisitors(ctx, tx, store)
	})
	r.logger.LogStoreOperation("persist", store.Len(), msSince(start), err)
	return err
}

// Update holds an exclusive table lock for the whole load-mutate-persist cycle,
// so concurrent requests from any process are serialised.
func (r *PostgresCartRepository) Update(ctx context.Context, fn func(store *entities.CartStore) error) error {
	return r.db.WithTransaction(ctx, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, `LOCK TABLE visitors IN SHARE ROW EXCLUSIVE MODE`); err != nil {
			return fmt.Errorf("lock visitors: %w", err)
		}

		store, err := loadVisitors(ctx, tx)
		if err != nil {
			return err
		}

		if err := fn(store); err != nil {
			return err
		}

		return persistVisitors(ctx, tx, store)
	})
}

func (r *PostgresCartRepository) HealthCheck(ctx context.Context) error {
	return r.db.HealthCheck(ctx)
}

func loadVisitors(ctx context.Context, q sqlx.QueryerContext) (*entities.CartStore, error) {
	query := `
		SELECT id, computers, phones, printers
		FROM visitors
		ORDER BY seq`

	var rows []visitorRow
	if err := sqlx.SelectContext(ctx, q, &rows, query); err != nil {
		return nil, fmt.Errorf("load visitors: %w", err)
	}

	store := entities.NewCartStore()
	for _, row := range rows {
		counts := entities.Counts{Computers: row.Computers, Phones: row.Phones, Printers: row.Printers}
		if err := store.Insert(row.ID, counts); err != nil {
			return nil, fmt.Errorf("%w: %v", entities.ErrCorruptStore, err)
		}
	}
	return store, nil
}

func persistVisitors(ctx context.Context, tx *sqlx.Tx, store *entities.CartStore) error {
	query := `
		INSERT INTO visitors (id, computers, phones, printers)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE
		SET computers = EXCLUDED.computers,
			phones = EXCLUDED.phones,
			printers = EXCLUDED.printers,
			updated_at = CURRENT_TIMESTAMP
		WHERE (visitors.computers, visitors.phones, visitors.printers)
			IS DISTINCT FROM (EXCLUDED.computers, EXCLUDED.phones, EXCLUDED.printers)`

	stmt, err := tx.PreparexContext(ctx, query)
	if err != nil {
		return fmt.Errorf("prepare visitor upsert: %w", err)
	}
	defer stmt.Close()

	for _, rec := range store.Records() {
		if _, err := stmt.ExecContext(ctx, rec.ID, rec.Counts.Computers, rec.Counts.Phones, rec.Counts.Printers); err != nil {
			return fmt.Errorf("persist visitor %s: %w", rec.ID, err)
		}
	}
	return nil
}
