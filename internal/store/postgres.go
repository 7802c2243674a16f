package store

import (
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"

	"pairwatch/internal/market"
)

const tickSchema = `
CREATE TABLE IF NOT EXISTS ticks (
	symbol    TEXT             NOT NULL,
	ts        DOUBLE PRECISION NOT NULL,
	price     DOUBLE PRECISION NOT NULL,
	quantity  DOUBLE PRECISION NOT NULL,
	PRIMARY KEY (symbol, ts)
);
CREATE INDEX IF NOT EXISTS idx_ticks_symbol_ts ON ticks(symbol, ts);
`

const tickUpsertSQL = `
INSERT INTO ticks(symbol, ts, price, quantity)
VALUES($1, $2, $3, $4)
ON CONFLICT(symbol, ts) DO UPDATE
SET price=EXCLUDED.price,
    quantity=EXCLUDED.quantity;
`

// PostgresTickRepository persists ticks in a (symbol, ts)-keyed table with
// last-write-wins upsert semantics.
type PostgresTickRepository struct {
	db *sql.DB
}

// NewPostgresTickRepository opens the connection and ensures the schema exists.
func NewPostgresTickRepository(dsn string) (*PostgresTickRepository, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if _, err := db.Exec(tickSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return &PostgresTickRepository{db: db}, nil
}

// Upsert inserts the tick, replacing any row with the same (symbol, ts) key.
func (r *PostgresTickRepository) Upsert(tick market.Tick) error {
	_, err := r.db.Exec(tickUpsertSQL, tick.Symbol, tick.Timestamp, tick.Price, tick.Quantity)
	if err != nil {
		return fmt.Errorf("upsert tick: %w", err)
	}
	return nil
}

// DeleteBefore removes all rows with a timestamp strictly before cutoff.
func (r *PostgresTickRepository) DeleteBefore(cutoff float64) error {
	_, err := r.db.Exec(`DELETE FROM ticks WHERE ts < $1`, cutoff)
	if err != nil {
		return fmt.Errorf("delete expired ticks: %w", err)
	}
	return nil
}

// Close releases the underlying connection pool.
func (r *PostgresTickRepository) Close() error {
	return r.db.Close()
}
