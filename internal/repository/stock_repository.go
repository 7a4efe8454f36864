package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// StockLevel is the pair of counters guarded by the stock invariant.
type StockLevel struct {
	Total     int `db:"total_quantity"`
	Available int `db:"available_quantity"`
}

// StockRelease reports the outcome of a release, including whether the credit was clamped at total.
type StockRelease struct {
	StockLevel
	Clamped bool `db:"clamped"`
}

// StockRepository owns every write to available_quantity. Each statement is a single
// conditional update so the row lock serialises concurrent writers per item.
type StockRepository struct {
	db *sqlx.DB
}

// NewStockRepository constructs the repository.
func NewStockRepository(db *sqlx.DB) *StockRepository {
	return &StockRepository{db: db}
}

// Level reads the current counters. Inside a transaction the row is locked.
func (r *StockRepository) Level(ctx context.Context, exec sqlx.ExtContext, itemID string) (StockLevel, error) {
	query := `SELECT total_quantity, available_quantity FROM inventory_items WHERE id = $1`
	if exec != nil {
		query += ` FOR UPDATE`
	}
	var level StockLevel
	if err := sqlx.GetContext(ctx, orDB(r.db, exec), &level, query, itemID); err != nil {
		return StockLevel{}, err
	}
	return level, nil
}

// Reserve decrements available stock when enough units remain. A failed guard yields sql.ErrNoRows.
func (r *StockRepository) Reserve(ctx context.Context, exec sqlx.ExtContext, itemID string, qty int) (StockLevel, error) {
	const query = `UPDATE inventory_items
SET available_quantity = available_quantity - $2, updated_at = NOW()
WHERE id = $1 AND available_quantity >= $2
RETURNING total_quantity, available_quantity`
	var level StockLevel
	if err := sqlx.GetContext(ctx, orDB(r.db, exec), &level, query, itemID, qty); err != nil {
		return StockLevel{}, fmt.Errorf("reserve stock: %w", err)
	}
	return level, nil
}

// Release credits units back, clamped at total_quantity in the same statement.
func (r *StockRepository) Release(ctx context.Context, exec sqlx.ExtContext, itemID string, qty int) (StockRelease, error) {
	const query = `WITH target AS (
    SELECT id, total_quantity, available_quantity FROM inventory_items WHERE id = $1 FOR UPDATE
)
UPDATE inventory_items i
SET available_quantity = LEAST(t.total_quantity, t.available_quantity + $2), updated_at = NOW()
FROM target t
WHERE i.id = t.id
RETURNING i.total_quantity, i.available_quantity, (t.available_quantity + $2 > t.total_quantity) AS clamped`
	var out StockRelease
	if err := sqlx.GetContext(ctx, orDB(r.db, exec), &out, query, itemID, qty); err != nil {
		return StockRelease{}, fmt.Errorf("release stock: %w", err)
	}
	return out, nil
}

// Resize sets a new total and shifts available by the same delta. It refuses totals below
// the units currently committed (total - available) by yielding sql.ErrNoRows.
func (r *StockRepository) Resize(ctx context.Context, exec sqlx.ExtContext, itemID string, newTotal int) (StockLevel, error) {
	const query = `UPDATE inventory_items
SET available_quantity = available_quantity + ($2 - total_quantity), total_quantity = $2, updated_at = NOW()
WHERE id = $1 AND $2 >= total_quantity - available_quantity
RETURNING total_quantity, available_quantity`
	var level StockLevel
	if err := sqlx.GetContext(ctx, orDB(r.db, exec), &level, query, itemID, newTotal); err != nil {
		return StockLevel{}, fmt.Errorf("resize stock: %w", err)
	}
	return level, nil
}
