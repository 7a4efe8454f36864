package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/asset-inventory-api/internal/models"
)

const itemColumns = `id, name, category, description, total_quantity, available_quantity, specifications, created_by, created_at, updated_at`

// ItemRepository persists catalog rows. Quantity columns are written only on insert;
// later changes go through StockRepository.
type ItemRepository struct {
	db *sqlx.DB
}

// NewItemRepository constructs the repository.
func NewItemRepository(db *sqlx.DB) *ItemRepository {
	return &ItemRepository{db: db}
}

// Create inserts a new item.
func (r *ItemRepository) Create(ctx context.Context, exec sqlx.ExtContext, item *models.InventoryItem) error {
	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if item.CreatedAt.IsZero() {
		item.CreatedAt = now
	}
	item.UpdatedAt = item.CreatedAt
	if item.Specifications == nil {
		item.Specifications = models.Specifications{}
	}
	const query = `INSERT INTO inventory_items (` + itemColumns + `)
VALUES (:id, :name, :category, :description, :total_quantity, :available_quantity, :specifications, :created_by, :created_at, :updated_at)`
	if _, err := sqlx.NamedExecContext(ctx, orDB(r.db, exec), query, item); err != nil {
		return fmt.Errorf("create item: %w", err)
	}
	return nil
}

// FindByID fetches an item by identifier.
func (r *ItemRepository) FindByID(ctx context.Context, id string) (*models.InventoryItem, error) {
	var item models.InventoryItem
	if err := r.db.GetContext(ctx, &item, `SELECT `+itemColumns+` FROM inventory_items WHERE id = $1`, id); err != nil {
		return nil, err
	}
	return &item, nil
}

// List returns items matching the filter and the total match count.
func (r *ItemRepository) List(ctx context.Context, filter models.ItemFilter) ([]models.InventoryItem, int, error) {
	conditions := make([]string, 0, 4)
	args := make([]interface{}, 0, 6)

	if filter.Category != "" {
		args = append(args, filter.Category)
		conditions = append(conditions, fmt.Sprintf("category = $%d", len(args)))
	}
	switch filter.Status {
	case models.StockUnassigned:
		conditions = append(conditions, "available_quantity > 0")
	case models.StockAssigned:
		conditions = append(conditions, "available_quantity = 0")
	case models.StockPartiallyAssigned:
		conditions = append(conditions, "FALSE")
	}
	switch filter.Condition {
	case models.ConditionDamaged:
		conditions = append(conditions, "specifications->>'condition' = 'Damaged'")
	case models.ConditionGood:
		conditions = append(conditions, "COALESCE(specifications->>'condition', 'Good') = 'Good'")
	}
	if search := strings.TrimSpace(filter.Search); search != "" {
		args = append(args, "%"+strings.ToLower(search)+"%")
		idx := len(args)
		conditions = append(conditions, fmt.Sprintf("(LOWER(name) LIKE $%d OR LOWER(description) LIKE $%d OR LOWER(specifications::text) LIKE $%d)", idx, idx, idx))
	}

	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM inventory_items"+where, args...); err != nil {
		return nil, 0, fmt.Errorf("count items: %w", err)
	}

	filter.Normalize()
	query := fmt.Sprintf("SELECT %s FROM inventory_items%s ORDER BY created_at DESC, id LIMIT %d OFFSET %d",
		itemColumns, where, filter.PageSize, filter.Offset())
	var items []models.InventoryItem
	if err := r.db.SelectContext(ctx, &items, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list items: %w", err)
	}
	return items, total, nil
}

// UpdateItemParams groups descriptive columns; nil fields are left untouched.
type UpdateItemParams struct {
	Name           *string
	Category       *string
	Description    *string
	Specifications models.Specifications
}

// Update patches descriptive columns in one statement. Missing rows yield sql.ErrNoRows.
func (r *ItemRepository) Update(ctx context.Context, exec sqlx.ExtContext, id string, params UpdateItemParams) error {
	setParts := []string{"updated_at = :updated_at"}
	args := map[string]interface{}{"id": id, "updated_at": time.Now().UTC()}
	if params.Name != nil {
		setParts = append(setParts, "name = :name")
		args["name"] = *params.Name
	}
	if params.Category != nil {
		setParts = append(setParts, "category = :category")
		args["category"] = *params.Category
	}
	if params.Description != nil {
		setParts = append(setParts, "description = :description")
		args["description"] = *params.Description
	}
	if params.Specifications != nil {
		setParts = append(setParts, "specifications = :specifications")
		args["specifications"] = params.Specifications
	}
	query := fmt.Sprintf("UPDATE inventory_items SET %s WHERE id = :id", strings.Join(setParts, ", "))
	result, err := sqlx.NamedExecContext(ctx, orDB(r.db, exec), query, args)
	if err != nil {
		return fmt.Errorf("update item: %w", err)
	}
	return expectRow(result, "update item")
}

// MergeSpecifications merges keys into the JSONB specifications without touching the others.
func (r *ItemRepository) MergeSpecifications(ctx context.Context, exec sqlx.ExtContext, id string, values map[string]string) error {
	payload, err := models.Specifications(values).Value()
	if err != nil {
		return err
	}
	const query = `UPDATE inventory_items
SET specifications = COALESCE(specifications, '{}'::jsonb) || $2::jsonb, updated_at = NOW()
WHERE id = $1`
	result, err := orDB(r.db, exec).ExecContext(ctx, query, id, payload)
	if err != nil {
		return fmt.Errorf("merge item specifications: %w", err)
	}
	return expectRow(result, "merge item specifications")
}

// DeleteUnreferenced removes an item only when no active assignment and no approved
// request references it. A blocked or missing row yields sql.ErrNoRows.
func (r *ItemRepository) DeleteUnreferenced(ctx context.Context, id string) error {
	const query = `DELETE FROM inventory_items i
WHERE i.id = $1
  AND NOT EXISTS (SELECT 1 FROM assignments a WHERE a.item_id = i.id AND a.status = 'assigned')
  AND NOT EXISTS (SELECT 1 FROM requests q WHERE q.item_id = i.id AND q.status = 'approved')`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete item: %w", err)
	}
	return expectRow(result, "delete item")
}

// StockTotals aggregates catalog counters, optionally per category.
type StockTotals struct {
	Items     int `db:"items"`
	Units     int `db:"units"`
	Available int `db:"available"`
}

// Totals returns catalog wide counters.
func (r *ItemRepository) Totals(ctx context.Context) (StockTotals, error) {
	const query = `SELECT COUNT(*) AS items, COALESCE(SUM(total_quantity), 0) AS units, COALESCE(SUM(available_quantity), 0) AS available FROM inventory_items`
	var totals StockTotals
	if err := r.db.GetContext(ctx, &totals, query); err != nil {
		return StockTotals{}, fmt.Errorf("item totals: %w", err)
	}
	return totals, nil
}

// CountByCategory returns item counts per category.
func (r *ItemRepository) CountByCategory(ctx context.Context) (map[string]int, error) {
	var rows []struct {
		Category string `db:"category"`
		Count    int    `db:"count"`
	}
	if err := r.db.SelectContext(ctx, &rows, `SELECT category, COUNT(*) AS count FROM inventory_items GROUP BY category`); err != nil {
		return nil, fmt.Errorf("count items by category: %w", err)
	}
	out := make(map[string]int, len(rows))
	for _, row := range rows {
		out[row.Category] = row.Count
	}
	return out, nil
}

func expectRow(result sql.Result, op string) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check %s rows: %w", op, err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}
