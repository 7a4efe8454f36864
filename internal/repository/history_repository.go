package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/asset-inventory-api/internal/models"
)

const historyColumns = `h.id, h.action_type, h.employee_id, h.item_id, COALESCE(i.name, '` + models.DeletedItemName + `') AS item_name,
       h.quantity, h.notes, h.created_at`

// HistoryRepository persists the append-only audit log.
type HistoryRepository struct {
	db *sqlx.DB
}

// NewHistoryRepository constructs the repository.
func NewHistoryRepository(db *sqlx.DB) *HistoryRepository {
	return &HistoryRepository{db: db}
}

// Create appends an entry. Replaying the same id is a no-op so retries stay idempotent.
func (r *HistoryRepository) Create(ctx context.Context, entry *models.HistoryEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO history (id, action_type, employee_id, item_id, quantity, notes, created_at)
VALUES (:id, :action_type, :employee_id, :item_id, :quantity, :notes, :created_at)
ON CONFLICT (id) DO NOTHING`
	if _, err := r.db.NamedExecContext(ctx, query, entry); err != nil {
		return fmt.Errorf("create history entry: %w", err)
	}
	return nil
}

// List returns entries newest first and the total match count.
func (r *HistoryRepository) List(ctx context.Context, filter models.HistoryFilter) ([]models.HistoryEntry, int, error) {
	conditions := make([]string, 0, 5)
	args := make([]interface{}, 0, 5)
	if len(filter.ActionTypes) > 0 {
		actions := make([]string, len(filter.ActionTypes))
		for i, a := range filter.ActionTypes {
			actions[i] = string(a)
		}
		args = append(args, pq.Array(actions))
		conditions = append(conditions, fmt.Sprintf("h.action_type = ANY($%d)", len(args)))
	}
	if filter.EmployeeID != "" {
		args = append(args, filter.EmployeeID)
		conditions = append(conditions, fmt.Sprintf("h.employee_id = $%d", len(args)))
	}
	if filter.ItemID != "" {
		args = append(args, filter.ItemID)
		conditions = append(conditions, fmt.Sprintf("h.item_id = $%d", len(args)))
	}
	if filter.From != nil {
		args = append(args, *filter.From)
		conditions = append(conditions, fmt.Sprintf("h.created_at >= $%d", len(args)))
	}
	if filter.To != nil {
		args = append(args, *filter.To)
		conditions = append(conditions, fmt.Sprintf("h.created_at <= $%d", len(args)))
	}
	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM history h"+where, args...); err != nil {
		return nil, 0, fmt.Errorf("count history: %w", err)
	}

	filter.Normalize()
	query := fmt.Sprintf("SELECT %s FROM history h LEFT JOIN inventory_items i ON i.id = h.item_id%s ORDER BY h.created_at DESC, h.id DESC LIMIT %d OFFSET %d",
		historyColumns, where, filter.PageSize, filter.Offset())
	var entries []models.HistoryEntry
	if err := r.db.SelectContext(ctx, &entries, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list history: %w", err)
	}
	return entries, total, nil
}
