package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/asset-inventory-api/internal/models"
)

const assignmentColumns = `a.id, a.employee_id, a.item_id, COALESCE(i.name, '` + models.DeletedItemName + `') AS item_name, a.request_id,
       a.quantity, a.status, a.assigned_date, a.returned_at, a.return_condition, a.notes`

const assignmentReturning = `id, employee_id, item_id, request_id, quantity, status, assigned_date, returned_at, return_condition, notes`

// AssignmentRepository persists ledger entries. Rows are never deleted.
type AssignmentRepository struct {
	db *sqlx.DB
}

// NewAssignmentRepository constructs the repository.
func NewAssignmentRepository(db *sqlx.DB) *AssignmentRepository {
	return &AssignmentRepository{db: db}
}

// Create inserts an assigned ledger entry.
func (r *AssignmentRepository) Create(ctx context.Context, exec sqlx.ExtContext, entry *models.Assignment) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.Status == "" {
		entry.Status = models.AssignmentAssigned
	}
	if entry.AssignedDate.IsZero() {
		entry.AssignedDate = time.Now().UTC()
	}
	const query = `INSERT INTO assignments (id, employee_id, item_id, request_id, quantity, status, assigned_date, notes)
VALUES (:id, :employee_id, :item_id, :request_id, :quantity, :status, :assigned_date, :notes)`
	if _, err := sqlx.NamedExecContext(ctx, orDB(r.db, exec), query, entry); err != nil {
		return fmt.Errorf("create assignment: %w", err)
	}
	return nil
}

// FindByID fetches a ledger entry with its item name.
func (r *AssignmentRepository) FindByID(ctx context.Context, id string) (*models.Assignment, error) {
	query := `SELECT ` + assignmentColumns + ` FROM assignments a LEFT JOIN inventory_items i ON i.id = a.item_id WHERE a.id = $1`
	var entry models.Assignment
	if err := r.db.GetContext(ctx, &entry, query, id); err != nil {
		return nil, err
	}
	return &entry, nil
}

// MarkReturned flips an assigned entry to returned. A second call matches nothing and yields sql.ErrNoRows.
func (r *AssignmentRepository) MarkReturned(ctx context.Context, exec sqlx.ExtContext, id string, condition models.ItemCondition, notes string, at time.Time) (*models.Assignment, error) {
	const query = `UPDATE assignments
SET status = 'returned', returned_at = $2, return_condition = $3,
    notes = CASE WHEN $4 = '' THEN notes WHEN notes = '' THEN $4 ELSE notes || E'\n' || $4 END
WHERE id = $1 AND status = 'assigned'
RETURNING ` + assignmentReturning
	var entry models.Assignment
	if err := sqlx.GetContext(ctx, orDB(r.db, exec), &entry, query, id, at, condition, notes); err != nil {
		return nil, fmt.Errorf("mark assignment returned: %w", err)
	}
	return &entry, nil
}

// List returns ledger entries matching the filter (latest first) and the total match count.
func (r *AssignmentRepository) List(ctx context.Context, filter models.AssignmentFilter) ([]models.Assignment, int, error) {
	conditions := make([]string, 0, 3)
	args := make([]interface{}, 0, 3)
	if filter.EmployeeID != "" {
		args = append(args, filter.EmployeeID)
		conditions = append(conditions, fmt.Sprintf("a.employee_id = $%d", len(args)))
	}
	if filter.ItemID != "" {
		args = append(args, filter.ItemID)
		conditions = append(conditions, fmt.Sprintf("a.item_id = $%d", len(args)))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		conditions = append(conditions, fmt.Sprintf("a.status = $%d", len(args)))
	}
	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM assignments a"+where, args...); err != nil {
		return nil, 0, fmt.Errorf("count assignments: %w", err)
	}

	filter.Normalize()
	query := fmt.Sprintf("SELECT %s FROM assignments a LEFT JOIN inventory_items i ON i.id = a.item_id%s ORDER BY a.assigned_date DESC, a.id LIMIT %d OFFSET %d",
		assignmentColumns, where, filter.PageSize, filter.Offset())
	var entries []models.Assignment
	if err := r.db.SelectContext(ctx, &entries, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list assignments: %w", err)
	}
	return entries, total, nil
}

// ListActiveByEmployee returns the entries an employee currently holds.
func (r *AssignmentRepository) ListActiveByEmployee(ctx context.Context, employeeID string) ([]models.Assignment, error) {
	query := `SELECT ` + assignmentColumns + ` FROM assignments a LEFT JOIN inventory_items i ON i.id = a.item_id
WHERE a.employee_id = $1 AND a.status = 'assigned' ORDER BY a.assigned_date DESC`
	var entries []models.Assignment
	if err := r.db.SelectContext(ctx, &entries, query, employeeID); err != nil {
		return nil, fmt.Errorf("list active assignments: %w", err)
	}
	return entries, nil
}

// SumActiveByItem returns the units of an item currently held across all active entries.
func (r *AssignmentRepository) SumActiveByItem(ctx context.Context, itemID string) (int, error) {
	var units int
	if err := r.db.GetContext(ctx, &units, `SELECT COALESCE(SUM(quantity), 0) FROM assignments WHERE item_id = $1 AND status = 'assigned'`, itemID); err != nil {
		return 0, fmt.Errorf("sum active assignments: %w", err)
	}
	return units, nil
}

// CountActive counts active entries, optionally for one employee.
func (r *AssignmentRepository) CountActive(ctx context.Context, employeeID string) (int, error) {
	query := `SELECT COUNT(*) FROM assignments WHERE status = 'assigned'`
	args := []interface{}{}
	if employeeID != "" {
		query += ` AND employee_id = $1`
		args = append(args, employeeID)
	}
	var count int
	if err := r.db.GetContext(ctx, &count, query, args...); err != nil {
		return 0, fmt.Errorf("count active assignments: %w", err)
	}
	return count, nil
}
