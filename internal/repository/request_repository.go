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

const requestColumns = `id, employee_id, item_id, item_name, quantity, status, urgency, notes, brand, expected_date,
       admin_comment, reject_reason, reviewed_by, reviewed_at, completed_at, created_at, updated_at`

// RequestRepository persists allocation requests.
type RequestRepository struct {
	db *sqlx.DB
}

// NewRequestRepository constructs the repository.
func NewRequestRepository(db *sqlx.DB) *RequestRepository {
	return &RequestRepository{db: db}
}

// Create inserts a new request row.
func (r *RequestRepository) Create(ctx context.Context, exec sqlx.ExtContext, request *models.Request) error {
	if request.ID == "" {
		request.ID = uuid.NewString()
	}
	if request.Status == "" {
		request.Status = models.RequestPending
	}
	if request.Urgency == "" {
		request.Urgency = models.UrgencyNormal
	}
	if request.CreatedAt.IsZero() {
		request.CreatedAt = time.Now().UTC()
	}
	request.UpdatedAt = request.CreatedAt
	const query = `INSERT INTO requests
	(id, employee_id, item_id, item_name, quantity, status, urgency, notes, brand, expected_date, created_at, updated_at)
	VALUES (:id, :employee_id, :item_id, :item_name, :quantity, :status, :urgency, :notes, :brand, :expected_date, :created_at, :updated_at)`
	if _, err := sqlx.NamedExecContext(ctx, orDB(r.db, exec), query, request); err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	return nil
}

// FindByID fetches a request by identifier.
func (r *RequestRepository) FindByID(ctx context.Context, id string) (*models.Request, error) {
	var request models.Request
	if err := r.db.GetContext(ctx, &request, `SELECT `+requestColumns+` FROM requests WHERE id = $1`, id); err != nil {
		return nil, err
	}
	return &request, nil
}

// List returns requests matching the filter (latest first) and the total match count.
func (r *RequestRepository) List(ctx context.Context, filter models.RequestFilter) ([]models.Request, int, error) {
	conditions := make([]string, 0, 4)
	args := make([]interface{}, 0, 4)
	if len(filter.Status) > 0 {
		statuses := make([]string, len(filter.Status))
		for i, s := range filter.Status {
			statuses[i] = string(s)
		}
		args = append(args, pq.Array(statuses))
		conditions = append(conditions, fmt.Sprintf("status = ANY($%d)", len(args)))
	}
	if filter.EmployeeID != "" {
		args = append(args, filter.EmployeeID)
		conditions = append(conditions, fmt.Sprintf("employee_id = $%d", len(args)))
	}
	if filter.ItemID != "" {
		args = append(args, filter.ItemID)
		conditions = append(conditions, fmt.Sprintf("item_id = $%d", len(args)))
	}
	if filter.Urgency != "" {
		args = append(args, filter.Urgency)
		conditions = append(conditions, fmt.Sprintf("urgency = $%d", len(args)))
	}
	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM requests"+where, args...); err != nil {
		return nil, 0, fmt.Errorf("count requests: %w", err)
	}

	filter.Normalize()
	query := fmt.Sprintf("SELECT %s FROM requests%s ORDER BY created_at DESC, id LIMIT %d OFFSET %d",
		requestColumns, where, filter.PageSize, filter.Offset())
	var requests []models.Request
	if err := r.db.SelectContext(ctx, &requests, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list requests: %w", err)
	}
	return requests, total, nil
}

// TransitionParams describes a guarded status change and the review columns it sets.
type TransitionParams struct {
	ID           string
	From         models.RequestStatus
	To           models.RequestStatus
	ReviewedBy   *string
	ReviewedAt   *time.Time
	AdminComment *string
	RejectReason *string
	CompletedAt  *time.Time
	// BindItemID/BindItemName attach a catalog item to a free-text request.
	BindItemID   *string
	BindItemName *string
}

// Transition moves a request from the expected status to the next one. When the row
// is not in the expected status the update matches nothing and sql.ErrNoRows is returned.
func (r *RequestRepository) Transition(ctx context.Context, exec sqlx.ExtContext, params TransitionParams) (*models.Request, error) {
	setParts := []string{"status = :to", "updated_at = :updated_at"}
	args := map[string]interface{}{
		"id":         params.ID,
		"from":       params.From,
		"to":         params.To,
		"updated_at": time.Now().UTC(),
	}
	optional := []struct {
		column string
		value  interface{}
		set    bool
	}{
		{"reviewed_by", params.ReviewedBy, params.ReviewedBy != nil},
		{"reviewed_at", params.ReviewedAt, params.ReviewedAt != nil},
		{"admin_comment", params.AdminComment, params.AdminComment != nil},
		{"reject_reason", params.RejectReason, params.RejectReason != nil},
		{"completed_at", params.CompletedAt, params.CompletedAt != nil},
		{"item_id", params.BindItemID, params.BindItemID != nil},
		{"item_name", params.BindItemName, params.BindItemName != nil},
	}
	for _, field := range optional {
		if !field.set {
			continue
		}
		setParts = append(setParts, fmt.Sprintf("%s = :%s", field.column, field.column))
		args[field.column] = field.value
	}

	query := fmt.Sprintf("UPDATE requests SET %s WHERE id = :id AND status = :from RETURNING %s",
		strings.Join(setParts, ", "), requestColumns)
	bound, bindArgs, err := sqlx.Named(query, args)
	if err != nil {
		return nil, fmt.Errorf("bind request transition: %w", err)
	}
	target := orDB(r.db, exec)
	var updated models.Request
	if err := sqlx.GetContext(ctx, target, &updated, target.Rebind(bound), bindArgs...); err != nil {
		return nil, fmt.Errorf("transition request %s->%s: %w", params.From, params.To, err)
	}
	return &updated, nil
}

// UpdatePendingParams are the fields an employee may amend.
type UpdatePendingParams struct {
	Quantity     *int
	Notes        *string
	Urgency      *models.Urgency
	Brand        *string
	ExpectedDate *time.Time
}

// UpdatePending amends a pending request owned by employeeID; anything else yields sql.ErrNoRows.
func (r *RequestRepository) UpdatePending(ctx context.Context, id, employeeID string, params UpdatePendingParams) (*models.Request, error) {
	setParts := []string{"updated_at = :updated_at"}
	args := map[string]interface{}{
		"id":          id,
		"employee_id": employeeID,
		"pending":     models.RequestPending,
		"updated_at":  time.Now().UTC(),
	}
	if params.Quantity != nil {
		setParts = append(setParts, "quantity = :quantity")
		args["quantity"] = *params.Quantity
	}
	if params.Notes != nil {
		setParts = append(setParts, "notes = :notes")
		args["notes"] = *params.Notes
	}
	if params.Urgency != nil {
		setParts = append(setParts, "urgency = :urgency")
		args["urgency"] = *params.Urgency
	}
	if params.Brand != nil {
		setParts = append(setParts, "brand = :brand")
		args["brand"] = *params.Brand
	}
	if params.ExpectedDate != nil {
		setParts = append(setParts, "expected_date = :expected_date")
		args["expected_date"] = *params.ExpectedDate
	}
	query := fmt.Sprintf("UPDATE requests SET %s WHERE id = :id AND employee_id = :employee_id AND status = :pending RETURNING %s",
		strings.Join(setParts, ", "), requestColumns)
	bound, bindArgs, err := sqlx.Named(query, args)
	if err != nil {
		return nil, fmt.Errorf("bind request update: %w", err)
	}
	var updated models.Request
	if err := r.db.GetContext(ctx, &updated, r.db.Rebind(bound), bindArgs...); err != nil {
		return nil, fmt.Errorf("update pending request: %w", err)
	}
	return &updated, nil
}

// DeletePending removes a pending request owned by employeeID; anything else yields sql.ErrNoRows.
func (r *RequestRepository) DeletePending(ctx context.Context, id, employeeID string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM requests WHERE id = $1 AND employee_id = $2 AND status = $3`,
		id, employeeID, models.RequestPending)
	if err != nil {
		return fmt.Errorf("delete pending request: %w", err)
	}
	return expectRow(result, "delete pending request")
}

// CountByStatus returns request counts per status, optionally scoped to one employee.
func (r *RequestRepository) CountByStatus(ctx context.Context, employeeID string) (map[models.RequestStatus]int, error) {
	query := `SELECT status, COUNT(*) AS count FROM requests`
	args := []interface{}{}
	if employeeID != "" {
		query += ` WHERE employee_id = $1`
		args = append(args, employeeID)
	}
	query += ` GROUP BY status`
	var rows []struct {
		Status models.RequestStatus `db:"status"`
		Count  int                  `db:"count"`
	}
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("count requests by status: %w", err)
	}
	out := make(map[models.RequestStatus]int, len(rows))
	for _, row := range rows {
		out[row.Status] = row.Count
	}
	return out, nil
}
