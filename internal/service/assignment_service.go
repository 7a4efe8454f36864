package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/asset-inventory-api/internal/dto"
	"github.com/noah-isme/asset-inventory-api/internal/models"
	appErrors "github.com/noah-isme/asset-inventory-api/pkg/errors"
)

type assignmentStore interface {
	Create(ctx context.Context, exec sqlx.ExtContext, entry *models.Assignment) error
	FindByID(ctx context.Context, id string) (*models.Assignment, error)
	MarkReturned(ctx context.Context, exec sqlx.ExtContext, id string, condition models.ItemCondition, notes string, at time.Time) (*models.Assignment, error)
	List(ctx context.Context, filter models.AssignmentFilter) ([]models.Assignment, int, error)
	ListActiveByEmployee(ctx context.Context, employeeID string) ([]models.Assignment, error)
	SumActiveByItem(ctx context.Context, itemID string) (int, error)
}

type itemSpecWriter interface {
	MergeSpecifications(ctx context.Context, exec sqlx.ExtContext, id string, values map[string]string) error
}

// AssignmentService maintains the ledger of units held by employees.
type AssignmentService struct {
	store     assignmentStore
	items     itemSpecWriter
	tx        transactor
	stock     *StockService
	history   *HistoryService
	cache     *CacheService
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewAssignmentService constructs the ledger service.
func NewAssignmentService(store assignmentStore, items itemSpecWriter, tx transactor, stock *StockService, history *HistoryService, cache *CacheService, validate *validator.Validate, logger *zap.Logger) *AssignmentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AssignmentService{
		store:     store,
		items:     items,
		tx:        tx,
		stock:     stock,
		history:   history,
		cache:     cache,
		validator: validate,
		logger:    logger,
		now:       time.Now,
	}
}

// Assign reserves stock and records a ledger entry for an employee in one transaction.
func (s *AssignmentService) Assign(ctx context.Context, req dto.AssignItemRequest, actor *models.JWTClaims) (*models.Assignment, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if !actor.IsAdmin() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only admins can assign items directly")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid assignment payload")
	}

	entry := &models.Assignment{
		EmployeeID:   strings.TrimSpace(req.EmployeeID),
		ItemID:       req.ItemID,
		Quantity:     req.Quantity,
		Status:       models.AssignmentAssigned,
		AssignedDate: s.now().UTC(),
		Notes:        strings.TrimSpace(req.Notes),
	}
	err := s.tx.WithinTx(ctx, func(exec sqlx.ExtContext) error {
		if _, err := s.stock.Reserve(ctx, exec, entry.ItemID, entry.Quantity); err != nil {
			return err
		}
		return s.RecordInTx(ctx, exec, entry)
	})
	if err != nil {
		return nil, appErrors.FromStore(err, "failed to assign item")
	}
	s.cache.InvalidateItems(ctx, entry.ItemID)

	itemID := entry.ItemID
	s.history.Append(ctx, models.HistoryEntry{
		ActionType: models.ActionAssigned,
		EmployeeID: entry.EmployeeID,
		ItemID:     &itemID,
		Quantity:   entry.Quantity,
		Notes:      entry.Notes,
	})
	return entry, nil
}

// RecordInTx inserts a ledger entry using the caller's transaction. Stock must already be reserved.
func (s *AssignmentService) RecordInTx(ctx context.Context, exec sqlx.ExtContext, entry *models.Assignment) error {
	if entry == nil || entry.ItemID == "" || entry.EmployeeID == "" || entry.Quantity < 1 {
		return appErrors.Clone(appErrors.ErrValidation, "assignment requires an item, an employee and a positive quantity")
	}
	if entry.AssignedDate.IsZero() {
		entry.AssignedDate = s.now().UTC()
	}
	entry.Status = models.AssignmentAssigned
	if err := s.store.Create(ctx, exec, entry); err != nil {
		return appErrors.FromStore(err, "failed to record assignment")
	}
	return nil
}

// Return closes an active entry, credits the stock back and records the item's condition.
func (s *AssignmentService) Return(ctx context.Context, id string, req dto.ReturnAssignmentRequest, actor *models.JWTClaims) (*models.Assignment, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "condition must be Good or Damaged")
	}
	entry, err := s.store.FindByID(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, "assignment")
	}
	if !actor.IsAdmin() && entry.EmployeeID != actor.UserID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only the holder or an admin can return this item")
	}
	if entry.Status == models.AssignmentReturned {
		return nil, appErrors.Clone(appErrors.ErrConflict, "assignment already returned")
	}

	condition := models.ItemCondition(req.Condition)
	notes := strings.TrimSpace(req.Notes)
	returnedAt, err := s.returnDate(req.ReturnDate)
	if err != nil {
		return nil, err
	}

	var updated *models.Assignment
	err = s.tx.WithinTx(ctx, func(exec sqlx.ExtContext) error {
		var err error
		updated, err = s.store.MarkReturned(ctx, exec, id, condition, notes, returnedAt)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return appErrors.Clone(appErrors.ErrConflict, "assignment already returned")
			}
			return appErrors.FromStore(err, "failed to close assignment")
		}
		if _, err := s.stock.Release(ctx, exec, entry.ItemID, entry.Quantity); err != nil {
			return err
		}
		specs := map[string]string{
			models.SpecCondition:  string(condition),
			models.SpecReturnedAt: returnedAt.Format(time.RFC3339),
		}
		if err := s.items.MergeSpecifications(ctx, exec, entry.ItemID, specs); err != nil {
			return appErrors.FromStore(err, "failed to record item condition")
		}
		return nil
	})
	if err != nil {
		return nil, appErrors.FromStore(err, "failed to return assignment")
	}
	s.cache.InvalidateItems(ctx, entry.ItemID)
	updated.ItemName = entry.ItemName

	historyNotes := fmt.Sprintf("Returned in %s condition", condition)
	if notes != "" {
		historyNotes += ": " + notes
	}
	itemID := entry.ItemID
	s.history.Append(ctx, models.HistoryEntry{
		ActionType: models.ActionReturned,
		EmployeeID: entry.EmployeeID,
		ItemID:     &itemID,
		Quantity:   entry.Quantity,
		Notes:      historyNotes,
	})
	return updated, nil
}

// returnDate resolves the reported return date; date-only values compare by day.
func (s *AssignmentService) returnDate(raw string) (time.Time, error) {
	now := s.now().UTC()
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return now, nil
	}
	parsed, err := parseHistoryDate(raw, false)
	if err != nil {
		return time.Time{}, err
	}
	limit := now
	if _, dayErr := time.Parse("2006-01-02", raw); dayErr == nil {
		limit = now.Truncate(24 * time.Hour)
	}
	if parsed.After(limit) {
		return time.Time{}, appErrors.Clone(appErrors.ErrValidation, "return date cannot be in the future")
	}
	return parsed.UTC(), nil
}

// ListActiveByEmployee returns the entries an employee currently holds.
func (s *AssignmentService) ListActiveByEmployee(ctx context.Context, employeeID string, actor *models.JWTClaims) ([]models.Assignment, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if employeeID == "" {
		employeeID = actor.UserID
	}
	if !actor.IsAdmin() && employeeID != actor.UserID {
		return nil, appErrors.ErrForbidden
	}
	entries, err := s.store.ListActiveByEmployee(ctx, employeeID)
	if err != nil {
		return nil, appErrors.FromStore(err, "failed to list assignments")
	}
	return entries, nil
}

// CountActiveByItem returns the units of an item currently held.
func (s *AssignmentService) CountActiveByItem(ctx context.Context, itemID string) (int, error) {
	units, err := s.store.SumActiveByItem(ctx, itemID)
	if err != nil {
		return 0, appErrors.FromStore(err, "failed to count assignments")
	}
	return units, nil
}

// List returns ledger entries. Employees only see their own.
func (s *AssignmentService) List(ctx context.Context, query dto.AssignmentQuery, actor *models.JWTClaims) ([]models.Assignment, *models.Pagination, error) {
	if actor == nil {
		return nil, nil, appErrors.ErrUnauthorized
	}
	if err := s.validator.Struct(query); err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid assignment filter")
	}
	filter := models.AssignmentFilter{
		EmployeeID: strings.TrimSpace(query.EmployeeID),
		ItemID:     strings.TrimSpace(query.ItemID),
		Status:     models.AssignmentStatus(query.Status),
		Paging:     models.Paging{Page: query.Page, PageSize: query.PageSize},
	}
	if !actor.IsAdmin() {
		if filter.EmployeeID != "" && filter.EmployeeID != actor.UserID {
			return nil, nil, appErrors.ErrForbidden
		}
		filter.EmployeeID = actor.UserID
	}
	entries, total, err := s.store.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.FromStore(err, "failed to list assignments")
	}
	filter.Normalize()
	return entries, &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}, nil
}
