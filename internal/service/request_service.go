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
	"github.com/noah-isme/asset-inventory-api/internal/repository"
	appErrors "github.com/noah-isme/asset-inventory-api/pkg/errors"
	"github.com/noah-isme/asset-inventory-api/pkg/lock"
)

type requestStore interface {
	Create(ctx context.Context, exec sqlx.ExtContext, request *models.Request) error
	FindByID(ctx context.Context, id string) (*models.Request, error)
	List(ctx context.Context, filter models.RequestFilter) ([]models.Request, int, error)
	Transition(ctx context.Context, exec sqlx.ExtContext, params repository.TransitionParams) (*models.Request, error)
	UpdatePending(ctx context.Context, id, employeeID string, params repository.UpdatePendingParams) (*models.Request, error)
	DeletePending(ctx context.Context, id, employeeID string) error
}

type itemReader interface {
	FindByID(ctx context.Context, id string) (*models.InventoryItem, error)
}

// errGuardMiss marks a guarded update that matched no row; it is resolved after the transaction.
var errGuardMiss = errors.New("request not in expected status")

// RequestService drives the request lifecycle: pending, approved, completed or rejected.
// Every transition is a guarded update so concurrent reviewers cannot both succeed.
type RequestService struct {
	store       requestStore
	items       itemReader
	tx          transactor
	stock       *StockService
	assignments *AssignmentService
	history     *HistoryService
	cache       *CacheService
	locker      *lock.Locker
	metrics     *MetricsService
	validator   *validator.Validate
	logger      *zap.Logger
	now         func() time.Time
}

// RequestServiceParams groups constructor dependencies.
type RequestServiceParams struct {
	Store       requestStore
	Items       itemReader
	Tx          transactor
	Stock       *StockService
	Assignments *AssignmentService
	History     *HistoryService
	Cache       *CacheService
	Locker      *lock.Locker
	Metrics     *MetricsService
	Validator   *validator.Validate
	Logger      *zap.Logger
}

// NewRequestService constructs the lifecycle engine.
func NewRequestService(params RequestServiceParams) *RequestService {
	if params.Validator == nil {
		params.Validator = validator.New()
	}
	if params.Logger == nil {
		params.Logger = zap.NewNop()
	}
	return &RequestService{
		store:       params.Store,
		items:       params.Items,
		tx:          params.Tx,
		stock:       params.Stock,
		assignments: params.Assignments,
		history:     params.History,
		cache:       params.Cache,
		locker:      params.Locker,
		metrics:     params.Metrics,
		validator:   params.Validator,
		logger:      params.Logger,
		now:         time.Now,
	}
}

// Submit files a new pending request. Stock is untouched until approval.
func (s *RequestService) Submit(ctx context.Context, req dto.CreateRequestRequest, actor *models.JWTClaims) (*models.Request, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid request payload")
	}
	notes := strings.TrimSpace(req.Notes)
	if notes == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "notes are required")
	}

	request := &models.Request{
		EmployeeID:   actor.UserID,
		ItemName:     strings.TrimSpace(req.ItemName),
		Quantity:     req.Quantity,
		Status:       models.RequestPending,
		Urgency:      models.UrgencyNormal,
		Notes:        notes,
		Brand:        trimmedOrNil(req.Brand),
		ExpectedDate: req.ExpectedDate,
		CreatedAt:    s.now().UTC(),
	}
	if req.Urgency != "" {
		request.Urgency = models.Urgency(req.Urgency)
	}
	if req.ItemID != nil && *req.ItemID != "" {
		item, err := s.items.FindByID(ctx, *req.ItemID)
		if err != nil {
			return nil, notFoundOr(err, "item")
		}
		itemID := item.ID
		request.ItemID = &itemID
		request.ItemName = item.Name
	}
	if request.ItemID == nil && request.ItemName == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "either itemId or itemName is required")
	}

	if err := s.store.Create(ctx, nil, request); err != nil {
		return nil, appErrors.FromStore(err, "failed to create request")
	}
	s.metrics.RecordTransition(string(models.RequestPending), nil)
	s.history.Append(ctx, models.HistoryEntry{
		ActionType: models.ActionRequested,
		EmployeeID: request.EmployeeID,
		ItemID:     request.ItemID,
		Quantity:   request.Quantity,
		Notes:      request.Notes,
	})
	return request, nil
}

// Approve reserves stock for a pending request. When stock is short the request stays pending.
func (s *RequestService) Approve(ctx context.Context, id string, req dto.ApproveRequestRequest, actor *models.JWTClaims) (*models.Request, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid approval payload")
	}
	release, err := s.acquire(ctx, id)
	if err != nil {
		return nil, err
	}
	defer release()

	current, err := s.store.FindByID(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, "request")
	}
	if current.Status != models.RequestPending {
		return nil, s.conflict(current.Status)
	}

	now := s.now().UTC()
	params := repository.TransitionParams{
		ID:           id,
		From:         models.RequestPending,
		To:           models.RequestApproved,
		ReviewedBy:   &actor.UserID,
		ReviewedAt:   &now,
		AdminComment: trimmedOrNil(&req.AdminComment),
	}
	itemID, err := s.bindItem(ctx, current, req.ItemID, &params)
	if err != nil {
		return nil, err
	}

	var approved *models.Request
	err = s.tx.WithinTx(ctx, func(exec sqlx.ExtContext) error {
		var err error
		approved, err = s.transition(ctx, exec, params)
		if err != nil {
			return err
		}
		_, err = s.stock.Reserve(ctx, exec, itemID, approved.Quantity)
		return err
	})
	s.metrics.RecordTransition(string(models.RequestApproved), err)
	if err != nil {
		return nil, s.resolve(ctx, id, err)
	}
	s.cache.InvalidateItems(ctx, itemID)
	s.history.Append(ctx, models.HistoryEntry{
		ActionType: models.ActionApproved,
		EmployeeID: approved.EmployeeID,
		ItemID:     approved.ItemID,
		Quantity:   approved.Quantity,
		Notes:      reviewNotes("Approved", approved.AdminComment),
	})
	return approved, nil
}

// Reject closes a pending request without touching stock.
func (s *RequestService) Reject(ctx context.Context, id string, req dto.RejectRequestRequest, actor *models.JWTClaims) (*models.Request, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil || strings.TrimSpace(req.RejectReason) == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "reject reason is required")
	}
	release, err := s.acquire(ctx, id)
	if err != nil {
		return nil, err
	}
	defer release()

	now := s.now().UTC()
	reason := strings.TrimSpace(req.RejectReason)
	rejected, err := s.transition(ctx, nil, repository.TransitionParams{
		ID:           id,
		From:         models.RequestPending,
		To:           models.RequestRejected,
		ReviewedBy:   &actor.UserID,
		ReviewedAt:   &now,
		RejectReason: &reason,
		AdminComment: trimmedOrNil(&req.AdminComment),
	})
	s.metrics.RecordTransition(string(models.RequestRejected), err)
	if err != nil {
		return nil, s.resolve(ctx, id, err)
	}
	s.history.Append(ctx, models.HistoryEntry{
		ActionType: models.ActionRejected,
		EmployeeID: rejected.EmployeeID,
		ItemID:     rejected.ItemID,
		Quantity:   rejected.Quantity,
		Notes:      "Rejected: " + reason,
	})
	return rejected, nil
}

// Complete hands reserved units over: the request closes and an active ledger entry is opened.
func (s *RequestService) Complete(ctx context.Context, id string, req dto.CompleteRequestRequest, actor *models.JWTClaims) (*models.Request, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "condition must be Good or Damaged")
	}
	release, err := s.acquire(ctx, id)
	if err != nil {
		return nil, err
	}
	defer release()

	now := s.now().UTC()
	var completed *models.Request
	err = s.tx.WithinTx(ctx, func(exec sqlx.ExtContext) error {
		var err error
		completed, err = s.transition(ctx, exec, repository.TransitionParams{
			ID:          id,
			From:        models.RequestApproved,
			To:          models.RequestCompleted,
			CompletedAt: &now,
		})
		if err != nil {
			return err
		}
		if completed.ItemID == nil {
			return appErrors.Clone(appErrors.ErrInvariantViolation, "approved request has no item bound")
		}
		requestID := completed.ID
		return s.assignments.RecordInTx(ctx, exec, &models.Assignment{
			EmployeeID:   completed.EmployeeID,
			ItemID:       *completed.ItemID,
			RequestID:    &requestID,
			Quantity:     completed.Quantity,
			AssignedDate: now,
			Notes:        handoverNotes(req),
		})
	})
	s.metrics.RecordTransition(string(models.RequestCompleted), err)
	if err != nil {
		return nil, s.resolve(ctx, id, err)
	}
	s.history.Append(ctx, models.HistoryEntry{
		ActionType: models.ActionCompleted,
		EmployeeID: completed.EmployeeID,
		ItemID:     completed.ItemID,
		Quantity:   completed.Quantity,
		Notes:      handoverNotes(req),
	})
	return completed, nil
}

// Update lets the owner amend a request while it is still pending.
func (s *RequestService) Update(ctx context.Context, id string, req dto.UpdateRequestRequest, actor *models.JWTClaims) (*models.Request, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid request payload")
	}
	params := repository.UpdatePendingParams{
		Quantity:     req.Quantity,
		Brand:        req.Brand,
		ExpectedDate: req.ExpectedDate,
	}
	if req.Notes != nil {
		notes := strings.TrimSpace(*req.Notes)
		if notes == "" {
			return nil, appErrors.Clone(appErrors.ErrValidation, "notes cannot be empty")
		}
		params.Notes = &notes
	}
	if req.Urgency != nil {
		urgency := models.Urgency(*req.Urgency)
		params.Urgency = &urgency
	}

	updated, err := s.store.UpdatePending(ctx, id, actor.UserID, params)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, s.ownershipError(ctx, id, actor)
		}
		return nil, appErrors.FromStore(err, "failed to update request")
	}
	return updated, nil
}

// Delete removes a pending request owned by the actor.
func (s *RequestService) Delete(ctx context.Context, id string, actor *models.JWTClaims) error {
	if actor == nil {
		return appErrors.ErrUnauthorized
	}
	if err := s.store.DeletePending(ctx, id, actor.UserID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return s.ownershipError(ctx, id, actor)
		}
		return appErrors.FromStore(err, "failed to delete request")
	}
	return nil
}

// Get returns a request. Employees may only read their own.
func (s *RequestService) Get(ctx context.Context, id string, actor *models.JWTClaims) (*models.Request, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	request, err := s.store.FindByID(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, "request")
	}
	if !actor.IsAdmin() && request.EmployeeID != actor.UserID {
		return nil, appErrors.ErrForbidden
	}
	return request, nil
}

// List returns requests newest first. Employees are scoped to their own.
func (s *RequestService) List(ctx context.Context, query dto.RequestQuery, actor *models.JWTClaims) ([]models.Request, *models.Pagination, error) {
	if actor == nil {
		return nil, nil, appErrors.ErrUnauthorized
	}
	filter := models.RequestFilter{
		EmployeeID: strings.TrimSpace(query.EmployeeID),
		ItemID:     strings.TrimSpace(query.ItemID),
		Paging:     models.Paging{Page: query.Page, PageSize: query.PageSize},
	}
	if !actor.IsAdmin() {
		if filter.EmployeeID != "" && filter.EmployeeID != actor.UserID {
			return nil, nil, appErrors.ErrForbidden
		}
		filter.EmployeeID = actor.UserID
	}
	for _, raw := range query.Status {
		for _, part := range strings.Split(raw, ",") {
			part = strings.ToLower(strings.TrimSpace(part))
			if part == "" {
				continue
			}
			status := models.RequestStatus(part)
			switch status {
			case models.RequestPending, models.RequestApproved, models.RequestRejected, models.RequestCompleted:
				filter.Status = append(filter.Status, status)
			default:
				return nil, nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown status %q", part))
			}
		}
	}
	if query.Urgency != "" {
		urgency := models.Urgency(query.Urgency)
		if !urgency.Valid() {
			return nil, nil, appErrors.Clone(appErrors.ErrValidation, "urgency must be Normal or Urgent")
		}
		filter.Urgency = urgency
	}

	requests, total, err := s.store.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.FromStore(err, "failed to list requests")
	}
	filter.Normalize()
	return requests, &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}, nil
}

func (s *RequestService) transition(ctx context.Context, exec sqlx.ExtContext, params repository.TransitionParams) (*models.Request, error) {
	updated, err := s.store.Transition(ctx, exec, params)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errGuardMiss
		}
		return nil, appErrors.FromStore(err, "failed to update request status")
	}
	return updated, nil
}

// resolve turns a guard miss into NotFound or Conflict by re-reading the row.
func (s *RequestService) resolve(ctx context.Context, id string, err error) error {
	if !errors.Is(err, errGuardMiss) {
		return appErrors.FromStore(err, "failed to update request status")
	}
	current, ferr := s.store.FindByID(ctx, id)
	if ferr != nil {
		return notFoundOr(ferr, "request")
	}
	return s.conflict(current.Status)
}

func (s *RequestService) conflict(status models.RequestStatus) error {
	return appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("request is already %s", status))
}

func (s *RequestService) ownershipError(ctx context.Context, id string, actor *models.JWTClaims) error {
	current, err := s.store.FindByID(ctx, id)
	if err != nil {
		return notFoundOr(err, "request")
	}
	if current.EmployeeID != actor.UserID {
		return appErrors.Clone(appErrors.ErrForbidden, "only the requester can change this request")
	}
	return appErrors.Clone(appErrors.ErrForbidden, fmt.Sprintf("request is %s and can no longer be changed", current.Status))
}

// bindItem resolves the catalog item an approval reserves from, binding one to free-text requests.
func (s *RequestService) bindItem(ctx context.Context, current *models.Request, requested *string, params *repository.TransitionParams) (string, error) {
	if requested == nil || *requested == "" {
		if current.ItemID == nil {
			return "", appErrors.Clone(appErrors.ErrValidation, "select an inventory item before approving this request")
		}
		return *current.ItemID, nil
	}
	if current.ItemID != nil && *current.ItemID != *requested {
		return "", appErrors.Clone(appErrors.ErrValidation, "request is already bound to a different item")
	}
	item, err := s.items.FindByID(ctx, *requested)
	if err != nil {
		return "", notFoundOr(err, "item")
	}
	if current.ItemID == nil {
		itemID, name := item.ID, item.Name
		params.BindItemID = &itemID
		params.BindItemName = &name
	}
	return item.ID, nil
}

func (s *RequestService) acquire(ctx context.Context, id string) (lock.ReleaseFunc, error) {
	release, err := s.locker.Acquire(ctx, s.locker.Key("request", id))
	if errors.Is(err, lock.ErrLocked) {
		s.metrics.RecordLockContention()
		return nil, appErrors.Clone(appErrors.ErrConflict, "request is already being processed")
	}
	return release, err
}

func requireAdmin(actor *models.JWTClaims) error {
	if actor == nil {
		return appErrors.ErrUnauthorized
	}
	if !actor.IsAdmin() {
		return appErrors.ErrForbidden
	}
	return nil
}

func handoverNotes(req dto.CompleteRequestRequest) string {
	condition := models.ConditionGood
	if req.Condition != "" {
		condition = models.ItemCondition(req.Condition)
	}
	notes := fmt.Sprintf("Handed over in %s condition", condition)
	if extra := strings.TrimSpace(req.Notes); extra != "" {
		notes += ": " + extra
	}
	return notes
}

func reviewNotes(prefix string, comment *string) string {
	if comment == nil || *comment == "" {
		return prefix
	}
	return prefix + ": " + *comment
}

func trimmedOrNil(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
