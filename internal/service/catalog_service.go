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
)

const selfAssignNote = "Self-assigned on registration"

type itemStore interface {
	Create(ctx context.Context, exec sqlx.ExtContext, item *models.InventoryItem) error
	FindByID(ctx context.Context, id string) (*models.InventoryItem, error)
	List(ctx context.Context, filter models.ItemFilter) ([]models.InventoryItem, int, error)
	Update(ctx context.Context, exec sqlx.ExtContext, id string, params repository.UpdateItemParams) error
	DeleteUnreferenced(ctx context.Context, id string) error
}

// CatalogService manages inventory items. Quantity changes are delegated to StockService.
type CatalogService struct {
	store       itemStore
	tx          transactor
	stock       *StockService
	assignments *AssignmentService
	history     *HistoryService
	cache       *CacheService
	cacheTTL    time.Duration
	validator   *validator.Validate
	logger      *zap.Logger
}

// CatalogServiceParams groups constructor dependencies.
type CatalogServiceParams struct {
	Store       itemStore
	Tx          transactor
	Stock       *StockService
	Assignments *AssignmentService
	History     *HistoryService
	Cache       *CacheService
	CacheTTL    time.Duration
	Validator   *validator.Validate
	Logger      *zap.Logger
}

// NewCatalogService constructs the catalog service.
func NewCatalogService(params CatalogServiceParams) *CatalogService {
	if params.Validator == nil {
		params.Validator = validator.New()
	}
	if params.Logger == nil {
		params.Logger = zap.NewNop()
	}
	return &CatalogService{
		store:       params.Store,
		tx:          params.Tx,
		stock:       params.Stock,
		assignments: params.Assignments,
		history:     params.History,
		cache:       params.Cache,
		cacheTTL:    params.CacheTTL,
		validator:   params.Validator,
		logger:      params.Logger,
	}
}

// Categories returns the catalog metadata.
func (s *CatalogService) Categories() []models.Category {
	return models.Categories()
}

// Create registers an item. Employees, or admins asking for it, receive the whole quantity at once.
func (s *CatalogService) Create(ctx context.Context, req dto.CreateItemRequest, actor *models.JWTClaims) (*models.InventoryItem, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid item payload")
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "name is required")
	}
	if !models.IsValidCategory(req.Category) {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown category %q", req.Category))
	}

	specs := models.Specifications{}
	for k, v := range req.Specifications {
		specs[k] = strings.TrimSpace(v)
	}
	switch {
	case req.Condition != "":
		specs[models.SpecCondition] = req.Condition
	case specs[models.SpecCondition] == "":
		specs[models.SpecCondition] = string(models.ConditionGood)
	}
	if err := models.ValidateSpecifications(req.Category, specs); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, err.Error())
	}

	creator := actor.UserID
	item := &models.InventoryItem{
		Name:              name,
		Category:          req.Category,
		Description:       strings.TrimSpace(req.Description),
		TotalQuantity:     req.TotalQuantity,
		AvailableQuantity: req.TotalQuantity,
		Specifications:    specs,
		CreatedBy:         &creator,
	}
	selfAssign := req.SelfAssign || !actor.IsAdmin()

	err := s.tx.WithinTx(ctx, func(exec sqlx.ExtContext) error {
		if err := s.store.Create(ctx, exec, item); err != nil {
			return appErrors.FromStore(err, "failed to create item")
		}
		if !selfAssign {
			return nil
		}
		level, err := s.stock.Reserve(ctx, exec, item.ID, item.TotalQuantity)
		if err != nil {
			return err
		}
		item.AvailableQuantity = level.Available
		return s.assignments.RecordInTx(ctx, exec, &models.Assignment{
			EmployeeID: creator,
			ItemID:     item.ID,
			Quantity:   item.TotalQuantity,
			Notes:      selfAssignNote,
		})
	})
	if err != nil {
		return nil, appErrors.FromStore(err, "failed to create item")
	}

	if selfAssign {
		itemID := item.ID
		s.history.Append(ctx, models.HistoryEntry{
			ActionType: models.ActionAssigned,
			EmployeeID: creator,
			ItemID:     &itemID,
			Quantity:   item.TotalQuantity,
			Notes:      selfAssignNote,
		})
	}
	return item, nil
}

// Update patches descriptive fields and, through StockService, the total quantity.
func (s *CatalogService) Update(ctx context.Context, id string, req dto.UpdateItemRequest, actor *models.JWTClaims) (*models.InventoryItem, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid item payload")
	}
	current, err := s.store.FindByID(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, "item")
	}

	params := repository.UpdateItemParams{Description: req.Description}
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return nil, appErrors.Clone(appErrors.ErrValidation, "name cannot be empty")
		}
		params.Name = &name
	}
	category := current.Category
	if req.Category != nil {
		if !models.IsValidCategory(*req.Category) {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown category %q", *req.Category))
		}
		category = *req.Category
		params.Category = req.Category
	}
	if req.Specifications != nil || category != current.Category {
		specs := mergeManagedSpecs(current.Specifications, req.Specifications)
		if err := models.ValidateSpecifications(category, specs); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, err.Error())
		}
		params.Specifications = specs
	}

	err = s.tx.WithinTx(ctx, func(exec sqlx.ExtContext) error {
		if err := s.store.Update(ctx, exec, id, params); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return appErrors.Clone(appErrors.ErrNotFound, "item not found")
			}
			return appErrors.FromStore(err, "failed to update item")
		}
		// current was read outside the tx; Resize re-checks the guard on every request.
		if req.TotalQuantity != nil {
			if _, err := s.stock.Resize(ctx, exec, id, *req.TotalQuantity); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, appErrors.FromStore(err, "failed to update item")
	}
	s.cache.InvalidateItems(ctx, id)
	return s.Get(ctx, id)
}

// Delete removes an item that nobody holds and no approved request has reserved.
func (s *CatalogService) Delete(ctx context.Context, id string, actor *models.JWTClaims) error {
	if err := requireAdmin(actor); err != nil {
		return err
	}
	if err := s.store.DeleteUnreferenced(ctx, id); err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			return appErrors.FromStore(err, "failed to delete item")
		}
		if _, ferr := s.store.FindByID(ctx, id); ferr != nil {
			return notFoundOr(ferr, "item")
		}
		return appErrors.Clone(appErrors.ErrConflict, "item is assigned or reserved by an approved request")
	}
	s.cache.InvalidateItems(ctx, id)
	return nil
}

// Get returns one item.
func (s *CatalogService) Get(ctx context.Context, id string) (*models.InventoryItem, error) {
	item, err := s.store.FindByID(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, "item")
	}
	return item, nil
}

// GetAvailability returns the stock snapshot, served from cache when possible.
func (s *CatalogService) GetAvailability(ctx context.Context, id string) (*models.Availability, bool, error) {
	key := AvailabilityCacheKey(id)
	var cached models.Availability
	if hit, _ := s.cache.Get(ctx, key, &cached); hit {
		return &cached, true, nil
	}
	level, err := s.stock.Level(ctx, id)
	if err != nil {
		return nil, false, err
	}
	availability := &models.Availability{
		ItemID:    id,
		Total:     level.Total,
		Available: level.Available,
		Status:    models.InventoryItem{AvailableQuantity: level.Available}.Status(),
	}
	_ = s.cache.Set(ctx, key, availability, s.cacheTTL)
	return availability, false, nil
}

// List returns a page of items matching the query.
func (s *CatalogService) List(ctx context.Context, query dto.ItemQuery) ([]models.InventoryItem, *models.Pagination, error) {
	filter, err := itemFilterFromQuery(query)
	if err != nil {
		return nil, nil, err
	}
	items, total, err := s.store.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.FromStore(err, "failed to list items")
	}
	filter.Normalize()
	return items, &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}, nil
}

// Iterate walks every item matching the query page by page.
func (s *CatalogService) Iterate(ctx context.Context, query dto.ItemQuery, fn func(models.InventoryItem) error) error {
	filter, err := itemFilterFromQuery(query)
	if err != nil {
		return err
	}
	filter.Page, filter.PageSize = 1, models.MaxPageSize
	for {
		items, total, err := s.store.List(ctx, filter)
		if err != nil {
			return appErrors.FromStore(err, "failed to list items")
		}
		for _, item := range items {
			if err := fn(item); err != nil {
				return err
			}
		}
		if len(items) == 0 || filter.Page*filter.PageSize >= total {
			return nil
		}
		filter.Page++
	}
}

func itemFilterFromQuery(query dto.ItemQuery) (models.ItemFilter, error) {
	filter := models.ItemFilter{
		Category: strings.TrimSpace(query.Category),
		Search:   strings.TrimSpace(query.Search),
		Paging:   models.Paging{Page: query.Page, PageSize: query.PageSize},
	}
	if filter.Category != "" && !models.IsValidCategory(filter.Category) {
		return models.ItemFilter{}, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown category %q", filter.Category))
	}
	if raw := strings.TrimSpace(query.Status); raw != "" {
		matched := false
		for _, status := range []models.StockStatus{models.StockUnassigned, models.StockAssigned, models.StockPartiallyAssigned} {
			if strings.EqualFold(raw, string(status)) {
				filter.Status, matched = status, true
			}
		}
		if !matched {
			return models.ItemFilter{}, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown status %q", raw))
		}
	}
	if raw := strings.TrimSpace(query.Condition); raw != "" {
		condition := models.ItemCondition(raw)
		if !condition.Valid() {
			return models.ItemFilter{}, appErrors.Clone(appErrors.ErrValidation, "condition must be Good or Damaged")
		}
		filter.Condition = condition
	}
	return filter, nil
}

// mergeManagedSpecs applies client specifications while keeping the keys the service maintains.
func mergeManagedSpecs(current models.Specifications, incoming map[string]string) models.Specifications {
	if incoming == nil {
		out := make(models.Specifications, len(current))
		for k, v := range current {
			out[k] = v
		}
		return out
	}
	out := make(models.Specifications, len(incoming)+2)
	for k, v := range incoming {
		out[k] = strings.TrimSpace(v)
	}
	for _, key := range []string{models.SpecCondition, models.SpecReturnedAt} {
		if _, ok := out[key]; !ok {
			if v, ok := current[key]; ok {
				out[key] = v
			}
		}
	}
	return out
}
