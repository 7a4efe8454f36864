package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/asset-inventory-api/internal/models"
	"github.com/noah-isme/asset-inventory-api/internal/repository"
)

// memStore mimics the database: one mutex stands in for row locks and a
// transaction restores its snapshot when the unit of work fails.
type memStore struct {
	mu           sync.Mutex
	items        map[string]*models.InventoryItem
	requests     map[string]*models.Request
	assignments  map[string]*models.Assignment
	history      []models.HistoryEntry
	historyFails int
}

// memTx marks calls made inside WithinTx, where the mutex is already held.
type memTx struct{ sqlx.ExtContext }

func newMemStore() *memStore {
	return &memStore{
		items:       map[string]*models.InventoryItem{},
		requests:    map[string]*models.Request{},
		assignments: map[string]*models.Assignment{},
	}
}

func (m *memStore) hold(exec sqlx.ExtContext) func() {
	if exec != nil {
		return func() {}
	}
	m.mu.Lock()
	return m.mu.Unlock
}

func (m *memStore) WithinTx(ctx context.Context, fn func(exec sqlx.ExtContext) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	items, requests, assignments := m.snapshot()
	if err := fn(memTx{}); err != nil {
		m.items, m.requests, m.assignments = items, requests, assignments
		return err
	}
	return nil
}

func (m *memStore) snapshot() (map[string]*models.InventoryItem, map[string]*models.Request, map[string]*models.Assignment) {
	items := make(map[string]*models.InventoryItem, len(m.items))
	for k, v := range m.items {
		items[k] = copyItem(v)
	}
	requests := make(map[string]*models.Request, len(m.requests))
	for k, v := range m.requests {
		cp := *v
		requests[k] = &cp
	}
	assignments := make(map[string]*models.Assignment, len(m.assignments))
	for k, v := range m.assignments {
		cp := *v
		assignments[k] = &cp
	}
	return items, requests, assignments
}

func copyItem(item *models.InventoryItem) *models.InventoryItem {
	cp := *item
	cp.Specifications = models.Specifications{}
	for k, v := range item.Specifications {
		cp.Specifications[k] = v
	}
	return &cp
}

func (m *memStore) seedItem(t *testing.T, name string, total, available int) string {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	id := uuid.NewString()
	m.items[id] = &models.InventoryItem{
		ID:                id,
		Name:              name,
		Category:          "Laptop",
		TotalQuantity:     total,
		AvailableQuantity: available,
		Specifications:    models.Specifications{models.SpecCondition: string(models.ConditionGood)},
		CreatedAt:         time.Now().UTC(),
	}
	return id
}

func (m *memStore) level(id string) repository.StockLevel {
	m.mu.Lock()
	defer m.mu.Unlock()
	item := m.items[id]
	return repository.StockLevel{Total: item.TotalQuantity, Available: item.AvailableQuantity}
}

func (m *memStore) actions() []models.HistoryAction {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.HistoryAction, len(m.history))
	for i, h := range m.history {
		out[i] = h.ActionType
	}
	return out
}

func (m *memStore) checkInvariant(t *testing.T) {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, item := range m.items {
		if item.AvailableQuantity < 0 || item.AvailableQuantity > item.TotalQuantity {
			t.Fatalf("item %s violates 0 <= %d <= %d", id, item.AvailableQuantity, item.TotalQuantity)
		}
	}
}

func noRows(op string) error {
	return fmt.Errorf("%s: %w", op, sql.ErrNoRows)
}

type memStock struct{ *memStore }

func (s memStock) Level(ctx context.Context, exec sqlx.ExtContext, itemID string) (repository.StockLevel, error) {
	defer s.hold(exec)()
	item, ok := s.items[itemID]
	if !ok {
		return repository.StockLevel{}, sql.ErrNoRows
	}
	return repository.StockLevel{Total: item.TotalQuantity, Available: item.AvailableQuantity}, nil
}

func (s memStock) Reserve(ctx context.Context, exec sqlx.ExtContext, itemID string, qty int) (repository.StockLevel, error) {
	defer s.hold(exec)()
	item, ok := s.items[itemID]
	if !ok || item.AvailableQuantity < qty {
		return repository.StockLevel{}, noRows("reserve stock")
	}
	item.AvailableQuantity -= qty
	return repository.StockLevel{Total: item.TotalQuantity, Available: item.AvailableQuantity}, nil
}

func (s memStock) Release(ctx context.Context, exec sqlx.ExtContext, itemID string, qty int) (repository.StockRelease, error) {
	defer s.hold(exec)()
	item, ok := s.items[itemID]
	if !ok {
		return repository.StockRelease{}, noRows("release stock")
	}
	next := item.AvailableQuantity + qty
	clamped := next > item.TotalQuantity
	if clamped {
		next = item.TotalQuantity
	}
	item.AvailableQuantity = next
	return repository.StockRelease{StockLevel: repository.StockLevel{Total: item.TotalQuantity, Available: next}, Clamped: clamped}, nil
}

func (s memStock) Resize(ctx context.Context, exec sqlx.ExtContext, itemID string, newTotal int) (repository.StockLevel, error) {
	defer s.hold(exec)()
	item, ok := s.items[itemID]
	if !ok || newTotal < item.TotalQuantity-item.AvailableQuantity {
		return repository.StockLevel{}, noRows("resize stock")
	}
	item.AvailableQuantity += newTotal - item.TotalQuantity
	item.TotalQuantity = newTotal
	return repository.StockLevel{Total: item.TotalQuantity, Available: item.AvailableQuantity}, nil
}

type memItems struct{ *memStore }

func (s memItems) Create(ctx context.Context, exec sqlx.ExtContext, item *models.InventoryItem) error {
	defer s.hold(exec)()
	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	item.CreatedAt = time.Now().UTC()
	item.UpdatedAt = item.CreatedAt
	s.items[item.ID] = copyItem(item)
	return nil
}

func (s memItems) FindByID(ctx context.Context, id string) (*models.InventoryItem, error) {
	defer s.hold(nil)()
	item, ok := s.items[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return copyItem(item), nil
}

func (s memItems) List(ctx context.Context, filter models.ItemFilter) ([]models.InventoryItem, int, error) {
	defer s.hold(nil)()
	matched := make([]models.InventoryItem, 0, len(s.items))
	for _, item := range s.items {
		if filter.Category != "" && item.Category != filter.Category {
			continue
		}
		if filter.Status == models.StockPartiallyAssigned {
			continue
		}
		if filter.Status != "" && item.Status() != filter.Status {
			continue
		}
		matched = append(matched, *copyItem(item))
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].Name < matched[j].Name })
	return page(matched, filter.Paging), len(matched), nil
}

func (s memItems) Update(ctx context.Context, exec sqlx.ExtContext, id string, params repository.UpdateItemParams) error {
	defer s.hold(exec)()
	item, ok := s.items[id]
	if !ok {
		return noRows("update item")
	}
	if params.Name != nil {
		item.Name = *params.Name
	}
	if params.Category != nil {
		item.Category = *params.Category
	}
	if params.Description != nil {
		item.Description = *params.Description
	}
	if params.Specifications != nil {
		item.Specifications = params.Specifications
	}
	return nil
}

func (s memItems) MergeSpecifications(ctx context.Context, exec sqlx.ExtContext, id string, values map[string]string) error {
	defer s.hold(exec)()
	item, ok := s.items[id]
	if !ok {
		return noRows("merge item specifications")
	}
	for k, v := range values {
		item.Specifications[k] = v
	}
	return nil
}

func (s memItems) DeleteUnreferenced(ctx context.Context, id string) error {
	defer s.hold(nil)()
	if _, ok := s.items[id]; !ok {
		return noRows("delete item")
	}
	for _, a := range s.assignments {
		if a.ItemID == id && a.Status == models.AssignmentAssigned {
			return noRows("delete item")
		}
	}
	for _, r := range s.requests {
		if r.ItemID != nil && *r.ItemID == id && r.Status == models.RequestApproved {
			return noRows("delete item")
		}
	}
	delete(s.items, id)
	return nil
}

func (s memItems) Totals(ctx context.Context) (repository.StockTotals, error) {
	defer s.hold(nil)()
	var totals repository.StockTotals
	for _, item := range s.items {
		totals.Items++
		totals.Units += item.TotalQuantity
		totals.Available += item.AvailableQuantity
	}
	return totals, nil
}

func (s memItems) CountByCategory(ctx context.Context) (map[string]int, error) {
	defer s.hold(nil)()
	out := map[string]int{}
	for _, item := range s.items {
		out[item.Category]++
	}
	return out, nil
}

type memRequests struct{ *memStore }

func (s memRequests) Create(ctx context.Context, exec sqlx.ExtContext, request *models.Request) error {
	defer s.hold(exec)()
	if request.ID == "" {
		request.ID = uuid.NewString()
	}
	cp := *request
	s.requests[request.ID] = &cp
	return nil
}

func (s memRequests) FindByID(ctx context.Context, id string) (*models.Request, error) {
	defer s.hold(nil)()
	request, ok := s.requests[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	cp := *request
	return &cp, nil
}

func (s memRequests) List(ctx context.Context, filter models.RequestFilter) ([]models.Request, int, error) {
	defer s.hold(nil)()
	matched := []models.Request{}
	for _, request := range s.requests {
		if filter.EmployeeID != "" && request.EmployeeID != filter.EmployeeID {
			continue
		}
		if len(filter.Status) > 0 && !containsStatus(filter.Status, request.Status) {
			continue
		}
		matched = append(matched, *request)
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].CreatedAt.After(matched[j].CreatedAt) })
	return page(matched, filter.Paging), len(matched), nil
}

func containsStatus(list []models.RequestStatus, status models.RequestStatus) bool {
	for _, s := range list {
		if s == status {
			return true
		}
	}
	return false
}

func (s memRequests) Transition(ctx context.Context, exec sqlx.ExtContext, params repository.TransitionParams) (*models.Request, error) {
	defer s.hold(exec)()
	request, ok := s.requests[params.ID]
	if !ok || request.Status != params.From {
		return nil, noRows("transition request")
	}
	request.Status = params.To
	if params.ReviewedBy != nil {
		request.ReviewedBy = params.ReviewedBy
	}
	if params.ReviewedAt != nil {
		request.ReviewedAt = params.ReviewedAt
	}
	if params.AdminComment != nil {
		request.AdminComment = params.AdminComment
	}
	if params.RejectReason != nil {
		request.RejectReason = params.RejectReason
	}
	if params.CompletedAt != nil {
		request.CompletedAt = params.CompletedAt
	}
	if params.BindItemID != nil {
		request.ItemID = params.BindItemID
	}
	if params.BindItemName != nil {
		request.ItemName = *params.BindItemName
	}
	cp := *request
	return &cp, nil
}

func (s memRequests) UpdatePending(ctx context.Context, id, employeeID string, params repository.UpdatePendingParams) (*models.Request, error) {
	defer s.hold(nil)()
	request, ok := s.requests[id]
	if !ok || request.EmployeeID != employeeID || request.Status != models.RequestPending {
		return nil, noRows("update pending request")
	}
	if params.Quantity != nil {
		request.Quantity = *params.Quantity
	}
	if params.Notes != nil {
		request.Notes = *params.Notes
	}
	if params.Urgency != nil {
		request.Urgency = *params.Urgency
	}
	cp := *request
	return &cp, nil
}

func (s memRequests) DeletePending(ctx context.Context, id, employeeID string) error {
	defer s.hold(nil)()
	request, ok := s.requests[id]
	if !ok || request.EmployeeID != employeeID || request.Status != models.RequestPending {
		return noRows("delete pending request")
	}
	delete(s.requests, id)
	return nil
}

func (s memRequests) CountByStatus(ctx context.Context, employeeID string) (map[models.RequestStatus]int, error) {
	defer s.hold(nil)()
	out := map[models.RequestStatus]int{}
	for _, request := range s.requests {
		if employeeID == "" || request.EmployeeID == employeeID {
			out[request.Status]++
		}
	}
	return out, nil
}

type memAssignments struct{ *memStore }

func (s memAssignments) Create(ctx context.Context, exec sqlx.ExtContext, entry *models.Assignment) error {
	defer s.hold(exec)()
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	cp := *entry
	s.assignments[entry.ID] = &cp
	return nil
}

func (s memAssignments) FindByID(ctx context.Context, id string) (*models.Assignment, error) {
	defer s.hold(nil)()
	entry, ok := s.assignments[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	cp := *entry
	cp.ItemName = models.DeletedItemName
	if item, ok := s.items[entry.ItemID]; ok {
		cp.ItemName = item.Name
	}
	return &cp, nil
}

func (s memAssignments) MarkReturned(ctx context.Context, exec sqlx.ExtContext, id string, condition models.ItemCondition, notes string, at time.Time) (*models.Assignment, error) {
	defer s.hold(exec)()
	entry, ok := s.assignments[id]
	if !ok || entry.Status != models.AssignmentAssigned {
		return nil, noRows("mark assignment returned")
	}
	entry.Status = models.AssignmentReturned
	entry.ReturnedAt = &at
	entry.ReturnCondition = &condition
	if notes != "" {
		entry.Notes = notes
	}
	cp := *entry
	return &cp, nil
}

func (s memAssignments) List(ctx context.Context, filter models.AssignmentFilter) ([]models.Assignment, int, error) {
	defer s.hold(nil)()
	matched := []models.Assignment{}
	for _, entry := range s.assignments {
		if filter.EmployeeID != "" && entry.EmployeeID != filter.EmployeeID {
			continue
		}
		if filter.Status != "" && entry.Status != filter.Status {
			continue
		}
		matched = append(matched, *entry)
	}
	return page(matched, filter.Paging), len(matched), nil
}

func (s memAssignments) ListActiveByEmployee(ctx context.Context, employeeID string) ([]models.Assignment, error) {
	defer s.hold(nil)()
	out := []models.Assignment{}
	for _, entry := range s.assignments {
		if entry.EmployeeID == employeeID && entry.Status == models.AssignmentAssigned {
			out = append(out, *entry)
		}
	}
	return out, nil
}

func (s memAssignments) SumActiveByItem(ctx context.Context, itemID string) (int, error) {
	defer s.hold(nil)()
	units := 0
	for _, entry := range s.assignments {
		if entry.ItemID == itemID && entry.Status == models.AssignmentAssigned {
			units += entry.Quantity
		}
	}
	return units, nil
}

func (s memAssignments) CountActive(ctx context.Context, employeeID string) (int, error) {
	defer s.hold(nil)()
	count := 0
	for _, entry := range s.assignments {
		if entry.Status == models.AssignmentAssigned && (employeeID == "" || entry.EmployeeID == employeeID) {
			count++
		}
	}
	return count, nil
}

type memHistory struct{ *memStore }

func (s memHistory) Create(ctx context.Context, entry *models.HistoryEntry) error {
	defer s.hold(nil)()
	if s.historyFails > 0 {
		s.historyFails--
		return errors.New("connection reset by peer")
	}
	for _, existing := range s.history {
		if existing.ID == entry.ID {
			return nil
		}
	}
	s.history = append(s.history, *entry)
	return nil
}

func (s memHistory) List(ctx context.Context, filter models.HistoryFilter) ([]models.HistoryEntry, int, error) {
	defer s.hold(nil)()
	matched := []models.HistoryEntry{}
	for i := len(s.history) - 1; i >= 0; i-- {
		entry := s.history[i]
		if filter.EmployeeID != "" && entry.EmployeeID != filter.EmployeeID {
			continue
		}
		if len(filter.ActionTypes) > 0 && !containsAction(filter.ActionTypes, entry.ActionType) {
			continue
		}
		matched = append(matched, entry)
	}
	return page(matched, filter.Paging), len(matched), nil
}

func containsAction(list []models.HistoryAction, action models.HistoryAction) bool {
	for _, a := range list {
		if a == action {
			return true
		}
	}
	return false
}

func page[T any](rows []T, paging models.Paging) []T {
	paging.Normalize()
	start := paging.Offset()
	if start >= len(rows) {
		return []T{}
	}
	end := start + paging.PageSize
	if end > len(rows) {
		end = len(rows)
	}
	return rows[start:end]
}

// testEnv wires every service against one memStore.
type testEnv struct {
	store       *memStore
	metrics     *MetricsService
	cache       *CacheService
	stock       *StockService
	history     *HistoryService
	assignments *AssignmentService
	requests    *RequestService
	catalog     *CatalogService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	return newTestEnvWithCache(t, nil)
}

func newTestEnvWithCache(t *testing.T, cache *CacheService) *testEnv {
	t.Helper()
	store := newMemStore()
	metrics := NewMetricsService()
	stock := NewStockService(memStock{store}, metrics, nil)
	history := NewHistoryService(memHistory{store}, metrics, nil)
	assignments := NewAssignmentService(memAssignments{store}, memItems{store}, store, stock, history, cache, nil, nil)
	requests := NewRequestService(RequestServiceParams{
		Store:       memRequests{store},
		Items:       memItems{store},
		Tx:          store,
		Stock:       stock,
		Assignments: assignments,
		History:     history,
		Cache:       cache,
		Metrics:     metrics,
	})
	catalog := NewCatalogService(CatalogServiceParams{
		Store:       memItems{store},
		Tx:          store,
		Stock:       stock,
		Assignments: assignments,
		History:     history,
		Cache:       cache,
	})
	return &testEnv{
		store:       store,
		metrics:     metrics,
		cache:       cache,
		stock:       stock,
		history:     history,
		assignments: assignments,
		requests:    requests,
		catalog:     catalog,
	}
}

var adminActor = &models.JWTClaims{UserID: "admin-1", Role: models.RoleAdmin}

func employeeActor(id string) *models.JWTClaims {
	return &models.JWTClaims{UserID: id, Role: models.RoleEmployee}
}

func strPtr(v string) *string { return &v }
