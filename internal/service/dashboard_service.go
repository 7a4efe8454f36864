package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/asset-inventory-api/internal/models"
	"github.com/noah-isme/asset-inventory-api/internal/repository"
	appErrors "github.com/noah-isme/asset-inventory-api/pkg/errors"
)

type catalogTotals interface {
	Totals(ctx context.Context) (repository.StockTotals, error)
	CountByCategory(ctx context.Context) (map[string]int, error)
}

type requestCounter interface {
	CountByStatus(ctx context.Context, employeeID string) (map[models.RequestStatus]int, error)
}

type assignmentCounter interface {
	CountActive(ctx context.Context, employeeID string) (int, error)
}

type historyLister interface {
	List(ctx context.Context, filter models.HistoryFilter) ([]models.HistoryEntry, int, error)
}

// DashboardServiceConfig tunes dashboard behaviour.
type DashboardServiceConfig struct {
	CacheTTL           time.Duration
	RecentHistoryLimit int
}

// DashboardService composes the landing page summary.
type DashboardService struct {
	items       catalogTotals
	requests    requestCounter
	assignments assignmentCounter
	history     historyLister
	cache       *CacheService
	logger      *zap.Logger
	cfg         DashboardServiceConfig
}

// DashboardServiceParams groups constructor dependencies.
type DashboardServiceParams struct {
	Items       catalogTotals
	Requests    requestCounter
	Assignments assignmentCounter
	History     historyLister
	Cache       *CacheService
	Logger      *zap.Logger
	Config      DashboardServiceConfig
}

// NewDashboardService constructs a DashboardService with sane defaults.
func NewDashboardService(params DashboardServiceParams) *DashboardService {
	cfg := params.Config
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 15 * time.Second
	}
	if cfg.RecentHistoryLimit <= 0 {
		cfg.RecentHistoryLimit = 10
	}
	logger := params.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DashboardService{
		items:       params.Items,
		requests:    params.Requests,
		assignments: params.Assignments,
		history:     params.History,
		cache:       params.Cache,
		logger:      logger,
		cfg:         cfg,
	}
}

// Summary returns catalog counters plus request, assignment and history figures.
// Employees see their own requests, assignments and history; admins see everything.
func (s *DashboardService) Summary(ctx context.Context, actor *models.JWTClaims) (*models.DashboardSummary, bool, error) {
	if actor == nil {
		return nil, false, appErrors.ErrUnauthorized
	}
	scope := ""
	if !actor.IsAdmin() {
		scope = actor.UserID
	}
	cacheKey := fmt.Sprintf("dash:inventory:%s", scope)
	if scope == "" {
		cacheKey = "dash:inventory:all"
	}

	var cached models.DashboardSummary
	if hit, _ := s.cache.Get(ctx, cacheKey, &cached); hit {
		return &cached, true, nil
	}

	summary, err := s.compose(ctx, scope)
	if err != nil {
		return nil, false, err
	}
	if err := s.cache.Set(ctx, cacheKey, summary, s.cfg.CacheTTL); err != nil {
		s.logger.Warn("dashboard cache write failed", zap.String("key", cacheKey), zap.Error(err))
	}
	return summary, false, nil
}

func (s *DashboardService) compose(ctx context.Context, employeeID string) (*models.DashboardSummary, error) {
	totals, err := s.items.Totals(ctx)
	if err != nil {
		return nil, appErrors.FromStore(err, "failed to load catalog totals")
	}
	summary := &models.DashboardSummary{
		TotalItems:         totals.Items,
		TotalUnits:         totals.Units,
		AvailableUnits:     totals.Available,
		AssignedUnits:      totals.Units - totals.Available,
		ScopedToEmployeeID: employeeID,
	}

	if employeeID == "" {
		byCategory, err := s.items.CountByCategory(ctx)
		if err != nil {
			return nil, appErrors.FromStore(err, "failed to count items by category")
		}
		summary.ItemsByCategory = byCategory
	}

	counts, err := s.requests.CountByStatus(ctx, employeeID)
	if err != nil {
		return nil, appErrors.FromStore(err, "failed to count requests")
	}
	summary.PendingRequests = counts[models.RequestPending]
	summary.ApprovedRequests = counts[models.RequestApproved]

	active, err := s.assignments.CountActive(ctx, employeeID)
	if err != nil {
		return nil, appErrors.FromStore(err, "failed to count assignments")
	}
	summary.ActiveAssignments = active

	recent, _, err := s.history.List(ctx, models.HistoryFilter{
		EmployeeID: employeeID,
		Paging:     models.Paging{Page: 1, PageSize: s.cfg.RecentHistoryLimit},
	})
	if err != nil {
		return nil, appErrors.FromStore(err, "failed to load recent history")
	}
	if recent == nil {
		recent = []models.HistoryEntry{}
	}
	summary.RecentHistory = recent
	return summary, nil
}
