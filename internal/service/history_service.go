package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/asset-inventory-api/internal/dto"
	"github.com/noah-isme/asset-inventory-api/internal/models"
	appErrors "github.com/noah-isme/asset-inventory-api/pkg/errors"
	"github.com/noah-isme/asset-inventory-api/pkg/jobs"
)

const historyRetryJob = "history.append"

type historyStore interface {
	Create(ctx context.Context, entry *models.HistoryEntry) error
	List(ctx context.Context, filter models.HistoryFilter) ([]models.HistoryEntry, int, error)
}

type historyRetrier interface {
	Enqueue(job jobs.Job) error
	Pending() int
}

// HistoryService appends and reads the audit trail. Appends never fail the
// operation they describe: a failed insert is logged, counted and retried.
type HistoryService struct {
	store   historyStore
	metrics *MetricsService
	logger  *zap.Logger
	retry   historyRetrier
	now     func() time.Time
}

// NewHistoryService constructs the service.
func NewHistoryService(store historyStore, metrics *MetricsService, logger *zap.Logger) *HistoryService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HistoryService{
		store:   store,
		metrics: metrics,
		logger:  logger,
		now:     time.Now,
	}
}

// NewRetryQueue builds the queue that replays failed appends and attaches it to the service.
// The caller owns Start and Stop.
func (s *HistoryService) NewRetryQueue(cfg jobs.QueueConfig) *jobs.Queue {
	if cfg.Logger == nil {
		cfg.Logger = s.logger
	}
	cfg.OnDrop = func(job jobs.Job, err error) {
		s.metrics.RecordHistoryDropped()
		fields := []zap.Field{zap.String("job_id", job.ID), zap.Int("attempt", job.Attempt), zap.Error(err)}
		if entry, ok := job.Payload.(models.HistoryEntry); ok {
			fields = append(fields, zap.String("action", string(entry.ActionType)), zap.String("employee_id", entry.EmployeeID))
		}
		s.logger.Error("history entry dropped", fields...)
	}
	queue := jobs.NewQueue("history-retry", s.replay, cfg)
	s.retry = queue
	return queue
}

func (s *HistoryService) replay(ctx context.Context, job jobs.Job) error {
	entry, ok := job.Payload.(models.HistoryEntry)
	if !ok {
		return fmt.Errorf("unexpected payload %T", job.Payload)
	}
	err := s.store.Create(ctx, &entry)
	if s.retry != nil {
		s.metrics.SetHistoryQueueSize(s.retry.Pending())
	}
	return err
}

// Append records entry. The returned entry carries the generated id and timestamp.
func (s *HistoryService) Append(ctx context.Context, entry models.HistoryEntry) models.HistoryEntry {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = s.now().UTC()
	}
	// The transition has already committed; a cancelled caller must not lose its audit row.
	ctx = context.WithoutCancel(ctx)

	err := s.store.Create(ctx, &entry)
	if err == nil {
		return entry
	}

	s.metrics.RecordHistoryFailure()
	s.logger.Warn("history append failed",
		zap.String("history_id", entry.ID),
		zap.String("action", string(entry.ActionType)),
		zap.String("employee_id", entry.EmployeeID),
		zap.Error(err),
	)
	if s.retry == nil {
		s.metrics.RecordHistoryDropped()
		return entry
	}
	job := jobs.Job{ID: entry.ID, Type: historyRetryJob, Payload: entry}
	if qerr := s.retry.Enqueue(job); qerr != nil {
		s.metrics.RecordHistoryDropped()
		s.logger.Error("history retry enqueue failed", zap.String("history_id", entry.ID), zap.Error(qerr))
		return entry
	}
	s.metrics.SetHistoryQueueSize(s.retry.Pending())
	return entry
}

// List returns history newest first. Employees only ever see their own entries.
func (s *HistoryService) List(ctx context.Context, query dto.HistoryQuery, actor *models.JWTClaims) ([]models.HistoryEntry, *models.Pagination, error) {
	if actor == nil {
		return nil, nil, appErrors.ErrUnauthorized
	}
	filter, err := s.Filter(query, actor)
	if err != nil {
		return nil, nil, err
	}
	entries, total, err := s.store.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.FromStore(err, "failed to list history")
	}
	filter.Normalize()
	return entries, &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}, nil
}

// Filter turns a query into a filter, scoping employees to themselves.
func (s *HistoryService) Filter(query dto.HistoryQuery, actor *models.JWTClaims) (models.HistoryFilter, error) {
	filter := models.HistoryFilter{
		EmployeeID: strings.TrimSpace(query.EmployeeID),
		ItemID:     strings.TrimSpace(query.ItemID),
		Paging:     models.Paging{Page: query.Page, PageSize: query.PageSize},
	}
	if actor != nil && !actor.IsAdmin() {
		if filter.EmployeeID != "" && filter.EmployeeID != actor.UserID {
			return models.HistoryFilter{}, appErrors.Clone(appErrors.ErrForbidden, "employees can only view their own history")
		}
		filter.EmployeeID = actor.UserID
	}
	for _, raw := range query.ActionTypes {
		for _, part := range strings.Split(raw, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			action := models.HistoryAction(strings.ToLower(part))
			if !action.Valid() {
				return models.HistoryFilter{}, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown action type %q", part))
			}
			filter.ActionTypes = append(filter.ActionTypes, action)
		}
	}
	from, err := parseHistoryDate(query.From, false)
	if err != nil {
		return models.HistoryFilter{}, err
	}
	to, err := parseHistoryDate(query.To, true)
	if err != nil {
		return models.HistoryFilter{}, err
	}
	if from != nil && to != nil && from.After(*to) {
		return models.HistoryFilter{}, appErrors.Clone(appErrors.ErrValidation, "from must not be after to")
	}
	filter.From, filter.To = from, to
	return filter, nil
}

// Iterate walks every entry matching filter page by page, stopping at the first error from fn.
func (s *HistoryService) Iterate(ctx context.Context, filter models.HistoryFilter, fn func(models.HistoryEntry) error) error {
	filter.Page = 1
	filter.PageSize = models.MaxPageSize
	for {
		entries, total, err := s.store.List(ctx, filter)
		if err != nil {
			return appErrors.FromStore(err, "failed to list history")
		}
		for _, entry := range entries {
			if err := fn(entry); err != nil {
				return err
			}
		}
		if len(entries) == 0 || filter.Page*filter.PageSize >= total {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return appErrors.FromStore(err, "history iteration interrupted")
		}
		filter.Page++
	}
}

// parseHistoryDate accepts RFC3339 or a plain date. A plain upper bound covers the whole day.
func parseHistoryDate(raw string, endOfDay bool) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		t = t.UTC()
		return &t, nil
	}
	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("invalid date %q", raw))
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return &t, nil
}
