package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/asset-inventory-api/internal/repository"
	appErrors "github.com/noah-isme/asset-inventory-api/pkg/errors"
)

// transactor runs a unit of work inside one database transaction.
type transactor interface {
	WithinTx(ctx context.Context, fn func(exec sqlx.ExtContext) error) error
}

type stockStore interface {
	Level(ctx context.Context, exec sqlx.ExtContext, itemID string) (repository.StockLevel, error)
	Reserve(ctx context.Context, exec sqlx.ExtContext, itemID string, qty int) (repository.StockLevel, error)
	Release(ctx context.Context, exec sqlx.ExtContext, itemID string, qty int) (repository.StockRelease, error)
	Resize(ctx context.Context, exec sqlx.ExtContext, itemID string, newTotal int) (repository.StockLevel, error)
}

// StockService is the only writer of available_quantity. Callers pass their
// transaction so the reservation commits or rolls back with the transition it serves.
type StockService struct {
	store   stockStore
	metrics *MetricsService
	logger  *zap.Logger
}

// NewStockService constructs the coordinator.
func NewStockService(store stockStore, metrics *MetricsService, logger *zap.Logger) *StockService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StockService{store: store, metrics: metrics, logger: logger}
}

// Level returns the current counters without locking.
func (s *StockService) Level(ctx context.Context, itemID string) (repository.StockLevel, error) {
	level, err := s.store.Level(ctx, nil, itemID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return repository.StockLevel{}, appErrors.Clone(appErrors.ErrNotFound, "item not found")
		}
		return repository.StockLevel{}, appErrors.FromStore(err, "failed to read stock level")
	}
	return level, nil
}

// Reserve takes qty units out of available stock.
func (s *StockService) Reserve(ctx context.Context, exec sqlx.ExtContext, itemID string, qty int) (repository.StockLevel, error) {
	if qty < 1 {
		return repository.StockLevel{}, appErrors.Clone(appErrors.ErrValidation, "quantity must be at least 1")
	}
	level, err := s.store.Reserve(ctx, exec, itemID, qty)
	if err == nil {
		s.metrics.RecordReservation(ReservationGranted)
		return level, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		s.metrics.RecordReservation(ReservationError)
		return repository.StockLevel{}, appErrors.FromStore(err, "failed to reserve stock")
	}

	current, lerr := s.store.Level(ctx, exec, itemID)
	switch {
	case errors.Is(lerr, sql.ErrNoRows):
		s.metrics.RecordReservation(ReservationNotFound)
		return repository.StockLevel{}, appErrors.Clone(appErrors.ErrNotFound, "item not found")
	case lerr != nil:
		s.metrics.RecordReservation(ReservationError)
		return repository.StockLevel{}, appErrors.FromStore(lerr, "failed to read stock level")
	}
	s.metrics.RecordReservation(ReservationInsufficient)
	return current, appErrors.Clone(appErrors.ErrInsufficientStock,
		fmt.Sprintf("requested %d unit(s) but only %d available", qty, current.Available))
}

// Release credits qty units back. Credits above total are clamped and reported, never rejected.
func (s *StockService) Release(ctx context.Context, exec sqlx.ExtContext, itemID string, qty int) (repository.StockLevel, error) {
	if qty < 1 {
		return repository.StockLevel{}, appErrors.Clone(appErrors.ErrValidation, "quantity must be at least 1")
	}
	out, err := s.store.Release(ctx, exec, itemID, qty)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return repository.StockLevel{}, appErrors.Clone(appErrors.ErrNotFound, "item not found")
		}
		return repository.StockLevel{}, appErrors.FromStore(err, "failed to release stock")
	}
	if out.Clamped {
		s.metrics.RecordReleaseClamp()
		s.logger.Warn("stock release clamped at total",
			zap.String("item_id", itemID),
			zap.Int("quantity", qty),
			zap.Int("total", out.Total),
		)
	}
	return out.StockLevel, nil
}

// Resize changes the total and shifts available by the same delta. Shrinking below the
// units currently held is an invariant violation.
func (s *StockService) Resize(ctx context.Context, exec sqlx.ExtContext, itemID string, newTotal int) (repository.StockLevel, error) {
	if newTotal < 0 {
		return repository.StockLevel{}, appErrors.Clone(appErrors.ErrValidation, "total quantity cannot be negative")
	}
	level, err := s.store.Resize(ctx, exec, itemID, newTotal)
	if err == nil {
		return level, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return repository.StockLevel{}, appErrors.FromStore(err, "failed to resize stock")
	}
	current, lerr := s.store.Level(ctx, exec, itemID)
	switch {
	case errors.Is(lerr, sql.ErrNoRows):
		return repository.StockLevel{}, appErrors.Clone(appErrors.ErrNotFound, "item not found")
	case lerr != nil:
		return repository.StockLevel{}, appErrors.FromStore(lerr, "failed to read stock level")
	}
	return current, appErrors.Clone(appErrors.ErrInvariantViolation,
		fmt.Sprintf("total quantity %d is below the %d unit(s) currently assigned", newTotal, current.Total-current.Available))
}

// notFoundOr maps a missing row to NotFound and anything else to a storage error.
func notFoundOr(err error, resource string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return appErrors.Clone(appErrors.ErrNotFound, resource+" not found")
	}
	return appErrors.FromStore(err, "failed to load "+resource)
}
