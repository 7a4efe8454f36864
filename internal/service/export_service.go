package service

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/asset-inventory-api/internal/dto"
	"github.com/noah-isme/asset-inventory-api/internal/models"
	appErrors "github.com/noah-isme/asset-inventory-api/pkg/errors"
	"github.com/noah-isme/asset-inventory-api/pkg/export"
)

var (
	itemExportHeaders    = []string{"ID", "Name", "Category", "Status", "Condition", "Total", "Available", "Description", "Created At"}
	historyExportHeaders = []string{"Date", "Action", "Employee", "Item", "Quantity", "Notes"}
)

// ExportResult is a rendered document ready to stream.
type ExportResult struct {
	Filename    string
	ContentType string
	Body        []byte
	Rows        int
}

type itemIterator interface {
	Iterate(ctx context.Context, query dto.ItemQuery, fn func(models.InventoryItem) error) error
}

type historyIterator interface {
	Filter(query dto.HistoryQuery, actor *models.JWTClaims) (models.HistoryFilter, error)
	Iterate(ctx context.Context, filter models.HistoryFilter, fn func(models.HistoryEntry) error) error
}

// ExportService renders the catalog and the history log as CSV or PDF.
type ExportService struct {
	items   itemIterator
	history historyIterator
	logger  *zap.Logger
	now     func() time.Time
}

// NewExportService constructs an ExportService.
func NewExportService(items itemIterator, history historyIterator, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExportService{items: items, history: history, logger: logger, now: time.Now}
}

// Items renders every item matching the query.
func (s *ExportService) Items(ctx context.Context, query dto.ItemQuery, format string, actor *models.JWTClaims) (*ExportResult, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	renderer, err := s.renderer(format)
	if err != nil {
		return nil, err
	}
	dataset := export.Dataset{Title: "Inventory Items", Headers: itemExportHeaders}
	err = s.items.Iterate(ctx, query, func(item models.InventoryItem) error {
		dataset.Append(map[string]string{
			"ID":          item.ID,
			"Name":        item.Name,
			"Category":    item.Category,
			"Status":      string(item.Status()),
			"Condition":   string(item.Condition()),
			"Total":       strconv.Itoa(item.TotalQuantity),
			"Available":   strconv.Itoa(item.AvailableQuantity),
			"Description": item.Description,
			"Created At":  item.CreatedAt.UTC().Format(time.RFC3339),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.render(renderer, dataset, "inventory-items")
}

// History renders every history entry matching the query, scoped like ListHistory.
func (s *ExportService) History(ctx context.Context, query dto.HistoryQuery, format string, actor *models.JWTClaims) (*ExportResult, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	renderer, err := s.renderer(format)
	if err != nil {
		return nil, err
	}
	filter, err := s.history.Filter(query, actor)
	if err != nil {
		return nil, err
	}
	dataset := export.Dataset{Title: "Inventory History", Headers: historyExportHeaders}
	err = s.history.Iterate(ctx, filter, func(entry models.HistoryEntry) error {
		dataset.Append(map[string]string{
			"Date":     entry.CreatedAt.UTC().Format(time.RFC3339),
			"Action":   string(entry.ActionType),
			"Employee": entry.Actor(),
			"Item":     entry.ItemName,
			"Quantity": strconv.Itoa(entry.Quantity),
			"Notes":    entry.Notes,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.render(renderer, dataset, "inventory-history")
}

func (s *ExportService) renderer(format string) (export.Renderer, error) {
	parsed, err := export.ParseFormat(format)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, err.Error())
	}
	renderer, err := export.RendererFor(parsed)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, err.Error())
	}
	return renderer, nil
}

func (s *ExportService) render(renderer export.Renderer, dataset export.Dataset, prefix string) (*ExportResult, error) {
	body, err := renderer.Render(dataset)
	if err != nil {
		s.logger.Error("export render failed", zap.String("dataset", dataset.Title), zap.Error(err))
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render export")
	}
	filename := fmt.Sprintf("%s-%s.%s", prefix, s.now().UTC().Format("20060102-150405"), renderer.Extension())
	return &ExportResult{
		Filename:    filename,
		ContentType: renderer.ContentType(),
		Body:        body,
		Rows:        len(dataset.Rows),
	}, nil
}
