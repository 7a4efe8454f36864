package repository

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/asset-inventory-api/internal/models"
)

var itemRowColumns = []string{"id", "name", "category", "description", "total_quantity", "available_quantity", "specifications", "created_by", "created_at", "updated_at"}

func TestItemRepositoryCreateAndFind(t *testing.T) {
	db, mock := newRepoMock(t)
	repo := NewItemRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO inventory_items")).WillReturnResult(sqlmock.NewResult(1, 1))
	item := &models.InventoryItem{Name: "ThinkPad", Category: "Laptop", TotalQuantity: 2, AvailableQuantity: 2}
	require.NoError(t, repo.Create(context.Background(), nil, item))
	assert.NotEmpty(t, item.ID)
	assert.NotNil(t, item.Specifications)

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, name, category")).
		WithArgs(item.ID).
		WillReturnRows(sqlmock.NewRows(itemRowColumns).AddRow(item.ID, "ThinkPad", "Laptop", "", 2, 2, []byte(`{"ram":"16GB"}`), nil, now, now))
	found, err := repo.FindByID(context.Background(), item.ID)
	require.NoError(t, err)
	assert.Equal(t, "16GB", found.Specifications["ram"])
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestItemRepositoryListFilters(t *testing.T) {
	db, mock := newRepoMock(t)
	repo := NewItemRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM inventory_items WHERE category = $1 AND available_quantity > 0 AND specifications->>'condition' = 'Damaged' AND (LOWER(name) LIKE $2")).
		WithArgs("Laptop", "%dell%").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectQuery(`SELECT id, name.*LIMIT 10 OFFSET 10`).
		WithArgs("Laptop", "%dell%").
		WillReturnRows(sqlmock.NewRows(itemRowColumns))

	items, total, err := repo.List(context.Background(), models.ItemFilter{
		Category:  "Laptop",
		Status:    models.StockUnassigned,
		Condition: models.ConditionDamaged,
		Search:    " Dell ",
		Paging:    models.Paging{Page: 2, PageSize: 10},
	})
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, items)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestItemRepositoryPartiallyAssignedMatchesNothing(t *testing.T) {
	db, mock := newRepoMock(t)
	repo := NewItemRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM inventory_items WHERE FALSE")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectQuery(`SELECT id, name.*WHERE FALSE`).
		WillReturnRows(sqlmock.NewRows(itemRowColumns))

	_, total, err := repo.List(context.Background(), models.ItemFilter{Status: models.StockPartiallyAssigned})
	require.NoError(t, err)
	assert.Zero(t, total)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestItemRepositoryDeleteUnreferenced(t *testing.T) {
	db, mock := newRepoMock(t)
	repo := NewItemRepository(db)

	mock.ExpectExec(`(?s)DELETE FROM inventory_items i.*NOT EXISTS \(SELECT 1 FROM assignments a.*NOT EXISTS \(SELECT 1 FROM requests q`).
		WithArgs("item-1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.DeleteUnreferenced(context.Background(), "item-1")
	assert.True(t, errors.Is(err, sql.ErrNoRows))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestItemRepositoryMergeSpecifications(t *testing.T) {
	db, mock := newRepoMock(t)
	repo := NewItemRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("specifications = COALESCE(specifications, '{}'::jsonb) || $2::jsonb")).
		WithArgs("item-1", []byte(`{"condition":"Damaged"}`)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.MergeSpecifications(context.Background(), nil, "item-1", map[string]string{"condition": "Damaged"}))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestItemRepositoryUpdateOnlyTouchesGivenColumns(t *testing.T) {
	db, mock := newRepoMock(t)
	repo := NewItemRepository(db)

	name := "Renamed"
	mock.ExpectExec(regexp.QuoteMeta("UPDATE inventory_items SET updated_at = ?, name = ? WHERE id = ?")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.Update(context.Background(), nil, "item-1", UpdateItemParams{Name: &name}))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestItemRepositoryTotals(t *testing.T) {
	db, mock := newRepoMock(t)
	repo := NewItemRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) AS items")).
		WillReturnRows(sqlmock.NewRows([]string{"items", "units", "available"}).AddRow(3, 10, 4))
	totals, err := repo.Totals(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StockTotals{Items: 3, Units: 10, Available: 4}, totals)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT category, COUNT(*) AS count FROM inventory_items GROUP BY category")).
		WillReturnRows(sqlmock.NewRows([]string{"category", "count"}).AddRow("Laptop", 2).AddRow("Other", 1))
	byCategory, err := repo.CountByCategory(context.Background())
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"Laptop": 2, "Other": 1}, byCategory)
	require.NoError(t, mock.ExpectationsWereMet())
}
