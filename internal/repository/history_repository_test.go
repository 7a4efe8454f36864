package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/asset-inventory-api/internal/models"
)

func TestHistoryRepositoryCreateIsIdempotent(t *testing.T) {
	db, mock := newRepoMock(t)
	repo := NewHistoryRepository(db)

	mock.ExpectExec(`(?s)INSERT INTO history.*ON CONFLICT \(id\) DO NOTHING`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`(?s)INSERT INTO history.*ON CONFLICT \(id\) DO NOTHING`).WillReturnResult(sqlmock.NewResult(0, 0))

	entry := &models.HistoryEntry{ActionType: models.ActionRequested, EmployeeID: "emp-1", Quantity: 1}
	require.NoError(t, repo.Create(context.Background(), entry))
	id := entry.ID
	require.NoError(t, repo.Create(context.Background(), entry))
	assert.Equal(t, id, entry.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestHistoryRepositoryListFilters(t *testing.T) {
	db, mock := newRepoMock(t)
	repo := NewHistoryRepository(db)
	from := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM history h WHERE h.action_type = ANY($1) AND h.employee_id = $2 AND h.created_at >= $3")).
		WithArgs(sqlmock.AnyArg(), "emp-1", from).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery(`(?s)SELECT h.id.*COALESCE\(i.name, 'Deleted Item'\).*ORDER BY h.created_at DESC`).
		WithArgs(sqlmock.AnyArg(), "emp-1", from).
		WillReturnRows(sqlmock.NewRows([]string{"id", "action_type", "employee_id", "item_id", "item_name", "quantity", "notes", "created_at"}).
			AddRow("h-1", "returned", "emp-1", "item-9", "Deleted Item", 1, "Returned in Good condition", from))

	entries, total, err := repo.List(context.Background(), models.HistoryFilter{
		ActionTypes: []models.HistoryAction{models.ActionReturned, models.ActionCompleted},
		EmployeeID:  "emp-1",
		From:        &from,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, entries, 1)
	assert.Equal(t, models.DeletedItemName, entries[0].ItemName)
	require.NoError(t, mock.ExpectationsWereMet())
}
