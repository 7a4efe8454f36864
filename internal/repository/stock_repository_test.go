package repository

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStockRepositoryReserve(t *testing.T) {
	db, mock := newRepoMock(t)
	repo := NewStockRepository(db)

	mock.ExpectQuery(`(?s)UPDATE inventory_items\s+SET available_quantity = available_quantity - \$2.*WHERE id = \$1 AND available_quantity >= \$2`).
		WithArgs("item-1", 2).
		WillReturnRows(sqlmock.NewRows([]string{"total_quantity", "available_quantity"}).AddRow(5, 1))

	level, err := repo.Reserve(context.Background(), nil, "item-1", 2)
	require.NoError(t, err)
	assert.Equal(t, StockLevel{Total: 5, Available: 1}, level)

	mock.ExpectQuery(`UPDATE inventory_items`).
		WithArgs("item-1", 9).
		WillReturnRows(sqlmock.NewRows([]string{"total_quantity", "available_quantity"}))
	_, err = repo.Reserve(context.Background(), nil, "item-1", 9)
	assert.True(t, errors.Is(err, sql.ErrNoRows))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStockRepositoryReleaseReportsClamp(t *testing.T) {
	db, mock := newRepoMock(t)
	repo := NewStockRepository(db)

	mock.ExpectQuery(`(?s)WITH target AS .*FOR UPDATE.*LEAST\(t.total_quantity, t.available_quantity \+ \$2\)`).
		WithArgs("item-1", 3).
		WillReturnRows(sqlmock.NewRows([]string{"total_quantity", "available_quantity", "clamped"}).AddRow(4, 4, true))

	out, err := repo.Release(context.Background(), nil, "item-1", 3)
	require.NoError(t, err)
	assert.True(t, out.Clamped)
	assert.Equal(t, 4, out.Available)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStockRepositoryResizeGuardsCommittedUnits(t *testing.T) {
	db, mock := newRepoMock(t)
	repo := NewStockRepository(db)

	mock.ExpectQuery(`WHERE id = \$1 AND \$2 >= total_quantity - available_quantity`).
		WithArgs("item-1", 1).
		WillReturnError(sql.ErrNoRows)

	_, err := repo.Resize(context.Background(), nil, "item-1", 1)
	assert.True(t, errors.Is(err, sql.ErrNoRows))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStockRepositoryLevelLocksInsideTx(t *testing.T) {
	db, mock := newRepoMock(t)
	repo := NewStockRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT total_quantity, available_quantity FROM inventory_items WHERE id = \$1 FOR UPDATE`).
		WithArgs("item-1").
		WillReturnRows(sqlmock.NewRows([]string{"total_quantity", "available_quantity"}).AddRow(3, 0))

	tx, err := db.Beginx()
	require.NoError(t, err)
	level, err := repo.Level(context.Background(), tx, "item-1")
	require.NoError(t, err)
	assert.Equal(t, 0, level.Available)
	require.NoError(t, mock.ExpectationsWereMet())
}
