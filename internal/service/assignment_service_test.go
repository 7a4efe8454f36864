package service

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/asset-inventory-api/internal/dto"
	"github.com/noah-isme/asset-inventory-api/internal/models"
	appErrors "github.com/noah-isme/asset-inventory-api/pkg/errors"
)

func TestAssignDirect(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	itemID := env.store.seedItem(t, "Monitor", 2, 2)

	_, err := env.assignments.Assign(ctx, dto.AssignItemRequest{ItemID: itemID, EmployeeID: "emp-1", Quantity: 1}, employeeActor("emp-1"))
	assert.Equal(t, appErrors.ErrForbidden.Code, errCode(err))

	entry, err := env.assignments.Assign(ctx, dto.AssignItemRequest{ItemID: itemID, EmployeeID: "emp-1", Quantity: 2, Notes: "desk setup"}, adminActor)
	require.NoError(t, err)
	assert.Equal(t, models.AssignmentAssigned, entry.Status)
	assert.Equal(t, 0, env.store.level(itemID).Available)

	_, err = env.assignments.Assign(ctx, dto.AssignItemRequest{ItemID: itemID, EmployeeID: "emp-2", Quantity: 1}, adminActor)
	assert.Equal(t, appErrors.ErrInsufficientStock.Code, errCode(err))
	assert.Len(t, env.store.assignments, 1)
	assert.Equal(t, []models.HistoryAction{models.ActionAssigned}, env.store.actions())
}

func TestReturnIsIdempotent(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	itemID := env.store.seedItem(t, "Laptop", 3, 3)
	entry, err := env.assignments.Assign(ctx, dto.AssignItemRequest{ItemID: itemID, EmployeeID: "emp-1", Quantity: 2}, adminActor)
	require.NoError(t, err)

	_, err = env.assignments.Return(ctx, entry.ID, dto.ReturnAssignmentRequest{Condition: "Good"}, employeeActor("emp-2"))
	assert.Equal(t, appErrors.ErrForbidden.Code, errCode(err))

	_, err = env.assignments.Return(ctx, entry.ID, dto.ReturnAssignmentRequest{Condition: "Lost"}, adminActor)
	assert.Equal(t, appErrors.ErrValidation.Code, errCode(err))

	var ok, conflicts int32
	var wg sync.WaitGroup
	for i := 0; i < 6; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := env.assignments.Return(ctx, entry.ID, dto.ReturnAssignmentRequest{Condition: "Good"}, employeeActor("emp-1"))
			if err == nil {
				atomic.AddInt32(&ok, 1)
			} else if errCode(err) == appErrors.ErrConflict.Code {
				atomic.AddInt32(&conflicts, 1)
			}
		}()
	}
	wg.Wait()

	assert.EqualValues(t, 1, ok)
	assert.EqualValues(t, 5, conflicts)
	assert.Equal(t, 3, env.store.level(itemID).Available)
	assert.Equal(t, []models.HistoryAction{models.ActionAssigned, models.ActionReturned}, env.store.actions())
	env.store.checkInvariant(t)

	_, err = env.assignments.Return(ctx, "missing", dto.ReturnAssignmentRequest{Condition: "Good"}, adminActor)
	assert.Equal(t, appErrors.ErrNotFound.Code, errCode(err))
}

func TestReturnRecordsReturnDate(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	fixed := time.Date(2024, 3, 10, 15, 30, 0, 0, time.UTC)
	env.assignments.now = func() time.Time { return fixed }
	itemID := env.store.seedItem(t, "Projector", 3, 3)

	assign := func() *models.Assignment {
		entry, err := env.assignments.Assign(ctx, dto.AssignItemRequest{ItemID: itemID, EmployeeID: "emp-1", Quantity: 1}, adminActor)
		require.NoError(t, err)
		return entry
	}
	specs := func() models.Specifications {
		env.store.mu.Lock()
		defer env.store.mu.Unlock()
		return env.store.items[itemID].Specifications
	}

	t.Run("defaults to now", func(t *testing.T) {
		entry := assign()
		returned, err := env.assignments.Return(ctx, entry.ID, dto.ReturnAssignmentRequest{Condition: "Good"}, adminActor)
		require.NoError(t, err)
		require.NotNil(t, returned.ReturnedAt)
		assert.True(t, fixed.Equal(*returned.ReturnedAt))
		assert.True(t, fixed.Equal(*env.store.assignments[entry.ID].ReturnedAt))
		assert.Equal(t, fixed.Format(time.RFC3339), specs()[models.SpecReturnedAt])
	})

	t.Run("explicit date is stored", func(t *testing.T) {
		entry := assign()
		returned, err := env.assignments.Return(ctx, entry.ID, dto.ReturnAssignmentRequest{Condition: "Damaged", ReturnDate: "2024-03-01"}, adminActor)
		require.NoError(t, err)
		want := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
		require.NotNil(t, returned.ReturnedAt)
		assert.True(t, want.Equal(*returned.ReturnedAt))
		assert.True(t, want.Equal(*env.store.assignments[entry.ID].ReturnedAt))
		assert.Equal(t, "2024-03-01T00:00:00Z", specs()[models.SpecReturnedAt])
		assert.Equal(t, string(models.ConditionDamaged), specs()[models.SpecCondition])
	})

	t.Run("same day is accepted", func(t *testing.T) {
		entry := assign()
		_, err := env.assignments.Return(ctx, entry.ID, dto.ReturnAssignmentRequest{Condition: "Good", ReturnDate: "2024-03-10"}, adminActor)
		require.NoError(t, err)
	})

	t.Run("rejects future and malformed dates", func(t *testing.T) {
		entry := assign()
		for _, raw := range []string{"2024-03-11", "2024-03-10T16:00:00Z", "03/01/2024"} {
			_, err := env.assignments.Return(ctx, entry.ID, dto.ReturnAssignmentRequest{Condition: "Good", ReturnDate: raw}, adminActor)
			assert.Equal(t, appErrors.ErrValidation.Code, errCode(err), raw)
		}
		assert.Equal(t, models.AssignmentAssigned, env.store.assignments[entry.ID].Status)
		assert.Nil(t, env.store.assignments[entry.ID].ReturnedAt)
	})
	env.store.checkInvariant(t)
}

func TestAssignmentListScoping(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	itemID := env.store.seedItem(t, "Phone", 5, 5)
	for _, emp := range []string{"emp-1", "emp-1", "emp-2"} {
		_, err := env.assignments.Assign(ctx, dto.AssignItemRequest{ItemID: itemID, EmployeeID: emp, Quantity: 1}, adminActor)
		require.NoError(t, err)
	}

	mine, page, err := env.assignments.List(ctx, dto.AssignmentQuery{}, employeeActor("emp-1"))
	require.NoError(t, err)
	assert.Len(t, mine, 2)
	assert.Equal(t, 2, page.TotalCount)

	_, err = env.assignments.ListActiveByEmployee(ctx, "emp-2", employeeActor("emp-1"))
	assert.Equal(t, appErrors.ErrForbidden.Code, errCode(err))

	all, _, err := env.assignments.List(ctx, dto.AssignmentQuery{Status: "assigned"}, adminActor)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	_, _, err = env.assignments.List(ctx, dto.AssignmentQuery{Status: "lost"}, adminActor)
	assert.Equal(t, appErrors.ErrValidation.Code, errCode(err))

	units, err := env.assignments.CountActiveByItem(ctx, itemID)
	require.NoError(t, err)
	assert.Equal(t, 3, units)
}

// Units are conserved: available plus every active ledger quantity equals total.
func TestStockConservationAcrossMixedOperations(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	itemID := env.store.seedItem(t, "Tablet", 6, 6)

	var wg sync.WaitGroup
	for i := 0; i < 12; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			entry, err := env.assignments.Assign(ctx, dto.AssignItemRequest{ItemID: itemID, EmployeeID: "emp-1", Quantity: 1}, adminActor)
			if err != nil {
				return
			}
			if i%2 == 0 {
				_, _ = env.assignments.Return(ctx, entry.ID, dto.ReturnAssignmentRequest{Condition: "Good"}, adminActor)
			}
		}(i)
	}
	wg.Wait()

	held, err := env.assignments.CountActiveByItem(ctx, itemID)
	require.NoError(t, err)
	level := env.store.level(itemID)
	assert.Equal(t, level.Total, level.Available+held)
	env.store.checkInvariant(t)
}
