package errors

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCloneKeepsCodeForIs(t *testing.T) {
	err := Clone(ErrInsufficientStock, "only 2 units left")
	assert.True(t, errors.Is(err, ErrInsufficientStock))
	assert.False(t, errors.Is(err, ErrConflict))
	assert.Equal(t, "only 2 units left", err.Message)
	assert.Equal(t, http.StatusConflict, err.Status)
}

func TestFromErrorWrapsUnknown(t *testing.T) {
	appErr := FromError(fmt.Errorf("boom"))
	assert.Equal(t, ErrInternal.Code, appErr.Code)
	assert.Nil(t, FromError(nil))
}

func TestFromStoreClassifiesTimeouts(t *testing.T) {
	timeout := FromStore(fmt.Errorf("reserve: %w", context.DeadlineExceeded), "failed to reserve")
	assert.Equal(t, ErrUnavailable.Code, timeout.Code)
	assert.Equal(t, http.StatusServiceUnavailable, timeout.Status)

	other := FromStore(fmt.Errorf("syntax error"), "failed to reserve")
	assert.Equal(t, ErrInternal.Code, other.Code)

	typed := FromStore(ErrNotFound, "ignored")
	assert.Equal(t, ErrNotFound.Code, typed.Code)
}
