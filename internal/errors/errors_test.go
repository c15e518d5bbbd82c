package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppError(t *testing.T) {
	t.Run("formats code and message", func(t *testing.T) {
		err := New(ErrCodeUnknownIdentity, "no worker for tag")
		assert.Equal(t, "UNKNOWN_IDENTITY: no worker for tag", err.Error())
	})

	t.Run("includes cause in message", func(t *testing.T) {
		cause := errors.New("connection refused")
		err := Wrap(ErrCodeDatabase, "Database error", cause)
		assert.Contains(t, err.Error(), "connection refused")
	})

	t.Run("unwraps to cause", func(t *testing.T) {
		cause := errors.New("connection refused")
		err := Database(cause)
		assert.ErrorIs(t, err, cause)
	})

	t.Run("survives fmt wrapping", func(t *testing.T) {
		err := SessionCreateFailed(errors.New("insert failed"))
		wrapped := fmt.Errorf("switch protocol: %w", err)

		appErr, ok := AsAppError(wrapped)
		assert.True(t, ok)
		assert.Equal(t, ErrCodeSessionCreateFailed, appErr.Code)
	})
}

func TestGetCode(t *testing.T) {
	t.Run("returns code for app errors", func(t *testing.T) {
		assert.Equal(t, ErrCodeRateLimitExceeded, GetCode(RateLimitExceeded()))
		assert.Equal(t, ErrCodeDuplicateScan, GetCode(DuplicateScan("same payload")))
		assert.Equal(t, ErrCodeUnknownIdentity, GetCode(UnknownIdentity("TAG-1")))
	})

	t.Run("falls back to internal for plain errors", func(t *testing.T) {
		assert.Equal(t, ErrCodeInternal, GetCode(errors.New("boom")))
	})
}

func TestIsAppError(t *testing.T) {
	assert.True(t, IsAppError(NoActiveSession()))
	assert.False(t, IsAppError(errors.New("boom")))
}
