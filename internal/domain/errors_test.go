package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorKinds(t *testing.T) {
	tests := []struct {
		name  string
		err   error
		check func(error) bool
		kind  ErrorKind
	}{
		{"not found", NotFound("bullet point %d", 7), IsNotFound, KindNotFound},
		{"request failed", RequestFailed("get hierarchy", errors.New("connection refused")), IsRequestFailed, KindRequestFailed},
		{"invalid input", InvalidInput("team id required"), IsInvalidInput, KindInvalidInput},
		{"cycle", CycleDetected([]int64{1, 2, 1}), IsCycleDetected, KindCycleDetected},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.True(t, tt.check(tt.err))
			assert.Equal(t, tt.kind, KindOf(tt.err))

			wrapped := fmt.Errorf("outer: %w", tt.err)
			assert.True(t, tt.check(wrapped), "kind survives wrapping")
			assert.Equal(t, tt.kind, KindOf(wrapped))
		})
	}
}

func TestErrorKindsDoNotCrossMatch(t *testing.T) {
	err := NotFound("team %d", 3)
	assert.False(t, IsRequestFailed(err))
	assert.False(t, IsCycleDetected(err))
	assert.False(t, IsInvalidInput(err))
	assert.Equal(t, ErrorKind(""), KindOf(errors.New("plain")))
}

func TestErrorMessage(t *testing.T) {
	cause := errors.New("dial tcp: refused")
	err := RequestFailed("list teams", cause)
	assert.Equal(t, "REQUEST_FAILED: list teams: dial tcp: refused", err.Error())
	assert.ErrorIs(t, err, cause)

	cycle := CycleDetected([]int64{4, 5, 4})
	assert.Contains(t, cycle.Error(), "4 -> 5 -> 4")

	var e *Error
	assert.True(t, errors.As(cycle, &e))
	assert.Equal(t, []int64{4, 5, 4}, e.Cycle)
}
