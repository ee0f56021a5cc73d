package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorMessage(t *testing.T) {
	err := NotFound("meeting not found")
	assert.Equal(t, "meeting not found", err.Error())

	wrapped := err.Wrap(errors.New("no rows in result set"))
	assert.Equal(t, "meeting not found: no rows in result set", wrapped.Error())
	assert.ErrorIs(t, wrapped, wrapped.Err)
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		kind Kind
	}{
		{"not found", NotFound("x"), KindNotFound},
		{"conflict", Conflict("x"), KindConflict},
		{"invalid", Invalid("x"), KindInvalid},
		{"unavailable", Unavailable("x", errors.New("down")), KindUnavailable},
		{"plain error", errors.New("boom"), KindInternal},
		{"wrapped kinded error", fmt.Errorf("outer: %w", Conflict("dup")), KindConflict},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.kind, KindOf(tt.err))
			assert.True(t, IsKind(tt.err, tt.kind))
		})
	}
}
