package optimization

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorFormatting(t *testing.T) {
	base := errors.New("boom")
	tests := []struct {
		name string
		err  *Error
		want string
	}{
		{"message only", NewError("bad"), "bad"},
		{"formatted", NewErrorf("bad %d", 3), "bad 3"},
		{"op and component", NewError("bad").WithOperation("Fit").WithComponent("solver"), "solver: Fit: bad"},
		{"wrapped", WrapError(base, "ctx").WithOperation("Fit"), "Fit: ctx: boom"},
		{"wrapped without message", WrapError(base, ""), "boom"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Error())
		})
	}
}

func TestErrorUnwrap(t *testing.T) {
	assert.Nil(t, WrapError(nil, "ignored"))
	assert.Nil(t, WrapErrorf(nil, "ignored %d", 1))

	err := fmt.Errorf("outer: %w", WrapError(ErrInvalidBounds, "lower"))
	assert.ErrorIs(t, err, ErrInvalidBounds)

	e, ok := IsOptimizationError(err)
	assert.True(t, ok)
	assert.Equal(t, "lower", e.Message)

	_, ok = IsOptimizationError(errors.New("plain"))
	assert.False(t, ok)
}
