package surety

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCode(t *testing.T) {
	assert.Equal(t, CodeOK, Code(nil))
	assert.Equal(t, CodeInternal, Code(errors.New("disk on fire")))
	assert.Equal(t, CodeIndexMismatch, Code(fmt.Errorf("%w: index 3", ErrIndexMismatch)))

	seen := map[uint32]bool{}
	for _, c := range errCodes {
		assert.False(t, seen[c.code], "duplicate code %d", c.code)
		seen[c.code] = true
		assert.Equal(t, c.code, Code(c.err))
		assert.Equal(t, c.err.Error(), CodeText(c.code))
	}
	assert.Equal(t, "ok", CodeText(CodeOK))
	assert.Equal(t, "unknown", CodeText(99))
}

func TestCheckStopsAtFirstFailure(t *testing.T) {
	var calls int
	g := func(err error) guard {
		return func() error {
			calls++
			return err
		}
	}
	err := check(g(nil), g(ErrNotFunded), g(ErrUnauthorized))
	assert.ErrorIs(t, err, ErrNotFunded)
	assert.Equal(t, 2, calls)
}
