package domainerrors

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCodedErrors(t *testing.T) {
	t.Run("wrap nil returns nil", func(t *testing.T) {
		assert.NoError(t, Wrap(nil, CodeTransport, "list devices"))
	})

	t.Run("has code finds nested codes", func(t *testing.T) {
		inner := New(CodeUnauthorized, "token expired")
		outer := Wrap(inner, CodeTransport, "list devices")

		assert.True(t, HasCode(outer, CodeTransport))
		assert.True(t, HasCode(outer, CodeUnauthorized))
		assert.False(t, HasCode(outer, CodeValidation))
		assert.Equal(t, CodeTransport, CodeOf(outer))
	})

	t.Run("has code survives fmt wrapping", func(t *testing.T) {
		err := fmt.Errorf("poll: %w", New(CodeTransport, "dial"))
		assert.True(t, HasCode(err, CodeTransport))
	})

	t.Run("unwrap exposes the cause", func(t *testing.T) {
		err := Wrap(context.DeadlineExceeded, CodeTimeout, "get history")
		require.ErrorIs(t, err, context.DeadlineExceeded)
		assert.True(t, Is(err, context.DeadlineExceeded))
	})

	t.Run("plain errors default to internal", func(t *testing.T) {
		err := errors.New("boom")
		assert.Equal(t, CodeInternal, CodeOf(err))
		assert.False(t, HasCode(err, CodeInternal))
		assert.Equal(t, "boom", Message(err))
	})

	t.Run("message returns the operator text", func(t *testing.T) {
		err := Wrap(errors.New("500"), CodeCommandRejected, "Failed to delete device")
		assert.Equal(t, "Failed to delete device", Message(err))
		assert.Equal(t, "command_rejected: Failed to delete device: 500", err.Error())
	})
}
