package requestcontext

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRequestID(t *testing.T) {
	t.Run("empty when unset", func(t *testing.T) {
		assert.Empty(t, RequestID(context.Background()))
	})

	t.Run("ensure keeps an existing id", func(t *testing.T) {
		ctx := WithRequestID(context.Background(), "req-1")
		ctx, id := EnsureRequestID(ctx)
		assert.Equal(t, "req-1", id)
		assert.Equal(t, "req-1", RequestID(ctx))
	})

	t.Run("ensure generates a new id", func(t *testing.T) {
		ctx, id := EnsureRequestID(context.Background())
		assert.NotEmpty(t, id)
		assert.Equal(t, id, RequestID(ctx))
	})
}

func TestNow(t *testing.T) {
	fixed := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, fixed, Now(WithTime(context.Background(), fixed)))
	assert.WithinDuration(t, time.Now(), Now(context.Background()), time.Second)
}
