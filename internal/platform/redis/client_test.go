package redis

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fleetwatch/internal/platform/config"
	"fleetwatch/pkg/platform/sentinel"
)

func TestNew(t *testing.T) {
	t.Run("empty URL selects the memory store", func(t *testing.T) {
		client, err := New(context.Background(), config.Session{KeyPrefix: "fleetwatch:"})
		require.NoError(t, err)
		assert.Nil(t, client)
	})

	t.Run("malformed URL is rejected before dialing", func(t *testing.T) {
		client, err := New(context.Background(), config.Session{
			Redis: config.RedisConfig{URL: "http://not-redis"},
		})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "parse session store URL")
		assert.False(t, errors.Is(err, sentinel.ErrUnavailable))
		assert.Nil(t, client)
	})

	t.Run("silent server is unavailable", func(t *testing.T) {
		// Accepts connections and never answers, so the ping times out.
		ln, err := net.Listen("tcp", "127.0.0.1:0")
		require.NoError(t, err)
		defer ln.Close()
		go func() {
			for {
				conn, err := ln.Accept()
				if err != nil {
					return
				}
				defer conn.Close()
			}
		}()

		client, err := New(context.Background(), config.Session{
			Redis: config.RedisConfig{
				URL:         "redis://" + ln.Addr().String(),
				DialTimeout: 200 * time.Millisecond,
				ReadTimeout: 100 * time.Millisecond,
			},
		})
		require.Error(t, err)
		assert.True(t, errors.Is(err, sentinel.ErrUnavailable))
		assert.Contains(t, err.Error(), "session store ping")
		assert.Nil(t, client)
	})
}
