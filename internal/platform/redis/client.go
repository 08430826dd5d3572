// Package redis connects the console's session store to Redis.
package redis

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"fleetwatch/internal/platform/config"
	"fleetwatch/internal/session"
	"fleetwatch/pkg/platform/sentinel"
)

// Client is the connection behind the Redis session store. Every key it
// writes through SessionStore carries prefix.
type Client struct {
	*redis.Client
	prefix string
}

// New dials the session store. An empty URL returns nil, nil and the
// caller falls back to the in-memory store. A server that does not answer
// the first ping within the dial timeout is reported as unavailable.
func New(ctx context.Context, cfg config.Session) (*Client, error) {
	rc := cfg.Redis
	if rc.URL == "" {
		return nil, nil
	}

	opts, err := redis.ParseURL(rc.URL)
	if err != nil {
		return nil, fmt.Errorf("parse session store URL: %w", err)
	}
	if rc.PoolSize > 0 {
		opts.PoolSize = rc.PoolSize
	}
	opts.MinIdleConns = rc.MinIdleConns
	if rc.DialTimeout > 0 {
		opts.DialTimeout = rc.DialTimeout
	}
	if rc.ReadTimeout > 0 {
		opts.ReadTimeout = rc.ReadTimeout
	}
	if rc.WriteTimeout > 0 {
		opts.WriteTimeout = rc.WriteTimeout
	}

	c := &Client{Client: redis.NewClient(opts), prefix: cfg.KeyPrefix}
	pingCtx, cancel := context.WithTimeout(ctx, opts.DialTimeout)
	defer cancel()
	if err := c.Check(pingCtx); err != nil {
		_ = c.Client.Close()
		return nil, err
	}
	return c, nil
}

// Check pings the server. Failures wrap sentinel.ErrUnavailable like the
// store's own read and write errors.
func (c *Client) Check(ctx context.Context) error {
	if err := c.Ping(ctx).Err(); err != nil {
		return errors.Join(sentinel.ErrUnavailable, fmt.Errorf("session store ping: %w", err))
	}
	return nil
}

// Prefix is the key prefix applied to session entries.
func (c *Client) Prefix() string { return c.prefix }

// SessionStore returns a store over this connection.
func (c *Client) SessionStore(opts ...session.RedisStoreOption) *session.RedisStore {
	return session.NewRedisStore(c.Client, c.prefix, opts...)
}
