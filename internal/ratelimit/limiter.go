// Package ratelimit caps accepted hits per client with a fixed-window counter.
package ratelimit

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"time"
)

// Store holds the counters. Allow rejects when the counter for key already
// reached max; otherwise it increments the counter and resets its expiry to window.
type Store interface {
	Allow(ctx context.Context, key string, max int, window time.Duration) (bool, error)
}

// Limiter keys counters by a salted hash of the client IP, so the store never
// holds a reversible address.
type Limiter struct {
	store  Store
	secret []byte
	max    int
	window time.Duration
	logger *slog.Logger
}

func New(store Store, secret string, max int, window time.Duration, logger *slog.Logger) *Limiter {
	if max < 1 {
		max = 1
	}
	return &Limiter{
		store:  store,
		secret: []byte(secret),
		max:    max,
		window: window,
		logger: logger,
	}
}

// Key returns the counter key for ip.
func (l *Limiter) Key(ip string) string {
	mac := hmac.New(sha256.New, l.secret)
	mac.Write([]byte(ip))
	return hex.EncodeToString(mac.Sum(nil))
}

// IsRateLimited reports whether ip exceeded its budget. An empty ip or a
// failing store never limits.
func (l *Limiter) IsRateLimited(ctx context.Context, ip string) bool {
	if ip == "" {
		return false
	}

	allowed, err := l.store.Allow(ctx, l.Key(ip), l.max, l.window)
	if err != nil {
		l.logger.Warn("Rate limit store unavailable, allowing hit", slog.Any("error", err))
		return false
	}
	return !allowed
}
