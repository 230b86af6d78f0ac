// Package dedup suppresses repeated hits of the same signature within a short window.
package dedup

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/cespare/xxhash/v2"

	"leanstats/internal/hits"
)

// MarkStore is the durable tier. MarkFirstSeen records key for window and
// reports whether no unexpired mark existed before.
type MarkStore interface {
	MarkFirstSeen(ctx context.Context, key string, window time.Duration) (bool, error)
}

// Filter checks hits against an in-process bloom tier and a durable mark store.
type Filter struct {
	window  time.Duration
	fast    *generations
	durable MarkStore
	logger  *slog.Logger
}

// Option configures a Filter.
type Option func(*Filter)

// WithClock replaces the clock driving fast tier rotation.
func WithClock(now func() time.Time) Option {
	return func(f *Filter) {
		f.fast.now = now
	}
}

// NewFilter creates a filter remembering signatures for window. durable may be nil.
func NewFilter(window time.Duration, durable MarkStore, logger *slog.Logger, opts ...Option) *Filter {
	f := &Filter{
		window:  window,
		fast:    newGenerations(window/2, defaultCapacity, defaultFalsePositiveRate),
		durable: durable,
		logger:  logger,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Signature is the stable dedup key of a hit.
func Signature(hit hits.Hit) string {
	d := xxhash.New()
	d.WriteString(hit.PagePath)
	d.WriteString("\x00")
	d.WriteString(hit.ReferrerDomain)
	d.WriteString("\x00")
	d.WriteString(string(hit.DeviceClass))
	return strconv.FormatUint(d.Sum64(), 16)
}

// IsDuplicate reports whether the hit's signature was seen within the window.
// Both tiers are marked on first sight; a key held by either tier is a
// duplicate. When the durable tier fails, the fast tier's answer is returned
// with the error.
func (f *Filter) IsDuplicate(ctx context.Context, hit hits.Hit) (bool, error) {
	key := Signature(hit)

	fastSeen := f.fast.testAndAdd(key)
	if f.durable == nil {
		return fastSeen, nil
	}

	first, err := f.durable.MarkFirstSeen(ctx, key, f.window)
	if err != nil {
		return fastSeen, fmt.Errorf("dedup mark store: %w", err)
	}

	return fastSeen || !first, nil
}
