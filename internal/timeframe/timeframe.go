// Package timeframe resolves report ranges and formats rollup buckets.
package timeframe

import (
	"time"
)

// Bucket layouts as stored in the rollup tables and accepted by report endpoints.
const (
	DayLayout  = "2006-01-02"
	HourLayout = "2006-01-02 15:04:05"
)

// Default report spans, both ends inclusive.
const (
	DefaultDays  = 30
	DefaultHours = 24
)

// Report limit bounds.
const (
	DefaultLimit = 10
	MaxLimit     = 100
)

type TimeProvider interface {
	Now(loc *time.Location) time.Time
}

// DefaultTimeProvider reads the system clock.
type DefaultTimeProvider struct{}

func (p *DefaultTimeProvider) Now(loc *time.Location) time.Time {
	return time.Now().In(loc)
}

// FixedTimeProvider always returns the same instant.
type FixedTimeProvider struct {
	FixedTime time.Time
}

func (p *FixedTimeProvider) Now(loc *time.Location) time.Time {
	return p.FixedTime.In(loc)
}

// Range is an inclusive span of bucket labels.
type Range struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// DayBucket returns the daily bucket label of t in loc.
func DayBucket(t time.Time, loc *time.Location) string {
	return t.In(loc).Format(DayLayout)
}

// HourBucket returns the hourly bucket label of t in loc.
func HourBucket(t time.Time, loc *time.Location) string {
	return t.In(loc).Format("2006-01-02 15") + ":00:00"
}

// Resolver turns raw start/end parameters into ranges, falling back to the
// default span ending now when they are missing, malformed or reversed.
type Resolver struct {
	loc          *time.Location
	timeProvider TimeProvider
}

func NewResolver(loc *time.Location, timeProvider ...TimeProvider) *Resolver {
	var provider TimeProvider = &DefaultTimeProvider{}
	if len(timeProvider) > 0 && timeProvider[0] != nil {
		provider = timeProvider[0]
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Resolver{loc: loc, timeProvider: provider}
}

// Location returns the timezone ranges are resolved in.
func (r *Resolver) Location() *time.Location {
	return r.loc
}

// DefaultDayRange covers the last 30 days, today included.
func (r *Resolver) DefaultDayRange() Range {
	now := r.timeProvider.Now(r.loc)
	return Range{
		Start: now.AddDate(0, 0, -(DefaultDays - 1)).Format(DayLayout),
		End:   now.Format(DayLayout),
	}
}

// DefaultHourRange covers the last 24 hours, the current hour included.
func (r *Resolver) DefaultHourRange() Range {
	now := r.timeProvider.Now(r.loc)
	return Range{
		Start: HourBucket(now.Add(-(DefaultHours-1)*time.Hour), r.loc),
		End:   HourBucket(now, r.loc),
	}
}

// ResolveDayRange accepts start and end only when both are YYYY-MM-DD dates
// and start <= end.
func (r *Resolver) ResolveDayRange(start, end string) Range {
	if rng, ok := resolve(start, end, DayLayout, r.loc); ok {
		return rng
	}
	return r.DefaultDayRange()
}

// ResolveHourRange accepts start and end only when both are
// YYYY-MM-DD HH:MM:SS datetimes and start <= end.
func (r *Resolver) ResolveHourRange(start, end string) Range {
	if rng, ok := resolve(start, end, HourLayout, r.loc); ok {
		return rng
	}
	return r.DefaultHourRange()
}

func resolve(start, end, layout string, loc *time.Location) (Range, bool) {
	from, err := time.ParseInLocation(layout, start, loc)
	if err != nil {
		return Range{}, false
	}
	to, err := time.ParseInLocation(layout, end, loc)
	if err != nil {
		return Range{}, false
	}
	if from.After(to) {
		return Range{}, false
	}
	return Range{Start: start, End: end}, true
}

// NormalizeLimit maps a raw limit parameter into [1, 100]. Missing,
// non-numeric and zero values give the default; negatives take their absolute value.
func NormalizeLimit(raw int) int {
	if raw < 0 {
		raw = -raw
	}
	if raw == 0 {
		return DefaultLimit
	}
	if raw > MaxLimit {
		return MaxLimit
	}
	return raw
}
