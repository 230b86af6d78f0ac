// Package analytics answers report queries over the rollup tables.
package analytics

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"leanstats/internal/pkg/async"
	"leanstats/internal/pkg/referrers"
	"leanstats/internal/rollups"
	"leanstats/internal/timeframe"
)

// KPIs summarises a daily range.
type KPIs struct {
	TotalHits       int64 `json:"totalHits"`
	UniquePages     int64 `json:"uniquePages"`
	UniqueReferrers int64 `json:"uniqueReferrers"`
}

// Item is one row of a ranked report.
type Item struct {
	Label string `json:"label"`
	Hits  int64  `json:"hits"`
}

// ReferrerItem is a referrer row with its friendly source name.
type ReferrerItem struct {
	Label    string `json:"label"`
	Hits     int64  `json:"hits"`
	Source   string `json:"source"`
	Category string `json:"category"`
}

// BucketItem is one point of a timeseries.
type BucketItem struct {
	Bucket string `json:"bucket"`
	Hits   int64  `json:"hits"`
}

// Overview bundles the daily reports for one range.
type Overview struct {
	Range        timeframe.Range `json:"range"`
	KPIs         KPIs            `json:"kpis"`
	TopPages     []Item          `json:"topPages"`
	TopReferrers []ReferrerItem  `json:"referrers"`
	Timeseries   []BucketItem    `json:"timeseries"`
	Devices      []Item          `json:"devices"`
}

type Service struct {
	db   *gorm.DB
	pool *async.Pool
}

func NewService(db *gorm.DB) *Service {
	return &Service{db: db, pool: async.NewPool(4)}
}

func (s *Service) KPIs(ctx context.Context, r timeframe.Range) (KPIs, error) {
	var kpis KPIs
	query := fmt.Sprintf(`
	SELECT
		COALESCE(SUM(hits), 0) AS total_hits,
		COUNT(DISTINCT page_path) AS unique_pages,
		COUNT(DISTINCT referrer_domain) AS unique_referrers
	FROM %s
	WHERE date_bucket BETWEEN ? AND ?
	`, rollups.DailyTable)

	if err := s.db.WithContext(ctx).Raw(query, r.Start, r.End).Scan(&kpis).Error; err != nil {
		return KPIs{}, fmt.Errorf("error fetching kpis: %w", err)
	}
	return kpis, nil
}

func (s *Service) TopPages(ctx context.Context, r timeframe.Range, limit int) ([]Item, error) {
	items, err := s.ranked(ctx, "page_path", r, limit)
	if err != nil {
		return nil, fmt.Errorf("error fetching top pages: %w", err)
	}
	return items, nil
}

// TopReferrers ranks referrer domains. Direct traffic appears with an empty label.
func (s *Service) TopReferrers(ctx context.Context, r timeframe.Range, limit int) ([]ReferrerItem, error) {
	items, err := s.ranked(ctx, "referrer_domain", r, limit)
	if err != nil {
		return nil, fmt.Errorf("error fetching top referrers: %w", err)
	}

	results := make([]ReferrerItem, len(items))
	for i, item := range items {
		source := referrers.Classify(item.Label)
		results[i] = ReferrerItem{
			Label:    item.Label,
			Hits:     item.Hits,
			Source:   source.Name,
			Category: source.Category,
		}
	}
	return results, nil
}

func (s *Service) DeviceSplit(ctx context.Context, r timeframe.Range) ([]Item, error) {
	items, err := s.ranked(ctx, "device_class", r, 0)
	if err != nil {
		return nil, fmt.Errorf("error fetching device split: %w", err)
	}
	return items, nil
}

func (s *Service) TimeseriesDay(ctx context.Context, r timeframe.Range) ([]BucketItem, error) {
	items, err := s.series(ctx, rollups.DailyTable, r)
	if err != nil {
		return nil, fmt.Errorf("error fetching daily timeseries: %w", err)
	}
	return items, nil
}

func (s *Service) TimeseriesHour(ctx context.Context, r timeframe.Range) ([]BucketItem, error) {
	items, err := s.series(ctx, rollups.HourlyTable, r)
	if err != nil {
		return nil, fmt.Errorf("error fetching hourly timeseries: %w", err)
	}
	return items, nil
}

// Overview runs the daily reports concurrently and returns the first error.
func (s *Service) Overview(ctx context.Context, r timeframe.Range, limit int) (Overview, error) {
	tasks := []async.Task{
		{Name: "kpis", Execute: func(ctx context.Context) (interface{}, error) { return s.KPIs(ctx, r) }},
		{Name: "pages", Execute: func(ctx context.Context) (interface{}, error) { return s.TopPages(ctx, r, limit) }},
		{Name: "referrers", Execute: func(ctx context.Context) (interface{}, error) { return s.TopReferrers(ctx, r, limit) }},
		{Name: "timeseries", Execute: func(ctx context.Context) (interface{}, error) { return s.TimeseriesDay(ctx, r) }},
		{Name: "devices", Execute: func(ctx context.Context) (interface{}, error) { return s.DeviceSplit(ctx, r) }},
	}

	results := s.pool.Execute(ctx, tasks)
	for _, task := range tasks {
		result, ok := results[task.Name]
		if !ok {
			if err := ctx.Err(); err != nil {
				return Overview{}, err
			}
			return Overview{}, fmt.Errorf("overview task %s did not complete", task.Name)
		}
		if result.Err != nil {
			return Overview{}, result.Err
		}
	}

	return Overview{
		Range:        r,
		KPIs:         results["kpis"].Data.(KPIs),
		TopPages:     results["pages"].Data.([]Item),
		TopReferrers: results["referrers"].Data.([]ReferrerItem),
		Timeseries:   results["timeseries"].Data.([]BucketItem),
		Devices:      results["devices"].Data.([]Item),
	}, nil
}

// ranked groups the daily table by column, hits descending then label
// ascending. A limit of 0 returns every group.
func (s *Service) ranked(ctx context.Context, column string, r timeframe.Range, limit int) ([]Item, error) {
	query := fmt.Sprintf(`
	SELECT %[1]s AS label, SUM(hits) AS hits
	FROM %[2]s
	WHERE date_bucket BETWEEN ? AND ?
	GROUP BY %[1]s
	ORDER BY hits DESC, label ASC
	`, column, rollups.DailyTable)

	args := []interface{}{r.Start, r.End}
	if limit > 0 {
		query += "LIMIT ?"
		args = append(args, limit)
	}

	items := []Item{}
	if err := s.db.WithContext(ctx).Raw(query, args...).Scan(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Service) series(ctx context.Context, table string, r timeframe.Range) ([]BucketItem, error) {
	query := fmt.Sprintf(`
	SELECT date_bucket AS bucket, SUM(hits) AS hits
	FROM %s
	WHERE date_bucket BETWEEN ? AND ?
	GROUP BY date_bucket
	ORDER BY date_bucket ASC
	`, table)

	items := []BucketItem{}
	if err := s.db.WithContext(ctx).Raw(query, r.Start, r.End).Scan(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}
