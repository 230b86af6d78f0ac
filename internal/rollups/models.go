// Package rollups folds accepted hits into daily and hourly counters.
package rollups

// DailyRollup counts hits per calendar day and dimension tuple.
type DailyRollup struct {
	DateBucket     string `gorm:"primaryKey;size:10;not null"`
	PagePath       string `gorm:"primaryKey;size:2048;not null"`
	ReferrerDomain string `gorm:"primaryKey;size:255;not null;default:''"`
	DeviceClass    string `gorm:"primaryKey;size:16;not null"`
	Hits           int64  `gorm:"not null;default:0"`
}

func (DailyRollup) TableName() string {
	return DailyTable
}

// HourlyRollup counts hits per hour and dimension tuple.
type HourlyRollup struct {
	DateBucket     string `gorm:"primaryKey;size:19;not null"`
	PagePath       string `gorm:"primaryKey;size:2048;not null"`
	ReferrerDomain string `gorm:"primaryKey;size:255;not null;default:''"`
	DeviceClass    string `gorm:"primaryKey;size:16;not null"`
	Hits           int64  `gorm:"not null;default:0"`
}

func (HourlyRollup) TableName() string {
	return HourlyTable
}

// Table names, shared with the query service.
const (
	DailyTable  = "rollup_daily"
	HourlyTable = "rollup_hourly"
)
