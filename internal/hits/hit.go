// Package hits validates page-view hits and drives them through the ingestion pipeline.
package hits

import "time"

// DeviceClass is the coarse client category of a hit.
type DeviceClass string

const (
	DeviceDesktop DeviceClass = "desktop"
	DeviceTablet  DeviceClass = "tablet"
	DeviceMobile  DeviceClass = "mobile"
	DeviceBot     DeviceClass = "bot"
)

// DeviceClasses lists every accepted device class.
func DeviceClasses() []DeviceClass {
	return []DeviceClass{DeviceDesktop, DeviceTablet, DeviceMobile, DeviceBot}
}

// Valid reports whether d is one of the four device classes.
func (d DeviceClass) Valid() bool {
	switch d {
	case DeviceDesktop, DeviceTablet, DeviceMobile, DeviceBot:
		return true
	}
	return false
}

// BucketSeconds is the width of a timestamp bucket.
const BucketSeconds = 300

// MaxPagePathLength bounds the stored page path, query string included.
const MaxPagePathLength = 2048

// Hit is one validated page-view event.
type Hit struct {
	PagePath        string      `json:"page_path"`
	PostID          uint64      `json:"post_id,omitempty"`
	ReferrerDomain  string      `json:"referrer_domain,omitempty"`
	DeviceClass     DeviceClass `json:"device_class"`
	TimestampBucket int64       `json:"timestamp_bucket"`
}

// Time returns the bucket start as a UTC time.
func (h Hit) Time() time.Time {
	return time.Unix(h.TimestampBucket, 0).UTC()
}

// Payload is the raw hit body as submitted by the tracker. Fields stay
// untyped until Sanitize coerces them.
type Payload struct {
	PagePath        any `json:"page_path"`
	PostID          any `json:"post_id"`
	ReferrerDomain  any `json:"referrer_domain"`
	DeviceClass     any `json:"device_class"`
	TimestampBucket any `json:"timestamp_bucket"`
}
