package hits

import (
	"net/url"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"github.com/spf13/cast"

	"leanstats/internal/pkg/numeric"
	"leanstats/internal/settings"
)

var textPolicy = bluemonday.StrictPolicy()

// Sanitize validates a raw payload against a settings snapshot and returns
// the canonical hit. It never touches storage.
func Sanitize(raw Payload, s settings.Settings) (Hit, error) {
	pagePath, err := cleanPagePath(raw.PagePath, s)
	if err != nil {
		return Hit{}, err
	}

	deviceClass := cleanDeviceClass(raw.DeviceClass)
	if deviceClass == "" {
		return Hit{}, ErrInvalidDeviceClass
	}

	bucket, err := cleanTimestampBucket(raw.TimestampBucket)
	if err != nil {
		return Hit{}, err
	}

	return Hit{
		PagePath:        pagePath,
		PostID:          cleanPostID(raw.PostID),
		ReferrerDomain:  cleanReferrerDomain(raw.ReferrerDomain),
		DeviceClass:     deviceClass,
		TimestampBucket: bucket,
	}, nil
}

func cleanPagePath(v any, s settings.Settings) (string, error) {
	raw, ok := v.(string)
	if !ok {
		return "", ErrInvalidPagePath
	}

	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", ErrInvalidPagePath
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return "", ErrInvalidPagePath
	}

	path := parsed.EscapedPath()
	if path == "" {
		return "", ErrInvalidPagePath
	}

	path = "/" + strings.TrimLeft(path, "/")
	path = strings.TrimRight(path, "/")
	if path == "" {
		path = "/"
	}

	if query := minimizeQuery(parsed.RawQuery, s); query != "" {
		path += "?" + query
	}

	if len(path) > MaxPagePathLength {
		return "", ErrInvalidPagePath
	}

	return path, nil
}

// minimizeQuery keeps the parameters allowed by the settings and re-encodes
// them sorted by key. Malformed pairs are dropped.
func minimizeQuery(rawQuery string, s settings.Settings) string {
	if rawQuery == "" {
		return ""
	}

	// ParseQuery keeps every well-formed pair even when it reports an error
	parsed, _ := url.ParseQuery(rawQuery)

	kept := url.Values{}
	for key, values := range parsed {
		key = strings.TrimSpace(key)
		if key == "" || !s.AllowsQueryKey(key) {
			continue
		}
		kept[key] = append(kept[key], values...)
	}

	return kept.Encode()
}

func cleanPostID(v any) uint64 {
	if v == nil {
		return 0
	}
	id, err := numeric.ToInt64E(v)
	if err != nil {
		return 0
	}
	if id < 0 {
		id = -id
	}
	return uint64(id)
}

func cleanReferrerDomain(v any) string {
	if v == nil {
		return ""
	}

	candidate := strings.TrimSpace(cast.ToString(v))
	if candidate == "" {
		return ""
	}
	if !strings.Contains(candidate, "://") {
		candidate = "https://" + candidate
	}

	parsed, err := url.Parse(candidate)
	if err != nil {
		return ""
	}

	host := strings.ToLower(parsed.Hostname())
	return strings.TrimSpace(textPolicy.Sanitize(host))
}

func cleanDeviceClass(v any) DeviceClass {
	if v == nil {
		return ""
	}
	class := DeviceClass(sanitizeKey(cast.ToString(v)))
	if !class.Valid() {
		return ""
	}
	return class
}

// sanitizeKey lowercases s and keeps only [a-z0-9_-].
func sanitizeKey(s string) string {
	s = strings.ToLower(s)
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '_' || r == '-' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func cleanTimestampBucket(v any) (int64, error) {
	if v == nil {
		return 0, ErrInvalidTimestampBucket
	}
	ts, err := numeric.ToInt64E(v)
	if err != nil || ts <= 0 {
		return 0, ErrInvalidTimestampBucket
	}

	bucket := ts - ts%BucketSeconds
	if bucket <= 0 {
		return 0, ErrInvalidTimestampBucket
	}
	return bucket, nil
}
