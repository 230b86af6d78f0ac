package settings

import (
	"strings"

	"github.com/spf13/cast"

	"leanstats/internal/pkg/numeric"
	"leanstats/internal/users"
)

// Sanitize turns an untrusted settings map into a valid Settings.
// It never fails: invalid values are clamped or replaced by defaults.
func Sanitize(raw map[string]any) Settings {
	out := Defaults()

	if v, ok := raw[KeyStrictMode]; ok {
		out.StrictMode = truthy(v)
	}
	if v, ok := raw[KeyRespectDNTGPC]; ok {
		out.RespectDNTGPC = truthy(v)
	}
	if v, ok := raw[KeyURLStripQuery]; ok {
		out.URLStripQuery = truthy(v)
	}
	if v, ok := raw[KeyURLQueryAllowlist]; ok {
		out.URLQueryAllowlist = uniqueList(v, nil)
	}
	if v, ok := raw[KeyRawLogsRetentionDays]; ok {
		out.RawLogsRetentionDays = clampRetention(numeric.ToInt(v))
	}
	if v, ok := raw[KeyExcludedRoles]; ok {
		out.ExcludedRoles = uniqueList(v, users.IsKnownRole)
	}

	return out
}

// Merge applies a partial update over the current settings and sanitizes the result.
func Merge(current Settings, update map[string]any) Settings {
	merged := current.ToMap()
	for k, v := range update {
		merged[k] = v
	}
	return Sanitize(merged)
}

func truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case string:
		switch strings.ToLower(strings.TrimSpace(t)) {
		case "", "0", "false", "no", "off":
			return false
		}
		return true
	}

	b, err := cast.ToBoolE(v)
	if err != nil {
		return false
	}
	return b
}

func clampRetention(days int) int {
	if days < MinRetentionDays {
		return MinRetentionDays
	}
	if days > MaxRetentionDays {
		return MaxRetentionDays
	}
	return days
}

// uniqueList accepts a comma-separated string or a list, trims entries,
// drops empties and duplicates, and keeps first-seen order.
func uniqueList(v any, keep func(string) bool) []string {
	var entries []string
	switch t := v.(type) {
	case nil:
	case string:
		entries = strings.Split(t, ",")
	default:
		list, err := cast.ToStringSliceE(v)
		if err != nil {
			return []string{}
		}
		entries = list
	}

	out := make([]string, 0, len(entries))
	seen := make(map[string]struct{}, len(entries))
	for _, entry := range entries {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		if keep != nil && !keep(entry) {
			continue
		}
		if _, dup := seen[entry]; dup {
			continue
		}
		seen[entry] = struct{}{}
		out = append(out, entry)
	}
	return out
}
