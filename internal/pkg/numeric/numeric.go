// Package numeric coerces loosely typed request values to integers.
package numeric

import (
	"strings"

	"github.com/spf13/cast"
)

// ToInt64E converts v like cast.ToInt64E, except that strings are always
// read as base 10: "010" is 10, not octal 8.
func ToInt64E(v any) (int64, error) {
	if s, ok := v.(string); ok {
		v = decimal(s)
	}
	return cast.ToInt64E(v)
}

// ToInt converts v to an int, returning 0 when it is not numeric.
func ToInt(v any) int {
	if s, ok := v.(string); ok {
		v = decimal(s)
	}
	return cast.ToInt(v)
}

// decimal strips the leading zeros that would make cast switch base.
func decimal(s string) string {
	s = strings.TrimSpace(s)

	sign := ""
	if strings.HasPrefix(s, "-") || strings.HasPrefix(s, "+") {
		sign, s = s[:1], s[1:]
	}

	trimmed := strings.TrimLeft(s, "0")
	if trimmed == "" && s != "" {
		trimmed = "0"
	} else if strings.HasPrefix(trimmed, ".") {
		trimmed = "0" + trimmed
	}
	return sign + trimmed
}
