package settings

// Settings controls how the hit pipeline treats incoming traffic.
// Values are immutable snapshots: writers build a new Settings and persist it whole.
type Settings struct {
	StrictMode           bool     `json:"strict_mode"`
	RespectDNTGPC        bool     `json:"respect_dnt_gpc"`
	URLStripQuery        bool     `json:"url_strip_query"`
	URLQueryAllowlist    []string `json:"url_query_allowlist"`
	RawLogsRetentionDays int      `json:"raw_logs_retention_days"`
	ExcludedRoles        []string `json:"excluded_roles"`
}

// Setting keys as accepted by the admin endpoint and stored in the JSON document.
const (
	KeyStrictMode           = "strict_mode"
	KeyRespectDNTGPC        = "respect_dnt_gpc"
	KeyURLStripQuery        = "url_strip_query"
	KeyURLQueryAllowlist    = "url_query_allowlist"
	KeyRawLogsRetentionDays = "raw_logs_retention_days"
	KeyExcludedRoles        = "excluded_roles"
)

// Keys lists every setting key.
func Keys() []string {
	return []string{
		KeyStrictMode,
		KeyRespectDNTGPC,
		KeyURLStripQuery,
		KeyURLQueryAllowlist,
		KeyRawLogsRetentionDays,
		KeyExcludedRoles,
	}
}

const (
	MinRetentionDays     = 1
	MaxRetentionDays     = 365
	DefaultRetentionDays = 30
)

// Defaults returns the settings used on install and for missing fields.
func Defaults() Settings {
	return Settings{
		StrictMode:           false,
		RespectDNTGPC:        true,
		URLStripQuery:        true,
		URLQueryAllowlist:    []string{},
		RawLogsRetentionDays: DefaultRetentionDays,
		ExcludedRoles:        []string{},
	}
}

// AllowsQueryKey reports whether a query parameter survives minimization.
func (s Settings) AllowsQueryKey(key string) bool {
	if !s.URLStripQuery {
		return true
	}
	for _, allowed := range s.URLQueryAllowlist {
		if allowed == key {
			return true
		}
	}
	return false
}

// ToMap renders the settings with their public keys, used to merge partial updates.
func (s Settings) ToMap() map[string]any {
	return map[string]any{
		KeyStrictMode:           s.StrictMode,
		KeyRespectDNTGPC:        s.RespectDNTGPC,
		KeyURLStripQuery:        s.URLStripQuery,
		KeyURLQueryAllowlist:    append([]string{}, s.URLQueryAllowlist...),
		KeyRawLogsRetentionDays: s.RawLogsRetentionDays,
		KeyExcludedRoles:        append([]string{}, s.ExcludedRoles...),
	}
}
