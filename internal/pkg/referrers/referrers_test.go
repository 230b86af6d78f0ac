package referrers

import "testing"

func TestFriendlyName(t *testing.T) {
	tests := []struct {
		hostname string
		expected string
	}{
		// Known referrers
		{"google.com", "Google"},
		{"news.ycombinator.com", "Hacker News"},
		{"x.com", "X/Twitter"},
		{"t.co", "X/Twitter"},
		{"reddit.com", "Reddit"},

		// With www prefix
		{"www.google.com", "Google"},
		{"www.reddit.com", "Reddit"},

		// Subdomains of known referrers
		{"m.facebook.com", "Facebook"},
		{"l.instagram.com", "Instagram"},
		{"old.reddit.com", "Reddit"},

		// The most specific known domain wins
		{"mail.google.com", "Gmail"},

		// Unknown referrers (capitalized)
		{"example.com", "Example.com"},
		{"www.example.com", "Example.com"},

		// Case insensitive
		{"GOOGLE.COM", "Google"},

		// Direct traffic
		{"", "Direct"},
	}

	for _, tt := range tests {
		t.Run(tt.hostname, func(t *testing.T) {
			got := FriendlyName(tt.hostname)
			if got != tt.expected {
				t.Errorf("FriendlyName(%q) = %q, want %q", tt.hostname, got, tt.expected)
			}
		})
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		domain   string
		category string
	}{
		{"", CategoryDirect},
		{"duckduckgo.com", CategorySearch},
		{"www.linkedin.com", CategorySocial},
		{"lobste.rs", CategoryCommunity},
		{"bbc.co.uk", CategoryNews},
		{"outlook.live.com", CategoryEmail},
		{"bit.ly", CategoryShortener},
		{"blog.example.org", CategoryWebsite},
	}

	for _, tt := range tests {
		t.Run(tt.domain, func(t *testing.T) {
			got := Classify(tt.domain)
			if got.Category != tt.category {
				t.Errorf("Classify(%q).Category = %q, want %q", tt.domain, got.Category, tt.category)
			}
		})
	}
}
