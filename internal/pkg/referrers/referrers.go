package referrers

import "strings"

// Source categories
const (
	CategoryDirect    = "direct"
	CategorySearch    = "search"
	CategorySocial    = "social"
	CategoryCommunity = "community"
	CategoryNews      = "news"
	CategoryEmail     = "email"
	CategoryShortener = "shortener"
	CategoryWebsite   = "website"
)

// DirectName labels hits without a referrer.
const DirectName = "Direct"

// Source describes where a referred visit came from.
type Source struct {
	Domain   string `json:"domain"`
	Name     string `json:"name"`
	Category string `json:"category"`
}

type known struct {
	name     string
	category string
}

// Common referrer hostnames mapped to friendly display names
var knownReferrers = map[string]known{
	// Search engines
	"google.com":     {"Google", CategorySearch},
	"google.co.uk":   {"Google", CategorySearch},
	"google.de":      {"Google", CategorySearch},
	"google.fr":      {"Google", CategorySearch},
	"google.es":      {"Google", CategorySearch},
	"google.it":      {"Google", CategorySearch},
	"google.ca":      {"Google", CategorySearch},
	"google.com.au":  {"Google", CategorySearch},
	"google.co.jp":   {"Google", CategorySearch},
	"google.com.br":  {"Google", CategorySearch},
	"bing.com":       {"Bing", CategorySearch},
	"duckduckgo.com": {"DuckDuckGo", CategorySearch},
	"yahoo.com":      {"Yahoo", CategorySearch},
	"baidu.com":      {"Baidu", CategorySearch},
	"yandex.ru":      {"Yandex", CategorySearch},
	"ecosia.org":     {"Ecosia", CategorySearch},
	"kagi.com":       {"Kagi", CategorySearch},
	"qwant.com":      {"Qwant", CategorySearch},

	// Social media
	"x.com":           {"X/Twitter", CategorySocial},
	"twitter.com":     {"X/Twitter", CategorySocial},
	"t.co":            {"X/Twitter", CategorySocial},
	"facebook.com":    {"Facebook", CategorySocial},
	"fb.com":          {"Facebook", CategorySocial},
	"instagram.com":   {"Instagram", CategorySocial},
	"linkedin.com":    {"LinkedIn", CategorySocial},
	"lnkd.in":         {"LinkedIn", CategorySocial},
	"tiktok.com":      {"TikTok", CategorySocial},
	"pinterest.com":   {"Pinterest", CategorySocial},
	"threads.net":     {"Threads", CategorySocial},
	"bsky.app":        {"Bluesky", CategorySocial},
	"mastodon.social": {"Mastodon", CategorySocial},
	"youtube.com":     {"YouTube", CategorySocial},
	"youtu.be":        {"YouTube", CategorySocial},
	"snapchat.com":    {"Snapchat", CategorySocial},
	"whatsapp.com":    {"WhatsApp", CategorySocial},
	"t.me":            {"Telegram", CategorySocial},
	"telegram.org":    {"Telegram", CategorySocial},

	// Communities
	"reddit.com":           {"Reddit", CategoryCommunity},
	"news.ycombinator.com": {"Hacker News", CategoryCommunity},
	"hn.algolia.com":       {"Hacker News", CategoryCommunity},
	"lobste.rs":            {"Lobsters", CategoryCommunity},
	"producthunt.com":      {"Product Hunt", CategoryCommunity},
	"indiehackers.com":     {"Indie Hackers", CategoryCommunity},
	"dev.to":               {"DEV Community", CategoryCommunity},
	"medium.com":           {"Medium", CategoryCommunity},
	"substack.com":         {"Substack", CategoryCommunity},
	"github.com":           {"GitHub", CategoryCommunity},
	"gitlab.com":           {"GitLab", CategoryCommunity},
	"stackoverflow.com":    {"Stack Overflow", CategoryCommunity},
	"discord.com":          {"Discord", CategoryCommunity},
	"slack.com":            {"Slack", CategoryCommunity},
	"wordpress.org":        {"WordPress.org", CategoryCommunity},

	// News
	"nytimes.com":        {"NY Times", CategoryNews},
	"washingtonpost.com": {"Washington Post", CategoryNews},
	"theguardian.com":    {"The Guardian", CategoryNews},
	"bbc.com":            {"BBC", CategoryNews},
	"bbc.co.uk":          {"BBC", CategoryNews},
	"cnn.com":            {"CNN", CategoryNews},
	"reuters.com":        {"Reuters", CategoryNews},
	"techcrunch.com":     {"TechCrunch", CategoryNews},
	"theverge.com":       {"The Verge", CategoryNews},
	"arstechnica.com":    {"Ars Technica", CategoryNews},

	// Email providers (for newsletter clicks)
	"mail.google.com":    {"Gmail", CategoryEmail},
	"outlook.live.com":   {"Outlook", CategoryEmail},
	"outlook.office.com": {"Outlook", CategoryEmail},
	"mail.yahoo.com":     {"Yahoo Mail", CategoryEmail},
	"mail.proton.me":     {"Proton Mail", CategoryEmail},

	// Link shorteners
	"bit.ly":      {"Bitly", CategoryShortener},
	"tinyurl.com": {"TinyURL", CategoryShortener},
	"ow.ly":       {"Hootsuite", CategoryShortener},
}

// Classify names the source behind a referrer domain. An empty domain is a direct visit.
func Classify(domain string) Source {
	hostname := strings.ToLower(strings.TrimSpace(domain))
	if hostname == "" {
		return Source{Domain: "", Name: DirectName, Category: CategoryDirect}
	}

	if k, ok := lookup(hostname); ok {
		return Source{Domain: hostname, Name: k.name, Category: k.category}
	}

	return Source{
		Domain:   hostname,
		Name:     capitalizeFirst(strings.TrimPrefix(hostname, "www.")),
		Category: CategoryWebsite,
	}
}

// FriendlyName returns a human-friendly name for a referrer hostname.
func FriendlyName(hostname string) string {
	return Classify(hostname).Name
}

// lookup tries the exact host, the host without www., then each parent
// domain from the most to the least specific.
func lookup(hostname string) (known, bool) {
	if k, ok := knownReferrers[hostname]; ok {
		return k, true
	}

	hostname = strings.TrimPrefix(hostname, "www.")
	for {
		if k, ok := knownReferrers[hostname]; ok {
			return k, true
		}
		dot := strings.IndexByte(hostname, '.')
		if dot < 0 {
			return known{}, false
		}
		hostname = hostname[dot+1:]
	}
}

// capitalizeFirst capitalizes the first letter of a string
func capitalizeFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
