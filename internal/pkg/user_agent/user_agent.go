package user_agent

import (
	"embed"
	"fmt"
	"strings"
	"sync"

	"go.elara.ws/pcre"
	"gopkg.in/yaml.v3"
)

//go:embed database/bots.yml
var databaseFiles embed.FS

// Bot entry structure
type BotEntry struct {
	Regex    string `yaml:"regex"`
	Name     string `yaml:"name"`
	Category string `yaml:"category"`
	URL      string `yaml:"url"`
	Producer struct {
		Name string `yaml:"name"`
		URL  string `yaml:"url"`
	} `yaml:"producer"`
}

// Compiled regex cache
type RegexCache struct {
	compiled map[string]*pcre.Regexp
	mutex    sync.RWMutex
}

func newRegexCache() *RegexCache {
	return &RegexCache{
		compiled: make(map[string]*pcre.Regexp),
	}
}

func (rc *RegexCache) get(pattern string) (*pcre.Regexp, error) {
	rc.mutex.RLock()
	if regex, exists := rc.compiled[pattern]; exists {
		rc.mutex.RUnlock()
		return regex, nil
	}
	rc.mutex.RUnlock()

	rc.mutex.Lock()
	defer rc.mutex.Unlock()

	// Double-check pattern
	if regex, exists := rc.compiled[pattern]; exists {
		return regex, nil
	}

	regex, err := pcre.Compile("(?i)" + pattern)
	if err != nil {
		return nil, err
	}
	rc.compiled[pattern] = regex
	return regex, nil
}

// Global detector instance
var (
	detector *BotDetector
	once     sync.Once
)

type BotDetector struct {
	bots       []BotEntry
	regexCache *RegexCache
}

func getDetector() *BotDetector {
	once.Do(func() {
		detector = &BotDetector{regexCache: newRegexCache()}

		if data, err := databaseFiles.ReadFile("database/bots.yml"); err == nil {
			if err := yaml.Unmarshal(data, &detector.bots); err != nil {
				fmt.Printf("Error parsing bots.yml: %v\n", err)
			}
		}
	})
	return detector
}

func (d *BotDetector) parseBot(userAgent string) *BotEntry {
	for i := range d.bots {
		bot := &d.bots[i]
		if regex, err := d.regexCache.get(bot.Regex); err == nil {
			if regex.MatchString(userAgent) {
				return bot
			}
		}
	}
	return nil
}

// DetectBot returns the bots.yml entry matching userAgent, if any.
func DetectBot(userAgent string) (BotEntry, bool) {
	if strings.TrimSpace(userAgent) == "" {
		return BotEntry{}, false
	}
	if bot := getDetector().parseBot(userAgent); bot != nil {
		return *bot, true
	}
	return BotEntry{}, false
}

// IsBot reports whether the user agent belongs to a known crawler or tool.
func IsBot(userAgent string) bool {
	_, ok := DetectBot(userAgent)
	return ok
}
