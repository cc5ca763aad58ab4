package services

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"
)

var (
	hourPattern   = regexp.MustCompile(`(\d+)\s*(?:hours?|hrs?|h)\b`)
	minutePattern = regexp.MustCompile(`(\d+)\s*(?:minutes?|mins?|m)\b`)
	barePattern   = regexp.MustCompile(`^\s*(\d+)\s*$`)

	durationCacheMu sync.RWMutex
	durationCache   = map[string]int{}
)

// ParseDurationMinutes converts a human-readable duration ("15 min",
// "1hr 30min", "2 hours") into minutes. Unparseable input yields 0 rather
// than an error. Results are memoized on the literal string.
func ParseDurationMinutes(s string) int {
	durationCacheMu.RLock()
	if v, ok := durationCache[s]; ok {
		durationCacheMu.RUnlock()
		return v
	}
	durationCacheMu.RUnlock()

	minutes := parseDuration(s)

	durationCacheMu.Lock()
	durationCache[s] = minutes
	durationCacheMu.Unlock()

	return minutes
}

func parseDuration(s string) int {
	lower := strings.ToLower(strings.TrimSpace(s))
	if lower == "" {
		return 0
	}

	// Bare numbers are taken as minutes.
	if m := barePattern.FindStringSubmatch(lower); m != nil {
		n, _ := strconv.Atoi(m[1])
		return n
	}

	total := 0
	if m := hourPattern.FindStringSubmatch(lower); m != nil {
		n, _ := strconv.Atoi(m[1])
		total += n * 60
	}
	if m := minutePattern.FindStringSubmatch(lower); m != nil {
		n, _ := strconv.Atoi(m[1])
		total += n
	}
	return total
}

// FormatMinutes renders a minute count as the display string used on chain
// totals ("1hr 30min", "45 min").
func FormatMinutes(minutes int) string {
	if minutes <= 0 {
		return "0 min"
	}
	hours := minutes / 60
	rest := minutes % 60
	switch {
	case hours == 0:
		return fmt.Sprintf("%d min", rest)
	case rest == 0:
		return fmt.Sprintf("%dhr", hours)
	default:
		return fmt.Sprintf("%dhr %dmin", hours, rest)
	}
}
