package terms

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// DefaultNetDays is used when a term string cannot be understood.
const DefaultNetDays = 30

var namedTerms = map[string]int{
	"due on receipt": 0,
	"net 7":          7,
	"net 14":         14,
	"net 15":         15,
	"net 30":         30,
	"net 45":         45,
	"net 60":         60,
}

var netPattern = regexp.MustCompile(`^net\s+(\d+)$`)

// NetDays resolves a payment-term label to a day offset. Matching is
// case-insensitive; unknown labels fall back to DefaultNetDays.
func NetDays(term string) int {
	normalized := strings.ToLower(strings.TrimSpace(term))
	if normalized == "" {
		return DefaultNetDays
	}
	if days, ok := namedTerms[normalized]; ok {
		return days
	}
	if match := netPattern.FindStringSubmatch(normalized); match != nil {
		if days, err := strconv.Atoi(match[1]); err == nil {
			return days
		}
	}
	return DefaultNetDays
}

// DueDate computes the due date from an issue date and term label using
// whole-day UTC arithmetic. An explicit due date always wins.
func DueDate(issueDate time.Time, term string, explicit *time.Time) time.Time {
	if explicit != nil && !explicit.IsZero() {
		return explicit.UTC()
	}
	day := issueDate.UTC().Truncate(24 * time.Hour)
	return day.AddDate(0, 0, NetDays(term))
}
