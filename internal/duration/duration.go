// Package duration reads the phrases operators type for times and assignment counts,
// such as "1 hour and 30 minutes" or "5 assignments".
package duration

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/kurihiro0119/hitbatch/internal/errors"
)

var (
	unitPattern       = regexp.MustCompile(`(\d+\.?\d*)\s*(second|minute|hour|day|week)s?`)
	assignmentPattern = regexp.MustCompile(`(\d+) +assignments?`)
)

var units = map[string]time.Duration{
	"second": time.Second,
	"minute": time.Minute,
	"hour":   time.Hour,
	"day":    24 * time.Hour,
	"week":   7 * 24 * time.Hour,
}

// Parse sums every "<number> <unit>" pair in phrase, truncated to whole seconds
func Parse(phrase string) (time.Duration, error) {
	d, ok := Find(phrase)
	if !ok {
		return 0, errors.NewParseError(fmt.Sprintf("invalid duration %q", phrase))
	}
	return d, nil
}

// Find is Parse without the error, for phrases that may hold no duration at all
func Find(phrase string) (time.Duration, bool) {
	matches := unitPattern.FindAllStringSubmatch(strings.ToLower(phrase), -1)
	if len(matches) == 0 {
		return 0, false
	}
	var seconds float64
	for _, m := range matches {
		n, err := strconv.ParseFloat(m[1], 64)
		if err != nil {
			return 0, false
		}
		seconds += n * units[m[2]].Seconds()
	}
	return time.Duration(int64(seconds)) * time.Second, true
}

// Assignments returns N from a phrase containing "N assignments"
func Assignments(phrase string) (int, bool) {
	m := assignmentPattern.FindStringSubmatch(strings.ToLower(phrase))
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return n, true
}

// Format renders d the way operators type it, e.g. "1 day 2 hours"
func Format(d time.Duration) string {
	if d <= 0 {
		return "0 seconds"
	}
	var parts []string
	for _, u := range []struct {
		name string
		size time.Duration
	}{
		{"week", units["week"]},
		{"day", units["day"]},
		{"hour", units["hour"]},
		{"minute", units["minute"]},
		{"second", units["second"]},
	} {
		n := d / u.size
		if n == 0 {
			continue
		}
		d -= n * u.size
		name := u.name
		if n != 1 {
			name += "s"
		}
		parts = append(parts, fmt.Sprintf("%d %s", n, name))
	}
	return strings.Join(parts, " ")
}
