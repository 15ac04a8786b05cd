// Package timefmt parses the timestamp and duration shapes providers and
// stored results use.
package timefmt

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

const DateLayout = "2006-01-02"

var timestampFormats = []string{
	time.RFC3339,
	"2006-01-02T15:04:05-0700",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04",
}

// ParseTimestamp accepts offset-qualified and local provider timestamps.
// Local timestamps are interpreted in UTC.
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t, nil
		}
	}

	return time.Time{}, &time.ParseError{
		Value:   s,
		Message: "unable to parse time string",
	}
}

func ParseDate(s string) (time.Time, error) {
	return time.Parse(DateLayout, strings.TrimSpace(s))
}

var (
	isoDurationRe     = regexp.MustCompile(`^P(?:(\d+)D)?(?:T(?:(\d+)H)?(?:(\d+)M)?(?:\d+(?:\.\d+)?S)?)?$`)
	displayDurationRe = regexp.MustCompile(`^(?:(\d+)\s*h)?\s*(?:(\d+)\s*m)?$`)
)

// ParseDurationMinutes reads either an ISO-8601 duration ("PT5H30M",
// "P1DT2H") or a display string ("5h 30m", "5h30m", "45m"). Anything else
// yields 0.
func ParseDurationMinutes(s string) int {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}

	upper := strings.ToUpper(s)
	if m := isoDurationRe.FindStringSubmatch(upper); m != nil && upper != "P" && upper != "PT" {
		return atoi(m[1])*24*60 + atoi(m[2])*60 + atoi(m[3])
	}

	lower := strings.ToLower(s)
	if m := displayDurationRe.FindStringSubmatch(lower); m != nil && (m[1] != "" || m[2] != "") {
		return atoi(m[1])*60 + atoi(m[2])
	}

	return 0
}

func FormatDuration(minutes int) string {
	if minutes < 0 {
		minutes = 0
	}
	return fmt.Sprintf("%dh %dm", minutes/60, minutes%60)
}

func atoi(s string) int {
	if s == "" {
		return 0
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return n
}
