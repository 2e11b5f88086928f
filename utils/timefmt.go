package utils

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// DateLayout is the canonical calendar-day format used in slot ids and logs.
const DateLayout = "2006-01-02"

var hhmmRe = regexp.MustCompile(`^([01]?\d|2[0-3]):[0-5]\d$`)

// ValidHHMM reports whether s is a 24h clock time like "09:30" or "9:30".
func ValidHHMM(s string) bool {
	return hhmmRe.MatchString(s)
}

// CompactHHMM strips the colon from a clock time, zero-padding the hour, so
// "9:30" becomes "0930". Used for slot id suffixes.
func CompactHHMM(s string) string {
	s = strings.ReplaceAll(s, ":", "")
	if len(s) == 3 {
		s = "0" + s
	}
	return s
}

// MinutesFromMidnight converts a clock time to minutes since midnight,
// returning -1 for a malformed value.
func MinutesFromMidnight(s string) int {
	if !ValidHHMM(s) {
		return -1
	}
	parts := strings.SplitN(s, ":", 2)
	h, _ := strconv.Atoi(parts[0])
	m, _ := strconv.Atoi(parts[1])
	return h*60 + m
}

// UTCMidnight truncates t to the start of its UTC calendar day. All slot and
// token dates are stored this way so date equality is plain equality.
func UTCMidnight(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

// ParseDate parses a canonical calendar day.
func ParseDate(s string) (time.Time, error) {
	return time.ParseInLocation(DateLayout, s, time.UTC)
}

// FormatDate renders a canonical calendar day.
func FormatDate(t time.Time) string {
	return t.UTC().Format(DateLayout)
}

// SameDay reports whether a and b fall on the same UTC calendar day.
func SameDay(a, b time.Time) bool {
	return UTCMidnight(a).Equal(UTCMidnight(b))
}
