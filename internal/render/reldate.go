package render

import (
	"math"
	"strconv"
	"strings"
	"time"
)

// createdAtLayouts are the timestamp formats the search and REST endpoints use.
var createdAtLayouts = []string{
	time.RFC1123Z,
	time.RFC1123,
	time.RubyDate,
	time.RFC3339,
	"Mon, 2 Jan 2006 15:04:05 -0700",
}

// ParseCreatedAt parses a tweet timestamp in any of the known layouts.
func ParseCreatedAt(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range createdAtLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// RelativeDate turns createdAt into a phrase relative to now. The second
// return value is false when nothing should be shown: unparseable dates,
// dates in the future, and anything 31 days or older.
func RelativeDate(createdAt string, now time.Time) (string, bool) {
	t, ok := ParseCreatedAt(createdAt)
	if !ok {
		return "", false
	}

	diff := now.Sub(t).Seconds()
	dayDiff := int(math.Floor(diff / 86400))
	if dayDiff < 0 || dayDiff >= 31 {
		return "", false
	}

	if dayDiff == 0 {
		switch {
		case diff < 60:
			return "just now", true
		case diff < 120:
			return "1 minute ago", true
		case diff < 3600:
			return strconv.Itoa(int(math.Floor(diff/60))) + " minutes ago", true
		case diff < 7200:
			return "1 hour ago", true
		default:
			return strconv.Itoa(int(math.Floor(diff/3600))) + " hours ago", true
		}
	}

	switch {
	case dayDiff == 1:
		return "Yesterday", true
	case dayDiff < 7:
		return strconv.Itoa(dayDiff) + " days ago", true
	}

	weeks := int(math.Ceil(float64(dayDiff) / 7))
	if weeks == 1 {
		return "1 week ago", true
	}
	return strconv.Itoa(weeks) + " weeks ago", true
}
