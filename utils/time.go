package utils

import (
	"strings"
	"time"

	"github.com/araddon/dateparse"
)

// DateLayout is the calendar-date layout used by run requests and exports
const DateLayout = "2006-01-02"

// UTCNow returns the current time in UTC
func UTCNow() time.Time {
	return time.Now().UTC()
}

// TimeParser reads the timestamp formats found in attendance and payment exports.
// Location applies to values without a zone. Ambiguous numeric dates such as
// 03/01/2024 are read month first when PreferMonthFirst is set, day first otherwise.
type TimeParser struct {
	Location         *time.Location
	PreferMonthFirst bool
}

// DefaultTimeParser reads zoneless values as UTC and numeric dates month first
var DefaultTimeParser = TimeParser{Location: time.UTC, PreferMonthFirst: true}

// Parse returns the parsed time in its own offset, or ok=false for blank or unparseable input
func (p TimeParser) Parse(value string) (time.Time, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, false
	}
	loc := p.Location
	if loc == nil {
		loc = time.UTC
	}
	t, err := dateparse.ParseIn(value, loc,
		dateparse.PreferMonthFirst(p.PreferMonthFirst),
		dateparse.RetryAmbiguousDateWithSwap(true),
	)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// ParsePtr is Parse returning nil on failure
func (p TimeParser) ParsePtr(value string) *time.Time {
	t, ok := p.Parse(value)
	if !ok {
		return nil
	}
	return &t
}

// ParseFlexibleTime parses value with DefaultTimeParser
func ParseFlexibleTime(value string) (time.Time, bool) {
	return DefaultTimeParser.Parse(value)
}

// ParseFlexibleTimePtr is ParseFlexibleTime returning nil on failure
func ParseFlexibleTimePtr(value string) *time.Time {
	return DefaultTimeParser.ParsePtr(value)
}

// StartOfDay returns midnight UTC of the calendar day t shows in its own offset,
// so 2024-03-02T00:30:00+01:00 falls on March 2
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// SameDay reports whether a and b fall on the same calendar day, each read in its own offset
func SameDay(a, b time.Time) bool {
	return StartOfDay(a).Equal(StartOfDay(b))
}

// DaysApart returns the absolute number of whole calendar days between a and b
func DaysApart(a, b time.Time) int {
	diff := StartOfDay(a).Sub(StartOfDay(b))
	if diff < 0 {
		diff = -diff
	}
	return int(diff / (24 * time.Hour))
}

// WithinDays reports whether t falls in [from, to] by calendar day. Nil bounds are open.
func WithinDays(t time.Time, from, to *time.Time) bool {
	day := StartOfDay(t)
	if from != nil && day.Before(StartOfDay(*from)) {
		return false
	}
	if to != nil && day.After(StartOfDay(*to)) {
		return false
	}
	return true
}
