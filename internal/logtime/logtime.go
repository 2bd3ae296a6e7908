// Package logtime parses the timestamps the Arena client writes, in their
// many shapes: local wall-clock strings in about a dozen regional formats,
// POSIX milliseconds, .NET-style 100-nanosecond ticks since year 1, and
// ISO-8601 strings.
package logtime

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// localLayouts are the accepted local-time formats, tried in order.
var localLayouts = [...]string{
	"2006-01-02 3:04:05 PM",
	"2006-01-02 15:04:05",
	"1/2/2006 3:04:05 PM",
	"1/2/2006 15:04:05",
	"2006/1/2 3:04:05 PM",
	"2006/1/2 15:04:05",
	"2/1/2006 15:04:05",
	"2/1/2006 3:04:05 PM",
	"2.1.2006 15:04:05",
	"2.1.2006 3:04:05 PM",
	"2006-01-02T15:04:05",
}

// isoLayouts are tried for non-numeric payload timestamps.
var isoLayouts = [...]string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
}

// maxPlausibleUnixMilli is the number of milliseconds between the epoch and
// year 3000. Numeric timestamps below it are POSIX milliseconds; values at
// or above it are 100ns ticks since year 1.
var maxPlausibleUnixMilli = time.Date(3000, 1, 1, 0, 0, 0, 0, time.UTC).UnixMilli()

// secondsYear1ToEpoch is the span between 0001-01-01 and the Unix epoch in
// the proleptic Gregorian calendar.
const secondsYear1ToEpoch = 62135596800

// FormatError reports a timestamp that matched no accepted format.
type FormatError struct {
	Value string
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("unsupported time format %q", e.Value)
}

// ParseLocal converts a local timestamp string from an entry marker into a
// time. Trailing separator junk is stripped and anything after a ": "
// delimiter is ignored before the layouts are tried in order.
func ParseLocal(raw string) (time.Time, error) {
	s := strings.TrimRight(raw, ": /")
	if i := strings.Index(s, ": "); i >= 0 {
		s = s[:i]
	}
	for _, layout := range localLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, &FormatError{Value: raw}
}

// ResolveUTC converts a payload timestamp value into a UTC time.
//
// Numeric values are disambiguated by domain: below maxPlausibleUnixMilli
// they are POSIX milliseconds, otherwise 100ns ticks since year 1. Non-
// numeric strings are parsed as ISO-8601.
func ResolveUTC(v any) (time.Time, error) {
	switch ts := v.(type) {
	case float64:
		return fromNumeric(int64(ts)), nil
	case int64:
		return fromNumeric(ts), nil
	case int:
		return fromNumeric(int64(ts)), nil
	case string:
		if n, err := strconv.ParseInt(strings.TrimSpace(ts), 10, 64); err == nil {
			return fromNumeric(n), nil
		}
		for _, layout := range isoLayouts {
			if t, err := time.Parse(layout, ts); err == nil {
				return t.UTC(), nil
			}
		}
		return time.Time{}, &FormatError{Value: ts}
	default:
		return time.Time{}, fmt.Errorf("timestamp has unusable type %T", v)
	}
}

func fromNumeric(n int64) time.Time {
	if n < maxPlausibleUnixMilli {
		return time.UnixMilli(n).UTC()
	}
	// 100ns ticks since 0001-01-01. Converted via seconds to avoid
	// overflowing time.Duration.
	secs := n / 10_000_000
	nanos := (n % 10_000_000) * 100
	return time.Unix(secs-secondsYear1ToEpoch, nanos).UTC()
}
