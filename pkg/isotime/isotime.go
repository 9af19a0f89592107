// Package isotime provides the canonical unzoned clock used for all
// persisted timestamps, plus tolerant ISO-8601 parsing for wire input.
//
// Persisted timestamps are naive UTC: wall-clock values with the zone
// annotation stripped. Zoned input is converted to UTC before the offset
// is dropped, so every stored value lives on one clock.
package isotime

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Layout is the canonical wire format: ISO-8601 without zone annotation.
// Fractional seconds are emitted to microsecond precision when present.
const Layout = "2006-01-02T15:04:05.999999"

// ErrInvalid reports input that is not a recognizable ISO-8601 timestamp.
var ErrInvalid = errors.New("isotime: invalid timestamp")

// Time is a time.Time pinned to the canonical clock. It marshals to the
// naive ISO-8601 Layout and unmarshals tolerantly (see Parse).
type Time time.Time

// Now returns the current instant on the canonical clock.
func Now() Time {
	return At(time.Now())
}

// At converts any time to the canonical clock: the instant is translated
// to UTC and the offset is discarded.
func At(t time.Time) Time {
	return Time(t.UTC())
}

// FromUnixNano converts a stored nanosecond value to canonical time.
func FromUnixNano(ns int64) Time {
	return Time(time.Unix(0, ns).UTC())
}

// Parse reads an ISO-8601 timestamp, tolerating the sloppy forms clients
// actually send: surrounding whitespace, stray single or double quote
// characters, a trailing "Z", an explicit offset, or a space instead of
// the "T" separator. Zoned values are converted to UTC; the result is
// always on the canonical clock.
func Parse(s string) (Time, error) {
	s = strings.TrimSpace(s)
	s = strings.Trim(s, `"'`)
	s = strings.TrimSpace(s)
	if s == "" {
		return Time{}, ErrInvalid
	}
	if strings.IndexByte(s, ' ') == 10 {
		s = s[:10] + "T" + s[11:]
	}

	layouts := []string{
		"2006-01-02T15:04:05.999999999Z07:00",
		"2006-01-02T15:04:05.999999999",
		"2006-01-02T15:04",
		"2006-01-02",
	}
	for _, layout := range layouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			return At(t), nil
		}
	}
	return Time{}, fmt.Errorf("%w: %q", ErrInvalid, s)
}

// Time returns the underlying time.Time value.
func (t Time) Time() time.Time {
	return time.Time(t)
}

// UnixNano returns the instant as nanoseconds for storage keys and rows.
func (t Time) UnixNano() int64 {
	return time.Time(t).UnixNano()
}

// IsZero reports whether t is the zero instant.
func (t Time) IsZero() bool {
	return time.Time(t).IsZero()
}

// Before reports whether t is before u.
func (t Time) Before(u Time) bool {
	return time.Time(t).Before(time.Time(u))
}

// After reports whether t is after u.
func (t Time) After(u Time) bool {
	return time.Time(t).After(time.Time(u))
}

// Sub returns the duration t-u.
func (t Time) Sub(u Time) time.Duration {
	return time.Time(t).Sub(time.Time(u))
}

// String returns the canonical wire form.
func (t Time) String() string {
	return time.Time(t).Format(Layout)
}

// MarshalJSON implements json.Marshaler.
func (t Time) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

// UnmarshalJSON implements json.Unmarshaler.
func (t *Time) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		// Tolerate bare (unquoted) values produced by sloppy encoders.
		s = string(b)
	}
	parsed, err := Parse(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}
