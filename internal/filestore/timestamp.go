package filestore

import (
	"encoding/json"
	"fmt"
	"time"
)

// naiveLayouts are accepted on read for timestamps written without a zone
// (read as UTC).
var naiveLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// Time is an ISO-8601 timestamp as stored in metadata documents.
// It is written as RFC 3339 with nanoseconds in UTC.
type Time struct {
	time.Time
}

// Now returns the current time without monotonic reading, in UTC.
func Now() Time {
	return Time{time.Now().UTC().Round(0)}
}

// After returns a timestamp strictly later than prev: now, or prev plus one
// microsecond when the clock has not advanced past prev.
func After(prev Time) Time {
	now := Now()
	if !now.After(prev.Time) {
		now = Time{prev.Add(time.Microsecond)}
	}
	return now
}

// MarshalJSON implements json.Marshaler.
func (t Time) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.UTC().Format(time.RFC3339Nano))
}

// UnmarshalJSON implements json.Unmarshaler.
func (t *Time) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		t.Time = time.Time{}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("timestamp must be a string: %w", err)
	}
	parsed, err := ParseTime(s)
	if err != nil {
		return err
	}
	t.Time = parsed
	return nil
}

// ParseTime parses an RFC 3339 timestamp or a zone-less ISO-8601 one.
func ParseTime(s string) (time.Time, error) {
	if parsed, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return parsed.UTC(), nil
	}
	for _, layout := range naiveLayouts {
		if parsed, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return parsed, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid timestamp %q", s)
}
