package domain

import (
	"fmt"
	"time"
)

// Event is a single ingested event. Events are immutable once accepted;
// EventID is client-supplied and unique, UserID doubles as the log partition
// key so events for one user keep their relative order end to end.
type Event struct {
	EventID   string                 `json:"event_id" bson:"event_id" validate:"required"`
	UserID    string                 `json:"user_id" bson:"user_id" validate:"required"`
	EventType string                 `json:"event_type" bson:"event_type" validate:"required"`
	Timestamp time.Time              `json:"timestamp" bson:"timestamp" validate:"required"`
	Payload   map[string]interface{} `json:"payload,omitempty" bson:"payload,omitempty"`
}

// Timestamp layouts accepted from raw messages. The wire convention is
// ISO-8601 with a Z-suffix, but a bare local-less timestamp is treated as UTC.
const (
	timestampLayoutNoZone = "2006-01-02T15:04:05"
)

// NormalizeTimestamp converts a raw timestamp value into a UTC instant.
// Accepts an already-parsed time.Time or an ISO-8601 string.
func NormalizeTimestamp(v interface{}) (time.Time, error) {
	switch ts := v.(type) {
	case time.Time:
		return ts.UTC(), nil
	case string:
		if t, err := time.Parse(time.RFC3339, ts); err == nil {
			return t.UTC(), nil
		}
		if t, err := time.Parse(timestampLayoutNoZone, ts); err == nil {
			return t.UTC(), nil
		}
		return time.Time{}, fmt.Errorf("unparsable timestamp: %q", ts)
	case nil:
		return time.Time{}, fmt.Errorf("missing timestamp")
	default:
		return time.Time{}, fmt.Errorf("unsupported timestamp type %T", v)
	}
}
