package domain

import (
	"fmt"
	"time"
)

// WindowSize is the fixed aggregation window of a rule
type WindowSize string

// Supported window sizes
const (
	Window1m  WindowSize = "1m"
	Window5m  WindowSize = "5m"
	Window10m WindowSize = "10m"
	Window1h  WindowSize = "1h"
)

// Metric is the computation a rule performs over a window
type Metric string

// Supported metrics
const (
	MetricEventCount  Metric = "event_count"
	MetricActiveUsers Metric = "active_users"
)

// AggregationRule is a declarative windowed metric definition. Rules are
// created through the admin API and read-only everywhere else; the pipeline
// only filters on IsActive.
type AggregationRule struct {
	RuleID     string     `json:"rule_id" bson:"rule_id" validate:"required"`
	WindowSize WindowSize `json:"window_size" bson:"window_size" validate:"required,oneof=1m 5m 10m 1h"`
	Metric     Metric     `json:"metric" bson:"metric" validate:"required,oneof=event_count active_users"`
	GroupBy    []string   `json:"group_by" bson:"group_by" validate:"required,min=1"`
	TopN       *int       `json:"top_n,omitempty" bson:"top_n,omitempty"`
	IsActive   bool       `json:"is_active" bson:"is_active"`
	CreatedAt  time.Time  `json:"created_at" bson:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at" bson:"updated_at"`
}

// Interval maps the window size to a (value, unit) pair usable in a
// ClickHouse INTERVAL expression.
func (w WindowSize) Interval() (int, string, error) {
	switch w {
	case Window1m:
		return 1, "MINUTE", nil
	case Window5m:
		return 5, "MINUTE", nil
	case Window10m:
		return 10, "MINUTE", nil
	case Window1h:
		return 1, "HOUR", nil
	default:
		return 0, "", fmt.Errorf("unknown window size: %q", w)
	}
}

// Duration returns the window size as a time.Duration
func (w WindowSize) Duration() (time.Duration, error) {
	switch w {
	case Window1m:
		return time.Minute, nil
	case Window5m:
		return 5 * time.Minute, nil
	case Window10m:
		return 10 * time.Minute, nil
	case Window1h:
		return time.Hour, nil
	default:
		return 0, fmt.Errorf("unknown window size: %q", w)
	}
}

// Truncate maps t to the start of the window that contains it
func (w WindowSize) Truncate(t time.Time) (time.Time, error) {
	d, err := w.Duration()
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC().Truncate(d), nil
}
