package domain

import "time"

// FactRow is one normalized event row destined for the events_fact table
type FactRow struct {
	EventID   string
	UserID    string
	EventType string
	Timestamp time.Time
}

// AggregateRow is one computed metric value for a (rule, window, group)
// combination in the events_agg table. Later writes for the same key
// supersede earlier ones at the storage layer.
type AggregateRow struct {
	RuleID      string    `json:"rule_id"`
	WindowStart time.Time `json:"window_start"`
	Metric      Metric    `json:"metric"`
	GroupKey    string    `json:"group_key"`
	Value       float64   `json:"value"`
}

// LockRecord is the singleton distributed-lock document. At most one
// process holds a non-expired lock; any process may reclaim it after
// ExpiresAt has passed.
type LockRecord struct {
	ID        string    `bson:"_id"`
	OwnerID   string    `bson:"owner_id"`
	ExpiresAt time.Time `bson:"expires_at"`
	UpdatedAt time.Time `bson:"updated_at"`
}
