package stats

import (
	"context"

	"github.com/flowmetrics/flowmetrics/internal/clickhouse"
	"github.com/flowmetrics/flowmetrics/internal/domain"
)

// Query limits
const (
	// DefaultQueryLimit caps range queries that do not ask for a limit
	DefaultQueryLimit = 100

	// MaxQueryLimit is the hard ceiling on rows per range query
	MaxQueryLimit = 1000
)

// RuleGetter looks up one aggregation rule by ID
type RuleGetter interface {
	GetRule(ctx context.Context, ruleID string) (*domain.AggregationRule, error)
}

// Store reads aggregate state from the columnar store
type Store interface {
	FetchRuleStats(ctx context.Context, ruleID string, topN int) (*clickhouse.RuleSnapshot, error)
	QueryAggregates(ctx context.Context, q clickhouse.StatsQuery) ([]domain.AggregateRow, error)
}

// Service answers aggregate queries for both the stats endpoint and the
// live push loop
type Service struct {
	rules RuleGetter
	store Store
}

func NewService(rules RuleGetter, store Store) *Service {
	return &Service{rules: rules, store: store}
}

// LatestSnapshot returns the current snapshot for a rule, honoring the
// rule's top_n setting when one is configured. Returns nil when the rule
// has produced no aggregates yet.
func (s *Service) LatestSnapshot(ctx context.Context, ruleID string) (interface{}, error) {
	topN := clickhouse.DefaultTopN
	rule, err := s.rules.GetRule(ctx, ruleID)
	if err != nil {
		return nil, err
	}
	if rule != nil && rule.TopN != nil && *rule.TopN > 0 {
		topN = *rule.TopN
	}

	snapshot, err := s.store.FetchRuleStats(ctx, ruleID, topN)
	if err != nil {
		return nil, err
	}
	if snapshot == nil {
		// Return an untyped nil so callers comparing against nil see one
		return nil, nil
	}
	return snapshot, nil
}

// QueryRange returns aggregate rows for a rule and time range, clamping
// the row limit to sane bounds
func (s *Service) QueryRange(ctx context.Context, q clickhouse.StatsQuery) ([]domain.AggregateRow, error) {
	if q.Limit <= 0 || q.Limit > MaxQueryLimit {
		q.Limit = DefaultQueryLimit
	}
	return s.store.QueryAggregates(ctx, q)
}
