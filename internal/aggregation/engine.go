package aggregation

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	"github.com/ClickHouse/clickhouse-go/v2"

	"github.com/flowmetrics/flowmetrics/internal/domain"
	"github.com/flowmetrics/flowmetrics/internal/logger"
)

// ErrUnsupportedMetric marks a per-rule configuration error. It is
// isolated to the rule that carries it; other rules still run.
var ErrUnsupportedMetric = errors.New("unsupported metric")

// Store executes statements against the columnar store
type Store interface {
	Exec(ctx context.Context, query string, args ...interface{}) error
}

// Engine executes one rule as a single aggregate-and-insert over the fact
// table. Re-running a rule over an unchanged fact table produces the same
// rows; last-write-wins at the storage layer makes the operation
// idempotent per (rule, window, group).
type Engine struct {
	store Store
}

// NewEngine creates an aggregation engine
func NewEngine(store Store) *Engine {
	return &Engine{store: store}
}

// identifierPattern guards the group-by column, which is interpolated
// into the statement text.
var identifierPattern = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// RunRule executes a single rule. Configuration errors (unknown metric or
// window, bad group column) reject the rule without touching any state.
func (e *Engine) RunRule(ctx context.Context, rule domain.AggregationRule) error {
	query, err := buildRuleQuery(rule)
	if err != nil {
		return err
	}

	logger.FromContext(ctx).Info(LogMsgRunningRule,
		"rule_id", rule.RuleID,
		"window", rule.WindowSize,
		"metric", rule.Metric)

	if err := e.store.Exec(ctx, query,
		clickhouse.Named("rule_id", rule.RuleID),
		clickhouse.Named("metric", string(rule.Metric)),
	); err != nil {
		return fmt.Errorf("rule %s failed: %w", rule.RuleID, err)
	}

	return nil
}

// buildRuleQuery renders the aggregate-and-insert statement for a rule.
// Only the first group_by field is honored.
func buildRuleQuery(rule domain.AggregationRule) (string, error) {
	value, unit, err := rule.WindowSize.Interval()
	if err != nil {
		return "", fmt.Errorf("rule %s: %w", rule.RuleID, err)
	}

	var metricExpr string
	switch rule.Metric {
	case domain.MetricEventCount:
		metricExpr = "count()"
	case domain.MetricActiveUsers:
		metricExpr = "uniqExact(user_id)"
	default:
		return "", fmt.Errorf("rule %s: %w: %q", rule.RuleID, ErrUnsupportedMetric, rule.Metric)
	}

	if len(rule.GroupBy) == 0 {
		return "", fmt.Errorf("rule %s: empty group_by", rule.RuleID)
	}
	groupCol := rule.GroupBy[0]
	if !identifierPattern.MatchString(groupCol) {
		return "", fmt.Errorf("rule %s: invalid group_by column %q", rule.RuleID, groupCol)
	}

	query := fmt.Sprintf(`
		INSERT INTO events_agg (rule_id, window_start, metric, group_key, value)
		SELECT
			@rule_id                                            AS rule_id,
			toStartOfInterval(timestamp, INTERVAL %d %s)        AS window_start,
			@metric                                             AS metric,
			%s                                                  AS group_key,
			toFloat64(%s)                                       AS value
		FROM events_fact
		GROUP BY window_start, group_key`,
		value, unit, groupCol, metricExpr)

	return query, nil
}
