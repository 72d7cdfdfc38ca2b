package clickhouse

import (
	"testing"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowmetrics/flowmetrics/internal/domain"
)

func namedArg(t *testing.T, args []interface{}, name string) driver.NamedValue {
	t.Helper()
	for _, a := range args {
		if nv, ok := a.(driver.NamedValue); ok && nv.Name == name {
			return nv
		}
	}
	t.Fatalf("missing named arg %q", name)
	return driver.NamedValue{}
}

func hasDateArg(args []interface{}, name string) bool {
	for _, a := range args {
		if nv, ok := a.(driver.NamedDateValue); ok && nv.Name == name {
			return true
		}
	}
	return false
}

func rangeQuery() StatsQuery {
	return StatsQuery{
		RuleID: "r1",
		Metric: domain.MetricEventCount,
		Start:  time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
		End:    time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC),
		Limit:  100,
	}
}

func TestBuildTopEventsQueryBindsIntegerLimit(t *testing.T) {
	query, args := buildTopEventsQuery("r1", 5)

	assert.Contains(t, query, "LIMIT @top_n")
	assert.Equal(t, "r1", namedArg(t, args, "rule_id").Value)

	// A string here renders single-quoted and the LIMIT is rejected
	topN := namedArg(t, args, "top_n")
	require.IsType(t, int(0), topN.Value)
	assert.Equal(t, 5, topN.Value)
}

func TestBuildAggregatesQueryBindsIntegerLimit(t *testing.T) {
	query, args := buildAggregatesQuery(rangeQuery())

	assert.Contains(t, query, "LIMIT @limit")

	limit := namedArg(t, args, "limit")
	require.IsType(t, int(0), limit.Value)
	assert.Equal(t, 100, limit.Value)
}

func TestBuildAggregatesQueryFilters(t *testing.T) {
	query, args := buildAggregatesQuery(rangeQuery())

	assert.Contains(t, query, "PREWHERE rule_id = @rule_id")
	assert.Contains(t, query, "ORDER BY window_start DESC")
	assert.NotContains(t, query, "@group_key")
	assert.Equal(t, "event_count", namedArg(t, args, "metric").Value)
	assert.True(t, hasDateArg(args, "start"))
	assert.True(t, hasDateArg(args, "end"))
}

func TestBuildAggregatesQueryOptionalGroupKey(t *testing.T) {
	q := rangeQuery()
	q.GroupKey = "click"

	query, args := buildAggregatesQuery(q)

	assert.Contains(t, query, "AND group_key = @group_key")
	assert.Equal(t, "click", namedArg(t, args, "group_key").Value)
}
