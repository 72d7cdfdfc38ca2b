package clickhouse

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"github.com/flowmetrics/flowmetrics/internal/domain"
	"github.com/flowmetrics/flowmetrics/internal/logger"
	"github.com/flowmetrics/flowmetrics/internal/metrics"
)

// Config holds ClickHouse connection settings
type Config struct {
	Addr     string
	Database string
	Username string
	Password string
}

// Client wraps the columnar store. The connection is established lazily
// and invalidated on insert failure so the next attempt re-establishes it.
type Client struct {
	config Config

	mu   sync.Mutex
	conn driver.Conn
	// lost marks that a previous connection was invalidated after a failure
	lost bool
}

// NewClient creates a client; no connection is made until first use
func NewClient(config Config) *Client {
	return &Client{config: config}
}

func (c *Client) getConn(ctx context.Context) (driver.Conn, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn != nil {
		return c.conn, nil
	}

	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{c.config.Addr},
		Auth: clickhouse.Auth{
			Database: c.config.Database,
			Username: c.config.Username,
			Password: c.config.Password,
		},
		Compression: &clickhouse.Compression{Method: clickhouse.CompressionLZ4},
		DialTimeout: 10 * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open ClickHouse connection: %w", err)
	}
	if err := conn.Ping(ctx); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping ClickHouse: %w", err)
	}

	if c.lost {
		logger.FromContext(ctx).Info(LogMsgConnectionRestored, "addr", c.config.Addr)
		c.lost = false
	} else {
		logger.FromContext(ctx).Info(LogMsgConnected, "addr", c.config.Addr, "database", c.config.Database)
	}
	c.conn = conn
	return conn, nil
}

// invalidate drops the cached connection after a failure
func (c *Client) invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
		c.lost = true
	}
}

// Close releases the connection if one is open
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	logger.Info(LogMsgDisconnected)
	return err
}

// Ping verifies connectivity, opening the connection if needed
func (c *Client) Ping(ctx context.Context) error {
	conn, err := c.getConn(ctx)
	if err != nil {
		return err
	}
	return conn.Ping(ctx)
}

// InsertFactRows appends normalized event rows to the fact table
func (c *Client) InsertFactRows(ctx context.Context, rows []domain.FactRow) error {
	if len(rows) == 0 {
		return nil
	}

	conn, err := c.getConn(ctx)
	if err != nil {
		return err
	}

	batch, err := conn.PrepareBatch(ctx, fmt.Sprintf(
		"INSERT INTO %s (event_id, user_id, event_type, timestamp)", TableEventsFact))
	if err != nil {
		c.invalidate()
		return fmt.Errorf("failed to prepare fact batch: %w", err)
	}

	for _, row := range rows {
		if err := batch.Append(row.EventID, row.UserID, row.EventType, row.Timestamp); err != nil {
			c.invalidate()
			return fmt.Errorf("failed to append fact row %s: %w", row.EventID, err)
		}
	}

	if err := batch.Send(); err != nil {
		c.invalidate()
		logger.FromContext(ctx).Error(LogMsgInsertFailed, "error", err, "rows", len(rows))
		return fmt.Errorf("failed to send fact batch: %w", err)
	}

	metrics.FactRowsWritten.Add(float64(len(rows)))
	logger.FromContext(ctx).Debug(LogMsgFactRowsWritten, "rows", len(rows))
	return nil
}

// Exec runs a statement against the columnar store
func (c *Client) Exec(ctx context.Context, query string, args ...interface{}) error {
	conn, err := c.getConn(ctx)
	if err != nil {
		return err
	}
	if err := conn.Exec(ctx, query, args...); err != nil {
		c.invalidate()
		return err
	}
	return nil
}

// RuleSnapshot is the latest aggregate state pushed to live subscribers
type RuleSnapshot struct {
	WindowStart *time.Time `json:"window_start"`
	EventCount  float64    `json:"event_count"`
	ActiveUsers float64    `json:"active_users"`
	TopEvents   []TopEvent `json:"top_events"`
}

// TopEvent is one entry in a snapshot's top group-key list
type TopEvent struct {
	GroupKey string  `json:"group_key"`
	Count    float64 `json:"count"`
}

// FetchRuleStats returns the latest aggregate snapshot for a rule, or nil
// when the rule has produced no aggregate rows yet.
func (c *Client) FetchRuleStats(ctx context.Context, ruleID string, topN int) (*RuleSnapshot, error) {
	conn, err := c.getConn(ctx)
	if err != nil {
		return nil, err
	}
	if topN <= 0 {
		topN = DefaultTopN
	}

	mainQuery := fmt.Sprintf(`
		SELECT
			max(window_start)                           AS window_start,
			sumIf(value, metric = 'event_count')        AS event_count,
			maxIf(value, metric = 'active_users')       AS active_users,
			count()                                     AS rows
		FROM %s
		WHERE rule_id = @rule_id`, TableEventsAgg)

	var (
		windowStart time.Time
		eventCount  float64
		activeUsers float64
		rowCount    uint64
	)
	row := conn.QueryRow(ctx, mainQuery, clickhouse.Named("rule_id", ruleID))
	if err := row.Scan(&windowStart, &eventCount, &activeUsers, &rowCount); err != nil {
		c.invalidate()
		return nil, fmt.Errorf("failed to fetch rule snapshot: %w", err)
	}
	if rowCount == 0 {
		return nil, nil
	}

	topQuery, topArgs := buildTopEventsQuery(ruleID, topN)
	rows, err := conn.Query(ctx, topQuery, topArgs...)
	if err != nil {
		c.invalidate()
		return nil, fmt.Errorf("failed to fetch top events: %w", err)
	}
	defer rows.Close()

	snapshot := &RuleSnapshot{
		WindowStart: &windowStart,
		EventCount:  eventCount,
		ActiveUsers: activeUsers,
	}
	for rows.Next() {
		var top TopEvent
		if err := rows.Scan(&top.GroupKey, &top.Count); err != nil {
			return nil, fmt.Errorf("failed to scan top event: %w", err)
		}
		snapshot.TopEvents = append(snapshot.TopEvents, top)
	}

	return snapshot, rows.Err()
}

// StatsQuery filters a time-range aggregate lookup
type StatsQuery struct {
	RuleID   string
	Metric   domain.Metric
	Start    time.Time
	End      time.Time
	GroupKey string // optional
	Limit    int
}

// buildTopEventsQuery binds the snapshot top-N lookup. The LIMIT
// parameter must bind as an integer; a string renders single-quoted and
// the statement is rejected.
func buildTopEventsQuery(ruleID string, topN int) (string, []interface{}) {
	query := fmt.Sprintf(`
		SELECT group_key, sum(value) AS cnt
		FROM %s
		WHERE rule_id = @rule_id AND metric = 'event_count'
		GROUP BY group_key
		ORDER BY cnt DESC
		LIMIT @top_n`, TableEventsAgg)

	return query, []interface{}{
		clickhouse.Named("rule_id", ruleID),
		clickhouse.Named("top_n", topN),
	}
}

// buildAggregatesQuery binds a time-range aggregate lookup
func buildAggregatesQuery(q StatsQuery) (string, []interface{}) {
	query := fmt.Sprintf(`
		SELECT window_start, group_key, anyLast(value) AS value
		FROM %s
		PREWHERE rule_id = @rule_id
			AND metric = @metric
			AND window_start >= @start
			AND window_start < @end`, TableEventsAgg)

	args := []interface{}{
		clickhouse.Named("rule_id", q.RuleID),
		clickhouse.Named("metric", string(q.Metric)),
		clickhouse.DateNamed("start", q.Start, clickhouse.Seconds),
		clickhouse.DateNamed("end", q.End, clickhouse.Seconds),
	}

	if q.GroupKey != "" {
		query += " AND group_key = @group_key"
		args = append(args, clickhouse.Named("group_key", q.GroupKey))
	}

	query += `
		GROUP BY window_start, group_key
		ORDER BY window_start DESC
		LIMIT @limit`
	args = append(args, clickhouse.Named("limit", q.Limit))

	return query, args
}

// QueryAggregates returns aggregate rows for a rule within a time range,
// newest window first. anyLast collapses superseded writes for the same
// (window, group) key.
func (c *Client) QueryAggregates(ctx context.Context, q StatsQuery) ([]domain.AggregateRow, error) {
	conn, err := c.getConn(ctx)
	if err != nil {
		return nil, err
	}

	query, args := buildAggregatesQuery(q)
	rows, err := conn.Query(ctx, query, args...)
	if err != nil {
		c.invalidate()
		return nil, fmt.Errorf("failed to query aggregates: %w", err)
	}
	defer rows.Close()

	var out []domain.AggregateRow
	for rows.Next() {
		row := domain.AggregateRow{RuleID: q.RuleID, Metric: q.Metric}
		if err := rows.Scan(&row.WindowStart, &row.GroupKey, &row.Value); err != nil {
			return nil, fmt.Errorf("failed to scan aggregate row: %w", err)
		}
		out = append(out, row)
	}

	return out, rows.Err()
}
