package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/flowmetrics/flowmetrics/internal/clickhouse"
	"github.com/flowmetrics/flowmetrics/internal/domain"
	"github.com/flowmetrics/flowmetrics/internal/logger"
)

// DefaultStatsRange is used when the request omits start and end
const DefaultStatsRange = time.Hour

// StatsReader answers range queries over computed aggregates
type StatsReader interface {
	QueryRange(ctx context.Context, q clickhouse.StatsQuery) ([]domain.AggregateRow, error)
}

// StatsResponse is the payload for GET /stats
type StatsResponse struct {
	RuleID  string                `json:"rule_id"`
	Metric  string                `json:"metric"`
	Start   time.Time             `json:"start"`
	End     time.Time             `json:"end"`
	Results []domain.AggregateRow `json:"results"`
}

// HandleGetStats handles GET requests for aggregate time series.
// Required query parameters: rule_id, metric. Optional: start, end
// (RFC3339, defaulting to the last hour), group_key and limit.
func HandleGetStats(svc StatsReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log := logger.FromContext(r.Context())
		params := r.URL.Query()

		ruleID := params.Get("rule_id")
		if ruleID == "" {
			respondError(w, http.StatusBadRequest, "Missing rule_id query parameter")
			return
		}

		metric := domain.Metric(params.Get("metric"))
		if metric != domain.MetricEventCount && metric != domain.MetricActiveUsers {
			respondError(w, http.StatusBadRequest, "metric must be event_count or active_users")
			return
		}

		end := time.Now().UTC()
		start := end.Add(-DefaultStatsRange)
		var err error
		if raw := params.Get("start"); raw != "" {
			if start, err = time.Parse(time.RFC3339, raw); err != nil {
				respondError(w, http.StatusBadRequest, "start must be an RFC3339 timestamp")
				return
			}
		}
		if raw := params.Get("end"); raw != "" {
			if end, err = time.Parse(time.RFC3339, raw); err != nil {
				respondError(w, http.StatusBadRequest, "end must be an RFC3339 timestamp")
				return
			}
		}
		if !end.After(start) {
			respondError(w, http.StatusBadRequest, "end must be after start")
			return
		}

		limit := 0
		if raw := params.Get("limit"); raw != "" {
			if limit, err = strconv.Atoi(raw); err != nil || limit <= 0 {
				respondError(w, http.StatusBadRequest, "Invalid limit parameter")
				return
			}
		}

		query := clickhouse.StatsQuery{
			RuleID:   ruleID,
			Metric:   metric,
			Start:    start,
			End:      end,
			GroupKey: params.Get("group_key"),
			Limit:    limit,
		}

		rows, err := svc.QueryRange(r.Context(), query)
		if err != nil {
			log.Error("Failed to query aggregates", "error", err, "rule_id", ruleID)
			respondError(w, http.StatusInternalServerError, "Failed to query stats")
			return
		}

		log.Debug("Stats query served", "rule_id", ruleID, "metric", metric, "rows", len(rows))

		if rows == nil {
			rows = []domain.AggregateRow{}
		}
		respondJSON(w, http.StatusOK, StatsResponse{
			RuleID:  ruleID,
			Metric:  string(metric),
			Start:   start,
			End:     end,
			Results: rows,
		})
	}
}
