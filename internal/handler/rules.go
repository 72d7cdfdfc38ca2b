package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/flowmetrics/flowmetrics/internal/domain"
	"github.com/flowmetrics/flowmetrics/internal/logger"
	"github.com/flowmetrics/flowmetrics/internal/mongodb"
)

// RuleCreator persists new aggregation rules
type RuleCreator interface {
	CreateRule(ctx context.Context, rule domain.AggregationRule) error
}

// CreateRuleRequest represents a request to register an aggregation rule
type CreateRuleRequest struct {
	RuleID     string   `json:"rule_id" validate:"required,max=100"`
	WindowSize string   `json:"window_size" validate:"required,oneof=1m 5m 10m 1h"`
	Metric     string   `json:"metric" validate:"required,oneof=event_count active_users"`
	GroupBy    []string `json:"group_by" validate:"required,min=1,dive,required,max=100"`
	TopN       *int     `json:"top_n,omitempty" validate:"omitempty,gt=0"`
}

// HandleCreateRule handles POST requests registering a new aggregation
// rule. New rules are active immediately and picked up on the next
// scheduler cycle.
func HandleCreateRule(svc RuleCreator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log := logger.FromContext(r.Context())

		var req CreateRuleRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			log.Warn("Failed to decode rule request", "error", err)
			respondError(w, http.StatusBadRequest, "Invalid request body")
			return
		}

		if err := GetValidator().ValidateStruct(req); err != nil {
			log.Warn("Invalid rule request", "error", err, "rule_id", req.RuleID)
			respondError(w, http.StatusBadRequest, "Invalid rule definition")
			return
		}

		now := time.Now().UTC()
		rule := domain.AggregationRule{
			RuleID:     req.RuleID,
			WindowSize: domain.WindowSize(req.WindowSize),
			Metric:     domain.Metric(req.Metric),
			GroupBy:    req.GroupBy,
			TopN:       req.TopN,
			IsActive:   true,
			CreatedAt:  now,
			UpdatedAt:  now,
		}

		if err := svc.CreateRule(r.Context(), rule); err != nil {
			if errors.Is(err, mongodb.ErrRuleExists) {
				respondError(w, http.StatusConflict, "Rule with this rule_id already exists")
				return
			}
			log.Error("Failed to create rule", "error", err, "rule_id", req.RuleID)
			respondError(w, http.StatusInternalServerError, "Failed to create rule")
			return
		}

		log.Info("Aggregation rule created", "rule_id", req.RuleID, "window_size", req.WindowSize, "metric", req.Metric)

		respondJSON(w, http.StatusCreated, rule)
	}
}
