package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowmetrics/flowmetrics/internal/domain"
	"github.com/flowmetrics/flowmetrics/internal/mongodb"
)

type fakeRuleCreator struct {
	created []domain.AggregationRule
	err     error
}

func (c *fakeRuleCreator) CreateRule(ctx context.Context, rule domain.AggregationRule) error {
	if c.err != nil {
		return c.err
	}
	c.created = append(c.created, rule)
	return nil
}

func postRule(t *testing.T, h http.HandlerFunc, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/aggregation-rule", bytes.NewReader(payload))
	rec := httptest.NewRecorder()
	h(rec, req)
	return rec
}

func TestHandleCreateRulePersistsActiveRule(t *testing.T) {
	creator := &fakeRuleCreator{}
	h := HandleCreateRule(creator)

	rec := postRule(t, h, CreateRuleRequest{
		RuleID:     "clicks_5m",
		WindowSize: "5m",
		Metric:     "event_count",
		GroupBy:    []string{"event_type"},
	})

	require.Equal(t, http.StatusCreated, rec.Code)
	require.Len(t, creator.created, 1)

	rule := creator.created[0]
	assert.Equal(t, "clicks_5m", rule.RuleID)
	assert.Equal(t, domain.Window5m, rule.WindowSize)
	assert.True(t, rule.IsActive, "new rules start active")
	assert.False(t, rule.CreatedAt.IsZero())
	assert.Equal(t, rule.CreatedAt, rule.UpdatedAt)
}

func TestHandleCreateRuleConflictOnDuplicate(t *testing.T) {
	creator := &fakeRuleCreator{err: mongodb.ErrRuleExists}
	h := HandleCreateRule(creator)

	rec := postRule(t, h, CreateRuleRequest{
		RuleID:     "clicks_5m",
		WindowSize: "5m",
		Metric:     "event_count",
		GroupBy:    []string{"event_type"},
	})

	require.Equal(t, http.StatusConflict, rec.Code)
}

func TestHandleCreateRuleValidation(t *testing.T) {
	tests := []struct {
		name string
		req  CreateRuleRequest
	}{
		{"missing rule_id", CreateRuleRequest{WindowSize: "5m", Metric: "event_count", GroupBy: []string{"event_type"}}},
		{"unknown window", CreateRuleRequest{RuleID: "r", WindowSize: "2h", Metric: "event_count", GroupBy: []string{"event_type"}}},
		{"unknown metric", CreateRuleRequest{RuleID: "r", WindowSize: "5m", Metric: "latency", GroupBy: []string{"event_type"}}},
		{"empty group_by", CreateRuleRequest{RuleID: "r", WindowSize: "5m", Metric: "event_count", GroupBy: []string{}}},
		{"blank group_by entry", CreateRuleRequest{RuleID: "r", WindowSize: "5m", Metric: "event_count", GroupBy: []string{""}}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			creator := &fakeRuleCreator{}
			rec := postRule(t, HandleCreateRule(creator), tc.req)

			require.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Empty(t, creator.created)
		})
	}
}

func TestHandleCreateRuleRejectsNonPositiveTopN(t *testing.T) {
	zero := 0
	creator := &fakeRuleCreator{}

	rec := postRule(t, HandleCreateRule(creator), CreateRuleRequest{
		RuleID:     "r",
		WindowSize: "5m",
		Metric:     "event_count",
		GroupBy:    []string{"event_type"},
		TopN:       &zero,
	})

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleCreateRuleMalformedBody(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/aggregation-rule", bytes.NewReader([]byte("{")))
	rec := httptest.NewRecorder()
	HandleCreateRule(&fakeRuleCreator{})(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}
