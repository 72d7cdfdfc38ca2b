package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/flowmetrics/flowmetrics/internal/domain"
	"github.com/flowmetrics/flowmetrics/internal/ingest"
	"github.com/flowmetrics/flowmetrics/internal/logger"
	"github.com/flowmetrics/flowmetrics/internal/metrics"
)

// Rejection reasons for the events_rejected_total metric
const (
	RejectReasonInvalidBody = "invalid_body"
	RejectReasonEmptyBatch  = "empty_batch"
	RejectReasonTooLarge    = "batch_too_large"
	RejectReasonValidation  = "validation"
	RejectReasonOverloaded  = "overloaded"
)

// Queue admits event batches into the ingress pipeline
type Queue interface {
	Put(batch []domain.Event) error
}

// IngestResponse reports how many events were admitted
type IngestResponse struct {
	Accepted int `json:"accepted"`
}

// HandleIngest handles POST requests carrying a JSON array of events.
// The batch is validated and enqueued as a unit; the handler never
// blocks waiting for queue space.
func HandleIngest(queue Queue, maxEventsPerRequest int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log := logger.FromContext(r.Context())

		var events []domain.Event
		if err := json.NewDecoder(r.Body).Decode(&events); err != nil {
			log.Warn("Failed to decode ingest request", "error", err)
			metrics.EventsRejected.WithLabelValues(RejectReasonInvalidBody).Inc()
			respondError(w, http.StatusBadRequest, "Request body must be a JSON array of events")
			return
		}

		if len(events) == 0 {
			metrics.EventsRejected.WithLabelValues(RejectReasonEmptyBatch).Inc()
			respondError(w, http.StatusBadRequest, "Batch must contain at least one event")
			return
		}

		if len(events) > maxEventsPerRequest {
			log.Warn("Batch exceeds size ceiling", "events", len(events), "max", maxEventsPerRequest)
			metrics.EventsRejected.WithLabelValues(RejectReasonTooLarge).Add(float64(len(events)))
			respondError(w, http.StatusBadRequest,
				fmt.Sprintf("Batch exceeds maximum of %d events", maxEventsPerRequest))
			return
		}

		for i, event := range events {
			if err := GetValidator().ValidateStruct(event); err != nil {
				log.Warn("Invalid event in batch", "index", i, "error", err)
				metrics.EventsRejected.WithLabelValues(RejectReasonValidation).Add(float64(len(events)))
				respondError(w, http.StatusBadRequest, fmt.Sprintf("Invalid event at index %d", i))
				return
			}
		}

		if err := queue.Put(events); err != nil {
			if errors.Is(err, ingest.ErrOverloaded) {
				log.Warn("Admission queue full, rejecting batch", "events", len(events))
				metrics.EventsRejected.WithLabelValues(RejectReasonOverloaded).Add(float64(len(events)))
				respondError(w, http.StatusServiceUnavailable, "Overloaded")
				return
			}
			log.Error("Failed to enqueue batch", "error", err)
			respondError(w, http.StatusInternalServerError, "Failed to accept events")
			return
		}

		metrics.EventsAccepted.Add(float64(len(events)))
		log.Debug("Batch admitted", "events", len(events))

		respondJSON(w, http.StatusAccepted, IngestResponse{Accepted: len(events)})
	}
}
