package sink

import (
	"context"
	"fmt"

	"github.com/flowmetrics/flowmetrics/internal/domain"
	"github.com/flowmetrics/flowmetrics/internal/logger"
	"github.com/flowmetrics/flowmetrics/internal/metrics"
)

// Archive is the write-optimized document store holding raw events
type Archive interface {
	ArchiveEvents(ctx context.Context, events []map[string]interface{}) error
}

// FactStore is the columnar store holding normalized event rows
type FactStore interface {
	InsertFactRows(ctx context.Context, rows []domain.FactRow) error
}

// DualWriter persists a consumed batch into both sinks: the archive first,
// verbatim, then the fact table after timestamp normalization. The caller
// gates its offset commit on this call, so any failure here forces
// redelivery instead of loss.
type DualWriter struct {
	archive Archive
	facts   FactStore
}

// NewDualWriter creates a dual-sink writer
func NewDualWriter(archive Archive, facts FactStore) *DualWriter {
	return &DualWriter{archive: archive, facts: facts}
}

// InsertEvents writes the batch to both sinks. An archive failure aborts
// the whole batch before anything reaches the fact table. Events whose
// timestamps do not normalize are dropped from the fact write but remain
// archived.
func (w *DualWriter) InsertEvents(ctx context.Context, events []map[string]interface{}) error {
	if len(events) == 0 {
		return nil
	}

	if err := w.archive.ArchiveEvents(ctx, events); err != nil {
		return fmt.Errorf("archive write failed: %w", err)
	}

	log := logger.FromContext(ctx)

	rows := make([]domain.FactRow, 0, len(events))
	for _, event := range events {
		row, err := factRow(event)
		if err != nil {
			metrics.TimestampsUnparsable.Inc()
			log.Warn(LogMsgEventExcluded, "error", err)
			continue
		}
		rows = append(rows, row)
	}

	if len(rows) == 0 {
		return nil
	}

	if err := w.facts.InsertFactRows(ctx, rows); err != nil {
		return fmt.Errorf("fact write failed: %w", err)
	}

	return nil
}

// factRow normalizes one archived event into a fact-table row
func factRow(event map[string]interface{}) (domain.FactRow, error) {
	eventID, ok := stringField(event, "event_id")
	if !ok {
		return domain.FactRow{}, fmt.Errorf("missing event_id")
	}
	userID, ok := stringField(event, "user_id")
	if !ok {
		return domain.FactRow{}, fmt.Errorf("missing user_id on event %s", eventID)
	}
	eventType, ok := stringField(event, "event_type")
	if !ok {
		return domain.FactRow{}, fmt.Errorf("missing event_type on event %s", eventID)
	}

	ts, err := domain.NormalizeTimestamp(event["timestamp"])
	if err != nil {
		return domain.FactRow{}, fmt.Errorf("event %s: %w", eventID, err)
	}

	return domain.FactRow{
		EventID:   eventID,
		UserID:    userID,
		EventType: eventType,
		Timestamp: ts,
	}, nil
}

func stringField(event map[string]interface{}, key string) (string, bool) {
	v, ok := event[key].(string)
	return v, ok && v != ""
}
