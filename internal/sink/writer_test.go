package sink

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowmetrics/flowmetrics/internal/domain"
)

type fakeArchive struct {
	batches [][]map[string]interface{}
	err     error
}

func (a *fakeArchive) ArchiveEvents(ctx context.Context, events []map[string]interface{}) error {
	if a.err != nil {
		return a.err
	}
	a.batches = append(a.batches, events)
	return nil
}

type fakeFactStore struct {
	rows [][]domain.FactRow
	err  error
}

func (f *fakeFactStore) InsertFactRows(ctx context.Context, rows []domain.FactRow) error {
	if f.err != nil {
		return f.err
	}
	f.rows = append(f.rows, rows)
	return nil
}

func rawEvent(eventID, userID, timestamp string) map[string]interface{} {
	return map[string]interface{}{
		"event_id":   eventID,
		"user_id":    userID,
		"event_type": "click",
		"timestamp":  timestamp,
		"payload":    map[string]interface{}{"page": "/home"},
	}
}

func TestInsertEventsWritesBothSinks(t *testing.T) {
	archive := &fakeArchive{}
	facts := &fakeFactStore{}
	w := NewDualWriter(archive, facts)

	batch := []map[string]interface{}{
		rawEvent("e1", "u1", "2026-01-16T18:00:00Z"),
		rawEvent("e2", "u1", "2026-01-16T18:00:01Z"),
		rawEvent("e3", "u1", "2026-01-16T18:00:02Z"),
	}
	require.NoError(t, w.InsertEvents(context.Background(), batch))

	require.Len(t, archive.batches, 1)
	assert.Len(t, archive.batches[0], 3)

	require.Len(t, facts.rows, 1)
	require.Len(t, facts.rows[0], 3)
	assert.Equal(t, "e1", facts.rows[0][0].EventID)
	assert.Equal(t, time.Date(2026, 1, 16, 18, 0, 0, 0, time.UTC), facts.rows[0][0].Timestamp)
}

func TestInsertEventsArchiveFailureAbortsBatch(t *testing.T) {
	archive := &fakeArchive{err: errors.New("mongo down")}
	facts := &fakeFactStore{}
	w := NewDualWriter(archive, facts)

	err := w.InsertEvents(context.Background(), []map[string]interface{}{
		rawEvent("e1", "u1", "2026-01-16T18:00:00Z"),
	})

	require.Error(t, err)
	assert.Empty(t, facts.rows, "nothing may reach the fact table when archiving fails")
}

func TestInsertEventsDropsUnparsableTimestampsFromFactWrite(t *testing.T) {
	archive := &fakeArchive{}
	facts := &fakeFactStore{}
	w := NewDualWriter(archive, facts)

	batch := []map[string]interface{}{
		rawEvent("good", "u1", "2026-01-16T18:00:00Z"),
		rawEvent("bad", "u1", "not-a-timestamp"),
		{"event_id": "incomplete"}, // missing fields
	}
	require.NoError(t, w.InsertEvents(context.Background(), batch))

	// All three stay archived.
	require.Len(t, archive.batches, 1)
	assert.Len(t, archive.batches[0], 3)

	// Only the parsable event reaches the fact table.
	require.Len(t, facts.rows, 1)
	require.Len(t, facts.rows[0], 1)
	assert.Equal(t, "good", facts.rows[0][0].EventID)
}

func TestInsertEventsFactFailureEscalates(t *testing.T) {
	archive := &fakeArchive{}
	facts := &fakeFactStore{err: errors.New("clickhouse down")}
	w := NewDualWriter(archive, facts)

	err := w.InsertEvents(context.Background(), []map[string]interface{}{
		rawEvent("e1", "u1", "2026-01-16T18:00:00Z"),
	})

	require.Error(t, err)
}

func TestInsertEventsEmptyBatchIsNoop(t *testing.T) {
	archive := &fakeArchive{}
	facts := &fakeFactStore{}
	w := NewDualWriter(archive, facts)

	require.NoError(t, w.InsertEvents(context.Background(), nil))
	assert.Empty(t, archive.batches)
	assert.Empty(t, facts.rows)
}

func TestInsertEventsSkipsFactWriteWhenNoRowsParse(t *testing.T) {
	archive := &fakeArchive{}
	facts := &fakeFactStore{err: errors.New("should not be called")}
	w := NewDualWriter(archive, facts)

	err := w.InsertEvents(context.Background(), []map[string]interface{}{
		rawEvent("bad", "u1", "garbage"),
	})

	require.NoError(t, err)
}
