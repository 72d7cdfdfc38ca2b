package live

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeConn struct {
	mu       sync.Mutex
	received []Envelope
	writeErr error
	closed   bool
}

func (c *fakeConn) WriteJSON(v interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.writeErr != nil {
		return c.writeErr
	}
	c.received = append(c.received, v.(Envelope))
	return nil
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *fakeConn) envelopes() []Envelope {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Envelope, len(c.received))
	copy(out, c.received)
	return out
}

func (c *fakeConn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func TestConnectIsIdempotent(t *testing.T) {
	r := NewRegistry()
	conn := &fakeConn{}

	r.Connect(conn, []string{"r1", "r1", "r2"})
	r.Connect(conn, []string{"r1"})

	assert.Equal(t, 1, r.SubscriberCount("r1"))
	assert.Equal(t, 1, r.SubscriberCount("r2"))
}

func TestConnectIgnoresEmptyRuleIDs(t *testing.T) {
	r := NewRegistry()
	r.Connect(&fakeConn{}, []string{"", "r1"})

	assert.False(t, r.HasSubscribers(""))
	assert.True(t, r.HasSubscribers("r1"))
}

func TestDisconnectPrunesEmptyRules(t *testing.T) {
	r := NewRegistry()
	a := &fakeConn{}
	b := &fakeConn{}
	r.Connect(a, []string{"r1", "r2"})
	r.Connect(b, []string{"r1"})

	r.Disconnect(a)

	assert.True(t, r.HasSubscribers("r1"), "r1 still has a subscriber")
	assert.False(t, r.HasSubscribers("r2"), "r2 lost its only subscriber")

	r.Disconnect(b)
	assert.False(t, r.HasSubscribers("r1"))
}

func TestBroadcastReachesOnlyRuleSubscribers(t *testing.T) {
	r := NewRegistry()
	sub := &fakeConn{}
	other := &fakeConn{}
	r.Connect(sub, []string{"r1"})
	r.Connect(other, []string{"r2"})

	r.Broadcast(context.Background(), "r1", map[string]int{"event_count": 42})

	envelopes := sub.envelopes()
	require.Len(t, envelopes, 1)
	assert.Equal(t, "r1", envelopes[0].RuleID)
	assert.False(t, envelopes[0].Timestamp.IsZero())
	assert.Equal(t, map[string]int{"event_count": 42}, envelopes[0].Data)

	assert.Empty(t, other.envelopes())
}

func TestBroadcastDropsFailedConnections(t *testing.T) {
	r := NewRegistry()
	healthy := &fakeConn{}
	broken := &fakeConn{writeErr: errors.New("connection reset")}
	r.Connect(healthy, []string{"r1"})
	r.Connect(broken, []string{"r1"})

	r.Broadcast(context.Background(), "r1", "data")

	require.Len(t, healthy.envelopes(), 1)
	assert.True(t, broken.isClosed())
	assert.Equal(t, 1, r.SubscriberCount("r1"), "broken conn removed from registry")

	r.Broadcast(context.Background(), "r1", "data")
	assert.Len(t, healthy.envelopes(), 2)
}

func TestHasSubscribersTracksLastDisconnect(t *testing.T) {
	r := NewRegistry()
	conn := &fakeConn{}

	assert.False(t, r.HasSubscribers("r1"))
	r.Connect(conn, []string{"r1"})
	assert.True(t, r.HasSubscribers("r1"))
	r.Disconnect(conn)
	assert.False(t, r.HasSubscribers("r1"))
}
