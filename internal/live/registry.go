package live

import (
	"context"
	"sync"
	"time"

	"github.com/flowmetrics/flowmetrics/internal/logger"
	"github.com/flowmetrics/flowmetrics/internal/metrics"
)

// Conn is a client connection that can receive pushed snapshots. The
// websocket handler wraps gorilla connections with this so the registry
// can be exercised without real sockets.
type Conn interface {
	WriteJSON(v interface{}) error
	Close() error
}

// Envelope is the message pushed to subscribers on every poll tick
type Envelope struct {
	RuleID    string      `json:"rule_id"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data"`
}

// Registry tracks which connections subscribe to which rules
type Registry struct {
	mu   sync.RWMutex
	subs map[string]map[Conn]struct{}
}

func NewRegistry() *Registry {
	return &Registry{subs: make(map[string]map[Conn]struct{})}
}

// Connect subscribes conn to every rule in ruleIDs. Repeated IDs and
// repeated calls for the same conn are idempotent.
func (r *Registry) Connect(conn Conn, ruleIDs []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, id := range ruleIDs {
		if id == "" {
			continue
		}
		set, ok := r.subs[id]
		if !ok {
			set = make(map[Conn]struct{})
			r.subs[id] = set
		}
		set[conn] = struct{}{}
		metrics.LiveSubscribers.WithLabelValues(id).Set(float64(len(set)))
	}
}

// Disconnect removes conn from all rules it subscribed to and prunes
// rule entries left empty
func (r *Registry) Disconnect(conn Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, set := range r.subs {
		if _, ok := set[conn]; !ok {
			continue
		}
		delete(set, conn)
		if len(set) == 0 {
			delete(r.subs, id)
		}
		metrics.LiveSubscribers.WithLabelValues(id).Set(float64(len(set)))
	}
}

// HasSubscribers reports whether at least one connection subscribes to
// the rule
func (r *Registry) HasSubscribers(ruleID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.subs[ruleID]) > 0
}

// SubscriberCount returns the number of connections on the rule
func (r *Registry) SubscriberCount(ruleID string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.subs[ruleID])
}

// Broadcast sends one envelope carrying data to every subscriber of the
// rule. Connections whose send fails are dropped from the registry and
// closed; a slow or dead client never blocks the rest.
func (r *Registry) Broadcast(ctx context.Context, ruleID string, data interface{}) {
	log := logger.FromContext(ctx)

	envelope := Envelope{
		RuleID:    ruleID,
		Timestamp: time.Now().UTC(),
		Data:      data,
	}

	r.mu.RLock()
	conns := make([]Conn, 0, len(r.subs[ruleID]))
	for conn := range r.subs[ruleID] {
		conns = append(conns, conn)
	}
	r.mu.RUnlock()

	if len(conns) == 0 {
		return
	}

	var dead []Conn
	for _, conn := range conns {
		if err := conn.WriteJSON(envelope); err != nil {
			log.Warn(LogMsgSendFailed, "rule_id", ruleID, "error", err)
			dead = append(dead, conn)
		}
	}

	for _, conn := range dead {
		r.Disconnect(conn)
		_ = conn.Close()
	}

	metrics.LiveBroadcasts.WithLabelValues(ruleID).Inc()
}
