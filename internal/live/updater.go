package live

import (
	"context"
	"sync"
	"time"

	"github.com/flowmetrics/flowmetrics/internal/logger"
)

// SnapshotSource produces the current snapshot for a rule. A nil
// snapshot with a nil error means there is no data yet; nothing is
// pushed for that tick.
type SnapshotSource interface {
	LatestSnapshot(ctx context.Context, ruleID string) (interface{}, error)
}

// Updater runs one poll goroutine per rule that has live subscribers.
// Tasks are started on demand when a client subscribes and terminate on
// their own once the last subscriber for the rule disconnects.
type Updater struct {
	registry *Registry
	source   SnapshotSource
	interval time.Duration

	ctx context.Context
	mu  sync.Mutex
	wg  sync.WaitGroup
	// tasks holds the rule IDs with a live poll goroutine
	tasks map[string]struct{}
}

// NewUpdater creates an updater whose poll tasks live until ctx is
// cancelled or their rule loses all subscribers
func NewUpdater(ctx context.Context, registry *Registry, source SnapshotSource, interval time.Duration) *Updater {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &Updater{
		registry: registry,
		source:   source,
		interval: interval,
		ctx:      ctx,
		tasks:    make(map[string]struct{}),
	}
}

// EnsureRuleTask starts a poll task for the rule unless one is already
// running
func (u *Updater) EnsureRuleTask(ruleID string) {
	u.mu.Lock()
	if _, running := u.tasks[ruleID]; running {
		u.mu.Unlock()
		return
	}
	u.tasks[ruleID] = struct{}{}
	u.mu.Unlock()

	u.wg.Add(1)
	go u.poll(ruleID)
}

// HasTask reports whether a poll task is currently running for the rule
func (u *Updater) HasTask(ruleID string) bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	_, running := u.tasks[ruleID]
	return running
}

// Wait blocks until all poll tasks have finished
func (u *Updater) Wait() {
	u.wg.Wait()
}

// poll pushes one snapshot per interval while the rule has subscribers,
// then deregisters itself. Fetch failures skip the tick rather than
// killing the task.
func (u *Updater) poll(ruleID string) {
	log := logger.FromContext(u.ctx)
	log.Info(LogMsgPollerStarted, "rule_id", ruleID)
	defer u.wg.Done()

	ticker := time.NewTicker(u.interval)
	defer ticker.Stop()

	for {
		if u.deregisterIfIdle(ruleID) {
			log.Info(LogMsgPollerStopped, "rule_id", ruleID)
			return
		}

		snapshot, err := u.source.LatestSnapshot(u.ctx, ruleID)
		switch {
		case err != nil:
			log.Warn(LogMsgSnapshotFailed, "rule_id", ruleID, "error", err)
		case snapshot != nil:
			u.registry.Broadcast(u.ctx, ruleID, snapshot)
		}

		select {
		case <-ticker.C:
		case <-u.ctx.Done():
			u.mu.Lock()
			delete(u.tasks, ruleID)
			u.mu.Unlock()
			return
		}
	}
}

// deregisterIfIdle removes the task entry when the rule has no
// subscribers, re-checking under the task-map lock. An EnsureRuleTask
// that no-ops because this task is still registered holds the same lock
// first, so its subscriber is visible to the re-check and keeps the
// task alive; once the entry is deleted, any later EnsureRuleTask
// starts a fresh task. A subscriber can never be left without a poller.
func (u *Updater) deregisterIfIdle(ruleID string) bool {
	if u.registry.HasSubscribers(ruleID) {
		return false
	}

	u.mu.Lock()
	defer u.mu.Unlock()
	if u.registry.HasSubscribers(ruleID) {
		return false
	}
	delete(u.tasks, ruleID)
	return true
}
