package aggregation

import (
	"context"
	"time"

	"github.com/flowmetrics/flowmetrics/internal/domain"
	"github.com/flowmetrics/flowmetrics/internal/logger"
	"github.com/flowmetrics/flowmetrics/internal/metrics"
)

// RuleSource loads the currently active aggregation rules
type RuleSource interface {
	ActiveRules(ctx context.Context) ([]domain.AggregationRule, error)
}

// RuleRunner executes one rule
type RuleRunner interface {
	RunRule(ctx context.Context, rule domain.AggregationRule) error
}

// SchedulerConfig holds the scheduler's timing parameters
type SchedulerConfig struct {
	LockTTL           time.Duration
	LockRetryInterval time.Duration
	CycleInterval     time.Duration
}

// Scheduler is the leader-elected aggregation control loop. Redundant
// instances may run concurrently across processes; the lock ensures only
// one executes rules per cycle, without guaranteeing which one wins.
type Scheduler struct {
	lock    Lock
	rules   RuleSource
	engine  RuleRunner
	config  SchedulerConfig
	ownerID string
}

// NewScheduler creates a scheduler with a fresh owner identity
func NewScheduler(lock Lock, rules RuleSource, engine RuleRunner, config SchedulerConfig) *Scheduler {
	if config.LockTTL <= 0 {
		config.LockTTL = 30 * time.Second
	}
	if config.LockRetryInterval <= 0 {
		config.LockRetryInterval = 3 * time.Second
	}
	if config.CycleInterval <= 0 {
		config.CycleInterval = 10 * time.Second
	}
	return &Scheduler{
		lock:    lock,
		rules:   rules,
		engine:  engine,
		config:  config,
		ownerID: NewOwnerID(),
	}
}

// OwnerID returns this instance's lock owner token
func (s *Scheduler) OwnerID() string {
	return s.ownerID
}

// Run loops until the context is cancelled: acquire the lock, execute all
// active rules, release, sleep, repeat. Losing the lock race only delays
// this instance; another one is doing the work.
func (s *Scheduler) Run(ctx context.Context) error {
	log := logger.FromContext(ctx)
	log.Info(LogMsgSchedulerStarted, "owner_id", s.ownerID)

	for {
		acquired, err := s.lock.Acquire(ctx, s.ownerID, s.config.LockTTL)
		if err != nil {
			log.Error(LogMsgLockAcquireFailed, "error", err)
		}

		if !acquired {
			if err := sleep(ctx, s.config.LockRetryInterval); err != nil {
				return err
			}
			continue
		}

		s.runCycle(ctx)

		// Release regardless of how the cycle went; a failed release only
		// means the lock expires on its own TTL.
		if err := s.lock.Release(ctx, s.ownerID); err != nil {
			log.Error(LogMsgLockReleaseFailed, "error", err)
		}

		if err := sleep(ctx, s.config.CycleInterval); err != nil {
			return err
		}
	}
}

// runCycle loads and executes the active rules. Per-rule failures are
// logged and isolated; the remaining rules still run.
func (s *Scheduler) runCycle(ctx context.Context) {
	log := logger.FromContext(ctx)
	metrics.AggregationCycles.Inc()

	rules, err := s.rules.ActiveRules(ctx)
	if err != nil {
		log.Error(LogMsgRuleLoadFailed, "error", err)
		return
	}
	if len(rules) == 0 {
		log.Info(LogMsgNoActiveRules)
		return
	}

	for _, rule := range rules {
		metrics.AggregationRuleRuns.WithLabelValues(rule.RuleID).Inc()
		if err := s.engine.RunRule(ctx, rule); err != nil {
			metrics.AggregationRuleErrors.WithLabelValues(rule.RuleID).Inc()
			log.Error(LogMsgRuleFailed, "rule_id", rule.RuleID, "error", err)
		}
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
