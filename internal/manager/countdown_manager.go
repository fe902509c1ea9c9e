package manager

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"time-capsule-app/internal/models"
	"time-capsule-app/internal/storage"
	"time-capsule-app/pkg/logger"
)

const (
	// DetailTickInterval keeps an actively watched countdown smooth
	DetailTickInterval = 100 * time.Millisecond

	// ListTickInterval is enough resolution for countdowns shown in a listing
	ListTickInterval = time.Second

	// hintPersistInterval is how often the remaining-duration hint is written
	// back to the record store while a countdown runs
	hintPersistInterval = 5 * time.Second
)

// CountdownCallbacks receive countdown progress. OnTick fires on every tick
// with the freshly derived remaining time; OnExpired fires exactly once per
// run, after the capsule has been expired and deleted.
type CountdownCallbacks struct {
	OnTick    func(remaining float64)
	OnExpired func()
}

// CountdownManager drives a live countdown for one capsule being viewed.
// Every tick re-derives the remaining time from the first-opened anchor via
// the lifecycle engine; nothing is ever decremented locally, so a missed
// tick, a suspended laptop, or a backgrounded window cannot skew the clock.
type CountdownManager struct {
	lifecycle LifecycleManager
	db        storage.Database
	clock     clock.Clock
	interval  time.Duration
	logger    *logger.Logger

	mu            sync.Mutex
	running       bool
	stopCh        chan struct{}
	lastRemaining float64
}

// NewCountdownManager creates a countdown driver ticking at the given interval
func NewCountdownManager(lifecycle LifecycleManager, db storage.Database, clk clock.Clock, interval time.Duration) *CountdownManager {
	if interval <= 0 {
		interval = ListTickInterval
	}
	return &CountdownManager{
		lifecycle: lifecycle,
		db:        db,
		clock:     clk,
		interval:  interval,
		logger:    logger.NewWithComponent("countdown"),
	}
}

// Start begins ticking for the given capsule. Starting an already running
// countdown is a no-op; the idempotence of ExpireAndDelete additionally
// guards against a second instance racing the first to the deletion.
func (cm *CountdownManager) Start(ctx context.Context, capsule *models.Capsule, callbacks CountdownCallbacks) {
	cm.mu.Lock()
	if cm.running {
		cm.mu.Unlock()
		return
	}
	cm.running = true
	cm.stopCh = make(chan struct{})
	cm.lastRemaining = cm.lifecycle.RemainingTime(capsule, cm.clock.Now())
	stopCh := cm.stopCh
	cm.mu.Unlock()

	go cm.run(ctx, capsule, callbacks, stopCh)
}

// Stop cancels the countdown without expiring the capsule. Safe to call when
// not running and safe to call repeatedly.
func (cm *CountdownManager) Stop() {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.stopLocked()
}

// Running reports whether the countdown is ticking
func (cm *CountdownManager) Running() bool {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	return cm.running
}

// LastRemaining returns the remaining time computed on the most recent tick
func (cm *CountdownManager) LastRemaining() float64 {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	return cm.lastRemaining
}

func (cm *CountdownManager) stopLocked() {
	if !cm.running {
		return
	}
	cm.running = false
	close(cm.stopCh)
}

func (cm *CountdownManager) run(ctx context.Context, capsule *models.Capsule, callbacks CountdownCallbacks, stopCh chan struct{}) {
	ticker := cm.clock.Ticker(cm.interval)
	defer ticker.Stop()

	lastPersist := cm.clock.Now()

	for {
		select {
		case <-stopCh:
			cm.persistHint(capsule)
			return
		case <-ctx.Done():
			cm.Stop()
			cm.persistHint(capsule)
			return
		case <-ticker.C:
			now := cm.clock.Now()
			remaining := cm.lifecycle.RemainingTime(capsule, now)
			state := cm.lifecycle.Classify(capsule, now)

			cm.mu.Lock()
			cm.lastRemaining = remaining
			cm.mu.Unlock()

			if callbacks.OnTick != nil {
				callbacks.OnTick(remaining)
			}

			if state == models.StateExpired {
				// Stop ticking before any side effect; nothing else may fire
				// after this point
				cm.Stop()

				if err := cm.lifecycle.ExpireAndDelete(ctx, capsule); err != nil {
					cm.logger.ErrorWithError("Failed to expire capsule at countdown end", err)
				}

				if callbacks.OnExpired != nil {
					callbacks.OnExpired()
				}
				return
			}

			if now.Sub(lastPersist) >= hintPersistInterval {
				cm.persistHint(capsule)
				lastPersist = now
			}
		}
	}
}

// persistHint writes the store-maintained remaining-duration hint. Failures
// are logged and dropped; the hint is advisory and the next tick retries.
func (cm *CountdownManager) persistHint(capsule *models.Capsule) {
	if cm.db == nil || !capsule.IsPartiallyViewed() {
		return
	}

	remaining := cm.lifecycle.RemainingTime(capsule, cm.clock.Now())
	if err := cm.db.UpdateRemainingDuration(capsule.ID, remaining); err != nil {
		cm.logger.WarnWithError("Failed to persist remaining duration hint", err)
	}
}
