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
	// DefaultSweepInterval is the cadence of the full expiry sweep
	DefaultSweepInterval = 60 * time.Second

	// DefaultDebounceDelay coalesces bursts of change signals into one refresh
	DefaultDebounceDelay = 300 * time.Millisecond

	// DefaultRetryBaseDelay is multiplied by the attempt number between
	// failed fetches
	DefaultRetryBaseDelay = 3 * time.Second

	// DefaultMaxFetchAttempts bounds the retry loop for a single refresh
	DefaultMaxFetchAttempts = 3
)

// Listing is the published view of capsules currently visible to the user,
// bucketed the way the listing surface presents them.
type Listing struct {
	// Upcoming holds capsules not yet opened (locked or unlocked)
	Upcoming []*models.Capsule

	// Expiring holds opened capsules with viewing budget left
	Expiring []*models.Capsule

	// Stale is set when the most recent refresh exhausted its retries; the
	// buckets then carry the last successfully fetched data
	Stale bool
}

// AvailabilityManager maintains a near-real-time view of viewable capsules.
// It refreshes on start, on (debounced) change signals, and on a fixed sweep
// interval; each refresh first expires-and-deletes every capsule whose
// lifecycle has ended, then re-fetches the survivors.
type AvailabilityManager struct {
	db            storage.Database
	lifecycle     LifecycleManager
	clock         clock.Clock
	logger        *logger.Logger
	sweepInterval time.Duration
	debounceDelay time.Duration
	retryBase     time.Duration
	maxAttempts   int

	mu          sync.Mutex
	listing     Listing
	onUpdate    func(Listing)
	autoRefresh bool
	running     bool
	stopCh      chan struct{}
}

// NewAvailabilityManager creates a new AvailabilityManager with default timing
func NewAvailabilityManager(db storage.Database, lifecycle LifecycleManager, clk clock.Clock) *AvailabilityManager {
	return &AvailabilityManager{
		db:            db,
		lifecycle:     lifecycle,
		clock:         clk,
		logger:        logger.NewWithComponent("availability"),
		sweepInterval: DefaultSweepInterval,
		debounceDelay: DefaultDebounceDelay,
		retryBase:     DefaultRetryBaseDelay,
		maxAttempts:   DefaultMaxFetchAttempts,
		autoRefresh:   true,
	}
}

// SetSweepInterval overrides the sweep cadence (before Start)
func (am *AvailabilityManager) SetSweepInterval(interval time.Duration) {
	if interval > 0 {
		am.sweepInterval = interval
	}
}

// SetAutoRefresh controls whether change signals trigger a refresh. The
// interval sweep keeps running either way; expiry must not depend on a
// user preference.
func (am *AvailabilityManager) SetAutoRefresh(enabled bool) {
	am.mu.Lock()
	am.autoRefresh = enabled
	am.mu.Unlock()
}

func (am *AvailabilityManager) autoRefreshEnabled() bool {
	am.mu.Lock()
	defer am.mu.Unlock()
	return am.autoRefresh
}

// SetOnUpdate registers the listing consumer. The callback runs on the
// poller goroutine; consumers hand the listing off rather than block.
func (am *AvailabilityManager) SetOnUpdate(fn func(Listing)) {
	am.mu.Lock()
	defer am.mu.Unlock()
	am.onUpdate = fn
}

// Listing returns the most recently published listing
func (am *AvailabilityManager) Listing() Listing {
	am.mu.Lock()
	defer am.mu.Unlock()
	return am.listing
}

// Start performs an initial refresh and launches the polling loop. The loop
// is process-lifetime: it survives refresh failures and only exits when the
// context is cancelled or Stop is called.
func (am *AvailabilityManager) Start(ctx context.Context) {
	am.mu.Lock()
	if am.running {
		am.mu.Unlock()
		return
	}
	am.running = true
	am.stopCh = make(chan struct{})
	stopCh := am.stopCh
	am.mu.Unlock()

	sub := am.db.Notifier().Subscribe()

	if err := am.Refresh(ctx); err != nil {
		am.logger.WarnWithError("Initial capsule refresh failed", err)
	}

	go am.loop(ctx, sub, stopCh)
}

// Stop terminates the polling loop
func (am *AvailabilityManager) Stop() {
	am.mu.Lock()
	defer am.mu.Unlock()
	if !am.running {
		return
	}
	am.running = false
	close(am.stopCh)
}

// Refresh runs one sweep-and-fetch cycle and publishes the result. A fetch
// that exhausts its retries publishes the previous listing marked stale and
// returns the fetch error; the caller's loop keeps going regardless.
func (am *AvailabilityManager) Refresh(ctx context.Context) error {
	am.sweepExpired(ctx)

	capsules, err := am.fetchWithRetry(ctx)
	if err != nil {
		am.logger.ErrorWithError("Capsule fetch failed after retries, keeping stale listing", err)
		am.publishStale()
		return err
	}

	am.publish(capsules)
	return nil
}

func (am *AvailabilityManager) loop(ctx context.Context, sub *storage.Subscription, stopCh chan struct{}) {
	defer sub.Cancel()

	ticker := am.clock.Ticker(am.sweepInterval)
	defer ticker.Stop()

	var debounce *clock.Timer
	var debounceC <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return
		case <-stopCh:
			return
		case <-ticker.C:
			am.refreshQuietly(ctx)
		case <-sub.C:
			if !am.autoRefreshEnabled() {
				continue
			}
			// Coalesce bursts: keep pushing the refresh out until the
			// signals stop for a debounce period
			if debounce == nil {
				debounce = am.clock.Timer(am.debounceDelay)
				debounceC = debounce.C
			} else {
				debounce.Reset(am.debounceDelay)
			}
		case <-debounceC:
			am.refreshQuietly(ctx)
		}
	}
}

func (am *AvailabilityManager) refreshQuietly(ctx context.Context) {
	if err := am.Refresh(ctx); err != nil {
		am.logger.WarnWithError("Scheduled capsule refresh failed", err)
	}
}

// sweepExpired deletes every capsule whose lifecycle has reached its terminal
// state. Individual failures are logged and skipped; the next sweep retries.
func (am *AvailabilityManager) sweepExpired(ctx context.Context) {
	capsules, err := am.db.ListCapsules()
	if err != nil {
		am.logger.WarnWithError("Expiry sweep could not list capsules", err)
		return
	}

	now := am.clock.Now()
	swept := 0
	for _, capsule := range capsules {
		if am.lifecycle.Classify(capsule, now) != models.StateExpired {
			continue
		}
		if err := am.lifecycle.ExpireAndDelete(ctx, capsule); err != nil {
			am.logger.WarnWithFields("Failed to expire capsule during sweep", map[string]interface{}{
				"capsule_id": capsule.ID,
				"error":      err.Error(),
			})
			continue
		}
		swept++
	}

	if swept > 0 {
		am.logger.InfoWithFields("Expiry sweep completed", map[string]interface{}{
			"swept": swept,
		})
	}
}

// fetchWithRetry queries the viewable capsules with bounded linear backoff
func (am *AvailabilityManager) fetchWithRetry(ctx context.Context) ([]*models.Capsule, error) {
	var lastErr error

	for attempt := 1; attempt <= am.maxAttempts; attempt++ {
		capsules, err := am.db.ListViewableCapsules(am.clock.Now())
		if err == nil {
			return capsules, nil
		}
		lastErr = err

		if attempt == am.maxAttempts {
			break
		}

		// base delay × attempt number, the same shape the original client
		// used for its fetch retries
		delay := am.retryBase * time.Duration(attempt)
		timer := am.clock.Timer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}

	return nil, lastErr
}

// publish buckets the fetched capsules and hands the listing to the consumer
func (am *AvailabilityManager) publish(capsules []*models.Capsule) {
	now := am.clock.Now()
	listing := Listing{
		Upcoming: []*models.Capsule{},
		Expiring: []*models.Capsule{},
	}

	for _, capsule := range capsules {
		switch am.lifecycle.Classify(capsule, now) {
		case models.StateLocked, models.StateUnlocked:
			listing.Upcoming = append(listing.Upcoming, capsule)
		case models.StateOpened:
			listing.Expiring = append(listing.Expiring, capsule)
		case models.StateExpired:
			// Raced past the sweep; it will be deleted on the next cycle and
			// must not resurface in the meantime
		}
	}

	am.deliver(listing)
}

// publishStale republishes the last good buckets flagged as stale
func (am *AvailabilityManager) publishStale() {
	am.mu.Lock()
	listing := am.listing
	am.mu.Unlock()

	listing.Stale = true
	am.deliver(listing)
}

func (am *AvailabilityManager) deliver(listing Listing) {
	am.mu.Lock()
	am.listing = listing
	fn := am.onUpdate
	am.mu.Unlock()

	if fn != nil {
		fn(listing)
	}
}
