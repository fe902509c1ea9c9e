package manager

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/benbjohnson/clock"

	"time-capsule-app/internal/media"
	"time-capsule-app/internal/models"
	"time-capsule-app/internal/storage"
	apperrors "time-capsule-app/pkg/errors"
	"time-capsule-app/pkg/logger"
)

// LifecycleManager is the capsule lifecycle engine. Classification and
// remaining-time accounting are pure computations over a record snapshot and
// a clock reading; Open and ExpireAndDelete are the two persistence side
// effects the lifecycle requires.
type LifecycleManager interface {
	// Classify computes the lifecycle state of a capsule at the given time.
	// Deterministic, total, no side effects.
	Classify(capsule *models.Capsule, now time.Time) models.LifecycleState

	// RemainingTime computes the seconds of viewing budget left at the given
	// time, clamped at zero
	RemainingTime(capsule *models.Capsule, now time.Time) float64

	// Open transitions a capsule to the Opened state, anchoring the viewing
	// window on first open. Re-opening is a no-op resume. Fails with
	// NotYetAvailable while the capsule is Locked, and with AlreadyExpired
	// (after cleaning the record up) when the lifecycle has already ended.
	Open(ctx context.Context, id string) (*models.Capsule, error)

	// ExpireAndDelete removes the capsule record and any associated media.
	// Safe to call concurrently or repeatedly; a missing record or blob is
	// treated as already-converged state, not an error.
	ExpireAndDelete(ctx context.Context, capsule *models.Capsule) error
}

// LifecycleManagerImpl implements the LifecycleManager interface
type LifecycleManagerImpl struct {
	db         storage.Database
	mediaStore media.MediaStore
	clock      clock.Clock
	logger     *logger.Logger
}

// NewLifecycleManager creates a new LifecycleManager instance
func NewLifecycleManager(db storage.Database, mediaStore media.MediaStore, clk clock.Clock) LifecycleManager {
	return &LifecycleManagerImpl{
		db:         db,
		mediaStore: mediaStore,
		clock:      clk,
		logger:     logger.NewWithComponent("lifecycle"),
	}
}

// Classify computes the lifecycle state of a capsule at the given time.
//
// Decision order matters: the hard expiry ceiling wins over everything,
// view-budget exhaustion wins over availability, and only then does the
// locked/unlocked/opened distinction apply. The two expiry triggers are
// independent; either one alone expires the capsule.
func (lm *LifecycleManagerImpl) Classify(capsule *models.Capsule, now time.Time) models.LifecycleState {
	if now.After(capsule.ExpiresAt) {
		return models.StateExpired
	}

	if capsule.IsPartiallyViewed() && capsule.RemainingTime(now) <= 0 {
		return models.StateExpired
	}

	if now.Before(capsule.AvailableAt) {
		return models.StateLocked
	}

	if capsule.IsPartiallyViewed() {
		return models.StateOpened
	}

	return models.StateUnlocked
}

// RemainingTime computes the seconds of viewing budget left at the given time
func (lm *LifecycleManagerImpl) RemainingTime(capsule *models.Capsule, now time.Time) float64 {
	return capsule.RemainingTime(now)
}

// Open transitions a capsule into the Opened state
func (lm *LifecycleManagerImpl) Open(ctx context.Context, id string) (*models.Capsule, error) {
	if id == "" {
		return nil, apperrors.NewAppError(apperrors.ErrInvalidInput, "capsule ID cannot be empty", nil)
	}

	capsule, err := lm.db.GetCapsule(id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, apperrors.NewAppError(apperrors.ErrCapsuleNotFound, "capsule not found", err)
		}
		return nil, apperrors.WrapError(err, apperrors.ErrDatabaseError, "failed to load capsule")
	}

	now := lm.clock.Now()

	switch lm.Classify(capsule, now) {
	case models.StateLocked:
		return nil, apperrors.NewNotYetAvailable(capsule.AvailableAt, now)
	case models.StateExpired:
		// The record is already past its lifecycle; converge it before
		// reporting the condition
		if err := lm.ExpireAndDelete(ctx, capsule); err != nil {
			lm.logger.WarnWithError("Failed to clean up expired capsule on open", err)
		}
		return nil, apperrors.NewAppError(apperrors.ErrAlreadyExpired, "capsule has expired", nil)
	}

	// MarkOpened writes the anchor only when it is still unset, so a resume
	// (or a concurrent open from another client) leaves the original
	// first_opened_at in place
	opened, err := lm.db.MarkOpened(id, now)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			// Deleted out from under us by a concurrent sweep
			return nil, apperrors.NewAppError(apperrors.ErrAlreadyExpired, "capsule was deleted concurrently", err)
		}
		return nil, apperrors.WrapError(err, apperrors.ErrDatabaseError, "failed to mark capsule opened")
	}

	lm.logger.InfoWithFields("Capsule opened", map[string]interface{}{
		"capsule_id":    opened.ID,
		"view_duration": opened.ViewDuration,
		"first_opened":  opened.FirstOpenedAt != nil,
	})

	return opened, nil
}

// ExpireAndDelete removes the capsule record and its media blob
func (lm *LifecycleManagerImpl) ExpireAndDelete(ctx context.Context, capsule *models.Capsule) error {
	if capsule == nil {
		return fmt.Errorf("capsule cannot be nil")
	}

	// Media first: if the blob delete fails the record stays behind, and a
	// later sweep retries the whole cleanup
	if capsule.HasMedia() && lm.mediaStore != nil {
		if err := lm.mediaStore.Delete(ctx, capsule.MediaPath); err != nil {
			return apperrors.WrapError(err, apperrors.ErrMediaUnavailable, "failed to delete capsule media")
		}
	}

	if err := lm.db.DeleteCapsule(capsule.ID); err != nil {
		return apperrors.WrapError(err, apperrors.ErrDatabaseError, "failed to delete capsule record")
	}

	lm.logger.InfoWithFields("Capsule expired and deleted", map[string]interface{}{
		"capsule_id": capsule.ID,
		"had_media":  capsule.HasMedia(),
	})

	return nil
}
