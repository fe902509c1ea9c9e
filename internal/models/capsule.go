package models

import (
	"time"
)

// CapsuleType represents the kind of content sealed in a capsule
type CapsuleType string

const (
	TypeText  CapsuleType = "text"
	TypeImage CapsuleType = "image"
	TypeVideo CapsuleType = "video"
)

// LifecycleState represents the derived lifecycle state of a capsule.
// It is never stored; it is computed from the record and the current time.
type LifecycleState string

const (
	StateLocked   LifecycleState = "locked"
	StateUnlocked LifecycleState = "unlocked"
	StateOpened   LifecycleState = "opened"
	StateExpired  LifecycleState = "expired"
)

const (
	// MinViewDuration is the smallest viewing budget a capsule may carry, in seconds
	MinViewDuration = 5.0

	// CapsuleLifetime is the hard deletion ceiling measured from creation,
	// independent of viewing behavior
	CapsuleLifetime = 24 * time.Hour

	// MaxMediaSize is the upload size limit for image and video capsules
	MaxMediaSize = 100 * 1024 * 1024 // 100MB
)

// Capsule represents a time capsule record. The record store owns the durable
// state; everything time-dependent is derived from it on demand.
type Capsule struct {
	ID           string      `json:"id"`
	Name         string      `json:"name"`
	Type         CapsuleType `json:"type"`
	Content      string      `json:"content"`    // inline text, or original filename for media
	MediaPath    string      `json:"media_path"` // media store path; empty for text capsules
	CreatedAt    time.Time   `json:"created_at"`
	AvailableAt  time.Time   `json:"available_at"`
	ExpiresAt    time.Time   `json:"expires_at"`
	ViewDuration float64     `json:"view_duration"` // total viewing budget in seconds

	IsOpened      bool       `json:"is_opened"`
	FirstOpenedAt *time.Time `json:"first_opened_at"` // anchor timestamp; set exactly once

	// RemainingDuration is a store-maintained hint of seconds left. It may be
	// stale relative to a live countdown and is never the source of truth.
	RemainingDuration *float64 `json:"remaining_duration"`
}

// IsAvailable reports whether the capsule has unlocked at the given time
func (c *Capsule) IsAvailable(now time.Time) bool {
	return !now.Before(c.AvailableAt)
}

// IsPartiallyViewed reports whether the user has started viewing the capsule
func (c *Capsule) IsPartiallyViewed() bool {
	return c.IsOpened && c.FirstOpenedAt != nil
}

// Elapsed returns the seconds of viewing budget consumed at the given time.
// It is zero for a capsule that has never been opened.
func (c *Capsule) Elapsed(now time.Time) float64 {
	if c.FirstOpenedAt == nil {
		return 0
	}
	elapsed := now.Sub(*c.FirstOpenedAt).Seconds()
	if elapsed < 0 {
		// Clock skew can put the anchor in the local future; no budget has
		// been consumed in that case.
		return 0
	}
	return elapsed
}

// RemainingTime returns the seconds of viewing budget left at the given time.
// The full budget is returned for a capsule that has never been opened, and
// the result never goes below zero.
func (c *Capsule) RemainingTime(now time.Time) float64 {
	if c.FirstOpenedAt == nil {
		return c.ViewDuration
	}
	remaining := c.ViewDuration - c.Elapsed(now)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// DisplayName returns the capsule name, falling back to a label derived from
// the capsule type when no name was given at creation.
func (c *Capsule) DisplayName() string {
	if c.Name != "" {
		return c.Name
	}
	switch c.Type {
	case TypeImage:
		return "Image Capsule"
	case TypeVideo:
		return "Video Capsule"
	default:
		return "Text Capsule"
	}
}

// HasMedia reports whether the capsule references a blob in the media store
func (c *Capsule) HasMedia() bool {
	return c.Type != TypeText && c.MediaPath != ""
}

// Validate checks the capsule record invariants
func (c *Capsule) Validate() error {
	if c.ID == "" {
		return &ValidationError{Field: "id", Message: "capsule ID cannot be empty"}
	}

	switch c.Type {
	case TypeText, TypeImage, TypeVideo:
	default:
		return &ValidationError{Field: "type", Message: "capsule type must be text, image, or video"}
	}

	if c.Type == TypeText && c.Content == "" {
		return &ValidationError{Field: "content", Message: "text capsules require content"}
	}

	if c.Type != TypeText && c.MediaPath == "" {
		return &ValidationError{Field: "media_path", Message: "media capsules require a media path"}
	}

	if c.ViewDuration < MinViewDuration {
		return &ValidationError{Field: "view_duration", Message: "view duration must be at least 5 seconds"}
	}

	if !c.ExpiresAt.After(c.CreatedAt) {
		return &ValidationError{Field: "expires_at", Message: "expiry must be after creation"}
	}

	return nil
}

// ValidationError represents a capsule or settings validation error
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e *ValidationError) Error() string {
	return e.Message
}
