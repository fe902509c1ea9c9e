package manager

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"

	"time-capsule-app/internal/media"
	"time-capsule-app/internal/models"
	"time-capsule-app/internal/storage"
	apperrors "time-capsule-app/pkg/errors"
	"time-capsule-app/pkg/logger"
)

// CreateCapsuleParams carries the user-supplied fields of a new capsule
type CreateCapsuleParams struct {
	Name         string
	Type         models.CapsuleType
	Content      string // inline text for text capsules
	AvailableAt  time.Time
	ViewDuration float64 // seconds
}

// CapsuleManager interface defines the contract for capsule creation and retrieval
type CapsuleManager interface {
	// CreateTextCapsule seals an inline text capsule
	CreateTextCapsule(ctx context.Context, params CreateCapsuleParams) (*models.Capsule, error)

	// CreateMediaCapsule uploads the media file first and then seals the
	// capsule record referencing it
	CreateMediaCapsule(ctx context.Context, params CreateCapsuleParams, filePath string, progressCh chan<- media.UploadProgress) (*models.Capsule, error)

	// GetCapsule loads a capsule for viewing. A capsule whose lifecycle has
	// ended is cleaned up and reported as AlreadyExpired.
	GetCapsule(ctx context.Context, id string) (*models.Capsule, error)

	// GetMediaURL returns a time-limited signed URL for the capsule's media
	GetMediaURL(ctx context.Context, capsule *models.Capsule) (string, error)

	// DeleteCapsule removes a capsule and its media regardless of lifecycle state
	DeleteCapsule(ctx context.Context, id string) error

	// SetMaxMediaSize overrides the media upload size limit
	SetMaxMediaSize(bytes int64)
}

// CapsuleManagerImpl implements the CapsuleManager interface
type CapsuleManagerImpl struct {
	db         storage.Database
	mediaStore media.MediaStore
	lifecycle  LifecycleManager
	clock      clock.Clock
	logger     *logger.Logger

	mu       sync.Mutex
	maxMedia int64
}

// NewCapsuleManager creates a new CapsuleManager instance
func NewCapsuleManager(db storage.Database, mediaStore media.MediaStore, lifecycle LifecycleManager, clk clock.Clock) *CapsuleManagerImpl {
	return &CapsuleManagerImpl{
		db:         db,
		mediaStore: mediaStore,
		lifecycle:  lifecycle,
		clock:      clk,
		logger:     logger.NewWithComponent("capsules"),
		maxMedia:   models.MaxMediaSize,
	}
}

// SetMaxMediaSize overrides the media upload size limit. Uploads run on a
// background goroutine, so the limit is read under the lock.
func (cm *CapsuleManagerImpl) SetMaxMediaSize(bytes int64) {
	if bytes <= 0 {
		return
	}
	cm.mu.Lock()
	cm.maxMedia = bytes
	cm.mu.Unlock()
}

func (cm *CapsuleManagerImpl) maxMediaSize() int64 {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	return cm.maxMedia
}

// CreateTextCapsule seals an inline text capsule
func (cm *CapsuleManagerImpl) CreateTextCapsule(ctx context.Context, params CreateCapsuleParams) (*models.Capsule, error) {
	if params.Type != models.TypeText {
		return nil, apperrors.NewAppError(apperrors.ErrInvalidInput, "capsule type must be text", nil)
	}

	if strings.TrimSpace(params.Content) == "" {
		return nil, apperrors.NewAppError(apperrors.ErrMissingRequired, "text capsules require content", nil)
	}

	capsule, err := cm.buildCapsule(params, params.Content, "")
	if err != nil {
		return nil, err
	}

	if err := cm.db.SaveCapsule(capsule); err != nil {
		return nil, apperrors.WrapError(err, apperrors.ErrDatabaseError, "failed to save capsule")
	}

	cm.logger.InfoWithFields("Text capsule sealed", map[string]interface{}{
		"capsule_id":   capsule.ID,
		"available_at": capsule.AvailableAt.UTC().Format(time.RFC3339),
	})

	return capsule, nil
}

// CreateMediaCapsule uploads the media blob and seals the capsule record
func (cm *CapsuleManagerImpl) CreateMediaCapsule(ctx context.Context, params CreateCapsuleParams, filePath string, progressCh chan<- media.UploadProgress) (*models.Capsule, error) {
	if params.Type != models.TypeImage && params.Type != models.TypeVideo {
		return nil, apperrors.NewAppError(apperrors.ErrInvalidInput, "capsule type must be image or video", nil)
	}

	if cm.mediaStore == nil {
		return nil, apperrors.NewAppError(apperrors.ErrMissingConfig, "media store is not configured", nil)
	}

	if filePath == "" {
		return nil, apperrors.NewAppError(apperrors.ErrMissingRequired, "media capsules require a file", nil)
	}

	fileInfo, err := os.Stat(filePath)
	if err != nil {
		return nil, apperrors.WrapError(err, apperrors.ErrInvalidInput, "failed to read media file")
	}

	if fileInfo.IsDir() {
		return nil, apperrors.NewAppError(apperrors.ErrInvalidInput, "media path is a directory, not a file", nil)
	}

	maxMedia := cm.maxMediaSize()
	if fileInfo.Size() > maxMedia {
		return nil, apperrors.NewAppErrorWithContext(apperrors.ErrUploadTooLarge,
			fmt.Sprintf("file size %d exceeds the %d byte limit", fileInfo.Size(), maxMedia),
			nil, map[string]interface{}{
				"file_size": fileInfo.Size(),
				"max_size":  maxMedia,
			})
	}

	if err := validateMediaExtension(params.Type, filePath); err != nil {
		return nil, err
	}

	// Media goes up first; a failed record insert afterwards orphans a blob
	// at worst, which the sweep cannot see but costs nothing correctness-wise
	mediaPath := cm.generateMediaPath(filePath)
	contentType := media.ContentTypeForFile(filePath)
	if err := cm.mediaStore.Upload(ctx, mediaPath, filePath, contentType, progressCh); err != nil {
		return nil, apperrors.WrapError(err, apperrors.ErrMediaUploadFailed, "failed to upload capsule media")
	}

	capsule, err := cm.buildCapsule(params, filepath.Base(filePath), mediaPath)
	if err != nil {
		return nil, err
	}

	if err := cm.db.SaveCapsule(capsule); err != nil {
		// Best effort: reclaim the uploaded blob so it doesn't linger
		if delErr := cm.mediaStore.Delete(ctx, mediaPath); delErr != nil {
			cm.logger.WarnWithError("Failed to reclaim uploaded media after insert failure", delErr)
		}
		return nil, apperrors.WrapError(err, apperrors.ErrDatabaseError, "failed to save capsule")
	}

	cm.logger.InfoWithFields("Media capsule sealed", map[string]interface{}{
		"capsule_id":   capsule.ID,
		"type":         string(capsule.Type),
		"media_path":   capsule.MediaPath,
		"available_at": capsule.AvailableAt.UTC().Format(time.RFC3339),
	})

	return capsule, nil
}

// GetCapsule loads a capsule for viewing
func (cm *CapsuleManagerImpl) GetCapsule(ctx context.Context, id string) (*models.Capsule, error) {
	if id == "" {
		return nil, apperrors.NewAppError(apperrors.ErrInvalidInput, "capsule ID cannot be empty", nil)
	}

	capsule, err := cm.db.GetCapsule(id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, apperrors.NewAppError(apperrors.ErrCapsuleNotFound, "capsule not found", err)
		}
		return nil, apperrors.WrapError(err, apperrors.ErrDatabaseError, "failed to load capsule")
	}

	if cm.lifecycle.Classify(capsule, cm.clock.Now()) == models.StateExpired {
		if err := cm.lifecycle.ExpireAndDelete(ctx, capsule); err != nil {
			cm.logger.WarnWithError("Failed to clean up expired capsule on load", err)
		}
		return nil, apperrors.NewAppError(apperrors.ErrAlreadyExpired, "capsule has expired", nil)
	}

	return capsule, nil
}

// GetMediaURL returns a signed viewing URL for the capsule's media
func (cm *CapsuleManagerImpl) GetMediaURL(ctx context.Context, capsule *models.Capsule) (string, error) {
	if capsule == nil {
		return "", apperrors.NewAppError(apperrors.ErrInvalidInput, "capsule cannot be nil", nil)
	}

	if !capsule.HasMedia() {
		return "", apperrors.NewAppError(apperrors.ErrInvalidInput, "capsule has no media", nil)
	}

	if cm.mediaStore == nil {
		return "", apperrors.NewAppError(apperrors.ErrMissingConfig, "media store is not configured", nil)
	}

	url, err := cm.mediaStore.GetAccessURL(ctx, capsule.MediaPath, media.DefaultAccessTTL)
	if err != nil {
		return "", apperrors.WrapError(err, apperrors.ErrMediaUnavailable, "failed to generate media access URL")
	}

	return url, nil
}

// DeleteCapsule removes a capsule and its media regardless of lifecycle state
func (cm *CapsuleManagerImpl) DeleteCapsule(ctx context.Context, id string) error {
	if id == "" {
		return apperrors.NewAppError(apperrors.ErrInvalidInput, "capsule ID cannot be empty", nil)
	}

	capsule, err := cm.db.GetCapsule(id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			// Already gone; converged
			return nil
		}
		return apperrors.WrapError(err, apperrors.ErrDatabaseError, "failed to load capsule")
	}

	return cm.lifecycle.ExpireAndDelete(ctx, capsule)
}

// buildCapsule assembles and validates a new capsule record
func (cm *CapsuleManagerImpl) buildCapsule(params CreateCapsuleParams, content, mediaPath string) (*models.Capsule, error) {
	if params.ViewDuration < models.MinViewDuration {
		return nil, apperrors.NewAppError(apperrors.ErrInvalidInput,
			fmt.Sprintf("view duration must be at least %.0f seconds", models.MinViewDuration), nil)
	}

	now := cm.clock.Now()
	availableAt := params.AvailableAt
	if availableAt.IsZero() {
		availableAt = now
	}

	remaining := params.ViewDuration
	capsule := &models.Capsule{
		ID:                uuid.New().String(),
		Name:              strings.TrimSpace(params.Name),
		Type:              params.Type,
		Content:           content,
		MediaPath:         mediaPath,
		CreatedAt:         now,
		AvailableAt:       availableAt,
		ExpiresAt:         now.Add(models.CapsuleLifetime),
		ViewDuration:      params.ViewDuration,
		IsOpened:          false,
		FirstOpenedAt:     nil,
		RemainingDuration: &remaining,
	}

	if err := capsule.Validate(); err != nil {
		return nil, apperrors.WrapError(err, apperrors.ErrInvalidInput, "invalid capsule")
	}

	return capsule, nil
}

// generateMediaPath names a blob the way the original uploader did:
// millisecond timestamp plus a unique suffix, keeping the file extension.
func (cm *CapsuleManagerImpl) generateMediaPath(filePath string) string {
	ext := strings.ToLower(filepath.Ext(filePath))
	return fmt.Sprintf("%d-%s%s", cm.clock.Now().UnixMilli(), uuid.New().String(), ext)
}

// validateMediaExtension checks the file extension against the capsule type
func validateMediaExtension(capsuleType models.CapsuleType, filePath string) error {
	ext := strings.ToLower(filepath.Ext(filePath))

	imageExts := map[string]bool{".jpg": true, ".jpeg": true, ".png": true, ".gif": true, ".webp": true}
	videoExts := map[string]bool{".mp4": true, ".mov": true, ".webm": true}

	switch capsuleType {
	case models.TypeImage:
		if !imageExts[ext] {
			return apperrors.NewAppError(apperrors.ErrUnsupportedType,
				fmt.Sprintf("'%s' is not a supported image format", ext), nil)
		}
	case models.TypeVideo:
		if !videoExts[ext] {
			return apperrors.NewAppError(apperrors.ErrUnsupportedType,
				fmt.Sprintf("'%s' is not a supported video format", ext), nil)
		}
	}

	return nil
}
