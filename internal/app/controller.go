package app

import (
	"context"
	"fmt"
	"time"

	"time-capsule-app/internal/manager"
	"time-capsule-app/internal/media"
	"time-capsule-app/internal/models"
	"time-capsule-app/pkg/errors"
	"time-capsule-app/pkg/logger"
)

// MainWindowInterface defines the interface for main window operations
type MainWindowInterface interface {
	SetStatus(status string)
	EnableActions(enabled bool)
	UpdateListing(listing manager.Listing)
	ApplyTheme(name string)

	// Callback setters
	SetOnCreateTextCapsule(callback func(params manager.CreateCapsuleParams) error)
	SetOnCreateMediaCapsule(callback func(params manager.CreateCapsuleParams, filePath string) error)
	SetOnOpenCapsule(callback func(capsuleID string) (*models.Capsule, error))
	SetOnDeleteCapsule(callback func(capsuleID string) error)
	SetOnGetMediaURL(callback func(capsule *models.Capsule) (string, error))
	SetOnRefresh(callback func() error)
	SetOnNewCountdown(callback func(interval time.Duration) *manager.CountdownManager)
	SetOnSaveSettings(callback func(settings *models.ApplicationSettings) error)
	SetOnLoadSettings(callback func() (*models.ApplicationSettings, error))
}

// Controller coordinates between UI and business logic layers
type Controller struct {
	// Business logic managers
	capsuleManager  manager.CapsuleManager
	lifecycle       manager.LifecycleManager
	availability    *manager.AvailabilityManager
	settingsManager manager.SettingsManager

	// Countdown factory for detail views
	newCountdown func(interval time.Duration) *manager.CountdownManager

	// UI components
	mainWindow MainWindowInterface

	// Services
	logger *logger.Logger

	// Background context for operations
	ctx    context.Context
	cancel context.CancelFunc
}

// NewController creates a new application controller
func NewController(
	capsuleManager manager.CapsuleManager,
	lifecycle manager.LifecycleManager,
	availability *manager.AvailabilityManager,
	settingsManager manager.SettingsManager,
	newCountdown func(interval time.Duration) *manager.CountdownManager,
	mainWindow MainWindowInterface,
) *Controller {
	ctx, cancel := context.WithCancel(context.Background())

	controller := &Controller{
		capsuleManager:  capsuleManager,
		lifecycle:       lifecycle,
		availability:    availability,
		settingsManager: settingsManager,
		newCountdown:    newCountdown,
		mainWindow:      mainWindow,
		logger:          logger.New(),
		ctx:             ctx,
		cancel:          cancel,
	}

	// Connect UI callbacks to controller methods
	controller.setupUICallbacks()

	return controller
}

// Start initializes the controller and starts the availability loop
func (c *Controller) Start() error {
	c.logger.Info("Starting application controller")

	if settings, err := c.settingsManager.LoadSettings(); err == nil {
		c.applyPreferences(settings)
	}

	c.availability.SetOnUpdate(func(listing manager.Listing) {
		c.mainWindow.UpdateListing(listing)
		if listing.Stale {
			c.mainWindow.SetStatus("Showing last known capsules (refresh failed)")
		} else {
			c.mainWindow.SetStatus("Ready")
		}
	})

	c.availability.Start(c.ctx)

	c.mainWindow.EnableActions(true)
	return nil
}

// Stop gracefully shuts down the controller
func (c *Controller) Stop() {
	c.logger.Info("Stopping application controller")
	c.availability.Stop()
	c.cancel()
}

// setupUICallbacks connects UI callbacks to controller methods
func (c *Controller) setupUICallbacks() {
	c.mainWindow.SetOnCreateTextCapsule(c.handleCreateTextCapsule)
	c.mainWindow.SetOnCreateMediaCapsule(c.handleCreateMediaCapsule)
	c.mainWindow.SetOnOpenCapsule(c.handleOpenCapsule)
	c.mainWindow.SetOnDeleteCapsule(c.handleDeleteCapsule)
	c.mainWindow.SetOnGetMediaURL(c.handleGetMediaURL)
	c.mainWindow.SetOnRefresh(c.handleRefresh)
	c.mainWindow.SetOnNewCountdown(c.newCountdown)
	c.mainWindow.SetOnSaveSettings(c.handleSaveSettings)
	c.mainWindow.SetOnLoadSettings(c.handleLoadSettings)
}

// handleCreateTextCapsule handles text capsule creation requests from UI
func (c *Controller) handleCreateTextCapsule(params manager.CreateCapsuleParams) error {
	c.logger.Info("Sealing text capsule")

	capsule, err := c.capsuleManager.CreateTextCapsule(c.ctx, params)
	if err != nil {
		return c.handleError("create_text_capsule", err)
	}

	c.logger.InfoWithFields("Text capsule sealed", map[string]interface{}{
		"capsule_id": capsule.ID,
	})
	c.mainWindow.SetStatus("Capsule sealed")
	return nil
}

// handleCreateMediaCapsule handles media capsule creation requests from UI
func (c *Controller) handleCreateMediaCapsule(params manager.CreateCapsuleParams, filePath string) error {
	c.logger.Info("Sealing media capsule")

	// Update UI to show upload in progress
	c.mainWindow.SetStatus("Uploading media...")
	c.mainWindow.EnableActions(false)

	progressCh := make(chan media.UploadProgress, 10)

	// Start upload in background goroutine
	go func() {
		defer close(progressCh)
		defer c.mainWindow.EnableActions(true)

		capsule, err := c.capsuleManager.CreateMediaCapsule(c.ctx, params, filePath, progressCh)
		if err != nil {
			c.handleError("create_media_capsule", err)
			return
		}

		c.logger.InfoWithFields("Media capsule sealed", map[string]interface{}{
			"capsule_id": capsule.ID,
		})
		c.mainWindow.SetStatus("Capsule sealed")
	}()

	// Drain progress updates
	go func() {
		for progress := range progressCh {
			c.logger.DebugWithFields("Upload progress", map[string]interface{}{
				"percentage":     fmt.Sprintf("%.1f", progress.Percentage),
				"bytes_uploaded": progress.BytesUploaded,
				"total_bytes":    progress.TotalBytes,
			})
		}
	}()

	return nil
}

// handleOpenCapsule handles open requests from UI and returns the opened capsule
func (c *Controller) handleOpenCapsule(capsuleID string) (*models.Capsule, error) {
	c.logger.InfoWithFields("Opening capsule", map[string]interface{}{
		"capsule_id": capsuleID,
	})

	capsule, err := c.lifecycle.Open(c.ctx, capsuleID)
	if err != nil {
		return nil, c.handleError("open_capsule", err)
	}

	return capsule, nil
}

// handleDeleteCapsule handles deletion requests from UI
func (c *Controller) handleDeleteCapsule(capsuleID string) error {
	c.logger.InfoWithFields("Deleting capsule", map[string]interface{}{
		"capsule_id": capsuleID,
	})

	if err := c.capsuleManager.DeleteCapsule(c.ctx, capsuleID); err != nil {
		return c.handleError("delete_capsule", err)
	}

	c.mainWindow.SetStatus("Capsule deleted")
	return nil
}

// handleGetMediaURL generates a signed viewing URL for a capsule's media
func (c *Controller) handleGetMediaURL(capsule *models.Capsule) (string, error) {
	url, err := c.capsuleManager.GetMediaURL(c.ctx, capsule)
	if err != nil {
		return "", c.handleError("get_media_url", err)
	}
	return url, nil
}

// handleRefresh forces a full sweep and listing refresh
func (c *Controller) handleRefresh() error {
	if err := c.availability.Refresh(c.ctx); err != nil {
		return c.handleError("refresh", err)
	}
	return nil
}

// handleSaveSettings handles settings save requests from UI
func (c *Controller) handleSaveSettings(settings *models.ApplicationSettings) error {
	c.logger.Info("Saving application settings")

	if err := c.settingsManager.SaveSettings(settings); err != nil {
		return c.handleError("save_settings", err)
	}

	c.applyPreferences(settings)

	c.logger.Info("Application settings saved successfully")
	return nil
}

// applyPreferences pushes the saved settings into the running components
func (c *Controller) applyPreferences(settings *models.ApplicationSettings) {
	if settings.SweepIntervalSecs > 0 {
		c.availability.SetSweepInterval(settings.GetSweepInterval())
	}
	c.availability.SetAutoRefresh(settings.AutoRefresh)
	c.capsuleManager.SetMaxMediaSize(settings.MaxMediaSize)
	c.mainWindow.ApplyTheme(settings.UITheme)
}

// handleLoadSettings handles settings load requests from UI
func (c *Controller) handleLoadSettings() (*models.ApplicationSettings, error) {
	settings, err := c.settingsManager.LoadSettings()
	if err != nil {
		c.logger.ErrorWithError("Failed to load settings", err)
		return nil, fmt.Errorf("failed to load settings: %w", err)
	}
	return settings, nil
}

// handleError provides centralized error handling with user-friendly messages
func (c *Controller) handleError(operation string, err error) error {
	if err == nil {
		return nil
	}

	appErr := errors.ClassifyError(err)

	c.logger.ErrorWithFields("Operation failed", map[string]interface{}{
		"operation":        operation,
		"error_code":       string(appErr.Code),
		"user_message":     appErr.GetUserMessage(),
		"suggested_action": appErr.GetSuggestedAction(),
		"recoverable":      appErr.IsRecoverable(),
	})

	// Expiry during an interaction is normal; say so without alarm
	if appErr.Code == errors.ErrAlreadyExpired {
		c.mainWindow.SetStatus("That capsule has expired and is gone")
		return appErr
	}

	c.mainWindow.SetStatus(fmt.Sprintf("Error: %s", appErr.GetUserMessage()))
	return appErr
}
