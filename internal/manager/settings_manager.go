package manager

import (
	"errors"
	"time"

	"time-capsule-app/internal/models"
	"time-capsule-app/internal/storage"
	apperrors "time-capsule-app/pkg/errors"
	"time-capsule-app/pkg/logger"
)

const settingsConfigKey = "application_settings"

// SettingsManager interface defines the contract for settings persistence
type SettingsManager interface {
	// LoadSettings retrieves settings from the database, falling back to
	// defaults when nothing has been saved yet
	LoadSettings() (*models.ApplicationSettings, error)

	// SaveSettings validates and stores settings in the database
	SaveSettings(settings *models.ApplicationSettings) error

	// GetDefaultSettings returns the built-in defaults
	GetDefaultSettings() *models.ApplicationSettings

	// ValidateSettings validates a settings object without saving it
	ValidateSettings(settings *models.ApplicationSettings) error
}

// SettingsManagerImpl implements the SettingsManager interface
type SettingsManagerImpl struct {
	db     storage.Database
	logger *logger.Logger
}

// NewSettingsManager creates a new SettingsManager instance
func NewSettingsManager(db storage.Database) *SettingsManagerImpl {
	return &SettingsManagerImpl{
		db:     db,
		logger: logger.NewWithComponent("settings"),
	}
}

// LoadSettings retrieves settings from the database
func (sm *SettingsManagerImpl) LoadSettings() (*models.ApplicationSettings, error) {
	value, err := sm.db.GetConfig(settingsConfigKey)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			sm.logger.Debug("No saved settings found, using defaults")
			return sm.GetDefaultSettings(), nil
		}
		return nil, apperrors.WrapError(err, apperrors.ErrDatabaseError, "failed to load settings")
	}

	settings := &models.ApplicationSettings{}
	if err := settings.FromJSON(value); err != nil {
		// A corrupt settings blob should not brick the app
		sm.logger.WarnWithError("Saved settings are unreadable, using defaults", err)
		return sm.GetDefaultSettings(), nil
	}

	if err := settings.Validate(); err != nil {
		sm.logger.WarnWithError("Saved settings failed validation, using defaults", err)
		return sm.GetDefaultSettings(), nil
	}

	return settings, nil
}

// SaveSettings validates and stores settings in the database
func (sm *SettingsManagerImpl) SaveSettings(settings *models.ApplicationSettings) error {
	if settings == nil {
		return apperrors.NewAppError(apperrors.ErrInvalidInput, "settings cannot be nil", nil)
	}

	if err := settings.ValidateForSave(); err != nil {
		return apperrors.WrapError(err, apperrors.ErrInvalidInput, "invalid settings")
	}

	settings.LastUpdated = time.Now()

	value, err := settings.ToJSON()
	if err != nil {
		return apperrors.WrapError(err, apperrors.ErrInternalError, "failed to encode settings")
	}

	if err := sm.db.SaveConfig(settingsConfigKey, value); err != nil {
		return apperrors.WrapError(err, apperrors.ErrDatabaseError, "failed to save settings")
	}

	sm.logger.InfoWithFields("Settings saved", map[string]interface{}{
		"aws_region":     settings.AWSRegion,
		"s3_bucket":      settings.S3Bucket,
		"sweep_interval": settings.SweepIntervalSecs,
	})

	return nil
}

// GetDefaultSettings returns the built-in defaults
func (sm *SettingsManagerImpl) GetDefaultSettings() *models.ApplicationSettings {
	return models.DefaultApplicationSettings()
}

// ValidateSettings validates a settings object without saving it
func (sm *SettingsManagerImpl) ValidateSettings(settings *models.ApplicationSettings) error {
	if settings == nil {
		return apperrors.NewAppError(apperrors.ErrInvalidInput, "settings cannot be nil", nil)
	}
	return settings.Validate()
}
