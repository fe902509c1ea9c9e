package models

import (
	"encoding/json"
	"time"
)

// ApplicationSettings represents user preferences stored locally
type ApplicationSettings struct {
	// AWS Configuration
	AWSRegion string `json:"aws_region"`
	S3Bucket  string `json:"s3_bucket"`

	// Default Settings
	DefaultViewDuration float64 `json:"default_view_duration"` // seconds, >= 5
	MaxMediaSize        int64   `json:"max_media_size"`        // in bytes
	SweepIntervalSecs   int     `json:"sweep_interval_secs"`   // full expiry sweep cadence

	// UI Settings
	UITheme string `json:"ui_theme"` // "light", "dark", "auto"

	// Application Settings
	AutoRefresh bool `json:"auto_refresh"` // react to change signals

	// Internal tracking
	LastUpdated time.Time `json:"last_updated"`
}

// DefaultApplicationSettings returns the default application settings
func DefaultApplicationSettings() *ApplicationSettings {
	return &ApplicationSettings{
		AWSRegion:           "us-east-1",
		S3Bucket:            "",
		DefaultViewDuration: 15,
		MaxMediaSize:        MaxMediaSize,
		SweepIntervalSecs:   60,
		UITheme:             "auto",
		AutoRefresh:         true,
		LastUpdated:         time.Now(),
	}
}

// ToJSON converts settings to JSON string for database storage
func (s *ApplicationSettings) ToJSON() (string, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// FromJSON loads settings from JSON string
func (s *ApplicationSettings) FromJSON(jsonStr string) error {
	return json.Unmarshal([]byte(jsonStr), s)
}

// GetSweepInterval converts the sweep cadence to a time.Duration
func (s *ApplicationSettings) GetSweepInterval() time.Duration {
	if s.SweepIntervalSecs <= 0 {
		return time.Minute
	}
	return time.Duration(s.SweepIntervalSecs) * time.Second
}

// Validate checks if the settings are valid
func (s *ApplicationSettings) Validate() error {
	if s.AWSRegion == "" {
		return &ValidationError{Field: "aws_region", Message: "AWS region cannot be empty"}
	}

	if s.DefaultViewDuration < MinViewDuration {
		return &ValidationError{Field: "default_view_duration", Message: "Default view duration must be at least 5 seconds"}
	}

	if s.MaxMediaSize <= 0 {
		return &ValidationError{Field: "max_media_size", Message: "Max media size must be positive"}
	}

	if s.SweepIntervalSecs <= 0 {
		return &ValidationError{Field: "sweep_interval_secs", Message: "Sweep interval must be positive"}
	}

	validThemes := map[string]bool{
		"light": true, "dark": true, "auto": true,
	}
	if !validThemes[s.UITheme] {
		return &ValidationError{Field: "ui_theme", Message: "Invalid UI theme"}
	}

	return nil
}

// ValidateForSave checks if the settings are valid for saving (stricter validation)
func (s *ApplicationSettings) ValidateForSave() error {
	if s == nil {
		return &ValidationError{Field: "settings", Message: "settings cannot be nil"}
	}

	// First run basic validation
	if err := s.Validate(); err != nil {
		return err
	}

	// Additional validation for saving - require S3 bucket
	if s.S3Bucket == "" {
		return &ValidationError{Field: "s3_bucket", Message: "S3 bucket name cannot be empty"}
	}

	return nil
}
