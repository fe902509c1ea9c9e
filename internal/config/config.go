package config

import (
	"os"
	"path/filepath"
)

// AppConfig holds process-level configuration resolved at startup. User
// preferences live in the settings table instead (see manager.SettingsManager).
type AppConfig struct {
	DatabasePath string `json:"database_path"`
	AWSRegion    string `json:"aws_region"`
	S3Bucket     string `json:"s3_bucket"`
}

// DefaultConfig returns default application configuration
func DefaultConfig() *AppConfig {
	return &AppConfig{
		DatabasePath: defaultDatabasePath(),
		AWSRegion:    "us-east-1",
		S3Bucket:     "",
	}
}

// defaultDatabasePath places the capsule database under the user config dir,
// falling back to the working directory when it cannot be resolved.
func defaultDatabasePath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "capsules.db"
	}
	return filepath.Join(dir, "time-capsule-app", "capsules.db")
}
