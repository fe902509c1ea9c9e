package main

import (
	"os"
	"time"

	"time-capsule-app/internal/app"
	"time-capsule-app/internal/config"
	"time-capsule-app/internal/manager"
	"time-capsule-app/internal/media"
	"time-capsule-app/internal/storage"
	"time-capsule-app/internal/ui"
	"time-capsule-app/pkg/logger"

	"github.com/benbjohnson/clock"

	fyneapp "fyne.io/fyne/v2/app"
)

func main() {
	log := logger.New()
	log.Info("Time Capsules starting...")

	cfg := config.DefaultConfig()

	db, err := storage.NewSQLiteDatabase(cfg.DatabasePath)
	if err != nil {
		log.ErrorWithError("Failed to open local database", err)
		os.Exit(1)
	}
	defer db.Close()

	mediaStore := setupMediaStore(log, db, cfg)

	clk := clock.New()
	lifecycle := manager.NewLifecycleManager(db, mediaStore, clk)
	capsules := manager.NewCapsuleManager(db, mediaStore, lifecycle, clk)
	availability := manager.NewAvailabilityManager(db, lifecycle, clk)
	settings := manager.NewSettingsManager(db)

	newCountdown := func(interval time.Duration) *manager.CountdownManager {
		return manager.NewCountdownManager(lifecycle, db, clk, interval)
	}

	fyneApp := fyneapp.NewWithID("time-capsule-app")
	mainWindow := ui.NewMainWindow(fyneApp)

	controller := app.NewController(capsules, lifecycle, availability, settings, newCountdown, mainWindow)
	if err := controller.Start(); err != nil {
		log.ErrorWithError("Controller failed to start", err)
	}
	defer controller.Stop()

	log.Info("Application UI initialized")
	mainWindow.Show()
}

// setupMediaStore builds the S3-backed media store. The app still works
// without it; media capsules just cannot be sealed or viewed until AWS
// settings are configured.
func setupMediaStore(log *logger.Logger, db storage.Database, cfg *config.AppConfig) media.MediaStore {
	bucket := cfg.S3Bucket
	settings := manager.NewSettingsManager(db)
	if saved, err := settings.LoadSettings(); err == nil && saved.S3Bucket != "" {
		bucket = saved.S3Bucket
	}

	if bucket == "" {
		log.Warn("No S3 bucket configured, media capsules disabled")
		return nil
	}

	credProvider, err := media.NewSecureCredentialProvider()
	if err != nil {
		log.WarnWithError("Failed to initialize credential provider, media capsules disabled", err)
		return nil
	}

	store, err := media.NewS3MediaStore(credProvider, bucket)
	if err != nil {
		log.WarnWithError("Failed to initialize media store, media capsules disabled", err)
		return nil
	}

	return store
}
