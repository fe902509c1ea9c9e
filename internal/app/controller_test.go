package app

import (
	"path/filepath"
	"sync"
	"testing"
	"time"

	"time-capsule-app/internal/manager"
	"time-capsule-app/internal/models"
	"time-capsule-app/internal/storage"
	"time-capsule-app/pkg/errors"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// createTempDatabase creates a temporary SQLite database for testing
func createTempDatabase(t *testing.T) storage.Database {
	tempDir := t.TempDir()
	dbPath := filepath.Join(tempDir, "test.db")

	db, err := storage.NewSQLiteDatabase(dbPath)
	require.NoError(t, err, "Failed to create temporary database")
	t.Cleanup(func() { db.Close() })

	return db
}

// MockMainWindow is a minimal mock for testing controller logic
type MockMainWindow struct {
	OnCreateTextCapsule  func(params manager.CreateCapsuleParams) error
	OnCreateMediaCapsule func(params manager.CreateCapsuleParams, filePath string) error
	OnOpenCapsule        func(capsuleID string) (*models.Capsule, error)
	OnDeleteCapsule      func(capsuleID string) error
	OnGetMediaURL        func(capsule *models.Capsule) (string, error)
	OnRefresh            func() error
	OnNewCountdown       func(interval time.Duration) *manager.CountdownManager
	OnSaveSettings       func(settings *models.ApplicationSettings) error
	OnLoadSettings       func() (*models.ApplicationSettings, error)

	// Track UI updates for testing; guarded because the availability loop
	// publishes from a background goroutine
	mu             sync.Mutex
	lastStatus     string
	actionsEnabled bool
	lastListing    manager.Listing
	listingUpdates int
	lastTheme      string
}

func (m *MockMainWindow) SetStatus(status string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastStatus = status
}

func (m *MockMainWindow) EnableActions(enabled bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.actionsEnabled = enabled
}

func (m *MockMainWindow) UpdateListing(listing manager.Listing) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastListing = listing
	m.listingUpdates++
}

func (m *MockMainWindow) LastStatus() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastStatus
}

func (m *MockMainWindow) ActionsEnabled() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.actionsEnabled
}

func (m *MockMainWindow) LastListing() manager.Listing {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastListing
}

func (m *MockMainWindow) ListingUpdates() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.listingUpdates
}

func (m *MockMainWindow) ApplyTheme(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastTheme = name
}

func (m *MockMainWindow) LastTheme() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastTheme
}

// Callback setters for interface compliance
func (m *MockMainWindow) SetOnCreateTextCapsule(callback func(params manager.CreateCapsuleParams) error) {
	m.OnCreateTextCapsule = callback
}

func (m *MockMainWindow) SetOnCreateMediaCapsule(callback func(params manager.CreateCapsuleParams, filePath string) error) {
	m.OnCreateMediaCapsule = callback
}

func (m *MockMainWindow) SetOnOpenCapsule(callback func(capsuleID string) (*models.Capsule, error)) {
	m.OnOpenCapsule = callback
}

func (m *MockMainWindow) SetOnDeleteCapsule(callback func(capsuleID string) error) {
	m.OnDeleteCapsule = callback
}

func (m *MockMainWindow) SetOnGetMediaURL(callback func(capsule *models.Capsule) (string, error)) {
	m.OnGetMediaURL = callback
}

func (m *MockMainWindow) SetOnRefresh(callback func() error) {
	m.OnRefresh = callback
}

func (m *MockMainWindow) SetOnNewCountdown(callback func(interval time.Duration) *manager.CountdownManager) {
	m.OnNewCountdown = callback
}

func (m *MockMainWindow) SetOnSaveSettings(callback func(settings *models.ApplicationSettings) error) {
	m.OnSaveSettings = callback
}

func (m *MockMainWindow) SetOnLoadSettings(callback func() (*models.ApplicationSettings, error)) {
	m.OnLoadSettings = callback
}

// newTestController wires a controller over a temp database without a media
// store, the way the app runs before AWS settings are configured.
func newTestController(t *testing.T) (*Controller, *MockMainWindow, storage.Database) {
	db := createTempDatabase(t)
	clk := clock.New()

	lifecycle := manager.NewLifecycleManager(db, nil, clk)
	capsuleManager := manager.NewCapsuleManager(db, nil, lifecycle, clk)
	availability := manager.NewAvailabilityManager(db, lifecycle, clk)
	settingsManager := manager.NewSettingsManager(db)

	newCountdown := func(interval time.Duration) *manager.CountdownManager {
		return manager.NewCountdownManager(lifecycle, db, clk, interval)
	}

	mockWindow := &MockMainWindow{}
	controller := NewController(capsuleManager, lifecycle, availability, settingsManager, newCountdown, mockWindow)

	return controller, mockWindow, db
}

// sealControllerTestCapsule inserts a sealed text capsule directly
func sealControllerTestCapsule(t *testing.T, db storage.Database, id string, availableAt time.Time) {
	now := time.Now().UTC()
	remaining := 30.0

	capsule := &models.Capsule{
		ID:                id,
		Name:              "Test Capsule",
		Type:              models.TypeText,
		Content:           "a message from the past",
		CreatedAt:         now,
		AvailableAt:       availableAt,
		ExpiresAt:         now.Add(models.CapsuleLifetime),
		ViewDuration:      30,
		RemainingDuration: &remaining,
	}
	require.NoError(t, db.SaveCapsule(capsule))
}

func TestController_Creation(t *testing.T) {
	controller, mockWindow, _ := newTestController(t)

	assert.NotNil(t, controller)

	// Verify callbacks are set
	assert.NotNil(t, mockWindow.OnCreateTextCapsule)
	assert.NotNil(t, mockWindow.OnCreateMediaCapsule)
	assert.NotNil(t, mockWindow.OnOpenCapsule)
	assert.NotNil(t, mockWindow.OnDeleteCapsule)
	assert.NotNil(t, mockWindow.OnGetMediaURL)
	assert.NotNil(t, mockWindow.OnRefresh)
	assert.NotNil(t, mockWindow.OnNewCountdown)
	assert.NotNil(t, mockWindow.OnSaveSettings)
	assert.NotNil(t, mockWindow.OnLoadSettings)

	controller.Stop()
}

func TestController_StartPublishesListing(t *testing.T) {
	controller, mockWindow, db := newTestController(t)

	sealControllerTestCapsule(t, db, "capsule-1", time.Now().UTC())

	err := controller.Start()
	require.NoError(t, err)
	defer controller.Stop()

	assert.True(t, mockWindow.ActionsEnabled())

	// The availability loop refreshes on start and publishes to the window
	assert.Eventually(t, func() bool {
		return mockWindow.ListingUpdates() > 0 && mockWindow.LastStatus() == "Ready"
	}, 2*time.Second, 10*time.Millisecond)

	listing := mockWindow.LastListing()
	require.Len(t, listing.Upcoming, 1)
	assert.Equal(t, "capsule-1", listing.Upcoming[0].ID)
	assert.Empty(t, listing.Expiring)
	assert.False(t, listing.Stale)
}

func TestController_CreateTextCapsule(t *testing.T) {
	controller, mockWindow, db := newTestController(t)
	defer controller.Stop()

	err := mockWindow.OnCreateTextCapsule(manager.CreateCapsuleParams{
		Name:         "Birthday",
		Type:         models.TypeText,
		Content:      "happy birthday, future me",
		ViewDuration: 20,
	})
	require.NoError(t, err)
	assert.Equal(t, "Capsule sealed", mockWindow.LastStatus())

	capsules, err := db.ListViewableCapsules(time.Now().UTC())
	require.NoError(t, err)
	require.Len(t, capsules, 1)
	assert.Equal(t, "Birthday", capsules[0].Name)
}

func TestController_CreateTextCapsule_Invalid(t *testing.T) {
	controller, mockWindow, _ := newTestController(t)
	defer controller.Stop()

	err := mockWindow.OnCreateTextCapsule(manager.CreateCapsuleParams{
		Name:         "Empty",
		Type:         models.TypeText,
		Content:      "   ",
		ViewDuration: 20,
	})
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrMissingRequired))
	assert.Contains(t, mockWindow.LastStatus(), "Error:")
}

func TestController_OpenCapsule(t *testing.T) {
	controller, mockWindow, db := newTestController(t)
	defer controller.Stop()

	sealControllerTestCapsule(t, db, "capsule-open", time.Now().UTC().Add(-time.Minute))

	capsule, err := mockWindow.OnOpenCapsule("capsule-open")
	require.NoError(t, err)
	require.NotNil(t, capsule.FirstOpenedAt)
	assert.True(t, capsule.IsOpened)
}

func TestController_OpenCapsule_NotYetAvailable(t *testing.T) {
	controller, mockWindow, db := newTestController(t)
	defer controller.Stop()

	sealControllerTestCapsule(t, db, "capsule-locked", time.Now().UTC().Add(time.Hour))

	capsule, err := mockWindow.OnOpenCapsule("capsule-locked")
	require.Error(t, err)
	assert.Nil(t, capsule)
	assert.True(t, errors.HasCode(err, errors.ErrNotYetAvailable))
	assert.Contains(t, mockWindow.LastStatus(), "Error:")
}

func TestController_DeleteCapsule(t *testing.T) {
	controller, mockWindow, db := newTestController(t)
	defer controller.Stop()

	sealControllerTestCapsule(t, db, "capsule-del", time.Now().UTC())

	err := mockWindow.OnDeleteCapsule("capsule-del")
	require.NoError(t, err)
	assert.Equal(t, "Capsule deleted", mockWindow.LastStatus())

	_, err = db.GetCapsule("capsule-del")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestController_SettingsRoundtrip(t *testing.T) {
	controller, mockWindow, _ := newTestController(t)
	defer controller.Stop()

	// Unsaved settings load as defaults
	loaded, err := mockWindow.OnLoadSettings()
	require.NoError(t, err)
	assert.Equal(t, "", loaded.S3Bucket)

	settings := loaded
	settings.S3Bucket = "capsule-media-test"
	settings.AWSRegion = "eu-west-1"
	settings.SweepIntervalSecs = 120

	require.NoError(t, mockWindow.OnSaveSettings(settings))

	loaded, err = mockWindow.OnLoadSettings()
	require.NoError(t, err)
	assert.Equal(t, "capsule-media-test", loaded.S3Bucket)
	assert.Equal(t, "eu-west-1", loaded.AWSRegion)
}

func TestController_SaveSettingsAppliesPreferences(t *testing.T) {
	controller, mockWindow, _ := newTestController(t)
	defer controller.Stop()

	settings, err := mockWindow.OnLoadSettings()
	require.NoError(t, err)
	settings.S3Bucket = "capsule-media-test"
	settings.UITheme = "dark"
	settings.MaxMediaSize = 1024
	settings.AutoRefresh = false

	require.NoError(t, mockWindow.OnSaveSettings(settings))

	// Saving pushes the preferences into the running components
	assert.Equal(t, "dark", mockWindow.LastTheme())
}

func TestController_StartAppliesSavedTheme(t *testing.T) {
	controller, mockWindow, _ := newTestController(t)
	defer controller.Stop()

	settings, err := mockWindow.OnLoadSettings()
	require.NoError(t, err)
	settings.S3Bucket = "capsule-media-test"
	settings.UITheme = "light"
	require.NoError(t, mockWindow.OnSaveSettings(settings))

	require.NoError(t, controller.Start())
	assert.Equal(t, "light", mockWindow.LastTheme())
}

func TestController_SaveSettings_Invalid(t *testing.T) {
	controller, mockWindow, _ := newTestController(t)
	defer controller.Stop()

	// Missing bucket is rejected for save
	err := mockWindow.OnSaveSettings(&models.ApplicationSettings{
		AWSRegion: "eu-west-1",
	})
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrInvalidInput))
}

func TestController_CreateMediaCapsule_WithoutStore(t *testing.T) {
	controller, mockWindow, _ := newTestController(t)
	defer controller.Stop()

	// The upload runs in a background goroutine; the handler itself succeeds
	err := mockWindow.OnCreateMediaCapsule(manager.CreateCapsuleParams{
		Name:         "Photo",
		Type:         models.TypeImage,
		ViewDuration: 20,
	}, "/nonexistent/photo.jpg")
	require.NoError(t, err)

	// Without a media store the background upload fails and reports via status
	assert.Eventually(t, func() bool {
		status := mockWindow.LastStatus()
		return status != "" && status != "Uploading media..."
	}, 2*time.Second, 10*time.Millisecond)
	assert.Contains(t, mockWindow.LastStatus(), "Error:")
	assert.True(t, mockWindow.ActionsEnabled())
}

func TestController_GetMediaURL_WithoutStore(t *testing.T) {
	controller, mockWindow, db := newTestController(t)
	defer controller.Stop()

	sealControllerTestCapsule(t, db, "capsule-url", time.Now().UTC())
	capsule, err := db.GetCapsule("capsule-url")
	require.NoError(t, err)

	// Text capsules carry no media
	url, err := mockWindow.OnGetMediaURL(capsule)
	require.Error(t, err)
	assert.Empty(t, url)
}

func TestController_Refresh(t *testing.T) {
	controller, mockWindow, db := newTestController(t)
	defer controller.Stop()

	require.NoError(t, controller.Start())

	sealControllerTestCapsule(t, db, "capsule-fresh", time.Now().UTC())

	err := mockWindow.OnRefresh()
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		listing := mockWindow.LastListing()
		return len(listing.Upcoming) == 1
	}, 2*time.Second, 10*time.Millisecond)
}
