package ui

import (
	"testing"
	"time"

	"time-capsule-app/internal/manager"
	"time-capsule-app/internal/models"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/test"
	"fyne.io/fyne/v2/widget"
)

func TestMainWindow_Creation(t *testing.T) {
	// Create test app
	testApp := test.NewApp()
	defer testApp.Quit()

	// Create main window
	mainWindow := NewMainWindow(testApp)
	if mainWindow == nil {
		t.Fatal("Failed to create main window")
	}
	defer mainWindow.stopTicking()

	// Test that window is properly initialized
	if mainWindow.window == nil {
		t.Error("Window not initialized")
	}

	if mainWindow.upcomingList == nil {
		t.Error("Upcoming list not initialized")
	}

	if mainWindow.expiringList == nil {
		t.Error("Expiring list not initialized")
	}

	if mainWindow.statusLabel == nil {
		t.Error("Status label not initialized")
	}

	if mainWindow.createBtn == nil {
		t.Error("Create button not initialized")
	}
}

func TestMainWindow_UpdateListing(t *testing.T) {
	// Create test app
	testApp := test.NewApp()
	defer testApp.Quit()

	// Create main window
	mainWindow := NewMainWindow(testApp)
	defer mainWindow.stopTicking()

	now := time.Now().UTC()
	remaining := 30.0

	listing := manager.Listing{
		Upcoming: []*models.Capsule{
			{
				ID:           "sealed-1",
				Name:         "Graduation",
				Type:         models.TypeText,
				Content:      "you made it",
				CreatedAt:    now,
				AvailableAt:  now.Add(time.Hour),
				ExpiresAt:    now.Add(models.CapsuleLifetime),
				ViewDuration: 30,
			},
		},
		Expiring: []*models.Capsule{
			{
				ID:                "watching-1",
				Name:              "Snapshot",
				Type:              models.TypeImage,
				MediaPath:         "123-abc.jpg",
				CreatedAt:         now,
				AvailableAt:       now,
				ExpiresAt:         now.Add(models.CapsuleLifetime),
				ViewDuration:      30,
				IsOpened:          true,
				FirstOpenedAt:     &now,
				RemainingDuration: &remaining,
			},
		},
	}

	mainWindow.UpdateListing(listing)

	if len(mainWindow.upcoming) != 1 {
		t.Errorf("Expected 1 upcoming capsule, got %d", len(mainWindow.upcoming))
	}

	if len(mainWindow.expiring) != 1 {
		t.Errorf("Expected 1 expiring capsule, got %d", len(mainWindow.expiring))
	}

	if mainWindow.upcoming[0].Name != "Graduation" {
		t.Errorf("Expected capsule name 'Graduation', got '%s'", mainWindow.upcoming[0].Name)
	}
}

func TestMainWindow_SetStatus(t *testing.T) {
	// Create test app
	testApp := test.NewApp()
	defer testApp.Quit()

	// Create main window
	mainWindow := NewMainWindow(testApp)
	defer mainWindow.stopTicking()

	// Test setting status
	testStatus := "Test status message"
	mainWindow.SetStatus(testStatus)

	if mainWindow.statusLabel.Text != testStatus {
		t.Errorf("Expected status '%s', got '%s'", testStatus, mainWindow.statusLabel.Text)
	}
}

func TestMainWindow_EnableActions(t *testing.T) {
	// Create test app
	testApp := test.NewApp()
	defer testApp.Quit()

	// Create main window
	mainWindow := NewMainWindow(testApp)
	defer mainWindow.stopTicking()

	// Test enabling actions
	mainWindow.EnableActions(true)
	if mainWindow.createBtn.Disabled() {
		t.Error("Create button should be enabled")
	}

	// Test disabling actions
	mainWindow.EnableActions(false)
	if !mainWindow.createBtn.Disabled() {
		t.Error("Create button should be disabled")
	}
}

func TestMainWindow_ListItemTracksClock(t *testing.T) {
	// Create test app
	testApp := test.NewApp()
	defer testApp.Quit()

	// Create main window
	mainWindow := NewMainWindow(testApp)
	defer mainWindow.stopTicking()

	now := time.Now().UTC()
	remaining := 30.0
	anchor := now.Add(-5 * time.Second)

	capsule := &models.Capsule{
		ID:                "watching-1",
		Name:              "Snapshot",
		Type:              models.TypeText,
		Content:           "hello",
		CreatedAt:         now.Add(-time.Minute),
		AvailableAt:       now.Add(-time.Minute),
		ExpiresAt:         now.Add(models.CapsuleLifetime),
		ViewDuration:      30,
		IsOpened:          true,
		FirstOpenedAt:     &anchor,
		RemainingDuration: &remaining,
	}

	item := mainWindow.createCapsuleListItem()
	mainWindow.updateCapsuleListItem(capsule, item)
	first := listItemStateText(t, item)

	// Re-rendering after the anchor moves back shows less time left; this is
	// what the per-second list refresh relies on
	older := anchor.Add(-10 * time.Second)
	capsule.FirstOpenedAt = &older
	mainWindow.updateCapsuleListItem(capsule, item)
	second := listItemStateText(t, item)

	if first == second {
		t.Errorf("Expected re-render to update remaining time, got '%s' both times", first)
	}
}

func TestMainWindow_StopTickingIsIdempotent(t *testing.T) {
	testApp := test.NewApp()
	defer testApp.Quit()

	mainWindow := NewMainWindow(testApp)

	mainWindow.stopTicking()
	mainWindow.stopTicking() // second stop must not panic
}

// listItemStateText digs the state label out of a rendered capsule row
func listItemStateText(t *testing.T, obj fyne.CanvasObject) string {
	t.Helper()

	border := obj.(*fyne.Container)
	leftContainer := border.Objects[0].(*fyne.Container)
	infoContainer := leftContainer.Objects[1].(*fyne.Container)
	stateLabel := infoContainer.Objects[1].(*widget.Label)

	return stateLabel.Text
}
