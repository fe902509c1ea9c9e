package ui

import (
	"fmt"
	"image/color"
	"math"
	"sync"
	"time"

	"time-capsule-app/internal/manager"
	"time-capsule-app/internal/models"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"
)

// listRefreshInterval re-renders the capsule rows so their countdown and
// unlock text track the clock between listing updates
const listRefreshInterval = time.Second

// MainWindow represents the main application window
type MainWindow struct {
	app    fyne.App
	window fyne.Window

	// UI components
	statusLabel  *widget.Label
	createBtn    *widget.Button
	refreshBtn   *widget.Button
	settingsBtn  *widget.Button
	upcomingList *widget.List
	expiringList *widget.List

	// Data
	upcoming []*models.Capsule
	expiring []*models.Capsule

	stopTick chan struct{}
	tickOnce sync.Once

	// Callbacks for business logic integration
	OnCreateTextCapsule  func(params manager.CreateCapsuleParams) error
	OnCreateMediaCapsule func(params manager.CreateCapsuleParams, filePath string) error
	OnOpenCapsule        func(capsuleID string) (*models.Capsule, error)
	OnDeleteCapsule      func(capsuleID string) error
	OnGetMediaURL        func(capsule *models.Capsule) (string, error)
	OnRefresh            func() error
	OnNewCountdown       func(interval time.Duration) *manager.CountdownManager
	OnSaveSettings       func(settings *models.ApplicationSettings) error
	OnLoadSettings       func() (*models.ApplicationSettings, error)
}

// NewMainWindow creates a new main window
func NewMainWindow(app fyne.App) *MainWindow {
	window := app.NewWindow("Time Capsules")
	window.Resize(fyne.NewSize(900, 700))
	window.SetIcon(theme.HistoryIcon())

	mw := &MainWindow{
		app:      app,
		window:   window,
		upcoming: []*models.Capsule{},
		expiring: []*models.Capsule{},
		stopTick: make(chan struct{}),
	}

	mw.setupUI()

	window.SetOnClosed(mw.stopTicking)
	go mw.tickLists()

	return mw
}

// tickLists re-renders the two capsule lists every second. The rows derive
// their remaining and unlock times from the clock at render, so re-rendering
// is all it takes to keep them counting down.
func (mw *MainWindow) tickLists() {
	ticker := time.NewTicker(listRefreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-mw.stopTick:
			return
		case <-ticker.C:
			fyne.Do(func() {
				mw.upcomingList.Refresh()
				mw.expiringList.Refresh()
			})
		}
	}
}

func (mw *MainWindow) stopTicking() {
	mw.tickOnce.Do(func() { close(mw.stopTick) })
}

// Show displays the main window
func (mw *MainWindow) Show() {
	mw.window.ShowAndRun()
}

// SetStatus updates the status label
func (mw *MainWindow) SetStatus(status string) {
	fyne.Do(func() {
		mw.statusLabel.SetText(status)
	})
}

// EnableActions enables/disables action buttons
func (mw *MainWindow) EnableActions(enabled bool) {
	fyne.Do(func() {
		if enabled {
			mw.createBtn.Enable()
			mw.refreshBtn.Enable()
		} else {
			mw.createBtn.Disable()
			mw.refreshBtn.Disable()
		}
	})
}

// ApplyTheme applies the saved theme preference ("light", "dark" or "auto")
func (mw *MainWindow) ApplyTheme(name string) {
	fyne.Do(func() {
		switch name {
		case "light":
			mw.app.Settings().SetTheme(&forcedVariantTheme{Theme: theme.DefaultTheme(), variant: theme.VariantLight})
		case "dark":
			mw.app.Settings().SetTheme(&forcedVariantTheme{Theme: theme.DefaultTheme(), variant: theme.VariantDark})
		default:
			// "auto" follows the OS preference
			mw.app.Settings().SetTheme(theme.DefaultTheme())
		}
	})
}

// forcedVariantTheme pins the default theme to one variant regardless of the
// OS preference
type forcedVariantTheme struct {
	fyne.Theme
	variant fyne.ThemeVariant
}

func (t *forcedVariantTheme) Color(name fyne.ThemeColorName, _ fyne.ThemeVariant) color.Color {
	return t.Theme.Color(name, t.variant)
}

// UpdateListing replaces both capsule buckets with a fresh listing
func (mw *MainWindow) UpdateListing(listing manager.Listing) {
	fyne.Do(func() {
		mw.upcoming = listing.Upcoming
		mw.expiring = listing.Expiring
		mw.upcomingList.Refresh()
		mw.expiringList.Refresh()
	})
}

// Callback setters

func (mw *MainWindow) SetOnCreateTextCapsule(callback func(params manager.CreateCapsuleParams) error) {
	mw.OnCreateTextCapsule = callback
}

func (mw *MainWindow) SetOnCreateMediaCapsule(callback func(params manager.CreateCapsuleParams, filePath string) error) {
	mw.OnCreateMediaCapsule = callback
}

func (mw *MainWindow) SetOnOpenCapsule(callback func(capsuleID string) (*models.Capsule, error)) {
	mw.OnOpenCapsule = callback
}

func (mw *MainWindow) SetOnDeleteCapsule(callback func(capsuleID string) error) {
	mw.OnDeleteCapsule = callback
}

func (mw *MainWindow) SetOnGetMediaURL(callback func(capsule *models.Capsule) (string, error)) {
	mw.OnGetMediaURL = callback
}

func (mw *MainWindow) SetOnRefresh(callback func() error) {
	mw.OnRefresh = callback
}

func (mw *MainWindow) SetOnNewCountdown(callback func(interval time.Duration) *manager.CountdownManager) {
	mw.OnNewCountdown = callback
}

func (mw *MainWindow) SetOnSaveSettings(callback func(settings *models.ApplicationSettings) error) {
	mw.OnSaveSettings = callback
}

func (mw *MainWindow) SetOnLoadSettings(callback func() (*models.ApplicationSettings, error)) {
	mw.OnLoadSettings = callback
}

func (mw *MainWindow) setupUI() {
	mw.createComponents()
	mw.window.SetContent(mw.createLayout())
}

func (mw *MainWindow) createComponents() {
	mw.statusLabel = widget.NewLabel("Loading capsules...")
	mw.statusLabel.TextStyle = fyne.TextStyle{Italic: true}

	mw.createBtn = widget.NewButton("New Capsule", mw.showCreateDialog)
	mw.createBtn.Importance = widget.HighImportance
	mw.createBtn.Disable()

	mw.refreshBtn = widget.NewButton("Refresh", mw.refreshListing)
	mw.refreshBtn.Icon = theme.ViewRefreshIcon()
	mw.refreshBtn.Disable()

	mw.settingsBtn = widget.NewButton("Settings", mw.showSettingsDialog)
	mw.settingsBtn.Icon = theme.SettingsIcon()

	mw.upcomingList = widget.NewList(
		func() int { return len(mw.upcoming) },
		func() fyne.CanvasObject { return mw.createCapsuleListItem() },
		func(id widget.ListItemID, obj fyne.CanvasObject) {
			if id < len(mw.upcoming) {
				mw.updateCapsuleListItem(mw.upcoming[id], obj)
			}
		},
	)

	mw.expiringList = widget.NewList(
		func() int { return len(mw.expiring) },
		func() fyne.CanvasObject { return mw.createCapsuleListItem() },
		func(id widget.ListItemID, obj fyne.CanvasObject) {
			if id < len(mw.expiring) {
				mw.updateCapsuleListItem(mw.expiring[id], obj)
			}
		},
	)
}

func (mw *MainWindow) createLayout() *fyne.Container {
	title := widget.NewLabel("Time Capsules")
	title.TextStyle = fyne.TextStyle{Bold: true}
	title.Alignment = fyne.TextAlignCenter

	toolbar := container.NewHBox(
		mw.createBtn,
		widget.NewSeparator(),
		mw.refreshBtn,
		widget.NewSeparator(),
		mw.settingsBtn,
	)

	upcomingHeader := widget.NewLabel("Upcoming")
	upcomingHeader.TextStyle = fyne.TextStyle{Bold: true}

	expiringHeader := widget.NewLabel("Expiring")
	expiringHeader.TextStyle = fyne.TextStyle{Bold: true}

	buckets := container.NewGridWithColumns(2,
		container.NewBorder(upcomingHeader, nil, nil, nil, mw.upcomingList),
		container.NewBorder(expiringHeader, nil, nil, nil, mw.expiringList),
	)

	return container.NewBorder(
		container.NewVBox(
			title,
			widget.NewSeparator(),
			toolbar,
			widget.NewSeparator(),
		),
		mw.statusLabel,
		nil, nil,
		buckets,
	)
}

func (mw *MainWindow) createCapsuleListItem() fyne.CanvasObject {
	icon := widget.NewIcon(theme.MailComposeIcon())

	nameLabel := widget.NewLabel("Capsule")
	nameLabel.TextStyle = fyne.TextStyle{Bold: true}

	stateLabel := widget.NewLabel("State")

	openBtn := widget.NewButton("Open", nil)
	openBtn.Importance = widget.HighImportance

	deleteBtn := widget.NewButton("Delete", nil)
	deleteBtn.Icon = theme.DeleteIcon()
	deleteBtn.Importance = widget.DangerImportance

	infoContainer := container.NewVBox(nameLabel, stateLabel)
	actionContainer := container.NewHBox(openBtn, deleteBtn)

	return container.NewBorder(
		nil, nil,
		container.NewHBox(icon, infoContainer),
		actionContainer,
		nil,
	)
}

func (mw *MainWindow) updateCapsuleListItem(capsule *models.Capsule, obj fyne.CanvasObject) {
	border := obj.(*fyne.Container)

	leftContainer := border.Objects[0].(*fyne.Container)
	icon := leftContainer.Objects[0].(*widget.Icon)
	infoContainer := leftContainer.Objects[1].(*fyne.Container)
	actionContainer := border.Objects[1].(*fyne.Container)

	nameLabel := infoContainer.Objects[0].(*widget.Label)
	stateLabel := infoContainer.Objects[1].(*widget.Label)
	openBtn := actionContainer.Objects[0].(*widget.Button)
	deleteBtn := actionContainer.Objects[1].(*widget.Button)

	nameLabel.SetText(capsule.DisplayName())

	now := time.Now()
	switch {
	case !capsule.IsAvailable(now):
		icon.SetResource(theme.VisibilityOffIcon())
		stateLabel.SetText("Locked • opens " + formatUntil(capsule.AvailableAt, now))
		openBtn.SetText("Locked")
		openBtn.Disable()
	case capsule.IsPartiallyViewed():
		icon.SetResource(theme.MediaPlayIcon())
		stateLabel.SetText(formatRemaining(capsule.RemainingTime(now)) + " of viewing left")
		openBtn.SetText("Resume")
		openBtn.Enable()
	default:
		icon.SetResource(theme.MailComposeIcon())
		stateLabel.SetText("Ready to open • vanishes " + formatUntil(capsule.ExpiresAt, now))
		openBtn.SetText("Open")
		openBtn.Enable()
	}

	capsuleID := capsule.ID
	openBtn.OnTapped = func() { mw.openCapsule(capsuleID) }
	deleteBtn.OnTapped = func() { mw.confirmDeleteCapsule(capsule) }
}

func (mw *MainWindow) showCreateDialog() {
	createDialog := NewCreateCapsuleDialog(mw.window, mw.OnCreateTextCapsule, mw.OnCreateMediaCapsule)
	createDialog.Show()
}

func (mw *MainWindow) showSettingsDialog() {
	settingsDialog := NewSettingsDialog(mw.window, mw.OnLoadSettings, mw.OnSaveSettings)
	settingsDialog.Show()
}

func (mw *MainWindow) refreshListing() {
	if mw.OnRefresh == nil {
		return
	}
	mw.SetStatus("Refreshing capsules...")
	go func() {
		if err := mw.OnRefresh(); err != nil {
			mw.SetStatus("Error refreshing capsules: " + err.Error())
		}
	}()
}

func (mw *MainWindow) openCapsule(capsuleID string) {
	if mw.OnOpenCapsule == nil {
		return
	}

	capsule, err := mw.OnOpenCapsule(capsuleID)
	if err != nil {
		dialog.ShowError(err, mw.window)
		return
	}

	detail := NewDetailView(mw.app, capsule, mw.OnNewCountdown, mw.OnGetMediaURL)
	detail.Show()
}

func (mw *MainWindow) confirmDeleteCapsule(capsule *models.Capsule) {
	dialog.ShowConfirm(
		"Delete Capsule",
		fmt.Sprintf("Delete '%s' forever? Its content cannot be recovered.", capsule.DisplayName()),
		func(confirmed bool) {
			if confirmed && mw.OnDeleteCapsule != nil {
				if err := mw.OnDeleteCapsule(capsule.ID); err != nil {
					dialog.ShowError(err, mw.window)
				}
			}
		},
		mw.window,
	)
}

// Utility functions for formatting

// formatRemaining renders a second count the way a stopwatch would:
// "42s", "3m 05s", "1h 02m 09s".
func formatRemaining(seconds float64) string {
	total := int(math.Ceil(seconds))
	if total < 0 {
		total = 0
	}

	hours := total / 3600
	minutes := (total % 3600) / 60
	secs := total % 60

	switch {
	case hours > 0:
		return fmt.Sprintf("%dh %02dm %02ds", hours, minutes, secs)
	case minutes > 0:
		return fmt.Sprintf("%dm %02ds", minutes, secs)
	default:
		return fmt.Sprintf("%ds", secs)
	}
}

func formatUntil(t time.Time, now time.Time) string {
	diff := t.Sub(now)
	if diff <= 0 {
		return "now"
	}

	if diff < time.Minute {
		return "in under a minute"
	} else if diff < time.Hour {
		return fmt.Sprintf("in %d min", int(diff.Minutes()))
	} else if diff < 24*time.Hour {
		return fmt.Sprintf("in %d hours", int(diff.Hours()))
	}
	return fmt.Sprintf("in %d days", int(diff.Hours()/24))
}
