package ui

import (
	"fmt"
	"strconv"

	"time-capsule-app/internal/models"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"
)

// SettingsDialog represents the settings configuration dialog
type SettingsDialog struct {
	parent   fyne.Window
	dialog   *dialog.CustomDialog
	settings *models.ApplicationSettings

	// Form widgets
	awsRegionEntry      *widget.Entry
	s3BucketEntry       *widget.Entry
	viewDurationEntry   *widget.Entry
	sweepIntervalEntry  *widget.Entry
	uiThemeSelect       *widget.Select
	autoRefreshCheck    *widget.Check

	// Callbacks
	OnLoadSettings func() (*models.ApplicationSettings, error)
	OnSaveSettings func(settings *models.ApplicationSettings) error
}

// NewSettingsDialog creates a new settings dialog
func NewSettingsDialog(
	parent fyne.Window,
	onLoad func() (*models.ApplicationSettings, error),
	onSave func(settings *models.ApplicationSettings) error,
) *SettingsDialog {
	sd := &SettingsDialog{
		parent:         parent,
		OnLoadSettings: onLoad,
		OnSaveSettings: onSave,
	}

	sd.createDialog()
	return sd
}

// Show displays the settings dialog
func (sd *SettingsDialog) Show() {
	if sd.OnLoadSettings != nil {
		if settings, err := sd.OnLoadSettings(); err == nil {
			sd.settings = settings
		} else {
			sd.settings = models.DefaultApplicationSettings()
			dialog.ShowError(fmt.Errorf("failed to load settings, using defaults: %v", err), sd.parent)
		}
	} else {
		sd.settings = models.DefaultApplicationSettings()
	}
	sd.populateForm()

	sd.dialog.Show()
}

// Hide closes the settings dialog
func (sd *SettingsDialog) Hide() {
	sd.dialog.Hide()
}

func (sd *SettingsDialog) createDialog() {
	sd.createFormWidgets()

	content := container.NewVBox(
		sd.createFormLayout(),
		widget.NewSeparator(),
		sd.createActionButtons(),
	)

	sd.dialog = dialog.NewCustom("Application Settings", "Close", content, sd.parent)
	sd.dialog.Resize(fyne.NewSize(500, 560))
}

func (sd *SettingsDialog) createFormWidgets() {
	sd.awsRegionEntry = widget.NewEntry()
	sd.awsRegionEntry.SetPlaceHolder("e.g., us-east-1")

	sd.s3BucketEntry = widget.NewEntry()
	sd.s3BucketEntry.SetPlaceHolder("e.g., my-capsule-media-bucket")

	sd.viewDurationEntry = widget.NewEntry()
	sd.viewDurationEntry.SetPlaceHolder("15")

	sd.sweepIntervalEntry = widget.NewEntry()
	sd.sweepIntervalEntry.SetPlaceHolder("60")

	sd.uiThemeSelect = widget.NewSelect(
		[]string{"light", "dark", "auto"},
		nil,
	)

	sd.autoRefreshCheck = widget.NewCheck("Automatically refresh capsule list", nil)
}

func (sd *SettingsDialog) createFormLayout() *fyne.Container {
	awsSection := widget.NewCard("AWS Configuration", "",
		container.NewVBox(
			widget.NewFormItem("AWS Region", sd.awsRegionEntry).Widget,
			widget.NewFormItem("S3 Bucket", sd.s3BucketEntry).Widget,
		),
	)

	capsuleSection := widget.NewCard("Capsule Settings", "",
		container.NewVBox(
			widget.NewFormItem("Default Viewing Time (seconds)", sd.viewDurationEntry).Widget,
			widget.NewFormItem("Expiry Sweep Interval (seconds)", sd.sweepIntervalEntry).Widget,
		),
	)

	uiSection := widget.NewCard("User Interface", "",
		container.NewVBox(
			widget.NewFormItem("Theme", sd.uiThemeSelect).Widget,
			sd.autoRefreshCheck,
		),
	)

	helpText := widget.NewRichTextFromMarkdown(`
**AWS Configuration Help:**
- AWS Region: The AWS region where your media bucket lives
- S3 Bucket: The bucket holding capsule images and videos

**Capsule Settings Help:**
- Default Viewing Time: How long an opened capsule stays visible (minimum 5 seconds)
- Expiry Sweep Interval: How often expired capsules are checked and removed
	`)
	helpText.Wrapping = fyne.TextWrapWord

	return container.NewVBox(
		awsSection,
		capsuleSection,
		uiSection,
		widget.NewCard("Help", "", helpText),
	)
}

func (sd *SettingsDialog) createActionButtons() *fyne.Container {
	saveBtn := widget.NewButton("Save Settings", sd.saveSettings)
	saveBtn.Importance = widget.HighImportance
	saveBtn.Icon = theme.DocumentSaveIcon()

	resetBtn := widget.NewButton("Reset to Defaults", sd.resetToDefaults)
	resetBtn.Icon = theme.ViewRefreshIcon()

	cancelBtn := widget.NewButton("Cancel", func() {
		sd.Hide()
	})

	return container.NewHBox(
		resetBtn,
		widget.NewSeparator(),
		cancelBtn,
		saveBtn,
	)
}

func (sd *SettingsDialog) populateForm() {
	if sd.settings == nil {
		return
	}

	sd.awsRegionEntry.SetText(sd.settings.AWSRegion)
	sd.s3BucketEntry.SetText(sd.settings.S3Bucket)
	sd.viewDurationEntry.SetText(fmt.Sprintf("%.0f", sd.settings.DefaultViewDuration))
	sd.sweepIntervalEntry.SetText(strconv.Itoa(sd.settings.SweepIntervalSecs))
	sd.uiThemeSelect.SetSelected(sd.settings.UITheme)
	sd.autoRefreshCheck.SetChecked(sd.settings.AutoRefresh)
}

func (sd *SettingsDialog) saveSettings() {
	if err := sd.updateSettingsFromForm(); err != nil {
		dialog.ShowError(err, sd.parent)
		return
	}

	if sd.OnSaveSettings != nil {
		if err := sd.OnSaveSettings(sd.settings); err != nil {
			dialog.ShowError(fmt.Errorf("failed to save settings: %v", err), sd.parent)
			return
		}
	}

	dialog.ShowInformation("Settings Saved",
		"Settings have been saved successfully.",
		sd.parent)
	sd.Hide()
}

func (sd *SettingsDialog) resetToDefaults() {
	dialog.ShowConfirm("Reset Settings",
		"Are you sure you want to reset all settings to their default values?",
		func(confirmed bool) {
			if confirmed {
				sd.settings = models.DefaultApplicationSettings()
				sd.populateForm()
			}
		}, sd.parent)
}

func (sd *SettingsDialog) updateSettingsFromForm() error {
	if sd.settings == nil {
		sd.settings = models.DefaultApplicationSettings()
	}

	viewDuration, err := strconv.ParseFloat(sd.viewDurationEntry.Text, 64)
	if err != nil {
		return fmt.Errorf("default viewing time must be a number")
	}
	if viewDuration < models.MinViewDuration {
		return fmt.Errorf("default viewing time must be at least %.0f seconds", models.MinViewDuration)
	}

	sweepInterval, err := strconv.Atoi(sd.sweepIntervalEntry.Text)
	if err != nil || sweepInterval <= 0 {
		return fmt.Errorf("sweep interval must be a positive number of seconds")
	}

	sd.settings.AWSRegion = sd.awsRegionEntry.Text
	sd.settings.S3Bucket = sd.s3BucketEntry.Text
	sd.settings.DefaultViewDuration = viewDuration
	sd.settings.SweepIntervalSecs = sweepInterval
	sd.settings.UITheme = sd.uiThemeSelect.Selected
	sd.settings.AutoRefresh = sd.autoRefreshCheck.Checked

	return nil
}
