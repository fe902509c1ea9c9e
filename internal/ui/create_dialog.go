package ui

import (
	"fmt"
	"path/filepath"
	"strconv"
	"time"

	"time-capsule-app/internal/manager"
	"time-capsule-app/internal/models"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"
)

// CreateCapsuleDialog handles sealing a new capsule
type CreateCapsuleDialog struct {
	window fyne.Window
	dialog *dialog.CustomDialog

	// UI components
	nameEntry     *widget.Entry
	typeSelect    *widget.Select
	contentEntry  *widget.Entry
	fileLabel     *widget.Label
	selectFileBtn *widget.Button
	delaySelect   *widget.Select
	durationEntry *widget.Entry
	sealBtn       *widget.Button
	cancelBtn     *widget.Button

	// Data
	selectedFile  string
	onCreateText  func(params manager.CreateCapsuleParams) error
	onCreateMedia func(params manager.CreateCapsuleParams, filePath string) error
}

var unlockDelays = map[string]time.Duration{
	"Immediately":  0,
	"In 1 hour":    time.Hour,
	"In 6 hours":   6 * time.Hour,
	"In 12 hours":  12 * time.Hour,
	"Tomorrow":     24 * time.Hour,
}

// NewCreateCapsuleDialog creates a new capsule creation dialog
func NewCreateCapsuleDialog(
	parent fyne.Window,
	onCreateText func(params manager.CreateCapsuleParams) error,
	onCreateMedia func(params manager.CreateCapsuleParams, filePath string) error,
) *CreateCapsuleDialog {
	d := &CreateCapsuleDialog{
		window:        parent,
		onCreateText:  onCreateText,
		onCreateMedia: onCreateMedia,
	}

	d.setupDialog()
	return d
}

// Show displays the dialog
func (d *CreateCapsuleDialog) Show() {
	d.dialog.Show()
}

// Hide closes the dialog
func (d *CreateCapsuleDialog) Hide() {
	d.dialog.Hide()
}

func (d *CreateCapsuleDialog) setupDialog() {
	d.nameEntry = widget.NewEntry()
	d.nameEntry.SetPlaceHolder("Optional name")

	d.typeSelect = widget.NewSelect([]string{"Text", "Image", "Video"}, d.typeChanged)
	d.typeSelect.SetSelected("Text")

	d.contentEntry = widget.NewMultiLineEntry()
	d.contentEntry.SetPlaceHolder("Write your message...")
	d.contentEntry.SetMinRowsVisible(4)

	d.fileLabel = widget.NewLabel("No file selected")
	d.fileLabel.TextStyle = fyne.TextStyle{Italic: true}

	d.selectFileBtn = widget.NewButton("Select File", d.selectFile)
	d.selectFileBtn.Icon = theme.FolderOpenIcon()
	d.selectFileBtn.Hide()

	d.delaySelect = widget.NewSelect(
		[]string{"Immediately", "In 1 hour", "In 6 hours", "In 12 hours", "Tomorrow"},
		nil,
	)
	d.delaySelect.SetSelected("Immediately")

	d.durationEntry = widget.NewEntry()
	d.durationEntry.SetText("15")

	d.sealBtn = widget.NewButton("Seal Capsule", d.sealCapsule)
	d.sealBtn.Icon = theme.ConfirmIcon()
	d.sealBtn.Importance = widget.HighImportance

	d.cancelBtn = widget.NewButton("Cancel", func() {
		d.Hide()
	})

	form := container.NewVBox(
		widget.NewLabel("Name"),
		d.nameEntry,
		widget.NewLabel("Type"),
		d.typeSelect,
		d.contentEntry,
		container.NewBorder(nil, nil, nil, d.selectFileBtn, d.fileLabel),
		widget.NewLabel("Unlocks"),
		d.delaySelect,
		widget.NewLabel("Viewing time (seconds, minimum 5)"),
		d.durationEntry,
		widget.NewLabel("Capsules vanish 24 hours after sealing, opened or not."),
	)

	buttons := container.NewHBox(d.cancelBtn, d.sealBtn)
	content := container.NewBorder(nil, buttons, nil, nil, form)

	d.dialog = dialog.NewCustomWithoutButtons("Seal a Time Capsule", content, d.window)
	d.dialog.Resize(fyne.NewSize(460, 520))
}

func (d *CreateCapsuleDialog) typeChanged(selected string) {
	if selected == "Text" {
		d.contentEntry.Show()
		d.fileLabel.Hide()
		d.selectFileBtn.Hide()
	} else {
		d.contentEntry.Hide()
		d.fileLabel.Show()
		d.selectFileBtn.Show()
	}
}

func (d *CreateCapsuleDialog) selectFile() {
	fileDialog := dialog.NewFileOpen(func(reader fyne.URIReadCloser, err error) {
		if err != nil || reader == nil {
			return
		}
		defer reader.Close()

		d.selectedFile = reader.URI().Path()
		d.fileLabel.SetText(filepath.Base(d.selectedFile))
		d.fileLabel.TextStyle = fyne.TextStyle{}
	}, d.window)
	fileDialog.Show()
}

func (d *CreateCapsuleDialog) sealCapsule() {
	duration, err := strconv.ParseFloat(d.durationEntry.Text, 64)
	if err != nil {
		dialog.ShowError(fmt.Errorf("viewing time must be a number"), d.window)
		return
	}

	if duration < models.MinViewDuration {
		dialog.ShowError(fmt.Errorf("viewing time must be at least %.0f seconds", models.MinViewDuration), d.window)
		return
	}

	params := manager.CreateCapsuleParams{
		Name:         d.nameEntry.Text,
		ViewDuration: duration,
	}

	if delay := unlockDelays[d.delaySelect.Selected]; delay > 0 {
		params.AvailableAt = time.Now().Add(delay)
	}

	switch d.typeSelect.Selected {
	case "Text":
		params.Type = models.TypeText
		params.Content = d.contentEntry.Text
		if d.onCreateText != nil {
			if err := d.onCreateText(params); err != nil {
				dialog.ShowError(err, d.window)
				return
			}
		}
	case "Image", "Video":
		if d.typeSelect.Selected == "Image" {
			params.Type = models.TypeImage
		} else {
			params.Type = models.TypeVideo
		}
		if d.selectedFile == "" {
			dialog.ShowError(fmt.Errorf("select a file to seal"), d.window)
			return
		}
		if d.onCreateMedia != nil {
			if err := d.onCreateMedia(params, d.selectedFile); err != nil {
				dialog.ShowError(err, d.window)
				return
			}
		}
	}

	d.Hide()
}
