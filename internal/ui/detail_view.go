package ui

import (
	"context"
	"net/url"
	"time"

	"time-capsule-app/internal/manager"
	"time-capsule-app/internal/models"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"
)

// DetailView shows an opened capsule with its live countdown
type DetailView struct {
	app    fyne.App
	window fyne.Window

	// UI components
	countdownLabel *widget.Label
	contentBox     *fyne.Container

	// Data
	capsule   *models.Capsule
	countdown *manager.CountdownManager

	onGetMediaURL func(capsule *models.Capsule) (string, error)
}

// NewDetailView creates a detail view for an already-opened capsule.
// The countdown starts as soon as the view is shown.
func NewDetailView(
	app fyne.App,
	capsule *models.Capsule,
	newCountdown func(interval time.Duration) *manager.CountdownManager,
	onGetMediaURL func(capsule *models.Capsule) (string, error),
) *DetailView {
	window := app.NewWindow(capsule.DisplayName())
	window.Resize(fyne.NewSize(600, 500))

	dv := &DetailView{
		app:           app,
		window:        window,
		capsule:       capsule,
		onGetMediaURL: onGetMediaURL,
	}

	if newCountdown != nil {
		dv.countdown = newCountdown(manager.DetailTickInterval)
	}

	dv.setupUI()
	return dv
}

// Show displays the detail view and starts the countdown
func (dv *DetailView) Show() {
	dv.window.Show()
	dv.startCountdown()
}

func (dv *DetailView) setupUI() {
	dv.countdownLabel = widget.NewLabel(formatRemaining(dv.capsule.RemainingTime(time.Now())))
	dv.countdownLabel.TextStyle = fyne.TextStyle{Bold: true, Monospace: true}
	dv.countdownLabel.Alignment = fyne.TextAlignCenter

	dv.contentBox = container.NewVBox()
	dv.buildContent()

	closeBtn := widget.NewButton("Close", func() {
		dv.window.Close()
	})

	dv.window.SetContent(container.NewBorder(
		container.NewVBox(
			dv.countdownLabel,
			widget.NewSeparator(),
		),
		closeBtn,
		nil, nil,
		dv.contentBox,
	))

	dv.window.SetOnClosed(func() {
		if dv.countdown != nil {
			dv.countdown.Stop()
		}
	})
}

func (dv *DetailView) buildContent() {
	switch dv.capsule.Type {
	case models.TypeText:
		content := widget.NewLabel(dv.capsule.Content)
		content.Wrapping = fyne.TextWrapWord
		dv.contentBox.Add(container.NewVScroll(content))
	case models.TypeImage, models.TypeVideo:
		dv.buildMediaContent()
	}
}

func (dv *DetailView) buildMediaContent() {
	if dv.onGetMediaURL == nil {
		dv.contentBox.Add(widget.NewLabel("Media viewing is not configured"))
		return
	}

	signedURL, err := dv.onGetMediaURL(dv.capsule)
	if err != nil {
		dv.contentBox.Add(widget.NewLabel("Media unavailable: " + err.Error()))
		return
	}

	parsed, err := url.Parse(signedURL)
	if err != nil {
		dv.contentBox.Add(widget.NewLabel("Media unavailable"))
		return
	}

	// Rendering happens in the system viewer; the link expires with the session
	viewBtn := widget.NewButton("View Media", func() {
		if err := dv.app.OpenURL(parsed); err != nil {
			dialog.ShowError(err, dv.window)
		}
	})
	viewBtn.Icon = theme.MediaPlayIcon()
	viewBtn.Importance = widget.HighImportance

	dv.contentBox.Add(widget.NewLabel(dv.capsule.Content))
	dv.contentBox.Add(container.NewCenter(viewBtn))
}

func (dv *DetailView) startCountdown() {
	if dv.countdown == nil {
		return
	}

	dv.countdown.Start(context.Background(), dv.capsule, manager.CountdownCallbacks{
		OnTick: func(remaining float64) {
			fyne.Do(func() {
				dv.countdownLabel.SetText(formatRemaining(remaining))
			})
		},
		OnExpired: func() {
			fyne.Do(func() {
				dv.countdownLabel.SetText("Expired")
				dv.contentBox.RemoveAll()
				dv.contentBox.Add(widget.NewLabel("This capsule has expired and is gone."))
				dv.contentBox.Refresh()
			})
		},
	})
}
