package components

import (
	"errors"
	"fmt"

	"precipitate-meter/internal/models"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/widget"
)

type StatusBar struct {
	container   *fyne.Container
	statusLabel *widget.Label
	resultLabel *widget.Label
}

func NewStatusBar() *StatusBar {
	statusLabel := widget.NewLabel("Ready")
	resultLabel := widget.NewLabel(FormatResult(nil, nil))

	mainContainer := container.NewBorder(
		nil, nil,
		statusLabel,
		resultLabel,
	)

	return &StatusBar{
		container:   mainContainer,
		statusLabel: statusLabel,
		resultLabel: resultLabel,
	}
}

func (sb *StatusBar) GetContainer() *fyne.Container {
	return sb.container
}

func (sb *StatusBar) SetStatus(status string) {
	sb.statusLabel.SetText(status)
}

func (sb *StatusBar) SetResult(result *models.RunResult, err error) {
	sb.resultLabel.SetText(FormatResult(result, err))
}

// FormatResult renders a measurement pass for the status bar.
func FormatResult(result *models.RunResult, err error) string {
	switch {
	case errors.Is(err, models.ErrEmptyResult):
		return "No particles accepted: lower the threshold or erosion"
	case err != nil:
		return "Measurement failed: " + err.Error()
	case result == nil:
		return "n: -- | mean: -- | std: --"
	}

	unit := result.Unit()
	return fmt.Sprintf("n: %d | mean: %.3f %s | std: %.3f %s | rejected: %d",
		result.Count, result.Mean, unit, result.StdDev, unit, result.Rejected.Total())
}
