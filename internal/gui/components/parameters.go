package components

import (
	"strconv"

	"precipitate-meter/internal/models"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/widget"
)

// ParameterPanel exposes the threshold and erosion sliders.
type ParameterPanel struct {
	container        *fyne.Container
	thresholdSlider  *widget.Slider
	thresholdLabel   *widget.Label
	erosionSlider    *widget.Slider
	erosionLabel     *widget.Label
	modeLabel        *widget.Label
	onThreshold      func(float64)
	onErosion        func(int)
	suppressCallback bool
}

func NewParameterPanel() *ParameterPanel {
	panel := &ParameterPanel{}
	panel.setupPanel()
	return panel
}

func (pp *ParameterPanel) setupPanel() {
	pp.modeLabel = widget.NewLabel("")

	pp.thresholdSlider = widget.NewSlider(models.ThresholdRange.Min, models.ThresholdRange.Max)
	pp.thresholdSlider.Step = models.ThresholdRange.Step
	pp.thresholdLabel = widget.NewLabel(thresholdText(0))
	pp.thresholdSlider.OnChanged = func(value float64) {
		pp.thresholdLabel.SetText(thresholdText(value))
		if !pp.suppressCallback && pp.onThreshold != nil {
			pp.onThreshold(value)
		}
	}

	pp.erosionSlider = widget.NewSlider(models.ErosionRange.Min, models.ErosionRange.Max)
	pp.erosionSlider.Step = models.ErosionRange.Step
	pp.erosionLabel = widget.NewLabel(erosionText(0))
	pp.erosionSlider.OnChanged = func(value float64) {
		iterations := int(value)
		pp.erosionLabel.SetText(erosionText(iterations))
		if !pp.suppressCallback && pp.onErosion != nil {
			pp.onErosion(iterations)
		}
	}

	pp.container = container.NewVBox(
		widget.NewLabel("Parameters"),
		pp.modeLabel,
		container.NewVBox(widget.NewLabel("Threshold"), pp.thresholdLabel, pp.thresholdSlider),
		container.NewVBox(widget.NewLabel("Erosion"), pp.erosionLabel, pp.erosionSlider),
	)
}

func (pp *ParameterPanel) GetContainer() *fyne.Container {
	return pp.container
}

func (pp *ParameterPanel) SetThresholdHandler(handler func(float64)) {
	pp.onThreshold = handler
}

func (pp *ParameterPanel) SetErosionHandler(handler func(int)) {
	pp.onErosion = handler
}

// ShowSnapshot moves the sliders to snap without echoing the change back to
// the handlers.
func (pp *ParameterPanel) ShowSnapshot(snap models.Snapshot) {
	pp.suppressCallback = true
	defer func() { pp.suppressCallback = false }()

	pp.modeLabel.SetText("Mode: " + snap.Mode.String())
	pp.thresholdSlider.SetValue(snap.Threshold)
	pp.thresholdLabel.SetText(thresholdText(snap.Threshold))
	pp.erosionSlider.SetValue(float64(snap.ErosionIterations))
	pp.erosionLabel.SetText(erosionText(snap.ErosionIterations))
}

func thresholdText(value float64) string {
	return "Threshold: " + strconv.FormatFloat(value, 'f', 2, 64)
}

func erosionText(iterations int) string {
	return "Iterations: " + strconv.Itoa(iterations)
}
