package components

import (
	"fmt"
	"image/color"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/widget"
)

type Toolbar struct {
	container     *fyne.Container
	PrevButton    *widget.Button
	NextButton    *widget.Button
	ResetButton   *widget.Button
	MeasureButton *widget.Button
	positionLabel *widget.Label

	prevHandler    func()
	nextHandler    func()
	resetHandler   func()
	measureHandler func()
}

func NewToolbar() *Toolbar {
	toolbar := &Toolbar{}
	toolbar.setupToolbar()
	return toolbar
}

func (t *Toolbar) setupToolbar() {
	background := canvas.NewRectangle(color.RGBA{R: 250, G: 249, B: 245, A: 255})
	border := canvas.NewRectangle(color.Transparent)
	border.StrokeWidth = 1.0
	border.StrokeColor = color.RGBA{R: 231, G: 231, B: 231, A: 255}

	t.PrevButton = widget.NewButton("Previous", func() { invoke(t.prevHandler) })
	t.NextButton = widget.NewButton("Next", func() { invoke(t.nextHandler) })
	t.positionLabel = widget.NewLabel("")
	leftSection := container.NewHBox(t.PrevButton, t.positionLabel, t.NextButton)

	t.ResetButton = widget.NewButton("Reset", func() { invoke(t.resetHandler) })
	t.MeasureButton = widget.NewButton("Measure", func() { invoke(t.measureHandler) })
	t.MeasureButton.Importance = widget.HighImportance
	rightSection := container.NewHBox(t.ResetButton, t.MeasureButton)

	toolbarContent := container.NewBorder(
		nil, nil,
		leftSection,
		rightSection,
	)

	t.container = container.NewStack(
		border,
		container.NewPadded(
			container.NewStack(background, container.NewPadded(toolbarContent)),
		),
	)
}

func (t *Toolbar) GetContainer() *fyne.Container {
	return t.container
}

func (t *Toolbar) SetPrevHandler(handler func())    { t.prevHandler = handler }
func (t *Toolbar) SetNextHandler(handler func())    { t.nextHandler = handler }
func (t *Toolbar) SetResetHandler(handler func())   { t.resetHandler = handler }
func (t *Toolbar) SetMeasureHandler(handler func()) { t.measureHandler = handler }

// SetPosition shows which image of the batch is on screen.
func (t *Toolbar) SetPosition(index, total int) {
	if total == 0 {
		t.positionLabel.SetText("no images")
		return
	}
	t.positionLabel.SetText(fmt.Sprintf("%d / %d", index+1, total))
}

// SetMeasuring disables the measure button while a pass is running.
func (t *Toolbar) SetMeasuring(running bool) {
	if running {
		t.MeasureButton.Disable()
	} else {
		t.MeasureButton.Enable()
	}
}

func invoke(handler func()) {
	if handler != nil {
		handler()
	}
}
