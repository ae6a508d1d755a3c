// Package gui lays out the calibration preview window.
package gui

import (
	"image"

	"precipitate-meter/internal/gui/components"
	"precipitate-meter/internal/logger"
	"precipitate-meter/internal/models"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
)

type Manager struct {
	window     fyne.Window
	logger     logger.Logger
	isShutdown bool

	imageDisplay   *components.ImageDisplay
	toolbar        *components.Toolbar
	parameterPanel *components.ParameterPanel
	statusBar      *components.StatusBar
}

func NewManager(window fyne.Window, log logger.Logger) *Manager {
	manager := &Manager{
		window:         window,
		logger:         log,
		imageDisplay:   components.NewImageDisplay(),
		toolbar:        components.NewToolbar(),
		parameterPanel: components.NewParameterPanel(),
		statusBar:      components.NewStatusBar(),
	}

	log.Info("GUIManager", "initialized", map[string]interface{}{
		"image_size": components.ImageDisplaySize,
	})

	return manager
}

func (m *Manager) GetMainContainer() *fyne.Container {
	return container.NewBorder(
		m.toolbar.GetContainer(),
		m.statusBar.GetContainer(),
		nil,
		m.parameterPanel.GetContainer(),
		m.imageDisplay.GetContainer(),
	)
}

func (m *Manager) GetWindow() fyne.Window {
	return m.window
}

func (m *Manager) SetThresholdHandler(handler func(float64)) {
	m.parameterPanel.SetThresholdHandler(func(value float64) {
		m.logger.Debug("GUIManager", "threshold change", map[string]interface{}{"value": value})
		handler(value)
	})
}

func (m *Manager) SetErosionHandler(handler func(int)) {
	m.parameterPanel.SetErosionHandler(func(iterations int) {
		m.logger.Debug("GUIManager", "erosion change", map[string]interface{}{"value": iterations})
		handler(iterations)
	})
}

func (m *Manager) SetNavigationHandlers(prev, next func()) {
	m.toolbar.SetPrevHandler(prev)
	m.toolbar.SetNextHandler(next)
}

func (m *Manager) SetResetHandler(handler func()) {
	m.toolbar.SetResetHandler(handler)
}

func (m *Manager) SetMeasureHandler(handler func()) {
	m.toolbar.SetMeasureHandler(func() {
		m.logger.Info("GUIManager", "measurement requested", nil)
		handler()
	})
}

func (m *Manager) ShowSnapshot(snap models.Snapshot) {
	fyne.Do(func() {
		m.parameterPanel.ShowSnapshot(snap)
	})
}

func (m *Manager) SetFrame(title string, gray, overlay image.Image) {
	fyne.Do(func() {
		m.imageDisplay.SetTitle(title)
		m.imageDisplay.SetFrame(gray, overlay)
	})
}

func (m *Manager) SetPosition(index, total int) {
	fyne.Do(func() {
		m.toolbar.SetPosition(index, total)
	})
}

func (m *Manager) UpdateStatus(status string) {
	fyne.Do(func() {
		m.statusBar.SetStatus(status)
	})
}

func (m *Manager) SetMeasuring(running bool) {
	fyne.Do(func() {
		m.toolbar.SetMeasuring(running)
	})
}

func (m *Manager) ShowResult(result *models.RunResult, err error) {
	fyne.Do(func() {
		m.statusBar.SetResult(result, err)
	})
}

func (m *Manager) ShowError(title string, err error) {
	m.logger.Error("GUIManager", err, map[string]interface{}{
		"title": title,
	})

	fyne.Do(func() {
		dialog.ShowError(err, m.window)
	})
}

func (m *Manager) Shutdown() {
	if m.isShutdown {
		return
	}

	m.isShutdown = true
	m.logger.Info("GUIManager", "shutdown initiated", nil)
}
