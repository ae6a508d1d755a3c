// Package app wires the preview window to the preview session, the overlay
// renderer and the measurement service.
package app

import (
	"context"
	"sync/atomic"

	"precipitate-meter/internal/gui"
	"precipitate-meter/internal/inference"
	"precipitate-meter/internal/logger"
	"precipitate-meter/internal/preview"
	"precipitate-meter/internal/services"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
)

const (
	AppName         = "Precipitate Meter"
	AppID           = "com.tem.precipitatemeter"
	MinWindowWidth  = 1280
	MinWindowHeight = 720
)

type Application struct {
	fyneApp    fyne.App
	window     fyne.Window
	guiManager *gui.Manager
	handlers   *Handlers
	lifecycle  *Lifecycle
	logger     logger.Logger
	running    atomic.Bool
}

func NewApplication(
	ctx context.Context,
	session *preview.Session,
	renderer *preview.Renderer,
	service *services.MeasurementService,
	predictions []inference.Prediction,
	log logger.Logger,
) *Application {
	fyneApp := app.NewWithID(AppID)
	window := fyneApp.NewWindow(AppName)

	window.Resize(fyne.NewSize(MinWindowWidth, MinWindowHeight))
	window.CenterOnScreen()
	window.SetMaster()

	guiManager := gui.NewManager(window, log)
	handlers := NewHandlers(ctx, guiManager, session, renderer, service, predictions, log)

	application := &Application{
		fyneApp:    fyneApp,
		window:     window,
		guiManager: guiManager,
		handlers:   handlers,
		lifecycle:  NewLifecycle(session, guiManager, log),
		logger:     log,
	}
	application.setupHandlers()

	log.Info("Application", "initialization complete", map[string]interface{}{
		"images": len(predictions),
	})
	return application
}

func (a *Application) setupHandlers() {
	a.guiManager.SetThresholdHandler(a.handlers.HandleThreshold)
	a.guiManager.SetErosionHandler(a.handlers.HandleErosion)
	a.guiManager.SetNavigationHandlers(a.handlers.HandlePrevious, a.handlers.HandleNext)
	a.guiManager.SetResetHandler(a.handlers.HandleReset)
	a.guiManager.SetMeasureHandler(a.handlers.HandleMeasure)
}

// Run blocks until the window is closed.
func (a *Application) Run() error {
	a.window.SetCloseIntercept(func() {
		a.logger.Info("Application", "shutdown requested", nil)
		a.lifecycle.Shutdown()
		a.window.Close()
	})

	a.window.SetContent(a.guiManager.GetMainContainer())
	a.handlers.Start()
	a.window.Show()

	a.logger.Info("Application", "GUI displayed", nil)
	a.running.Store(true)
	a.fyneApp.Run()
	a.running.Store(false)

	return nil
}

// Shutdown closes the window from outside the UI, e.g. on a signal.
func (a *Application) Shutdown() {
	a.lifecycle.Shutdown()
	if !a.running.Load() {
		return
	}
	fyne.Do(func() {
		a.fyneApp.Quit()
	})
}
