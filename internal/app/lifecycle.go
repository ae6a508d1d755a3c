package app

import (
	"sync"

	"precipitate-meter/internal/gui"
	"precipitate-meter/internal/logger"
	"precipitate-meter/internal/preview"
)

type Lifecycle struct {
	session    *preview.Session
	guiManager *gui.Manager
	logger     logger.Logger
	once       sync.Once
}

func NewLifecycle(session *preview.Session, gm *gui.Manager, log logger.Logger) *Lifecycle {
	return &Lifecycle{
		session:    session,
		guiManager: gm,
		logger:     log,
	}
}

func (l *Lifecycle) Shutdown() {
	l.once.Do(func() {
		l.logger.Info("Lifecycle", "shutdown sequence initiated", nil)

		// Closing the session ends the render loop.
		l.session.Close()

		l.guiManager.Shutdown()
		l.logger.Info("Lifecycle", "shutdown sequence completed", nil)
	})
}
