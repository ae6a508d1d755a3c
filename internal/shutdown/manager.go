// Package shutdown turns interrupt signals into context cancellation and an
// orderly shutdown of registered components.
package shutdown

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"precipitate-meter/internal/logger"
)

// ComponentTimeout bounds how long one component may take to shut down.
const ComponentTimeout = 10 * time.Second

type Shutdownable interface {
	Shutdown()
}

type component struct {
	name string
	impl Shutdownable
}

// Manager owns the run context. A measurement in flight observes Shutdown as
// context cancellation; registered components are then stopped newest first.
type Manager struct {
	mu         sync.Mutex
	components []component
	once       sync.Once
	done       chan struct{}
	ctx        context.Context
	cancel     context.CancelFunc
	timeout    time.Duration
	logger     logger.Logger
}

func NewManager(parent context.Context, log logger.Logger) *Manager {
	ctx, cancel := context.WithCancel(parent)
	return &Manager{
		done:    make(chan struct{}),
		ctx:     ctx,
		cancel:  cancel,
		timeout: ComponentTimeout,
		logger:  log,
	}
}

func (m *Manager) Register(name string, c Shutdownable) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.components = append(m.components, component{name: name, impl: c})
}

// Listen triggers Shutdown on SIGINT or SIGTERM. It stops listening once
// Shutdown has run for any reason.
func (m *Manager) Listen() {
	sigCtx, stop := signal.NotifyContext(m.ctx, os.Interrupt, syscall.SIGTERM)

	go func() {
		defer stop()
		<-sigCtx.Done()
		select {
		case <-m.done:
			return
		default:
		}
		if m.ctx.Err() == nil {
			m.logger.Info("shutdown", "interrupt received", nil)
		}
		m.Shutdown()
	}()
}

// Shutdown cancels the run context and stops every component. Only the first
// call has any effect.
func (m *Manager) Shutdown() {
	m.once.Do(m.shutdown)
}

func (m *Manager) shutdown() {
	close(m.done)
	m.cancel()

	m.mu.Lock()
	components := append([]component(nil), m.components...)
	m.mu.Unlock()

	for i := len(components) - 1; i >= 0; i-- {
		c := components[i]
		if !m.stop(c) {
			m.logger.Warning("shutdown", "component did not stop in time", map[string]interface{}{
				"component": c.name,
				"timeout":   m.timeout.String(),
			})
		}
	}

	m.logger.Debug("shutdown", "complete", map[string]interface{}{
		"components": len(components),
	})
}

func (m *Manager) stop(c component) bool {
	finished := make(chan struct{})
	go func() {
		defer close(finished)
		c.impl.Shutdown()
	}()

	timer := time.NewTimer(m.timeout)
	defer timer.Stop()

	select {
	case <-finished:
		return true
	case <-timer.C:
		return false
	}
}

func (m *Manager) Context() context.Context {
	return m.ctx
}

func (m *Manager) Done() <-chan struct{} {
	return m.done
}
