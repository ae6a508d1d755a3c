// Package preview backs interactive tuning of threshold and erosion: a
// session that publishes parameter changes, and a renderer that draws the
// resulting masks over the micrograph.
package preview

import (
	"sync"

	"precipitate-meter/internal/models"
)

// Session shares a RunParameters with a preview front end. Every accepted
// change publishes a fresh snapshot on Updates; a slow consumer only sees the
// latest one.
type Session struct {
	params  *models.RunParameters
	updates chan models.Snapshot
	mu      sync.Mutex
	closed  bool
}

func NewSession(params *models.RunParameters) *Session {
	return &Session{
		params:  params,
		updates: make(chan models.Snapshot, 1),
	}
}

func (s *Session) Parameters() *models.RunParameters {
	return s.params
}

func (s *Session) Snapshot() models.Snapshot {
	return s.params.Snapshot()
}

// Updates delivers snapshots after each change. It is closed by Close.
func (s *Session) Updates() <-chan models.Snapshot {
	return s.updates
}

func (s *Session) SetThreshold(threshold float64) error {
	if err := s.params.SetThreshold(threshold); err != nil {
		return err
	}
	s.publish()
	return nil
}

func (s *Session) SetErosionIterations(iterations int) error {
	if err := s.params.SetErosionIterations(iterations); err != nil {
		return err
	}
	s.publish()
	return nil
}

func (s *Session) ResetDefaults() {
	s.params.ResetDefaults()
	s.publish()
}

func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.closed = true
	close(s.updates)
}

func (s *Session) publish() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}

	// Replace any snapshot the consumer has not picked up yet.
	select {
	case <-s.updates:
	default:
	}
	s.updates <- s.params.Snapshot()
}
