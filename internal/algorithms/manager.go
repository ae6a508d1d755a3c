package algorithms

import (
	"fmt"
	"sort"
	"sync"

	"precipitate-meter/internal/models"
)

// Manager is the registry of extractors keyed by mode.
type Manager struct {
	extractors map[models.Mode]Extractor
	mu         sync.RWMutex
}

func NewManager() *Manager {
	manager := &Manager{
		extractors: make(map[models.Mode]Extractor),
	}

	manager.Register(NewCrossSection())
	manager.Register(NewLength())

	return manager
}

// Register installs e, replacing any extractor already bound to its mode.
func (m *Manager) Register(e Extractor) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.extractors[e.Mode()] = e
}

func (m *Manager) GetExtractor(mode models.Mode) (Extractor, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if e, exists := m.extractors[mode]; exists {
		return e, nil
	}

	return nil, fmt.Errorf("no extractor for mode %s", mode)
}

func (m *Manager) GetAvailableModes() []models.Mode {
	m.mu.RLock()
	defer m.mu.RUnlock()

	modes := make([]models.Mode, 0, len(m.extractors))
	for mode := range m.extractors {
		modes = append(modes, mode)
	}
	sort.Slice(modes, func(i, j int) bool { return modes[i] < modes[j] })

	return modes
}
