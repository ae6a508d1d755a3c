// Package memory accounts for OpenCV allocations made through safe.Mat so a
// batch pass can prove it released every native buffer it created.
package memory

import (
	"sync"
	"time"

	"precipitate-meter/internal/logger"
	"precipitate-meter/internal/opencv/safe"
)

type AllocationRecord struct {
	Tag       string
	Size      int64
	CreatedAt time.Time
}

type Stats struct {
	AllocCount   int64
	DeallocCount int64
	ActiveMats   int64
	ActiveBytes  int64
	PeakBytes    int64
}

// Manager implements safe.MemoryTracker.
type Manager struct {
	mu          sync.Mutex
	allocations map[uint64]AllocationRecord
	stats       Stats
	log         logger.Logger
}

var _ safe.MemoryTracker = (*Manager)(nil)

func NewManager(log logger.Logger) *Manager {
	if log == nil {
		log = logger.NewNop()
	}
	return &Manager{
		allocations: make(map[uint64]AllocationRecord),
		log:         log,
	}
}

func (m *Manager) TrackAllocation(id uint64, size int64, tag string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.allocations[id] = AllocationRecord{Tag: tag, Size: size, CreatedAt: time.Now()}
	m.stats.AllocCount++
	m.stats.ActiveMats++
	m.stats.ActiveBytes += size
	if m.stats.ActiveBytes > m.stats.PeakBytes {
		m.stats.PeakBytes = m.stats.ActiveBytes
	}
}

func (m *Manager) TrackDeallocation(id uint64, tag string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	record, ok := m.allocations[id]
	if !ok {
		m.log.Warning("memory", "release of untracked Mat", map[string]interface{}{
			"id":  id,
			"tag": tag,
		})
		return
	}

	delete(m.allocations, id)
	m.stats.DeallocCount++
	m.stats.ActiveMats--
	m.stats.ActiveBytes -= record.Size
}

func (m *Manager) GetStats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stats
}

// Outstanding lists tags of Mats that were allocated but not yet closed.
func (m *Manager) Outstanding() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	tags := make([]string, 0, len(m.allocations))
	for _, record := range m.allocations {
		tags = append(tags, record.Tag)
	}
	return tags
}
