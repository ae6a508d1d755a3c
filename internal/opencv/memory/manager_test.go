package memory

import (
	"testing"

	"precipitate-meter/internal/opencv/safe"

	"gocv.io/x/gocv"
)

func TestManagerTracksMatLifecycle(t *testing.T) {
	m := NewManager(nil)

	a, err := safe.NewMatWithTracker(8, 8, gocv.MatTypeCV8UC1, m, "a")
	if err != nil {
		t.Fatalf("NewMatWithTracker: %v", err)
	}
	b, err := a.CloneWithTag("b")
	if err != nil {
		t.Fatalf("CloneWithTag: %v", err)
	}

	stats := m.GetStats()
	if stats.ActiveMats != 2 || stats.ActiveBytes != 128 {
		t.Fatalf("after alloc: %+v", stats)
	}

	a.Close()
	a.Close()
	b.Close()

	stats = m.GetStats()
	if stats.ActiveMats != 0 || stats.ActiveBytes != 0 {
		t.Fatalf("after release: %+v", stats)
	}
	if stats.AllocCount != 2 || stats.DeallocCount != 2 {
		t.Fatalf("double close counted twice: %+v", stats)
	}
	if stats.PeakBytes != 128 {
		t.Fatalf("peak = %d, want 128", stats.PeakBytes)
	}
	if len(m.Outstanding()) != 0 {
		t.Fatalf("outstanding: %v", m.Outstanding())
	}
}
