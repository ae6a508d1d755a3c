package shutdown

import (
	"context"
	"sync"
	"testing"
	"time"

	"precipitate-meter/internal/logger"
)

type recorder struct {
	mu    *sync.Mutex
	order *[]string
	name  string
	delay time.Duration
}

func (r recorder) Shutdown() {
	time.Sleep(r.delay)
	r.mu.Lock()
	defer r.mu.Unlock()
	*r.order = append(*r.order, r.name)
}

func TestShutdownCancelsContextAndRunsComponentsInReverse(t *testing.T) {
	m := NewManager(context.Background(), logger.NewNop())

	var mu sync.Mutex
	var order []string
	m.Register("first", recorder{mu: &mu, order: &order, name: "first"})
	m.Register("second", recorder{mu: &mu, order: &order, name: "second"})

	m.Shutdown()
	m.Shutdown()

	if m.Context().Err() == nil {
		t.Fatalf("context should be cancelled")
	}
	select {
	case <-m.Done():
	default:
		t.Fatalf("Done should be closed")
	}
	if len(order) != 2 || order[0] != "second" || order[1] != "first" {
		t.Fatalf("order = %v, want [second first]", order)
	}
}

func TestShutdownDoesNotWaitForeverOnSlowComponent(t *testing.T) {
	m := NewManager(context.Background(), logger.NewNop())
	m.timeout = 20 * time.Millisecond

	var mu sync.Mutex
	var order []string
	m.Register("slow", recorder{mu: &mu, order: &order, name: "slow", delay: time.Second})

	start := time.Now()
	m.Shutdown()
	if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
		t.Fatalf("Shutdown took %v", elapsed)
	}
}

func TestParentCancellationPropagates(t *testing.T) {
	parent, cancel := context.WithCancel(context.Background())
	m := NewManager(parent, logger.NewNop())
	cancel()

	if m.Context().Err() == nil {
		t.Fatalf("child context should observe parent cancellation")
	}
}

func TestListenStopsAfterShutdown(t *testing.T) {
	m := NewManager(context.Background(), logger.NewNop())
	m.Listen()

	var mu sync.Mutex
	var order []string
	m.Register("only", recorder{mu: &mu, order: &order, name: "only"})
	m.Shutdown()

	// The listener wakes on cancellation and must not run Shutdown again.
	time.Sleep(20 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	if len(order) != 1 {
		t.Fatalf("component stopped %d times", len(order))
	}
}
