// Package safe wraps gocv.Mat with close-once semantics and allocation
// tracking so mask stages can hand Mats to each other without leaking
// native memory.
package safe

import (
	"errors"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"

	"gocv.io/x/gocv"
)

var errClosed = errors.New("Mat is closed")

// MemoryTracker interface to avoid import cycles
type MemoryTracker interface {
	TrackAllocation(id uint64, size int64, tag string)
	TrackDeallocation(id uint64, tag string)
}

type Mat struct {
	mu      sync.RWMutex
	mat     gocv.Mat
	closed  bool
	id      uint64
	tracker MemoryTracker
	tag     string
}

var nextMatID atomic.Uint64

// NewMatWithTracker allocates a zero-filled Mat.
func NewMatWithTracker(rows, cols int, matType gocv.MatType, tracker MemoryTracker, tag string) (*Mat, error) {
	if err := ValidateDimensions(cols, rows, tag); err != nil {
		return nil, err
	}

	m := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 0, 0), rows, cols, matType)
	return Wrap(m, tracker, tag)
}

// NewMatFromBytes copies data into a new Mat of the given geometry.
func NewMatFromBytes(rows, cols int, matType gocv.MatType, data []byte, tracker MemoryTracker, tag string) (*Mat, error) {
	if err := ValidateDimensions(cols, rows, tag); err != nil {
		return nil, err
	}

	m, err := gocv.NewMatFromBytes(rows, cols, matType, data)
	if err != nil {
		return nil, fmt.Errorf("failed to create %dx%d Mat from %d bytes: %w", cols, rows, len(data), err)
	}
	return Wrap(m, tracker, tag)
}

// Wrap takes ownership of m. The caller must not close m afterwards.
func Wrap(m gocv.Mat, tracker MemoryTracker, tag string) (*Mat, error) {
	if m.Empty() {
		m.Close()
		return nil, fmt.Errorf("cannot wrap empty Mat (%s)", tag)
	}

	sm := &Mat{
		mat:     m,
		id:      nextMatID.Add(1),
		tracker: tracker,
		tag:     tag,
	}
	if tracker != nil {
		tracker.TrackAllocation(sm.id, int64(m.Total()*m.ElemSize()), tag)
	}

	runtime.SetFinalizer(sm, (*Mat).Close)
	return sm, nil
}

func (sm *Mat) IsValid() bool {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return !sm.closed
}

func (sm *Mat) Empty() bool {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return sm.closed || sm.mat.Empty()
}

func (sm *Mat) Rows() int {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	if sm.closed {
		return 0
	}
	return sm.mat.Rows()
}

func (sm *Mat) Cols() int {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	if sm.closed {
		return 0
	}
	return sm.mat.Cols()
}

func (sm *Mat) Type() gocv.MatType {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return sm.mat.Type()
}

// Tracker returns the tracker the Mat reports to, so derived Mats can share it.
func (sm *Mat) Tracker() MemoryTracker {
	return sm.tracker
}

func (sm *Mat) Tag() string {
	return sm.tag
}

func (sm *Mat) CloneWithTag(tag string) (*Mat, error) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	if sm.closed {
		return nil, fmt.Errorf("clone %s: %w", sm.tag, errClosed)
	}
	return Wrap(sm.mat.Clone(), sm.tracker, tag)
}

// CountNonZero returns the number of foreground pixels of a single-channel Mat.
func (sm *Mat) CountNonZero() (int, error) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	if sm.closed {
		return 0, fmt.Errorf("count %s: %w", sm.tag, errClosed)
	}
	return gocv.CountNonZero(sm.mat), nil
}

// Bytes returns a copy of the Mat's pixel buffer.
func (sm *Mat) Bytes() ([]byte, error) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	if sm.closed {
		return nil, fmt.Errorf("read %s: %w", sm.tag, errClosed)
	}
	return sm.mat.ToBytes(), nil
}

func (sm *Mat) GetUCharAt(row, col int) (uint8, error) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	if sm.closed {
		return 0, fmt.Errorf("read %s: %w", sm.tag, errClosed)
	}
	if err := ValidateCoordinates(row, col, sm.mat.Rows(), sm.mat.Cols(), "GetUCharAt"); err != nil {
		return 0, err
	}
	return sm.mat.GetUCharAt(row, col), nil
}

// GetMat exposes the underlying Mat for gocv calls. It stays owned by sm.
func (sm *Mat) GetMat() gocv.Mat {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return sm.mat
}

// Close releases the native buffer. Later calls are no-ops.
func (sm *Mat) Close() {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if sm.closed {
		return
	}
	sm.closed = true

	if sm.tracker != nil {
		sm.tracker.TrackDeallocation(sm.id, sm.tag)
	}
	sm.mat.Close()
	runtime.SetFinalizer(sm, nil)
}
