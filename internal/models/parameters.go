package models

import (
	"math"
	"sync"
)

// ParameterRange defines the valid range and slider step for a parameter.
type ParameterRange struct {
	Min  float64
	Max  float64
	Step float64
}

var (
	ThresholdRange = ParameterRange{Min: 0, Max: 1, Step: 0.01}
	ErosionRange   = ParameterRange{Min: 0, Max: 10, Step: 1}
)

// Snapshot is an immutable copy of RunParameters taken at commit time.
type Snapshot struct {
	Mode              Mode
	Threshold         float64
	ErosionIterations int
	NmPerPx           float64
}

// BorderBuffer returns the border band width for the snapshot's mode.
func (s Snapshot) BorderBuffer() int {
	return s.Mode.BorderBuffer()
}

// Validate rejects snapshots that must not start a batch pass.
func (s Snapshot) Validate() error {
	if !s.Mode.Valid() {
		return NewConfigurationError("mode", int(s.Mode), "unknown mode")
	}
	if math.IsNaN(s.Threshold) || s.Threshold < 0 || s.Threshold > 1 {
		return NewConfigurationError("threshold", s.Threshold, "must be within [0,1]")
	}
	if s.ErosionIterations < 0 {
		return NewConfigurationError("erosion_iterations", s.ErosionIterations, "must not be negative")
	}
	if math.IsNaN(s.NmPerPx) || math.IsInf(s.NmPerPx, 0) || s.NmPerPx <= 0 {
		return NewConfigurationError("nm_per_px", s.NmPerPx, "must be a positive finite value")
	}
	return nil
}

// RunParameters is the mutable parameter set shared between the preview and
// the batch aggregator. Mode is fixed at construction.
type RunParameters struct {
	mu                sync.RWMutex
	mode              Mode
	threshold         float64
	erosionIterations int
	nmPerPx           float64
}

// NewRunParameters seeds threshold and erosion with the mode's defaults.
func NewRunParameters(mode Mode, nmPerPx float64) (*RunParameters, error) {
	rp := &RunParameters{
		mode:              mode,
		threshold:         mode.DefaultThreshold(),
		erosionIterations: mode.DefaultErosionIterations(),
		nmPerPx:           nmPerPx,
	}
	if err := rp.Snapshot().Validate(); err != nil {
		return nil, err
	}
	return rp, nil
}

func (rp *RunParameters) Mode() Mode {
	return rp.mode
}

func (rp *RunParameters) Threshold() float64 {
	rp.mu.RLock()
	defer rp.mu.RUnlock()
	return rp.threshold
}

func (rp *RunParameters) ErosionIterations() int {
	rp.mu.RLock()
	defer rp.mu.RUnlock()
	return rp.erosionIterations
}

func (rp *RunParameters) NmPerPx() float64 {
	rp.mu.RLock()
	defer rp.mu.RUnlock()
	return rp.nmPerPx
}

// SetThreshold updates the binarization cutoff; values outside [0,1] are rejected
// and leave the current value untouched.
func (rp *RunParameters) SetThreshold(threshold float64) error {
	if math.IsNaN(threshold) || threshold < ThresholdRange.Min || threshold > ThresholdRange.Max {
		return NewConfigurationError("threshold", threshold, "must be within [0,1]")
	}

	rp.mu.Lock()
	defer rp.mu.Unlock()
	rp.threshold = threshold
	return nil
}

func (rp *RunParameters) SetErosionIterations(iterations int) error {
	if iterations < 0 {
		return NewConfigurationError("erosion_iterations", iterations, "must not be negative")
	}

	rp.mu.Lock()
	defer rp.mu.Unlock()
	rp.erosionIterations = iterations
	return nil
}

// ResetDefaults restores the mode's default threshold and erosion count.
func (rp *RunParameters) ResetDefaults() {
	rp.mu.Lock()
	defer rp.mu.Unlock()
	rp.threshold = rp.mode.DefaultThreshold()
	rp.erosionIterations = rp.mode.DefaultErosionIterations()
}

func (rp *RunParameters) Snapshot() Snapshot {
	rp.mu.RLock()
	defer rp.mu.RUnlock()
	return Snapshot{
		Mode:              rp.mode,
		Threshold:         rp.threshold,
		ErosionIterations: rp.erosionIterations,
		NmPerPx:           rp.nmPerPx,
	}
}
