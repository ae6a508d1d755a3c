package models

import (
	"math"
	"time"
)

// Measurement is one calibrated value derived from one accepted detection.
type Measurement struct {
	Image     int
	Detection int
	// Pixels is the uncalibrated quantity: pixel area or pixel length.
	Pixels float64
	// Value is in nm² for cross-section mode and nm for length mode.
	Value float64
}

// RejectionCounts records why detections did not yield a measurement.
type RejectionCounts struct {
	LowConfidence int
	BorderClipped int
	EmptyMask     int
}

func (rc RejectionCounts) Total() int {
	return rc.LowConfidence + rc.BorderClipped + rc.EmptyMask
}

// RunResult is the outcome of one statistics pass. It is never mutated after
// the aggregator returns it.
type RunResult struct {
	Parameters   Snapshot
	Measurements []Measurement
	Mean         float64
	StdDev       float64
	Count        int
	Detections   int
	Rejected     RejectionCounts
	Duration     time.Duration
}

// Defined reports whether mean and standard deviation carry meaning.
func (r *RunResult) Defined() bool {
	return r != nil && r.Count > 0 && !math.IsNaN(r.Mean)
}

// Values returns the calibrated measurement values in pass order.
func (r *RunResult) Values() []float64 {
	values := make([]float64, len(r.Measurements))
	for i, m := range r.Measurements {
		values[i] = m.Value
	}
	return values
}

// Unit returns the unit of the result's values.
func (r *RunResult) Unit() string {
	return r.Parameters.Mode.Unit()
}
