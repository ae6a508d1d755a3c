// Package calibration converts a micrograph's native distance-per-pixel into
// the value that applies to the resized working grid.
package calibration

import (
	"math"

	"precipitate-meter/internal/models"
)

// DefaultWorkingSize is the square resolution detections are produced at.
const DefaultWorkingSize = 1024

// Unit holds nm-per-pixel for the working resolution. The downscale factor is
// folded in once by New; nothing exported can apply it again.
type Unit struct {
	native      float64
	nativeSize  int
	workingSize int
	nmPerPx     float64
}

// New builds a unit from the calibration read at native resolution. When the
// image is resized from nativeSize to workingSize, each working pixel covers
// nativeSize/workingSize native pixels.
func New(nativeNmPerPx float64, nativeSize, workingSize int) (*Unit, error) {
	if math.IsNaN(nativeNmPerPx) || math.IsInf(nativeNmPerPx, 0) || nativeNmPerPx <= 0 {
		return nil, models.NewConfigurationError("nm_per_px", nativeNmPerPx, "must be a positive finite value")
	}
	if nativeSize <= 0 {
		return nil, models.NewConfigurationError("native_size", nativeSize, "must be positive")
	}
	if workingSize <= 0 {
		return nil, models.NewConfigurationError("working_size", workingSize, "must be positive")
	}

	u := &Unit{
		native:      nativeNmPerPx,
		nativeSize:  nativeSize,
		workingSize: workingSize,
	}
	u.nmPerPx = nativeNmPerPx * u.Factor()
	return u, nil
}

// AtWorkingResolution wraps a calibration already expressed for the working grid.
func AtWorkingResolution(nmPerPx float64, workingSize int) (*Unit, error) {
	return New(nmPerPx, workingSize, workingSize)
}

// Factor is the downscale ratio between native and working resolution.
func (u *Unit) Factor() float64 {
	return float64(u.nativeSize) / float64(u.workingSize)
}

// NmPerPx is the distance per working pixel.
func (u *Unit) NmPerPx() float64 {
	return u.nmPerPx
}

// Native is the distance per native pixel as read from the source file.
func (u *Unit) Native() float64 {
	return u.native
}

func (u *Unit) NativeSize() int {
	return u.nativeSize
}

func (u *Unit) WorkingSize() int {
	return u.workingSize
}
