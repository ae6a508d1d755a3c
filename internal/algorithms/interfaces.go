// Package algorithms holds the measurement extractors, one per mode, that
// share the mask post-processing stages and differ only in what they read
// from the resulting masks.
package algorithms

import (
	"errors"

	"precipitate-meter/internal/models"
	"precipitate-meter/internal/processing"
)

// Rejection reasons reported by extractors.
var (
	ErrBorderClipped = errors.New("mask clipped by image border")
	ErrEmptyMask     = errors.New("mask has no foreground pixels")
)

// Extractor computes one physical measurement from a detection's masks.
// A rejected detection returns ErrBorderClipped or ErrEmptyMask; any other
// error is a processing failure.
type Extractor interface {
	Mode() models.Mode
	Name() string
	// Pixels returns the uncalibrated quantity (pixel area or pixel length).
	Pixels(masks *processing.MaskSet) (float64, error)
	// Calibrate converts a pixel quantity into the mode's physical unit.
	Calibrate(pixels, nmPerPx float64) float64
}

// Measure runs an extractor and applies calibration last.
func Measure(e Extractor, masks *processing.MaskSet, nmPerPx float64) (pixels, value float64, err error) {
	pixels, err = e.Pixels(masks)
	if err != nil {
		return 0, 0, err
	}
	return pixels, e.Calibrate(pixels, nmPerPx), nil
}

// IsRejection reports whether err is a per-detection rejection rather than
// a processing failure.
func IsRejection(err error) bool {
	return errors.Is(err, ErrBorderClipped) || errors.Is(err, ErrEmptyMask)
}
