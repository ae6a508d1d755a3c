package models

import (
	"fmt"
	"image"
	"strings"

	"gonum.org/v1/gonum/mat"
)

// Mode selects which physical quantity is extracted from each accepted mask.
type Mode int

const (
	ModeCrossSection Mode = iota
	ModeLength
)

const (
	// ConfidenceThreshold is the fixed acceptance cutoff on detection scores.
	// A detection must score strictly above it to be measured.
	ConfidenceThreshold = 0.9

	// CrossSectionBorderBuffer is the border band, in pixels beyond the outermost
	// row/column, used to detect clipped particles in cross-section mode.
	CrossSectionBorderBuffer = 0

	// LengthBorderBuffer is the border band used in length mode.
	LengthBorderBuffer = 10
)

func (m Mode) String() string {
	switch m {
	case ModeCrossSection:
		return "cross-section"
	case ModeLength:
		return "length"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// Unit returns the physical unit of measurements produced in this mode.
func (m Mode) Unit() string {
	if m == ModeLength {
		return "nm"
	}
	return "nm²"
}

// BorderBuffer returns the mode's named border buffer width.
func (m Mode) BorderBuffer() int {
	if m == ModeLength {
		return LengthBorderBuffer
	}
	return CrossSectionBorderBuffer
}

// DefaultThreshold returns the binarization cutoff used until a user overrides it.
func (m Mode) DefaultThreshold() float64 {
	if m == ModeLength {
		return 0.5
	}
	return 0.9
}

// DefaultErosionIterations returns the erosion count used until a user overrides it.
func (m Mode) DefaultErosionIterations() int {
	if m == ModeLength {
		return 4
	}
	return 0
}

func (m Mode) Valid() bool {
	return m == ModeCrossSection || m == ModeLength
}

// ParseMode accepts the names used in configuration files and flags.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "cross-section", "cross_section", "crosssection", "area":
		return ModeCrossSection, nil
	case "length", "len":
		return ModeLength, nil
	default:
		return 0, NewConfigurationError("mode", s, "expected cross-section or length")
	}
}

func (m Mode) MarshalText() ([]byte, error) {
	if !m.Valid() {
		return nil, NewConfigurationError("mode", int(m), "unknown mode")
	}
	return []byte(m.String()), nil
}

func (m *Mode) UnmarshalText(text []byte) error {
	parsed, err := ParseMode(string(text))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// Detection is one model output for one candidate object within one image.
// Mask holds per-pixel probabilities in [0,1] at the working resolution.
type Detection struct {
	Mask  *mat.Dense
	Score float64
	Box   image.Rectangle
}

// Dims returns the mask's rows and columns, or zeros for a missing mask.
func (d Detection) Dims() (rows, cols int) {
	if d.Mask == nil {
		return 0, 0
	}
	return d.Mask.Dims()
}

// Confident reports whether the detection passes the confidence gate.
func (d Detection) Confident() bool {
	return d.Score > ConfidenceThreshold
}
