package safe

import (
	"fmt"

	"gocv.io/x/gocv"
)

// MaxDimension bounds either side of any Mat the pipeline allocates.
const MaxDimension = 32768

func ValidateMatForOperation(m *Mat, operation string) error {
	switch {
	case m == nil:
		return fmt.Errorf("%s: Mat is nil", operation)
	case !m.IsValid():
		return fmt.Errorf("%s: %w", operation, errClosed)
	case m.Empty():
		return fmt.Errorf("%s: Mat is empty", operation)
	}
	return nil
}

// ValidateBinaryMask requires a single-channel 8-bit Mat, the representation
// every mask stage exchanges.
func ValidateBinaryMask(m *Mat, operation string) error {
	if err := ValidateMatForOperation(m, operation); err != nil {
		return err
	}
	if t := m.Type(); t != gocv.MatTypeCV8UC1 {
		return fmt.Errorf("%s: Mat type %d is not an 8-bit single-channel mask", operation, int(t))
	}
	return nil
}

func ValidateDimensions(width, height int, operation string) error {
	if width <= 0 || height <= 0 {
		return fmt.Errorf("%s: invalid dimensions %dx%d", operation, width, height)
	}
	if width > MaxDimension || height > MaxDimension {
		return fmt.Errorf("%s: dimensions %dx%d exceed %d", operation, width, height, MaxDimension)
	}
	return nil
}

func ValidateCoordinates(row, col, rows, cols int, operation string) error {
	if row < 0 || row >= rows || col < 0 || col >= cols {
		return fmt.Errorf("%s: (%d,%d) outside %dx%d", operation, row, col, rows, cols)
	}
	return nil
}
