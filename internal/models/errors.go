package models

import (
	"errors"
	"fmt"
)

// ErrEmptyResult is returned alongside a RunResult that holds no accepted
// measurements. Mean and standard deviation of such a result are undefined.
var ErrEmptyResult = errors.New("no measurements accepted")

// ConfigurationError reports a run parameter outside its valid domain.
type ConfigurationError struct {
	Parameter string
	Value     interface{}
	Message   string
}

func NewConfigurationError(parameter string, value interface{}, message string) *ConfigurationError {
	return &ConfigurationError{
		Parameter: parameter,
		Value:     value,
		Message:   message,
	}
}

func (ce *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid configuration for '%s' with value '%v': %s",
		ce.Parameter, ce.Value, ce.Message)
}

// ShapeMismatchError reports a detection mask whose dimensions disagree with
// the working resolution.
type ShapeMismatchError struct {
	Image     int
	Detection int
	Rows      int
	Cols      int
	Expected  int
}

func (se *ShapeMismatchError) Error() string {
	return fmt.Sprintf("image %d detection %d: mask is %dx%d, expected %dx%d",
		se.Image, se.Detection, se.Cols, se.Rows, se.Expected, se.Expected)
}

// CheckShape validates a detection against the working resolution.
func CheckShape(det Detection, imageIndex, detectionIndex, size int) error {
	rows, cols := det.Dims()
	if rows != size || cols != size {
		return &ShapeMismatchError{
			Image:     imageIndex,
			Detection: detectionIndex,
			Rows:      rows,
			Cols:      cols,
			Expected:  size,
		}
	}
	return nil
}
