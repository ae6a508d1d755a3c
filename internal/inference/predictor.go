// Package inference supplies per-image detections to the measurement
// pipeline. The segmentation model itself runs elsewhere; predictors here
// read its output.
package inference

import (
	"context"
	"fmt"

	"precipitate-meter/internal/models"
)

// Prediction is the model output for one micrograph.
type Prediction struct {
	// Source is the micrograph path, empty when unknown.
	Source     string
	Detections []models.Detection
}

// Predictor produces detections for a batch of micrographs, in input order.
type Predictor interface {
	Predict(ctx context.Context) ([]Prediction, error)
}

// Detections strips predictions down to what the measurement service reads.
func Detections(predictions []Prediction) [][]models.Detection {
	images := make([][]models.Detection, len(predictions))
	for i, p := range predictions {
		images[i] = p.Detections
	}
	return images
}

// LoadError reports a file that could not be read, keeping the cause.
type LoadError struct {
	Path string
	Err  error
}

func (le *LoadError) Error() string {
	return fmt.Sprintf("failed to load %s: %v", le.Path, le.Err)
}

func (le *LoadError) Unwrap() error {
	return le.Err
}
