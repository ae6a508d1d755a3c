// Package processing turns raw probability masks into the cleaned and
// border-cleared binary masks that measurements are taken from.
package processing

import (
	"context"
	"fmt"

	"precipitate-meter/internal/models"
	"precipitate-meter/internal/opencv/safe"
	"precipitate-meter/internal/processing/chain"
	"precipitate-meter/internal/processing/filters"

	"gonum.org/v1/gonum/mat"
)

// MaskSet holds both masks derived from one detection. Cleaned is the
// binarized and eroded mask; Cleared additionally has border-touching
// regions removed.
type MaskSet struct {
	Cleaned *safe.Mat
	Cleared *safe.Mat
}

func (ms *MaskSet) Close() {
	if ms == nil {
		return
	}
	if ms.Cleared != nil {
		ms.Cleared.Close()
	}
	if ms.Cleaned != nil {
		ms.Cleaned.Close()
	}
}

// PostProcessor binarizes a probability mask, then runs the cleanup chain
// (erosion) and the clearing chain (border removal) over it.
type PostProcessor struct {
	cleanup *chain.Chain
	clear   *chain.Chain
	tracker safe.MemoryTracker
}

func NewPostProcessor(tracker safe.MemoryTracker) *PostProcessor {
	return &PostProcessor{
		cleanup: chain.New(filters.NewErosionFilter()),
		clear:   chain.New(filters.NewBorderClearFilter()),
		tracker: tracker,
	}
}

// Clean binarizes prob at params.Threshold and erodes it
// params.ErosionIterations times.
func (pp *PostProcessor) Clean(ctx context.Context, prob mat.Matrix, params models.Snapshot, tag string) (*safe.Mat, error) {
	binary, err := filters.Binarize(prob, params.Threshold, pp.tracker, tag)
	if err != nil {
		return nil, fmt.Errorf("binarize: %w", err)
	}
	defer binary.Close()

	return pp.cleanup.Run(ctx, binary, params)
}

// Process produces both the cleaned mask and its border-cleared form.
func (pp *PostProcessor) Process(ctx context.Context, prob mat.Matrix, params models.Snapshot, tag string) (*MaskSet, error) {
	cleaned, err := pp.Clean(ctx, prob, params, tag)
	if err != nil {
		return nil, err
	}

	cleared, err := pp.clear.Run(ctx, cleaned, params)
	if err != nil {
		cleaned.Close()
		return nil, err
	}

	return &MaskSet{Cleaned: cleaned, Cleared: cleared}, nil
}
