package filters

import (
	"context"
	"image"

	"precipitate-meter/internal/models"
	"precipitate-meter/internal/opencv/safe"

	"gocv.io/x/gocv"
)

// ErosionKernelSize is the side of the square structuring element.
const ErosionKernelSize = 2

// ErosionFilter erodes a binary mask with a 2x2 square element, once per
// requested iteration. Pixels outside the image count as foreground, so the
// image edge itself never erodes a particle.
type ErosionFilter struct{}

func NewErosionFilter() *ErosionFilter {
	return &ErosionFilter{}
}

func (e *ErosionFilter) Name() string {
	return "erosion"
}

func (e *ErosionFilter) Enabled(params models.Snapshot) bool {
	return params.ErosionIterations > 0
}

func (e *ErosionFilter) Apply(ctx context.Context, input *safe.Mat, params models.Snapshot) (*safe.Mat, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	if err := safe.ValidateBinaryMask(input, e.Name()); err != nil {
		return nil, err
	}

	if params.ErosionIterations <= 0 {
		return input.CloneWithTag(input.Tag() + "_eroded")
	}

	return Erode(input, params.ErosionIterations)
}

// Erode applies iterations rounds of 2x2 erosion and returns a new mask.
func Erode(src *safe.Mat, iterations int) (*safe.Mat, error) {
	kernel := gocv.GetStructuringElement(gocv.MorphRect, image.Point{X: ErosionKernelSize, Y: ErosionKernelSize})
	defer kernel.Close()

	current := src.GetMat().Clone()
	for i := 0; i < iterations; i++ {
		next := gocv.NewMat()
		gocv.Erode(current, &next, kernel)
		current.Close()
		current = next
	}

	// Re-binarize: any positive value is foreground.
	binary := gocv.NewMat()
	gocv.Threshold(current, &binary, 0, Foreground, gocv.ThresholdBinary)
	current.Close()

	return safe.Wrap(binary, src.Tracker(), src.Tag()+"_eroded")
}
