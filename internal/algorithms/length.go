package algorithms

import (
	"fmt"
	"image"
	"math"

	"precipitate-meter/internal/models"
	"precipitate-meter/internal/opencv/safe"
	"precipitate-meter/internal/processing"

	"gocv.io/x/gocv"
)

// Length measures the long edge of the minimum-area rectangle enclosing the
// foreground pixels left after border clearing. Partly clipped masks are
// still measured; masks emptied by clearing are rejected.
type Length struct{}

func NewLength() *Length {
	return &Length{}
}

func (l *Length) Mode() models.Mode {
	return models.ModeLength
}

func (l *Length) Name() string {
	return "min_area_rect_length"
}

func (l *Length) Pixels(masks *processing.MaskSet) (float64, error) {
	if masks == nil || masks.Cleared == nil {
		return 0, fmt.Errorf("%s: incomplete mask set", l.Name())
	}

	points, err := foregroundPoints(masks.Cleared)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", l.Name(), err)
	}
	if len(points) == 0 {
		return 0, ErrEmptyMask
	}

	return LongEdge(points), nil
}

func (l *Length) Calibrate(pixels, nmPerPx float64) float64 {
	return pixels * nmPerPx
}

// LongEdge returns max(width, height) of the minimum-area rotated rectangle
// around points.
func LongEdge(points []image.Point) float64 {
	pv := gocv.NewPointVectorFromPoints(points)
	defer pv.Close()

	rect := gocv.MinAreaRect2(pv)
	return math.Max(float64(rect.Width), float64(rect.Height))
}

func foregroundPoints(mask *safe.Mat) ([]image.Point, error) {
	if err := safe.ValidateBinaryMask(mask, "foreground points"); err != nil {
		return nil, err
	}

	pix, err := mask.Bytes()
	if err != nil {
		return nil, err
	}

	cols := mask.Cols()
	var points []image.Point
	for i, v := range pix {
		if v != 0 {
			points = append(points, image.Point{X: i % cols, Y: i / cols})
		}
	}
	return points, nil
}
