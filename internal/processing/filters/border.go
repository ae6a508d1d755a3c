package filters

import (
	"context"
	"fmt"

	"precipitate-meter/internal/models"
	"precipitate-meter/internal/opencv/safe"

	"gocv.io/x/gocv"
)

// BorderClearFilter removes every 8-connected foreground region that has a
// pixel inside the border band. The band covers the outermost buffer+1 rows
// and columns on each side, so a buffer of 0 means "touches the edge".
type BorderClearFilter struct{}

func NewBorderClearFilter() *BorderClearFilter {
	return &BorderClearFilter{}
}

func (b *BorderClearFilter) Name() string {
	return "border_clear"
}

func (b *BorderClearFilter) Enabled(params models.Snapshot) bool {
	return true
}

func (b *BorderClearFilter) Apply(ctx context.Context, input *safe.Mat, params models.Snapshot) (*safe.Mat, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	return ClearBorder(input, params.BorderBuffer())
}

// ClearBorder returns a copy of src without the regions touching the border band.
func ClearBorder(src *safe.Mat, buffer int) (*safe.Mat, error) {
	if err := safe.ValidateBinaryMask(src, "clear border"); err != nil {
		return nil, err
	}
	if buffer < 0 {
		return nil, fmt.Errorf("border buffer must not be negative, got %d", buffer)
	}

	srcMat := src.GetMat()
	rows, cols := srcMat.Rows(), srcMat.Cols()

	labels := gocv.NewMat()
	defer labels.Close()

	components := gocv.ConnectedComponents(srcMat, &labels)

	result := srcMat.Clone()
	if components <= 1 {
		return safe.Wrap(result, src.Tracker(), src.Tag()+"_cleared")
	}

	labelData, err := labels.DataPtrInt32()
	if err != nil {
		result.Close()
		return nil, fmt.Errorf("label access failed: %w", err)
	}

	band := buffer + 1
	touching := make([]bool, components)
	for y := 0; y < rows; y++ {
		inRowBand := y < band || y >= rows-band
		for x := 0; x < cols; x++ {
			if !inRowBand && x >= band && x < cols-band {
				// Jump over the interior of this row.
				x = cols - band - 1
				continue
			}
			touching[labelData[y*cols+x]] = true
		}
	}
	// Background is never removed.
	touching[0] = false

	pix, err := result.DataPtrUint8()
	if err != nil {
		result.Close()
		return nil, fmt.Errorf("mask access failed: %w", err)
	}
	for i, label := range labelData[:rows*cols] {
		if touching[label] {
			pix[i] = 0
		}
	}

	return safe.Wrap(result, src.Tracker(), src.Tag()+"_cleared")
}
