package filters

import (
	"fmt"

	"precipitate-meter/internal/opencv/safe"

	"gocv.io/x/gocv"
	"gonum.org/v1/gonum/mat"
)

// Foreground is the pixel value used for set mask pixels.
const Foreground = 255

// Binarize marks every pixel whose probability is strictly greater than
// threshold. The result is an 8-bit mask with values 0 and Foreground.
func Binarize(prob mat.Matrix, threshold float64, tracker safe.MemoryTracker, tag string) (*safe.Mat, error) {
	if prob == nil {
		return nil, fmt.Errorf("probability mask is nil")
	}

	rows, cols := prob.Dims()
	data := make([]byte, rows*cols)

	if dense, ok := prob.(*mat.Dense); ok {
		raw := dense.RawMatrix()
		for y := 0; y < rows; y++ {
			row := raw.Data[y*raw.Stride : y*raw.Stride+cols]
			for x, p := range row {
				if p > threshold {
					data[y*cols+x] = Foreground
				}
			}
		}
	} else {
		for y := 0; y < rows; y++ {
			for x := 0; x < cols; x++ {
				if prob.At(y, x) > threshold {
					data[y*cols+x] = Foreground
				}
			}
		}
	}

	return safe.NewMatFromBytes(rows, cols, gocv.MatTypeCV8UC1, data, tracker, tag)
}
