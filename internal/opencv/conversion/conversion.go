package conversion

import (
	"fmt"
	"image"
	"math"

	"precipitate-meter/internal/opencv/safe"

	"gocv.io/x/gocv"
	"gonum.org/v1/gonum/mat"
)

// ConvertToGrayscale converts multi-channel images to single-channel grayscale
func ConvertToGrayscale(src *safe.Mat) (*safe.Mat, error) {
	if err := safe.ValidateMatForOperation(src, "grayscale conversion"); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	srcMat := src.GetMat()
	dst := gocv.NewMat()

	switch srcMat.Channels() {
	case 1:
		dst.Close()
		return src.CloneWithTag(src.Tag() + "_gray")
	case 3:
		gocv.CvtColor(srcMat, &dst, gocv.ColorBGRToGray)
	case 4:
		gocv.CvtColor(srcMat, &dst, gocv.ColorBGRAToGray)
	default:
		dst.Close()
		return nil, fmt.Errorf("unsupported channel count: %d", srcMat.Channels())
	}

	if dst.Type() != gocv.MatTypeCV8UC1 {
		scaled := gocv.NewMat()
		dst.ConvertToWithParams(&scaled, gocv.MatTypeCV8UC1, 1.0/256.0, 0)
		dst.Close()
		dst = scaled
	}

	return safe.Wrap(dst, src.Tracker(), src.Tag()+"_gray")
}

// ResizeSquare resamples src to a size x size grid using area interpolation,
// the standard choice for downscaling micrographs.
func ResizeSquare(src *safe.Mat, size int) (*safe.Mat, error) {
	if err := safe.ValidateMatForOperation(src, "resize"); err != nil {
		return nil, err
	}
	if err := safe.ValidateDimensions(size, size, "resize"); err != nil {
		return nil, err
	}

	if src.Rows() == size && src.Cols() == size {
		return src.CloneWithTag(src.Tag() + "_resized")
	}

	dst := gocv.NewMat()
	gocv.Resize(src.GetMat(), &dst, image.Point{X: size, Y: size}, 0, 0, gocv.InterpolationArea)

	return safe.Wrap(dst, src.Tracker(), src.Tag()+"_resized")
}

// MatToImage converts GoCV Mat to standard Go image
func MatToImage(src *safe.Mat) (image.Image, error) {
	if err := safe.ValidateMatForOperation(src, "Mat to image conversion"); err != nil {
		return nil, err
	}

	srcMat := src.GetMat()
	img, err := srcMat.ToImage()
	if err != nil {
		return nil, fmt.Errorf("Mat to image conversion failed: %w", err)
	}
	return img, nil
}

// ImageToMat converts standard Go image to GoCV Mat. Gray images stay
// single-channel, everything else becomes BGR.
func ImageToMat(img image.Image, tracker safe.MemoryTracker, tag string) (*safe.Mat, error) {
	if img == nil {
		return nil, fmt.Errorf("input image is nil")
	}

	var (
		m   gocv.Mat
		err error
	)
	if gray, ok := img.(*image.Gray); ok {
		m, err = gocv.ImageGrayToMatGray(gray)
	} else {
		m, err = gocv.ImageToMatRGB(img)
	}
	if err != nil {
		return nil, fmt.Errorf("image to Mat conversion failed: %w", err)
	}

	return safe.Wrap(m, tracker, tag)
}

// MatToProbability reads a decoded single-channel mask image and scales it to
// [0,1]: 8-bit by 255, 16-bit by 65535, 32-bit float unchanged. Float masks
// with a value outside [0,1] or NaN are rejected.
func MatToProbability(src gocv.Mat) (*mat.Dense, error) {
	if src.Empty() {
		return nil, fmt.Errorf("mask Mat is empty")
	}
	if src.Channels() != 1 {
		return nil, fmt.Errorf("mask must be single-channel, got %d channels", src.Channels())
	}

	rows, cols := src.Rows(), src.Cols()
	data := make([]float64, rows*cols)

	switch src.Type() {
	case gocv.MatTypeCV8UC1:
		pix, err := src.DataPtrUint8()
		if err != nil {
			return nil, fmt.Errorf("mask data access failed: %w", err)
		}
		for i, v := range pix[:len(data)] {
			data[i] = float64(v) / 255.0
		}
	case gocv.MatTypeCV16UC1:
		pix, err := src.DataPtrUint16()
		if err != nil {
			return nil, fmt.Errorf("mask data access failed: %w", err)
		}
		for i, v := range pix[:len(data)] {
			data[i] = float64(v) / 65535.0
		}
	case gocv.MatTypeCV32FC1:
		pix, err := src.DataPtrFloat32()
		if err != nil {
			return nil, fmt.Errorf("mask data access failed: %w", err)
		}
		for i, v := range pix[:len(data)] {
			p := float64(v)
			if math.IsNaN(p) || p < 0 || p > 1 {
				return nil, fmt.Errorf("mask value %v at (%d,%d) outside [0,1]", p, i/cols, i%cols)
			}
			data[i] = p
		}
	default:
		return nil, fmt.Errorf("unsupported mask type %d", int(src.Type()))
	}

	return mat.NewDense(rows, cols, data), nil
}
