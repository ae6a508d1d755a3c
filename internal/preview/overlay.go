package preview

import (
	"context"
	"fmt"
	"image"
	"image/draw"

	"precipitate-meter/internal/models"
	"precipitate-meter/internal/opencv/conversion"
	"precipitate-meter/internal/opencv/safe"
	"precipitate-meter/internal/processing"

	"gocv.io/x/gocv"
)

// OverlayAlpha is the weight of the mask tint in the overlay.
const OverlayAlpha = 0.4

// overlayTint is red in BGR order.
var overlayTint = gocv.NewScalar(0, 0, 255, 0)

// Renderer draws cleaned detection masks over a micrograph at the working
// resolution.
type Renderer struct {
	postProcessor *processing.PostProcessor
	tracker       safe.MemoryTracker
	workingSize   int
}

func NewRenderer(tracker safe.MemoryTracker, workingSize int) *Renderer {
	return &Renderer{
		postProcessor: processing.NewPostProcessor(tracker),
		tracker:       tracker,
		workingSize:   workingSize,
	}
}

// RenderOverlay returns the micrograph as grayscale at the working resolution
// and a color copy with the union of all confident detections' cleaned masks
// tinted. The result depends only on its arguments.
func (r *Renderer) RenderOverlay(ctx context.Context, img image.Image, detections []models.Detection, params models.Snapshot) (*image.Gray, image.Image, error) {
	if err := params.Validate(); err != nil {
		return nil, nil, err
	}
	for j, det := range detections {
		if err := models.CheckShape(det, 0, j, r.workingSize); err != nil {
			return nil, nil, err
		}
	}

	gray, err := r.workingGray(img)
	if err != nil {
		return nil, nil, err
	}
	defer gray.Close()

	union, err := r.maskUnion(ctx, detections, params)
	if err != nil {
		return nil, nil, err
	}
	defer union.Close()

	grayImage, err := conversion.MatToImage(gray)
	if err != nil {
		return nil, nil, err
	}

	overlay, err := r.tint(gray, union)
	if err != nil {
		return nil, nil, err
	}

	return asGray(grayImage), overlay, nil
}

func (r *Renderer) workingGray(img image.Image) (*safe.Mat, error) {
	src, err := conversion.ImageToMat(img, r.tracker, "preview_src")
	if err != nil {
		return nil, err
	}
	defer src.Close()

	gray, err := conversion.ConvertToGrayscale(src)
	if err != nil {
		return nil, fmt.Errorf("grayscale: %w", err)
	}
	defer gray.Close()

	resized, err := conversion.ResizeSquare(gray, r.workingSize)
	if err != nil {
		return nil, fmt.Errorf("resize: %w", err)
	}
	return resized, nil
}

func (r *Renderer) maskUnion(ctx context.Context, detections []models.Detection, params models.Snapshot) (*safe.Mat, error) {
	union, err := safe.NewMatWithTracker(r.workingSize, r.workingSize, gocv.MatTypeCV8UC1, r.tracker, "preview_union")
	if err != nil {
		return nil, err
	}

	for j, det := range detections {
		if !det.Confident() {
			continue
		}

		cleaned, err := r.postProcessor.Clean(ctx, det.Mask, params, fmt.Sprintf("preview_det%d", j))
		if err != nil {
			union.Close()
			return nil, fmt.Errorf("detection %d: %w", j, err)
		}

		dst := union.GetMat()
		gocv.BitwiseOr(dst, cleaned.GetMat(), &dst)
		cleaned.Close()
	}

	return union, nil
}

func (r *Renderer) tint(gray, union *safe.Mat) (image.Image, error) {
	base := gocv.NewMat()
	defer base.Close()
	gocv.CvtColor(gray.GetMat(), &base, gocv.ColorGrayToBGR)

	solid := base.Clone()
	defer solid.Close()
	solid.SetTo(overlayTint)

	blended := gocv.NewMat()
	defer blended.Close()
	gocv.AddWeighted(base, 1-OverlayAlpha, solid, OverlayAlpha, 0, &blended)

	blended.CopyToWithMask(&base, union.GetMat())

	overlay, err := base.ToImage()
	if err != nil {
		return nil, fmt.Errorf("overlay conversion failed: %w", err)
	}
	return overlay, nil
}

func asGray(img image.Image) *image.Gray {
	if g, ok := img.(*image.Gray); ok {
		return g
	}
	bounds := img.Bounds()
	g := image.NewGray(bounds)
	draw.Draw(g, bounds, img, bounds.Min, draw.Src)
	return g
}
