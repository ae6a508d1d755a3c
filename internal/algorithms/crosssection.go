package algorithms

import (
	"fmt"

	"precipitate-meter/internal/models"
	"precipitate-meter/internal/processing"
)

// CrossSection measures particle area. A mask is accepted only when border
// clearing removed nothing, i.e. the particle lies wholly inside the image.
// A mask left with no foreground at all is rejected with ErrEmptyMask rather
// than recorded as a zero area.
type CrossSection struct{}

func NewCrossSection() *CrossSection {
	return &CrossSection{}
}

func (c *CrossSection) Mode() models.Mode {
	return models.ModeCrossSection
}

func (c *CrossSection) Name() string {
	return "cross_section_area"
}

func (c *CrossSection) Pixels(masks *processing.MaskSet) (float64, error) {
	if masks == nil || masks.Cleaned == nil || masks.Cleared == nil {
		return 0, fmt.Errorf("%s: incomplete mask set", c.Name())
	}

	before, err := masks.Cleaned.CountNonZero()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", c.Name(), err)
	}
	after, err := masks.Cleared.CountNonZero()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", c.Name(), err)
	}

	if after != before {
		return 0, fmt.Errorf("%d of %d pixels on the border: %w", before-after, before, ErrBorderClipped)
	}
	if after == 0 {
		return 0, ErrEmptyMask
	}

	return float64(after), nil
}

func (c *CrossSection) Calibrate(pixels, nmPerPx float64) float64 {
	return pixels * nmPerPx * nmPerPx
}
