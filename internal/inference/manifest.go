package inference

import (
	"context"
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"

	"precipitate-meter/internal/logger"
	"precipitate-meter/internal/models"
	"precipitate-meter/internal/opencv/conversion"

	"gocv.io/x/gocv"
	"gonum.org/v1/gonum/mat"
	"gopkg.in/yaml.v3"
)

// Manifest lists precomputed model output. It is read as YAML, so JSON
// manifests load unchanged. Relative paths resolve against the manifest's
// directory.
type Manifest struct {
	// NmPerPx and NativeSize describe the micrographs' native calibration,
	// when the exporter embedded it.
	NmPerPx    float64         `yaml:"nmPerPx" json:"nmPerPx"`
	NativeSize int             `yaml:"nativeSize" json:"nativeSize"`
	Images     []ManifestImage `yaml:"images" json:"images"`
}

type ManifestImage struct {
	Image      string              `yaml:"image" json:"image"`
	Detections []ManifestDetection `yaml:"detections" json:"detections"`
}

type ManifestDetection struct {
	// Mask is an 8- or 16-bit single-channel PNG scaled onto [0,1].
	Mask  string  `yaml:"mask" json:"mask"`
	Score float64 `yaml:"score" json:"score"`
	Box   []int   `yaml:"box" json:"box"`
}

// ReadManifest parses the manifest at path.
func ReadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &LoadError{Path: path, Err: err}
	}

	var manifest Manifest
	if err := yaml.Unmarshal(data, &manifest); err != nil {
		return nil, &LoadError{Path: path, Err: fmt.Errorf("parse manifest: %w", err)}
	}
	return &manifest, nil
}

// ManifestPredictor serves detections recorded in a manifest.
type ManifestPredictor struct {
	path        string
	dir         string
	manifest    *Manifest
	workingSize int
	log         logger.Logger
}

func NewManifestPredictor(path string, workingSize int, log logger.Logger) (*ManifestPredictor, error) {
	if log == nil {
		log = logger.NewNop()
	}

	manifest, err := ReadManifest(path)
	if err != nil {
		return nil, err
	}

	return &ManifestPredictor{
		path:        path,
		dir:         filepath.Dir(path),
		manifest:    manifest,
		workingSize: workingSize,
		log:         log,
	}, nil
}

func (mp *ManifestPredictor) Manifest() *Manifest {
	return mp.manifest
}

// Predict decodes every mask. A mask whose size differs from the working
// resolution fails with a ShapeMismatchError.
func (mp *ManifestPredictor) Predict(ctx context.Context) ([]Prediction, error) {
	predictions := make([]Prediction, 0, len(mp.manifest.Images))

	for i, entry := range mp.manifest.Images {
		prediction := Prediction{Detections: make([]models.Detection, 0, len(entry.Detections))}
		if entry.Image != "" {
			prediction.Source = mp.resolve(entry.Image)
		}

		for j, d := range entry.Detections {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			default:
			}

			det, err := mp.loadDetection(d)
			if err != nil {
				return nil, fmt.Errorf("image %d detection %d: %w", i, j, err)
			}
			if err := models.CheckShape(det, i, j, mp.workingSize); err != nil {
				return nil, err
			}
			prediction.Detections = append(prediction.Detections, det)
		}

		predictions = append(predictions, prediction)
	}

	mp.log.Info("inference", "manifest loaded", map[string]interface{}{
		"manifest": mp.path,
		"images":   len(predictions),
	})

	return predictions, nil
}

func (mp *ManifestPredictor) loadDetection(d ManifestDetection) (models.Detection, error) {
	if d.Mask == "" {
		return models.Detection{}, errors.New("detection has no mask path")
	}
	if d.Score < 0 || d.Score > 1 {
		return models.Detection{}, fmt.Errorf("score %v outside [0,1]", d.Score)
	}
	if len(d.Box) != 0 && len(d.Box) != 4 {
		return models.Detection{}, fmt.Errorf("box has %d values, want 4", len(d.Box))
	}

	prob, err := LoadMask(mp.resolve(d.Mask))
	if err != nil {
		return models.Detection{}, err
	}

	det := models.Detection{Mask: prob, Score: d.Score}
	if len(d.Box) == 4 {
		det.Box = image.Rect(d.Box[0], d.Box[1], d.Box[2], d.Box[3])
	}
	return det, nil
}

func (mp *ManifestPredictor) resolve(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(mp.dir, p)
}

// LoadMask decodes a mask image at its stored bit depth and scales it onto [0,1].
func LoadMask(path string) (*mat.Dense, error) {
	m := gocv.IMRead(path, gocv.IMReadUnchanged)
	defer m.Close()
	if m.Empty() {
		return nil, &LoadError{Path: path, Err: errors.New("unreadable or empty image")}
	}

	src := m
	if m.Channels() > 1 {
		gray := gocv.NewMat()
		defer gray.Close()
		code := gocv.ColorBGRToGray
		if m.Channels() == 4 {
			code = gocv.ColorBGRAToGray
		}
		gocv.CvtColor(m, &gray, code)
		src = gray
	}

	prob, err := conversion.MatToProbability(src)
	if err != nil {
		return nil, &LoadError{Path: path, Err: err}
	}
	return prob, nil
}

// LoadMicrograph reads an image as 8-bit grayscale.
func LoadMicrograph(path string) (image.Image, error) {
	m := gocv.IMRead(path, gocv.IMReadGrayScale)
	defer m.Close()
	if m.Empty() {
		return nil, &LoadError{Path: path, Err: errors.New("unreadable or empty image")}
	}

	img, err := m.ToImage()
	if err != nil {
		return nil, &LoadError{Path: path, Err: err}
	}
	return img, nil
}
