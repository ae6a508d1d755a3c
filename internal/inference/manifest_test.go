package inference

import (
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"testing"

	"precipitate-meter/internal/models"
)

func writePNG(t *testing.T, path string, img image.Image) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create %s: %v", path, err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatalf("encode %s: %v", path, err)
	}
}

func gray8(size int, set func(x, y int) uint8) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, size, size))
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			img.SetGray(x, y, color.Gray{Y: set(x, y)})
		}
	}
	return img
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func TestManifestPredictorLoadsJSONManifest(t *testing.T) {
	dir := t.TempDir()
	writePNG(t, filepath.Join(dir, "a0.png"), gray8(32, func(x, y int) uint8 {
		if x >= 8 && x < 16 && y >= 8 && y < 16 {
			return 255
		}
		return 0
	}))
	deep := image.NewGray16(image.Rect(0, 0, 32, 32))
	deep.SetGray16(5, 7, color.Gray16{Y: 65535})
	deep.SetGray16(6, 7, color.Gray16{Y: 32768})
	writePNG(t, filepath.Join(dir, "b0.png"), deep)

	writeFile(t, filepath.Join(dir, "manifest.json"), `{
  "nmPerPx": 0.278,
  "nativeSize": 64,
  "images": [
    {"image": "a.tif", "detections": [{"mask": "a0.png", "score": 0.97, "box": [8, 8, 16, 16]}]},
    {"detections": [{"mask": "b0.png", "score": 0.4}]},
    {"detections": []}
  ]
}`)

	predictor, err := NewManifestPredictor(filepath.Join(dir, "manifest.json"), 32, nil)
	if err != nil {
		t.Fatalf("NewManifestPredictor: %v", err)
	}
	if m := predictor.Manifest(); m.NmPerPx != 0.278 || m.NativeSize != 64 {
		t.Fatalf("calibration = %v/%d", m.NmPerPx, m.NativeSize)
	}

	predictions, err := predictor.Predict(context.Background())
	if err != nil {
		t.Fatalf("Predict: %v", err)
	}
	if len(predictions) != 3 {
		t.Fatalf("len(predictions) = %d, want 3", len(predictions))
	}
	if predictions[0].Source != filepath.Join(dir, "a.tif") || predictions[1].Source != "" {
		t.Fatalf("sources = %q, %q", predictions[0].Source, predictions[1].Source)
	}

	first := predictions[0].Detections[0]
	if first.Score != 0.97 || first.Box != image.Rect(8, 8, 16, 16) {
		t.Fatalf("first detection = score %v box %v", first.Score, first.Box)
	}
	if first.Mask.At(10, 10) != 1 || first.Mask.At(0, 0) != 0 {
		t.Fatalf("8-bit mask not scaled to [0,1]")
	}

	second := predictions[1].Detections[0].Mask
	if second.At(7, 5) != 1 || math.Abs(second.At(7, 6)-32768.0/65535.0) > 1e-9 {
		t.Fatalf("16-bit mask values = %v, %v", second.At(7, 5), second.At(7, 6))
	}

	images := Detections(predictions)
	if len(images) != 3 || len(images[2]) != 0 {
		t.Fatalf("Detections = %v", images)
	}
}

func TestManifestPredictorReadsYAML(t *testing.T) {
	dir := t.TempDir()
	writePNG(t, filepath.Join(dir, "m.png"), gray8(16, func(x, y int) uint8 { return 128 }))
	writeFile(t, filepath.Join(dir, "manifest.yaml"), `
images:
  - image: frame.png
    detections:
      - mask: m.png
        score: 0.95
`)

	predictor, err := NewManifestPredictor(filepath.Join(dir, "manifest.yaml"), 16, nil)
	if err != nil {
		t.Fatalf("NewManifestPredictor: %v", err)
	}
	predictions, err := predictor.Predict(context.Background())
	if err != nil {
		t.Fatalf("Predict: %v", err)
	}
	if got := predictions[0].Detections[0].Mask.At(3, 3); math.Abs(got-128.0/255.0) > 1e-9 {
		t.Fatalf("mask value = %v", got)
	}
}

func TestManifestPredictorRejectsWrongMaskSize(t *testing.T) {
	dir := t.TempDir()
	writePNG(t, filepath.Join(dir, "small.png"), gray8(16, func(x, y int) uint8 { return 0 }))
	writeFile(t, filepath.Join(dir, "manifest.json"),
		`{"images": [{"detections": [{"mask": "small.png", "score": 0.99}]}]}`)

	predictor, err := NewManifestPredictor(filepath.Join(dir, "manifest.json"), 32, nil)
	if err != nil {
		t.Fatalf("NewManifestPredictor: %v", err)
	}
	_, err = predictor.Predict(context.Background())
	var shapeErr *models.ShapeMismatchError
	if !errors.As(err, &shapeErr) || shapeErr.Rows != 16 || shapeErr.Expected != 32 {
		t.Fatalf("err = %v, want ShapeMismatchError for 16x16", err)
	}
}

func TestLoadErrorsKeepTheirCause(t *testing.T) {
	dir := t.TempDir()

	_, err := NewManifestPredictor(filepath.Join(dir, "missing.json"), 32, nil)
	var loadErr *LoadError
	if !errors.As(err, &loadErr) || !errors.Is(err, fs.ErrNotExist) {
		t.Fatalf("err = %v, want LoadError wrapping fs.ErrNotExist", err)
	}

	writeFile(t, filepath.Join(dir, "manifest.json"),
		`{"images": [{"detections": [{"mask": "gone.png", "score": 0.99}]}]}`)
	predictor, err := NewManifestPredictor(filepath.Join(dir, "manifest.json"), 32, nil)
	if err != nil {
		t.Fatalf("NewManifestPredictor: %v", err)
	}
	_, err = predictor.Predict(context.Background())
	if !errors.As(err, &loadErr) || loadErr.Path != filepath.Join(dir, "gone.png") {
		t.Fatalf("err = %v, want LoadError for gone.png", err)
	}

	writeFile(t, filepath.Join(dir, "bad.json"), `{"images": [`)
	if _, err := ReadManifest(filepath.Join(dir, "bad.json")); !errors.As(err, &loadErr) {
		t.Fatalf("err = %v, want LoadError for malformed manifest", err)
	}
}

func TestManifestPredictorRejectsBadScore(t *testing.T) {
	dir := t.TempDir()
	writePNG(t, filepath.Join(dir, "m.png"), gray8(8, func(x, y int) uint8 { return 0 }))
	writeFile(t, filepath.Join(dir, "manifest.json"),
		`{"images": [{"detections": [{"mask": "m.png", "score": 1.5}]}]}`)

	predictor, err := NewManifestPredictor(filepath.Join(dir, "manifest.json"), 8, nil)
	if err != nil {
		t.Fatalf("NewManifestPredictor: %v", err)
	}
	if _, err := predictor.Predict(context.Background()); err == nil {
		t.Fatalf("expected error for score outside [0,1]")
	}
}

func TestManifestPredictorRejectsBadBox(t *testing.T) {
	dir := t.TempDir()
	writePNG(t, filepath.Join(dir, "m.png"), gray8(8, func(x, y int) uint8 { return 0 }))

	cases := map[string]string{
		"three values": `[1, 1, 4]`,
		"five values":  `[1, 1, 4, 4, 9]`,
	}
	for name, box := range cases {
		path := filepath.Join(dir, "manifest.json")
		writeFile(t, path, `{"images": [{"detections": [{"mask": "m.png", "score": 0.97, "box": `+box+`}]}]}`)

		predictor, err := NewManifestPredictor(path, 8, nil)
		if err != nil {
			t.Fatalf("%s: NewManifestPredictor: %v", name, err)
		}
		if _, err := predictor.Predict(context.Background()); err == nil {
			t.Fatalf("%s: expected error for malformed box", name)
		}
	}

	writeFile(t, filepath.Join(dir, "nobox.json"),
		`{"images": [{"detections": [{"mask": "m.png", "score": 0.97}]}]}`)
	predictor, err := NewManifestPredictor(filepath.Join(dir, "nobox.json"), 8, nil)
	if err != nil {
		t.Fatalf("NewManifestPredictor: %v", err)
	}
	preds, err := predictor.Predict(context.Background())
	if err != nil {
		t.Fatalf("absent box should be accepted: %v", err)
	}
	if !preds[0].Detections[0].Box.Empty() {
		t.Fatalf("box = %v, want empty", preds[0].Detections[0].Box)
	}
}

func TestLoadMicrograph(t *testing.T) {
	path := filepath.Join(t.TempDir(), "frame.png")
	writePNG(t, path, gray8(20, func(x, y int) uint8 { return uint8(x * 10) }))

	img, err := LoadMicrograph(path)
	if err != nil {
		t.Fatalf("LoadMicrograph: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 20 || b.Dy() != 20 {
		t.Fatalf("bounds = %v", b)
	}
	if g := color.GrayModel.Convert(img.At(3, 0)).(color.Gray).Y; g != 30 {
		t.Fatalf("pixel = %d, want 30", g)
	}
}
