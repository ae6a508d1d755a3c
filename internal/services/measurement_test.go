package services

import (
	"context"
	"errors"
	"math"
	"testing"

	"precipitate-meter/internal/models"
	"precipitate-meter/internal/opencv/memory"

	"gonum.org/v1/gonum/mat"
)

const testSize = 64

func square(size, top, left, side int) *mat.Dense {
	m := mat.NewDense(size, size, nil)
	for y := top; y < top+side; y++ {
		for x := left; x < left+side; x++ {
			m.Set(y, x, 1)
		}
	}
	return m
}

func detection(mask *mat.Dense, score float64) models.Detection {
	return models.Detection{Mask: mask, Score: score}
}

func crossSection(nmPerPx float64) models.Snapshot {
	return models.Snapshot{Mode: models.ModeCrossSection, Threshold: 0.9, NmPerPx: nmPerPx}
}

func newService(workers int) (*MeasurementService, *memory.Manager) {
	mm := memory.NewManager(nil)
	svc := NewMeasurementService(mm, nil, testSize)
	svc.SetWorkerCount(workers)
	return svc, mm
}

func TestRunAggregatesAreas(t *testing.T) {
	svc, _ := newService(2)
	images := [][]models.Detection{
		{detection(square(testSize, 10, 10, 10), 0.95)},
		{detection(square(testSize, 20, 20, 20), 0.99)},
	}

	result, err := svc.Run(context.Background(), images, crossSection(1))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Count != 2 {
		t.Fatalf("Count = %d, want 2", result.Count)
	}
	if math.Abs(result.Mean-250) > 1e-9 || math.Abs(result.StdDev-150) > 1e-9 {
		t.Fatalf("mean/stddev = %v/%v, want 250/150", result.Mean, result.StdDev)
	}
	if result.Unit() != "nm²" {
		t.Fatalf("Unit = %q", result.Unit())
	}
}

func TestRunConfidenceGateIsStrict(t *testing.T) {
	svc, _ := newService(1)
	images := [][]models.Detection{{
		detection(square(testSize, 10, 10, 10), 0.9),
		detection(square(testSize, 30, 30, 10), 0.9000001),
	}}

	result, err := svc.Run(context.Background(), images, crossSection(1))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Count != 1 || result.Measurements[0].Detection != 1 {
		t.Fatalf("measurements = %+v, want only detection 1", result.Measurements)
	}
	if result.Rejected.LowConfidence != 1 {
		t.Fatalf("LowConfidence = %d, want 1", result.Rejected.LowConfidence)
	}
}

func TestRunExcludesBorderClippedParticles(t *testing.T) {
	svc, _ := newService(1)
	images := [][]models.Detection{{
		detection(square(testSize, 0, 20, 8), 0.99),
		detection(square(testSize, 30, 30, 10), 0.99),
	}}

	result, err := svc.Run(context.Background(), images, crossSection(1))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Count != 1 || math.Abs(result.Mean-100) > 1e-9 {
		t.Fatalf("count/mean = %d/%v, want 1/100", result.Count, result.Mean)
	}
	if result.StdDev != 0 {
		t.Fatalf("StdDev = %v, want 0 for a single value", result.StdDev)
	}
	if result.Rejected.BorderClipped != 1 || result.Detections != 2 {
		t.Fatalf("rejected = %+v detections = %d", result.Rejected, result.Detections)
	}
}

func TestRunEmptyResult(t *testing.T) {
	svc, _ := newService(1)
	images := [][]models.Detection{
		{detection(square(testSize, 10, 10, 10), 0.5)},
		{},
	}

	result, err := svc.Run(context.Background(), images, crossSection(1))
	if !errors.Is(err, models.ErrEmptyResult) {
		t.Fatalf("err = %v, want ErrEmptyResult", err)
	}
	if result == nil || result.Count != 0 || result.Defined() {
		t.Fatalf("result = %+v, want empty undefined result", result)
	}
	if !math.IsNaN(result.Mean) || !math.IsNaN(result.StdDev) {
		t.Fatalf("mean/stddev = %v/%v, want NaN", result.Mean, result.StdDev)
	}
}

func TestRunNoImages(t *testing.T) {
	svc, _ := newService(1)
	result, err := svc.Run(context.Background(), nil, crossSection(1))
	if !errors.Is(err, models.ErrEmptyResult) || result.Count != 0 {
		t.Fatalf("result/err = %+v/%v", result, err)
	}
}

func TestRunShapeMismatch(t *testing.T) {
	svc, _ := newService(1)
	images := [][]models.Detection{
		{detection(square(testSize, 10, 10, 10), 0.99)},
		{detection(square(32, 5, 5, 5), 0.99)},
	}

	_, err := svc.Run(context.Background(), images, crossSection(1))
	var shapeErr *models.ShapeMismatchError
	if !errors.As(err, &shapeErr) {
		t.Fatalf("err = %v, want ShapeMismatchError", err)
	}
	if shapeErr.Image != 1 || shapeErr.Detection != 0 || shapeErr.Expected != testSize {
		t.Fatalf("shape error = %+v", shapeErr)
	}
}

func TestRunRejectsInvalidParameters(t *testing.T) {
	svc, _ := newService(1)
	images := [][]models.Detection{{detection(square(testSize, 10, 10, 10), 0.99)}}

	for _, params := range []models.Snapshot{
		{Mode: models.ModeCrossSection, Threshold: 1.5, NmPerPx: 1},
		{Mode: models.ModeLength, Threshold: 0.5, ErosionIterations: -1, NmPerPx: 1},
		{Mode: models.ModeLength, Threshold: 0.5, NmPerPx: 0},
		{Mode: models.Mode(9), Threshold: 0.5, NmPerPx: 1},
	} {
		_, err := svc.Run(context.Background(), images, params)
		var cfgErr *models.ConfigurationError
		if !errors.As(err, &cfgErr) {
			t.Fatalf("params %+v: err = %v, want ConfigurationError", params, err)
		}
	}
}

func TestRunDeterministicAcrossWorkerCounts(t *testing.T) {
	var images [][]models.Detection
	for i := 0; i < 6; i++ {
		images = append(images, []models.Detection{
			detection(square(testSize, 12+i, 12, 4+i), 0.95),
			detection(square(testSize, 40, 30+i, 6), 0.97),
		})
	}

	serial, _ := newService(1)
	parallel, _ := newService(4)

	a, err := serial.Run(context.Background(), images, crossSection(0.5))
	if err != nil {
		t.Fatalf("serial Run: %v", err)
	}
	b, err := parallel.Run(context.Background(), images, crossSection(0.5))
	if err != nil {
		t.Fatalf("parallel Run: %v", err)
	}

	if len(a.Measurements) != len(b.Measurements) {
		t.Fatalf("counts differ: %d vs %d", len(a.Measurements), len(b.Measurements))
	}
	for i := range a.Measurements {
		if a.Measurements[i] != b.Measurements[i] {
			t.Fatalf("measurement %d differs: %+v vs %+v", i, a.Measurements[i], b.Measurements[i])
		}
	}
	if a.Mean != b.Mean || a.StdDev != b.StdDev {
		t.Fatalf("statistics differ: %v/%v vs %v/%v", a.Mean, a.StdDev, b.Mean, b.StdDev)
	}
}

func TestRunLengthMode(t *testing.T) {
	svc, _ := newService(1)
	line := mat.NewDense(testSize, testSize, nil)
	for x := 15; x < 45; x++ {
		line.Set(32, x, 0.8)
	}
	params := models.Snapshot{Mode: models.ModeLength, Threshold: 0.5, NmPerPx: 2}

	result, err := svc.Run(context.Background(), [][]models.Detection{{detection(line, 0.95)}}, params)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Count != 1 {
		t.Fatalf("Count = %d, want 1", result.Count)
	}
	if m := result.Measurements[0]; m.Pixels < 29 || m.Pixels > 30 || m.Value != m.Pixels*2 {
		t.Fatalf("measurement = %+v", m)
	}
}

func TestRunReleasesAllMats(t *testing.T) {
	svc, mm := newService(3)
	images := [][]models.Detection{
		{detection(square(testSize, 0, 0, 10), 0.99), detection(square(testSize, 20, 20, 10), 0.99)},
		{detection(mat.NewDense(testSize, testSize, nil), 0.99)},
	}

	if _, err := svc.Run(context.Background(), images, crossSection(1)); err != nil {
		t.Fatalf("Run: %v", err)
	}

	stats := mm.GetStats()
	if stats.AllocCount == 0 {
		t.Fatalf("expected tracked allocations")
	}
	if stats.ActiveMats != 0 {
		t.Fatalf("ActiveMats = %d, outstanding %v", stats.ActiveMats, mm.Outstanding())
	}
}

func TestRunHonoursCancellation(t *testing.T) {
	svc, _ := newService(2)
	images := [][]models.Detection{{detection(square(testSize, 10, 10, 10), 0.99)}}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := svc.Run(ctx, images, crossSection(1)); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}

func TestSummarize(t *testing.T) {
	mean, stddev := Summarize([]float64{2, 4, 4, 4, 5, 5, 7, 9})
	if math.Abs(mean-5) > 1e-9 || math.Abs(stddev-2) > 1e-9 {
		t.Fatalf("Summarize = %v/%v, want 5/2", mean, stddev)
	}

	mean, stddev = Summarize(nil)
	if !math.IsNaN(mean) || !math.IsNaN(stddev) {
		t.Fatalf("Summarize(nil) = %v/%v, want NaN", mean, stddev)
	}
}
