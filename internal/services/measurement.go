package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"runtime"
	"sync"
	"time"

	"precipitate-meter/internal/algorithms"
	"precipitate-meter/internal/logger"
	"precipitate-meter/internal/models"
	"precipitate-meter/internal/opencv/memory"
	"precipitate-meter/internal/processing"

	"gonum.org/v1/gonum/stat"
)

const component = "measurement"

// MeasurementService turns per-image detections into a RunResult.
type MeasurementService struct {
	memoryManager    *memory.Manager
	algorithmManager *algorithms.Manager
	postProcessor    *processing.PostProcessor
	log              logger.Logger
	workingSize      int
	workers          int
	mu               sync.RWMutex
}

// NewMeasurementService creates a service for masks of workingSize x workingSize.
func NewMeasurementService(memMgr *memory.Manager, log logger.Logger, workingSize int) *MeasurementService {
	if log == nil {
		log = logger.NewNop()
	}
	if memMgr == nil {
		memMgr = memory.NewManager(log)
	}

	return &MeasurementService{
		memoryManager:    memMgr,
		algorithmManager: algorithms.NewManager(),
		postProcessor:    processing.NewPostProcessor(memMgr),
		log:              log,
		workingSize:      workingSize,
		workers:          runtime.NumCPU(),
	}
}

// SetWorkerCount bounds how many images are processed concurrently.
func (ms *MeasurementService) SetWorkerCount(count int) {
	if count <= 0 {
		count = 1
	}
	if count > runtime.NumCPU()*2 {
		count = runtime.NumCPU() * 2
	}

	ms.mu.Lock()
	defer ms.mu.Unlock()
	ms.workers = count
}

func (ms *MeasurementService) GetWorkerCount() int {
	ms.mu.RLock()
	defer ms.mu.RUnlock()
	return ms.workers
}

func (ms *MeasurementService) WorkingSize() int {
	return ms.workingSize
}

// imageOutcome collects what one image contributed to a pass.
type imageOutcome struct {
	measurements []models.Measurement
	rejected     models.RejectionCounts
	err          error
}

// Run applies post-processing, border clearing, the confidence gate and
// measurement extraction to every detection of every image. Measurements are
// ordered by image then detection regardless of worker count.
//
// A pass that accepts nothing returns a result with Count 0 and NaN
// statistics together with models.ErrEmptyResult.
func (ms *MeasurementService) Run(ctx context.Context, images [][]models.Detection, params models.Snapshot) (*models.RunResult, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}

	extractor, err := ms.algorithmManager.GetExtractor(params.Mode)
	if err != nil {
		return nil, models.NewConfigurationError("mode", params.Mode.String(), err.Error())
	}

	total := 0
	for i, detections := range images {
		for j, det := range detections {
			if err := models.CheckShape(det, i, j, ms.workingSize); err != nil {
				return nil, err
			}
		}
		total += len(detections)
	}

	ms.log.Info(component, "Measurement pass starting", map[string]interface{}{
		"mode":       params.Mode.String(),
		"threshold":  params.Threshold,
		"erosion":    params.ErosionIterations,
		"nm_per_px":  params.NmPerPx,
		"images":     len(images),
		"detections": total,
	})

	startTime := time.Now()
	outcomes, err := ms.processImages(ctx, images, params, extractor)
	if err != nil {
		return nil, err
	}

	result := &models.RunResult{
		Parameters: params,
		Detections: total,
	}
	for _, outcome := range outcomes {
		result.Measurements = append(result.Measurements, outcome.measurements...)
		result.Rejected.LowConfidence += outcome.rejected.LowConfidence
		result.Rejected.BorderClipped += outcome.rejected.BorderClipped
		result.Rejected.EmptyMask += outcome.rejected.EmptyMask
	}
	result.Count = len(result.Measurements)
	result.Mean, result.StdDev = Summarize(result.Values())
	result.Duration = time.Since(startTime)

	memStats := ms.memoryManager.GetStats()
	ms.log.Info(component, "Measurement pass complete", map[string]interface{}{
		"count":          result.Count,
		"mean":           result.Mean,
		"stddev":         result.StdDev,
		"unit":           result.Unit(),
		"low_confidence": result.Rejected.LowConfidence,
		"border_clipped": result.Rejected.BorderClipped,
		"empty_mask":     result.Rejected.EmptyMask,
		"duration_ms":    result.Duration.Milliseconds(),
		"opencv_allocs":  memStats.AllocCount,
		"opencv_active":  memStats.ActiveMats,
	})

	if result.Count == 0 {
		ms.log.Warning(component, "No measurements accepted; check threshold and erosion", map[string]interface{}{
			"detections": total,
		})
		return result, models.ErrEmptyResult
	}

	return result, nil
}

func (ms *MeasurementService) processImages(
	ctx context.Context,
	images [][]models.Detection,
	params models.Snapshot,
	extractor algorithms.Extractor,
) ([]imageOutcome, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	outcomes := make([]imageOutcome, len(images))
	workerPool := make(chan struct{}, ms.GetWorkerCount())

	var wg sync.WaitGroup
	for i := range images {
		select {
		case workerPool <- struct{}{}:
		case <-ctx.Done():
		}
		if ctx.Err() != nil {
			break
		}

		wg.Add(1)
		go func(index int) {
			defer wg.Done()
			defer func() { <-workerPool }()

			outcomes[index] = ms.processImage(ctx, index, images[index], params, extractor)
			if outcomes[index].err != nil {
				cancel()
			}
		}(i)
	}
	wg.Wait()

	// Report the first real failure in image order; cancellations caused by
	// that failure are secondary.
	var cancelled error
	for _, outcome := range outcomes {
		if outcome.err == nil {
			continue
		}
		if errors.Is(outcome.err, context.Canceled) || errors.Is(outcome.err, context.DeadlineExceeded) {
			if cancelled == nil {
				cancelled = outcome.err
			}
			continue
		}
		return nil, outcome.err
	}
	if cancelled != nil {
		return nil, cancelled
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	return outcomes, nil
}

func (ms *MeasurementService) processImage(
	ctx context.Context,
	imageIndex int,
	detections []models.Detection,
	params models.Snapshot,
	extractor algorithms.Extractor,
) imageOutcome {
	var outcome imageOutcome

	for j, det := range detections {
		select {
		case <-ctx.Done():
			outcome.err = ctx.Err()
			return outcome
		default:
		}

		if !det.Confident() {
			outcome.rejected.LowConfidence++
			ms.log.Debug(component, "Detection rejected", map[string]interface{}{
				"image": imageIndex, "detection": j, "reason": "low_confidence", "score": det.Score,
			})
			continue
		}

		measurement, err := ms.measureDetection(ctx, imageIndex, j, det, params, extractor)
		switch {
		case err == nil:
			outcome.measurements = append(outcome.measurements, measurement)
		case algorithms.IsRejection(err):
			reason := "empty_mask"
			if errors.Is(err, algorithms.ErrBorderClipped) {
				outcome.rejected.BorderClipped++
				reason = "border_clipped"
			} else {
				outcome.rejected.EmptyMask++
			}
			ms.log.Debug(component, "Detection rejected", map[string]interface{}{
				"image": imageIndex, "detection": j, "reason": reason, "detail": err.Error(),
			})
		default:
			outcome.err = err
			return outcome
		}
	}

	return outcome
}

// measureDetection returns a rejection (see algorithms.IsRejection) or a
// processing failure as its error.
func (ms *MeasurementService) measureDetection(
	ctx context.Context,
	imageIndex, detectionIndex int,
	det models.Detection,
	params models.Snapshot,
	extractor algorithms.Extractor,
) (models.Measurement, error) {
	tag := fmt.Sprintf("img%d_det%d", imageIndex, detectionIndex)

	masks, err := ms.postProcessor.Process(ctx, det.Mask, params, tag)
	if err != nil {
		return models.Measurement{}, fmt.Errorf("image %d detection %d: %w", imageIndex, detectionIndex, err)
	}
	defer masks.Close()

	pixels, value, err := algorithms.Measure(extractor, masks, params.NmPerPx)
	if err != nil {
		if algorithms.IsRejection(err) {
			return models.Measurement{}, err
		}
		return models.Measurement{}, fmt.Errorf("image %d detection %d: %w", imageIndex, detectionIndex, err)
	}

	return models.Measurement{
		Image:     imageIndex,
		Detection: detectionIndex,
		Pixels:    pixels,
		Value:     value,
	}, nil
}

// Summarize returns the arithmetic mean and population standard deviation of
// values, or NaN for both when values is empty.
func Summarize(values []float64) (mean, stddev float64) {
	switch len(values) {
	case 0:
		return math.NaN(), math.NaN()
	case 1:
		return values[0], 0
	}
	return stat.PopMeanStdDev(values, nil)
}
