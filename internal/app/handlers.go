package app

import (
	"context"
	"errors"
	"fmt"
	"image"
	"path/filepath"
	"sync"

	"precipitate-meter/internal/gui"
	"precipitate-meter/internal/inference"
	"precipitate-meter/internal/logger"
	"precipitate-meter/internal/models"
	"precipitate-meter/internal/preview"
	"precipitate-meter/internal/services"
)

type Handlers struct {
	ctx         context.Context
	guiManager  *gui.Manager
	session     *preview.Session
	renderer    *preview.Renderer
	service     *services.MeasurementService
	predictions []inference.Prediction
	logger      logger.Logger

	mu          sync.Mutex
	index       int
	micrographs map[int]image.Image
	renderMu    sync.Mutex
}

func NewHandlers(
	ctx context.Context,
	gm *gui.Manager,
	session *preview.Session,
	renderer *preview.Renderer,
	service *services.MeasurementService,
	predictions []inference.Prediction,
	log logger.Logger,
) *Handlers {
	return &Handlers{
		ctx:         ctx,
		guiManager:  gm,
		session:     session,
		renderer:    renderer,
		service:     service,
		predictions: predictions,
		logger:      log,
		micrographs: make(map[int]image.Image),
	}
}

// Start shows the first image and re-renders on every parameter change until
// the session closes.
func (h *Handlers) Start() {
	h.guiManager.ShowSnapshot(h.session.Snapshot())
	h.guiManager.SetPosition(0, len(h.predictions))

	go func() {
		h.render(h.session.Snapshot())
		for snap := range h.session.Updates() {
			h.render(snap)
		}
	}()
}

func (h *Handlers) HandleThreshold(value float64) {
	if err := h.session.SetThreshold(value); err != nil {
		h.guiManager.ShowError("Threshold", err)
	}
}

func (h *Handlers) HandleErosion(iterations int) {
	if err := h.session.SetErosionIterations(iterations); err != nil {
		h.guiManager.ShowError("Erosion", err)
	}
}

func (h *Handlers) HandleReset() {
	h.session.ResetDefaults()
	h.guiManager.ShowSnapshot(h.session.Snapshot())
}

func (h *Handlers) HandlePrevious() {
	h.step(-1)
}

func (h *Handlers) HandleNext() {
	h.step(1)
}

func (h *Handlers) step(delta int) {
	if len(h.predictions) == 0 {
		return
	}

	h.mu.Lock()
	h.index = (h.index + delta + len(h.predictions)) % len(h.predictions)
	index := h.index
	h.mu.Unlock()

	h.guiManager.SetPosition(index, len(h.predictions))
	go h.render(h.session.Snapshot())
}

// HandleMeasure runs a full pass over every image with the parameters on
// screen.
func (h *Handlers) HandleMeasure() {
	snap := h.session.Snapshot()
	images := inference.Detections(h.predictions)

	h.guiManager.SetMeasuring(true)
	h.guiManager.UpdateStatus("Measuring...")

	go func() {
		defer h.guiManager.SetMeasuring(false)

		result, err := h.service.Run(h.ctx, images, snap)
		h.guiManager.ShowResult(result, err)

		switch {
		case err == nil:
			h.guiManager.UpdateStatus(fmt.Sprintf("Measured %d of %d detections", result.Count, result.Detections))
		case errors.Is(err, models.ErrEmptyResult):
			h.guiManager.UpdateStatus("Nothing accepted")
		default:
			h.guiManager.UpdateStatus("Ready")
			h.guiManager.ShowError("Measurement", err)
		}
	}()
}

func (h *Handlers) currentIndex() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.index
}

func (h *Handlers) render(snap models.Snapshot) {
	if len(h.predictions) == 0 {
		h.guiManager.UpdateStatus("No images in manifest")
		return
	}

	h.renderMu.Lock()
	defer h.renderMu.Unlock()

	index := h.currentIndex()
	prediction := h.predictions[index]

	micrograph, err := h.micrograph(index)
	if err != nil {
		h.guiManager.ShowError("Micrograph", err)
		return
	}

	gray, overlay, err := h.renderer.RenderOverlay(h.ctx, micrograph, prediction.Detections, snap)
	if err != nil {
		h.guiManager.ShowError("Preview", err)
		return
	}

	title := fmt.Sprintf("image %d", index)
	if prediction.Source != "" {
		title = filepath.Base(prediction.Source)
	}
	h.guiManager.SetFrame(title, gray, overlay)
}

// micrograph loads an image once. Entries without a source show a blank frame.
func (h *Handlers) micrograph(index int) (image.Image, error) {
	h.mu.Lock()
	cached, ok := h.micrographs[index]
	h.mu.Unlock()
	if ok {
		return cached, nil
	}

	var img image.Image
	if source := h.predictions[index].Source; source != "" {
		loaded, err := inference.LoadMicrograph(source)
		if err != nil {
			return nil, err
		}
		img = loaded
	} else {
		size := h.service.WorkingSize()
		img = image.NewGray(image.Rect(0, 0, size, size))
	}

	h.mu.Lock()
	h.micrographs[index] = img
	h.mu.Unlock()

	h.logger.Debug("Handlers", "micrograph loaded", map[string]interface{}{
		"index":  index,
		"bounds": img.Bounds().String(),
	})
	return img, nil
}
