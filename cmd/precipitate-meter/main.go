package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"runtime"

	"precipitate-meter/internal/app"
	"precipitate-meter/internal/config"
	"precipitate-meter/internal/inference"
	"precipitate-meter/internal/logger"
	"precipitate-meter/internal/models"
	"precipitate-meter/internal/opencv/memory"
	"precipitate-meter/internal/preview"
	"precipitate-meter/internal/services"
	"precipitate-meter/internal/shutdown"
)

const AppVersion = "1.0.0"

type options struct {
	configPath  string
	manifest    string
	mode        string
	logLevel    string
	showPreview bool
	writeConfig bool
}

func main() {
	opts := parseFlags(os.Args[1:])

	if err := run(context.Background(), opts, os.Stdout); err != nil {
		if errors.Is(err, models.ErrEmptyResult) {
			fmt.Fprintln(os.Stderr, "no measurements accepted; adjust threshold or erosion")
			os.Exit(2)
		}
		fmt.Fprintf(os.Stderr, "precipitate-meter: %v\n", err)
		os.Exit(1)
	}
}

func parseFlags(args []string) options {
	var opts options
	fs := flag.NewFlagSet("precipitate-meter", flag.ExitOnError)
	fs.StringVar(&opts.configPath, "config", "precipitate-meter.yaml", "YAML run configuration")
	fs.StringVar(&opts.manifest, "manifest", "", "detection manifest (overrides input.manifest)")
	fs.StringVar(&opts.mode, "mode", "", "cross-section or length (overrides mode)")
	fs.StringVar(&opts.logLevel, "log-level", "", "debug, info, warning or error (overrides log.level)")
	fs.BoolVar(&opts.showPreview, "preview", false, "tune threshold and erosion in a preview window before measuring")
	fs.BoolVar(&opts.writeConfig, "write-config", false, "write a default configuration to -config and exit")
	fs.Parse(args)
	return opts
}

func loadConfig(opts options) (*config.Config, error) {
	cfg, err := config.LoadConfig(opts.configPath)
	if err != nil {
		return nil, err
	}

	if opts.manifest != "" {
		cfg.Input.Manifest = opts.manifest
	}
	if opts.mode != "" {
		cfg.Mode = opts.mode
	}
	if level := determineLogLevel(opts.logLevel); level != "" {
		cfg.Log.Level = level
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Input.Manifest == "" {
		return nil, models.NewConfigurationError("input.manifest", "", "a detection manifest is required")
	}
	return cfg, nil
}

func run(ctx context.Context, opts options, out io.Writer) error {
	if opts.writeConfig {
		if err := config.CreateDefaultConfigFile(opts.configPath); err != nil {
			return err
		}
		fmt.Fprintf(out, "wrote %s\n", opts.configPath)
		return nil
	}

	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}

	level, err := logger.ParseLevel(cfg.Log.Level)
	if err != nil {
		return err
	}
	log := logger.NewConsoleLogger(level)

	shutdownManager := shutdown.NewManager(ctx, log)
	shutdownManager.Listen()
	defer shutdownManager.Shutdown()
	ctx = shutdownManager.Context()

	log.Info("main", "starting", map[string]interface{}{
		"version":    AppVersion,
		"go_version": runtime.Version(),
		"mode":       cfg.Mode,
		"manifest":   cfg.Input.Manifest,
	})

	workingSize := cfg.Calibration.WorkingSize
	predictor, err := inference.NewManifestPredictor(cfg.Input.Manifest, workingSize, log)
	if err != nil {
		return err
	}

	manifest := predictor.Manifest()
	unit, err := cfg.CalibrationUnit(manifest.NmPerPx, manifest.NativeSize)
	if err != nil {
		return err
	}
	params, err := cfg.RunParameters(unit)
	if err != nil {
		return err
	}

	log.Info("main", "calibration resolved", map[string]interface{}{
		"native_nm_per_px":  unit.Native(),
		"native_size":       unit.NativeSize(),
		"working_size":      unit.WorkingSize(),
		"working_nm_per_px": unit.NmPerPx(),
	})

	predictions, err := predictor.Predict(ctx)
	if err != nil {
		return err
	}

	memoryManager := memory.NewManager(log)
	service := services.NewMeasurementService(memoryManager, log, workingSize)
	if cfg.Processing.Workers > 0 {
		service.SetWorkerCount(cfg.Processing.Workers)
	}

	if opts.showPreview {
		session := preview.NewSession(params)
		renderer := preview.NewRenderer(memoryManager, workingSize)
		application := app.NewApplication(ctx, session, renderer, service, predictions, log)
		shutdownManager.Register("preview window", application)

		if err := application.Run(); err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}

	result, err := service.Run(ctx, inference.Detections(predictions), params.Snapshot())
	if result != nil {
		printResult(out, result)
	}
	reportLeaks(log, memoryManager)
	return err
}

// reportLeaks warns about Mats still open after a pass and returns how many.
func reportLeaks(log logger.Logger, tracker *memory.Manager) int {
	leaked := tracker.Outstanding()
	if len(leaked) > 0 {
		log.Warning("main", "OpenCV Mats not released", map[string]interface{}{
			"count": len(leaked),
			"tags":  leaked,
		})
	}
	return len(leaked)
}

func printResult(out io.Writer, result *models.RunResult) {
	snap := result.Parameters
	unit := result.Unit()

	fmt.Fprintf(out, "mode=%s threshold=%.2f erosion=%d nm_per_px=%.6f\n",
		snap.Mode, snap.Threshold, snap.ErosionIterations, snap.NmPerPx)
	for _, m := range result.Measurements {
		fmt.Fprintf(out, "image=%d detection=%d pixels=%.2f value=%.4f %s\n",
			m.Image, m.Detection, m.Pixels, m.Value, unit)
	}
	fmt.Fprintf(out, "detections=%d rejected=%d (low_confidence=%d border_clipped=%d empty_mask=%d)\n",
		result.Detections, result.Rejected.Total(),
		result.Rejected.LowConfidence, result.Rejected.BorderClipped, result.Rejected.EmptyMask)

	if !result.Defined() {
		fmt.Fprintln(out, "count=0 mean=undefined stddev=undefined")
		return
	}
	fmt.Fprintf(out, "count=%d mean=%.4f %s stddev=%.4f %s\n",
		result.Count, result.Mean, unit, result.StdDev, unit)
}

// determineLogLevel prefers the flag, then LOG_LEVEL, then DEBUG=1.
func determineLogLevel(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if level := os.Getenv("LOG_LEVEL"); level != "" {
		return level
	}
	if os.Getenv("DEBUG") == "1" {
		return "debug"
	}
	return ""
}
