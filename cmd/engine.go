package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/andresmejia3/oculus/internal/config"
	"github.com/andresmejia3/oculus/internal/framesource"
	"github.com/andresmejia3/oculus/internal/scheduler"
	"github.com/andresmejia3/oculus/internal/sink"
	"github.com/andresmejia3/oculus/internal/utils"
	"github.com/andresmejia3/oculus/internal/worker"
)

// engine bundles the long-lived pieces a scheduler runs on.
type engine struct {
	source   framesource.Source
	detector scheduler.Detector
	mqtt     *sink.MQTT
	cleanup  []func()
}

// Close releases everything in reverse order of creation.
func (e *engine) Close() {
	for i := len(e.cleanup) - 1; i >= 0; i-- {
		e.cleanup[i]()
	}
	e.cleanup = nil
}

// buildEngine starts the frame source, prepares (but does not load) the detector and
// connects to MQTT when a broker is configured.
func buildEngine(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*engine, error) {
	e := &engine{}

	srcCtx, stopSource := context.WithCancel(ctx)
	e.cleanup = append(e.cleanup, stopSource)
	e.source = newSource(cfg, logger)
	if err := e.source.Start(srcCtx); err != nil {
		e.Close()
		return nil, fmt.Errorf("failed to start frame source: %w", err)
	}

	detector, closeDetector := newDetector(cfg)
	e.detector = detector
	if closeDetector != nil {
		e.cleanup = append(e.cleanup, closeDetector)
	}

	if cfg.MQTT.Broker != "" {
		m := sink.NewMQTT(sink.MQTTConfig{
			Broker:      cfg.MQTT.Broker,
			ClientID:    cfg.MQTT.ClientID,
			TopicPrefix: cfg.MQTT.TopicPrefix,
		}, logger)
		connectCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := m.Connect(connectCtx); err != nil {
			e.Close()
			return nil, err
		}
		e.mqtt = m
		e.cleanup = append(e.cleanup, m.Close)
	}
	return e, nil
}

// sinks returns the MQTT sink, when connected, after the given local sinks.
func (e *engine) sinks(local ...scheduler.StatusSink) sink.Multi {
	out := sink.Multi(local)
	if e.mqtt != nil {
		out = append(out, e.mqtt)
	}
	return out
}

func (e *engine) newScheduler(cfg *config.Config, out scheduler.StatusSink, logger *slog.Logger) (*scheduler.Scheduler, error) {
	return scheduler.New(e.source, e.detector, out, scheduler.Options{
		Zone:         cfg.TargetZone,
		HoldDelay:    cfg.HoldDelay,
		TickInterval: cfg.TickInterval,
		Fallback:     cfg.FallbackMode || cfg.Detector.Backend == config.DetectorFallback,
		Logger:       logger,
	})
}

// reportFailure prints the error box, including the Python logs when the landmark worker died.
func (e *engine) reportFailure(context string, err error) {
	var cmd *utils.SafeCommand
	if w, ok := e.detector.(*worker.LandmarkWorker); ok {
		cmd = w.Cmd
	}
	utils.ShowError(context, err, cmd)
}

func newSource(cfg *config.Config, logger *slog.Logger) framesource.Source {
	src := cfg.Source
	switch src.Backend {
	case config.SourceWebcam:
		size := cfg.SourceSize()
		return framesource.NewWebcam(src.Camera, size.Width, size.Height, logger)
	case config.SourceTest:
		size := cfg.SourceSize()
		return framesource.NewFFmpeg(utils.FFmpegInput{
			Path:   fmt.Sprintf("testsrc=size=%dx%d:rate=30", size.Width, size.Height),
			Device: true,
			Format: "lavfi",
		}, logger)
	default:
		return framesource.NewFFmpeg(utils.FFmpegInput{
			Path:     src.Input,
			Device:   src.Device,
			Format:   src.Format,
			Size:     src.Size,
			Realtime: src.Realtime,
			Loop:     src.Loop,
		}, logger)
	}
}

// newDetector returns nil in fallback mode; the scheduler substitutes its own generator.
func newDetector(cfg *config.Config) (scheduler.Detector, func()) {
	if cfg.FallbackMode {
		return nil, nil
	}
	d := cfg.Detector
	switch d.Backend {
	case config.DetectorHaar:
		h := worker.NewHaarDetector(d.Cascade)
		return h, func() { h.Close() }
	case config.DetectorPython:
		w := worker.NewLandmarkWorker(1, worker.Config{
			Python:         d.Python,
			Script:         d.Script,
			InputSize:      d.InputSize,
			ScoreThreshold: d.ScoreThreshold,
			ReadTimeout:    d.ReadTimeout,
		})
		return w, w.Close
	default:
		return nil, nil
	}
}

// writeCapture stores a captured JPEG.
func writeCapture(path string, data []byte) error {
	if err := os.WriteFile(path, data, 0644); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("output directory does not exist: %w", err)
		}
		return err
	}
	return nil
}
