package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/andresmejia3/oculus/internal/classify"
	"github.com/andresmejia3/oculus/internal/config"
	"github.com/andresmejia3/oculus/internal/sink"
	"github.com/andresmejia3/oculus/internal/types"
	"github.com/andresmejia3/oculus/internal/utils"
	"github.com/spf13/cobra"
)

// scanOptions holds the scan command's flags
type scanOptions struct {
	Zone        string
	HoldDelay   time.Duration
	Fallback    bool
	Detector    string
	InputPath   string
	Device      bool
	Realtime    bool
	Loop        bool
	Broker      string
	ClassifyURL string
	OutputPath  string
	Timeout     time.Duration
}

var scanOpts scanOptions

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Guide one eye into the target zone and capture it",
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		return runScan(cmd, scanOpts)
	},
}

func init() {
	scanCmd.Flags().StringVarP(&scanOpts.Zone, "zone", "z", types.DefaultTargetZone.String(), "Target zone as normalized x,y,width,height")
	scanCmd.Flags().DurationVar(&scanOpts.HoldDelay, "hold", time.Second, "How long the eye must stay aligned before capture")
	scanCmd.Flags().BoolVar(&scanOpts.Fallback, "fallback", false, "Use the time-based fallback instead of a detector (demo mode)")
	scanCmd.Flags().StringVarP(&scanOpts.Detector, "detector", "d", config.DetectorPython, "Detector backend (python, haar, fallback)")
	scanCmd.Flags().StringVarP(&scanOpts.InputPath, "input", "i", "/dev/video0", "Capture device or video file")
	scanCmd.Flags().BoolVar(&scanOpts.Device, "device", true, "Treat --input as a capture device")
	scanCmd.Flags().BoolVar(&scanOpts.Realtime, "realtime", false, "Throttle video files to their native frame rate")
	scanCmd.Flags().BoolVar(&scanOpts.Loop, "loop", false, "Loop video files")
	scanCmd.Flags().StringVar(&scanOpts.Broker, "broker", "", "MQTT broker host:port for status events")
	scanCmd.Flags().StringVar(&scanOpts.ClassifyURL, "classify-url", "", "Prediction endpoint to send the capture to (e.g. http://127.0.0.1:5000/api/predict)")
	scanCmd.Flags().StringVarP(&scanOpts.OutputPath, "output", "o", "capture.jpg", "Where to save the captured frame")
	scanCmd.Flags().DurationVarP(&scanOpts.Timeout, "timeout", "t", 0, "Give up if nothing is captured within this time (0 waits forever)")

	rootCmd.AddCommand(scanCmd)
}

// runScan orchestrates one guided capture: frame source, detector, scheduler session and the final save.
func runScan(cmd *cobra.Command, opts scanOptions) error {
	cfg := Cfg
	if err := applyScanFlags(cmd, cfg, opts); err != nil {
		utils.ShowError("Invalid scan flags", err, nil)
		return err
	}
	if err := validateScanFlags(cfg.Source, &opts); err != nil {
		utils.ShowError("Invalid scan flags", err, nil)
		return err
	}

	ctx := cmd.Context()

	eng, err := buildEngine(ctx, cfg, Logger)
	if err != nil {
		utils.ShowError("Startup failed", err, nil)
		return err
	}
	defer eng.Close()

	result := newOutcome()
	sched, err := eng.newScheduler(cfg, eng.sinks(sink.NewTerminal(os.Stderr), result), Logger)
	if err != nil {
		utils.ShowError("Failed to create scheduler", err, nil)
		return err
	}

	sess, err := sched.Start(ctx)
	if err != nil {
		utils.ShowError("Failed to start session", err, nil)
		return err
	}
	fmt.Fprintf(os.Stderr, "👁️  Session %s started. Target zone %s, hold %s\n", sess.ID(), cfg.TargetZone, cfg.HoldDelay)

	var timeout <-chan time.Time
	if opts.Timeout > 0 {
		timer := time.NewTimer(opts.Timeout)
		defer timer.Stop()
		timeout = timer.C
	}

	sourceDone := eng.source.Done()
wait:
	for {
		select {
		case <-sess.Done():
			break wait
		case <-sourceDone:
			if err := eng.source.Err(); err != nil {
				sess.Stop()
				utils.ShowError("Frame source stopped", err, nil)
				return err
			}
			// A finished file keeps its last frame; the session carries on with it.
			fmt.Fprintf(os.Stderr, "\n📼 Input ended, holding last frame\n")
			sourceDone = nil
		case <-timeout:
			sess.Stop()
			err := fmt.Errorf("no capture within %s", opts.Timeout)
			utils.ShowError("Scan timed out", err, nil)
			return err
		}
	}

	var capture types.CaptureEvent
	select {
	case capture = <-result.capture:
	case err := <-result.failure:
		eng.reportFailure("Detector failed to load", err)
		return err
	default:
		fmt.Fprintf(os.Stderr, "\n🛑 Scan cancelled.\n")
		return nil
	}

	if err := writeCapture(opts.OutputPath, capture.Frame.Data); err != nil {
		utils.ShowError("Failed to save capture", err, nil)
		return err
	}
	fmt.Fprintf(os.Stderr, "💾 Saved %dx%d capture to %s\n", capture.Frame.Width, capture.Frame.Height, opts.OutputPath)

	if cfg.Classify.URL == "" {
		return nil
	}

	fmt.Fprintf(os.Stderr, "🧠 Analyzing capture...\n")
	classifyCtx, cancel := context.WithTimeout(ctx, cfg.Classify.Timeout)
	defer cancel()
	prediction, err := classify.NewClient(cfg.Classify.URL, cfg.Classify.Timeout).Predict(classifyCtx, capture.Frame.Data)
	if err != nil {
		utils.ShowError("Failed to analyze image. Please try again.", err, nil)
		return err
	}
	printPrediction(os.Stdout, prediction)
	return nil
}

// applyScanFlags layers explicitly set flags over the loaded configuration.
func applyScanFlags(cmd *cobra.Command, cfg *config.Config, opts scanOptions) error {
	flags := cmd.Flags()
	if flags.Changed("zone") {
		zone, err := types.ParseTargetZone(opts.Zone)
		if err != nil {
			return err
		}
		cfg.TargetZone = zone
	}
	if flags.Changed("hold") {
		cfg.HoldDelay = opts.HoldDelay
	}
	if flags.Changed("fallback") {
		cfg.FallbackMode = opts.Fallback
	}
	if flags.Changed("detector") {
		cfg.Detector.Backend = opts.Detector
	}
	if flags.Changed("input") {
		cfg.Source.Input = opts.InputPath
	}
	if flags.Changed("device") {
		cfg.Source.Device = opts.Device
	}
	if flags.Changed("realtime") {
		cfg.Source.Realtime = opts.Realtime
	}
	if flags.Changed("loop") {
		cfg.Source.Loop = opts.Loop
	}
	if flags.Changed("broker") {
		cfg.MQTT.Broker = opts.Broker
	}
	if flags.Changed("classify-url") {
		cfg.Classify.URL = opts.ClassifyURL
	}
	return config.Validate(cfg)
}

// validateScanFlags ensures the scan can run before any process is spawned. src is the
// source after flags have been layered over the config file.
func validateScanFlags(src config.SourceConfig, opts *scanOptions) error {
	if opts.OutputPath == "" {
		return fmt.Errorf("output path must not be empty")
	}
	dir := filepath.Dir(opts.OutputPath)
	info, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("unable to access output directory: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("output directory %q is not a directory", dir)
	}
	if opts.Timeout < 0 {
		return fmt.Errorf("timeout must not be negative, got %s", opts.Timeout)
	}
	if src.Backend == config.SourceFFmpeg && !src.Device && src.Input != "" {
		info, err := os.Stat(src.Input)
		if err != nil {
			if os.IsNotExist(err) {
				return fmt.Errorf("input file does not exist: %w", err)
			}
			return fmt.Errorf("unable to access input file: %w", err)
		}
		if info.IsDir() {
			return fmt.Errorf("input path is a directory, expected a video file")
		}
	}
	return nil
}

// outcome records how a session ended.
type outcome struct {
	capture chan types.CaptureEvent
	failure chan error
}

func newOutcome() *outcome {
	return &outcome{
		capture: make(chan types.CaptureEvent, 1),
		failure: make(chan error, 1),
	}
}

func (o *outcome) Status(types.StatusUpdate) {}

func (o *outcome) Capture(event types.CaptureEvent) {
	select {
	case o.capture <- event:
	default:
	}
}

func (o *outcome) Error(sessionID string, err error) {
	select {
	case o.failure <- err:
	default:
	}
}

func printPrediction(w io.Writer, r classify.Result) {
	icon := "⚠️ "
	if r.Healthy() {
		icon = "✅"
	}
	fmt.Fprintf(w, "\n---------------------------------------------------------\n")
	fmt.Fprintf(w, "%s %s (%.0f%% confidence) - %s\n", icon, r.Disease, r.Confidence*100, r.Status)
	fmt.Fprintf(w, "---------------------------------------------------------\n")
	if r.Data.Overview != "" {
		fmt.Fprintf(w, "%s\n", r.Data.Overview)
	}
	printList(w, "Symptoms", r.Data.Symptoms)
	printList(w, "Causes", r.Data.Causes)
	printList(w, "Precautions", r.Data.Precautions)
	if r.Data.DoctorAdvice != "" {
		fmt.Fprintf(w, "\n🩺 %s\n", r.Data.DoctorAdvice)
	}
	if r.Data.Recommendation != "" {
		fmt.Fprintf(w, "👉 %s\n", r.Data.Recommendation)
	}
	fmt.Fprintf(w, "\n* AI prediction for informational purposes only. Always consult a specialist.\n")
}

func printList(w io.Writer, title string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(w, "\n%s:\n", title)
	for _, item := range items {
		fmt.Fprintf(w, "   - %s\n", strings.TrimSpace(item))
	}
}
