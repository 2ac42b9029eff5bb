package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/andresmejia3/oculus/internal/logging"
	"github.com/andresmejia3/oculus/internal/types"
)

// EnvMQTTBroker overrides mqtt.broker when set.
const EnvMQTTBroker = "OCULUS_MQTT_BROKER"

// Detector backends.
const (
	DetectorPython   = "python"
	DetectorHaar     = "haar"
	DetectorFallback = "fallback"
)

// Source backends.
const (
	SourceFFmpeg = "ffmpeg"
	SourceWebcam = "webcam"
	// SourceTest feeds ffmpeg's synthetic test pattern, for fallback demos without a camera.
	SourceTest = "testsrc"
)

// Config represents the complete oculus configuration
type Config struct {
	TargetZone   types.TargetZone `yaml:"target_zone"`
	HoldDelay    time.Duration    `yaml:"hold_delay"`
	TickInterval time.Duration    `yaml:"tick_interval"`
	FallbackMode bool             `yaml:"fallback_mode"`

	Detector DetectorConfig `yaml:"detector"`
	Source   SourceConfig   `yaml:"source"`
	MQTT     MQTTConfig     `yaml:"mqtt"`
	Classify ClassifyConfig `yaml:"classify"`
	Server   ServerConfig   `yaml:"server"`
	Log      LogConfig      `yaml:"log"`
}

// DetectorConfig selects and tunes the landmark detector
type DetectorConfig struct {
	Backend        string        `yaml:"backend"` // python, haar, fallback
	Python         string        `yaml:"python"`
	Script         string        `yaml:"script"`
	InputSize      int           `yaml:"input_size"`
	ScoreThreshold float64       `yaml:"score_threshold"`
	Cascade        string        `yaml:"cascade"` // haarcascade_eye.xml for the haar backend
	ReadTimeout    time.Duration `yaml:"read_timeout"`
}

// SourceConfig describes the video feed
type SourceConfig struct {
	Backend  string `yaml:"backend"` // ffmpeg, webcam, testsrc
	Input    string `yaml:"input"`   // file path or capture device
	Device   bool   `yaml:"device"`
	Format   string `yaml:"format"` // capture demuxer: v4l2, avfoundation, dshow
	Size     string `yaml:"size"`
	Realtime bool   `yaml:"realtime"`
	Loop     bool   `yaml:"loop"`
	Camera   int    `yaml:"camera"` // OpenCV device index for the webcam backend
}

// MQTTConfig contains MQTT broker settings. An empty broker disables publishing.
type MQTTConfig struct {
	Broker      string `yaml:"broker"`
	TopicPrefix string `yaml:"topic_prefix"`
	ClientID    string `yaml:"client_id"`
}

// ClassifyConfig points at the downstream prediction endpoint. An empty URL disables it.
type ClassifyConfig struct {
	URL     string        `yaml:"url"`
	Timeout time.Duration `yaml:"timeout"`
}

type ServerConfig struct {
	Addr string `yaml:"addr"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		TargetZone:   types.DefaultTargetZone,
		HoldDelay:    time.Second,
		TickInterval: 33 * time.Millisecond,
		Detector: DetectorConfig{
			Backend:        DetectorPython,
			Python:         "python3",
			Script:         "python/landmark_worker.py",
			InputSize:      160,
			ScoreThreshold: 0.5,
			Cascade:        "haarcascade_eye.xml",
			ReadTimeout:    5 * time.Second,
		},
		Source: SourceConfig{
			Backend: SourceFFmpeg,
			Input:   "/dev/video0",
			Device:  true,
			Size:    "640x480",
		},
		MQTT: MQTTConfig{
			TopicPrefix: "oculus",
			ClientID:    "oculus",
		},
		Classify: ClassifyConfig{
			Timeout: 30 * time.Second,
		},
		Server: ServerConfig{Addr: ":8080"},
		Log:    LogConfig{Level: "info", Format: "text"},
	}
}

// Load reads a YAML configuration file on top of the defaults.
// An empty path yields the defaults. Environment overrides are applied before validation.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	cfg.ApplyEnv()

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// ApplyEnv applies environment variable overrides.
func (c *Config) ApplyEnv() {
	if broker := os.Getenv(EnvMQTTBroker); broker != "" {
		c.MQTT.Broker = broker
	}
}

// Validate checks every option and reports all problems at once.
func Validate(cfg *Config) error {
	var errs []error

	if err := cfg.TargetZone.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("target_zone: %w", err))
	}
	if cfg.HoldDelay <= 0 {
		errs = append(errs, fmt.Errorf("hold_delay must be positive, got %s", cfg.HoldDelay))
	}
	if cfg.TickInterval <= 0 {
		errs = append(errs, fmt.Errorf("tick_interval must be positive, got %s", cfg.TickInterval))
	}

	d := cfg.Detector
	switch d.Backend {
	case DetectorPython:
		if d.Script == "" {
			errs = append(errs, errors.New("detector.script is required for the python backend"))
		}
		// The tiny face detector only accepts multiples of 32.
		if d.InputSize <= 0 || d.InputSize%32 != 0 {
			errs = append(errs, fmt.Errorf("detector.input_size must be a positive multiple of 32, got %d", d.InputSize))
		}
		if d.ScoreThreshold <= 0 || d.ScoreThreshold >= 1 {
			errs = append(errs, fmt.Errorf("detector.score_threshold must be between 0.0 and 1.0, got %g", d.ScoreThreshold))
		}
	case DetectorHaar:
		if d.Cascade == "" {
			errs = append(errs, errors.New("detector.cascade is required for the haar backend"))
		}
	case DetectorFallback:
	default:
		errs = append(errs, fmt.Errorf("unknown detector.backend %q", d.Backend))
	}
	if d.ReadTimeout < 0 {
		errs = append(errs, fmt.Errorf("detector.read_timeout must not be negative, got %s", d.ReadTimeout))
	}

	switch cfg.Source.Backend {
	case SourceFFmpeg:
		if cfg.Source.Input == "" {
			errs = append(errs, errors.New("source.input is required for the ffmpeg backend"))
		}
		if cfg.Source.Size != "" {
			if _, err := types.ParseSize(cfg.Source.Size); err != nil {
				errs = append(errs, fmt.Errorf("source.size: %w", err))
			}
		}
	case SourceTest:
	case SourceWebcam:
		if cfg.Source.Camera < 0 {
			errs = append(errs, fmt.Errorf("source.camera must not be negative, got %d", cfg.Source.Camera))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown source.backend %q", cfg.Source.Backend))
	}

	if cfg.Classify.URL != "" && cfg.Classify.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("classify.timeout must be positive, got %s", cfg.Classify.Timeout))
	}

	if _, err := logging.ParseLevel(cfg.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("log.level: %w", err))
	}
	switch cfg.Log.Format {
	case "", "text", "console", "json":
	default:
		errs = append(errs, fmt.Errorf("unsupported log.format %q", cfg.Log.Format))
	}

	return errors.Join(errs...)
}

// SourceSize returns the configured capture size, or 640x480 when unset.
func (c *Config) SourceSize() types.Size {
	if size, err := types.ParseSize(c.Source.Size); err == nil {
		return size
	}
	return types.Size{Width: 640, Height: 480}
}
