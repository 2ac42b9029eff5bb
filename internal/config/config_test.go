package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/andresmejia3/oculus/internal/types"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "oculus.yaml")
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestDefaultsAreValid(t *testing.T) {
	if err := Validate(Default()); err != nil {
		t.Fatalf("Default config invalid: %v", err)
	}
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load(\"\") failed: %v", err)
	}
	if cfg.TargetZone != types.DefaultTargetZone || cfg.HoldDelay != time.Second {
		t.Errorf("Unexpected defaults %+v", cfg)
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
target_zone:
  x: 0.25
  y: 0.2
  width: 0.5
  height: 0.6
hold_delay: 1500ms
detector:
  backend: haar
  cascade: /opt/cascades/haarcascade_eye.xml
source:
  input: clip.mp4
  device: false
  loop: true
mqtt:
  broker: localhost:1883
log:
  level: debug
  format: json
`)
	t.Setenv(EnvMQTTBroker, "")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.TargetZone != (types.TargetZone{X: 0.25, Y: 0.2, Width: 0.5, Height: 0.6}) {
		t.Errorf("zone = %+v", cfg.TargetZone)
	}
	if cfg.HoldDelay != 1500*time.Millisecond {
		t.Errorf("hold_delay = %s", cfg.HoldDelay)
	}
	// Unset keys keep their defaults.
	if cfg.TickInterval != 33*time.Millisecond || cfg.Detector.InputSize != 160 {
		t.Errorf("defaults lost: tick=%s input_size=%d", cfg.TickInterval, cfg.Detector.InputSize)
	}
	if cfg.Detector.Backend != DetectorHaar || cfg.Source.Device || !cfg.Source.Loop {
		t.Errorf("unexpected detector/source %+v %+v", cfg.Detector, cfg.Source)
	}
	if cfg.MQTT.Broker != "localhost:1883" || cfg.Log.Format != "json" {
		t.Errorf("unexpected mqtt/log %+v %+v", cfg.MQTT, cfg.Log)
	}
}

func TestEnvOverridesBroker(t *testing.T) {
	path := writeConfig(t, "mqtt:\n  broker: file-broker:1883\n")
	t.Setenv(EnvMQTTBroker, "env-broker:1883")

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.MQTT.Broker != "env-broker:1883" {
		t.Errorf("Expected env broker, got %q", cfg.MQTT.Broker)
	}
}

func TestLoadErrors(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("Expected error for missing file")
	}
	if _, err := Load(writeConfig(t, "hold_delay: [")); err == nil {
		t.Error("Expected parse error")
	}
	_, err := Load(writeConfig(t, "hold_delay: 0s\n"))
	if err == nil || !strings.Contains(err.Error(), "hold_delay") {
		t.Errorf("Expected validation error, got %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"Zone outside frame", func(c *Config) { c.TargetZone.X = -0.1 }, "target_zone"},
		{"Zero tick", func(c *Config) { c.TickInterval = 0 }, "tick_interval"},
		{"Unknown detector", func(c *Config) { c.Detector.Backend = "yolo" }, "detector.backend"},
		{"Input size not multiple of 32", func(c *Config) { c.Detector.InputSize = 100 }, "input_size"},
		{"Score threshold out of range", func(c *Config) { c.Detector.ScoreThreshold = 1.5 }, "score_threshold"},
		{"Haar without cascade", func(c *Config) { c.Detector.Backend = DetectorHaar; c.Detector.Cascade = "" }, "cascade"},
		{"Unknown source", func(c *Config) { c.Source.Backend = "rtsp" }, "source.backend"},
		{"Bad source size", func(c *Config) { c.Source.Size = "big" }, "source.size"},
		{"Bad log level", func(c *Config) { c.Log.Level = "loud" }, "log.level"},
		{"Bad log format", func(c *Config) { c.Log.Format = "xml" }, "log.format"},
		{"Classify without timeout", func(c *Config) { c.Classify.URL = "http://x"; c.Classify.Timeout = 0 }, "classify.timeout"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := Validate(cfg)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Validate() = %v, want error mentioning %q", err, tt.want)
			}
		})
	}

	fallback := Default()
	fallback.Detector = DetectorConfig{Backend: DetectorFallback}
	if err := Validate(fallback); err != nil {
		t.Errorf("fallback backend needs no detector settings, got %v", err)
	}
}
