package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
model: qwen3:8b
cycle_count: 10
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.RunID == "" {
		t.Error("run_id should be generated when omitted")
	}
	if cfg.Ollama.URL != "http://localhost:11434" {
		t.Errorf("ollama url default: got %q", cfg.Ollama.URL)
	}
	if cfg.Embeddings.URL != cfg.Ollama.URL {
		t.Errorf("embeddings url should default to ollama url, got %q", cfg.Embeddings.URL)
	}
	if cfg.Embeddings.Model != "nomic-embed-text" {
		t.Errorf("embeddings model default: got %q", cfg.Embeddings.Model)
	}
	if cfg.Operator.Channel != "terminal" {
		t.Errorf("operator channel default: got %q", cfg.Operator.Channel)
	}
	if cfg.Operator.TimeoutSec != 300 {
		t.Errorf("operator timeout default: got %d", cfg.Operator.TimeoutSec)
	}
	if cfg.MaxToolIterations != 32 {
		t.Errorf("max_tool_iterations default: got %d", cfg.MaxToolIterations)
	}
	if cfg.DataDir != "data" || cfg.LogDir != "logs" {
		t.Errorf("directory defaults: data=%q log=%q", cfg.DataDir, cfg.LogDir)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestLoadExpandsEnvironment(t *testing.T) {
	t.Setenv("TEST_BROKER_PASSWORD", "hunter2")

	path := writeConfig(t, `
model: qwen3:8b
cycle_count: 1
operator:
  channel: mqtt
  mqtt:
    broker: mqtt://broker:1883
    password: ${TEST_BROKER_PASSWORD}
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Operator.MQTT.Password != "hunter2" {
		t.Errorf("env expansion failed: got %q", cfg.Operator.MQTT.Password)
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err == nil {
		t.Fatal("expected an error")
	}
	if !strings.Contains(err.Error(), "not found") {
		t.Errorf("error should name the problem: %v", err)
	}
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg := &Config{Model: "qwen3:8b", CycleCount: 5}
		cfg.applyDefaults()
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(c *Config) {}, ""},
		{"missing model", func(c *Config) { c.Model = "" }, "model is required"},
		{"zero cycles", func(c *Config) { c.CycleCount = 0 }, "cycle_count must be greater than 0"},
		{"negative cycles", func(c *Config) { c.CycleCount = -3 }, "cycle_count must be greater than 0"},
		{"bad channel", func(c *Config) { c.Operator.Channel = "carrier-pigeon" }, "operator.channel must be"},
		{"mqtt without broker", func(c *Config) { c.Operator.Channel = "mqtt" }, "operator.mqtt.broker is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatal("expected an error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("got %q, want it to contain %q", err, tt.wantErr)
			}
		})
	}
}

func TestOperatorTimeout(t *testing.T) {
	cfg := &Config{}
	cfg.applyDefaults()
	if cfg.OperatorTimeout() != 300*time.Second {
		t.Errorf("default timeout: got %v", cfg.OperatorTimeout())
	}

	cfg.Operator.TimeoutSec = -1
	if cfg.OperatorTimeout() >= 0 {
		t.Errorf("negative config should disable the timeout, got %v", cfg.OperatorTimeout())
	}

	cfg.Operator.TimeoutSec = 45
	if cfg.OperatorTimeout() != 45*time.Second {
		t.Errorf("got %v", cfg.OperatorTimeout())
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    slog.Level
		wantErr bool
	}{
		{"", slog.LevelInfo, false},
		{"info", slog.LevelInfo, false},
		{"INFO", slog.LevelInfo, false},
		{"trace", LevelTrace, false},
		{"debug", slog.LevelDebug, false},
		{"warn", slog.LevelWarn, false},
		{"warning", slog.LevelWarn, false},
		{"error", slog.LevelError, false},
		{"verbose", slog.LevelInfo, true},
	}

	for _, tt := range tests {
		got, err := ParseLogLevel(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseLogLevel(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if !tt.wantErr && got != tt.want {
			t.Errorf("ParseLogLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
