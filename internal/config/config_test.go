package config

import (
	"log/slog"
	"testing"
	"time"

	"github.com/geobench-labs/geobench-go/internal/domain"
)

func TestConfigFromEnvDefaults(t *testing.T) {
	for _, key := range []string{
		"GEOBENCH_LOG_LEVEL",
		"GEOBENCH_MONITOR_INTERVAL",
		"GEOBENCH_BASELINE_DURATION",
		"GB_RECORD_DURATION",
		"GEOBENCH_BASELINE_SCOPE",
		"GEOBENCH_RUN_TIMEOUT",
		"GEOBENCH_KILL_GRACE",
		"GEOBENCH_RECORD_SYSTEM",
		"GEOBENCH_OUTPUT_ROOT",
		"GEOBENCH_MINIO_ENABLED",
		"GEOBENCH_DATABASE_URL",
	} {
		t.Setenv(key, "")
	}

	cfg, err := ConfigFromEnv()
	if err != nil {
		t.Fatalf("ConfigFromEnv() error = %v", err)
	}
	if cfg.LogLevel != slog.LevelInfo {
		t.Fatalf("LogLevel=%v, want info", cfg.LogLevel)
	}
	if cfg.Interval != time.Second {
		t.Fatalf("Interval=%s, want 1s", cfg.Interval)
	}
	if cfg.BaselineDuration != DefaultBaselineDuration {
		t.Fatalf("BaselineDuration=%s, want %s", cfg.BaselineDuration, DefaultBaselineDuration)
	}
	if cfg.BaselineScope != domain.BaselinePerInvocation {
		t.Fatalf("BaselineScope=%s, want invocation", cfg.BaselineScope)
	}
	if cfg.RunTimeout != 0 || cfg.KillGrace != DefaultKillGrace {
		t.Fatalf("RunTimeout/KillGrace=%s/%s", cfg.RunTimeout, cfg.KillGrace)
	}
	if !cfg.RecordSystem {
		t.Fatalf("RecordSystem=false, want true")
	}
	if cfg.ObjectStore.Enabled || cfg.Database.Enabled() {
		t.Fatalf("optional sinks should be disabled by default")
	}
	if cfg.Commands.ShellBin != "sh" {
		t.Fatalf("Commands.ShellBin=%q, want sh", cfg.Commands.ShellBin)
	}
}

func TestConfigFromEnvOverrides(t *testing.T) {
	t.Setenv("GEOBENCH_LOG_LEVEL", "DEBUG")
	t.Setenv("GEOBENCH_MONITOR_INTERVAL", "250ms")
	t.Setenv("GEOBENCH_BASELINE_DURATION", "")
	t.Setenv("GB_RECORD_DURATION", "2.5")
	t.Setenv("GEOBENCH_BASELINE_SCOPE", "scenario")
	t.Setenv("GEOBENCH_RUN_TIMEOUT", "90s")
	t.Setenv("GEOBENCH_RECORD_SYSTEM", "false")
	t.Setenv("GEOBENCH_OUTPUT_ROOT", "/tmp/bench")

	cfg, err := ConfigFromEnv()
	if err != nil {
		t.Fatalf("ConfigFromEnv() error = %v", err)
	}
	if cfg.LogLevel != slog.LevelDebug {
		t.Fatalf("LogLevel=%v, want debug", cfg.LogLevel)
	}
	if cfg.Interval != 250*time.Millisecond {
		t.Fatalf("Interval=%s, want 250ms", cfg.Interval)
	}
	if cfg.BaselineDuration != 2500*time.Millisecond {
		t.Fatalf("BaselineDuration=%s, want 2.5s from legacy variable", cfg.BaselineDuration)
	}
	if cfg.BaselineScope != domain.BaselinePerScenario {
		t.Fatalf("BaselineScope=%s, want scenario", cfg.BaselineScope)
	}
	if cfg.RunTimeout != 90*time.Second || cfg.RecordSystem || cfg.OutputRoot != "/tmp/bench" {
		t.Fatalf("cfg=%+v", cfg)
	}

	t.Setenv("GEOBENCH_BASELINE_DURATION", "4s")
	cfg, err = ConfigFromEnv()
	if err != nil {
		t.Fatalf("ConfigFromEnv() error = %v", err)
	}
	if cfg.BaselineDuration != 4*time.Second {
		t.Fatalf("BaselineDuration=%s, want 4s over legacy value", cfg.BaselineDuration)
	}
}

func TestConfigFromEnvRejectsInvalidValues(t *testing.T) {
	cases := map[string]string{
		"GEOBENCH_MONITOR_INTERVAL": "often",
		"GEOBENCH_BASELINE_SCOPE":   "run",
		"GB_RECORD_DURATION":        "-1",
		"GEOBENCH_RECORD_SYSTEM":    "sometimes",
		"GEOBENCH_LOG_LEVEL":        "trace",
	}
	for key, value := range cases {
		t.Run(key, func(t *testing.T) {
			t.Setenv("GEOBENCH_BASELINE_DURATION", "")
			t.Setenv(key, value)
			if _, err := ConfigFromEnv(); err == nil {
				t.Fatalf("ConfigFromEnv() with %s=%q should fail", key, value)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	valid := Config{
		Interval:      time.Second,
		KillGrace:     time.Second,
		BaselineScope: domain.BaselinePerInvocation,
	}
	valid.Commands.QGISProcessBin = "qgis_process"
	valid.Commands.QGISPythonBin = "python3"
	valid.Commands.PythonBin = "python3"
	valid.Commands.ShellBin = "sh"
	if err := valid.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero interval", func(c *Config) { c.Interval = 0 }},
		{"negative baseline", func(c *Config) { c.BaselineDuration = -time.Second }},
		{"negative timeout", func(c *Config) { c.RunTimeout = -time.Second }},
		{"unknown scope", func(c *Config) { c.BaselineScope = "run" }},
		{"missing shell", func(c *Config) { c.Commands.ShellBin = "" }},
		{"enabled store without keys", func(c *Config) { c.ObjectStore.Enabled = true }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			tt.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatalf("Validate() should fail")
			}
		})
	}
}

func TestParseLevel(t *testing.T) {
	if ParseLevel("warn") != slog.LevelWarn || ParseLevel("error") != slog.LevelError || ParseLevel("") != slog.LevelInfo {
		t.Fatalf("ParseLevel() mapping mismatch")
	}
}
