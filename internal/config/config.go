// Package config assembles the GeoBench configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/geobench-labs/geobench-go/internal/command"
	"github.com/geobench-labs/geobench-go/internal/domain"
	"github.com/geobench-labs/geobench-go/internal/platform/env"
	"github.com/geobench-labs/geobench-go/internal/platform/objectstore"
	"github.com/geobench-labs/geobench-go/internal/platform/postgres"
)

const (
	DefaultBaselineDuration = 10 * time.Second
	DefaultInterval         = time.Second
	DefaultKillGrace        = 2 * time.Second
)

type Config struct {
	LogLevel         slog.Level
	Interval         time.Duration
	BaselineDuration time.Duration
	BaselineScope    domain.BaselineScope
	RunTimeout       time.Duration
	KillGrace        time.Duration
	RecordSystem     bool
	OutputRoot       string

	Commands    command.Config
	ObjectStore objectstore.Config
	Database    postgres.Config
}

func ConfigFromEnv() (Config, error) {
	level, err := env.Enum("GEOBENCH_LOG_LEVEL", "info", "debug", "info", "warn", "error")
	if err != nil {
		return Config{}, err
	}
	interval, err := env.Duration("GEOBENCH_MONITOR_INTERVAL", DefaultInterval)
	if err != nil {
		return Config{}, err
	}
	// GB_RECORD_DURATION predates the duration-typed variable and is given
	// in seconds.
	legacy, err := env.Seconds("GB_RECORD_DURATION", DefaultBaselineDuration)
	if err != nil {
		return Config{}, err
	}
	baseline, err := env.Duration("GEOBENCH_BASELINE_DURATION", legacy)
	if err != nil {
		return Config{}, err
	}
	scope, err := env.Enum("GEOBENCH_BASELINE_SCOPE", string(domain.BaselinePerInvocation),
		string(domain.BaselinePerInvocation), string(domain.BaselinePerScenario))
	if err != nil {
		return Config{}, err
	}
	timeout, err := env.Duration("GEOBENCH_RUN_TIMEOUT", 0)
	if err != nil {
		return Config{}, err
	}
	grace, err := env.Duration("GEOBENCH_KILL_GRACE", DefaultKillGrace)
	if err != nil {
		return Config{}, err
	}
	recordSystem, err := env.Bool("GEOBENCH_RECORD_SYSTEM", true)
	if err != nil {
		return Config{}, err
	}

	commands, err := command.ConfigFromEnv()
	if err != nil {
		return Config{}, fmt.Errorf("commands: %w", err)
	}
	store, err := objectstore.ConfigFromEnv()
	if err != nil {
		return Config{}, fmt.Errorf("objectstore: %w", err)
	}
	db, err := postgres.ConfigFromEnv()
	if err != nil {
		return Config{}, fmt.Errorf("database: %w", err)
	}

	cfg := Config{
		LogLevel:         ParseLevel(level),
		Interval:         interval,
		BaselineDuration: baseline,
		BaselineScope:    domain.BaselineScope(scope),
		RunTimeout:       timeout,
		KillGrace:        grace,
		RecordSystem:     recordSystem,
		OutputRoot:       env.String("GEOBENCH_OUTPUT_ROOT", ""),
		Commands:         commands,
		ObjectStore:      store,
		Database:         db,
	}
	return cfg, cfg.Validate()
}

// Validate checks the values flags may have overridden after ConfigFromEnv.
func (c Config) Validate() error {
	if c.Interval <= 0 {
		return errors.New("monitor interval must be positive")
	}
	if c.BaselineDuration < 0 {
		return errors.New("baseline duration must not be negative")
	}
	if c.RunTimeout < 0 {
		return errors.New("run timeout must not be negative")
	}
	if c.KillGrace <= 0 {
		return errors.New("kill grace must be positive")
	}
	switch c.BaselineScope {
	case domain.BaselinePerInvocation, domain.BaselinePerScenario:
	default:
		return fmt.Errorf("baseline scope %q is not one of invocation, scenario", c.BaselineScope)
	}
	if err := c.Commands.Validate(); err != nil {
		return err
	}
	if c.ObjectStore.Enabled {
		if err := c.ObjectStore.Validate(); err != nil {
			return err
		}
	}
	if c.Database.Enabled() {
		if err := c.Database.Validate(); err != nil {
			return err
		}
	}
	return nil
}

func ParseLevel(v string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
