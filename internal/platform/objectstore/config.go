package objectstore

import (
	"errors"
	"fmt"
	"strings"

	"github.com/geobench-labs/geobench-go/internal/platform/env"
)

type Config struct {
	Enabled   bool
	Endpoint  string
	AccessKey string
	SecretKey string
	Region    string
	UseSSL    bool
	Bucket    string
	Prefix    string
}

func ConfigFromEnv() (Config, error) {
	enabled, err := env.Bool("GEOBENCH_MINIO_ENABLED", false)
	if err != nil {
		return Config{}, err
	}
	useSSL, err := env.Bool("GEOBENCH_MINIO_USE_SSL", false)
	if err != nil {
		return Config{}, err
	}
	cfg := Config{
		Enabled:   enabled,
		Endpoint:  env.String("GEOBENCH_MINIO_ENDPOINT", "localhost:9000"),
		AccessKey: env.String("GEOBENCH_MINIO_ACCESS_KEY", ""),
		SecretKey: env.String("GEOBENCH_MINIO_SECRET_KEY", ""),
		Region:    env.String("GEOBENCH_MINIO_REGION", "us-east-1"),
		UseSSL:    useSSL,
		Bucket:    env.String("GEOBENCH_MINIO_BUCKET", "geobench-results"),
		Prefix:    strings.Trim(env.String("GEOBENCH_MINIO_PREFIX", ""), "/"),
	}
	if !cfg.Enabled {
		return cfg, nil
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.Endpoint) == "" {
		return errors.New("endpoint is required")
	}
	if strings.TrimSpace(c.AccessKey) == "" {
		return errors.New("access key is required")
	}
	if strings.TrimSpace(c.SecretKey) == "" {
		return errors.New("secret key is required")
	}
	if strings.TrimSpace(c.Region) == "" {
		return errors.New("region is required")
	}
	if strings.TrimSpace(c.Bucket) == "" {
		return errors.New("bucket is required")
	}
	if strings.Contains(c.Endpoint, "://") {
		return fmt.Errorf("endpoint must not include scheme: %q", c.Endpoint)
	}
	return nil
}
