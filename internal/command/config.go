package command

import (
	"errors"
	"strings"

	"github.com/geobench-labs/geobench-go/internal/platform/env"
)

// Config names the tool binaries each adapter launches. Installation
// discovery is not attempted; unset values fall back to PATH lookups at
// launch time.
type Config struct {
	QGISProcessBin string
	QGISPythonBin  string
	PythonBin      string
	ShellBin       string
	QGISPrefixPath string
}

func ConfigFromEnv() (Config, error) {
	cfg := Config{
		QGISProcessBin: env.String("GEOBENCH_QGIS_PROCESS_BIN", "qgis_process"),
		QGISPythonBin:  env.String("GEOBENCH_QGIS_PYTHON_BIN", "python3"),
		PythonBin:      env.String("GEOBENCH_PYTHON_BIN", "python3"),
		ShellBin:       env.String("GEOBENCH_SHELL_BIN", "sh"),
		QGISPrefixPath: env.String("GEOBENCH_QGIS_PREFIX_PATH", ""),
	}
	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.QGISProcessBin) == "" {
		return errors.New("qgis_process binary is required")
	}
	if strings.TrimSpace(c.QGISPythonBin) == "" {
		return errors.New("qgis python binary is required")
	}
	if strings.TrimSpace(c.PythonBin) == "" {
		return errors.New("python binary is required")
	}
	if strings.TrimSpace(c.ShellBin) == "" {
		return errors.New("shell binary is required")
	}
	return nil
}
