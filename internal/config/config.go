package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joshrwolf/contwrap/internal/runtime"
	"github.com/spf13/viper"
)

// Config is the contwrap configuration
type Config struct {
	// Runtime selects the container wrapper (default: docker)
	Runtime string `mapstructure:"runtime"`

	// Concurrency bounds how many jobs are generated at once
	Concurrency int `mapstructure:"concurrency"`

	Session SessionConfig `mapstructure:"session"`
}

// SessionConfig is the planning session part of the configuration
type SessionConfig struct {
	SubmitDir                  string `mapstructure:"submit_dir"`
	WorkflowID                 string `mapstructure:"workflow_id"`
	PegasusVersion             string `mapstructure:"pegasus_version"`
	StrictWorkerPackageCheck   bool   `mapstructure:"strict_worker_package_check"`
	AllowWorkerPackageDownload bool   `mapstructure:"allow_worker_package_download"`
}

// Session converts the configuration into a runtime session
func (c SessionConfig) Session() runtime.Session {
	return runtime.Session{
		SubmitDir:                  c.SubmitDir,
		WorkflowID:                 c.WorkflowID,
		PegasusVersion:             c.PegasusVersion,
		StrictWorkerPackageCheck:   c.StrictWorkerPackageCheck,
		AllowWorkerPackageDownload: c.AllowWorkerPackageDownload,
	}
}

// Default returns the built in configuration
func Default() Config {
	return Config{
		Runtime:     "docker",
		Concurrency: 4,
		Session: SessionConfig{
			PegasusVersion:             "5.0.8",
			AllowWorkerPackageDownload: true,
		},
	}
}

// DefaultPath returns the default configuration file location
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("getting config dir: %w", err)
	}
	return filepath.Join(dir, "contwrap", "config.yaml"), nil
}

// Load reads configuration from path. An empty path uses DefaultPath, which
// may be absent; an explicit path must exist. CONTWRAP_* environment
// variables override file values.
func Load(path string) (Config, error) {
	explicit := path != ""
	if !explicit {
		p, err := DefaultPath()
		if err != nil {
			return Config{}, err
		}
		path = p
	}

	cfg := Default()

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("contwrap")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("runtime", cfg.Runtime)
	v.SetDefault("concurrency", cfg.Concurrency)
	v.SetDefault("session.submit_dir", cfg.Session.SubmitDir)
	v.SetDefault("session.workflow_id", cfg.Session.WorkflowID)
	v.SetDefault("session.pegasus_version", cfg.Session.PegasusVersion)
	v.SetDefault("session.strict_worker_package_check", cfg.Session.StrictWorkerPackageCheck)
	v.SetDefault("session.allow_worker_package_download", cfg.Session.AllowWorkerPackageDownload)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if explicit || !(errors.As(err, &notFound) || errors.Is(err, os.ErrNotExist)) {
			return Config{}, fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decoding config %s: %w", path, err)
	}

	if cfg.Concurrency < 1 {
		return Config{}, fmt.Errorf("concurrency must be at least 1, got %d", cfg.Concurrency)
	}

	return cfg, nil
}
