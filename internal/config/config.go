// Package config loads ctsmirror's YAML configuration with environment overrides.
package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/go-faster/errors"
	"gopkg.in/yaml.v3"
)

type RequestMetadata struct {
	UserID    string `yaml:"user_id" env:"CTS_USER_ID"`
	SessionID string `yaml:"session_id" env:"CTS_SESSION_ID"`
	Domain    string `yaml:"domain" env:"CTS_DOMAIN"`
}

type Config struct {
	App struct {
		DataDir  string `yaml:"data_dir" env:"CTS_DATA_DIR"`
		LogLevel string `yaml:"log_level" env:"LOG_LEVEL"`
		Port     int    `yaml:"port" env:"CTS_PORT"`
	} `yaml:"app"`

	Project struct {
		ID              string          `yaml:"id" env:"CTS_PROJECT_ID"`
		TenantID        string          `yaml:"tenant_id" env:"CTS_TENANT_ID"`
		DefaultLanguage string          `yaml:"default_language" env:"CTS_DEFAULT_LANGUAGE"`
		CredentialsFile string          `yaml:"credentials_file" env:"CTS_CREDENTIALS_FILE"`
		KeyringAccount  string          `yaml:"keyring_account" env:"CTS_KEYRING_ACCOUNT"`
		RequestMetadata RequestMetadata `yaml:"request_metadata"`
	} `yaml:"project"`

	Database struct {
		File string `yaml:"file" env:"CTS_DB_FILE"`
	} `yaml:"database"`

	Batch struct {
		Size              int           `yaml:"size" env:"CTS_BATCH_SIZE"`
		ConcurrentBatches int           `yaml:"concurrent_batches" env:"CTS_CONCURRENT_BATCHES"`
		APIQPSLimit       float64       `yaml:"api_qps_limit" env:"CTS_API_QPS_LIMIT"`
		PollInterval      time.Duration `yaml:"poll_interval" env:"CTS_POLL_INTERVAL"`
		MaxPollWait       time.Duration `yaml:"max_poll_wait" env:"CTS_MAX_POLL_WAIT"`
	} `yaml:"batch"`

	Sync struct {
		AuditInterval time.Duration `yaml:"audit_interval" env:"CTS_AUDIT_INTERVAL"`
		PruneMissing  bool          `yaml:"prune_missing" env:"CTS_PRUNE_MISSING"`
	} `yaml:"sync"`
}

func Default() Config {
	var cfg Config
	cfg.App.LogLevel = "info"
	cfg.App.Port = 38471
	cfg.Project.DefaultLanguage = "en"
	cfg.Project.KeyringAccount = "service-account"
	cfg.Batch.Size = 200
	cfg.Batch.ConcurrentBatches = 1
	cfg.Batch.APIQPSLimit = 10
	cfg.Batch.PollInterval = 2 * time.Second
	cfg.Batch.MaxPollWait = 10 * time.Minute
	cfg.Sync.AuditInterval = 6 * time.Hour
	return cfg
}

// DefaultDataDir is the per-user directory holding config.yml and the mirror database.
func DefaultDataDir() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ".ctsmirror"
	}
	return filepath.Join(dir, "ctsmirror")
}

// Load reads path over the defaults, then applies environment overrides.
// A missing file is not an error: defaults and environment still apply.
func Load(path string) (Config, error) {
	cfg := Default()
	b, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return cfg, err
	default:
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return cfg, errors.Wrapf(err, "parse %s", path)
		}
	}
	if err := ApplyEnv(&cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// DBPath is database.file, relative paths resolved against app.data_dir.
func (c Config) DBPath() string {
	f := c.Database.File
	if f == "" {
		f = "mirror.db"
	}
	if filepath.IsAbs(f) || c.App.DataDir == "" {
		return f
	}
	return filepath.Join(c.App.DataDir, f)
}
