package config

import (
	"os"
	"path/filepath"

	"github.com/go-faster/errors"
)

// EnsureUserConfig returns dataDir/config.yml, writing the defaults there first if it does not exist.
func EnsureUserConfig(dataDir string) (string, error) {
	userPath := filepath.Join(dataDir, "config.yml")

	_, err := os.Stat(userPath)
	if err == nil {
		return userPath, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return "", err
	}

	cfg := Default()
	cfg.App.DataDir = dataDir
	if err := write(userPath, cfg); err != nil {
		return "", err
	}
	return userPath, nil
}
