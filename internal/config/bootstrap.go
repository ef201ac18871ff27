package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// DefaultDataDir is used when neither config nor LEADGEN_DATA_DIR name one.
func DefaultDataDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "leadgen")
	}
	return ".leadgen"
}

// EnsureUserConfig makes sure dataDir/config.yml exists, seeding it from
// defaultPath on first start, and returns its path.
func EnsureUserConfig(dataDir string, defaultPath string) (string, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return "", fmt.Errorf("create data dir: %w", err)
	}
	userPath := filepath.Join(dataDir, "config.yml")

	_, err := os.Stat(userPath)
	if err == nil {
		return userPath, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return "", err
	}

	src, err := os.Open(defaultPath)
	if err != nil {
		return "", fmt.Errorf("open default config: %w", err)
	}
	defer src.Close()

	dst, err := os.Create(userPath)
	if err != nil {
		return "", err
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		return "", err
	}
	return userPath, nil
}
