package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"leadgen-engine/internal/config"
)

// defaultConfigPath is the shipped config seeded into a fresh data dir.
const defaultConfigPath = "config/config.yml"

// loadConfig resolves the data dir and config file, layers env over the
// file, and validates the result. Warnings are returned for logging once
// a logger exists.
func loadConfig() (cfg config.Config, path string, warnings []string, err error) {
	if err := config.LoadDotEnv(envFile); err != nil {
		return cfg, "", nil, err
	}

	dir := dataDir
	if dir == "" {
		dir = os.Getenv("LEADGEN_DATA_DIR")
	}
	if dir == "" {
		dir = config.DefaultDataDir()
	}

	path = cfgFile
	if path == "" {
		path, err = config.EnsureUserConfig(dir, defaultConfigPath)
		if err != nil {
			// Running outside the repo: no shipped config to seed from.
			if !errors.Is(err, os.ErrNotExist) {
				return cfg, "", nil, fmt.Errorf("config bootstrap: %w", err)
			}
			path = filepath.Join(dir, "config.yml")
		}
	}

	cfg, err = config.Load(path)
	if err != nil {
		return cfg, path, nil, err
	}
	if err := config.ApplyEnv(&cfg); err != nil {
		return cfg, path, nil, err
	}
	if cfg.App.DataDir == "" {
		cfg.App.DataDir = dir
	}
	if cfg.SendersFile != "" && !filepath.IsAbs(cfg.SendersFile) {
		cfg.SendersFile = filepath.Join(cfg.App.DataDir, cfg.SendersFile)
	}

	cfg, res := config.NormalizeAndValidate(cfg)
	if !res.OK() {
		return cfg, path, res.Warnings, res.Err()
	}
	return cfg, path, res.Warnings, nil
}

func validateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check the configuration and print every problem found",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, path, warnings, err := loadConfig()
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "config: %s\nbackend: %s\n", path, cfg.App.Backend)
			for _, w := range warnings {
				fmt.Fprintf(out, "warning: %s\n", w)
			}
			if err != nil {
				return err
			}
			fmt.Fprintln(out, "ok")
			return nil
		},
	}
}
