package main

import (
	"context"
	"fmt"
	"os"

	"github.com/desertthunder/spotback/internal/shared"
	"github.com/urfave/cli/v3"
)

// Init writes the config template when missing and creates the history database.
func (r *Runner) Init(ctx context.Context, cmd *cli.Command) error {
	configPath := r.configPath

	if _, err := os.Stat(configPath); err == nil {
		r.logger.Info("config file exists, leaving it untouched", "path", configPath)
	} else {
		r.logger.Info("config file not found, creating from template", "path", configPath)
		if err := shared.CreateConfigFile(configPath); err != nil {
			return fmt.Errorf("%w: %w", shared.ErrInvalidConfig, err)
		}
		r.writePlain("✓ Created %s\n", configPath)
	}

	config, err := shared.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("%w: %w", shared.ErrInvalidConfig, err)
	}
	config.ApplyEnv()
	r.config = config
	r.configLoaded = true

	r.logger.Info("initializing database", "path", config.Database.Path)
	db, err := shared.OpenDatabase(config.Database)
	if err != nil {
		return fmt.Errorf("failed to create database: %w", err)
	}
	defer db.Close()

	r.logger.Infof("setup complete for database: %v", config.Database.Path)
	r.writePlain("✓ Database ready at %s\n", config.Database.Path)

	if err := config.Validate(); err != nil {
		r.writePlainln("⚠ %v", err)
		r.writePlain("Fill in your Spotify app credentials in %s, then run `spotback auth`.\n", configPath)
	}
	return nil
}
