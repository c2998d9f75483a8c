package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/desertthunder/spotiseek/internal/shared"
	"github.com/urfave/cli/v3"
)

// Setup creates the config file when it is missing, then initializes the database and runs
// migrations for the configured environment.
func (r *Runner) Setup(ctx context.Context, cmd *cli.Command) error {
	if r.configPath != "" {
		if _, err := os.Stat(r.configPath); errors.Is(err, fs.ErrNotExist) {
			r.logger.Info("config file not found, creating from template", "path", r.configPath)
			if err := shared.CreateConfigFile(r.configPath); err != nil {
				return err
			}
			r.writePlain("✓ Created %s\n", r.configPath)
		}
	}

	if r.config.App.Env == "" {
		r.writePlain("Set APP_ENV (or app.env in %s) to test, stage or prod, then run setup again.\n", r.configPath)
		return fmt.Errorf("%w: APP_ENV is not set", shared.ErrMissingConfig)
	}

	r.logger.Info("initializing database", "path", r.config.Database.Path)
	if err := r.open(ctx); err != nil {
		return err
	}

	r.writePlainHeader("Setup complete")
	r.writePlain("Environment:   %s\n", r.config.App.Env)
	r.writePlain("Database:      %s\n", r.config.Database.Path)
	r.writePlain("Playlists:     %s\n", r.config.Paths.PlaylistsFile)
	r.writePlain("M3U8 files:    %s\n", r.config.Paths.M3U8Dir)
	r.writePlain("Library XML:   %s\n", r.config.Paths.XMLExportPath())
	r.writePlain("Downloads:     %s\n", r.config.Paths.DownloadsRoot)
	r.writePlain("Tasks:         %d registered\n", len(r.registry.Names()))
	return nil
}
