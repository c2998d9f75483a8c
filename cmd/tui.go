package main

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/spotiseek/internal/shared"
	"github.com/desertthunder/spotiseek/internal/tasks"
	"github.com/desertthunder/spotiseek/internal/ui"
	"github.com/urfave/cli/v3"
)

// Dashboard launches the interactive task dashboard.
func (r *Runner) Dashboard(ctx context.Context, cmd *cli.Command) error {
	// Redirect logs to file to avoid interfering with TUI rendering
	fileLogger, err := shared.NewFileLogger(cmd.String("log-file"))
	if err != nil {
		return fmt.Errorf("failed to create file logger: %w", err)
	}
	r.SetLogger(fileLogger)

	if err := r.open(ctx); err != nil {
		return err
	}

	progress := make(chan tasks.ProgressUpdate, 50)
	r.pipeline.Progress = progress

	model := ui.NewModel(ctx, r.registry, progress)
	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("error running TUI: %w", err)
	}

	return nil
}
