package main

import (
	"context"
	"fmt"
	"time"

	"github.com/desertthunder/spotiseek/internal/formatter"
	"github.com/desertthunder/spotiseek/internal/models"
	"github.com/desertthunder/spotiseek/internal/shared"
	"github.com/urfave/cli/v3"
)

func outputFormat(cmd *cli.Command) (formatter.Format, error) {
	if cmd.Bool("json") {
		return formatter.FormatJSON, nil
	}
	return formatter.ParseFormat(cmd.String("format"))
}

func requireArg(cmd *cli.Command, name string) (string, error) {
	v := cmd.StringArg(name)
	if v == "" {
		return "", fmt.Errorf("%w: %s", shared.ErrMissingArgument, name)
	}
	return v, nil
}

// TasksList prints every registered task with its state.
func (r *Runner) TasksList(ctx context.Context, cmd *cli.Command) error {
	format, err := outputFormat(cmd)
	if err != nil {
		return err
	}
	if err := r.open(ctx); err != nil {
		return err
	}

	infos, err := r.registry.States(ctx)
	if err != nil {
		return err
	}

	switch format {
	case formatter.FormatJSON:
		return r.writeJSON(infos, cmd.Bool("pretty"))
	case formatter.FormatMarkdown:
		return r.writePlain("%s", formatter.TasksToMarkdown(infos, time.Now()))
	default:
		return r.writePlain("%s\n", formatter.TaskTable(infos, time.Now()))
	}
}

// TasksRun force-runs one task and exits 1 when it does not complete.
func (r *Runner) TasksRun(ctx context.Context, cmd *cli.Command) error {
	name, err := requireArg(cmd, "name")
	if err != nil {
		return err
	}
	if err := r.open(ctx); err != nil {
		return err
	}

	ok, message := r.registry.Run(ctx, name, true)
	if !ok {
		if err := r.writePlain("✗ %s\n", message); err != nil {
			r.logger.Error("failed to report task failure", "task", name, "err", err)
		}
		return cli.Exit("", 1)
	}
	return r.writePlain("✓ %s\n", message)
}

// TasksRunAll force-runs every enabled task and exits 1 unless all of them completed.
func (r *Runner) TasksRunAll(ctx context.Context, cmd *cli.Command) error {
	if err := r.open(ctx); err != nil {
		return err
	}

	outcomes := r.registry.RunAll(ctx)
	failed := 0
	for _, o := range outcomes {
		if !o.OK {
			failed++
		}
	}

	if cmd.Bool("json") {
		if err := r.writeJSON(outcomes, true); err != nil {
			return err
		}
	} else {
		r.writePlain("%s", formatter.Outcomes(outcomes))
		r.writePlainln("%d/%d tasks completed", len(outcomes)-failed, len(outcomes))
	}

	if failed > 0 {
		return cli.Exit("", 1)
	}
	return nil
}

// TasksHistory prints the most recent runs of one task, or of every task without a name.
func (r *Runner) TasksHistory(ctx context.Context, cmd *cli.Command) error {
	format, err := outputFormat(cmd)
	if err != nil {
		return err
	}
	if err := r.open(ctx); err != nil {
		return err
	}

	var runs []*models.TaskRun
	if name := cmd.StringArg("name"); name != "" {
		runs, err = r.registry.History(ctx, name, cmd.Int("limit"))
	} else {
		runs, err = r.registry.RecentRuns(ctx, cmd.Int("limit"))
	}
	if err != nil {
		return err
	}

	switch format {
	case formatter.FormatJSON:
		if runs == nil {
			runs = []*models.TaskRun{}
		}
		return r.writeJSON(runs, cmd.Bool("pretty"))
	case formatter.FormatMarkdown:
		return r.writePlain("%s", formatter.RunsToMarkdown(runs))
	default:
		return r.writePlain("%s\n", formatter.RunHistory(runs))
	}
}

// TasksEnable enables a task.
func (r *Runner) TasksEnable(ctx context.Context, cmd *cli.Command) error {
	return r.setEnabled(ctx, cmd, true)
}

// TasksDisable disables a task.
func (r *Runner) TasksDisable(ctx context.Context, cmd *cli.Command) error {
	return r.setEnabled(ctx, cmd, false)
}

func (r *Runner) setEnabled(ctx context.Context, cmd *cli.Command, enabled bool) error {
	name, err := requireArg(cmd, "name")
	if err != nil {
		return err
	}
	if err := r.open(ctx); err != nil {
		return err
	}
	if err := r.registry.SetEnabled(ctx, name, enabled); err != nil {
		return err
	}

	state := "disabled"
	if enabled {
		state = "enabled"
	}
	return r.writePlain("Task %s %s\n", name, state)
}
