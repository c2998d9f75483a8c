package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/list"
	"github.com/desertthunder/spotiseek/internal/formatter"
	"github.com/desertthunder/spotiseek/internal/models"
	"github.com/desertthunder/spotiseek/internal/scheduler"
)

var (
	_ list.Item = taskItem{}
	_ list.Item = runItem{}
)

// taskItem wraps [scheduler.TaskInfo] to implement [list.Item].
type taskItem struct {
	info scheduler.TaskInfo
	now  time.Time
}

func (i taskItem) FilterValue() string { return i.info.Name }

func (i taskItem) Title() string {
	title := i.info.Name
	switch {
	case i.info.Running:
		title += " " + styles.warn.Render("● running")
	case !i.info.Enabled:
		title += " " + styles.help.Render("(disabled)")
	}
	return title
}

func (i taskItem) Description() string {
	parts := []string{fmt.Sprintf("every %dm", i.info.IntervalMinutes)}
	if i.info.LastStatus != "" {
		parts = append(parts, styles.Status(i.info.LastStatus).Render(string(i.info.LastStatus))+" "+
			formatter.RelativeTime(i.info.LastRunAt, i.now))
	}
	if i.info.Enabled {
		parts = append(parts, "next "+formatter.RelativeTime(i.info.NextRunAt, i.now))
	}
	if len(i.info.Dependencies) > 0 {
		parts = append(parts, "after "+strings.Join(i.info.Dependencies, ", "))
	}
	return strings.Join(parts, " • ")
}

// runItem wraps [models.TaskRun] to implement [list.Item].
type runItem struct {
	run *models.TaskRun
}

func (i runItem) FilterValue() string { return string(i.run.Status) }

func (i runItem) Title() string {
	return fmt.Sprintf("#%d %s %s", i.run.ID,
		i.run.StartedAt.Local().Format("2006-01-02 15:04:05"),
		styles.Status(i.run.Status).Render(string(i.run.Status)))
}

func (i runItem) Description() string {
	if i.run.CompletedAt == nil {
		return "in progress"
	}
	desc := fmt.Sprintf("%s • %d tracks", formatter.FormatDuration(i.run.Duration()), i.run.TracksProcessed)
	if i.run.ErrorMessage != "" {
		desc += " • " + i.run.ErrorMessage
	}
	return desc
}
