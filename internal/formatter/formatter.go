// package formatter renders task tables, run history and track statistics as terminal tables,
// Markdown or JSON.
package formatter

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/desertthunder/spotiseek/internal/models"
	"github.com/desertthunder/spotiseek/internal/scheduler"
	"github.com/desertthunder/spotiseek/internal/shared"
)

// Format is an output format accepted by the CLI.
type Format string

const (
	FormatText     Format = "text"
	FormatMarkdown Format = "markdown"
	FormatJSON     Format = "json"
)

// ParseFormat maps a flag value to a [Format]. Empty means text.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "text", "table":
		return FormatText, nil
	case "markdown", "md":
		return FormatMarkdown, nil
	case "json":
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("%w: unknown format %q", shared.ErrInvalidArgument, s)
	}
}

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7D56F4")).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	okStyle     = cellStyle.Foreground(lipgloss.Color("#04B575"))
	errStyle    = cellStyle.Foreground(lipgloss.Color("#FF0000"))
	mutedStyle  = cellStyle.Foreground(lipgloss.Color("#626262"))
)

func statusStyle(status string) lipgloss.Style {
	switch status {
	case string(models.RunCompleted), "enabled":
		return okStyle
	case string(models.RunFailed):
		return errStyle
	case "", "never", "disabled":
		return mutedStyle
	default:
		return cellStyle
	}
}

func render(headers []string, rows [][]string, statusCol int) string {
	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(mutedStyle).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			if col == statusCol && row >= 0 && row < len(rows) {
				return statusStyle(rows[row][col])
			}
			return cellStyle
		})
	return t.String()
}

// RelativeTime describes t relative to now ("in 5m", "2h ago"). Nil is "never".
func RelativeTime(t *time.Time, now time.Time) string {
	if t == nil {
		return "never"
	}
	d := t.Sub(now)
	if d >= 0 {
		if d < time.Minute {
			return "now"
		}
		return "in " + FormatDuration(d)
	}
	return FormatDuration(-d) + " ago"
}

// FormatDuration prints d in its two largest units, rounded to the second.
func FormatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	switch {
	case d < time.Minute:
		return fmt.Sprintf("%ds", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm%02ds", int(d.Minutes()), int(d.Seconds())%60)
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh%02dm", int(d.Hours()), int(d.Minutes())%60)
	default:
		return fmt.Sprintf("%dd%02dh", int(d.Hours())/24, int(d.Hours())%24)
	}
}

func enabledString(enabled bool) string {
	if enabled {
		return "enabled"
	}
	return "disabled"
}

func lastStatus(info scheduler.TaskInfo) string {
	switch {
	case info.Running:
		return string(models.RunRunning)
	case info.LastStatus == "":
		return "never"
	default:
		return string(info.LastStatus)
	}
}

func dependsOn(deps []string) string {
	if len(deps) == 0 {
		return "-"
	}
	return strings.Join(deps, ", ")
}

func taskRows(tasks []scheduler.TaskInfo, now time.Time) [][]string {
	rows := make([][]string, 0, len(tasks))
	for _, info := range tasks {
		rows = append(rows, []string{
			info.Name,
			strconv.Itoa(info.IntervalMinutes) + "m",
			dependsOn(info.Dependencies),
			enabledString(info.Enabled),
			lastStatus(info),
			RelativeTime(info.LastRunAt, now),
			RelativeTime(info.NextRunAt, now),
		})
	}
	return rows
}

var taskHeaders = []string{"Task", "Interval", "Depends On", "Enabled", "Last Status", "Last Run", "Next Run"}

// TaskTable renders the registered tasks as a terminal table.
func TaskTable(tasks []scheduler.TaskInfo, now time.Time) string {
	return render(taskHeaders, taskRows(tasks, now), 4)
}

// TasksToMarkdown renders the registered tasks as a Markdown table.
func TasksToMarkdown(tasks []scheduler.TaskInfo, now time.Time) []byte {
	var buf bytes.Buffer
	buf.WriteString("# Tasks\n\n")
	writeMarkdownTable(&buf, taskHeaders, taskRows(tasks, now))
	return buf.Bytes()
}

func runRows(runs []*models.TaskRun) [][]string {
	rows := make([][]string, 0, len(runs))
	for _, run := range runs {
		duration := "-"
		if run.CompletedAt != nil {
			duration = FormatDuration(run.Duration())
		}
		rows = append(rows, []string{
			strconv.FormatInt(run.ID, 10),
			run.TaskName,
			run.StartedAt.Local().Format("2006-01-02 15:04:05"),
			duration,
			string(run.Status),
			strconv.Itoa(run.TracksProcessed),
			truncate(run.ErrorMessage, 60),
		})
	}
	return rows
}

var runHeaders = []string{"ID", "Task", "Started", "Duration", "Status", "Tracks", "Error"}

// RunHistory renders task runs, newest first, as a terminal table.
func RunHistory(runs []*models.TaskRun) string {
	if len(runs) == 0 {
		return mutedStyle.Render("No runs recorded") + "\n"
	}
	return render(runHeaders, runRows(runs), 4)
}

// RunsToMarkdown renders task runs as a Markdown table.
func RunsToMarkdown(runs []*models.TaskRun) []byte {
	var buf bytes.Buffer
	buf.WriteString("# Task Runs\n\n")
	writeMarkdownTable(&buf, runHeaders, runRows(runs))
	return buf.Bytes()
}

// StatusCount is the number of tracks in one download status.
type StatusCount struct {
	Status string `json:"status"`
	Count  int    `json:"count"`
}

// SortCounts orders status counts by descending count, then by name.
func SortCounts(counts map[string]int) []StatusCount {
	out := make([]StatusCount, 0, len(counts))
	for status, n := range counts {
		out = append(out, StatusCount{Status: status, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Status < out[j].Status
	})
	return out
}

// Stats renders track counts by download status with a total row.
func Stats(counts map[string]int) string {
	sorted := SortCounts(counts)
	rows := make([][]string, 0, len(sorted)+1)
	total := 0
	for _, c := range sorted {
		rows = append(rows, []string{c.Status, strconv.Itoa(c.Count)})
		total += c.Count
	}
	rows = append(rows, []string{"total", strconv.Itoa(total)})
	return render([]string{"Status", "Tracks"}, rows, 0)
}

// Outcomes renders the result of running several tasks, one line each.
func Outcomes(outcomes []scheduler.Outcome) string {
	var b strings.Builder
	for _, o := range outcomes {
		if o.OK {
			b.WriteString(okStyle.UnsetPadding().Render("✓") + " " + o.Message + "\n")
		} else {
			b.WriteString(errStyle.UnsetPadding().Render("✗") + " " + o.Message + "\n")
		}
	}
	return b.String()
}

// ToJSON marshals data, indented when pretty is set.
func ToJSON(data any, pretty bool) ([]byte, error) {
	var out []byte
	var err error
	if pretty {
		out, err = json.MarshalIndent(data, "", "  ")
	} else {
		out, err = json.Marshal(data)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to marshal JSON: %w", err)
	}
	return out, nil
}

func writeMarkdownTable(buf *bytes.Buffer, headers []string, rows [][]string) {
	buf.WriteString("| " + strings.Join(headers, " | ") + " |\n")
	seps := make([]string, len(headers))
	for i := range seps {
		seps[i] = "---"
	}
	buf.WriteString("| " + strings.Join(seps, " | ") + " |\n")
	for _, row := range rows {
		cells := make([]string, len(row))
		for i, c := range row {
			cells[i] = strings.ReplaceAll(c, "|", `\|`)
		}
		buf.WriteString("| " + strings.Join(cells, " | ") + " |\n")
	}
}

func truncate(s string, n int) string {
	if len([]rune(s)) <= n {
		return s
	}
	return string([]rune(s)[:n-1]) + "…"
}
