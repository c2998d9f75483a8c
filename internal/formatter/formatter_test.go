package formatter

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/desertthunder/spotiseek/internal/models"
	"github.com/desertthunder/spotiseek/internal/scheduler"
	"github.com/desertthunder/spotiseek/internal/shared"
)

var now = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func at(d time.Duration) *time.Time {
	t := now.Add(d)
	return &t
}

func sampleTasks() []scheduler.TaskInfo {
	return []scheduler.TaskInfo{
		{
			Name:            "sync_download_status",
			IntervalMinutes: 5,
			Enabled:         true,
			LastRunAt:       at(-3 * time.Minute),
			LastStatus:      models.RunCompleted,
			NextRunAt:       at(2 * time.Minute),
		},
		{
			Name:            "export_library",
			IntervalMinutes: 1440,
			Dependencies:    []string{"sync_download_status"},
			Enabled:         false,
		},
		{
			Name:            "remux_existing_files",
			IntervalMinutes: 360,
			Dependencies:    []string{"sync_download_status"},
			Enabled:         true,
			Running:         true,
			LastStatus:      models.RunFailed,
		},
	}
}

func TestTaskOutput(t *testing.T) {
	t.Run("TaskTable", func(t *testing.T) {
		output := TaskTable(sampleTasks(), now)

		for _, want := range []string{
			"Task", "Next Run",
			"sync_download_status", "5m", "completed", "3m00s ago", "in 2m00s",
			"export_library", "1440m", "disabled", "never",
			"remux_existing_files", "running",
		} {
			if !strings.Contains(output, want) {
				t.Errorf("table missing %q:\n%s", want, output)
			}
		}
	})

	t.Run("TasksToMarkdown", func(t *testing.T) {
		output := string(TasksToMarkdown(sampleTasks(), now))

		if !strings.HasPrefix(output, "# Tasks\n\n| Task | Interval |") {
			t.Errorf("unexpected markdown header:\n%s", output)
		}
		if !strings.Contains(output, "| export_library | 1440m | sync_download_status | disabled | never | never | never |") {
			t.Errorf("markdown missing export_library row:\n%s", output)
		}
		if strings.Count(output, "\n") != 7 {
			t.Errorf("expected title, header, separator and 3 rows, got:\n%s", output)
		}
	})

	t.Run("JSON", func(t *testing.T) {
		data, err := ToJSON(sampleTasks(), true)
		if err != nil {
			t.Fatalf("ToJSON failed: %v", err)
		}
		var decoded []map[string]any
		if err := json.Unmarshal(data, &decoded); err != nil {
			t.Fatalf("invalid JSON: %v", err)
		}
		if len(decoded) != 3 || decoded[0]["name"] != "sync_download_status" {
			t.Errorf("unexpected JSON: %s", data)
		}
		if _, ok := decoded[1]["last_run_at"]; ok {
			t.Error("expected nil last_run_at to be omitted")
		}
	})
}

func TestRunOutput(t *testing.T) {
	completed := now.Add(90 * time.Second)
	runs := []*models.TaskRun{
		{ID: 2, TaskName: "scrape_playlists", StartedAt: now, CompletedAt: &completed, Status: models.RunCompleted, TracksProcessed: 12},
		{ID: 1, TaskName: "sync_download_status", StartedAt: now, CompletedAt: &completed, Status: models.RunFailed, ErrorMessage: "slskd | unavailable"},
		{ID: 3, TaskName: "export_library", StartedAt: now, Status: models.RunRunning},
	}

	t.Run("RunHistory", func(t *testing.T) {
		output := RunHistory(runs)
		for _, want := range []string{"scrape_playlists", "1m30s", "12", "failed", "slskd | unavailable", "running"} {
			if !strings.Contains(output, want) {
				t.Errorf("history missing %q:\n%s", want, output)
			}
		}
	})

	t.Run("empty history", func(t *testing.T) {
		if output := RunHistory(nil); !strings.Contains(output, "No runs recorded") {
			t.Errorf("unexpected output %q", output)
		}
	})

	t.Run("RunsToMarkdown escapes pipes", func(t *testing.T) {
		output := string(RunsToMarkdown(runs))
		if !strings.Contains(output, `slskd \| unavailable`) {
			t.Errorf("expected escaped pipe:\n%s", output)
		}
		if !strings.Contains(output, "| 3 | export_library |") || !strings.Contains(output, "| - | running |") {
			t.Errorf("expected running row without duration:\n%s", output)
		}
	})

	t.Run("Outcomes", func(t *testing.T) {
		output := Outcomes([]scheduler.Outcome{
			{Name: "a", OK: true, Message: "Task a completed successfully"},
			{Name: "b", Message: "Task b failed: boom"},
		})
		lines := strings.Split(strings.TrimSpace(output), "\n")
		if len(lines) != 2 {
			t.Fatalf("expected 2 lines, got %q", output)
		}
		if !strings.Contains(lines[0], "✓") || !strings.Contains(lines[1], "✗ Task b failed: boom") {
			t.Errorf("unexpected outcomes %q", output)
		}
	})
}

func TestStats(t *testing.T) {
	counts := map[string]int{"completed": 4, "pending": 4, "failed": 1}

	sorted := SortCounts(counts)
	want := []string{"completed", "pending", "failed"}
	for i, c := range sorted {
		if c.Status != want[i] {
			t.Errorf("position %d: expected %s, got %s", i, want[i], c.Status)
		}
	}

	output := Stats(counts)
	if !strings.Contains(output, "total") || !strings.Contains(output, "9") {
		t.Errorf("expected total row:\n%s", output)
	}
}

func TestHelpers(t *testing.T) {
	t.Run("FormatDuration", func(t *testing.T) {
		tests := []struct {
			in   time.Duration
			want string
		}{
			{1500 * time.Millisecond, "2s"},
			{75 * time.Second, "1m15s"},
			{3*time.Hour + 5*time.Minute, "3h05m"},
			{50 * time.Hour, "2d02h"},
		}
		for _, tt := range tests {
			if got := FormatDuration(tt.in); got != tt.want {
				t.Errorf("FormatDuration(%v) = %q, want %q", tt.in, got, tt.want)
			}
		}
	})

	t.Run("RelativeTime", func(t *testing.T) {
		tests := []struct {
			in   *time.Time
			want string
		}{
			{nil, "never"},
			{at(10 * time.Second), "now"},
			{at(time.Hour), "in 1h00m"},
			{at(-2 * time.Hour), "2h00m ago"},
		}
		for _, tt := range tests {
			if got := RelativeTime(tt.in, now); got != tt.want {
				t.Errorf("RelativeTime = %q, want %q", got, tt.want)
			}
		}
	})

	t.Run("ParseFormat", func(t *testing.T) {
		tests := map[string]Format{"": FormatText, "table": FormatText, "MD": FormatMarkdown, "json": FormatJSON}
		for in, want := range tests {
			got, err := ParseFormat(in)
			if err != nil || got != want {
				t.Errorf("ParseFormat(%q) = %q, %v", in, got, err)
			}
		}
		if _, err := ParseFormat("xml"); !errors.Is(err, shared.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument, got %v", err)
		}
	})
}
