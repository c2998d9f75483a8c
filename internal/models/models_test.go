package models

import (
	"encoding/json"
	"testing"
	"time"
)

func TestDownloadStatus(t *testing.T) {
	t.Run("ParseStatus known tokens", func(t *testing.T) {
		for _, s := range []DownloadStatus{
			StatusPending, StatusNew, StatusSearching, StatusNotFound, StatusNoSuitableFile,
			StatusFailed, StatusDownloading, StatusQueued, StatusRequested, StatusInProgress,
			StatusCompleted, StatusRedownloadPending,
		} {
			got := ParseStatus(s.String())
			if got != s {
				t.Errorf("ParseStatus(%q) = %v, want %v", s.String(), got, s)
			}
			if !got.Known() {
				t.Errorf("expected %q to be known", s.String())
			}
		}
	})

	t.Run("ParseStatus keeps unknown tokens", func(t *testing.T) {
		got := ParseStatus("initializing")
		if got.Known() {
			t.Error("expected unknown status")
		}
		if got.String() != "initializing" {
			t.Errorf("expected raw token to be preserved, got %q", got.String())
		}
		if got != UnknownStatus("initializing") {
			t.Error("expected equality with UnknownStatus")
		}
	})

	t.Run("SkipsDownload", func(t *testing.T) {
		tc := []struct {
			status DownloadStatus
			want   bool
		}{
			{StatusCompleted, true},
			{StatusQueued, true},
			{StatusDownloading, true},
			{StatusRequested, true},
			{StatusInProgress, true},
			{StatusPending, false},
			{StatusFailed, false},
			{StatusRedownloadPending, false},
			{UnknownStatus("weird"), false},
		}
		for _, tt := range tc {
			if got := tt.status.SkipsDownload(); got != tt.want {
				t.Errorf("%s.SkipsDownload() = %v, want %v", tt.status, got, tt.want)
			}
		}
	})

	t.Run("RemoteStatus", func(t *testing.T) {
		tc := []struct {
			state string
			want  string
		}{
			{"Queued, Locally", "queued_locally"},
			{"Initializing", "initializing"},
			{"InProgress", "inprogress"},
		}
		for _, tt := range tc {
			if got := RemoteStatus(tt.state).String(); got != tt.want {
				t.Errorf("RemoteStatus(%q) = %q, want %q", tt.state, got, tt.want)
			}
		}
		if !RemoteStatus("InProgress").Known() {
			t.Error("expected inprogress to map to a known status")
		}
	})

	t.Run("JSON", func(t *testing.T) {
		b, err := json.Marshal(Track{ID: "1", Status: StatusRedownloadPending})
		if err != nil {
			t.Fatalf("failed to marshal: %v", err)
		}

		var decoded map[string]any
		if err := json.Unmarshal(b, &decoded); err != nil {
			t.Fatalf("failed to unmarshal: %v", err)
		}
		if decoded["status"] != "redownload_pending" {
			t.Errorf("expected status token, got %v", decoded["status"])
		}
	})
}

func TestTaskRun(t *testing.T) {
	start := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

	t.Run("Duration while running", func(t *testing.T) {
		run := TaskRun{StartedAt: start, Status: RunRunning}
		if run.Duration() != 0 {
			t.Errorf("expected zero duration, got %v", run.Duration())
		}
	})

	t.Run("Duration sealed", func(t *testing.T) {
		end := start.Add(90 * time.Second)
		run := TaskRun{StartedAt: start, CompletedAt: &end, Status: RunCompleted}
		if run.Duration() != 90*time.Second {
			t.Errorf("expected 90s, got %v", run.Duration())
		}
	})
}
