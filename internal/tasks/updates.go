package tasks

import (
	"fmt"
)

// ProgressUpdate represents a progress event during a long-running task.
//
// Used to send real-time updates to the CLI or UI layer for display.
type ProgressUpdate struct {
	Phase   Phase  // Task phase
	Step    int    // Current step number within phase
	Total   int    // Total steps in this phase
	Message string // Human-readable message for display
	Data    any    // Optional phase-specific data for advanced UIs
}

// Phase identifies the task emitting a [ProgressUpdate].
type Phase int

const (
	ScrapePlaylists Phase = iota
	InitiateSearches
	PollSearches
	SyncDownloads
	MarkUpgrades
	ProcessUpgrades
	ExportLibrary
	RemuxFiles
)

func (p Phase) String() string {
	switch p {
	case ScrapePlaylists:
		return "scrape_playlists"
	case InitiateSearches:
		return "initiate_searches"
	case PollSearches:
		return "poll_search_results"
	case SyncDownloads:
		return "sync_download_status"
	case MarkUpgrades:
		return "mark_quality_upgrades"
	case ProcessUpgrades:
		return "process_upgrades"
	case ExportLibrary:
		return "export_library"
	case RemuxFiles:
		return "remux_existing_files"
	default:
		return ""
	}
}

// sendProgress sends a progress update through the channel without blocking.
func sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
	}
}

func readingSourcesUpdate(path string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ScrapePlaylists,
		Step:    0,
		Total:   1,
		Message: fmt.Sprintf("Reading playlist sources from %s...", path),
	}
}

func scrapedPlaylistUpdate(step, total int, res PlaylistResult) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ScrapePlaylists,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] ✓ %s (%d tracks)", step, total, res.Name, res.Tracks),
		Data:    res,
	}
}

func scrapeFailedUpdate(step, total int, res PlaylistResult) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ScrapePlaylists,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] ✗ %s: %v", step, total, res.URL, res.Error),
		Data:    res,
	}
}

func waitingForSlskdUpdate(phase Phase) ProgressUpdate {
	return ProgressUpdate{
		Phase:   phase,
		Total:   1,
		Message: "Waiting for slskd to log in...",
	}
}

func taskDoneUpdate(phase Phase, processed int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   phase,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("%s: %d tracks processed", phase, processed),
		Data:    processed,
	}
}

func exportedLibraryUpdate(path string, tracks, playlists int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ExportLibrary,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Exported %d tracks in %d playlists to %s", tracks, playlists, path),
		Data:    path,
	}
}
