package tasks

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/spotiseek/internal/downloads"
	"github.com/desertthunder/spotiseek/internal/scheduler"
	"github.com/desertthunder/spotiseek/internal/services"
	"github.com/desertthunder/spotiseek/internal/shared"
)

// Task names.
const (
	TaskScrapePlaylists     = "scrape_playlists"
	TaskInitiateSearches    = "initiate_searches"
	TaskPollSearchResults   = "poll_search_results"
	TaskSyncDownloadStatus  = "sync_download_status"
	TaskMarkQualityUpgrades = "mark_quality_upgrades"
	TaskProcessUpgrades     = "process_upgrades"
	TaskExportLibrary       = "export_library"
	TaskRemuxExistingFiles  = "remux_existing_files"
)

// PlaylistScraper reads a playlist from its platform. [services.Dispatcher] implements it.
type PlaylistScraper interface {
	Scrape(ctx context.Context, playlistURL string) (*services.ScrapedPlaylist, error)
}

var _ PlaylistScraper = (*services.Dispatcher)(nil)

// Pipeline holds what the eight tasks need.
type Pipeline struct {
	Downloads *downloads.Orchestrator
	Scraper   PlaylistScraper
	Config    *shared.Config

	// Progress receives non-blocking updates while tasks run. It may be nil.
	Progress chan<- ProgressUpdate

	logger *log.Logger
}

// NewPipeline creates a pipeline. scraper may be nil when no platform is configured,
// in which case scrape_playlists fails.
func NewPipeline(orchestrator *downloads.Orchestrator, scraper PlaylistScraper, cfg *shared.Config, logger *log.Logger) *Pipeline {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &Pipeline{
		Downloads: orchestrator,
		Scraper:   scraper,
		Config:    cfg,
		logger:    shared.WithLogger(logger, "component", "pipeline"),
	}
}

// Definitions returns the pipeline's tasks in a fixed order.
func (p *Pipeline) Definitions() []scheduler.Definition {
	return []scheduler.Definition{
		{
			Name:            TaskScrapePlaylists,
			DisplayName:     "Scrape Playlists",
			Description:     "Read playlist sources, scrape each playlist and record its tracks",
			Func:            p.ScrapePlaylists,
			DefaultInterval: 1440,
		},
		{
			Name:            TaskInitiateSearches,
			DisplayName:     "Initiate Soulseek Searches",
			Description:     "Start a search for every track that still needs a file",
			Func:            p.slskd(InitiateSearches, p.Downloads.InitiateSearches),
			DefaultInterval: 60,
			Dependencies:    []string{TaskScrapePlaylists},
		},
		{
			Name:            TaskPollSearchResults,
			DisplayName:     "Poll Search Results",
			Description:     "Check running searches once and enqueue the best file",
			Func:            p.slskd(PollSearches, p.Downloads.ProcessPendingSearches),
			DefaultInterval: 15,
		},
		{
			Name:            TaskSyncDownloadStatus,
			DisplayName:     "Sync Download Status",
			Description:     "Mirror slskd transfer states onto tracks and import finished files",
			Func:            p.slskd(SyncDownloads, p.Downloads.SyncDownloadStatus),
			DefaultInterval: 5,
		},
		{
			Name:            TaskMarkQualityUpgrades,
			DisplayName:     "Check for Quality Upgrades",
			Description:     "Queue completed tracks that are not top quality for redownload",
			Func:            p.local(MarkUpgrades, p.Downloads.MarkQualityUpgrades),
			DefaultInterval: 1440,
			Dependencies:    []string{TaskSyncDownloadStatus},
		},
		{
			Name:            TaskProcessUpgrades,
			DisplayName:     "Process Quality Upgrades",
			Description:     "Search again for queued tracks and enqueue strictly better files",
			Func:            p.slskd(ProcessUpgrades, p.Downloads.ProcessRedownloadQueue),
			DefaultInterval: 60,
			Dependencies:    []string{TaskMarkQualityUpgrades},
		},
		{
			Name:            TaskExportLibrary,
			DisplayName:     "Export iTunes Library",
			Description:     "Write the iTunes library XML for downloaded tracks",
			Func:            p.ExportLibrary,
			DefaultInterval: 1440,
			Dependencies:    []string{TaskSyncDownloadStatus},
		},
		{
			Name:            TaskRemuxExistingFiles,
			DisplayName:     "Remux Existing Files",
			Description:     "Convert completed downloads to wav or mp3 with ffmpeg",
			Func:            p.local(RemuxFiles, p.Downloads.RemuxExisting),
			DefaultInterval: 360,
			Dependencies:    []string{TaskSyncDownloadStatus},
		},
	}
}

// Register adds every pipeline task to registry, enabled, with its TASK_<NAME>_INTERVAL override.
func Register(ctx context.Context, registry *scheduler.Registry, p *Pipeline) error {
	for _, def := range p.Definitions() {
		def.IntervalEnv = shared.TaskIntervalEnv(def.Name)
		def.Enabled = true
		if err := registry.Register(ctx, def); err != nil {
			return fmt.Errorf("failed to register %s: %w", def.Name, err)
		}
	}
	return nil
}

// slskd wraps a step that talks to slskd: it waits for the daemon to log in first and fails
// the run when it does not.
func (p *Pipeline) slskd(phase Phase, step func(context.Context) (int, error)) scheduler.TaskFunc {
	return func(ctx context.Context) (scheduler.Result, error) {
		sendProgress(p.Progress, waitingForSlskdUpdate(phase))
		if !p.Downloads.WaitReady(ctx) {
			return scheduler.Result{}, fmt.Errorf("%w: slskd is not logged in", shared.ErrServiceUnavailable)
		}
		return p.local(phase, step)(ctx)
	}
}

func (p *Pipeline) local(phase Phase, step func(context.Context) (int, error)) scheduler.TaskFunc {
	return func(ctx context.Context) (scheduler.Result, error) {
		n, err := step(ctx)
		if err != nil {
			return scheduler.Result{TracksProcessed: n}, err
		}
		p.logger.Info("task step finished", "phase", phase, "tracks", n)
		sendProgress(p.Progress, taskDoneUpdate(phase, n))
		return scheduler.Result{OK: true, TracksProcessed: n}, nil
	}
}
