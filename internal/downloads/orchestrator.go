package downloads

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/spotiseek/internal/library"
	"github.com/desertthunder/spotiseek/internal/models"
	"github.com/desertthunder/spotiseek/internal/quality"
	"github.com/desertthunder/spotiseek/internal/repositories"
	"github.com/desertthunder/spotiseek/internal/services"
	"github.com/desertthunder/spotiseek/internal/shared"
)

// Client is the subset of the slskd API the orchestrator needs.
//
// [services.SlskdClient] implements it.
type Client interface {
	WaitReady(ctx context.Context, maxWait, poll time.Duration) bool
	CreateSearch(ctx context.Context, searchText string) (string, error)
	CheckSearch(ctx context.Context, searchID string) (bool, []models.SearchResponse, error)
	PollSearch(ctx context.Context, searchID string, attempts int, interval time.Duration) ([]models.SearchResponse, error)
	Enqueue(ctx context.Context, username string, file models.CandidateFile) (string, error)
	Downloads(ctx context.Context) ([]services.UserTransfers, error)
	RemoveDownload(ctx context.Context, username, id string) error
}

var _ Client = (*services.SlskdClient)(nil)

// Orchestrator runs searches, selection and enqueueing for tracks and imports finished downloads.
type Orchestrator struct {
	client    Client
	Tracks    *repositories.TrackRepository
	Playlists *repositories.PlaylistRepository
	Blacklist *repositories.BlacklistRepository
	Selector  *quality.Selector
	Remuxer   *library.Remuxer

	downloadsRoot string
	m3u8Dir       string
	pollAttempts  int
	pollInterval  time.Duration
	readyWait     time.Duration
	logger        *log.Logger
}

// NewOrchestrator wires an orchestrator to the slskd client and the track store in db.
func NewOrchestrator(client Client, db *sql.DB, cfg *shared.Config, logger *log.Logger) *Orchestrator {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	logger = shared.WithLogger(logger, "component", "downloads")
	blacklist := repositories.NewBlacklistRepository(db)

	attempts := cfg.Slskd.SearchPollAttempts
	if attempts <= 0 {
		attempts = 100
	}

	return &Orchestrator{
		client:        client,
		Tracks:        repositories.NewTrackRepository(db),
		Playlists:     repositories.NewPlaylistRepository(db),
		Blacklist:     blacklist,
		Selector:      quality.NewSelector(blacklist, cfg.Quality.Strict, logger),
		Remuxer:       library.NewRemuxer(cfg.Paths.FFmpeg, logger),
		downloadsRoot: cfg.Paths.DownloadsRoot,
		m3u8Dir:       cfg.Paths.M3U8Dir,
		pollAttempts:  attempts,
		pollInterval:  cfg.Slskd.PollInterval(),
		readyWait:     cfg.Slskd.ReadyWait(),
		logger:        logger,
	}
}

// WaitReady blocks until slskd is logged in to the network or the configured wait elapses.
func (o *Orchestrator) WaitReady(ctx context.Context) bool {
	return o.client.WaitReady(ctx, o.readyWait, 2*time.Second)
}

// Outcome describes what happened to one track.
type Outcome struct {
	TrackID string
	Status  models.DownloadStatus
	Skipped bool
	Reason  string
}

// DownloadTrack searches for artist and title, picks the best file and enqueues it.
//
// Tracks already completed, queued or downloading are skipped, except completed tracks
// below top quality which are parked in redownload_pending instead. Network failures are
// recorded on the track and reported in the outcome; the returned error is reserved for
// store failures.
func (o *Orchestrator) DownloadTrack(ctx context.Context, artist, title, trackID string) (Outcome, error) {
	if trackID == "" {
		return Outcome{}, fmt.Errorf("%w: track id", shared.ErrMissingArgument)
	}
	logger := shared.WithLogger(o.logger, "track", trackID)

	if err := o.Tracks.AddTrack(ctx, trackID, title, artist, models.SourceManual); err != nil {
		return Outcome{}, err
	}

	status, _, err := o.Tracks.GetTrackStatus(ctx, trackID)
	if err != nil {
		return Outcome{}, err
	}

	if status.SkipsDownload() {
		if status == models.StatusCompleted {
			ext, err := o.Tracks.GetTrackExtension(ctx, trackID)
			if err != nil {
				return Outcome{}, err
			}
			if !quality.IsTopQuality(ext) {
				logger.Info("queueing quality upgrade", "extension", ext)
				return o.setStatus(ctx, trackID, models.StatusRedownloadPending, "")
			}
		}
		logger.Debug("skipping track", "status", status)
		return Outcome{TrackID: trackID, Status: status, Skipped: true}, nil
	}

	if err := o.Tracks.SetTrackStatus(ctx, trackID, models.StatusSearching, ""); err != nil {
		return Outcome{}, err
	}

	searchText := artist + " " + title
	searchID, err := o.client.CreateSearch(ctx, searchText)
	if err != nil {
		logger.Error("search failed", "err", err)
		return o.setStatus(ctx, trackID, models.StatusFailed, err.Error())
	}
	if err := o.Tracks.SetSearchUUID(ctx, trackID, searchID); err != nil {
		return Outcome{}, err
	}

	responses, err := o.client.PollSearch(ctx, searchID, o.pollAttempts, o.pollInterval)
	if err != nil {
		logger.Error("polling search failed", "search_id", searchID, "err", err)
		return o.setStatus(ctx, trackID, models.StatusFailed, err.Error())
	}
	if len(responses) == 0 {
		logger.Info("no search responses", "search_id", searchID)
		return o.setStatus(ctx, trackID, models.StatusNotFound, "")
	}
	if countFiles(responses) == 0 {
		return o.setStatus(ctx, trackID, models.StatusFailed, "no files in search responses")
	}

	candidate, ok := o.Selector.SelectBestFile(ctx, responses, searchText)
	if !ok {
		logger.Info("no suitable file", "responses", len(responses))
		return o.setStatus(ctx, trackID, models.StatusFailed, "no suitable file")
	}
	return o.enqueue(ctx, trackID, candidate)
}

// enqueue downloads candidate for trackID and records the correlation ids and file quality.
func (o *Orchestrator) enqueue(ctx context.Context, trackID string, candidate quality.Candidate) (Outcome, error) {
	downloadID, err := o.client.Enqueue(ctx, candidate.Username, candidate.File)
	if err != nil {
		o.logger.Error("enqueue failed", "track", trackID, "username", candidate.Username, "err", err)
		return o.setStatus(ctx, trackID, models.StatusFailed, err.Error())
	}

	if err := o.Tracks.SetDownloadCorrelation(ctx, trackID, downloadID, candidate.Username); err != nil {
		return Outcome{}, err
	}
	if err := o.Tracks.SetTrackStatus(ctx, trackID, models.StatusDownloading, ""); err != nil {
		return Outcome{}, err
	}
	if err := o.Tracks.SetRemoteFileName(ctx, trackID, candidate.File.Filename); err != nil {
		return Outcome{}, err
	}
	ext, bitrate := quality.ExtractQuality(candidate.File)
	if err := o.Tracks.SetExtensionAndBitrate(ctx, trackID, ext, bitrate); err != nil {
		return Outcome{}, err
	}

	o.logger.Info("download enqueued", "track", trackID, "username", candidate.Username,
		"file", candidate.File.Filename, "extension", ext, "download_id", downloadID)
	return Outcome{TrackID: trackID, Status: models.StatusDownloading}, nil
}

func (o *Orchestrator) setStatus(ctx context.Context, trackID string, status models.DownloadStatus, reason string) (Outcome, error) {
	if err := o.Tracks.SetTrackStatus(ctx, trackID, status, reason); err != nil {
		return Outcome{}, err
	}
	return Outcome{TrackID: trackID, Status: status, Reason: reason}, nil
}

func countFiles(responses []models.SearchResponse) int {
	n := 0
	for _, r := range responses {
		n += len(r.Files)
	}
	return n
}
