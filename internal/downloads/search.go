package downloads

import (
	"context"

	"github.com/desertthunder/spotiseek/internal/models"
	"github.com/desertthunder/spotiseek/internal/quality"
)

// searchableStatuses are picked up by [Orchestrator.InitiateSearches], in this order.
var searchableStatuses = []models.DownloadStatus{
	models.StatusPending,
	models.StatusNew,
	models.StatusNotFound,
	models.StatusNoSuitableFile,
}

// InitiateSearch starts a search for track without waiting for results.
//
// It reports false when the track's status rules out a new search or the search could not
// be created, in which case the track is marked failed.
func (o *Orchestrator) InitiateSearch(ctx context.Context, track *models.Track) (bool, error) {
	status, exists, err := o.Tracks.GetTrackStatus(ctx, track.ID)
	if err != nil {
		return false, err
	}
	if exists && (status.SkipsDownload() || status == models.StatusSearching) {
		o.logger.Debug("search not needed", "track", track.ID, "status", status)
		return false, nil
	}

	searchID, err := o.client.CreateSearch(ctx, track.SearchText())
	if err != nil {
		o.logger.Error("failed to initiate search", "track", track.ID, "err", err)
		_, serr := o.setStatus(ctx, track.ID, models.StatusFailed, err.Error())
		return false, serr
	}

	if err := o.Tracks.SetSearchUUID(ctx, track.ID, searchID); err != nil {
		return false, err
	}
	if err := o.Tracks.SetTrackStatus(ctx, track.ID, models.StatusSearching, ""); err != nil {
		return false, err
	}
	o.logger.Debug("search initiated", "track", track.ID, "search_id", searchID)
	return true, nil
}

// InitiateSearches starts a search for every track waiting for one and returns how many started.
func (o *Orchestrator) InitiateSearches(ctx context.Context) (int, error) {
	var tracks []*models.Track
	for _, status := range searchableStatuses {
		batch, err := o.Tracks.GetTracksByStatus(ctx, status)
		if err != nil {
			return 0, err
		}
		tracks = append(tracks, batch...)
	}

	started := 0
	for _, track := range tracks {
		if err := ctx.Err(); err != nil {
			return started, err
		}
		ok, err := o.InitiateSearch(ctx, track)
		if err != nil {
			return started, err
		}
		if ok {
			started++
		}
	}
	o.logger.Info("searches initiated", "started", started, "candidates", len(tracks))
	return started, nil
}

// ProcessPendingSearches checks every searching track once and enqueues the best file for
// finished searches. It returns the number of tracks whose status changed.
//
// A track that already has a local file is treated as an upgrade search: it returns to
// completed unless the new file beats the stored one.
func (o *Orchestrator) ProcessPendingSearches(ctx context.Context) (int, error) {
	tracks, err := o.Tracks.GetTracksByStatus(ctx, models.StatusSearching)
	if err != nil {
		return 0, err
	}

	processed := 0
	for _, track := range tracks {
		if err := ctx.Err(); err != nil {
			return processed, err
		}
		changed, err := o.processSearch(ctx, track)
		if err != nil {
			return processed, err
		}
		if changed {
			processed++
		}
	}
	o.logger.Info("pending searches processed", "searching", len(tracks), "processed", processed)
	return processed, nil
}

func (o *Orchestrator) processSearch(ctx context.Context, track *models.Track) (bool, error) {
	logger := o.logger.With("track", track.ID)
	if track.SearchUUID == "" {
		logger.Warn("searching track has no search id")
		_, err := o.setStatus(ctx, track.ID, models.StatusPending, "")
		return err == nil, err
	}

	complete, responses, err := o.client.CheckSearch(ctx, track.SearchUUID)
	if err != nil {
		logger.Warn("search check failed", "search_id", track.SearchUUID, "err", err)
		return false, nil
	}
	if !complete {
		return false, nil
	}

	upgrade := track.LocalFilePath != ""
	settle := func(status models.DownloadStatus) (bool, error) {
		if upgrade {
			status = models.StatusCompleted
		}
		_, err := o.setStatus(ctx, track.ID, status, "")
		return err == nil, err
	}

	if len(responses) == 0 {
		logger.Info("search finished without responses", "upgrade", upgrade)
		return settle(models.StatusNotFound)
	}

	candidate, ok := o.Selector.SelectBestFile(ctx, responses, track.SearchText())
	if !ok {
		logger.Info("no suitable file", "responses", len(responses), "upgrade", upgrade)
		return settle(models.StatusNoSuitableFile)
	}

	if upgrade && !quality.IsUpgrade(candidate.File, track.Extension, track.Bitrate) {
		logger.Info("best file is not an upgrade", "file", candidate.File.Filename, "current", track.Extension)
		return settle(models.StatusCompleted)
	}

	_, err = o.enqueue(ctx, track.ID, candidate)
	return err == nil, err
}
