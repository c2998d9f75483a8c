package downloads

import (
	"context"

	"github.com/desertthunder/spotiseek/internal/models"
	"github.com/desertthunder/spotiseek/internal/quality"
)

// MarkQualityUpgrades moves every completed track below top quality (or of unknown
// extension) to redownload_pending and returns how many were moved.
func (o *Orchestrator) MarkQualityUpgrades(ctx context.Context) (int, error) {
	tracks, err := o.Tracks.GetTracksByStatus(ctx, models.StatusCompleted)
	if err != nil {
		return 0, err
	}

	marked := 0
	for _, track := range tracks {
		if quality.IsTopQuality(track.Extension) {
			continue
		}
		if err := o.Tracks.SetTrackStatus(ctx, track.ID, models.StatusRedownloadPending, ""); err != nil {
			return marked, err
		}
		marked++
	}
	o.logger.Info("quality upgrades marked", "completed", len(tracks), "marked", marked)
	return marked, nil
}

// ProcessRedownloadQueue searches again for every redownload_pending track and enqueues the
// result only when it beats the stored file. Tracks without an upgrade stay in
// redownload_pending and are retried on the next run. It returns the number enqueued.
func (o *Orchestrator) ProcessRedownloadQueue(ctx context.Context) (int, error) {
	tracks, err := o.Tracks.GetTracksByStatus(ctx, models.StatusRedownloadPending)
	if err != nil {
		return 0, err
	}

	enqueued := 0
	for _, track := range tracks {
		if err := ctx.Err(); err != nil {
			return enqueued, err
		}
		ok, err := o.redownload(ctx, track)
		if err != nil {
			return enqueued, err
		}
		if ok {
			enqueued++
		}
	}
	o.logger.Info("redownload queue processed", "pending", len(tracks), "enqueued", enqueued)
	return enqueued, nil
}

func (o *Orchestrator) redownload(ctx context.Context, track *models.Track) (bool, error) {
	logger := o.logger.With("track", track.ID)
	searchText := track.SearchText()

	searchID, err := o.client.CreateSearch(ctx, searchText)
	if err != nil {
		logger.Warn("upgrade search failed", "err", err)
		return false, nil
	}
	if err := o.Tracks.SetSearchUUID(ctx, track.ID, searchID); err != nil {
		return false, err
	}

	responses, err := o.client.PollSearch(ctx, searchID, o.pollAttempts, o.pollInterval)
	if err != nil {
		logger.Warn("upgrade search polling failed", "search_id", searchID, "err", err)
		return false, nil
	}

	candidate, ok := o.Selector.SelectBestFile(ctx, responses, searchText)
	if !ok {
		logger.Debug("no upgrade candidates", "responses", len(responses))
		return false, nil
	}
	if !quality.IsUpgrade(candidate.File, track.Extension, track.Bitrate) {
		logger.Debug("no upgrade found", "best", candidate.File.Filename, "current", track.Extension)
		return false, nil
	}

	outcome, err := o.enqueue(ctx, track.ID, candidate)
	if err != nil {
		return false, err
	}
	return outcome.Status == models.StatusDownloading, nil
}
