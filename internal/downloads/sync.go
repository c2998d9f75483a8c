package downloads

import (
	"context"
	"errors"
	"path"
	"path/filepath"
	"strings"

	"github.com/desertthunder/spotiseek/internal/library"
	"github.com/desertthunder/spotiseek/internal/models"
	"github.com/desertthunder/spotiseek/internal/quality"
	"github.com/desertthunder/spotiseek/internal/services"
	"github.com/desertthunder/spotiseek/internal/shared"
)

var failedTransferStates = map[string]bool{
	"Completed, Errored":   true,
	"Completed, TimedOut":  true,
	"Completed, Cancelled": true,
	"Completed, Rejected":  true,
	"Completed, Aborted":   true,
}

// SyncDownloadStatus maps every slskd transfer onto its track and imports finished files.
// Transfers slskd reports that no track is correlated with are ignored. It returns the number
// of transfers that matched a track.
func (o *Orchestrator) SyncDownloadStatus(ctx context.Context) (int, error) {
	transfers, err := o.client.Downloads(ctx)
	if err != nil {
		return 0, err
	}

	synced := 0
	for _, user := range transfers {
		for _, dir := range user.Directories {
			for _, file := range dir.Files {
				if err := ctx.Err(); err != nil {
					return synced, err
				}
				matched, err := o.syncFile(ctx, file)
				if err != nil {
					return synced, err
				}
				if matched {
					synced++
				}
			}
		}
	}
	o.logger.Info("download status synced", "users", len(transfers), "tracks", synced)
	return synced, nil
}

func (o *Orchestrator) syncFile(ctx context.Context, file services.TransferFile) (bool, error) {
	if file.ID == "" {
		return false, nil
	}
	trackID, err := o.Tracks.TrackIDByDownloadUUID(ctx, file.ID)
	if err != nil {
		return false, err
	}
	if trackID == "" {
		return false, nil
	}

	switch {
	case file.State == "Completed, Succeeded":
		return true, o.completeDownload(ctx, trackID, file)
	case failedTransferStates[file.State]:
		o.logger.Warn("download failed", "track", trackID, "state", file.State, "reason", file.FailureReason())
		return true, o.Tracks.SetTrackStatus(ctx, trackID, models.StatusFailed, file.FailureReason())
	case file.State == "Queued, Remotely":
		return true, o.Tracks.SetTrackStatus(ctx, trackID, models.StatusQueued, "")
	case file.State == "InProgress":
		return true, o.Tracks.SetTrackStatus(ctx, trackID, models.StatusDownloading, "")
	default:
		return true, o.Tracks.SetTrackStatus(ctx, trackID, models.RemoteStatus(file.State), "")
	}
}

// LocalDownloadPath is where slskd stores a remote file: the downloads root plus the last two
// components (album directory and file name) of the remote path.
func LocalDownloadPath(downloadsRoot, remoteFilename string) string {
	parts := strings.Split(strings.ReplaceAll(remoteFilename, `\`, "/"), "/")
	var kept []string
	for _, p := range parts {
		if p != "" {
			kept = append(kept, p)
		}
	}
	if len(kept) > 2 {
		kept = kept[len(kept)-2:]
	}
	return filepath.Join(append([]string{downloadsRoot}, kept...)...)
}

func samePath(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	a, b = filepath.ToSlash(a), filepath.ToSlash(b)
	return strings.EqualFold(a, b) || strings.EqualFold(path.Base(a), path.Base(b))
}

func (o *Orchestrator) completeDownload(ctx context.Context, trackID string, file services.TransferFile) error {
	track, err := o.Tracks.GetTrack(ctx, trackID)
	if err != nil {
		return err
	}
	if track.Status == models.StatusRedownloadPending || track.Status == models.StatusCompleted {
		return nil
	}
	logger := o.logger.With("track", trackID)

	if file.Filename == "" {
		logger.Warn("completed transfer has no file name")
		return o.Tracks.SetTrackStatus(ctx, trackID, models.StatusCompleted, "")
	}

	localPath := LocalDownloadPath(o.downloadsRoot, file.Filename)
	if samePath(track.LocalFilePath, localPath) {
		return nil
	}

	ext := strings.ToLower(strings.TrimPrefix(file.Extension, "."))
	if ext == "" {
		ext = quality.Extension(file.Filename)
	}
	bitrate := file.BitRate

	result, err := o.remux(ctx, localPath, ext)
	switch {
	case errors.Is(err, shared.ErrCorruptAudio):
		logger.Error("downloaded file is corrupt", "path", localPath, "err", err)
		return o.rejectCorrupt(ctx, trackID, file.ID, ext)
	case err != nil:
		logger.Warn("remux failed, keeping original", "path", localPath, "err", err)
	case result.Remuxed:
		localPath, ext, bitrate = result.Path, result.Extension, result.Bitrate
	}

	if err := o.Tracks.SetLocalFilePath(ctx, trackID, localPath); err != nil {
		return err
	}
	if err := o.Tracks.SetExtensionAndBitrate(ctx, trackID, ext, bitrate); err != nil {
		return err
	}
	previous := track.LocalFilePath
	if err := o.updatePlaylists(ctx, trackID, func(m3u8 string) (bool, error) {
		updated, err := library.UpdateM3U8Track(m3u8, trackID, localPath)
		if err != nil || updated || previous == "" {
			return updated, err
		}
		return library.ReplaceM3U8Path(m3u8, previous, localPath)
	}); err != nil {
		return err
	}
	logger.Info("download completed", "path", localPath, "extension", ext)
	return o.Tracks.SetTrackStatus(ctx, trackID, models.StatusCompleted, "")
}

// remux converts path when the remuxer is usable; a missing ffmpeg leaves the file as is.
func (o *Orchestrator) remux(ctx context.Context, path, ext string) (*library.RemuxResult, error) {
	if _, ok := library.RemuxTarget(ext); !ok || o.Remuxer == nil {
		return &library.RemuxResult{Path: path, Extension: ext}, nil
	}
	if err := o.Remuxer.Available(); err != nil {
		o.logger.Debug("skipping remux", "err", err)
		return &library.RemuxResult{Path: path, Extension: ext}, nil
	}
	return o.Remuxer.Remux(ctx, path, ext)
}

// rejectCorrupt marks the track corrupt and blacklists the transfer so it is not picked again.
func (o *Orchestrator) rejectCorrupt(ctx context.Context, trackID, transferID, ext string) error {
	id := transferID
	if id == "" {
		var err error
		if id, err = o.Tracks.DownloadUUIDByTrackID(ctx, trackID); err != nil {
			return err
		}
	}
	if id != "" {
		if err := o.Blacklist.Add(ctx, id, "corrupt_"+ext); err != nil {
			return err
		}
	}
	return o.Tracks.SetTrackStatus(ctx, trackID, models.UnknownStatus("corrupt"), "corrupt_"+ext)
}

// updatePlaylists applies update to the m3u8 file of every playlist containing trackID.
func (o *Orchestrator) updatePlaylists(ctx context.Context, trackID string, update func(path string) (bool, error)) error {
	playlists, err := o.Playlists.PlaylistsForTrack(ctx, trackID)
	if err != nil {
		return err
	}
	for _, p := range playlists {
		m3u8 := p.M3U8Path
		if m3u8 == "" {
			m3u8 = library.M3U8Path(o.m3u8Dir, p.Name)
		}
		updated, err := update(m3u8)
		if err != nil {
			o.logger.Warn("failed to update playlist file", "playlist", p.Name, "path", m3u8, "err", err)
			continue
		}
		if updated {
			o.logger.Debug("playlist file updated", "playlist", p.Name, "track", trackID)
		}
	}
	return nil
}
