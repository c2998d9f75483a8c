package downloads

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/desertthunder/spotiseek/internal/library"
	"github.com/desertthunder/spotiseek/internal/models"
	"github.com/desertthunder/spotiseek/internal/quality"
	"github.com/desertthunder/spotiseek/internal/shared"
)

// ImportFile copies a local audio file into the library as the download for trackID.
//
// The file lands in <downloads root>/imports and the track is marked completed with the
// file's extension and the given bitrate (nil when unknown).
func (o *Orchestrator) ImportFile(ctx context.Context, trackID, src string, bitrate *int) (*models.Track, error) {
	track, err := o.Tracks.GetTrack(ctx, trackID)
	if err != nil {
		return nil, err
	}

	ext := quality.Extension(src)
	if !quality.IsAudioExtension(ext) {
		return nil, fmt.Errorf("%w: %s", shared.ErrUnsupportedFile, src)
	}
	info, err := os.Stat(src)
	if err != nil {
		return nil, fmt.Errorf("failed to stat import file: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%w: %s is a directory", shared.ErrInvalidArgument, src)
	}

	dst := filepath.Join(o.downloadsRoot, "imports", filepath.Base(src))
	if err := copyFile(src, dst); err != nil {
		return nil, err
	}

	if err := o.Tracks.SetLocalFilePath(ctx, trackID, dst); err != nil {
		return nil, err
	}
	if err := o.Tracks.SetExtensionAndBitrate(ctx, trackID, ext, bitrate); err != nil {
		return nil, err
	}
	if err := o.Tracks.SetTrackStatus(ctx, trackID, models.StatusCompleted, ""); err != nil {
		return nil, err
	}

	previous := track.LocalFilePath
	if err := o.updatePlaylists(ctx, trackID, func(m3u8 string) (bool, error) {
		updated, err := library.UpdateM3U8Track(m3u8, trackID, dst)
		if err != nil || updated || previous == "" {
			return updated, err
		}
		return library.ReplaceM3U8Path(m3u8, previous, dst)
	}); err != nil {
		return nil, err
	}

	o.logger.Info("file imported", "track", trackID, "path", dst, "extension", ext)
	return o.Tracks.GetTrack(ctx, trackID)
}

func copyFile(src, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return fmt.Errorf("failed to create import directory: %w", err)
	}

	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open import file: %w", err)
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("failed to create library file: %w", err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("failed to copy import file: %w", err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("failed to close library file: %w", err)
	}
	return nil
}

// RemuxExisting converts completed tracks stored in a remuxable format and points them (and
// their playlist entries) at the converted file. Corrupt sources are marked and blacklisted.
// It returns the number of tracks converted; a missing ffmpeg is an error.
func (o *Orchestrator) RemuxExisting(ctx context.Context) (int, error) {
	if o.Remuxer == nil {
		return 0, fmt.Errorf("%w: remuxer not configured", shared.ErrServiceUnavailable)
	}
	if err := o.Remuxer.Available(); err != nil {
		return 0, err
	}

	tracks, err := o.Tracks.GetTracksByStatus(ctx, models.StatusCompleted)
	if err != nil {
		return 0, err
	}

	converted := 0
	for _, track := range tracks {
		if err := ctx.Err(); err != nil {
			return converted, err
		}
		if track.LocalFilePath == "" {
			continue
		}
		if _, ok := library.RemuxTarget(track.Extension); !ok {
			continue
		}
		if _, err := os.Stat(track.LocalFilePath); err != nil {
			o.logger.Warn("library file missing", "track", track.ID, "path", track.LocalFilePath)
			continue
		}

		result, err := o.Remuxer.Remux(ctx, track.LocalFilePath, track.Extension)
		if errors.Is(err, shared.ErrCorruptAudio) {
			o.logger.Error("library file is corrupt", "track", track.ID, "path", track.LocalFilePath)
			if err := o.rejectCorrupt(ctx, track.ID, "", track.Extension); err != nil {
				return converted, err
			}
			continue
		}
		if err != nil {
			o.logger.Warn("remux failed", "track", track.ID, "err", err)
			continue
		}
		if !result.Remuxed {
			continue
		}

		if err := o.Tracks.SetLocalFilePath(ctx, track.ID, result.Path); err != nil {
			return converted, err
		}
		if err := o.Tracks.SetExtensionAndBitrate(ctx, track.ID, result.Extension, result.Bitrate); err != nil {
			return converted, err
		}
		old := track.LocalFilePath
		if err := o.updatePlaylists(ctx, track.ID, func(m3u8 string) (bool, error) {
			return library.ReplaceM3U8Path(m3u8, old, result.Path)
		}); err != nil {
			return converted, err
		}
		converted++
	}
	o.logger.Info("existing files remuxed", "completed", len(tracks), "converted", converted)
	return converted, nil
}
