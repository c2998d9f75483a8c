package main

import (
	"context"
	"fmt"
	"time"

	"github.com/desertthunder/spotiseek/internal/formatter"
	"github.com/desertthunder/spotiseek/internal/models"
	"github.com/desertthunder/spotiseek/internal/shared"
	"github.com/desertthunder/spotiseek/internal/tasks"
	"github.com/urfave/cli/v3"
)

// Download runs the synchronous search-select-enqueue flow for one track.
func (r *Runner) Download(ctx context.Context, cmd *cli.Command) error {
	if err := r.open(ctx); err != nil {
		return err
	}
	if !r.orchestrator.WaitReady(ctx) {
		return fmt.Errorf("%w: slskd is not logged in", shared.ErrServiceUnavailable)
	}

	id := cmd.String("id")
	if id == "" {
		id = shared.GenerateID()
	}
	outcome, err := r.orchestrator.DownloadTrack(ctx, cmd.String("artist"), cmd.String("title"), id)
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(map[string]any{
			"track_id": outcome.TrackID,
			"status":   outcome.Status,
			"skipped":  outcome.Skipped,
			"reason":   outcome.Reason,
		}, true)
	}

	switch {
	case outcome.Skipped:
		return r.writePlain("Skipped %s: already %s\n", outcome.TrackID, outcome.Status)
	case outcome.Status == models.StatusDownloading, outcome.Status == models.StatusRedownloadPending:
		return r.writePlain("✓ %s: %s\n", outcome.TrackID, outcome.Status)
	case outcome.Reason != "":
		r.writePlain("✗ %s: %s (%s)\n", outcome.TrackID, outcome.Status, outcome.Reason)
		return cli.Exit("", 1)
	default:
		r.writePlain("✗ %s: %s\n", outcome.TrackID, outcome.Status)
		return cli.Exit("", 1)
	}
}

// Import copies a local file into the library as the download of an existing track.
func (r *Runner) Import(ctx context.Context, cmd *cli.Command) error {
	if err := r.open(ctx); err != nil {
		return err
	}

	var bitrate *int
	if cmd.IsSet("bitrate") {
		b := cmd.Int("bitrate")
		bitrate = &b
	}

	track, err := r.orchestrator.ImportFile(ctx, cmd.String("id"), cmd.String("file"), bitrate)
	if err != nil {
		return err
	}
	return r.writePlain("✓ Imported %s - %s to %s\n", track.Artist, track.Name, track.LocalFilePath)
}

// ExportXML writes the iTunes library XML.
func (r *Runner) ExportXML(ctx context.Context, cmd *cli.Command) error {
	if err := r.open(ctx); err != nil {
		return err
	}
	lib, path, err := r.pipeline.ExportXML(ctx)
	if err != nil {
		return err
	}
	return r.writePlain("✓ Exported %d tracks and %d playlists to %s\n", len(lib.Tracks), len(lib.Playlists), path)
}

// ExportM3U8 rebuilds every playlist file.
func (r *Runner) ExportM3U8(ctx context.Context, cmd *cli.Command) error {
	if err := r.open(ctx); err != nil {
		return err
	}
	n, err := r.pipeline.RebuildM3U8(ctx)
	if err != nil {
		return err
	}
	return r.writePlain("✓ Wrote %d playlists to %s\n", n, r.config.Paths.M3U8Dir)
}

type playlistJSON struct {
	URL    string `json:"url"`
	Name   string `json:"name,omitempty"`
	Tracks int    `json:"tracks"`
	Error  string `json:"error,omitempty"`
}

// Scrape scrapes the URLs given as arguments, or the sources file when there are none.
func (r *Runner) Scrape(ctx context.Context, cmd *cli.Command) error {
	if err := r.open(ctx); err != nil {
		return err
	}

	var (
		result *tasks.ScrapeResult
		err    error
	)
	if urls := cmd.Args().Slice(); len(urls) > 0 {
		result, err = r.pipeline.ScrapeURLs(ctx, urls)
	} else {
		result, err = r.pipeline.Scrape(ctx)
	}
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		playlists := make([]playlistJSON, 0, len(result.Results))
		for _, res := range result.Results {
			pj := playlistJSON{URL: res.URL, Name: res.Name, Tracks: res.Tracks}
			if res.Error != nil {
				pj.Error = res.Error.Error()
			}
			playlists = append(playlists, pj)
		}
		return r.writeJSON(map[string]any{
			"sources_file": result.SourcesFile,
			"succeeded":    result.Succeeded,
			"failed":       result.Failed,
			"tracks":       result.Tracks,
			"playlists":    playlists,
		}, true)
	}

	r.writePlainHeader("Scrape")
	for _, res := range result.Results {
		if res.Error != nil {
			r.writePlain("✗ %s: %v\n", res.URL, res.Error)
			continue
		}
		r.writePlain("✓ %s (%d tracks)\n", res.Name, res.Tracks)
	}
	r.writePlainln("%d playlists scraped, %d failed, %d tracks", result.Succeeded, result.Failed, result.Tracks)
	if result.Succeeded == 0 && result.Failed > 0 {
		return cli.Exit("", 1)
	}
	return nil
}

// BlacklistAdd excludes a file id from selection.
func (r *Runner) BlacklistAdd(ctx context.Context, cmd *cli.Command) error {
	id, err := requireArg(cmd, "id")
	if err != nil {
		return err
	}
	if err := r.open(ctx); err != nil {
		return err
	}
	if err := r.orchestrator.Blacklist.Add(ctx, id, cmd.String("reason")); err != nil {
		return err
	}
	return r.writePlain("Blacklisted %s\n", id)
}

// BlacklistRemove allows a file id again.
func (r *Runner) BlacklistRemove(ctx context.Context, cmd *cli.Command) error {
	id, err := requireArg(cmd, "id")
	if err != nil {
		return err
	}
	if err := r.open(ctx); err != nil {
		return err
	}
	removed, err := r.orchestrator.Blacklist.Remove(ctx, id)
	if err != nil {
		return err
	}
	if !removed {
		return fmt.Errorf("%w: %s is not blacklisted", shared.ErrNotFound, id)
	}
	return r.writePlain("Removed %s from the blacklist\n", id)
}

// BlacklistList prints the blacklist.
func (r *Runner) BlacklistList(ctx context.Context, cmd *cli.Command) error {
	if err := r.open(ctx); err != nil {
		return err
	}
	entries, err := r.orchestrator.Blacklist.List(ctx)
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(entries, true)
	}
	if len(entries) == 0 {
		return r.writePlain("Blacklist is empty\n")
	}
	for _, e := range entries {
		line := fmt.Sprintf("%s  %s", e.UUID, formatter.RelativeTime(&e.AddedAt, time.Now()))
		if e.Reason != "" {
			line += "  " + e.Reason
		}
		r.writePlain("%s\n", line)
	}
	return nil
}

// Stats prints track counts by download status.
func (r *Runner) Stats(ctx context.Context, cmd *cli.Command) error {
	if err := r.open(ctx); err != nil {
		return err
	}
	counts, err := r.orchestrator.Tracks.CountByStatus(ctx)
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(formatter.SortCounts(counts), true)
	}
	return r.writePlain("%s\n", formatter.Stats(counts))
}
