package tasks

import (
	"context"
	"fmt"

	"github.com/desertthunder/spotiseek/internal/library"
	"github.com/desertthunder/spotiseek/internal/models"
	"github.com/desertthunder/spotiseek/internal/scheduler"
)

// ExportLibrary is the export_library task.
func (p *Pipeline) ExportLibrary(ctx context.Context) (scheduler.Result, error) {
	lib, path, err := p.ExportXML(ctx)
	if err != nil {
		return scheduler.Result{}, err
	}
	sendProgress(p.Progress, exportedLibraryUpdate(path, len(lib.Tracks), len(lib.Playlists)))
	return scheduler.Result{OK: true, TracksProcessed: len(lib.Tracks)}, nil
}

// ExportXML writes the iTunes library for every downloaded track and returns it with its path.
func (p *Pipeline) ExportXML(ctx context.Context) (*library.ITunesLibrary, string, error) {
	tracks, err := p.Downloads.Tracks.ListTracks(ctx)
	if err != nil {
		return nil, "", err
	}
	values := make([]models.Track, 0, len(tracks))
	for _, t := range tracks {
		values = append(values, *t)
	}

	playlists, err := p.libraryPlaylists(ctx)
	if err != nil {
		return nil, "", err
	}

	paths := p.Config.Paths
	lib := library.BuildITunesLibrary(values, playlists, library.MusicFolderURL(paths.DownloadsRoot, paths.HostBasePath), paths.HostBasePath)
	path := paths.XMLExportPath()
	if err := library.WriteITunesXML(path, lib); err != nil {
		return nil, "", err
	}

	p.logger.Info("exported itunes library", "path", path, "tracks", len(lib.Tracks), "playlists", len(lib.Playlists))
	return lib, path, nil
}

func (p *Pipeline) libraryPlaylists(ctx context.Context) ([]library.LibraryPlaylist, error) {
	playlists, err := p.Downloads.Playlists.ListPlaylists(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]library.LibraryPlaylist, 0, len(playlists))
	for _, pl := range playlists {
		ids, err := p.Downloads.Playlists.PlaylistTrackIDs(ctx, pl.URL)
		if err != nil {
			return nil, err
		}
		out = append(out, library.LibraryPlaylist{Playlist: *pl, TrackIDs: ids})
	}
	return out, nil
}

// RebuildM3U8 deletes every playlist file and writes them again from the store, with local
// paths for downloaded tracks and comment lines for the rest. It returns the files written.
func (p *Pipeline) RebuildM3U8(ctx context.Context) (int, error) {
	dir := p.Config.Paths.M3U8Dir
	if _, err := library.DeleteAllM3U8(dir); err != nil {
		return 0, fmt.Errorf("failed to clear playlists: %w", err)
	}

	playlists, err := p.libraryPlaylists(ctx)
	if err != nil {
		return 0, err
	}

	written := 0
	for _, pl := range playlists {
		path := pl.Playlist.M3U8Path
		if path == "" {
			path = library.M3U8Path(dir, pl.Playlist.Name)
		}

		entries := make([]library.M3U8Entry, 0, len(pl.TrackIDs))
		local := map[string]string{}
		for _, id := range pl.TrackIDs {
			track, err := p.Downloads.Tracks.GetTrack(ctx, id)
			if err != nil {
				return written, err
			}
			entries = append(entries, library.M3U8Entry{TrackID: id, Artist: track.Artist, Title: track.Name})
			if track.LocalFilePath != "" {
				local[id] = track.LocalFilePath
			}
		}

		if err := library.WriteM3U8(path, entries); err != nil {
			return written, err
		}
		for id, localPath := range local {
			if _, err := library.UpdateM3U8Track(path, id, localPath); err != nil {
				return written, err
			}
		}
		written++
	}
	return written, nil
}
