package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/spotiseek/internal/models"
	"github.com/desertthunder/spotiseek/internal/shared"
)

// PlaylistRepository persists scraped playlists and their ordered track membership.
type PlaylistRepository struct {
	db  *sql.DB
	now func() time.Time
}

// NewPlaylistRepository creates a new PlaylistRepository with the given database connection
func NewPlaylistRepository(db *sql.DB) *PlaylistRepository {
	return &PlaylistRepository{db: db, now: time.Now}
}

// UpsertPlaylist inserts a playlist or refreshes its name, m3u8 path and source.
func (r *PlaylistRepository) UpsertPlaylist(ctx context.Context, p *models.Playlist) error {
	if p.URL == "" {
		return fmt.Errorf("%w: playlist url is empty", shared.ErrInvalidInput)
	}
	query := `
		INSERT INTO playlists (playlist_url, playlist_name, m3u8_path, source, added_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(playlist_url) DO UPDATE SET
			playlist_name = excluded.playlist_name,
			m3u8_path = excluded.m3u8_path,
			source = excluded.source
	`
	if _, err := r.db.ExecContext(ctx, query, p.URL, p.Name, nullString(p.M3U8Path), p.Source, formatTime(r.now())); err != nil {
		return fmt.Errorf("failed to upsert playlist: %w", err)
	}
	return nil
}

// GetPlaylist retrieves a playlist by url.
func (r *PlaylistRepository) GetPlaylist(ctx context.Context, url string) (*models.Playlist, error) {
	query := `SELECT playlist_url, playlist_name, m3u8_path, source, added_at FROM playlists WHERE playlist_url = ?`
	p, err := scanPlaylist(r.db.QueryRowContext(ctx, query, url))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", shared.ErrPlaylistNotFound, url)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get playlist: %w", err)
	}
	return p, nil
}

// ListPlaylists returns every playlist ordered by name.
func (r *PlaylistRepository) ListPlaylists(ctx context.Context) ([]*models.Playlist, error) {
	query := `SELECT playlist_url, playlist_name, m3u8_path, source, added_at FROM playlists ORDER BY playlist_name, playlist_url`
	return r.list(ctx, query)
}

// PlaylistsForTrack returns every playlist containing the track.
func (r *PlaylistRepository) PlaylistsForTrack(ctx context.Context, trackID string) ([]*models.Playlist, error) {
	query := `
		SELECT p.playlist_url, p.playlist_name, p.m3u8_path, p.source, p.added_at
		FROM playlists p
		JOIN playlist_tracks pt ON pt.playlist_url = p.playlist_url
		WHERE pt.spotify_id = ?
		ORDER BY p.playlist_name, p.playlist_url
	`
	return r.list(ctx, query, trackID)
}

// LinkTrack adds the track to the playlist at position. Relinking updates the position.
func (r *PlaylistRepository) LinkTrack(ctx context.Context, playlistURL, trackID string, position int) error {
	query := `
		INSERT INTO playlist_tracks (playlist_url, spotify_id, position) VALUES (?, ?, ?)
		ON CONFLICT(playlist_url, spotify_id) DO UPDATE SET position = excluded.position
	`
	if _, err := r.db.ExecContext(ctx, query, playlistURL, trackID, position); err != nil {
		return fmt.Errorf("failed to link track to playlist: %w", err)
	}
	return nil
}

// PlaylistTrackIDs returns track ids of a playlist in playlist order.
func (r *PlaylistRepository) PlaylistTrackIDs(ctx context.Context, playlistURL string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT spotify_id FROM playlist_tracks WHERE playlist_url = ? ORDER BY position, spotify_id", playlistURL)
	if err != nil {
		return nil, fmt.Errorf("failed to list playlist tracks: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan playlist track: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *PlaylistRepository) list(ctx context.Context, query string, args ...any) ([]*models.Playlist, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list playlists: %w", err)
	}
	defer rows.Close()

	var playlists []*models.Playlist
	for rows.Next() {
		p, err := scanPlaylist(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan playlist: %w", err)
		}
		playlists = append(playlists, p)
	}
	return playlists, rows.Err()
}

func scanPlaylist(s scanner) (*models.Playlist, error) {
	var (
		p                  models.Playlist
		name, m3u8, source sql.NullString
		addedAt            sql.NullString
	)
	if err := s.Scan(&p.URL, &name, &m3u8, &source, &addedAt); err != nil {
		return nil, err
	}
	p.Name = name.String
	p.M3U8Path = m3u8.String
	p.Source = source.String
	if ts := parseTime(addedAt); ts != nil {
		p.AddedAt = *ts
	}
	return &p, nil
}
