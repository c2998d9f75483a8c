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

const trackColumns = `spotify_id, track_name, artist, source, download_status, failed_reason, slskd_search_uuid,
	slskd_file_name, local_file_path, extension, bitrate, added_at, updated_at`

// TrackRepository persists tracks and their slskd correlation identifiers.
type TrackRepository struct {
	db  *sql.DB
	now func() time.Time
}

// NewTrackRepository creates a new TrackRepository with the given database connection
func NewTrackRepository(db *sql.DB) *TrackRepository {
	return &TrackRepository{db: db, now: time.Now}
}

// AddTrack inserts a track in the pending state. Existing tracks are left untouched.
func (r *TrackRepository) AddTrack(ctx context.Context, id, name, artist, source string) error {
	if id == "" {
		return fmt.Errorf("%w: track id is empty", shared.ErrInvalidInput)
	}
	now := formatTime(r.now())
	query := `
		INSERT OR IGNORE INTO tracks (spotify_id, track_name, artist, source, download_status, added_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	if _, err := r.db.ExecContext(ctx, query, id, name, artist, source, models.StatusPending.String(), now, now); err != nil {
		return fmt.Errorf("failed to insert track: %w", err)
	}
	return nil
}

// GetTrack retrieves a track by id, returning [shared.ErrTrackNotFound] when absent.
func (r *TrackRepository) GetTrack(ctx context.Context, id string) (*models.Track, error) {
	query := `SELECT ` + trackColumns + ` FROM tracks WHERE spotify_id = ?`
	track, err := scanTrack(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", shared.ErrTrackNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get track: %w", err)
	}
	return track, nil
}

// GetTrackStatus returns the stored status and false when the track does not exist.
func (r *TrackRepository) GetTrackStatus(ctx context.Context, id string) (models.DownloadStatus, bool, error) {
	var status string
	err := r.db.QueryRowContext(ctx, "SELECT download_status FROM tracks WHERE spotify_id = ?", id).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return models.DownloadStatus{}, false, nil
	}
	if err != nil {
		return models.DownloadStatus{}, false, fmt.Errorf("failed to get track status: %w", err)
	}
	return models.ParseStatus(status), true, nil
}

// SetTrackStatus updates the status. An empty reason clears failed_reason.
func (r *TrackRepository) SetTrackStatus(ctx context.Context, id string, status models.DownloadStatus, reason string) error {
	query := `UPDATE tracks SET download_status = ?, failed_reason = ?, updated_at = ? WHERE spotify_id = ?`
	return r.exec(ctx, "update track status", query, status.String(), nullString(reason), formatTime(r.now()), id)
}

// SetSearchUUID records the search correlation id.
func (r *TrackRepository) SetSearchUUID(ctx context.Context, id, searchUUID string) error {
	query := `UPDATE tracks SET slskd_search_uuid = ?, updated_at = ? WHERE spotify_id = ?`
	return r.exec(ctx, "update search uuid", query, nullString(searchUUID), formatTime(r.now()), id)
}

// GetSearchUUID returns the search correlation id, or "" when none is stored.
func (r *TrackRepository) GetSearchUUID(ctx context.Context, id string) (string, error) {
	var v sql.NullString
	err := r.db.QueryRowContext(ctx, "SELECT slskd_search_uuid FROM tracks WHERE spotify_id = ?", id).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to get search uuid: %w", err)
	}
	return v.String, nil
}

// SetDownloadCorrelation maps a slskd download id to the track.
func (r *TrackRepository) SetDownloadCorrelation(ctx context.Context, id, downloadUUID, username string) error {
	query := `
		INSERT INTO slskd_mapping (slskd_uuid, spotify_id, username) VALUES (?, ?, ?)
		ON CONFLICT(slskd_uuid) DO UPDATE SET spotify_id = excluded.spotify_id, username = excluded.username
	`
	if _, err := r.db.ExecContext(ctx, query, downloadUUID, id, nullString(username)); err != nil {
		return fmt.Errorf("failed to record download mapping: %w", err)
	}
	return nil
}

// TrackIDByDownloadUUID resolves a download id, returning "" when it is unknown.
func (r *TrackRepository) TrackIDByDownloadUUID(ctx context.Context, downloadUUID string) (string, error) {
	var id string
	err := r.db.QueryRowContext(ctx, "SELECT spotify_id FROM slskd_mapping WHERE slskd_uuid = ?", downloadUUID).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to resolve download uuid: %w", err)
	}
	return id, nil
}

// UsernameByDownloadUUID returns the remote user that served a download.
func (r *TrackRepository) UsernameByDownloadUUID(ctx context.Context, downloadUUID string) (string, error) {
	var v sql.NullString
	err := r.db.QueryRowContext(ctx, "SELECT username FROM slskd_mapping WHERE slskd_uuid = ?", downloadUUID).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to get mapping username: %w", err)
	}
	return v.String, nil
}

// DownloadUUIDByTrackID returns the most recent download id recorded for a track.
func (r *TrackRepository) DownloadUUIDByTrackID(ctx context.Context, id string) (string, error) {
	var v string
	err := r.db.QueryRowContext(ctx, "SELECT slskd_uuid FROM slskd_mapping WHERE spotify_id = ? ORDER BY rowid DESC LIMIT 1", id).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to get download uuid: %w", err)
	}
	return v, nil
}

// DeleteMapping removes a download id mapping.
func (r *TrackRepository) DeleteMapping(ctx context.Context, downloadUUID string) error {
	if _, err := r.db.ExecContext(ctx, "DELETE FROM slskd_mapping WHERE slskd_uuid = ?", downloadUUID); err != nil {
		return fmt.Errorf("failed to delete mapping: %w", err)
	}
	return nil
}

// GetTrackExtension returns the stored extension, or "" when unknown.
func (r *TrackRepository) GetTrackExtension(ctx context.Context, id string) (string, error) {
	var v sql.NullString
	err := r.db.QueryRowContext(ctx, "SELECT extension FROM tracks WHERE spotify_id = ?", id).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to get track extension: %w", err)
	}
	return v.String, nil
}

// SetExtensionAndBitrate records the quality of the selected or imported file.
func (r *TrackRepository) SetExtensionAndBitrate(ctx context.Context, id, extension string, bitrate *int) error {
	query := `UPDATE tracks SET extension = ?, bitrate = ?, updated_at = ? WHERE spotify_id = ?`
	return r.exec(ctx, "update extension and bitrate", query, nullString(extension), nullInt(bitrate), formatTime(r.now()), id)
}

// SetRemoteFileName records the remote path of the enqueued file.
func (r *TrackRepository) SetRemoteFileName(ctx context.Context, id, filename string) error {
	query := `UPDATE tracks SET slskd_file_name = ?, updated_at = ? WHERE spotify_id = ?`
	return r.exec(ctx, "update remote file name", query, nullString(filename), formatTime(r.now()), id)
}

// SetLocalFilePath records where the downloaded file lives on disk.
func (r *TrackRepository) SetLocalFilePath(ctx context.Context, id, path string) error {
	query := `UPDATE tracks SET local_file_path = ?, updated_at = ? WHERE spotify_id = ?`
	return r.exec(ctx, "update local file path", query, nullString(path), formatTime(r.now()), id)
}

// GetTracksByStatus lists tracks in the given status ordered by insertion time.
func (r *TrackRepository) GetTracksByStatus(ctx context.Context, status models.DownloadStatus) ([]*models.Track, error) {
	query := `SELECT ` + trackColumns + ` FROM tracks WHERE download_status = ? ORDER BY added_at, spotify_id`
	return r.list(ctx, query, status.String())
}

// ListTracks lists every track ordered by insertion time.
func (r *TrackRepository) ListTracks(ctx context.Context) ([]*models.Track, error) {
	query := `SELECT ` + trackColumns + ` FROM tracks ORDER BY added_at, spotify_id`
	return r.list(ctx, query)
}

// CountByStatus groups tracks by status token.
func (r *TrackRepository) CountByStatus(ctx context.Context) (map[string]int, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT download_status, COUNT(*) FROM tracks GROUP BY download_status")
	if err != nil {
		return nil, fmt.Errorf("failed to count tracks: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("failed to scan count: %w", err)
		}
		counts[status] = n
	}
	return counts, rows.Err()
}

func (r *TrackRepository) list(ctx context.Context, query string, args ...any) ([]*models.Track, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list tracks: %w", err)
	}
	defer rows.Close()

	var tracks []*models.Track
	for rows.Next() {
		track, err := scanTrack(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan track: %w", err)
		}
		tracks = append(tracks, track)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate tracks: %w", err)
	}
	return tracks, nil
}

func (r *TrackRepository) exec(ctx context.Context, op, query string, args ...any) error {
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to %s: %w", op, err)
	}
	return nil
}

func scanTrack(s scanner) (*models.Track, error) {
	var (
		t                                            models.Track
		status                                       string
		reason, searchUUID, fileName, localPath, ext sql.NullString
		bitrate                                      sql.NullInt64
		addedAt, updatedAt                           sql.NullString
	)
	if err := s.Scan(&t.ID, &t.Name, &t.Artist, &t.Source, &status, &reason, &searchUUID,
		&fileName, &localPath, &ext, &bitrate, &addedAt, &updatedAt); err != nil {
		return nil, err
	}

	t.Status = models.ParseStatus(status)
	t.FailedReason = reason.String
	t.SearchUUID = searchUUID.String
	t.RemoteFileName = fileName.String
	t.LocalFilePath = localPath.String
	t.Extension = ext.String
	t.Bitrate = intPtr(bitrate)
	if ts := parseTime(addedAt); ts != nil {
		t.AddedAt = *ts
	}
	if ts := parseTime(updatedAt); ts != nil {
		t.UpdatedAt = *ts
	}
	return &t, nil
}
