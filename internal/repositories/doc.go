// Package repositories implements the SQLite track store used by the pipeline.
//
// Key Implementations:
//   - [TrackRepository] : tracks, download status and slskd correlation ids
//   - [PlaylistRepository] : scraped playlists and their ordered membership
//   - [BlacklistRepository] : slskd file ids that must never be selected again
//   - [TaskRepository] : scheduler state cursors and append-only run history
//
// Timestamps are stored as RFC3339 UTC text. Values that fail to parse are read back as nil
// so callers can fail open.
package repositories
