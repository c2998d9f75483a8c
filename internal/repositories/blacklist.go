package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// BlacklistEntry is a slskd file id excluded from selection.
type BlacklistEntry struct {
	UUID    string    `json:"uuid"`
	Reason  string    `json:"reason,omitempty"`
	AddedAt time.Time `json:"added_at"`
}

// BlacklistRepository stores slskd file ids that must not be downloaded again.
type BlacklistRepository struct {
	db  *sql.DB
	now func() time.Time
}

// NewBlacklistRepository creates a new BlacklistRepository with the given database connection
func NewBlacklistRepository(db *sql.DB) *BlacklistRepository {
	return &BlacklistRepository{db: db, now: time.Now}
}

// Add blacklists id. Adding an existing id is a no-op.
func (r *BlacklistRepository) Add(ctx context.Context, id, reason string) error {
	query := `INSERT OR IGNORE INTO slskd_blacklist (slskd_uuid, reason, added_at) VALUES (?, ?, ?)`
	if _, err := r.db.ExecContext(ctx, query, id, nullString(reason), formatTime(r.now())); err != nil {
		return fmt.Errorf("failed to add blacklist entry: %w", err)
	}
	return nil
}

// Remove deletes id from the blacklist and reports whether it was present.
func (r *BlacklistRepository) Remove(ctx context.Context, id string) (bool, error) {
	result, err := r.db.ExecContext(ctx, "DELETE FROM slskd_blacklist WHERE slskd_uuid = ?", id)
	if err != nil {
		return false, fmt.Errorf("failed to remove blacklist entry: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get affected rows: %w", err)
	}
	return n > 0, nil
}

// IsBlacklisted reports whether id is blacklisted.
func (r *BlacklistRepository) IsBlacklisted(ctx context.Context, id string) (bool, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM slskd_blacklist WHERE slskd_uuid = ?", id).Scan(&n); err != nil {
		return false, fmt.Errorf("failed to check blacklist: %w", err)
	}
	return n > 0, nil
}

// List returns every entry, newest first.
func (r *BlacklistRepository) List(ctx context.Context) ([]BlacklistEntry, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT slskd_uuid, reason, added_at FROM slskd_blacklist ORDER BY added_at DESC, slskd_uuid")
	if err != nil {
		return nil, fmt.Errorf("failed to list blacklist: %w", err)
	}
	defer rows.Close()

	var entries []BlacklistEntry
	for rows.Next() {
		var (
			e       BlacklistEntry
			reason  sql.NullString
			addedAt sql.NullString
		)
		if err := rows.Scan(&e.UUID, &reason, &addedAt); err != nil {
			return nil, fmt.Errorf("failed to scan blacklist entry: %w", err)
		}
		e.Reason = reason.String
		if ts := parseTime(addedAt); ts != nil {
			e.AddedAt = *ts
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
