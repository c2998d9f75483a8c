package models

import "time"

// Track is a playlist entry tracked through search, download and import.
//
// ID is the platform identifier (a Spotify track id or a SoundCloud permalink slug).
type Track struct {
	ID             string         `json:"id"`
	Name           string         `json:"name"`
	Artist         string         `json:"artist"`
	Source         string         `json:"source"`
	Status         DownloadStatus `json:"status"`
	FailedReason   string         `json:"failed_reason,omitempty"`
	SearchUUID     string         `json:"search_uuid,omitempty"`
	RemoteFileName string         `json:"remote_file_name,omitempty"`
	LocalFilePath  string         `json:"local_file_path,omitempty"`
	Extension      string         `json:"extension,omitempty"`
	Bitrate        *int           `json:"bitrate,omitempty"`
	AddedAt        time.Time      `json:"added_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

// SearchText is the query sent to the network for this track.
func (t Track) SearchText() string {
	return t.Artist + " " + t.Name
}

// ScrapedTrack is one row returned by a playlist scraper.
type ScrapedTrack struct {
	ID     string
	Artist string
	Title  string
	Genre  string
}

// Playlist is a scraped playlist.
type Playlist struct {
	URL      string    `json:"url"`
	Name     string    `json:"name"`
	M3U8Path string    `json:"m3u8_path,omitempty"`
	Source   string    `json:"source"`
	AddedAt  time.Time `json:"added_at"`
}

// Platform names stored in the source columns.
const (
	SourceSpotify    = "spotify"
	SourceSoundCloud = "soundcloud"
	SourceManual     = "manual"
)
