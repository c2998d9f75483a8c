// SoundCloud implementation of [Scraper]
//
// SoundCloud no longer issues API keys, so playlists are read from the page's hydration JSON and
// stub tracks are resolved through api-v2 with a client_id lifted from the site's script bundles.
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/spotiseek/internal/models"
	"github.com/desertthunder/spotiseek/internal/shared"
)

const (
	soundcloudAPIBase   = "https://api-v2.soundcloud.com"
	soundcloudBatchSize = 50
	soundcloudUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 " +
		"(KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
)

var (
	hydrationPattern = regexp.MustCompile(`<script>window\.__sc_hydration = (.+?);</script>`)
	scriptPattern    = regexp.MustCompile(`<script crossorigin src="([^"]+)"`)
	clientIDPattern  = regexp.MustCompile(`client_id[=:]["'\s]*([a-zA-Z0-9]{32})`)
)

type soundcloudUser struct {
	Username string `json:"username"`
}

// SoundCloudTrack is a track as embedded in hydration data or returned by api-v2.
type SoundCloudTrack struct {
	ID           int64           `json:"id"`
	Title        string          `json:"title"`
	PermalinkURL string          `json:"permalink_url"`
	Genre        string          `json:"genre"`
	User         *soundcloudUser `json:"user"`
}

// SoundCloudPlaylist is the "playlist" hydratable.
type SoundCloudPlaylist struct {
	Title      string            `json:"title"`
	TrackCount int               `json:"track_count"`
	Tracks     []SoundCloudTrack `json:"tracks"`
}

type hydratable struct {
	Hydratable string          `json:"hydratable"`
	Data       json.RawMessage `json:"data"`
}

// SoundCloudScraper reads public SoundCloud sets.
type SoundCloudScraper struct {
	apiBase    string
	httpClient *http.Client
	logger     *log.Logger
}

// NewSoundCloudScraper creates a scraper. A nil client uses [http.DefaultClient].
func NewSoundCloudScraper(client *http.Client, logger *log.Logger) *SoundCloudScraper {
	if client == nil {
		client = http.DefaultClient
	}
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &SoundCloudScraper{
		apiBase:    soundcloudAPIBase,
		httpClient: client,
		logger:     shared.WithLogger(logger, "component", "soundcloud"),
	}
}

func (s *SoundCloudScraper) Name() string {
	return "SoundCloud"
}

func (s *SoundCloudScraper) get(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", soundcloudUserAgent)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &APIError{Method: http.MethodGet, Path: rawURL, StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	return body, nil
}

// Scrape reads a set page and returns its tracks with ids set to the "user/track" permalink slug.
func (s *SoundCloudScraper) Scrape(ctx context.Context, playlistURL string) (*ScrapedPlaylist, error) {
	if !strings.Contains(playlistURL, "soundcloud.com") || !strings.Contains(playlistURL, "/sets/") {
		return nil, fmt.Errorf("%w: expected https://soundcloud.com/<user>/sets/<name>, got %s", shared.ErrInvalidArgument, playlistURL)
	}

	page, err := s.get(ctx, playlistURL)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch playlist page: %w", err)
	}
	html := string(page)

	playlist, err := ParseHydration(html)
	if err != nil {
		return nil, err
	}

	var full []SoundCloudTrack
	var stubs []int64
	for _, t := range playlist.Tracks {
		switch {
		case t.PermalinkURL != "" && t.User != nil:
			full = append(full, t)
		case t.ID != 0:
			stubs = append(stubs, t.ID)
		}
	}
	s.logger.Debug("split playlist tracks", "full", len(full), "stubs", len(stubs), "track_count", playlist.TrackCount)

	if len(stubs) > 0 {
		if clientID := s.clientID(ctx, html); clientID != "" {
			fetched := s.tracksByID(ctx, stubs, clientID)
			s.logger.Info("resolved stub tracks", "requested", len(stubs), "received", len(fetched))
			full = append(full, fetched...)
		} else {
			s.logger.Warn("no client_id available, stub tracks skipped", "stubs", len(stubs))
		}
	}

	result := &ScrapedPlaylist{Name: playlist.Title, Source: PlatformSoundCloud}
	if result.Name == "" {
		result.Name = "Unknown Playlist"
	}
	for idx, t := range full {
		slug := TrackSlug(t.PermalinkURL)
		if slug == "" {
			s.logger.Warn("track missing permalink, skipping", "index", idx+1, "title", t.Title)
			continue
		}
		artist := ""
		if t.User != nil {
			artist = t.User.Username
		}
		result.Tracks = append(result.Tracks, models.ScrapedTrack{
			ID:     slug,
			Artist: CleanName(artist),
			Title:  CleanName(t.Title),
			Genre:  t.Genre,
		})
	}

	s.logger.Info("scraped playlist", "name", result.Name, "tracks", len(result.Tracks))
	return result, nil
}

// ParseHydration extracts the playlist hydratable from a SoundCloud page.
func ParseHydration(html string) (*SoundCloudPlaylist, error) {
	m := hydrationPattern.FindStringSubmatch(html)
	if m == nil {
		return nil, fmt.Errorf("%w: no __sc_hydration data in page", shared.ErrNotFound)
	}

	var items []hydratable
	if err := json.Unmarshal([]byte(m[1]), &items); err != nil {
		return nil, fmt.Errorf("failed to parse hydration data: %w", err)
	}

	for _, item := range items {
		if item.Hydratable != "playlist" {
			continue
		}
		var playlist SoundCloudPlaylist
		if err := json.Unmarshal(item.Data, &playlist); err != nil {
			return nil, fmt.Errorf("failed to parse playlist hydratable: %w", err)
		}
		return &playlist, nil
	}
	return nil, fmt.Errorf("%w: playlist hydratable", shared.ErrPlaylistNotFound)
}

// clientID searches the page's script bundles, last first, for an api-v2 client_id.
func (s *SoundCloudScraper) clientID(ctx context.Context, html string) string {
	matches := scriptPattern.FindAllStringSubmatch(html, -1)
	for i := len(matches) - 1; i >= 0; i-- {
		body, err := s.get(ctx, matches[i][1])
		if err != nil {
			continue
		}
		if m := clientIDPattern.FindSubmatch(body); m != nil {
			return string(m[1])
		}
	}
	return ""
}

func (s *SoundCloudScraper) tracksByID(ctx context.Context, ids []int64, clientID string) []SoundCloudTrack {
	var tracks []SoundCloudTrack
	for start := 0; start < len(ids); start += soundcloudBatchSize {
		batch := ids[start:min(start+soundcloudBatchSize, len(ids))]
		parts := make([]string, len(batch))
		for i, id := range batch {
			parts[i] = strconv.FormatInt(id, 10)
		}

		endpoint := fmt.Sprintf("%s/tracks?ids=%s&client_id=%s", s.apiBase, strings.Join(parts, ","), clientID)
		body, err := s.get(ctx, endpoint)
		if err != nil {
			s.logger.Warn("track batch request failed", "batch_start", start, "err", err)
			continue
		}

		var page []SoundCloudTrack
		if err := json.Unmarshal(body, &page); err != nil {
			s.logger.Warn("track batch decode failed", "batch_start", start, "err", err)
			continue
		}
		tracks = append(tracks, page...)
	}
	return tracks
}

// TrackSlug returns the "user/track" part of a SoundCloud permalink URL.
func TrackSlug(permalinkURL string) string {
	path := strings.TrimPrefix(permalinkURL, "https://soundcloud.com/")
	path = strings.TrimPrefix(path, "http://soundcloud.com/")
	parts := strings.Split(path, "/")
	if len(parts) >= 2 {
		return parts[0] + "/" + parts[1]
	}
	return path
}
