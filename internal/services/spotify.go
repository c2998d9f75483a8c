// Spotify Web API implementation of [Scraper]
//
// Spotify API response types based on https://developer.spotify.com/documentation/web-api/reference/
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/spotiseek/internal/models"
	"github.com/desertthunder/spotiseek/internal/shared"
	"golang.org/x/oauth2/clientcredentials"
)

const (
	spotifyTokenURL = "https://accounts.spotify.com/api/token"
	spotifyBaseURL  = "https://api.spotify.com/v1"
)

var spotifyPlaylistID = regexp.MustCompile(`playlist/([a-zA-Z0-9]+)`)

// SpotifyArtist represents a Spotify artist.
type SpotifyArtist struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// SpotifyTrack represents a Spotify track.
type SpotifyTrack struct {
	ID      string          `json:"id"`
	Name    string          `json:"name"`
	Artists []SpotifyArtist `json:"artists"`
}

// SpotifyPlaylistTrack represents a track within a playlist context.
//
// Track is nil for removed or local-only entries.
type SpotifyPlaylistTrack struct {
	AddedAt string        `json:"added_at"`
	Track   *SpotifyTrack `json:"track"`
}

// SpotifyPlaylistTracks is one page of playlist items.
type SpotifyPlaylistTracks struct {
	Items []SpotifyPlaylistTrack `json:"items"`
	Total int                    `json:"total"`
	Next  *string                `json:"next"`
}

// SpotifyPlaylist represents a Spotify playlist with its first page of tracks.
type SpotifyPlaylist struct {
	ID     string                `json:"id"`
	Name   string                `json:"name"`
	Tracks SpotifyPlaylistTracks `json:"tracks"`
}

// SpotifyScraper reads public playlists with an app-only client credentials token.
type SpotifyScraper struct {
	baseURL    string
	httpClient *http.Client
	logger     *log.Logger
}

// NewSpotifyScraper creates a scraper authenticated with the client credentials flow.
//
// The returned client fetches and refreshes its token lazily, on the first request.
func NewSpotifyScraper(ctx context.Context, creds shared.SpotifyConfig, logger *log.Logger) (*SpotifyScraper, error) {
	if creds.ClientID == "" || creds.ClientSecret == "" {
		return nil, fmt.Errorf("%w: spotify client_id and client_secret are required", shared.ErrMissingCredentials)
	}

	config := &clientcredentials.Config{
		ClientID:     creds.ClientID,
		ClientSecret: creds.ClientSecret,
		TokenURL:     spotifyTokenURL,
	}
	return newSpotifyScraper(config.Client(ctx), spotifyBaseURL, logger), nil
}

func newSpotifyScraper(client *http.Client, baseURL string, logger *log.Logger) *SpotifyScraper {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &SpotifyScraper{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: client,
		logger:     shared.WithLogger(logger, "component", "spotify"),
	}
}

func (s *SpotifyScraper) Name() string {
	return "Spotify"
}

// doRequest performs an authenticated GET against the Spotify API. Absolute URLs (pagination links) are used as-is.
func (s *SpotifyScraper) doRequest(ctx context.Context, endpoint string, result any) error {
	apiURL := endpoint
	if !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
		apiURL = s.baseURL + endpoint
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%w: %s", shared.ErrPlaylistNotFound, endpoint)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{Method: http.MethodGet, Path: endpoint, StatusCode: resp.StatusCode}
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// Playlist fetches a playlist and its first page of tracks.
func (s *SpotifyScraper) Playlist(ctx context.Context, playlistID string) (*SpotifyPlaylist, error) {
	var playlist SpotifyPlaylist
	if err := s.doRequest(ctx, "/playlists/"+url.PathEscape(playlistID), &playlist); err != nil {
		return nil, err
	}
	return &playlist, nil
}

// Scrape fetches every track of a playlist, following pagination links.
//
// A failure while paging keeps the tracks read so far.
func (s *SpotifyScraper) Scrape(ctx context.Context, playlistURL string) (*ScrapedPlaylist, error) {
	m := spotifyPlaylistID.FindStringSubmatch(playlistURL)
	if m == nil {
		return nil, fmt.Errorf("%w: expected https://open.spotify.com/playlist/<id>, got %s", shared.ErrInvalidArgument, playlistURL)
	}
	playlistID := m[1]

	playlist, err := s.Playlist(ctx, playlistID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch playlist %s: %w", playlistID, err)
	}

	items := playlist.Tracks.Items
	next := playlist.Tracks.Next
	for next != nil && *next != "" {
		var page SpotifyPlaylistTracks
		if err := s.doRequest(ctx, *next, &page); err != nil {
			s.logger.Warn("stopped paging playlist", "playlist_id", playlistID, "err", err)
			break
		}
		items = append(items, page.Items...)
		next = page.Next
	}

	result := &ScrapedPlaylist{Name: playlist.Name, Source: PlatformSpotify}
	for idx, item := range items {
		if item.Track == nil {
			continue
		}
		if item.Track.ID == "" {
			s.logger.Debug("skipping track without id", "index", idx+1, "name", item.Track.Name)
			continue
		}

		artists := make([]string, 0, len(item.Track.Artists))
		for _, a := range item.Track.Artists {
			artists = append(artists, CleanName(a.Name))
		}

		result.Tracks = append(result.Tracks, models.ScrapedTrack{
			ID:     item.Track.ID,
			Artist: strings.Join(artists, " "),
			Title:  CleanName(item.Track.Name),
		})
	}

	s.logger.Info("scraped playlist", "name", result.Name, "tracks", len(result.Tracks))
	return result, nil
}
