package services

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/desertthunder/spotiseek/internal/shared"
	"golang.org/x/oauth2/clientcredentials"
)

func newSpotifyTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/token" {
			w.Header().Set("Content-Type", "application/json")
			io.WriteString(w, `{"access_token":"tok","token_type":"bearer","expires_in":3600}`)
			return
		}

		if r.Header.Get("Authorization") != "Bearer tok" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}

		switch r.URL.Path {
		case "/v1/playlists/abc123":
			io.WriteString(w, `{"id":"abc123","name":"Night Drive","tracks":{"items":[
				{"track":{"id":"t1","name":"Skynet","artists":[{"name":"MASTER BOOT RECORD"}]}},
				{"track":null},
				{"track":{"id":"","name":"Local File","artists":[]}}
			],"next":"`+srv.URL+`/v1/playlists/abc123/tracks?offset=3"}}`)
		case "/v1/playlists/abc123/tracks":
			io.WriteString(w, `{"items":[
				{"track":{"id":"t2","name":"Run - VIP","artists":[{"name":"DC Breaks"},{"name":"InsideInfo"}]}}
			],"next":null}`)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestSpotifyScraper(t *testing.T) {
	ctx := context.Background()

	t.Run("NewSpotifyScraper", func(t *testing.T) {
		t.Run("With Valid Credentials", func(t *testing.T) {
			s, err := NewSpotifyScraper(ctx, shared.SpotifyConfig{ClientID: "id", ClientSecret: "secret"}, nil)
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if s.Name() != "Spotify" {
				t.Errorf("expected service name 'Spotify', got %s", s.Name())
			}
		})

		t.Run("Missing Client Secret", func(t *testing.T) {
			_, err := NewSpotifyScraper(ctx, shared.SpotifyConfig{ClientID: "id"}, nil)
			if !errors.Is(err, shared.ErrMissingCredentials) {
				t.Errorf("expected ErrMissingCredentials, got %v", err)
			}
		})
	})

	srv := newSpotifyTestServer(t)
	config := &clientcredentials.Config{ClientID: "id", ClientSecret: "secret", TokenURL: srv.URL + "/api/token"}
	scraper := newSpotifyScraper(config.Client(ctx), srv.URL+"/v1", shared.NewLogger(io.Discard))

	t.Run("Scrape follows pagination", func(t *testing.T) {
		playlist, err := scraper.Scrape(ctx, "https://open.spotify.com/playlist/abc123?si=xyz")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if playlist.Name != "Night Drive" {
			t.Errorf("expected name 'Night Drive', got %s", playlist.Name)
		}
		if len(playlist.Tracks) != 2 {
			t.Fatalf("expected 2 tracks, got %d", len(playlist.Tracks))
		}

		if playlist.Tracks[0].ID != "t1" || playlist.Tracks[0].Artist != "MASTER BOOT RECORD" {
			t.Errorf("unexpected first track %+v", playlist.Tracks[0])
		}
		second := playlist.Tracks[1]
		if second.Artist != "DC Breaks InsideInfo" || second.Title != "Run VIP" {
			t.Errorf("expected cleaned names, got %+v", second)
		}
	})

	t.Run("Invalid URL", func(t *testing.T) {
		_, err := scraper.Scrape(ctx, "https://open.spotify.com/album/xyz")
		if !errors.Is(err, shared.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument, got %v", err)
		}
	})

	t.Run("Missing Playlist", func(t *testing.T) {
		_, err := scraper.Scrape(ctx, "https://open.spotify.com/playlist/missing")
		if !errors.Is(err, shared.ErrPlaylistNotFound) {
			t.Errorf("expected ErrPlaylistNotFound, got %v", err)
		}
	})
}
