package services

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/desertthunder/spotiseek/internal/shared"
)

const testClientID = "abcdefghijklmnopqrstuvwxyz012345"

func soundcloudPage(scriptURL string) string {
	hydration := `[{"hydratable":"user","data":{}},{"hydratable":"playlist","data":{
		"title":"donk and bits","track_count":3,"tracks":[
			{"id":1,"title":"7TH ELEMENT VIP [FREE DL]","permalink_url":"https://soundcloud.com/lobsta-b/7th-element-vip",
			 "genre":"HARD HOUSE","user":{"username":"LOBSTA B"}},
			{"id":2},
			{"id":3}
		]}}]`
	hydration = strings.ReplaceAll(hydration, "\n", "")
	hydration = strings.ReplaceAll(hydration, "\t", "")
	return `<html><head><script crossorigin src="` + scriptURL + `"></script></head>` +
		`<body><script>window.__sc_hydration = ` + hydration + `;</script></body></html>`
}

func TestSoundCloudScraper(t *testing.T) {
	ctx := context.Background()

	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/user/sets/donk":
			io.WriteString(w, soundcloudPage(srv.URL+"/assets/app.js"))
		case "/assets/app.js":
			io.WriteString(w, `var e={client_id:"`+testClientID+`"};`)
		case "/tracks":
			if r.URL.Query().Get("client_id") != testClientID {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			if r.URL.Query().Get("ids") != "2,3" {
				t.Errorf("expected ids 2,3, got %s", r.URL.Query().Get("ids"))
			}
			io.WriteString(w, `[
				{"id":2,"title":"Tune (Official Audio)","permalink_url":"https://soundcloud.com/dj-x/tune","user":{"username":"DJ X"}},
				{"id":3,"title":"Other","permalink_url":"https://soundcloud.com/dj-y/other?in=sets","genre":"","user":{"username":"DJ Y"}}
			]`)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(srv.Close)

	scraper := NewSoundCloudScraper(srv.Client(), shared.NewLogger(io.Discard))
	scraper.apiBase = srv.URL

	t.Run("Scrape resolves stub tracks", func(t *testing.T) {
		// soundcloud.com in the query satisfies URL validation against the test server.
		playlist, err := scraper.Scrape(ctx, srv.URL+"/user/sets/donk?soundcloud.com")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if playlist.Name != "donk and bits" {
			t.Errorf("expected playlist name, got %s", playlist.Name)
		}
		if len(playlist.Tracks) != 3 {
			t.Fatalf("expected 3 tracks, got %d", len(playlist.Tracks))
		}

		first := playlist.Tracks[0]
		if first.ID != "lobsta-b/7th-element-vip" || first.Title != "7TH ELEMENT VIP" || first.Genre != "HARD HOUSE" {
			t.Errorf("unexpected first track %+v", first)
		}
		if playlist.Tracks[1].Title != "Tune" {
			t.Errorf("expected junk parens removed, got %q", playlist.Tracks[1].Title)
		}
		if playlist.Tracks[2].ID != "dj-y/other?in=sets" {
			t.Errorf("unexpected slug %q", playlist.Tracks[2].ID)
		}
	})

	t.Run("Invalid URL", func(t *testing.T) {
		_, err := scraper.Scrape(ctx, "https://soundcloud.com/user/track")
		if !errors.Is(err, shared.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument, got %v", err)
		}
	})
}

func TestParseHydration(t *testing.T) {
	t.Run("missing hydration", func(t *testing.T) {
		if _, err := ParseHydration("<html></html>"); !errors.Is(err, shared.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("no playlist hydratable", func(t *testing.T) {
		html := `<script>window.__sc_hydration = [{"hydratable":"user","data":{}}];</script>`
		if _, err := ParseHydration(html); !errors.Is(err, shared.ErrPlaylistNotFound) {
			t.Errorf("expected ErrPlaylistNotFound, got %v", err)
		}
	})
}

func TestTrackSlug(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"https://soundcloud.com/lobsta-b/7th-element-vip", "lobsta-b/7th-element-vip"},
		{"http://soundcloud.com/user/track/extra", "user/track"},
		{"https://soundcloud.com/user", "user"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := TrackSlug(tt.in); got != tt.want {
			t.Errorf("TrackSlug(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
