package tasks

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/desertthunder/spotiseek/internal/downloads"
	"github.com/desertthunder/spotiseek/internal/library"
	"github.com/desertthunder/spotiseek/internal/models"
	"github.com/desertthunder/spotiseek/internal/repositories"
	"github.com/desertthunder/spotiseek/internal/scheduler"
	"github.com/desertthunder/spotiseek/internal/services"
	"github.com/desertthunder/spotiseek/internal/shared"
	tu "github.com/desertthunder/spotiseek/internal/testing"
)

type mockScraper struct {
	mu        sync.Mutex
	playlists map[string]*services.ScrapedPlaylist
	calls     []string
}

func (m *mockScraper) Scrape(ctx context.Context, playlistURL string) (*services.ScrapedPlaylist, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, playlistURL)
	pl, ok := m.playlists[playlistURL]
	if !ok {
		return nil, shared.ErrUnsupportedPlatform
	}
	copied := *pl
	return &copied, nil
}

func setupPipeline(t *testing.T) (*Pipeline, *tu.FakeSlskd, *sql.DB) {
	t.Helper()

	db, err := shared.NewDatabase(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	if err := shared.RunMigrations(db); err != nil {
		db.Close()
		t.Fatalf("failed to run migrations: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	dir := t.TempDir()
	cfg := shared.DefaultConfig()
	cfg.App.BaseDir = dir
	cfg.Paths.DownloadsRoot = filepath.Join(dir, "downloads")
	cfg.Paths.M3U8Dir = filepath.Join(dir, "m3u8s")
	cfg.Paths.XMLDir = filepath.Join(dir, "xml")
	cfg.Paths.PlaylistsFile = filepath.Join(dir, "playlists_test.csv")
	cfg.Scrape.RequestsPerSecond = 1000

	logger := shared.NewLogger(io.Discard)
	fake := tu.NewFakeSlskd()
	orchestrator := downloads.NewOrchestrator(fake, db, cfg, logger)
	orchestrator.Remuxer.LookPath = func(string) (string, error) { return "", errors.New("not found") }

	scraper := &mockScraper{playlists: map[string]*services.ScrapedPlaylist{
		"https://open.spotify.com/playlist/one": {
			Name:   "Road Trip",
			Source: models.SourceSpotify,
			Tracks: []models.ScrapedTrack{
				{ID: "t1", Artist: "Artist", Title: "Song"},
				{ID: "", Artist: "Nobody", Title: "Missing"},
				{ID: "t2", Artist: "Other", Title: "Tune"},
			},
		},
		"https://soundcloud.com/someone/sets/two": {
			Name:   "Late Night",
			Source: models.SourceSoundCloud,
			Tracks: []models.ScrapedTrack{{ID: "t2", Artist: "Other", Title: "Tune"}},
		},
	}}
	return NewPipeline(orchestrator, scraper, cfg, logger), fake, db
}

func TestRegister(t *testing.T) {
	ctx := context.Background()
	p, _, db := setupPipeline(t)
	registry := scheduler.NewRegistry(repositories.NewTaskRepository(db), shared.NewLogger(io.Discard))

	if err := Register(ctx, registry, p); err != nil {
		t.Fatalf("failed to register: %v", err)
	}

	names := registry.Names()
	if len(names) != 8 {
		t.Fatalf("expected 8 tasks, got %v", names)
	}

	order, err := registry.DependencyOrder()
	if err != nil {
		t.Fatalf("expected no dependency cycle, got %v", err)
	}
	if len(order) != 8 {
		t.Errorf("expected every task in the order, got %v", order)
	}

	tests := []struct {
		name     string
		interval int
		deps     []string
	}{
		{TaskScrapePlaylists, 1440, nil},
		{TaskInitiateSearches, 60, []string{TaskScrapePlaylists}},
		{TaskPollSearchResults, 15, nil},
		{TaskSyncDownloadStatus, 5, nil},
		{TaskMarkQualityUpgrades, 1440, []string{TaskSyncDownloadStatus}},
		{TaskProcessUpgrades, 60, []string{TaskMarkQualityUpgrades}},
		{TaskExportLibrary, 1440, []string{TaskSyncDownloadStatus}},
		{TaskRemuxExistingFiles, 360, []string{TaskSyncDownloadStatus}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			def, ok := registry.Definition(tt.name)
			if !ok {
				t.Fatal("expected task to be registered")
			}
			if def.IntervalMinutes() != tt.interval {
				t.Errorf("expected interval %d, got %d", tt.interval, def.IntervalMinutes())
			}
			if strings.Join(def.Dependencies, ",") != strings.Join(tt.deps, ",") {
				t.Errorf("expected deps %v, got %v", tt.deps, def.Dependencies)
			}
			want := "TASK_" + strings.ToUpper(tt.name) + "_INTERVAL"
			if def.IntervalEnv != want {
				t.Errorf("expected env %s, got %s", want, def.IntervalEnv)
			}
			if !def.Enabled || def.DisplayName == "" {
				t.Errorf("expected enabled task with display name, got %+v", def)
			}
		})
	}

	t.Run("interval override", func(t *testing.T) {
		t.Setenv("TASK_SYNC_DOWNLOAD_STATUS_INTERVAL", "2")
		def, _ := registry.Definition(TaskSyncDownloadStatus)
		if def.IntervalMinutes() != 2 {
			t.Errorf("expected override to apply, got %d", def.IntervalMinutes())
		}
	})
}

func TestScrape(t *testing.T) {
	ctx := context.Background()

	t.Run("records playlists, tracks and m3u8 files", func(t *testing.T) {
		p, _, _ := setupPipeline(t)
		tu.MustWriteFile(t, p.Config.Paths.PlaylistsFile, strings.Join([]string{
			"https://open.spotify.com/playlist/one",
			"https://soundcloud.com/someone/sets/two",
			"https://example.com/unsupported",
			"",
		}, "\n"))

		res, err := p.Scrape(ctx)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if res.Succeeded != 2 || res.Failed != 1 || res.Tracks != 3 {
			t.Errorf("unexpected result %+v", res)
		}
		if res.SourcesFile != p.Config.Paths.PlaylistsFile {
			t.Errorf("unexpected sources file %s", res.SourcesFile)
		}

		ids, _ := p.Downloads.Playlists.PlaylistTrackIDs(ctx, "https://open.spotify.com/playlist/one")
		if strings.Join(ids, ",") != "t1,t2" {
			t.Errorf("expected t1,t2 linked in order, got %v", ids)
		}
		track, err := p.Downloads.Tracks.GetTrack(ctx, "t1")
		if err != nil {
			t.Fatalf("expected t1 to be stored: %v", err)
		}
		if track.Status != models.StatusPending || track.Source != models.SourceSpotify {
			t.Errorf("unexpected track %+v", track)
		}

		playlists, _ := p.Downloads.Playlists.PlaylistsForTrack(ctx, "t2")
		if len(playlists) != 2 {
			t.Errorf("expected t2 in both playlists, got %d", len(playlists))
		}

		path := library.M3U8Path(p.Config.Paths.M3U8Dir, "Road Trip")
		content := tu.MustReadFile(t, path)
		want := "#EXTM3U\n# t1 - Artist - Song\n# t2 - Other - Tune\n"
		if content != want {
			t.Errorf("unexpected m3u8 content:\n%s", content)
		}
	})

	t.Run("existing m3u8 files are kept", func(t *testing.T) {
		p, _, _ := setupPipeline(t)
		path := library.M3U8Path(p.Config.Paths.M3U8Dir, "Road Trip")
		if err := os.MkdirAll(p.Config.Paths.M3U8Dir, 0755); err != nil {
			t.Fatalf("failed to create m3u8 dir: %v", err)
		}
		tu.MustWriteFile(t, path, "#EXTM3U\n/music/already.flac\n")

		if _, err := p.ScrapeURLs(ctx, []string{"https://open.spotify.com/playlist/one"}); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if got := tu.MustReadFile(t, path); got != "#EXTM3U\n/music/already.flac\n" {
			t.Errorf("expected m3u8 to be left alone, got %q", got)
		}
	})

	t.Run("falls back to the shared sources file", func(t *testing.T) {
		p, _, _ := setupPipeline(t)
		fallback := p.Config.FallbackPlaylistsFile()
		if err := os.MkdirAll(filepath.Dir(fallback), 0755); err != nil {
			t.Fatalf("failed to create directory: %v", err)
		}
		tu.MustWriteFile(t, fallback, "https://soundcloud.com/someone/sets/two\n")

		res, err := p.Scrape(ctx)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if res.SourcesFile != fallback || res.Succeeded != 1 {
			t.Errorf("unexpected result %+v", res)
		}
	})

	t.Run("task fails without sources or when every playlist fails", func(t *testing.T) {
		p, _, _ := setupPipeline(t)
		if _, err := p.ScrapePlaylists(ctx); err == nil {
			t.Error("expected missing sources to fail the task")
		}

		tu.MustWriteFile(t, p.Config.Paths.PlaylistsFile, "https://example.com/a\nhttps://example.com/b\n")
		result, err := p.ScrapePlaylists(ctx)
		if err == nil || result.OK {
			t.Errorf("expected failure when nothing scraped, got %+v %v", result, err)
		}
	})

	t.Run("no scraper configured", func(t *testing.T) {
		p, _, _ := setupPipeline(t)
		p.Scraper = nil
		if _, err := p.ScrapeURLs(ctx, []string{"x"}); !errors.Is(err, shared.ErrServiceUnavailable) {
			t.Errorf("expected ErrServiceUnavailable, got %v", err)
		}
	})

	t.Run("progress updates", func(t *testing.T) {
		p, _, _ := setupPipeline(t)
		progress := make(chan ProgressUpdate, 10)
		p.Progress = progress

		if _, err := p.ScrapeURLs(ctx, []string{"https://open.spotify.com/playlist/one", "https://example.com/x"}); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		close(progress)

		var ok, failed int
		for u := range progress {
			if u.Phase != ScrapePlaylists || u.Total != 2 {
				t.Errorf("unexpected update %+v", u)
			}
			switch {
			case strings.Contains(u.Message, "✓"):
				ok++
			case strings.Contains(u.Message, "✗"):
				failed++
			}
		}
		if ok != 1 || failed != 1 {
			t.Errorf("expected one success and one failure, got %d/%d", ok, failed)
		}
	})
}

func TestExport(t *testing.T) {
	ctx := context.Background()
	p, _, _ := setupPipeline(t)
	if _, err := p.ScrapeURLs(ctx, []string{"https://open.spotify.com/playlist/one"}); err != nil {
		t.Fatalf("failed to scrape: %v", err)
	}
	local := filepath.Join(p.Config.Paths.DownloadsRoot, "Album", "Song.flac")
	if err := p.Downloads.Tracks.SetLocalFilePath(ctx, "t1", local); err != nil {
		t.Fatalf("failed to set path: %v", err)
	}
	if err := p.Downloads.Tracks.SetTrackStatus(ctx, "t1", models.StatusCompleted, ""); err != nil {
		t.Fatalf("failed to set status: %v", err)
	}

	t.Run("itunes xml", func(t *testing.T) {
		result, err := p.ExportLibrary(ctx)
		if err != nil || !result.OK {
			t.Fatalf("expected export to succeed, got %+v %v", result, err)
		}
		if result.TracksProcessed != 1 {
			t.Errorf("expected 1 exported track, got %d", result.TracksProcessed)
		}

		lib, err := library.ReadITunesXML(p.Config.Paths.XMLExportPath())
		if err != nil {
			t.Fatalf("failed to read library: %v", err)
		}
		if len(lib.Tracks) != 1 || len(lib.Playlists) != 1 {
			t.Fatalf("unexpected library %+v", lib)
		}
		if lib.Playlists[0].Name != "Road_Trip" || len(lib.Playlists[0].Items) != 1 {
			t.Errorf("unexpected playlist %+v", lib.Playlists[0])
		}
	})

	t.Run("m3u8 rebuild", func(t *testing.T) {
		n, err := p.RebuildM3U8(ctx)
		if err != nil || n != 1 {
			t.Fatalf("expected one playlist written, got %d %v", n, err)
		}
		content := tu.MustReadFile(t, library.M3U8Path(p.Config.Paths.M3U8Dir, "Road Trip"))
		want := "#EXTM3U\n" + local + "\n# t2 - Other - Tune\n"
		if content != want {
			t.Errorf("unexpected m3u8 content:\n%s", content)
		}
	})
}

func TestSlskdTasks(t *testing.T) {
	ctx := context.Background()

	t.Run("fail when slskd is not ready", func(t *testing.T) {
		p, fake, _ := setupPipeline(t)
		fake.Ready = false

		for _, def := range p.Definitions() {
			switch def.Name {
			case TaskInitiateSearches, TaskPollSearchResults, TaskSyncDownloadStatus, TaskProcessUpgrades:
				if _, err := def.Func(ctx); !errors.Is(err, shared.ErrServiceUnavailable) {
					t.Errorf("%s: expected ErrServiceUnavailable, got %v", def.Name, err)
				}
			}
		}
		if len(fake.Searches) != 0 {
			t.Errorf("expected no searches, got %v", fake.Searches)
		}
	})

	t.Run("run all drives tracks through the pipeline", func(t *testing.T) {
		p, fake, db := setupPipeline(t)
		tu.MustWriteFile(t, p.Config.Paths.PlaylistsFile, "https://open.spotify.com/playlist/one\n")
		fake.Responses["Artist Song"] = []models.SearchResponse{{
			Username: "peer",
			Files:    []models.CandidateFile{{ID: "f1", Filename: `Music\Album\Artist - Song.flac`, Size: 10}},
		}}

		registry := scheduler.NewRegistry(repositories.NewTaskRepository(db), shared.NewLogger(io.Discard))
		if err := Register(ctx, registry, p); err != nil {
			t.Fatalf("failed to register: %v", err)
		}

		outcomes := registry.RunAll(ctx)
		for _, o := range outcomes {
			if o.Name == TaskRemuxExistingFiles {
				if o.OK {
					t.Error("expected remux to fail without ffmpeg")
				}
				continue
			}
			if !o.OK {
				t.Errorf("%s failed: %s", o.Name, o.Message)
			}
		}

		// poll_search_results sorts ahead of initiate_searches, so searches are still open.
		track, _ := p.Downloads.Tracks.GetTrack(ctx, "t1")
		if track.Status != models.StatusSearching {
			t.Fatalf("expected t1 to be searching, got %s", track.Status)
		}

		if ok, msg := registry.Run(ctx, TaskPollSearchResults, false); !ok {
			t.Fatalf("expected poll to succeed, got %s", msg)
		}
		track, _ = p.Downloads.Tracks.GetTrack(ctx, "t1")
		if track.Status != models.StatusDownloading {
			t.Errorf("expected t1 to be downloading, got %s", track.Status)
		}
		other, _ := p.Downloads.Tracks.GetTrack(ctx, "t2")
		if other.Status != models.StatusNotFound {
			t.Errorf("expected t2 to be not_found, got %s", other.Status)
		}
		if len(fake.Enqueued) != 1 {
			t.Errorf("expected one enqueued file, got %d", len(fake.Enqueued))
		}
	})
}
