package tasks

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sync"

	"github.com/desertthunder/spotiseek/internal/library"
	"github.com/desertthunder/spotiseek/internal/models"
	"github.com/desertthunder/spotiseek/internal/scheduler"
	"github.com/desertthunder/spotiseek/internal/services"
	"github.com/desertthunder/spotiseek/internal/shared"
	"golang.org/x/time/rate"
)

// PlaylistResult is the outcome of scraping one playlist.
type PlaylistResult struct {
	URL    string
	Name   string
	Tracks int
	Error  error
}

// ScrapeResult summarizes a scrape over every playlist source.
type ScrapeResult struct {
	SourcesFile string
	Results     []PlaylistResult
	Succeeded   int
	Failed      int
	Tracks      int
}

type scrapeJob struct {
	index int
	url   string
}

type scrapeOutput struct {
	index    int
	url      string
	playlist *services.ScrapedPlaylist
	err      error
}

// ScrapePlaylists is the scrape_playlists task. It fails when the sources file is missing or
// every playlist failed to scrape.
func (p *Pipeline) ScrapePlaylists(ctx context.Context) (scheduler.Result, error) {
	res, err := p.Scrape(ctx)
	if err != nil {
		return scheduler.Result{}, err
	}
	if res.Succeeded == 0 && res.Failed > 0 {
		return scheduler.Result{TracksProcessed: res.Tracks}, fmt.Errorf("all %d playlists failed to scrape", res.Failed)
	}
	return scheduler.Result{OK: true, TracksProcessed: res.Tracks}, nil
}

// Scrape reads the configured playlist sources and scrapes them.
func (p *Pipeline) Scrape(ctx context.Context) (*ScrapeResult, error) {
	path, err := library.ResolvePlaylistSources(p.Config.Paths.PlaylistsFile, p.Config.FallbackPlaylistsFile())
	if err != nil {
		return nil, err
	}
	sendProgress(p.Progress, readingSourcesUpdate(path))

	urls, err := library.ReadPlaylistSources(path)
	if err != nil {
		return nil, err
	}
	res, err := p.ScrapeURLs(ctx, urls)
	if res != nil {
		res.SourcesFile = path
	}
	return res, err
}

// ScrapeURLs scrapes playlists concurrently and records each one in the track store.
//
// Fetches run on a bounded worker pool paced by a rate limiter; results are written to the
// store from the calling goroutine in completion order. A failed playlist does not stop the others.
func (p *Pipeline) ScrapeURLs(ctx context.Context, urls []string) (*ScrapeResult, error) {
	if p.Scraper == nil {
		return nil, fmt.Errorf("%w: no playlist scraper configured", shared.ErrServiceUnavailable)
	}

	result := &ScrapeResult{Results: make([]PlaylistResult, 0, len(urls))}
	if len(urls) == 0 {
		p.logger.Warn("no playlist sources to scrape")
		return result, nil
	}

	workers := min(p.Config.Scrape.WorkerCount(), len(urls))
	limiter := rate.NewLimiter(rate.Limit(p.Config.Scrape.Rate()), 1)

	jobs := make(chan scrapeJob, len(urls))
	outputs := make(chan scrapeOutput, len(urls))

	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go p.scrapeWorker(ctx, &wg, limiter, jobs, outputs)
	}

	for i, u := range urls {
		jobs <- scrapeJob{index: i, url: u}
	}
	close(jobs)

	go func() {
		wg.Wait()
		close(outputs)
	}()

	completed := 0
	for out := range outputs {
		completed++
		pr := PlaylistResult{URL: out.url, Error: out.err}
		if out.err == nil {
			pr.Name = out.playlist.Name
			pr.Tracks, pr.Error = p.SavePlaylist(ctx, out.url, out.playlist)
		}

		result.Results = append(result.Results, pr)
		if pr.Error != nil {
			result.Failed++
			p.logger.Error("failed to scrape playlist", "url", out.url, "err", pr.Error)
			sendProgress(p.Progress, scrapeFailedUpdate(completed, len(urls), pr))
			continue
		}
		result.Succeeded++
		result.Tracks += pr.Tracks
		p.logger.Info("scraped playlist", "name", pr.Name, "tracks", pr.Tracks)
		sendProgress(p.Progress, scrapedPlaylistUpdate(completed, len(urls), pr))
	}

	return result, ctx.Err()
}

func (p *Pipeline) scrapeWorker(
	ctx context.Context,
	wg *sync.WaitGroup,
	limiter *rate.Limiter,
	jobs <-chan scrapeJob,
	outputs chan<- scrapeOutput,
) {
	defer wg.Done()

	for job := range jobs {
		out := scrapeOutput{index: job.index, url: job.url}
		if err := limiter.Wait(ctx); err != nil {
			out.err = err
		} else {
			out.playlist, out.err = p.Scraper.Scrape(ctx, job.url)
		}
		outputs <- out
	}
}

// SavePlaylist upserts the playlist, inserts and links its tracks, and writes its m3u8 file
// when none exists yet. It returns the number of tracks linked.
func (p *Pipeline) SavePlaylist(ctx context.Context, playlistURL string, scraped *services.ScrapedPlaylist) (int, error) {
	store := p.Downloads
	m3u8Path := library.M3U8Path(p.Config.Paths.M3U8Dir, scraped.Name)

	pl := &models.Playlist{URL: playlistURL, Name: scraped.Name, M3U8Path: m3u8Path, Source: scraped.Source}
	if err := store.Playlists.UpsertPlaylist(ctx, pl); err != nil {
		return 0, err
	}

	entries := make([]library.M3U8Entry, 0, len(scraped.Tracks))
	linked := 0
	for i, tr := range scraped.Tracks {
		if tr.ID == "" {
			continue
		}
		if err := store.Tracks.AddTrack(ctx, tr.ID, tr.Title, tr.Artist, scraped.Source); err != nil {
			return linked, err
		}
		if err := store.Playlists.LinkTrack(ctx, playlistURL, tr.ID, i); err != nil {
			return linked, err
		}
		entries = append(entries, library.M3U8Entry{TrackID: tr.ID, Artist: tr.Artist, Title: tr.Title})
		linked++
	}

	if _, err := os.Stat(m3u8Path); errors.Is(err, fs.ErrNotExist) {
		if err := library.WriteM3U8(m3u8Path, entries); err != nil {
			return linked, err
		}
	}
	return linked, nil
}
