// package services defines interface Scraper for reading playlists from streaming platforms
//
// Spotify, SoundCloud, and the slskd download daemon
package services

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/desertthunder/spotiseek/internal/models"
	"github.com/desertthunder/spotiseek/internal/shared"
)

// Platform identifiers returned by [DetectPlatform].
const (
	PlatformSpotify    = models.SourceSpotify
	PlatformSoundCloud = models.SourceSoundCloud
	PlatformUnknown    = "unknown"
)

// Scraper reads the name and tracks of a public playlist.
type Scraper interface {
	// Scrape fetches every track in the playlist at playlistURL, in playlist order.
	Scrape(ctx context.Context, playlistURL string) (*ScrapedPlaylist, error)

	// Name returns the platform name (e.g., "Spotify", "SoundCloud")
	Name() string
}

// ScrapedPlaylist is a playlist as read from its platform.
type ScrapedPlaylist struct {
	Name   string
	Source string
	Tracks []models.ScrapedTrack
}

// DetectPlatform identifies the streaming platform from a playlist URL.
func DetectPlatform(playlistURL string) string {
	switch {
	case strings.Contains(playlistURL, "spotify.com/playlist/"):
		return PlatformSpotify
	case strings.Contains(playlistURL, "soundcloud.com/") && strings.Contains(playlistURL, "/sets/"):
		return PlatformSoundCloud
	default:
		return PlatformUnknown
	}
}

// Dispatcher routes playlist URLs to the scraper for their platform.
type Dispatcher struct {
	scrapers map[string]Scraper
}

// NewDispatcher creates a Dispatcher. A nil scraper leaves its platform unavailable.
func NewDispatcher(spotify, soundcloud Scraper) *Dispatcher {
	d := &Dispatcher{scrapers: map[string]Scraper{}}
	if spotify != nil {
		d.scrapers[PlatformSpotify] = spotify
	}
	if soundcloud != nil {
		d.scrapers[PlatformSoundCloud] = soundcloud
	}
	return d
}

// Scrape detects the platform of playlistURL and delegates to its scraper.
func (d *Dispatcher) Scrape(ctx context.Context, playlistURL string) (*ScrapedPlaylist, error) {
	platform := DetectPlatform(playlistURL)
	if platform == PlatformUnknown {
		return nil, fmt.Errorf("%w: %s", shared.ErrUnsupportedPlatform, playlistURL)
	}

	scraper, ok := d.scrapers[platform]
	if !ok {
		return nil, fmt.Errorf("%w: no %s scraper configured", shared.ErrMissingCredentials, platform)
	}

	playlist, err := scraper.Scrape(ctx, playlistURL)
	if err != nil {
		return nil, err
	}
	playlist.Source = platform
	return playlist, nil
}

var (
	bracketed = regexp.MustCompile(`\[[^\]]*\]`)
	promo     = []*regexp.Regexp{
		regexp.MustCompile(`(?i)free\s*d/?l`),
		regexp.MustCompile(`(?i)free\s*download`),
		regexp.MustCompile(`(?i)out\s*now`),
		regexp.MustCompile(`(?i)buy\s*=\s*free`),
		regexp.MustCompile(`(?i)click\s*buy`),
	}
	emoji = regexp.MustCompile(`[\x{1F600}-\x{1F64F}\x{1F300}-\x{1F5FF}\x{1F680}-\x{1F6FF}` +
		`\x{1F1E0}-\x{1F1FF}\x{2700}-\x{27BF}\x{1F900}-\x{1F9FF}\x{2600}-\x{26FF}` +
		`\x{1FA00}-\x{1FA6F}\x{1FA70}-\x{1FAFF}]+`)
	emptyParens = regexp.MustCompile(`\(\s*\)`)
	shortParens = regexp.MustCompile(`\(\s*(\d+\s+years?\s+of\s+)?[\w\s]{0,30}\s*\)`)

	meaningfulParens = []string{
		"remix", "edit", "mix", "version", "original", "vip", "flip",
		"rework", "dub", "extended", "radio", "club", "instrumental", "bootleg",
	}
)

// CleanName normalizes a track or artist name for peer-to-peer searching.
//
// Bracketed and promotional text, emoji and search-hostile punctuation are removed,
// short parenthesized junk is dropped unless it names a version (remix, vip, ...),
// and whitespace is collapsed.
func CleanName(name string) string {
	name = bracketed.ReplaceAllString(name, "")
	for _, re := range promo {
		name = re.ReplaceAllString(name, "")
	}
	name = emoji.ReplaceAllString(name, "")

	name = strings.ReplaceAll(name, ",", "")
	name = strings.ReplaceAll(name, " - ", " ")
	name = strings.ReplaceAll(name, "&", "")

	name = emptyParens.ReplaceAllString(name, "")
	name = shortParens.ReplaceAllStringFunc(name, func(m string) string {
		inner := strings.ToLower(strings.Trim(m, "()"))
		for _, kw := range meaningfulParens {
			if strings.Contains(inner, kw) {
				return m
			}
		}
		return ""
	})

	return strings.Join(strings.Fields(name), " ")
}
