package quality

import (
	"context"
	"io"
	"sort"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/spotiseek/internal/models"
	"github.com/desertthunder/spotiseek/internal/shared"
)

// alternativeKeywords mark remixes, edits and other non-original versions.
var alternativeKeywords = []string{
	"remix", "edit", "bootleg", "mashup", "mix", "acapella",
	"instrumental", "sped up", "slowed", "cover", "karaoke",
	"tribute", "demo", "live", "acoustic", "version", "remaster",
	"flip", "extended", "rework", "re-edit", "dub", "radio",
}

// Blacklist reports whether a slskd file id must be skipped.
type Blacklist interface {
	IsBlacklisted(ctx context.Context, id string) (bool, error)
}

// Candidate is a file paired with the peer offering it.
type Candidate struct {
	File     models.CandidateFile
	Username string
}

// Selector picks the best candidate from search responses.
//
// Strict selectors additionally drop non-audio files and lossy files below [BitrateFloor].
type Selector struct {
	Blacklist Blacklist
	Strict    bool
	logger    *log.Logger
}

// NewSelector creates a Selector. Both blacklist and logger may be nil.
func NewSelector(blacklist Blacklist, strict bool, logger *log.Logger) *Selector {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &Selector{Blacklist: blacklist, Strict: strict, logger: logger}
}

// AllowsAlternatives reports whether the query itself asks for a remix, edit or similar.
func AllowsAlternatives(searchText string) bool {
	return containsKeyword(searchText)
}

// IsOriginalVersion reports whether filename looks like an original version.
func IsOriginalVersion(filename string, allowAlternatives bool) bool {
	return allowAlternatives || !containsKeyword(filename)
}

func containsKeyword(s string) bool {
	s = strings.ToLower(s)
	for _, kw := range alternativeKeywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}

// SelectBestFile returns the best candidate across all responses, or ok=false when none survives.
func (s *Selector) SelectBestFile(ctx context.Context, responses []models.SearchResponse, searchText string) (Candidate, bool) {
	allowAlternatives := AllowsAlternatives(searchText)

	var candidates []Candidate
	var total, blacklisted, rejected int
	for _, resp := range responses {
		for _, f := range resp.Files {
			total++
			if s.isBlacklisted(ctx, f.ID) {
				blacklisted++
				continue
			}
			if s.Strict && (!IsAudioFile(f) || !MeetsBitrateRequirements(f)) {
				rejected++
				continue
			}
			candidates = append(candidates, Candidate{File: f, Username: resp.Username})
		}
	}

	s.logger.Debug("collected candidates", "total", total, "candidates", len(candidates),
		"blacklisted", blacklisted, "rejected", rejected, "allow_alternatives", allowAlternatives)

	if len(candidates) == 0 {
		return Candidate{}, false
	}

	pool := candidates
	if !allowAlternatives {
		var originals []Candidate
		for _, c := range candidates {
			if IsOriginalVersion(c.File.Filename, false) {
				originals = append(originals, c)
			}
		}
		if len(originals) > 0 {
			pool = originals
		} else {
			s.logger.Debug("no original versions, using all candidates", "candidates", len(candidates))
		}
	}

	SortByQuality(pool)
	best := pool[0]
	ext, bitrate := ExtractQuality(best.File)
	s.logger.Debug("selected file", "filename", best.File.Filename, "username", best.Username,
		"extension", ext, "bitrate", bitrate, "pool", len(pool))
	return best, true
}

func (s *Selector) isBlacklisted(ctx context.Context, id string) bool {
	if s.Blacklist == nil || id == "" {
		return false
	}
	ok, err := s.Blacklist.IsBlacklisted(ctx, id)
	if err != nil {
		s.logger.Warn("blacklist lookup failed", "id", id, "err", err)
		return false
	}
	return ok
}

// SelectBestFile is [Selector.SelectBestFile] without a blacklist in non-strict mode.
func SelectBestFile(responses []models.SearchResponse, searchText string) (Candidate, bool) {
	return NewSelector(nil, false, log.New(io.Discard)).SelectBestFile(context.Background(), responses, searchText)
}

// SortByQuality stable-sorts candidates best first by (format rank, mp3 bitrate).
func SortByQuality(candidates []Candidate) {
	sort.SliceStable(candidates, func(i, j int) bool {
		ri, bi := sortKey(candidates[i].File)
		rj, bj := sortKey(candidates[j].File)
		if ri != rj {
			return ri > rj
		}
		return bi > bj
	})
}

func sortKey(f models.CandidateFile) (int, int) {
	ext, bitrate := ExtractQuality(f)
	rank := Rank(ext)
	if rank == RankMP3 && bitrate != nil {
		return rank, *bitrate
	}
	return rank, 0
}
