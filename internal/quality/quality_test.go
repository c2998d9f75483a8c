package quality

import (
	"context"
	"errors"
	"testing"

	"github.com/desertthunder/spotiseek/internal/models"
)

func bitrate(v int) *int { return &v }

func file(name string, br *int) models.CandidateFile {
	return models.CandidateFile{Filename: name, BitRate: br}
}

func TestExtractQuality(t *testing.T) {
	tc := []struct {
		name    string
		file    models.CandidateFile
		wantExt string
		wantBR  *int
	}{
		{"explicit extension", models.CandidateFile{Filename: "a.bin", Extension: "MP3", BitRate: bitrate(320)}, "mp3", bitrate(320)},
		{"dotted extension", models.CandidateFile{Filename: "a.bin", Extension: ".FLAC"}, "flac", nil},
		{"filename fallback", file(`Music\Artist\Song.WAV`, nil), "wav", nil},
		{"no extension", file("README", nil), "", nil},
		{"trailing dot", file("song.", nil), "", nil},
	}

	for _, tt := range tc {
		t.Run(tt.name, func(t *testing.T) {
			ext, br := ExtractQuality(tt.file)
			if ext != tt.wantExt {
				t.Errorf("ext = %q, want %q", ext, tt.wantExt)
			}
			if (br == nil) != (tt.wantBR == nil) || (br != nil && *br != *tt.wantBR) {
				t.Errorf("bitrate = %v, want %v", br, tt.wantBR)
			}
		})
	}
}

func TestIsUpgrade(t *testing.T) {
	tc := []struct {
		name      string
		candidate models.CandidateFile
		ext       string
		br        *int
		want      bool
	}{
		{"flac over mp3 192", file("a.flac", nil), "mp3", bitrate(192), true},
		{"flac over mp3 320", file("a.flac", nil), "mp3", bitrate(320), false},
		{"flac over mp3 unknown bitrate", file("a.flac", nil), "mp3", nil, false},
		{"flac over flac", file("a.flac", nil), "flac", nil, false},
		{"flac over wav", file("a.flac", nil), "wav", nil, false},
		{"flac over ogg", file("a.flac", nil), "ogg", bitrate(500), true},
		{"wav over wav", file("a.wav", nil), "wav", nil, false},
		{"wav over flac", file("a.wav", nil), "flac", nil, true},
		{"wav over mp3", file("a.wav", nil), "mp3", bitrate(320), true},
		{"mp3 320 over mp3 256", file("a.mp3", bitrate(320)), "mp3", bitrate(256), true},
		{"mp3 256 over mp3 320", file("a.mp3", bitrate(256)), "mp3", bitrate(320), false},
		{"mp3 equal bitrate", file("a.mp3", bitrate(320)), "mp3", bitrate(320), false},
		{"mp3 unknown bitrate", file("a.mp3", nil), "mp3", bitrate(128), false},
		{"mp3 over unknown current bitrate", file("a.mp3", bitrate(320)), "mp3", nil, false},
		{"mp3 over m4a", file("a.mp3", bitrate(128)), "m4a", bitrate(256), true},
		{"mp3 over flac", file("a.mp3", bitrate(320)), "flac", nil, false},
		{"mp3 over wav", file("a.mp3", bitrate(320)), "wav", nil, false},
		{"ogg over mp3", file("a.ogg", bitrate(500)), "mp3", bitrate(128), false},
		{"uppercase current", file("a.flac", nil), "MP3", bitrate(128), true},
	}

	for _, tt := range tc {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsUpgrade(tt.candidate, tt.ext, tt.br); got != tt.want {
				t.Errorf("IsUpgrade() = %v, want %v", got, tt.want)
			}
		})
	}

	t.Run("nothing beats wav", func(t *testing.T) {
		for _, f := range []models.CandidateFile{
			file("a.wav", nil), file("a.flac", nil), file("a.mp3", bitrate(320)), file("a.ogg", nil), file("a", nil),
		} {
			if IsUpgrade(f, "wav", bitrate(1411)) {
				t.Errorf("%s should not upgrade wav", f.Filename)
			}
		}
	})
}

func TestStrictFilters(t *testing.T) {
	t.Run("IsAudioFile", func(t *testing.T) {
		if !IsAudioFile(file("a.opus", nil)) {
			t.Error("expected opus to be audio")
		}
		if IsAudioFile(file("cover.jpg", nil)) {
			t.Error("expected jpg not to be audio")
		}
	})

	t.Run("MeetsBitrateRequirements", func(t *testing.T) {
		tc := []struct {
			file models.CandidateFile
			want bool
		}{
			{file("a.flac", nil), true},
			{file("a.ape", nil), true},
			{file("a.mp3", bitrate(320)), true},
			{file("a.mp3", bitrate(256)), false},
			{file("a.mp3", nil), false},
			{file("a.ogg", bitrate(500)), true},
		}
		for _, tt := range tc {
			if got := MeetsBitrateRequirements(tt.file); got != tt.want {
				t.Errorf("MeetsBitrateRequirements(%s) = %v, want %v", tt.file.Filename, got, tt.want)
			}
		}
	})
}

type fakeBlacklist struct {
	ids map[string]bool
	err error
}

func (f fakeBlacklist) IsBlacklisted(_ context.Context, id string) (bool, error) {
	return f.ids[id], f.err
}

func TestSelectBestFile(t *testing.T) {
	t.Run("remix filtered out", func(t *testing.T) {
		responses := []models.SearchResponse{{
			Username: "peer",
			Files: []models.CandidateFile{
				file("Artist - Track Remix.mp3", bitrate(320)),
				file("Artist - Track.flac", nil),
			},
		}}

		got, ok := SelectBestFile(responses, "Artist Track")
		if !ok {
			t.Fatal("expected a candidate")
		}
		if got.File.Filename != "Artist - Track.flac" || got.Username != "peer" {
			t.Errorf("unexpected selection: %+v", got)
		}
	})

	t.Run("empty responses", func(t *testing.T) {
		if _, ok := SelectBestFile(nil, "x"); ok {
			t.Error("expected no candidate")
		}
		if _, ok := SelectBestFile([]models.SearchResponse{{Username: "peer"}}, "x"); ok {
			t.Error("expected no candidate for empty file list")
		}
	})

	t.Run("falls back when every file is an alternative", func(t *testing.T) {
		responses := []models.SearchResponse{{
			Username: "peer",
			Files: []models.CandidateFile{
				file("Track (Live).mp3", bitrate(192)),
				file("Track (Radio Edit).mp3", bitrate(320)),
			},
		}}

		got, ok := SelectBestFile(responses, "Artist Track")
		if !ok {
			t.Fatal("expected a candidate")
		}
		if got.File.Filename != "Track (Radio Edit).mp3" {
			t.Errorf("expected highest bitrate fallback, got %s", got.File.Filename)
		}
	})

	t.Run("alternatives allowed by query", func(t *testing.T) {
		responses := []models.SearchResponse{{
			Username: "peer",
			Files: []models.CandidateFile{
				file("Track.mp3", bitrate(320)),
				file("Track Remix.wav", nil),
			},
		}}

		got, _ := SelectBestFile(responses, "Artist Track Remix")
		if got.File.Filename != "Track Remix.wav" {
			t.Errorf("expected wav remix, got %s", got.File.Filename)
		}
	})

	t.Run("ranking across peers", func(t *testing.T) {
		responses := []models.SearchResponse{
			{Username: "a", Files: []models.CandidateFile{file("t.mp3", bitrate(256)), file("t.ogg", bitrate(500))}},
			{Username: "b", Files: []models.CandidateFile{file("t.mp3", bitrate(320))}},
			{Username: "c", Files: []models.CandidateFile{file("t.flac", nil)}},
		}

		got, _ := SelectBestFile(responses, "Artist Track")
		if got.Username != "c" {
			t.Errorf("expected flac from c, got %+v", got)
		}
	})

	t.Run("stable for ties", func(t *testing.T) {
		responses := []models.SearchResponse{
			{Username: "first", Files: []models.CandidateFile{file("t.flac", nil)}},
			{Username: "second", Files: []models.CandidateFile{file("t.flac", nil)}},
		}

		got, _ := SelectBestFile(responses, "Artist Track")
		if got.Username != "first" {
			t.Errorf("expected first peer to win ties, got %s", got.Username)
		}
	})

	t.Run("blacklist", func(t *testing.T) {
		responses := []models.SearchResponse{{
			Username: "peer",
			Files: []models.CandidateFile{
				{ID: "bad", Filename: "t.wav"},
				{ID: "good", Filename: "t.mp3", BitRate: bitrate(320)},
			},
		}}
		selector := NewSelector(fakeBlacklist{ids: map[string]bool{"bad": true}}, false, nil)

		got, ok := selector.SelectBestFile(context.Background(), responses, "Artist Track")
		if !ok || got.File.ID != "good" {
			t.Errorf("expected blacklisted wav to be skipped, got %+v", got)
		}
	})

	t.Run("blacklist lookup error fails open", func(t *testing.T) {
		responses := []models.SearchResponse{{Username: "peer", Files: []models.CandidateFile{{ID: "x", Filename: "t.wav"}}}}
		selector := NewSelector(fakeBlacklist{err: errors.New("db closed")}, false, nil)

		if _, ok := selector.SelectBestFile(context.Background(), responses, "Artist Track"); !ok {
			t.Error("expected candidate when blacklist lookup fails")
		}
	})

	t.Run("strict mode", func(t *testing.T) {
		responses := []models.SearchResponse{{
			Username: "peer",
			Files: []models.CandidateFile{
				file("cover.jpg", nil),
				file("t.mp3", bitrate(192)),
			},
		}}

		if _, ok := NewSelector(nil, true, nil).SelectBestFile(context.Background(), responses, "Artist Track"); ok {
			t.Error("expected strict selector to reject low bitrate and non-audio files")
		}
		if _, ok := NewSelector(nil, false, nil).SelectBestFile(context.Background(), responses, "Artist Track"); !ok {
			t.Error("expected default selector to accept the mp3")
		}
	})
}
