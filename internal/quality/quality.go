// Package quality ranks candidate files and decides whether a new file is an upgrade over
// an existing download.
//
// The ordering is WAV > FLAC > MP3 (by bitrate) > everything else, with one policy exception:
// FLAC does not replace an MP3 that already reaches [BitrateFloor], because lossy sources are
// remuxed to that floor.
package quality

import (
	"path"
	"strings"

	"github.com/desertthunder/spotiseek/internal/models"
)

// BitrateFloor is the minimum acceptable lossy bitrate in kbps.
const BitrateFloor = 320

// Format ranks used when sorting candidates.
const (
	RankOther = iota
	RankMP3
	RankFLAC
	RankWAV
)

var audioExtensions = map[string]bool{
	"wav": true, "flac": true, "mp3": true, "ogg": true, "m4a": true,
	"aac": true, "alac": true, "ape": true, "wma": true, "opus": true,
}

var losslessExtensions = map[string]bool{"wav": true, "flac": true, "alac": true, "ape": true}

// ExtractQuality returns the lowercase extension and bitrate of f.
//
// The explicit extension field wins; otherwise the suffix of the filename is used.
func ExtractQuality(f models.CandidateFile) (string, *int) {
	ext := strings.ToLower(strings.TrimPrefix(strings.TrimSpace(f.Extension), "."))
	if ext == "" {
		ext = Extension(f.Filename)
	}
	return ext, f.BitRate
}

// Extension returns the lowercase suffix of a local or remote (backslash separated) filename.
func Extension(filename string) string {
	name := path.Base(strings.ReplaceAll(filename, `\`, "/"))
	if i := strings.LastIndex(name, "."); i >= 0 && i < len(name)-1 {
		return strings.ToLower(name[i+1:])
	}
	return ""
}

// Rank returns the format rank of ext.
func Rank(ext string) int {
	switch ext {
	case "wav":
		return RankWAV
	case "flac":
		return RankFLAC
	case "mp3":
		return RankMP3
	}
	return RankOther
}

// IsUpgrade reports whether candidate is better than a stored file with the given extension and bitrate.
func IsUpgrade(candidate models.CandidateFile, currentExt string, currentBitrate *int) bool {
	ext, bitrate := ExtractQuality(candidate)
	currentExt = strings.ToLower(currentExt)

	switch ext {
	case "wav":
		return currentExt != "wav"
	case "flac":
		switch currentExt {
		case "wav", "flac":
			return false
		case "mp3":
			return currentBitrate != nil && *currentBitrate < BitrateFloor
		}
		return true
	case "mp3":
		switch currentExt {
		case "mp3":
			return positive(bitrate) && positive(currentBitrate) && *bitrate > *currentBitrate
		case "wav", "flac":
			return false
		}
		return true
	}
	return false
}

// IsTopQuality reports whether a stored extension can never be upgraded.
func IsTopQuality(ext string) bool {
	return strings.ToLower(ext) == "wav"
}

// IsAudioFile reports whether f has a supported audio extension.
func IsAudioFile(f models.CandidateFile) bool {
	ext, _ := ExtractQuality(f)
	return audioExtensions[ext]
}

// IsAudioExtension is [IsAudioFile] for a bare extension.
func IsAudioExtension(ext string) bool {
	return audioExtensions[strings.ToLower(ext)]
}

// MeetsBitrateRequirements accepts lossless files and lossy files with a known bitrate at or above the floor.
func MeetsBitrateRequirements(f models.CandidateFile) bool {
	ext, bitrate := ExtractQuality(f)
	if losslessExtensions[ext] {
		return true
	}
	return bitrate != nil && *bitrate >= BitrateFloor
}

func positive(v *int) bool {
	return v != nil && *v > 0
}
