package library

import (
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/spotiseek/internal/shared"
)

// RemuxBitrate is the bitrate lossy sources are re-encoded to.
const RemuxBitrate = 320

var (
	losslessSources = map[string]bool{"flac": true, "alac": true, "ape": true}
	lossySources    = map[string]bool{"ogg": true, "m4a": true, "aac": true, "wma": true, "opus": true}
)

// CommandRunner executes name with args and returns its combined output.
type CommandRunner func(ctx context.Context, name string, args ...string) ([]byte, error)

func execRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

// RemuxResult describes the file a track should point at after remuxing.
type RemuxResult struct {
	Path      string
	Extension string
	Bitrate   *int
	Remuxed   bool
}

// RemuxTarget returns the extension a file with ext is converted to.
//
// Lossless formats become wav and lossy formats other than mp3 become 320 kbps mp3.
func RemuxTarget(ext string) (string, bool) {
	ext = strings.ToLower(strings.TrimPrefix(ext, "."))
	switch {
	case losslessSources[ext]:
		return "wav", true
	case lossySources[ext]:
		return "mp3", true
	default:
		return "", false
	}
}

// Remuxer converts downloads to the library's two formats with ffmpeg.
type Remuxer struct {
	FFmpeg   string
	Run      CommandRunner
	LookPath func(file string) (string, error)
	logger   *log.Logger
}

// NewRemuxer creates a Remuxer for the ffmpeg binary at path ("ffmpeg" when empty).
func NewRemuxer(ffmpeg string, logger *log.Logger) *Remuxer {
	if ffmpeg == "" {
		ffmpeg = "ffmpeg"
	}
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &Remuxer{
		FFmpeg:   ffmpeg,
		Run:      execRunner,
		LookPath: exec.LookPath,
		logger:   shared.WithLogger(logger, "component", "remux"),
	}
}

// Available reports an error wrapping [shared.ErrServiceUnavailable] when ffmpeg cannot be found.
func (r *Remuxer) Available() error {
	if _, err := r.LookPath(r.FFmpeg); err != nil {
		return fmt.Errorf("%w: ffmpeg not found (%s): %v", shared.ErrServiceUnavailable, r.FFmpeg, err)
	}
	return nil
}

// Verify decodes the whole file and reports [shared.ErrCorruptAudio] if ffmpeg finds errors.
func (r *Remuxer) Verify(ctx context.Context, path string) error {
	out, err := r.Run(ctx, r.FFmpeg, "-v", "error", "-i", filepath.ToSlash(path), "-f", "null", "-")
	if err != nil {
		return fmt.Errorf("%w: %s: %s", shared.ErrCorruptAudio, path, strings.TrimSpace(string(out)))
	}
	return nil
}

// Remux converts path (with extension ext) to its target format next to the original.
//
// Files with no target are returned unchanged. The source file is verified before conversion
// and kept on disk afterwards.
func (r *Remuxer) Remux(ctx context.Context, path, ext string) (*RemuxResult, error) {
	ext = strings.ToLower(strings.TrimPrefix(ext, "."))
	target, ok := RemuxTarget(ext)
	if !ok {
		return &RemuxResult{Path: path, Extension: ext}, nil
	}

	if err := r.Verify(ctx, path); err != nil {
		return nil, err
	}

	out := strings.TrimSuffix(path, filepath.Ext(path)) + "." + target
	args := []string{"-y", "-i", filepath.ToSlash(path)}
	result := &RemuxResult{Path: out, Extension: target, Remuxed: true}
	if target == "wav" {
		args = append(args, "-codec:a", "pcm_s16le", "-ar", "44100")
	} else {
		args = append(args, "-codec:a", "libmp3lame", "-b:a", fmt.Sprintf("%dk", RemuxBitrate))
		bitrate := RemuxBitrate
		result.Bitrate = &bitrate
	}
	args = append(args, filepath.ToSlash(out))

	r.logger.Info("remuxing", "from", ext, "to", target, "path", path)
	if output, err := r.Run(ctx, r.FFmpeg, args...); err != nil {
		return nil, fmt.Errorf("ffmpeg failed converting %s to %s: %w: %s", path, target, err, strings.TrimSpace(string(output)))
	}
	return result, nil
}
