package library

import (
	"bufio"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

const m3u8Header = "#EXTM3U"

var invalidFilenameChars = regexp.MustCompile(`[<>:"/\\|?*,]`)

// M3U8Entry is a playlist line waiting for its download.
type M3U8Entry struct {
	TrackID string
	Artist  string
	Title   string
}

func (e M3U8Entry) comment() string {
	return fmt.Sprintf("# %s - %s - %s", e.TrackID, e.Artist, e.Title)
}

// SanitizePlaylistName makes a playlist name safe to use as a file name on any OS.
func SanitizePlaylistName(name string) string {
	name = invalidFilenameChars.ReplaceAllString(name, "_")
	return strings.ReplaceAll(name, " ", "_")
}

// M3U8Path returns the playlist file for name inside dir.
func M3U8Path(dir, name string) string {
	return filepath.Join(dir, SanitizePlaylistName(name)+".m3u8")
}

// WriteM3U8 creates (or truncates) a playlist file with one comment line per track.
//
// Comments are replaced with file paths by [UpdateM3U8Track] as downloads complete.
func WriteM3U8(path string, entries []M3U8Entry) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create playlist directory: %w", err)
	}

	var b strings.Builder
	b.WriteString(m3u8Header + "\n")
	for _, e := range entries {
		b.WriteString(e.comment() + "\n")
	}

	if err := os.WriteFile(path, []byte(b.String()), 0644); err != nil {
		return fmt.Errorf("failed to write playlist %s: %w", path, err)
	}
	return nil
}

// UpdateM3U8Track replaces the first comment line for trackID with localPath.
//
// A missing file or an absent comment is not an error; updated reports whether the file changed.
func UpdateM3U8Track(path, trackID, localPath string) (updated bool, err error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to open playlist %s: %w", path, err)
	}

	prefix := "# " + trackID + " - "
	var lines []string
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if !updated && strings.HasPrefix(line, prefix) {
			line = localPath
			updated = true
		}
		lines = append(lines, line)
	}
	f.Close()
	if err := scanner.Err(); err != nil {
		return false, fmt.Errorf("failed to read playlist %s: %w", path, err)
	}

	if !updated {
		return false, nil
	}

	content := strings.Join(lines, "\n") + "\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		return false, fmt.Errorf("failed to write playlist %s: %w", path, err)
	}
	return true, nil
}

// ReplaceM3U8Path swaps an already-written file path for a new one, used after remuxing.
func ReplaceM3U8Path(path, oldPath, newPath string) (bool, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read playlist %s: %w", path, err)
	}

	lines := strings.Split(string(data), "\n")
	updated := false
	for i, line := range lines {
		if strings.TrimRight(line, "\r") == oldPath {
			lines[i] = newPath
			updated = true
		}
	}
	if !updated {
		return false, nil
	}

	if err := os.WriteFile(path, []byte(strings.Join(lines, "\n")), 0644); err != nil {
		return false, fmt.Errorf("failed to write playlist %s: %w", path, err)
	}
	return true, nil
}

// DeleteAllM3U8 removes every .m3u8 file under dir and returns how many were deleted.
//
// Individual failures are collected; the walk continues past them.
func DeleteAllM3U8(dir string) (int, error) {
	var deleted int
	var failed []string

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) && path == dir {
				return fs.SkipAll
			}
			return err
		}
		if d.IsDir() || !strings.EqualFold(filepath.Ext(path), ".m3u8") {
			return nil
		}
		if err := os.Remove(path); err != nil {
			failed = append(failed, path)
			return nil
		}
		deleted++
		return nil
	})
	if err != nil {
		return deleted, fmt.Errorf("failed to walk %s: %w", dir, err)
	}
	if len(failed) > 0 {
		return deleted, fmt.Errorf("failed to delete %d playlist files: %s", len(failed), strings.Join(failed, ", "))
	}
	return deleted, nil
}
