package library

import (
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/desertthunder/spotiseek/internal/models"
	"howett.net/plist"
)

const (
	itunesAppVersion   = "3.5.8698.34385"
	itunesLibraryID    = "SPOTISEEKLIB0000001"
	itunesKind         = "MPEG audio file"
	itunesTrackTypeKey = "File"
	containerPrefix    = "/app/"
)

// ITunesTrack is one entry of the library's Tracks dictionary.
type ITunesTrack struct {
	TrackID      int    `plist:"Track ID"`
	Name         string `plist:"Name"`
	Artist       string `plist:"Artist"`
	Kind         string `plist:"Kind"`
	TrackType    string `plist:"Track Type"`
	PersistentID string `plist:"Persistent ID"`
	Location     string `plist:"Location"`
}

// ITunesPlaylistItem references a track by its library Track ID.
type ITunesPlaylistItem struct {
	TrackID int `plist:"Track ID"`
}

// ITunesPlaylist is one entry of the library's Playlists array.
type ITunesPlaylist struct {
	PlaylistID   int                  `plist:"Playlist ID"`
	PersistentID string               `plist:"Playlist Persistent ID"`
	AllItems     bool                 `plist:"All Items"`
	Name         string               `plist:"Name"`
	Items        []ITunesPlaylistItem `plist:"Playlist Items"`
}

// ITunesLibrary is an iTunes Music Library.xml document, readable by MusicBee and similar players.
type ITunesLibrary struct {
	MajorVersion        int                    `plist:"Major Version"`
	MinorVersion        int                    `plist:"Minor Version"`
	ApplicationVersion  string                 `plist:"Application Version"`
	MusicFolder         string                 `plist:"Music Folder"`
	LibraryPersistentID string                 `plist:"Library Persistent ID"`
	Tracks              map[string]ITunesTrack `plist:"Tracks"`
	Playlists           []ITunesPlaylist       `plist:"Playlists"`
}

// LibraryPlaylist is a playlist with its ordered track ids.
type LibraryPlaylist struct {
	Playlist models.Playlist
	TrackIDs []string
}

// HostPath rewrites a container path under /app/ to hostBase, for players running outside Docker.
func HostPath(path, hostBase string) string {
	if hostBase != "" && strings.HasPrefix(path, containerPrefix) {
		return strings.TrimRight(hostBase, "/") + "/" + strings.TrimPrefix(path, containerPrefix)
	}
	return path
}

func encodedPath(path, hostBase string) string {
	path = strings.ReplaceAll(HostPath(path, hostBase), `\`, "/")
	var parts []string
	for _, part := range strings.Split(path, "/") {
		if part != "" {
			parts = append(parts, url.PathEscape(part))
		}
	}
	return strings.Join(parts, "/")
}

// FileLocationURL formats a local path as a file://localhost/ URL with each segment escaped.
func FileLocationURL(path, hostBase string) string {
	return "file://localhost/" + encodedPath(path, hostBase)
}

// MusicFolderURL is the library's Music Folder value for downloadsRoot.
func MusicFolderURL(downloadsRoot, hostBase string) string {
	root, err := filepath.Abs(downloadsRoot)
	if err != nil {
		root = downloadsRoot
	}
	root = strings.ReplaceAll(HostPath(filepath.ToSlash(root), hostBase), `\`, "/")
	return "file://localhost/" + strings.Trim(root, "/") + "/"
}

// BuildITunesLibrary assembles a library from downloaded tracks and playlists.
//
// Tracks without a local file are left out, and so are their playlist items.
func BuildITunesLibrary(tracks []models.Track, playlists []LibraryPlaylist, musicFolder, hostBase string) *ITunesLibrary {
	lib := &ITunesLibrary{
		MajorVersion:        1,
		MinorVersion:        1,
		ApplicationVersion:  itunesAppVersion,
		MusicFolder:         musicFolder,
		LibraryPersistentID: itunesLibraryID,
		Tracks:              map[string]ITunesTrack{},
		Playlists:           []ITunesPlaylist{},
	}

	trackIDs := map[string]int{}
	next := 1
	for _, t := range tracks {
		if t.LocalFilePath == "" {
			continue
		}
		id := next
		next++
		trackIDs[t.ID] = id
		lib.Tracks[strconv.Itoa(id)] = ITunesTrack{
			TrackID:      id,
			Name:         t.Name,
			Artist:       t.Artist,
			Kind:         itunesKind,
			TrackType:    itunesTrackTypeKey,
			PersistentID: t.ID,
			Location:     FileLocationURL(t.LocalFilePath, hostBase),
		}
	}

	for idx, p := range playlists {
		name := p.Playlist.Name
		if name == "" {
			name = p.Playlist.URL
		}
		playlist := ITunesPlaylist{
			PlaylistID:   idx + 1,
			PersistentID: fmt.Sprintf("PL%014X", idx+1),
			AllItems:     true,
			Name:         strings.ReplaceAll(name, " ", "_"),
			Items:        []ITunesPlaylistItem{},
		}
		for _, trackID := range p.TrackIDs {
			if id, ok := trackIDs[trackID]; ok {
				playlist.Items = append(playlist.Items, ITunesPlaylistItem{TrackID: id})
			}
		}
		lib.Playlists = append(lib.Playlists, playlist)
	}
	return lib
}

// EncodeITunesXML writes lib as an indented XML property list.
func EncodeITunesXML(w io.Writer, lib *ITunesLibrary) error {
	enc := plist.NewEncoder(w)
	enc.Indent("\t")
	if err := enc.Encode(lib); err != nil {
		return fmt.Errorf("failed to encode library: %w", err)
	}
	return nil
}

// WriteITunesXML writes lib to path atomically, creating parent directories.
func WriteITunesXML(path string, lib *ITunesLibrary) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create export directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".library-*.xml")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := EncodeITunesXML(tmp, lib); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to move library into place: %w", err)
	}
	return nil
}

// ReadITunesXML decodes a library written by [WriteITunesXML].
func ReadITunesXML(path string) (*ITunesLibrary, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open library: %w", err)
	}
	defer f.Close()

	var lib ITunesLibrary
	if err := plist.NewDecoder(f).Decode(&lib); err != nil {
		return nil, fmt.Errorf("failed to decode library: %w", err)
	}
	return &lib, nil
}
