package library

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

type playlistSourceFile struct {
	Playlists []string `yaml:"playlists"`
}

// ReadPlaylistSources reads playlist URLs from a CSV file (first column) or a YAML file.
//
// YAML files may hold a plain list of URLs or a mapping with a "playlists" key.
// Empty rows are skipped.
func ReadPlaylistSources(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open playlist sources: %w", err)
	}
	defer f.Close()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return parseYAMLSources(f)
	default:
		return parseCSVSources(f)
	}
}

// ResolvePlaylistSources returns the first of paths that exists.
func ResolvePlaylistSources(paths ...string) (string, error) {
	for _, p := range paths {
		if p == "" {
			continue
		}
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}
	return "", fmt.Errorf("%w: no playlist sources in %s", os.ErrNotExist, strings.Join(paths, ", "))
}

func parseCSVSources(r io.Reader) ([]string, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	var urls []string
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to parse playlist csv: %w", err)
		}
		if len(row) == 0 {
			continue
		}
		if u := strings.TrimSpace(row[0]); u != "" {
			urls = append(urls, u)
		}
	}
	return urls, nil
}

func parseYAMLSources(r io.Reader) ([]string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read playlist yaml: %w", err)
	}

	var node yaml.Node
	if err := yaml.Unmarshal(data, &node); err != nil {
		return nil, fmt.Errorf("failed to parse playlist yaml: %w", err)
	}
	if len(node.Content) == 0 {
		return nil, nil
	}

	var raw []string
	switch node.Content[0].Kind {
	case yaml.SequenceNode:
		err = node.Content[0].Decode(&raw)
	default:
		var file playlistSourceFile
		err = node.Content[0].Decode(&file)
		raw = file.Playlists
	}
	if err != nil {
		return nil, fmt.Errorf("failed to decode playlist yaml: %w", err)
	}

	var urls []string
	for _, u := range raw {
		if u = strings.TrimSpace(u); u != "" {
			urls = append(urls, u)
		}
	}
	return urls, nil
}
