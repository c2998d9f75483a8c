package models

import "strings"

// DownloadStatus is the download state of a [Track].
//
// The zero value is [StatusUnknown] with an empty raw value. Values outside the known set
// are preserved verbatim and report false from [DownloadStatus.Known].
type DownloadStatus struct {
	kind statusKind
	raw  string
}

type statusKind int

const (
	unknownKind statusKind = iota
	pendingKind
	newKind
	searchingKind
	notFoundKind
	noSuitableFileKind
	failedKind
	downloadingKind
	queuedKind
	requestedKind
	inProgressKind
	completedKind
	redownloadPendingKind
)

var (
	StatusPending           = DownloadStatus{kind: pendingKind}
	StatusNew               = DownloadStatus{kind: newKind}
	StatusSearching         = DownloadStatus{kind: searchingKind}
	StatusNotFound          = DownloadStatus{kind: notFoundKind}
	StatusNoSuitableFile    = DownloadStatus{kind: noSuitableFileKind}
	StatusFailed            = DownloadStatus{kind: failedKind}
	StatusDownloading       = DownloadStatus{kind: downloadingKind}
	StatusQueued            = DownloadStatus{kind: queuedKind}
	StatusRequested         = DownloadStatus{kind: requestedKind}
	StatusInProgress        = DownloadStatus{kind: inProgressKind}
	StatusCompleted         = DownloadStatus{kind: completedKind}
	StatusRedownloadPending = DownloadStatus{kind: redownloadPendingKind}
)

var statusNames = map[statusKind]string{
	pendingKind:           "pending",
	newKind:               "new",
	searchingKind:         "searching",
	notFoundKind:          "not_found",
	noSuitableFileKind:    "no_suitable_file",
	failedKind:            "failed",
	downloadingKind:       "downloading",
	queuedKind:            "queued",
	requestedKind:         "requested",
	inProgressKind:        "inprogress",
	completedKind:         "completed",
	redownloadPendingKind: "redownload_pending",
}

var statusByName = func() map[string]statusKind {
	m := make(map[string]statusKind, len(statusNames))
	for k, v := range statusNames {
		m[v] = k
	}
	return m
}()

// ParseStatus maps a stored token to a [DownloadStatus]. Unrecognized tokens become
// an unknown status that round-trips through [DownloadStatus.String].
func ParseStatus(s string) DownloadStatus {
	if kind, ok := statusByName[s]; ok {
		return DownloadStatus{kind: kind}
	}
	return UnknownStatus(s)
}

// UnknownStatus wraps a raw remote or legacy state.
func UnknownStatus(raw string) DownloadStatus {
	return DownloadStatus{kind: unknownKind, raw: raw}
}

// String returns the token persisted in the tracks table.
func (s DownloadStatus) String() string {
	if s.kind == unknownKind {
		return s.raw
	}
	return statusNames[s.kind]
}

// Known reports whether s is one of the enumerated statuses.
func (s DownloadStatus) Known() bool {
	return s.kind != unknownKind
}

// IsZero reports whether s carries no value at all.
func (s DownloadStatus) IsZero() bool {
	return s.kind == unknownKind && s.raw == ""
}

// SkipsDownload reports whether a track in this status must not be searched again by the
// synchronous download entry point.
func (s DownloadStatus) SkipsDownload() bool {
	switch s.kind {
	case completedKind, queuedKind, downloadingKind, requestedKind, inProgressKind:
		return true
	}
	return false
}

// Searchable reports whether initiate_searches should pick up a track in this status.
func (s DownloadStatus) Searchable() bool {
	switch s.kind {
	case pendingKind, newKind, notFoundKind, noSuitableFileKind:
		return true
	}
	return false
}

// MarshalText implements [encoding.TextMarshaler].
func (s DownloadStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements [encoding.TextUnmarshaler].
func (s *DownloadStatus) UnmarshalText(b []byte) error {
	*s = ParseStatus(string(b))
	return nil
}

// RemoteStatus normalizes a transfer state that has no dedicated mapping:
// lowercased, spaces become underscores and commas are dropped.
func RemoteStatus(state string) DownloadStatus {
	token := strings.ToLower(state)
	token = strings.ReplaceAll(token, " ", "_")
	token = strings.ReplaceAll(token, ",", "")
	return ParseStatus(token)
}
