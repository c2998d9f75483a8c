// package testing contains shared testing utilities
package testing

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/desertthunder/spotiseek/internal/models"
	"github.com/desertthunder/spotiseek/internal/services"
)

// FakeSlskd is an in-memory stand-in for [services.SlskdClient].
//
// Searches are keyed by the text they were created with: Responses maps search text to the
// responses the search returns. Unknown texts complete with no responses unless Pending marks
// them as still running.
type FakeSlskd struct {
	mu sync.Mutex

	Ready     bool
	Responses map[string][]models.SearchResponse
	Pending   map[string]bool
	Transfers []services.UserTransfers

	CreateErr  error
	CheckErr   error
	EnqueueErr error
	ListErr    error

	Searches []string          // search texts in creation order
	Enqueued []EnqueuedFile    // enqueue calls in order
	Removed  []string          // "username/id" of removed transfers
	texts    map[string]string // search id -> text
	nextID   int
}

// EnqueuedFile records one call to [FakeSlskd.Enqueue].
type EnqueuedFile struct {
	ID       string
	Username string
	File     models.CandidateFile
}

// NewFakeSlskd returns a ready fake with no canned responses.
func NewFakeSlskd() *FakeSlskd {
	return &FakeSlskd{
		Ready:     true,
		Responses: map[string][]models.SearchResponse{},
		Pending:   map[string]bool{},
		texts:     map[string]string{},
	}
}

func (f *FakeSlskd) WaitReady(ctx context.Context, maxWait, poll time.Duration) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Ready
}

func (f *FakeSlskd) CreateSearch(ctx context.Context, searchText string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.CreateErr != nil {
		return "", f.CreateErr
	}
	f.nextID++
	id := fmt.Sprintf("search-%d", f.nextID)
	f.texts[id] = searchText
	f.Searches = append(f.Searches, searchText)
	return id, nil
}

func (f *FakeSlskd) CheckSearch(ctx context.Context, searchID string) (bool, []models.SearchResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.CheckErr != nil {
		return false, nil, f.CheckErr
	}
	text, ok := f.texts[searchID]
	if !ok {
		return true, nil, nil
	}
	if f.Pending[text] {
		return false, nil, nil
	}
	return true, f.Responses[text], nil
}

func (f *FakeSlskd) PollSearch(ctx context.Context, searchID string, attempts int, interval time.Duration) ([]models.SearchResponse, error) {
	_, responses, err := f.CheckSearch(ctx, searchID)
	return responses, err
}

func (f *FakeSlskd) Enqueue(ctx context.Context, username string, file models.CandidateFile) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.EnqueueErr != nil {
		return "", f.EnqueueErr
	}
	id := fmt.Sprintf("transfer-%d", len(f.Enqueued)+1)
	f.Enqueued = append(f.Enqueued, EnqueuedFile{ID: id, Username: username, File: file})
	return id, nil
}

func (f *FakeSlskd) Downloads(ctx context.Context) ([]services.UserTransfers, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ListErr != nil {
		return nil, f.ListErr
	}
	return f.Transfers, nil
}

func (f *FakeSlskd) RemoveDownload(ctx context.Context, username, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Removed = append(f.Removed, username+"/"+id)
	return nil
}

// AddTransfer appends a single-file transfer for username.
func (f *FakeSlskd) AddTransfer(username string, file services.TransferFile) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Transfers = append(f.Transfers, services.UserTransfers{
		Username:    username,
		Directories: []services.TransferDirectory{{Files: []services.TransferFile{file}}},
	})
}

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

// LimitedWriter fails after a certain number of writes
type LimitedWriter struct {
	maxWrites int
	written   int
	target    io.Writer
}

func (l *LimitedWriter) Write(p []byte) (n int, err error) {
	if l.written >= l.maxWrites {
		return 0, errors.New("write limit exceeded")
	}
	l.written++
	return l.target.Write(p)
}

func NewLimitedWriter(maxWrites, written int, target io.Writer) LimitedWriter {
	return LimitedWriter{maxWrites: maxWrites, written: written, target: target}
}

// MockRoundTripper allows custom HTTP responses for testing
type MockRoundTripper struct {
	response *http.Response
	err      error
}

func NewMockRoundTripper(r *http.Response, e error) *MockRoundTripper {
	return &MockRoundTripper{response: r, err: e}
}

func (m *MockRoundTripper) RoundTrip(*http.Request) (*http.Response, error) {
	return m.response, m.err
}

// FCloser simulates a failure when reading response body
type FCloser struct{}

func (f *FCloser) Read(p []byte) (n int, err error) {
	return 0, errors.New("read failed")
}

func (f *FCloser) Close() error {
	return nil
}

func MustWriteFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write file %s: %v", path, err)
	}
}

func AssertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("File does not exist: %s", path)
	}
}

func AssertDirExists(t *testing.T, path string) {
	t.Helper()
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		t.Errorf("Directory does not exist: %s", path)
		return
	}
	if !info.IsDir() {
		t.Errorf("Path is not a directory: %s", path)
	}
}

func MustReadFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file %s: %v", path, err)
	}
	return string(content)
}
