// slskd HTTP API client
//
// API reference: https://github.com/slskd/slskd/blob/master/docs/api.md
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/spotiseek/internal/models"
	"github.com/desertthunder/spotiseek/internal/shared"
	"golang.org/x/time/rate"
)

const (
	slskdAPIPrefix     = "/api/v0"
	defaultMaxAttempts = 3
)

// APIError is a non-2xx response from an HTTP API.
type APIError struct {
	Method     string
	Path       string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	msg := fmt.Sprintf("%s %s: status %d", e.Method, e.Path, e.StatusCode)
	if e.Body != "" {
		msg += ": " + e.Body
	}
	return msg
}

// Unwrap lets callers match [shared.ErrAPIRequest] with errors.Is.
func (e *APIError) Unwrap() error { return shared.ErrAPIRequest }

// ServerState is the slskd connection state reported by GET /server.
type ServerState struct {
	State       string `json:"state"`
	IsConnected bool   `json:"isConnected"`
	IsLoggedIn  bool   `json:"isLoggedIn"`
}

// Ready reports whether slskd is connected and logged in to the network.
func (s ServerState) Ready() bool {
	return s.IsConnected && s.IsLoggedIn
}

// TransferFile is one file entry in the downloads listing.
type TransferFile struct {
	ID           string `json:"id"`
	Filename     string `json:"filename"`
	State        string `json:"state"`
	Error        string `json:"error,omitempty"`
	ErrorMessage string `json:"errorMessage,omitempty"`
	Message      string `json:"message,omitempty"`
	Extension    string `json:"extension,omitempty"`
	BitRate      *int   `json:"bitRate,omitempty"`
	Size         int64  `json:"size"`
}

// FailureReason returns the most specific failure text slskd provided.
func (f TransferFile) FailureReason() string {
	for _, s := range []string{f.Error, f.ErrorMessage, f.Message} {
		if s != "" {
			return s
		}
	}
	return f.State
}

// UnmarshalJSON accepts numeric or string ids and bitrates.
func (f *TransferFile) UnmarshalJSON(data []byte) error {
	type alias TransferFile
	aux := struct {
		*alias
		ID      json.RawMessage `json:"id"`
		BitRate json.RawMessage `json:"bitRate"`
	}{alias: (*alias)(f)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	f.ID = rawString(aux.ID)
	f.BitRate = rawInt(aux.BitRate)
	return nil
}

// TransferDirectory groups transfer files by remote directory.
type TransferDirectory struct {
	Directory string         `json:"directory"`
	Files     []TransferFile `json:"files"`
}

// UserTransfers is the set of downloads from one remote user.
type UserTransfers struct {
	Username    string              `json:"username"`
	Directories []TransferDirectory `json:"directories"`
}

// SlskdClient talks to the slskd REST API.
//
// Requests are paced by a token bucket limiter; enqueue and transfer listing are retried
// with exponential backoff on timeouts, connection failures and 5xx responses.
type SlskdClient struct {
	baseURL     string
	apiKey      string
	timeout     time.Duration
	httpClient  *http.Client
	limiter     *rate.Limiter
	logger      *log.Logger
	maxAttempts int

	// sleep waits between retries and poll attempts; tests replace it.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewSlskdClient creates a client for the daemon at cfg.URL.
func NewSlskdClient(cfg shared.SlskdConfig, client *http.Client, logger *log.Logger) *SlskdClient {
	if client == nil {
		client = http.DefaultClient
	}
	if logger == nil {
		logger = shared.NewLogger(nil)
	}

	limit := rate.Inf
	burst := 1
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
		burst = max(1, int(math.Ceil(cfg.RequestsPerSecond)))
	}

	return &SlskdClient{
		baseURL:     strings.TrimRight(cfg.URL, "/") + slskdAPIPrefix,
		apiKey:      cfg.APIKey,
		timeout:     cfg.Timeout(),
		httpClient:  client,
		limiter:     rate.NewLimiter(limit, burst),
		logger:      shared.WithLogger(logger, "component", "slskd"),
		maxAttempts: defaultMaxAttempts,
		sleep:       sleepContext,
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (c *SlskdClient) doRequest(ctx context.Context, method, endpoint string, body any, result any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &APIError{
			Method:     method,
			Path:       endpoint,
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(snippet)),
		}
	}

	if result == nil {
		return nil
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, result); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// withRetry runs fn up to maxAttempts times, sleeping 2^attempt seconds between retryable failures.
func (c *SlskdClient) withRetry(ctx context.Context, op string, fn func() error) error {
	var err error
	for attempt := range c.maxAttempts {
		if err = fn(); err == nil {
			return nil
		}
		if !isRetryable(err) || attempt == c.maxAttempts-1 {
			break
		}
		wait := time.Duration(1<<attempt) * time.Second
		c.logger.Warn("retrying request", "op", op, "attempt", attempt+1, "wait", wait, "err", err)
		if serr := c.sleep(ctx, wait); serr != nil {
			return serr
		}
	}
	return err
}

func isRetryable(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode >= 500
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var urlErr *url.Error
	return errors.As(err, &urlErr)
}

// ServerState fetches the daemon's network connection state.
func (c *SlskdClient) ServerState(ctx context.Context) (*ServerState, error) {
	var state ServerState
	if err := c.doRequest(ctx, http.MethodGet, "/server", nil, &state); err != nil {
		return nil, err
	}
	return &state, nil
}

// WaitReady polls GET /server until slskd is connected and logged in, giving up once
// maxWait worth of poll intervals have passed.
func (c *SlskdClient) WaitReady(ctx context.Context, maxWait, poll time.Duration) bool {
	if poll <= 0 {
		poll = 2 * time.Second
	}
	for waited, attempt := time.Duration(0), 1; ; attempt++ {
		state, err := c.ServerState(ctx)
		switch {
		case err != nil:
			c.logger.Debug("slskd not reachable", "attempt", attempt, "err", err)
		case state.Ready():
			c.logger.Debug("slskd ready", "attempt", attempt, "state", state.State)
			return true
		default:
			c.logger.Debug("slskd not ready", "attempt", attempt, "state", state.State,
				"connected", state.IsConnected, "logged_in", state.IsLoggedIn)
		}

		waited += poll
		if waited >= maxWait {
			break
		}
		if err := c.sleep(ctx, poll); err != nil {
			return false
		}
	}
	c.logger.Error("timed out waiting for slskd", "max_wait", maxWait)
	return false
}

// CreateSearch starts a network search and returns its id.
func (c *SlskdClient) CreateSearch(ctx context.Context, searchText string) (string, error) {
	id := shared.GenerateID()
	body := map[string]string{"id": id, "searchText": searchText}
	if err := c.doRequest(ctx, http.MethodPost, "/searches", body, nil); err != nil {
		return "", fmt.Errorf("failed to create search: %w", err)
	}
	c.logger.Debug("search created", "search_id", id, "text", searchText)
	return id, nil
}

type rawSearchFile struct {
	ID        json.RawMessage `json:"id"`
	Filename  string          `json:"filename"`
	Size      int64           `json:"size"`
	Extension string          `json:"extension"`
	BitRate   json.RawMessage `json:"bitRate"`
}

type rawSearchResponse struct {
	Username string          `json:"username"`
	Files    []rawSearchFile `json:"files"`
}

// SearchResponses returns the peer responses collected so far for a search.
func (c *SlskdClient) SearchResponses(ctx context.Context, searchID string) ([]models.SearchResponse, error) {
	var raw []rawSearchResponse
	if err := c.doRequest(ctx, http.MethodGet, "/searches/"+url.PathEscape(searchID)+"/responses", nil, &raw); err != nil {
		return nil, fmt.Errorf("failed to fetch search responses: %w", err)
	}

	responses := make([]models.SearchResponse, 0, len(raw))
	for _, r := range raw {
		resp := models.SearchResponse{Username: r.Username}
		for _, f := range r.Files {
			resp.Files = append(resp.Files, models.CandidateFile{
				ID:        rawString(f.ID),
				Filename:  f.Filename,
				Size:      f.Size,
				Extension: f.Extension,
				BitRate:   rawInt(f.BitRate),
			})
		}
		responses = append(responses, resp)
	}
	return responses, nil
}

// SearchComplete reports whether slskd has finished a search.
func (c *SlskdClient) SearchComplete(ctx context.Context, searchID string) (bool, error) {
	var status struct {
		IsComplete bool   `json:"isComplete"`
		State      string `json:"state"`
	}
	if err := c.doRequest(ctx, http.MethodGet, "/searches/"+url.PathEscape(searchID), nil, &status); err != nil {
		return false, fmt.Errorf("failed to fetch search status: %w", err)
	}
	return status.IsComplete || strings.HasPrefix(status.State, "Completed"), nil
}

// CheckSearch does a single, non-blocking check of a search.
//
// A search with any responses counts as complete. A failed status lookup is treated as still in progress.
func (c *SlskdClient) CheckSearch(ctx context.Context, searchID string) (bool, []models.SearchResponse, error) {
	responses, err := c.SearchResponses(ctx, searchID)
	if err != nil {
		return false, nil, err
	}
	if len(responses) > 0 {
		return true, responses, nil
	}

	complete, err := c.SearchComplete(ctx, searchID)
	if err != nil {
		c.logger.Debug("could not check search completion", "search_id", searchID, "err", err)
		return false, nil, nil
	}
	return complete, nil, nil
}

// PollSearch checks a search up to attempts times, waiting interval between checks,
// and returns as soon as responses arrive or the search completes.
func (c *SlskdClient) PollSearch(ctx context.Context, searchID string, attempts int, interval time.Duration) ([]models.SearchResponse, error) {
	if attempts <= 0 {
		attempts = 1
	}
	for attempt := 1; attempt <= attempts; attempt++ {
		complete, responses, err := c.CheckSearch(ctx, searchID)
		if err != nil {
			return nil, err
		}
		if complete {
			c.logger.Debug("search finished", "search_id", searchID, "attempt", attempt, "responses", len(responses))
			return responses, nil
		}
		if attempt < attempts {
			if err := c.sleep(ctx, interval); err != nil {
				return nil, err
			}
		}
	}
	c.logger.Debug("search still running after polling", "search_id", searchID, "attempts", attempts)
	return nil, nil
}

// Enqueue asks slskd to download file from username and returns the transfer id.
func (c *SlskdClient) Enqueue(ctx context.Context, username string, file models.CandidateFile) (string, error) {
	body := []map[string]any{{
		"filename": file.Filename,
		"size":     file.Size,
		"username": username,
	}}

	var result struct {
		Enqueued []struct {
			ID json.RawMessage `json:"id"`
		} `json:"enqueued"`
	}

	endpoint := "/transfers/downloads/" + url.PathEscape(username)
	err := c.withRetry(ctx, "enqueue", func() error {
		return c.doRequest(ctx, http.MethodPost, endpoint, body, &result)
	})
	if err != nil {
		return "", fmt.Errorf("failed to enqueue download: %w", err)
	}

	if len(result.Enqueued) == 0 {
		return "", fmt.Errorf("%w: nothing enqueued for %s", shared.ErrAPIRequest, file.Filename)
	}
	id := rawString(result.Enqueued[0].ID)
	if id == "" {
		return "", fmt.Errorf("%w: enqueued transfer has no id", shared.ErrAPIRequest)
	}

	c.logger.Debug("download enqueued", "username", username, "file", file.Filename, "id", id)
	return id, nil
}

// Downloads lists every transfer slskd knows about, grouped by user.
func (c *SlskdClient) Downloads(ctx context.Context) ([]UserTransfers, error) {
	var transfers []UserTransfers
	err := c.withRetry(ctx, "downloads", func() error {
		transfers = nil
		return c.doRequest(ctx, http.MethodGet, "/transfers/downloads", nil, &transfers)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query downloads: %w", err)
	}
	return transfers, nil
}

// RemoveDownload cancels and removes a transfer. A transfer slskd no longer knows about counts as removed.
func (c *SlskdClient) RemoveDownload(ctx context.Context, username, id string) error {
	endpoint := fmt.Sprintf("/transfers/downloads/%s/%s?remove=true", url.PathEscape(username), url.PathEscape(id))
	err := c.withRetry(ctx, "remove", func() error {
		return c.doRequest(ctx, http.MethodDelete, endpoint, nil, nil)
	})

	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to remove download: %w", err)
	}
	return nil
}

// rawString reads a JSON string or number as a string.
func rawString(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String()
	}
	return ""
}

// rawInt reads a JSON number or numeric string, returning nil for anything else.
func rawInt(raw json.RawMessage) *int {
	s := rawString(raw)
	if s == "" {
		return nil
	}
	if n, err := strconv.Atoi(s); err == nil {
		return &n
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		n := int(f)
		return &n
	}
	return nil
}
