package flow

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/beverlyhillscop90210/comfyui-vfx-flow/internal/model"
)

const (
	// DefaultBaseURL is where the host serves the directory routes
	DefaultBaseURL = "http://127.0.0.1:8188/vfx-flow"

	// DefaultTimeout bounds every request made by the client
	DefaultTimeout = 30 * time.Second

	// maxErrorBody limits how much of a failed response is echoed into errors
	maxErrorBody = 512
)

// Client talks to the production-tracking directory over JSON/HTTP
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithTimeout sets the per-request timeout
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.httpClient.Timeout = d
		}
	}
}

// WithLogger sets the logger used for request tracing
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewClient creates a new directory client
func NewClient(baseURL string, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the directory endpoint the client talks to
func (c *Client) BaseURL() string {
	return c.baseURL
}

// do executes a request and unmarshals the JSON response into result
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, result any) error {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	requestID := uuid.New().String()[:8]
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", requestID)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Debug("directory request failed", "method", method, "path", path, "request_id", requestID, "error", err)
		return fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	c.logger.Debug("directory request",
		"method", method,
		"path", path,
		"status", resp.StatusCode,
		"request_id", requestID,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// Prefer the service's own error message when it sent one
		var env Envelope
		if json.Unmarshal(respBody, &env) == nil && env.Error != "" {
			return fmt.Errorf("HTTP %d: %s", resp.StatusCode, env.Error)
		}
		return fmt.Errorf("HTTP %d: %s", resp.StatusCode, truncate(string(respBody), maxErrorBody))
	}

	if result != nil {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("unmarshal response: %w", err)
		}
	}
	return nil
}

// Login authenticates against the tracking site and returns the session
func (c *Client) Login(ctx context.Context, creds Credentials) (*model.Session, error) {
	creds = creds.Normalize()
	if err := creds.Validate(); err != nil {
		return nil, &AuthError{Reason: err.Error(), Err: err}
	}

	var resp LoginResponse
	if err := c.do(ctx, http.MethodPost, "/login", nil, creds, &resp); err != nil {
		return nil, &AuthError{Reason: "site unreachable: " + err.Error(), Err: err}
	}
	if !resp.Success {
		err := remoteError(resp.Envelope)
		return nil, &AuthError{Reason: err.Error(), Err: err}
	}

	session := &model.Session{
		SiteURL:    resp.SiteURL,
		UserName:   resp.UserName,
		UserID:     resp.UserID,
		AuthMethod: creds.AuthMethod,
	}
	if session.SiteURL == "" {
		session.SiteURL = creds.SiteURL
	}
	if session.UserName == "" {
		session.UserName = creds.Identity()
	}
	c.logger.Info("logged in", "site_url", session.SiteURL, "user", session.UserName)
	return session, nil
}

// Status returns the session the directory currently holds, or nil if none
func (c *Client) Status(ctx context.Context) (*model.Session, error) {
	var resp StatusResponse
	if err := c.do(ctx, http.MethodGet, "/status", nil, nil, &resp); err != nil {
		return nil, &FetchError{Op: "status", Err: err}
	}
	if !resp.LoggedIn {
		return nil, nil
	}
	return &model.Session{
		SiteURL:    resp.SiteURL,
		UserName:   resp.UserName,
		UserID:     resp.UserID,
		AuthMethod: resp.AuthMethod,
	}, nil
}

// Logout drops every session the directory holds
func (c *Client) Logout(ctx context.Context) error {
	var resp Envelope
	if err := c.do(ctx, http.MethodPost, "/logout", nil, struct{}{}, &resp); err != nil {
		return &FetchError{Op: "logout", Err: err}
	}
	if !resp.Success {
		return &FetchError{Op: "logout", Err: remoteError(resp)}
	}
	return nil
}

// ListProjects returns the active projects
func (c *Client) ListProjects(ctx context.Context) ([]model.Entity, error) {
	var resp ProjectsResponse
	if err := c.list(ctx, "list projects", "/projects", nil, &resp, &resp.Envelope); err != nil {
		return nil, err
	}
	return nonNil(resp.Projects), nil
}

// ListSequences returns the sequences of a project
func (c *Client) ListSequences(ctx context.Context, projectID int) ([]model.Entity, error) {
	if projectID == 0 {
		return []model.Entity{}, nil
	}
	query := url.Values{"projectId": {strconv.Itoa(projectID)}}
	var resp SequencesResponse
	if err := c.list(ctx, "list sequences", "/sequences", query, &resp, &resp.Envelope); err != nil {
		return nil, err
	}
	return nonNil(resp.Sequences), nil
}

// ListShots returns the shots of a project, optionally narrowed to one sequence
// (sequenceID 0 means all sequences)
func (c *Client) ListShots(ctx context.Context, projectID, sequenceID int) ([]model.Entity, error) {
	if projectID == 0 {
		return []model.Entity{}, nil
	}
	query := url.Values{"projectId": {strconv.Itoa(projectID)}}
	if sequenceID != 0 {
		query.Set("sequenceId", strconv.Itoa(sequenceID))
	}
	var resp ShotsResponse
	if err := c.list(ctx, "list shots", "/shots", query, &resp, &resp.Envelope); err != nil {
		return nil, err
	}
	return nonNil(resp.Shots), nil
}

// ListTasks returns the tasks of a shot
func (c *Client) ListTasks(ctx context.Context, shotID int) ([]model.Entity, error) {
	if shotID == 0 {
		return []model.Entity{}, nil
	}
	query := url.Values{"shotId": {strconv.Itoa(shotID)}}
	var resp TasksResponse
	if err := c.list(ctx, "list tasks", "/tasks", query, &resp, &resp.Envelope); err != nil {
		return nil, err
	}
	return nonNil(resp.Tasks), nil
}

// list runs a GET whose response carries an envelope
func (c *Client) list(ctx context.Context, op, path string, query url.Values, result any, env *Envelope) error {
	if err := c.do(ctx, http.MethodGet, path, query, nil, result); err != nil {
		return &FetchError{Op: op, Err: err}
	}
	if !env.Success {
		return &FetchError{Op: op, Err: remoteError(*env)}
	}
	return nil
}

// SetSelectionStatus asks the service to apply the selection side effects to an entity
func (c *Client) SetSelectionStatus(ctx context.Context, kind model.Kind, id int, opts SelectOptions) error {
	op := "select " + string(kind)
	req := SelectRequest{
		Kind:          kind,
		ID:            id,
		SetInProgress: opts.SetInProgress,
		AssignToMe:    opts.AssignToMe,
	}
	if err := req.Validate(); err != nil {
		return &FetchError{Op: op, Err: err}
	}
	var resp Envelope
	if err := c.do(ctx, http.MethodPost, "/select", nil, req, &resp); err != nil {
		return &FetchError{Op: op, Err: err}
	}
	if !resp.Success {
		return &FetchError{Op: op, Err: remoteError(resp)}
	}
	return nil
}

// LatestVersion returns the newest published version of a shot, or nil if there is none
func (c *Client) LatestVersion(ctx context.Context, shotID int) (*Version, error) {
	if shotID == 0 {
		return nil, nil
	}
	query := url.Values{"shotId": {strconv.Itoa(shotID)}}
	var resp LatestVersionResponse
	if err := c.list(ctx, "latest version", "/versions/latest", query, &resp, &resp.Envelope); err != nil {
		return nil, err
	}
	return resp.Version, nil
}

// Publish creates a version in the tracking service and returns its id
func (c *Client) Publish(ctx context.Context, req PublishRequest) (string, error) {
	if err := req.Validate(); err != nil {
		return "", &PublishError{Reason: err.Error(), Err: err}
	}
	var resp PublishResponse
	if err := c.do(ctx, http.MethodPost, "/publish", nil, req, &resp); err != nil {
		return "", &PublishError{Reason: err.Error(), Err: err}
	}
	if resp.Error != "" {
		return "", &PublishError{Reason: resp.Error}
	}
	if resp.VersionID == "" {
		return "", &PublishError{Reason: "no version id returned"}
	}
	c.logger.Info("published version", "version_id", string(resp.VersionID), "code", req.Code)
	return string(resp.VersionID), nil
}

func nonNil(items []model.Entity) []model.Entity {
	if items == nil {
		return []model.Entity{}
	}
	return items
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max - 1
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "…"
}
