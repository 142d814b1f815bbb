// Package client implements the chat transport client: the HTTP side of the dual-panel UI. It
// performs request/response and streaming exchanges against the chat backend, drives the stream
// marker parser over streamed bodies, and wraps the auxiliary endpoints (models, health, export,
// sessions).
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/MegaGrindStone/duo-chat-ui/internal/models"
)

// ErrSessionNotFound is returned by Session when the backend has no session with the given ID.
var ErrSessionNotFound = errors.New("session not found")

// DefaultTimeout bounds a non-streaming exchange. Generative responses are slow, so this is
// deliberately long.
const DefaultTimeout = 2 * time.Minute

// Client talks to the chat backend over HTTP. The exchange client enforces the full-request
// timeout; the stream client only bounds the connect phase, since a healthy stream may stay open
// far longer than any sensible request timeout. Streaming reads carry no per-chunk inactivity
// bound.
type Client struct {
	baseURL string

	exchange *http.Client
	stream   *http.Client

	logger *slog.Logger
}

// New creates a Client for the backend at baseURL. A non-positive timeout falls back to
// DefaultTimeout. The logger is required; the client never reaches for a global one.
func New(baseURL string, timeout time.Duration, logger *slog.Logger) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	tr := http.DefaultTransport.(*http.Transport).Clone()
	tr.ResponseHeaderTimeout = timeout

	return &Client{
		baseURL:  strings.TrimSuffix(baseURL, "/"),
		exchange: &http.Client{Timeout: timeout},
		stream:   &http.Client{Transport: tr},
		logger:   logger.With(slog.String("module", "client")),
	}
}

// Chat performs one non-streaming exchange against the given method endpoint and returns the
// populated response, or an error for network failures, timeouts, and non-success statuses.
func (c *Client) Chat(ctx context.Context, method models.Method, message string) (models.ChatResponse, error) {
	var res models.ChatResponse
	err := c.postJSON(ctx, "/api/chat/"+string(method), models.ChatRequest{
		Message: message,
		Method:  method,
	}, &res)
	if err != nil {
		return models.ChatResponse{}, err
	}
	return res, nil
}

// Models lists the models the backend can serve.
func (c *Client) Models(ctx context.Context) (models.ModelsResponse, error) {
	var res models.ModelsResponse
	if err := c.getJSON(ctx, "/api/models", &res); err != nil {
		return models.ModelsResponse{}, err
	}
	return res, nil
}

// Health probes the backend health endpoint, returning nil when it reports healthy.
func (c *Client) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.exchange.Do(req)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("backend unhealthy: %s", readError(resp))
	}
	return nil
}

// SaveSession stores a snapshot of both panels and returns the ID assigned by the backend.
func (c *Client) SaveSession(ctx context.Context, session models.Session) (string, error) {
	var res struct {
		ID string `json:"id"`
	}
	if err := c.postJSON(ctx, "/api/sessions", session, &res); err != nil {
		return "", err
	}
	return res.ID, nil
}

// Session loads a saved snapshot. It returns ErrSessionNotFound when the ID is unknown.
func (c *Client) Session(ctx context.Context, id string) (models.Session, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/sessions/"+id, nil)
	if err != nil {
		return models.Session{}, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.exchange.Do(req)
	if err != nil {
		return models.Session{}, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return models.Session{}, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	if resp.StatusCode != http.StatusOK {
		return models.Session{}, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, readError(resp))
	}

	var session models.Session
	if err := json.NewDecoder(resp.Body).Decode(&session); err != nil {
		return models.Session{}, fmt.Errorf("failed to decode session: %w", err)
	}
	return session, nil
}

// ExportPDF asks the backend to render a transcript export. It returns the document bytes and the
// filename suggested by the backend.
func (c *Client) ExportPDF(ctx context.Context, export models.ExportRequest) ([]byte, string, error) {
	body, err := json.Marshal(export)
	if err != nil {
		return nil, "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/export/pdf", bytes.NewReader(body))
	if err != nil {
		return nil, "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.exchange.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("unexpected status %d: %s", resp.StatusCode, readError(resp))
	}

	doc, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read export: %w", err)
	}

	filename := "transcript.html"
	if _, params, err := mime.ParseMediaType(resp.Header.Get("Content-Disposition")); err == nil {
		if name := params["filename"]; name != "" {
			filename = name
		}
	}
	return doc, filename, nil
}

func (c *Client) postJSON(ctx context.Context, path string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.exchange.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, readError(resp))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.exchange.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, readError(resp))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// readError extracts a human-readable message from a failed response, preferring the backend's
// {"error": ...} shape and falling back to the raw body.
func readError(resp *http.Response) string {
	body, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err != nil || len(body) == 0 {
		return resp.Status
	}

	var apiErr struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Error != "" {
		return apiErr.Error
	}
	return strings.TrimSpace(string(body))
}
