package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ternarybob/drift/internal/models"
	"github.com/ternarybob/drift/internal/stream"
)

// ErrStreamClosed is returned when a stream ends without complete or error
var ErrStreamClosed = errors.New("stream closed before a terminal frame")

// APIError is a non-stream rejection from the server
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("drift request rejected (%d): %s", e.StatusCode, e.Message)
}

// Client posts discovery requests and streams their frames
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New creates a client for a server base URL such as http://localhost:8085
func New(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		// No overall timeout: the stream's length is bounded server-side
		httpClient = &http.Client{Transport: &http.Transport{ResponseHeaderTimeout: 30 * time.Second}}
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), httpClient: httpClient}
}

// Stream issues the request and calls fn for every frame until the terminal
// frame, ctx cancellation or a transport failure. A non-nil error from fn
// stops the stream and is returned.
func (c *Client) Stream(ctx context.Context, body models.SearchRequestBody, fn func(stream.Frame) error) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/drift", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("drift request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return readAPIError(resp)
	}

	dec := NewDecoder(resp.Body)
	for {
		frame, err := dec.Next()
		if err == io.EOF {
			return ErrStreamClosed
		}
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("failed to read stream: %w", err)
		}

		if err := fn(frame); err != nil {
			return err
		}
		if frame.Type().Terminal() {
			return nil
		}
	}
}

func readAPIError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	var body struct {
		Error string `json:"error"`
	}
	msg := strings.TrimSpace(string(raw))
	if json.Unmarshal(raw, &body) == nil && body.Error != "" {
		msg = body.Error
	}
	return &APIError{StatusCode: resp.StatusCode, Message: msg}
}
