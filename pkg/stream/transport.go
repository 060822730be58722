package stream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/papercomputeco/opsdeck/pkg/llm"
)

const (
	// DefaultStreamPath is the backend's SSE chat endpoint.
	DefaultStreamPath = "/api/chat/stream"

	// DefaultCompletePath is the backend's non-streaming chat endpoint.
	DefaultCompletePath = "/api/chat"

	// maxErrorBody bounds how much of an error response is read.
	maxErrorBody = 4 * 1024

	// maxCompleteBody bounds a non-streaming response body.
	maxCompleteBody = 16 * 1024 * 1024
)

// Transport opens chat requests against the backend.
type Transport interface {
	// Stream posts req and returns the event-stream body. Failures before
	// the body is available are returned as *TransportError.
	Stream(ctx context.Context, req llm.ChatRequest) (io.ReadCloser, error)

	// Complete posts req to the non-streaming endpoint and returns the full
	// response text.
	Complete(ctx context.Context, req llm.ChatRequest) (string, error)
}

// HTTPTransportConfig configures an HTTPTransport.
type HTTPTransportConfig struct {
	// Target is the backend base URL, e.g. "http://localhost:8080".
	Target string

	StreamPath   string
	CompletePath string

	// Timeout bounds non-streaming requests. Streams are bounded only by
	// their context.
	Timeout time.Duration

	// Headers are added to every request.
	Headers map[string]string

	Client *http.Client
}

// HTTPTransport is a Transport speaking JSON over HTTP.
type HTTPTransport struct {
	cfg    HTTPTransportConfig
	client *http.Client
}

// NewHTTPTransport returns an HTTPTransport with defaults applied.
func NewHTTPTransport(cfg HTTPTransportConfig) *HTTPTransport {
	if cfg.StreamPath == "" {
		cfg.StreamPath = DefaultStreamPath
	}
	if cfg.CompletePath == "" {
		cfg.CompletePath = DefaultCompletePath
	}
	cfg.Target = strings.TrimRight(cfg.Target, "/")

	client := cfg.Client
	if client == nil {
		client = http.DefaultClient
	}

	return &HTTPTransport{cfg: cfg, client: client}
}

// Stream implements Transport.
func (t *HTTPTransport) Stream(ctx context.Context, req llm.ChatRequest) (io.ReadCloser, error) {
	req.Stream = true

	resp, err := t.post(ctx, t.cfg.StreamPath, req, "text/event-stream")
	if err != nil {
		return nil, err
	}

	return resp.Body, nil
}

// Complete implements Transport.
func (t *HTTPTransport) Complete(ctx context.Context, req llm.ChatRequest) (string, error) {
	req.Stream = false

	if t.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.cfg.Timeout)
		defer cancel()
	}

	resp, err := t.post(ctx, t.cfg.CompletePath, req, "application/json")
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var out llm.ChatResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxCompleteBody)).Decode(&out); err != nil {
		return "", &TransportError{Message: "decode response", Err: err, partial: true}
	}

	return out.Text(), nil
}

// post sends req as JSON and returns the response when the status is 2xx.
func (t *HTTPTransport) post(ctx context.Context, path string, req llm.ChatRequest, accept string) (*http.Response, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, t.cfg.Target+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", accept)
	for k, v := range t.cfg.Headers {
		httpReq.Header.Set(k, v)
	}
	for k, v := range headersFrom(ctx) {
		httpReq.Header[http.CanonicalHeaderKey(k)] = v
	}

	resp, err := t.client.Do(httpReq)
	if err != nil {
		return nil, &TransportError{Message: "POST " + path, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		return nil, statusError(resp)
	}

	return resp, nil
}

type headersKey struct{}

// WithHeaders returns a context whose requests through HTTPTransport carry h,
// on top of and overriding the configured headers.
func WithHeaders(ctx context.Context, h http.Header) context.Context {
	return context.WithValue(ctx, headersKey{}, h)
}

func headersFrom(ctx context.Context) http.Header {
	h, _ := ctx.Value(headersKey{}).(http.Header)
	return h
}

// statusError builds a TransportError from a non-2xx response, preferring
// the JSON {"error": "..."} message when the body has one.
func statusError(resp *http.Response) *TransportError {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

	msg := strings.TrimSpace(string(raw))
	var body llm.ErrorResponse
	if err := json.Unmarshal(raw, &body); err == nil && body.Error != "" {
		msg = body.Error
	}
	if msg == "" {
		msg = http.StatusText(resp.StatusCode)
	}

	return &TransportError{StatusCode: resp.StatusCode, Message: msg}
}
