package providers

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"
	"sync"
	"time"
)

const (
	baseRetryDelay = 500 * time.Millisecond
	maxRetryDelay  = 4 * time.Second
)

// ClientConfig configures one Upstream Client instance: one upstream base
// URL, API key, and header set (§4.1).
type ClientConfig struct {
	Name          string
	BaseURL       string
	APIKey        string
	APIVersion    string // non-empty selects the Azure-style deployment URL
	TimeoutSecs   int
	MaxRetries    int
	CustomHeaders map[string]string
}

// Client is the Upstream Client: a single unary-or-streaming chat
// completion call against one upstream. It never knows about other
// providers, fallback, or size classes — that's the Provider Manager and
// Fallback Controller's job.
type Client struct {
	cfg        ClientConfig
	httpClient *http.Client

	mu        sync.Mutex
	cancelled map[string]context.CancelFunc
}

// NewClient builds an Upstream Client with a pooled transport, matching
// the teacher's connection-reuse defaults.
func NewClient(cfg ClientConfig) *Client {
	if cfg.TimeoutSecs <= 0 {
		cfg.TimeoutSecs = 90
	}
	transport := &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
		ForceAttemptHTTP2:   true,
	}
	return &Client{
		cfg: cfg,
		httpClient: &http.Client{
			Transport: transport,
			Timeout:   time.Duration(cfg.TimeoutSecs) * time.Second,
		},
		cancelled: make(map[string]context.CancelFunc),
	}
}

// Name returns the provider name this client was built for.
func (c *Client) Name() string { return c.cfg.Name }

func (c *Client) completionsURL(model string) string {
	base := strings.TrimRight(c.cfg.BaseURL, "/")
	if c.cfg.APIVersion != "" {
		return fmt.Sprintf("%s/openai/deployments/%s/chat/completions?api-version=%s", base, model, c.cfg.APIVersion)
	}
	return base + "/chat/completions"
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.APIVersion != "" {
		req.Header.Set("api-key", c.cfg.APIKey)
	} else {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}
	// Custom headers win on collision, including against Authorization/api-key.
	for k, v := range c.cfg.CustomHeaders {
		req.Header.Set(k, v)
	}
}

// Complete performs one unary chat completion call, retrying transient
// connection/timeout failures locally with capped exponential backoff
// (500ms, 1s, 2s, 4s, 4s, ...). No retry is attempted once the upstream
// has returned a classifiable HTTP response.
func (c *Client) Complete(ctx context.Context, body *CompletionRequest) (*CompletionResponse, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, &Error{Kind: KindInvalidRequest, Provider: c.cfg.Name, Message: err.Error(), Cause: err}
	}

	maxRetries := c.cfg.MaxRetries
	if maxRetries < 0 {
		maxRetries = 0
	}

	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			delay := backoffDelay(attempt)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, &Error{Kind: KindClientDisconnect, Provider: c.cfg.Name, Message: "context cancelled during backoff", Cause: ctx.Err()}
			}
		}

		resp, err := c.doUnary(ctx, body.Model, payload)
		if err == nil {
			return resp, nil
		}
		lastErr = err

		var pErr *Error
		if ok := asProviderError(err, &pErr); ok && pErr.Kind != KindConnection && pErr.Kind != KindTimeout {
			return nil, pErr
		}
		if ctx.Err() != nil {
			return nil, &Error{Kind: KindClientDisconnect, Provider: c.cfg.Name, Message: "context cancelled", Cause: ctx.Err()}
		}
	}
	return nil, lastErr
}

func (c *Client) doUnary(ctx context.Context, model string, payload []byte) (*CompletionResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.completionsURL(model), bytes.NewReader(payload))
	if err != nil {
		return nil, &Error{Kind: KindInternal, Provider: c.cfg.Name, Message: err.Error(), Cause: err}
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, &Error{Kind: KindTimeout, Provider: c.cfg.Name, Message: "request timed out", Cause: err}
		}
		return nil, &Error{Kind: KindConnection, Provider: c.cfg.Name, Message: err.Error(), Cause: err}
	}
	defer resp.Body.Close()

	rawBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &Error{Kind: KindConnection, Provider: c.cfg.Name, Message: err.Error(), Cause: err}
	}

	if resp.StatusCode >= 400 {
		return nil, c.errorFromStatus(resp, rawBody)
	}

	var out CompletionResponse
	if err := json.Unmarshal(rawBody, &out); err != nil {
		return nil, &Error{Kind: KindUpstream, Provider: c.cfg.Name, StatusCode: resp.StatusCode, Message: "malformed response body: " + err.Error(), Cause: err}
	}
	return &out, nil
}

func (c *Client) errorFromStatus(resp *http.Response, rawBody []byte) *Error {
	kind := classifyStatus(resp.StatusCode)
	msg := strings.TrimSpace(string(rawBody))
	if len(msg) > 500 {
		msg = msg[:500]
	}
	return &Error{
		Kind:       kind,
		Provider:   c.cfg.Name,
		StatusCode: resp.StatusCode,
		Message:    msg,
		RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
	}
}

// CompleteStream performs one streaming chat completion call. It returns
// a channel of decoded StreamChunk values and closes it when the upstream
// sends `data: [DONE]`, the connection ends, or ctx is cancelled. Once the
// first byte of the SSE stream has been read, no local retry is
// attempted — the caller (Fallback Controller) decides whether a partial
// stream should be escalated.
//
// requestID registers a cancellation handle reachable via Cancel.
func (c *Client) CompleteStream(ctx context.Context, body *CompletionRequest, requestID string) (<-chan StreamEvent, error) {
	body.Stream = true
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, &Error{Kind: KindInvalidRequest, Provider: c.cfg.Name, Message: err.Error(), Cause: err}
	}

	streamCtx, cancel := context.WithCancel(ctx)
	if requestID != "" {
		c.mu.Lock()
		c.cancelled[requestID] = cancel
		c.mu.Unlock()
	}

	req, err := http.NewRequestWithContext(streamCtx, http.MethodPost, c.completionsURL(body.Model), bytes.NewReader(payload))
	if err != nil {
		cancel()
		return nil, &Error{Kind: KindInternal, Provider: c.cfg.Name, Message: err.Error(), Cause: err}
	}
	c.setHeaders(req)
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		cancel()
		c.forgetCancel(requestID)
		if streamCtx.Err() != nil {
			return nil, &Error{Kind: KindTimeout, Provider: c.cfg.Name, Message: "request timed out", Cause: err}
		}
		return nil, &Error{Kind: KindConnection, Provider: c.cfg.Name, Message: err.Error(), Cause: err}
	}

	if resp.StatusCode >= 400 {
		defer resp.Body.Close()
		rawBody, _ := io.ReadAll(resp.Body)
		cancel()
		c.forgetCancel(requestID)
		return nil, c.errorFromStatus(resp, rawBody)
	}

	events := make(chan StreamEvent, 16)
	go c.readStream(resp.Body, events, requestID, cancel)
	return events, nil
}

// StreamEvent is one item from a streaming completion: either a decoded
// chunk or a terminal error. Exactly one of Chunk/Err is set; a clean end
// of stream closes the channel without sending a final event.
type StreamEvent struct {
	Chunk *StreamChunk
	Err   error
}

func (c *Client) readStream(body io.ReadCloser, events chan<- StreamEvent, requestID string, cancel context.CancelFunc) {
	defer close(events)
	defer body.Close()
	defer cancel()
	defer c.forgetCancel(requestID)

	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		data, ok := strings.CutPrefix(line, "data: ")
		if !ok {
			data, ok = strings.CutPrefix(line, "data:")
			if !ok {
				continue
			}
		}
		data = strings.TrimSpace(data)
		if data == "[DONE]" {
			return
		}
		var chunk StreamChunk
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			events <- StreamEvent{Err: &Error{Kind: KindUpstream, Provider: c.cfg.Name, Message: "malformed stream chunk: " + err.Error(), Cause: err}}
			return
		}
		events <- StreamEvent{Chunk: &chunk}
	}
	if err := scanner.Err(); err != nil {
		events <- StreamEvent{Err: &Error{Kind: KindConnection, Provider: c.cfg.Name, Message: err.Error(), Cause: err}}
	}
}

// Cancel aborts the in-flight stream registered under requestID, if any.
func (c *Client) Cancel(requestID string) {
	c.mu.Lock()
	cancel, ok := c.cancelled[requestID]
	delete(c.cancelled, requestID)
	c.mu.Unlock()
	if ok {
		cancel()
	}
}

func (c *Client) forgetCancel(requestID string) {
	if requestID == "" {
		return
	}
	c.mu.Lock()
	delete(c.cancelled, requestID)
	c.mu.Unlock()
}

// Close releases pooled idle connections.
func (c *Client) Close() {
	if transport, ok := c.httpClient.Transport.(*http.Transport); ok {
		transport.CloseIdleConnections()
	}
}

// backoffDelay returns the delay before retry attempt n (n >= 1): 500ms
// doubling up to a 4s cap.
func backoffDelay(attempt int) time.Duration {
	d := time.Duration(float64(baseRetryDelay) * math.Pow(2, float64(attempt-1)))
	if d > maxRetryDelay {
		return maxRetryDelay
	}
	return d
}

func asProviderError(err error, target **Error) bool {
	pErr, ok := err.(*Error)
	if !ok {
		return false
	}
	*target = pErr
	return true
}
