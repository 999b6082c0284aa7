package fallback

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"ccproxy/pkg/claude"
	"ccproxy/pkg/config"
	"ccproxy/pkg/manager"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func okServer(t *testing.T, model string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"id":"cmpl_1","object":"chat.completion","model":%q,
			"choices":[{"index":0,"message":{"role":"assistant","content":"hi there"},"finish_reason":"stop"}],
			"usage":{"prompt_tokens":3,"completion_tokens":2,"total_tokens":5}}`, model)
	}))
}

func failServer(t *testing.T, status int) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		w.Write([]byte(`{"error":{"message":"boom"}}`))
	}))
}

func providerConfig(name, baseURL string, priority int) config.ProviderConfig {
	return config.ProviderConfig{
		Name: name, Enabled: true, Priority: priority, BaseURL: baseURL,
		TimeoutSecs: 5, MaxRetries: 0,
		Models: config.ModelList{Big: []string{"m1", "m2"}},
	}
}

func testManager(t *testing.T, providers ...config.ProviderConfig) *manager.Manager {
	t.Helper()
	cfg := &config.ProviderManagerConfig{
		Providers:        providers,
		FallbackStrategy: config.StrategyPriority,
		CircuitBreaker:   config.CircuitBreakerConfig{FailureThreshold: 3, RecoveryTimeout: 60},
	}
	return manager.New(cfg, nil, testLogger())
}

func sampleRequest() *claude.Request {
	return &claude.Request{
		Model:     "claude-3-opus",
		MaxTokens: 100,
		Messages:  []claude.Message{{Role: "user", Content: "hello"}},
	}
}

func TestHandleUnary_Success(t *testing.T) {
	srv := okServer(t, "m1")
	defer srv.Close()

	mgr := testManager(t, providerConfig("A", srv.URL, 1))
	ctrl := New(manager.NewHolder(mgr), 1, 4096, testLogger(), nil)

	resp, err := ctrl.HandleUnary(context.Background(), "req-1", sampleRequest())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Model != "claude-3-opus" {
		t.Errorf("model = %s, want echoed inbound model", resp.Model)
	}
	if len(resp.Content) != 1 {
		t.Fatalf("content blocks = %d, want 1", len(resp.Content))
	}
}

func TestHandleUnary_RotatesModelWithinProviderBeforeEscalating(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		json.NewDecoder(r.Body).Decode(&body)
		calls++
		if body["model"] == "m1" {
			w.WriteHeader(http.StatusBadGateway)
			w.Write([]byte(`{"error":{"message":"upstream down"}}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"id":"cmpl_2","choices":[{"index":0,"message":{"role":"assistant","content":"ok"},"finish_reason":"stop"}],"usage":{}}`)
	}))
	defer srv.Close()

	mgr := testManager(t, providerConfig("A", srv.URL, 1))
	ctrl := New(manager.NewHolder(mgr), 1, 4096, testLogger(), nil)

	resp, err := ctrl.HandleUnary(context.Background(), "req-2", sampleRequest())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 2 {
		t.Fatalf("calls = %d, want 2 (m1 fails, m2 succeeds)", calls)
	}
	if resp.StopReason != "end_turn" {
		t.Errorf("stop_reason = %s, want end_turn", resp.StopReason)
	}
}

func TestHandleUnary_EscalatesToNextProvider(t *testing.T) {
	down := failServer(t, http.StatusBadGateway)
	defer down.Close()
	up := okServer(t, "m1")
	defer up.Close()

	mgr := testManager(t, providerConfig("A", down.URL, 1), providerConfig("B", up.URL, 2))
	ctrl := New(manager.NewHolder(mgr), 1, 4096, testLogger(), nil)

	resp, err := ctrl.HandleUnary(context.Background(), "req-3", sampleRequest())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp == nil {
		t.Fatal("expected a response from provider B")
	}
	if mgr.Get("A").Status != manager.StatusUnhealthy {
		t.Errorf("provider A status = %s, want unhealthy after escalation", mgr.Get("A").Status)
	}
}

func TestHandleUnary_NonRecoverableSurfacesImmediately(t *testing.T) {
	down := failServer(t, http.StatusUnauthorized)
	defer down.Close()
	up := okServer(t, "m1")
	defer up.Close()

	mgr := testManager(t, providerConfig("A", down.URL, 1), providerConfig("B", up.URL, 2))
	ctrl := New(manager.NewHolder(mgr), 1, 4096, testLogger(), nil)

	_, err := ctrl.HandleUnary(context.Background(), "req-4", sampleRequest())
	if err == nil {
		t.Fatal("expected an auth error")
	}
	if err.Kind != "auth" {
		t.Errorf("kind = %s, want auth", err.Kind)
	}
}

func TestHandleUnary_NoProvidersConfigured(t *testing.T) {
	mgr := testManager(t)
	ctrl := New(manager.NewHolder(mgr), 1, 4096, testLogger(), nil)

	_, err := ctrl.HandleUnary(context.Background(), "req-5", sampleRequest())
	if err == nil || err.Kind != "no_provider" {
		t.Fatalf("err = %v, want no_provider", err)
	}
}

func TestHandleUnary_AllProvidersFailReturnsLastError(t *testing.T) {
	downA := failServer(t, http.StatusBadGateway)
	defer downA.Close()
	downB := failServer(t, http.StatusBadGateway)
	defer downB.Close()

	mgr := testManager(t, providerConfig("A", downA.URL, 1), providerConfig("B", downB.URL, 2))
	ctrl := New(manager.NewHolder(mgr), 1, 4096, testLogger(), nil)

	_, err := ctrl.HandleUnary(context.Background(), "req-6", sampleRequest())
	if err == nil {
		t.Fatal("expected exhaustion error")
	}
	if err.Kind != "upstream" {
		t.Errorf("kind = %s, want upstream", err.Kind)
	}
}

func sseServer(t *testing.T, chunks []string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		for _, c := range chunks {
			fmt.Fprintf(w, "data: %s\n\n", c)
			flusher.Flush()
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
		flusher.Flush()
	}))
}

func TestHandleStream_TranslatesTextDeltas(t *testing.T) {
	srv := sseServer(t, []string{
		`{"id":"c1","choices":[{"index":0,"delta":{"content":"Hello"}}]}`,
		`{"id":"c1","choices":[{"index":0,"delta":{"content":" there"},"finish_reason":"stop"}],"usage":{"completion_tokens":2}}`,
	})
	defer srv.Close()

	mgr := testManager(t, providerConfig("A", srv.URL, 1))
	ctrl := New(manager.NewHolder(mgr), 1, 4096, testLogger(), nil)

	events, err := ctrl.HandleStream(context.Background(), "req-stream-1", sampleRequest())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var names []string
	for e := range events {
		names = append(names, e.Event.Name)
	}

	want := []string{"message_start", "content_block_start", "content_block_delta", "content_block_delta", "content_block_stop", "message_delta", "message_stop"}
	if len(names) != len(want) {
		t.Fatalf("events = %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("event[%d] = %s, want %s", i, names[i], want[i])
		}
	}

	if mgr.Get("A").Status != manager.StatusHealthy {
		t.Errorf("provider status = %s, want healthy after success", mgr.Get("A").Status)
	}
}

func TestHandleStream_NoProvidersConfigured(t *testing.T) {
	mgr := testManager(t)
	ctrl := New(manager.NewHolder(mgr), 1, 4096, testLogger(), nil)

	_, err := ctrl.HandleStream(context.Background(), "req-stream-2", sampleRequest())
	if err == nil || err.Kind != "no_provider" {
		t.Fatalf("err = %v, want no_provider", err)
	}
}
