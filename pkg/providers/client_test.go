package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func TestClient_Complete_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer sk-test" {
			t.Errorf("Authorization header = %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(CompletionResponse{
			ID:      "chatcmpl-1",
			Model:   "gpt-4o",
			Choices: []Choice{{Message: Message{Role: "assistant", Content: "hi"}, FinishReason: "stop"}},
			Usage:   Usage{PromptTokens: 1, CompletionTokens: 1, TotalTokens: 2},
		})
	}))
	defer srv.Close()

	c := NewClient(ClientConfig{Name: "p1", BaseURL: srv.URL, APIKey: "sk-test", TimeoutSecs: 5})
	resp, err := c.Complete(context.Background(), &CompletionRequest{Model: "gpt-4o"})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if resp.ID != "chatcmpl-1" {
		t.Errorf("ID = %q", resp.ID)
	}
}

func TestClient_Complete_AuthErrorNoRetry(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":"bad key"}`))
	}))
	defer srv.Close()

	c := NewClient(ClientConfig{Name: "p1", BaseURL: srv.URL, APIKey: "sk-bad", MaxRetries: 3, TimeoutSecs: 5})
	_, err := c.Complete(context.Background(), &CompletionRequest{Model: "gpt-4o"})
	if err == nil {
		t.Fatal("expected error")
	}
	pErr, ok := err.(*Error)
	if !ok || pErr.Kind != KindAuth {
		t.Fatalf("expected KindAuth, got %#v", err)
	}
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Errorf("expected exactly 1 call (no retry on auth error), got %d", got)
	}
}

func TestClient_Complete_ConnectionErrorRetries(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&calls, 1)
		if n < 3 {
			hj, ok := w.(http.Hijacker)
			if ok {
				conn, _, _ := hj.Hijack()
				conn.Close()
				return
			}
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(CompletionResponse{ID: "ok", Choices: []Choice{{FinishReason: "stop"}}})
	}))
	defer srv.Close()

	c := NewClient(ClientConfig{Name: "p1", BaseURL: srv.URL, APIKey: "sk", MaxRetries: 3, TimeoutSecs: 5})
	resp, err := c.Complete(context.Background(), &CompletionRequest{Model: "gpt-4o"})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if resp.ID != "ok" {
		t.Errorf("ID = %q", resp.ID)
	}
	if got := atomic.LoadInt32(&calls); got < 3 {
		t.Errorf("expected retries, got %d calls", got)
	}
}

func TestClient_CompleteStream_DecodesChunksAndDone(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		fmt.Fprintf(w, "data: %s\n\n", `{"id":"1","choices":[{"index":0,"delta":{"role":"assistant"}}]}`)
		flusher.Flush()
		fmt.Fprintf(w, "data: %s\n\n", `{"id":"1","choices":[{"index":0,"delta":{"content":"hi"}}]}`)
		flusher.Flush()
		fmt.Fprintf(w, "data: [DONE]\n\n")
		flusher.Flush()
	}))
	defer srv.Close()

	c := NewClient(ClientConfig{Name: "p1", BaseURL: srv.URL, APIKey: "sk", TimeoutSecs: 5})
	events, err := c.CompleteStream(context.Background(), &CompletionRequest{Model: "gpt-4o"}, "req-1")
	if err != nil {
		t.Fatalf("CompleteStream: %v", err)
	}

	var chunks []StreamChunk
	for ev := range events {
		if ev.Err != nil {
			t.Fatalf("unexpected stream error: %v", ev.Err)
		}
		chunks = append(chunks, *ev.Chunk)
	}
	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks, got %d", len(chunks))
	}
	if chunks[1].Choices[0].Delta.Content != "hi" {
		t.Errorf("content = %q", chunks[1].Choices[0].Delta.Content)
	}
}

func TestClient_CompleteStream_CancelStopsRead(t *testing.T) {
	blockCh := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		fmt.Fprintf(w, "data: %s\n\n", `{"id":"1","choices":[{"index":0,"delta":{"role":"assistant"}}]}`)
		flusher.Flush()
		<-r.Context().Done()
		close(blockCh)
	}))
	defer srv.Close()

	c := NewClient(ClientConfig{Name: "p1", BaseURL: srv.URL, APIKey: "sk", TimeoutSecs: 5})
	events, err := c.CompleteStream(context.Background(), &CompletionRequest{Model: "gpt-4o"}, "req-cancel")
	if err != nil {
		t.Fatalf("CompleteStream: %v", err)
	}
	<-events // first chunk
	c.Cancel("req-cancel")

	select {
	case <-blockCh:
	case <-time.After(2 * time.Second):
		t.Fatal("cancel did not propagate to server context")
	}
}

func TestClient_AzureURLVariant(t *testing.T) {
	var gotPath, gotQuery, gotAPIKeyHeader string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
		gotAPIKeyHeader = r.Header.Get("api-key")
		json.NewEncoder(w).Encode(CompletionResponse{Choices: []Choice{{FinishReason: "stop"}}})
	}))
	defer srv.Close()

	c := NewClient(ClientConfig{Name: "azure", BaseURL: srv.URL, APIKey: "sk-azure", APIVersion: "2024-05-01", TimeoutSecs: 5})
	_, err := c.Complete(context.Background(), &CompletionRequest{Model: "gpt-4o-deploy"})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if gotPath != "/openai/deployments/gpt-4o-deploy/chat/completions" {
		t.Errorf("path = %q", gotPath)
	}
	if gotQuery != "api-version=2024-05-01" {
		t.Errorf("query = %q", gotQuery)
	}
	if gotAPIKeyHeader != "sk-azure" {
		t.Errorf("api-key header = %q", gotAPIKeyHeader)
	}
}

func TestClient_CustomHeaderWinsOverAuth(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		json.NewEncoder(w).Encode(CompletionResponse{Choices: []Choice{{FinishReason: "stop"}}})
	}))
	defer srv.Close()

	c := NewClient(ClientConfig{
		Name: "p1", BaseURL: srv.URL, APIKey: "sk-default", TimeoutSecs: 5,
		CustomHeaders: map[string]string{"Authorization": "Bearer sk-override"},
	})
	_, err := c.Complete(context.Background(), &CompletionRequest{Model: "gpt-4o"})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if gotAuth != "Bearer sk-override" {
		t.Errorf("Authorization = %q, want custom header to win", gotAuth)
	}
}
