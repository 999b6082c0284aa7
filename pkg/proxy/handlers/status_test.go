package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"ccproxy/pkg/config"
	"ccproxy/pkg/manager"
)

func TestHealthHandler(t *testing.T) {
	cfg := &config.ProviderManagerConfig{
		Providers: []config.ProviderConfig{{
			Name: "A", Enabled: true, Priority: 1, BaseURL: "http://example.invalid",
			TimeoutSecs: 5, Models: config.ModelList{Big: []string{"m1"}},
		}},
		FallbackStrategy: config.StrategyPriority,
		CircuitBreaker:   config.CircuitBreakerConfig{FailureThreshold: 3, RecoveryTimeout: 60},
	}
	mgr := manager.New(cfg, nil, testLogger())
	h := NewHealthHandler(manager.NewHolder(mgr))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var out map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out["status"] != "healthy" {
		t.Errorf("status = %v, want healthy for a freshly constructed manager", out["status"])
	}
}

func TestHealthHandler_NoProviders(t *testing.T) {
	cfg := &config.ProviderManagerConfig{FallbackStrategy: config.StrategyPriority}
	mgr := manager.New(cfg, nil, testLogger())
	h := NewHealthHandler(manager.NewHolder(mgr))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var out map[string]interface{}
	json.Unmarshal(rec.Body.Bytes(), &out)
	if out["status"] != "unhealthy" {
		t.Errorf("status = %v, want unhealthy with zero providers", out["status"])
	}
}

func TestTestConnectionHandler(t *testing.T) {
	srv := okServer(t)
	defer srv.Close()

	h := NewTestConnectionHandler(testController(t, srv), testLogger())
	req := httptest.NewRequest(http.MethodGet, "/test-connection", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var out map[string]interface{}
	json.Unmarshal(rec.Body.Bytes(), &out)
	if out["status"] != "ok" {
		t.Errorf("status = %v, want ok", out["status"])
	}
}

func TestRootHandler(t *testing.T) {
	cfg := &config.ProviderManagerConfig{FallbackStrategy: config.StrategyPriority}
	mgr := manager.New(cfg, nil, testLogger())
	h := NewRootHandler(manager.NewHolder(mgr))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var out map[string]interface{}
	json.Unmarshal(rec.Body.Bytes(), &out)
	if out["name"] != "ccproxy" {
		t.Errorf("name = %v, want ccproxy", out["name"])
	}
}
