package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"ccproxy/pkg/config"
	"ccproxy/pkg/manager"
)

func writeProvidersFile(t *testing.T, baseURL string) string {
	t.Helper()
	cfg := config.ProviderManagerConfig{
		Providers: []config.ProviderConfig{{
			Name: "A", Enabled: true, Priority: 1, BaseURL: baseURL,
			TimeoutSecs: 5, Models: config.ModelList{Small: []string{"m1"}, Big: []string{"m1"}},
		}},
		FallbackStrategy: config.StrategyPriority,
		CircuitBreaker:   config.CircuitBreakerConfig{FailureThreshold: 3, RecoveryTimeout: 60},
	}
	raw, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	path := filepath.Join(t.TempDir(), "providers.json")
	if err := os.WriteFile(path, raw, 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
	return path
}

func TestAdminHandler_GetProviders(t *testing.T) {
	srv := okServer(t)
	defer srv.Close()
	path := writeProvidersFile(t, srv.URL)

	cfg, err := config.LoadProviderManagerConfig(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	mgr := manager.New(cfg, nil, testLogger())
	holder := manager.NewHolder(mgr)
	h := NewAdminHandler(holder, path, nil, testLogger())

	req := httptest.NewRequest(http.MethodGet, "/api/config/providers", nil)
	rec := httptest.NewRecorder()
	h.GetProviders(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var out config.ProviderManagerConfig
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(out.Providers) != 1 || out.Providers[0].Name != "A" {
		t.Errorf("providers = %+v, want one named A", out.Providers)
	}
}

func TestAdminHandler_PutProvidersThenReload(t *testing.T) {
	srv := okServer(t)
	defer srv.Close()
	path := writeProvidersFile(t, srv.URL)

	cfg, _ := config.LoadProviderManagerConfig(path)
	mgr := manager.New(cfg, nil, testLogger())
	holder := manager.NewHolder(mgr)
	h := NewAdminHandler(holder, path, nil, testLogger())

	updated := config.ProviderManagerConfig{
		Providers: []config.ProviderConfig{{
			Name: "A", Enabled: true, Priority: 1, BaseURL: srv.URL,
			TimeoutSecs: 5, Models: config.ModelList{Small: []string{"m2"}, Big: []string{"m2"}},
		}},
		FallbackStrategy: config.StrategyPriority,
		CircuitBreaker:   config.CircuitBreakerConfig{FailureThreshold: 3, RecoveryTimeout: 60},
	}
	body, _ := json.Marshal(updated)

	putReq := httptest.NewRequest(http.MethodPut, "/api/config/providers", bytes.NewReader(body))
	putRec := httptest.NewRecorder()
	h.PutProviders(putRec, putReq)
	if putRec.Code != http.StatusOK {
		t.Fatalf("put status = %d, body = %s", putRec.Code, putRec.Body.String())
	}

	reloadReq := httptest.NewRequest(http.MethodPost, "/api/config/reload", nil)
	reloadRec := httptest.NewRecorder()
	h.Reload(reloadRec, reloadReq)
	if reloadRec.Code != http.StatusOK {
		t.Fatalf("reload status = %d, body = %s", reloadRec.Code, reloadRec.Body.String())
	}

	if holder.Get() == mgr {
		t.Error("reload did not swap in a new Manager instance")
	}
}

func TestAdminHandler_ToggleProvider(t *testing.T) {
	srv := okServer(t)
	defer srv.Close()
	path := writeProvidersFile(t, srv.URL)

	cfg, _ := config.LoadProviderManagerConfig(path)
	mgr := manager.New(cfg, nil, testLogger())
	holder := manager.NewHolder(mgr)
	h := NewAdminHandler(holder, path, nil, testLogger())

	body, _ := json.Marshal(map[string]bool{"enabled": false})
	req := httptest.NewRequest(http.MethodPut, "/api/providers/A/toggle", bytes.NewReader(body))
	req.SetPathValue("name", "A")
	rec := httptest.NewRecorder()
	h.ToggleProvider(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if mgr.Get("A").Status != manager.StatusDisabled {
		t.Errorf("status = %s, want disabled", mgr.Get("A").Status)
	}
}

func TestAdminHandler_TestProvider(t *testing.T) {
	srv := okServer(t)
	defer srv.Close()
	path := writeProvidersFile(t, srv.URL)

	cfg, _ := config.LoadProviderManagerConfig(path)
	mgr := manager.New(cfg, nil, testLogger())
	holder := manager.NewHolder(mgr)
	h := NewAdminHandler(holder, path, nil, testLogger())

	req := httptest.NewRequest(http.MethodPost, "/api/providers/A/test", nil)
	req.SetPathValue("name", "A")
	rec := httptest.NewRecorder()
	h.TestProvider(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
}
