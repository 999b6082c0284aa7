package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"ccproxy/pkg/claude"
	"ccproxy/pkg/config"
	"ccproxy/pkg/manager"
	"ccproxy/pkg/providers"
	"ccproxy/pkg/telemetry/metrics"
)

// AdminHandler serves the admin surface (§6): live config get/put, reload,
// per-provider connectivity test, and in-memory enable/disable toggle. It
// holds the same *manager.Holder the Fallback Controller reads from, so a
// reload's atomic swap is visible to both the proxy and the next admin
// call, and a providersPath used to persist and re-read the on-disk
// document.
type AdminHandler struct {
	holder        *manager.Holder
	providersPath string
	metrics       *metrics.Metrics
	logger        *slog.Logger
}

func NewAdminHandler(holder *manager.Holder, providersPath string, m *metrics.Metrics, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{holder: holder, providersPath: providersPath, metrics: m, logger: logger}
}

// GetProviders serves GET /api/config/providers: the current on-disk
// document, re-read fresh so it reflects the most recent save or reload,
// returned with defaults applied and ${VAR} references expanded.
func (h *AdminHandler) GetProviders(w http.ResponseWriter, r *http.Request) {
	cfg, err := config.LoadProviderManagerConfig(h.providersPath)
	if err != nil {
		claude.WriteError(w, r, h.logger, &providers.Error{Kind: providers.KindConfig, Message: err.Error()})
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(cfg)
}

// PutProviders serves PUT /api/config/providers: a whole-document replace,
// validated before anything touches disk. It does not by itself rebuild
// the live Manager — callers follow up with POST /api/config/reload to
// pick up the new document (§8 "GET followed by PUT is a no-op").
func (h *AdminHandler) PutProviders(w http.ResponseWriter, r *http.Request) {
	var cfg config.ProviderManagerConfig
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		claude.WriteError(w, r, h.logger, &providers.Error{Kind: providers.KindInvalidRequest, Message: "malformed config document: " + err.Error()})
		return
	}
	config.ApplyProviderManagerDefaults(&cfg)
	if err := config.SaveProviderManagerConfig(h.providersPath, &cfg); err != nil {
		claude.WriteError(w, r, h.logger, &providers.Error{Kind: providers.KindConfig, Message: err.Error()})
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "saved"})
}

// Reload serves POST /api/config/reload: reloads providersPath, builds a
// fresh Manager from it, and atomically swaps it into the live Holder.
// Requests already in flight keep using the Manager they picked up at the
// start of their own lifecycle.
func (h *AdminHandler) Reload(w http.ResponseWriter, r *http.Request) {
	pmc, err := config.LoadProviderManagerConfig(h.providersPath)
	if err != nil {
		claude.WriteError(w, r, h.logger, &providers.Error{Kind: providers.KindConfig, Message: err.Error()})
		return
	}
	if err := config.ValidateProviderManagerConfig(pmc); err != nil {
		claude.WriteError(w, r, h.logger, &providers.Error{Kind: providers.KindConfig, Message: err.Error()})
		return
	}
	if _, err := config.ReloadConfig(h.providersPath); err != nil {
		claude.WriteError(w, r, h.logger, &providers.Error{Kind: providers.KindConfig, Message: err.Error()})
		return
	}

	oldMgr := h.holder.Get()
	newMgr := manager.New(pmc, h.metrics, h.logger)
	h.holder.Swap(newMgr)
	go func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := oldMgr.Close(closeCtx); err != nil {
			h.logger.Warn("error closing superseded manager", "error", err)
		}
	}()

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{"status": "reloaded", "providers": len(newMgr.Snapshots())})
}

// TestProvider serves POST /api/providers/{name}/test: sends a minimal
// completion directly to the named provider's client (bypassing the
// Fallback Controller's cross-provider escalation, since the point of
// this endpoint is to test exactly the named provider), walking size
// classes small, middle, big in that order and reporting the first one
// to answer (§6).
func (h *AdminHandler) TestProvider(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	mgr := h.holder.Get()
	state := mgr.Get(name)
	if state == nil {
		claude.WriteError(w, r, h.logger, &providers.Error{Kind: providers.KindInvalidRequest, Message: "no such provider: " + name})
		return
	}

	req := &providers.CompletionRequest{
		MaxTokens: 16,
		Messages:  []providers.Message{{Role: "user", Content: "ping"}},
	}
	for _, class := range []string{config.SizeSmall, config.SizeMiddle, config.SizeBig} {
		models := state.Config.Models.ForClass(class)
		if len(models) == 0 {
			continue
		}
		req.Model = models[0]
		resp, err := state.Client.Complete(r.Context(), req)
		if err == nil {
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(map[string]interface{}{"status": "ok", "size_class": class, "model": resp.Model})
			return
		}
	}
	claude.WriteError(w, r, h.logger, &providers.Error{Kind: providers.KindUpstream, Message: "provider did not answer for any configured size class", Provider: name})
}

// ToggleProvider serves PUT /api/providers/{name}/toggle with body
// {"enabled": bool}. In-memory only; does not persist to disk (§6).
func (h *AdminHandler) ToggleProvider(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	var body struct {
		Enabled bool `json:"enabled"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		claude.WriteError(w, r, h.logger, &providers.Error{Kind: providers.KindInvalidRequest, Message: "malformed toggle body: " + err.Error()})
		return
	}

	mgr := h.holder.Get()
	if err := mgr.Toggle(name, body.Enabled); err != nil {
		claude.WriteError(w, r, h.logger, &providers.Error{Kind: providers.KindInvalidRequest, Message: err.Error()})
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{"name": name, "enabled": body.Enabled})
}
