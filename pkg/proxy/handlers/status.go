package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"ccproxy/pkg/buildinfo"
	"ccproxy/pkg/claude"
	"ccproxy/pkg/fallback"
	"ccproxy/pkg/manager"
)

// HealthHandler serves GET /health: overall status, timestamp, and a
// per-provider summary (§6).
type HealthHandler struct {
	holder *manager.Holder
}

func NewHealthHandler(holder *manager.Holder) *HealthHandler {
	return &HealthHandler{holder: holder}
}

func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	snapshots := h.holder.Get().Snapshots()
	status := "healthy"
	healthyCount := 0
	for _, s := range snapshots {
		if s.Status == string(manager.StatusHealthy) {
			healthyCount++
		}
	}
	if len(snapshots) == 0 || healthyCount == 0 {
		status = "unhealthy"
	} else if healthyCount < len(snapshots) {
		status = "degraded"
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status":    status,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"providers": snapshots,
	})
}

// TestConnectionHandler serves GET /test-connection: attempts a `small`
// call and reports which provider answered (§6). The reported "model" is
// the inbound model name the probe was sent under; the upstream model the
// provider rotation chose is not reported.
type TestConnectionHandler struct {
	controller *fallback.Controller
	logger     *slog.Logger
}

func NewTestConnectionHandler(controller *fallback.Controller, logger *slog.Logger) *TestConnectionHandler {
	return &TestConnectionHandler{controller: controller, logger: logger}
}

func (h *TestConnectionHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	req := &claude.Request{
		Model:     "claude-3-haiku-20240307",
		MaxTokens: 16,
		Messages:  []claude.Message{{Role: "user", Content: "ping"}},
	}

	resp, err := h.controller.HandleUnary(r.Context(), "test-connection", req)
	if err != nil {
		claude.WriteError(w, r, h.logger, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status":   "ok",
		"provider": resp.Provider,
		"model":    resp.Model,
	})
}

// RootHandler serves GET /: version and a config summary (§6).
type RootHandler struct {
	holder *manager.Holder
}

func NewRootHandler(holder *manager.Holder) *RootHandler {
	return &RootHandler{holder: holder}
}

func (h *RootHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"name":      "ccproxy",
		"version":   buildinfo.Version,
		"providers": len(h.holder.Get().Snapshots()),
	})
}
