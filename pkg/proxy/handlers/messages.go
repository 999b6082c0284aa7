package handlers

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"unicode/utf8"

	"github.com/google/uuid"

	"ccproxy/pkg/claude"
	"ccproxy/pkg/fallback"
	"ccproxy/pkg/proxy/middleware"
	"ccproxy/pkg/providers"
)

// MessagesHandler serves POST /v1/messages: the unary and streaming
// Claude Messages endpoint (§6).
type MessagesHandler struct {
	controller *fallback.Controller
	logger     *slog.Logger
}

func NewMessagesHandler(controller *fallback.Controller, logger *slog.Logger) *MessagesHandler {
	return &MessagesHandler{controller: controller, logger: logger}
}

func (h *MessagesHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		claude.WriteError(w, r, h.logger, &providers.Error{Kind: providers.KindInvalidRequest, Message: "method not allowed"})
		return
	}

	var req claude.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequest(w, r, h.logger, "malformed request body: "+err.Error())
		return
	}
	if req.Model == "" {
		writeInvalidRequest(w, r, h.logger, "model is required")
		return
	}

	requestID := middleware.GetRequestID(r.Context())
	if requestID == "" {
		requestID = uuid.NewString()
	}

	if req.Stream {
		h.serveStream(w, r, requestID, &req)
		return
	}
	h.serveUnary(w, r, requestID, &req)
}

func (h *MessagesHandler) serveUnary(w http.ResponseWriter, r *http.Request, requestID string, req *claude.Request) {
	resp, err := h.controller.HandleUnary(r.Context(), requestID, req)
	if err != nil {
		claude.WriteError(w, r, h.logger, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Request-ID", requestID)
	json.NewEncoder(w).Encode(resp)
}

func (h *MessagesHandler) serveStream(w http.ResponseWriter, r *http.Request, requestID string, req *claude.Request) {
	events, err := h.controller.HandleStream(r.Context(), requestID, req)
	if err != nil {
		claude.WriteError(w, r, h.logger, err)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		claude.WriteError(w, r, h.logger, &providers.Error{Kind: providers.KindInternal, Message: "response writer does not support streaming"})
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Request-ID", requestID)
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for ev := range events {
		payload, err := json.Marshal(ev.Event.Payload)
		if err != nil {
			h.logger.Error("failed to marshal stream event", "request_id", requestID, "error", err)
			continue
		}
		fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Event.Name, payload)
		flusher.Flush()
	}
}

func writeInvalidRequest(w http.ResponseWriter, r *http.Request, logger *slog.Logger, message string) {
	claude.WriteError(w, r, logger, &providers.Error{Kind: providers.KindInvalidRequest, Message: message})
}

// CountTokensHandler serves POST /v1/messages/count_tokens: a crude
// character-count heuristic (§6), never a real tokenizer.
type CountTokensHandler struct {
	logger *slog.Logger
}

func NewCountTokensHandler(logger *slog.Logger) *CountTokensHandler {
	return &CountTokensHandler{logger: logger}
}

func (h *CountTokensHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req claude.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequest(w, r, h.logger, "malformed request body: "+err.Error())
		return
	}

	chars := systemCharCount(req.System)
	for _, m := range req.Messages {
		chars += messageCharCount(m)
	}

	tokens := chars / 4
	if tokens < 1 {
		tokens = 1
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]int{"input_tokens": tokens})
}

func systemCharCount(system interface{}) int {
	switch v := system.(type) {
	case string:
		return utf8.RuneCountInString(v)
	case []claude.TextBlock:
		n := 0
		for _, b := range v {
			n += utf8.RuneCountInString(b.Text)
		}
		return n
	default:
		return 0
	}
}

func messageCharCount(m claude.Message) int {
	switch content := m.Content.(type) {
	case string:
		return utf8.RuneCountInString(content)
	case claude.Blocks:
		n := 0
		for _, b := range content {
			switch block := b.(type) {
			case claude.TextBlock:
				n += utf8.RuneCountInString(block.Text)
			case claude.ToolResultBlock:
				if s, ok := block.Content.(string); ok {
					n += utf8.RuneCountInString(s)
				}
			}
		}
		return n
	default:
		return 0
	}
}
