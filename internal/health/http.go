package health

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"
)

// HTTPHandler exposes liveness and readiness probes.
type HTTPHandler struct {
	manager *Manager
	logger  *zap.Logger
}

func NewHTTPHandler(manager *Manager, logger *zap.Logger) *HTTPHandler {
	return &HTTPHandler{manager: manager, logger: logger}
}

func (h *HTTPHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /health/live", h.handleLiveness)
	mux.HandleFunc("GET /health/ready", h.handleReadiness)
}

// handleLiveness reports the process is serving; it never touches the engine.
func (h *HTTPHandler) handleLiveness(w http.ResponseWriter, _ *http.Request) {
	h.write(w, http.StatusOK, map[string]any{"status": "live"})
}

func (h *HTTPHandler) handleReadiness(w http.ResponseWriter, r *http.Request) {
	report := h.manager.Check(r.Context())
	code := http.StatusOK
	if !report.Ready {
		code = http.StatusServiceUnavailable
	}
	h.write(w, code, report)
}

func (h *HTTPHandler) write(w http.ResponseWriter, code int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.logger.Error("Failed to encode health response", zap.Error(err))
	}
}
