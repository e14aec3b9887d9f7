package handlers

import (
	"net/http"
	"os"
	"runtime"

	"go.uber.org/zap"

	"github.com/shambu-network/shambu/pkg/config"
	"github.com/shambu-network/shambu/pkg/views"
)

// PingResponse contains service status and version information.
type PingResponse struct {
	Status      string `json:"status"`
	Version     string `json:"version"`
	Service     string `json:"service"`
	Backend     string `json:"backend"`
	GoVersion   string `json:"go_version"`
	Hostname    string `json:"hostname"`
	Environment string `json:"environment"`
	ViewState   string `json:"view_state,omitempty"`
}

// StatusReporter reports the lifecycle state of the server's profile view.
type StatusReporter interface {
	State() views.State
}

// HealthHandler handles health check and ping endpoints.
type HealthHandler struct {
	cfg    *config.Config
	view   StatusReporter
	logger *zap.Logger
}

// NewHealthHandler creates a new HealthHandler. view may be nil.
func NewHealthHandler(cfg *config.Config, view StatusReporter, logger *zap.Logger) *HealthHandler {
	return &HealthHandler{cfg: cfg, view: view, logger: logger}
}

// RegisterRoutes registers the health handler's routes on the given mux.
func (h *HealthHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", h.Health)
	mux.HandleFunc("GET /ping", h.Ping)
}

// Health handles GET /health requests.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// Ping handles GET /ping requests.
func (h *HealthHandler) Ping(w http.ResponseWriter, r *http.Request) {
	hostname, err := os.Hostname()
	if err != nil {
		http.Error(w, "failed to get hostname", http.StatusInternalServerError)
		return
	}

	response := PingResponse{
		Status:      "ok",
		Version:     h.cfg.Version,
		Service:     "shambu",
		Backend:     h.cfg.Backend.Type,
		GoVersion:   runtime.Version(),
		Hostname:    hostname,
		Environment: h.cfg.Env,
	}
	if h.view != nil {
		response.ViewState = h.view.State().String()
	}

	writeOK(w, h.logger, http.StatusOK, response)
}
