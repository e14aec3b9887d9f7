package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/shambu-network/shambu/pkg/apperrors"
	"github.com/shambu-network/shambu/pkg/auth"
	"github.com/shambu-network/shambu/pkg/graph"
	"github.com/shambu-network/shambu/pkg/mapper"
	"github.com/shambu-network/shambu/pkg/models"
	"github.com/shambu-network/shambu/pkg/repositories"
	"github.com/shambu-network/shambu/pkg/views"
)

// Network walk depth bounds for GET /api/profiles/{id}/network.
const (
	DefaultNetworkDepth = 2
	MaxNetworkDepth     = 10
)

// ProfileListResponse is the body of GET /api/profiles.
type ProfileListResponse struct {
	Profiles []models.Profile `json:"profiles"`
	State    string           `json:"state"`
	// Stale is set when the last fetch failed and Profiles is the previous collection.
	Stale bool   `json:"stale,omitempty"`
	Error string `json:"error,omitempty"`
}

// GraphResponse is the body of GET /api/graph.
type GraphResponse struct {
	graph.Graph
	Components []graph.Component `json:"components,omitempty"`
	Islands    []string          `json:"islands,omitempty"`
}

// ProfilesHandler serves the profile collection from the shared list view.
type ProfilesHandler struct {
	view        *views.ProfileListView
	profiles    repositories.ProfileRepository
	connections repositories.ConnectionRepository
	logger      *zap.Logger
}

// NewProfilesHandler creates a new profiles handler.
func NewProfilesHandler(view *views.ProfileListView, profiles repositories.ProfileRepository, connections repositories.ConnectionRepository, logger *zap.Logger) *ProfilesHandler {
	return &ProfilesHandler{
		view:        view,
		profiles:    profiles,
		connections: connections,
		logger:      logger,
	}
}

// RegisterRoutes registers the profiles handler's routes on the given mux.
func (h *ProfilesHandler) RegisterRoutes(mux *http.ServeMux, authMiddleware *auth.Middleware) {
	mux.HandleFunc("GET /api/profiles", authMiddleware.RequireAuth(h.List))
	mux.HandleFunc("POST /api/profiles", authMiddleware.RequireAuth(h.Create))
	mux.HandleFunc("POST /api/profiles/refresh", authMiddleware.RequireAuth(h.Refresh))
	mux.HandleFunc("GET /api/profiles/{id}", authMiddleware.RequireAuth(h.Get))
	mux.HandleFunc("PATCH /api/profiles/{id}", authMiddleware.RequireAuth(h.Update))
	mux.HandleFunc("DELETE /api/profiles/{id}", authMiddleware.RequireAuth(h.Delete))
	mux.HandleFunc("GET /api/profiles/{id}/network", authMiddleware.RequireAuth(h.Network))
	mux.HandleFunc("GET /api/graph", authMiddleware.RequireAuth(h.Graph))
}

// ensureLoaded fetches if the view has never been loaded and retries if the
// last fetch failed.
func (h *ProfilesHandler) ensureLoaded(r *http.Request) error {
	switch h.view.State() {
	case views.StateIdle:
		return h.view.Fetch(r.Context())
	case views.StateError:
		return h.view.Retry(r.Context())
	}
	return nil
}

// Refresh handles POST /api/profiles/refresh
// Refetches the collection regardless of state.
func (h *ProfilesHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	if err := h.view.Retry(r.Context()); err != nil {
		writeError(w, h.logger, err, "Failed to refresh profiles")
		return
	}
	writeOK(w, h.logger, http.StatusOK, ProfileListResponse{
		Profiles: h.view.Profiles(),
		State:    h.view.State().String(),
	})
}

// List handles GET /api/profiles?q=
// Filters the cached collection locally; a failed fetch still serves the
// previous collection marked stale.
func (h *ProfilesHandler) List(w http.ResponseWriter, r *http.Request) {
	if err := h.ensureLoaded(r); err != nil && len(h.view.Profiles()) == 0 {
		writeError(w, h.logger, err, "Failed to load profiles")
		return
	}

	resp := ProfileListResponse{
		Profiles: h.view.Search(r.URL.Query().Get("q")),
		State:    h.view.State().String(),
	}
	if err := h.view.Err(); err != nil {
		resp.Stale = true
		resp.Error = err.Error()
	}
	writeOK(w, h.logger, http.StatusOK, resp)
}

// Create handles POST /api/profiles
func (h *ProfilesHandler) Create(w http.ResponseWriter, r *http.Request) {
	var draft models.ProfileDraft
	if !decodeJSON(w, r, h.logger, &draft) {
		return
	}

	profile, err := h.view.Create(r.Context(), draft)
	if err != nil {
		if profile.ID == "" {
			writeError(w, h.logger, err, "Failed to create profile")
			return
		}
		h.logger.Warn("Profile created but refresh failed",
			zap.String("profile_id", profile.ID),
			zap.Error(err))
	}
	h.logger.Info("Profile created", zap.String("profile_id", profile.ID), actor(r.Context()))
	writeOK(w, h.logger, http.StatusCreated, profile)
}

// Get handles GET /api/profiles/{id}
func (h *ProfilesHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	for _, p := range h.view.Profiles() {
		if p.ID == id {
			writeOK(w, h.logger, http.StatusOK, p)
			return
		}
	}

	row, err := h.profiles.GetByID(r.Context(), id)
	if err != nil {
		if !errors.Is(err, apperrors.ErrNotFound) {
			err = errors.Join(apperrors.ErrFetchFailed, err)
		}
		writeError(w, h.logger, err, "Failed to get profile")
		return
	}
	profile, err := mapper.Profile(row)
	if err != nil {
		writeError(w, h.logger, err, "Failed to map profile")
		return
	}
	writeOK(w, h.logger, http.StatusOK, profile)
}

// Update handles PATCH /api/profiles/{id}
func (h *ProfilesHandler) Update(w http.ResponseWriter, r *http.Request) {
	var patch models.ProfilePatch
	if !decodeJSON(w, r, h.logger, &patch) {
		return
	}

	profile, err := h.view.Update(r.Context(), r.PathValue("id"), patch)
	if err != nil {
		if profile.ID == "" {
			writeError(w, h.logger, err, "Failed to update profile")
			return
		}
		h.logger.Warn("Profile updated but refresh failed",
			zap.String("profile_id", profile.ID),
			zap.Error(err))
	}
	h.logger.Info("Profile updated", zap.String("profile_id", profile.ID), actor(r.Context()))
	writeOK(w, h.logger, http.StatusOK, profile)
}

// Delete handles DELETE /api/profiles/{id}
func (h *ProfilesHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := h.view.Remove(r.Context(), id); err != nil {
		writeError(w, h.logger, err, "Failed to delete profile")
		return
	}
	h.logger.Info("Profile deleted", zap.String("profile_id", id), actor(r.Context()))
	w.WriteHeader(http.StatusNoContent)
}

// Network handles GET /api/profiles/{id}/network?depth=
// Returns the graph reachable from the profile within depth hops.
func (h *ProfilesHandler) Network(w http.ResponseWriter, r *http.Request) {
	depth := DefaultNetworkDepth
	if raw := r.URL.Query().Get("depth"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > MaxNetworkDepth {
			if err := ErrorResponse(w, http.StatusBadRequest, "invalid_depth", "depth must be between 1 and 10"); err != nil {
				h.logger.Error("Failed to write error response", zap.Error(err))
			}
			return
		}
		depth = n
	}
	if err := h.ensureLoaded(r); err != nil && len(h.view.Profiles()) == 0 {
		writeError(w, h.logger, err, "Failed to load profiles")
		return
	}

	id := r.PathValue("id")
	rows, err := h.connections.FindConnections(r.Context(), id, depth)
	if err != nil {
		writeError(w, h.logger, errors.Join(apperrors.ErrFetchFailed, err), "Failed to walk connections")
		return
	}
	conns, err := mapper.Connections(rows)
	if err != nil {
		writeError(w, h.logger, err, "Failed to map connections")
		return
	}

	g := graph.Neighborhood(id, h.view.Profiles(), conns)
	if len(g.Nodes) == 0 {
		writeError(w, h.logger, apperrors.ErrNotFound, "Profile not found")
		return
	}
	writeOK(w, h.logger, http.StatusOK, g)
}

// Graph handles GET /api/graph?components=true
func (h *ProfilesHandler) Graph(w http.ResponseWriter, r *http.Request) {
	if err := h.ensureLoaded(r); err != nil && len(h.view.Profiles()) == 0 {
		writeError(w, h.logger, err, "Failed to load profiles")
		return
	}

	resp := GraphResponse{Graph: graph.Build(h.view.Profiles())}
	if r.URL.Query().Get("components") == "true" {
		resp.Components, resp.Islands = resp.Graph.Components()
	}
	writeOK(w, h.logger, http.StatusOK, resp)
}
