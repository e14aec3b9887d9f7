package handlers

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"github.com/shambu-network/shambu/pkg/auth"
	"github.com/shambu-network/shambu/pkg/models"
	"github.com/shambu-network/shambu/pkg/realtime"
	"github.com/shambu-network/shambu/pkg/repositories"
	"github.com/shambu-network/shambu/pkg/views"
)

// AddConnectionRequest is the body of POST /api/profiles/{id}/connections.
type AddConnectionRequest struct {
	TargetID string `json:"targetId"`
}

// UpdateConnectionRequest is the body of PATCH /api/profiles/{id}/connections/{cid}.
// Either field may be omitted.
type UpdateConnectionRequest struct {
	Type     *string  `json:"type,omitempty"`
	Strength *float64 `json:"strength,omitempty"`
}

// ConnectionListResponse is the body of GET /api/profiles/{id}/connections.
type ConnectionListResponse struct {
	Connections []models.Connection `json:"connections"`
}

// CandidatesResponse is the body of GET /api/profiles/{id}/candidates.
type CandidatesResponse struct {
	Candidates []models.Profile `json:"candidates"`
}

// ChangeNotifier is told about writes made through this handler. It lets the
// shared list view refetch when no realtime source is running.
type ChangeNotifier func(ctx context.Context, e realtime.Event)

// ConnectionsHandler manages one profile's connections. Each request works on
// a short-lived ConnectionsView.
type ConnectionsHandler struct {
	profiles    repositories.ProfileRepository
	connections repositories.ConnectionRepository
	notify      ChangeNotifier
	logger      *zap.Logger
}

// NewConnectionsHandler creates a new connections handler. notify may be nil.
func NewConnectionsHandler(profiles repositories.ProfileRepository, connections repositories.ConnectionRepository, notify ChangeNotifier, logger *zap.Logger) *ConnectionsHandler {
	return &ConnectionsHandler{
		profiles:    profiles,
		connections: connections,
		notify:      notify,
		logger:      logger,
	}
}

// RegisterRoutes registers the connections handler's routes on the given mux.
func (h *ConnectionsHandler) RegisterRoutes(mux *http.ServeMux, authMiddleware *auth.Middleware) {
	mux.HandleFunc("GET /api/profiles/{id}/connections", authMiddleware.RequireAuth(h.List))
	mux.HandleFunc("POST /api/profiles/{id}/connections", authMiddleware.RequireAuth(h.Add))
	mux.HandleFunc("PATCH /api/profiles/{id}/connections/{cid}", authMiddleware.RequireAuth(h.Update))
	mux.HandleFunc("DELETE /api/profiles/{id}/connections/{cid}", authMiddleware.RequireAuth(h.Remove))
	mux.HandleFunc("GET /api/profiles/{id}/candidates", authMiddleware.RequireAuth(h.Candidates))
}

func (h *ConnectionsHandler) view(r *http.Request) *views.ConnectionsView {
	return views.NewConnectionsView(r.PathValue("id"), h.connections, h.profiles, h.logger)
}

func (h *ConnectionsHandler) changed(ctx context.Context, profileID, connectionID string, op realtime.Op) {
	h.logger.Info("Connection changed",
		zap.String("profile_id", profileID),
		zap.String("connection_id", connectionID),
		zap.String("op", string(op)),
		actor(ctx))
	if h.notify == nil {
		return
	}
	h.notify(ctx, realtime.Event{
		Table:     realtime.TableConnections,
		Op:        op,
		RowID:     connectionID,
		ProfileID: profileID,
	})
}

// List handles GET /api/profiles/{id}/connections
func (h *ConnectionsHandler) List(w http.ResponseWriter, r *http.Request) {
	v := h.view(r)
	defer v.Close()

	if err := v.Fetch(r.Context()); err != nil {
		writeError(w, h.logger, err, "Failed to list connections")
		return
	}
	writeOK(w, h.logger, http.StatusOK, ConnectionListResponse{Connections: v.Connections()})
}

// Add handles POST /api/profiles/{id}/connections
// The connection gets the default type and strength.
func (h *ConnectionsHandler) Add(w http.ResponseWriter, r *http.Request) {
	var req AddConnectionRequest
	if !decodeJSON(w, r, h.logger, &req) {
		return
	}
	v := h.view(r)
	defer v.Close()

	conn, err := v.AddConnection(r.Context(), req.TargetID)
	if err != nil {
		writeError(w, h.logger, err, "Failed to add connection")
		return
	}
	h.changed(r.Context(), v.ProfileID(), conn.ID, realtime.OpInsert)
	writeOK(w, h.logger, http.StatusCreated, conn)
}

// Update handles PATCH /api/profiles/{id}/connections/{cid}
func (h *ConnectionsHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req UpdateConnectionRequest
	if !decodeJSON(w, r, h.logger, &req) {
		return
	}
	if req.Type == nil && req.Strength == nil {
		if err := ErrorResponse(w, http.StatusBadRequest, "empty_update", "type or strength is required"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	var connType *models.ConnectionType
	if req.Type != nil {
		t, err := models.ParseConnectionType(*req.Type)
		if err != nil {
			writeError(w, h.logger, err, "Invalid connection type")
			return
		}
		connType = &t
	}

	v := h.view(r)
	defer v.Close()
	cid := r.PathValue("cid")

	conn, err := v.UpdateConnection(r.Context(), cid, connType, req.Strength)
	if err != nil {
		writeError(w, h.logger, err, "Failed to update connection")
		return
	}
	h.changed(r.Context(), v.ProfileID(), cid, realtime.OpUpdate)
	writeOK(w, h.logger, http.StatusOK, conn)
}

// Remove handles DELETE /api/profiles/{id}/connections/{cid}
func (h *ConnectionsHandler) Remove(w http.ResponseWriter, r *http.Request) {
	v := h.view(r)
	defer v.Close()

	cid := r.PathValue("cid")
	if err := v.RemoveConnection(r.Context(), cid); err != nil {
		writeError(w, h.logger, err, "Failed to remove connection")
		return
	}
	h.changed(r.Context(), v.ProfileID(), cid, realtime.OpDelete)
	w.WriteHeader(http.StatusNoContent)
}

// Candidates handles GET /api/profiles/{id}/candidates?q=
// Remote name search for connection targets, excluding the profile itself.
func (h *ConnectionsHandler) Candidates(w http.ResponseWriter, r *http.Request) {
	v := h.view(r)
	defer v.Close()

	candidates, err := v.SearchProfiles(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		writeError(w, h.logger, err, "Failed to search candidates")
		return
	}
	writeOK(w, h.logger, http.StatusOK, CandidatesResponse{Candidates: candidates})
}
