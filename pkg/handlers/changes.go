package handlers

import (
	"context"
	"errors"
	"net/http"
	"slices"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"go.uber.org/zap"

	"github.com/shambu-network/shambu/pkg/auth"
	"github.com/shambu-network/shambu/pkg/realtime"
)

const changeWriteTimeout = 10 * time.Second

var watchableTables = []string{realtime.TableProfiles, realtime.TableSocialProfiles, realtime.TableConnections}

// ChangesHandler streams change events to websocket clients.
type ChangesHandler struct {
	hub            *realtime.Hub
	originPatterns []string
	logger         *zap.Logger
}

// NewChangesHandler creates a new changes handler. originPatterns is passed
// to websocket.AcceptOptions; nil allows same-origin only.
func NewChangesHandler(hub *realtime.Hub, originPatterns []string, logger *zap.Logger) *ChangesHandler {
	return &ChangesHandler{hub: hub, originPatterns: originPatterns, logger: logger}
}

// RegisterRoutes registers the changes handler's routes on the given mux.
func (h *ChangesHandler) RegisterRoutes(mux *http.ServeMux, authMiddleware *auth.Middleware) {
	mux.HandleFunc("GET /api/changes", authMiddleware.RequireAuth(h.Stream))
}

// parseScopes reads ?table= (repeatable) and ?id=. No table means all tables.
func parseScopes(r *http.Request) ([]realtime.Scope, error) {
	q := r.URL.Query()
	tables := q["table"]
	if len(tables) == 0 {
		tables = watchableTables
	}
	id := q.Get("id")
	scopes := make([]realtime.Scope, 0, len(tables))
	for _, t := range tables {
		if !slices.Contains(watchableTables, t) {
			return nil, errors.New("unknown table " + t)
		}
		scopes = append(scopes, realtime.Scope{Table: t, RowID: id})
	}
	return scopes, nil
}

// Stream handles GET /api/changes
// Upgrades to a websocket and writes each matching Event as a JSON message
// until the client disconnects.
func (h *ChangesHandler) Stream(w http.ResponseWriter, r *http.Request) {
	scopes, err := parseScopes(r)
	if err != nil {
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_scope", err.Error()); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: h.originPatterns})
	if err != nil {
		h.logger.Debug("Websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.CloseNow()

	sub := h.hub.Subscribe(scopes...)
	defer sub.Close()
	h.logger.Debug("Change stream opened", zap.Int("scopes", len(scopes)))

	ctx := conn.CloseRead(r.Context())
	for e := range sub.Events(ctx) {
		wctx, cancel := context.WithTimeout(ctx, changeWriteTimeout)
		err := wsjson.Write(wctx, conn, e)
		cancel()
		if err != nil {
			h.logger.Debug("Change stream closed", zap.Error(err))
			return
		}
	}
	_ = conn.Close(websocket.StatusNormalClosure, "")
}
