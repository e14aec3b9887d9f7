package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/shambu-network/shambu/pkg/auth"
	"github.com/shambu-network/shambu/pkg/config"
	"github.com/shambu-network/shambu/pkg/testhelpers"
	"github.com/shambu-network/shambu/pkg/views"
)

func TestWrites_LogActingUser(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	logger := zap.New(core)
	store := newMemStore()
	conns := connStore{store}
	ada := store.addProfile("Ada")
	alan := store.addProfile("Alan")

	view := views.NewProfileListView(store, "", zap.NewNop())
	t.Cleanup(view.Close)

	validator, err := auth.NewValidator(context.Background(), config.AuthConfig{})
	require.NoError(t, err)
	mw := auth.NewMiddleware(auth.NewAuthService(validator, zap.NewNop()), zap.NewNop())

	mux := http.NewServeMux()
	NewProfilesHandler(view, store, conns, logger).RegisterRoutes(mux, mw)
	NewConnectionsHandler(store, conns, nil, logger).RegisterRoutes(mux, mw)

	token := testhelpers.BearerTestJWT(t, "user-7", "")
	as := func(method, path, body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", token)
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, req)
		return rec
	}

	rec := as(http.MethodPost, "/api/profiles/"+ada+"/connections", `{"targetId":"`+alan+`"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	rec = as(http.MethodDelete, "/api/profiles/"+alan, "")
	require.Equal(t, http.StatusNoContent, rec.Code)

	for _, msg := range []string{"Connection changed", "Profile deleted"} {
		entries := logs.FilterMessage(msg).All()
		require.Len(t, entries, 1, msg)
		assert.Equal(t, "user-7", entries[0].ContextMap()["user_id"], msg)
	}
}
