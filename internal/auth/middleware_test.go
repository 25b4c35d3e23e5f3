package auth_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/questkeep/questkeep/internal/auth"
	"github.com/questkeep/questkeep/internal/clock"
)

func newProtectedRouter(tm *auth.TokenManager) http.Handler {
	r := chi.NewRouter()
	r.With(auth.RequireParentMode(tm)).Put("/pin/credentials/{userID}", func(w http.ResponseWriter, r *http.Request) {
		claims, ok := auth.ParentClaimsFromContext(r.Context())
		if !ok {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Header().Set("X-Parent", claims.UserID)
		w.WriteHeader(http.StatusNoContent)
	})
	return r
}

func TestRequireParentMode(t *testing.T) {
	clk := clock.NewMock(time.Now())
	tm := auth.NewTokenManager(testSecret, 15*time.Minute, clk)
	router := newProtectedRouter(tm)

	token, _, err := tm.GenerateParentToken("parent-1")
	require.NoError(t, err)

	tests := []struct {
		name       string
		path       string
		header     string
		wantStatus int
	}{
		{name: "valid token", path: "/pin/credentials/parent-1", header: "Bearer " + token, wantStatus: http.StatusNoContent},
		{name: "missing header", path: "/pin/credentials/parent-1", wantStatus: http.StatusUnauthorized},
		{name: "wrong scheme", path: "/pin/credentials/parent-1", header: "Basic " + token, wantStatus: http.StatusUnauthorized},
		{name: "garbage token", path: "/pin/credentials/parent-1", header: "Bearer nope", wantStatus: http.StatusUnauthorized},
		{name: "other user", path: "/pin/credentials/parent-2", header: "Bearer " + token, wantStatus: http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPut, tt.path, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()

			router.ServeHTTP(w, req)

			assert.Equal(t, tt.wantStatus, w.Code)
			if tt.wantStatus == http.StatusNoContent {
				assert.Equal(t, "parent-1", w.Header().Get("X-Parent"))
			}
		})
	}
}

func TestRequireParentMode_ExpiredToken(t *testing.T) {
	clk := clock.NewMock(time.Now())
	tm := auth.NewTokenManager(testSecret, time.Minute, clk)
	router := newProtectedRouter(tm)

	token, _, err := tm.GenerateParentToken("parent-1")
	require.NoError(t, err)
	clk.Advance(5 * time.Minute)

	req := httptest.NewRequest(http.MethodPut, "/pin/credentials/parent-1", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
