package middleware

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkghttp "github.com/questkeep/questkeep/pkg/http"
)

func TestSecureLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	handler := SecureLogger(logger, pkghttp.NewClientIPResolver(nil))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusLocked)
	}))

	req := httptest.NewRequest("POST", "/pin/recovery/parent-1?code=123456", nil)
	req.RemoteAddr = "203.0.113.5:1234"
	handler.ServeHTTP(httptest.NewRecorder(), req)

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "WARN", entry["level"])
	assert.Equal(t, "/pin/recovery/parent-1?[REDACTED]", entry["path"])
	assert.Equal(t, float64(http.StatusLocked), entry["status"])
	assert.Equal(t, "203.0.113.5", entry["client_ip"])
	assert.NotContains(t, buf.String(), "123456")
}
