package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Payphone-Digital/marketplace-auth/pkg/health"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func serveHealth(t *testing.T, monitor *health.Monitor) *httptest.ResponseRecorder {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/health", NewHealthHandler(monitor, "1.2.3").HealthCheck)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	return w
}

func TestHealthHandler_Healthy(t *testing.T) {
	monitor := health.NewMonitor(time.Minute, time.Second, nil)
	monitor.Register("redis", health.CheckFunc(func(context.Context) error { return nil }))

	w := serveHealth(t, monitor)
	require.Equal(t, http.StatusOK, w.Code)

	var body HealthCheckResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body.Status)
	assert.Equal(t, "1.2.3", body.Version)
	assert.Equal(t, "healthy", body.Checks["redis"].Status)
}

func TestHealthHandler_FailureHidesDetail(t *testing.T) {
	secret := "dial tcp 10.0.4.17:5432: password authentication failed for user \"auth\""
	monitor := health.NewMonitor(time.Minute, time.Second, nil)
	monitor.Register("postgres", health.CheckFunc(func(context.Context) error { return errors.New(secret) }))
	monitor.Register("redis", health.CheckFunc(func(context.Context) error { return nil }))

	w := serveHealth(t, monitor)
	require.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.NotContains(t, w.Body.String(), "10.0.4.17")
	assert.NotContains(t, w.Body.String(), "password authentication")

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "unhealthy", body["status"])

	checks := body["checks"].(map[string]any)
	postgres := checks["postgres"].(map[string]any)
	assert.Equal(t, "unhealthy", postgres["status"])
	assert.NotContains(t, postgres, "message")
	assert.ElementsMatch(t, []string{"status", "latency_ms"}, keys(postgres))
}

func keys(m map[string]any) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
