package handler

import (
	"net/http"
	"time"

	ctxutil "github.com/Payphone-Digital/marketplace-auth/pkg/context"
	"github.com/Payphone-Digital/marketplace-auth/pkg/health"
	"github.com/Payphone-Digital/marketplace-auth/pkg/logger"
	"github.com/gin-gonic/gin"
)

type HealthHandler struct {
	monitor *health.Monitor
	version string
}

type HealthCheckResponse struct {
	Status    string                 `json:"status"`
	Version   string                 `json:"version"`
	Timestamp time.Time              `json:"timestamp"`
	Checks    map[string]HealthCheck `json:"checks"`
}

type HealthCheck struct {
	Status    string `json:"status"`
	LatencyMS int64  `json:"latency_ms"`
}

func NewHealthHandler(monitor *health.Monitor, version string) *HealthHandler {
	return &HealthHandler{monitor: monitor, version: version}
}

// HealthCheck probes every registered dependency; any failure answers 503.
// Failure detail goes to the log only.
func (h *HealthHandler) HealthCheck(c *gin.Context) {
	ctx := ctxutil.NewContextWithRequest(c.Request.Context(), c.Request, "handler", "HealthCheck")

	response := HealthCheckResponse{
		Status:    health.StatusHealthy.String(),
		Version:   h.version,
		Timestamp: time.Now(),
		Checks:    make(map[string]HealthCheck),
	}

	for _, result := range h.monitor.CheckAll(c.Request.Context()) {
		check := HealthCheck{
			Status:    result.Status.String(),
			LatencyMS: result.Latency.Milliseconds(),
		}
		if result.LastError != nil {
			logger.WarnWithContext(ctx, "Dependency check failed").
				String("dependency", result.Name).
				Err(result.LastError).
				Log()
			response.Status = health.StatusUnhealthy.String()
		}
		response.Checks[result.Name] = check
	}

	statusCode := http.StatusOK
	if response.Status != health.StatusHealthy.String() {
		statusCode = http.StatusServiceUnavailable
	}
	c.JSON(statusCode, response)
}
