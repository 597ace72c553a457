package middleware

import (
	"context"
	"time"

	"github.com/Payphone-Digital/marketplace-auth/internal/constants"
	ctxutil "github.com/Payphone-Digital/marketplace-auth/pkg/context"
	"github.com/Payphone-Digital/marketplace-auth/pkg/logger"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// RequestContext seeds the request context with request and correlation ids,
// the caller's address and a start time, then bounds the request with timeout.
func RequestContext(timeout time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(constants.HeaderXRequestID)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		correlationID := c.GetHeader(constants.HeaderXCorrelationID)
		if correlationID == "" {
			correlationID = requestID
		}

		ctx := c.Request.Context()
		ctx = ctxutil.WithValue(ctx, ctxutil.RequestIDKey, requestID)
		ctx = ctxutil.WithValue(ctx, ctxutil.CorrelationIDKey, correlationID)
		ctx = ctxutil.WithValue(ctx, ctxutil.StartTimeKey, time.Now())
		ctx = ctxutil.WithClient(ctx, c.ClientIP(), c.Request.UserAgent())

		if timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}

		c.Header(constants.HeaderXRequestID, requestID)
		c.Header(constants.HeaderXCorrelationID, correlationID)
		c.Request = c.Request.WithContext(ctx)

		c.Next()

		if c.Writer.Status() >= 500 {
			logger.ErrorWithContext(ctx, "Request failed").
				Method(c.Request.Method).
				Path(c.Request.URL.Path).
				StatusCode(c.Writer.Status()).
				Duration(ctxutil.GetDuration(ctx)).
				Log()
		}
	}
}
