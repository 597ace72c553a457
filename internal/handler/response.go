package handler

import (
	"context"
	"net/http"

	"github.com/Payphone-Digital/marketplace-auth/internal/constants"
	apperrors "github.com/Payphone-Digital/marketplace-auth/internal/errors"
	"github.com/Payphone-Digital/marketplace-auth/internal/service"
	"github.com/Payphone-Digital/marketplace-auth/pkg/logger"
	"github.com/Payphone-Digital/marketplace-auth/pkg/validation"
	"github.com/gin-gonic/gin"
)

// respondError renders err as a typed result. Server errors are logged at
// error level and never expose their text.
func respondError(c *gin.Context, ctx context.Context, message string, err error) {
	status := apperrors.ToHTTPStatus(err)

	entry := logger.WarnWithContext(ctx, message)
	if status >= http.StatusInternalServerError {
		entry = logger.ErrorWithContext(ctx, message)
	}
	entry.Int("http_status", status).Err(err).Log()

	c.JSON(status, constants.BuildErrorResponse(
		apperrors.GetErrorCode(err),
		apperrors.GetErrorMessage(err),
		status,
		nil,
	))
}

// bindJSON binds and validates the body, answering VALIDATION_ERROR itself
// when that fails.
func bindJSON(c *gin.Context, ctx context.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		details := validation.Messages(err)
		logger.WarnWithContext(ctx, "Invalid request body").
			Strings("validation_errors", details).
			Log()
		c.JSON(http.StatusBadRequest, constants.BuildErrorResponse(
			apperrors.CodeValidation,
			apperrors.ErrValidation.Message,
			http.StatusBadRequest,
			details,
		))
		return false
	}
	return true
}

func requestMeta(c *gin.Context) service.RequestMeta {
	return service.RequestMeta{IP: c.ClientIP(), UserAgent: c.Request.UserAgent()}
}
