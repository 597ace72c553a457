package handler

import (
	"net/http"

	"github.com/Payphone-Digital/marketplace-auth/internal/constants"
	"github.com/Payphone-Digital/marketplace-auth/internal/dto"
	"github.com/Payphone-Digital/marketplace-auth/internal/middleware"
	"github.com/Payphone-Digital/marketplace-auth/internal/service"
	ctxutil "github.com/Payphone-Digital/marketplace-auth/pkg/context"
	"github.com/Payphone-Digital/marketplace-auth/pkg/logger"
	"github.com/gin-gonic/gin"
)

type UserHandler struct {
	userService *service.UserService
	authService *service.AuthService
}

func NewUserHandler(userService *service.UserService, authService *service.AuthService) *UserHandler {
	return &UserHandler{userService: userService, authService: authService}
}

func (h *UserHandler) Me(c *gin.Context) {
	ctx := ctxutil.NewContextWithRequest(c.Request.Context(), c.Request, "handler", "Me")

	auth, err := middleware.MustAuthData(c)
	if err != nil {
		respondError(c, ctx, "Failed to fetch user", err)
		return
	}

	user, err := h.userService.GetByID(ctx, auth.User.ID)
	if err != nil {
		respondError(c, ctx, "Failed to fetch user", err)
		return
	}

	c.JSON(http.StatusOK, constants.BuildDataResponse(constants.MsgSuccess, dto.NewUserResponse(user)))
}

func (h *UserHandler) UpdateMe(c *gin.Context) {
	ctx := ctxutil.NewContextWithRequest(c.Request.Context(), c.Request, "handler", "UpdateMe")

	auth, err := middleware.MustAuthData(c)
	if err != nil {
		respondError(c, ctx, "Failed to update user", err)
		return
	}

	var req dto.UpdateProfileRequest
	if !bindJSON(c, ctx, &req) {
		return
	}

	user, err := h.userService.UpdateProfile(ctx, auth.User.ID, req.FirstName, req.LastName)
	if err != nil {
		respondError(c, ctx, "Failed to update user", err)
		return
	}

	c.JSON(http.StatusOK, constants.BuildDataResponse(constants.MsgUpdated, dto.NewUserResponse(user)))
}

func (h *UserHandler) ChangePassword(c *gin.Context) {
	ctx := ctxutil.NewContextWithRequest(c.Request.Context(), c.Request, "handler", "ChangePassword")

	auth, err := middleware.MustAuthData(c)
	if err != nil {
		respondError(c, ctx, "Failed to change password", err)
		return
	}

	var req dto.ChangePasswordRequest
	if !bindJSON(c, ctx, &req) {
		return
	}

	if err := h.authService.ChangePassword(ctx, auth, req.CurrentPassword, req.NewPassword); err != nil {
		respondError(c, ctx, "Failed to change password", err)
		return
	}

	logger.InfoWithContext(ctx, "Password changed").Uint("user_id", auth.User.ID).Log()
	c.JSON(http.StatusOK, constants.BuildSuccessResponse(constants.MsgUpdated))
}

func (h *UserHandler) Sessions(c *gin.Context) {
	ctx := ctxutil.NewContextWithRequest(c.Request.Context(), c.Request, "handler", "Sessions")

	auth, err := middleware.MustAuthData(c)
	if err != nil {
		respondError(c, ctx, "Failed to list sessions", err)
		return
	}

	sessions, err := h.userService.ListSessions(ctx, auth.Account.ID)
	if err != nil {
		respondError(c, ctx, "Failed to list sessions", err)
		return
	}

	out := make([]dto.SessionInfo, 0, len(sessions))
	for i := range sessions {
		out = append(out, dto.NewSessionInfo(&sessions[i], auth.Session.ID))
	}
	c.JSON(http.StatusOK, constants.BuildListResponse(int64(len(out)), 1, out))
}

func (h *UserHandler) Accounts(c *gin.Context) {
	ctx := ctxutil.NewContextWithRequest(c.Request.Context(), c.Request, "handler", "Accounts")

	auth, err := middleware.MustAuthData(c)
	if err != nil {
		respondError(c, ctx, "Failed to list accounts", err)
		return
	}

	accounts, err := h.userService.ListAccounts(ctx, auth.User.ID)
	if err != nil {
		respondError(c, ctx, "Failed to list accounts", err)
		return
	}

	out := make([]dto.AccountResponse, 0, len(accounts))
	for i := range accounts {
		out = append(out, dto.NewAccountResponse(&accounts[i]))
	}
	c.JSON(http.StatusOK, constants.BuildListResponse(int64(len(out)), 1, out))
}

func (h *UserHandler) EnableTwoFactor(c *gin.Context) {
	ctx := ctxutil.NewContextWithRequest(c.Request.Context(), c.Request, "handler", "EnableTwoFactor")

	auth, err := middleware.MustAuthData(c)
	if err != nil {
		respondError(c, ctx, "Failed to enable two-factor", err)
		return
	}

	var req dto.EnableTwoFactorRequest
	if !bindJSON(c, ctx, &req) {
		return
	}

	issued, err := h.authService.EnableTwoFactor(ctx, auth, req.Method)
	if err != nil {
		respondError(c, ctx, "Failed to enable two-factor", err)
		return
	}

	c.JSON(http.StatusOK, constants.BuildDataResponse(constants.MsgCodeSent, dto.CodeSentResponse{
		Channel:   issued.Channel,
		ExpiresAt: issued.ExpiresAt,
	}))
}

func (h *UserHandler) ConfirmTwoFactor(c *gin.Context) {
	ctx := ctxutil.NewContextWithRequest(c.Request.Context(), c.Request, "handler", "ConfirmTwoFactor")

	auth, err := middleware.MustAuthData(c)
	if err != nil {
		respondError(c, ctx, "Failed to confirm two-factor", err)
		return
	}

	var req dto.ConfirmTwoFactorRequest
	if !bindJSON(c, ctx, &req) {
		return
	}

	if err := h.authService.ConfirmTwoFactor(ctx, auth, req.Method, req.Code); err != nil {
		respondError(c, ctx, "Failed to confirm two-factor", err)
		return
	}

	c.JSON(http.StatusOK, constants.BuildSuccessResponse(constants.MsgUpdated))
}

func (h *UserHandler) DisableTwoFactor(c *gin.Context) {
	ctx := ctxutil.NewContextWithRequest(c.Request.Context(), c.Request, "handler", "DisableTwoFactor")

	auth, err := middleware.MustAuthData(c)
	if err != nil {
		respondError(c, ctx, "Failed to disable two-factor", err)
		return
	}

	if err := h.authService.DisableTwoFactor(ctx, auth); err != nil {
		respondError(c, ctx, "Failed to disable two-factor", err)
		return
	}

	c.JSON(http.StatusOK, constants.BuildSuccessResponse(constants.MsgUpdated))
}
