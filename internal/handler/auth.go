package handler

import (
	"net/http"
	"strings"

	"github.com/Payphone-Digital/marketplace-auth/internal/constants"
	"github.com/Payphone-Digital/marketplace-auth/internal/dto"
	apperrors "github.com/Payphone-Digital/marketplace-auth/internal/errors"
	"github.com/Payphone-Digital/marketplace-auth/internal/middleware"
	"github.com/Payphone-Digital/marketplace-auth/internal/service"
	ctxutil "github.com/Payphone-Digital/marketplace-auth/pkg/context"
	"github.com/Payphone-Digital/marketplace-auth/pkg/cookie"
	"github.com/Payphone-Digital/marketplace-auth/pkg/logger"
	"github.com/gin-gonic/gin"
)

type AuthHandler struct {
	authService *service.AuthService
	cookies     *cookie.Authenticator
}

func NewAuthHandler(authService *service.AuthService, cookies *cookie.Authenticator) *AuthHandler {
	return &AuthHandler{authService: authService, cookies: cookies}
}

func (h *AuthHandler) setSession(c *gin.Context, result *service.AuthResult) dto.AuthResponse {
	h.cookies.SetAuthCookies(c, cookie.AuthCookies{
		SessionID:    result.Session.ID,
		AccountID:    result.Account.ID,
		AccessToken:  result.AccessToken,
		RefreshToken: result.RefreshToken,
		CSRFToken:    result.CSRFToken,
		RememberMe:   result.Session.RememberMe,
		ExpiresAt:    result.Session.ExpiresAt,
	})

	return dto.AuthResponse{
		SessionID:         result.Session.ID,
		AccessToken:       result.AccessToken,
		RefreshToken:      result.RefreshToken,
		ExpiresAt:         result.Session.ExpiresAt,
		TwoFactorRequired: result.TwoFactorRequired,
		TwoFactorChannel:  result.TwoFactorChannel,
		User:              dto.NewUserResponse(result.User),
		Account:           dto.NewAccountResponse(result.Account),
	}
}

func (h *AuthHandler) Register(c *gin.Context) {
	ctx := ctxutil.NewContextWithRequest(c.Request.Context(), c.Request, "handler", "Register")

	var req dto.RegisterRequest
	if !bindJSON(c, ctx, &req) {
		return
	}

	result, err := h.authService.Register(ctx, &req, requestMeta(c))
	if err != nil {
		respondError(c, ctx, "Registration failed", err)
		return
	}

	c.JSON(http.StatusCreated, constants.BuildDataResponse(constants.MsgCreated, h.setSession(c, result)))
}

func (h *AuthHandler) Login(c *gin.Context) {
	ctx := ctxutil.NewContextWithRequest(c.Request.Context(), c.Request, "handler", "Login")

	var req dto.LoginRequest
	if !bindJSON(c, ctx, &req) {
		return
	}

	result, err := h.authService.Login(ctx, &req, requestMeta(c))
	if err != nil {
		respondError(c, ctx, "Login failed", err)
		return
	}

	c.JSON(http.StatusOK, constants.BuildDataResponse(constants.MsgLoggedIn, h.setSession(c, result)))
}

// Logout always clears the cookies and answers success.
func (h *AuthHandler) Logout(c *gin.Context) {
	ctx := ctxutil.NewContextWithRequest(c.Request.Context(), c.Request, "handler", "Logout")

	sessionID := cookie.ReadCredentials(c).SessionID
	if auth, ok := middleware.GetAuthData(c); ok {
		sessionID = auth.Session.ID
	}
	if sessionID != "" {
		h.authService.Logout(ctx, sessionID)
	}

	h.cookies.ClearAuthCookies(c)
	c.JSON(http.StatusOK, constants.BuildSuccessResponse(constants.MsgLogout))
}

func (h *AuthHandler) LogoutAll(c *gin.Context) {
	ctx := ctxutil.NewContextWithRequest(c.Request.Context(), c.Request, "handler", "LogoutAll")

	auth, err := middleware.MustAuthData(c)
	if err != nil {
		respondError(c, ctx, "Logout of other sessions failed", err)
		return
	}

	revoked, err := h.authService.LogoutAll(ctx, auth)
	if err != nil {
		respondError(c, ctx, "Logout of other sessions failed", err)
		return
	}

	c.JSON(http.StatusOK, constants.BuildDataResponse(constants.MsgSuccess, gin.H{"revoked": revoked}))
}

func (h *AuthHandler) Refresh(c *gin.Context) {
	ctx := ctxutil.NewContextWithRequest(c.Request.Context(), c.Request, "handler", "Refresh")

	var req dto.RefreshRequest
	if c.Request.ContentLength > 0 && !bindJSON(c, ctx, &req) {
		return
	}

	creds := cookie.ReadCredentials(c)
	if req.SessionID == "" {
		req.SessionID = creds.SessionID
	}
	if req.RefreshToken == "" {
		req.RefreshToken = creds.RefreshToken
	}
	if req.SessionID == "" || req.RefreshToken == "" {
		h.cookies.ClearAuthCookies(c)
		respondError(c, ctx, "Refresh without credentials", apperrors.ErrUnauthorized)
		return
	}

	result, err := h.authService.Refresh(ctx, req.SessionID, req.RefreshToken, requestMeta(c))
	if err != nil {
		h.cookies.ClearAuthCookies(c)
		respondError(c, ctx, "Refresh failed", err)
		return
	}

	c.JSON(http.StatusOK, constants.BuildDataResponse(constants.MsgSuccess, h.setSession(c, result)))
}

func (h *AuthHandler) Session(c *gin.Context) {
	ctx := ctxutil.NewContextWithRequest(c.Request.Context(), c.Request, "handler", "Session")

	auth, err := middleware.MustAuthData(c)
	if err != nil {
		respondError(c, ctx, "Session lookup failed", err)
		return
	}

	permissions := auth.Permissions
	if permissions == nil {
		permissions = []string{}
	}

	c.JSON(http.StatusOK, constants.BuildDataResponse(constants.MsgSuccess, dto.SessionResponse{
		State:             auth.SessionState(),
		IdentityState:     auth.User.VerificationState(),
		TwoFactorRequired: auth.TwoFactorPending(),
		ExpiresAt:         auth.Session.ExpiresAt,
		User:              dto.NewUserResponse(auth.User),
		Account:           dto.NewAccountResponse(auth.Account),
		Permissions:       permissions,
	}))
}

func (h *AuthHandler) RequestTwoFactorCode(c *gin.Context) {
	ctx := ctxutil.NewContextWithRequest(c.Request.Context(), c.Request, "handler", "RequestTwoFactorCode")

	auth, err := middleware.MustAuthData(c)
	if err != nil {
		respondError(c, ctx, "Two-factor code request failed", err)
		return
	}

	issued, err := h.authService.RequestTwoFactorCode(ctx, auth)
	if err != nil {
		respondError(c, ctx, "Two-factor code request failed", err)
		return
	}

	c.JSON(http.StatusOK, constants.BuildDataResponse(constants.MsgCodeSent, dto.CodeSentResponse{
		Channel:   issued.Channel,
		ExpiresAt: issued.ExpiresAt,
	}))
}

func (h *AuthHandler) ValidateTwoFactor(c *gin.Context) {
	ctx := ctxutil.NewContextWithRequest(c.Request.Context(), c.Request, "handler", "ValidateTwoFactor")

	auth, err := middleware.MustAuthData(c)
	if err != nil {
		respondError(c, ctx, "Two-factor validation failed", err)
		return
	}

	var req dto.TwoFactorValidateRequest
	if !bindJSON(c, ctx, &req) {
		return
	}

	if err := h.authService.Validate2FA(ctx, auth.Session.ID, auth.Account.ID, req.Code); err != nil {
		respondError(c, ctx, "Two-factor validation failed", err)
		return
	}

	logger.InfoWithContext(ctx, "Two-factor verified").Uint("account_id", auth.Account.ID).Log()
	c.JSON(http.StatusOK, constants.BuildSuccessResponse(constants.MsgSuccess))
}

// ForgotPassword answers the same way whether or not the address is known.
func (h *AuthHandler) ForgotPassword(c *gin.Context) {
	ctx := ctxutil.NewContextWithRequest(c.Request.Context(), c.Request, "handler", "ForgotPassword")

	var req dto.ForgotPasswordRequest
	if !bindJSON(c, ctx, &req) {
		return
	}

	if err := h.authService.RequestPasswordReset(ctx, service.CodeTarget{Email: req.Email, Phone: req.Phone}); err != nil {
		respondError(c, ctx, "Password reset request failed", err)
		return
	}

	c.JSON(http.StatusOK, constants.BuildSuccessResponse(constants.MsgCodeSent))
}

func (h *AuthHandler) ResetPassword(c *gin.Context) {
	ctx := ctxutil.NewContextWithRequest(c.Request.Context(), c.Request, "handler", "ResetPassword")

	var req dto.ResetPasswordRequest
	if !bindJSON(c, ctx, &req) {
		return
	}

	if err := h.authService.VerifyAndResetPassword(ctx, &req); err != nil {
		respondError(c, ctx, "Password reset failed", err)
		return
	}

	h.cookies.ClearAuthCookies(c)
	c.JSON(http.StatusOK, constants.BuildSuccessResponse(constants.MsgUpdated))
}

func (h *AuthHandler) RequestVerification(c *gin.Context) {
	ctx := ctxutil.NewContextWithRequest(c.Request.Context(), c.Request, "handler", "RequestVerification")

	auth, err := middleware.MustAuthData(c)
	if err != nil {
		respondError(c, ctx, "Verification request failed", err)
		return
	}

	var req dto.VerificationRequest
	if !bindJSON(c, ctx, &req) {
		return
	}

	issued, err := h.authService.RequestVerificationCode(ctx, auth, req.Channel, "")
	if err != nil {
		respondError(c, ctx, "Verification request failed", err)
		return
	}

	c.JSON(http.StatusOK, constants.BuildDataResponse(constants.MsgCodeSent, dto.CodeSentResponse{
		Channel:   issued.Channel,
		ExpiresAt: issued.ExpiresAt,
	}))
}

func (h *AuthHandler) ConfirmVerification(c *gin.Context) {
	ctx := ctxutil.NewContextWithRequest(c.Request.Context(), c.Request, "handler", "ConfirmVerification")

	auth, err := middleware.MustAuthData(c)
	if err != nil {
		respondError(c, ctx, "Verification failed", err)
		return
	}

	var req dto.VerificationConfirmRequest
	if !bindJSON(c, ctx, &req) {
		return
	}

	if err := h.authService.VerifyContact(ctx, auth, req.Channel, req.Code); err != nil {
		respondError(c, ctx, "Verification failed", err)
		return
	}

	c.JSON(http.StatusOK, constants.BuildSuccessResponse(constants.MsgSuccess))
}

// RequestContactCode sends a code to an address the caller wants to switch to.
func (h *AuthHandler) RequestContactCode(c *gin.Context) {
	ctx := ctxutil.NewContextWithRequest(c.Request.Context(), c.Request, "handler", "RequestContactCode")

	auth, err := middleware.MustAuthData(c)
	if err != nil {
		respondError(c, ctx, "Contact code request failed", err)
		return
	}

	var req dto.ContactCodeRequest
	if !bindJSON(c, ctx, &req) {
		return
	}

	email, phone := strings.TrimSpace(req.Email), strings.TrimSpace(req.Phone)
	if email != "" && phone != "" {
		respondError(c, ctx, "Contact code request failed",
			apperrors.WithMessage(apperrors.ErrValidation, "send either email or phone, not both"))
		return
	}

	channel, address := constants.ChannelEmail, email
	if phone != "" {
		channel, address = constants.ChannelSMS, phone
	}

	issued, err := h.authService.RequestVerificationCode(ctx, auth, channel, address)
	if err != nil {
		respondError(c, ctx, "Contact code request failed", err)
		return
	}

	c.JSON(http.StatusOK, constants.BuildDataResponse(constants.MsgCodeSent, dto.CodeSentResponse{
		Channel:   issued.Channel,
		ExpiresAt: issued.ExpiresAt,
	}))
}

func (h *AuthHandler) UpdateContact(c *gin.Context) {
	ctx := ctxutil.NewContextWithRequest(c.Request.Context(), c.Request, "handler", "UpdateContact")

	auth, err := middleware.MustAuthData(c)
	if err != nil {
		respondError(c, ctx, "Contact update failed", err)
		return
	}

	var req dto.UpdateContactRequest
	if !bindJSON(c, ctx, &req) {
		return
	}

	if err := h.authService.UpdateContactInfo(ctx, auth, &req); err != nil {
		respondError(c, ctx, "Contact update failed", err)
		return
	}

	c.JSON(http.StatusOK, constants.BuildSuccessResponse(constants.MsgUpdated))
}
