package router

import "github.com/gin-gonic/gin"

func (r *Router) authRoutes(version *gin.RouterGroup) {
	auth := version.Group("/auth")
	{
		auth.POST("/register", r.authHandler.Register)
		auth.POST("/login", r.authHandler.Login)
		auth.POST("/logout", r.authHandler.Logout)
		auth.POST("/refresh", r.authHandler.Refresh)
		auth.POST("/password/forgot", r.authHandler.ForgotPassword)
		auth.POST("/password/reset", r.authHandler.ResetPassword)

		// Reachable while the second factor is still pending
		auth.POST("/2fa/validate", r.authHandler.ValidateTwoFactor)
		auth.POST("/2fa/request", r.authHandler.RequestTwoFactorCode)
		auth.GET("/session", r.authHandler.Session)

		auth.POST("/logout-all", r.authHandler.LogoutAll)
		auth.POST("/verification/request", r.authHandler.RequestVerification)
		auth.POST("/verification/confirm", r.authHandler.ConfirmVerification)
		auth.POST("/contact/code", r.authHandler.RequestContactCode)
		auth.PUT("/contact", r.authHandler.UpdateContact)
	}
}
