package router

import "github.com/gin-gonic/gin"

func (r *Router) userRoutes(version *gin.RouterGroup) {
	me := version.Group("/users/me")
	{
		me.GET("", r.userHandler.Me)
		me.PUT("", r.userHandler.UpdateMe)
		me.PUT("/password", r.userHandler.ChangePassword)
		me.GET("/sessions", r.userHandler.Sessions)
		me.GET("/accounts", r.userHandler.Accounts)
		me.POST("/2fa/enable", r.userHandler.EnableTwoFactor)
		me.POST("/2fa/confirm", r.userHandler.ConfirmTwoFactor)
		me.POST("/2fa/disable", r.userHandler.DisableTwoFactor)
	}
}
