package router

import "github.com/gin-gonic/gin"

func (r *Router) staffRoutes(version *gin.RouterGroup) {
	staff := version.Group("/staff")
	{
		staff.GET("/roles", r.staffHandler.ListRoles)
		staff.GET("/roles/:id", r.staffHandler.GetRole)
		staff.POST("/roles", r.staffHandler.CreateRole)
		staff.POST("/accounts/:id/suspend", r.staffHandler.SuspendAccount)
		staff.POST("/accounts/:id/unsuspend", r.staffHandler.UnsuspendAccount)
	}
}
