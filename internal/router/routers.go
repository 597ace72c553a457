package router

import (
	"strings"
	"time"

	"github.com/Payphone-Digital/marketplace-auth/config"
	"github.com/Payphone-Digital/marketplace-auth/internal/handler"
	"github.com/Payphone-Digital/marketplace-auth/internal/middleware"
	"github.com/gin-gonic/gin"
)

type Router struct {
	authHandler   *handler.AuthHandler
	userHandler   *handler.UserHandler
	staffHandler  *handler.StaffHandler
	healthHandler *handler.HealthHandler

	accessMw *middleware.AccessMiddleware
	limiter  *middleware.RateLimiter
	Config   *config.Config
}

func NewRouter(
	auth *handler.AuthHandler,
	user *handler.UserHandler,
	staff *handler.StaffHandler,
	health *handler.HealthHandler,

	accessMw *middleware.AccessMiddleware,
	config *config.Config,
) *Router {
	return &Router{
		authHandler:   auth,
		userHandler:   user,
		staffHandler:  staff,
		healthHandler: health,

		accessMw: accessMw,
		limiter:  middleware.NewRateLimiter(config.RateLimit.Request, time.Duration(config.RateLimit.Duration)*time.Second),
		Config:   config,
	}
}

func (r *Router) SetupRoutes() *gin.Engine {
	router := gin.New()

	router.Use(middleware.RecoveryMiddleware())
	router.Use(middleware.RequestContext(r.Config.App.Timeout))
	router.Use(middleware.LoggingMiddleware())
	router.Use(middleware.SecurityLoggingMiddleware("/auth/login"))
	router.Use(middleware.CORS(r.Config.Cookie.AllowedOrigins))

	router.GET("/health", r.healthHandler.HealthCheck)

	base := router.Group(r.Config.Routing.BasePath)
	base.Use(middleware.RateLimit(r.limiter))
	base.Use(r.accessMw.Handle())

	// Every route is served with and without a locale prefix; the access
	// middleware strips the locale before matching.
	for _, prefix := range localePrefixes(r.Config.Routing.Locales) {
		v1 := base.Group(prefix)
		r.authRoutes(v1)
		r.userRoutes(v1)
		r.staffRoutes(v1)
	}

	return router
}

func localePrefixes(locales []string) []string {
	prefixes := []string{""}
	for _, locale := range locales {
		locale = strings.Trim(strings.TrimSpace(locale), "/")
		if locale != "" {
			prefixes = append(prefixes, "/"+locale)
		}
	}
	return prefixes
}
