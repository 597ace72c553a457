package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	configs "github.com/Payphone-Digital/marketplace-auth/config"
	"github.com/Payphone-Digital/marketplace-auth/internal/constants"
	"github.com/Payphone-Digital/marketplace-auth/internal/event"
	"github.com/Payphone-Digital/marketplace-auth/internal/handler"
	"github.com/Payphone-Digital/marketplace-auth/internal/middleware"
	"github.com/Payphone-Digital/marketplace-auth/internal/notification"
	"github.com/Payphone-Digital/marketplace-auth/internal/repository"
	"github.com/Payphone-Digital/marketplace-auth/internal/router"
	"github.com/Payphone-Digital/marketplace-auth/internal/service"
	"github.com/Payphone-Digital/marketplace-auth/pkg/cache"
	"github.com/Payphone-Digital/marketplace-auth/pkg/circuit"
	"github.com/Payphone-Digital/marketplace-auth/pkg/cookie"
	"github.com/Payphone-Digital/marketplace-auth/pkg/database"
	"github.com/Payphone-Digital/marketplace-auth/pkg/health"
	"github.com/Payphone-Digital/marketplace-auth/pkg/logger"
	"github.com/Payphone-Digital/marketplace-auth/pkg/pool"
	"github.com/Payphone-Digital/marketplace-auth/pkg/redis"
	"github.com/Payphone-Digital/marketplace-auth/pkg/routing"
	"github.com/Payphone-Digital/marketplace-auth/pkg/validation"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	config, err := configs.LoadConfig()
	if err != nil {
		panic("Failed to load config: " + err.Error())
	}

	// Initialize Zap logger
	if err := logger.InitLogger(config); err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer logger.Sync()

	log := logger.GetLogger()
	log.Info("Application starting",
		zap.String("app_name", config.App.Name),
		zap.String("environment", config.App.Environment),
		zap.String("version", constants.AppVersion),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgresDB(ctx, config)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer database.CloseDB(db)

	if err := database.AutoMigrate(ctx, db); err != nil {
		log.Fatal("Failed to run database migrations", zap.Error(err))
	}
	log.Info("Database migrated successfully")

	if config.App.SeedAdmin {
		admin := database.DefaultAdmin{
			FirstName: "Admin",
			LastName:  "Marketplace",
			Email:     config.App.AdminEmail,
			Password:  config.App.AdminPassword,
		}
		if err := database.Seed(ctx, db, admin, config.App.BcryptCost); err != nil {
			log.Fatal("Failed to seed database", zap.Error(err))
		}
		log.Info("Database seeded successfully", zap.String("admin_email", admin.Email))
	}

	redisClient, err := redis.NewClient(config)
	if err != nil {
		log.Fatal("Failed to connect to redis", zap.Error(err))
	}
	defer redisClient.Close()

	// Repositories
	userRepo := repository.NewUserRepository(db)
	accountRepo := repository.NewAccountRepository(db)
	roleRepo := repository.NewRoleRepository(db)
	otpRepo := repository.NewOTPRepository(db)
	sessionStore := repository.NewSessionStore(redisClient)
	rateLimitStore := repository.NewRateLimitStore(redisClient)

	permissionCache := cache.NewCache(time.Minute)
	defer permissionCache.Stop()

	providers := pool.NewConnectionPool(pool.DefaultPoolConfig(), log)
	defer providers.CloseAllConnections()

	breakers := circuit.NewBreakerRegistry(circuit.Config{
		Threshold:        config.Notification.BreakerThreshold,
		Timeout:          config.Notification.BreakerTimeout,
		SuccessThreshold: 2,
		MaxHalfOpen:      1,
	}, log)

	dispatcher, err := newDispatcher(ctx, config, providers, breakers, log)
	if err != nil {
		log.Fatal("Failed to initialize notifications", zap.Error(err))
	}

	var publisher event.Publisher = event.NopPublisher{}
	if config.Kafka.Enabled {
		publisher = event.NewKafkaPublisher(config.Kafka)
		log.Info("Kafka event publisher enabled",
			zap.Strings("brokers", config.Kafka.Brokers),
			zap.String("topic", config.Kafka.Topic),
		)
	}
	defer publisher.Close()

	// Services
	tokenService := service.NewTokenService(config.JWT.Secret, config.JWT.Issuer)
	roleService := service.NewRoleService(roleRepo, permissionCache)
	accessService := service.NewAccessService(sessionStore, accountRepo, userRepo, roleService, tokenService)
	otpService := service.NewOTPService(otpRepo, rateLimitStore, dispatcher, config.OTP)
	authService := service.NewAuthService(userRepo, accountRepo, sessionStore, otpService, tokenService, publisher, service.AuthConfig{
		BcryptCost:                 config.App.BcryptCost,
		SessionTTL:                 config.Session.TTL,
		RememberMeTTL:              config.Session.RememberMeTTL,
		SendVerificationOnRegister: config.App.SendVerificationOnRegister,
	})
	userService := service.NewUserService(userRepo, accountRepo, sessionStore)
	staffService := service.NewStaffService(accountRepo, sessionStore, publisher)

	validation.Register()

	registry := routing.NewRouteRegistry(log)
	refresher := routing.NewRefresher(registry, router.AccessRules, log)
	if err := refresher.Refresh(ctx); err != nil {
		log.Fatal("Failed to load access rules", zap.Error(err))
	}
	log.Info("Access rules loaded", zap.Int("route_count", registry.Count()))

	monitor := health.NewMonitor(30*time.Second, 5*time.Second, log)
	monitor.Register("postgres", health.CheckFunc(database.Ping(db)))
	monitor.Register("redis", health.CheckFunc(redisClient.HealthCheck))
	monitor.Register("notification", notificationCheck(breakers, providers))

	// Handlers
	cookies := cookie.NewAuthenticator(config.Cookie)
	authHandler := handler.NewAuthHandler(authService, cookies)
	userHandler := handler.NewUserHandler(userService, authService)
	staffHandler := handler.NewStaffHandler(roleService, staffService)
	healthHandler := handler.NewHealthHandler(monitor, constants.AppVersion)

	accessMw := middleware.NewAccessMiddleware(registry, accessService, middleware.AccessConfig{
		BasePath:    config.Routing.BasePath,
		Locales:     config.Routing.Locales,
		CSRFEnabled: config.Cookie.CSRFEnabled,
	})

	r := router.NewRouter(
		authHandler,
		userHandler,
		staffHandler,
		healthHandler,

		accessMw,
		config,
	).SetupRoutes()

	srv := &http.Server{
		Addr:              ":" + config.App.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("Server starting",
			zap.String("port", config.App.Port),
			zap.String("host", "0.0.0.0"),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		return monitor.Run(gctx)
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error("Server stopped with error", zap.Error(err))
		return
	}
	log.Info("Server stopped")
}

// notificationCheck fails while any delivery breaker is open or the last call
// through a provider client failed.
func notificationCheck(breakers *circuit.BreakerRegistry, providers *pool.ConnectionPool) health.CheckFunc {
	return func(context.Context) error {
		if open := breakers.Open(); len(open) > 0 {
			return fmt.Errorf("circuit open: %s", strings.Join(open, ", "))
		}

		var failing []string
		for name, stats := range providers.GetHealthStats() {
			if !stats.IsHealthy {
				failing = append(failing, name)
			}
		}
		if len(failing) > 0 {
			sort.Strings(failing)
			return fmt.Errorf("provider failing: %s", strings.Join(failing, ", "))
		}
		return nil
	}
}

// newDispatcher selects the delivery providers and guards each with its own
// circuit breaker.
func newDispatcher(ctx context.Context, config *configs.Config, providers *pool.ConnectionPool, breakers *circuit.BreakerRegistry, log *zap.Logger) (*notification.Dispatcher, error) {
	templates, err := notification.NewTemplates(config.Notification.ProductName)
	if err != nil {
		return nil, err
	}

	var (
		mailer notification.Mailer    = notification.LogMailer{}
		sms    notification.SMSSender = notification.LogSMSSender{}
	)

	if config.Notification.Driver == "aws" {
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
			awsconfig.WithRegion(config.Notification.AWSRegion),
			awsconfig.WithHTTPClient(providers.GetHTTPClient("aws")),
		)
		if err != nil {
			return nil, fmt.Errorf("load aws config: %w", err)
		}

		sesClient := sesv2.NewFromConfig(awsCfg, func(o *sesv2.Options) {
			o.HTTPClient = providers.GetHTTPClient("ses")
		})
		snsClient := sns.NewFromConfig(awsCfg, func(o *sns.Options) {
			o.HTTPClient = providers.GetHTTPClient("sns")
		})

		mailer = notification.NewSESMailer(sesClient, config.Notification.SESFromAddress)
		sms = notification.NewSNSSender(snsClient, config.Notification.SNSSenderID, templates, config.OTP.TTL)
		log.Info("AWS notification providers enabled", zap.String("region", config.Notification.AWSRegion))
	} else {
		log.Warn("Notification driver is log; codes are written to the application log",
			zap.String("driver", config.Notification.Driver),
		)
	}

	return notification.NewDispatcher(
		notification.NewBreakerMailer(mailer, breakers.GetOrCreate("mailer")),
		notification.NewBreakerSMSSender(sms, breakers.GetOrCreate("sms")),
		templates,
		config.Notification.Timeout,
	), nil
}
