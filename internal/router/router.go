package router

import (
	"context"
	"log/slog"
	"time"

	"dispatch/config"
	"dispatch/internal/domain"
	"dispatch/internal/handler"
	"dispatch/internal/middleware"
	"dispatch/internal/repository"
	"dispatch/internal/service"
	"dispatch/internal/ws"
	"dispatch/pkg/logger"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// App is the wired HTTP surface plus the pieces shutdown needs.
type App struct {
	Engine        *gin.Engine
	Hub           *ws.Hub
	Notifications *service.NotificationService

	stop chan struct{}
}

// Close stops background housekeeping and waits for pending delivery flags.
func (a *App) Close() {
	close(a.stop)
	a.Notifications.Wait()
}

func Setup(cfg *config.Config, db *gorm.DB, log *slog.Logger) *App {
	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	stop := make(chan struct{})
	limiter := middleware.NewRateLimiter(cfg.RateLimit.PerSecond, cfg.RateLimit.Burst)
	go limiter.RunCleanup(time.Minute, stop)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID(log))
	r.Use(middleware.RateLimit(limiter))

	// Repositories
	userRepo := repository.NewUserRepository(db)
	notificationRepo := repository.NewNotificationRepository(db,
		repository.WithBatchSize(cfg.Dispatch.BatchSize),
		repository.WithContentLimits(cfg.Dispatch.TitleMax, cfg.Dispatch.BodyMax),
	)

	hub := ws.NewHub()

	// Services
	opts := []service.Option{
		service.WithLogger(log),
		service.WithFanoutWorkers(cfg.Dispatch.FanoutWorkers),
		service.WithPushTimeout(cfg.Dispatch.PushTimeout),
		service.WithMarkTimeout(cfg.Dispatch.MarkTimeout),
	}
	if cfg.Firebase.ServiceAccountPath == "" {
		log.Info("mobile push disabled: set FIREBASE_SERVICE_ACCOUNT_PATH to enable")
	} else if fcm, err := service.NewFCMService(context.Background(), cfg.Firebase.ServiceAccountPath); err != nil {
		log.Warn("mobile push disabled", logger.Error(err))
	} else {
		log.Info("mobile push enabled")
		opts = append(opts, service.WithMobilePush(userRepo, fcm))
	}
	notifSvc := service.NewNotificationService(notificationRepo, hub, opts...)
	targets := service.NewTargetingResolver(userRepo)

	// Handlers
	notificationHandler := handler.NewNotificationHandler(notificationRepo, notifSvc, targets, log)
	meHandler := handler.NewMeHandler(userRepo, log)

	authMw := middleware.AuthRequired(&cfg.JWT)

	r.GET("/healthz", handler.Health(hub))

	api := r.Group("/api/v1")
	{
		me := api.Group("/me")
		me.Use(authMw)
		{
			me.GET("/notifications", notificationHandler.List)
			me.GET("/notifications/unread-count", notificationHandler.UnreadCount)
			me.PUT("/notifications/read-all", notificationHandler.MarkAllRead)
			me.PUT("/notifications/:id/read", notificationHandler.MarkRead)
			me.POST("/fcm-token", meHandler.RegisterFCMToken)
		}

		admin := api.Group("/admin")
		admin.Use(authMw, middleware.RequireRole(domain.RoleAdmin))
		{
			admin.POST("/notifications/send", notificationHandler.Send)
			admin.POST("/notifications/broadcast", notificationHandler.Broadcast)
		}
	}

	r.GET("/ws/notifications", ws.UpgradeNotificationsWS(&cfg.JWT, hub, log))

	return &App{Engine: r, Hub: hub, Notifications: notifSvc, stop: stop}
}
