// Package server assembles the gin HTTP surface: game API, admin API,
// websocket endpoint and operational routes.
package server

import (
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/coinrush-app/coinrush-backend/internal/handler"
	"github.com/coinrush-app/coinrush-backend/internal/ratelimit"
	"github.com/coinrush-app/coinrush-backend/internal/ws"
	"github.com/coinrush-app/coinrush-backend/pkg/config"
)

// Handlers bundles everything the router mounts.
type Handlers struct {
	Notifications *handler.NotificationHandler
	Users         *handler.UserHandler
	Products      *handler.ProductHandler
	Tasks         *handler.TaskHandler
	Referrals     *handler.ReferralHandler
	Health        *handler.HealthHandler
	WS            *ws.Handler
}

const (
	sendLimit  = 10
	sendWindow = time.Minute
)

// NewRouter builds the gin engine with all middlewares and routes attached.
func NewRouter(cfg *config.Config, log *slog.Logger, limiter ratelimit.Limiter, h Handlers) *gin.Engine {
	if cfg.AppEnv == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(
		Recovery(log),
		CorrelationID(),
		RequestLogger(log),
		Metrics(),
		CORS(),
	)

	r.GET("/health", h.Health.Check)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/ws", h.WS.Serve)
	r.Static("/uploads", cfg.Uploads.Dir)

	api := r.Group("/api")
	{
		notifications := api.Group("/notifications")
		{
			notifications.POST("/send", RateLimit(limiter, "notification-send", sendLimit, sendWindow, log), h.Notifications.Send)
			notifications.POST("/test", h.Notifications.SendTest)
			notifications.POST("/:id/read", h.Notifications.MarkRead)
			notifications.GET("/stats", h.Notifications.Stats)
		}

		api.POST("/referrals", h.Referrals.Create)

		admin := api.Group("/admin")
		{
			admin.GET("/notifications", h.Notifications.List)
			admin.GET("/notifications/:id", h.Notifications.Get)
			admin.PUT("/notifications/:id", h.Notifications.Update)
			admin.DELETE("/notifications/:id", h.Notifications.Delete)

			admin.GET("/users", h.Users.List)
			admin.GET("/users/:id", h.Users.Get)
			admin.PUT("/users/:id", h.Users.Update)
			admin.POST("/users/:id/action", h.Users.Action)

			admin.GET("/products", h.Products.List)
			admin.POST("/products", h.Products.Create)
			admin.PUT("/products/reorder", h.Products.Reorder)
			admin.PUT("/products/:id", h.Products.Update)
			admin.DELETE("/products/:id", h.Products.Delete)
			admin.POST("/products/:id/image", h.Products.UploadImage)
			admin.GET("/products/:id/claims", h.Products.ClaimsByProduct)
			admin.GET("/claims", h.Products.RecentClaims)
			admin.PUT("/claims/:id", h.Products.UpdateClaimStatus)

			admin.GET("/tasks", h.Tasks.List)
			admin.POST("/tasks", h.Tasks.Create)
			admin.PUT("/tasks/:id", h.Tasks.Update)
			admin.DELETE("/tasks/:id", h.Tasks.Delete)
			admin.POST("/tasks/:id/image", h.Tasks.UploadImage)
		}
	}

	return r
}
