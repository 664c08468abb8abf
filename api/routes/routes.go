package routes

import (
	"example.com/powermon/api/handlers"
	"example.com/powermon/api/middleware"
	"example.com/powermon/config"
	"example.com/powermon/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// SetupRoutes sets up all the routes for the server
func SetupRoutes(r *gin.Engine, cfg *config.Config, svc service.Service, log *logrus.Logger) {
	// Health check
	r.GET("/health", handlers.HealthCheck)

	// API routes
	api := r.Group("/api/v1")

	// Heartbeat ingestion
	heartbeatHandler := handlers.NewHeartbeatHandler(svc, log)
	api.POST("/heartbeat",
		middleware.HeartbeatTokenAuth(cfg.Heartbeat.Secret, log),
		heartbeatHandler.ReceiveHeartbeat)

	// Device routes
	deviceHandler := handlers.NewDeviceHandler(svc, log)
	statsHandler := handlers.NewStatsHandler(svc, log)
	devices := api.Group("/devices")
	{
		devices.POST("", deviceHandler.CreateDevice)
		devices.GET("", deviceHandler.ListDevices)
		devices.GET("/:id", deviceHandler.GetDevice)
		devices.GET("/:id/events", deviceHandler.GetDeviceEvents)
		devices.GET("/:id/stats", statsHandler.GetMonthlyStats)
	}

	// Subscriber routes
	subscriberHandler := handlers.NewSubscriberHandler(svc, log)
	subscribers := api.Group("/subscribers")
	{
		subscribers.POST("", subscriberHandler.CreateSubscriber)
		subscribers.GET("", subscriberHandler.ListSubscribers)
		subscribers.PUT("/:id", subscriberHandler.UpdateSubscriber)
		subscribers.DELETE("/:id", subscriberHandler.DeleteSubscriber)
	}

	// Event export/import
	eventHandler := handlers.NewEventHandler(svc, log)
	events := api.Group("/events")
	{
		events.GET("/export", eventHandler.ExportEvents)
		events.POST("/import", eventHandler.ImportEvents)
	}
}
