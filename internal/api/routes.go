package api

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// SetupRoutes configures all API routes
func SetupRoutes(handlers *Handlers, logger *zap.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()

	// Middleware
	router.Use(LoggerMiddleware(logger))
	router.Use(CORSMiddleware())
	router.Use(ErrorHandlerMiddleware(logger))
	router.Use(gin.Recovery())

	// Health check
	router.GET("/health", handlers.HealthCheck)

	// API routes
	api := router.Group("/api/v1")
	{
		api.GET("/status", handlers.GetStatus)
		api.GET("/telemetry", handlers.GetTelemetry)
		api.GET("/alarms", handlers.GetAlarms)

		control := api.Group("/control")
		{
			control.POST("/mode", handlers.SetControlMode)
			control.POST("/request-current", handlers.RequestCurrent)
			control.POST("/connect", handlers.Connect)
			control.POST("/disconnect", handlers.Disconnect)
			control.POST("/reset-faults", handlers.ResetFaults)
		}
	}

	return router
}
