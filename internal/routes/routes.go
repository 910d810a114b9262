package routes

import (
	"gigflow_backend/internal/auth"
	"gigflow_backend/internal/handlers"
	"gigflow_backend/internal/logger"
	"gigflow_backend/internal/middleware"
	"gigflow_backend/ws"

	"github.com/gin-gonic/gin"
)

// RegisterRoutes регистрирует все HTTP и WebSocket маршруты.
func RegisterRoutes(
	ginRouter *gin.Engine,
	appHandlers *handlers.AppHandlers,
	wsHandler *ws.WebSocketHandler,
	tokens *auth.TokenManager,
) {
	appHandlers.HealthHandler.RegisterRoutes(ginRouter)

	// HTTP API v1, все маршруты под JWT
	api := ginRouter.Group("/api/v1")
	api.Use(middleware.AuthMiddleware(tokens))
	{
		appHandlers.BidHandler.RegisterRoutes(api)
		appHandlers.GigHandler.RegisterRoutes(api)
		appHandlers.NotificationHandler.RegisterRoutes(api)
		api.GET("/ws", wsHandler.ServeWS)
	}

	// /ws без префикса для совместимости со старыми клиентами
	wsGroup := ginRouter.Group("/ws")
	wsGroup.Use(middleware.AuthMiddleware(tokens))
	{
		wsGroup.GET("", wsHandler.ServeWS)
	}
	logger.Info("routes registered")
}
