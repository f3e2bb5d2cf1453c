package main

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"streamcast/internal/infrastructure/hub"
	"streamcast/internal/infrastructure/logger"
	"streamcast/internal/interfaces/rest/v1/handler"
	"streamcast/internal/interfaces/sse"
	"streamcast/internal/interfaces/websocket"
)

func InitRouter(hubInstance *hub.Hub, log logger.Logger) http.Handler {
	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())

	// CORS middleware
	router.Use(func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	rootGroup := router.Group("")

	channelHandler := handler.NewChannelHandler(hubInstance, log)
	rootGroup.GET("/", channelHandler.Index)
	rootGroup.GET("/health", channelHandler.Health)

	apiGroup := rootGroup.Group("/api/v1")
	{
		apiGroup.GET("/channels", channelHandler.ListChannels)
		apiGroup.POST("/channels/:channel/publish", channelHandler.Publish)
	}

	websocket.InitWebSocketRouter(log, hubInstance, rootGroup)
	sse.InitSSERouter(log, hubInstance, rootGroup)

	return router
}
