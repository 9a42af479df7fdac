package http

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/immxrtalbeast/chat_gateway/internal/service"
)

func SetupRouter(roomController *RoomController, verifier service.TokenVerifier, allowedOrigins []string) *gin.Engine {
	router := gin.Default()
	config := cors.DefaultConfig()
	config.AllowOrigins = allowedOrigins
	config.AllowCredentials = true
	config.AllowHeaders = []string{
		"Authorization",
		"Content-Type",
		"Origin",
		"Accept",
	}
	config.AllowMethods = []string{"GET", "POST", "HEAD", "OPTIONS"}
	router.Use(cors.New(config))
	router.GET("/healthz", func(ctx *gin.Context) {
		ctx.JSON(200, gin.H{"status": "ok"})
	})

	if roomController == nil {
		return router
	}

	router.GET("/ws/rooms/:roomName", roomController.JoinRoom)

	api := router.Group("/api", AuthRequired(verifier))
	rooms := api.Group("/rooms")
	rooms.GET("/:roomName/messages", roomController.ListMessages)
	rooms.GET("/:roomName/online", roomController.OnlineCount)
	api.POST("/messages/:messageID/tag-product", roomController.TagProduct)

	return router
}
