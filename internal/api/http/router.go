package http

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

func SetupRouter(roomController *RoomController, allowedOrigins, stunServers []string) *gin.Engine {
	router := gin.Default()

	config := cors.DefaultConfig()
	if len(allowedOrigins) > 0 {
		config.AllowOrigins = allowedOrigins
	} else {
		config.AllowAllOrigins = true
	}
	config.AllowHeaders = []string{
		"Authorization",
		"Content-Type",
		"Origin",
		"Accept",
	}
	config.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	router.Use(cors.New(config))

	router.GET("/healthz", func(ctx *gin.Context) {
		ctx.JSON(200, gin.H{"status": "ok"})
	})

	router.GET("/ws", roomController.Connect)

	api := router.Group("/api")

	// Clients fetch their ICE servers instead of hardcoding them.
	api.GET("/config", func(ctx *gin.Context) {
		ctx.JSON(200, gin.H{"stun_servers": stunServers})
	})

	rooms := api.Group("/rooms")
	rooms.GET("", roomController.ListRooms)
	rooms.GET("/:roomRef/participants", roomController.ListParticipants)
	rooms.GET("/:roomRef/history", roomController.RoomHistory)

	return router
}
