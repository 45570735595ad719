package api

import (
	"macrostudio/service"

	"github.com/gin-gonic/gin"
)

// Services bundles what the routes need.
type Services struct {
	Store      *service.MacroStore
	Playback   *service.PlaybackService
	Generation *service.GenerationService
	Hub        *WebSocketHub
}

func SetupRoutes(router *gin.Engine, s Services) {
	// Enable CORS
	router.Use(CORSMiddleware())

	// Health check
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	api := router.Group("/api")
	{
		macros := api.Group("/macros")
		{
			macros.GET("", func(c *gin.Context) {
				ListMacros(c, s.Store)
			})
			macros.POST("", func(c *gin.Context) {
				CreateMacro(c, s.Store)
			})
			macros.GET("/:id", func(c *gin.Context) {
				GetMacro(c, s.Store)
			})
			macros.PATCH("/:id", func(c *gin.Context) {
				UpdateMacro(c, s.Store)
			})
			macros.DELETE("/:id", func(c *gin.Context) {
				DeleteMacro(c, s.Store)
			})
			macros.POST("/:id/select", func(c *gin.Context) {
				SelectMacro(c, s.Store)
			})
		}

		api.PUT("/edit-target", func(c *gin.Context) {
			SetEditTarget(c, s.Store)
		})

		actions := api.Group("/actions")
		{
			actions.POST("", func(c *gin.Context) {
				InsertAction(c, s.Store)
			})
			actions.PATCH("/:id", func(c *gin.Context) {
				UpdateAction(c, s.Store)
			})
			actions.DELETE("/:id", func(c *gin.Context) {
				RemoveAction(c, s.Store)
			})
		}

		api.GET("/export", func(c *gin.Context) {
			ExportMacros(c, s.Store)
		})
		api.POST("/import", func(c *gin.Context) {
			ImportMacros(c, s.Store)
		})
		api.POST("/normalize", NormalizeActions)
		api.POST("/generate", func(c *gin.Context) {
			GenerateActions(c, s.Generation)
		})

		playback := api.Group("/playback")
		{
			playback.GET("", func(c *gin.Context) {
				GetPlayback(c, s.Playback)
			})
			playback.POST("/start", func(c *gin.Context) {
				StartPlayback(c, s.Playback)
			})
			playback.POST("/stop", func(c *gin.Context) {
				StopPlayback(c, s.Playback)
			})
			playback.POST("/reset", func(c *gin.Context) {
				ResetPlayback(c, s.Playback)
			})
		}
	}

	// WebSocket route
	router.GET("/ws", func(c *gin.Context) {
		HandleWebSocket(s.Hub, s.Playback.Attach, c)
	})
}

func CORSMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, PATCH, DELETE")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}
