package api

import (
	"github.com/gin-gonic/gin"
)

type Config struct {
	Handler *Handler
}

func NewRouter(cfg *Config) *gin.Engine {
	router := gin.Default()

	v1 := router.Group("/v1/")
	registerRoutes(v1, cfg.Handler)

	return router
}

func registerRoutes(router *gin.RouterGroup, h *Handler) {
	subscriptions := router.Group("/subscriptions")
	{
		subscriptions.POST("", h.CreateSubscription)
		subscriptions.DELETE("/:id", h.DeactivateSubscription)
	}

	instruments := router.Group("/instruments")
	{
		instruments.GET("/:symbol/ticks/latest", h.GetLatestTick)
		instruments.POST("/:symbol/notes", h.CreateNote)
		instruments.GET("/:symbol/notes", h.ListNotes)
	}
}
