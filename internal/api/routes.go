package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	infragin "github.com/waghostel/LearningSong-sub001/infrastructure/gin"
	"github.com/waghostel/LearningSong-sub001/infrastructure/sse"
	"github.com/waghostel/LearningSong-sub001/internal/service"
)

// RouteOptions carries the optional pieces of the router.
type RouteOptions struct {
	JWTSecret string
	Broker    sse.Broker
	Metrics   http.Handler
}

// RegisterRoutes mounts the API on router. Shared songs are public, everything
// else requires a bearer token.
func RegisterRoutes(router *gin.Engine, h *Handler, opts RouteOptions) {
	if opts.Metrics != nil {
		router.GET("/metrics", gin.WrapH(opts.Metrics))
	}

	public, protected := infragin.SetupAPIRoutesWithPublic(router, opts.JWTSecret)
	public.GET("/shared/:token", h.Shared)

	protected.POST("/lyrics/generate", h.GenerateLyrics)
	protected.GET("/user/quota", h.Quota)

	songs := protected.Group("/songs")
	songs.POST("/generate", h.CreateSong)
	songs.GET("/history", h.History)
	songs.GET("/:task_id", h.SongStatus)
	songs.GET("/:task_id/variations/:audio_id/timestamps", h.Timestamps)
	songs.PATCH("/:task_id/primary", h.SetPrimary)
	songs.POST("/:task_id/extend", h.Extend)
	songs.POST("/:task_id/share", h.Share)

	if opts.Broker != nil {
		protected.GET("/events", h.Events(opts.Broker))
	}
}

// Events streams the caller's task events.
func (h *Handler) Events(b sse.Broker) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := identity(c)
		if !ok {
			return
		}
		sse.Serve(c, b, h.log, sse.WithAudience(userID), sse.WithTypes(service.EventTaskStatus))
	}
}
