// Package api exposes the lyric and song services over HTTP.
package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/waghostel/LearningSong-sub001/infrastructure/jwt"
	"github.com/waghostel/LearningSong-sub001/infrastructure/logger"
	"github.com/waghostel/LearningSong-sub001/internal/domain"
	"github.com/waghostel/LearningSong-sub001/internal/service"
)

// LyricsService is the lyric generation surface used by the handlers.
type LyricsService interface {
	Generate(ctx context.Context, userID string, req service.LyricsRequest) (*service.LyricsResult, error)
	Quota(ctx context.Context, userID string) (service.QuotaStatus, error)
}

// SongService is the song surface used by the handlers.
type SongService interface {
	Create(ctx context.Context, userID string, req service.CreateSongRequest) (*service.CreateSongResult, error)
	Status(ctx context.Context, userID, taskID string) (*domain.Task, error)
	Timestamps(ctx context.Context, userID, taskID, audioID string) (*domain.TimestampedLyrics, bool, error)
	SetPrimary(ctx context.Context, userID, taskID string, index int) (*domain.Task, error)
	Extend(ctx context.Context, userID, taskID string, hours int) (*domain.Task, error)
	Share(ctx context.Context, userID, taskID string) (*domain.ShareLink, error)
	Shared(ctx context.Context, token string) (*domain.SharedSong, error)
	History(ctx context.Context, userID string, limit int) ([]*domain.Task, error)
}

// Handler serves the /api/v1 routes.
type Handler struct {
	lyrics LyricsService
	songs  SongService
	log    logger.Logger
}

func NewHandler(lyrics LyricsService, songs SongService, log logger.Logger) *Handler {
	if log == nil {
		log = logger.NewNop()
	}
	return &Handler{lyrics: lyrics, songs: songs, log: log}
}

type generateLyricsRequest struct {
	Content       string `binding:"required" json:"content"`
	SearchEnabled bool   `json:"search_enabled"`
}

type lyricsResponse struct {
	Lyrics         string  `json:"lyrics"`
	ContentHash    string  `json:"content_hash"`
	Cached         bool    `json:"cached"`
	ProcessingTime float64 `json:"processing_time"`
}

// GenerateLyrics handles POST /lyrics/generate.
func (h *Handler) GenerateLyrics(c *gin.Context) {
	userID, ok := identity(c)
	if !ok {
		return
	}
	var req generateLyricsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	res, err := h.lyrics.Generate(c.Request.Context(), userID, service.LyricsRequest{
		Content:       req.Content,
		SearchEnabled: req.SearchEnabled,
	})
	if err != nil {
		writeError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, lyricsResponse{
		Lyrics:         res.Lyrics,
		ContentHash:    res.ContentHash,
		Cached:         res.Cached,
		ProcessingTime: res.ProcessingTime.Seconds(),
	})
}

// Quota handles GET /user/quota.
func (h *Handler) Quota(c *gin.Context) {
	userID, ok := identity(c)
	if !ok {
		return
	}
	status, err := h.lyrics.Quota(c.Request.Context(), userID)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, status)
}

type createSongRequest struct {
	Lyrics      string `binding:"required" json:"lyrics"`
	Style       string `binding:"required" json:"style"`
	Title       string `json:"title"`
	ContentHash string `json:"content_hash"`
}

type createSongResponse struct {
	TaskID        string            `json:"task_id"`
	Status        domain.TaskStatus `json:"status"`
	EstimatedTime int               `json:"estimated_time"`
	Cached        bool              `json:"cached"`
}

// CreateSong handles POST /songs/generate.
func (h *Handler) CreateSong(c *gin.Context) {
	userID, ok := identity(c)
	if !ok {
		return
	}
	var req createSongRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	res, err := h.songs.Create(c.Request.Context(), userID, service.CreateSongRequest{
		Lyrics:      req.Lyrics,
		Style:       req.Style,
		Title:       req.Title,
		ContentHash: req.ContentHash,
	})
	if err != nil {
		writeError(c, h.log, err)
		return
	}

	h.log.Info("Song requested",
		logger.String("task_id", res.TaskID),
		logger.String("user_id", userID),
		logger.Bool("cached", res.Cached),
	)
	c.JSON(http.StatusAccepted, createSongResponse{
		TaskID:        res.TaskID,
		Status:        res.Status,
		EstimatedTime: res.EstimatedTime,
		Cached:        res.Cached,
	})
}

// SongStatus handles GET /songs/:task_id.
func (h *Handler) SongStatus(c *gin.Context) {
	userID, ok := identity(c)
	if !ok {
		return
	}
	t, err := h.songs.Status(c.Request.Context(), userID, c.Param("task_id"))
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, t)
}

// Timestamps handles GET /songs/:task_id/variations/:audio_id/timestamps.
func (h *Handler) Timestamps(c *gin.Context) {
	userID, ok := identity(c)
	if !ok {
		return
	}
	alignment, found, err := h.songs.Timestamps(c.Request.Context(), userID, c.Param("task_id"), c.Param("audio_id"))
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	if !found {
		c.JSON(http.StatusAccepted, gin.H{"available": false})
		return
	}
	c.JSON(http.StatusOK, alignment)
}

type primaryRequest struct {
	VariationIndex *int `binding:"required" json:"variation_index"`
}

// SetPrimary handles PATCH /songs/:task_id/primary.
func (h *Handler) SetPrimary(c *gin.Context) {
	userID, ok := identity(c)
	if !ok {
		return
	}
	var req primaryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}
	t, err := h.songs.SetPrimary(c.Request.Context(), userID, c.Param("task_id"), *req.VariationIndex)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, t)
}

type extendRequest struct {
	Hours int `json:"hours"`
}

// Extend handles POST /songs/:task_id/extend. An empty body extends by the
// default lifetime.
func (h *Handler) Extend(c *gin.Context) {
	userID, ok := identity(c)
	if !ok {
		return
	}
	var req extendRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
			return
		}
	}
	t, err := h.songs.Extend(c.Request.Context(), userID, c.Param("task_id"), req.Hours)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"task_id": t.TaskID, "expires_at": t.ExpiresAt})
}

// Share handles POST /songs/:task_id/share.
func (h *Handler) Share(c *gin.Context) {
	userID, ok := identity(c)
	if !ok {
		return
	}
	link, err := h.songs.Share(c.Request.Context(), userID, c.Param("task_id"))
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusCreated, link)
}

// Shared handles the public GET /shared/:token.
func (h *Handler) Shared(c *gin.Context) {
	song, err := h.songs.Shared(c.Request.Context(), c.Param("token"))
	switch {
	case errors.Is(err, domain.ErrNotReady):
		c.JSON(http.StatusTooEarly, gin.H{"error": "Song is still being generated"})
	case errors.Is(err, domain.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Share link not found"})
	case err != nil:
		writeError(c, h.log, err)
	default:
		c.JSON(http.StatusOK, song)
	}
}

// History handles GET /songs/history.
func (h *Handler) History(c *gin.Context) {
	userID, ok := identity(c)
	if !ok {
		return
	}
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a non-negative integer"})
			return
		}
		limit = n
	}
	tasks, err := h.songs.History(c.Request.Context(), userID, limit)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"songs": tasks,
		"count": len(tasks),
		"as_of": time.Now().UTC(),
	})
}

// identity aborts with 401 when the request carries no caller identity.
func identity(c *gin.Context) (string, bool) {
	id, ok := jwt.Identity(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return "", false
	}
	return id, true
}
