package api

import (
	"context"
	"errors"
	"math"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/waghostel/LearningSong-sub001/infrastructure/logger"
	"github.com/waghostel/LearningSong-sub001/internal/domain"
	"github.com/waghostel/LearningSong-sub001/internal/lyrics"
	"github.com/waghostel/LearningSong-sub001/internal/musicgen"
)

// writeError maps service errors onto HTTP responses.
func writeError(c *gin.Context, log logger.Logger, err error) {
	var (
		validation *domain.ValidationError
		quota      *domain.QuotaExceededError
		auth       *musicgen.AuthenticationError
		rateLimit  *musicgen.RateLimitError
		timeout    *musicgen.TimeoutError
		upstream   *musicgen.APIError
		stage      *lyrics.StageError
	)

	switch {
	case errors.As(err, &validation):
		c.JSON(http.StatusBadRequest, gin.H{"error": validation.Message, "field": validation.Field})
	case errors.As(err, &quota):
		c.Header("Retry-After", strconv.Itoa(quota.RetryAfter))
		c.JSON(http.StatusTooManyRequests, gin.H{
			"error":       "Daily generation limit reached",
			"daily_limit": quota.Limit,
			"reset_time":  quota.ResetTime,
			"retry_after": quota.RetryAfter,
		})
	case errors.Is(err, domain.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Song not found"})
	case errors.Is(err, domain.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": "Not the owner of this song"})
	case errors.Is(err, domain.ErrExpired):
		c.JSON(http.StatusGone, gin.H{"error": "Song has expired"})
	case errors.Is(err, domain.ErrNotReady):
		c.JSON(http.StatusConflict, gin.H{"error": "Song is not ready yet"})
	case errors.As(err, &rateLimit):
		if rateLimit.RetryAfter > 0 {
			c.Header("Retry-After", strconv.Itoa(int(math.Ceil(rateLimit.RetryAfter.Seconds()))))
		}
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "Music service is busy, try again later"})
	case errors.As(err, &timeout), errors.Is(err, context.DeadlineExceeded):
		c.JSON(http.StatusGatewayTimeout, gin.H{"error": "Upstream request timed out"})
	case errors.As(err, &auth):
		log.Error("Music service rejected credentials", logger.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "Music service unavailable"})
	case errors.As(err, &upstream):
		log.Warn("Music service error", logger.Int("upstream_status", upstream.StatusCode), logger.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "Music service error", "details": upstream.Message})
	case errors.Is(err, lyrics.ErrSummaryTooLong):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	case errors.As(err, &stage):
		log.Warn("Lyrics pipeline failed", logger.String("stage", string(stage.Stage)), logger.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": stage.Error()})
	default:
		log.Error("Request failed", logger.String("path", c.FullPath()), logger.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}
