package service

import (
	"context"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/waghostel/LearningSong-sub001/infrastructure/logger"
	"github.com/waghostel/LearningSong-sub001/internal/domain"
	"github.com/waghostel/LearningSong-sub001/internal/telemetry"
)

// DefaultMaxContentLength bounds lyric generation input, in characters.
const DefaultMaxContentLength = 10000

// LyricsRequest is a lyric generation request.
type LyricsRequest struct {
	Content       string
	SearchEnabled bool
}

// LyricsResult is returned for both generated and cached lyrics.
type LyricsResult struct {
	Lyrics         string
	ContentHash    string
	Cached         bool
	ProcessingTime time.Duration
}

// LyricsService serves lyric generation.
type LyricsService struct {
	pipeline  Pipeline
	cache     LyricsCache
	quota     QuotaGate
	log       logger.Logger
	telemetry *telemetry.Provider
	maxLength int
}

// NewLyricsService wires the lyric generation flow. tel may be nil.
func NewLyricsService(
	pipeline Pipeline,
	cache LyricsCache,
	quota QuotaGate,
	tel *telemetry.Provider,
	log logger.Logger,
) *LyricsService {
	if log == nil {
		log = logger.NewNop()
	}
	return &LyricsService{
		pipeline:  pipeline,
		cache:     cache,
		quota:     quota,
		log:       log,
		telemetry: tel,
		maxLength: DefaultMaxContentLength,
	}
}

// Generate checks the quota, then returns cached lyrics when the content was
// seen before without counting a generation. Otherwise it runs the pipeline,
// caches the result and counts the generation.
func (s *LyricsService) Generate(ctx context.Context, userID string, req LyricsRequest) (*LyricsResult, error) {
	ctx, span := s.telemetry.StartSpan(ctx, "lyrics.generate",
		attribute.Bool("search_enabled", req.SearchEnabled))
	defer span.End()

	content := strings.TrimSpace(req.Content)
	if content == "" {
		return nil, &domain.ValidationError{Field: "content", Message: "content must not be empty"}
	}
	if len([]rune(content)) > s.maxLength {
		return nil, &domain.ValidationError{Field: "content", Message: "content is too long"}
	}

	hash := domain.ContentHash(content)
	log := s.log.With(logger.String("user_id", userID), logger.String("content_hash", hash))

	if err := s.quota.Check(ctx, userID); err != nil {
		s.telemetry.ObserveGeneration("lyrics", "quota_exceeded")
		return nil, err
	}

	cached, found, err := s.cache.GetLyrics(ctx, hash)
	if err != nil {
		log.Warn("Lyrics cache lookup failed, generating", logger.Error(err))
	}
	if found {
		s.telemetry.ObserveGeneration("lyrics", "cached")
		return &LyricsResult{Lyrics: cached.Lyrics, ContentHash: hash, Cached: true}, nil
	}

	out, err := s.pipeline.Execute(ctx, content, req.SearchEnabled)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "pipeline failed")
		s.telemetry.ObserveGeneration("lyrics", "failed")
		return nil, err
	}

	if err := s.cache.StoreLyrics(ctx, out.ContentHash, out.Lyrics); err != nil {
		log.Warn("Failed to cache lyrics", logger.Error(err))
	}
	if err := s.quota.Increment(ctx, userID); err != nil {
		log.Error("Failed to increment quota", logger.Error(err))
	}

	s.telemetry.ObserveGeneration("lyrics", "generated")
	log.Info("Lyrics generated", logger.Duration("processing_time", out.ProcessingTime))
	return &LyricsResult{
		Lyrics:         out.Lyrics,
		ContentHash:    out.ContentHash,
		Cached:         false,
		ProcessingTime: out.ProcessingTime,
	}, nil
}

// Quota reports the caller's remaining generations.
func (s *LyricsService) Quota(ctx context.Context, userID string) (QuotaStatus, error) {
	return s.quota.Get(ctx, userID)
}
