package bootstrap

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // postgres driver
	"github.com/redis/go-redis/v9"

	infraconfig "github.com/waghostel/LearningSong-sub001/infrastructure/config"
	infragin "github.com/waghostel/LearningSong-sub001/infrastructure/gin"
	"github.com/waghostel/LearningSong-sub001/infrastructure/logger"
	infraredis "github.com/waghostel/LearningSong-sub001/infrastructure/redis"
	"github.com/waghostel/LearningSong-sub001/internal/config"
	"github.com/waghostel/LearningSong-sub001/internal/docstore"
)

// Store is the configured document store plus its connection lifecycle.
type Store struct {
	docstore.Store
	Backend string

	db    *sqlx.DB
	redis *redis.Client
	log   logger.Logger
}

// Close releases the backend connection.
func (s *Store) Close() {
	if s.db != nil {
		if err := s.db.Close(); err != nil {
			s.log.Error("Failed to close database", logger.Error(err))
		}
	}
	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			s.log.Error("Failed to close redis", logger.Error(err))
		}
	}
}

// HealthCheck reports the store as a critical dependency.
func (s *Store) HealthCheck() infragin.HealthChecker {
	return infragin.PingChecker(s.Backend, true, s.Ping)
}

// SetupStore opens the backend named by store.backend.
func SetupStore(ctx context.Context, cfg *config.Config, log logger.Logger) (*Store, error) {
	s := &Store{Backend: cfg.Store.Backend, log: log}

	switch cfg.Store.Backend {
	case config.BackendPostgres:
		db, err := openDatabase(ctx, cfg.Database)
		if err != nil {
			return nil, err
		}
		s.db = db
		s.Store = docstore.NewPostgresStore(db)
	case config.BackendRedis:
		client, err := infraredis.NewClient(ctx, cfg.Redis)
		if err != nil {
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		s.redis = client
		s.Store = docstore.NewRedisStore(client, cfg.Redis.KeyPrefix)
	default:
		log.Warn("Using in-memory document store, data is lost on restart")
		s.Store = docstore.NewMemoryStore()
	}

	log.Info("Document store ready", logger.String("backend", s.Backend))
	return s, nil
}

func openDatabase(ctx context.Context, cfg infraconfig.DatabaseConfig) (*sqlx.DB, error) {
	db, err := sqlx.ConnectContext(ctx, "postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxConnections)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	return db, nil
}
