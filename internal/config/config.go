// Package config holds the service configuration.
package config

import (
	"time"

	infraconfig "github.com/waghostel/LearningSong-sub001/infrastructure/config"
	infraes "github.com/waghostel/LearningSong-sub001/infrastructure/elasticsearch"
	"github.com/waghostel/LearningSong-sub001/infrastructure/logger"
	infraredis "github.com/waghostel/LearningSong-sub001/infrastructure/redis"
	"github.com/waghostel/LearningSong-sub001/internal/llm"
	"github.com/waghostel/LearningSong-sub001/internal/lyrics"
	"github.com/waghostel/LearningSong-sub001/internal/musicgen"
	"github.com/waghostel/LearningSong-sub001/internal/task"
	"github.com/waghostel/LearningSong-sub001/internal/worker"
)

// Default configuration values.
const (
	defaultServiceName    = "learningsong"
	defaultServiceVersion = "1.0.0"
	defaultServicePort    = 8090
	defaultDailyLimit     = 3
	defaultESIndex        = "learning_content"
	defaultDBName         = "learningsong"
	defaultDBUser         = "postgres"
	defaultRedisAddress   = "localhost:6379"
	defaultRedisPrefix    = "learningsong"
)

// Store backends.
const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
)

// Config holds all configuration for the service.
type Config struct {
	Service       ServiceConfig              `yaml:"service"`
	Auth          AuthConfig                 `yaml:"auth"`
	Store         StoreConfig                `yaml:"store"`
	Database      infraconfig.DatabaseConfig `yaml:"database"`
	Redis         infraredis.Config          `yaml:"redis"`
	Elasticsearch ElasticsearchConfig        `yaml:"elasticsearch"`
	LLM           llm.Config                 `yaml:"llm"`
	Search        SearchConfig               `yaml:"search"`
	Lyrics        lyrics.Config              `yaml:"lyrics"`
	MusicGen      musicgen.Config            `yaml:"musicgen"`
	Quota         QuotaConfig                `yaml:"quota"`
	Tasks         task.Config                `yaml:"tasks"`
	Poller        worker.PollerConfig        `yaml:"poller"`
	Cleanup       CleanupConfig              `yaml:"cleanup"`
	Logging       logger.Config              `yaml:"logging"`
}

// ServiceConfig holds service-level configuration.
type ServiceConfig struct {
	Name        string   `yaml:"name"`
	Version     string   `yaml:"version"`
	Port        int      `env:"SERVICE_PORT" yaml:"port"`
	Debug       bool     `env:"APP_DEBUG"    yaml:"debug"`
	CORSOrigins []string `env:"CORS_ORIGINS" yaml:"cors_origins"`
}

// AuthConfig holds the bearer token and share link secrets.
type AuthConfig struct {
	JWTSecret string `env:"AUTH_JWT_SECRET" yaml:"jwt_secret"`
	// ShareSecret signs share tokens. It falls back to JWTSecret.
	ShareSecret string `env:"SHARE_SIGNING_SECRET" yaml:"share_secret"`
}

// StoreConfig selects the document store backend.
type StoreConfig struct {
	Backend string `env:"STORE_BACKEND" yaml:"backend"`
}

// ElasticsearchConfig enables the local content searcher.
type ElasticsearchConfig struct {
	infraes.Config `yaml:",inline"`

	Enabled bool   `env:"ELASTICSEARCH_ENABLED" yaml:"enabled"`
	Index   string `env:"ELASTICSEARCH_INDEX"   yaml:"index"`
}

// SearchConfig configures web search grounding.
type SearchConfig struct {
	GoogleAPIKey   string        `env:"GOOGLE_SEARCH_API_KEY"   yaml:"google_api_key"`
	GoogleEngineID string        `env:"GOOGLE_SEARCH_ENGINE_ID" yaml:"google_engine_id"`
	GoogleEndpoint string        `yaml:"google_endpoint"`
	Timeout        time.Duration `yaml:"timeout"`
}

// GoogleEnabled reports whether Google credentials are present.
func (s SearchConfig) GoogleEnabled() bool {
	return s.GoogleAPIKey != "" && s.GoogleEngineID != ""
}

// QuotaConfig holds the daily generation limit.
type QuotaConfig struct {
	DailyLimit int `env:"QUOTA_DAILY_LIMIT" yaml:"daily_limit"`
}

// CleanupConfig schedules expired task removal. Schedule is a cron
// expression or descriptor such as "@every 1h".
type CleanupConfig struct {
	Disabled bool   `env:"CLEANUP_DISABLED" yaml:"disabled"`
	Schedule string `env:"CLEANUP_SCHEDULE" yaml:"schedule"`
}

// Load reads path, applies defaults and environment overrides.
func Load(path string) (*Config, error) {
	return infraconfig.LoadWithDefaults[Config](path, setDefaults)
}

func setDefaults(cfg *Config) {
	setServiceDefaults(&cfg.Service)
	if cfg.Store.Backend == "" {
		cfg.Store.Backend = BackendMemory
	}
	if cfg.Auth.ShareSecret == "" {
		cfg.Auth.ShareSecret = cfg.Auth.JWTSecret
	}

	if cfg.Database.Database == "" {
		cfg.Database.Database = defaultDBName
	}
	if cfg.Database.User == "" {
		cfg.Database.User = defaultDBUser
	}
	cfg.Database.SetDefaults()

	if cfg.Redis.Address == "" {
		cfg.Redis.Address = defaultRedisAddress
	}
	if cfg.Redis.KeyPrefix == "" {
		cfg.Redis.KeyPrefix = defaultRedisPrefix
	}

	cfg.Elasticsearch.SetDefaults()
	if cfg.Elasticsearch.Index == "" {
		cfg.Elasticsearch.Index = defaultESIndex
	}
	if cfg.Search.Timeout == 0 {
		cfg.Search.Timeout = 10 * time.Second
	}

	cfg.LLM.SetDefaults()
	cfg.Lyrics.SetDefaults()
	cfg.MusicGen.SetDefaults()
	if cfg.Quota.DailyLimit == 0 {
		cfg.Quota.DailyLimit = defaultDailyLimit
	}
	cfg.Tasks.SetDefaults()
	cfg.Poller.SetDefaults()
	if cfg.Cleanup.Schedule == "" {
		cfg.Cleanup.Schedule = worker.DefaultCleanupSchedule
	}
	cfg.Logging.SetDefaults()
}

func setServiceDefaults(s *ServiceConfig) {
	if s.Name == "" {
		s.Name = defaultServiceName
	}
	if s.Version == "" {
		s.Version = defaultServiceVersion
	}
	if s.Port == 0 {
		s.Port = defaultServicePort
	}
}

// Validate checks the configuration once defaults are applied.
func (c *Config) Validate() error {
	if err := infraconfig.ValidatePort("service.port", c.Service.Port); err != nil {
		return err
	}
	if err := infraconfig.ValidateLogLevel(c.Logging.Level); err != nil {
		return err
	}
	if !c.Service.Debug {
		if err := infraconfig.ValidateRequired("auth.jwt_secret", c.Auth.JWTSecret); err != nil {
			return err
		}
	}
	if err := infraconfig.ValidateRequired("auth.share_secret", c.Auth.ShareSecret); err != nil {
		return err
	}

	switch c.Store.Backend {
	case BackendMemory:
	case BackendPostgres:
		if err := c.Database.Validate(); err != nil {
			return err
		}
	case BackendRedis:
		if err := infraconfig.ValidateRequired("redis.address", c.Redis.Address); err != nil {
			return err
		}
	default:
		return &infraconfig.ValidationError{
			Field:   "store.backend",
			Message: "must be one of: memory, postgres, redis",
		}
	}

	if err := infraconfig.ValidateRequired("llm.api_key", c.LLM.APIKey); err != nil {
		return err
	}
	if err := infraconfig.ValidateRequired("musicgen.api_key", c.MusicGen.APIKey); err != nil {
		return err
	}
	if err := infraconfig.ValidatePositive("quota.daily_limit", c.Quota.DailyLimit); err != nil {
		return err
	}
	return infraconfig.ValidatePositive("lyrics.max_summary_words", c.Lyrics.MaxSummaryWords)
}
