package bootstrap

import (
	"context"
	"errors"
	"fmt"

	infraes "github.com/waghostel/LearningSong-sub001/infrastructure/elasticsearch"
	infrahttp "github.com/waghostel/LearningSong-sub001/infrastructure/http"
	"github.com/waghostel/LearningSong-sub001/infrastructure/logger"
	"github.com/waghostel/LearningSong-sub001/infrastructure/signing"
	"github.com/waghostel/LearningSong-sub001/infrastructure/sse"
	"github.com/waghostel/LearningSong-sub001/internal/cache"
	"github.com/waghostel/LearningSong-sub001/internal/config"
	"github.com/waghostel/LearningSong-sub001/internal/llm"
	"github.com/waghostel/LearningSong-sub001/internal/lyrics"
	"github.com/waghostel/LearningSong-sub001/internal/musicgen"
	"github.com/waghostel/LearningSong-sub001/internal/quota"
	"github.com/waghostel/LearningSong-sub001/internal/search"
	"github.com/waghostel/LearningSong-sub001/internal/service"
	"github.com/waghostel/LearningSong-sub001/internal/task"
	"github.com/waghostel/LearningSong-sub001/internal/telemetry"
	"github.com/waghostel/LearningSong-sub001/internal/worker"
)

// App holds the wired services and background workers.
type App struct {
	Lyrics    *service.LyricsService
	Songs     *service.SongService
	Broker    sse.Broker
	Telemetry *telemetry.Provider

	// SearchCheck is set when the Elasticsearch searcher is enabled.
	SearchCheck func(ctx context.Context) error

	poller  *worker.Poller
	cleanup *worker.Cleanup
	log     logger.Logger
}

// SetupServices wires clients, coordinators and services on top of store.
func SetupServices(ctx context.Context, cfg *config.Config, store *Store, log logger.Logger) (*App, error) {
	tel := telemetry.NewProvider()

	model, err := llm.New(cfg.LLM)
	if err != nil {
		return nil, fmt.Errorf("create language model client: %w", err)
	}

	app := &App{Telemetry: tel, log: log}
	searcher, err := setupSearch(ctx, cfg, app, log)
	if err != nil {
		return nil, err
	}

	pipeline := lyrics.New(model, searcher, cfg.Lyrics, log.With(logger.String("component", "lyrics")),
		lyrics.WithRecorder(tel))

	music, err := musicgen.New(cfg.MusicGen, log.With(logger.String("component", "musicgen")),
		musicgen.WithRecorder(tel))
	if err != nil {
		return nil, fmt.Errorf("create music generation client: %w", err)
	}

	caches := cache.New(store, log, cache.WithRecorder(tel))
	quotas := quota.New(store, cfg.Quota.DailyLimit, log, quota.WithRecorder(tel))
	tasks := task.NewRepository(store, signing.NewSigner(cfg.Auth.ShareSecret), cfg.Tasks, log)

	app.Broker = sse.NewBroker(log.With(logger.String("component", "sse")))
	app.Lyrics = service.NewLyricsService(pipeline, caches, quotas, tel, log)
	app.Songs = service.NewSongService(music, tasks, caches, app.Broker, tel, log)

	if !cfg.Poller.Disabled {
		app.poller = worker.NewPoller(tasks, app.Songs, tel, log.With(logger.String("component", "poller")), cfg.Poller)
	}
	if !cfg.Cleanup.Disabled {
		app.cleanup, err = worker.NewCleanup(tasks, tel, log.With(logger.String("component", "cleanup")), cfg.Cleanup.Schedule)
		if err != nil {
			return nil, err
		}
	}
	return app, nil
}

// setupSearch chains the configured searchers. It returns a nil Searcher when
// none is configured, which disables grounding.
func setupSearch(ctx context.Context, cfg *config.Config, app *App, log logger.Logger) (search.Searcher, error) {
	var searchers []search.Searcher

	if cfg.Search.GoogleEnabled() {
		httpClient := infrahttp.NewClient(&infrahttp.ClientConfig{Timeout: cfg.Search.Timeout})
		google, err := search.NewGoogleSearcher(httpClient, cfg.Search.GoogleEndpoint,
			cfg.Search.GoogleAPIKey, cfg.Search.GoogleEngineID)
		if err != nil {
			return nil, err
		}
		searchers = append(searchers, google)
	}

	if cfg.Elasticsearch.Enabled {
		client, err := infraes.NewClient(ctx, cfg.Elasticsearch.Config, log)
		if err != nil {
			return nil, fmt.Errorf("connect elasticsearch: %w", err)
		}
		searchers = append(searchers, search.NewElasticsearchSearcher(client, cfg.Elasticsearch.Index))
		app.SearchCheck = func(ctx context.Context) error {
			return infraes.Ping(ctx, client, cfg.Elasticsearch.PingTimeout)
		}
	}

	if len(searchers) == 0 {
		log.Info("No search provider configured, grounding disabled")
		return nil, nil //nolint:nilnil // no searcher is a valid configuration
	}
	return search.NewChain(log.With(logger.String("component", "search")), searchers...), nil
}

// StartBackground starts the SSE broker and workers.
func (a *App) StartBackground(ctx context.Context) error {
	if err := a.Broker.Start(ctx); err != nil {
		return fmt.Errorf("start event broker: %w", err)
	}
	if a.poller != nil {
		if err := a.poller.Start(ctx); err != nil {
			return err
		}
	}
	if a.cleanup != nil {
		if err := a.cleanup.Start(ctx); err != nil {
			return err
		}
	}
	return nil
}

// StopBackground stops workers, then the broker.
func (a *App) StopBackground() {
	if a.poller != nil {
		a.poller.Stop()
	}
	if a.cleanup != nil {
		a.cleanup.Stop()
	}
	if err := a.Broker.Stop(); err != nil && !errors.Is(err, context.Canceled) {
		a.log.Warn("Event broker stop failed", logger.Error(err))
	}
}
