package bootstrap

import (
	"github.com/gin-gonic/gin"

	infragin "github.com/waghostel/LearningSong-sub001/infrastructure/gin"
	"github.com/waghostel/LearningSong-sub001/infrastructure/logger"
	"github.com/waghostel/LearningSong-sub001/internal/api"
	"github.com/waghostel/LearningSong-sub001/internal/config"
)

// SetupHTTPServer builds the HTTP server with health checks, metrics and the
// API routes.
func SetupHTTPServer(cfg *config.Config, store *Store, app *App, log logger.Logger) *infragin.Server {
	handler := api.NewHandler(app.Lyrics, app.Songs, log.With(logger.String("component", "api")))

	builder := infragin.NewServerBuilder(cfg.Service.Name, cfg.Service.Port).
		WithLogger(log).
		WithDebug(cfg.Service.Debug).
		WithVersion(version).
		WithCORSOrigins(cfg.Service.CORSOrigins).
		WithMiddleware(app.Telemetry.GinMiddleware()).
		WithHealthCheck("store", store.HealthCheck()).
		WithRoutes(func(router *gin.Engine) {
			api.RegisterRoutes(router, handler, api.RouteOptions{
				JWTSecret: cfg.Auth.JWTSecret,
				Broker:    app.Broker,
				Metrics:   app.Telemetry.Handler(),
			})
		})

	if app.SearchCheck != nil {
		builder = builder.WithHealthCheck("elasticsearch", infragin.PingChecker("elasticsearch", false, app.SearchCheck))
	}
	return builder.Build()
}
