package gin_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	ginpkg "github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	infragin "github.com/waghostel/LearningSong-sub001/infrastructure/gin"
	"github.com/waghostel/LearningSong-sub001/infrastructure/logger"
)

func serve(t *testing.T, h http.Handler, method, path string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(method, path, http.NoBody)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func newRequestIDRouter() (*ginpkg.Engine, *string, *logger.Logger) {
	ginpkg.SetMode(ginpkg.TestMode)

	var ctxID string
	var ctxLog logger.Logger
	router := ginpkg.New()
	router.Use(infragin.RequestIDLoggerMiddleware(logger.NewNop()))
	router.GET("/test", func(c *ginpkg.Context) {
		ctxID = c.GetString("request_id")
		ctxLog = logger.FromContext(c.Request.Context())
		c.String(http.StatusOK, "ok")
	})
	return router, &ctxID, &ctxLog
}

func TestRequestIDLoggerMiddleware_GeneratesID(t *testing.T) {
	t.Parallel()

	router, ctxID, ctxLog := newRequestIDRouter()
	w := serve(t, router, http.MethodGet, "/test", nil)

	reqID := w.Header().Get("X-Request-ID")
	assert.Len(t, reqID, 32)
	assert.Equal(t, reqID, *ctxID)
	assert.NotNil(t, *ctxLog)
}

func TestRequestIDLoggerMiddleware_PreservesInboundID(t *testing.T) {
	t.Parallel()

	router, ctxID, _ := newRequestIDRouter()
	w := serve(t, router, http.MethodGet, "/test", map[string]string{"X-Request-ID": "trace-abc123"})

	assert.Equal(t, "trace-abc123", w.Header().Get("X-Request-ID"))
	assert.Equal(t, "trace-abc123", *ctxID)
}

func TestRequestIDLoggerMiddleware_RejectsOversizedID(t *testing.T) {
	t.Parallel()

	oversized := strings.Repeat("x", 200)
	router, _, _ := newRequestIDRouter()
	w := serve(t, router, http.MethodGet, "/test", map[string]string{"X-Request-ID": oversized})

	got := w.Header().Get("X-Request-ID")
	assert.NotEqual(t, oversized, got)
	assert.NotEmpty(t, got)
}

func TestCORSMiddleware(t *testing.T) {
	t.Parallel()
	ginpkg.SetMode(ginpkg.TestMode)

	router := ginpkg.New()
	router.Use(infragin.CORSMiddleware(infragin.CORSConfig{
		Enabled:        true,
		AllowedOrigins: []string{"https://app.example.com"},
	}))
	router.GET("/x", func(c *ginpkg.Context) { c.Status(http.StatusOK) })
	router.OPTIONS("/x", func(c *ginpkg.Context) { c.Status(http.StatusOK) })

	allowed := serve(t, router, http.MethodGet, "/x", map[string]string{"Origin": "https://app.example.com"})
	assert.Equal(t, "https://app.example.com", allowed.Header().Get("Access-Control-Allow-Origin"))

	denied := serve(t, router, http.MethodGet, "/x", map[string]string{"Origin": "https://evil.example.com"})
	assert.Empty(t, denied.Header().Get("Access-Control-Allow-Origin"))

	preflight := serve(t, router, http.MethodOptions, "/x", map[string]string{"Origin": "https://app.example.com"})
	assert.Equal(t, http.StatusNoContent, preflight.Code)
}

func TestRecoveryMiddleware(t *testing.T) {
	t.Parallel()
	ginpkg.SetMode(ginpkg.TestMode)

	router := ginpkg.New()
	router.Use(infragin.RecoveryMiddleware(logger.NewNop()))
	router.GET("/panic", func(*ginpkg.Context) { panic("boom") })

	w := serve(t, router, http.MethodGet, "/panic", nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestHealthRoutes_AggregateChecks(t *testing.T) {
	t.Parallel()
	ginpkg.SetMode(ginpkg.TestMode)

	router := ginpkg.New()
	infragin.RegisterHealthRoutes(router, infragin.HealthOptions{
		ServiceName:    "learningsong",
		ServiceVersion: "test",
		Checks: map[string]infragin.HealthChecker{
			"store": infragin.PingChecker("store", true, func(context.Context) error { return nil }),
			"search": infragin.PingChecker("search", false, func(context.Context) error {
				return errors.New("down")
			}),
		},
	})

	w := serve(t, router, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var body infragin.HealthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, infragin.HealthStatusDegraded, body.Status)
	assert.Equal(t, infragin.HealthStatusHealthy, body.Checks["store"].Status)

	head := serve(t, router, http.MethodHead, "/health", nil)
	assert.Equal(t, http.StatusOK, head.Code)

	mem := serve(t, router, http.MethodGet, "/health/memory", nil)
	assert.Equal(t, http.StatusOK, mem.Code)
}

func TestHealthRoutes_CriticalFailureIsUnavailable(t *testing.T) {
	t.Parallel()
	ginpkg.SetMode(ginpkg.TestMode)

	router := ginpkg.New()
	infragin.RegisterHealthRoutes(router, infragin.HealthOptions{
		Checks: map[string]infragin.HealthChecker{
			"store": infragin.PingChecker("store", true, func(context.Context) error { return errors.New("down") }),
		},
	})

	w := serve(t, router, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}
