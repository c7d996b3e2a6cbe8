package jwt_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/waghostel/LearningSong-sub001/infrastructure/jwt"
)

const secret = "test-secret"

func newRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(jwt.Middleware(secret))
	r.GET("/me", func(c *gin.Context) {
		id, _ := jwt.Identity(c)
		c.String(http.StatusOK, id)
	})
	r.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })
	return r
}

func do(t *testing.T, r http.Handler, path, auth string) *httptest.ResponseRecorder {
	t.Helper()
	req, err := http.NewRequestWithContext(t.Context(), http.MethodGet, path, http.NoBody)
	require.NoError(t, err)
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestMiddleware_ValidToken(t *testing.T) {
	t.Parallel()

	token, err := jwt.Sign(secret, "user-1", time.Hour)
	require.NoError(t, err)

	w := do(t, newRouter(), "/me", "Bearer "+token)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "user-1", w.Body.String())
}

func TestMiddleware_Rejects(t *testing.T) {
	t.Parallel()

	expired, err := jwt.Sign(secret, "user-1", -time.Minute)
	require.NoError(t, err)
	foreign, err := jwt.Sign("other-secret", "user-1", time.Hour)
	require.NoError(t, err)
	noSubject, err := jwt.Sign(secret, "", time.Hour)
	require.NoError(t, err)

	tests := []struct {
		name string
		auth string
	}{
		{name: "missing header", auth: ""},
		{name: "wrong scheme", auth: "Basic abc"},
		{name: "expired", auth: "Bearer " + expired},
		{name: "wrong secret", auth: "Bearer " + foreign},
		{name: "no subject", auth: "Bearer " + noSubject},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			w := do(t, newRouter(), "/me", tt.auth)
			assert.Equal(t, http.StatusUnauthorized, w.Code)
		})
	}
}

func TestMiddleware_SkipsHealth(t *testing.T) {
	t.Parallel()

	w := do(t, newRouter(), "/health", "")
	assert.Equal(t, http.StatusOK, w.Code)
}
