package elasticsearch

import (
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/waghostel/LearningSong-sub001/infrastructure/logger"
	"github.com/waghostel/LearningSong-sub001/infrastructure/retry"
)

func TestNormalizeURL(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input, expected string
	}{
		{"http://elasticsearch:9200", "http://elasticsearch:9200"},
		{"https://elasticsearch:9200", "https://elasticsearch:9200"},
		{"elasticsearch:9200", "http://elasticsearch:9200"},
		{"", "http://localhost:9200"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, normalizeURL(tt.input), tt.input)
	}
}

func TestConfig_SetDefaults(t *testing.T) {
	t.Parallel()

	var cfg Config
	cfg.SetDefaults()

	assert.Equal(t, "http://localhost:9200", cfg.URL)
	assert.Equal(t, 3, cfg.MaxRetries)
	assert.Equal(t, 5*time.Second, cfg.PingTimeout)
	require.NotNil(t, cfg.RetryConfig)
	assert.Equal(t, 5, cfg.RetryConfig.MaxAttempts)
}

func TestNewClient_RetriesUntilReachable(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("X-Elastic-Product", "Elasticsearch")
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client, err := NewClient(t.Context(), Config{
		URL:        srv.URL,
		MaxRetries: 1,
		RetryConfig: &retry.Config{
			MaxAttempts:  3,
			InitialDelay: time.Millisecond,
			IsRetryable:  func(err error) bool { return err != nil },
		},
	}, logger.NewNop())

	require.NoError(t, err)
	assert.NotNil(t, client)
	assert.GreaterOrEqual(t, calls.Load(), int32(2))
}
