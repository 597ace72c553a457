package pool

import (
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewConnectionPool(t *testing.T) {
	pool := NewConnectionPool(DefaultPoolConfig(), zap.NewNop())
	require.NotNil(t, pool)
	assert.Equal(t, 0, pool.Stats()["http_clients"])
}

func TestConnectionPool_GetHTTPClientIsCached(t *testing.T) {
	pool := NewConnectionPool(DefaultPoolConfig(), nil)

	client1 := pool.GetHTTPClient("ses")
	client2 := pool.GetHTTPClient("ses")
	assert.Same(t, client1, client2)

	pool.GetHTTPClient("sns")
	assert.Equal(t, 2, pool.Stats()["http_clients"])
}

func TestConnectionPool_TracksProviderOutcomes(t *testing.T) {
	var fail atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if fail.Load() {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	pool := NewConnectionPool(DefaultPoolConfig(), nil)
	client := pool.GetHTTPClient("ses")

	resp, err := client.Get(srv.URL)
	require.NoError(t, err)
	resp.Body.Close()
	assert.True(t, pool.GetHealthStats()["ses"].IsHealthy)

	fail.Store(true)
	resp, err = client.Get(srv.URL)
	require.NoError(t, err)
	resp.Body.Close()

	stats := pool.GetHealthStats()["ses"]
	assert.False(t, stats.IsHealthy)
	assert.Equal(t, 1, stats.SuccessCount)
	assert.Equal(t, 1, stats.FailureCount)

	var statusErr *StatusError
	require.ErrorAs(t, stats.LastError, &statusErr)
	assert.Equal(t, http.StatusBadGateway, statusErr.Code)
}

func TestConnectionPool_HealthStatsAreCopies(t *testing.T) {
	pool := NewConnectionPool(DefaultPoolConfig(), nil)
	assert.Empty(t, pool.GetHealthStats())

	pool.GetHTTPClient("ses")
	stats := pool.GetHealthStats()
	require.Contains(t, stats, "ses")

	pool.RecordFailure("ses", assert.AnError)
	assert.True(t, stats["ses"].IsHealthy, "earlier copy is not updated")
	assert.Equal(t, 1, pool.GetHealthStats()["ses"].FailureCount)
}

func TestConnectionPool_CloseAll(t *testing.T) {
	pool := NewConnectionPool(DefaultPoolConfig(), nil)
	pool.GetHTTPClient("ses")
	pool.GetHTTPClient("sns")

	pool.CloseAllConnections()
	assert.Equal(t, 0, pool.Stats()["http_clients"])
}

func TestConnectionPool_ConcurrentAccess(t *testing.T) {
	pool := NewConnectionPool(DefaultPoolConfig(), nil)

	done := make(chan bool)
	for i := 0; i < 10; i++ {
		go func() {
			pool.GetHTTPClient("ses")
			pool.RecordSuccess("ses")
			pool.GetHealthStats()
			done <- true
		}()
	}

	for i := 0; i < 10; i++ {
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Fatal("Timeout waiting for goroutines")
		}
	}

	assert.Equal(t, 1, pool.Stats()["http_clients"])
}
