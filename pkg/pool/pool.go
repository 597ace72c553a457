package pool

import (
	"crypto/tls"
	"net"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
)

// PoolConfig defines outbound connection settings shared by provider clients.
type PoolConfig struct {
	ConnectionTimeout   time.Duration `json:"connection_timeout"`
	RequestTimeout      time.Duration `json:"request_timeout"`
	IdleTimeout         time.Duration `json:"idle_timeout"`
	MaxIdleConns        int           `json:"max_idle_conns"`
	MaxIdleConnsPerHost int           `json:"max_idle_conns_per_host"`
}

// DefaultPoolConfig returns sensible defaults
func DefaultPoolConfig() PoolConfig {
	return PoolConfig{
		ConnectionTimeout:   5 * time.Second,
		RequestTimeout:      15 * time.Second,
		IdleTimeout:         90 * time.Second,
		MaxIdleConns:        50,
		MaxIdleConnsPerHost: 10,
	}
}

// ProviderHealth tracks outcomes of calls made through a named client.
type ProviderHealth struct {
	Name         string
	IsHealthy    bool
	LastCheck    time.Time
	LastError    error
	FailureCount int
	SuccessCount int
}

// ConnectionPool hands out one pooled HTTP client per provider name.
type ConnectionPool struct {
	mu          sync.RWMutex
	httpClients map[string]*http.Client
	healthStats map[string]*ProviderHealth
	config      PoolConfig
	logger      *zap.Logger
}

// NewConnectionPool creates a new connection pool
func NewConnectionPool(config PoolConfig, logger *zap.Logger) *ConnectionPool {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &ConnectionPool{
		httpClients: make(map[string]*http.Client),
		healthStats: make(map[string]*ProviderHealth),
		config:      config,
		logger:      logger,
	}
}

// GetHTTPClient returns the client registered under name, creating it on first use.
func (p *ConnectionPool) GetHTTPClient(name string) *http.Client {
	p.mu.RLock()
	client, exists := p.httpClients[name]
	p.mu.RUnlock()

	if exists {
		return client
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if client, exists = p.httpClients[name]; exists {
		return client
	}

	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   p.config.ConnectionTimeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:          p.config.MaxIdleConns,
		MaxIdleConnsPerHost:   p.config.MaxIdleConnsPerHost,
		IdleConnTimeout:       p.config.IdleTimeout,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		ForceAttemptHTTP2:     true,
		TLSClientConfig: &tls.Config{
			MinVersion: tls.VersionTLS12,
		},
	}

	client = &http.Client{
		Transport: &trackingTransport{next: transport, pool: p, name: name},
		Timeout:   p.config.RequestTimeout,
	}

	p.httpClients[name] = client
	p.healthStats[name] = &ProviderHealth{
		Name:      name,
		IsHealthy: true,
		LastCheck: time.Now(),
	}

	p.logger.Info("Created new HTTP client", zap.String("provider", name))

	return client
}

// RecordSuccess records a successful call for the named provider.
func (p *ConnectionPool) RecordSuccess(name string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if health, exists := p.healthStats[name]; exists {
		health.IsHealthy = true
		health.SuccessCount++
		health.LastCheck = time.Now()
		health.LastError = nil
	}
}

// RecordFailure records a failed call for the named provider.
func (p *ConnectionPool) RecordFailure(name string, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if health, exists := p.healthStats[name]; exists {
		health.IsHealthy = false
		health.FailureCount++
		health.LastCheck = time.Now()
		health.LastError = err
	}
}

// GetHealthStats returns a copy of the per-provider stats.
func (p *ConnectionPool) GetHealthStats() map[string]ProviderHealth {
	p.mu.RLock()
	defer p.mu.RUnlock()

	stats := make(map[string]ProviderHealth, len(p.healthStats))
	for name, health := range p.healthStats {
		stats[name] = *health
	}
	return stats
}

// CloseAllConnections drops idle connections and forgets every client.
func (p *ConnectionPool) CloseAllConnections() {
	p.mu.Lock()
	defer p.mu.Unlock()

	for name, client := range p.httpClients {
		client.CloseIdleConnections()
		delete(p.httpClients, name)
	}

	p.logger.Info("Closed all connections")
}

// Stats returns pool statistics
func (p *ConnectionPool) Stats() map[string]int {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return map[string]int{
		"http_clients": len(p.httpClients),
		"health_stats": len(p.healthStats),
	}
}

type trackingTransport struct {
	next *http.Transport
	pool *ConnectionPool
	name string
}

func (t *trackingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := t.next.RoundTrip(req)
	switch {
	case err != nil:
		t.pool.RecordFailure(t.name, err)
	case resp.StatusCode >= http.StatusInternalServerError:
		t.pool.RecordFailure(t.name, &StatusError{Code: resp.StatusCode})
	default:
		t.pool.RecordSuccess(t.name)
	}
	return resp, err
}

func (t *trackingTransport) CloseIdleConnections() {
	t.next.CloseIdleConnections()
}

// StatusError marks a provider response with a 5xx status.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return "provider returned status " + http.StatusText(e.Code)
}
