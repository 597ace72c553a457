package health

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Status represents health check status
type Status int

const (
	StatusUnknown Status = iota
	StatusHealthy
	StatusUnhealthy
)

func (s Status) String() string {
	switch s {
	case StatusHealthy:
		return "healthy"
	case StatusUnhealthy:
		return "unhealthy"
	default:
		return "unknown"
	}
}

// CheckResult is the outcome of one dependency probe.
type CheckResult struct {
	Name         string
	Status       Status
	Latency      time.Duration
	LastCheck    time.Time
	LastError    error
	CheckCount   int
	FailureCount int
}

// Checker probes a single dependency.
type Checker interface {
	Check(ctx context.Context) error
}

// CheckFunc adapts a ping function such as (*sql.DB).PingContext.
type CheckFunc func(ctx context.Context) error

func (f CheckFunc) Check(ctx context.Context) error { return f(ctx) }

// Monitor runs registered checkers on demand and on an interval, keeping the
// latest result per dependency.
type Monitor struct {
	mu       sync.RWMutex
	checkers map[string]Checker
	results  map[string]*CheckResult
	interval time.Duration
	timeout  time.Duration
	logger   *zap.Logger
	now      func() time.Time
}

func NewMonitor(interval, timeout time.Duration, logger *zap.Logger) *Monitor {
	if logger == nil {
		logger = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Monitor{
		checkers: make(map[string]Checker),
		results:  make(map[string]*CheckResult),
		interval: interval,
		timeout:  timeout,
		logger:   logger,
		now:      time.Now,
	}
}

func (m *Monitor) Register(name string, checker Checker) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.checkers[name] = checker
	m.logger.Info("Registered health checker", zap.String("name", name))
}

// Run checks every interval until ctx is done. It returns nil on shutdown.
func (m *Monitor) Run(ctx context.Context) error {
	if m.interval <= 0 {
		<-ctx.Done()
		return nil
	}

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	m.CheckAll(ctx)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			m.CheckAll(ctx)
		}
	}
}

// CheckAll probes every dependency now and returns the results sorted by name.
func (m *Monitor) CheckAll(ctx context.Context) []CheckResult {
	m.mu.RLock()
	checkers := make(map[string]Checker, len(m.checkers))
	for name, checker := range m.checkers {
		checkers[name] = checker
	}
	m.mu.RUnlock()

	out := make([]CheckResult, 0, len(checkers))
	for name, checker := range checkers {
		out = append(out, m.check(ctx, name, checker))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (m *Monitor) check(ctx context.Context, name string, checker Checker) CheckResult {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	start := m.now()
	err := checker.Check(ctx)
	result := CheckResult{
		Name:      name,
		Status:    StatusHealthy,
		Latency:   m.now().Sub(start),
		LastCheck: start,
		LastError: err,
	}
	if err != nil {
		result.Status = StatusUnhealthy
	}

	m.mu.Lock()
	if existing, ok := m.results[name]; ok {
		result.CheckCount = existing.CheckCount + 1
		result.FailureCount = existing.FailureCount
	} else {
		result.CheckCount = 1
	}
	if err != nil {
		result.FailureCount++
	}
	stored := result
	m.results[name] = &stored
	m.mu.Unlock()

	if err != nil {
		m.logger.Warn("Health check failed",
			zap.String("name", name),
			zap.Duration("latency", result.Latency),
			zap.Error(err),
		)
	}
	return result
}

// IsHealthy reports the last known status; untracked names count as healthy.
func (m *Monitor) IsHealthy(name string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if result, ok := m.results[name]; ok {
		return result.Status == StatusHealthy
	}
	return true
}

func (m *Monitor) GetResult(name string) (*CheckResult, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result, ok := m.results[name]
	if !ok {
		return nil, false
	}
	resultCopy := *result
	return &resultCopy, true
}
