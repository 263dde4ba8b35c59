// Package health provides health check infrastructure for gn-proxy.
//
// It supports liveness and readiness probing with concurrent check
// execution and a version-stamped report. Built-in checkers cover the
// resource store database and the query backend; custom checks implement
// the Checker interface.
package health

import (
	"context"
	"sync"
	"time"
)

// Status represents the health status of a component.
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusUnhealthy Status = "unhealthy"
)

// Check represents the result of a single health check.
type Check struct {
	Name      string    `json:"name"`
	Status    Status    `json:"status"`
	Message   string    `json:"message,omitempty"`
	LatencyMs int64     `json:"latency_ms"`
	Timestamp time.Time `json:"timestamp"`
}

// Report represents the overall health report.
type Report struct {
	Status    Status    `json:"status"`
	Version   string    `json:"version"`
	Timestamp time.Time `json:"timestamp"`
	Checks    []Check   `json:"checks"`
}

// Checker is the interface for health check implementations.
type Checker interface {
	Name() string
	Check(ctx context.Context) *Check
}

// Manager runs registered health checks concurrently.
type Manager struct {
	version  string
	timeout  time.Duration
	mu       sync.RWMutex
	checkers []Checker
}

// ManagerOption configures the Manager.
type ManagerOption func(*Manager)

// WithTimeout bounds each check run.
func WithTimeout(t time.Duration) ManagerOption {
	return func(m *Manager) {
		m.timeout = t
	}
}

// NewManager creates a health manager stamped with the given version.
func NewManager(version string, opts ...ManagerOption) *Manager {
	m := &Manager{
		version: version,
		timeout: 5 * time.Second,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Register adds a checker.
func (m *Manager) Register(c Checker) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.checkers = append(m.checkers, c)
}

// Run executes all checks concurrently and aggregates the report.
func (m *Manager) Run(ctx context.Context) *Report {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	m.mu.RLock()
	checkers := make([]Checker, len(m.checkers))
	copy(checkers, m.checkers)
	m.mu.RUnlock()

	checks := make([]Check, len(checkers))
	var wg sync.WaitGroup
	for i, c := range checkers {
		wg.Add(1)
		go func(i int, c Checker) {
			defer wg.Done()
			start := time.Now()
			result := c.Check(ctx)
			result.LatencyMs = time.Since(start).Milliseconds()
			result.Timestamp = time.Now()
			checks[i] = *result
		}(i, c)
	}
	wg.Wait()

	report := &Report{
		Status:    StatusHealthy,
		Version:   m.version,
		Timestamp: time.Now(),
		Checks:    checks,
	}
	for _, c := range checks {
		if c.Status != StatusHealthy {
			report.Status = StatusUnhealthy
			break
		}
	}
	return report
}

// PingChecker wraps a ping function as a health check.
type PingChecker struct {
	name string
	ping func(ctx context.Context) error
}

// NewPingChecker creates a checker around a ping function, e.g. a database
// PingContext.
func NewPingChecker(name string, ping func(ctx context.Context) error) *PingChecker {
	return &PingChecker{name: name, ping: ping}
}

func (c *PingChecker) Name() string { return c.name }

func (c *PingChecker) Check(ctx context.Context) *Check {
	if err := c.ping(ctx); err != nil {
		return &Check{Name: c.name, Status: StatusUnhealthy, Message: err.Error()}
	}
	return &Check{Name: c.name, Status: StatusHealthy}
}
