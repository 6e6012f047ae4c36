// Package health reports whether the forwarder, the beacon and the remote
// server are in a usable state. Reports are served as JSON next to the
// metrics endpoint.
package health

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"grimm.is/lanbridge/internal/clock"
	"grimm.is/lanbridge/internal/services"
)

// Status represents the health status of a component.
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
)

// DefaultTTL is how long a report is reused before checks run again.
const DefaultTTL = 5 * time.Second

// Check represents a single health check.
type Check struct {
	Name        string        `json:"name"`
	Status      Status        `json:"status"`
	Message     string        `json:"message,omitempty"`
	LastChecked time.Time     `json:"last_checked"`
	Duration    time.Duration `json:"duration_ms"`
}

// Report represents the overall health report.
type Report struct {
	Status    Status           `json:"status"`
	Checks    map[string]Check `json:"checks"`
	Timestamp time.Time        `json:"timestamp"`
}

// CheckFunc is a function that performs a health check.
type CheckFunc func(ctx context.Context) Check

// Checker runs registered checks and caches the combined report.
type Checker struct {
	mu     sync.RWMutex
	checks map[string]CheckFunc
	cache  *Report
	ttl    time.Duration
	clock  clock.Clock
}

// NewChecker creates a checker with no checks registered. A non-positive
// ttl selects DefaultTTL.
func NewChecker(ttl time.Duration) *Checker {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Checker{
		checks: make(map[string]CheckFunc),
		ttl:    ttl,
		clock:  clock.Real(),
	}
}

// Register adds a health check, replacing any check with the same name.
func (c *Checker) Register(name string, fn CheckFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.checks[name] = fn
	c.cache = nil
}

// Check runs all health checks and returns a report.
func (c *Checker) Check(ctx context.Context) Report {
	c.mu.RLock()
	if c.cache != nil && c.clock.Since(c.cache.Timestamp) < c.ttl {
		report := *c.cache
		c.mu.RUnlock()
		return report
	}
	checkFuncs := make(map[string]CheckFunc, len(c.checks))
	for name, fn := range c.checks {
		checkFuncs[name] = fn
	}
	c.mu.RUnlock()

	checks := make(map[string]Check, len(checkFuncs))
	overallStatus := StatusHealthy

	var wg sync.WaitGroup
	var mu sync.Mutex
	for name, fn := range checkFuncs {
		wg.Add(1)
		go func(name string, fn CheckFunc) {
			defer wg.Done()
			start := c.clock.Now()
			check := fn(ctx)
			check.Name = name
			check.LastChecked = start
			check.Duration = c.clock.Since(start)

			mu.Lock()
			checks[name] = check
			if check.Status == StatusUnhealthy {
				overallStatus = StatusUnhealthy
			} else if check.Status == StatusDegraded && overallStatus != StatusUnhealthy {
				overallStatus = StatusDegraded
			}
			mu.Unlock()
		}(name, fn)
	}
	wg.Wait()

	report := Report{
		Status:    overallStatus,
		Checks:    checks,
		Timestamp: c.clock.Now(),
	}

	c.mu.Lock()
	c.cache = &report
	c.mu.Unlock()

	return report
}

// statusCode maps a report onto an HTTP status. Only unhealthy fails a probe.
func statusCode(r Report) int {
	if r.Status == StatusUnhealthy {
		return http.StatusServiceUnavailable
	}
	return http.StatusOK
}

func (c *Checker) checkWithin(r *http.Request, d time.Duration) Report {
	ctx, cancel := context.WithTimeout(r.Context(), d)
	defer cancel()
	return c.Check(ctx)
}

// Handler serves the full report as JSON.
func (c *Checker) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		report := c.checkWithin(r, 10*time.Second)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(statusCode(report))
		_ = json.NewEncoder(w).Encode(report)
	}
}

// ReadinessHandler answers READY unless the report is unhealthy.
func (c *Checker) ReadinessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		report := c.checkWithin(r, 5*time.Second)
		code := statusCode(report)
		w.WriteHeader(code)
		if code != http.StatusOK {
			_, _ = w.Write([]byte("NOT READY"))
			return
		}
		_, _ = w.Write([]byte("READY"))
	}
}

// LivenessHandler answers OK while the process can serve HTTP at all.
func LivenessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	}
}

// Running reports failing when running returns false. describe supplies the
// message in both cases.
func Running(running func() bool, describe func() string, failing Status) CheckFunc {
	return func(ctx context.Context) Check {
		check := Check{Status: StatusHealthy, Message: describe()}
		if !running() {
			check.Status = failing
		}
		return check
	}
}

// ServiceCheck reports failing while svc is not running. A running service
// whose last operation failed is degraded.
func ServiceCheck(svc services.Service, failing Status) CheckFunc {
	return func(ctx context.Context) Check {
		st := svc.Status()
		switch {
		case !st.Running:
			msg := st.Name + " not running"
			if st.Error != "" {
				msg += ": " + st.Error
			}
			return Check{Status: failing, Message: msg}
		case st.Error != "":
			return Check{Status: StatusDegraded, Message: st.Error}
		default:
			return Check{Status: StatusHealthy, Message: st.Name + " running"}
		}
	}
}

// TCPReachable dials addr and reports degraded when the dial fails. The
// forwarder keeps accepting clients while the remote is down, so an
// unreachable remote never makes the report unhealthy.
func TCPReachable(addr string, timeout time.Duration) CheckFunc {
	return func(ctx context.Context) Check {
		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		var d net.Dialer
		conn, err := d.DialContext(ctx, "tcp", addr)
		if err != nil {
			return Check{Status: StatusDegraded, Message: fmt.Sprintf("remote %s unreachable: %v", addr, err)}
		}
		conn.Close()
		return Check{Status: StatusHealthy, Message: "remote " + addr + " reachable"}
	}
}
