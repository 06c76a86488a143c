// Package health provides liveness and readiness probe endpoints backed by
// periodically executed checks.
//
// Checks use failure/success thresholds to avoid flapping: a check must
// fail consecutively failureThreshold times before being reported
// unhealthy, and succeed successThreshold times before recovering.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"runtime"
	"sync"
	"time"

	"github.com/go-faster/errors"
)

const (
	failureThreshold = 3
	successThreshold = 1
)

// CheckFunc probes one component. It returns nil when the component is
// healthy.
type CheckFunc func(ctx context.Context) error

// check holds configuration and state for a single registered check.
// State is only touched while holding Service.mu.
type check struct {
	name    string
	timeout time.Duration
	probe   CheckFunc

	healthy          bool
	lastErr          error
	consecutiveFails int
	consecutiveOK    int
}

func (c *check) observe(err error) {
	c.lastErr = err
	if err != nil {
		c.consecutiveOK = 0
		c.consecutiveFails++
		if c.consecutiveFails >= failureThreshold {
			c.healthy = false
		}
		return
	}
	c.consecutiveFails = 0
	c.consecutiveOK++
	if c.consecutiveOK >= successThreshold {
		c.healthy = true
	}
}

// Service manages liveness and readiness checks and serves their state.
type Service struct {
	mu        sync.Mutex
	ready     bool
	liveness  []*check
	readiness []*check
	cancel    context.CancelFunc
}

// New creates a Service. It starts not-ready; call SetReady(true) once
// initialization completes.
func New() *Service {
	return &Service{}
}

// AddLivenessCheck registers a check deciding whether the process is alive.
func (s *Service) AddLivenessCheck(name string, timeout time.Duration, probe CheckFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.liveness = append(s.liveness, newCheck(name, timeout, probe))
}

// AddReadinessCheck registers a check deciding whether the service may
// receive traffic.
func (s *Service) AddReadinessCheck(name string, timeout time.Duration, probe CheckFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.readiness = append(s.readiness, newCheck(name, timeout, probe))
}

func newCheck(name string, timeout time.Duration, probe CheckFunc) *check {
	return &check{
		name:    name,
		timeout: timeout,
		probe:   probe,
		healthy: true, // assume healthy until proven otherwise
	}
}

// Start runs all registered checks at the given interval, on a single
// background goroutine, until Stop is called or ctx is cancelled.
func (s *Service) Start(ctx context.Context, interval time.Duration) {
	ctx, cancel := context.WithCancel(ctx)

	s.mu.Lock()
	s.cancel = cancel
	s.mu.Unlock()

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		s.runAll(ctx)
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.runAll(ctx)
			}
		}
	}()
}

func (s *Service) runAll(ctx context.Context) {
	s.mu.Lock()
	checks := make([]*check, 0, len(s.liveness)+len(s.readiness))
	checks = append(checks, s.liveness...)
	checks = append(checks, s.readiness...)
	s.mu.Unlock()

	for _, c := range checks {
		probeCtx, cancel := context.WithTimeout(ctx, c.timeout)
		err := c.probe(probeCtx)
		cancel()

		s.mu.Lock()
		c.observe(err)
		s.mu.Unlock()
	}
}

// SetReady flips the manual readiness gate. It is set true after startup
// and false at the beginning of graceful shutdown.
func (s *Service) SetReady(ready bool) {
	s.mu.Lock()
	s.ready = ready
	s.mu.Unlock()
}

// IsReady reports whether the manual gate is open and all readiness checks
// pass.
func (s *Service) IsReady() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.ready {
		return false
	}
	for _, c := range s.readiness {
		if !c.healthy {
			return false
		}
	}
	return true
}

// Stop cancels the background check goroutine. Safe to call repeatedly.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}

type statusResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// LiveEndpoint serves /livez: 200 when all liveness checks pass, else 503
// with the failing checks.
func (s *Service) LiveEndpoint(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	failures := collectFailures(s.liveness)
	s.mu.Unlock()

	writeStatus(w, failures)
}

// ReadyEndpoint serves /readyz: 200 when the service is marked ready and
// all readiness checks pass, else 503 with details.
func (s *Service) ReadyEndpoint(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	failures := collectFailures(s.readiness)
	if !s.ready {
		failures["_readiness"] = "service is not ready"
	}
	s.mu.Unlock()

	writeStatus(w, failures)
}

func collectFailures(checks []*check) map[string]string {
	failures := make(map[string]string)
	for _, c := range checks {
		if c.healthy {
			continue
		}
		if c.lastErr != nil {
			failures[c.name] = c.lastErr.Error()
		} else {
			failures[c.name] = "check is unhealthy"
		}
	}
	return failures
}

func writeStatus(w http.ResponseWriter, failures map[string]string) {
	w.Header().Set("Content-Type", "application/json")

	resp := statusResponse{Status: "ok"}
	code := http.StatusOK
	if len(failures) > 0 {
		resp.Status = "unhealthy"
		resp.Checks = failures
		code = http.StatusServiceUnavailable
	}

	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(resp)
}

// GoroutineCountCheck returns a liveness CheckFunc that fails when the
// goroutine count exceeds threshold. Useful for detecting leaks.
func GoroutineCountCheck(threshold int) CheckFunc {
	return func(_ context.Context) error {
		if count := runtime.NumGoroutine(); count > threshold {
			return errors.Errorf("goroutine count %d exceeds threshold %d", count, threshold)
		}
		return nil
	}
}
