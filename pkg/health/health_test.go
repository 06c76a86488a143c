package health

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadyEndpoint_ManualGate(t *testing.T) {
	s := New()

	rec := httptest.NewRecorder()
	s.ReadyEndpoint(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	s.SetReady(true)
	rec = httptest.NewRecorder()
	s.ReadyEndpoint(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp statusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
}

func TestFailureThreshold(t *testing.T) {
	c := newCheck("db", time.Second, nil)
	probeErr := errors.New("connection refused")

	c.observe(probeErr)
	c.observe(probeErr)
	assert.True(t, c.healthy, "two consecutive failures stay below the threshold")

	c.observe(probeErr)
	assert.False(t, c.healthy)

	c.observe(nil)
	assert.True(t, c.healthy, "one success recovers")
	assert.Equal(t, 0, c.consecutiveFails)
}

func TestFailureCounterResetsOnSuccess(t *testing.T) {
	c := newCheck("db", time.Second, nil)
	probeErr := errors.New("timeout")

	c.observe(probeErr)
	c.observe(probeErr)
	c.observe(nil)
	c.observe(probeErr)
	c.observe(probeErr)
	assert.True(t, c.healthy, "the success in between resets the failure streak")
}

func TestLiveEndpoint_ReportsFailingCheck(t *testing.T) {
	s := New()
	s.AddLivenessCheck("always-down", time.Second, func(context.Context) error {
		return errors.New("broken")
	})

	// Drive the check past the failure threshold without the background loop.
	for i := 0; i < failureThreshold; i++ {
		s.runAll(context.Background())
	}

	rec := httptest.NewRecorder()
	s.LiveEndpoint(rec, httptest.NewRequest(http.MethodGet, "/livez", nil))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var resp statusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "unhealthy", resp.Status)
	assert.Equal(t, "broken", resp.Checks["always-down"])
}

func TestIsReady_FailingReadinessCheck(t *testing.T) {
	s := New()
	s.SetReady(true)
	s.AddReadinessCheck("store", time.Second, func(context.Context) error {
		return errors.New("down")
	})
	require.True(t, s.IsReady(), "check starts healthy")

	for i := 0; i < failureThreshold; i++ {
		s.runAll(context.Background())
	}
	assert.False(t, s.IsReady())
}

func TestStartStop(t *testing.T) {
	s := New()
	probes := make(chan struct{}, 16)
	s.AddLivenessCheck("tick", time.Second, func(context.Context) error {
		select {
		case probes <- struct{}{}:
		default:
		}
		return nil
	})

	s.Start(context.Background(), 10*time.Millisecond)
	defer s.Stop()

	select {
	case <-probes:
	case <-time.After(time.Second):
		t.Fatal("check was never run")
	}
}

func TestGoroutineCountCheck(t *testing.T) {
	assert.NoError(t, GoroutineCountCheck(1_000_000)(context.Background()))
	assert.Error(t, GoroutineCountCheck(0)(context.Background()))
}
