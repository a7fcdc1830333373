package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"slices"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func up(context.Context) error   { return nil }
func down(context.Context) error { return errors.New("dial tcp: connection refused") }

func ready(t *testing.T, h *Handler) (int, Response) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ReadinessHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))

	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	var resp Response
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return rec.Code, resp
}

func TestLivenessHandler(t *testing.T) {
	h := NewHandler()
	h.Register("product-api", down)

	rec := httptest.NewRecorder()
	h.LivenessHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/live", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	var resp Response
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, StatusUp, resp.Status)
	assert.Empty(t, resp.Checks, "liveness never runs dependency checks")
}

func TestReadinessHandler(t *testing.T) {
	tests := []struct {
		name     string
		api      Checker
		redis    Checker
		kafka    Checker
		code     int
		status   Status
		failures []string
	}{
		{"all up", up, up, up, http.StatusOK, StatusUp, nil},
		{"product api down", down, up, up, http.StatusServiceUnavailable, StatusDown, []string{"product-api"}},
		{"redis down", up, down, up, http.StatusOK, StatusDegraded, []string{"redis"}},
		{"redis and kafka down", up, down, down, http.StatusOK, StatusDegraded, []string{"redis", "kafka"}},
		{"everything down", down, down, down, http.StatusServiceUnavailable, StatusDown, []string{"product-api", "redis", "kafka"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHandler()
			h.RegisterCritical("product-api", tt.api)
			h.RegisterNonCritical("redis", tt.redis)
			h.RegisterNonCritical("kafka", tt.kafka)

			code, resp := ready(t, h)
			assert.Equal(t, tt.code, code)
			assert.Equal(t, tt.status, resp.Status)
			require.Len(t, resp.Checks, 3)
			assert.True(t, resp.Checks["product-api"].Critical)
			assert.False(t, resp.Checks["redis"].Critical)

			for name, c := range resp.Checks {
				if slices.Contains(tt.failures, name) {
					assert.Equal(t, StatusDown, c.Status, name)
					assert.Contains(t, c.Error, "connection refused")
				} else {
					assert.Equal(t, StatusUp, c.Status, name)
					assert.Empty(t, c.Error)
				}
			}
		})
	}
}

func TestReadinessHandler_NoCheckers(t *testing.T) {
	code, resp := ready(t, NewHandler())
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, StatusUp, resp.Status)
}

func TestRegister_IsCriticalAndReplaces(t *testing.T) {
	h := NewHandler()
	h.RegisterNonCritical("product-api", down)
	h.Register("product-api", up)

	resp := h.Check(context.Background())
	require.Len(t, resp.Checks, 1)
	assert.True(t, resp.Checks["product-api"].Critical)
	assert.Equal(t, StatusUp, resp.Status)
}

func TestCheck_RunsConcurrently(t *testing.T) {
	var running, peak atomic.Int32
	slow := func(context.Context) error {
		n := running.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(30 * time.Millisecond)
		running.Add(-1)
		return nil
	}

	h := NewHandler()
	h.Register("a", slow)
	h.Register("b", slow)
	h.Register("c", slow)

	h.Check(context.Background())
	assert.Equal(t, int32(3), peak.Load())
}

func TestCheck_TimesOut(t *testing.T) {
	h := NewHandler()
	h.timeout = 20 * time.Millisecond
	h.Register("product-api", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})

	resp := h.Check(context.Background())
	assert.Equal(t, StatusDown, resp.Status)
	assert.Contains(t, resp.Checks["product-api"].Error, "deadline exceeded")
}
