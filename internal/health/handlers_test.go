package health_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/crossbill/internal/health"
)

func TestLive(t *testing.T) {
	handler := health.Handler{}
	rr := httptest.NewRecorder()
	handler.Live(rr, httptest.NewRequest(http.MethodGet, "/health/live", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, "ok", rr.Body.String())
}

func TestReadySuccess(t *testing.T) {
	handler := health.Handler{
		Probes: map[string]health.Probe{
			"taxrate_upstream": func(context.Context) error { return nil },
		},
		Timeout: 50 * time.Millisecond,
	}
	rr := httptest.NewRecorder()
	handler.Ready(rr, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, "application/json", rr.Header().Get("Content-Type"))

	var status map[string]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &status))
	require.Equal(t, map[string]string{"server": "ok", "taxrate_upstream": "ok"}, status)
}

func TestReadyFailure(t *testing.T) {
	handler := health.Handler{
		Probes: map[string]health.Probe{
			"ok":   func(context.Context) error { return nil },
			"down": func(context.Context) error { return errors.New("circuit open") },
		},
	}
	rr := httptest.NewRecorder()
	handler.Ready(rr, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	require.Equal(t, http.StatusServiceUnavailable, rr.Code)

	var status map[string]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &status))
	require.Equal(t, "circuit open", status["down"])
	require.Equal(t, "ok", status["ok"])
}

func TestReadyProbeTimeout(t *testing.T) {
	handler := health.Handler{
		Probes: map[string]health.Probe{
			"slow": func(ctx context.Context) error {
				<-ctx.Done()
				return ctx.Err()
			},
		},
		Timeout: 10 * time.Millisecond,
	}
	rr := httptest.NewRecorder()
	handler.Ready(rr, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	require.Equal(t, http.StatusServiceUnavailable, rr.Code)
	require.Contains(t, rr.Body.String(), context.DeadlineExceeded.Error())
}
