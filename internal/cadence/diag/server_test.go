package diag

import (
	"context"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startServer(t *testing.T, reg *prometheus.Registry, withPprof bool) string {
	t.Helper()

	server := New("127.0.0.1:0", reg, withPprof)
	require.NoError(t, server.Start(context.Background()), "Start() error")
	t.Cleanup(func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		assert.NoError(t, server.Shutdown(shutdownCtx), "Shutdown() error")
	})

	return "http://" + server.Addr()
}

func get(t *testing.T, url string) (int, string) {
	t.Helper()

	resp, err := http.Get(url)
	require.NoError(t, err, "GET %s error", url)
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(body)
}

func TestServer_Metrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	counter := prometheus.NewCounter(prometheus.CounterOpts{Name: "cadence_test_total", Help: "test"})
	reg.MustRegister(counter)
	counter.Add(3)

	baseURL := startServer(t, reg, false)

	status, body := get(t, baseURL+"/metrics")
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, body, "cadence_test_total 3")

	status, _ = get(t, baseURL+"/debug/pprof/")
	assert.Equal(t, http.StatusNotFound, status, "pprof is opt-in")
}

func TestServer_PprofEndpoints(t *testing.T) {
	baseURL := startServer(t, prometheus.NewRegistry(), true)

	tests := []struct {
		name     string
		endpoint string
	}{
		{name: "index", endpoint: "/debug/pprof/"},
		{name: "cmdline", endpoint: "/debug/pprof/cmdline"},
		{name: "symbol", endpoint: "/debug/pprof/symbol"},
		{name: "profile", endpoint: "/debug/pprof/profile?seconds=1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, _ := get(t, baseURL+tt.endpoint)
			assert.Equal(t, http.StatusOK, status)
		})
	}
}

func TestServer_StartFailsOnBadAddr(t *testing.T) {
	server := New("256.0.0.1:bad", nil, false)
	require.Error(t, server.Start(context.Background()))
	assert.Empty(t, server.Addr())
}
