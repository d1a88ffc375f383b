package telemetry

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/freekieb7/kiln/test"
)

func TestMetricsAreScraped(t *testing.T) {
	ctx := context.Background()

	p, err := Setup(ctx, Options{ServiceName: "kiln-test"})
	test.NoError(t, err)
	defer p.Shutdown(ctx)

	test.True(t, p.Logger == nil, "log export must stay off without an endpoint")

	m, err := NewMetrics(p.Meter.Meter(ScopeName))
	test.NoError(t, err)

	m.ConnectionAccepted(ctx)
	m.WorkerStarted(ctx)
	m.Response(ctx, 200, 42, 15*time.Millisecond)
	m.WorkerFinished(ctx)
	m.AuthFailure(ctx)

	rec := httptest.NewRecorder()
	MetricsHandler(p).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	test.Equal(t, http.StatusOK, rec.Code)
	body, _ := io.ReadAll(rec.Body)
	for _, name := range []string{"kiln_connections_accepted_total", "kiln_auth_failures_total"} {
		test.True(t, strings.Contains(string(body), name), "missing "+name)
	}
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics

	m.ConnectionAccepted(context.Background())
	m.Response(context.Background(), 404, 0, time.Second)
}

func TestServeMetricsStops(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	p, err := Setup(context.Background(), Options{})
	test.NoError(t, err)
	defer p.Shutdown(context.Background())

	done := make(chan error, 1)
	go func() {
		done <- ServeMetrics(ctx, "127.0.0.1:0", p)
	}()

	cancel()
	select {
	case err := <-done:
		test.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("metrics server did not stop")
	}
}
