package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics are the server instruments. A nil *Metrics records nothing.
type Metrics struct {
	accepted     metric.Int64Counter
	active       metric.Int64UpDownCounter
	responses    metric.Int64Counter
	bytes        metric.Int64Counter
	duration     metric.Float64Histogram
	authFailures metric.Int64Counter
}

func NewMetrics(meter metric.Meter) (*Metrics, error) {
	var (
		m   Metrics
		err error
	)

	if m.accepted, err = meter.Int64Counter("kiln.connections.accepted",
		metric.WithDescription("Connections handed to a worker"),
		metric.WithUnit("{connection}")); err != nil {
		return nil, err
	}
	if m.active, err = meter.Int64UpDownCounter("kiln.workers.active",
		metric.WithDescription("Workers currently serving a connection"),
		metric.WithUnit("{worker}")); err != nil {
		return nil, err
	}
	if m.responses, err = meter.Int64Counter("kiln.responses",
		metric.WithDescription("Responses by status code"),
		metric.WithUnit("{response}")); err != nil {
		return nil, err
	}
	if m.bytes, err = meter.Int64Counter("kiln.response.bytes",
		metric.WithDescription("Body bytes written"),
		metric.WithUnit("By")); err != nil {
		return nil, err
	}
	if m.duration, err = meter.Float64Histogram("kiln.request.duration",
		metric.WithDescription("Time from accept to shutdown"),
		metric.WithUnit("s")); err != nil {
		return nil, err
	}
	if m.authFailures, err = meter.Int64Counter("kiln.auth.failures",
		metric.WithDescription("Requests answered with 401"),
		metric.WithUnit("{request}")); err != nil {
		return nil, err
	}

	return &m, nil
}

func (m *Metrics) ConnectionAccepted(ctx context.Context) {
	if m == nil {
		return
	}
	m.accepted.Add(ctx, 1)
}

func (m *Metrics) WorkerStarted(ctx context.Context) {
	if m == nil {
		return
	}
	m.active.Add(ctx, 1)
}

func (m *Metrics) WorkerFinished(ctx context.Context) {
	if m == nil {
		return
	}
	m.active.Add(ctx, -1)
}

// Response records one finished connection. A zero status means the
// connection was dropped without a response.
func (m *Metrics) Response(ctx context.Context, status uint16, sent int64, elapsed time.Duration) {
	if m == nil {
		return
	}

	attrs := metric.WithAttributes(attribute.Int("http.status_code", int(status)))
	m.responses.Add(ctx, 1, attrs)
	m.bytes.Add(ctx, sent, attrs)
	m.duration.Record(ctx, elapsed.Seconds(), attrs)
}

func (m *Metrics) AuthFailure(ctx context.Context) {
	if m == nil {
		return
	}
	m.authFailures.Add(ctx, 1)
}
