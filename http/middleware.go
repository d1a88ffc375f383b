package http

import (
	"fmt"
	"log/slog"
	"runtime/debug"
	"strconv"
	"time"

	"github.com/freekieb7/kiln/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

type Middleware func(next Handler) Handler

// Chain wraps handler so the first middleware runs outermost.
func Chain(handler Handler, middleware ...Middleware) Handler {
	for i := len(middleware) - 1; i >= 0; i-- {
		handler = middleware[i](handler)
	}
	return handler
}

// RecoverMiddleware turns a panic in a worker into a log entry and a closed
// connection. The scheduler keeps running.
func RecoverMiddleware(logger *slog.Logger) Middleware {
	return func(next Handler) Handler {
		return func(ctx *ConnCtx) {
			defer func() {
				if recovered := recover(); recovered != nil {
					logger.Error("worker panic",
						"slot", ctx.SlotID,
						"remote", ctx.Request.RemoteAddr,
						"panic", fmt.Sprint(recovered),
						"stack", string(debug.Stack()),
					)
					if ctx.Conn != nil {
						ctx.Conn.Shutdown()
					}
				}
			}()

			next(ctx)
		}
	}
}

// TracingMiddleware wraps each connection in a span.
func TracingMiddleware(tracer trace.Tracer) Middleware {
	return func(next Handler) Handler {
		return func(ctx *ConnCtx) {
			spanCtx, span := tracer.Start(ctx.Context, "kiln.connection",
				trace.WithSpanKind(trace.SpanKindServer),
				trace.WithAttributes(
					attribute.String("net.peer.ip", ctx.Request.RemoteAddr),
					attribute.Int("net.peer.port", int(ctx.Request.RemotePort)),
					attribute.Int("kiln.slot", ctx.SlotID),
				),
			)
			defer span.End()

			ctx.Context = spanCtx
			next(ctx)

			span.SetAttributes(
				attribute.String("http.method", ctx.Request.Method),
				attribute.String("http.target", ctx.Request.URI),
				attribute.Int("http.status_code", int(ctx.Status)),
				attribute.Int64("kiln.sent", ctx.Sent),
			)
			switch {
			case ctx.Status == 0:
				span.SetStatus(codes.Error, "dropped")
			case ctx.Status >= 500:
				span.SetStatus(codes.Error, strconv.Itoa(int(ctx.Status)))
			}
		}
	}
}

// MetricsMiddleware tracks busy workers and records the outcome of every
// connection.
func MetricsMiddleware(metrics *telemetry.Metrics) Middleware {
	return func(next Handler) Handler {
		return func(ctx *ConnCtx) {
			metrics.WorkerStarted(ctx.Context)
			defer func() {
				metrics.WorkerFinished(ctx.Context)
				metrics.Response(ctx.Context, ctx.Status, ctx.Sent, time.Since(ctx.Started))
			}()

			next(ctx)
		}
	}
}
