package http

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/freekieb7/kiln/telemetry"
	"github.com/freekieb7/kiln/transport"
)

const DefaultThrottle = 10 * time.Millisecond

var ErrListenerClosed = errors.New("http: listening connection is no longer valid")

// Server accepts connections and runs each on its own worker, never more
// than Workers at once.
type Server struct {
	Workers    int
	BufferSize int
	// Throttle is how long the accept loop waits when every slot is busy.
	Throttle time.Duration
	Handler  Handler
	Logger   *slog.Logger
	Metrics  *telemetry.Metrics

	pool atomic.Pointer[WorkerPool]
}

func NewServer(handler Handler, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	return &Server{
		Workers:  WorkerPoolSize,
		Throttle: DefaultThrottle,
		Handler:  handler,
		Logger:   logger,
	}
}

// Serve runs the accept loop on ln until ctx is cancelled or ln fails, then
// waits for running workers. Finished workers hand their slot back through a
// completion channel; the loop reclaims slots from it before every accept.
func (s *Server) Serve(ctx context.Context, ln *transport.Conn) error {
	pool := NewWorkerPool(s.Workers, s.BufferSize)
	s.pool.Store(pool)

	throttle := s.Throttle
	if throttle <= 0 {
		throttle = DefaultThrottle
	}

	done := make(chan *Slot, len(pool.Slots))
	reclaim := func(slot *Slot) {
		slot.Ctx.Release()
		if err := pool.Ready.Enqueue(slot); err != nil {
			s.Logger.Error("reclaiming slot failed", "slot", slot.ID, "error", err)
		}
	}

	var g errgroup.Group

	s.Logger.Info("accepting connections", "port", ln.LocalPort(), "workers", len(pool.Slots), "flags", ln.Flags().String())

	for ctx.Err() == nil && ln.Valid() {
	drain:
		for {
			select {
			case slot := <-done:
				reclaim(slot)
			default:
				break drain
			}
		}

		if pool.Free() == 0 {
			timer := time.NewTimer(throttle)
			select {
			case <-ctx.Done():
			case slot := <-done:
				reclaim(slot)
			case <-timer.C:
			}
			timer.Stop()
			continue
		}

		conn, err := ln.Accept()
		if err != nil {
			if !errors.Is(err, transport.ErrWouldBlock) && ln.Valid() {
				s.Logger.Debug("accept failed", "error", err)
			}
			continue
		}

		slot, err := pool.Ready.Dequeue()
		if err != nil {
			// Only this loop takes slots, so a free slot cannot disappear.
			s.Logger.Error("no slot for accepted connection", "error", err)
			conn.Shutdown()
			continue
		}

		s.Metrics.ConnectionAccepted(ctx)
		slot.running.Store(true)
		slot.Ctx.Reset(ctx, slot.ID, conn, slot.Buffer)

		g.Go(func() error {
			defer func() {
				slot.running.Store(false)
				done <- slot
			}()

			s.Handler(&slot.Ctx)
			return nil
		})
	}

	err := g.Wait()
	close(done)
	for slot := range done {
		reclaim(slot)
	}

	s.Logger.Info("stopped accepting connections")

	if err != nil {
		return err
	}
	if ctx.Err() == nil {
		return ErrListenerClosed
	}
	return nil
}

// Active returns the number of slots currently owned by workers.
func (s *Server) Active() int {
	pool := s.pool.Load()
	if pool == nil {
		return 0
	}

	active := 0
	for i := range pool.Slots {
		if pool.Slots[i].Running() {
			active++
		}
	}
	return active
}

// Capacity returns the pool size of the running loop.
func (s *Server) Capacity() int {
	pool := s.pool.Load()
	if pool == nil {
		return 0
	}
	return len(pool.Slots)
}
