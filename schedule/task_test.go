package schedule

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/freekieb7/kiln/logging"
	"github.com/freekieb7/kiln/test"
)

func TestAddJobValidates(t *testing.T) {
	s := NewScheduler(logging.Discard())

	err := s.AddJob(NewJob("empty").WithInterval(time.Second))
	test.ErrorIs(t, err, ErrNoTasks)

	err = s.AddJob(NewJob("no interval").WithTasks(func(context.Context) error { return nil }))
	test.ErrorIs(t, err, ErrNoInterval)
}

func TestRunExecutesDueJobs(t *testing.T) {
	s := NewScheduler(logging.Discard(), WithTick(2*time.Millisecond))

	var calls atomic.Int32
	job := NewJob("count").
		WithInterval(5 * time.Millisecond).
		WithExecuteAt(time.Now()).
		WithTasks(func(context.Context) error {
			calls.Add(1)
			return nil
		})
	test.NoError(t, s.AddJob(job))

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	err := s.Run(ctx)
	test.ErrorIs(t, err, context.DeadlineExceeded)
	test.True(t, calls.Load() >= 2, "job should run repeatedly")
	test.Equal(t, int(calls.Load()), job.Runs())
}

func TestRetriesAndPanics(t *testing.T) {
	s := NewScheduler(logging.Discard())

	var attempts atomic.Int32
	job := NewJob("flaky").WithInterval(time.Hour).WithRetries(2).WithTasks(
		func(context.Context) error {
			attempts.Add(1)
			return errors.New("not yet")
		},
		func(context.Context) error {
			panic("boom")
		},
	)

	s.executeJob(context.Background(), job, time.Now())

	test.Equal(t, int32(3), attempts.Load())
	test.Equal(t, 1, job.Runs())
}

func TestTaskTimeout(t *testing.T) {
	s := NewScheduler(logging.Discard())

	err := s.executeTask(context.Background(), func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}, 5*time.Millisecond)

	test.ErrorIs(t, err, context.DeadlineExceeded)
}
