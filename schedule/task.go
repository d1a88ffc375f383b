// Package schedule runs recurring housekeeping jobs next to the server.
package schedule

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

const DefaultTick = time.Second

var (
	ErrNoInterval = errors.New("schedule: job interval must be greater than 0")
	ErrNoTasks    = errors.New("schedule: job must have at least one task")
)

// Task is one unit of work. The context is cancelled when the job timeout
// expires or the scheduler stops.
type Task func(ctx context.Context) error

type Scheduler struct {
	logger *slog.Logger
	tick   time.Duration

	mu   sync.RWMutex
	jobs []*Job
	wg   sync.WaitGroup
}

type Option func(*Scheduler)

// WithTick sets how often due jobs are looked for.
func WithTick(tick time.Duration) Option {
	return func(s *Scheduler) {
		if tick > 0 {
			s.tick = tick
		}
	}
}

func NewScheduler(logger *slog.Logger, opts ...Option) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Scheduler{
		logger: logger,
		tick:   DefaultTick,
		jobs:   make([]*Job, 0),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (scheduler *Scheduler) AddJob(job *Job) error {
	if err := job.validate(); err != nil {
		return fmt.Errorf("%w: %s", err, job.name)
	}

	scheduler.mu.Lock()
	defer scheduler.mu.Unlock()

	scheduler.jobs = append(scheduler.jobs, job)
	return nil
}

type Job struct {
	tasks      []Task
	interval   time.Duration
	name       string
	maxRetries int
	timeout    time.Duration

	mu                sync.RWMutex
	nextExecuteAt     time.Time
	previousExecuteAt time.Time
	runs              int
	running           atomic.Bool
}

func NewJob(name string) *Job {
	return &Job{
		name:  name,
		tasks: make([]Task, 0),
	}
}

func (job *Job) WithTasks(tasks ...Task) *Job {
	job.tasks = tasks
	return job
}

func (job *Job) WithInterval(interval time.Duration) *Job {
	job.interval = interval
	return job
}

func (job *Job) WithExecuteAt(executeAt time.Time) *Job {
	job.nextExecuteAt = executeAt
	return job
}

func (job *Job) WithTimeout(timeout time.Duration) *Job {
	job.timeout = timeout
	return job
}

func (job *Job) WithRetries(maxRetries int) *Job {
	job.maxRetries = maxRetries
	return job
}

func (job *Job) Name() string {
	return job.name
}

// Runs returns how many times the job completed.
func (job *Job) Runs() int {
	job.mu.RLock()
	defer job.mu.RUnlock()
	return job.runs
}

func (job *Job) validate() error {
	if job.interval <= 0 {
		return ErrNoInterval
	}
	if len(job.tasks) == 0 {
		return ErrNoTasks
	}

	job.mu.Lock()
	if job.nextExecuteAt.IsZero() {
		job.nextExecuteAt = time.Now().Add(job.interval)
	}
	job.mu.Unlock()
	return nil
}

// Run checks for due jobs every tick until ctx is done, then waits for jobs
// still executing. A job is never executed twice at the same time.
func (scheduler *Scheduler) Run(ctx context.Context) error {
	ticker := time.NewTicker(scheduler.tick)
	defer ticker.Stop()

	for {
		select {
		case now := <-ticker.C:
			scheduler.mu.RLock()
			jobs := make([]*Job, len(scheduler.jobs))
			copy(jobs, scheduler.jobs)
			scheduler.mu.RUnlock()

			for _, job := range jobs {
				if !job.shouldExecute(now) || !job.running.CompareAndSwap(false, true) {
					continue
				}

				scheduler.wg.Add(1)
				go func() {
					defer scheduler.wg.Done()
					defer job.running.Store(false)

					scheduler.executeJob(ctx, job, now)
				}()
			}
		case <-ctx.Done():
			scheduler.wg.Wait()
			return ctx.Err()
		}
	}
}

func (job *Job) shouldExecute(now time.Time) bool {
	job.mu.RLock()
	defer job.mu.RUnlock()
	return !job.nextExecuteAt.After(now)
}

func (job *Job) updateNextExecution(now time.Time) {
	job.mu.Lock()
	defer job.mu.Unlock()
	job.previousExecuteAt = now
	job.nextExecuteAt = now.Add(job.interval)
	job.runs++
}

func (scheduler *Scheduler) executeJob(ctx context.Context, job *Job, now time.Time) {
	defer job.updateNextExecution(now)

	for i, task := range job.tasks {
		var err error
		for attempt := 0; attempt <= job.maxRetries; attempt++ {
			if err = scheduler.executeTask(ctx, task, job.timeout); err == nil || ctx.Err() != nil {
				break
			}
		}
		if err != nil {
			scheduler.logger.Warn("task failed", "job", job.name, "task", i, "error", err)
		}
	}
}

func (scheduler *Scheduler) executeTask(ctx context.Context, task Task, timeout time.Duration) (err error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("schedule: task panic: %v", r)
		}
	}()

	return task(ctx)
}
