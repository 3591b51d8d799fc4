// Package scheduler drives the engine's background units on fixed periods.
// Nothing in the economy package ticks on its own; a Runner owns the timers.
package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

type Job struct {
	Name  string
	Every time.Duration
	Run   func(ctx context.Context) error
}

type Runner struct {
	log  *slog.Logger
	jobs []Job

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func New(logger *slog.Logger, jobs ...Job) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{log: logger, jobs: jobs}
}

// Start launches one ticker loop per job and returns immediately. Jobs stop
// when ctx is done or Stop is called. A job never overlaps with itself; a
// tick that fires while the previous run is still going is dropped.
func (r *Runner) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cancel != nil {
		return errors.New("scheduler already started")
	}
	for _, j := range r.jobs {
		if j.Every <= 0 || j.Run == nil {
			return errors.New("scheduler: job " + j.Name + " needs a positive period and a run func")
		}
	}
	ctx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	for _, j := range r.jobs {
		r.wg.Add(1)
		go r.loop(ctx, j)
	}
	r.log.Info("scheduler started", "jobs", len(r.jobs))
	return nil
}

// Stop cancels every loop and waits for in-flight runs to return.
func (r *Runner) Stop() {
	r.mu.Lock()
	cancel := r.cancel
	r.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	r.wg.Wait()
}

// Wait blocks until every loop has exited.
func (r *Runner) Wait() {
	r.wg.Wait()
}

// RunOnce runs every job once, in order, and joins their errors.
func (r *Runner) RunOnce(ctx context.Context) error {
	var errs []error
	for _, j := range r.jobs {
		if err := r.run(ctx, j); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (r *Runner) loop(ctx context.Context, j Job) {
	defer r.wg.Done()
	ticker := time.NewTicker(j.Every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			r.log.Info("job stopped", "job", j.Name)
			return
		case <-ticker.C:
			_ = r.run(ctx, j)
		}
	}
}

func (r *Runner) run(ctx context.Context, j Job) error {
	start := time.Now()
	err := j.Run(ctx)
	elapsed := time.Since(start)
	if err != nil {
		r.log.Error("job failed", "job", j.Name, "err", err, "elapsed", elapsed.String())
		return err
	}
	r.log.Debug("job complete", "job", j.Name, "elapsed", elapsed.String())
	return nil
}
