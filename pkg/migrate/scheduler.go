package migrate

import (
	"context"
	"fmt"
	"sync"

	"github.com/baderkha/snowflake-migrate/pkg/migrate/faults"
	"github.com/rs/zerolog"
)

// DefaultMaxParallelCeiling : hard upper bound on concurrent table migrations when none is configured
const DefaultMaxParallelCeiling = 10

// Progress : tables finished so far out of the run total
type Progress struct {
	Completed int
	Total     int
}

// Fraction : completed / total, 1 for an empty run
func (p Progress) Fraction() float64 {
	if p.Total == 0 {
		return 1
	}
	return float64(p.Completed) / float64(p.Total)
}

// Done : every task has an outcome
func (p Progress) Done() bool {
	return p.Completed == p.Total
}

// SchedulerOptions : pool sizing and hooks
type SchedulerOptions struct {
	// MaxParallel : requested worker count, clamped with ClampParallel
	MaxParallel int
	// Ceiling : operator upper bound, DefaultMaxParallelCeiling when <= 0
	Ceiling int
	// OnStart : called by the worker right before a task runs
	OnStart func(workerID int, task Task)
	// OnProgress : called once per outcome, in completion order, never concurrently
	OnProgress func(p Progress, o Outcome)
}

// Scheduler : bounded worker pool fanning a Runner out over many tables
type Scheduler struct {
	runner Runner
	opts   SchedulerOptions
	log    zerolog.Logger
}

func NewScheduler(runner Runner, opts SchedulerOptions, log zerolog.Logger) *Scheduler {
	return &Scheduler{
		runner: runner,
		opts:   opts,
		log:    log.With().Str("component", "scheduler").Logger(),
	}
}

// ClampParallel : requested bounded to [1, min(tasks, ceiling)]
func ClampParallel(requested int, tasks int, ceiling int) int {
	if ceiling <= 0 {
		ceiling = DefaultMaxParallelCeiling
	}
	p := requested
	if p > tasks {
		p = tasks
	}
	if p > ceiling {
		p = ceiling
	}
	if p < 1 {
		p = 1
	}
	return p
}

// Run : starts the pool and returns the outcome stream. Exactly one outcome is sent per task,
// in completion order, and the channel is closed after the last one.
//
// Cancelling ctx stops new tasks from being launched; tasks already running finish and tasks
// never launched are reported as failed with faults.ErrCancelled. Nothing is retried.
func (s *Scheduler) Run(ctx context.Context, tasks []Task) <-chan Outcome {
	out := make(chan Outcome, len(tasks))
	if len(tasks) == 0 {
		close(out)
		return out
	}

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		completed int
		total     = len(tasks)
		jobs      = make(chan Task)
		workers   = ClampParallel(s.opts.MaxParallel, total, s.opts.Ceiling)
	)

	publish := func(o Outcome) {
		mu.Lock()
		defer mu.Unlock()
		completed++
		out <- o
		if s.opts.OnProgress != nil {
			s.opts.OnProgress(Progress{Completed: completed, Total: total}, o)
		}
	}

	s.log.Info().Int("tables", total).Int("workers", workers).Msg("starting migration")
	for i := 1; i <= workers; i++ {
		wg.Add(1)
		go s.worker(ctx, i, jobs, publish, &wg)
	}

	go func() {
		defer func() {
			wg.Wait()
			close(out)
		}()
		defer close(jobs)
		for i, t := range tasks {
			if ctx.Err() == nil {
				select {
				case jobs <- t:
					continue
				case <-ctx.Done():
				}
			}
			s.log.Warn().Int("skipped", total-i).Msg("run cancelled, remaining tables not started")
			for _, rest := range tasks[i:] {
				publish(failed(rest.Table, faults.ErrCancelled, "Migration of %s cancelled before it started", rest.Table))
			}
			return
		}
	}()
	return out
}

func (s *Scheduler) worker(ctx context.Context, workerID int, jobs <-chan Task, publish func(Outcome), wg *sync.WaitGroup) {
	defer wg.Done()
	// in-flight tables are allowed to finish once the run is cancelled
	runCtx := context.WithoutCancel(ctx)
	for t := range jobs {
		if s.opts.OnStart != nil {
			s.opts.OnStart(workerID, t)
		}
		publish(s.runOne(runCtx, workerID, t))
	}
	s.log.Debug().Int("worker", workerID).Msg("worker exiting")
}

func (s *Scheduler) runOne(ctx context.Context, workerID int, t Task) (o Outcome) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error().Interface("panic", r).Str("table", t.Table).Int("worker", workerID).Msg("runner panicked")
			o = failed(t.Table, fmt.Errorf("panic : %v", r), "Error migrating %s: %v", t.Table, r)
		}
	}()
	o = s.runner.Migrate(ctx, t)
	if o.Table == "" {
		o.Table = t.Table
	}
	return o
}

// Collect : drains the stream into a slice
func Collect(outcomes <-chan Outcome) []Outcome {
	var res []Outcome
	for o := range outcomes {
		res = append(res, o)
	}
	return res
}
