// Package sched runs recurring background jobs on cron schedules. The job
// logic lives elsewhere; this package only decides when to call it.
package sched

import (
	"context"
	"sync"
	"time"

	"github.com/adhocore/gronx"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Default schedules: market sync nightly at 02:00, index refresh hourly.
const (
	SpecDailySync     = "0 2 * * *"
	SpecHourlyRefresh = "0 * * * *"
)

// Task is one scheduled job.
type Task struct {
	Name string
	Spec string
	Run  func(ctx context.Context) error
}

// Scheduler evaluates task specs once per minute and runs due tasks. Runs
// are asynchronous so one slow job cannot delay another.
type Scheduler struct {
	gron     *gronx.Gronx
	log      *zap.Logger
	tasks    []Task
	interval time.Duration

	wg sync.WaitGroup
}

// New creates a Scheduler and validates every task's cron spec.
func New(tasks ...Task) (*Scheduler, error) {
	gron := gronx.New()
	for _, task := range tasks {
		if !gron.IsValid(task.Spec) {
			return nil, eris.Errorf("sched: invalid cron spec %q for task %s", task.Spec, task.Name)
		}
	}
	return &Scheduler{
		gron:     gron,
		log:      zap.L().Named("sched"),
		tasks:    tasks,
		interval: time.Minute,
	}, nil
}

// Start runs the scheduling loop until the context is cancelled, then waits
// for in-flight task runs to finish.
func (s *Scheduler) Start(ctx context.Context) {
	s.log.Info("scheduler started", zap.Int("tasks", len(s.tasks)))
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.wg.Wait()
			s.log.Info("scheduler stopped")
			return
		case now := <-ticker.C:
			s.dispatch(ctx, now)
		}
	}
}

func (s *Scheduler) dispatch(ctx context.Context, now time.Time) {
	for _, task := range s.tasks {
		due, err := s.gron.IsDue(task.Spec, now)
		if err != nil {
			s.log.Error("cron evaluation failed",
				zap.String("task", task.Name), zap.Error(err))
			continue
		}
		if !due {
			continue
		}

		s.wg.Add(1)
		go func(task Task) {
			defer s.wg.Done()
			started := time.Now()
			if err := task.Run(ctx); err != nil {
				s.log.Error("scheduled task failed",
					zap.String("task", task.Name),
					zap.Duration("elapsed", time.Since(started)),
					zap.Error(err))
				return
			}
			s.log.Info("scheduled task finished",
				zap.String("task", task.Name),
				zap.Duration("elapsed", time.Since(started)))
		}(task)
	}
}
