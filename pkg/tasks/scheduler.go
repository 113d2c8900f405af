package tasks

import (
	"context"
	"fmt"
	"time"

	"github.com/adhocore/gronx"

	"github.com/penny-university/pennybot/pkg/logger"
)

type cronJob struct {
	spec string
	task string
	args Args
}

// Scheduler submits registered tasks on cron schedules. It ticks once a
// minute and submits every job whose expression is due.
type Scheduler struct {
	gron  *gronx.Gronx
	queue Submitter
	jobs  []cronJob
}

// NewScheduler creates a scheduler that submits to the given queue.
func NewScheduler(queue Submitter) *Scheduler {
	return &Scheduler{
		gron:  gronx.New(),
		queue: queue,
	}
}

// Every registers a task to run on a cron expression. Invalid expressions
// are rejected at registration time.
func (s *Scheduler) Every(spec, taskName string, args Args) error {
	if !s.gron.IsValid(spec) {
		return fmt.Errorf("tasks: invalid cron expression %q", spec)
	}
	s.jobs = append(s.jobs, cronJob{spec: spec, task: taskName, args: args})
	return nil
}

// Run blocks until ctx is cancelled, checking schedules every minute.
func (s *Scheduler) Run(ctx context.Context) {
	logger.InfoCF("scheduler", "Cron scheduler starting", map[string]interface{}{
		"jobs": len(s.jobs),
	})

	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			s.tick(now)
		}
	}
}

func (s *Scheduler) tick(now time.Time) {
	for _, j := range s.jobs {
		due, err := s.gron.IsDue(j.spec, now)
		if err != nil || !due {
			continue
		}
		if _, err := s.queue.Submit(j.task, j.args); err != nil {
			logger.WarnCF("scheduler", "Scheduled submit failed", map[string]interface{}{
				"task":  j.task,
				"error": err.Error(),
			})
		}
	}
}
