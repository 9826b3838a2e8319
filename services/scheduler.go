package services

import (
	"context"
	"fmt"
	"time"

	"disclosure-rag/internal/logger"

	"github.com/go-co-op/gocron"
)

// Scheduler runs periodic background jobs such as the Drive poll
type Scheduler struct {
	scheduler *gocron.Scheduler
	ctx       context.Context
	cancel    context.CancelFunc
}

func NewScheduler() *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	s := gocron.NewScheduler(time.UTC)
	s.TagsUnique()

	return &Scheduler{
		scheduler: s,
		ctx:       ctx,
		cancel:    cancel,
	}
}

func (s *Scheduler) Start() {
	s.scheduler.StartAsync()
}

// Stop halts the scheduler and cancels the context handed to running jobs
func (s *Scheduler) Stop() {
	s.scheduler.Stop()
	if s.cancel != nil {
		s.cancel()
	}
}

// Every registers job under a unique tag. Jobs receive the scheduler context.
// A job never overlaps with its own previous run.
func (s *Scheduler) Every(tag string, interval time.Duration, job func(ctx context.Context) error) error {
	if interval <= 0 {
		return fmt.Errorf("invalid interval for %s: %s", tag, interval)
	}
	_, err := s.scheduler.Every(interval).Tag(tag).SingletonMode().Do(func() {
		if err := job(s.ctx); err != nil {
			logger.Error("Scheduled job failed", "job", tag, "error", err)
		}
	})
	return err
}

func (s *Scheduler) Remove(tag string) error {
	return s.scheduler.RemoveByTag(tag)
}

// Jobs returns the number of registered jobs
func (s *Scheduler) Jobs() int {
	return len(s.scheduler.Jobs())
}
