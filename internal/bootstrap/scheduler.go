package bootstrap

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/GoSim-25-26J-441/obras/internal/logging"
)

// Reaper is implemented by the workspace manager.
type Reaper interface {
	Reap() int
	Len() int
}

// Pruner is implemented by the auth rate limiter.
type Pruner interface {
	Prune(idle time.Duration) int
}

type Scheduler struct {
	c       *cron.Cron
	reaper  Reaper
	limiter Pruner
	idle    time.Duration
	log     *logging.Logger
}

func NewScheduler(reaper Reaper, limiter Pruner, idle time.Duration) *Scheduler {
	return &Scheduler{
		c:       cron.New(cron.WithSeconds()),
		reaper:  reaper,
		limiter: limiter,
		idle:    idle,
		log:     logging.New("cron"),
	}
}

// Start registers the housekeeping jobs and starts the cron runner.
func (s *Scheduler) Start() error {
	// every minute, on the minute
	if _, err := s.c.AddFunc("0 * * * * *", s.RunOnce); err != nil {
		return fmt.Errorf("failed to create cron job: %w", err)
	}

	s.log.LogInfof("start", "reaping workspaces idle for %s every minute", s.idle)
	s.c.Start()
	return nil
}

// RunOnce closes idle workspaces and forgets idle rate-limit buckets.
func (s *Scheduler) RunOnce() {
	closed := s.reaper.Reap()
	pruned := 0
	if s.limiter != nil {
		pruned = s.limiter.Prune(s.idle)
	}
	s.log.LogDebugf("reap", "workspaces_closed=%d workspaces_open=%d limiter_pruned=%d", closed, s.reaper.Len(), pruned)
}

// Stop waits for a running job to finish.
func (s *Scheduler) Stop() {
	<-s.c.Stop().Done()
}
