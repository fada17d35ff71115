// Package schedule triggers the daily digest at a configured wall-clock time.
package schedule

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"telebrief/internal/config"
	logx "telebrief/pkg/logx"
)

// Job is the work one trigger fires. The scheduler does not serialize runs;
// the job itself carries the single-run gate.
type Job func(ctx context.Context)

// Scheduler wraps a single daily cron entry. Apply restarts the entry when
// the configured time or timezone changes, so config edits take effect
// without a process restart.
type Scheduler struct {
	job Job
	log logx.Logger

	mu      sync.Mutex
	cron    *cron.Cron
	entry   cron.EntryID
	hhmm    string
	tz      string
	baseCtx context.Context
}

func New(job Job, log logx.Logger) *Scheduler {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Scheduler{job: job, log: log}
}

// Start arms the daily trigger. ctx is the base context handed to every
// fired job.
func (s *Scheduler) Start(ctx context.Context, hhmm, tz string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cron != nil {
		return nil
	}
	s.baseCtx = ctx
	if err := s.armLocked(hhmm, tz); err != nil {
		return err
	}
	s.log.Info("scheduler started",
		logx.String("at", hhmm), logx.String("tz", tz),
		logx.Time("next_run", s.cron.Entry(s.entry).Next))
	return nil
}

// Apply reconfigures the trigger if schedule time or timezone changed.
func (s *Scheduler) Apply(hhmm, tz string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cron == nil {
		return nil
	}
	if hhmm == s.hhmm && tz == s.tz {
		return nil
	}
	s.stopLocked()
	if err := s.armLocked(hhmm, tz); err != nil {
		return err
	}
	s.log.Info("schedule updated",
		logx.String("at", hhmm), logx.String("tz", tz),
		logx.Time("next_run", s.cron.Entry(s.entry).Next))
	return nil
}

func (s *Scheduler) armLocked(hhmm, tz string) error {
	hour, minute, err := config.ParseHHMM(hhmm)
	if err != nil {
		return fmt.Errorf("schedule time: %w", err)
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return fmt.Errorf("schedule timezone: %w", err)
	}

	c := cron.New(cron.WithLocation(loc))
	id, err := c.AddFunc(fmt.Sprintf("%d %d * * *", minute, hour), func() {
		s.log.Info("scheduled digest triggered")
		s.job(s.baseCtx)
	})
	if err != nil {
		return err
	}
	c.Start()

	s.cron = c
	s.entry = id
	s.hhmm = hhmm
	s.tz = tz
	return nil
}

func (s *Scheduler) stopLocked() {
	if s.cron != nil {
		s.cron.Stop()
		s.cron = nil
	}
}

// Stop disarms the trigger. Fired jobs already in flight keep running.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked()
	s.log.Info("scheduler stopped")
}

// NextRun reports the next trigger time, false when the scheduler is not
// running.
func (s *Scheduler) NextRun() (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cron == nil {
		return time.Time{}, false
	}
	return s.cron.Entry(s.entry).Next, true
}
