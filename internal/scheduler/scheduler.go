// Package scheduler runs periodic maintenance jobs with cron expressions.
package scheduler

import (
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

const (
	// DedupPurgeSpec runs the dedup purge at the top of every hour.
	DedupPurgeSpec = "0 * * * *"
	// OutboxRecoverySpec runs the stale outbox recovery every minute.
	OutboxRecoverySpec = "* * * * *"
	// DedupRetention is how long processed inbound ids are remembered.
	DedupRetention = 7 * 24 * time.Hour
)

// Scheduler provides cron-based job scheduling.
type Scheduler struct {
	cron *cron.Cron
}

// NewScheduler creates and starts a cron scheduler.
func NewScheduler() *Scheduler {
	// Standard 5-field parser (min, hour, dom, month, dow) with panic recovery
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	c := cron.New(cron.WithParser(parser), cron.WithChain(cron.Recover(cron.DefaultLogger)))
	c.Start()
	return &Scheduler{cron: c}
}

// AddJob schedules a task using the provided cron expression.
// It returns an error if the expression is invalid.
func (s *Scheduler) AddJob(expr string, task func()) error {
	_, err := s.cron.AddFunc(expr, task)
	return err
}

// Len returns the number of scheduled jobs.
func (s *Scheduler) Len() int {
	return len(s.cron.Entries())
}

// Stop stops the cron scheduler and waits for running jobs to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

// DedupPurger removes inbound dedup records older than a cutoff.
type DedupPurger interface {
	PurgeDedupBefore(cutoff time.Time) (int, error)
}

// OutboxRecoverer requeues outbox messages stuck in sending.
type OutboxRecoverer interface {
	RecoverStaleMessages() error
}

// PurgeDedup removes dedup records received before now minus DedupRetention.
func PurgeDedup(repo DedupPurger, now time.Time) {
	n, err := repo.PurgeDedupBefore(now.Add(-DedupRetention))
	if err != nil {
		slog.Error("scheduler.PurgeDedup: purge failed", "error", err)
		return
	}
	if n > 0 {
		slog.Info("scheduler.PurgeDedup: purged dedup records", "count", n)
	}
}

// RegisterMaintenance schedules the dedup purge and the outbox recovery.
func (s *Scheduler) RegisterMaintenance(dedup DedupPurger, outbox OutboxRecoverer) error {
	if err := s.AddJob(DedupPurgeSpec, func() { PurgeDedup(dedup, time.Now()) }); err != nil {
		return err
	}
	return s.AddJob(OutboxRecoverySpec, func() {
		if err := outbox.RecoverStaleMessages(); err != nil {
			slog.Error("scheduler: outbox recovery failed", "error", err)
		}
	})
}
