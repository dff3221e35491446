// Package purge hard-deletes members whose restore window has closed.
package purge

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// Purger is the store side the scheduler drives.
type Purger interface {
	PurgeDeletedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

type Config struct {
	// Schedule is a standard five-field cron spec, evaluated in UTC.
	Schedule      string
	RestoreWindow time.Duration
	JobTimeout    time.Duration
	Now           func() time.Time
}

type Scheduler struct {
	cfg    Config
	store  Purger
	logger logrus.FieldLogger
	cron   *cron.Cron
}

func NewScheduler(store Purger, cfg Config, logger logrus.FieldLogger) (*Scheduler, error) {
	if store == nil {
		return nil, errors.New("purge store is nil")
	}
	if cfg.RestoreWindow <= 0 {
		return nil, errors.New("purge restore window must be > 0")
	}
	if cfg.JobTimeout <= 0 {
		cfg.JobTimeout = time.Minute
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	s := &Scheduler{
		cfg:    cfg,
		store:  store,
		logger: logger.WithField("component", "purge"),
		cron:   cron.New(cron.WithLocation(time.UTC)),
	}
	if _, err := s.cron.AddFunc(cfg.Schedule, s.runScheduled); err != nil {
		return nil, fmt.Errorf("schedule purge %q: %w", cfg.Schedule, err)
	}
	return s, nil
}

// RunOnce purges every member deleted more than RestoreWindow ago.
func (s *Scheduler) RunOnce(ctx context.Context) (int64, error) {
	cutoff := s.cfg.Now().Add(-s.cfg.RestoreWindow)
	n, err := s.store.PurgeDeletedBefore(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("purge deleted members: %w", err)
	}
	return n, nil
}

func (s *Scheduler) runScheduled() {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.JobTimeout)
	defer cancel()

	s.logger.Info("starting deleted-member purge")
	n, err := s.RunOnce(ctx)
	if err != nil {
		s.logger.WithError(err).Error("deleted-member purge failed")
		return
	}
	s.logger.WithField("purged", n).Info("deleted-member purge finished")
}

func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop halts scheduling and waits for a running purge to finish or ctx to end.
func (s *Scheduler) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
	}
}
