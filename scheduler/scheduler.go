package scheduler

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

const pruneTimeout = time.Minute

// Pruner deletes run history older than a cutoff.
type Pruner interface {
	PruneBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// Scheduler periodically prunes run history on a cron schedule.
type Scheduler struct {
	ctx       context.Context
	cron      *cron.Cron
	spec      string
	pruner    Pruner
	retention time.Duration
	now       func() time.Time
	logger    *logrus.Entry
}

func New(ctx context.Context, pruner Pruner, spec string, retention time.Duration) *Scheduler {
	return &Scheduler{
		ctx:       ctx,
		cron:      cron.New(cron.WithLocation(time.UTC)),
		spec:      spec,
		pruner:    pruner,
		retention: retention,
		now:       time.Now,
		logger:    logrus.WithField("component", "scheduler"),
	}
}

func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc(s.spec, s.prune); err != nil {
		return err
	}

	s.cron.Start()
	s.logger.WithFields(logrus.Fields{
		"spec":      s.spec,
		"retention": s.retention,
	}).Info("History pruning scheduled")

	return nil
}

// Stop halts the schedule and waits for a running prune to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

func (s *Scheduler) prune() {
	ctx, cancel := context.WithTimeout(s.ctx, pruneTimeout)
	defer cancel()

	select {
	case <-ctx.Done():
		s.logger.WithError(ctx.Err()).Info("Scheduler context is done")
		return
	default:
	}

	cutoff := s.now().Add(-s.retention)
	n, err := s.pruner.PruneBefore(ctx, cutoff)
	if err != nil {
		s.logger.WithError(err).WithField("cutoff", cutoff).Error("Failed to prune run history")
		return
	}

	s.logger.WithFields(logrus.Fields{
		"cutoff": cutoff,
		"pruned": n,
	}).Info("Pruned run history")
}
