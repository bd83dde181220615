package jobs

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

type OverdueNotifier interface {
	NotifyOverdue(ctx context.Context) (int, error)
}

// Scheduler runs the overdue sweep on a cron schedule with a seconds field, in UTC.
type Scheduler struct {
	cron    *cron.Cron
	svc     OverdueNotifier
	timeout time.Duration
	log     *zap.Logger
}

func NewScheduler(svc OverdueNotifier, schedule string, log *zap.Logger) (*Scheduler, error) {
	s := &Scheduler{
		cron: cron.New(
			cron.WithLocation(time.UTC),
			cron.WithSeconds(),
			cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
		),
		svc:     svc,
		timeout: time.Minute,
		log:     log.Named("jobs"),
	}
	if _, err := s.cron.AddFunc(schedule, s.NotifyOverdue); err != nil {
		return nil, errors.Wrapf(err, "schedule %q", schedule)
	}
	return s, nil
}

func (s *Scheduler) NotifyOverdue() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	n, err := s.svc.NotifyOverdue(ctx)
	if err != nil {
		s.log.Error("NotifyOverdue", zap.Error(err))
		return
	}
	s.log.Debug("overdue sweep done", zap.Int("lines", n))
}

func (s *Scheduler) Start() {
	s.log.Info("starting cron scheduler")
	s.cron.Start()
}

// Stop waits for a running sweep to finish or ctx to expire.
func (s *Scheduler) Stop(ctx context.Context) {
	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
	}
	s.log.Info("cron scheduler stopped")
}
