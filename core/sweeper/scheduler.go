package sweeper

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"

	"github.com/thesisman/backend/core"
)

// DefaultSchedule fires at midnight.
const DefaultSchedule = "0 0 * * *"

// Scheduler fires the daily pass at a fixed time of a reference timezone.
type Scheduler struct {
	cron    *cron.Cron
	svc     *Service
	logger  core.Logger
	timeout time.Duration
}

func NewScheduler(svc *Service, schedule string, loc *time.Location, logger core.Logger) (*Scheduler, error) {
	if schedule == "" {
		schedule = DefaultSchedule
	}
	if loc == nil {
		loc = time.UTC
	}

	s := &Scheduler{
		cron:    cron.New(cron.WithLocation(loc)),
		svc:     svc,
		logger:  logger,
		timeout: 5 * time.Minute,
	}
	if _, err := s.cron.AddFunc(schedule, s.run); err != nil {
		return nil, errors.Wrapf(err, "sweeper: invalid schedule %q", schedule)
	}
	return s, nil
}

func (s *Scheduler) run() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	if err := s.svc.RunDailyPass(ctx); err != nil {
		s.logger.Error(fmt.Sprintf("sweeper: daily pass: %v", err), err)
	}
}

func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("sweeper: scheduler started")
}

// Stop stops the scheduler, waiting for a running pass until ctx is done.
func (s *Scheduler) Stop(ctx context.Context) {
	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
	}
}
