package alert

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

const sweepSchedule = "@every 1m"

// Sweeper periodically returns alerts that sat in Assigned past the timeout
// to the Unassigned pool.
type Sweeper struct {
	c       *cron.Cron
	svc     *Service
	timeout time.Duration
	logger  zerolog.Logger
}

func NewSweeper(svc *Service, timeout time.Duration, logger zerolog.Logger) *Sweeper {
	return &Sweeper{
		c:       cron.New(cron.WithChain(cron.Recover(cron.DefaultLogger))),
		svc:     svc,
		timeout: timeout,
		logger:  logger.With().Str("component", "assignment-sweeper").Logger(),
	}
}

// Start schedules the sweep. A non-positive timeout leaves the sweeper idle.
func (s *Sweeper) Start() error {
	if s.timeout <= 0 {
		return nil
	}
	if _, err := s.c.AddFunc(sweepSchedule, func() { s.Run(context.Background()) }); err != nil {
		return err
	}
	s.c.Start()
	s.logger.Info().Dur("timeout", s.timeout).Str("schedule", sweepSchedule).Msg("assignment sweeper started")
	return nil
}

// Stop waits for a running sweep to finish.
func (s *Sweeper) Stop() {
	<-s.c.Stop().Done()
}

// Run performs one sweep.
func (s *Sweeper) Run(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if _, err := s.svc.ReleaseStale(ctx, s.timeout); err != nil {
		s.logger.Error().Err(err).Msg("release stale assignments")
	}
}

// Entries exposes the schedule for inspection.
func (s *Sweeper) Entries() []cron.Entry { return s.c.Entries() }
