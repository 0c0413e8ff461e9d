package coordinator

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/absmach/fedledger/pkg/cron"
)

const defaultCheckInterval = 30 * time.Second

// Scheduler runs the periodic round housekeeping: it times out overdue
// rounds and, when a schedule is set, opens rounds for idle models.
type Scheduler interface {
	Start(ctx context.Context) error
	Stop()
}

type scheduler struct {
	svc           Service
	schedule      *cron.Schedule
	logger        *slog.Logger
	checkInterval time.Duration
	now           func() time.Time
	stopChan      chan struct{}
	stopOnce      sync.Once
	nextRun       time.Time
}

// NewScheduler checks every interval. A nil schedule disables automatic
// round opening.
func NewScheduler(svc Service, schedule *cron.Schedule, interval time.Duration, logger *slog.Logger) Scheduler {
	if interval <= 0 {
		interval = defaultCheckInterval
	}

	return &scheduler{
		svc:           svc,
		schedule:      schedule,
		logger:        logger,
		checkInterval: interval,
		now:           time.Now,
		stopChan:      make(chan struct{}),
	}
}

func (s *scheduler) Start(ctx context.Context) error {
	if s.schedule != nil {
		s.nextRun = s.schedule.Next(s.now())
	}

	ticker := time.NewTicker(s.checkInterval)
	defer ticker.Stop()

	args := []any{slog.Duration("check_interval", s.checkInterval)}
	if s.schedule != nil {
		args = append(args, slog.String("round_schedule", s.schedule.String()), slog.Time("next_run", s.nextRun))
	}
	s.logger.Info("round scheduler started", args...)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("round scheduler stopping")

			return ctx.Err()
		case <-s.stopChan:
			s.logger.Info("round scheduler stopped")

			return nil
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

// Stop is safe to call more than once.
func (s *scheduler) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopChan)
	})
}

func (s *scheduler) tick(ctx context.Context) {
	swept, err := s.svc.SweepExpiredRounds(ctx)
	if err != nil {
		s.logger.Error("failed to sweep expired rounds", slog.String("error", err.Error()))
	}
	if swept > 0 {
		s.logger.Info("timed out overdue rounds", slog.Int("count", swept))
	}

	if s.schedule == nil {
		return
	}
	now := s.now()
	if now.Before(s.nextRun) {
		return
	}
	s.nextRun = s.schedule.Next(now)

	opened, err := s.svc.OpenDueRounds(ctx)
	if err != nil {
		s.logger.Error("failed to open scheduled rounds", slog.String("error", err.Error()))
	}
	s.logger.Info("opened scheduled rounds",
		slog.Int("count", opened),
		slog.Time("next_run", s.nextRun))
}
