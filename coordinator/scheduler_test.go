package coordinator

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/absmach/fedledger/pkg/cron"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type housekeepingService struct {
	Service
	sweeps atomic.Int32
	opens  atomic.Int32
}

func (h *housekeepingService) SweepExpiredRounds(context.Context) (int, error) {
	h.sweeps.Add(1)

	return 1, nil
}

func (h *housekeepingService) OpenDueRounds(context.Context) (int, error) {
	h.opens.Add(1)

	return 2, nil
}

func TestSchedulerTick(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	schedule, err := cron.Parse("@every 1h", "")
	require.NoError(t, err)

	var (
		mu  sync.Mutex
		now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	)
	clock := func() time.Time {
		mu.Lock()
		defer mu.Unlock()

		return now
	}

	svc := &housekeepingService{}
	s := NewScheduler(svc, schedule, time.Hour, logger).(*scheduler)
	s.now = clock
	s.nextRun = schedule.Next(clock())

	ctx := context.Background()
	s.tick(ctx)
	assert.Equal(t, int32(1), svc.sweeps.Load())
	assert.Equal(t, int32(0), svc.opens.Load(), "schedule not due yet")

	mu.Lock()
	now = now.Add(61 * time.Minute)
	mu.Unlock()

	s.tick(ctx)
	assert.Equal(t, int32(2), svc.sweeps.Load())
	assert.Equal(t, int32(1), svc.opens.Load())

	s.tick(ctx)
	assert.Equal(t, int32(1), svc.opens.Load(), "next run moved forward")
}

func TestSchedulerStartStop(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := &housekeepingService{}
	s := NewScheduler(svc, nil, 5*time.Millisecond, logger)

	done := make(chan error, 1)
	go func() {
		done <- s.Start(context.Background())
	}()

	require.Eventually(t, func() bool { return svc.sweeps.Load() > 0 }, time.Second, 5*time.Millisecond)
	s.Stop()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop")
	}
	assert.Equal(t, int32(0), svc.opens.Load(), "no schedule, no automatic rounds")
}

func TestSchedulerStopTwice(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s := NewScheduler(&housekeepingService{}, nil, time.Hour, logger)

	assert.NotPanics(t, func() {
		s.Stop()
		s.Stop()
	})

	var wg sync.WaitGroup
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.Stop()
		}()
	}
	wg.Wait()

	err := s.Start(context.Background())
	assert.NoError(t, err, "start returns once stopped")
}
