package health

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/robfig/cron/v3"
)

// DefaultSweepSchedule is the cron schedule used when none is configured.
const DefaultSweepSchedule = "@every 2m"

// Sweeper runs Registry.Sweep on a cron schedule. It owns the recurring
// task; the registry itself never spawns goroutines, which keeps its
// behavior fully deterministic under test.
type Sweeper struct {
	registry *Registry
	schedule string
	cron     *cron.Cron
	logger   *slog.Logger

	mu      sync.Mutex
	running bool
}

// NewSweeper creates a sweeper for the given registry. An empty schedule
// selects DefaultSweepSchedule.
func NewSweeper(registry *Registry, schedule string) *Sweeper {
	if schedule == "" {
		schedule = DefaultSweepSchedule
	}
	return &Sweeper{
		registry: registry,
		schedule: schedule,
		cron:     cron.New(),
		logger:   slog.Default().With("component", "health.sweeper"),
	}
}

// Start begins the scheduled sweeps. It returns an error if the schedule
// expression is invalid. The sweeper stops when the context is cancelled
// or Stop is called.
func (s *Sweeper) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return nil
	}

	if _, err := s.cron.AddFunc(s.schedule, s.registry.Sweep); err != nil {
		return fmt.Errorf("invalid sweep schedule %q: %w", s.schedule, err)
	}

	s.cron.Start()
	s.running = true
	s.logger.Info("health sweeper started", "schedule", s.schedule)

	go func() {
		<-ctx.Done()
		s.Stop()
	}()

	return nil
}

// Stop halts the scheduled sweeps. It is safe to call multiple times.
func (s *Sweeper) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}
	s.cron.Stop()
	s.running = false
	s.logger.Info("health sweeper stopped")
}
