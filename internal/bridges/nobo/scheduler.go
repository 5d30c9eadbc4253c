package nobo

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

// DefaultScheduleSpec re-evaluates zone status at the top of every minute,
// which is the resolution of week profile transitions.
const DefaultScheduleSpec = "* * * * *"

// ZoneStatusPublisher evaluates and publishes zone status; *Bridge
// implements it.
type ZoneStatusPublisher interface {
	PublishZoneStatuses(t time.Time) int
}

// SchedulerConfig holds scheduler settings.
type SchedulerConfig struct {
	// Spec is a standard 5-field cron expression. Default: every minute.
	Spec string

	// Location is the time zone week profiles are evaluated in.
	// Default: time.Local.
	Location *time.Location
}

// Scheduler periodically recomputes zone status so that week profile
// transitions and expiring overrides are published without a hub event.
//
// Thread Safety: Start, Stop and Evaluate are safe for concurrent use.
type Scheduler struct {
	cron     *cron.Cron
	target   ZoneStatusPublisher
	location *time.Location
	now      func() time.Time
	logger   Logger
}

// NewScheduler creates a scheduler. Call Start or Run to begin.
//
// Returns:
//   - *Scheduler: ready to start
//   - error: if target is nil or the cron spec is invalid
func NewScheduler(cfg SchedulerConfig, target ZoneStatusPublisher, logger Logger) (*Scheduler, error) {
	if target == nil {
		return nil, fmt.Errorf("zone status publisher is required")
	}
	if cfg.Spec == "" {
		cfg.Spec = DefaultScheduleSpec
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if logger == nil {
		logger = noopLogger{}
	}

	s := &Scheduler{
		cron:     cron.New(cron.WithLocation(cfg.Location)),
		target:   target,
		location: cfg.Location,
		now:      time.Now,
		logger:   logger,
	}
	if _, err := s.cron.AddFunc(cfg.Spec, func() { s.Evaluate() }); err != nil {
		return nil, fmt.Errorf("invalid schedule %q: %w", cfg.Spec, err)
	}
	return s, nil
}

// Evaluate runs one evaluation pass now.
//
// Returns:
//   - int: number of zones whose status changed
func (s *Scheduler) Evaluate() int {
	changed := s.target.PublishZoneStatuses(s.now().In(s.location))
	if changed > 0 {
		s.logger.Info("zone status updated", "changed", changed)
	}
	return changed
}

// Start runs the cron scheduler in the background.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop halts the scheduler and waits for a running pass to finish or ctx
// to expire.
func (s *Scheduler) Stop(ctx context.Context) {
	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
	}
}

// Run evaluates once, then runs on schedule until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	s.Evaluate()
	s.Start()
	<-ctx.Done()

	stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s.Stop(stopCtx)
	return nil
}
