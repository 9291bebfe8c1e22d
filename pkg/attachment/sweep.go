package attachment

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/robfig/cron/v3"
)

// Sweeper runs the age-based blob cleanup on a cron schedule.
type Sweeper struct {
	service *Service
	cron    *cron.Cron
	mu      sync.Mutex
	logger  *slog.Logger
	running bool
}

// NewSweeper creates a sweeper for the given service.
func NewSweeper(service *Service) *Sweeper {
	return &Sweeper{
		service: service,
		cron:    cron.New(),
		logger:  slog.Default().With("component", "attachment.sweeper"),
	}
}

// Start begins scheduled sweeping based on the service's configured
// cron expression. An empty schedule disables the sweeper.
func (s *Sweeper) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	schedule := s.service.config.SweepSchedule
	if schedule == "" {
		s.logger.Info("sweep schedule not configured, skipping sweeper")
		return nil
	}

	if _, err := cron.ParseStandard(schedule); err != nil {
		return fmt.Errorf("invalid cron schedule %q: %w", schedule, err)
	}

	if _, err := s.cron.AddFunc(schedule, s.runSweep); err != nil {
		return fmt.Errorf("failed to schedule sweep: %w", err)
	}

	s.cron.Start()
	s.running = true

	s.logger.Info("attachment sweeper started",
		"schedule", schedule,
		"max_blob_age", s.service.config.MaxBlobAge,
	)

	return nil
}

// runSweep executes one sweep cycle.
func (s *Sweeper) runSweep() {
	deleted, err := s.service.Cleanup(s.service.config.MaxBlobAge)
	if err != nil {
		s.logger.Error("scheduled blob sweep failed",
			"error", err,
		)
		return
	}

	if deleted > 0 {
		s.logger.Info("scheduled blob sweep completed",
			"deleted_count", deleted,
		)
	} else {
		s.logger.Debug("scheduled blob sweep completed, no blobs deleted")
	}
}

// Stop stops the sweeper and waits for any running sweep to complete.
func (s *Sweeper) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cron != nil && s.running {
		ctx := s.cron.Stop()
		<-ctx.Done()
		s.running = false
		s.logger.Info("attachment sweeper stopped")
	}
}

// IsRunning returns true if the sweeper is running.
func (s *Sweeper) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}
