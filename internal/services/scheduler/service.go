// -----------------------------------------------------------------------
// Scheduler Service - periodic maintenance sweeps
// -----------------------------------------------------------------------

package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/seligo/internal/common"
	"github.com/ternarybob/seligo/internal/interfaces"
	"github.com/ternarybob/seligo/internal/models"
)

// defaultSweepSchedule runs the stale-resume sweep every ten minutes.
const defaultSweepSchedule = "*/10 * * * *"

// Service periodically re-enqueues resumes stuck in a processing stage.
// A resume goes stale when a worker died mid-pipeline; the broker's
// at-least-once delivery makes re-enqueueing safe because the handlers are
// idempotent.
type Service struct {
	cron       *cron.Cron
	storage    interfaces.StorageManager
	queue      interfaces.QueueManager
	schedule   string
	staleAfter time.Duration
	enabled    bool
	logger     arbor.ILogger
}

func NewService(config *common.SchedulerConfig, storage interfaces.StorageManager, queue interfaces.QueueManager, logger arbor.ILogger) *Service {
	schedule := defaultSweepSchedule
	if config.SweepSchedule != "" {
		schedule = config.SweepSchedule
	}

	return &Service{
		cron:       cron.New(),
		storage:    storage,
		queue:      queue,
		schedule:   schedule,
		staleAfter: common.MustDuration(config.StaleAfter, 15*time.Minute),
		enabled:    config.Enabled,
		logger:     logger,
	}
}

// Start registers and launches the sweep. Disabled schedulers no-op.
func (s *Service) Start() error {
	if !s.enabled {
		s.logger.Info().Msg("Scheduler disabled")
		return nil
	}

	if _, err := s.cron.AddFunc(s.schedule, s.sweepStaleResumes); err != nil {
		return fmt.Errorf("failed to register sweep schedule %q: %w", s.schedule, err)
	}

	s.cron.Start()
	s.logger.Info().Str("schedule", s.schedule).Msg("Scheduler started")
	return nil
}

// Stop halts the cron runner; a running sweep finishes first.
func (s *Service) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}

func (s *Service) sweepStaleResumes() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	cutoff := time.Now().Add(-s.staleAfter)
	stale, err := s.storage.ResumeStorage().ListStale(ctx, cutoff)
	if err != nil {
		s.logger.Warn().Err(err).Msg("Stale resume sweep failed to list")
		return
	}
	if len(stale) == 0 {
		return
	}

	requeued := 0
	for _, resume := range stale {
		payload := models.ResumePayload{
			ResumeID: resume.ID,
			JobID:    resume.JobID,
			FilePath: resume.FilePath,
		}
		msg, err := models.NewQueueMessage(resume.ID, models.QueueResume, payload)
		if err != nil {
			s.logger.Warn().Err(err).Str("resume_id", resume.ID).Msg("Failed to build requeue message")
			continue
		}
		if err := s.queue.Enqueue(ctx, models.QueueResume, msg); err != nil {
			s.logger.Warn().Err(err).Str("resume_id", resume.ID).Msg("Failed to requeue stale resume")
			continue
		}
		requeued++
	}

	s.logger.Info().
		Int("stale", len(stale)).
		Int("requeued", requeued).
		Msg("Stale resume sweep completed")
}
