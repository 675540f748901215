// -----------------------------------------------------------------------
// Orchestrator - job lifecycle, queue handlers and the score/rank flow
// -----------------------------------------------------------------------

package orchestrator

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/seligo/internal/common"
	"github.com/ternarybob/seligo/internal/interfaces"
	"github.com/ternarybob/seligo/internal/models"
	"github.com/ternarybob/seligo/internal/pipeline"
	"github.com/ternarybob/seligo/internal/services/ranking"
	"github.com/ternarybob/seligo/internal/services/report"
	"github.com/ternarybob/seligo/internal/services/scoring"
)

const (
	// flowPollInterval paces ChildStats polling for resume and rank flows.
	flowPollInterval = 2 * time.Second
	// flowDeadline bounds how long a flow watcher waits before giving up.
	flowDeadline = 2 * time.Hour
)

// Orchestrator owns the job lifecycle: submission, queue handlers for the
// four queues, the scoring pass once every resume reaches a terminal state,
// and the rank flow with its report.
type Orchestrator struct {
	storage   interfaces.StorageManager
	queue     interfaces.QueueManager
	jd        *pipeline.JDPipeline
	resumes   *pipeline.ResumePipeline
	scorer    *scoring.Scorer
	ranker    *ranking.Ranker
	reports   *report.Service
	progress  interfaces.ProgressPublisher
	cancels   *CancelRegistry
	uploadDir string
	logger    arbor.ILogger
}

func New(
	storage interfaces.StorageManager,
	queue interfaces.QueueManager,
	jd *pipeline.JDPipeline,
	resumes *pipeline.ResumePipeline,
	scorer *scoring.Scorer,
	ranker *ranking.Ranker,
	reports *report.Service,
	progress interfaces.ProgressPublisher,
	cancels *CancelRegistry,
	pipelineConfig *common.PipelineConfig,
	logger arbor.ILogger,
) *Orchestrator {
	uploadDir := pipelineConfig.UploadDir
	if uploadDir == "" {
		uploadDir = "./data/uploads"
	}
	return &Orchestrator{
		storage:   storage,
		queue:     queue,
		jd:        jd,
		resumes:   resumes,
		scorer:    scorer,
		ranker:    ranker,
		reports:   reports,
		progress:  progress,
		cancels:   cancels,
		uploadDir: uploadDir,
		logger:    logger,
	}
}

// RegisterHandlers binds the queue handlers. Must run before the broker
// starts.
func (o *Orchestrator) RegisterHandlers() {
	o.queue.RegisterHandler(models.QueueJD, o.handleJD)
	o.queue.RegisterHandler(models.QueueResume, o.handleResume)
	o.queue.RegisterHandler(models.QueueRank, o.handleRank)
	o.queue.RegisterHandler(models.QueueRankBatch, o.handleRankBatch)
}

// -----------------------------------------------------------------------
// Job lifecycle API
// -----------------------------------------------------------------------

// CreateJob stores a new draft job.
func (o *Orchestrator) CreateJob(ctx context.Context, title, rawJDText, mandatoryPrompt, softPrompt string) (*models.Job, error) {
	now := time.Now()
	job := &models.Job{
		ID:              common.NewJobID(),
		Title:           title,
		RawJDText:       rawJDText,
		MandatoryPrompt: mandatoryPrompt,
		SoftPrompt:      softPrompt,
		Status:          models.JobStatusDraft,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := o.storage.JobStorage().SaveJob(ctx, job); err != nil {
		return nil, err
	}
	o.logger.Info().Str("job_id", job.ID).Str("title", title).Msg("Job created")
	return job, nil
}

// AttachJDPDF stores an uploaded JD PDF for a draft job.
func (o *Orchestrator) AttachJDPDF(ctx context.Context, jobID, filename string, content []byte) error {
	job, err := o.storage.JobStorage().GetJob(ctx, jobID)
	if err != nil {
		return err
	}
	if job.Locked {
		return fmt.Errorf("job %s is locked, jd can no longer change", jobID)
	}

	path, err := o.saveUpload(jobID, filename, content)
	if err != nil {
		return err
	}
	job.JDPDFRef = path
	job.UpdatedAt = time.Now()
	return o.storage.JobStorage().SaveJob(ctx, job)
}

// UploadResume stores an uploaded resume PDF and creates its pending record.
func (o *Orchestrator) UploadResume(ctx context.Context, jobID, filename string, content []byte) (*models.Resume, error) {
	if _, err := o.storage.JobStorage().GetJob(ctx, jobID); err != nil {
		return nil, err
	}

	path, err := o.saveUpload(jobID, filename, content)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	resume := &models.Resume{
		ID:               common.NewResumeID(),
		JobID:            jobID,
		Filename:         filename,
		FilePath:         path,
		ExtractionStatus: models.StagePending,
		ParsingStatus:    models.StagePending,
		EmbeddingStatus:  models.StagePending,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := o.storage.ResumeStorage().SaveResume(ctx, resume); err != nil {
		return nil, err
	}

	o.logger.Info().
		Str("job_id", jobID).
		Str("resume_id", resume.ID).
		Str("filename", filename).
		Msg("Resume uploaded")
	return resume, nil
}

// SubmitJob queues the job for processing. Resubmitting a processing job is
// rejected; resubmitting a failed job clears its cancellation and retries.
func (o *Orchestrator) SubmitJob(ctx context.Context, jobID string) error {
	job, err := o.storage.JobStorage().GetJob(ctx, jobID)
	if err != nil {
		return err
	}
	if !job.HasInput() {
		return fmt.Errorf("job %s has no jd text or pdf", jobID)
	}
	if job.Status == models.JobStatusQueued || job.Status == models.JobStatusProcessing {
		return fmt.Errorf("job %s is already %s", jobID, job.Status)
	}

	o.cancels.Clear(jobID)

	if err := o.storage.JobStorage().UpdateJobStatus(ctx, jobID, models.JobStatusQueued, ""); err != nil {
		return err
	}

	msg, err := models.NewQueueMessage(jobID, models.QueueJD, models.JDPayload{JobID: jobID})
	if err != nil {
		return err
	}
	if err := o.queue.Enqueue(ctx, models.QueueJD, msg); err != nil {
		return err
	}

	o.logger.Info().Str("job_id", jobID).Msg("Job submitted")
	return nil
}

// CancelJob flags the job for cancellation. Jobs not yet picked up fail
// immediately; running pipelines stop at their next stage boundary.
func (o *Orchestrator) CancelJob(ctx context.Context, jobID string) error {
	job, err := o.storage.JobStorage().GetJob(ctx, jobID)
	if err != nil {
		return err
	}
	if job.Terminal() {
		return fmt.Errorf("job %s already finished", jobID)
	}

	o.cancels.Cancel(jobID)

	if job.Status == models.JobStatusDraft || job.Status == models.JobStatusQueued {
		if err := o.storage.JobStorage().UpdateJobStatus(ctx, jobID, models.JobStatusFailed, "cancelled"); err != nil {
			return err
		}
		o.publish(jobID, models.ProgressTypeCancelled, "submit", 100, "cancelled")
	}

	o.logger.Info().Str("job_id", jobID).Msg("Job cancellation requested")
	return nil
}

// Results returns the score results for a job, best first.
func (o *Orchestrator) Results(ctx context.Context, jobID string) ([]*models.ScoreResult, error) {
	return o.storage.ScoreStorage().ListScoresByJob(ctx, jobID)
}

func (o *Orchestrator) saveUpload(jobID, filename string, content []byte) (string, error) {
	dir := filepath.Join(o.uploadDir, jobID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create upload dir: %w", err)
	}
	// Prefix with a fresh token so duplicate filenames never collide.
	path := filepath.Join(dir, uuid.New().String()[:8]+"_"+filepath.Base(filename))
	if err := os.WriteFile(path, content, 0o644); err != nil {
		return "", fmt.Errorf("failed to write upload: %w", err)
	}
	return path, nil
}

// -----------------------------------------------------------------------
// Queue handlers
// -----------------------------------------------------------------------

func (o *Orchestrator) handleJD(ctx context.Context, msg *models.QueueMessage) error {
	var payload models.JDPayload
	if err := msg.DecodePayload(&payload); err != nil {
		return fmt.Errorf("invalid jd payload: %w", err)
	}

	if err := o.jd.Run(ctx, payload.JobID); err != nil {
		return err
	}
	if o.cancels.Cancelled(payload.JobID) {
		return nil
	}
	return o.startResumeFlow(ctx, payload.JobID)
}

func (o *Orchestrator) handleResume(ctx context.Context, msg *models.QueueMessage) error {
	var payload models.ResumePayload
	if err := msg.DecodePayload(&payload); err != nil {
		return fmt.Errorf("invalid resume payload: %w", err)
	}
	return o.resumes.Run(ctx, payload.ResumeID, payload.JobID)
}

// startResumeFlow enqueues every unprocessed resume as a flow child and
// launches the watcher that triggers scoring once the flow completes. Jobs
// with no pending resumes score immediately.
func (o *Orchestrator) startResumeFlow(ctx context.Context, jobID string) error {
	resumes, err := o.storage.ResumeStorage().ListResumesByJob(ctx, jobID)
	if err != nil {
		return err
	}

	var msgs []models.QueueMessage
	for _, resume := range resumes {
		if resume.Processed() {
			continue
		}
		msg, err := models.NewQueueMessage(resume.ID, models.QueueResume, models.ResumePayload{
			ResumeID: resume.ID,
			JobID:    jobID,
			FilePath: resume.FilePath,
		})
		if err != nil {
			return err
		}
		msgs = append(msgs, msg)
	}

	if len(msgs) == 0 {
		o.logger.Info().Str("job_id", jobID).Int("resumes", len(resumes)).Msg("No pending resumes, scoring directly")
		go o.scoreAndRank(jobID)
		return nil
	}

	parentID := resumeFlowID(jobID)
	if err := o.queue.EnqueueChildren(ctx, parentID, models.QueueResume, msgs); err != nil {
		return err
	}

	o.publish(jobID, models.ProgressTypeProgress, "resumes", 0, fmt.Sprintf("processing 0/%d resumes", len(msgs)))
	go o.watchResumeFlow(jobID, parentID)
	return nil
}

// watchResumeFlow polls the resume flow and fires scoring once every child
// is terminal. Individual resume failures never block scoring; the scorer
// simply skips unprocessed candidates.
func (o *Orchestrator) watchResumeFlow(jobID, parentID string) {
	ctx, cancel := context.WithTimeout(context.Background(), flowDeadline)
	defer cancel()

	ticker := time.NewTicker(flowPollInterval)
	defer ticker.Stop()

	lastReported := -1
	for {
		select {
		case <-ctx.Done():
			o.logger.Warn().Str("job_id", jobID).Msg("Resume flow watcher timed out")
			return
		case <-ticker.C:
		}

		if o.cancels.Cancelled(jobID) {
			o.logger.Info().Str("job_id", jobID).Msg("Resume flow abandoned, job cancelled")
			return
		}

		stats, err := o.queue.ChildStats(ctx, parentID)
		if err != nil {
			o.logger.Warn().Err(err).Str("job_id", jobID).Msg("Failed to poll resume flow")
			continue
		}

		done := stats.Completed + stats.Failed
		if done != lastReported {
			lastReported = done
			o.publish(jobID, models.ProgressTypeProgress, "resumes", stats.Percent(),
				fmt.Sprintf("processing %d/%d resumes", done, stats.Total))
		}

		if stats.Terminal() {
			if stats.Failed > 0 {
				o.logger.Warn().
					Str("job_id", jobID).
					Int("failed", stats.Failed).
					Int("total", stats.Total).
					Msg("Resume flow finished with failures")
			}
			o.scoreAndRank(jobID)
			return
		}
	}
}

// scoreAndRank runs the deterministic scoring pass and then either queues
// the LLM re-rank flow or finalizes ranks directly.
func (o *Orchestrator) scoreAndRank(jobID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	if o.cancels.Cancelled(jobID) {
		return
	}

	job, err := o.storage.JobStorage().GetJob(ctx, jobID)
	if err != nil {
		o.logger.Error().Err(err).Str("job_id", jobID).Msg("Scoring failed to load job")
		return
	}
	resumes, err := o.storage.ResumeStorage().ListResumesByJob(ctx, jobID)
	if err != nil {
		o.logger.Error().Err(err).Str("job_id", jobID).Msg("Scoring failed to list resumes")
		return
	}

	results := o.scorer.ScoreBatch(job, resumes)
	for _, result := range results {
		if err := o.storage.ScoreStorage().UpsertScore(ctx, result); err != nil {
			o.logger.Error().Err(err).Str("score_id", result.ID).Msg("Failed to persist score")
			return
		}
	}
	o.publish(jobID, models.ProgressTypeProgress, "scoring", 100,
		fmt.Sprintf("scored %d candidates", len(results)))

	eligible := ranking.Eligible(results)
	if !o.ranker.Enabled() || len(eligible) == 0 {
		o.finalizeRanking(ctx, jobID)
		return
	}

	msg, err := models.NewQueueMessage(jobID, models.QueueRank, models.RankPayload{
		JobID:        jobID,
		TotalBatches: o.ranker.BatchCount(len(eligible)),
	})
	if err != nil {
		o.logger.Error().Err(err).Str("job_id", jobID).Msg("Failed to build rank message")
		return
	}
	if err := o.queue.Enqueue(ctx, models.QueueRank, msg); err != nil {
		o.logger.Error().Err(err).Str("job_id", jobID).Msg("Failed to enqueue rank flow")
	}
}

// handleRank is the rank parent: it fans the eligible set out into batch
// children, waits for them, and finalizes from the persisted snapshot.
// Failed batches degrade to composite ordering for their candidates.
func (o *Orchestrator) handleRank(ctx context.Context, msg *models.QueueMessage) error {
	var payload models.RankPayload
	if err := msg.DecodePayload(&payload); err != nil {
		return fmt.Errorf("invalid rank payload: %w", err)
	}
	jobID := payload.JobID

	if o.cancels.Cancelled(jobID) {
		return nil
	}

	results, err := o.storage.ScoreStorage().ListScoresByJob(ctx, jobID)
	if err != nil {
		return err
	}
	eligible := ranking.Eligible(results)
	if len(eligible) == 0 {
		o.finalizeRanking(ctx, jobID)
		return nil
	}

	batches := o.ranker.Batches(eligible)
	msgs := make([]models.QueueMessage, 0, len(batches))
	for i, batch := range batches {
		ids := make([]string, 0, len(batch))
		for _, result := range batch {
			ids = append(ids, result.ResumeID)
		}
		child, err := models.NewQueueMessage(
			fmt.Sprintf("%s:batch:%d", jobID, i),
			models.QueueRankBatch,
			models.RankBatchPayload{JobID: jobID, BatchIndex: i, ScoreResultIDs: ids},
		)
		if err != nil {
			return err
		}
		msgs = append(msgs, child)
	}

	parentID := rankFlowID(jobID)
	if err := o.queue.EnqueueChildren(ctx, parentID, models.QueueRankBatch, msgs); err != nil {
		return err
	}

	ticker := time.NewTicker(flowPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		stats, err := o.queue.ChildStats(ctx, parentID)
		if err != nil {
			o.logger.Warn().Err(err).Str("job_id", jobID).Msg("Failed to poll rank flow")
			continue
		}
		if !stats.Terminal() {
			continue
		}

		if stats.Failed > 0 {
			o.logger.Warn().
				Str("job_id", jobID).
				Int("failed", stats.Failed).
				Int("total", stats.Total).
				Msg("Rank flow finished with failed batches, degrading to composite order for them")
		}
		o.finalizeRanking(ctx, jobID)
		return nil
	}
}

// handleRankBatch re-ranks one batch and persists the per-candidate LLM
// scores. A returned error redelivers the batch; the parent tolerates
// exhausted batches.
func (o *Orchestrator) handleRankBatch(ctx context.Context, msg *models.QueueMessage) error {
	var payload models.RankBatchPayload
	if err := msg.DecodePayload(&payload); err != nil {
		return fmt.Errorf("invalid rank batch payload: %w", err)
	}

	if o.cancels.Cancelled(payload.JobID) {
		return nil
	}

	job, err := o.storage.JobStorage().GetJob(ctx, payload.JobID)
	if err != nil {
		return err
	}

	batch := make([]*models.ScoreResult, 0, len(payload.ScoreResultIDs))
	resumes := make(map[string]*models.Resume, len(payload.ScoreResultIDs))
	for _, resumeID := range payload.ScoreResultIDs {
		result, err := o.storage.ScoreStorage().GetScore(ctx, payload.JobID, resumeID)
		if err != nil {
			return err
		}
		batch = append(batch, result)

		resume, err := o.storage.ResumeStorage().GetResume(ctx, resumeID)
		if err != nil {
			return err
		}
		resumes[resumeID] = resume
	}

	scores, err := o.ranker.RerankBatch(ctx, job, batch, resumes)
	if err != nil {
		return fmt.Errorf("rank batch %d: %w", payload.BatchIndex, err)
	}

	for _, result := range batch {
		score, ok := scores[result.ResumeID]
		if !ok {
			continue
		}
		s := score
		result.LLMRerankScore = &s
		if err := o.storage.ScoreStorage().UpsertScore(ctx, result); err != nil {
			return err
		}
	}

	o.logger.Info().
		Str("job_id", payload.JobID).
		Int("batch", payload.BatchIndex).
		Int("scored", len(scores)).
		Msg("Rank batch completed")
	return nil
}

// finalizeRanking orders the eligible snapshot, persists ranks, writes the
// PDF report, and emits the terminal ranking event.
func (o *Orchestrator) finalizeRanking(ctx context.Context, jobID string) {
	results, err := o.storage.ScoreStorage().ListScoresByJob(ctx, jobID)
	if err != nil {
		o.logger.Error().Err(err).Str("job_id", jobID).Msg("Finalize failed to load scores")
		return
	}

	eligible := ranking.Eligible(results)
	llmScores := make(map[string]float64, len(eligible))
	for _, result := range eligible {
		if result.LLMRerankScore != nil {
			llmScores[result.ResumeID] = *result.LLMRerankScore
		}
	}
	o.ranker.Finalize(eligible, llmScores)

	for _, result := range eligible {
		if err := o.storage.ScoreStorage().UpsertScore(ctx, result); err != nil {
			o.logger.Error().Err(err).Str("score_id", result.ID).Msg("Failed to persist rank")
			return
		}
	}

	job, err := o.storage.JobStorage().GetJob(ctx, jobID)
	if err != nil {
		o.logger.Error().Err(err).Str("job_id", jobID).Msg("Finalize failed to load job")
		return
	}

	resumes, err := o.storage.ResumeStorage().ListResumesByJob(ctx, jobID)
	if err != nil {
		o.logger.Error().Err(err).Str("job_id", jobID).Msg("Finalize failed to list resumes")
		return
	}
	resumeMap := make(map[string]*models.Resume, len(resumes))
	for _, resume := range resumes {
		resumeMap[resume.ID] = resume
	}

	if path, err := o.reports.WriteRankingReport(job, results, resumeMap); err != nil {
		o.logger.Warn().Err(err).Str("job_id", jobID).Msg("Failed to write ranking report")
	} else {
		o.logger.Info().Str("job_id", jobID).Str("path", path).Msg("Ranking report written")
	}

	o.publish(jobID, models.ProgressTypeComplete, "ranking", 100,
		fmt.Sprintf("ranked %d of %d candidates", len(eligible), len(results)))
	o.logger.Info().
		Str("job_id", jobID).
		Int("ranked", len(eligible)).
		Int("total", len(results)).
		Msg("Ranking finalized")
}

func (o *Orchestrator) publish(jobID string, eventType models.ProgressEventType, stage string, percent int, message string) {
	o.progress.Publish(models.ProgressEvent{
		Type:      eventType,
		JobID:     jobID,
		Stage:     stage,
		Percent:   percent,
		Message:   message,
		Timestamp: time.Now(),
	})
}

func resumeFlowID(jobID string) string { return "resumes:" + jobID }
func rankFlowID(jobID string) string   { return "rank:" + jobID }
