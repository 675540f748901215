// -----------------------------------------------------------------------
// JD Pipeline - turns a raw job description into analysis, typed filter
// requirements and section embeddings
// -----------------------------------------------------------------------

package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/seligo/internal/common"
	"github.com/ternarybob/seligo/internal/interfaces"
	"github.com/ternarybob/seligo/internal/models"
	"github.com/ternarybob/seligo/internal/services/embeddings"
	"github.com/ternarybob/seligo/internal/services/llm"
)

// JD pipeline stage names. Progress percent is monotonic within the job:
// each stage owns a band and publishes its upper bound on completion.
const (
	StageTextCollect         = "text_collect"
	StageParse               = "parse"
	StageComplianceStructure = "compliance_structure"
	StageEmbed               = "embed"
	StagePersist             = "persist"
)

// CancelChecker reports whether a job has been cancelled. Checks happen at
// stage boundaries only; in-flight provider calls run to completion.
type CancelChecker interface {
	Cancelled(jobID string) bool
}

// JDPipeline executes the five JD stages for one job.
type JDPipeline struct {
	storage   interfaces.StorageManager
	client    interfaces.ModelClient
	embedder  *embeddings.Service
	extractor interfaces.PDFExtractor
	progress  interfaces.ProgressPublisher
	cancel    CancelChecker
	config    *common.EmbeddingConfig
	logger    arbor.ILogger
}

func NewJDPipeline(
	storage interfaces.StorageManager,
	client interfaces.ModelClient,
	embedder *embeddings.Service,
	extractor interfaces.PDFExtractor,
	progress interfaces.ProgressPublisher,
	cancel CancelChecker,
	config *common.EmbeddingConfig,
	logger arbor.ILogger,
) *JDPipeline {
	return &JDPipeline{
		storage:   storage,
		client:    client,
		embedder:  embedder,
		extractor: extractor,
		progress:  progress,
		cancel:    cancel,
		config:    config,
		logger:    logger,
	}
}

// Run processes one job end to end. Re-running a completed job is a no-op.
// Any stage failure marks the job failed and emits a terminal failed event;
// the error propagates so the broker can retry the message.
func (p *JDPipeline) Run(ctx context.Context, jobID string) error {
	jobs := p.storage.JobStorage()

	job, err := jobs.GetJob(ctx, jobID)
	if err != nil {
		return fmt.Errorf("failed to load job %s: %w", jobID, err)
	}

	if job.Status == models.JobStatusCompleted && job.Analysis != nil && job.Embeddings.Complete() {
		p.logger.Info().Str("job_id", jobID).Msg("Job already completed, skipping")
		p.publish(jobID, models.ProgressTypeComplete, StagePersist, 100, "already completed")
		return nil
	}

	// Processing locks the job: jd text and compliance prompts are immutable
	// from here on.
	if err := jobs.UpdateJobStatus(ctx, jobID, models.JobStatusProcessing, ""); err != nil {
		return err
	}
	if err := jobs.SetJobLocked(ctx, jobID, true); err != nil {
		return err
	}

	if p.cancelled(jobID, StageTextCollect) {
		return nil
	}

	jdText, err := p.collectText(ctx, job)
	if err != nil {
		return p.fail(ctx, jobID, StageTextCollect, err)
	}
	p.publish(jobID, models.ProgressTypeProgress, StageTextCollect, 10, "jd text collected")

	if p.cancelled(jobID, StageParse) {
		return nil
	}

	analysis, err := p.parse(ctx, jdText)
	if err != nil {
		return p.fail(ctx, jobID, StageParse, err)
	}
	p.publish(jobID, models.ProgressTypeProgress, StageParse, 45, "jd analyzed")

	if p.cancelled(jobID, StageComplianceStructure) {
		return nil
	}

	requirements, err := p.structureCompliance(ctx, job)
	if err != nil {
		return p.fail(ctx, jobID, StageComplianceStructure, err)
	}
	p.publish(jobID, models.ProgressTypeProgress, StageComplianceStructure, 60, "filter requirements structured")

	if p.cancelled(jobID, StageEmbed) {
		return nil
	}

	sectionTexts := embeddings.JDSectionTexts(analysis, jdText, p.config.OverallMaxChars)
	jdEmbeddings, err := p.embedder.EmbedSections(ctx, sectionTexts, p.config.SentenceMinChars)
	if err != nil {
		return p.fail(ctx, jobID, StageEmbed, err)
	}
	p.publish(jobID, models.ProgressTypeProgress, StageEmbed, 95, "jd sections embedded")

	if p.cancelled(jobID, StagePersist) {
		return nil
	}

	// All three artifacts land in one upsert so a reader never observes a
	// partially processed job.
	if err := jobs.SaveJobArtifacts(ctx, jobID, analysis, jdEmbeddings, requirements); err != nil {
		return p.fail(ctx, jobID, StagePersist, err)
	}
	if err := jobs.UpdateJobStatus(ctx, jobID, models.JobStatusCompleted, ""); err != nil {
		return p.fail(ctx, jobID, StagePersist, err)
	}

	p.publish(jobID, models.ProgressTypeComplete, StagePersist, 100, "jd ready")
	p.logger.Info().Str("job_id", jobID).Str("role", analysis.RoleTitle).Msg("JD pipeline completed")
	return nil
}

// collectText concatenates extracted PDF text and the supplied jd text.
func (p *JDPipeline) collectText(ctx context.Context, job *models.Job) (string, error) {
	var parts []string

	if job.JDPDFRef != "" {
		extracted, err := p.extractor.ExtractText(ctx, job.JDPDFRef)
		if err != nil {
			return "", fmt.Errorf("failed to extract jd pdf: %w", err)
		}
		if strings.TrimSpace(extracted) != "" {
			parts = append(parts, extracted)
		}
	}
	if strings.TrimSpace(job.RawJDText) != "" {
		parts = append(parts, job.RawJDText)
	}

	if len(parts) == 0 {
		return "", fmt.Errorf("job has no jd text and no extractable pdf")
	}
	return strings.Join(parts, "\n\n"), nil
}

func (p *JDPipeline) parse(ctx context.Context, jdText string) (*models.JDAnalysis, error) {
	raw, err := p.client.Complete(ctx, &interfaces.CompleteRequest{
		SchemaName: llm.SchemaNameParseJD,
		Schema:     llm.ParseJDSchema(),
		System:     jdParseSystem,
		Prompt:     jdParsePrompt(jdText),
	})
	if err != nil {
		return nil, err
	}
	return decodeJDAnalysis(raw)
}

// structureCompliance turns the free-text prompts into typed requirements.
// Jobs without prompts get empty (non-nil) requirement blocks, so every
// downstream consumer can rely on the structure being present.
func (p *JDPipeline) structureCompliance(ctx context.Context, job *models.Job) (*models.FilterRequirements, error) {
	if strings.TrimSpace(job.MandatoryPrompt) == "" && strings.TrimSpace(job.SoftPrompt) == "" {
		return &models.FilterRequirements{
			Mandatory: map[string]models.RequirementSpec{},
			Soft:      map[string]models.RequirementSpec{},
		}, nil
	}

	raw, err := p.client.Complete(ctx, &interfaces.CompleteRequest{
		SchemaName: llm.SchemaNameParseCompliance,
		Schema:     llm.ParseComplianceSchema(),
		System:     complianceParseSystem,
		Prompt:     complianceParsePrompt(job.MandatoryPrompt, job.SoftPrompt),
	})
	if err != nil {
		return nil, err
	}
	return decodeFilterRequirements(raw)
}

func (p *JDPipeline) cancelled(jobID, stage string) bool {
	if p.cancel == nil || !p.cancel.Cancelled(jobID) {
		return false
	}
	p.logger.Info().Str("job_id", jobID).Str("stage", stage).Msg("Job cancelled, abandoning pipeline")
	p.publish(jobID, models.ProgressTypeCancelled, stage, 100, "cancelled")
	p.storage.JobStorage().UpdateJobStatus(context.Background(), jobID, models.JobStatusFailed, "cancelled")
	return true
}

// fail marks the job failed and emits the terminal failed event. The error
// is returned unchanged for the broker's retry accounting.
func (p *JDPipeline) fail(ctx context.Context, jobID, stage string, err error) error {
	p.logger.Error().Err(err).Str("job_id", jobID).Str("stage", stage).Msg("JD pipeline stage failed")
	if updateErr := p.storage.JobStorage().UpdateJobStatus(ctx, jobID, models.JobStatusFailed, err.Error()); updateErr != nil {
		p.logger.Warn().Err(updateErr).Str("job_id", jobID).Msg("Failed to record job failure")
	}
	p.publish(jobID, models.ProgressTypeFailed, stage, 100, err.Error())
	return fmt.Errorf("jd stage %s: %w", stage, err)
}

func (p *JDPipeline) publish(jobID string, eventType models.ProgressEventType, stage string, percent int, message string) {
	p.progress.Publish(models.ProgressEvent{
		Type:      eventType,
		JobID:     jobID,
		Stage:     stage,
		Percent:   percent,
		Message:   message,
		Timestamp: time.Now(),
	})
}
