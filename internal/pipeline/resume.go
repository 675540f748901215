// -----------------------------------------------------------------------
// Resume Pipeline - extract, parse and embed one candidate resume
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

// Resume pipeline stage names.
const (
	StageExtract       = "extract"
	StageResumeParse   = "resume_parse"
	StageResumeEmbed   = "resume_embed"
	StageResumePersist = "resume_persist"
)

// ResumePipeline executes the per-resume stages. Handlers are idempotent:
// a stage whose output already exists with success status is skipped, so
// at-least-once queue delivery cannot duplicate provider work.
type ResumePipeline struct {
	storage   interfaces.StorageManager
	client    interfaces.ModelClient
	embedder  *embeddings.Service
	extractor interfaces.PDFExtractor
	progress  interfaces.ProgressPublisher
	cancel    CancelChecker
	config    *common.EmbeddingConfig
	deadline  time.Duration
	logger    arbor.ILogger
}

func NewResumePipeline(
	storage interfaces.StorageManager,
	client interfaces.ModelClient,
	embedder *embeddings.Service,
	extractor interfaces.PDFExtractor,
	progress interfaces.ProgressPublisher,
	cancel CancelChecker,
	embedConfig *common.EmbeddingConfig,
	pipelineConfig *common.PipelineConfig,
	logger arbor.ILogger,
) *ResumePipeline {
	return &ResumePipeline{
		storage:   storage,
		client:    client,
		embedder:  embedder,
		extractor: extractor,
		progress:  progress,
		cancel:    cancel,
		config:    embedConfig,
		deadline:  common.MustDuration(pipelineConfig.ResumeDeadline, 5*time.Minute),
		logger:    logger,
	}
}

// Run processes one resume under the overall pipeline deadline. A fully
// processed resume is a no-op. Failures mark the failing stage and
// propagate for broker retry; later stages are reset by the status writer
// so the ordering invariant across stages holds.
func (p *ResumePipeline) Run(ctx context.Context, resumeID, jobID string) error {
	ctx, cancel := context.WithTimeout(ctx, p.deadline)
	defer cancel()

	resumes := p.storage.ResumeStorage()

	resume, err := resumes.GetResume(ctx, resumeID)
	if err != nil {
		return fmt.Errorf("failed to load resume %s: %w", resumeID, err)
	}

	if resume.Processed() {
		p.logger.Info().Str("resume_id", resumeID).Msg("Resume already processed, skipping")
		p.publish(jobID, resumeID, models.ProgressTypeComplete, 100, "already processed")
		return nil
	}

	job, err := p.storage.JobStorage().GetJob(ctx, jobID)
	if err != nil {
		return fmt.Errorf("failed to load job %s: %w", jobID, err)
	}

	if p.cancelledResume(jobID, resumeID, StageExtract) {
		return nil
	}

	rawText, err := p.extract(ctx, resume)
	if err != nil {
		return p.fail(ctx, jobID, resumeID, interfaces.ResumeStageExtraction, err)
	}
	p.publish(jobID, resumeID, models.ProgressTypeProgress, 15, "text extracted")

	if p.cancelledResume(jobID, resumeID, StageResumeParse) {
		return nil
	}

	parsed, err := p.parse(ctx, resume, rawText, job)
	if err != nil {
		return p.fail(ctx, jobID, resumeID, interfaces.ResumeStageParsing, err)
	}
	p.publish(jobID, resumeID, models.ProgressTypeProgress, 50, "resume parsed")

	if p.cancelledResume(jobID, resumeID, StageResumeEmbed) {
		return nil
	}

	if err := p.embed(ctx, resume, parsed, rawText); err != nil {
		return p.fail(ctx, jobID, resumeID, interfaces.ResumeStageEmbedding, err)
	}
	p.publish(jobID, resumeID, models.ProgressTypeProgress, 95, "resume embedded")

	p.publish(jobID, resumeID, models.ProgressTypeComplete, 100, "resume processed")
	p.logger.Info().
		Str("resume_id", resumeID).
		Str("job_id", jobID).
		Str("candidate", parsed.Name).
		Msg("Resume pipeline completed")
	return nil
}

// extract returns the resume's raw text, extracting from the PDF only when
// no successful extraction is stored.
func (p *ResumePipeline) extract(ctx context.Context, resume *models.Resume) (string, error) {
	resumes := p.storage.ResumeStorage()

	if resume.ExtractionStatus == models.StageSuccess && strings.TrimSpace(resume.RawText) != "" {
		return resume.RawText, nil
	}

	if err := resumes.UpdateStageStatus(ctx, resume.ID, interfaces.ResumeStageExtraction, models.StageProcessing, ""); err != nil {
		return "", err
	}

	if resume.FilePath == "" {
		return "", fmt.Errorf("resume has no file path")
	}

	rawText, err := p.extractor.ExtractText(ctx, resume.FilePath)
	if err != nil {
		return "", fmt.Errorf("failed to extract resume pdf: %w", err)
	}
	if strings.TrimSpace(rawText) == "" {
		return "", fmt.Errorf("resume pdf produced no text")
	}

	if err := resumes.SaveRawText(ctx, resume.ID, rawText); err != nil {
		return "", err
	}
	if err := resumes.UpdateStageStatus(ctx, resume.ID, interfaces.ResumeStageExtraction, models.StageSuccess, ""); err != nil {
		return "", err
	}

	resume.RawText = rawText
	return rawText, nil
}

// parse runs the structured resume parse. The JD's domain tags anchor the
// project metric scoring.
func (p *ResumePipeline) parse(ctx context.Context, resume *models.Resume, rawText string, job *models.Job) (*models.ParsedResume, error) {
	resumes := p.storage.ResumeStorage()

	if resume.ParsingStatus == models.StageSuccess && resume.Parsed != nil {
		return resume.Parsed, nil
	}

	if err := resumes.UpdateStageStatus(ctx, resume.ID, interfaces.ResumeStageParsing, models.StageProcessing, ""); err != nil {
		return nil, err
	}

	var domainTags []string
	if job.Analysis != nil {
		domainTags = job.Analysis.DomainTags
	}

	raw, err := p.client.Complete(ctx, &interfaces.CompleteRequest{
		SchemaName: llm.SchemaNameParseResume,
		Schema:     llm.ParseResumeSchema(),
		System:     resumeParseSystem,
		Prompt:     resumeParsePrompt(rawText, domainTags),
	})
	if err != nil {
		return nil, err
	}

	parsed, err := decodeParsedResume(raw)
	if err != nil {
		return nil, err
	}

	if err := resumes.SaveParsedContent(ctx, resume.ID, parsed); err != nil {
		return nil, err
	}
	if err := resumes.UpdateStageStatus(ctx, resume.ID, interfaces.ResumeStageParsing, models.StageSuccess, ""); err != nil {
		return nil, err
	}

	resume.Parsed = parsed
	return parsed, nil
}

// embed produces the six section vectors. The content-addressed cache means
// a re-submitted identical resume issues no provider calls here.
func (p *ResumePipeline) embed(ctx context.Context, resume *models.Resume, parsed *models.ParsedResume, rawText string) error {
	resumes := p.storage.ResumeStorage()

	if resume.EmbeddingStatus == models.StageSuccess && resume.Embeddings.Complete() {
		return nil
	}

	if err := resumes.UpdateStageStatus(ctx, resume.ID, interfaces.ResumeStageEmbedding, models.StageProcessing, ""); err != nil {
		return err
	}

	sectionTexts := embeddings.ResumeSectionTexts(parsed, rawText, p.config.OverallMaxChars)
	sectionEmbeddings, err := p.embedder.EmbedSections(ctx, sectionTexts, p.config.SentenceMinChars)
	if err != nil {
		return err
	}

	if err := resumes.SaveResumeEmbeddings(ctx, resume.ID, sectionEmbeddings); err != nil {
		return err
	}
	return resumes.UpdateStageStatus(ctx, resume.ID, interfaces.ResumeStageEmbedding, models.StageSuccess, "")
}

func (p *ResumePipeline) cancelledResume(jobID, resumeID, stage string) bool {
	if p.cancel == nil || !p.cancel.Cancelled(jobID) {
		return false
	}
	p.logger.Info().
		Str("job_id", jobID).
		Str("resume_id", resumeID).
		Str("stage", stage).
		Msg("Job cancelled, abandoning resume")
	p.publish(jobID, resumeID, models.ProgressTypeCancelled, 100, "cancelled")
	return true
}

// fail records the failing stage (later stage statuses are reset by the
// status writer) and propagates the error for broker retry.
func (p *ResumePipeline) fail(ctx context.Context, jobID, resumeID string, stage interfaces.ResumeStage, err error) error {
	p.logger.Error().
		Err(err).
		Str("resume_id", resumeID).
		Str("stage", string(stage)).
		Msg("Resume pipeline stage failed")

	if updateErr := p.storage.ResumeStorage().UpdateStageStatus(ctx, resumeID, stage, models.StageFailed, err.Error()); updateErr != nil {
		p.logger.Warn().Err(updateErr).Str("resume_id", resumeID).Msg("Failed to record resume failure")
	}
	p.publish(jobID, resumeID, models.ProgressTypeFailed, 100, err.Error())
	return fmt.Errorf("resume stage %s: %w", stage, err)
}

// publish emits a per-resume progress event. The stage key scopes the
// hub's monotonic-percent and replay behavior to this resume.
func (p *ResumePipeline) publish(jobID, resumeID string, eventType models.ProgressEventType, percent int, message string) {
	p.progress.Publish(models.ProgressEvent{
		Type:      eventType,
		JobID:     jobID,
		Stage:     "resume:" + resumeID,
		Percent:   percent,
		Message:   message,
		Timestamp: time.Now(),
	})
}
