package orchestrator

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/seligo/internal/common"
	"github.com/ternarybob/seligo/internal/interfaces"
	"github.com/ternarybob/seligo/internal/models"
	"github.com/ternarybob/seligo/internal/pipeline"
	"github.com/ternarybob/seligo/internal/queue"
	"github.com/ternarybob/seligo/internal/services/compliance"
	"github.com/ternarybob/seligo/internal/services/embeddings"
	"github.com/ternarybob/seligo/internal/services/llm"
	"github.com/ternarybob/seligo/internal/services/progress"
	"github.com/ternarybob/seligo/internal/services/ranking"
	"github.com/ternarybob/seligo/internal/services/report"
	"github.com/ternarybob/seligo/internal/services/scoring"
	storage "github.com/ternarybob/seligo/internal/storage/badger"
)

// stubExtractor returns fixed text for any pdf path.
type stubExtractor struct{}

func (s *stubExtractor) ExtractText(ctx context.Context, path string) (string, error) {
	return "Extracted document text.", nil
}

// stubModelClient answers each schema with a canned payload and returns
// fixed-dimension embedding vectors.
type stubModelClient struct {
	mu        sync.Mutex
	completes int
}

func (s *stubModelClient) Complete(ctx context.Context, req *interfaces.CompleteRequest) (json.RawMessage, error) {
	s.mu.Lock()
	s.completes++
	s.mu.Unlock()

	switch req.SchemaName {
	case llm.SchemaNameParseJD:
		return json.RawMessage(`{
			"role_title": "Backend Engineer",
			"seniority": "senior",
			"required_skills": ["Go"],
			"keywords_weighted": [{"keyword": "go", "weight": 1.0}],
			"years_experience_required": 3,
			"domain_tags": ["backend"]
		}`), nil
	case llm.SchemaNameParseResume:
		return json.RawMessage(`{"name": "Alex Doe", "years_experience": 6}`), nil
	default:
		return json.RawMessage(`{"mandatory": [], "soft": []}`), nil
	}
}

func (s *stubModelClient) Embed(ctx context.Context, texts []string, model string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1, 0, 0}
	}
	return out, nil
}

func (s *stubModelClient) Close() error { return nil }

type orchestratorFixture struct {
	orchestrator *Orchestrator
	manager      *storage.Manager
	cancels      *CancelRegistry
	hub          *progress.Hub
}

func newOrchestratorFixture(t *testing.T) *orchestratorFixture {
	t.Helper()
	logger := common.GetLogger()

	manager, err := storage.NewManager(logger, &common.BadgerConfig{Path: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = manager.Close() })

	broker := queue.NewBroker(manager.DB().Badger(), &common.QueueConfig{
		PollInterval:      "20ms",
		VisibilityTimeout: "2s",
		MaxReceive:        2,
		RetryInitialWait:  "10ms",
		JDConcurrency:     1,
		ResumeConcurrency: 2,
		RankConcurrency:   1,
	}, logger)

	client := &stubModelClient{}
	extractor := &stubExtractor{}
	embedConfig := &common.EmbeddingConfig{
		Model:            "test-embed",
		Dimension:        3,
		SentenceMinChars: 2,
		OverallMaxChars:  1000,
		CacheTTL:         "1h",
	}
	embedder := embeddings.NewService(client, manager.KeyValueStorage(), embedConfig, logger)
	hub := progress.NewHub(progress.DefaultBufferSize, logger)
	cancels := NewCancelRegistry()

	pipelineConfig := &common.PipelineConfig{
		ResumeDeadline: "1m",
		UploadDir:      t.TempDir(),
		ReportDir:      t.TempDir(),
	}

	jd := pipeline.NewJDPipeline(manager, client, embedder, extractor, hub, cancels, embedConfig, logger)
	resumes := pipeline.NewResumePipeline(manager, client, embedder, extractor, hub, cancels, embedConfig, pipelineConfig, logger)
	scorer := scoring.NewScorer(compliance.NewFilter(logger), &common.ScoringConfig{}, logger)
	ranker := ranking.NewRanker(nil, &common.RankingConfig{Enabled: false, BatchSize: 10}, logger)
	reports := report.NewService(pipelineConfig.ReportDir, logger)

	orchestrator := New(manager, broker, jd, resumes, scorer, ranker, reports, hub, cancels, pipelineConfig, logger)
	orchestrator.RegisterHandlers()

	return &orchestratorFixture{
		orchestrator: orchestrator,
		manager:      manager,
		cancels:      cancels,
		hub:          hub,
	}
}

func collectUntilComplete(t *testing.T, events <-chan models.ProgressEvent, stage string) []models.ProgressEvent {
	t.Helper()
	var out []models.ProgressEvent
	deadline := time.After(5 * time.Second)
	for {
		select {
		case e := <-events:
			out = append(out, e)
			if e.Stage == stage && e.Type == models.ProgressTypeComplete {
				return out
			}
		case <-deadline:
			t.Fatalf("timed out waiting for terminal event of stage %s", stage)
		}
	}
}

func TestJobLifecycleSubmitAndCancel(t *testing.T) {
	f := newOrchestratorFixture(t)
	ctx := context.Background()

	job, err := f.orchestrator.CreateJob(ctx, "Backend Engineer", "We need Go engineers.", "", "")
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusDraft, job.Status)

	require.NoError(t, f.orchestrator.SubmitJob(ctx, job.ID))
	queued, err := f.manager.JobStorage().GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusQueued, queued.Status)

	// A queued job cannot be submitted again.
	assert.Error(t, f.orchestrator.SubmitJob(ctx, job.ID))

	// Cancelling a queued job fails it immediately.
	require.NoError(t, f.orchestrator.CancelJob(ctx, job.ID))
	cancelled, err := f.manager.JobStorage().GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusFailed, cancelled.Status)
	assert.Equal(t, "cancelled", cancelled.Error)
	assert.True(t, f.cancels.Cancelled(job.ID))

	// Terminal jobs cannot be cancelled again.
	assert.Error(t, f.orchestrator.CancelJob(ctx, job.ID))

	// Resubmitting a failed job clears the cancellation and requeues it.
	require.NoError(t, f.orchestrator.SubmitJob(ctx, job.ID))
	resubmitted, err := f.manager.JobStorage().GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusQueued, resubmitted.Status)
	assert.False(t, f.cancels.Cancelled(job.ID))
}

func TestSubmitJobRequiresInput(t *testing.T) {
	f := newOrchestratorFixture(t)
	ctx := context.Background()

	job, err := f.orchestrator.CreateJob(ctx, "Backend Engineer", "", "", "")
	require.NoError(t, err)

	err = f.orchestrator.SubmitJob(ctx, job.ID)
	require.Error(t, err)

	// The rejected submission leaves the job in draft.
	stored, err := f.manager.JobStorage().GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusDraft, stored.Status)
}

func TestAttachJDPDFRejectsLockedJob(t *testing.T) {
	f := newOrchestratorFixture(t)
	ctx := context.Background()

	job, err := f.orchestrator.CreateJob(ctx, "Backend Engineer", "jd text", "", "")
	require.NoError(t, err)

	require.NoError(t, f.orchestrator.AttachJDPDF(ctx, job.ID, "jd.pdf", []byte("%PDF-1.4")))
	stored, err := f.manager.JobStorage().GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.NotEmpty(t, stored.JDPDFRef)

	// Once processing locks the job, the jd can no longer change.
	require.NoError(t, f.manager.JobStorage().SetJobLocked(ctx, job.ID, true))
	assert.Error(t, f.orchestrator.AttachJDPDF(ctx, job.ID, "jd2.pdf", []byte("%PDF-1.4")))
}

func TestJobStageProgression(t *testing.T) {
	f := newOrchestratorFixture(t)
	ctx := context.Background()

	job, err := f.orchestrator.CreateJob(ctx, "Backend Engineer", "We need Go engineers.", "", "")
	require.NoError(t, err)
	require.NoError(t, f.orchestrator.SubmitJob(ctx, job.ID))

	sub := f.hub.Subscribe(job.ID)
	defer f.hub.Unsubscribe(job.ID, sub.ID)

	msg, err := models.NewQueueMessage(job.ID, models.QueueJD, models.JDPayload{JobID: job.ID})
	require.NoError(t, err)
	require.NoError(t, f.orchestrator.handleJD(ctx, &msg))

	// With no resumes uploaded the flow scores directly and finalizes; the
	// ranking stage emits the job's terminal event.
	events := collectUntilComplete(t, sub.Events, "ranking")

	// Stages progress strictly in pipeline order.
	order := map[string]int{}
	for i, e := range events {
		if _, seen := order[e.Stage]; !seen {
			order[e.Stage] = i
		}
	}
	stages := []string{
		pipeline.StageTextCollect,
		pipeline.StageParse,
		pipeline.StageComplianceStructure,
		pipeline.StageEmbed,
		pipeline.StagePersist,
	}
	for i := 1; i < len(stages); i++ {
		prev, ok := order[stages[i-1]]
		require.True(t, ok, "missing stage %s", stages[i-1])
		curr, ok := order[stages[i]]
		require.True(t, ok, "missing stage %s", stages[i])
		assert.Less(t, prev, curr, "stage %s before %s", stages[i-1], stages[i])
	}

	// The jd pipeline ends in a terminal completed state with every derived
	// artifact persisted, and the job is locked for the rest of its life.
	processed, err := f.manager.JobStorage().GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusCompleted, processed.Status)
	assert.True(t, processed.Locked)
	require.NotNil(t, processed.Analysis)
	assert.Equal(t, "Backend Engineer", processed.Analysis.RoleTitle)
	assert.True(t, processed.Embeddings.Complete())
	require.NotNil(t, processed.FilterRequirements)

	// Re-delivering the same message is a no-op for a completed job.
	require.NoError(t, f.orchestrator.handleJD(ctx, &msg))
	final, err := f.manager.JobStorage().GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusCompleted, final.Status)
}
