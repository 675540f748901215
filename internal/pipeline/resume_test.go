package pipeline

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
	"github.com/ternarybob/seligo/internal/services/embeddings"
	"github.com/ternarybob/seligo/internal/services/progress"
	storage "github.com/ternarybob/seligo/internal/storage/badger"
)

// stubExtractor counts ExtractText calls and returns fixed text.
type stubExtractor struct {
	mu    sync.Mutex
	calls int
	text  string
}

func (s *stubExtractor) ExtractText(ctx context.Context, path string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return s.text, nil
}

func (s *stubExtractor) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// stubModelClient counts provider calls, returns a canned parse payload and
// fixed-dimension embedding vectors.
type stubModelClient struct {
	mu         sync.Mutex
	completes  int
	embeds     int
	parsedJSON json.RawMessage
}

func (s *stubModelClient) Complete(ctx context.Context, req *interfaces.CompleteRequest) (json.RawMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.completes++
	return s.parsedJSON, nil
}

func (s *stubModelClient) Embed(ctx context.Context, texts []string, model string) ([][]float32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.embeds++
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1, 0, 0}
	}
	return out, nil
}

func (s *stubModelClient) Close() error { return nil }

func (s *stubModelClient) providerCalls() (completes, embeds int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.completes, s.embeds
}

type resumePipelineFixture struct {
	pipeline  *ResumePipeline
	manager   *storage.Manager
	extractor *stubExtractor
	client    *stubModelClient
	hub       *progress.Hub
}

func newResumePipelineFixture(t *testing.T) *resumePipelineFixture {
	t.Helper()

	manager, err := storage.NewManager(common.GetLogger(), &common.BadgerConfig{Path: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = manager.Close() })

	extractor := &stubExtractor{text: "Alex Doe. Backend engineer working in Go."}
	client := &stubModelClient{
		parsedJSON: json.RawMessage(`{
			"name": "Alex Doe",
			"location": "Berlin",
			"years_experience": 6,
			"summary": "Backend engineer working in Go.",
			"experience_entries": [
				{"title": "Engineer", "company": "Acme", "description": "Built services in Go."}
			]
		}`),
	}

	embedConfig := &common.EmbeddingConfig{
		Model:            "test-embed",
		Dimension:        3,
		SentenceMinChars: 2,
		OverallMaxChars:  1000,
		CacheTTL:         "1h",
	}
	embedder := embeddings.NewService(client, manager.KeyValueStorage(), embedConfig, common.GetLogger())
	hub := progress.NewHub(progress.DefaultBufferSize, common.GetLogger())

	pipeline := NewResumePipeline(
		manager, client, embedder, extractor, hub, nil,
		embedConfig, &common.PipelineConfig{ResumeDeadline: "1m"}, common.GetLogger(),
	)

	return &resumePipelineFixture{
		pipeline:  pipeline,
		manager:   manager,
		extractor: extractor,
		client:    client,
		hub:       hub,
	}
}

func (f *resumePipelineFixture) saveJob(t *testing.T, ctx context.Context, jobID string) {
	t.Helper()
	now := time.Now()
	require.NoError(t, f.manager.JobStorage().SaveJob(ctx, &models.Job{
		ID:        jobID,
		Title:     "Backend Engineer",
		RawJDText: "We need Go engineers.",
		Status:    models.JobStatusProcessing,
		CreatedAt: now,
		UpdatedAt: now,
	}))
}

func completeSectionEmbeddings() *models.SectionEmbeddings {
	sections := make(map[string][][]float32, len(models.SectionNames))
	for _, name := range models.SectionNames {
		sections[name] = [][]float32{{1, 0, 0}}
	}
	return &models.SectionEmbeddings{Model: "test-embed", Dimension: 3, Sections: sections}
}

func TestResumePipelineProcessedResumeIsNoOp(t *testing.T) {
	f := newResumePipelineFixture(t)
	ctx := context.Background()
	f.saveJob(t, ctx, "job_1")

	now := time.Now()
	require.NoError(t, f.manager.ResumeStorage().SaveResume(ctx, &models.Resume{
		ID:               "res_1",
		JobID:            "job_1",
		Filename:         "alex.pdf",
		FilePath:         "/nonexistent/alex.pdf",
		RawText:          "stored resume text",
		ExtractionStatus: models.StageSuccess,
		ParsingStatus:    models.StageSuccess,
		EmbeddingStatus:  models.StageSuccess,
		Parsed:           &models.ParsedResume{Name: "Alex Doe"},
		Embeddings:       completeSectionEmbeddings(),
		CreatedAt:        now,
		UpdatedAt:        now,
	}))

	sub := f.hub.Subscribe("job_1")
	defer f.hub.Unsubscribe("job_1", sub.ID)

	// Redelivery of a fully processed resume must cost nothing.
	require.NoError(t, f.pipeline.Run(ctx, "res_1", "job_1"))

	assert.Zero(t, f.extractor.callCount())
	completes, embeds := f.client.providerCalls()
	assert.Zero(t, completes)
	assert.Zero(t, embeds)

	select {
	case e := <-sub.Events:
		assert.Equal(t, models.ProgressTypeComplete, e.Type)
		assert.Equal(t, 100, e.Percent)
		assert.Equal(t, "resume:res_1", e.Stage)
	case <-time.After(100 * time.Millisecond):
		t.Fatal("expected a terminal progress event")
	}
}

func TestResumePipelineSkipsSucceededStages(t *testing.T) {
	f := newResumePipelineFixture(t)
	ctx := context.Background()
	f.saveJob(t, ctx, "job_1")

	// Extraction already succeeded on an earlier delivery; parse and embed
	// are still pending.
	now := time.Now()
	require.NoError(t, f.manager.ResumeStorage().SaveResume(ctx, &models.Resume{
		ID:               "res_1",
		JobID:            "job_1",
		Filename:         "alex.pdf",
		FilePath:         "/nonexistent/alex.pdf",
		RawText:          "stored resume text",
		ExtractionStatus: models.StageSuccess,
		ParsingStatus:    models.StagePending,
		EmbeddingStatus:  models.StagePending,
		CreatedAt:        now,
		UpdatedAt:        now,
	}))

	require.NoError(t, f.pipeline.Run(ctx, "res_1", "job_1"))

	assert.Zero(t, f.extractor.callCount())
	completes, embeds := f.client.providerCalls()
	assert.Equal(t, 1, completes)
	assert.Equal(t, 1, embeds)

	resume, err := f.manager.ResumeStorage().GetResume(ctx, "res_1")
	require.NoError(t, err)
	assert.True(t, resume.Processed())
	require.NotNil(t, resume.Parsed)
	assert.Equal(t, "Alex Doe", resume.Parsed.Name)
	assert.True(t, resume.Embeddings.Complete())
}

func TestResumePipelineRunsAllStages(t *testing.T) {
	f := newResumePipelineFixture(t)
	ctx := context.Background()
	f.saveJob(t, ctx, "job_1")

	now := time.Now()
	require.NoError(t, f.manager.ResumeStorage().SaveResume(ctx, &models.Resume{
		ID:               "res_1",
		JobID:            "job_1",
		Filename:         "alex.pdf",
		FilePath:         "/uploads/alex.pdf",
		ExtractionStatus: models.StagePending,
		ParsingStatus:    models.StagePending,
		EmbeddingStatus:  models.StagePending,
		CreatedAt:        now,
		UpdatedAt:        now,
	}))

	require.NoError(t, f.pipeline.Run(ctx, "res_1", "job_1"))

	assert.Equal(t, 1, f.extractor.callCount())

	resume, err := f.manager.ResumeStorage().GetResume(ctx, "res_1")
	require.NoError(t, err)
	assert.True(t, resume.Processed())
	assert.Equal(t, f.extractor.text, resume.RawText)

	// Running again after completion is a no-op for every stage.
	require.NoError(t, f.pipeline.Run(ctx, "res_1", "job_1"))
	assert.Equal(t, 1, f.extractor.callCount())
	completes, embeds := f.client.providerCalls()
	assert.Equal(t, 1, completes)
	assert.Equal(t, 1, embeds)
}
