// -----------------------------------------------------------------------
// App - builds and owns every application component
// -----------------------------------------------------------------------

package app

import (
	"fmt"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/seligo/internal/common"
	"github.com/ternarybob/seligo/internal/handlers"
	"github.com/ternarybob/seligo/internal/interfaces"
	"github.com/ternarybob/seligo/internal/orchestrator"
	"github.com/ternarybob/seligo/internal/pipeline"
	"github.com/ternarybob/seligo/internal/queue"
	"github.com/ternarybob/seligo/internal/services/compliance"
	"github.com/ternarybob/seligo/internal/services/embeddings"
	"github.com/ternarybob/seligo/internal/services/llm"
	"github.com/ternarybob/seligo/internal/services/pdf"
	"github.com/ternarybob/seligo/internal/services/progress"
	"github.com/ternarybob/seligo/internal/services/ranking"
	"github.com/ternarybob/seligo/internal/services/report"
	"github.com/ternarybob/seligo/internal/services/scheduler"
	"github.com/ternarybob/seligo/internal/services/scoring"
	badgerstorage "github.com/ternarybob/seligo/internal/storage/badger"
)

// App holds all application components and dependencies.
type App struct {
	Config *common.Config
	Logger arbor.ILogger

	StorageManager interfaces.StorageManager
	QueueManager   interfaces.QueueManager
	ProgressHub    *progress.Hub

	LLMClient        *llm.Client
	EmbeddingService *embeddings.Service
	Scorer           *scoring.Scorer
	Ranker           *ranking.Ranker
	ReportService    *report.Service
	SchedulerService *scheduler.Service

	Orchestrator *orchestrator.Orchestrator
	Cancels      *orchestrator.CancelRegistry

	JobHandler *handlers.JobHandler
	WSHandler  *handlers.WebSocketHandler
	APIHandler *handlers.APIHandler
}

// New builds the application graph. Components start in dependency order:
// storage, broker, provider clients, pipelines, orchestrator, scheduler.
func New(config *common.Config, logger arbor.ILogger) (*App, error) {
	a := &App{
		Config: config,
		Logger: logger,
	}

	storageManager, err := badgerstorage.NewManager(logger, &config.Storage.Badger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	a.StorageManager = storageManager

	// The broker shares the storage database; queue keys live under their own
	// prefix.
	a.QueueManager = queue.NewBroker(storageManager.DB().Badger(), &config.Queue, logger)

	a.ProgressHub = progress.NewHub(progress.DefaultBufferSize, logger)

	a.LLMClient = llm.NewClient(
		&config.LLM,
		&config.Gemini,
		&config.Claude,
		&config.Embeddings,
		storageManager.KeyValueStorage(),
		logger,
	)
	a.EmbeddingService = embeddings.NewService(a.LLMClient, storageManager.KeyValueStorage(), &config.Embeddings, logger)

	filter := compliance.NewFilter(logger)
	a.Scorer = scoring.NewScorer(filter, &config.Scoring, logger)
	a.Ranker = ranking.NewRanker(a.LLMClient, &config.Ranking, logger)
	a.ReportService = report.NewService(config.Pipeline.ReportDir, logger)

	extractor := pdf.NewExtractor(logger)
	a.Cancels = orchestrator.NewCancelRegistry()

	jdPipeline := pipeline.NewJDPipeline(
		storageManager, a.LLMClient, a.EmbeddingService, extractor,
		a.ProgressHub, a.Cancels, &config.Embeddings, logger,
	)
	resumePipeline := pipeline.NewResumePipeline(
		storageManager, a.LLMClient, a.EmbeddingService, extractor,
		a.ProgressHub, a.Cancels, &config.Embeddings, &config.Pipeline, logger,
	)

	a.Orchestrator = orchestrator.New(
		storageManager, a.QueueManager, jdPipeline, resumePipeline,
		a.Scorer, a.Ranker, a.ReportService, a.ProgressHub, a.Cancels,
		&config.Pipeline, logger,
	)
	a.Orchestrator.RegisterHandlers()

	a.SchedulerService = scheduler.NewService(&config.Scheduler, storageManager, a.QueueManager, logger)

	a.JobHandler = handlers.NewJobHandler(a.Orchestrator, storageManager, logger)
	a.WSHandler = handlers.NewWebSocketHandler(a.ProgressHub, &config.WebSocket, logger)
	a.APIHandler = handlers.NewAPIHandler(logger)

	return a, nil
}

// Start launches the broker workers and the scheduler.
func (a *App) Start() error {
	if err := a.QueueManager.Start(); err != nil {
		return fmt.Errorf("failed to start queue workers: %w", err)
	}
	if err := a.SchedulerService.Start(); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}
	return nil
}

// Close stops workers and releases every resource in reverse order.
func (a *App) Close() {
	a.SchedulerService.Stop()

	if err := a.QueueManager.Stop(); err != nil {
		a.Logger.Warn().Err(err).Msg("Failed to stop queue manager")
	}
	if err := a.LLMClient.Close(); err != nil {
		a.Logger.Warn().Err(err).Msg("Failed to close llm client")
	}
	if err := a.StorageManager.Close(); err != nil {
		a.Logger.Warn().Err(err).Msg("Failed to close storage")
	}

	a.Logger.Info().Msg("Application closed")
}
