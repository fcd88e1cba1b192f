package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"perfaudit/config"
	"perfaudit/internal/adapter/analyzer"
	"perfaudit/internal/adapter/cache"
	"perfaudit/internal/adapter/chunker"
	"perfaudit/internal/adapter/embedding"
	"perfaudit/internal/adapter/llm"
	"perfaudit/internal/adapter/memstore"
	"perfaudit/internal/adapter/notify"
	"perfaudit/internal/adapter/pdf"
	"perfaudit/internal/adapter/retriever"
	"perfaudit/internal/adapter/sink"
	"perfaudit/internal/adapter/store"
	"perfaudit/internal/domain"
	"perfaudit/internal/port"
	"perfaudit/internal/prompt"
	"perfaudit/internal/usecase"
)

// MMR settings for programme discovery passages.
const (
	discoveryLambda = 0.7
	discoveryDedup  = 0.8
)

// app holds the wiring for one CLI invocation.
type app struct {
	cfg    *config.Config
	logger *zap.Logger
	userID string

	store    port.RecordStore
	bolt     *store.BoltStore
	backing  cache.Backing
	prompts  *prompt.Set
	journal  *usecase.Journal
	eng      *usecase.Engagement
	notifier *sink.Notifier

	feed     *usecase.Feed
	feedDone chan struct{}

	canceller usecase.Canceller

	// built by withLLM
	completer port.Completer
	client    *llm.RetryingClient
	chain     *usecase.ChainRunner
	auditor   *usecase.Auditor
}

func newApp() (*app, error) {
	a := &app{
		cfg:      cfg,
		logger:   logger,
		userID:   userID,
		notifier: sink.NewNotifier(os.Stderr),
	}

	prompts, err := prompt.Load()
	if err != nil {
		return nil, err
	}
	a.prompts = prompts

	if err := a.openStore(); err != nil {
		return nil, err
	}
	a.journal = usecase.NewJournal(a.store, analyzer.NewTokenizer(), a.logger)
	if err := a.store.PutUser(domain.User{UID: a.userID, CreatedAt: time.Now()}); err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to register user: %w", err)
	}

	a.feed = usecase.NewFeed(64)
	a.feedDone = make(chan struct{})
	width := 0
	if fi, err := os.Stdout.Stat(); err == nil && fi.Mode()&os.ModeCharDevice != 0 {
		width = 100
	}
	go func() {
		defer close(a.feedDone)
		a.feed.Run(sink.NewTerminal(os.Stdout, width))
	}()

	a.eng = usecase.NewEngagement(a.userID)
	if err := a.loadEngagement(); err != nil {
		a.eng = nil // keep the stored snapshot untouched
		a.Close()
		return nil, err
	}
	return a, nil
}

// openStore picks the record store. Guest sessions never touch disk.
func (a *app) openStore() error {
	driver := a.cfg.Store.Driver
	if a.userID == domain.GuestUserID {
		driver = "memory"
	}

	switch driver {
	case "memory":
		a.store = memstore.NewMemoryStore()
		return nil
	case "bolt", "sqlite":
	default:
		return fmt.Errorf("unknown store driver %q", driver)
	}

	if err := config.EnsureDataDir(rootDir); err != nil {
		return fmt.Errorf("failed to create %s directory: %w", config.DataDir, err)
	}
	path := a.cfg.StoreDBPath(rootDir)

	if driver == "sqlite" {
		st, err := store.NewSQLiteStore(path)
		if err != nil {
			return err
		}
		a.store, a.backing = st, st
		return nil
	}

	st, err := store.NewBoltStore(path)
	if err != nil {
		return err
	}
	a.store, a.backing, a.bolt = st, st, st

	result, err := st.CheckMigration(a.cfg)
	if err != nil {
		return fmt.Errorf("failed to check migration: %w", err)
	}
	if result.NeedsRebuild {
		a.logger.Info("clearing derived data", zap.String("reason", result.Reason))
		if err := st.Clear(); err != nil {
			return fmt.Errorf("failed to clear derived data: %w", err)
		}
	}
	if result.NeedsMigration || result.NeedsRebuild {
		if err := st.Migrate(a.cfg); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}
	return nil
}

func (a *app) loadEngagement() error {
	snap, err := a.store.GetSnapshot(a.userID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to load engagement: %w", err)
	}

	var docs []domain.Document
	for _, id := range []string{snap.StrategicID, snap.PlanDocID, snap.ReportDocID} {
		if id == "" {
			continue
		}
		rec, err := a.store.GetDocument(id)
		if err != nil {
			a.logger.Warn("engagement document missing", zap.String("id", id), zap.Error(err))
			continue
		}
		docs = append(docs, usecase.DocumentFromRecord(rec))
	}
	a.eng.Restore(snap, docs)
	return nil
}

func (a *app) saveEngagement() error {
	snap := a.eng.Snapshot()
	if a.auditor != nil {
		snap.History = a.auditor.Histories()
	} else if prev, err := a.store.GetSnapshot(a.userID); err == nil {
		snap.History = prev.History
	}
	if err := a.store.PutSnapshot(snap); err != nil {
		return fmt.Errorf("failed to save engagement: %w", err)
	}
	return nil
}

// withLLM builds the completion clients and the components that need them.
func (a *app) withLLM() error {
	if a.client != nil {
		return nil
	}

	var completer port.Completer
	var streamer port.Streamer
	c := a.cfg.LLM
	switch c.Provider {
	case "anthropic":
		client, err := llm.NewAnthropicClientFromEnv(c.APIKeyEnv, c.Model, c.BaseURL, c.SystemPrompt, c.MaxTokens, c.Temperature)
		if err != nil {
			return err
		}
		completer, streamer = client, client
	case "openai", "":
		client, err := llm.NewOpenAIClientFromEnv(c.APIKeyEnv, llm.OpenAIConfig{
			Model:        c.Model,
			BaseURL:      c.BaseURL,
			SystemPrompt: c.SystemPrompt,
			Temperature:  c.Temperature,
			MaxTokens:    c.MaxTokens,
			Timeout:      c.Timeout,
		})
		if err != nil {
			return err
		}
		completer, streamer = client, client
	default:
		return fmt.Errorf("unsupported llm provider: %s", c.Provider)
	}

	a.completer = completer
	a.client = llm.NewRetryingClient(completer, llm.PolicyFromConfig(a.cfg.Retry), a.logger)
	a.chain = usecase.NewChainRunner(streamer, llm.PolicyFromConfig(a.cfg.StreamRetry), a.cfg.Chain.MaxContinuations, a.logger,
		usecase.WithContinuePrompt(a.cfg.Chain.ContinuePrompt))

	history := make(map[domain.AuditKind]bool)
	for name, pc := range a.cfg.Audit.Passes {
		if kind, ok := domain.ParseAuditKind(name); ok {
			history[kind] = pc.History
		}
	}
	opts := []usecase.AuditorOption{usecase.WithJournal(a.journal)}
	if pub := a.publisher(); pub != nil {
		opts = append(opts, usecase.WithPublisher(pub))
	}
	a.auditor = usecase.NewAuditor(a.chain, a.prompts, a.feed, usecase.AuditOptions{
		HistorySize:    a.cfg.Audit.HistorySize,
		FollowupDelay:  a.cfg.Audit.FollowupDelay,
		ProgrammeDelay: a.cfg.Audit.ProgrammeDelay,
		History:        history,
	}, a.logger, opts...)

	if snap, err := a.store.GetSnapshot(a.userID); err == nil {
		a.auditor.RestoreHistories(snap.History)
	}
	return nil
}

func (a *app) publisher() port.ResultPublisher {
	s := a.cfg.Notify.Slack
	if !s.Enabled {
		return nil
	}
	token := os.Getenv(s.TokenEnv)
	if token == "" || s.Channel == "" {
		a.logger.Warn("slack publishing enabled but token or channel missing", zap.String("token_env", s.TokenEnv))
		return nil
	}
	return notify.NewSlackPublisher(token, s.Channel, s.APIURL)
}

func (a *app) classifier() *usecase.Classifier {
	client := llm.NewRetryingClient(a.completer, llm.PolicyFromConfig(a.cfg.Retry).WithMaxRetries(a.cfg.Classifier.MaxRetries), a.logger)
	return usecase.NewClassifier(client, a.prompts, a.cfg.Classifier.Segments, a.logger)
}

func (a *app) ingestor() (*usecase.Ingestor, error) {
	if err := a.withLLM(); err != nil {
		return nil, err
	}
	return usecase.NewIngestor(a.classifier(), a.store, chunker.NewParagraphChunker(1000), a.journal, a.logger), nil
}

func (a *app) discoverer() (*usecase.Discoverer, error) {
	if err := a.withLLM(); err != nil {
		return nil, err
	}

	var emb port.Embedder
	e := a.cfg.Embedding
	switch e.Provider {
	case "mock":
		emb = embedding.NewMockEmbedder(e.Dimension)
	case "openai", "":
		var err error
		emb, err = embedding.NewOpenAICompatibleEmbedder(e.APIKeyEnv, e.Model, e.BaseURL, e.BatchSize)
		if err != nil {
			return nil, fmt.Errorf("failed to create embedder: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", e.Provider)
	}

	var vectors port.VectorStore = memstore.NewVectorStore()
	if a.bolt != nil {
		vs, err := store.NewBoltVectorStore(a.bolt.DB(), emb.Dimension())
		if err != nil {
			return nil, fmt.Errorf("failed to create vector store: %w", err)
		}
		vectors = vs
	}

	client := llm.NewRetryingClient(a.completer, llm.PolicyFromConfig(a.cfg.Retry).WithMaxRetries(a.cfg.Discovery.MaxRetries), a.logger)
	return usecase.NewDiscoverer(
		retriever.NewSemanticRetriever(vectors, emb),
		retriever.NewMMRReranker(discoveryLambda, discoveryDedup),
		chunker.NewWordChunker(a.cfg.Discovery.ChunkWords),
		client,
		a.prompts,
		usecase.DiscoverOptions{Query: a.cfg.Discovery.Query, TopK: a.cfg.Discovery.TopK},
		a.logger,
	), nil
}

func (a *app) extractor() (*usecase.Extractor, error) {
	if err := a.withLLM(); err != nil {
		return nil, err
	}

	chunkers := make(map[domain.ExtractionKind]port.Chunker, len(domain.ExtractionPhases))
	for _, kind := range domain.ExtractionPhases {
		s, ok := a.cfg.Extraction.Strategies[string(kind)]
		if !ok {
			return nil, fmt.Errorf("no chunk strategy configured for %s", kind)
		}
		c, err := chunker.New(s.Strategy, s.Size)
		if err != nil {
			return nil, fmt.Errorf("extraction.strategies.%s: %w", kind, err)
		}
		chunkers[kind] = c
	}

	records := cache.NewExtractionCache(a.cfg.Extraction.CacheSize, a.cfg.Extraction.CacheTTL, a.backing, a.logger)
	return usecase.NewExtractor(usecase.NewProcessor(a.client, a.logger), a.prompts, chunkers, a.cfg.Extraction.MaxInFlight, records, a.logger), nil
}

func (a *app) exporter() *usecase.Exporter {
	return usecase.NewExporter(pdf.NewClient(a.cfg.Export.URL, a.cfg.Export.Timeout), a.journal, a.logger)
}

// start begins a cancellable action.
func (a *app) start(parent context.Context) (context.Context, func()) {
	return a.canceller.Start(parent)
}

// report turns an action's outcome into a notification.
func (a *app) report(err error, success string) error {
	switch {
	case err == nil:
		if success != "" {
			a.notifier.Notify(domain.NoticeSuccess, success)
		}
		return nil
	case domain.IsCancelled(err):
		a.notifier.Notify(domain.NoticeInfo, "Stopped. Partial output was kept.")
		return err
	default:
		a.notifier.Notify(domain.NoticeError, noticeText(err))
		return err
	}
}

func noticeText(err error) string {
	switch domain.Classify(err) {
	case domain.CodeRateLimit:
		return "The model service is rate limiting requests. Try again shortly."
	case domain.CodeAmbiguous:
		return "Could not tell what kind of document this is."
	case domain.CodePrerequisite:
		return err.Error()
	case domain.CodeInput:
		return "Unsupported file: " + err.Error()
	}
	return err.Error()
}

// Close drains the feed, saves the engagement and closes the store.
func (a *app) Close() error {
	a.canceller.Stop()
	if a.feed != nil {
		a.feed.Close()
		<-a.feedDone
	}
	var err error
	if a.eng != nil {
		err = a.saveEngagement()
	}
	if cerr := a.store.Close(); err == nil {
		err = cerr
	}
	return err
}
