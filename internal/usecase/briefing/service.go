package briefing

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"reg-briefing/internal/domain"
	"reg-briefing/internal/infra/metrics"
	"reg-briefing/internal/usecase/dataset"
)

const (
	defaultListLimit = 20
	maxListLimit     = 100
	notifyTimeout    = 10 * time.Second
)

type datasetBuilder interface {
	Build(ctx context.Context, opts dataset.Options) (domain.Dataset, error)
}

type artifactGenerator interface {
	Generate(ctx context.Context, ds domain.Dataset) (domain.Artifacts, domain.UsageMetrics, error)
}

// Config задаёт параметры оркестратора.
type Config struct {
	CacheScanLimit int
	RunCapacity    int
	RunTTL         time.Duration
	// Provider попадает в метаданные брифинга как имя провайдера LLM.
	Provider string
}

// Service управляет запусками генерации брифингов.
type Service struct {
	builder   datasetBuilder
	generator artifactGenerator
	store     domain.BriefingStore
	cache     *cacheLookup
	recorder  *MetricsRecorder
	notifier  domain.RunNotifier
	runs      *runRegistry
	log       zerolog.Logger
	provider  string

	now      func() time.Time
	newID    func() string
	schedule func(task func())
	wg       sync.WaitGroup
}

// Option настраивает Service.
type Option func(*Service)

// WithClock подменяет источник времени.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithIDGenerator подменяет генератор идентификаторов.
func WithIDGenerator(fn func() string) Option {
	return func(s *Service) { s.newID = fn }
}

// WithScheduler подменяет запуск фоновой задачи.
func WithScheduler(fn func(task func())) Option {
	return func(s *Service) { s.schedule = fn }
}

// WithHashIndex подключает индекс хэшей выборок.
func WithHashIndex(index domain.HashIndex) Option {
	return func(s *Service) { s.cache.index = index }
}

// WithNotifier подключает уведомления о завершении запусков.
func WithNotifier(n domain.RunNotifier) Option {
	return func(s *Service) { s.notifier = n }
}

// WithMetricsRecorder задаёт регистратор метрик.
func WithMetricsRecorder(r *MetricsRecorder) Option {
	return func(s *Service) { s.recorder = r }
}

// NewService создаёт оркестратор запусков.
func NewService(builder datasetBuilder, generator artifactGenerator, store domain.BriefingStore, log zerolog.Logger, cfg Config, opts ...Option) *Service {
	s := &Service{
		builder:   builder,
		generator: generator,
		store:     store,
		cache:     &cacheLookup{store: store, scanLimit: cfg.CacheScanLimit, log: log},
		runs:      newRunRegistry(cfg.RunCapacity, cfg.RunTTL),
		log:       log,
		provider:  cfg.Provider,
		now:       time.Now,
		newID:     uuid.NewString,
	}
	s.schedule = func(task func()) { go task() }
	for _, opt := range opts {
		opt(s)
	}
	if s.recorder == nil {
		s.recorder = NewMetricsRecorder(nil, log)
	}
	return s
}

// StartRun регистрирует запуск и планирует его выполнение, не блокируя вызывающего.
func (s *Service) StartRun(opts domain.RunOptions) domain.RunStatus {
	now := s.now().UTC()
	status := domain.RunStatus{
		RunID:     s.newID(),
		State:     domain.RunQueued,
		CreatedAt: now,
		UpdatedAt: now,
		Message:   "Run queued",
	}
	s.runs.put(status)
	s.log.Info().Str("run_id", status.RunID).Bool("force", opts.ForceRegenerate).Msg("briefing: запуск поставлен в очередь")

	s.wg.Add(1)
	s.schedule(func() {
		defer s.wg.Done()
		s.process(status.RunID, opts)
	})
	return status
}

// GetRunStatus возвращает статус запуска; false, если запуск неизвестен или вытеснен.
func (s *Service) GetRunStatus(runID string) (domain.RunStatus, bool) {
	return s.runs.get(runID)
}

// GetBriefing возвращает брифинг по идентификатору или nil.
func (s *Service) GetBriefing(ctx context.Context, id string) (*domain.Briefing, error) {
	return s.store.GetBriefing(ctx, id)
}

// GetLatestBriefing возвращает последний брифинг или nil.
func (s *Service) GetLatestBriefing(ctx context.Context) (*domain.Briefing, error) {
	return s.store.GetLatestBriefing(ctx)
}

// ListBriefings возвращает последние брифинги, новые первыми.
func (s *Service) ListBriefings(ctx context.Context, limit int) ([]domain.BriefingSummary, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	return s.store.ListBriefings(ctx, limit)
}

// MetricsSummary возвращает накопленные метрики запусков.
func (s *Service) MetricsSummary(ctx context.Context) domain.MetricsSummary {
	return s.recorder.Summary(ctx)
}

// AwaitRun опрашивает статус запуска, пока он не станет конечным.
func (s *Service) AwaitRun(ctx context.Context, runID string, interval time.Duration) (domain.RunStatus, error) {
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		status, ok := s.runs.get(runID)
		if !ok {
			return domain.RunStatus{}, fmt.Errorf("запуск %s не найден", runID)
		}
		if status.State.Terminal() {
			return status, nil
		}
		select {
		case <-ctx.Done():
			return status, ctx.Err()
		case <-ticker.C:
		}
	}
}

// Wait дожидается завершения запущенных задач.
func (s *Service) Wait() {
	s.wg.Wait()
}

func (s *Service) process(runID string, opts domain.RunOptions) {
	ctx := context.Background()
	started := s.now().UTC()
	metrics.BriefingRunsInFlight.Inc()
	defer metrics.BriefingRunsInFlight.Dec()
	defer func() {
		if r := recover(); r != nil {
			s.fail(ctx, runID, started, fmt.Errorf("panic: %v", r))
		}
	}()
	if err := s.execute(ctx, runID, opts, started); err != nil {
		s.fail(ctx, runID, started, err)
	}
}

func (s *Service) execute(ctx context.Context, runID string, opts domain.RunOptions, started time.Time) error {
	s.advance(runID, domain.RunPreparing, "Building dataset")
	ds, err := s.builder.Build(ctx, dataset.FromRunOptions(opts))
	if err != nil {
		return fmt.Errorf("построение выборки: %w", err)
	}
	hash, err := ComputeHash(ds)
	if err != nil {
		return err
	}
	log := s.log.With().Str("run_id", runID).Str("dataset_hash", hash).Logger()

	if !opts.ForceRegenerate {
		if cached := s.cache.find(ctx, hash); cached != nil {
			log.Info().Str("briefing_id", cached.ID).Msg("briefing: найден брифинг с тем же хэшем")
			s.complete(ctx, runID, ds, hash, cached.ID, true, nil, started)
			return nil
		}
	}

	s.advance(runID, domain.RunGenerating, "Generating artifacts")
	genStart := s.now()
	artifacts, usage, err := s.generator.Generate(ctx, ds)
	if err != nil {
		return fmt.Errorf("генерация артефактов: %w", err)
	}
	b := s.assemble(runID, opts, ds, hash, artifacts, usage, s.now().Sub(genStart))
	if err := s.store.SaveBriefing(ctx, b); err != nil {
		return fmt.Errorf("сохранение брифинга: %w", err)
	}
	s.cache.remember(ctx, hash, b.ID)
	log.Info().Str("briefing_id", b.ID).Int("tokens", usage.TotalTokens).Msg("briefing: брифинг сгенерирован")
	s.complete(ctx, runID, ds, hash, b.ID, false, &usage, started)
	return nil
}

func (s *Service) assemble(runID string, opts domain.RunOptions, ds domain.Dataset, hash string, artifacts domain.Artifacts, usage domain.UsageMetrics, took time.Duration) domain.Briefing {
	visibility := opts.AnnotationVisibility
	if visibility == nil {
		visibility = []domain.Visibility{}
	}
	return domain.Briefing{
		ID:          s.newID(),
		RunID:       runID,
		GeneratedAt: s.now().UTC(),
		DateRange:   ds.DateRange,
		Metadata: domain.BriefingMetadata{
			DatasetHash:          hash,
			PromptVersion:        ds.PromptVersion,
			FirmContext:          ds.FirmContext,
			IncludeAnnotations:   opts.IncludeAnnotations,
			AnnotationVisibility: visibility,
			Totals: domain.BriefingTotals{
				CurrentUpdates:  len(ds.CurrentUpdates),
				PreviousUpdates: len(ds.PreviousUpdates),
				Annotations:     len(ds.Annotations),
			},
			Usage:                usage,
			Provider:             s.provider,
			GenerationDurationMs: took.Milliseconds(),
		},
		Dataset: domain.BriefingDataset{
			Stats:              ds.Stats,
			CurrentUpdates:     ds.CurrentUpdates,
			PreviousUpdates:    ds.PreviousUpdates,
			HistoryTimeline:    ds.HistoryTimeline,
			HighlightUpdates:   ds.HighlightUpdates,
			Annotations:        ds.Annotations,
			AnnotationInsights: ds.AnnotationInsights,
			SamplingWindowDays: ds.SamplingWindowDays,
			HistoryUpdates:     ds.HistoryUpdates,
		},
		Artifacts: artifacts,
	}
}

func (s *Service) complete(ctx context.Context, runID string, ds domain.Dataset, hash, briefingID string, cacheHit bool, usage *domain.UsageMetrics, started time.Time) {
	completed := s.now().UTC()
	message := "Briefing generated"
	if cacheHit {
		message = "Reused cached briefing"
	}
	status, ok := s.advance(runID, domain.RunCompleted, message, func(st *domain.RunStatus) {
		st.CacheHit = cacheHit
		st.BriefingID = briefingID
	})
	metrics.ObserveBriefingRun(string(domain.RunCompleted), cacheHit, completed.Sub(started))
	s.recorder.Record(ctx, domain.RunMetric{
		RunID:       runID,
		BriefingID:  briefingID,
		DatasetHash: hash,
		CacheHit:    cacheHit,
		StartedAt:   started,
		CompletedAt: completed,
		DurationMs:  completed.Sub(started).Milliseconds(),
		Usage:       usage,
		Totals: domain.RunMetricTotals{
			CurrentUpdates: len(ds.CurrentUpdates),
			Annotations:    len(ds.Annotations),
		},
	})
	if ok {
		s.notify(ctx, domain.RunEvent{Status: status, DatasetHash: hash, DateRange: ds.DateRange, Updates: len(ds.CurrentUpdates)})
	}
}

func (s *Service) fail(ctx context.Context, runID string, started time.Time, err error) {
	s.log.Error().Err(err).Str("run_id", runID).Msg("briefing: запуск завершился ошибкой")
	status, ok := s.advance(runID, domain.RunFailed, "Run failed", func(st *domain.RunStatus) {
		st.Error = err.Error()
	})
	metrics.ObserveBriefingRun(string(domain.RunFailed), false, s.now().UTC().Sub(started))
	if ok {
		s.notify(ctx, domain.RunEvent{Status: status})
	}
}

func (s *Service) advance(runID string, state domain.RunState, message string, mutate ...func(*domain.RunStatus)) (domain.RunStatus, bool) {
	status, ok := s.runs.advance(runID, s.now().UTC(), func(st *domain.RunStatus) {
		st.State = state
		st.Message = message
		for _, fn := range mutate {
			fn(st)
		}
	})
	if !ok {
		s.log.Warn().Str("run_id", runID).Str("state", string(state)).Msg("briefing: переход состояния отклонён")
	}
	return status, ok
}

func (s *Service) notify(ctx context.Context, event domain.RunEvent) {
	if s.notifier == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, notifyTimeout)
	defer cancel()
	if err := s.notifier.NotifyRunFinished(ctx, event); err != nil {
		s.log.Warn().Err(err).Str("run_id", event.Status.RunID).Msg("briefing: не удалось отправить уведомление")
	}
}
