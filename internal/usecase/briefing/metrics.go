package briefing

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"reg-briefing/internal/domain"
)

const metricsHistoryLimit = 50

// MetricsRecorder накапливает итоги запусков. Ошибки хранилища только логируются.
// Пока сохранённый снимок не прочитан, записи копятся в памяти и не сохраняются.
type MetricsRecorder struct {
	repo domain.MetricsRepo
	log  zerolog.Logger

	loadMu sync.Mutex

	mu       sync.Mutex
	loaded   bool
	snapshot domain.MetricsSnapshot
	version  uint64

	saveMu sync.Mutex
	saved  uint64
}

// NewMetricsRecorder создаёт регистратор; repo может быть nil.
func NewMetricsRecorder(repo domain.MetricsRepo, log zerolog.Logger) *MetricsRecorder {
	return &MetricsRecorder{repo: repo, log: log, loaded: repo == nil}
}

// Record добавляет запись в историю (новые первыми) и обновляет счётчики.
func (m *MetricsRecorder) Record(ctx context.Context, metric domain.RunMetric) {
	m.ensureLoaded(ctx)

	m.mu.Lock()
	m.snapshot.Totals.Runs++
	if metric.CacheHit {
		m.snapshot.Totals.CacheHits++
	}
	if metric.Usage != nil {
		m.snapshot.Totals.TotalTokens += metric.Usage.TotalTokens
	}
	m.snapshot.History = prependHistory([]domain.RunMetric{metric}, m.snapshot.History)
	m.version++
	version, snapshot, loaded := m.version, m.snapshot, m.loaded
	m.mu.Unlock()

	if m.repo == nil {
		return
	}
	if !loaded {
		m.log.Warn().Str("run_id", metric.RunID).Msg("briefing: метрики ещё не загружены, сохранение отложено")
		return
	}
	m.persist(ctx, version, snapshot)
}

// Summary возвращает счётчики, последний запуск и историю.
func (m *MetricsRecorder) Summary(ctx context.Context) domain.MetricsSummary {
	m.ensureLoaded(ctx)

	m.mu.Lock()
	defer m.mu.Unlock()
	history := append([]domain.RunMetric{}, m.snapshot.History...)
	summary := domain.MetricsSummary{Totals: m.snapshot.Totals, History: history}
	if len(history) > 0 {
		last := history[0]
		summary.LastRun = &last
	}
	return summary
}

// ensureLoaded читает сохранённый снимок и сливает его с записями, накопленными до загрузки.
// После ошибки чтения попытка повторяется при следующем вызове.
func (m *MetricsRecorder) ensureLoaded(ctx context.Context) {
	if m.isLoaded() {
		return
	}
	m.loadMu.Lock()
	defer m.loadMu.Unlock()
	if m.isLoaded() {
		return
	}

	stored, err := m.repo.LoadMetrics(ctx)
	if err != nil {
		m.log.Warn().Err(err).Msg("briefing: не удалось загрузить метрики, повторим позже")
		return
	}

	m.mu.Lock()
	pending := m.snapshot
	m.snapshot = domain.MetricsSnapshot{
		Totals: domain.MetricsTotals{
			Runs:        stored.Totals.Runs + pending.Totals.Runs,
			CacheHits:   stored.Totals.CacheHits + pending.Totals.CacheHits,
			TotalTokens: stored.Totals.TotalTokens + pending.Totals.TotalTokens,
		},
		History: prependHistory(pending.History, stored.History),
	}
	m.loaded = true
	var version uint64
	if pending.Totals.Runs > 0 {
		m.version++
		version = m.version
	}
	snapshot := m.snapshot
	m.mu.Unlock()

	if version > 0 {
		m.persist(ctx, version, snapshot)
	}
}

func (m *MetricsRecorder) isLoaded() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.loaded
}

// persist сохраняет снимок вне основной блокировки; устаревшие версии пропускаются.
func (m *MetricsRecorder) persist(ctx context.Context, version uint64, snapshot domain.MetricsSnapshot) {
	m.saveMu.Lock()
	defer m.saveMu.Unlock()
	if version <= m.saved {
		return
	}
	if err := m.repo.SaveMetrics(ctx, snapshot); err != nil {
		m.log.Error().Err(err).Msg("briefing: не удалось сохранить метрики")
		return
	}
	m.saved = version
}

// prependHistory возвращает новый срез: head перед tail, не длиннее лимита.
func prependHistory(head, tail []domain.RunMetric) []domain.RunMetric {
	history := make([]domain.RunMetric, 0, min(len(head)+len(tail), metricsHistoryLimit))
	history = append(history, head...)
	history = append(history, tail...)
	if len(history) > metricsHistoryLimit {
		history = history[:metricsHistoryLimit]
	}
	return history
}
