package dataset

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"reg-briefing/internal/domain"
)

// ErrInvalidDateRange возвращается, если начало окна позже конца.
var ErrInvalidDateRange = errors.New("invalid date range: start is after end")

const (
	day                = 24 * time.Hour
	defaultWindowDays  = 7
	minCurrentUpdates  = 12
	historyFallbackDay = 28
	minHistoryDays     = 28
	maxHighlights      = 10

	currentLimit  = 500
	previousLimit = 500
	historyLimit  = 2000
)

// windowCandidates задаёт последовательность расширения окна в днях.
var windowCandidates = []int{7, 14, 21, 30, 45, 60}

// Options описывает параметры построения выборки.
type Options struct {
	Start                *time.Time
	End                  *time.Time
	UpdateIDs            []string
	FallbackToHistory    *bool
	IncludeAnnotations   bool
	AnnotationVisibility []domain.Visibility
	FirmContext          *domain.FirmContext
	PromptVersion        string
}

// FromRunOptions переносит параметры запуска в параметры выборки.
func FromRunOptions(opts domain.RunOptions) Options {
	return Options{
		Start:                opts.DateRange.Start,
		End:                  opts.DateRange.End,
		UpdateIDs:            opts.UpdateIDs,
		FallbackToHistory:    opts.FallbackToHistory,
		IncludeAnnotations:   opts.IncludeAnnotations,
		AnnotationVisibility: opts.AnnotationVisibility,
		FirmContext:          opts.FirmContext,
		PromptVersion:        opts.PromptVersion,
	}
}

// Builder собирает выборку обновлений и аннотаций за окно.
type Builder struct {
	updates       domain.UpdateSource
	annotations   domain.AnnotationSource
	now           func() time.Time
	promptVersion string
	firmContext   *domain.FirmContext
}

// Option настраивает Builder.
type Option func(*Builder)

// WithClock подменяет источник времени.
func WithClock(now func() time.Time) Option {
	return func(b *Builder) { b.now = now }
}

// WithDefaults задаёт версию промптов и профиль фирмы по умолчанию.
func WithDefaults(promptVersion string, firm *domain.FirmContext) Option {
	return func(b *Builder) {
		b.promptVersion = promptVersion
		b.firmContext = firm
	}
}

// NewBuilder создаёт сборщик выборки.
func NewBuilder(updates domain.UpdateSource, annotations domain.AnnotationSource, opts ...Option) *Builder {
	b := &Builder{updates: updates, annotations: annotations, now: time.Now, promptVersion: "v1"}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Build строит выборку за окно с адаптивным расширением.
func (b *Builder) Build(ctx context.Context, opts Options) (domain.Dataset, error) {
	end := b.now().UTC()
	if opts.End != nil {
		end = opts.End.UTC()
	}
	start := end.Add(-defaultWindowDays * day)
	if opts.Start != nil {
		start = opts.Start.UTC()
	}
	if start.After(end) {
		return domain.Dataset{}, ErrInvalidDateRange
	}

	windowStart := start
	current, err := b.fetch(ctx, windowStart, end, currentLimit)
	if err != nil {
		return domain.Dataset{}, fmt.Errorf("обновления текущего окна: %w", err)
	}
	for _, days := range windowCandidates {
		if len(current) >= minCurrentUpdates {
			break
		}
		candidate := end.Add(-time.Duration(days) * day)
		if !candidate.Before(windowStart) {
			continue
		}
		windowStart = candidate
		current, err = b.fetch(ctx, windowStart, end, currentLimit)
		if err != nil {
			return domain.Dataset{}, fmt.Errorf("расширение окна до %d дней: %w", days, err)
		}
	}
	if len(current) == 0 && (opts.FallbackToHistory == nil || *opts.FallbackToHistory) {
		windowStart = end.Add(-historyFallbackDay * day)
		current, err = b.fetch(ctx, windowStart, end, currentLimit)
		if err != nil {
			return domain.Dataset{}, fmt.Errorf("исторический запасной вариант: %w", err)
		}
	}
	if len(opts.UpdateIDs) > 0 {
		current = filterByID(current, opts.UpdateIDs)
	}

	windowLen := end.Sub(windowStart)
	windowDays := int(math.Ceil(windowLen.Hours() / 24))
	if windowDays < 1 {
		windowDays = 1
	}

	previous, err := b.fetchBefore(ctx, windowStart.Add(-windowLen), windowStart, previousLimit)
	if err != nil {
		return domain.Dataset{}, fmt.Errorf("обновления предыдущего окна: %w", err)
	}
	historyDays := max(minHistoryDays, 2*windowDays)
	history, err := b.fetch(ctx, end.Add(-time.Duration(historyDays)*day), end, historyLimit)
	if err != nil {
		return domain.Dataset{}, fmt.Errorf("история обновлений: %w", err)
	}

	current = normalizeUpdates(current)
	previous = normalizeUpdates(previous)
	history = normalizeUpdates(history)
	index := make(map[string]domain.Update, len(current))
	for _, u := range current {
		index[u.ID] = u
	}

	ds := domain.Dataset{
		DateRange:          domain.DateRange{Start: windowStart, End: end},
		CurrentUpdates:     current,
		PreviousUpdates:    previous,
		HistoryUpdates:     history,
		HistoryTimeline:    buildTimeline(history),
		Stats:              buildStats(current),
		HighlightUpdates:   selectHighlights(current, maxHighlights),
		Annotations:        []domain.Annotation{},
		AnnotationInsights: buildInsights(nil),
		FirmContext:        b.firmContext,
		PromptVersion:      b.promptVersion,
		SamplingWindowDays: windowDays,
	}
	if opts.FirmContext != nil {
		ds.FirmContext = opts.FirmContext
	}
	if opts.PromptVersion != "" {
		ds.PromptVersion = opts.PromptVersion
	}

	if opts.IncludeAnnotations && b.annotations != nil && len(index) > 0 {
		ids := make([]string, 0, len(current))
		for _, u := range current {
			ids = append(ids, u.ID)
		}
		raw, err := b.annotations.ListAnnotations(ctx, domain.AnnotationFilter{UpdateIDs: ids, Visibility: opts.AnnotationVisibility})
		if err != nil {
			return domain.Dataset{}, fmt.Errorf("аннотации: %w", err)
		}
		ds.Annotations = normalizeAnnotations(raw, index)
		ds.AnnotationInsights = buildInsights(ds.Annotations)
	}
	return ds, nil
}

func (b *Builder) fetch(ctx context.Context, start, end time.Time, limit int) ([]domain.Update, error) {
	return b.updates.ListUpdates(ctx, domain.UpdateQuery{Start: start, End: end, Limit: limit})
}

// fetchBefore читает полуоткрытый интервал [start, end): граница принадлежит текущему окну.
func (b *Builder) fetchBefore(ctx context.Context, start, end time.Time, limit int) ([]domain.Update, error) {
	return b.updates.ListUpdates(ctx, domain.UpdateQuery{Start: start, End: end, Limit: limit, EndExclusive: true})
}

func filterByID(updates []domain.Update, ids []string) []domain.Update {
	allowed := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		allowed[id] = struct{}{}
	}
	out := make([]domain.Update, 0, len(updates))
	for _, u := range updates {
		if _, ok := allowed[u.ID]; ok {
			out = append(out, u)
		}
	}
	return out
}
