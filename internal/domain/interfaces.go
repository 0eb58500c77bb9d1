package domain

import (
	"context"
	"errors"
	"time"
)

// ErrInvalidBriefingID возвращается хранилищем для идентификатора недопустимого формата.
var ErrInvalidBriefingID = errors.New("invalid briefing id")

// UpdateQuery фильтрует обновления по дате публикации.
type UpdateQuery struct {
	Start time.Time
	End   time.Time
	Limit int
	// EndExclusive исключает правую границу, чтобы соседние окна не пересекались.
	EndExclusive bool
	// SortAsc меняет порядок на возрастающий; по умолчанию новые первыми.
	SortAsc bool
}

// UpdateSource возвращает регуляторные обновления из хранилища.
type UpdateSource interface {
	ListUpdates(ctx context.Context, q UpdateQuery) ([]Update, error)
}

// AnnotationFilter ограничивает выборку аннотаций.
type AnnotationFilter struct {
	UpdateIDs  []string
	Visibility []Visibility
}

// AnnotationSource возвращает аннотации к обновлениям.
type AnnotationSource interface {
	ListAnnotations(ctx context.Context, f AnnotationFilter) ([]Annotation, error)
}

// BriefingStore сохраняет и возвращает брифинги.
// GetBriefing и GetLatestBriefing возвращают nil без ошибки, если записи нет.
// Недопустимый идентификатор даёт ErrInvalidBriefingID.
type BriefingStore interface {
	SaveBriefing(ctx context.Context, b Briefing) error
	GetBriefing(ctx context.Context, id string) (*Briefing, error)
	ListBriefings(ctx context.Context, limit int) ([]BriefingSummary, error)
	GetLatestBriefing(ctx context.Context) (*Briefing, error)
}

// MetricsRepo хранит накопленные метрики запусков.
type MetricsRepo interface {
	LoadMetrics(ctx context.Context) (MetricsSnapshot, error)
	SaveMetrics(ctx context.Context, snapshot MetricsSnapshot) error
}

// HashIndex сопоставляет хэш выборки идентификатору брифинга.
type HashIndex interface {
	Lookup(ctx context.Context, datasetHash string) (string, bool, error)
	Remember(ctx context.Context, datasetHash, briefingID string) error
}

// RunNotifier получает уведомление о завершении запуска.
type RunNotifier interface {
	NotifyRunFinished(ctx context.Context, event RunEvent) error
}
