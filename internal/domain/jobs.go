package domain

import (
	"encoding/json"
	"time"
)

// RunState описывает стадию запуска генерации брифинга.
type RunState string

const (
	RunQueued     RunState = "queued"
	RunPreparing  RunState = "preparing"
	RunGenerating RunState = "generating"
	RunCompleted  RunState = "completed"
	RunFailed     RunState = "failed"
)

// Rank возвращает порядковый номер стадии; переходы разрешены только вперёд.
func (s RunState) Rank() int {
	switch s {
	case RunQueued:
		return 0
	case RunPreparing:
		return 1
	case RunGenerating:
		return 2
	case RunCompleted, RunFailed:
		return 3
	default:
		return -1
	}
}

// Terminal сообщает, что стадия конечная.
func (s RunState) Terminal() bool {
	return s == RunCompleted || s == RunFailed
}

// RunStatus описывает опрашиваемое состояние запуска.
type RunStatus struct {
	RunID      string    `json:"runId"`
	State      RunState  `json:"state"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
	Message    string    `json:"message,omitempty"`
	Error      string    `json:"error,omitempty"`
	CacheHit   bool      `json:"cacheHit,omitempty"`
	BriefingID string    `json:"briefingId,omitempty"`
}

// DateRangeOption задаёт необязательные границы окна в запросе.
type DateRangeOption struct {
	Start *time.Time `json:"start,omitempty"`
	End   *time.Time `json:"end,omitempty"`
}

// RunOptions содержит параметры запуска, принимаемые StartRun.
type RunOptions struct {
	DateRange            DateRangeOption `json:"date_range"`
	UpdateIDs            []string        `json:"update_ids,omitempty"`
	FallbackToHistory    *bool           `json:"fallback_to_history,omitempty"`
	IncludeAnnotations   bool            `json:"include_annotations"`
	AnnotationVisibility []Visibility    `json:"annotation_visibility,omitempty"`
	FirmContext          *FirmContext    `json:"firm_context,omitempty"`
	PromptVersion        string          `json:"prompt_version,omitempty"`
	ForceRegenerate      bool            `json:"force_regenerate"`
}

// RunMetric хранит итог одного запуска.
type RunMetric struct {
	RunID       string          `json:"runId"`
	BriefingID  string          `json:"briefingId"`
	DatasetHash string          `json:"datasetHash"`
	CacheHit    bool            `json:"cacheHit"`
	StartedAt   time.Time       `json:"startedAt"`
	CompletedAt time.Time       `json:"completedAt"`
	DurationMs  int64           `json:"durationMs"`
	Usage       *UsageMetrics   `json:"usage"`
	Totals      RunMetricTotals `json:"totals"`
}

// RunMetricTotals хранит объёмы данных запуска.
type RunMetricTotals struct {
	CurrentUpdates int `json:"currentUpdates"`
	Annotations    int `json:"annotations"`
}

// MetricsTotals хранит накопленные счётчики.
type MetricsTotals struct {
	Runs        int `json:"runs"`
	CacheHits   int `json:"cacheHits"`
	TotalTokens int `json:"totalTokens"`
}

// MetricsSnapshot описывает сохраняемое состояние метрик.
type MetricsSnapshot struct {
	Totals  MetricsTotals `json:"totals"`
	History []RunMetric   `json:"history"`
}

// MetricsSummary представляет метрики для чтения.
type MetricsSummary struct {
	Totals  MetricsTotals `json:"totals"`
	LastRun *RunMetric    `json:"lastRun"`
	History []RunMetric   `json:"history"`
}

// RunEvent описывает уведомление о завершении запуска.
type RunEvent struct {
	Status      RunStatus `json:"status"`
	DatasetHash string    `json:"datasetHash,omitempty"`
	DateRange   DateRange `json:"dateRange"`
	Updates     int       `json:"updates"`
}

// Encode сериализует событие для публикации.
func (e RunEvent) Encode() ([]byte, error) {
	return json.Marshal(e)
}
