package domain

import "time"

// ArtifactKind обозначает один из четырёх артефактов брифинга.
type ArtifactKind string

const (
	ArtifactNarrative       ArtifactKind = "narrative"
	ArtifactChangeDetection ArtifactKind = "changeDetection"
	ArtifactOnePager        ArtifactKind = "onePager"
	ArtifactTeamBriefing    ArtifactKind = "teamBriefing"
)

// AllArtifacts задаёт порядок генерации.
var AllArtifacts = []ArtifactKind{ArtifactNarrative, ArtifactChangeDetection, ArtifactOnePager, ArtifactTeamBriefing}

// ChangeItem описывает элемент отчёта об изменениях.
type ChangeItem struct {
	Topic      string   `json:"topic"`
	Evidence   []string `json:"evidence"`
	Summary    string   `json:"summary"`
	Confidence float64  `json:"confidence"`
	Notes      string   `json:"notes,omitempty"`
}

// ChangeDetection задаёт строгую JSON-структуру артефакта изменений.
type ChangeDetection struct {
	NewThemes     []ChangeItem `json:"new_themes"`
	Accelerating  []ChangeItem `json:"accelerating"`
	Resolving     []ChangeItem `json:"resolving"`
	ShiftingFocus []ChangeItem `json:"shifting_focus"`
	Correlations  []ChangeItem `json:"correlations"`
}

// Artifacts хранит содержимое брифинга.
type Artifacts struct {
	Narrative       string          `json:"narrative"`
	ChangeDetection ChangeDetection `json:"changeDetection"`
	OnePager        string          `json:"onePager"`
	TeamBriefing    string          `json:"teamBriefing"`
}

// TokenUsage хранит статистику токенов одного вызова.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// ArtifactRequest учитывает один успешный вызов LLM.
type ArtifactRequest struct {
	Artifact ArtifactKind `json:"artifact"`
	Usage    *TokenUsage  `json:"usage"`
	Model    string       `json:"model"`
}

// UsageMetrics суммирует использование токенов за генерацию.
type UsageMetrics struct {
	TotalTokens int               `json:"totalTokens"`
	Requests    []ArtifactRequest `json:"requests"`
}

// BriefingTotals хранит объёмы данных брифинга.
type BriefingTotals struct {
	CurrentUpdates  int `json:"currentUpdates"`
	PreviousUpdates int `json:"previousUpdates"`
	Annotations     int `json:"annotations"`
}

// BriefingMetadata содержит служебные данные брифинга.
type BriefingMetadata struct {
	DatasetHash          string         `json:"datasetHash"`
	CacheHit             bool           `json:"cacheHit"`
	PromptVersion        string         `json:"promptVersion"`
	FirmContext          *FirmContext   `json:"firmContext"`
	IncludeAnnotations   bool           `json:"includeAnnotations"`
	AnnotationVisibility []Visibility   `json:"annotationVisibility"`
	Totals               BriefingTotals `json:"totals"`
	Usage                UsageMetrics   `json:"usage"`
	Provider             string         `json:"provider"`
	GenerationDurationMs int64          `json:"generationDurationMs"`
}

// BriefingDataset хранит снимок выборки вместе с брифингом.
type BriefingDataset struct {
	Stats              DatasetStats       `json:"stats"`
	CurrentUpdates     []Update           `json:"currentUpdates"`
	PreviousUpdates    []Update           `json:"previousUpdates"`
	HistoryTimeline    []TimelinePoint    `json:"historyTimeline"`
	HighlightUpdates   []Update           `json:"highlightUpdates"`
	Annotations        []Annotation       `json:"annotations"`
	AnnotationInsights AnnotationInsights `json:"annotationInsights"`
	SamplingWindowDays int                `json:"samplingWindowDays"`
	HistoryUpdates     []Update           `json:"historyUpdates"`
}

// Briefing представляет сохранённый результат запуска. Не изменяется после сохранения.
type Briefing struct {
	ID          string           `json:"id"`
	RunID       string           `json:"runId"`
	GeneratedAt time.Time        `json:"generatedAt"`
	DateRange   DateRange        `json:"dateRange"`
	Metadata    BriefingMetadata `json:"metadata"`
	Dataset     BriefingDataset  `json:"dataset"`
	Artifacts   Artifacts        `json:"artifacts"`
}

// BriefingSummary описывает брифинг кратко для списков.
type BriefingSummary struct {
	ID          string           `json:"id"`
	GeneratedAt time.Time        `json:"generatedAt"`
	DateRange   DateRange        `json:"dateRange"`
	Metadata    BriefingMetadata `json:"metadata"`
}

// Summary возвращает краткую запись брифинга.
func (b Briefing) Summary() BriefingSummary {
	return BriefingSummary{ID: b.ID, GeneratedAt: b.GeneratedAt, DateRange: b.DateRange, Metadata: b.Metadata}
}
