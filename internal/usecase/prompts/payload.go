package prompts

import (
	"encoding/json"
	"fmt"

	"reg-briefing/internal/domain"
)

// Limits ограничивает объём данных, передаваемых модели.
type Limits struct {
	CurrentUpdates  int
	PreviousUpdates int
	// SummaryChars ограничивает длину резюме обновления; 0 отключает обрезку.
	SummaryChars   int
	IncludeHistory bool
	Annotations    int
	// AnnotationChars ограничивает длину текста аннотации; 0 отключает обрезку.
	AnnotationChars int
}

// GroqLimits урезают выборку для быстрого провайдера с малым контекстом.
var GroqLimits = Limits{
	CurrentUpdates:  15,
	PreviousUpdates: 10,
	SummaryChars:    200,
	IncludeHistory:  false,
	Annotations:     10,
	AnnotationChars: 160,
}

// OpenRouterLimits передают выборку почти целиком.
var OpenRouterLimits = Limits{
	CurrentUpdates:  30,
	PreviousUpdates: 30,
	SummaryChars:    0,
	IncludeHistory:  true,
	Annotations:     40,
	AnnotationChars: 0,
}

// Payload представляет выборку в компактном виде для промптов.
type Payload struct {
	Window          Window                 `json:"window"`
	Stats           domain.DatasetStats    `json:"stats"`
	Highlights      []UpdateBrief          `json:"highlights"`
	CurrentUpdates  []UpdateBrief          `json:"currentUpdates"`
	PreviousUpdates []UpdateBrief          `json:"previousUpdates"`
	HistoryTimeline []domain.TimelinePoint `json:"historyTimeline,omitempty"`
	Annotations     AnnotationBrief        `json:"annotations"`
	FirmContext     *domain.FirmContext    `json:"firmContext,omitempty"`
	PromptVersion   string                 `json:"promptVersion"`

	encoded string
}

// Window описывает границы окна выборки.
type Window struct {
	Start string `json:"start"`
	End   string `json:"end"`
	Days  int    `json:"days"`
}

// UpdateBrief описывает обновление в том виде, в каком его видит модель.
type UpdateBrief struct {
	ID                  string   `json:"id"`
	Title               string   `json:"title"`
	Authority           string   `json:"authority"`
	ImpactLevel         string   `json:"impact"`
	Urgency             string   `json:"urgency,omitempty"`
	BusinessImpactScore *float64 `json:"score,omitempty"`
	Sectors             []string `json:"sectors,omitempty"`
	PublishedDate       string   `json:"published,omitempty"`
	ComplianceDeadline  string   `json:"deadline,omitempty"`
	Summary             string   `json:"summary,omitempty"`
}

// AnnotationBrief содержит сводку аннотаций команды.
type AnnotationBrief struct {
	Totals      domain.AnnotationTotals `json:"totals"`
	ByPersona   []domain.CountBy        `json:"byPersona,omitempty"`
	Flagged     []NoteBrief             `json:"flagged,omitempty"`
	Assignments []NoteBrief             `json:"assignments,omitempty"`
	Tasks       []NoteBrief             `json:"tasks,omitempty"`
}

// NoteBrief описывает аннотацию вместе с владельцем.
type NoteBrief struct {
	UpdateID    string   `json:"updateId"`
	UpdateTitle string   `json:"updateTitle,omitempty"`
	Owners      []string `json:"owners,omitempty"`
	Author      string   `json:"author,omitempty"`
	Persona     string   `json:"persona,omitempty"`
	Priority    string   `json:"priority,omitempty"`
	Content     string   `json:"content,omitempty"`
}

const dateLayout = "2006-01-02"

// BuildPayload сжимает выборку под лимиты провайдера и сериализует её один раз.
func BuildPayload(ds domain.Dataset, limits Limits) (Payload, error) {
	p := Payload{
		Window: Window{
			Start: ds.DateRange.Start.UTC().Format(dateLayout),
			End:   ds.DateRange.End.UTC().Format(dateLayout),
			Days:  ds.SamplingWindowDays,
		},
		Stats:           ds.Stats,
		Highlights:      briefUpdates(ds.HighlightUpdates, len(ds.HighlightUpdates), limits.SummaryChars),
		CurrentUpdates:  briefUpdates(ds.CurrentUpdates, limits.CurrentUpdates, limits.SummaryChars),
		PreviousUpdates: briefUpdates(ds.PreviousUpdates, limits.PreviousUpdates, limits.SummaryChars),
		FirmContext:     ds.FirmContext,
		PromptVersion:   ds.PromptVersion,
	}
	if ds.FirmContext.IsZero() {
		p.FirmContext = nil
	}
	if limits.IncludeHistory {
		p.HistoryTimeline = ds.HistoryTimeline
	}
	ins := ds.AnnotationInsights
	p.Annotations = AnnotationBrief{
		Totals:      ins.Totals,
		ByPersona:   ins.ByPersona,
		Flagged:     briefNotes(ins.Flagged, limits.Annotations, limits.AnnotationChars),
		Assignments: briefNotes(ins.Assignments, limits.Annotations, limits.AnnotationChars),
		Tasks:       briefNotes(ins.Tasks, limits.Annotations, limits.AnnotationChars),
	}

	raw, err := json.Marshal(p)
	if err != nil {
		return Payload{}, fmt.Errorf("сериализация payload: %w", err)
	}
	p.encoded = string(raw)
	return p, nil
}

// JSON возвращает сериализованный payload.
func (p Payload) JSON() string {
	if p.encoded == "" {
		return "{}"
	}
	return p.encoded
}

func briefUpdates(updates []domain.Update, limit, summaryChars int) []UpdateBrief {
	if limit > len(updates) {
		limit = len(updates)
	}
	out := make([]UpdateBrief, 0, limit)
	for _, u := range updates[:limit] {
		b := UpdateBrief{
			ID:                  u.ID,
			Title:               u.Title,
			Authority:           u.Authority,
			ImpactLevel:         string(u.ImpactLevel),
			Urgency:             u.Urgency,
			BusinessImpactScore: u.BusinessImpactScore,
			Sectors:             u.Sectors,
			Summary:             clipRunes(u.Summary, summaryChars),
		}
		if u.PublishedDate != nil {
			b.PublishedDate = u.PublishedDate.UTC().Format(dateLayout)
		}
		if u.ComplianceDeadline != nil {
			b.ComplianceDeadline = u.ComplianceDeadline.UTC().Format(dateLayout)
		}
		out = append(out, b)
	}
	return out
}

func briefNotes(digests []domain.AnnotationDigest, limit, contentChars int) []NoteBrief {
	if limit > len(digests) {
		limit = len(digests)
	}
	out := make([]NoteBrief, 0, limit)
	for _, d := range digests[:limit] {
		out = append(out, NoteBrief{
			UpdateID:    d.UpdateID,
			UpdateTitle: d.UpdateTitle,
			Owners:      d.AssignedTo,
			Author:      d.Author,
			Persona:     d.Persona,
			Priority:    d.Priority,
			Content:     clipRunes(d.Content, contentChars),
		})
	}
	return out
}

func clipRunes(text string, limit int) string {
	if limit <= 0 {
		return text
	}
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit])
}
