package prompts

import (
	"encoding/json"
	"fmt"
	"strings"
	"testing"
	"time"

	"reg-briefing/internal/domain"
)

func sampleDataset(n int) domain.Dataset {
	published := time.Date(2024, 10, 10, 0, 0, 0, 0, time.UTC)
	var updates []domain.Update
	for i := 0; i < n; i++ {
		updates = append(updates, domain.Update{
			ID:            fmt.Sprintf("u%d", i),
			Title:         fmt.Sprintf("Update %d", i),
			Authority:     "FCA",
			ImpactLevel:   domain.ImpactModerate,
			Summary:       strings.Repeat("x", 500),
			PublishedDate: &published,
		})
	}
	return domain.Dataset{
		DateRange:          domain.DateRange{Start: published.AddDate(0, 0, -7), End: published},
		CurrentUpdates:     updates,
		PreviousUpdates:    updates,
		HistoryTimeline:    []domain.TimelinePoint{{Date: "2024-10-10", Count: n}},
		HighlightUpdates:   updates[:2],
		SamplingWindowDays: 7,
		PromptVersion:      "v1",
		AnnotationInsights: domain.AnnotationInsights{
			Totals:  domain.AnnotationTotals{All: 1, Flagged: 1},
			Flagged: []domain.AnnotationDigest{{UpdateID: "u1", AssignedTo: []string{"legal"}, Content: strings.Repeat("y", 300)}},
		},
	}
}

func TestBuildPayloadGroqLimits(t *testing.T) {
	p, err := BuildPayload(sampleDataset(40), GroqLimits)
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if len(p.CurrentUpdates) != 15 {
		t.Fatalf("ожидали 15 обновлений, получили %d", len(p.CurrentUpdates))
	}
	if got := len([]rune(p.CurrentUpdates[0].Summary)); got != 200 {
		t.Fatalf("ожидали резюме 200 символов, получили %d", got)
	}
	if p.HistoryTimeline != nil {
		t.Fatalf("история не должна передаваться быстрому провайдеру")
	}
	if strings.Contains(p.JSON(), "historyTimeline") {
		t.Fatalf("история не должна попадать в JSON")
	}
	if got := len([]rune(p.Annotations.Flagged[0].Content)); got != 160 {
		t.Fatalf("ожидали обрезку аннотации, получили %d", got)
	}
}

func TestBuildPayloadOpenRouterLimits(t *testing.T) {
	p, err := BuildPayload(sampleDataset(40), OpenRouterLimits)
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if len(p.CurrentUpdates) != 30 {
		t.Fatalf("ожидали 30 обновлений, получили %d", len(p.CurrentUpdates))
	}
	if got := len(p.CurrentUpdates[0].Summary); got != 500 {
		t.Fatalf("резюме не должно обрезаться, получили %d", got)
	}
	if len(p.HistoryTimeline) != 1 {
		t.Fatalf("ожидали историю")
	}
	var decoded map[string]any
	if err := json.Unmarshal([]byte(p.JSON()), &decoded); err != nil {
		t.Fatalf("payload должен быть валидным JSON: %v", err)
	}
	if p.Window.Start != "2024-10-03" || p.Window.Days != 7 {
		t.Fatalf("неожиданное окно: %+v", p.Window)
	}
}

func TestBuildPayloadSmallDataset(t *testing.T) {
	p, err := BuildPayload(domain.Dataset{}, GroqLimits)
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if len(p.CurrentUpdates) != 0 || p.CurrentUpdates == nil {
		t.Fatalf("ожидали пустой список")
	}
}

func TestPromptsMentionContract(t *testing.T) {
	p, err := BuildPayload(sampleDataset(3), OpenRouterLimits)
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	system, user := ChangeDetection(p)
	for _, key := range []string{"new_themes", "accelerating", "resolving", "shifting_focus", "correlations"} {
		if !strings.Contains(system, key) {
			t.Fatalf("промпт изменений должен упоминать %s", key)
		}
	}
	if !strings.Contains(user, p.JSON()) {
		t.Fatalf("промпт должен содержать payload")
	}
	system, _ = Narrative(p)
	if !strings.Contains(system, "Why this week matters") || !strings.Contains(system, "Looking ahead") {
		t.Fatalf("повествование должно задавать пять разделов")
	}
	_, user = TeamBriefing(p)
	if !strings.Contains(user, "1 flagged") {
		t.Fatalf("командный брифинг должен содержать счётчики аннотаций: %s", user)
	}
}

func TestFirmGuidance(t *testing.T) {
	if !strings.Contains(firmGuidance(nil), "generic") {
		t.Fatalf("без профиля ожидали общий текст")
	}
	got := firmGuidance(&domain.FirmContext{Name: "Acme", Sectors: []string{"Banking", "Payments"}})
	if !strings.Contains(got, "Acme") || !strings.Contains(got, "Banking, Payments") {
		t.Fatalf("неожиданный профиль: %s", got)
	}
}
