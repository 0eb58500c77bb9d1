package artifacts

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"reg-briefing/internal/domain"
	"reg-briefing/internal/infra/render"
)

var errEmptyContent = errors.New("пустой ответ модели")

// parseChangeDetection разбирает строгий JSON отчёта об изменениях.
func parseChangeDetection(content string) (domain.ChangeDetection, error) {
	text := strings.TrimSpace(render.StripFence(content))
	if text == "" {
		return domain.ChangeDetection{}, errEmptyContent
	}
	if !strings.HasPrefix(text, "{") {
		return domain.ChangeDetection{}, fmt.Errorf("разбор JSON изменений: ожидали объект")
	}
	var parsed domain.ChangeDetection
	if err := json.Unmarshal([]byte(text), &parsed); err != nil {
		return domain.ChangeDetection{}, fmt.Errorf("разбор JSON изменений: %w", err)
	}
	return normalizeChangeDetection(parsed), nil
}

func normalizeChangeDetection(cd domain.ChangeDetection) domain.ChangeDetection {
	return domain.ChangeDetection{
		NewThemes:     normalizeItems(cd.NewThemes),
		Accelerating:  normalizeItems(cd.Accelerating),
		Resolving:     normalizeItems(cd.Resolving),
		ShiftingFocus: normalizeItems(cd.ShiftingFocus),
		Correlations:  normalizeItems(cd.Correlations),
	}
}

func normalizeItems(items []domain.ChangeItem) []domain.ChangeItem {
	out := make([]domain.ChangeItem, 0, len(items))
	for _, item := range items {
		item.Topic = strings.TrimSpace(item.Topic)
		item.Summary = strings.TrimSpace(item.Summary)
		item.Notes = strings.TrimSpace(item.Notes)
		if item.Topic == "" && item.Summary == "" {
			continue
		}
		evidence := make([]string, 0, len(item.Evidence))
		for _, id := range item.Evidence {
			if id = strings.TrimSpace(id); id != "" {
				evidence = append(evidence, id)
			}
		}
		item.Evidence = evidence
		item.Confidence = clamp01(item.Confidence)
		out = append(out, item)
	}
	return out
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
