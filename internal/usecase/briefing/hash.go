package briefing

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"reg-briefing/internal/domain"
)

// hashInput содержит те части выборки, от которых зависит результат генерации.
// Границы окна не входят: конец окна по умолчанию равен текущему времени.
type hashInput struct {
	CurrentUpdates     []domain.Update           `json:"currentUpdates"`
	PreviousUpdates    []domain.Update           `json:"previousUpdates"`
	HistoryUpdates     []domain.Update           `json:"historyUpdates"`
	Annotations        []domain.Annotation       `json:"annotations"`
	AnnotationInsights domain.AnnotationInsights `json:"annotationInsights"`
	FirmContext        *domain.FirmContext       `json:"firmContext"`
	PromptVersion      string                    `json:"promptVersion"`
}

// ComputeHash возвращает SHA-256 канонического JSON выборки.
// Поля структур кодируются в порядке объявления, ключи map по возрастанию.
func ComputeHash(ds domain.Dataset) (string, error) {
	in := hashInput{
		CurrentUpdates:     ds.CurrentUpdates,
		PreviousUpdates:    ds.PreviousUpdates,
		HistoryUpdates:     ds.HistoryUpdates,
		Annotations:        ds.Annotations,
		AnnotationInsights: ds.AnnotationInsights,
		FirmContext:        ds.FirmContext,
		PromptVersion:      ds.PromptVersion,
	}
	if ds.FirmContext.IsZero() {
		in.FirmContext = nil
	}
	raw, err := json.Marshal(in)
	if err != nil {
		return "", fmt.Errorf("хэш выборки: %w", err)
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:]), nil
}
