package dataset

import (
	"reg-briefing/internal/domain"
)

const digestContentLimit = 280

func buildInsights(annotations []domain.Annotation) domain.AnnotationInsights {
	insights := domain.AnnotationInsights{
		ByPersona:        []domain.CountBy{},
		ByOriginPage:     []domain.CountBy{},
		Flagged:          []domain.AnnotationDigest{},
		Assignments:      []domain.AnnotationDigest{},
		Tasks:            []domain.AnnotationDigest{},
		ReportCandidates: []domain.AnnotationDigest{},
	}
	byPersona := make(map[string]int)
	byPage := make(map[string]int)
	for _, a := range annotations {
		insights.Totals.All++
		d := digestOf(a)
		switch a.ActionType {
		case domain.ActionFlag:
			insights.Totals.Flagged++
			insights.Flagged = append(insights.Flagged, d)
		case domain.ActionAssign:
			insights.Totals.Assignments++
			insights.Assignments = append(insights.Assignments, d)
		case domain.ActionTask:
			insights.Totals.Tasks++
			insights.Tasks = append(insights.Tasks, d)
		default:
			insights.Totals.Notes++
		}
		if a.Persona != "" {
			byPersona[a.Persona]++
		}
		if a.OriginPage != "" {
			byPage[a.OriginPage]++
		}
		if a.ReportIncluded {
			insights.ReportCandidates = append(insights.ReportCandidates, d)
		}
	}
	insights.ByPersona = sortedCounts(byPersona)
	insights.ByOriginPage = sortedCounts(byPage)
	return insights
}

func digestOf(a domain.Annotation) domain.AnnotationDigest {
	d := domain.AnnotationDigest{
		ID:         a.ID,
		UpdateID:   a.UpdateID,
		ActionType: a.ActionType,
		Author:     a.Author,
		AssignedTo: a.AssignedTo,
		Priority:   a.Priority,
		Persona:    a.Persona,
		Content:    clipRunes(a.Content, digestContentLimit),
	}
	if d.AssignedTo == nil {
		d.AssignedTo = []string{}
	}
	if a.Update != nil {
		d.UpdateTitle = a.Update.Title
	}
	return d
}

func clipRunes(text string, limit int) string {
	runes := []rune(text)
	if limit <= 0 || len(runes) <= limit {
		return text
	}
	return string(runes[:limit]) + "…"
}
