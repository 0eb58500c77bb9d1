package dataset

import (
	"sort"
	"strings"

	"reg-briefing/internal/domain"
)

func normalizeUpdates(updates []domain.Update) []domain.Update {
	out := make([]domain.Update, 0, len(updates))
	for _, u := range updates {
		out = append(out, normalizeUpdate(u))
	}
	return out
}

func normalizeUpdate(u domain.Update) domain.Update {
	u.ID = strings.TrimSpace(u.ID)
	u.Title = strings.TrimSpace(u.Title)
	if u.Title == "" {
		u.Title = "Untitled update"
	}
	u.Summary = strings.TrimSpace(u.Summary)
	u.Authority = strings.TrimSpace(u.Authority)
	if u.Authority == "" {
		u.Authority = "Unknown"
	}
	u.ImpactLevel = normalizeImpact(string(u.ImpactLevel))
	u.Urgency = strings.TrimSpace(u.Urgency)
	u.Sectors = uniqueSorted(u.Sectors)
	u.Tags = uniqueOrdered(u.Tags)
	u.URL = strings.TrimSpace(u.URL)
	u.Jurisdiction = strings.TrimSpace(u.Jurisdiction)
	u.Source = strings.TrimSpace(u.Source)
	if u.PublishedDate != nil {
		t := u.PublishedDate.UTC()
		u.PublishedDate = &t
	}
	if u.ComplianceDeadline != nil {
		t := u.ComplianceDeadline.UTC()
		u.ComplianceDeadline = &t
	}
	return u
}

func normalizeImpact(raw string) domain.ImpactLevel {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "significant", "high", "critical":
		return domain.ImpactSignificant
	case "moderate", "medium":
		return domain.ImpactModerate
	default:
		return domain.ImpactInformational
	}
}

func normalizeAnnotations(raw []domain.Annotation, index map[string]domain.Update) []domain.Annotation {
	out := make([]domain.Annotation, 0, len(raw))
	for _, a := range raw {
		a.ID = strings.TrimSpace(a.ID)
		a.UpdateID = strings.TrimSpace(a.UpdateID)
		a.Author = strings.TrimSpace(a.Author)
		a.Content = strings.TrimSpace(a.Content)
		a.Status = strings.TrimSpace(a.Status)
		a.Persona = strings.TrimSpace(a.Persona)
		a.OriginPage = strings.TrimSpace(a.OriginPage)
		a.Priority = strings.TrimSpace(a.Priority)
		a.Visibility = normalizeVisibility(string(a.Visibility))
		a.ActionType = normalizeAction(string(a.ActionType))
		a.Tags = uniqueOrdered(a.Tags)
		a.AssignedTo = uniqueOrdered(a.AssignedTo)
		a.LinkedResources = uniqueOrdered(a.LinkedResources)
		if a.Context == nil {
			a.Context = map[string]any{}
		}
		a.CreatedAt = a.CreatedAt.UTC()
		a.UpdatedAt = a.UpdatedAt.UTC()
		a.Update = nil
		if u, ok := index[a.UpdateID]; ok {
			a.Update = u.Ref()
		}
		out = append(out, a)
	}
	return out
}

func normalizeVisibility(raw string) domain.Visibility {
	switch domain.Visibility(strings.ToLower(strings.TrimSpace(raw))) {
	case domain.VisibilityAll:
		return domain.VisibilityAll
	case domain.VisibilityPrivate:
		return domain.VisibilityPrivate
	default:
		return domain.VisibilityTeam
	}
}

func normalizeAction(raw string) domain.ActionType {
	switch domain.ActionType(strings.ToLower(strings.TrimSpace(raw))) {
	case domain.ActionFlag:
		return domain.ActionFlag
	case domain.ActionAssign:
		return domain.ActionAssign
	case domain.ActionTask:
		return domain.ActionTask
	default:
		return domain.ActionNote
	}
}

func uniqueOrdered(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		trimmed := strings.TrimSpace(v)
		if trimmed == "" {
			continue
		}
		if _, ok := seen[trimmed]; ok {
			continue
		}
		seen[trimmed] = struct{}{}
		out = append(out, trimmed)
	}
	return out
}

func uniqueSorted(values []string) []string {
	out := uniqueOrdered(values)
	sort.Strings(out)
	return out
}
