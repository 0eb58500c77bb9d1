package artifacts

import (
	"fmt"
	"html"
	"strings"
	"time"

	"reg-briefing/internal/domain"
)

const fallbackModel = "fallback"

// Fallback строит все четыре артефакта по шаблонам без обращения к модели.
func Fallback(ds domain.Dataset) domain.Artifacts {
	return domain.Artifacts{
		Narrative:       fallbackNarrative(ds),
		ChangeDetection: emptyChangeDetection(),
		OnePager:        fallbackOnePager(ds),
		TeamBriefing:    fallbackTeamBriefing(ds),
	}
}

func fallback(kind domain.ArtifactKind, ds domain.Dataset, out *domain.Artifacts) {
	switch kind {
	case domain.ArtifactNarrative:
		out.Narrative = fallbackNarrative(ds)
	case domain.ArtifactChangeDetection:
		out.ChangeDetection = emptyChangeDetection()
	case domain.ArtifactOnePager:
		out.OnePager = fallbackOnePager(ds)
	case domain.ArtifactTeamBriefing:
		out.TeamBriefing = fallbackTeamBriefing(ds)
	}
}

func emptyChangeDetection() domain.ChangeDetection {
	return domain.ChangeDetection{
		NewThemes:     []domain.ChangeItem{},
		Accelerating:  []domain.ChangeItem{},
		Resolving:     []domain.ChangeItem{},
		ShiftingFocus: []domain.ChangeItem{},
		Correlations:  []domain.ChangeItem{},
	}
}

func fallbackNarrative(ds domain.Dataset) string {
	var b strings.Builder
	b.WriteString("<h3>Why this week matters</h3>\n")
	if ds.Stats.TotalUpdates == 0 {
		fmt.Fprintf(&b, "<p>No regulatory updates were published between %s and %s.</p>", formatDate(ds.DateRange.Start), formatDate(ds.DateRange.End))
		return b.String()
	}
	fmt.Fprintf(&b, "<p>%d regulatory updates were published between %s and %s, %d of them rated significant.",
		ds.Stats.TotalUpdates, formatDate(ds.DateRange.Start), formatDate(ds.DateRange.End), ds.Stats.ByImpact.Significant)
	if len(ds.Stats.ByAuthority) > 0 {
		top := ds.Stats.ByAuthority[0]
		fmt.Fprintf(&b, " %s was the most active authority with %d updates.", escapeHTML(top.Key), top.Count)
	}
	b.WriteString("</p>")

	highlights := ds.HighlightUpdates
	if len(highlights) > 3 {
		highlights = highlights[:3]
	}
	if len(highlights) == 0 {
		return b.String()
	}
	b.WriteString("\n<h3>Key storylines</h3>")
	for _, u := range highlights {
		fmt.Fprintf(&b, "\n<p>%s: %s", escapeHTML(u.Authority), updateTitle(u))
		if summary := strings.TrimSpace(u.Summary); summary != "" {
			b.WriteString(". " + escapeHTML(summary))
		}
		b.WriteString("</p>")
	}
	return b.String()
}

func fallbackOnePager(ds domain.Dataset) string {
	var b strings.Builder
	b.WriteString("<h3>Executive summary</h3>\n")
	fmt.Fprintf(&b, "<p>%d updates in the period, %d significant and %d moderate.</p>",
		ds.Stats.TotalUpdates, ds.Stats.ByImpact.Significant, ds.Stats.ByImpact.Moderate)

	b.WriteString("\n<h3>Critical actions</h3>\n<ul>")
	actions := 0
	for _, u := range ds.HighlightUpdates {
		if actions == 3 {
			break
		}
		if u.ImpactLevel != domain.ImpactSignificant {
			continue
		}
		fmt.Fprintf(&b, "<li>Review %s</li>", updateTitle(u))
		actions++
	}
	if actions == 0 {
		b.WriteString("<li>No significant updates require immediate action.</li>")
	}
	b.WriteString("</ul>")

	b.WriteString("\n<h3>Key developments</h3>")
	for _, level := range []domain.ImpactLevel{domain.ImpactSignificant, domain.ImpactModerate, domain.ImpactInformational} {
		var items []string
		for _, u := range ds.HighlightUpdates {
			if u.ImpactLevel == level {
				items = append(items, "<li>"+updateTitle(u)+"</li>")
			}
		}
		if len(items) == 0 {
			continue
		}
		fmt.Fprintf(&b, "\n<p><b>%s</b></p><ul>%s</ul>", level, strings.Join(items, ""))
	}

	b.WriteString("\n<h3>Business implications</h3>\n")
	if len(ds.Stats.BySector) > 0 {
		names := make([]string, 0, 3)
		for i, s := range ds.Stats.BySector {
			if i == 3 {
				break
			}
			names = append(names, escapeHTML(s.Key))
		}
		fmt.Fprintf(&b, "<p>Most affected sectors: %s.</p>", strings.Join(names, ", "))
	} else {
		b.WriteString("<p>No sector concentration in this period.</p>")
	}
	b.WriteString("\n<h3>Recommended next steps</h3>\n<p>Confirm owners for significant updates and review upcoming compliance deadlines.</p>")
	return b.String()
}

func fallbackTeamBriefing(ds domain.Dataset) string {
	ins := ds.AnnotationInsights
	var b strings.Builder
	b.WriteString("<h3>Discussion points</h3>\n")
	fmt.Fprintf(&b, "<p>%d team annotations: %d flagged, %d assignments, %d tasks.</p>",
		ins.Totals.All, ins.Totals.Flagged, ins.Totals.Assignments, ins.Totals.Tasks)
	writeDigests(&b, "Flagged items", ins.Flagged)
	writeDigests(&b, "Assignments", ins.Assignments)
	writeDigests(&b, "Tasks", ins.Tasks)

	b.WriteString("\n<h3>Open questions</h3>\n")
	if ds.Stats.ByImpact.Significant > 0 {
		fmt.Fprintf(&b, "<p>Which teams own the %d significant updates?</p>", ds.Stats.ByImpact.Significant)
	} else {
		b.WriteString("<p>No open questions raised.</p>")
	}
	b.WriteString("\n<h3>Resource requirements</h3>\n")
	if len(ins.ByPersona) == 0 {
		b.WriteString("<p>No persona activity recorded.</p>")
	} else {
		b.WriteString("<ul>")
		for _, p := range ins.ByPersona {
			fmt.Fprintf(&b, "<li>%s: %d</li>", escapeHTML(p.Key), p.Count)
		}
		b.WriteString("</ul>")
	}
	b.WriteString("\n<h3>Response timeline</h3>\n<p>Review assignments and tasks at the next weekly meeting.</p>")
	return b.String()
}

func writeDigests(b *strings.Builder, title string, digests []domain.AnnotationDigest) {
	if len(digests) == 0 {
		return
	}
	fmt.Fprintf(b, "\n<p><b>%s</b></p><ul>", title)
	for _, d := range digests {
		label := d.UpdateTitle
		if label == "" {
			label = d.UpdateID
		}
		owner := "owner not assigned"
		if len(d.AssignedTo) > 0 {
			owner = strings.Join(d.AssignedTo, ", ")
		}
		fmt.Fprintf(b, "<li>%s (%s)</li>", escapeHTML(label), escapeHTML(owner))
	}
	b.WriteString("</ul>")
}

func updateTitle(u domain.Update) string {
	title := escapeHTML(u.Title)
	if url := strings.TrimSpace(u.URL); url != "" {
		return fmt.Sprintf("<a href=\"%s\">%s</a>", html.EscapeString(url), title)
	}
	return title
}

func formatDate(t time.Time) string {
	return t.Format("2 Jan 2006")
}

func escapeHTML(s string) string {
	return html.EscapeString(s)
}
