package prompts

import (
	"fmt"
	"strings"

	"reg-briefing/internal/domain"
)

const analystRole = "You are a senior regulatory intelligence analyst writing for the leadership of a UK financial services firm. " +
	"Use only the facts in the supplied data, name authorities and sectors explicitly, and never invent updates, dates or deadlines."

// Narrative строит промпт для еженедельного повествования.
func Narrative(p Payload) (system, user string) {
	system = analystRole + `
Write a weekly regulatory narrative in exactly five sections, each introduced by a level-3 Markdown heading:
### Why this week matters
### The big picture
### What changed
### Key storylines
### Looking ahead
Write flowing prose paragraphs only. Do not use bullet points or numbered lists. Reference authorities and sectors inline.`
	user = fmt.Sprintf(`Reporting window: %s to %s (%d days).
%s
Dataset (JSON):
%s`, p.Window.Start, p.Window.End, p.Window.Days, firmGuidance(p.FirmContext), p.JSON())
	return system, user
}

// ChangeDetection строит промпт для строгого JSON-отчёта об изменениях.
func ChangeDetection(p Payload) (system, user string) {
	system = analystRole + `
Compare the current window with the previous window and the history timeline. Respond with a single JSON object and nothing else.
The object must have exactly these keys, each an array (possibly empty):
"new_themes", "accelerating", "resolving", "shifting_focus", "correlations".
Every array item must be an object:
{"topic": string, "evidence": [update id, ...], "summary": string, "confidence": number between 0 and 1, "notes": optional string}
Evidence must only contain ids present in the data.`
	user = fmt.Sprintf(`Current window: %s to %s.
%s
Dataset (JSON):
%s`, p.Window.Start, p.Window.End, firmGuidance(p.FirmContext), p.JSON())
	return system, user
}

// OnePager строит промпт для одностраничной сводки руководству.
func OnePager(p Payload) (system, user string) {
	system = analystRole + `
Write an executive one-pager in Markdown with exactly these five sections as level-3 headings:
### Executive summary (no more than two sentences)
### Critical actions (no more than three bullets)
### Key developments (grouped by impact: Significant, Moderate, Informational)
### Business implications
### Recommended next steps`
	user = fmt.Sprintf(`Window: %s to %s. Total updates: %d, significant: %d, moderate: %d.
%s
Dataset (JSON):
%s`, p.Window.Start, p.Window.End, p.Stats.TotalUpdates, p.Stats.ByImpact.Significant, p.Stats.ByImpact.Moderate,
		firmGuidance(p.FirmContext), p.JSON())
	return system, user
}

// TeamBriefing строит промпт для командного брифинга с владельцами задач.
func TeamBriefing(p Payload) (system, user string) {
	system = analystRole + `
Write a team briefing in Markdown with these level-3 sections:
### Discussion points
### Open questions
### Resource requirements (grouped by department or persona)
### Response timeline
Every flagged item, assignment and task from the team annotations must appear with its explicit owner. If an item has no owner, say "owner not assigned".`
	totals := p.Annotations.Totals
	user = fmt.Sprintf(`Window: %s to %s.
Team annotations: %d total, %d flagged, %d assignments, %d tasks.
%s
Dataset (JSON):
%s`, p.Window.Start, p.Window.End, totals.All, totals.Flagged, totals.Assignments, totals.Tasks,
		firmGuidance(p.FirmContext), p.JSON())
	return system, user
}

func firmGuidance(fc *domain.FirmContext) string {
	if fc.IsZero() {
		return "No firm profile was supplied; write for a generic UK financial services firm."
	}
	var b strings.Builder
	b.WriteString("Tailor the analysis to this firm")
	if fc.Name != "" {
		fmt.Fprintf(&b, " (%s)", fc.Name)
	}
	b.WriteString(".")
	if len(fc.Sectors) > 0 {
		fmt.Fprintf(&b, " Sectors: %s.", strings.Join(fc.Sectors, ", "))
	}
	if len(fc.Jurisdictions) > 0 {
		fmt.Fprintf(&b, " Jurisdictions: %s.", strings.Join(fc.Jurisdictions, ", "))
	}
	if len(fc.StrategicPriorities) > 0 {
		fmt.Fprintf(&b, " Strategic priorities: %s.", strings.Join(fc.StrategicPriorities, ", "))
	}
	if fc.Notes != "" {
		fmt.Fprintf(&b, " Notes: %s", fc.Notes)
	}
	return b.String()
}
