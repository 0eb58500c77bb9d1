package dataset

import (
	"crypto/sha1"
	"encoding/hex"
	"sort"

	"reg-briefing/internal/domain"
)

func buildStats(updates []domain.Update) domain.DatasetStats {
	byAuthority := make(map[string]int)
	bySector := make(map[string]int)
	var impact domain.ImpactCounts
	for _, u := range updates {
		byAuthority[u.Authority]++
		for _, s := range u.Sectors {
			bySector[s]++
		}
		switch u.ImpactLevel {
		case domain.ImpactSignificant:
			impact.Significant++
		case domain.ImpactModerate:
			impact.Moderate++
		default:
			impact.Informational++
		}
	}
	return domain.DatasetStats{
		TotalUpdates: len(updates),
		ByAuthority:  sortedCounts(byAuthority),
		ByImpact:     impact,
		BySector:     sortedCounts(bySector),
	}
}

// sortedCounts упорядочивает по убыванию количества, затем по ключу.
func sortedCounts(m map[string]int) []domain.CountBy {
	out := make([]domain.CountBy, 0, len(m))
	for k, v := range m {
		out = append(out, domain.CountBy{Key: k, Count: v})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Key < out[j].Key
	})
	return out
}

func buildTimeline(history []domain.Update) []domain.TimelinePoint {
	counts := make(map[string]int)
	for _, u := range history {
		if u.PublishedDate == nil {
			continue
		}
		counts[u.PublishedDate.UTC().Format("2006-01-02")]++
	}
	out := make([]domain.TimelinePoint, 0, len(counts))
	for date, count := range counts {
		out = append(out, domain.TimelinePoint{Date: date, Count: count})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out
}

// selectHighlights отбирает значимые обновления; без значимых берёт верх общего порядка.
func selectHighlights(updates []domain.Update, limit int) []domain.Update {
	ordered := append([]domain.Update(nil), updates...)
	sort.SliceStable(ordered, func(i, j int) bool { return highlightLess(ordered[i], ordered[j]) })

	out := make([]domain.Update, 0, limit)
	seen := make(map[string]struct{})
	take := func(u domain.Update) {
		key := highlightKey(u)
		if _, ok := seen[key]; ok {
			return
		}
		seen[key] = struct{}{}
		out = append(out, u)
	}
	for _, u := range ordered {
		if len(out) >= limit {
			break
		}
		if u.ImpactLevel.Priority() == 3 {
			take(u)
		}
	}
	if len(out) > 0 {
		return out
	}
	for _, u := range ordered {
		if len(out) >= limit {
			break
		}
		take(u)
	}
	return out
}

func highlightLess(a, b domain.Update) bool {
	if pa, pb := a.ImpactLevel.Priority(), b.ImpactLevel.Priority(); pa != pb {
		return pa > pb
	}
	if sa, sb := score(a), score(b); sa != sb {
		return sa > sb
	}
	switch {
	case a.PublishedDate == nil:
		return false
	case b.PublishedDate == nil:
		return true
	default:
		return a.PublishedDate.After(*b.PublishedDate)
	}
}

func score(u domain.Update) float64 {
	if u.BusinessImpactScore == nil {
		return 0
	}
	return *u.BusinessImpactScore
}

func highlightKey(u domain.Update) string {
	if u.ID != "" {
		return "id:" + u.ID
	}
	if u.URL != "" {
		return "url:" + u.URL
	}
	sum := sha1.Sum([]byte(u.Title + "\n" + u.Summary))
	return "hash:" + hex.EncodeToString(sum[:])
}
