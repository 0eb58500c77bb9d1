package dataset

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"reg-briefing/internal/domain"
)

var testNow = time.Date(2024, 10, 14, 12, 0, 0, 0, time.UTC)

type stubUpdates struct {
	updates []domain.Update
	queries []domain.UpdateQuery
	err     error
}

func (s *stubUpdates) ListUpdates(_ context.Context, q domain.UpdateQuery) ([]domain.Update, error) {
	s.queries = append(s.queries, q)
	if s.err != nil {
		return nil, s.err
	}
	var out []domain.Update
	for _, u := range s.updates {
		if u.PublishedDate == nil {
			continue
		}
		if u.PublishedDate.Before(q.Start) || u.PublishedDate.After(q.End) {
			continue
		}
		if q.EndExclusive && u.PublishedDate.Equal(q.End) {
			continue
		}
		out = append(out, u)
	}
	return out, nil
}

type stubAnnotations struct {
	annotations []domain.Annotation
	filter      domain.AnnotationFilter
}

func (s *stubAnnotations) ListAnnotations(_ context.Context, f domain.AnnotationFilter) ([]domain.Annotation, error) {
	s.filter = f
	return s.annotations, nil
}

func at(daysAgo float64) *time.Time {
	t := testNow.Add(-time.Duration(daysAgo * float64(24*time.Hour)))
	return &t
}

func update(id string, impact domain.ImpactLevel, daysAgo float64) domain.Update {
	return domain.Update{ID: id, Title: "Update " + id, Authority: "FCA", ImpactLevel: impact, Sectors: []string{"Banking"}, PublishedDate: at(daysAgo)}
}

func newTestBuilder(updates *stubUpdates, annotations *stubAnnotations) *Builder {
	var src domain.AnnotationSource
	if annotations != nil {
		src = annotations
	}
	return NewBuilder(updates, src, WithClock(func() time.Time { return testNow }), WithDefaults("test-v1", nil))
}

func windowDays(q domain.UpdateQuery) int {
	return int(q.End.Sub(q.Start).Hours() / 24)
}

func TestBuildWidensWindowToSmallestSatisfyingCandidate(t *testing.T) {
	store := &stubUpdates{}
	for i := 0; i < 12; i++ {
		store.updates = append(store.updates, update(fmt.Sprintf("u%d", i), domain.ImpactModerate, 25))
	}
	ds, err := newTestBuilder(store, nil).Build(context.Background(), Options{})
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if ds.SamplingWindowDays != 30 {
		t.Fatalf("ожидали окно 30 дней, получили %d", ds.SamplingWindowDays)
	}
	if len(ds.CurrentUpdates) != 12 {
		t.Fatalf("ожидали 12 обновлений, получили %d", len(ds.CurrentUpdates))
	}
	want := []int{7, 14, 21, 30}
	for i, w := range want {
		if got := windowDays(store.queries[i]); got != w {
			t.Fatalf("запрос %d: ожидали окно %d дней, получили %d", i, w, got)
		}
	}
	if !ds.DateRange.Start.Equal(testNow.Add(-30 * 24 * time.Hour)) {
		t.Fatalf("неожиданное начало окна: %v", ds.DateRange.Start)
	}
}

func TestBuildStopsWideningOnceEnoughUpdates(t *testing.T) {
	store := &stubUpdates{}
	for i := 0; i < 15; i++ {
		store.updates = append(store.updates, update(fmt.Sprintf("u%d", i), domain.ImpactModerate, 2))
	}
	ds, err := newTestBuilder(store, nil).Build(context.Background(), Options{})
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if ds.SamplingWindowDays != 7 {
		t.Fatalf("ожидали окно 7 дней, получили %d", ds.SamplingWindowDays)
	}
	// текущее, предыдущее и историческое окна
	if len(store.queries) != 3 {
		t.Fatalf("ожидали 3 запроса, получили %d", len(store.queries))
	}
	if got := windowDays(store.queries[2]); got != 28 {
		t.Fatalf("ожидали историю 28 дней, получили %d", got)
	}
	prev := store.queries[1]
	if !prev.End.Equal(ds.DateRange.Start) || windowDays(prev) != 7 {
		t.Fatalf("предыдущее окно должно предшествовать текущему: %+v", prev)
	}
}

func TestBuildWindowBoundaryBelongsToCurrentOnly(t *testing.T) {
	store := &stubUpdates{}
	for i := 0; i < 12; i++ {
		store.updates = append(store.updates, update(fmt.Sprintf("u%d", i), domain.ImpactModerate, 1))
	}
	store.updates = append(store.updates, update("edge", domain.ImpactModerate, 7))
	store.updates = append(store.updates, update("prev", domain.ImpactModerate, 10))

	ds, err := newTestBuilder(store, nil).Build(context.Background(), Options{})
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if ds.SamplingWindowDays != 7 || !ds.DateRange.Start.Equal(*at(7)) {
		t.Fatalf("ожидали окно 7 дней от границы, получили %d с %s", ds.SamplingWindowDays, ds.DateRange.Start)
	}
	contains := func(list []domain.Update, id string) bool {
		for _, u := range list {
			if u.ID == id {
				return true
			}
		}
		return false
	}
	if !contains(ds.CurrentUpdates, "edge") {
		t.Fatalf("обновление на границе должно попасть в текущее окно")
	}
	if contains(ds.PreviousUpdates, "edge") {
		t.Fatalf("обновление на границе не должно попасть в предыдущее окно")
	}
	if len(ds.PreviousUpdates) != 1 || ds.PreviousUpdates[0].ID != "prev" {
		t.Fatalf("ожидали только prev в предыдущем окне, получили %+v", ds.PreviousUpdates)
	}
}

func TestBuildNeverNarrowerThanExplicitStart(t *testing.T) {
	store := &stubUpdates{}
	start := testNow.Add(-40 * 24 * time.Hour)
	ds, err := newTestBuilder(store, nil).Build(context.Background(), Options{Start: &start})
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	for _, q := range store.queries[:2] {
		if q.Start.After(start) {
			t.Fatalf("окно сузилось относительно явного начала: %v", q.Start)
		}
	}
	if windowDays(store.queries[1]) != 45 {
		t.Fatalf("ожидали расширение сразу до 45 дней, получили %d", windowDays(store.queries[1]))
	}
	if ds.Stats.TotalUpdates != 0 {
		t.Fatalf("ожидали пустую статистику")
	}
}

func TestBuildHistoryFallbackToggle(t *testing.T) {
	store := &stubUpdates{}
	if _, err := newTestBuilder(store, nil).Build(context.Background(), Options{}); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	// 7, 14, 21, 30, 45, 60, запасные 28, предыдущее, история
	if len(store.queries) != 9 {
		t.Fatalf("ожидали 9 запросов с запасным окном, получили %d", len(store.queries))
	}
	if windowDays(store.queries[6]) != 28 {
		t.Fatalf("ожидали запасное окно 28 дней")
	}

	disabled := false
	store = &stubUpdates{}
	ds, err := newTestBuilder(store, nil).Build(context.Background(), Options{FallbackToHistory: &disabled})
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if len(store.queries) != 8 {
		t.Fatalf("ожидали 8 запросов без запасного окна, получили %d", len(store.queries))
	}
	if ds.SamplingWindowDays != 60 {
		t.Fatalf("ожидали окно 60 дней, получили %d", ds.SamplingWindowDays)
	}
	if windowDays(store.queries[7]) != 120 {
		t.Fatalf("история должна быть вдвое длиннее окна")
	}
}

func TestBuildEmptyStore(t *testing.T) {
	ds, err := newTestBuilder(&stubUpdates{}, &stubAnnotations{}).Build(context.Background(), Options{IncludeAnnotations: true})
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if ds.Stats.TotalUpdates != 0 {
		t.Fatalf("ожидали 0 обновлений")
	}
	if ds.HighlightUpdates == nil || len(ds.HighlightUpdates) != 0 {
		t.Fatalf("ожидали пустой, но не nil список подсветок")
	}
	if ds.AnnotationInsights.Totals.All != 0 {
		t.Fatalf("ожидали пустые аннотации")
	}
}

func TestBuildRejectsInvertedRange(t *testing.T) {
	start := testNow
	end := testNow.Add(-time.Hour)
	_, err := newTestBuilder(&stubUpdates{}, nil).Build(context.Background(), Options{Start: &start, End: &end})
	if !errors.Is(err, ErrInvalidDateRange) {
		t.Fatalf("ожидали ErrInvalidDateRange, получили %v", err)
	}
}

func TestBuildPropagatesStoreError(t *testing.T) {
	_, err := newTestBuilder(&stubUpdates{err: errors.New("db down")}, nil).Build(context.Background(), Options{})
	if err == nil {
		t.Fatalf("ожидали ошибку хранилища")
	}
}

func TestBuildFiltersByUpdateIDs(t *testing.T) {
	store := &stubUpdates{}
	for i := 0; i < 14; i++ {
		store.updates = append(store.updates, update(fmt.Sprintf("u%d", i), domain.ImpactModerate, 1))
	}
	ds, err := newTestBuilder(store, nil).Build(context.Background(), Options{UpdateIDs: []string{"u3", "u7", "missing"}})
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if len(ds.CurrentUpdates) != 2 {
		t.Fatalf("ожидали 2 обновления после фильтра, получили %d", len(ds.CurrentUpdates))
	}
}

func TestBuildStatsAndTimeline(t *testing.T) {
	store := &stubUpdates{updates: []domain.Update{
		{ID: "a", Authority: "FCA", ImpactLevel: "significant", Sectors: []string{"Banking", "Banking", "Insurance"}, PublishedDate: at(1)},
		{ID: "b", Authority: "PRA", ImpactLevel: "Moderate", Sectors: []string{"Banking"}, PublishedDate: at(1)},
		{ID: "c", Authority: "FCA", ImpactLevel: "", PublishedDate: at(2)},
	}}
	ds, err := newTestBuilder(store, nil).Build(context.Background(), Options{})
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if ds.Stats.ByImpact != (domain.ImpactCounts{Significant: 1, Moderate: 1, Informational: 1}) {
		t.Fatalf("неожиданное распределение влияния: %+v", ds.Stats.ByImpact)
	}
	if ds.Stats.ByAuthority[0] != (domain.CountBy{Key: "FCA", Count: 2}) {
		t.Fatalf("ожидали FCA первым: %+v", ds.Stats.ByAuthority)
	}
	if ds.Stats.BySector[0] != (domain.CountBy{Key: "Banking", Count: 2}) {
		t.Fatalf("секторы должны дедуплицироваться внутри обновления: %+v", ds.Stats.BySector)
	}
	if len(ds.HistoryTimeline) != 2 || ds.HistoryTimeline[0].Count != 1 || ds.HistoryTimeline[1].Count != 2 {
		t.Fatalf("неожиданная гистограмма: %+v", ds.HistoryTimeline)
	}
}

func TestSelectHighlightsSignificantOnly(t *testing.T) {
	var pool []domain.Update
	scores := []float64{3, 9, 9, 1, 5}
	for i, s := range scores {
		u := update(fmt.Sprintf("sig%d", i), domain.ImpactSignificant, float64(i))
		score := s
		u.BusinessImpactScore = &score
		pool = append(pool, u)
	}
	for i := 0; i < 15; i++ {
		score := 10.0
		u := update(fmt.Sprintf("mod%d", i), domain.ImpactModerate, 0)
		u.BusinessImpactScore = &score
		pool = append(pool, u)
	}
	got := selectHighlights(pool, 10)
	want := []string{"sig1", "sig2", "sig4", "sig0", "sig3"}
	if len(got) != len(want) {
		t.Fatalf("ожидали %d подсветок, получили %d", len(want), len(got))
	}
	for i, id := range want {
		if got[i].ID != id {
			t.Fatalf("позиция %d: ожидали %s, получили %s", i, id, got[i].ID)
		}
	}
}

func TestSelectHighlightsWithoutSignificant(t *testing.T) {
	var pool []domain.Update
	for i := 0; i < 12; i++ {
		pool = append(pool, update(fmt.Sprintf("info%d", i), domain.ImpactInformational, float64(i)))
	}
	for i := 0; i < 8; i++ {
		pool = append(pool, update(fmt.Sprintf("mod%d", i), domain.ImpactModerate, float64(10+i)))
	}
	got := selectHighlights(pool, 10)
	if len(got) != 10 {
		t.Fatalf("ожидали 10 подсветок, получили %d", len(got))
	}
	for i := 0; i < 8; i++ {
		if got[i].ID != fmt.Sprintf("mod%d", i) {
			t.Fatalf("позиция %d: ожидали mod%d, получили %s", i, i, got[i].ID)
		}
	}
	if got[8].ID != "info0" || got[9].ID != "info1" {
		t.Fatalf("ожидали самые свежие информационные в конце: %s, %s", got[8].ID, got[9].ID)
	}
}

func TestSelectHighlightsDeduplicates(t *testing.T) {
	a := update("", domain.ImpactSignificant, 1)
	a.URL = "https://example.test/x"
	b := a
	got := selectHighlights([]domain.Update{a, b}, 10)
	if len(got) != 1 {
		t.Fatalf("ожидали дедупликацию по url, получили %d", len(got))
	}
}

func TestBuildAnnotationInsights(t *testing.T) {
	store := &stubUpdates{updates: []domain.Update{update("u1", domain.ImpactSignificant, 1)}}
	notes := &stubAnnotations{annotations: []domain.Annotation{
		{ID: "a1", UpdateID: "u1", ActionType: "flag", Persona: "compliance", OriginPage: "dashboard", ReportIncluded: true},
		{ID: "a2", UpdateID: "u1", ActionType: "Assign", AssignedTo: []string{"legal"}, Persona: "compliance"},
		{ID: "a3", UpdateID: "other", ActionType: "task", OriginPage: "calendar"},
	}}
	visibility := []domain.Visibility{domain.VisibilityTeam}
	ds, err := newTestBuilder(store, notes).Build(context.Background(), Options{IncludeAnnotations: true, AnnotationVisibility: visibility})
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	want := domain.AnnotationTotals{All: 3, Flagged: 1, Assignments: 1, Tasks: 1, Notes: 0}
	if ds.AnnotationInsights.Totals != want {
		t.Fatalf("ожидали %+v, получили %+v", want, ds.AnnotationInsights.Totals)
	}
	if len(notes.filter.UpdateIDs) != 1 || notes.filter.UpdateIDs[0] != "u1" || len(notes.filter.Visibility) != 1 {
		t.Fatalf("фильтр аннотаций должен ограничиваться текущим окном: %+v", notes.filter)
	}
	if ds.Annotations[0].Update == nil || ds.Annotations[0].Update.ID != "u1" {
		t.Fatalf("аннотация должна ссылаться на обновление")
	}
	if ds.Annotations[2].Update != nil {
		t.Fatalf("аннотация без обновления в окне не должна ссылаться на него")
	}
	if ds.AnnotationInsights.ByPersona[0] != (domain.CountBy{Key: "compliance", Count: 2}) {
		t.Fatalf("неожиданная группировка по персоне: %+v", ds.AnnotationInsights.ByPersona)
	}
	if len(ds.AnnotationInsights.ReportCandidates) != 1 || ds.AnnotationInsights.ReportCandidates[0].UpdateTitle != "Update u1" {
		t.Fatalf("неожиданные кандидаты в отчёт: %+v", ds.AnnotationInsights.ReportCandidates)
	}
	if ds.PromptVersion != "test-v1" {
		t.Fatalf("ожидали версию промптов по умолчанию")
	}
}
