package filestore

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"reg-briefing/internal/domain"
)

func briefingAt(id string, at time.Time) domain.Briefing {
	return domain.Briefing{
		ID:          id,
		RunID:       "run-" + id,
		GeneratedAt: at,
		Metadata:    domain.BriefingMetadata{DatasetHash: "hash-" + id},
		Artifacts:   domain.Artifacts{Narrative: "<p>" + id + "</p>"},
	}
}

func TestStoreSaveGetList(t *testing.T) {
	store, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	ctx := context.Background()
	base := time.Date(2024, 10, 1, 0, 0, 0, 0, time.UTC)
	for i, id := range []string{"a", "b", "c"} {
		if err := store.SaveBriefing(ctx, briefingAt(id, base.Add(time.Duration(i)*time.Hour))); err != nil {
			t.Fatalf("не ожидали ошибку: %v", err)
		}
	}

	got, err := store.GetBriefing(ctx, "b")
	if err != nil || got == nil {
		t.Fatalf("ожидали брифинг b: %v", err)
	}
	if got.Artifacts.Narrative != "<p>b</p>" || got.Metadata.DatasetHash != "hash-b" {
		t.Fatalf("неожиданное содержимое: %+v", got)
	}

	list, err := store.ListBriefings(ctx, 2)
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if len(list) != 2 || list[0].ID != "c" || list[1].ID != "b" {
		t.Fatalf("ожидали [c b], получили %+v", list)
	}

	latest, err := store.GetLatestBriefing(ctx)
	if err != nil || latest == nil || latest.ID != "c" {
		t.Fatalf("ожидали последний c: %+v %v", latest, err)
	}
}

func TestStoreMissing(t *testing.T) {
	store, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	ctx := context.Background()
	if b, err := store.GetBriefing(ctx, "missing"); b != nil || err != nil {
		t.Fatalf("ожидали nil без ошибки: %v %v", b, err)
	}
	if b, err := store.GetBriefing(ctx, "../etc/passwd"); b != nil || !errors.Is(err, domain.ErrInvalidBriefingID) {
		t.Fatalf("недопустимый id должен давать ошибку: %v %v", b, err)
	}
	if b, err := store.GetLatestBriefing(ctx); b != nil || err != nil {
		t.Fatalf("пустое хранилище: %v %v", b, err)
	}
	if err := store.SaveBriefing(ctx, briefingAt("../x", time.Now())); err == nil {
		t.Fatalf("ожидали ошибку для недопустимого id")
	}
}

func TestStoreSkipsCorruptFiles(t *testing.T) {
	dir := t.TempDir()
	store, err := New(dir)
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "broken.json"), []byte("{"), 0o644); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if err := store.SaveBriefing(context.Background(), briefingAt("ok", time.Now())); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	list, err := store.ListBriefings(context.Background(), 10)
	if err != nil || len(list) != 1 {
		t.Fatalf("повреждённый файл должен пропускаться: %+v %v", list, err)
	}
}

func TestMetricsFileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "metrics", "smart-briefing.json")
	m, err := NewMetricsFile(path)
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	ctx := context.Background()
	empty, err := m.LoadMetrics(ctx)
	if err != nil || empty.Totals.Runs != 0 {
		t.Fatalf("отсутствующий файл даёт пустой снимок: %+v %v", empty, err)
	}
	snapshot := domain.MetricsSnapshot{Totals: domain.MetricsTotals{Runs: 2, CacheHits: 1, TotalTokens: 90}, History: []domain.RunMetric{{RunID: "r2"}, {RunID: "r1"}}}
	if err := m.SaveMetrics(ctx, snapshot); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	loaded, err := m.LoadMetrics(ctx)
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if loaded.Totals != snapshot.Totals || len(loaded.History) != 2 || loaded.History[0].RunID != "r2" {
		t.Fatalf("неожиданный снимок: %+v", loaded)
	}
}
