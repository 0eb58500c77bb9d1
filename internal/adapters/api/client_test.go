package api

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"reg-briefing/internal/domain"
)

func TestClientAgainstHandlers(t *testing.T) {
	svc := &stubService{
		runs:      map[string]domain.RunStatus{"run-1": {RunID: "run-1", State: domain.RunCompleted, BriefingID: "b1"}},
		briefings: map[string]domain.Briefing{"b1": {ID: "b1"}, "latest": {ID: "latest"}},
	}
	srv := httptest.NewServer(newRouter(svc))
	defer srv.Close()
	c := NewClient(srv.URL+"/", srv.Client())
	ctx := context.Background()

	status, err := c.StartRun(ctx, domain.RunOptions{ForceRegenerate: true})
	if err != nil || status.RunID != "run-1" {
		t.Fatalf("неожиданный запуск: %+v %v", status, err)
	}
	if len(svc.started) != 1 || !svc.started[0].ForceRegenerate {
		t.Fatalf("опции не дошли до сервиса: %+v", svc.started)
	}

	var seen []domain.RunState
	final, err := c.WaitRun(ctx, "run-1", time.Millisecond, func(s domain.RunStatus) { seen = append(seen, s.State) })
	if err != nil || final.BriefingID != "b1" || len(seen) != 1 {
		t.Fatalf("неожиданное ожидание: %+v %v %v", final, err, seen)
	}

	if _, err := c.RunStatus(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("ожидали ErrNotFound: %v", err)
	}
	if b, err := c.Briefing(ctx, "b1"); err != nil || b.ID != "b1" {
		t.Fatalf("неожиданный брифинг: %+v %v", b, err)
	}
	if b, err := c.Latest(ctx); err != nil || b.ID != "latest" {
		t.Fatalf("неожиданный последний брифинг: %+v %v", b, err)
	}
	list, err := c.List(ctx, 3)
	if err != nil || len(list) != 2 || svc.listLimit != 3 {
		t.Fatalf("неожиданный список: %+v %v", list, err)
	}
	summary, err := c.Metrics(ctx)
	if err != nil || summary.Totals.Runs != 3 {
		t.Fatalf("неожиданные метрики: %+v %v", summary, err)
	}
}

func TestClientReportsAPIError(t *testing.T) {
	svc := &stubService{listErr: errors.New("db down")}
	srv := httptest.NewServer(newRouter(svc))
	defer srv.Close()
	_, err := NewClient(srv.URL, nil).List(context.Background(), 0)
	if err == nil || errors.Is(err, ErrNotFound) {
		t.Fatalf("ожидали ошибку сервера: %v", err)
	}
}
