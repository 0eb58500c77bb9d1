package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"reg-briefing/internal/domain"
	"reg-briefing/internal/infra/metrics"
)

// Postgres реализует источники данных и хранилище брифингов на основе pgxpool.
type Postgres struct {
	pool *pgxpool.Pool
}

var (
	_ domain.UpdateSource     = (*Postgres)(nil)
	_ domain.AnnotationSource = (*Postgres)(nil)
	_ domain.BriefingStore    = (*Postgres)(nil)
	_ domain.MetricsRepo      = (*Postgres)(nil)
)

// NewPostgres создаёт адаптер БД.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

func (p *Postgres) connCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, 5*time.Second)
}

// ListUpdates реализует domain.UpdateSource.
func (p *Postgres) ListUpdates(ctx context.Context, q domain.UpdateQuery) ([]domain.Update, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	order := "DESC"
	if q.SortAsc {
		order = "ASC"
	}
	limit := q.Limit
	if limit <= 0 {
		limit = 500
	}
	upper := "<="
	if q.EndExclusive {
		upper = "<"
	}
	start := time.Now()
	rows, err := p.pool.Query(ctx, `
SELECT id, title, summary, authority, impact_level, urgency, business_impact_score,
       sectors, tags, published_date, url, jurisdiction, source, compliance_deadline
FROM regulatory_updates
WHERE published_date >= $1 AND published_date `+upper+` $2
ORDER BY published_date `+order+`, id
LIMIT $3`, q.Start, q.End, limit)
	if err != nil {
		metrics.ObserveNetworkRequest("postgres", "updates_select", "regulatory_updates", start, err)
		return nil, err
	}
	defer rows.Close()

	var out []domain.Update
	for rows.Next() {
		var u domain.Update
		var impact string
		if err := rows.Scan(&u.ID, &u.Title, &u.Summary, &u.Authority, &impact, &u.Urgency, &u.BusinessImpactScore,
			&u.Sectors, &u.Tags, &u.PublishedDate, &u.URL, &u.Jurisdiction, &u.Source, &u.ComplianceDeadline); err != nil {
			metrics.ObserveNetworkRequest("postgres", "updates_select", "regulatory_updates", start, err)
			return nil, err
		}
		u.ImpactLevel = domain.ImpactLevel(impact)
		out = append(out, u)
	}
	err = rows.Err()
	metrics.ObserveNetworkRequest("postgres", "updates_select", "regulatory_updates", start, err)
	return out, err
}

// ListAnnotations реализует domain.AnnotationSource.
func (p *Postgres) ListAnnotations(ctx context.Context, f domain.AnnotationFilter) ([]domain.Annotation, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	var updateIDs, visibility []string
	if len(f.UpdateIDs) > 0 {
		updateIDs = f.UpdateIDs
	}
	for _, v := range f.Visibility {
		visibility = append(visibility, string(v))
	}

	start := time.Now()
	rows, err := p.pool.Query(ctx, `
SELECT id, update_id, author, visibility, status, content, tags, assigned_to, linked_resources,
       persona, origin_page, action_type, priority, report_included, context, created_at, updated_at
FROM annotations
WHERE ($1::text[] IS NULL OR update_id = ANY($1))
  AND ($2::text[] IS NULL OR visibility = ANY($2))
ORDER BY created_at DESC, id`, updateIDs, visibility)
	if err != nil {
		metrics.ObserveNetworkRequest("postgres", "annotations_select", "annotations", start, err)
		return nil, err
	}
	defer rows.Close()

	var out []domain.Annotation
	for rows.Next() {
		var a domain.Annotation
		var vis, action string
		var rawContext []byte
		if err := rows.Scan(&a.ID, &a.UpdateID, &a.Author, &vis, &a.Status, &a.Content, &a.Tags, &a.AssignedTo, &a.LinkedResources,
			&a.Persona, &a.OriginPage, &action, &a.Priority, &a.ReportIncluded, &rawContext, &a.CreatedAt, &a.UpdatedAt); err != nil {
			metrics.ObserveNetworkRequest("postgres", "annotations_select", "annotations", start, err)
			return nil, err
		}
		a.Visibility = domain.Visibility(vis)
		a.ActionType = domain.ActionType(action)
		if len(rawContext) > 0 {
			if err := json.Unmarshal(rawContext, &a.Context); err != nil {
				return nil, fmt.Errorf("annotation %s context: %w", a.ID, err)
			}
		}
		out = append(out, a)
	}
	err = rows.Err()
	metrics.ObserveNetworkRequest("postgres", "annotations_select", "annotations", start, err)
	return out, err
}

// SaveBriefing реализует domain.BriefingStore. Повторное сохранение того же id игнорируется.
func (p *Postgres) SaveBriefing(ctx context.Context, b domain.Briefing) error {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	metadata, err := json.Marshal(b.Metadata)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}
	dataset, err := json.Marshal(b.Dataset)
	if err != nil {
		return fmt.Errorf("marshal dataset: %w", err)
	}
	artifacts, err := json.Marshal(b.Artifacts)
	if err != nil {
		return fmt.Errorf("marshal artifacts: %w", err)
	}

	start := time.Now()
	_, err = p.pool.Exec(ctx, `
INSERT INTO smart_briefings (id, run_id, generated_at, date_start, date_end, dataset_hash, metadata, dataset, artifacts)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
ON CONFLICT (id) DO NOTHING
`, b.ID, b.RunID, b.GeneratedAt, b.DateRange.Start, b.DateRange.End, b.Metadata.DatasetHash, metadata, dataset, artifacts)
	metrics.ObserveNetworkRequest("postgres", "briefing_insert", "smart_briefings", start, err)
	return err
}

// GetBriefing реализует domain.BriefingStore.
func (p *Postgres) GetBriefing(ctx context.Context, id string) (*domain.Briefing, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	var b domain.Briefing
	var metadata, dataset, artifacts []byte
	start := time.Now()
	err := p.pool.QueryRow(ctx, `
SELECT id::text, run_id::text, generated_at, date_start, date_end, metadata, dataset, artifacts
FROM smart_briefings
WHERE id::text = $1
`, id).Scan(&b.ID, &b.RunID, &b.GeneratedAt, &b.DateRange.Start, &b.DateRange.End, &metadata, &dataset, &artifacts)
	if errors.Is(err, pgx.ErrNoRows) {
		metrics.ObserveNetworkRequest("postgres", "briefing_select", "smart_briefings", start, nil)
		return nil, nil
	}
	metrics.ObserveNetworkRequest("postgres", "briefing_select", "smart_briefings", start, err)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(metadata, &b.Metadata); err != nil {
		return nil, fmt.Errorf("unmarshal metadata: %w", err)
	}
	if err := json.Unmarshal(dataset, &b.Dataset); err != nil {
		return nil, fmt.Errorf("unmarshal dataset: %w", err)
	}
	if err := json.Unmarshal(artifacts, &b.Artifacts); err != nil {
		return nil, fmt.Errorf("unmarshal artifacts: %w", err)
	}
	return &b, nil
}

// ListBriefings реализует domain.BriefingStore.
func (p *Postgres) ListBriefings(ctx context.Context, limit int) ([]domain.BriefingSummary, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	rows, err := p.pool.Query(ctx, `
SELECT id::text, generated_at, date_start, date_end, metadata
FROM smart_briefings
ORDER BY generated_at DESC
LIMIT $1`, limit)
	if err != nil {
		metrics.ObserveNetworkRequest("postgres", "briefings_list", "smart_briefings", start, err)
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.BriefingSummary, 0, limit)
	for rows.Next() {
		var s domain.BriefingSummary
		var metadata []byte
		if err := rows.Scan(&s.ID, &s.GeneratedAt, &s.DateRange.Start, &s.DateRange.End, &metadata); err != nil {
			metrics.ObserveNetworkRequest("postgres", "briefings_list", "smart_briefings", start, err)
			return nil, err
		}
		if err := json.Unmarshal(metadata, &s.Metadata); err != nil {
			return nil, fmt.Errorf("briefing %s metadata: %w", s.ID, err)
		}
		out = append(out, s)
	}
	err = rows.Err()
	metrics.ObserveNetworkRequest("postgres", "briefings_list", "smart_briefings", start, err)
	return out, err
}

// GetLatestBriefing реализует domain.BriefingStore.
func (p *Postgres) GetLatestBriefing(ctx context.Context) (*domain.Briefing, error) {
	list, err := p.ListBriefings(ctx, 1)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, nil
	}
	return p.GetBriefing(ctx, list[0].ID)
}

// LoadMetrics реализует domain.MetricsRepo.
func (p *Postgres) LoadMetrics(ctx context.Context) (domain.MetricsSnapshot, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	var payload []byte
	start := time.Now()
	err := p.pool.QueryRow(ctx, `SELECT payload FROM smart_briefing_metrics WHERE id = 1`).Scan(&payload)
	if errors.Is(err, pgx.ErrNoRows) {
		metrics.ObserveNetworkRequest("postgres", "metrics_select", "smart_briefing_metrics", start, nil)
		return domain.MetricsSnapshot{}, nil
	}
	metrics.ObserveNetworkRequest("postgres", "metrics_select", "smart_briefing_metrics", start, err)
	if err != nil {
		return domain.MetricsSnapshot{}, err
	}
	var snapshot domain.MetricsSnapshot
	if err := json.Unmarshal(payload, &snapshot); err != nil {
		return domain.MetricsSnapshot{}, fmt.Errorf("unmarshal metrics: %w", err)
	}
	return snapshot, nil
}

// SaveMetrics реализует domain.MetricsRepo.
func (p *Postgres) SaveMetrics(ctx context.Context, snapshot domain.MetricsSnapshot) error {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	payload, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("marshal metrics: %w", err)
	}
	start := time.Now()
	_, err = p.pool.Exec(ctx, `
INSERT INTO smart_briefing_metrics (id, payload, updated_at)
VALUES (1, $1, now())
ON CONFLICT (id) DO UPDATE SET payload = EXCLUDED.payload, updated_at = EXCLUDED.updated_at
`, payload)
	metrics.ObserveNetworkRequest("postgres", "metrics_upsert", "smart_briefing_metrics", start, err)
	return err
}
