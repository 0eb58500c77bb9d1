package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"reg-briefing/internal/domain"
	"reg-briefing/internal/infra/metrics"
)

// ErrNotFound возвращается, когда API ответил 404.
var ErrNotFound = errors.New("not found")

// Client обращается к HTTP API брифингов.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient создаёт клиента; hc может быть nil.
func NewClient(baseURL string, hc *http.Client) *Client {
	if hc == nil {
		hc = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), http: hc}
}

// StartRun ставит запуск в очередь.
func (c *Client) StartRun(ctx context.Context, opts domain.RunOptions) (domain.RunStatus, error) {
	var status domain.RunStatus
	err := c.do(ctx, http.MethodPost, "/api/briefings/runs", opts, &status)
	return status, err
}

// RunStatus возвращает статус запуска.
func (c *Client) RunStatus(ctx context.Context, runID string) (domain.RunStatus, error) {
	var status domain.RunStatus
	err := c.do(ctx, http.MethodGet, "/api/briefings/runs/"+url.PathEscape(runID), nil, &status)
	return status, err
}

// WaitRun опрашивает статус, пока запуск не завершится.
func (c *Client) WaitRun(ctx context.Context, runID string, interval time.Duration, onChange func(domain.RunStatus)) (domain.RunStatus, error) {
	var last domain.RunState
	for {
		status, err := c.RunStatus(ctx, runID)
		if err != nil {
			return status, err
		}
		if status.State != last && onChange != nil {
			onChange(status)
		}
		last = status.State
		if status.State.Terminal() {
			return status, nil
		}
		select {
		case <-ctx.Done():
			return status, ctx.Err()
		case <-time.After(interval):
		}
	}
}

// Briefing возвращает брифинг по идентификатору.
func (c *Client) Briefing(ctx context.Context, id string) (domain.Briefing, error) {
	var b domain.Briefing
	err := c.do(ctx, http.MethodGet, "/api/briefings/"+url.PathEscape(id), nil, &b)
	return b, err
}

// Latest возвращает последний брифинг.
func (c *Client) Latest(ctx context.Context) (domain.Briefing, error) {
	var b domain.Briefing
	err := c.do(ctx, http.MethodGet, "/api/briefings/latest", nil, &b)
	return b, err
}

// List возвращает краткие записи брифингов.
func (c *Client) List(ctx context.Context, limit int) ([]domain.BriefingSummary, error) {
	var resp struct {
		Briefings []domain.BriefingSummary `json:"briefings"`
	}
	path := "/api/briefings"
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}
	err := c.do(ctx, http.MethodGet, path, nil, &resp)
	return resp.Briefings, err
}

// Metrics возвращает сводку метрик запусков.
func (c *Client) Metrics(ctx context.Context) (domain.MetricsSummary, error) {
	var summary domain.MetricsSummary
	err := c.do(ctx, http.MethodGet, "/api/briefings/metrics", nil, &summary)
	return summary, err
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) (err error) {
	start := time.Now()
	defer func() {
		metrics.ObserveNetworkRequest("briefing_api", method, c.baseURL, start, err)
	}()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	if resp.StatusCode >= 300 {
		var apiErr struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&apiErr)
		if apiErr.Error == "" {
			apiErr.Error = resp.Status
		}
		return fmt.Errorf("%s %s: %d %s", method, path, resp.StatusCode, apiErr.Error)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
