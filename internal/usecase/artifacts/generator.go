package artifacts

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"reg-briefing/internal/domain"
	"reg-briefing/internal/infra/llm"
	"reg-briefing/internal/infra/metrics"
	"reg-briefing/internal/infra/render"
	"reg-briefing/internal/usecase/prompts"
)

type chatClient interface {
	Provider() llm.Provider
	CreateChatCompletion(ctx context.Context, req llm.ChatCompletionRequest) (llm.ChatCompletionResponse, error)
}

// callSpec описывает вызов модели для одного артефакта.
type callSpec struct {
	kind        domain.ArtifactKind
	prompt      func(prompts.Payload) (string, string)
	temperature float64
	maxTokens   int
	json        bool
}

var callSpecs = []callSpec{
	{kind: domain.ArtifactNarrative, prompt: prompts.Narrative, temperature: 0.7, maxTokens: 1800},
	{kind: domain.ArtifactChangeDetection, prompt: prompts.ChangeDetection, temperature: 0.2, maxTokens: 1200, json: true},
	{kind: domain.ArtifactOnePager, prompt: prompts.OnePager, temperature: 0.6, maxTokens: 1200},
	{kind: domain.ArtifactTeamBriefing, prompt: prompts.TeamBriefing, temperature: 0.6, maxTokens: 1400},
}

type callResult struct {
	text   string
	change domain.ChangeDetection
	usage  *domain.TokenUsage
	model  string
	err    error
}

// Generator генерирует артефакты брифинга через LLM с шаблонами на случай сбоя.
type Generator struct {
	client chatClient
	log    zerolog.Logger
	sleep  func(ctx context.Context, d time.Duration) error
}

// Option настраивает генератор.
type Option func(*Generator)

// WithSleep подменяет ожидание между последовательными вызовами.
func WithSleep(fn func(ctx context.Context, d time.Duration) error) Option {
	return func(g *Generator) { g.sleep = fn }
}

// NewGenerator создаёт генератор. client может быть nil: тогда используются шаблоны.
func NewGenerator(client chatClient, log zerolog.Logger, opts ...Option) *Generator {
	g := &Generator{client: client, log: log, sleep: sleepCtx}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Generate строит четыре артефакта. Ошибка возвращается только если нельзя
// подготовить данные для модели; сбои отдельных вызовов заменяются шаблонами.
func (g *Generator) Generate(ctx context.Context, ds domain.Dataset) (domain.Artifacts, domain.UsageMetrics, error) {
	usage := domain.UsageMetrics{Requests: []domain.ArtifactRequest{}}
	if g.client == nil || !g.client.Provider().Enabled() {
		g.log.Info().Msg("artifacts: провайдер LLM не настроен, используем шаблоны")
		return Fallback(ds), usage, nil
	}
	provider := g.client.Provider()
	limits := prompts.OpenRouterLimits
	if provider.Kind == llm.KindGroq {
		limits = prompts.GroqLimits
	}
	payload, err := prompts.BuildPayload(ds, limits)
	if err != nil {
		return domain.Artifacts{}, domain.UsageMetrics{}, fmt.Errorf("подготовка payload: %w", err)
	}

	results := make([]callResult, len(callSpecs))
	switch provider.Strategy {
	case llm.StrategySequential:
		for i, spec := range callSpecs {
			if i > 0 && provider.InterCallDelay > 0 {
				if err := g.sleep(ctx, provider.InterCallDelay); err != nil {
					results[i] = callResult{err: err}
					continue
				}
			}
			results[i] = g.call(ctx, spec, payload)
		}
	default:
		var eg errgroup.Group
		for i, spec := range callSpecs {
			eg.Go(func() error {
				results[i] = g.call(ctx, spec, payload)
				return nil
			})
		}
		_ = eg.Wait()
	}

	var out domain.Artifacts
	for i, spec := range callSpecs {
		res := results[i]
		if res.err != nil {
			g.log.Warn().Err(res.err).Str("artifact", string(spec.kind)).Str("model", fallbackModel).Msg("artifacts: генерация не удалась, используем шаблон")
			metrics.IncArtifactFallback(string(spec.kind))
			fallback(spec.kind, ds, &out)
			continue
		}
		switch spec.kind {
		case domain.ArtifactNarrative:
			out.Narrative = res.text
		case domain.ArtifactChangeDetection:
			out.ChangeDetection = res.change
		case domain.ArtifactOnePager:
			out.OnePager = res.text
		case domain.ArtifactTeamBriefing:
			out.TeamBriefing = res.text
		}
		if res.usage != nil {
			usage.TotalTokens += res.usage.TotalTokens
			usage.Requests = append(usage.Requests, domain.ArtifactRequest{Artifact: spec.kind, Usage: res.usage, Model: res.model})
		}
	}
	return out, usage, nil
}

func (g *Generator) call(ctx context.Context, spec callSpec, payload prompts.Payload) callResult {
	system, user := spec.prompt(payload)
	req := llm.ChatCompletionRequest{
		Temperature: spec.temperature,
		MaxTokens:   spec.maxTokens,
		Messages: []llm.ChatMessage{
			{Role: llm.RoleSystem, Content: system},
			{Role: llm.RoleUser, Content: user},
		},
	}
	if spec.json {
		req.ResponseFormat = &llm.ChatCompletionResponseFormat{Type: llm.ResponseFormatTypeJSONObject}
	}
	resp, err := g.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return callResult{err: fmt.Errorf("%s: %w", spec.kind, err)}
	}
	if len(resp.Choices) == 0 {
		return callResult{err: fmt.Errorf("%s: %w", spec.kind, errEmptyContent)}
	}
	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	res := callResult{model: resp.Model}
	if resp.Usage != nil {
		res.usage = &domain.TokenUsage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		}
	}
	if spec.json {
		res.change, res.err = parseChangeDetection(content)
		return res
	}
	res.text = render.HTML(content)
	if res.text == "" {
		res.err = fmt.Errorf("%s: %w", spec.kind, errEmptyContent)
	}
	return res
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
