package llm

import (
	"net/http"
	"strings"
	"time"
)

// Kind перечисляет поддерживаемых провайдеров LLM.
type Kind string

const (
	KindNone       Kind = "none"
	KindGroq       Kind = "groq"
	KindOpenRouter Kind = "openrouter"
)

// Strategy определяет порядок вызовов по артефактам.
type Strategy int

const (
	// StrategySequential выполняет вызовы по одному с паузой между ними.
	StrategySequential Strategy = iota
	// StrategyParallel выполняет все вызовы одновременно.
	StrategyParallel
)

// Provider хранит конфигурацию провайдера, выбранную один раз при старте.
type Provider struct {
	Kind           Kind
	BaseURL        string
	Model          string
	APIKey         string
	Timeout        time.Duration
	Strategy       Strategy
	InterCallDelay time.Duration

	referer string
	title   string
}

// Enabled сообщает, что провайдер настроен и сетевые вызовы возможны.
func (p Provider) Enabled() bool {
	return p.Kind != KindNone && p.APIKey != ""
}

// Name возвращает имя провайдера для логов и метрик.
func (p Provider) Name() string {
	if p.Kind == "" {
		return string(KindNone)
	}
	return string(p.Kind)
}

func (p Provider) endpoint() string {
	return strings.TrimRight(p.BaseURL, "/") + "/chat/completions"
}

func (p Provider) applyHeaders(h http.Header) {
	h.Set("Content-Type", "application/json")
	h.Set("Authorization", "Bearer "+p.APIKey)
	if p.Kind == KindOpenRouter {
		if p.referer != "" {
			h.Set("HTTP-Referer", p.referer)
		}
		if p.title != "" {
			h.Set("X-Title", p.title)
		}
	}
}

// GroqConfig содержит параметры Groq.
type GroqConfig struct {
	APIKey         string
	BaseURL        string
	Model          string
	Timeout        time.Duration
	InterCallDelay time.Duration
}

// OpenRouterConfig содержит параметры OpenRouter.
type OpenRouterConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
	Referer string
	Title   string
}

// SelectProvider выбирает провайдера по наличию ключей. Groq предпочтительнее,
// если заданы оба ключа; без ключей возвращается KindNone.
func SelectProvider(groq GroqConfig, openRouter OpenRouterConfig) Provider {
	switch {
	case strings.TrimSpace(groq.APIKey) != "":
		return Provider{
			Kind:           KindGroq,
			BaseURL:        orDefault(groq.BaseURL, "https://api.groq.com/openai/v1"),
			Model:          orDefault(groq.Model, "llama-3.3-70b-versatile"),
			APIKey:         strings.TrimSpace(groq.APIKey),
			Timeout:        durationOr(groq.Timeout, 60*time.Second),
			Strategy:       StrategySequential,
			InterCallDelay: durationOr(groq.InterCallDelay, 20*time.Second),
		}
	case strings.TrimSpace(openRouter.APIKey) != "":
		return Provider{
			Kind:     KindOpenRouter,
			BaseURL:  orDefault(openRouter.BaseURL, "https://openrouter.ai/api/v1"),
			Model:    orDefault(openRouter.Model, "deepseek/deepseek-chat"),
			APIKey:   strings.TrimSpace(openRouter.APIKey),
			Timeout:  durationOr(openRouter.Timeout, 90*time.Second),
			Strategy: StrategyParallel,
			referer:  openRouter.Referer,
			title:    openRouter.Title,
		}
	default:
		return Provider{Kind: KindNone}
	}
}

func orDefault(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}

func durationOr(v, def time.Duration) time.Duration {
	if v <= 0 {
		return def
	}
	return v
}
