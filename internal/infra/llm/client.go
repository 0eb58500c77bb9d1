package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"

	"reg-briefing/internal/infra/metrics"
)

// ErrNotConfigured возвращается, если у провайдера нет ключа.
var ErrNotConfigured = errors.New("llm: provider is not configured")

const defaultMaxAttempts = 3

// Client выполняет Chat Completions запросы к выбранному провайдеру с повторами.
type Client struct {
	http        *http.Client
	provider    Provider
	log         zerolog.Logger
	maxAttempts int
	retryBase   time.Duration
	jitter      func() time.Duration
}

// Option настраивает клиента.
type Option func(*Client)

// WithHTTPClient подменяет http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithLogger задаёт логгер.
func WithLogger(log zerolog.Logger) Option {
	return func(c *Client) { c.log = log }
}

// WithRetryBaseDelay задаёт шаг линейной задержки между попытками.
func WithRetryBaseDelay(d time.Duration) Option {
	return func(c *Client) { c.retryBase = d }
}

// WithJitter задаёт источник случайной добавки к задержке.
func WithJitter(fn func() time.Duration) Option {
	return func(c *Client) { c.jitter = fn }
}

// WithMaxAttempts задаёт число попыток на вызов.
func WithMaxAttempts(n int) Option {
	return func(c *Client) { c.maxAttempts = n }
}

// NewClient создаёт клиента для провайдера.
func NewClient(p Provider, opts ...Option) *Client {
	c := &Client{
		http:        &http.Client{},
		provider:    p,
		log:         zerolog.Nop(),
		maxAttempts: defaultMaxAttempts,
		retryBase:   2 * time.Second,
		jitter:      defaultJitter,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.maxAttempts < 1 {
		c.maxAttempts = 1
	}
	return c
}

// Provider возвращает конфигурацию провайдера.
func (c *Client) Provider() Provider {
	return c.provider
}

// ChatCompletionRequest описывает тело запроса.
type ChatCompletionRequest struct {
	Model          string                        `json:"model"`
	Messages       []ChatMessage                 `json:"messages"`
	Temperature    float64                       `json:"temperature"`
	MaxTokens      int                           `json:"max_tokens,omitempty"`
	ResponseFormat *ChatCompletionResponseFormat `json:"response_format,omitempty"`
}

// ChatMessage представляет сообщение в диалоге.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

const (
	// RoleSystem системная инструкция.
	RoleSystem = "system"
	// RoleUser сообщение пользователя.
	RoleUser = "user"
)

// ChatCompletionResponseFormat задаёт формат ответа.
type ChatCompletionResponseFormat struct {
	Type string `json:"type"`
}

// ResponseFormatTypeJSONObject просит вернуть объект JSON.
const ResponseFormatTypeJSONObject = "json_object"

// ChatCompletionResponse описывает ответ модели.
type ChatCompletionResponse struct {
	Model   string                 `json:"model"`
	Choices []ChatCompletionChoice `json:"choices"`
	Usage   *ChatCompletionUsage   `json:"usage,omitempty"`
}

// ChatCompletionChoice содержит сообщение модели.
type ChatCompletionChoice struct {
	Message ChatMessage `json:"message"`
}

// ChatCompletionUsage описывает статистику использования токенов.
type ChatCompletionUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// StatusError описывает ответ провайдера с HTTP-кодом ошибки.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("llm: status %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("llm: unexpected status %d", e.StatusCode)
}

// Retryable сообщает, стоит ли повторять вызов после ошибки.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		switch statusErr.StatusCode {
		case http.StatusTooManyRequests, http.StatusInternalServerError, http.StatusBadGateway,
			http.StatusServiceUnavailable, http.StatusGatewayTimeout:
			return true
		}
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// CreateChatCompletion вызывает /chat/completions с повторами при временных ошибках.
func (c *Client) CreateChatCompletion(ctx context.Context, req ChatCompletionRequest) (ChatCompletionResponse, error) {
	if !c.provider.Enabled() {
		return ChatCompletionResponse{}, ErrNotConfigured
	}
	if req.Model == "" {
		req.Model = c.provider.Model
	}
	body, err := json.Marshal(req)
	if err != nil {
		return ChatCompletionResponse{}, fmt.Errorf("llm: marshal request: %w", err)
	}

	var completion ChatCompletionResponse
	attempt := 0
	op := func() error {
		attempt++
		attemptCtx, cancel := context.WithTimeout(ctx, c.provider.Timeout)
		defer cancel()
		resp, err := c.do(attemptCtx, body, req.Model)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}
			if !Retryable(err) {
				return backoff.Permanent(err)
			}
			return err
		}
		completion = resp
		return nil
	}
	policy := backoff.WithContext(backoff.WithMaxRetries(newLinearBackOff(c.retryBase, c.jitter), uint64(c.maxAttempts-1)), ctx)
	notify := func(err error, wait time.Duration) {
		metrics.IncLLMRetry(c.provider.Name())
		c.log.Warn().Err(err).Int("attempt", attempt).Dur("wait", wait).Str("provider", c.provider.Name()).Msg("llm: повтор запроса")
	}
	if err := backoff.RetryNotify(op, policy, notify); err != nil {
		return ChatCompletionResponse{}, err
	}
	return completion, nil
}

func (c *Client) do(ctx context.Context, body []byte, model string) (ChatCompletionResponse, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.provider.endpoint(), bytes.NewReader(body))
	if err != nil {
		return ChatCompletionResponse{}, fmt.Errorf("llm: build request: %w", err)
	}
	c.provider.applyHeaders(httpReq.Header)

	component := c.provider.Name()
	start := time.Now()
	resp, err := c.http.Do(httpReq)
	if err != nil {
		metrics.ObserveNetworkRequest(component, "chat_completions", model, start, err)
		return ChatCompletionResponse{}, fmt.Errorf("llm: do request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		metrics.ObserveNetworkRequest(component, "chat_completions", model, start, err)
		return ChatCompletionResponse{}, fmt.Errorf("llm: read response: %w", err)
	}
	if resp.StatusCode >= 400 {
		statusErr := &StatusError{StatusCode: resp.StatusCode}
		var apiErr apiErrorResponse
		if err := json.Unmarshal(respBody, &apiErr); err == nil {
			statusErr.Message = apiErr.Error.Message
		}
		metrics.ObserveNetworkRequest(component, "chat_completions", model, start, statusErr)
		return ChatCompletionResponse{}, statusErr
	}
	var completion ChatCompletionResponse
	if err := json.Unmarshal(respBody, &completion); err != nil {
		metrics.ObserveNetworkRequest(component, "chat_completions", model, start, err)
		return ChatCompletionResponse{}, fmt.Errorf("llm: decode response: %w", err)
	}
	metrics.ObserveNetworkRequest(component, "chat_completions", model, start, nil)
	if completion.Usage != nil {
		metrics.ObserveLLMGeneration(model, time.Since(start), completion.Usage.PromptTokens, completion.Usage.CompletionTokens, completion.Usage.TotalTokens)
	}
	if completion.Model == "" {
		completion.Model = model
	}
	return completion, nil
}

type apiErrorResponse struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}
