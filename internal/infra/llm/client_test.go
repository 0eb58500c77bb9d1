package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func testProvider(url string) Provider {
	p := SelectProvider(GroqConfig{}, OpenRouterConfig{APIKey: "key", BaseURL: url, Timeout: 2 * time.Second, Referer: "https://example.test", Title: "test"})
	return p
}

func fastOptions() []Option {
	return []Option{WithRetryBaseDelay(time.Millisecond), WithJitter(func() time.Duration { return 0 })}
}

func TestCreateChatCompletionRetriesTransientStatus(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := calls.Add(1)
		if r.URL.Path != "/chat/completions" {
			t.Errorf("неожиданный путь %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer key" {
			t.Errorf("нет заголовка авторизации")
		}
		if r.Header.Get("X-Title") != "test" {
			t.Errorf("нет заголовка X-Title для OpenRouter")
		}
		if n == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"error":{"message":"overloaded"}}`))
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"model":   "served-model",
			"choices": []map[string]any{{"message": map[string]string{"role": "assistant", "content": "ok"}}},
			"usage":   map[string]int{"prompt_tokens": 3, "completion_tokens": 2, "total_tokens": 5},
		})
	}))
	defer srv.Close()

	client := NewClient(testProvider(srv.URL), fastOptions()...)
	resp, err := client.CreateChatCompletion(context.Background(), ChatCompletionRequest{Messages: []ChatMessage{{Role: RoleUser, Content: "hi"}}})
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if calls.Load() != 2 {
		t.Fatalf("ожидали 2 попытки, получили %d", calls.Load())
	}
	if resp.Choices[0].Message.Content != "ok" || resp.Usage.TotalTokens != 5 || resp.Model != "served-model" {
		t.Fatalf("неожиданный ответ: %+v", resp)
	}
}

func TestCreateChatCompletionStopsAfterThreeAttempts(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	client := NewClient(testProvider(srv.URL), fastOptions()...)
	_, err := client.CreateChatCompletion(context.Background(), ChatCompletionRequest{})
	if err == nil {
		t.Fatalf("ожидали ошибку после исчерпания попыток")
	}
	if calls.Load() != 3 {
		t.Fatalf("ожидали 3 попытки, получили %d", calls.Load())
	}
}

func TestCreateChatCompletionDoesNotRetryClientError(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"message":"bad model"}}`))
	}))
	defer srv.Close()

	client := NewClient(testProvider(srv.URL), fastOptions()...)
	_, err := client.CreateChatCompletion(context.Background(), ChatCompletionRequest{})
	if calls.Load() != 1 {
		t.Fatalf("ожидали одну попытку, получили %d", calls.Load())
	}
	statusErr, ok := err.(*StatusError)
	if !ok || statusErr.StatusCode != http.StatusBadRequest || statusErr.Message != "bad model" {
		t.Fatalf("ожидали StatusError 400, получили %v", err)
	}
}

func TestCreateChatCompletionWithoutKey(t *testing.T) {
	client := NewClient(SelectProvider(GroqConfig{}, OpenRouterConfig{}))
	if _, err := client.CreateChatCompletion(context.Background(), ChatCompletionRequest{}); err != ErrNotConfigured {
		t.Fatalf("ожидали ErrNotConfigured, получили %v", err)
	}
}

func TestSelectProviderPrefersGroq(t *testing.T) {
	p := SelectProvider(GroqConfig{APIKey: "g"}, OpenRouterConfig{APIKey: "o"})
	if p.Kind != KindGroq || p.Strategy != StrategySequential {
		t.Fatalf("ожидали Groq с последовательной стратегией, получили %+v", p)
	}
	if p.InterCallDelay != 20*time.Second || p.Timeout != 60*time.Second {
		t.Fatalf("неожиданные значения по умолчанию: %+v", p)
	}
	p = SelectProvider(GroqConfig{}, OpenRouterConfig{APIKey: "o"})
	if p.Kind != KindOpenRouter || p.Strategy != StrategyParallel {
		t.Fatalf("ожидали OpenRouter с параллельной стратегией, получили %+v", p)
	}
	if p = SelectProvider(GroqConfig{APIKey: "  "}, OpenRouterConfig{}); p.Enabled() {
		t.Fatalf("пустой ключ не должен включать провайдера")
	}
}

func TestRetryable(t *testing.T) {
	cases := map[int]bool{429: true, 500: true, 502: true, 503: true, 504: true, 400: false, 401: false, 404: false}
	for code, want := range cases {
		if got := Retryable(&StatusError{StatusCode: code}); got != want {
			t.Fatalf("код %d: ожидали %v", code, want)
		}
	}
	if !Retryable(context.DeadlineExceeded) {
		t.Fatalf("таймаут должен повторяться")
	}
}
