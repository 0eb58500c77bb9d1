package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

var (
	BriefingRunsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "briefing_runs_total",
		Help: "Количество завершённых запусков генерации брифинга",
	}, []string{"outcome"})
	BriefingCacheHits = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "briefing_cache_hits_total",
		Help: "Запуски, завершённые из кэша по хэшу выборки",
	})
	BriefingRunSeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "briefing_run_seconds",
		Help:    "Время выполнения запуска брифинга",
		Buckets: []float64{.1, .5, 1, 5, 10, 30, 60, 90, 120, 180, 240, 300, 450, 600},
	})
	BriefingRunsInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "briefing_runs_in_flight",
		Help: "Запуски брифинга в обработке",
	})
	ArtifactFallbacks = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "briefing_artifact_fallbacks_total",
		Help: "Артефакты, заменённые шаблоном",
	}, []string{"artifact"})

	NetworkRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "network_request_duration_seconds",
		Help:    "Длительность сетевых запросов",
		Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 15, 20, 30, 45, 60, 75, 90, 120, 180},
	}, []string{"component", "operation", "target", "status"})

	NetworkRequestTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "network_request_total",
		Help: "Количество сетевых запросов",
	}, []string{"component", "operation", "target", "status"})

	LLMGenerationDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "llm_generation_duration_seconds",
		Help:    "Длительность генерации ответа LLM",
		Buckets: prometheus.DefBuckets,
	}, []string{"model"})

	LLMTokensTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "llm_tokens_total",
		Help: "Количество токенов, использованных LLM",
	}, []string{"model", "type"})

	LLMRetriesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "llm_retries_total",
		Help: "Повторные попытки вызова LLM",
	}, []string{"provider"})
)

// MustRegister регистрирует метрики.
func MustRegister(registerer prometheus.Registerer) {
	registerer.MustRegister(
		BriefingRunsTotal,
		BriefingCacheHits,
		BriefingRunSeconds,
		BriefingRunsInFlight,
		ArtifactFallbacks,
		NetworkRequestDuration,
		NetworkRequestTotal,
		LLMGenerationDuration,
		LLMTokensTotal,
		LLMRetriesTotal,
	)
}

// StartServer запускает HTTP сервер с эндпоинтом /metrics.
func StartServer(ctx context.Context, logger zerolog.Logger, addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
	}

	shutdownCtx, cancel := context.WithCancel(context.Background())
	go func() {
		select {
		case <-ctx.Done():
		case <-shutdownCtx.Done():
		}
		shutdownTimeout, timeoutCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer timeoutCancel()
		if err := srv.Shutdown(shutdownTimeout); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("metrics: graceful shutdown failed")
		}
	}()

	go func() {
		logger.Info().Str("addr", addr).Msg("metrics: server started")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("metrics: server stopped")
		}
		cancel()
	}()
}

// ObserveNetworkRequest записывает длительность и статус сетевого запроса.
func ObserveNetworkRequest(component, operation, target string, start time.Time, err error) {
	if component == "" {
		component = "unknown"
	}
	if operation == "" {
		operation = "unknown"
	}
	if target == "" {
		target = "unknown"
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	duration := time.Since(start).Seconds()
	NetworkRequestDuration.WithLabelValues(component, operation, target, status).Observe(duration)
	NetworkRequestTotal.WithLabelValues(component, operation, target, status).Inc()
}

// ObserveLLMGeneration записывает длительность и токены генерации LLM.
func ObserveLLMGeneration(model string, duration time.Duration, promptTokens, completionTokens, totalTokens int) {
	if model == "" {
		model = "unknown"
	}
	LLMGenerationDuration.WithLabelValues(model).Observe(duration.Seconds())
	if promptTokens > 0 {
		LLMTokensTotal.WithLabelValues(model, "prompt").Add(float64(promptTokens))
	}
	if completionTokens > 0 {
		LLMTokensTotal.WithLabelValues(model, "completion").Add(float64(completionTokens))
	}
	if totalTokens <= 0 {
		totalTokens = promptTokens + completionTokens
	}
	if totalTokens > 0 {
		LLMTokensTotal.WithLabelValues(model, "total").Add(float64(totalTokens))
	}
}

// ObserveBriefingRun фиксирует итог запуска брифинга.
func ObserveBriefingRun(outcome string, cacheHit bool, duration time.Duration) {
	if outcome == "" {
		outcome = "unknown"
	}
	BriefingRunsTotal.WithLabelValues(outcome).Inc()
	if cacheHit {
		BriefingCacheHits.Inc()
	}
	BriefingRunSeconds.Observe(duration.Seconds())
}

// IncArtifactFallback увеличивает счётчик шаблонных артефактов.
func IncArtifactFallback(artifact string) {
	ArtifactFallbacks.WithLabelValues(artifact).Inc()
}

// IncLLMRetry увеличивает счётчик повторов вызова LLM.
func IncLLMRetry(provider string) {
	LLMRetriesTotal.WithLabelValues(provider).Inc()
}
