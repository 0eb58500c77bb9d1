package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"reg-briefing/internal/app"
	"reg-briefing/internal/domain"
	"reg-briefing/internal/infra/config"
	logx "reg-briefing/internal/infra/log"
	"reg-briefing/internal/infra/metrics"
)

const runTimeout = 30 * time.Minute

func main() {
	cfg := config.Load()
	logger := logx.NewLogger(cfg.AppEnv)

	metrics.MustRegister(prometheus.DefaultRegisterer)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	application, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("scheduler: не удалось собрать приложение")
	}
	defer application.Close()

	metrics.StartServer(ctx, logx.Component(logger, "metrics"), cfg.MetricsAddr)

	ticker := time.NewTicker(cfg.Briefing.ScheduleEvery)
	defer ticker.Stop()
	logger.Info().Dur("every", cfg.Briefing.ScheduleEvery).Msg("scheduler: старт")
	for {
		select {
		case <-ctx.Done():
			logger.Info().Msg("scheduler: остановка")
			return
		case <-ticker.C:
			status := application.Service.StartRun(domain.RunOptions{IncludeAnnotations: true})
			runCtx, cancel := context.WithTimeout(ctx, runTimeout)
			final, err := application.Service.AwaitRun(runCtx, status.RunID, 5*time.Second)
			cancel()
			if err != nil {
				logger.Error().Err(err).Str("run_id", status.RunID).Msg("scheduler: запуск не дождались")
				continue
			}
			if final.State == domain.RunFailed {
				logger.Error().Str("run_id", final.RunID).Str("error", final.Error).Msg("scheduler: запуск завершился ошибкой")
				continue
			}
			logger.Info().Str("run_id", final.RunID).Str("briefing_id", final.BriefingID).Bool("cache_hit", final.CacheHit).Msg("scheduler: брифинг готов")
		}
	}
}
