package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"reg-briefing/internal/adapters/api"
	"reg-briefing/internal/app"
	"reg-briefing/internal/infra/config"
	httpinfra "reg-briefing/internal/infra/http"
	logx "reg-briefing/internal/infra/log"
	"reg-briefing/internal/infra/metrics"
)

func main() {
	cfg := config.Load()
	logger := logx.NewLogger(cfg.AppEnv)

	metrics.MustRegister(prometheus.DefaultRegisterer)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	application, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("api: не удалось собрать приложение")
	}
	defer application.Close()

	srv := httpinfra.NewServer(logx.Component(logger, "http"))
	api.NewHandlers(application.Service, logx.Component(logger, "api")).Mount(srv.Router)

	metrics.StartServer(ctx, logx.Component(logger, "metrics"), cfg.MetricsAddr)
	go func() {
		if err := srv.Start(fmt.Sprintf(":%d", cfg.Port)); err != nil {
			logger.Error().Err(err).Msg("api: сервер остановлен")
			stop()
		}
	}()
	<-ctx.Done()
	logger.Info().Msg("api: остановка")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("api: ошибка остановки сервера")
	}
}
