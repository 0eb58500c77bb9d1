package app

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"reg-briefing/internal/adapters/filestore"
	"reg-briefing/internal/adapters/notifier"
	"reg-briefing/internal/adapters/repo"
	"reg-briefing/internal/adapters/storage"
	"reg-briefing/internal/domain"
	"reg-briefing/internal/infra/cache"
	"reg-briefing/internal/infra/config"
	"reg-briefing/internal/infra/db"
	"reg-briefing/internal/infra/llm"
	logx "reg-briefing/internal/infra/log"
	"reg-briefing/internal/usecase/artifacts"
	"reg-briefing/internal/usecase/briefing"
	"reg-briefing/internal/usecase/dataset"
)

const storagePrimaryFile = "file"

// App держит собранный оркестратор брифингов и его зависимости.
type App struct {
	Service *briefing.Service
	Log     zerolog.Logger

	closers []io.Closer
	pool    *pgxpool.Pool
}

// New подключает хранилища, выбирает провайдера LLM и собирает Service.
func New(ctx context.Context, cfg config.AppConfig, logger zerolog.Logger) (*App, error) {
	a := &App{Log: logger}

	if cfg.PGDSN == "" {
		return nil, errors.New("app: PG_DSN не задан")
	}
	pool, err := db.Connect(cfg.PGDSN)
	if err != nil {
		return nil, fmt.Errorf("app: подключение к БД: %w", err)
	}
	a.pool = pool
	if err := db.Migrate(ctx, pool); err != nil {
		a.Close()
		return nil, fmt.Errorf("app: миграции: %w", err)
	}
	pg := repo.NewPostgres(pool)

	backup, err := filestore.New(cfg.Storage.BackupDir)
	if err != nil {
		a.Close()
		return nil, err
	}
	var (
		primary     domain.BriefingStore = pg
		metricsRepo domain.MetricsRepo   = pg
	)
	if cfg.Storage.Primary == storagePrimaryFile {
		primary = nil
		mf, err := filestore.NewMetricsFile(cfg.Storage.MetricsFile)
		if err != nil {
			a.Close()
			return nil, err
		}
		metricsRepo = mf
	}
	store := storage.NewDualWrite(primary, backup, logx.Component(logger, "storage"))

	firm, err := config.LoadFirmContext(cfg.Briefing.FirmContextFile)
	if err != nil {
		a.Close()
		return nil, err
	}
	builder := dataset.NewBuilder(pg, pg, dataset.WithDefaults(cfg.Briefing.PromptVersion, firm))

	provider := llm.SelectProvider(
		llm.GroqConfig{
			APIKey:         cfg.Groq.APIKey,
			BaseURL:        cfg.Groq.BaseURL,
			Model:          cfg.Groq.Model,
			Timeout:        cfg.Groq.Timeout,
			InterCallDelay: cfg.Groq.InterCallDelay,
		},
		llm.OpenRouterConfig{
			APIKey:  cfg.OpenRouter.APIKey,
			BaseURL: cfg.OpenRouter.BaseURL,
			Model:   cfg.OpenRouter.Model,
			Timeout: cfg.OpenRouter.Timeout,
			Referer: cfg.OpenRouter.Referer,
			Title:   cfg.OpenRouter.Title,
		},
	)
	var generator *artifacts.Generator
	if provider.Enabled() {
		client := llm.NewClient(provider,
			llm.WithLogger(logx.Component(logger, "llm")),
			llm.WithRetryBaseDelay(cfg.Briefing.RetryBaseDelay),
		)
		generator = artifacts.NewGenerator(client, logx.Component(logger, "artifacts"))
	} else {
		logger.Warn().Msg("app: ключи LLM не заданы, артефакты будут собраны из шаблонов")
		generator = artifacts.NewGenerator(nil, logx.Component(logger, "artifacts"))
	}

	opts := []briefing.Option{
		briefing.WithMetricsRecorder(briefing.NewMetricsRecorder(metricsRepo, logx.Component(logger, "metrics"))),
	}
	if cfg.RedisAddr != "" {
		client, err := cache.Connect(ctx, cfg.RedisAddr)
		if err != nil {
			logger.Warn().Err(err).Msg("app: redis недоступен, поиск в кэше только перебором")
		} else {
			a.closers = append(a.closers, client)
			opts = append(opts, briefing.WithHashIndex(cache.NewRedis(client, cfg.Storage.HashTTL)))
		}
	}
	if n := a.notifiers(cfg, store, logger); len(n) > 0 {
		opts = append(opts, briefing.WithNotifier(n))
	}

	a.Service = briefing.NewService(builder, generator, store, logx.Component(logger, "briefing"), briefing.Config{
		CacheScanLimit: cfg.Briefing.CacheScanLimit,
		RunCapacity:    cfg.Briefing.RunCapacity,
		RunTTL:         cfg.Briefing.RunTTL,
		Provider:       provider.Name(),
	}, opts...)
	logger.Info().Str("provider", provider.Name()).Str("storage", cfg.Storage.Primary).Msg("app: оркестратор собран")
	return a, nil
}

// notifiers подключает Telegram и RabbitMQ; недоступный канал только логируется.
func (a *App) notifiers(cfg config.AppConfig, store domain.BriefingStore, logger zerolog.Logger) notifier.Multi {
	var out notifier.Multi
	if cfg.Telegram.Token != "" && cfg.Telegram.ChatID != 0 {
		bot, err := notifier.NewTelegramBot(cfg.Telegram.Token)
		if err != nil {
			logger.Warn().Err(err).Msg("app: telegram недоступен")
		} else {
			out = append(out, notifier.NewTelegram(bot, cfg.Telegram.ChatID, store, logx.Component(logger, "telegram")))
		}
	}
	if cfg.Rabbit.URL != "" {
		r, err := notifier.DialRabbit(cfg.Rabbit.URL, cfg.Rabbit.Queue)
		if err != nil {
			logger.Warn().Err(err).Msg("app: rabbitmq недоступен")
		} else {
			a.closers = append(a.closers, r)
			out = append(out, r)
		}
	}
	return out
}

// Close дожидается активных запусков и освобождает соединения.
func (a *App) Close() {
	if a.Service != nil {
		a.Service.Wait()
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			a.Log.Warn().Err(err).Msg("app: ошибка закрытия")
		}
	}
	if a.pool != nil {
		a.pool.Close()
	}
}
