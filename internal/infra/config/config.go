package config

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"reg-briefing/internal/domain"
)

// AppConfig описывает конфигурацию сервисов.
type AppConfig struct {
	AppEnv      string `envconfig:"APP_ENV" default:"dev"`
	Port        int    `envconfig:"PORT" default:"8080"`
	MetricsAddr string `envconfig:"METRICS_ADDR" default:":9090"`

	PGDSN     string `envconfig:"PG_DSN"`
	RedisAddr string `envconfig:"REDIS_ADDR"`

	Groq struct {
		APIKey         string        `envconfig:"GROQ_API_KEY"`
		BaseURL        string        `envconfig:"GROQ_BASE_URL" default:"https://api.groq.com/openai/v1"`
		Model          string        `envconfig:"GROQ_MODEL" default:"llama-3.3-70b-versatile"`
		Timeout        time.Duration `envconfig:"GROQ_TIMEOUT" default:"60s"`
		InterCallDelay time.Duration `envconfig:"GROQ_INTER_CALL_DELAY" default:"20s"`
	} `envconfig:""`

	OpenRouter struct {
		APIKey  string        `envconfig:"OPENROUTER_API_KEY"`
		BaseURL string        `envconfig:"OPENROUTER_BASE_URL" default:"https://openrouter.ai/api/v1"`
		Model   string        `envconfig:"OPENROUTER_MODEL" default:"deepseek/deepseek-chat"`
		Timeout time.Duration `envconfig:"OPENROUTER_TIMEOUT" default:"90s"`
		Referer string        `envconfig:"OPENROUTER_REFERER"`
		Title   string        `envconfig:"OPENROUTER_TITLE" default:"Regulatory Smart Briefing"`
	} `envconfig:""`

	Briefing struct {
		PromptVersion   string        `envconfig:"BRIEFING_PROMPT_VERSION" default:"2024-10-01"`
		FirmContextFile string        `envconfig:"BRIEFING_FIRM_CONTEXT_FILE"`
		CacheScanLimit  int           `envconfig:"BRIEFING_CACHE_SCAN_LIMIT" default:"50"`
		RunCapacity     int           `envconfig:"BRIEFING_RUN_CAPACITY" default:"500"`
		RunTTL          time.Duration `envconfig:"BRIEFING_RUN_TTL" default:"24h"`
		RetryBaseDelay  time.Duration `envconfig:"BRIEFING_RETRY_BASE_DELAY" default:"2s"`
		ScheduleEvery   time.Duration `envconfig:"BRIEFING_SCHEDULE_EVERY" default:"168h"`
	} `envconfig:""`

	Storage struct {
		// Primary: postgres или file; в режиме file брифинги и метрики живут только на диске.
		Primary     string        `envconfig:"BRIEFING_STORAGE_PRIMARY" default:"postgres"`
		BackupDir   string        `envconfig:"BRIEFING_BACKUP_DIR" default:"data/smart-briefings"`
		MetricsFile string        `envconfig:"BRIEFING_METRICS_FILE" default:"data/smart-briefings/metrics.json"`
		HashTTL     time.Duration `envconfig:"BRIEFING_HASH_TTL" default:"720h"`
	} `envconfig:""`

	Telegram struct {
		Token  string `envconfig:"TG_BOT_TOKEN"`
		ChatID int64  `envconfig:"TG_NOTIFY_CHAT_ID"`
	} `envconfig:""`

	Rabbit struct {
		URL   string `envconfig:"RABBITMQ_URL"`
		Queue string `envconfig:"RABBITMQ_BRIEFING_QUEUE" default:"briefing_events"`
	} `envconfig:""`
}

// Load загружает конфиг из окружения.
func Load() AppConfig {
	var cfg AppConfig
	if err := envconfig.Process("", &cfg); err != nil {
		log.Fatalf("не удалось загрузить конфиг: %v", err)
	}
	return cfg
}

// LoadFirmContext читает профиль фирмы из YAML-файла. Пустой путь ошибкой не считается.
func LoadFirmContext(path string) (*domain.FirmContext, error) {
	if path == "" {
		return nil, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("чтение профиля фирмы: %w", err)
	}
	var fc domain.FirmContext
	if err := yaml.Unmarshal(raw, &fc); err != nil {
		return nil, fmt.Errorf("разбор профиля фирмы: %w", err)
	}
	if fc.IsZero() {
		return nil, nil
	}
	return &fc, nil
}
