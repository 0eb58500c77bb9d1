package notifier

import (
	"context"
	"fmt"
	"html"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"reg-briefing/internal/domain"
	"reg-briefing/internal/infra/render"
)

type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

type briefingReader interface {
	GetBriefing(ctx context.Context, id string) (*domain.Briefing, error)
}

// Telegram отправляет итог запуска и одностраничную сводку в чат.
type Telegram struct {
	bot       sender
	chatID    int64
	briefings briefingReader
	log       zerolog.Logger
}

// NewTelegram создаёт уведомитель; briefings может быть nil, тогда сводка не прикладывается.
func NewTelegram(bot sender, chatID int64, briefings briefingReader, log zerolog.Logger) *Telegram {
	return &Telegram{bot: bot, chatID: chatID, briefings: briefings, log: log}
}

// NewTelegramBot создаёт клиента Bot API.
func NewTelegramBot(token string) (*tgbotapi.BotAPI, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram bot: %w", err)
	}
	return bot, nil
}

// NotifyRunFinished реализует domain.RunNotifier.
func (t *Telegram) NotifyRunFinished(ctx context.Context, e domain.RunEvent) error {
	text := t.format(ctx, e)
	for _, part := range splitMessage(text, telegramMessageLimit) {
		msg := tgbotapi.NewMessage(t.chatID, part)
		msg.ParseMode = tgbotapi.ModeHTML
		msg.DisableWebPagePreview = true
		if _, err := t.bot.Send(msg); err != nil {
			return fmt.Errorf("telegram send: %w", err)
		}
	}
	return nil
}

func (t *Telegram) format(ctx context.Context, e domain.RunEvent) string {
	var b strings.Builder
	if e.Status.State == domain.RunFailed {
		b.WriteString("⚠️ <b>Regulatory briefing failed</b>\n")
		fmt.Fprintf(&b, "Run: <code>%s</code>\n", html.EscapeString(e.Status.RunID))
		fmt.Fprintf(&b, "Error: %s", html.EscapeString(e.Status.Error))
		return b.String()
	}

	b.WriteString("🧭 <b>Regulatory briefing ready</b>\n")
	fmt.Fprintf(&b, "Window: %s to %s, %d updates\n", e.DateRange.Start.Format("2 Jan"), e.DateRange.End.Format("2 Jan 2006"), e.Updates)
	fmt.Fprintf(&b, "Briefing: <code>%s</code>", html.EscapeString(e.Status.BriefingID))
	if e.Status.CacheHit {
		b.WriteString(" (reused)")
	}
	if t.briefings == nil || e.Status.BriefingID == "" {
		return b.String()
	}
	briefing, err := t.briefings.GetBriefing(ctx, e.Status.BriefingID)
	if err != nil {
		t.log.Warn().Err(err).Str("briefing_id", e.Status.BriefingID).Msg("notifier: не удалось загрузить брифинг для сводки")
		return b.String()
	}
	if briefing == nil {
		return b.String()
	}
	if onePager := render.TelegramHTML(briefing.Artifacts.OnePager); onePager != "" {
		b.WriteString("\n\n" + onePager)
	}
	return b.String()
}
