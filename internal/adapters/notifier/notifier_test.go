package notifier

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"

	"reg-briefing/internal/domain"
)

type fakeSender struct {
	sent []tgbotapi.MessageConfig
	err  error
}

func (f *fakeSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	if f.err != nil {
		return tgbotapi.Message{}, f.err
	}
	if msg, ok := c.(tgbotapi.MessageConfig); ok {
		f.sent = append(f.sent, msg)
	}
	return tgbotapi.Message{}, nil
}

type fakeBriefings struct {
	briefing *domain.Briefing
}

func (f fakeBriefings) GetBriefing(context.Context, string) (*domain.Briefing, error) {
	return f.briefing, nil
}

func completedEvent() domain.RunEvent {
	end := time.Date(2024, 10, 14, 0, 0, 0, 0, time.UTC)
	return domain.RunEvent{
		Status:    domain.RunStatus{RunID: "run-1", State: domain.RunCompleted, BriefingID: "b-1", CacheHit: true},
		DateRange: domain.DateRange{Start: end.AddDate(0, 0, -7), End: end},
		Updates:   14,
	}
}

func TestTelegramNotifyCompleted(t *testing.T) {
	bot := &fakeSender{}
	briefings := fakeBriefings{briefing: &domain.Briefing{ID: "b-1", Artifacts: domain.Artifacts{OnePager: "<h3>Executive summary</h3><p>Calm week.</p>"}}}
	n := NewTelegram(bot, 42, briefings, zerolog.Nop())

	if err := n.NotifyRunFinished(context.Background(), completedEvent()); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if len(bot.sent) != 1 {
		t.Fatalf("ожидали одно сообщение, получили %d", len(bot.sent))
	}
	msg := bot.sent[0]
	if msg.ChatID != 42 || msg.ParseMode != tgbotapi.ModeHTML {
		t.Fatalf("неожиданные параметры сообщения: %+v", msg)
	}
	for _, want := range []string{"Window: 7 Oct to 14 Oct 2024, 14 updates", "<code>b-1</code> (reused)", "<b>Executive summary</b>", "Calm week."} {
		if !strings.Contains(msg.Text, want) {
			t.Fatalf("ожидали %q в тексте: %s", want, msg.Text)
		}
	}
}

func TestTelegramNotifyFailed(t *testing.T) {
	bot := &fakeSender{}
	n := NewTelegram(bot, 1, nil, zerolog.Nop())
	event := domain.RunEvent{Status: domain.RunStatus{RunID: "run-2", State: domain.RunFailed, Error: "start <after> end"}}
	if err := n.NotifyRunFinished(context.Background(), event); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if !strings.Contains(bot.sent[0].Text, "start &lt;after&gt; end") {
		t.Fatalf("текст ошибки должен экранироваться: %s", bot.sent[0].Text)
	}
}

func TestTelegramSendError(t *testing.T) {
	n := NewTelegram(&fakeSender{err: errors.New("forbidden")}, 1, nil, zerolog.Nop())
	if err := n.NotifyRunFinished(context.Background(), completedEvent()); err == nil {
		t.Fatalf("ожидали ошибку отправки")
	}
}

type fakePublisher struct {
	key string
	msg amqp.Publishing
	err error
}

func (f *fakePublisher) PublishWithContext(_ context.Context, _, key string, _, _ bool, msg amqp.Publishing) error {
	f.key = key
	f.msg = msg
	return f.err
}

func TestRabbitPublishesEvent(t *testing.T) {
	pub := &fakePublisher{}
	r := &Rabbit{pub: pub, queue: "briefing.events"}
	if err := r.NotifyRunFinished(context.Background(), completedEvent()); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if pub.key != "briefing.events" || pub.msg.Type != RunFinishedEvent || pub.msg.MessageId != "run-1" {
		t.Fatalf("неожиданная публикация: %+v", pub.msg)
	}
	var decoded domain.RunEvent
	if err := json.Unmarshal(pub.msg.Body, &decoded); err != nil {
		t.Fatalf("тело должно быть JSON: %v", err)
	}
	if decoded.Status.BriefingID != "b-1" || decoded.Updates != 14 {
		t.Fatalf("неожиданное событие: %+v", decoded)
	}
}

func TestRabbitPublishError(t *testing.T) {
	r := &Rabbit{pub: &fakePublisher{err: errors.New("closed")}, queue: "q"}
	if err := r.NotifyRunFinished(context.Background(), completedEvent()); err == nil {
		t.Fatalf("ожидали ошибку публикации")
	}
}

type countingNotifier struct {
	calls int
	err   error
}

func (c *countingNotifier) NotifyRunFinished(context.Context, domain.RunEvent) error {
	c.calls++
	return c.err
}

func TestMultiContinuesAfterFailure(t *testing.T) {
	first := &countingNotifier{err: errors.New("down")}
	second := &countingNotifier{}
	err := Multi{first, nil, second}.NotifyRunFinished(context.Background(), completedEvent())
	if err == nil {
		t.Fatalf("ошибка первого уведомителя должна вернуться")
	}
	if first.calls != 1 || second.calls != 1 {
		t.Fatalf("все уведомители должны вызываться")
	}
}
