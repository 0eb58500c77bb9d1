package notifier

import (
	"context"
	"errors"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"reg-briefing/internal/domain"
	"reg-briefing/internal/infra/metrics"
)

// RunFinishedEvent задаёт тип сообщения о завершении запуска.
const RunFinishedEvent = "briefing.run.finished"

type publisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// Rabbit публикует события о завершении запусков в очередь RabbitMQ.
type Rabbit struct {
	conn  *amqp.Connection
	ch    *amqp.Channel
	pub   publisher
	queue string
}

// DialRabbit подключается к брокеру и объявляет устойчивую очередь.
func DialRabbit(url, queue string) (*Rabbit, error) {
	if url == "" {
		return nil, errors.New("amqp url is empty")
	}
	if queue == "" {
		return nil, errors.New("queue name is empty")
	}
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("amqp dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("amqp channel: %w", err)
	}
	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("amqp declare %s: %w", queue, err)
	}
	return &Rabbit{conn: conn, ch: ch, pub: ch, queue: queue}, nil
}

// NotifyRunFinished реализует domain.RunNotifier.
func (r *Rabbit) NotifyRunFinished(ctx context.Context, e domain.RunEvent) error {
	body, err := e.Encode()
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	start := time.Now()
	err = r.pub.PublishWithContext(ctx, "", r.queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    start.UTC(),
		Type:         RunFinishedEvent,
		MessageId:    e.Status.RunID,
		Body:         body,
	})
	metrics.ObserveNetworkRequest("rabbitmq", "publish", r.queue, start, err)
	if err != nil {
		return fmt.Errorf("amqp publish: %w", err)
	}
	return nil
}

// Close закрывает канал и соединение.
func (r *Rabbit) Close() error {
	var errs []error
	if r.ch != nil {
		errs = append(errs, r.ch.Close())
	}
	if r.conn != nil {
		errs = append(errs, r.conn.Close())
	}
	return errors.Join(errs...)
}
