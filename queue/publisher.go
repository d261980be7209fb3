package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Publisher отправляет доменные события во внешний брокер. Доставка не
// участвует в исходе породившей её операции: вызывающая сторона логирует
// ошибку и продолжает.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, payload interface{}) error
	Close() error
}

// AMQPPublisher держит одно соединение и один канал на процесс.
// Очереди объявляются лениво при первой публикации по каждому ключу.
type AMQPPublisher struct {
	mu       sync.Mutex
	conn     *amqp.Connection
	channel  *amqp.Channel
	declared map[string]bool
	logger   *slog.Logger
}

func NewAMQPPublisher(url string, logger *slog.Logger) (*AMQPPublisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to dial amqp broker: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open amqp channel: %w", err)
	}
	return &AMQPPublisher{
		conn:     conn,
		channel:  ch,
		declared: make(map[string]bool),
		logger:   logger,
	}, nil
}

func (p *AMQPPublisher) Publish(ctx context.Context, routingKey string, payload interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal event payload: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.declared[routingKey] {
		if _, err := p.channel.QueueDeclare(routingKey, true, false, false, false, nil); err != nil {
			return fmt.Errorf("failed to declare queue %q: %w", routingKey, err)
		}
		p.declared[routingKey] = true
	}

	err = p.channel.PublishWithContext(ctx,
		"",         // exchange по умолчанию
		routingKey, // ключ = имя очереди
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now().UTC(),
			Body:         body,
		})
	if err != nil {
		return fmt.Errorf("failed to publish event %q: %w", routingKey, err)
	}
	return nil
}

func (p *AMQPPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.channel != nil {
		if err := p.channel.Close(); err != nil {
			p.logger.Warn("failed to close amqp channel", slog.Any("error", err))
		}
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}
