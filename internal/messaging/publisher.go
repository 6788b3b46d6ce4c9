package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// SessionFinishedEvent is emitted once per session, when the last step has
// been answered and the closing summary generated.
type SessionFinishedEvent struct {
	SessionID  string    `json:"session_id"`
	Topic      string    `json:"topic"`
	Score      int       `json:"score"`
	MaxSteps   int       `json:"max_steps"`
	FinishedAt time.Time `json:"finished_at"`
}

// SessionEventPublisher publishes lifecycle events of story sessions.
type SessionEventPublisher interface {
	PublishSessionFinished(ctx context.Context, event SessionFinishedEvent) error
}

// rabbitMQPublisher implements SessionEventPublisher over a RabbitMQ channel.
type rabbitMQPublisher struct {
	channel   *amqp.Channel
	queueName string
	logger    *zap.Logger
}

var _ SessionEventPublisher = (*rabbitMQPublisher)(nil)

// NewRabbitMQSessionEventPublisher opens a channel on conn and declares the
// target queue. The queue parameters must match any consumer declaring the
// same queue.
func NewRabbitMQSessionEventPublisher(conn *amqp.Connection, queueName string, logger *zap.Logger) (SessionEventPublisher, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("session event publisher: failed to open channel: %w", err)
	}
	_, err = ch.QueueDeclare(
		queueName, // name
		true,      // durable
		false,     // delete when unused
		false,     // exclusive
		false,     // no-wait
		nil,       // arguments
	)
	if err != nil {
		ch.Close()
		return nil, fmt.Errorf("session event publisher: failed to declare queue %q: %w", queueName, err)
	}
	logger.Info("Session event publisher initialized", zap.String("queue", queueName))
	return &rabbitMQPublisher{channel: ch, queueName: queueName, logger: logger}, nil
}

func (p *rabbitMQPublisher) PublishSessionFinished(ctx context.Context, event SessionFinishedEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to serialize session.finished event for session %s: %w", event.SessionID, err)
	}
	if err := p.publishMessage(ctx, body); err != nil {
		return fmt.Errorf("failed to publish session.finished event for session %s: %w", event.SessionID, err)
	}
	return nil
}

func (p *rabbitMQPublisher) publishMessage(ctx context.Context, body []byte) error {
	if p.channel == nil {
		return errors.New("rabbitmq channel is not initialized")
	}
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	var err error
	for attempt := 1; attempt <= 3; attempt++ {
		err = p.channel.PublishWithContext(ctx,
			"",          // exchange (default)
			p.queueName, // routing key
			false,       // mandatory
			false,       // immediate
			amqp.Publishing{
				ContentType:  "application/json",
				DeliveryMode: amqp.Persistent,
				Body:         body,
				Timestamp:    time.Now(),
				AppId:        "story-engine",
			},
		)
		if err == nil {
			return nil
		}
		p.logger.Warn("Publish attempt failed",
			zap.String("queue", p.queueName),
			zap.Int("attempt", attempt),
			zap.Error(err))
		time.Sleep(time.Duration(attempt) * 100 * time.Millisecond)
	}
	return err
}
