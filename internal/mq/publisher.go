package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

// MessageType — тип сообщения в очереди.
type MessageType string

// Типы сообщений.
const (
	MessageTypeRunCreated   MessageType = "run.created"
	MessageTypeJobReady     MessageType = "job.ready"
	MessageTypeJobCompleted MessageType = "job.completed"
	MessageTypeRunCancelled MessageType = "run.cancelled"
)

// Message — сообщение для публикации.
type Message struct {
	// ID — уникальный идентификатор сообщения.
	ID string `json:"id"`

	// Type — тип сообщения.
	Type MessageType `json:"type"`

	// Payload — полезная нагрузка.
	Payload any `json:"payload"`

	// Timestamp — время создания.
	Timestamp time.Time `json:"timestamp"`
}

// RunCreatedPayload — payload для сообщения о новом run.
type RunCreatedPayload struct {
	RunID uuid.UUID `json:"run_id"`
}

// JobReadyPayload — payload для сообщения о готовом job.
type JobReadyPayload struct {
	JobID uuid.UUID `json:"job_id"`
	RunID uuid.UUID `json:"run_id"`
}

// JobCompletedPayload — payload для сообщения о завершённом job.
type JobCompletedPayload struct {
	JobID       uuid.UUID `json:"job_id"`
	RunID       uuid.UUID `json:"run_id"`
	Key         string    `json:"key"`
	Status      string    `json:"status"` // SUCCEEDED, FAILED или CANCELLED
	FailureKind string    `json:"failure_kind,omitempty"`
	FailedStep  string    `json:"failed_step,omitempty"`
	Error       string    `json:"error,omitempty"`
}

// RunCancelledPayload — payload для broadcast об отмене run.
type RunCancelledPayload struct {
	RunID uuid.UUID `json:"run_id"`
}

// Publisher публикует сообщения в RabbitMQ.
type Publisher struct {
	conn   *Connection
	logger *slog.Logger
}

// NewPublisher создаёт новый Publisher.
func NewPublisher(conn *Connection, logger *slog.Logger) *Publisher {
	return &Publisher{conn: conn, logger: logger}
}

// Publish публикует сообщение в указанный exchange с routing key.
func (p *Publisher) Publish(ctx context.Context, exchange Exchange, routingKey RoutingKey, msgType MessageType, payload any) error {
	msg := &Message{
		ID:        uuid.New().String(),
		Type:      msgType,
		Payload:   payload,
		Timestamp: time.Now(),
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	return p.conn.WithChannel(ctx, func(ch *amqp.Channel) error {
		err := ch.PublishWithContext(
			ctx,
			string(exchange),
			string(routingKey),
			false, // mandatory
			false, // immediate
			amqp.Publishing{
				ContentType:  "application/json",
				DeliveryMode: amqp.Persistent, // сообщение переживёт рестарт RabbitMQ
				MessageId:    msg.ID,
				Timestamp:    msg.Timestamp,
				Body:         body,
			},
		)
		if err != nil {
			return fmt.Errorf("publish to %s/%s: %w", exchange, routingKey, err)
		}

		p.logger.Debug("published message",
			"exchange", exchange,
			"routing_key", routingKey,
			"message_id", msg.ID,
			"type", msg.Type,
		)
		return nil
	})
}

// PublishRunCreated публикует событие о новом run.
// Потребитель: Orchestrator.
func (p *Publisher) PublishRunCreated(ctx context.Context, runID uuid.UUID) error {
	return p.Publish(ctx, ExchangeRuns, RoutingKeyCreated, MessageTypeRunCreated,
		RunCreatedPayload{RunID: runID})
}

// PublishJobReady публикует событие о job, готовом к выполнению.
// Потребитель: Worker.
func (p *Publisher) PublishJobReady(ctx context.Context, jobID, runID uuid.UUID) error {
	return p.Publish(ctx, ExchangeJobs, RoutingKeyReady, MessageTypeJobReady,
		JobReadyPayload{JobID: jobID, RunID: runID})
}

// PublishJobCompleted публикует событие о завершённом job.
// Потребитель: Orchestrator.
func (p *Publisher) PublishJobCompleted(ctx context.Context, payload JobCompletedPayload) error {
	return p.Publish(ctx, ExchangeJobs, RoutingKeyCompleted, MessageTypeJobCompleted, payload)
}

// PublishRunCancelled публикует broadcast об отмене run.
// Потребители: все воркеры (fanout) и Orchestrator.
func (p *Publisher) PublishRunCancelled(ctx context.Context, runID uuid.UUID) error {
	return p.Publish(ctx, ExchangeControl, "", MessageTypeRunCancelled,
		RunCancelledPayload{RunID: runID})
}
