package mq

import (
	"context"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Exchange — тип для имени обменника.
type Exchange string

// Queue — тип для имени очереди.
type Queue string

// RoutingKey — тип для ключа маршрутизации.
type RoutingKey string

// Exchanges — имена обменников.
const (
	ExchangeRuns    Exchange = "conveyor.runs"
	ExchangeJobs    Exchange = "conveyor.jobs"
	ExchangeControl Exchange = "conveyor.control"
	ExchangeDLQ     Exchange = "conveyor.dlq"
)

// Queues — имена очередей.
const (
	QueueRunsCreated   Queue = "runs.created"
	QueueJobsReady     Queue = "jobs.ready"
	QueueJobsCompleted Queue = "jobs.completed"
	QueueDLQJobs       Queue = "dlq.jobs"
)

// Routing keys.
const (
	RoutingKeyCreated   RoutingKey = "created"
	RoutingKeyReady     RoutingKey = "ready"
	RoutingKeyCompleted RoutingKey = "completed"
	RoutingKeyCancelled RoutingKey = "cancelled"
	RoutingKeyDLQJobs   RoutingKey = "jobs"
)

// SetupTopology объявляет обменники, очереди и привязки.
// Идемпотентна: повторные вызовы на существующей топологии безопасны.
func SetupTopology(ctx context.Context, conn *Connection) error {
	return conn.WithChannel(ctx, func(ch *amqp.Channel) error {
		if err := declareExchanges(ch); err != nil {
			return err
		}
		if err := declareQueues(ch); err != nil {
			return err
		}
		return bindQueues(ch)
	})
}

// declareExchanges создаёт обменники.
// conveyor.control — fanout: отмена run должна дойти до каждого воркера.
func declareExchanges(ch *amqp.Channel) error {
	exchanges := []struct {
		name Exchange
		kind string
	}{
		{ExchangeRuns, "direct"},
		{ExchangeJobs, "direct"},
		{ExchangeControl, "fanout"},
		{ExchangeDLQ, "direct"},
	}

	for _, ex := range exchanges {
		err := ch.ExchangeDeclare(
			string(ex.name), // name
			ex.kind,         // type
			true,            // durable
			false,           // auto-deleted
			false,           // internal
			false,           // no-wait
			nil,             // arguments
		)
		if err != nil {
			return fmt.Errorf("declare exchange %s: %w", ex.name, err)
		}
	}

	return nil
}

// declareQueues создаёт очереди.
func declareQueues(ch *amqp.Channel) error {
	dlqArgs := amqp.Table{
		"x-dead-letter-exchange":    string(ExchangeDLQ),
		"x-dead-letter-routing-key": string(RoutingKeyDLQJobs),
	}

	queues := []struct {
		name Queue
		args amqp.Table
	}{
		// runs.created — без DLQ (runs обрабатываются один раз)
		{QueueRunsCreated, nil},

		// jobs.ready — с DLQ (битые сообщения не должны крутиться вечно)
		{QueueJobsReady, dlqArgs},

		// jobs.completed — без DLQ (события завершения)
		{QueueJobsCompleted, nil},

		// dlq.jobs — сама DLQ очередь
		{QueueDLQJobs, nil},
	}

	for _, q := range queues {
		_, err := ch.QueueDeclare(
			string(q.name), // name
			true,           // durable
			false,          // delete when unused
			false,          // exclusive
			false,          // no-wait
			q.args,         // arguments
		)
		if err != nil {
			return fmt.Errorf("declare queue %s: %w", q.name, err)
		}
	}

	return nil
}

// bindQueues привязывает очереди к обменникам.
func bindQueues(ch *amqp.Channel) error {
	bindings := []struct {
		queue      Queue
		routingKey RoutingKey
		exchange   Exchange
	}{
		{QueueRunsCreated, RoutingKeyCreated, ExchangeRuns},
		{QueueJobsReady, RoutingKeyReady, ExchangeJobs},
		{QueueJobsCompleted, RoutingKeyCompleted, ExchangeJobs},
		{QueueDLQJobs, RoutingKeyDLQJobs, ExchangeDLQ},
	}

	for _, b := range bindings {
		err := ch.QueueBind(
			string(b.queue),      // queue name
			string(b.routingKey), // routing key
			string(b.exchange),   // exchange
			false,                // no-wait
			nil,                  // arguments
		)
		if err != nil {
			return fmt.Errorf("bind queue %s to %s: %w", b.queue, b.exchange, err)
		}
	}

	return nil
}

// DeclareControlQueue объявляет эксклюзивную очередь воркера для отмен.
//
// Очередь без имени, auto-delete: живёт пока живёт воркер, каждый воркер
// получает свою копию broadcast-сообщений conveyor.control.
func DeclareControlQueue(conn *Connection) (string, error) {
	ch := conn.Channel()
	if ch == nil {
		return "", ErrNoChannel
	}

	q, err := ch.QueueDeclare(
		"",    // auto-generated name
		false, // durable
		true,  // delete when unused
		true,  // exclusive
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		return "", fmt.Errorf("declare control queue: %w", err)
	}

	if err := ch.QueueBind(q.Name, "", string(ExchangeControl), false, nil); err != nil {
		return "", fmt.Errorf("bind control queue: %w", err)
	}

	return q.Name, nil
}
