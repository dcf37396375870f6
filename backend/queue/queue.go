package queue

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/jghoshh/habitsync/lib/logging"
	"github.com/streadway/amqp"
)

// Producer interface provides the Publish method to publish messages to RabbitMQ.
type Producer interface {
	Publish(body []byte) error
}

// Consumer interface provides the Consume method to consume messages from RabbitMQ.
// Consume registers the consumer and handles deliveries in the background until ctx is done.
type Consumer interface {
	Consume(ctx context.Context) (<-chan amqp.Delivery, error)
}

// ProducerFactory interface provides the CreateProducer method to instantiate new producers.
type ProducerFactory interface {
	CreateProducer(conn *amqp.Connection, ch *amqp.Channel, queue *amqp.Queue) (Producer, error)
}

// ConsumerFactory interface provides the CreateConsumer method to instantiate new consumers.
type ConsumerFactory interface {
	CreateConsumer(conn *amqp.Connection, ch *amqp.Channel, queue *amqp.Queue) (Consumer, error)
}

// Queue struct holds slices of Producers and Consumers which can be used to send and consume messages.
type Queue struct {
	Producers []Producer
	Consumers []Consumer

	conn *amqp.Connection
	next uint64
}

// connect establishes a connection to RabbitMQ and opens a new channel in confirm mode.
// Unexpected connection closure is logged.
func connect(url string) (*amqp.Connection, *amqp.Channel, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, nil, err
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, nil, err
	}

	if err = ch.Confirm(false); err != nil {
		conn.Close()
		return nil, nil, err
	}

	notifyClose := conn.NotifyClose(make(chan *amqp.Error, 1))
	go func() {
		if err := <-notifyClose; err != nil {
			logging.Error().Err(err).Msg("RabbitMQ connection closed")
		}
	}()

	return conn, ch, nil
}

// InitQueue connects to RabbitMQ, declares a durable queue with the given name and
// builds producers and consumers for it with the given factories.
func InitQueue(url string, queueName string, prodFactories []ProducerFactory, consFactories []ConsumerFactory) (*Queue, error) {
	conn, ch, err := connect(url)
	if err != nil {
		return nil, fmt.Errorf("error connecting to RabbitMQ: %w", err)
	}

	queue, err := ch.QueueDeclare(
		queueName,
		true,  // Durable
		false, // Delete when unused
		false, // Exclusive
		false, // No-wait
		nil,   // Arguments
	)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("error declaring queue: %w", err)
	}

	q := &Queue{conn: conn}

	for _, prodFactory := range prodFactories {
		producer, err := prodFactory.CreateProducer(conn, ch, &queue)
		if err != nil {
			conn.Close()
			return nil, fmt.Errorf("error creating producer: %w", err)
		}
		q.Producers = append(q.Producers, producer)
	}

	for _, consFactory := range consFactories {
		consumer, err := consFactory.CreateConsumer(conn, ch, &queue)
		if err != nil {
			conn.Close()
			return nil, fmt.Errorf("error creating consumer: %w", err)
		}
		q.Consumers = append(q.Consumers, consumer)
	}

	return q, nil
}

// StartConsumers starts every consumer of the queue. Each consumer handles its
// deliveries on its own goroutine until ctx is cancelled.
func (q *Queue) StartConsumers(ctx context.Context) error {
	for _, consumer := range q.Consumers {
		if _, err := consumer.Consume(ctx); err != nil {
			return fmt.Errorf("error starting consumer: %w", err)
		}
	}
	return nil
}

// PublishRaw sends body through the producers in round-robin order.
func (q *Queue) PublishRaw(body []byte) error {
	producerCount := len(q.Producers)
	if producerCount == 0 {
		return errors.New("no producers available")
	}

	n := atomic.AddUint64(&q.next, 1) - 1
	producer := q.Producers[n%uint64(producerCount)]

	if err := producer.Publish(body); err != nil {
		return fmt.Errorf("failed to publish message: %w", err)
	}
	return nil
}

// Close closes the underlying RabbitMQ connection, which also stops the consumers.
func (q *Queue) Close() error {
	if q.conn == nil {
		return nil
	}
	return q.conn.Close()
}
