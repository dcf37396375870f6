package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	storage "github.com/jghoshh/habitsync/backend/storage/cache"
	"github.com/jghoshh/habitsync/lib/logging"
	"github.com/streadway/amqp"
)

// NotificationQueueName is the RabbitMQ queue carrying reminder notifications.
const NotificationQueueName = "habitReminders"

// processedTTL is how long a processed message id is remembered in the cache.
const processedTTL = 72 * time.Hour

// NotificationMessage is the content of a reminder notification.
type NotificationMessage struct {
	Id     string   `json:"id"`     // unique id, used to skip redelivered messages
	To     string   `json:"to"`     // recipient email address
	Name   string   `json:"name"`   // recipient display name
	Habits []string `json:"habits"` // names of the recipient's active habits
}

// Mailer sends the reminder for a notification.
type Mailer interface {
	SendReminder(to, name string, habits []string) error
}

// NotificationProducerFactory is a struct for creating new NotificationProducer instances.
type NotificationProducerFactory struct{}

// NotificationConsumerFactory creates NotificationConsumer instances sharing a cache and a mailer.
// Cache may be nil, in which case redelivered messages are not detected.
type NotificationConsumerFactory struct {
	Cache  storage.CacheInterface
	Mailer Mailer
}

// NotificationProducer publishes notifications on the AMQP queue.
type NotificationProducer struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	queue   *amqp.Queue
}

// NotificationConsumer reads notifications from the AMQP queue and mails them.
type NotificationConsumer struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	queue   *amqp.Queue
	cache   storage.CacheInterface
	mailer  Mailer
}

func (f *NotificationProducerFactory) CreateProducer(conn *amqp.Connection, ch *amqp.Channel, queue *amqp.Queue) (Producer, error) {
	return &NotificationProducer{conn: conn, channel: ch, queue: queue}, nil
}

func (f *NotificationConsumerFactory) CreateConsumer(conn *amqp.Connection, ch *amqp.Channel, queue *amqp.Queue) (Consumer, error) {
	if f.Mailer == nil {
		return nil, errors.New("notification consumer needs a mailer")
	}
	return &NotificationConsumer{
		conn:    conn,
		channel: ch,
		queue:   queue,
		cache:   f.Cache,
		mailer:  f.Mailer,
	}, nil
}

// Publish publishes a persistent JSON message to the queue.
func (np *NotificationProducer) Publish(body []byte) error {
	err := np.channel.Publish(
		"",            // exchange
		np.queue.Name, // routing key
		false,         // mandatory
		false,         // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Body:         body,
		})
	if err != nil {
		return fmt.Errorf("failed to publish a message: %w", err)
	}
	return nil
}

// Consume registers the consumer on the queue and handles deliveries on a
// background goroutine until ctx is done or the delivery channel closes.
func (nc *NotificationConsumer) Consume(ctx context.Context) (<-chan amqp.Delivery, error) {
	msgs, err := nc.channel.Consume(
		nc.queue.Name,
		"",    // consumer tag
		false, // auto-ack
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,
	)
	if err != nil {
		return nil, err
	}

	go func() {
		for {
			select {
			case d, ok := <-msgs:
				if !ok {
					return
				}
				nc.handle(ctx, d)
			case <-ctx.Done():
				return
			}
		}
	}()

	return msgs, nil
}

// handle processes one delivery: malformed bodies are dropped, already processed
// messages are acked, everything else is mailed and then acked. Transient failures
// requeue the delivery.
func (nc *NotificationConsumer) handle(ctx context.Context, d amqp.Delivery) {
	log := logging.Component("notifications")

	message := &NotificationMessage{}
	if err := json.Unmarshal(d.Body, message); err != nil {
		log.Error().Err(err).Msg("failed to unmarshal notification message")
		d.Nack(false, false) // a malformed body will never succeed
		return
	}

	key := "notification_" + message.Id

	if nc.cache != nil {
		processed, err := nc.cache.Get(ctx, key)
		if err != nil && !errors.Is(err, storage.ErrCacheMiss) {
			log.Error().Err(err).Str("id", message.Id).Msg("error checking cache")
			d.Nack(false, true)
			return
		}
		if processed != nil {
			d.Ack(false)
			return
		}
	}

	if err := nc.mailer.SendReminder(message.To, message.Name, message.Habits); err != nil {
		log.Error().Err(err).Str("id", message.Id).Msg("failed to send reminder")
		d.Nack(false, true)
		return
	}

	d.Ack(false)
	log.Info().Str("id", message.Id).Str("to", message.To).Msg("reminder sent")

	if nc.cache != nil {
		if err := nc.cache.Set(ctx, key, true, processedTTL); err != nil {
			log.Warn().Err(err).Str("id", message.Id).Msg("failed to set key in cache")
		}
	}
}

// BuildNotificationQueue connects to RabbitMQ and builds the reminder queue with the
// requested number of producers and consumers.
func BuildNotificationQueue(rabbitMQURL string, numProducers, numConsumers int, cache storage.CacheInterface, mailer Mailer) (*Queue, error) {
	prodFactories := make([]ProducerFactory, numProducers)
	for i := range prodFactories {
		prodFactories[i] = &NotificationProducerFactory{}
	}

	consFactories := make([]ConsumerFactory, numConsumers)
	for i := range consFactories {
		consFactories[i] = &NotificationConsumerFactory{Cache: cache, Mailer: mailer}
	}

	return InitQueue(rabbitMQURL, NotificationQueueName, prodFactories, consFactories)
}

// PublishNotification serializes the message and publishes it on the queue.
func (q *Queue) PublishNotification(msg *NotificationMessage) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal notification message: %w", err)
	}
	return q.PublishRaw(body)
}
