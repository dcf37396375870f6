package queue

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	storage "github.com/jghoshh/habitsync/backend/storage/cache"
	"github.com/streadway/amqp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingProducer struct {
	bodies [][]byte
	err    error
}

func (p *recordingProducer) Publish(body []byte) error {
	if p.err != nil {
		return p.err
	}
	p.bodies = append(p.bodies, body)
	return nil
}

type fakeAcknowledger struct {
	acked   int
	nacked  int
	requeue bool
}

func (a *fakeAcknowledger) Ack(tag uint64, multiple bool) error {
	a.acked++
	return nil
}

func (a *fakeAcknowledger) Nack(tag uint64, multiple bool, requeue bool) error {
	a.nacked++
	a.requeue = requeue
	return nil
}

func (a *fakeAcknowledger) Reject(tag uint64, requeue bool) error {
	return a.Nack(tag, false, requeue)
}

type mapCache struct {
	values map[string]interface{}
	getErr error
}

func (c *mapCache) Connect(string) error { return nil }
func (c *mapCache) Disconnect() error    { return nil }

func (c *mapCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	c.values[key] = value
	return nil
}

func (c *mapCache) Get(ctx context.Context, key string) (interface{}, error) {
	if c.getErr != nil {
		return nil, c.getErr
	}
	v, ok := c.values[key]
	if !ok {
		return nil, storage.ErrCacheMiss
	}
	return v, nil
}

func (c *mapCache) Clear(ctx context.Context) error {
	c.values = map[string]interface{}{}
	return nil
}

type recordingMailer struct {
	sent []string
	err  error
}

func (m *recordingMailer) SendReminder(to, name string, habits []string) error {
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, to)
	return nil
}

func delivery(t *testing.T, ack amqp.Acknowledger, msg *NotificationMessage) amqp.Delivery {
	body, err := json.Marshal(msg)
	require.NoError(t, err)
	return amqp.Delivery{Acknowledger: ack, Body: body}
}

func TestPublishNotificationRoundRobin(t *testing.T) {
	p1, p2 := &recordingProducer{}, &recordingProducer{}
	q := &Queue{Producers: []Producer{p1, p2}}

	for i := 0; i < 3; i++ {
		require.NoError(t, q.PublishNotification(&NotificationMessage{Id: "m", To: "ada@example.com"}))
	}

	assert.Len(t, p1.bodies, 2)
	assert.Len(t, p2.bodies, 1)

	var decoded NotificationMessage
	require.NoError(t, json.Unmarshal(p1.bodies[0], &decoded))
	assert.Equal(t, "ada@example.com", decoded.To)
}

func TestPublishWithoutProducers(t *testing.T) {
	q := &Queue{}
	assert.Error(t, q.PublishNotification(&NotificationMessage{Id: "m"}))
}

func TestPublishProducerError(t *testing.T) {
	q := &Queue{Producers: []Producer{&recordingProducer{err: errors.New("channel closed")}}}
	assert.Error(t, q.PublishRaw([]byte("{}")))
}

func TestConsumerSendsAndMarksProcessed(t *testing.T) {
	cache := &mapCache{values: map[string]interface{}{}}
	mailer := &recordingMailer{}
	consumer := &NotificationConsumer{cache: cache, mailer: mailer}
	ack := &fakeAcknowledger{}

	msg := &NotificationMessage{Id: "42", To: "ada@example.com", Name: "Ada", Habits: []string{"Read"}}
	consumer.handle(context.Background(), delivery(t, ack, msg))

	assert.Equal(t, []string{"ada@example.com"}, mailer.sent)
	assert.Equal(t, 1, ack.acked)
	assert.Equal(t, true, cache.values["notification_42"])

	// A redelivery of the same message is acknowledged without a second email.
	consumer.handle(context.Background(), delivery(t, ack, msg))
	assert.Len(t, mailer.sent, 1)
	assert.Equal(t, 2, ack.acked)
}

func TestConsumerRequeuesOnMailFailure(t *testing.T) {
	cache := &mapCache{values: map[string]interface{}{}}
	consumer := &NotificationConsumer{cache: cache, mailer: &recordingMailer{err: errors.New("smtp down")}}
	ack := &fakeAcknowledger{}

	consumer.handle(context.Background(), delivery(t, ack, &NotificationMessage{Id: "7"}))

	assert.Equal(t, 1, ack.nacked)
	assert.True(t, ack.requeue)
	assert.NotContains(t, cache.values, "notification_7")
}

func TestConsumerRequeuesOnCacheError(t *testing.T) {
	cache := &mapCache{values: map[string]interface{}{}, getErr: errors.New("redis timeout")}
	mailer := &recordingMailer{}
	consumer := &NotificationConsumer{cache: cache, mailer: mailer}
	ack := &fakeAcknowledger{}

	consumer.handle(context.Background(), delivery(t, ack, &NotificationMessage{Id: "8"}))

	assert.Equal(t, 1, ack.nacked)
	assert.True(t, ack.requeue)
	assert.Empty(t, mailer.sent)
}

func TestConsumerDropsMalformedMessages(t *testing.T) {
	consumer := &NotificationConsumer{mailer: &recordingMailer{}}
	ack := &fakeAcknowledger{}

	consumer.handle(context.Background(), amqp.Delivery{Acknowledger: ack, Body: []byte("not json")})

	assert.Equal(t, 1, ack.nacked)
	assert.False(t, ack.requeue)
}

func TestConsumerWithoutCache(t *testing.T) {
	mailer := &recordingMailer{}
	consumer := &NotificationConsumer{mailer: mailer}
	ack := &fakeAcknowledger{}

	consumer.handle(context.Background(), delivery(t, ack, &NotificationMessage{Id: "9", To: "bob@example.com"}))

	assert.Equal(t, []string{"bob@example.com"}, mailer.sent)
	assert.Equal(t, 1, ack.acked)
}

func TestConsumerFactoryNeedsMailer(t *testing.T) {
	_, err := (&NotificationConsumerFactory{}).CreateConsumer(nil, nil, nil)
	assert.Error(t, err)
}
