package broker

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eventintake/internal/config"
	"eventintake/internal/logger"
	"eventintake/pkg/models"
	"eventintake/pkg/retry"
)

type fakeWriter struct {
	failures int
	calls    int
	written  []kafka.Message
	closed   bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.calls++
	if w.calls <= w.failures {
		return errors.New("leader not available")
	}
	w.written = append(w.written, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

func testEnvelope() models.MessageEnvelope {
	return *models.NewMessageEnvelopeBuilder().
		WithID("0123456789abcdef").
		WithSource("submission-service").
		WithType(models.EventTypeSubmissionAccepted).
		WithPayload(map[string]interface{}{"title": "Camp"}).
		Build()
}

func newTestProducer(w *fakeWriter) *KafkaProducer {
	p := newKafkaProducer(w, logger.NopLogger())
	p.policy = retry.Policy{
		MaxAttempts:     3,
		InitialInterval: time.Millisecond,
		MaxInterval:     5 * time.Millisecond,
		Multiplier:      2.0,
	}
	return p
}

func TestKafkaProducerPublish(t *testing.T) {
	w := &fakeWriter{}
	p := newTestProducer(w)

	require.NoError(t, p.Publish(context.Background(), "event-submissions", testEnvelope()))
	require.Len(t, w.written, 1)

	msg := w.written[0]
	assert.Equal(t, "event-submissions", msg.Topic)
	assert.Equal(t, []byte("0123456789abcdef"), msg.Key)

	var decoded models.MessageEnvelope
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	assert.Equal(t, models.EventTypeSubmissionAccepted, decoded.Type)
	assert.Equal(t, "Camp", decoded.Payload["title"])
}

func TestKafkaProducerRetriesTransientFailures(t *testing.T) {
	w := &fakeWriter{failures: 2}
	p := newTestProducer(w)

	require.NoError(t, p.Publish(context.Background(), "event-submissions", testEnvelope()))
	assert.Equal(t, 3, w.calls)
}

func TestKafkaProducerGivesUp(t *testing.T) {
	w := &fakeWriter{failures: 10}
	p := newTestProducer(w)

	err := p.Publish(context.Background(), "event-submissions", testEnvelope())
	assert.Error(t, err)
	assert.Equal(t, 3, w.calls)
}

func TestKafkaProducerRejectsInvalidEnvelope(t *testing.T) {
	w := &fakeWriter{}
	p := newTestProducer(w)

	msg := testEnvelope()
	msg.ID = ""
	err := p.Publish(context.Background(), "event-submissions", msg)
	assert.Error(t, err)
	assert.Zero(t, w.calls)
}

func TestKafkaProducerClose(t *testing.T) {
	w := &fakeWriter{}
	require.NoError(t, newTestProducer(w).Close())
	assert.True(t, w.closed)
}

func TestNewProducerRequiresBrokers(t *testing.T) {
	_, err := NewProducer(config.KafkaConfig{Topic: "t"}, logger.NopLogger())
	assert.Error(t, err)

	p, err := NewProducer(config.KafkaConfig{Brokers: []string{"localhost:9092"}, Topic: "t"}, logger.NopLogger())
	require.NoError(t, err)
	assert.NoError(t, p.Close())
}
