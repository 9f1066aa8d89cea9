package submission

import (
	"context"
	"encoding/json"
	"fmt"

	"eventintake/internal/broker"
	"eventintake/internal/constants"
	"eventintake/pkg/logging"
	"eventintake/pkg/models"
)

// Notifier announces accepted submissions to moderators.
type Notifier interface {
	NotifyAccepted(ctx context.Context, event models.SubmissionEvent) error
}

// BrokerNotifier publishes submission events to a broker topic.
type BrokerNotifier struct {
	producer broker.Producer
	topic    string
}

func NewBrokerNotifier(producer broker.Producer, topic string) *BrokerNotifier {
	return &BrokerNotifier{producer: producer, topic: topic}
}

func (n *BrokerNotifier) NotifyAccepted(ctx context.Context, event models.SubmissionEvent) error {
	if n.producer == nil || n.topic == "" {
		return nil
	}

	eventJSON, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal submission event: %w", err)
	}
	var payload map[string]interface{}
	if err := json.Unmarshal(eventJSON, &payload); err != nil {
		return fmt.Errorf("failed to unmarshal submission event: %w", err)
	}

	envelope := models.NewMessageEnvelopeBuilder().
		WithID(event.SubmissionID).
		WithSource(constants.ServiceName).
		WithType(models.EventTypeSubmissionAccepted).
		WithTimestamp(event.SubmittedAt).
		WithPayload(payload).
		WithRequestID(logging.GetRequestID(ctx)).
		Build()

	return n.producer.Publish(ctx, n.topic, *envelope)
}
