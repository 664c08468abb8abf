package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"example.com/powermon/config"

	"github.com/Azure/azure-sdk-for-go/sdk/messaging/azservicebus"
	"github.com/google/uuid"
)

// TransitionMessage is the queue envelope for a power-state transition.
type TransitionMessage struct {
	ID                      string    `json:"id"`
	DeviceID                string    `json:"device_id"`
	IsPowerOn               bool      `json:"is_power_on"`
	At                      time.Time `json:"at"`
	PreviousDurationSeconds float64   `json:"previous_duration_seconds"`
}

// Publisher publishes transition messages for downstream consumers.
type Publisher interface {
	PublishTransition(ctx context.Context, msg TransitionMessage) error
	Close() error
}

// serviceBusPublisher implements Publisher on Azure Service Bus
type serviceBusPublisher struct {
	client    *azservicebus.Client
	sender    *azservicebus.Sender
	queueName string
}

// mockPublisher is used for local development without a connection string
type mockPublisher struct{}

// NewServiceBusPublisher creates a new transition publisher. With no
// connection string configured it returns a mock that drops messages.
func NewServiceBusPublisher(cfg config.ServiceBusConfig) (Publisher, error) {
	if cfg.ConnectionString == "" {
		return &mockPublisher{}, nil
	}

	client, err := azservicebus.NewClientFromConnectionString(cfg.ConnectionString, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create Service Bus client: %w", err)
	}

	sender, err := client.NewSender(cfg.QueueName, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create Service Bus sender: %w", err)
	}

	return &serviceBusPublisher{
		client:    client,
		sender:    sender,
		queueName: cfg.QueueName,
	}, nil
}

// PublishTransition sends one transition to the queue. The device ID is the
// session ID so consumers see each device's transitions in order.
func (s *serviceBusPublisher) PublishTransition(ctx context.Context, msg TransitionMessage) error {
	if msg.ID == "" {
		msg.ID = uuid.New().String()
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal transition message: %w", err)
	}

	sessionID := msg.DeviceID
	sbMsg := &azservicebus.Message{
		Body: data,
		ApplicationProperties: map[string]interface{}{
			"source": "powermon",
			"time":   time.Now().UTC().Format(time.RFC3339),
		},
		SessionID: &sessionID,
	}

	return s.sender.SendMessage(ctx, sbMsg, nil)
}

// Close closes the Service Bus client
func (s *serviceBusPublisher) Close() error {
	if s.sender != nil {
		if err := s.sender.Close(context.Background()); err != nil {
			return err
		}
	}

	if s.client != nil {
		return s.client.Close(context.Background())
	}

	return nil
}

// PublishTransition implementation for the mock publisher
func (m *mockPublisher) PublishTransition(ctx context.Context, msg TransitionMessage) error {
	fmt.Printf("[MOCK ServiceBus] transition for %s: power_on=%v\n", msg.DeviceID, msg.IsPowerOn)
	return nil
}

// Close implementation for the mock publisher
func (m *mockPublisher) Close() error {
	return nil
}
