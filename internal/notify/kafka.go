package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"
)

// Kafka header keys set on every alert message.
const (
	HeaderSubject    = "subject"
	HeaderCountry    = "country"
	HeaderDisasterID = "disaster_id"
	HeaderMessageID  = "message_id"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

type topicAdmin interface {
	CreateTopics(ctx context.Context, req *kafkago.CreateTopicsRequest) (*kafkago.CreateTopicsResponse, error)
	DeleteTopics(ctx context.Context, req *kafkago.DeleteTopicsRequest) (*kafkago.DeleteTopicsResponse, error)
}

// subscriptionEvent is written to the control topic on subscribe and
// unsubscribe. Downstream mailers consume it to maintain recipient lists.
type subscriptionEvent struct {
	Action         string    `json:"action"`
	Topic          string    `json:"topic"`
	Email          string    `json:"email,omitempty"`
	SubscriptionID string    `json:"subscription_id"`
	At             time.Time `json:"at"`
}

// KafkaTransport maps each country topic to a Kafka topic. Subscriptions are
// announced on a control topic named "<prefix>-subscriptions".
type KafkaTransport struct {
	writer       messageWriter
	admin        topicAdmin
	controlTopic string
	logger       *slog.Logger
}

func NewKafkaTransport(brokers []string, prefix string, logger *slog.Logger) *KafkaTransport {
	w := &kafkago.Writer{
		Addr:                   kafkago.TCP(brokers...),
		Balancer:               &kafkago.LeastBytes{},
		RequiredAcks:           kafkago.RequireAll,
		AllowAutoTopicCreation: true,
	}
	admin := &kafkago.Client{Addr: kafkago.TCP(brokers...), Timeout: 10 * time.Second}
	return newKafkaTransport(w, admin, prefix, logger)
}

func newKafkaTransport(w messageWriter, admin topicAdmin, prefix string, logger *slog.Logger) *KafkaTransport {
	if logger == nil {
		logger = slog.Default()
	}
	return &KafkaTransport{
		writer:       w,
		admin:        admin,
		controlTopic: TopicName(prefix, "subscriptions"),
		logger:       logger.With("transport", "kafka"),
	}
}

func (k *KafkaTransport) Name() string { return "kafka" }

func (k *KafkaTransport) CreateTopic(ctx context.Context, name string) (string, error) {
	resp, err := k.admin.CreateTopics(ctx, &kafkago.CreateTopicsRequest{
		Topics: []kafkago.TopicConfig{{Topic: name, NumPartitions: 1, ReplicationFactor: 1}},
	})
	if err != nil {
		return "", fmt.Errorf("create kafka topic %s: %w", name, err)
	}
	if err := resp.Errors[name]; err != nil && !errors.Is(err, kafkago.TopicAlreadyExists) {
		return "", fmt.Errorf("create kafka topic %s: %w", name, err)
	}
	k.logger.Info("kafka topic ready", "topic", name)
	return name, nil
}

func (k *KafkaTransport) DeleteTopic(ctx context.Context, handle string) error {
	resp, err := k.admin.DeleteTopics(ctx, &kafkago.DeleteTopicsRequest{Topics: []string{handle}})
	if err != nil {
		return fmt.Errorf("delete kafka topic %s: %w", handle, err)
	}
	if err := resp.Errors[handle]; err != nil && !errors.Is(err, kafkago.UnknownTopicOrPartition) {
		return fmt.Errorf("delete kafka topic %s: %w", handle, err)
	}
	return nil
}

func (k *KafkaTransport) Publish(ctx context.Context, handle string, msg Message) (string, error) {
	id := uuid.NewString()
	if err := k.writer.WriteMessages(ctx, alertMessage(handle, id, msg)); err != nil {
		return "", fmt.Errorf("publish to %s: %w", handle, err)
	}
	return id, nil
}

func alertMessage(topic, id string, msg Message) kafkago.Message {
	key := msg.DisasterID
	if key == "" {
		key = id
	}
	return kafkago.Message{
		Topic: topic,
		Key:   []byte(key),
		Value: []byte(msg.Body),
		Headers: []kafkago.Header{
			{Key: HeaderSubject, Value: []byte(msg.Subject)},
			{Key: HeaderCountry, Value: []byte(msg.Country)},
			{Key: HeaderDisasterID, Value: []byte(msg.DisasterID)},
			{Key: HeaderMessageID, Value: []byte(id)},
		},
	}
}

func (k *KafkaTransport) Subscribe(ctx context.Context, handle, email string) (string, error) {
	ev := subscriptionEvent{
		Action:         "subscribe",
		Topic:          handle,
		Email:          email,
		SubscriptionID: handle + "/" + uuid.NewString(),
		At:             time.Now().UTC(),
	}
	if err := k.writeControl(ctx, ev); err != nil {
		return "", err
	}
	return ev.SubscriptionID, nil
}

func (k *KafkaTransport) Unsubscribe(ctx context.Context, subscriptionHandle string) error {
	return k.writeControl(ctx, subscriptionEvent{
		Action:         "unsubscribe",
		SubscriptionID: subscriptionHandle,
		At:             time.Now().UTC(),
	})
}

func (k *KafkaTransport) writeControl(ctx context.Context, ev subscriptionEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("serialize subscription event: %w", err)
	}
	err = k.writer.WriteMessages(ctx, kafkago.Message{
		Topic: k.controlTopic,
		Key:   []byte(ev.SubscriptionID),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "action", Value: []byte(ev.Action)},
		},
	})
	if err != nil {
		return fmt.Errorf("write %s event: %w", ev.Action, err)
	}
	return nil
}

func (k *KafkaTransport) Close() error {
	return k.writer.Close()
}
