package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"

	"github.com/i474232898/user-weather-hub/internal/users"
)

// TypeUserCreated is the event type emitted after a registration.
const TypeUserCreated = "user.created"

// UserEvent is the JSON envelope written to the user topic.
type UserEvent struct {
	ID         string     `json:"id"`
	Type       string     `json:"type"`
	OccurredAt time.Time  `json:"occurred_at"`
	User       users.User `json:"user"`
}

// NewUserCreated builds the envelope for a freshly registered user.
func NewUserCreated(u users.User, now time.Time) UserEvent {
	return UserEvent{
		ID:         uuid.NewString(),
		Type:       TypeUserCreated,
		OccurredAt: now.UTC(),
		User:       u,
	}
}

// Message encodes the event as a Kafka message keyed by user id, so every
// event for one user lands on the same partition.
func (e UserEvent) Message() (kafka.Message, error) {
	value, err := json.Marshal(e)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("marshal %s event: %w", e.Type, err)
	}
	return kafka.Message{
		Key:   []byte(strconv.FormatInt(e.User.ID, 10)),
		Value: value,
		Headers: []kafka.Header{
			{Key: "event-type", Value: []byte(e.Type)},
		},
		Time: e.OccurredAt,
	}, nil
}

// messageWriter is the subset of *kafka.Writer used by KafkaPublisher.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes user events to a Kafka topic.
type KafkaPublisher struct {
	writer messageWriter
	now    func() time.Time
}

// NewKafkaPublisher creates a publisher for the given brokers and topic.
func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Topic:                  topic,
			Balancer:               &kafka.Hash{},
			RequiredAcks:           kafka.RequireOne,
			BatchTimeout:           50 * time.Millisecond,
			AllowAutoTopicCreation: true,
		},
		now: time.Now,
	}
}

func (p *KafkaPublisher) PublishUserCreated(ctx context.Context, u users.User) error {
	msg, err := NewUserCreated(u, p.now()).Message()
	if err != nil {
		return err
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("write %s event: %w", TypeUserCreated, err)
	}
	return nil
}

// Close flushes pending messages and closes the writer.
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// NopPublisher drops every event. Used when no brokers are configured.
type NopPublisher struct{}

func (NopPublisher) PublishUserCreated(context.Context, users.User) error { return nil }

func (NopPublisher) Close() error { return nil }
