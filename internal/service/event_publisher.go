package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/soulmechanik/forems-portal/internal/domain"
	"github.com/soulmechanik/forems-portal/pkg/kafka"
)

// EventPublisher defines the interface for publishing auth events
type EventPublisher interface {
	// PublishSignedIn publishes a sign-in event
	PublishSignedIn(ctx context.Context, token domain.Token) error

	// PublishRoleSwitched publishes a confirmed role switch
	PublishRoleSwitched(ctx context.Context, token domain.Token, from *domain.Role) error

	// PublishSessionRevoked publishes a session teardown
	PublishSessionRevoked(ctx context.Context, token domain.Token, reason domain.RevokeReason) error

	// Close closes the event publisher
	Close() error
}

// MessageProducer is the part of pkg/kafka.Producer the publisher needs
type MessageProducer interface {
	Produce(ctx context.Context, msg *kafka.Message) error
	Close()
}

// EventPublisherConfig contains configuration for the event publisher
type EventPublisherConfig struct {
	Brokers     []string
	Topic       string
	ServiceName string
	ClientID    string
	// Timeout bounds one publish including retries
	Timeout time.Duration
}

// KafkaEventPublisher implements EventPublisher using Kafka
type KafkaEventPublisher struct {
	producer    MessageProducer
	topic       string
	serviceName string
	timeout     time.Duration
}

// NewKafkaEventPublisher creates a new Kafka event publisher
func NewKafkaEventPublisher(ctx context.Context, cfg *EventPublisherConfig) (*KafkaEventPublisher, error) {
	if cfg == nil {
		return nil, fmt.Errorf("event publisher config is required")
	}
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("kafka brokers are required")
	}

	clientID := cfg.ClientID
	if clientID == "" {
		clientID = "forems-portal-producer"
	}

	producer, err := kafka.NewProducer(ctx, &kafka.ProducerConfig{
		Brokers:        cfg.Brokers,
		ClientID:       clientID,
		MaxRetries:     2,
		RetryInterval:  50 * time.Millisecond,
		BatchSize:      100,
		LingerMs:       5,
		ProduceTimeout: time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka producer: %w", err)
	}

	return NewKafkaEventPublisherWithProducer(producer, cfg), nil
}

// NewKafkaEventPublisherWithProducer wraps an existing producer
func NewKafkaEventPublisherWithProducer(producer MessageProducer, cfg *EventPublisherConfig) *KafkaEventPublisher {
	topic := cfg.Topic
	if topic == "" {
		topic = "auth-events"
	}
	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = "forems-portal"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &KafkaEventPublisher{
		producer:    producer,
		topic:       topic,
		serviceName: serviceName,
		timeout:     timeout,
	}
}

// PublishSignedIn publishes a sign-in event
func (p *KafkaEventPublisher) PublishSignedIn(ctx context.Context, token domain.Token) error {
	return p.publishEvent(ctx, domain.NewAuthEvent(domain.AuthEventSignedIn, token, uuid.New().String()))
}

// PublishRoleSwitched publishes a confirmed role switch
func (p *KafkaEventPublisher) PublishRoleSwitched(ctx context.Context, token domain.Token, from *domain.Role) error {
	event := domain.NewAuthEvent(domain.AuthEventRoleSwitched, token, uuid.New().String())
	if from != nil {
		event.FromRole = domain.RolePtr(*from)
	}
	return p.publishEvent(ctx, event)
}

// PublishSessionRevoked publishes a session teardown
func (p *KafkaEventPublisher) PublishSessionRevoked(ctx context.Context, token domain.Token, reason domain.RevokeReason) error {
	event := domain.NewAuthEvent(domain.AuthEventSessionRevoked, token, uuid.New().String())
	event.Reason = reason
	return p.publishEvent(ctx, event)
}

// Close closes the event publisher
func (p *KafkaEventPublisher) Close() error {
	if p.producer != nil {
		p.producer.Close()
	}
	return nil
}

// HealthCheck pings the brokers when the producer supports it
func (p *KafkaEventPublisher) HealthCheck(ctx context.Context) error {
	pinger, ok := p.producer.(interface{ Ping(context.Context) error })
	if !ok {
		return nil
	}
	return pinger.Ping(ctx)
}

func (p *KafkaEventPublisher) publishEvent(ctx context.Context, event *domain.AuthEvent) error {
	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	headers := map[string]string{
		"event_type":   string(event.Type),
		"event_id":     event.ID,
		"source":       p.serviceName,
		"content_type": "application/json",
	}

	// The user's request may already be finishing; the publish keeps its own bound.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.timeout)
	defer cancel()

	msg := &kafka.Message{
		Topic:     p.topic,
		Key:       []byte(event.Key()),
		Value:     value,
		Headers:   headers,
		Timestamp: event.OccurredAt,
	}
	if err := p.producer.Produce(ctx, msg); err != nil {
		return fmt.Errorf("failed to publish %s event: %w", event.Type, err)
	}
	return nil
}

// NoOpEventPublisher is used when Kafka is disabled
type NoOpEventPublisher struct{}

// NewNoOpEventPublisher creates a new no-op event publisher
func NewNoOpEventPublisher() *NoOpEventPublisher {
	return &NoOpEventPublisher{}
}

func (p *NoOpEventPublisher) PublishSignedIn(ctx context.Context, token domain.Token) error {
	return nil
}

func (p *NoOpEventPublisher) PublishRoleSwitched(ctx context.Context, token domain.Token, from *domain.Role) error {
	return nil
}

func (p *NoOpEventPublisher) PublishSessionRevoked(ctx context.Context, token domain.Token, reason domain.RevokeReason) error {
	return nil
}

func (p *NoOpEventPublisher) Close() error {
	return nil
}
