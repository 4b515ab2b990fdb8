package kafka

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/soulmechanik/forems-portal/pkg/retry"
	"github.com/twmb/franz-go/pkg/kgo"
)

var ErrProducerClosed = errors.New("kafka producer is closed")

// ProducerConfig holds producer configuration
type ProducerConfig struct {
	Brokers       []string
	ClientID      string
	MaxRetries    int
	RetryInterval time.Duration
	BatchSize     int
	LingerMs      int
	// ProduceTimeout bounds a single synchronous produce
	ProduceTimeout time.Duration
}

// Message is a record to be produced
type Message struct {
	Topic     string
	Key       []byte
	Value     []byte
	Headers   map[string]string
	Timestamp time.Time
}

// Producer is a thin synchronous wrapper around a franz-go client
type Producer struct {
	client  *kgo.Client
	config  *ProducerConfig
	retrier *retry.Retrier
}

// NewProducer creates a producer and verifies broker connectivity
func NewProducer(ctx context.Context, cfg *ProducerConfig) (*Producer, error) {
	if cfg == nil || len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("kafka brokers are required")
	}
	if cfg.ProduceTimeout == 0 {
		cfg.ProduceTimeout = 2 * time.Second
	}

	client, err := kgo.NewClient(clientOpts(cfg)...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Kafka client: %w", err)
	}

	if err := client.Ping(ctx); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to ping Kafka: %w", err)
	}

	return &Producer{
		client: client,
		config: cfg,
		retrier: retry.New(&retry.Config{
			MaxRetries:      cfg.MaxRetries,
			InitialInterval: cfg.RetryInterval,
			MaxInterval:     cfg.RetryInterval * 4,
			Multiplier:      2.0,
			JitterFactor:    0.2,
		}),
	}, nil
}

func clientOpts(cfg *ProducerConfig) []kgo.Opt {
	opts := []kgo.Opt{
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.ClientID(cfg.ClientID),
		kgo.RequiredAcks(kgo.AllISRAcks()),
		kgo.ProducerBatchCompression(kgo.SnappyCompression(), kgo.NoCompression()),
	}
	if cfg.LingerMs > 0 {
		opts = append(opts, kgo.ProducerLinger(time.Duration(cfg.LingerMs)*time.Millisecond))
	}
	if cfg.BatchSize > 0 {
		opts = append(opts, kgo.MaxBufferedRecords(cfg.BatchSize))
	}
	return opts
}

// Produce sends one message synchronously, retrying transient failures
func (p *Producer) Produce(ctx context.Context, msg *Message) error {
	if p == nil || p.client == nil {
		return ErrProducerClosed
	}
	record := toRecord(msg)

	result := p.retrier.Do(ctx, func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, p.config.ProduceTimeout)
		defer cancel()
		return p.client.ProduceSync(ctx, record).FirstErr()
	})
	if result.Err != nil {
		if result.LastError != nil {
			return fmt.Errorf("produce to %s after %d attempts: %w", msg.Topic, result.Attempts, result.LastError)
		}
		return fmt.Errorf("produce to %s: %w", msg.Topic, result.Err)
	}
	return nil
}

// Ping checks broker connectivity
func (p *Producer) Ping(ctx context.Context) error {
	if p == nil || p.client == nil {
		return ErrProducerClosed
	}
	return p.client.Ping(ctx)
}

// Close flushes buffered records and closes the client
func (p *Producer) Close() {
	if p == nil || p.client == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = p.client.Flush(ctx)
	p.client.Close()
}

func toRecord(msg *Message) *kgo.Record {
	record := &kgo.Record{
		Topic:     msg.Topic,
		Key:       msg.Key,
		Value:     msg.Value,
		Timestamp: msg.Timestamp,
	}
	for k, v := range msg.Headers {
		record.Headers = append(record.Headers, kgo.RecordHeader{Key: k, Value: []byte(v)})
	}
	return record
}
