// Package publisher streams every generation to Kafka for downstream consumers.
package publisher

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/shubham-shewale/stock-ticker/cmd/gateway/internal/pricing"
	"github.com/shubham-shewale/stock-ticker/pkg/config"
)

type KafkaPublisher struct {
	logger *zap.Logger
	writer KafkaWriter
}

func NewKafkaPublisher(logger *zap.Logger, writer KafkaWriter) *KafkaPublisher {
	return &KafkaPublisher{logger: logger, writer: writer}
}

// NewWriter builds the production writer: batched and async so a tick never waits on the broker.
func NewWriter(cfg config.KafkaConfig) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.LeastBytes{},
		BatchSize:    100,
		BatchTimeout: 10 * time.Millisecond,
		Async:        true,
	}
}

// Publish writes one message per quote, keyed by symbol for per-partition ordering.
func (p *KafkaPublisher) Publish(ctx context.Context, gen pricing.Generation) error {
	msgs := make([]kafka.Message, 0, len(gen.Quotes))
	for _, q := range gen.Quotes {
		payload, err := json.Marshal(q)
		if err != nil {
			return fmt.Errorf("marshal quote %s: %w", q.Symbol, err)
		}
		msgs = append(msgs, kafka.Message{
			Key:   []byte(q.Symbol),
			Value: payload,
		})
	}

	if err := p.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("write generation %d: %w", gen.Seq, err)
	}

	p.logger.Debug("Published generation", zap.Uint64("generation", gen.Seq), zap.Int("quotes", len(msgs)))
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
