package publisher

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/shubham-shewale/stock-ticker/cmd/gateway/internal/pricing"
)

const (
	quotePartitions = 4
	readyAttempts   = 5
	readyBackoff    = 200 * time.Millisecond
)

var ErrTopicNotReady = errors.New("topic not ready")

// TopicCreator makes sure the quote topic exists before the first tick is published.
type TopicCreator struct {
	logger *zap.Logger
	dialer KafkaDialer
	clock  pricing.Clock
}

func NewTopicCreator(logger *zap.Logger, dialer KafkaDialer, clock pricing.Clock) *TopicCreator {
	return &TopicCreator{
		logger: logger,
		dialer: dialer,
		clock:  clock,
	}
}

// Ensure creates topic through the cluster controller and waits until its
// partitions are readable. An already existing topic is not an error.
func (tc *TopicCreator) Ensure(ctx context.Context, brokers []string, topic string) error {
	conn, err := tc.dialAny(ctx, brokers)
	if err != nil {
		return err
	}
	defer conn.Close()

	controller, err := conn.Controller()
	if err != nil {
		return fmt.Errorf("get controller: %w", err)
	}

	addr := net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port))
	controllerConn, err := tc.dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("dial controller %s: %w", addr, err)
	}
	defer controllerConn.Close()

	err = controllerConn.CreateTopics(kafka.TopicConfig{
		Topic:             topic,
		NumPartitions:     quotePartitions,
		ReplicationFactor: 1,
	})
	if err != nil && !errors.Is(err, kafka.TopicAlreadyExists) {
		return fmt.Errorf("create topic %s: %w", topic, err)
	}

	return tc.waitForTopic(ctx, conn, topic)
}

func (tc *TopicCreator) dialAny(ctx context.Context, brokers []string) (KafkaConn, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("no kafka brokers configured")
	}

	var lastErr error
	for _, addr := range brokers {
		conn, err := tc.dialer.DialContext(ctx, "tcp", addr)
		if err == nil {
			return conn, nil
		}
		tc.logger.Debug("Broker dial failed", zap.String("broker", addr), zap.Error(err))
		lastErr = err
	}
	return nil, fmt.Errorf("dial brokers: %w", lastErr)
}

func (tc *TopicCreator) waitForTopic(ctx context.Context, conn KafkaConn, topic string) error {
	for i := 0; i < readyAttempts; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		tc.clock.Sleep(readyBackoff)
		partitions, err := conn.ReadPartitions(topic)
		if err == nil && len(partitions) > 0 {
			tc.logger.Info("Topic is ready", zap.String("topic", topic), zap.Int("partitions", len(partitions)))
			return nil
		}
	}
	return fmt.Errorf("%s: %w", topic, ErrTopicNotReady)
}
