package messaging

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/agritrade/stockyard/internal/config"
)

// Message represents a message consumed from the bus.
type Message struct {
	Topic   string
	Key     []byte
	Value   []byte
	Headers map[string]string
	Offset  int64
	Time    time.Time
}

// Handler processes an inbound message.
type Handler func(context.Context, Message) error

// Client is the pluggable messaging abstraction. The engine publishes to
// two topics: the accepted-bid stream and the notification fanout.
type Client interface {
	Publish(ctx context.Context, topic string, key []byte, value []byte) error
	Consume(ctx context.Context, handler Handler) error
	Topics() []string
}

// Module wires the messaging client.
var Module = fx.Provide(NewClient)

// noopClient is used when messaging is disabled.
type noopClient struct {
	topics []string
}

func (n noopClient) Publish(context.Context, string, []byte, []byte) error { return nil }
func (n noopClient) Consume(ctx context.Context, handler Handler) error {
	<-ctx.Done()
	return ctx.Err()
}
func (n noopClient) Topics() []string { return n.topics }

// kafkaClient implements the Client via kafka-go with one shared writer
// and a consumer-group reader per topic.
type kafkaClient struct {
	writer  *kafka.Writer
	readers []*kafka.Reader
	topics  []string
	logger  *zap.Logger
}

func (k *kafkaClient) Publish(ctx context.Context, topic string, key []byte, value []byte) error {
	msg := kafka.Message{Topic: topic, Key: key, Value: value}
	return k.writer.WriteMessages(ctx, msg)
}

// Consume runs one fetch loop per topic and funnels everything through the
// handler. It returns when the context ends or a reader fails terminally.
func (k *kafkaClient) Consume(ctx context.Context, handler Handler) error {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	errCh := make(chan error, len(k.readers))

	for _, reader := range k.readers {
		wg.Add(1)
		go func(r *kafka.Reader) {
			defer wg.Done()
			errCh <- k.consumeReader(runCtx, r, handler)
		}(reader)
	}

	err := <-errCh
	cancel()
	wg.Wait()
	return err
}

func (k *kafkaClient) consumeReader(ctx context.Context, reader *kafka.Reader, handler Handler) error {
	for {
		msg, err := reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			k.logger.Error("kafka fetch failed", zap.Error(err))

			select {
			case <-time.After(time.Second):
			case <-ctx.Done():
				return ctx.Err()
			}
			continue
		}

		wrapped := Message{
			Topic:  msg.Topic,
			Key:    append([]byte(nil), msg.Key...),
			Value:  append([]byte(nil), msg.Value...),
			Offset: msg.Offset,
			Time:   msg.Time,
			Headers: func() map[string]string {
				if len(msg.Headers) == 0 {
					return nil
				}
				m := make(map[string]string, len(msg.Headers))
				for _, h := range msg.Headers {
					m[h.Key] = string(h.Value)
				}
				return m
			}(),
		}

		if err := handler(ctx, wrapped); err != nil {
			k.logger.Error("message handler failed", zap.Error(err), zap.String("topic", msg.Topic), zap.Int64("offset", msg.Offset))

			// Handler signals failure; skip commit to allow retry.
			continue
		}

		if err := reader.CommitMessages(ctx, msg); err != nil {
			k.logger.Warn("commit failed", zap.Error(err))
		}
	}
}

func (k *kafkaClient) Topics() []string { return k.topics }

// NewClient builds a messaging client based on configuration.
func NewClient(lc fx.Lifecycle, cfg config.Config, logger *zap.Logger) (Client, error) {
	topics := []string{cfg.Messaging.Kafka.BidsTopic, cfg.Messaging.Kafka.NotificationsTopic}

	if !cfg.Messaging.Enabled || cfg.Messaging.Driver == "noop" {
		logger.Info("messaging disabled; using noop client")

		return noopClient{topics: topics}, nil
	}

	switch cfg.Messaging.Driver {
	case "kafka":
		return newKafkaClient(lc, cfg, topics, logger)
	default:
		return nil, fmt.Errorf("unsupported messaging driver: %s", cfg.Messaging.Driver)
	}
}

func newKafkaClient(lc fx.Lifecycle, cfg config.Config, topics []string, logger *zap.Logger) (Client, error) {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Messaging.Kafka.Brokers...),
		Balancer:     &kafka.LeastBytes{},
		RequiredAcks: kafka.RequireAll,
		Async:        false,
		Logger:       kafkaLogger{logger: logger},
		ErrorLogger:  kafkaLogger{logger: logger},
	}

	readers := make([]*kafka.Reader, 0, len(topics))
	for _, topic := range topics {
		readers = append(readers, kafka.NewReader(kafka.ReaderConfig{
			Brokers:        cfg.Messaging.Kafka.Brokers,
			GroupID:        cfg.Messaging.ConsumerGroup,
			Topic:          topic,
			MinBytes:       cfg.Messaging.Kafka.MinBytes,
			MaxBytes:       cfg.Messaging.Kafka.MaxBytes,
			CommitInterval: cfg.Messaging.Kafka.CommitInterval,
			Dialer: &kafka.Dialer{
				Timeout:  cfg.Messaging.Kafka.ConnectTimeout,
				ClientID: cfg.Messaging.Kafka.ClientID,
			},
		}))
	}

	client := &kafkaClient{writer: writer, readers: readers, topics: topics, logger: logger}

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			logger.Info("closing kafka client")

			var closeErr error
			if err := writer.Close(); err != nil {
				closeErr = err
			}
			for _, reader := range readers {
				if err := reader.Close(); err != nil && closeErr == nil {
					closeErr = err
				}
			}
			return closeErr
		},
	})

	return client, nil
}

type kafkaLogger struct {
	logger *zap.Logger
}

func (k kafkaLogger) Printf(msg string, args ...interface{}) {
	k.logger.Sugar().Debugf(msg, args...)
}
