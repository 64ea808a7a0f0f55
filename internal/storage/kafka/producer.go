package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"swapScope/internal/model"
)

const defaultTopic = "swapscope-alerts"

// Producer publishes alerts to Kafka, keyed by actor so one wallet's alerts stay ordered.
type Producer struct {
	writer *kafka.Writer
	topic  string
}

type ProducerConfig struct {
	Brokers []string
	Topic   string
}

func NewProducer(cfg ProducerConfig) (*Producer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("kafka brokers are required")
	}
	if strings.TrimSpace(cfg.Topic) == "" {
		cfg.Topic = defaultTopic
	}
	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.LeastBytes{},
		BatchTimeout: 500 * time.Millisecond,
	}
	return &Producer{writer: writer, topic: cfg.Topic}, nil
}

func (p *Producer) Close() error {
	return p.writer.Close()
}

// PutAlerts publishes alerts in one write.
func (p *Producer) PutAlerts(ctx context.Context, alerts []model.Alert) error {
	if len(alerts) == 0 {
		return nil
	}
	tracer := otel.Tracer("swapscope/kafka")
	messages := make([]kafka.Message, 0, len(alerts))
	spans := make([]trace.Span, 0, len(alerts))
	for _, alert := range alerts {
		_, span := tracer.Start(ctx, "alerts.publish", trace.WithSpanKind(trace.SpanKindProducer))
		span.SetAttributes(
			attribute.Int64("chain.id", int64(alert.ChainID)),
			attribute.Int64("block.number", int64(alert.BlockNumber)),
			attribute.String("tx.hash", alert.TxHash.Hex()),
			attribute.String("alert.kind", string(alert.Kind)),
		)

		message, err := encode(alert)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			span.End()
			for _, started := range spans {
				started.End()
			}
			return err
		}
		messages = append(messages, message)
		spans = append(spans, span)
	}

	err := p.writer.WriteMessages(ctx, messages...)
	for _, span := range spans {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}
	if err != nil {
		return fmt.Errorf("publish %d alerts to %s: %w", len(messages), p.topic, err)
	}
	return nil
}

func encode(alert model.Alert) (kafka.Message, error) {
	payload, err := json.Marshal(alert)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("marshal alert: %w", err)
	}
	return kafka.Message{
		Key:   []byte(strings.ToLower(alert.Actor.Hex())),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "kind", Value: []byte(alert.Kind)},
			{Key: "alert-id", Value: []byte(alert.ID)},
		},
	}, nil
}
