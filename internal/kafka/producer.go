package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"

	"wifihub/internal/logger"
	"wifihub/internal/models"
)

// Topics names the topic for each order event type.
type Topics struct {
	OrderCreated  string
	StatusChanged string
}

func (t Topics) All() []string {
	return []string{t.OrderCreated, t.StatusChanged}
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Producer struct {
	Writer messageWriter
	Topics Topics
	Logger *logger.Logger
}

func NewProducer(brokers []string, topics Topics, log *logger.Logger) *Producer {
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		BatchTimeout:           10 * time.Millisecond,
		AllowAutoTopicCreation: true,
	}
	return &Producer{Writer: writer, Topics: topics, Logger: log}
}

func (p *Producer) topicFor(eventType string) (string, error) {
	switch eventType {
	case models.EventOrderCreated:
		return p.Topics.OrderCreated, nil
	case models.EventOrderStatusChanged:
		return p.Topics.StatusChanged, nil
	}
	return "", fmt.Errorf("no topic for event type %q", eventType)
}

// PublishOrderEvent streams the event keyed by order id, so every event of
// one order lands on the same partition.
func (p *Producer) PublishOrderEvent(ctx context.Context, event models.OrderEvent) error {
	topic, err := p.topicFor(event.Type)
	if err != nil {
		return err
	}

	msgBytes, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal order event: %w", err)
	}

	err = p.Writer.WriteMessages(ctx, kafka.Message{
		Topic: topic,
		Key:   []byte(strconv.FormatInt(event.OrderID, 10)),
		Value: msgBytes,
	})
	if err != nil {
		return fmt.Errorf("publish to %s: %w", topic, err)
	}

	p.Logger.LogKafka("PUBLISH", topic, fmt.Sprintf("order %d %s (%s)", event.OrderID, event.Type, event.Status))
	return nil
}

func (p *Producer) Close() error {
	return p.Writer.Close()
}
