package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Domenick1991/tailorbook/internal/domain"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

const (
	EventBookingCreated       = "booking_created"
	EventBookingStatusChanged = "booking_status_changed"
	EventBookingPaid          = "booking_paid"
	EventBookingRemoved       = "booking_removed"
)

type BookingEvent struct {
	Type             string               `json:"type"`
	BookingID        int64                `json:"booking_id"`
	Status           domain.BookingStatus `json:"status"`
	PreviousStatus   domain.BookingStatus `json:"previous_status,omitempty"`
	PaymentStatus    domain.PaymentStatus `json:"payment_status,omitempty"`
	CustomerUsername string               `json:"customer_username,omitempty"`
	TailorUsername   string               `json:"tailor_username,omitempty"`
	ServiceName      string               `json:"service_name,omitempty"`
	At               time.Time            `json:"at"`
}

// Key partitions events so every booking keeps its order.
func (e BookingEvent) Key() string {
	return fmt.Sprintf("booking-%d", e.BookingID)
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Producer struct {
	brokers []string
	writer  messageWriter
	log     *zap.Logger
}

func NewProducer(brokers []string, log *zap.Logger) *Producer {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Balancer:     &kafka.Hash{},
		BatchTimeout: 50 * time.Millisecond,
		RequiredAcks: kafka.RequireOne,
		Async:        false,
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Producer{brokers: brokers, writer: writer, log: log}
}

func (p *Producer) Publish(ctx context.Context, topic, key string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	message := kafka.Message{
		Topic: topic,
		Key:   []byte(key),
		Value: data,
		Time:  time.Now(),
	}
	if err := p.writer.WriteMessages(ctx, message); err != nil {
		return fmt.Errorf("failed to write message to Kafka: %w", err)
	}

	p.log.Debug("published", zap.String("topic", topic), zap.String("key", key))
	return nil
}

// PublishWithRetry backs off linearly between attempts and gives up early
// when ctx is done.
func (p *Producer) PublishWithRetry(ctx context.Context, topic, key string, payload interface{}, maxRetries int) error {
	if maxRetries < 1 {
		maxRetries = 1
	}

	var lastErr error
	for i := 0; i < maxRetries; i++ {
		err := p.Publish(ctx, topic, key, payload)
		if err == nil {
			return nil
		}
		lastErr = err
		p.log.Warn("publish attempt failed", zap.Int("attempt", i+1), zap.String("topic", topic), zap.Error(err))

		if i < maxRetries-1 {
			select {
			case <-ctx.Done():
				return errors.Join(lastErr, ctx.Err())
			case <-time.After(time.Duration(i+1) * 500 * time.Millisecond):
			}
		}
	}
	return fmt.Errorf("failed after %d retries: %w", maxRetries, lastErr)
}

func (p *Producer) Close() error {
	if p.writer != nil {
		return p.writer.Close()
	}
	return nil
}

// CheckConnection dials the first broker and lists partitions.
func (p *Producer) CheckConnection(ctx context.Context) error {
	if len(p.brokers) == 0 {
		return errors.New("no kafka brokers configured")
	}
	conn, err := kafka.DialContext(ctx, "tcp", p.brokers[0])
	if err != nil {
		return fmt.Errorf("failed to connect to Kafka: %w", err)
	}
	defer conn.Close()

	partitions, err := conn.ReadPartitions()
	if err != nil {
		return fmt.Errorf("failed to read partitions: %w", err)
	}
	p.log.Info("connected to kafka", zap.Int("partitions", len(partitions)))
	return nil
}
