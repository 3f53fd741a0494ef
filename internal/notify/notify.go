package notify

import (
	"context"
	"fmt"

	"github.com/Domenick1991/tailorbook/internal/kafka"
	"go.uber.org/zap"
)

type Publisher interface {
	PublishWithRetry(ctx context.Context, topic, key string, payload interface{}, maxRetries int) error
}

// Notification is what lands on the notifications topic.
type Notification struct {
	kafka.BookingEvent
	Recipient string `json:"recipient"`
	Message   string `json:"message"`
}

type Notifier struct {
	publisher Publisher
	topic     string
	retries   int
	log       *zap.Logger
}

type Option func(*Notifier)

// WithPublisher forwards every notification to topic in addition to logging it.
func WithPublisher(p Publisher, topic string) Option {
	return func(n *Notifier) {
		n.publisher = p
		n.topic = topic
	}
}

func WithRetries(n int) Option {
	return func(nt *Notifier) { nt.retries = n }
}

func NewNotifier(log *zap.Logger, opts ...Option) *Notifier {
	if log == nil {
		log = zap.NewNop()
	}
	n := &Notifier{log: log, retries: 3}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Send reports event to recipient, the user who observed the change.
func (n *Notifier) Send(ctx context.Context, recipient string, event kafka.BookingEvent) error {
	msg := Notification{BookingEvent: event, Recipient: recipient, Message: Message(event)}
	n.log.Info(msg.Message,
		zap.String("recipient", recipient),
		zap.String("type", event.Type),
		zap.Int64("booking_id", event.BookingID),
	)
	if n.publisher == nil || n.topic == "" {
		return nil
	}
	if err := n.publisher.PublishWithRetry(ctx, n.topic, event.Key(), msg, n.retries); err != nil {
		return fmt.Errorf("publish notification for booking %d: %w", event.BookingID, err)
	}
	return nil
}

// Message renders event as a single line of text.
func Message(event kafka.BookingEvent) string {
	subject := fmt.Sprintf("Booking #%d", event.BookingID)
	if event.ServiceName != "" {
		subject = fmt.Sprintf("%s (%s)", subject, event.ServiceName)
	}
	switch event.Type {
	case kafka.EventBookingCreated:
		return fmt.Sprintf("%s was created and is %s", subject, event.Status.Normalize())
	case kafka.EventBookingPaid:
		return fmt.Sprintf("%s has been paid", subject)
	case kafka.EventBookingRemoved:
		return fmt.Sprintf("%s is no longer listed", subject)
	case kafka.EventBookingStatusChanged:
		if event.PreviousStatus != "" {
			return fmt.Sprintf("%s moved from %s to %s", subject, event.PreviousStatus.Normalize(), event.Status.Normalize())
		}
		return fmt.Sprintf("%s is now %s", subject, event.Status.Normalize())
	}
	return fmt.Sprintf("%s changed", subject)
}
