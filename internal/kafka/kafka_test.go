package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/Domenick1991/tailorbook/internal/domain"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type MockWriter struct {
	mock.Mock
}

func (m *MockWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	args := m.Called(ctx, msgs)
	return args.Error(0)
}

func (m *MockWriter) Close() error {
	return m.Called().Error(0)
}

type sliceReader struct {
	msgs []kafka.Message
}

func (r *sliceReader) ReadMessage(ctx context.Context) (kafka.Message, error) {
	if len(r.msgs) == 0 {
		<-ctx.Done()
		return kafka.Message{}, ctx.Err()
	}
	msg := r.msgs[0]
	r.msgs = r.msgs[1:]
	return msg, nil
}

func (r *sliceReader) Close() error { return nil }

func TestProducer_Publish(t *testing.T) {
	writer := &MockWriter{}
	p := &Producer{writer: writer, log: zap.NewNop()}
	ctx := context.Background()

	event := BookingEvent{Type: EventBookingStatusChanged, BookingID: 5, Status: domain.BookingStatusAccepted}
	writer.On("WriteMessages", ctx, mock.MatchedBy(func(msgs []kafka.Message) bool {
		if len(msgs) != 1 || msgs[0].Topic != "booking.notifications" || string(msgs[0].Key) != "booking-5" {
			return false
		}
		var got BookingEvent
		return json.Unmarshal(msgs[0].Value, &got) == nil && got.Status == domain.BookingStatusAccepted
	})).Return(nil).Once()

	require.NoError(t, p.Publish(ctx, "booking.notifications", event.Key(), event))
	writer.AssertExpectations(t)
}

func TestProducer_PublishWithRetry(t *testing.T) {
	writer := &MockWriter{}
	p := &Producer{writer: writer, log: zap.NewNop()}
	ctx := context.Background()

	writer.On("WriteMessages", ctx, mock.Anything).Return(errors.New("leader not available")).Once()
	writer.On("WriteMessages", ctx, mock.Anything).Return(nil).Once()

	require.NoError(t, p.PublishWithRetry(ctx, "t", "k", BookingEvent{}, 3))
	writer.AssertNumberOfCalls(t, "WriteMessages", 2)
}

func TestProducer_PublishWithRetry_StopsOnCancel(t *testing.T) {
	writer := &MockWriter{}
	p := &Producer{writer: writer, log: zap.NewNop()}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	writer.On("WriteMessages", ctx, mock.Anything).Return(errors.New("broker down"))

	err := p.PublishWithRetry(ctx, "t", "k", BookingEvent{}, 5)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	writer.AssertNumberOfCalls(t, "WriteMessages", 1)
}

func TestConsumer_ListenSkipsMalformed(t *testing.T) {
	valid, err := json.Marshal(BookingEvent{Type: EventBookingPaid, BookingID: 8, PaymentStatus: domain.PaymentStatusPaid, At: time.Now()})
	require.NoError(t, err)

	c := &Consumer{
		reader: &sliceReader{msgs: []kafka.Message{{Value: []byte("garbage")}, {Value: valid}}},
		log:    zap.NewNop(),
	}
	ctx, cancel := context.WithCancel(context.Background())

	var got []BookingEvent
	err = c.Listen(ctx, func(e BookingEvent) {
		got = append(got, e)
		cancel()
	})

	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, int64(8), got[0].BookingID)
	assert.True(t, got[0].PaymentStatus.Paid())
}
