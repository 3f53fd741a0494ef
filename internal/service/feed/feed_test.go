package feed

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Domenick1991/tailorbook/internal/domain"
	"github.com/Domenick1991/tailorbook/internal/kafka"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedLister returns its snapshots in order and repeats the last one.
type scriptedLister struct {
	mu        sync.Mutex
	snapshots [][]domain.Booking
	errs      []error
	calls     int
}

func (l *scriptedLister) ListMyBookings(ctx context.Context) ([]domain.Booking, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	i := l.calls
	l.calls++
	if i < len(l.errs) && l.errs[i] != nil {
		return nil, l.errs[i]
	}
	if i >= len(l.snapshots) {
		i = len(l.snapshots) - 1
	}
	return l.snapshots[i], nil
}

func (l *scriptedLister) Calls() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.calls
}

type chanPush struct {
	events chan kafka.BookingEvent
}

func (p *chanPush) Listen(ctx context.Context, notify func(kafka.BookingEvent)) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case e := <-p.events:
			notify(e)
		}
	}
}

func b(id int64, status domain.BookingStatus, payment domain.PaymentStatus) domain.Booking {
	return domain.Booking{ID: id, Status: status, PaymentStatus: payment}
}

func TestDiff(t *testing.T) {
	prev := []domain.Booking{
		b(1, domain.BookingStatusPending, domain.PaymentStatusUnpaid),
		b(2, domain.BookingStatusAccepted, domain.PaymentStatusUnpaid),
		b(3, domain.BookingStatusAccepted, domain.PaymentStatusPaid),
	}
	next := []domain.Booking{
		b(4, domain.BookingStatusPending, domain.PaymentStatusUnpaid),
		b(1, "PENDING", domain.PaymentStatusUnpaid),
		b(2, domain.BookingStatusAccepted, domain.PaymentStatusPaid),
	}

	changes := Diff(prev, next)

	require.Len(t, changes, 3)
	assert.Equal(t, ChangeCreated, changes[0].Kind)
	assert.Equal(t, int64(4), changes[0].Booking.ID)
	assert.Equal(t, ChangeUpdated, changes[1].Kind)
	assert.Equal(t, int64(2), changes[1].Booking.ID)
	require.NotNil(t, changes[1].Previous)
	assert.False(t, changes[1].Previous.PaymentStatus.Paid())
	assert.Equal(t, ChangeRemoved, changes[2].Kind)
	assert.Equal(t, int64(3), changes[2].Booking.ID)
}

func TestChange_Event(t *testing.T) {
	at := time.Date(2026, 2, 10, 12, 0, 0, 0, time.UTC)
	prev := b(2, domain.BookingStatusAccepted, domain.PaymentStatusUnpaid)

	paid := Change{Kind: ChangeUpdated, Booking: b(2, domain.BookingStatusAccepted, domain.PaymentStatusPaid), Previous: &prev}
	assert.Equal(t, kafka.EventBookingPaid, paid.Event(at).Type)

	moved := Change{Kind: ChangeUpdated, Booking: b(2, domain.BookingStatusPickupReady, domain.PaymentStatusPaid), Previous: &prev}
	e := moved.Event(at)
	assert.Equal(t, kafka.EventBookingStatusChanged, e.Type)
	assert.Equal(t, domain.BookingStatusAccepted, e.PreviousStatus)
	assert.Equal(t, domain.BookingStatusPickupReady, e.Status)
	assert.Equal(t, at, e.At)

	assert.Equal(t, kafka.EventBookingCreated, Change{Kind: ChangeCreated, Booking: prev}.Event(at).Type)
}

func TestLoad_FirstLoadIsBaseline(t *testing.T) {
	lister := &scriptedLister{snapshots: [][]domain.Booking{
		{b(1, domain.BookingStatusPending, domain.PaymentStatusUnpaid)},
		{b(1, domain.BookingStatusAccepted, domain.PaymentStatusUnpaid)},
	}}
	f := New(lister)

	var seen []Change
	f.OnChange(func(c Change) { seen = append(seen, c) })

	changes, err := f.Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, changes)
	assert.Len(t, f.Snapshot(), 1)

	changes, err = f.Load(context.Background())
	require.NoError(t, err)
	require.Len(t, changes, 1)
	assert.Equal(t, seen, changes)
	assert.Equal(t, domain.BookingStatusAccepted, f.Snapshot()[0].Status)
}

func TestRefresh_Coalesces(t *testing.T) {
	f := New(&scriptedLister{})
	f.Refresh()
	f.Refresh()
	f.Refresh()
	assert.Len(t, f.refreshCh, 1)
}

func TestRun_ReloadsOnPushAndStopsOnCancel(t *testing.T) {
	lister := &scriptedLister{snapshots: [][]domain.Booking{
		{b(1, domain.BookingStatusPending, domain.PaymentStatusUnpaid)},
		{b(1, domain.BookingStatusAccepted, domain.PaymentStatusUnpaid)},
	}}
	push := &chanPush{events: make(chan kafka.BookingEvent, 1)}
	f := New(lister, WithPushSource(push), WithInterval(time.Hour))

	changed := make(chan Change, 1)
	f.OnChange(func(c Change) { changed <- c })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.Run(ctx) }()

	push.events <- kafka.BookingEvent{Type: kafka.EventBookingStatusChanged, BookingID: 1}

	select {
	case c := <-changed:
		assert.Equal(t, ChangeUpdated, c.Kind)
		assert.Equal(t, domain.BookingStatusAccepted, c.Booking.Status)
	case <-time.After(2 * time.Second):
		t.Fatal("push event did not trigger a reload")
	}

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop after cancel")
	}
}

func TestRun_StopsOnSessionExpiry(t *testing.T) {
	lister := &scriptedLister{
		snapshots: [][]domain.Booking{{}},
		errs:      []error{nil, domain.ErrSessionExpired},
	}
	f := New(lister, WithInterval(time.Hour))

	done := make(chan error, 1)
	go func() { done <- f.Run(context.Background()) }()
	f.Refresh()

	select {
	case err := <-done:
		assert.True(t, errors.Is(err, domain.ErrSessionExpired))
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return on session expiry")
	}
	assert.Equal(t, 2, lister.Calls())
}

func TestRun_SurvivesTransientErrors(t *testing.T) {
	lister := &scriptedLister{
		snapshots: [][]domain.Booking{{}, {}, {b(9, domain.BookingStatusPending, "")}},
		errs:      []error{nil, &domain.NetworkError{Op: "GET", URL: "/marketplace/bookings/", Err: errors.New("timeout")}},
	}
	f := New(lister, WithInterval(10*time.Millisecond))

	created := make(chan Change, 1)
	f.OnChange(func(c Change) {
		select {
		case created <- c:
		default:
		}
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = f.Run(ctx) }()

	select {
	case c := <-created:
		assert.Equal(t, int64(9), c.Booking.ID)
	case <-time.After(2 * time.Second):
		t.Fatal("feed did not recover after a network error")
	}
}
