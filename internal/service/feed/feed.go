package feed

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/Domenick1991/tailorbook/internal/domain"
	"github.com/Domenick1991/tailorbook/internal/kafka"
	"go.uber.org/zap"
)

const (
	defaultInterval     = 10 * time.Second
	defaultFetchTimeout = 20 * time.Second
)

type Lister interface {
	ListMyBookings(ctx context.Context) ([]domain.Booking, error)
}

// PushSource delivers backend booking events until ctx is done.
type PushSource interface {
	Listen(ctx context.Context, notify func(kafka.BookingEvent)) error
}

type ChangeKind string

const (
	ChangeCreated ChangeKind = "created"
	ChangeUpdated ChangeKind = "updated"
	ChangeRemoved ChangeKind = "removed"
)

type Change struct {
	Kind     ChangeKind
	Booking  domain.Booking
	Previous *domain.Booking
}

// Event converts the change into the notification payload.
func (c Change) Event(at time.Time) kafka.BookingEvent {
	e := kafka.BookingEvent{
		BookingID:        c.Booking.ID,
		Status:           c.Booking.Status.Normalize(),
		PaymentStatus:    c.Booking.PaymentStatus,
		CustomerUsername: c.Booking.CustomerUsername,
		TailorUsername:   c.Booking.TailorUsername,
		ServiceName:      c.Booking.ServiceName,
		At:               at,
	}
	if c.Previous != nil {
		e.PreviousStatus = c.Previous.Status.Normalize()
	}

	switch c.Kind {
	case ChangeCreated:
		e.Type = kafka.EventBookingCreated
	case ChangeRemoved:
		e.Type = kafka.EventBookingRemoved
	default:
		e.Type = kafka.EventBookingStatusChanged
		if c.Previous != nil && c.Previous.Status.Is(c.Booking.Status) &&
			!c.Previous.PaymentStatus.Paid() && c.Booking.PaymentStatus.Paid() {
			e.Type = kafka.EventBookingPaid
		}
	}
	return e
}

type Feed struct {
	lister       Lister
	push         PushSource
	interval     time.Duration
	fetchTimeout time.Duration
	log          *zap.Logger

	refreshCh chan struct{}

	mu       sync.RWMutex
	snapshot []domain.Booking
	loaded   bool
	handlers []func(Change)
}

type Option func(*Feed)

func WithPushSource(p PushSource) Option {
	return func(f *Feed) { f.push = p }
}

// WithInterval sets the fallback polling period.
func WithInterval(d time.Duration) Option {
	return func(f *Feed) {
		if d > 0 {
			f.interval = d
		}
	}
}

func WithFetchTimeout(d time.Duration) Option {
	return func(f *Feed) {
		if d > 0 {
			f.fetchTimeout = d
		}
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(f *Feed) { f.log = l }
}

func New(lister Lister, opts ...Option) *Feed {
	f := &Feed{
		lister:       lister,
		interval:     defaultInterval,
		fetchTimeout: defaultFetchTimeout,
		log:          zap.NewNop(),
		refreshCh:    make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func (f *Feed) OnChange(h func(Change)) {
	f.mu.Lock()
	f.handlers = append(f.handlers, h)
	f.mu.Unlock()
}

// Refresh asks Run for a reload. It never blocks and requests made while one
// is already pending collapse into it.
func (f *Feed) Refresh() {
	select {
	case f.refreshCh <- struct{}{}:
	default:
	}
}

func (f *Feed) Snapshot() []domain.Booking {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make([]domain.Booking, len(f.snapshot))
	copy(out, f.snapshot)
	return out
}

// Load fetches the collection once and returns what changed since the last
// load. The first load only records a baseline.
func (f *Feed) Load(ctx context.Context) ([]Change, error) {
	ctx, cancel := context.WithTimeout(ctx, f.fetchTimeout)
	defer cancel()

	next, err := f.lister.ListMyBookings(ctx)
	if err != nil {
		return nil, fmt.Errorf("list bookings: %w", err)
	}

	f.mu.Lock()
	var changes []Change
	if f.loaded {
		changes = Diff(f.snapshot, next)
	}
	f.snapshot = next
	f.loaded = true
	handlers := append([]func(Change){}, f.handlers...)
	f.mu.Unlock()

	for _, c := range changes {
		for _, h := range handlers {
			h(c)
		}
	}
	return changes, nil
}

// Run keeps the collection fresh until ctx is done. Reloads happen on Refresh,
// on push events and on the fallback ticker. It returns early only when the
// session can no longer authorize requests.
func (f *Feed) Run(ctx context.Context) error {
	if err := f.reload(ctx); err != nil {
		return err
	}

	if f.push != nil {
		go func() {
			err := f.push.Listen(ctx, func(e kafka.BookingEvent) {
				f.log.Debug("push event", zap.String("type", e.Type), zap.Int64("booking_id", e.BookingID))
				f.Refresh()
			})
			if err != nil {
				f.log.Warn("push source stopped, polling only", zap.Error(err))
			}
		}()
	}

	ticker := time.NewTicker(f.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		case <-f.refreshCh:
		}
		if err := f.reload(ctx); err != nil {
			return err
		}
	}
}

func (f *Feed) reload(ctx context.Context) error {
	changes, err := f.Load(ctx)
	switch {
	case err == nil:
		if len(changes) > 0 {
			f.log.Info("bookings changed", zap.Int("changes", len(changes)))
		}
		return nil
	case errors.Is(err, domain.ErrSessionExpired), errors.Is(err, domain.ErrNotAuthenticated):
		return err
	case ctx.Err() != nil:
		return nil
	}
	f.log.Warn("refresh bookings failed", zap.Error(err))
	return nil
}

// Diff compares two snapshots. Created and updated entries follow the order
// of next; removed entries come last, by id.
func Diff(prev, next []domain.Booking) []Change {
	before := make(map[int64]domain.Booking, len(prev))
	for _, b := range prev {
		before[b.ID] = b
	}

	var changes []Change
	seen := make(map[int64]bool, len(next))
	for _, b := range next {
		seen[b.ID] = true
		old, ok := before[b.ID]
		if !ok {
			changes = append(changes, Change{Kind: ChangeCreated, Booking: b})
			continue
		}
		if changed(old, b) {
			o := old
			changes = append(changes, Change{Kind: ChangeUpdated, Booking: b, Previous: &o})
		}
	}

	var removed []domain.Booking
	for _, b := range prev {
		if !seen[b.ID] {
			removed = append(removed, b)
		}
	}
	sort.Slice(removed, func(i, j int) bool { return removed[i].ID < removed[j].ID })
	for _, b := range removed {
		o := b
		changes = append(changes, Change{Kind: ChangeRemoved, Booking: b, Previous: &o})
	}
	return changes
}

func changed(a, b domain.Booking) bool {
	return !a.Status.Is(b.Status) ||
		a.PaymentStatus.Paid() != b.PaymentStatus.Paid() ||
		!sameTime(a.PickupDate, b.PickupDate) ||
		!sameTime(a.DeliveryDate, b.DeliveryDate) ||
		!sameTime(a.ScheduledTime, b.ScheduledTime)
}

func sameTime(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}
