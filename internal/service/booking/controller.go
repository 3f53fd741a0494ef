package booking

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/Domenick1991/tailorbook/internal/domain"
	"github.com/Domenick1991/tailorbook/internal/kafka"
	"github.com/Domenick1991/tailorbook/internal/validate"
	"go.uber.org/zap"
)

type BookingUseCase interface {
	Actions(b domain.Booking, role domain.Role) []Action
	RequestTransition(ctx context.Context, b domain.Booking, to domain.BookingStatus, role domain.Role) (*domain.Booking, error)
	StartPayment(ctx context.Context, b domain.Booking, role domain.Role) (*domain.Checkout, error)
	ConfirmPayment(ctx context.Context, bookingID int64, checkoutSessionID string) (*domain.Booking, error)
	SubmitReview(ctx context.Context, b domain.Booking, role domain.Role, in domain.ReviewInput) (*domain.Review, error)
	Create(ctx context.Context, svc domain.Service, pickup time.Time) (*domain.Booking, error)
}

// Marketplace is the part of the backend API the controller drives.
type Marketplace interface {
	UpdateBookingStatus(ctx context.Context, id int64, status domain.BookingStatus) (*domain.Booking, error)
	StartPayment(ctx context.Context, id int64) (*domain.Checkout, error)
	MarkPaid(ctx context.Context, id int64, checkoutSessionID string) (*domain.Booking, error)
	CreateReview(ctx context.Context, in domain.ReviewInput) (*domain.Review, error)
	MyReviews(ctx context.Context) ([]domain.Review, error)
	CreateBooking(ctx context.Context, in domain.CreateBookingInput) (*domain.Booking, error)
}

// Refresher is asked to reload the booking collection after a change.
type Refresher interface {
	Refresh()
}

type Producer interface {
	Publish(ctx context.Context, topic, key string, value interface{}) error
}

type Controller struct {
	api       Marketplace
	refresher Refresher
	producer  Producer
	topic     string
	log       *zap.Logger
	now       func() time.Time

	mu       sync.RWMutex
	reviewed map[int64]bool
}

type ControllerOption func(*Controller)

func WithRefresher(r Refresher) ControllerOption {
	return func(c *Controller) { c.refresher = r }
}

// WithProducer publishes a BookingEvent to topic after every change the
// controller makes.
func WithProducer(p Producer, topic string) ControllerOption {
	return func(c *Controller) {
		c.producer = p
		c.topic = topic
	}
}

func WithLogger(l *zap.Logger) ControllerOption {
	return func(c *Controller) { c.log = l }
}

func WithNow(now func() time.Time) ControllerOption {
	return func(c *Controller) { c.now = now }
}

func NewController(api Marketplace, opts ...ControllerOption) *Controller {
	c := &Controller{
		api:      api,
		log:      zap.NewNop(),
		now:      time.Now,
		reviewed: make(map[int64]bool),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Actions returns what role can do with b, in table order, followed by the
// payment and review entries.
func (c *Controller) Actions(b domain.Booking, role domain.Role) []Action {
	var actions []Action
	for _, to := range AllowedTransitions(b, role) {
		actions = append(actions, Action{Kind: ActionTransition, To: to, Label: transitionLabel(to)})
	}
	if canPay(b, role) {
		actions = append(actions, Action{Kind: ActionPay, Label: "Pay now"})
	}
	if canReview(b, role) {
		if c.Reviewed(b.ID) {
			actions = append(actions, Action{Kind: ActionReviewed, Label: "Review submitted"})
		} else {
			actions = append(actions, Action{Kind: ActionReview, Label: "Leave a review"})
		}
	}
	return actions
}

func (c *Controller) RequestTransition(ctx context.Context, b domain.Booking, to domain.BookingStatus, role domain.Role) (*domain.Booking, error) {
	to = to.Normalize()
	if err := CheckTransition(b, to, role); err != nil {
		c.log.Debug("transition refused locally", zap.Int64("booking_id", b.ID), zap.Error(err))
		return nil, err
	}

	updated, err := c.api.UpdateBookingStatus(ctx, b.ID, to)
	if err != nil {
		return nil, c.serverRefusal(b, to, err)
	}

	c.log.Info("booking status changed",
		zap.Int64("booking_id", b.ID),
		zap.String("from", string(b.Status.Normalize())),
		zap.String("to", string(updated.Status.Normalize())))
	c.publish(ctx, kafka.EventBookingStatusChanged, updated, b.Status.Normalize())
	c.refresh()
	return updated, nil
}

// serverRefusal turns a 4xx answer into a TransitionRejected that carries the
// server's own reason. Other errors pass through.
func (c *Controller) serverRefusal(b domain.Booking, to domain.BookingStatus, err error) error {
	var apiErr *domain.APIError
	if !errors.As(err, &apiErr) || apiErr.Status >= http.StatusInternalServerError {
		return fmt.Errorf("update booking %d status: %w", b.ID, err)
	}
	reason := apiErr.Detail
	if reason == "" {
		reason = fmt.Sprintf("the marketplace refused the change (status %d)", apiErr.Status)
	}
	return &domain.TransitionRejected{
		BookingID: b.ID,
		From:      b.Status.Normalize(),
		To:        to,
		Reason:    reason,
		Err:       err,
	}
}

func (c *Controller) StartPayment(ctx context.Context, b domain.Booking, role domain.Role) (*domain.Checkout, error) {
	if !canPay(b, role) {
		reason := "only the customer can pay for an accepted booking"
		if b.PaymentStatus.Paid() {
			reason = "this booking is already paid"
		}
		return nil, &domain.TransitionRejected{BookingID: b.ID, From: b.Status.Normalize(), To: b.Status.Normalize(), Reason: reason, Local: true}
	}

	checkout, err := c.api.StartPayment(ctx, b.ID)
	if err != nil {
		return nil, fmt.Errorf("start payment for booking %d: %w", b.ID, err)
	}
	if checkout.CheckoutURL == "" {
		return nil, fmt.Errorf("start payment for booking %d: no checkout url returned", b.ID)
	}
	c.log.Info("checkout started", zap.Int64("booking_id", b.ID))
	return checkout, nil
}

func (c *Controller) ConfirmPayment(ctx context.Context, bookingID int64, checkoutSessionID string) (*domain.Booking, error) {
	if bookingID <= 0 || checkoutSessionID == "" {
		return nil, &domain.ValidationError{Fields: map[string]string{"payment": "Invalid payment data."}}
	}

	updated, err := c.api.MarkPaid(ctx, bookingID, checkoutSessionID)
	if err != nil {
		return nil, fmt.Errorf("confirm payment for booking %d: %w", bookingID, err)
	}
	c.log.Info("payment confirmed", zap.Int64("booking_id", bookingID))
	c.publish(ctx, kafka.EventBookingPaid, updated, updated.Status.Normalize())
	c.refresh()
	return updated, nil
}

func (c *Controller) SubmitReview(ctx context.Context, b domain.Booking, role domain.Role, in domain.ReviewInput) (*domain.Review, error) {
	if !canReview(b, role) {
		return nil, &domain.ValidationError{Fields: map[string]string{"booking": "Only completed bookings can be reviewed by their customer."}}
	}
	if c.Reviewed(b.ID) {
		return nil, &domain.ValidationError{Fields: map[string]string{"booking": "You have already reviewed this booking."}}
	}
	in.BookingID = b.ID
	if err := validate.Struct(&in); err != nil {
		return nil, err
	}

	review, err := c.api.CreateReview(ctx, in)
	if err != nil {
		return nil, fmt.Errorf("review booking %d: %w", b.ID, err)
	}
	c.markReviewed(b.ID)
	c.refresh()
	return review, nil
}

// LoadReviewed seeds the reviewed set from the caller's own reviews.
func (c *Controller) LoadReviewed(ctx context.Context) error {
	reviews, err := c.api.MyReviews(ctx)
	if err != nil {
		return fmt.Errorf("load reviews: %w", err)
	}
	for _, r := range reviews {
		c.markReviewed(r.BookingID)
	}
	return nil
}

func (c *Controller) Reviewed(bookingID int64) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.reviewed[bookingID]
}

func (c *Controller) markReviewed(bookingID int64) {
	c.mu.Lock()
	c.reviewed[bookingID] = true
	c.mu.Unlock()
}

// Create books svc for pickup. The delivery date follows from the service
// turnaround.
func (c *Controller) Create(ctx context.Context, svc domain.Service, pickup time.Time) (*domain.Booking, error) {
	if svc.ID <= 0 {
		return nil, &domain.ValidationError{Fields: map[string]string{"service": "Please select a service."}}
	}
	if !svc.IsActive {
		return nil, &domain.ValidationError{Fields: map[string]string{"service": "This service is not available from the selected tailor."}}
	}
	if pickup.IsZero() {
		return nil, &domain.ValidationError{Fields: map[string]string{"pickup_date": "Please select a pickup date."}}
	}
	if y, m, d := c.now().Date(); pickup.Before(time.Date(y, m, d, 0, 0, 0, 0, pickup.Location())) {
		return nil, &domain.ValidationError{Fields: map[string]string{"pickup_date": "Pickup date cannot be in the past."}}
	}

	in := domain.CreateBookingInput{ServiceID: svc.ID, PickupDate: pickup}
	if turnaround := svc.Turnaround(); turnaround > 0 {
		in.DeliveryDate = pickup.Add(turnaround)
	}
	if err := validate.Struct(&in); err != nil {
		return nil, err
	}

	created, err := c.api.CreateBooking(ctx, in)
	if err != nil {
		return nil, fmt.Errorf("create booking: %w", err)
	}
	c.log.Info("booking created", zap.Int64("booking_id", created.ID), zap.Int64("service_id", svc.ID))
	c.publish(ctx, kafka.EventBookingCreated, created, "")
	c.refresh()
	return created, nil
}

func (c *Controller) refresh() {
	if c.refresher != nil {
		c.refresher.Refresh()
	}
}

func (c *Controller) publish(ctx context.Context, eventType string, b *domain.Booking, previous domain.BookingStatus) {
	if c.producer == nil || c.topic == "" {
		return
	}
	event := kafka.BookingEvent{
		Type:             eventType,
		BookingID:        b.ID,
		Status:           b.Status.Normalize(),
		PreviousStatus:   previous,
		PaymentStatus:    b.PaymentStatus,
		CustomerUsername: b.CustomerUsername,
		TailorUsername:   b.TailorUsername,
		ServiceName:      b.ServiceName,
		At:               c.now(),
	}
	if err := c.producer.Publish(ctx, c.topic, event.Key(), event); err != nil {
		c.log.Warn("publish booking event failed", zap.String("type", eventType), zap.Int64("booking_id", b.ID), zap.Error(err))
	}
}

var _ BookingUseCase = (*Controller)(nil)
