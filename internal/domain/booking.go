package domain

import (
	"strings"
	"time"
)

type BookingStatus string

const (
	BookingStatusPending     BookingStatus = "pending"
	BookingStatusAccepted    BookingStatus = "accepted"
	BookingStatusRejected    BookingStatus = "rejected"
	BookingStatusPickupReady BookingStatus = "pickup_ready"
	BookingStatusPickedUp    BookingStatus = "picked_up"
	BookingStatusCompleted   BookingStatus = "completed"
	BookingStatusCancelled   BookingStatus = "cancelled"
)

// Normalize lower-cases the status so "PENDING" and "pending" compare equal.
func (s BookingStatus) Normalize() BookingStatus {
	return BookingStatus(strings.ToLower(strings.TrimSpace(string(s))))
}

func (s BookingStatus) Is(other BookingStatus) bool {
	return s.Normalize() == other.Normalize()
}

func (s BookingStatus) Terminal() bool {
	switch s.Normalize() {
	case BookingStatusRejected, BookingStatusCancelled, BookingStatusCompleted:
		return true
	}
	return false
}

func (s BookingStatus) Valid() bool {
	switch s.Normalize() {
	case BookingStatusPending, BookingStatusAccepted, BookingStatusRejected, BookingStatusPickupReady,
		BookingStatusPickedUp, BookingStatusCompleted, BookingStatusCancelled:
		return true
	}
	return false
}

type PaymentStatus string

const (
	PaymentStatusUnpaid PaymentStatus = "unpaid"
	PaymentStatusPaid   PaymentStatus = "paid"
)

func (p PaymentStatus) Paid() bool {
	return strings.EqualFold(strings.TrimSpace(string(p)), string(PaymentStatusPaid))
}

type Booking struct {
	ID               int64         `json:"id"`
	Status           BookingStatus `json:"status"`
	PaymentStatus    PaymentStatus `json:"payment_status"`
	CustomerUsername string        `json:"customer_username"`
	TailorUsername   string        `json:"tailor_username"`
	ServiceID        int64         `json:"service"`
	ServiceName      string        `json:"service_name"`
	ScheduledTime    *time.Time    `json:"scheduled_time,omitempty"`
	PickupDate       *time.Time    `json:"pickup_date,omitempty"`
	DeliveryDate     *time.Time    `json:"delivery_date,omitempty"`
	PriceSnapshot    string        `json:"price_snapshot"`
	CreatedAt        time.Time     `json:"created_at"`
}

// Counterparty is the username on the other side of the booking for the given role.
func (b Booking) Counterparty(role Role) string {
	if role == RoleCustomer {
		return b.TailorUsername
	}
	return b.CustomerUsername
}

type CreateBookingInput struct {
	ServiceID    int64     `json:"service" validate:"required,gt=0"`
	PickupDate   time.Time `json:"pickup_date" validate:"required"`
	DeliveryDate time.Time `json:"delivery_date"`
}

// Checkout is the external payment redirect returned when a customer starts paying.
type Checkout struct {
	CheckoutURL string `json:"checkout_url"`
	SessionID   string `json:"session_id,omitempty"`
}
