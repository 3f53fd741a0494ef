package booking

import (
	"fmt"

	"github.com/Domenick1991/tailorbook/internal/domain"
)

type rule struct {
	from      domain.BookingStatus
	actor     domain.Role
	to        domain.BookingStatus
	needsPaid bool
}

// transitions is the only place the booking workflow is defined.
var transitions = []rule{
	{from: domain.BookingStatusPending, actor: domain.RoleTailor, to: domain.BookingStatusAccepted},
	{from: domain.BookingStatusPending, actor: domain.RoleTailor, to: domain.BookingStatusRejected},
	{from: domain.BookingStatusPending, actor: domain.RoleCustomer, to: domain.BookingStatusCancelled},
	{from: domain.BookingStatusAccepted, actor: domain.RoleTailor, to: domain.BookingStatusPickupReady, needsPaid: true},
	{from: domain.BookingStatusPickupReady, actor: domain.RoleTailor, to: domain.BookingStatusPickedUp},
	{from: domain.BookingStatusPickedUp, actor: domain.RoleTailor, to: domain.BookingStatusCompleted},
}

// AllowedTransitions lists the statuses role may move b to right now.
// Rules whose precondition is not met are left out.
func AllowedTransitions(b domain.Booking, role domain.Role) []domain.BookingStatus {
	var out []domain.BookingStatus
	for _, r := range transitions {
		if r.actor != role || !b.Status.Is(r.from) {
			continue
		}
		if r.needsPaid && !b.PaymentStatus.Paid() {
			continue
		}
		out = append(out, r.to)
	}
	return out
}

// CheckTransition returns a local *domain.TransitionRejected when role may not
// move b to the target status.
func CheckTransition(b domain.Booking, to domain.BookingStatus, role domain.Role) error {
	reject := func(reason string) error {
		return &domain.TransitionRejected{
			BookingID: b.ID,
			From:      b.Status.Normalize(),
			To:        to.Normalize(),
			Reason:    reason,
			Local:     true,
		}
	}

	if !to.Valid() {
		return reject(fmt.Sprintf("unknown status %q", to))
	}
	if b.Status.Terminal() {
		return reject(fmt.Sprintf("booking is already %s", b.Status.Normalize()))
	}

	for _, r := range transitions {
		if !b.Status.Is(r.from) || !to.Is(r.to) {
			continue
		}
		if r.actor != role {
			return reject(fmt.Sprintf("only the %s can mark a booking %s", r.actor, label(r.to)))
		}
		if r.needsPaid && !b.PaymentStatus.Paid() {
			return reject("the customer has not paid for this booking yet")
		}
		return nil
	}
	return reject(fmt.Sprintf("cannot move a %s booking to %s", label(b.Status), label(to)))
}

func label(s domain.BookingStatus) string {
	switch s.Normalize() {
	case domain.BookingStatusPickupReady:
		return "ready for pickup"
	case domain.BookingStatusPickedUp:
		return "picked up"
	}
	return string(s.Normalize())
}

type ActionKind string

const (
	ActionTransition ActionKind = "transition"
	ActionPay        ActionKind = "pay"
	ActionReview     ActionKind = "review"
	ActionReviewed   ActionKind = "reviewed"
)

// Action is something the UI can offer for a booking. To is set only for
// transitions. Reviewed is an indicator and cannot be invoked.
type Action struct {
	Kind  ActionKind
	To    domain.BookingStatus
	Label string
}

func transitionLabel(to domain.BookingStatus) string {
	switch to {
	case domain.BookingStatusAccepted:
		return "Accept"
	case domain.BookingStatusRejected:
		return "Reject"
	case domain.BookingStatusCancelled:
		return "Cancel booking"
	case domain.BookingStatusPickupReady:
		return "Mark ready for pickup"
	case domain.BookingStatusPickedUp:
		return "Mark picked up"
	case domain.BookingStatusCompleted:
		return "Mark completed"
	}
	return string(to)
}

func canPay(b domain.Booking, role domain.Role) bool {
	return role == domain.RoleCustomer && b.Status.Is(domain.BookingStatusAccepted) && !b.PaymentStatus.Paid()
}

func canReview(b domain.Booking, role domain.Role) bool {
	return role == domain.RoleCustomer && b.Status.Is(domain.BookingStatusCompleted)
}
