package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUserMessage(t *testing.T) {
	testCases := []struct {
		name string
		err  error
		want string
	}{
		{
			name: "network error never blames credentials",
			err:  fmt.Errorf("login: %w", &NetworkError{Op: "POST", URL: "http://x/sessions", Err: errors.New("connection refused")}),
			want: "Cannot reach the marketplace. Check your connection and try again.",
		},
		{
			name: "auth detail",
			err:  &AuthError{Status: 401, Detail: "No active account found with the given credentials"},
			want: "No active account found with the given credentials",
		},
		{
			name: "auth field errors",
			err:  &AuthError{Status: 400, FieldErrors: map[string][]string{"username": {"A user with that username already exists."}}},
			want: "username: A user with that username already exists.",
		},
		{
			name: "transition reason verbatim",
			err:  &TransitionRejected{BookingID: 3, Reason: "Status transition not allowed."},
			want: "Status transition not allowed.",
		},
		{
			name: "session expired",
			err:  fmt.Errorf("list bookings: %w", ErrSessionExpired),
			want: "Your session has expired. Please log in again to continue.",
		},
		{
			name: "unknown falls back",
			err:  errors.New("pq: relation does not exist"),
			want: "Something went wrong. Please try again.",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, UserMessage(tc.err))
		})
	}
}

func TestBookingStatus_CaseInsensitive(t *testing.T) {
	assert.True(t, BookingStatus("PICKUP_READY").Is(BookingStatusPickupReady))
	assert.True(t, BookingStatus("Completed").Terminal())
	assert.False(t, BookingStatus("accepted").Terminal())
	assert.False(t, BookingStatus("archived").Valid())
	assert.True(t, PaymentStatus("PAID").Paid())
}

func TestSpecializationLabel(t *testing.T) {
	assert.Equal(t, "Fall / Pico Work", SpecializationLabel("fall-pico-work"))
	assert.Equal(t, "custom-embroidery", SpecializationLabel("custom-embroidery"))
	assert.True(t, KnownSpecialization("Blouse-Tailoring"))
}
