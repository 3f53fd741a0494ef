package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Domenick1991/tailorbook/internal/domain"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockPaymentConfirmer is a mock implementation of PaymentConfirmer
type MockPaymentConfirmer struct {
	mock.Mock
}

func (m *MockPaymentConfirmer) ConfirmPayment(ctx context.Context, bookingID int64, checkoutSessionID string) (*domain.Booking, error) {
	args := m.Called(ctx, bookingID, checkoutSessionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Booking), args.Error(1)
}

func TestPaymentHandler_success(t *testing.T) {
	confirmer := &MockPaymentConfirmer{}
	handler := NewPaymentHandler(confirmer, nil)

	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest("GET", "/payment/success?booking_id=42&session_id=cs_test_1", nil)

	booking := &domain.Booking{ID: 42, Status: "ACCEPTED", PaymentStatus: domain.PaymentStatusPaid}
	confirmer.On("ConfirmPayment", c.Request.Context(), int64(42), "cs_test_1").Return(booking, nil)

	handler.success(c)

	assert.Equal(t, http.StatusOK, w.Code)

	var response paymentResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, "paid", response.Status)
	assert.Equal(t, int64(42), response.BookingID)
	assert.Equal(t, "accepted", response.BookingStatus)
	assert.Equal(t, "paid", response.PaymentStatus)

	confirmer.AssertExpectations(t)
}

func TestPaymentHandler_successMissingParams(t *testing.T) {
	confirmer := &MockPaymentConfirmer{}
	handler := NewPaymentHandler(confirmer, nil)
	gin.SetMode(gin.TestMode)

	for _, target := range []string{
		"/payment/success",
		"/payment/success?booking_id=42",
		"/payment/success?session_id=cs_test_1",
		"/payment/success?booking_id=abc&session_id=cs_test_1",
	} {
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		c.Request = httptest.NewRequest("GET", target, nil)

		handler.success(c)

		assert.Equal(t, http.StatusBadRequest, w.Code, target)
		assert.JSONEq(t, `{"error":"invalid payment data"}`, w.Body.String(), target)
	}
	confirmer.AssertNotCalled(t, "ConfirmPayment", mock.Anything, mock.Anything, mock.Anything)
}

func TestPaymentHandler_successBackendFailure(t *testing.T) {
	confirmer := &MockPaymentConfirmer{}
	handler := NewPaymentHandler(confirmer, nil)

	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest("GET", "/payment/success?booking_id=42&session_id=cs_test_1", nil)

	netErr := &domain.NetworkError{Op: "POST", URL: "/marketplace/bookings/42/mark-paid/", Err: errors.New("connection refused")}
	confirmer.On("ConfirmPayment", mock.Anything, int64(42), "cs_test_1").Return(nil, netErr)

	handler.success(c)

	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Contains(t, w.Body.String(), "Cannot reach the marketplace")
}

func TestPaymentHandler_cancel(t *testing.T) {
	handler := NewPaymentHandler(&MockPaymentConfirmer{}, nil)

	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest("GET", "/payment/cancel?booking_id=7", nil)

	handler.cancel(c)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"cancelled","message":"no charges have been made","booking_id":7}`, w.Body.String())
}

func TestPaymentHandler_Register(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	NewPaymentHandler(&MockPaymentConfirmer{}, nil).Register(router.Group("/"))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/healthz", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}
