package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/Domenick1991/tailorbook/internal/domain"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// PaymentConfirmer marks a booking paid once the checkout provider redirects back.
type PaymentConfirmer interface {
	ConfirmPayment(ctx context.Context, bookingID int64, checkoutSessionID string) (*domain.Booking, error)
}

type PaymentHandler struct {
	confirmer PaymentConfirmer
	log       *zap.Logger
}

type paymentResponse struct {
	Status        string `json:"status"`
	Message       string `json:"message"`
	BookingID     int64  `json:"booking_id,omitempty"`
	BookingStatus string `json:"booking_status,omitempty"`
	PaymentStatus string `json:"payment_status,omitempty"`
}

func NewPaymentHandler(confirmer PaymentConfirmer, log *zap.Logger) *PaymentHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &PaymentHandler{confirmer: confirmer, log: log}
}

func (h *PaymentHandler) Register(router *gin.RouterGroup) {
	router.GET("/payment/success", h.success)
	router.GET("/payment/cancel", h.cancel)
	router.GET("/healthz", h.health)
}

func (h *PaymentHandler) success(c *gin.Context) {
	bookingID, err := strconv.ParseInt(c.Query("booking_id"), 10, 64)
	sessionID := c.Query("session_id")
	if err != nil || bookingID <= 0 || sessionID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payment data"})
		return
	}

	booking, err := h.confirmer.ConfirmPayment(c.Request.Context(), bookingID, sessionID)
	if err != nil {
		h.log.Warn("payment confirmation failed", zap.Int64("booking_id", bookingID), zap.Error(err))
		status := http.StatusBadGateway
		var verr *domain.ValidationError
		if errors.As(err, &verr) {
			status = http.StatusBadRequest
		}
		c.JSON(status, gin.H{"error": domain.UserMessage(err)})
		return
	}

	c.JSON(http.StatusOK, paymentResponse{
		Status:        "paid",
		Message:       "payment successful",
		BookingID:     booking.ID,
		BookingStatus: string(booking.Status.Normalize()),
		PaymentStatus: string(booking.PaymentStatus),
	})
}

func (h *PaymentHandler) cancel(c *gin.Context) {
	resp := paymentResponse{Status: "cancelled", Message: "no charges have been made"}
	if id, err := strconv.ParseInt(c.Query("booking_id"), 10, 64); err == nil {
		resp.BookingID = id
	}
	c.JSON(http.StatusOK, resp)
}

func (h *PaymentHandler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
