package marketplace

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/Domenick1991/tailorbook/internal/domain"
)

const (
	mePath         = "/users/me/"
	tailorsPath    = "/tailors/"
	myProfilePath  = "/marketplace/me/"
	myServicesPath = "/marketplace/me/services/"
	bookingsPath   = "/marketplace/bookings/"
	reviewsPath    = "/marketplace/reviews/"
)

func tailorPath(username string) string {
	return "/marketplace/" + url.PathEscape(username) + "/"
}

func servicePath(id int64) string {
	return fmt.Sprintf("%s%d/", myServicesPath, id)
}

func bookingPath(id int64, action string) string {
	return fmt.Sprintf("%s%d/%s/", bookingsPath, id, action)
}

// Users

func (c *Client) Me(ctx context.Context) (*domain.User, error) {
	var u domain.User
	if err := c.call(ctx, http.MethodGet, mePath, nil, nil, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

type UserUpdate struct {
	Email     *string  `json:"email,omitempty"`
	FirstName *string  `json:"first_name,omitempty"`
	LastName  *string  `json:"last_name,omitempty"`
	Latitude  *float64 `json:"latitude,omitempty" validate:"omitnil,gte=-90,lte=90"`
	Longitude *float64 `json:"longitude,omitempty" validate:"omitnil,gte=-180,lte=180"`
}

func (c *Client) UpdateMe(ctx context.Context, in UserUpdate) (*domain.User, error) {
	var u domain.User
	if err := c.call(ctx, http.MethodPatch, mePath, nil, in, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// Tailors

func TailorQuery(f domain.TailorFilters) url.Values {
	q := url.Values{}
	if f.Location != "" {
		q.Set("location", f.Location)
	}
	if f.Specialization != "" {
		q.Set("specialization", f.Specialization)
	}
	if f.Lat != nil && f.Lng != nil {
		q.Set("lat", strconv.FormatFloat(*f.Lat, 'f', -1, 64))
		q.Set("lng", strconv.FormatFloat(*f.Lng, 'f', -1, 64))
		if f.RadiusKM > 0 {
			q.Set("radius_km", strconv.FormatFloat(f.RadiusKM, 'f', -1, 64))
		}
	}
	return q
}

func (c *Client) SearchTailors(ctx context.Context, f domain.TailorFilters) ([]domain.TailorProfile, error) {
	return list[domain.TailorProfile](ctx, c, tailorsPath, TailorQuery(f))
}

func (c *Client) GetTailor(ctx context.Context, username string) (*domain.TailorProfile, error) {
	var p domain.TailorProfile
	if err := c.call(ctx, http.MethodGet, tailorPath(username), nil, nil, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (c *Client) TailorServices(ctx context.Context, username string) ([]domain.Service, error) {
	return list[domain.Service](ctx, c, tailorPath(username)+"services/", nil)
}

func (c *Client) TailorReviews(ctx context.Context, username string) ([]domain.Review, error) {
	return list[domain.Review](ctx, c, tailorPath(username)+"reviews/", nil)
}

// Tailor profile

func (c *Client) MyProfile(ctx context.Context) (*domain.TailorProfile, error) {
	var p domain.TailorProfile
	if err := c.call(ctx, http.MethodGet, myProfilePath, nil, nil, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (c *Client) UpdateMyProfile(ctx context.Context, in domain.TailorProfileUpdate) (*domain.TailorProfile, error) {
	var p domain.TailorProfile
	if err := c.call(ctx, http.MethodPatch, myProfilePath, nil, in, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// Services

func (c *Client) MyServices(ctx context.Context) ([]domain.Service, error) {
	return list[domain.Service](ctx, c, myServicesPath, nil)
}

func (c *Client) CreateService(ctx context.Context, in domain.ServiceInput) (*domain.Service, error) {
	var s domain.Service
	if err := c.call(ctx, http.MethodPost, myServicesPath, nil, in, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

func (c *Client) UpdateService(ctx context.Context, id int64, in domain.ServiceUpdate) (*domain.Service, error) {
	var s domain.Service
	if err := c.call(ctx, http.MethodPatch, servicePath(id), nil, in, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

func (c *Client) DeleteService(ctx context.Context, id int64) error {
	return c.call(ctx, http.MethodDelete, servicePath(id), nil, nil, nil)
}

func (c *Client) UploadServiceImage(ctx context.Context, serviceID int64, filename string, r io.Reader) (*domain.Image, error) {
	return c.uploadImage(ctx, servicePath(serviceID)+"images/", filename, r)
}

func (c *Client) DeleteServiceImage(ctx context.Context, serviceID, imageID int64) error {
	return c.call(ctx, http.MethodDelete, fmt.Sprintf("%simages/%d/", servicePath(serviceID), imageID), nil, nil, nil)
}

// Bookings

func (c *Client) ListMyBookings(ctx context.Context) ([]domain.Booking, error) {
	return list[domain.Booking](ctx, c, bookingsPath, nil)
}

func (c *Client) CreateBooking(ctx context.Context, in domain.CreateBookingInput) (*domain.Booking, error) {
	pickup := in.PickupDate.UTC().Format(time.RFC3339)
	body := map[string]interface{}{
		"service":        in.ServiceID,
		"scheduled_time": pickup,
		"pickup_date":    pickup,
	}
	if !in.DeliveryDate.IsZero() {
		body["delivery_date"] = in.DeliveryDate.UTC().Format(time.RFC3339)
	}
	var b domain.Booking
	if err := c.call(ctx, http.MethodPost, bookingsPath, nil, body, &b); err != nil {
		return nil, err
	}
	return &b, nil
}

func (c *Client) UpdateBookingStatus(ctx context.Context, id int64, status domain.BookingStatus) (*domain.Booking, error) {
	var b domain.Booking
	body := map[string]string{"status": string(status.Normalize())}
	if err := c.call(ctx, http.MethodPatch, bookingPath(id, "status"), nil, body, &b); err != nil {
		return nil, err
	}
	return &b, nil
}

func (c *Client) StartPayment(ctx context.Context, id int64) (*domain.Checkout, error) {
	var co domain.Checkout
	if err := c.call(ctx, http.MethodPost, bookingPath(id, "payment"), nil, struct{}{}, &co); err != nil {
		return nil, err
	}
	return &co, nil
}

func (c *Client) MarkPaid(ctx context.Context, id int64, checkoutSessionID string) (*domain.Booking, error) {
	var b domain.Booking
	body := map[string]string{"session_id": checkoutSessionID}
	if err := c.call(ctx, http.MethodPost, bookingPath(id, "mark-paid"), nil, body, &b); err != nil {
		return nil, err
	}
	return &b, nil
}

// Reviews

func (c *Client) MyReviews(ctx context.Context) ([]domain.Review, error) {
	return list[domain.Review](ctx, c, reviewsPath, nil)
}

func (c *Client) CreateReview(ctx context.Context, in domain.ReviewInput) (*domain.Review, error) {
	var r domain.Review
	if err := c.call(ctx, http.MethodPost, reviewsPath, nil, in, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

func (c *Client) UploadReviewImage(ctx context.Context, reviewID int64, filename string, r io.Reader) (*domain.Image, error) {
	return c.uploadImage(ctx, fmt.Sprintf("%s%d/images/", reviewsPath, reviewID), filename, r)
}

func (c *Client) DeleteReviewImage(ctx context.Context, reviewID, imageID int64) error {
	return c.call(ctx, http.MethodDelete, fmt.Sprintf("%s%d/images/%d/", reviewsPath, reviewID, imageID), nil, nil, nil)
}
