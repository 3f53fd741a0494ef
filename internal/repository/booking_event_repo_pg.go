package repository

import (
	"context"
	"fmt"

	"github.com/Domenick1991/tailorbook/internal/domain"
	"github.com/Domenick1991/tailorbook/internal/kafka"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const bookingEventsSchema = `CREATE TABLE IF NOT EXISTS booking_events (
	id BIGSERIAL PRIMARY KEY,
	recipient TEXT NOT NULL,
	booking_id BIGINT NOT NULL,
	type TEXT NOT NULL,
	status TEXT NOT NULL,
	previous_status TEXT NOT NULL DEFAULT '',
	payment_status TEXT NOT NULL DEFAULT '',
	customer_username TEXT NOT NULL DEFAULT '',
	tailor_username TEXT NOT NULL DEFAULT '',
	service_name TEXT NOT NULL DEFAULT '',
	occurred_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS booking_events_booking_idx ON booking_events (booking_id, occurred_at);
CREATE INDEX IF NOT EXISTS booking_events_recipient_idx ON booking_events (recipient, occurred_at)`

const selectEvents = `SELECT booking_id, type, status, previous_status, payment_status, customer_username, tailor_username, service_name, occurred_at
		FROM booking_events`

// BookingEventRepository is the worker's journal of observed booking changes.
// Each watcher records under its own recipient, so reads are scoped to one.
type BookingEventRepository interface {
	EnsureSchema(ctx context.Context) error
	Append(ctx context.Context, recipient string, event kafka.BookingEvent) error
	History(ctx context.Context, recipient string, bookingID int64) ([]kafka.BookingEvent, error)
	Recent(ctx context.Context, recipient string, limit int) ([]kafka.BookingEvent, error)
}

// querier is the part of *pgxpool.Pool the journal uses.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

type PGBookingEventRepository struct {
	db querier
}

func NewBookingEventRepository(db *pgxpool.Pool) BookingEventRepository {
	return &PGBookingEventRepository{db: db}
}

func (r *PGBookingEventRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.Exec(ctx, bookingEventsSchema); err != nil {
		return fmt.Errorf("create booking_events: %w", err)
	}
	return nil
}

func (r *PGBookingEventRepository) Append(ctx context.Context, recipient string, e kafka.BookingEvent) error {
	_, err := r.db.Exec(ctx, `INSERT INTO booking_events (recipient, booking_id, type, status, previous_status, payment_status, customer_username, tailor_username, service_name, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		recipient, e.BookingID, e.Type, string(e.Status), string(e.PreviousStatus), string(e.PaymentStatus),
		e.CustomerUsername, e.TailorUsername, e.ServiceName, e.At)
	if err != nil {
		return fmt.Errorf("append event for booking %d: %w", e.BookingID, err)
	}
	return nil
}

func (r *PGBookingEventRepository) History(ctx context.Context, recipient string, bookingID int64) ([]kafka.BookingEvent, error) {
	rows, err := r.db.Query(ctx, selectEvents+` WHERE recipient=$1 AND booking_id=$2 ORDER BY occurred_at, id`, recipient, bookingID)
	if err != nil {
		return nil, fmt.Errorf("history of booking %d: %w", bookingID, err)
	}
	return scanEvents(rows)
}

func (r *PGBookingEventRepository) Recent(ctx context.Context, recipient string, limit int) ([]kafka.BookingEvent, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := r.db.Query(ctx, selectEvents+` WHERE recipient=$1 ORDER BY occurred_at DESC, id DESC LIMIT $2`, recipient, limit)
	if err != nil {
		return nil, fmt.Errorf("recent events of %s: %w", recipient, err)
	}
	return scanEvents(rows)
}

func scanEvents(rows pgx.Rows) ([]kafka.BookingEvent, error) {
	defer rows.Close()

	events := make([]kafka.BookingEvent, 0)
	for rows.Next() {
		var (
			e                       kafka.BookingEvent
			status, prev, payStatus string
		)
		if err := rows.Scan(&e.BookingID, &e.Type, &status, &prev, &payStatus, &e.CustomerUsername, &e.TailorUsername, &e.ServiceName, &e.At); err != nil {
			return nil, err
		}
		e.Status = domain.BookingStatus(status)
		e.PreviousStatus = domain.BookingStatus(prev)
		e.PaymentStatus = domain.PaymentStatus(payStatus)
		events = append(events, e)
	}
	return events, rows.Err()
}

var _ BookingEventRepository = (*PGBookingEventRepository)(nil)
