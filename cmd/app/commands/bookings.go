package commands

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/Domenick1991/tailorbook/internal/bootstrap"
	"github.com/Domenick1991/tailorbook/internal/domain"
	"github.com/Domenick1991/tailorbook/internal/kafka"
	"github.com/Domenick1991/tailorbook/internal/notify"
	"github.com/Domenick1991/tailorbook/internal/repository"
	"github.com/spf13/cobra"
)

func newBookingsCommand(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "bookings",
		Aliases: []string{"b"},
		Short:   "List and act on your bookings",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return e.listBookings(cmd)
		},
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List your bookings",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return e.listBookings(cmd)
			},
		},
		newBookingActionsCommand(e),
		newBookingTransitionCommand(e),
		newBookingPayCommand(e),
		newBookingConfirmCommand(e),
		newBookingReviewCommand(e),
		newBookingCreateCommand(e),
		newBookingHistoryCommand(e),
		newBookingRecentCommand(e),
		newReviewImageCommand(e),
	)
	return cmd
}

func (e *env) listBookings(cmd *cobra.Command) error {
	role, err := e.role(cmd)
	if err != nil {
		return err
	}
	bookings, err := e.app.API.ListMyBookings(cmd.Context())
	if err != nil {
		return err
	}
	return e.print(cmd, bookings, func(w io.Writer) {
		row(w, "ID", "SERVICE", "WITH", "STATUS", "PAYMENT", "PICKUP", "DELIVERY", "CREATED")
		for _, b := range bookings {
			row(w, b.ID, b.ServiceName, b.Counterparty(role), b.Status.Normalize(), payment(b), when(b.PickupDate), when(b.DeliveryDate), ago(b.CreatedAt))
		}
	})
}

func newBookingActionsCommand(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "actions <booking-id>",
		Short: "Show what you can do with a booking",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			b, role, err := e.booking(cmd, args[0])
			if err != nil {
				return err
			}
			if role == domain.RoleCustomer {
				if err := e.app.Bookings.LoadReviewed(cmd.Context()); err != nil {
					return err
				}
			}
			actions := e.app.Bookings.Actions(*b, role)
			return e.print(cmd, actions, func(w io.Writer) {
				if len(actions) == 0 {
					row(w, "No actions available.")
					return
				}
				row(w, "ACTION", "KIND", "STATUS")
				for _, a := range actions {
					to := "-"
					if a.To != "" {
						to = string(a.To)
					}
					row(w, a.Label, a.Kind, to)
				}
			})
		},
	}
}

func newBookingTransitionCommand(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "transition <booking-id> <status>",
		Short: "Move a booking to another status",
		Long:  "Statuses: accepted, rejected, pickup_ready, picked_up, completed, cancelled.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			b, role, err := e.booking(cmd, args[0])
			if err != nil {
				return err
			}
			updated, err := e.app.Bookings.RequestTransition(cmd.Context(), *b, domain.BookingStatus(args[1]), role)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Booking #%d is now %s.\n", updated.ID, updated.Status.Normalize())
			return nil
		},
	}
}

func newBookingPayCommand(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "pay <booking-id>",
		Short: "Start the checkout for an accepted booking",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			b, role, err := e.booking(cmd, args[0])
			if err != nil {
				return err
			}
			checkout, err := e.app.Bookings.StartPayment(cmd.Context(), *b, role)
			if err != nil {
				return err
			}
			if e.asJSON {
				return e.print(cmd, checkout, nil)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Complete the payment at:\n  %s\n", checkout.CheckoutURL)
			return nil
		},
	}
}

func newBookingConfirmCommand(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "confirm <booking-id> <checkout-session-id>",
		Short: "Confirm a finished checkout",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			updated, err := e.app.Bookings.ConfirmPayment(cmd.Context(), id, args[1])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Payment recorded for booking #%d.\n", updated.ID)
			return nil
		},
	}
}

func newBookingReviewCommand(e *env) *cobra.Command {
	var (
		in     domain.ReviewInput
		images []string
	)

	cmd := &cobra.Command{
		Use:   "review <booking-id>",
		Short: "Review a completed booking",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			b, role, err := e.booking(cmd, args[0])
			if err != nil {
				return err
			}
			if err := e.app.Bookings.LoadReviewed(cmd.Context()); err != nil {
				return err
			}
			review, err := e.app.Bookings.SubmitReview(cmd.Context(), *b, role, in)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Thanks! Review #%d saved for %s.\n", review.ID, b.TailorUsername)
			for _, path := range images {
				img, err := e.uploadReviewImage(cmd, review.ID, path)
				if err != nil {
					return fmt.Errorf("review #%d saved, photo %s failed: %w", review.ID, filepath.Base(path), err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Photo #%d attached.\n", img.ID)
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&in.Rating, "rating", "r", 0, "rating from 1 to 5")
	cmd.Flags().StringVarP(&in.Comment, "comment", "m", "", "comment")
	cmd.Flags().StringSliceVar(&images, "image", nil, "photo to attach, repeatable")
	return cmd
}

func (e *env) uploadReviewImage(cmd *cobra.Command, reviewID int64, path string) (*domain.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return e.app.API.UploadReviewImage(cmd.Context(), reviewID, filepath.Base(path), f)
}

func newReviewImageCommand(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "review-image",
		Short: "Add or remove photos on your reviews",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "add <review-id> <file>",
			Short: "Attach a photo to a review",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				id, err := parseID(args[0])
				if err != nil {
					return err
				}
				img, err := e.uploadReviewImage(cmd, id, args[1])
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Photo #%d attached to review #%d.\n", img.ID, id)
				return nil
			},
		},
		&cobra.Command{
			Use:   "remove <review-id> <image-id>",
			Short: "Remove a photo from a review",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				id, err := parseID(args[0])
				if err != nil {
					return err
				}
				imageID, err := parseID(args[1])
				if err != nil {
					return err
				}
				if err := e.app.API.DeleteReviewImage(cmd.Context(), id, imageID); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Photo #%d removed.\n", imageID)
				return nil
			},
		},
	)
	return cmd
}

func newBookingCreateCommand(e *env) *cobra.Command {
	var (
		tailor    string
		serviceID int64
		pickup    string
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Book a tailor's service",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			day, err := time.ParseInLocation("2006-01-02", pickup, time.Local)
			if err != nil {
				return &domain.ValidationError{Fields: map[string]string{"pickup_date": "Pickup date must look like 2026-01-31."}}
			}
			services, err := e.app.API.TailorServices(cmd.Context(), tailor)
			if err != nil {
				return err
			}
			svc, ok := findService(services, serviceID)
			if !ok {
				return &domain.ValidationError{Fields: map[string]string{"service": fmt.Sprintf("%s offers no service #%d.", tailor, serviceID)}}
			}

			created, err := e.app.Bookings.Create(cmd.Context(), svc, day)
			if err != nil {
				return err
			}
			return e.print(cmd, created, func(w io.Writer) {
				row(w, "ID", "SERVICE", "STATUS", "PICKUP", "DELIVERY", "PRICE")
				row(w, created.ID, svc.Name, created.Status.Normalize(), when(created.PickupDate), when(created.DeliveryDate), created.PriceSnapshot)
			})
		},
	}

	cmd.Flags().StringVarP(&tailor, "tailor", "t", "", "tailor username")
	cmd.Flags().Int64VarP(&serviceID, "service", "s", 0, "service id")
	cmd.Flags().StringVar(&pickup, "pickup", time.Now().Format("2006-01-02"), "pickup date, YYYY-MM-DD")
	_ = cmd.MarkFlagRequired("tailor")
	_ = cmd.MarkFlagRequired("service")
	return cmd
}

// openJournal is swapped in tests.
var openJournal = bootstrap.OpenJournal

func newBookingHistoryCommand(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "history <booking-id>",
		Short: "Show changes the watcher recorded for a booking",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			var events []kafka.BookingEvent
			err = e.withJournal(cmd, func(journal repository.BookingEventRepository, recipient string) (err error) {
				events, err = journal.History(cmd.Context(), recipient, id)
				return err
			})
			if err != nil {
				return err
			}
			return e.printEvents(cmd, events)
		},
	}
}

func newBookingRecentCommand(e *env) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "recent",
		Short: "Show the latest booking changes the watcher recorded for you",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var events []kafka.BookingEvent
			err := e.withJournal(cmd, func(journal repository.BookingEventRepository, recipient string) (err error) {
				events, err = journal.Recent(cmd.Context(), recipient, limit)
				return err
			})
			if err != nil {
				return err
			}
			return e.printEvents(cmd, events)
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of changes to show")
	return cmd
}

// withJournal opens the journal for the signed-in user's entries.
func (e *env) withJournal(cmd *cobra.Command, f func(journal repository.BookingEventRepository, recipient string) error) error {
	if !e.app.Config.Worker.Journal {
		return errors.New("the booking journal is disabled; set worker.journal in the config")
	}
	u, err := e.user(cmd, e.app.Session.Session())
	if err != nil {
		return err
	}
	journal, closeJournal, err := openJournal(cmd.Context(), e.app.Config.Database)
	if err != nil {
		return err
	}
	defer closeJournal()
	return f(journal, u.Username)
}

func (e *env) printEvents(cmd *cobra.Command, events []kafka.BookingEvent) error {
	return e.print(cmd, events, func(w io.Writer) {
		if len(events) == 0 {
			row(w, "Nothing recorded yet.")
			return
		}
		row(w, "WHEN", "EVENT")
		for _, ev := range events {
			row(w, ev.At.Local().Format("02 Jan 2006 15:04"), notify.Message(ev))
		}
	})
}

// booking finds one of the caller's bookings by id.
func (e *env) booking(cmd *cobra.Command, arg string) (*domain.Booking, domain.Role, error) {
	id, err := parseID(arg)
	if err != nil {
		return nil, "", err
	}
	role, err := e.role(cmd)
	if err != nil {
		return nil, "", err
	}
	bookings, err := e.app.API.ListMyBookings(cmd.Context())
	if err != nil {
		return nil, "", err
	}
	for i := range bookings {
		if bookings[i].ID == id {
			return &bookings[i], role, nil
		}
	}
	return nil, "", &domain.ValidationError{Fields: map[string]string{"booking": fmt.Sprintf("Booking #%d is not one of yours.", id)}}
}

func findService(services []domain.Service, id int64) (domain.Service, bool) {
	for _, s := range services {
		if s.ID == id {
			return s, true
		}
	}
	return domain.Service{}, false
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, &domain.ValidationError{Fields: map[string]string{"id": fmt.Sprintf("%q is not a valid id.", s)}}
	}
	return id, nil
}
