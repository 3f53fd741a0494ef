package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Domenick1991/tailorbook/config"
	"github.com/Domenick1991/tailorbook/internal/bootstrap"
	"github.com/Domenick1991/tailorbook/internal/domain"
	"github.com/Domenick1991/tailorbook/internal/kafka"
	"github.com/Domenick1991/tailorbook/internal/logger"
	"github.com/Domenick1991/tailorbook/internal/notify"
	"github.com/Domenick1991/tailorbook/internal/service/feed"
	"github.com/Domenick1991/tailorbook/internal/session"
	"go.uber.org/zap"
)

func main() {
	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "config.yaml"
	}

	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	zl, err := logger.New(cfg.Log)
	if err != nil {
		log.Fatalf("build logger: %v", err)
	}
	defer zl.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, zl); err != nil {
		zl.Error("worker stopped", zap.String("reason", domain.UserMessage(err)), zap.Error(err))
		os.Exit(1)
	}
	zl.Info("worker stopped")
}

func run(ctx context.Context, cfg *config.Config, log *zap.Logger) error {
	app, err := bootstrap.NewApp(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer app.Close()

	if !app.Session.Authenticated() {
		return domain.ErrNotAuthenticated
	}
	u := app.Session.CurrentUser()
	if u == nil {
		if u, err = app.API.Me(ctx); err != nil {
			return err
		}
	}

	rec := &recorder{recipient: u.Username, log: log, now: time.Now}

	var notifyOpts []notify.Option
	if app.Producer != nil {
		notifyOpts = append(notifyOpts, notify.WithPublisher(app.Producer, cfg.Kafka.NotificationsTopic))
	}
	rec.notifier = notify.NewNotifier(log.Named("notify"), notifyOpts...)

	if cfg.Worker.Journal {
		journal, closeJournal, err := bootstrap.OpenJournal(ctx, cfg.Database)
		if err != nil {
			return err
		}
		defer closeJournal()
		rec.journal = journal
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	unsubscribe := app.Session.OnSessionExpired(func(ev session.ExpiredEvent) {
		log.Warn("session expired, log in again with the CLI", zap.String("last_path", ev.LastPath), zap.Error(ev.Cause))
		cancel()
	})
	defer unsubscribe()

	app.Feed.OnChange(rec.handle(ctx))
	log.Info("watching bookings",
		zap.String("user", u.Username),
		zap.Duration("interval", cfg.Bookings.PollInterval()),
		zap.Bool("push", app.Consumer != nil),
		zap.Bool("journal", rec.journal != nil),
	)

	err = app.Feed.Run(ctx)
	if err == nil && !app.Session.Authenticated() {
		return domain.ErrSessionExpired
	}
	return err
}

type sender interface {
	Send(ctx context.Context, recipient string, event kafka.BookingEvent) error
}

type appender interface {
	Append(ctx context.Context, recipient string, event kafka.BookingEvent) error
}

// recorder turns feed changes into notifications and journal rows.
type recorder struct {
	recipient string
	notifier  sender
	journal   appender
	log       *zap.Logger
	now       func() time.Time
}

func (r *recorder) handle(ctx context.Context) func(feed.Change) {
	return func(c feed.Change) {
		event := c.Event(r.now())
		if err := r.notifier.Send(ctx, r.recipient, event); err != nil && !errors.Is(err, context.Canceled) {
			r.log.Warn("send notification failed", zap.Int64("booking_id", event.BookingID), zap.Error(err))
		}
		if r.journal == nil {
			return
		}
		if err := r.journal.Append(ctx, r.recipient, event); err != nil {
			r.log.Warn("journal append failed", zap.Int64("booking_id", event.BookingID), zap.Error(err))
		}
	}
}
