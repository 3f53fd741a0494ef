package bootstrap

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/Domenick1991/tailorbook/config"
	"github.com/Domenick1991/tailorbook/internal/cache"
	"github.com/Domenick1991/tailorbook/internal/geocode"
	"github.com/Domenick1991/tailorbook/internal/kafka"
	"github.com/Domenick1991/tailorbook/internal/marketplace"
	"github.com/Domenick1991/tailorbook/internal/repository"
	"github.com/Domenick1991/tailorbook/internal/service/booking"
	"github.com/Domenick1991/tailorbook/internal/service/feed"
	"github.com/Domenick1991/tailorbook/internal/service/tailors"
	"github.com/Domenick1991/tailorbook/internal/session"
	"github.com/Domenick1991/tailorbook/internal/tokenstore"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// App is every client component wired from one Config.
type App struct {
	Config   *config.Config
	Log      *zap.Logger
	Session  *session.Manager
	API      *marketplace.Client
	Bookings *booking.Controller
	Feed     *feed.Feed
	Tailors  *tailors.TailorService
	Geocoder *geocode.Client
	// Producer and Consumer are nil unless kafka brokers are configured.
	Producer *kafka.Producer
	Consumer *kafka.Consumer

	closers []func() error
}

// NewApp builds the components and restores the persisted session.
func NewApp(ctx context.Context, cfg *config.Config, log *zap.Logger) (*App, error) {
	if log == nil {
		log = zap.NewNop()
	}
	app := &App{Config: cfg, Log: log}

	store, closeStore, err := OpenStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	app.addCloser(closeStore)

	app.Session = session.NewManager(session.Config{
		BaseURL:       cfg.API.BaseURL,
		RenewalBuffer: cfg.Session.RenewalBuffer(),
		MinimumDelay:  cfg.Session.MinimumDelay(),
	}, store,
		session.WithHTTPClient(&http.Client{Timeout: cfg.API.Timeout()}),
		session.WithLogger(log.Named("session")),
	)
	app.API = marketplace.NewClient(app.Session, marketplace.WithLogger(log.Named("api")))

	feedOpts := []feed.Option{
		feed.WithInterval(cfg.Bookings.PollInterval()),
		feed.WithFetchTimeout(cfg.API.Timeout()),
		feed.WithLogger(log.Named("feed")),
	}
	controllerOpts := []booking.ControllerOption{booking.WithLogger(log.Named("bookings"))}
	if cfg.Kafka.Enabled() {
		app.Producer = kafka.NewProducer(cfg.Kafka.Brokers, log.Named("kafka"))
		app.addCloser(app.Producer.Close)
		controllerOpts = append(controllerOpts, booking.WithProducer(app.Producer, cfg.Kafka.BookingEventsTopic))

		if cfg.Bookings.PushEnabled {
			app.Consumer = kafka.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.GroupID, cfg.Kafka.BookingEventsTopic, log.Named("kafka"))
			app.addCloser(app.Consumer.Close)
			feedOpts = append(feedOpts, feed.WithPushSource(app.Consumer))
		}
	}
	app.Feed = feed.New(app.API, feedOpts...)
	app.Bookings = booking.NewController(app.API, append(controllerOpts, booking.WithRefresher(app.Feed))...)

	geoOpts := []geocode.Option{geocode.WithLogger(log.Named("geocode"))}
	tailorOpts := []tailors.Option{tailors.WithLogger(log.Named("tailors"))}
	if cfg.Redis.Cache {
		rc := cache.NewRedisCache(cfg.Redis,
			time.Duration(cfg.Geocode.CacheTTLSeconds)*time.Second,
			time.Duration(cfg.Geocode.SearchTTLSeconds)*time.Second)
		app.addCloser(rc.Close)
		geoOpts = append(geoOpts, geocode.WithCache(rc))
		tailorOpts = append(tailorOpts, tailors.WithCache(rc))
	}
	app.Geocoder = geocode.New(cfg.Geocode, geoOpts...)
	app.Tailors = tailors.NewTailorService(app.API, append(tailorOpts, tailors.WithGeocoder(app.Geocoder))...)

	if err := app.Session.Init(ctx); err != nil {
		app.Close()
		return nil, err
	}
	return app, nil
}

// Close stops renewal and releases connections in reverse order of creation.
func (a *App) Close() {
	if a.Session != nil {
		a.Session.Close()
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.Log.Warn("close failed", zap.Error(err))
		}
	}
	a.closers = nil
}

func (a *App) addCloser(f func() error) {
	if f != nil {
		a.closers = append(a.closers, f)
	}
}

// OpenStore returns the token store selected by cfg.TokenStore.Driver and a
// function releasing its connection.
func OpenStore(ctx context.Context, cfg *config.Config) (tokenstore.Store, func() error, error) {
	ts := cfg.TokenStore
	switch ts.Driver {
	case "file":
		return tokenstore.NewFileStore(ts.Path), nil, nil
	case "memory":
		return tokenstore.NewMemoryStore(), nil, nil
	case "redis":
		s := tokenstore.NewRedisStore(cfg.Redis, ts.Prefix, ts.Profile)
		return s, s.Close, nil
	case "postgres":
		db, err := tokenstore.OpenPostgres(cfg.Database.DSN())
		if err != nil {
			return nil, nil, err
		}
		s := tokenstore.NewPostgresStore(db, ts.Profile)
		if err := s.EnsureSchema(ctx); err != nil {
			_ = db.Close()
			return nil, nil, err
		}
		return s, db.Close, nil
	}
	return nil, nil, fmt.Errorf("unknown token store driver %q", ts.Driver)
}

// OpenJournal connects the booking event journal.
func OpenJournal(ctx context.Context, cfg config.DatabaseConfig) (repository.BookingEventRepository, func(), error) {
	pool, err := pgxpool.New(ctx, cfg.DSN())
	if err != nil {
		return nil, nil, fmt.Errorf("connect postgres: %w", err)
	}
	repo := repository.NewBookingEventRepository(pool)
	if err := repo.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, nil, err
	}
	return repo, pool.Close, nil
}
