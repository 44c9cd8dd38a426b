package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/jonwraymond/querycache/booking"
	"github.com/jonwraymond/querycache/cache"
	"github.com/jonwraymond/querycache/config"
	"github.com/jonwraymond/querycache/health"
	"github.com/jonwraymond/querycache/mutation"
	"github.com/jonwraymond/querycache/observe"
	"github.com/jonwraymond/querycache/query"
	"github.com/jonwraymond/querycache/session"
)

// App is a fully wired booking client.
type App struct {
	Observer  observe.Observer
	Store     *cache.Store
	Client    *query.Client
	Mutations *mutation.Coordinator
	Session   *session.Session
	Booking   *booking.Service
	Health    *health.Aggregator
}

// Option configures New.
type Option func(*options)

type options struct {
	notifier    mutation.Notifier
	api         booking.API
	credentials session.Store
}

// WithNotifier sets the sink for user-facing notifications. The default
// writes them to the log.
func WithNotifier(n mutation.Notifier) Option {
	return func(o *options) { o.notifier = n }
}

// WithAPI replaces the HTTP booking client.
func WithAPI(api booking.API) Option {
	return func(o *options) { o.api = api }
}

// WithCredentialStore replaces the credential store chosen from the
// configuration.
func WithCredentialStore(s session.Store) Option {
	return func(o *options) { o.credentials = s }
}

// New builds an App from cfg.
func New(ctx context.Context, cfg config.Config, opts ...Option) (*App, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	obs, err := observe.NewObserver(ctx, cfg.Observe())
	if err != nil {
		return nil, err
	}
	mw, err := observe.MiddlewareFromObserver(obs)
	if err != nil {
		_ = obs.Shutdown(ctx)
		return nil, err
	}
	logger := obs.Logger()

	if o.notifier == nil {
		o.notifier = mutation.NewLogNotifier(logger)
	}
	if o.credentials == nil {
		if cfg.CredentialPath != "" {
			o.credentials = session.NewFileStore(cfg.CredentialPath)
		} else {
			o.credentials = session.NewMemoryStore()
		}
	}

	sess, err := session.New(ctx, o.credentials)
	if err != nil {
		_ = obs.Shutdown(ctx)
		return nil, fmt.Errorf("load session: %w", err)
	}

	if o.api == nil {
		httpCfg, err := cfg.HTTP(sess)
		if err != nil {
			_ = obs.Shutdown(ctx)
			return nil, err
		}
		if o.api, err = booking.NewHTTPAPI(httpCfg); err != nil {
			_ = obs.Shutdown(ctx)
			return nil, err
		}
	}

	store := cache.NewStore(cfg.Policy(), cache.WithLogger(logger))
	qopts := append(cfg.QueryOptions(),
		query.WithMiddleware(mw),
		query.WithErrorNotifier(mutation.FetchErrorNotifier(o.notifier)),
	)
	client := query.NewClient(store, qopts...)
	coord := mutation.NewCoordinator(client,
		mutation.WithNotifier(o.notifier),
		mutation.WithMiddleware(mw),
		mutation.WithExecutor(cfg.MutationExecutor()),
	)

	agg := health.NewAggregator()
	agg.Register("cache", health.NewStoreChecker(store, health.StoreCheckerConfig{
		MaxInFlight: cfg.MaxConcurrentFetches,
	}))

	return &App{
		Observer:  obs,
		Store:     store,
		Client:    client,
		Mutations: coord,
		Session:   sess,
		Booking:   booking.NewService(o.api, client, coord, sess, booking.WithLogger(logger)),
		Health:    agg,
	}, nil
}

// Close stops the client and flushes telemetry.
func (a *App) Close(ctx context.Context) error {
	return errors.Join(a.Client.Close(), a.Observer.Shutdown(ctx))
}
