package server

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/matthewbaird/assetdesk/internal/access"
	"github.com/matthewbaird/assetdesk/internal/activity"
	"github.com/matthewbaird/assetdesk/internal/config"
	"github.com/matthewbaird/assetdesk/internal/event"
	"github.com/matthewbaird/assetdesk/internal/eventbus"
	"github.com/matthewbaird/assetdesk/internal/form"
	"github.com/matthewbaird/assetdesk/internal/guard"
	"github.com/matthewbaird/assetdesk/internal/inventory"
	"github.com/matthewbaird/assetdesk/internal/lifecycle"
	"github.com/matthewbaird/assetdesk/internal/media"
	"github.com/matthewbaird/assetdesk/internal/rates"
	"github.com/matthewbaird/assetdesk/internal/settings"
	"github.com/matthewbaird/assetdesk/internal/store"
)

// App is the wired service graph.
type App struct {
	Store     store.Store
	Activity  activity.Store
	Bus       *eventbus.Bus
	Feed      *eventbus.FeedHub
	Settings  *settings.Service
	Inventory *inventory.Service
	Lifecycle *lifecycle.Engine
	Forms     *form.Manager
	Media     media.Store
	Access    *access.Authorizer

	cfg     config.Config
	log     *slog.Logger
	closers []io.Closer
	started bool
}

// Build opens the configured backends and wires every service. The bus is
// not started; call Start.
func Build(ctx context.Context, cfg config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	a := &App{cfg: cfg, log: logger}

	switch cfg.Database.Driver {
	case "memory":
		a.Store = store.NewMemoryStore()
		a.Activity = activity.NewMemoryStore()
	default:
		st, err := store.OpenSQLite(ctx, cfg.Database.DSN, logger)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, st)
		act := activity.NewSQLStore(st.DB(), logger)
		if err := act.CreateTable(ctx); err != nil {
			a.Close()
			return nil, err
		}
		a.Store, a.Activity = st, act
	}

	var g guard.Guard = guard.NewMemoryGuard()
	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			client.Close()
			a.Close()
			return nil, errors.Wrap(err, "connecting to redis")
		}
		a.closers = append(a.closers, client)
		g = guard.NewRedisGuard(client, "assetdesk:lock:")
	}

	provider, err := newRates(cfg.Rates)
	if err != nil {
		a.Close()
		return nil, err
	}

	a.Media, err = newMedia(ctx, cfg.Storage)
	if err != nil {
		a.Close()
		return nil, err
	}

	a.Bus = eventbus.New(256, logger)
	a.Feed = eventbus.NewFeedHub(logger)
	rec := event.NewActivityRecorder(a.Activity)
	rec.SetPublisher(a.Bus)

	a.Settings = settings.New(a.Store, logger)
	a.Settings.SetRecorder(rec)

	a.Inventory = inventory.New(a.Store, a.Settings, logger)
	a.Inventory.SetRecorder(rec)
	a.Inventory.SetRates(provider, cfg.Rates.BaseCurrency)

	a.Lifecycle = lifecycle.New(a.Store, g, logger)
	a.Lifecycle.SetRecorder(rec)
	a.Lifecycle.SetIDScheme(a.Settings)

	a.Forms = form.NewManager(a.Settings, a.Inventory, a.Inventory, cfg.Forms.MaxAge, cfg.Forms.IdleTimeout, logger)

	a.Access, err = access.New(a.Inventory, cfg.Server.Policy, logger)
	if err != nil {
		a.Close()
		return nil, err
	}

	a.Bus.Subscribe("log", eventbus.NewLogConsumer(logger))
	a.Bus.Subscribe("metrics", eventbus.NewMetricsConsumer())
	a.Bus.Subscribe("feed", a.Feed)
	a.Bus.Subscribe("access-cache", a.Access)
	return a, nil
}

func newRates(c config.RatesConfig) (rates.Provider, error) {
	if c.Provider != "http" {
		return rates.NewMockProvider(c.BaseCurrency), nil
	}
	cached, err := rates.NewCachedProvider(rates.NewHTTPProvider(c.BaseURL, c.BaseCurrency), c.CacheSize)
	if err != nil {
		return nil, err
	}
	return cached, nil
}

func newMedia(ctx context.Context, c config.StorageConfig) (media.Store, error) {
	if c.Backend == "s3" {
		return media.NewS3Store(ctx, media.S3Config{
			Bucket:    c.Bucket,
			Region:    c.Region,
			Endpoint:  c.Endpoint,
			PublicURL: c.PublicURL,
		})
	}
	return media.NewLocalStore(c.Root, c.BaseURL)
}

// Start runs the event bus and the form session sweeper until ctx is done.
func (a *App) Start(ctx context.Context) {
	a.Bus.Start(ctx)
	a.started = true
	go a.Forms.Run(ctx, max(a.cfg.Forms.IdleTimeout/2, time.Second))
}

// Handler returns the HTTP router for the app.
func (a *App) Handler() http.Handler {
	d := Deps{
		Inventory: a.Inventory,
		Lifecycle: a.Lifecycle,
		Settings:  a.Settings,
		Forms:     a.Forms,
		Media:     a.Media,
		Activity:  a.Activity,
		Feed:      a.Feed,
		Logger:    a.log,
	}
	if local, ok := a.Media.(*media.LocalStore); ok {
		d.MediaDir = local.Root()
	}
	if a.cfg.Server.AuthEnabled {
		d.Auth = a.Access.Middleware
	} else {
		d.Auth = access.ActorOnly
	}
	return NewRouter(d)
}

// Close stops the bus and releases every backend.
func (a *App) Close() error {
	if a.started {
		a.Bus.Stop()
	}
	var first error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
