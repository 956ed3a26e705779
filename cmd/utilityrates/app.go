package main

import (
	"context"
	"fmt"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/bher20/utilityrates/internal/alerting"
	"github.com/bher20/utilityrates/internal/auth"
	"github.com/bher20/utilityrates/internal/config"
	"github.com/bher20/utilityrates/internal/cron"
	"github.com/bher20/utilityrates/internal/httpcache"
	"github.com/bher20/utilityrates/internal/migrate"
	"github.com/bher20/utilityrates/internal/openei"
	"github.com/bher20/utilityrates/internal/rates"
	"github.com/bher20/utilityrates/internal/storage"
)

// app holds the long-lived collaborators shared by the commands.
type app struct {
	cfg   *config.Config
	log   *logrus.Logger
	store storage.Storage
	rates *rates.Service
	auth  *auth.Service
}

func newApp(ctx context.Context, cfg *config.Config, log *logrus.Logger) (*app, error) {
	if cfg.Database.AutoMigrate && cfg.Database.Driver != "memory" {
		if err := migrate.Up(ctx, cfg.Database.Driver, cfg.Database.DSN, log); err != nil {
			return nil, fmt.Errorf("auto-migration: %w", err)
		}
	}

	st, err := storage.Open(ctx, storage.Config{Driver: cfg.Database.Driver, DSN: cfg.Database.DSN}, log)
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}

	client, err := newHTTPClient(cfg, log)
	if err != nil {
		storage.CloseLogged(st, log)
		return nil, err
	}

	factory := rates.NewFactory(rates.Config{
		Settings:   cfg.OpenEISettings(),
		Fake:       cfg.OpenEI.Fake,
		HTTPClient: client,
	}, log)

	authSvc, err := auth.NewService(st, log)
	if err != nil {
		storage.CloseLogged(st, log)
		return nil, fmt.Errorf("auth: %w", err)
	}

	if cfg.OpenEI.APIKey == "" && !cfg.OpenEI.Fake {
		log.Warn("openei.api_key is empty; live lookups will be rejected")
	}

	return &app{
		cfg:   cfg,
		log:   log,
		store: st,
		rates: rates.NewService(factory, st, log),
		auth:  authSvc,
	}, nil
}

// newWorker builds the refresh worker, alerting on failures when a webhook
// is configured.
func (a *app) newWorker() *cron.Worker {
	w := cron.NewWorker(a.store, a.rates, a.cfg.Worker.Interval, a.log)
	if alerter := alerting.New(a.cfg.Alert, a.log); alerter.Enabled() {
		w.WithNotifier(alerter)
	}
	return w
}

func (a *app) Close() error {
	return a.store.Close()
}

// newHTTPClient builds the OpenEI client, wrapped in the configured response
// cache.
func newHTTPClient(cfg *config.Config, log logrus.FieldLogger) (*http.Client, error) {
	client := openei.NewHTTPClient(cfg.OpenEI.Timeout, cfg.OpenEI.InsecureSkipVerify)

	var store httpcache.Store
	switch cfg.Cache.Backend {
	case "file":
		fs, err := httpcache.NewFileStore(cfg.Cache.Dir, cfg.Cache.TTL)
		if err != nil {
			return nil, err
		}
		store = fs
	case "redis":
		rc := httpcache.NewRedisClient(cfg.Cache.Redis.Addr, cfg.Cache.Redis.Password, cfg.Cache.Redis.DB)
		store = httpcache.NewRedisStore(rc, cfg.Cache.TTL)
	default:
		return client, nil
	}

	log.WithField("backend", store.Name()).Info("openei response cache enabled")
	return httpcache.Client(client, store, log), nil
}
