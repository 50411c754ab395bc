package main

import (
	"context"

	"github.com/sirupsen/logrus"

	"yatube/internal/cache"
	"yatube/internal/config"
	"yatube/internal/events"
	"yatube/internal/feed"
	"yatube/internal/logging"
	"yatube/internal/media"
	"yatube/internal/store"
)

// app is the wiring shared by the subcommands.
type app struct {
	cfg     *config.Config
	log     *logrus.Logger
	store   *store.Store
	closers []func()
}

func setup() (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	log, err := logging.New(cfg.Log)
	if err != nil {
		return nil, err
	}

	db, err := store.Open(cfg.Database, log)
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, log: log, store: store.New(db)}
	a.onClose(func() {
		if err := a.store.Close(); err != nil {
			log.WithError(err).Warn("Failed to close database")
		}
	})
	return a, nil
}

func (a *app) onClose(f func()) {
	a.closers = append(a.closers, f)
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

func (a *app) mediaStore(ctx context.Context) (media.Store, error) {
	if a.cfg.Media.Backend != config.MediaBackendGCS {
		return media.NewLocalStore(a.cfg.Media.Root), nil
	}

	gcs, err := media.NewGCSStore(ctx, a.cfg.Media.GCSBucket, a.cfg.Media.GCSCredentials)
	if err != nil {
		return nil, err
	}
	a.onClose(func() { _ = gcs.Close() })
	return gcs, nil
}

// feedCache returns nil when Redis is not configured or not reachable;
// the feed is then always read from the database.
func (a *app) feedCache(ctx context.Context) feed.Cache {
	if !a.cfg.Redis.Enabled() {
		return nil
	}

	client, err := cache.Connect(ctx, a.cfg.Redis.Addr(), a.cfg.Redis.Password)
	if err != nil {
		a.log.WithError(err).Warn("Feed cache disabled")
		return nil
	}
	a.onClose(func() { _ = client.Close() })
	return cache.NewFeedCache(client, a.cfg.Redis.FeedTTL, a.log)
}

func (a *app) publisher() events.Publisher {
	if a.cfg.NATS.URL == "" {
		return events.Nop{}
	}

	pub, err := events.ConnectNATS(a.cfg.NATS.URL)
	if err != nil {
		a.log.WithError(err).Warn("Event publishing disabled")
		return events.Nop{}
	}
	a.onClose(pub.Close)
	return pub
}
