// Package app wires configured stores, locators and the pipeline together
// for the commands.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"taiwan-calendar/internal/cache"
	"taiwan-calendar/internal/config"
	"taiwan-calendar/internal/fetch"
	"taiwan-calendar/internal/firestore"
	"taiwan-calendar/internal/logger"
	"taiwan-calendar/internal/normalize"
	"taiwan-calendar/internal/pipeline"
	"taiwan-calendar/internal/publish"
	"taiwan-calendar/internal/source"
	"taiwan-calendar/internal/store"
)

// App holds the long-lived dependencies of a command.
type App struct {
	Config *config.Config
	Log    logger.Logger
	Out    store.Store
	Raw    store.Store // nil when raw persistence is disabled
	Cache  *cache.Cache

	mirror  *firestore.Client
	client  *http.Client
	closers []func() error
}

// Open initializes stores, the listing cache and the optional Firestore mirror.
func Open(ctx context.Context, cfg *config.Config, log logger.Logger) (*App, error) {
	a := &App{Config: cfg, Log: log, client: &http.Client{Timeout: cfg.FetchTimeout}}

	out, err := a.openStore(ctx, cfg.OutDir)
	if err != nil {
		return nil, fmt.Errorf("initializing output store: %w", err)
	}
	a.Out = out

	if cfg.RawDir != "" {
		raw, err := a.openStore(ctx, cfg.RawDir)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("initializing raw store: %w", err)
		}
		a.Raw = raw
	}

	if cfg.CacheDir != "" {
		c, err := cache.New(cfg.CacheDir, cfg.CacheTTL)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("initializing cache: %w", err)
		}
		if cfg.RefreshListing {
			if err := c.InvalidateAll(); err != nil {
				a.Close()
				return nil, fmt.Errorf("refreshing listing cache: %w", err)
			}
			log.Info("cached resource listings dropped", "dir", cfg.CacheDir)
		}
		a.Cache = c
	}

	if cfg.FirestoreProject != "" {
		fsClient, err := firestore.New(ctx, cfg.FirestoreProject, cfg.FirestoreCollection)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.mirror = fsClient
		a.closers = append(a.closers, fsClient.Close)
		log.Info("firestore mirror enabled", "project", cfg.FirestoreProject, "collection", cfg.FirestoreCollection)
	}

	return a, nil
}

func (a *App) openStore(ctx context.Context, dir string) (store.Store, error) {
	if a.Config.GCSBucket != "" {
		s, err := store.NewGCS(ctx, a.Config.GCSBucket, dir)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, s.Close)
		a.Log.Info("store ready", "bucket", a.Config.GCSBucket, "prefix", dir)
		return s, nil
	}
	s, err := store.NewLocal(dir)
	if err != nil {
		return nil, err
	}
	a.Log.Debug("store ready", "dir", dir)
	return s, nil
}

// Listers returns the resource listers in fallback order: the dataset index
// API, the dataset page, and the rendered page when a browser is enabled.
func (a *App) Listers() []source.Lister {
	listers := []source.Lister{
		source.NewIndexLister(a.Config.IndexURL, a.client),
		source.NewPortalLister(a.Config.DatasetURL, a.client),
	}
	if a.Config.UseBrowser {
		listers = append(listers, source.NewBrowserLister(a.Config.DatasetURL, a.Config.ChromePath))
	}
	if a.Cache == nil {
		return listers
	}
	for i, l := range listers {
		listers[i] = source.NewCachedLister(l, a.Cache)
	}
	return listers
}

// Locator chains a ListLocator per lister.
func (a *App) Locator() *source.Chain {
	var locators []source.Locator
	for _, l := range a.Listers() {
		locators = append(locators, source.NewListLocator(l))
	}
	return source.NewChain(locators...)
}

// Orchestrator builds the configured pipeline.
func (a *App) Orchestrator() (*pipeline.Orchestrator, error) {
	opts := pipeline.Options{
		Locator: a.Locator(),
		Fetcher: fetch.New(fetch.Config{
			Attempts: a.Config.FetchAttempts,
			Timeout:  a.Config.FetchTimeout,
		}),
		Normalizer:  normalize.New(nil),
		Writer:      publish.NewWriter(a.Out),
		Raw:         a.Raw,
		Concurrency: a.Config.Concurrency,
		Timeout:     a.Config.RunTimeout,
	}
	if a.mirror != nil {
		opts.Mirror = a.mirror
	}
	return pipeline.New(opts)
}

// Close releases every client opened by Open.
func (a *App) Close() error {
	var errs []error
	for _, c := range a.closers {
		errs = append(errs, c())
	}
	a.closers = nil
	return errors.Join(errs...)
}
