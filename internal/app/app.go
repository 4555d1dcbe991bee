// Package app wires the store, fetchers, notification transport and alert
// job from configuration. Both binaries build on it.
package app

import (
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/AgileSeagull/DIAS/internal/alerts"
	"github.com/AgileSeagull/DIAS/internal/config"
	"github.com/AgileSeagull/DIAS/internal/geocode"
	"github.com/AgileSeagull/DIAS/internal/ingestion"
	"github.com/AgileSeagull/DIAS/internal/notify"
	"github.com/AgileSeagull/DIAS/internal/observability"
	"github.com/AgileSeagull/DIAS/internal/repository"
	"github.com/AgileSeagull/DIAS/internal/stream"
)

type App struct {
	Config       *config.Config
	Metrics      *observability.Metrics
	Store        *repository.Store
	Resolver     *geocode.Resolver
	Orchestrator *ingestion.Orchestrator
	Transport    notify.Transport
	Topics       *notify.TopicManager
	Broadcaster  *stream.Broadcaster
	Job          *alerts.Job
}

// New opens the store and builds every component. metrics may be nil for
// an unregistered set. Call Close when done.
func New(cfg *config.Config, metrics *observability.Metrics) (*App, error) {
	if metrics == nil {
		metrics = observability.NewMetricsForTesting()
	}

	store, err := repository.Open(cfg.DB)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	resolver, err := NewResolver(cfg.Geocode, metrics)
	if err != nil {
		store.Close()
		return nil, err
	}

	transport, err := NewTransport(cfg.Notify)
	if err != nil {
		store.Close()
		return nil, err
	}

	orchestrator := ingestion.NewOrchestrator(metrics, NewFetchers(cfg.Sources, store, metrics)...)
	orchestrator.SetMaxWorkers(cfg.Worker.Count)

	topics := notify.NewTopicManager(transport, store, cfg.Notify.TopicPrefix, nil, metrics)
	broadcaster := stream.NewBroadcaster()

	processed := alerts.NewProcessedSet()
	job := alerts.NewJob(store, resolver, topics,
		alerts.NewDetector(store, processed),
		alerts.NewDispatcher(topics, processed, broadcaster, nil),
		alerts.JobOptions{CleanupTopics: cfg.Schedule.CleanupTopics, Metrics: metrics})

	return &App{
		Config:       cfg,
		Metrics:      metrics,
		Store:        store,
		Resolver:     resolver,
		Orchestrator: orchestrator,
		Transport:    transport,
		Topics:       topics,
		Broadcaster:  broadcaster,
		Job:          job,
	}, nil
}

// NewFetchers returns the enabled fetchers in the fixed type order.
func NewFetchers(cfg config.SourcesConfig, store ingestion.Store, metrics *observability.Metrics) []ingestion.Fetcher {
	var fetchers []ingestion.Fetcher
	if cfg.USGSEnabled {
		fetchers = append(fetchers, ingestion.NewEarthquakeFetcher(cfg, store, metrics))
	}
	if cfg.FloodEnabled {
		fetchers = append(fetchers, ingestion.NewFloodFetcher(cfg, store, metrics))
	}
	if cfg.FireEnabled {
		fetchers = append(fetchers, ingestion.NewFireFetcher(cfg, store, metrics))
	}
	if cfg.CycloneEnabled {
		fetchers = append(fetchers, ingestion.NewCycloneFetcher(cfg, store, metrics))
	}
	return fetchers
}

// NewResolver builds the country resolver. With geocoding disabled only the
// text strategies run.
func NewResolver(cfg config.GeocodeConfig, metrics *observability.Metrics) (*geocode.Resolver, error) {
	var aliases map[string]string
	if cfg.RegionsFile != "" {
		var err error
		aliases, err = geocode.LoadRegionAliases(cfg.RegionsFile)
		if err != nil {
			return nil, err
		}
		slog.Info("loaded region aliases", "file", cfg.RegionsFile, "count", len(aliases))
	}

	var geocoder geocode.Geocoder
	if cfg.Enabled {
		client := geocode.NewNominatimClient(cfg.URL, cfg.UserAgent, cfg.Timeout, nil)
		geocoder = geocode.NewCachedGeocoder(client, cfg.CacheTTL, cfg.MinInterval, nil, metrics)
	}
	return geocode.NewResolver(geocoder, aliases, nil), nil
}

func NewTransport(cfg config.NotifyConfig) (notify.Transport, error) {
	switch cfg.Transport {
	case "memory", "":
		return notify.NewMemoryTransport(), nil
	case "kafka":
		return notify.NewKafkaTransport(cfg.KafkaBrokers, cfg.TopicPrefix, nil), nil
	case "slack":
		return notify.NewSlackTransport(cfg.SlackToken, nil), nil
	default:
		return nil, fmt.Errorf("unsupported notify transport %q", cfg.Transport)
	}
}

// Close releases the transport and the store.
func (a *App) Close() error {
	a.Broadcaster.Close()

	var errs []error
	if c, ok := a.Transport.(io.Closer); ok {
		if err := c.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close transport: %w", err))
		}
	}
	if err := a.Store.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close store: %w", err))
	}
	return errors.Join(errs...)
}
