package app

import (
	"fmt"
	"strings"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/drift/internal/common"
	"github.com/ternarybob/drift/internal/handlers"
	"github.com/ternarybob/drift/internal/interfaces"
	"github.com/ternarybob/drift/internal/services/cache"
	"github.com/ternarybob/drift/internal/services/drift"
	"github.com/ternarybob/drift/internal/services/events"
	"github.com/ternarybob/drift/internal/services/llm"
	"github.com/ternarybob/drift/internal/services/overpass"
	"github.com/ternarybob/drift/internal/services/places"
	"github.com/ternarybob/drift/internal/services/status"
	"github.com/ternarybob/drift/internal/storage/badger"
)

// App holds all application components and dependencies
type App struct {
	Config *common.Config
	Logger arbor.ILogger

	// Infrastructure
	EventService   interfaces.EventService
	StatusService  *status.Service
	CacheStore     interfaces.CacheStore
	CacheScheduler *cache.Scheduler

	// Gateways
	ProviderFactory *llm.ProviderFactory
	PlaceGateway    interfaces.PlaceSearchGateway
	Classifier      interfaces.ClassifierGateway
	EventGateway    interfaces.EventSearchGateway

	// Pipeline
	Pipeline *drift.Pipeline

	// HTTP handlers
	APIHandler     *handlers.APIHandler
	DriftHandler   *handlers.DriftHandler
	DriftWSHandler *handlers.DriftWebSocketHandler
	PhotoHandler   *handlers.PhotoHandler
	StatusHandler  *handlers.StatusHandler
}

// New initializes the application with all dependencies
func New(cfg *common.Config, logger arbor.ILogger) (*App, error) {
	app := &App{
		Config: cfg,
		Logger: logger,
	}

	if err := app.initServices(); err != nil {
		app.Close()
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	app.initHandlers()

	logger.Info().
		Str("place_provider", string(cfg.Drift.PlaceProvider)).
		Str("llm_provider", string(app.ProviderFactory.DefaultProvider())).
		Bool("cache_enabled", app.CacheStore != nil).
		Bool("photo_proxy", cfg.Drift.PhotoProxy).
		Msg("Application initialization complete")

	return app, nil
}

// NewPipelineOnly builds the gateways and pipeline without HTTP handlers.
// Used by in-process callers such as the MCP server.
func NewPipelineOnly(cfg *common.Config, logger arbor.ILogger) (*App, error) {
	app := &App{
		Config: cfg,
		Logger: logger,
	}
	if err := app.initServices(); err != nil {
		app.Close()
		return nil, err
	}
	return app, nil
}

func (a *App) initServices() error {
	a.EventService = events.NewService(a.Logger)
	if err := events.SubscribeLoggerToAllEvents(a.EventService, a.Logger); err != nil {
		return fmt.Errorf("failed to subscribe event logger: %w", err)
	}

	a.StatusService = status.NewService(a.EventService, a.Logger)
	if err := a.StatusService.SubscribeToDriftEvents(); err != nil {
		return fmt.Errorf("failed to subscribe status service: %w", err)
	}

	a.ProviderFactory = llm.NewProviderFactory(&a.Config.Gemini, &a.Config.Claude, &a.Config.LLM, a.Logger)
	classifier := llm.NewClassifier(a.ProviderFactory, &a.Config.Gemini, a.Logger)
	a.Classifier = classifier
	a.EventGateway = classifier

	placeGateway, err := a.newPlaceGateway()
	if err != nil {
		return err
	}
	a.PlaceGateway = placeGateway

	if a.Config.Cache.Enabled {
		if err := a.initCache(); err != nil {
			return err
		}
	}

	d := &a.Config.Drift
	a.Pipeline = drift.NewPipeline(
		a.Classifier,
		drift.NewAggregator(a.PlaceGateway, d.MaxPlaces, d.PageSize, d.DisplayMaxWidth, a.Logger),
		drift.NewScheduler(a.PlaceGateway, a.Classifier, d.PhotoBatchSize, d.PhotoMaxWidth, a.Logger),
		drift.NewEventFinder(a.EventGateway, d.MaxEvents, d.EventPlaceNames),
		a.EventService,
		drift.SettingsFromConfig(d),
		a.Logger,
	)

	a.Logger.Debug().Msg("Drift pipeline initialized")
	return nil
}

// newPlaceGateway selects the configured geospatial provider
func (a *App) newPlaceGateway() (interfaces.PlaceSearchGateway, error) {
	switch a.Config.Drift.PlaceProvider {
	case common.PlaceProviderOverpass:
		a.Logger.Debug().Str("endpoint", a.Config.Overpass.Endpoint).Msg("Using Overpass place provider")
		return overpass.NewService(&a.Config.Overpass, a.Logger), nil
	default:
		var opts []places.Option
		if a.Config.Drift.PhotoProxy {
			opts = append(opts, places.WithPhotoProxy(a.publicURL()))
		}
		svc, err := places.NewService(&a.Config.PlacesAPI, a.Logger, opts...)
		if err != nil {
			return nil, err
		}
		a.Logger.Debug().Bool("photo_proxy", a.Config.Drift.PhotoProxy).Msg("Using Google Places provider")
		return svc, nil
	}
}

// initCache opens the Badger cache and wraps the photo and scoring gateways
func (a *App) initCache() error {
	db, err := badger.NewBadgerDB(a.Logger, &a.Config.Cache)
	if err != nil {
		return fmt.Errorf("failed to open cache: %w", err)
	}
	a.CacheStore = badger.NewCacheStorage(db, &a.Config.Cache, a.Logger)

	a.PlaceGateway = cache.NewPlaceGateway(a.PlaceGateway, a.CacheStore, a.Logger)
	a.Classifier = cache.NewClassifier(a.Classifier, a.CacheStore, a.Logger)

	a.CacheScheduler = cache.NewScheduler(a.CacheStore, a.Logger)
	if err := a.CacheScheduler.Start(a.Config.Cache.PurgeSchedule); err != nil {
		return fmt.Errorf("failed to start cache purge scheduler: %w", err)
	}
	return nil
}

func (a *App) initHandlers() {
	a.APIHandler = handlers.NewAPIHandler(a.Logger)
	a.DriftHandler = handlers.NewDriftHandler(a.Pipeline, a.Logger)
	a.DriftWSHandler = handlers.NewDriftWebSocketHandler(a.Pipeline, a.Logger)
	a.PhotoHandler = handlers.NewPhotoHandler(a.PlaceGateway, a.Config.Drift.DisplayMaxWidth, a.Logger)
	a.StatusHandler = handlers.NewStatusHandler(a.StatusService, a.Logger)
	a.Logger.Debug().Msg("HTTP handlers initialized")
}

// publicURL is the externally visible base URL used in proxied photo links
func (a *App) publicURL() string {
	if a.Config.Drift.PublicURL != "" {
		return strings.TrimRight(a.Config.Drift.PublicURL, "/")
	}
	return fmt.Sprintf("http://%s:%d", a.Config.Server.Host, a.Config.Server.Port)
}

// Close releases all resources
func (a *App) Close() error {
	if a.CacheScheduler != nil {
		a.CacheScheduler.Stop()
	}

	if a.ProviderFactory != nil {
		if err := a.ProviderFactory.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to close LLM providers")
		}
	}

	if a.EventService != nil {
		if err := a.EventService.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to close event service")
		}
	}

	if a.CacheStore != nil {
		if err := a.CacheStore.Close(); err != nil {
			return fmt.Errorf("failed to close cache: %w", err)
		}
		a.Logger.Info().Msg("Cache closed")
	}

	return nil
}
