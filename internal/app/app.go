package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"time"
	"visionstream/internal/config"
	"visionstream/internal/logger"
	"visionstream/internal/metrics"
	"visionstream/internal/repository/sqlite"
	"visionstream/internal/route"
	"visionstream/internal/service"
	"visionstream/internal/service/ai"
	"visionstream/internal/service/storage"
	"visionstream/internal/service/stream"
	"visionstream/internal/service/websocket"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 5 * time.Second

type App struct {
	config     *config.Config
	logger     *logger.Logger
	registry   *prometheus.Registry
	db         *sqlite.DB
	detector   *ai.DetectorService
	hubService *websocket.HubService
	manager    *service.Manager
	server     *http.Server
}

// New wires the application. A missing model or an unusable database is
// reported as an error; the process is expected to exit on it.
func New(cfg *config.Config) (*App, error) {
	log, err := logger.NewLogger(cfg)
	if err != nil {
		return nil, err
	}

	for _, dir := range []string{cfg.StaticDirectory, cfg.CapturesDirectory, cfg.UploadsDirectory, filepath.Dir(cfg.DatabasePath)} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, multierr.Append(fmt.Errorf("failed to create directory %s: %w", dir, err), log.Close())
		}
	}

	db, err := sqlite.New(cfg.DatabasePath)
	if err != nil {
		return nil, multierr.Append(err, log.Close())
	}

	detector, err := ai.NewDetectorService(cfg, log)
	if err != nil {
		return nil, multierr.Combine(err, db.Close(), log.Close())
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(registry)

	artifactRepo := sqlite.NewArtifactRepository(db)
	detectionRepo := sqlite.NewDetectionRepository(db)

	stabilizer := ai.NewStabilizer(cfg.CellSize, cfg.Attributes)
	annotator := ai.NewAnnotator(ai.NewClassifier(cfg.PositiveMarker, cfg.NegativeMarkers), stabilizer)
	pipeline := ai.NewPipeline(detector, annotator, log, m)
	archiver := storage.NewArchiver(cfg, log, m, artifactRepo, detectionRepo, stabilizer)
	hub := websocket.NewHubService(log)
	manager := service.NewManager(pipeline, archiver, hub, stream.OpenCamera, cfg, log, m)

	router := route.SetupRoutes(manager, cfg, log, registry, artifactRepo, detectionRepo)

	return &App{
		config:     cfg,
		logger:     log,
		registry:   registry,
		db:         db,
		detector:   detector,
		hubService: hub,
		manager:    manager,
		server: &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Port),
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}, nil
}

// Run serves HTTP and the websocket hub until ctx is done or the server fails.
// Request contexts derive from ctx, so open streams end with it.
func (a *App) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	a.server.BaseContext = func(net.Listener) context.Context { return ctx }

	g.Go(func() error {
		return a.hubService.Run(ctx)
	})

	g.Go(func() error {
		a.logger.Info("🚀 Vision stream server on http://localhost:%d", a.config.Port)
		a.logger.Info("🤖 AI Model: %s", a.config.ModelPath)
		a.logger.Info("📁 Captures: %s", a.config.CapturesDirectory)
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		a.logger.Info("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return a.server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// Close waits for open streams and inferences, then releases the model, the
// database and the log files. A model still in use after the shutdown timeout
// is left to the process exit.
func (a *App) Close() error {
	var err error
	if a.manager.Drain(shutdownTimeout) {
		err = a.detector.Close()
	} else {
		a.logger.Warning("Pipeline still busy after %s, detector left open", shutdownTimeout)
	}
	return multierr.Combine(
		err,
		a.db.Close(),
		a.logger.Close(),
	)
}
