// Package daemon wires the relais runtime together: configuration,
// logging, the context store, the completion provider, the transport
// bridge and the admin HTTP server.
package daemon

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/amadou/relais/internal/config"
	"github.com/amadou/relais/internal/httpapi"
	"github.com/amadou/relais/internal/logger"
	"github.com/amadou/relais/pkg/completion"
	"github.com/amadou/relais/pkg/dispatch"
	"github.com/amadou/relais/pkg/session"
	"github.com/amadou/relais/pkg/store"
	"github.com/amadou/relais/pkg/transport"
)

// Daemon represents the relais daemon service
type Daemon struct {
	config *config.Config
	logger *logger.Logger
	zlog   zerolog.Logger

	// Core modules
	store      *store.Store
	provider   completion.Provider
	dispatcher *dispatch.Dispatcher
	registry   *session.Registry
	controller *session.Controller

	// Services
	apiServer *httpapi.Server
	janitor   *Janitor

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	startTime time.Time
	running   bool
	mu        sync.RWMutex
}

// New creates a new daemon instance
func New(cfg *config.Config, log *logger.Logger) (*Daemon, error) {
	ctx, cancel := context.WithCancel(context.Background())

	d := &Daemon{
		config: cfg,
		logger: log,
		zlog:   log.Zerolog(),
		ctx:    ctx,
		cancel: cancel,
	}

	if err := d.initializeCoreModules(); err != nil {
		cancel()
		return nil, fmt.Errorf("failed to initialize core modules: %w", err)
	}

	if err := d.initializeServices(); err != nil {
		cancel()
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	return d, nil
}

// initializeCoreModules initializes all core modules
func (d *Daemon) initializeCoreModules() error {
	st, err := store.Open(d.config.Session.StoreFile, d.zlog)
	if err != nil {
		return fmt.Errorf("failed to open context store: %w", err)
	}
	d.store = st
	d.zlog.Info().Str("path", st.Path()).Int("sessions", st.Len()).Msg("Context store opened")

	provider, err := newProvider(d.config.Completion)
	if err != nil {
		return fmt.Errorf("failed to create completion provider: %w", err)
	}
	d.provider = provider
	d.zlog.Info().Str("provider", provider.Name()).Str("model", d.config.Completion.Model).Msg("Completion provider initialized")

	d.dispatcher = dispatch.New(dispatch.Options{
		Store:      d.store,
		Provider:   d.provider,
		WindowSize: d.config.Session.WindowSize,
		Logger:     d.zlog,
	})

	d.registry = session.NewRegistry()

	factory := transport.NewBridgeFactory(d.config.Bridge.URL, d.zlog)
	controller, err := session.NewController(session.ControllerOptions{
		Registry:    d.registry,
		Store:       d.store,
		Factory:     factory,
		Handler:     d.dispatcher,
		ArtifactDir: d.config.Session.ArtifactDir,
		BaseURL:     d.config.Server.BaseURL,
		Logger:      d.zlog,
	})
	if err != nil {
		return fmt.Errorf("failed to create session controller: %w", err)
	}
	d.controller = controller

	return nil
}

// initializeServices initializes the admin server and background services
func (d *Daemon) initializeServices() error {
	apiServer, err := httpapi.NewServer(httpapi.ServerOptions{
		Host:        d.config.Server.Host,
		Port:        d.config.Server.Port,
		ArtifactDir: d.config.Session.ArtifactDir,
	}, d.controller, d.registry, d.zlog)
	if err != nil {
		return fmt.Errorf("failed to create admin server: %w", err)
	}
	d.apiServer = apiServer

	d.janitor = NewJanitor(JanitorOptions{
		ArtifactDir: d.config.Session.ArtifactDir,
		Registry:    d.registry,
		Logger:      d.zlog,
	})

	return nil
}

// newProvider selects the completion provider from configuration.
func newProvider(cfg config.CompletionConfig) (completion.Provider, error) {
	opts := completion.Options{
		Model:       cfg.Model,
		MaxTokens:   cfg.MaxTokens,
		Temperature: cfg.Temperature,
	}

	switch cfg.Provider {
	case "openai":
		return completion.NewOpenAIProvider(cfg.APIKey, cfg.BaseURL, opts), nil
	case "anthropic":
		return completion.NewAnthropicProvider(cfg.APIKey, opts), nil
	default:
		return nil, fmt.Errorf("unknown completion provider: %s", cfg.Provider)
	}
}

// Start starts the daemon and blocks until shutdown
func (d *Daemon) Start() error {
	d.mu.Lock()
	if d.running {
		d.mu.Unlock()
		return fmt.Errorf("daemon already running")
	}
	d.running = true
	d.startTime = time.Now()
	d.mu.Unlock()

	d.zlog.Info().Msg("Starting relais daemon")

	if d.config.Session.WatchStore {
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			if err := d.store.Watch(d.ctx); err != nil {
				d.zlog.Warn().Err(err).Msg("Store watcher stopped")
			}
		}()
	}

	d.janitor.Start()

	errCh := make(chan error, 1)
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		if err := d.apiServer.Start(); err != nil {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case sig := <-sigCh:
		d.zlog.Info().Str("signal", sig.String()).Msg("Shutdown signal received")
	case err := <-errCh:
		d.zlog.Error().Err(err).Msg("Admin server failed")
		d.shutdown()
		return err
	case <-d.ctx.Done():
	}

	return d.shutdown()
}

// Stop requests a shutdown from outside the signal loop.
func (d *Daemon) Stop() {
	d.cancel()
}

// shutdown tears everything down in reverse dependency order.
func (d *Daemon) shutdown() error {
	d.zlog.Info().Msg("Shutting down relais daemon")

	d.cancel()
	d.janitor.Stop()

	if err := d.apiServer.Stop(); err != nil {
		d.zlog.Error().Err(err).Msg("Failed to stop admin server")
	}

	d.controller.Close()

	// Final flush so nothing accepted before shutdown is lost.
	if err := d.store.Save(); err != nil {
		d.zlog.Error().Err(err).Msg("Failed to persist contexts on shutdown")
	}

	d.wg.Wait()

	d.mu.Lock()
	d.running = false
	d.mu.Unlock()

	d.zlog.Info().
		Dur("uptime", time.Since(d.startTime)).
		Msg("Relais daemon stopped")

	return nil
}
