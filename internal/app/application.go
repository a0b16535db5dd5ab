package app

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"courier/internal/api"
	"courier/internal/auth"
	"courier/internal/config"
	"courier/internal/database"
	"courier/internal/dispatch"
	"courier/internal/websocket"
)

// Application wires all components together and owns their lifecycles.
// Initialization order follows the dependency chain:
// store → registry → dispatcher → verifier → API/WebSocket → HTTP.
type Application struct {
	config     *config.Config
	store      *database.Manager
	registry   *websocket.Registry
	dispatcher *dispatch.Dispatcher
	httpServer *http.Server
}

// NewApplication creates an application with all components initialized.
func NewApplication(cfg *config.Config) (*Application, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	store, err := database.NewManager(cfg.Database.Path, cfg.Database.Timeout)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize store: %w", err)
	}

	registry := websocket.NewRegistry()
	dispatcher := dispatch.NewDispatcher(registry, store)
	verifier := auth.NewVerifier(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)

	apiServer := api.NewServer(store, dispatcher, registry, verifier)
	wsHandler := websocket.NewHandler(registry, verifier, cfg.WebSocket)

	mux := http.NewServeMux()
	mux.Handle("/", apiServer)
	mux.HandleFunc("/ws", wsHandler.HandleWebSocket)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port),
		Handler:      mux,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}

	return &Application{
		config:     cfg,
		store:      store,
		registry:   registry,
		dispatcher: dispatcher,
		httpServer: httpServer,
	}, nil
}

// Start begins serving. It returns once the listener is up or startup
// failed.
func (app *Application) Start(ctx context.Context) error {
	log.Printf("starting courier on %s", app.httpServer.Addr)

	serverErrCh := make(chan error, 1)
	go func() {
		if err := app.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrCh <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	select {
	case err := <-serverErrCh:
		return err
	case <-time.After(100 * time.Millisecond):
		log.Printf("courier started")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stop shuts down in reverse dependency order: HTTP listener first, then
// the store. Registered connections die with the listener; their teardown
// callbacks drain the registry.
func (app *Application) Stop(ctx context.Context) error {
	log.Printf("shutting down courier")

	if err := app.httpServer.Shutdown(ctx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
	}
	if err := app.store.Close(); err != nil {
		log.Printf("store shutdown error: %v", err)
	}

	log.Printf("courier shutdown complete")
	return nil
}

// Addr returns the address the HTTP server listens on.
func (app *Application) Addr() string {
	return app.httpServer.Addr
}
