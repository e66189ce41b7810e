package app

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"huddle/pkg/config"
	"huddle/pkg/contracts"
	"huddle/pkg/middleware"

	"github.com/julienschmidt/httprouter"
)

// Worker is a background loop owned by the application, such as the
// expiration sweeper.
type Worker interface {
	Start(ctx context.Context)
	Stop()
}

type Application struct {
	cfg              *config.Config
	server           *http.Server
	idempotencyStore middleware.IdempotencyStore
	rateLimiter      *middleware.RateLimiter
	healthHandler    http.Handler
	appHttpHandler   http.Handler
	workers          []Worker
	closers          []func() error
	cancelWorkers    context.CancelFunc
}

func NewApplication(cfg *config.Config) *Application {
	return &Application{cfg: cfg}
}

// SetApp mounts health on a bare router and every handler on the API router
// behind the full middleware stack.
func (a *Application) SetApp(health contracts.Handler, handlers ...contracts.Handler) {
	a.setHealthHandler(health)
	a.setAppHandler(handlers...)
	a.setAppServer()
}

func (a *Application) AddWorker(w Worker) {
	a.workers = append(a.workers, w)
}

// OnShutdown registers fn to run after the server and workers have stopped.
func (a *Application) OnShutdown(fn func() error) {
	a.closers = append(a.closers, fn)
}

// Handler is the root handler, exposed for in-process tests.
func (a *Application) Handler() http.Handler {
	return a.server.Handler
}

func (a *Application) setHealthHandler(health contracts.Handler) {
	healthRouter := httprouter.New()
	health.RegisterRoutes(healthRouter)

	var healthHTTPHandler http.Handler = healthRouter
	healthHTTPHandler = middleware.RequestLogging(a.cfg.Log)(healthHTTPHandler)
	healthHTTPHandler = middleware.Recovery(a.cfg.Log)(healthHTTPHandler)
	a.healthHandler = healthHTTPHandler
	a.cfg.Log.Info("Health endpoints configured with minimal middleware (Recovery + Logging only)")
}

func (a *Application) setAppHandler(handlers ...contracts.Handler) {
	appRouter := httprouter.New()
	for _, h := range handlers {
		h.RegisterRoutes(appRouter)
	}

	a.idempotencyStore = a.newIdempotencyStore()
	a.rateLimiter = middleware.NewRateLimiter(
		a.cfg.RateLimitRequests,
		a.cfg.RateLimitWindow,
		middleware.ClientIPExtractor,
		a.cfg.Log,
	)

	var appHttpHandler http.Handler = appRouter
	appHttpHandler = middleware.Idempotency(a.idempotencyStore, middleware.IdempotencyHeader)(appHttpHandler)
	appHttpHandler = middleware.RequestTimeout(a.cfg.RequestTimeout)(appHttpHandler)
	appHttpHandler = middleware.RateLimit(a.rateLimiter)(appHttpHandler)
	appHttpHandler = middleware.ContentTypeValidation(a.cfg.Log)(appHttpHandler)
	appHttpHandler = middleware.MaxRequestSize(int64(a.cfg.MaxRequestSize))(appHttpHandler)
	appHttpHandler = middleware.RequestLogging(a.cfg.Log)(appHttpHandler)
	appHttpHandler = middleware.Recovery(a.cfg.Log)(appHttpHandler)
	a.appHttpHandler = appHttpHandler
	a.cfg.Log.Info("Application endpoints configured with full middleware stack")
}

func (a *Application) newIdempotencyStore() middleware.IdempotencyStore {
	if a.cfg.IdempotencyBackend == config.IdempotencyRedis && a.cfg.Client.Redis != nil {
		a.cfg.Log.Info("Idempotency responses cached in Redis", "ttl", a.cfg.IdempotencyTTL)
		return middleware.NewRedisIdempotencyStore(a.cfg.Client.Redis, a.cfg.IdempotencyTTL, a.cfg.Log)
	}
	return middleware.NewInMemoryIdempotencyStore(a.cfg.IdempotencyTTL)
}

func (a *Application) setAppServer() {
	mux := http.NewServeMux()
	mux.Handle("/health", a.healthHandler)
	mux.Handle("/ready", a.healthHandler)
	mux.Handle("/", a.appHttpHandler)

	a.server = &http.Server{
		Addr:         ":" + a.cfg.Port,
		Handler:      mux,
		ReadTimeout:  a.cfg.ReadTimeout,
		WriteTimeout: a.cfg.WriteTimeout,
		IdleTimeout:  a.cfg.IdleTimeout,
	}

	a.cfg.Log.Info("HTTP server configured", "port", a.cfg.Port)
}

// StartWorkers launches every registered worker. Run calls it; tests that
// serve Handler directly may call it themselves.
func (a *Application) StartWorkers() {
	ctx, cancel := context.WithCancel(context.Background())
	a.cancelWorkers = cancel
	for _, w := range a.workers {
		w.Start(ctx)
	}
}

func (a *Application) Run() {
	a.StartWorkers()

	serverErrors := make(chan error, 1)
	go func() {
		a.cfg.Log.Info("Starting HTTP server", "address", a.server.Addr)
		serverErrors <- a.server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			a.cfg.Log.Fatal("HTTP server failed", "error", err)
		}

	case sig := <-shutdown:
		a.cfg.Log.Info("Shutdown signal received", "signal", sig)
		a.Shutdown()
	}
}

// Shutdown drains in-flight requests, then stops workers, middleware
// janitors, registered closers and finally the store connections.
func (a *Application) Shutdown() {
	a.cfg.Log.Info("Starting graceful shutdown...")

	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()

	if err := a.server.Shutdown(ctx); err != nil {
		a.cfg.Log.Error("Server shutdown failed", "error", err)
		if err := a.server.Close(); err != nil {
			a.cfg.Log.Error("Could not stop server gracefully", "error", err)
		}
	}

	a.cfg.Log.Info("Stopping background workers...")
	if a.cancelWorkers != nil {
		a.cancelWorkers()
	}
	for _, w := range a.workers {
		w.Stop()
	}
	a.idempotencyStore.Stop()
	a.rateLimiter.Stop()
	a.cfg.Log.Info("Background workers stopped")

	for _, closeFn := range a.closers {
		if err := closeFn(); err != nil {
			a.cfg.Log.Error("Shutdown hook failed", "error", err)
		}
	}
	a.cfg.Client.GracefulShutdown(a.cfg.Log)

	a.cfg.Log.Info("Server stopped gracefully")
}
