package internal

import (
	"context"
	"fmt"
	"iotd/internal/compression"
	"iotd/internal/controllers"
	"iotd/internal/gateway"
	"iotd/internal/providers"
	"iotd/internal/scheduler/interfaces"
	"iotd/internal/structures"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type App struct {
	WebServer *http.Server
}

// NewApp starts the bus session, the scheduled jobs and the HTTP server, then
// blocks until a shutdown signal arrives or the server fails.
func NewApp(healthController *controllers.HealthController, bus gateway.GatewayInterface, scheduler interfaces.SchedulerInterface, compressor compression.CompressorInterface, conf *structures.Config, logger providers.Logger, router providers.RouterProviderInterface, metrics providers.MetricsProviderInterface) (*App, error) {
	// Inner mux: API routes
	routes := router.GetRoutes()
	apiMux := http.NewServeMux()
	for _, route := range routes {
		apiMux.Handle(route.Url, route.Handler)
	}

	// Wrap API routes with metrics middleware
	instrumentedAPI := providers.MetricsMiddleware(metrics, routes, apiMux)

	// Outer mux: infrastructure + instrumented API
	mux := http.NewServeMux()
	mux.HandleFunc("/health", healthController.Health)
	if conf.Metrics.Enabled {
		mux.Handle("/metrics", promhttp.Handler())
	}
	mux.Handle("/", instrumentedAPI)

	logger.Infof(providers.TypeApp, "Starting %s", conf.AppName)

	connectCtx, cancelConnect := context.WithTimeout(context.Background(), conf.Mqtt.ConnectTimeout)
	err := bus.Connect(connectCtx)
	cancelConnect()
	if err != nil {
		// The HTTP surface stays up and /health reports degraded.
		logger.Errorf(providers.TypeApp, "Message bus unavailable: %s", err)
	}

	err = scheduler.Restore()
	if err != nil {
		logger.Errorf(providers.TypeApp, "Restore error: %s", err)
	}

	app := &App{
		WebServer: &http.Server{
			Addr:         conf.WebServer.Host + ":" + strconv.Itoa(conf.WebServer.Port),
			Handler:      mux,
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
	}

	if err = scheduler.Init(); err != nil {
		bus.Shutdown()
		return nil, fmt.Errorf("scheduler: %w", err)
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Infof(providers.TypeApp, "Listening HTTP clients on %s:%d", conf.WebServer.Host, conf.WebServer.Port)
		if err := app.WebServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		logger.Infof(providers.TypeApp, "Shutdown signal received")
	case err := <-serverErr:
		scheduler.Stop()
		bus.Shutdown()
		return nil, fmt.Errorf("server error: %w", err)
	}

	scheduler.Stop()
	bus.Shutdown()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err = app.WebServer.Shutdown(ctx); err != nil {
		return nil, err
	}
	compressor.Close()
	logger.Infof(providers.TypeApp, "gracefully stopped")
	return app, nil
}
