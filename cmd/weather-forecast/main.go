package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	httpapi "github.com/i474232898/weather-forecast/internal/api/http"
	"github.com/i474232898/weather-forecast/internal/config"
	"github.com/i474232898/weather-forecast/internal/network"
	"github.com/i474232898/weather-forecast/internal/store"
	"github.com/i474232898/weather-forecast/internal/weather"
	"github.com/i474232898/weather-forecast/internal/weather/providers"
)

func main() {
	// Load configuration.
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if cfg.OpenWeatherAPIKey == "" {
		log.Printf("INFO: OPENWEATHER_API_KEY is empty; only cached forecasts can be served")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Local forecast store.
	var forecastStore weather.Store
	switch cfg.StoreDriver {
	case config.StoreMemory:
		forecastStore = store.NewMemoryStore()
	default:
		db, err := store.OpenSQLite(cfg.StorePath)
		if err != nil {
			log.Fatalf("failed to open store: %v", err)
		}
		defer db.Close()
		forecastStore = db
	}
	log.Printf("INFO: using %s store", cfg.StoreDriver)

	// Shared HTTP client for outbound API calls.
	httpClient := &http.Client{
		Timeout: cfg.HTTPTimeout,
	}

	// Remote client with rate limiting and a circuit breaker.
	client := providers.NewOpenWeatherClient(httpClient, providers.OpenWeatherConfig{
		APIKey:  cfg.OpenWeatherAPIKey,
		BaseURL: cfg.ForecastURL,
		Lang:    cfg.Lang,
		RPS:     cfg.RequestsPerSecond,
		Burst:   cfg.Burst,
	})
	log.Printf("INFO: forecasts from %s", client.Name())

	// Connectivity is observed for the lifetime of the process so requests
	// read the last probe instead of dialing.
	monitor := network.NewMonitor(network.DialProber{
		Addr:    cfg.ProbeAddr,
		Timeout: cfg.ProbeTimeout,
	}, cfg.ProbeInterval)
	sub, err := monitor.Observe(ctx)
	if err != nil {
		log.Fatalf("failed to observe network: %v", err)
	}
	defer sub.Close()
	go func() {
		for available := range sub.Updates() {
			log.Printf("INFO: network available: %v", available)
		}
	}()

	coordinator := weather.NewCoordinator(forecastStore, client, monitor,
		weather.WithFetchTimeout(cfg.FetchTimeout),
		weather.WithRefreshFailureHook(func(city string, err error) {
			log.Printf("INFO: serving stale forecast for %s: %v", city, err)
		}),
	)

	app := httpapi.NewApp(httpapi.Dependencies{
		Forecasts:   coordinator,
		Store:       forecastStore,
		Network:     monitor,
		DefaultCity: cfg.DefaultCity,
	})

	// Start server with graceful shutdown
	go func() {
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.Printf("fiber server stopped: %v", err)
		}
	}()
	log.Printf("INFO: listening on :%s", cfg.Port)

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Printf("error during shutdown: %v", err)
	}
}
