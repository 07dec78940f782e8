package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/i474232898/weather-forecast/internal/weather/providers"
)

const (
	StoreSQLite = "sqlite"
	StoreMemory = "memory"
)

type AppConfig struct {
	OpenWeatherAPIKey string
	ForecastURL       string
	Lang              string

	// HTTPTimeout bounds a single outbound request.
	HTTPTimeout time.Duration
	// FetchTimeout bounds one shared fetch-and-store run, rate limit wait included.
	FetchTimeout time.Duration

	// Outbound rate limit.
	RequestsPerSecond float64
	Burst             int

	StoreDriver string // sqlite or memory
	StorePath   string

	ProbeAddr     string
	ProbeInterval time.Duration
	ProbeTimeout  time.Duration

	DefaultCity string
	Port        string
}

// Load reads configuration from environment with sensible defaults.
func Load() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil {
		log.Printf("INFO: No .env file found or error loading it: %v", err)
	}
	return fromEnv()
}

func fromEnv() (*AppConfig, error) {
	cfg := &AppConfig{
		OpenWeatherAPIKey: os.Getenv("OPENWEATHER_API_KEY"),
		ForecastURL:       getenvDefault("OPENWEATHER_FORECAST_URL", providers.DefaultForecastURL),
		Lang:              getenvDefault("OPENWEATHER_LANG", "ua"),
		StorePath:         getenvDefault("STORE_PATH", "weather.db"),
		ProbeAddr:         getenvDefault("NETWORK_PROBE_ADDR", "api.openweathermap.org:443"),
		DefaultCity:       getenvDefault("DEFAULT_CITY", "Kyiv"),
		Port:              getenvDefault("PORT", "8080"),
	}

	var err error
	if cfg.HTTPTimeout, err = getenvDuration("HTTP_TIMEOUT", 10*time.Second); err != nil {
		return nil, err
	}
	if cfg.FetchTimeout, err = getenvDuration("FETCH_TIMEOUT", 30*time.Second); err != nil {
		return nil, err
	}
	if cfg.ProbeInterval, err = getenvDuration("NETWORK_PROBE_INTERVAL", 5*time.Second); err != nil {
		return nil, err
	}
	if cfg.ProbeTimeout, err = getenvDuration("NETWORK_PROBE_TIMEOUT", 2*time.Second); err != nil {
		return nil, err
	}

	rps := getenvDefault("OPENWEATHER_RPS", "1")
	cfg.RequestsPerSecond, err = strconv.ParseFloat(rps, 64)
	if err != nil || cfg.RequestsPerSecond <= 0 {
		return nil, fmt.Errorf("invalid OPENWEATHER_RPS %q: must be a positive number", rps)
	}

	burst := getenvDefault("OPENWEATHER_BURST", "5")
	cfg.Burst, err = strconv.Atoi(burst)
	if err != nil || cfg.Burst < 1 {
		return nil, fmt.Errorf("invalid OPENWEATHER_BURST %q: must be a positive integer", burst)
	}

	cfg.StoreDriver = strings.ToLower(getenvDefault("STORE_DRIVER", StoreSQLite))
	switch cfg.StoreDriver {
	case StoreSQLite, StoreMemory:
	default:
		return nil, fmt.Errorf("invalid STORE_DRIVER %q: use %s or %s", cfg.StoreDriver, StoreSQLite, StoreMemory)
	}

	if strings.TrimSpace(cfg.DefaultCity) == "" {
		return nil, fmt.Errorf("DEFAULT_CITY must not be blank")
	}

	return cfg, nil
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvDuration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("invalid %s: must be positive", key)
	}
	return d, nil
}
