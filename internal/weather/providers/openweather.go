package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/i474232898/weather-forecast/internal/common"
	"github.com/i474232898/weather-forecast/internal/weather"
)

// DefaultForecastURL is the OpenWeatherMap 5 day / 3 hour forecast endpoint.
const DefaultForecastURL = "https://api.openweathermap.org/data/2.5/forecast"

var validate = validator.New()

// OpenWeatherConfig configures OpenWeatherClient.
type OpenWeatherConfig struct {
	APIKey  string
	BaseURL string // defaults to DefaultForecastURL
	Lang    string // defaults to "ua"

	// Outbound rate limit; RPS <= 0 disables limiting.
	RPS   float64
	Burst int
}

// OpenWeatherClient fetches forecasts from OpenWeatherMap.
type OpenWeatherClient struct {
	apiKey  string
	baseURL string
	lang    string
	client  *http.Client
	limiter *rate.Limiter
	circuit *gobreaker.CircuitBreaker
}

func NewOpenWeatherClient(client *http.Client, cfg OpenWeatherConfig) *OpenWeatherClient {
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "openweather-forecast",
		MaxRequests: 5,
		Interval:    1 * time.Minute,
		Timeout:     2 * time.Minute,
	})

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultForecastURL
	}
	lang := cfg.Lang
	if lang == "" {
		lang = "ua"
	}

	var limiter *rate.Limiter
	if cfg.RPS > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RPS), burst)
	}

	return &OpenWeatherClient{
		apiKey:  cfg.APIKey,
		baseURL: baseURL,
		lang:    lang,
		client:  client,
		limiter: limiter,
		circuit: cb,
	}
}

func (p *OpenWeatherClient) Name() string {
	return "openweathermap"
}

// FetchForecast performs one GET against the forecast endpoint. Every failure
// is returned as a *RequestError.
func (p *OpenWeatherClient) FetchForecast(ctx context.Context, city string) (*weather.ForecastResponse, error) {
	fail := func(status int, err error) (*weather.ForecastResponse, error) {
		return nil, &RequestError{City: city, StatusCode: status, Err: err}
	}

	if p.apiKey == "" {
		return fail(0, fmt.Errorf("openweather api key is not configured"))
	}
	if strings.TrimSpace(city) == "" {
		return fail(0, fmt.Errorf("city is required"))
	}

	values := url.Values{}
	values.Set("q", city)
	values.Set("appid", p.apiKey)
	values.Set("units", "metric")
	values.Set("lang", p.lang)

	req, err := http.NewRequest(http.MethodGet, fmt.Sprintf("%s?%s", p.baseURL, values.Encode()), nil)
	if err != nil {
		return fail(0, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := doRequest(ctx, p.client, p.limiter, p.circuit, req)
	if err != nil {
		return fail(0, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fail(resp.StatusCode, fmt.Errorf("failed to read response body: %w", err))
	}

	if resp.StatusCode != http.StatusOK {
		return fail(resp.StatusCode, statusError(resp.StatusCode, body))
	}

	var payload weather.ForecastResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return fail(resp.StatusCode, fmt.Errorf("%w: %v", errInvalidPayload, err))
	}
	if err := validate.Struct(payload); err != nil {
		return fail(resp.StatusCode, fmt.Errorf("%w: %v", errInvalidPayload, err))
	}

	return &payload, nil
}

// statusError turns a non-200 body ({"cod":"404","message":"city not found"})
// into an error.
func statusError(status int, body []byte) error {
	var apiErr struct {
		Message string `json:"message"`
	}
	_ = json.Unmarshal(body, &apiErr)

	if status == http.StatusNotFound && (apiErr.Message == "" || common.HasAny(apiErr.Message, "city not found", "not found")) {
		return ErrCityNotFound
	}
	if apiErr.Message != "" {
		return fmt.Errorf("%w: %d: %s", errUnexpected, status, apiErr.Message)
	}
	return fmt.Errorf("%w: %d", errUnexpected, status)
}

var _ weather.ForecastClient = (*OpenWeatherClient)(nil)
