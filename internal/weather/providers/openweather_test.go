package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

const forecastFixture = `{
  "cod": "200",
  "message": 0,
  "cnt": 2,
  "list": [
    {
      "dt": 1747677600,
      "main": {"temp": 14.2, "feels_like": 13.1, "temp_min": 13.9, "temp_max": 14.2,
               "pressure": 1014, "sea_level": 1014, "grnd_level": 995, "humidity": 71, "temp_kf": 0.3},
      "weather": [{"id": 500, "main": "Rain", "description": "легкий дощ", "icon": "10d"}],
      "clouds": {"all": 90},
      "wind": {"speed": 4.1, "deg": 250, "gust": 7.9},
      "visibility": 10000,
      "pop": 0.6,
      "rain": {"3h": 0.87},
      "sys": {"pod": "d"},
      "dt_txt": "2025-05-19 18:00:00",
      "some_new_field": {"nested": true}
    },
    {
      "dt": 1747688400,
      "main": {"temp": 11.0, "feels_like": 10.2, "temp_min": 11.0, "temp_max": 11.0,
               "pressure": 1015, "sea_level": 1015, "grnd_level": 996, "humidity": 80, "temp_kf": 0},
      "weather": [{"id": 803, "main": "Clouds", "description": "хмарно", "icon": "04n"}],
      "clouds": {"all": 75},
      "wind": {"speed": 2.3, "deg": 240},
      "visibility": 10000,
      "pop": 0.1,
      "sys": {"pod": "n"},
      "dt_txt": "2025-05-19 21:00:00"
    }
  ],
  "city": {
    "id": 703448, "name": "Kyiv", "coord": {"lat": 50.4333, "lon": 30.5167},
    "country": "UA", "population": 2797553, "timezone": 10800,
    "sunrise": 1747620000, "sunset": 1747676000
  }
}`

func newTestClient(t *testing.T, handler http.HandlerFunc) *OpenWeatherClient {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return NewOpenWeatherClient(&http.Client{Timeout: 2 * time.Second}, OpenWeatherConfig{
		APIKey:  "test-key",
		BaseURL: srv.URL + "/data/2.5/forecast",
	})
}

func TestFetchForecast_Success(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		expected := map[string]string{
			"q":     "Kyiv",
			"appid": "test-key",
			"units": "metric",
			"lang":  "ua",
		}
		for k, v := range expected {
			if q.Get(k) != v {
				t.Errorf("expected %s=%s, got %s", k, v, q.Get(k))
			}
		}
		if r.URL.Path != "/data/2.5/forecast" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, forecastFixture)
	})

	resp, err := client.FetchForecast(context.Background(), "Kyiv")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if resp.City.Name != "Kyiv" || resp.City.Country != "UA" {
		t.Errorf("unexpected city %+v", resp.City)
	}
	if resp.City.Timezone != 10800 {
		t.Errorf("expected timezone 10800, got %d", resp.City.Timezone)
	}
	if len(resp.List) != 2 {
		t.Fatalf("expected 2 slots, got %d", len(resp.List))
	}

	first := resp.List[0]
	if first.DateTimeText != "2025-05-19 18:00:00" {
		t.Errorf("unexpected dt_txt %q", first.DateTimeText)
	}
	if first.Main.FeelsLike != 13.1 {
		t.Errorf("expected feels_like 13.1, got %v", first.Main.FeelsLike)
	}
	if first.Rain == nil || first.Rain.ThreeHour == nil || *first.Rain.ThreeHour != 0.87 {
		t.Errorf("expected rain 0.87, got %+v", first.Rain)
	}
	if first.Wind.Gust == nil || *first.Wind.Gust != 7.9 {
		t.Errorf("expected gust 7.9, got %v", first.Wind.Gust)
	}

	second := resp.List[1]
	if second.Rain != nil {
		t.Errorf("expected absent rain, got %+v", second.Rain)
	}
	if second.Wind.Gust != nil {
		t.Errorf("expected absent gust, got %v", *second.Wind.Gust)
	}
}

func TestFetchForecast_CityNotFound(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]string{"cod": "404", "message": "city not found"})
	})

	_, err := client.FetchForecast(context.Background(), "Atlantis")
	if !errors.Is(err, ErrCityNotFound) {
		t.Fatalf("expected ErrCityNotFound, got %v", err)
	}

	var reqErr *RequestError
	if !errors.As(err, &reqErr) {
		t.Fatalf("expected *RequestError, got %T", err)
	}
	if reqErr.StatusCode != http.StatusNotFound {
		t.Errorf("expected status 404, got %d", reqErr.StatusCode)
	}
}

func TestFetchForecast_Failures(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		target  error
	}{
		{
			name: "server error",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusBadGateway)
			},
			target: errServerError,
		},
		{
			name: "rate limited",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusTooManyRequests)
			},
			target: errRateLimited,
		},
		{
			name: "unauthorized",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusUnauthorized)
				fmt.Fprint(w, `{"cod":401,"message":"Invalid API key"}`)
			},
			target: errUnexpected,
		},
		{
			name: "malformed json",
			handler: func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprint(w, `{"list": [`)
			},
			target: errInvalidPayload,
		},
		{
			name: "missing dt_txt",
			handler: func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprint(w, `{"cod":"200","list":[{"dt":1747677600}],"city":{"name":"Kyiv"}}`)
			},
			target: errInvalidPayload,
		},
		{
			name: "missing city name",
			handler: func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprint(w, `{"cod":"200","list":[],"city":{}}`)
			},
			target: errInvalidPayload,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, tt.handler)

			_, err := client.FetchForecast(context.Background(), "Kyiv")
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			var reqErr *RequestError
			if !errors.As(err, &reqErr) {
				t.Fatalf("expected *RequestError, got %T: %v", err, err)
			}
			if !errors.Is(err, tt.target) {
				t.Errorf("expected error wrapping %v, got %v", tt.target, err)
			}
		})
	}
}

func TestFetchForecast_MissingAPIKey(t *testing.T) {
	client := NewOpenWeatherClient(http.DefaultClient, OpenWeatherConfig{})

	_, err := client.FetchForecast(context.Background(), "Kyiv")
	var reqErr *RequestError
	if !errors.As(err, &reqErr) {
		t.Fatalf("expected *RequestError, got %v", err)
	}
}

func TestFetchForecast_ContextCanceled(t *testing.T) {
	release := make(chan struct{})
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	})
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := client.FetchForecast(ctx, "Kyiv")
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

func TestFetchForecast_CircuitOpens(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	})

	// gobreaker's default ReadyToTrip opens after more than 5 consecutive failures.
	for i := 0; i < 6; i++ {
		client.FetchForecast(context.Background(), "Kyiv")
	}

	_, err := client.FetchForecast(context.Background(), "Kyiv")
	if !errors.Is(err, errCircuitOpen) {
		t.Fatalf("expected circuit open error, got %v", err)
	}
	if n := calls.Load(); n != 6 {
		t.Errorf("expected 6 upstream calls, got %d", n)
	}
}
