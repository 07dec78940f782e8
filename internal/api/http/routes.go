package httpapi

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"iter"
	"log"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/google/uuid"

	"github.com/i474232898/weather-forecast/internal/network"
	"github.com/i474232898/weather-forecast/internal/view"
	"github.com/i474232898/weather-forecast/internal/weather"
	"github.com/i474232898/weather-forecast/internal/weather/providers"
)

var validate = validator.New()

// keepAlive is how often an idle stream writes a blank line so a gone client
// is noticed.
const keepAlive = 15 * time.Second

// Forecaster produces the forecast snapshots of a city.
type Forecaster interface {
	GetForecast(ctx context.Context, city string, forceRefresh bool) iter.Seq2[weather.Snapshot, error]
}

// Observer produces live connectivity subscriptions.
type Observer interface {
	weather.Connectivity
	Observe(ctx context.Context) (*network.Subscription, error)
}

// Dependencies are the collaborators the handlers need.
type Dependencies struct {
	Forecasts   Forecaster
	Store       weather.Store
	Network     Observer
	DefaultCity string
}

// NewApp builds the Fiber app with middleware, health endpoint and API routes.
func NewApp(deps Dependencies) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               "weather-forecast",
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		ErrorHandler:          ErrorHandler,
	})

	app.Use(requestid.New(requestid.Config{Generator: uuid.NewString}))
	app.Use(logger.New(logger.Config{
		Format: "${time} ${locals:requestid} ${status} - ${latency} ${method} ${path}\n",
	}))
	app.Use(recover.New())

	app.Get("/health", func(c *fiber.Ctx) error {
		status, storeStatus := "ok", "ok"
		if p, ok := deps.Store.(interface{ Ping() error }); ok {
			if err := p.Ping(); err != nil {
				log.Printf("ERROR: store ping failed: %v", err)
				status, storeStatus = "degraded", err.Error()
			}
		}
		return c.JSON(fiber.Map{
			"status":  status,
			"service": "weather-forecast",
			"store":   storeStatus,
			"network": deps.Network.Available(c.UserContext()),
		})
	})

	RegisterRoutes(app, deps)
	return app
}

// RegisterRoutes wires the HTTP handlers into the Fiber app.
func RegisterRoutes(app *fiber.App, deps Dependencies) {
	v1 := app.Group("/api/v1")

	v1.Get("/forecast", func(c *fiber.Ctx) error {
		q, err := parseForecastQuery(c, deps.DefaultCity)
		if err != nil {
			return err
		}

		snapshots, state, err := view.Collect(deps.Forecasts.GetForecast(c.UserContext(), q.City, q.Refresh))
		if err != nil {
			return c.Status(statusFor(err)).JSON(fiber.Map{
				"error":   true,
				"message": state.Message,
				"city":    q.City,
				"state":   state,
			})
		}

		var days []weather.DaySummary
		if n := len(snapshots); n > 0 {
			days = weather.SummarizeDays(snapshots[n-1].Entries)
		}

		return c.JSON(fiber.Map{
			"city":      q.City,
			"snapshots": snapshots,
			"state":     state,
			"days":      days,
		})
	})

	v1.Get("/forecast/watch", func(c *fiber.Ctx) error {
		q, err := parseWatchQuery(c, deps.DefaultCity)
		if err != nil {
			return err
		}

		ctx, cancel := context.WithCancel(context.Background())
		updates, err := deps.Store.WatchByCity(ctx, q.City)
		if err != nil {
			cancel()
			return err
		}

		c.Set(fiber.HeaderContentType, "application/x-ndjson")
		c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
			defer cancel()
			streamNDJSON(w, updates, q.Limit, func(entries []weather.ForecastEntry) any {
				return fiber.Map{"city": q.City, "entries": entries}
			})
		})
		return nil
	})

	v1.Get("/network", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"available": deps.Network.Available(c.UserContext())})
	})

	v1.Get("/network/watch", func(c *fiber.Ctx) error {
		limit, err := parseLimit(c)
		if err != nil {
			return err
		}

		sub, err := deps.Network.Observe(context.Background())
		if err != nil {
			return err
		}

		c.Set(fiber.HeaderContentType, "application/x-ndjson")
		c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
			defer sub.Close()
			streamNDJSON(w, sub.Updates(), limit, func(available bool) any {
				return fiber.Map{"available": available}
			})
		})
		return nil
	})

	v1.Get("/cities", func(c *fiber.Ctx) error {
		cities, err := deps.Store.Cities(c.UserContext())
		if err != nil {
			return err
		}
		if cities == nil {
			cities = []weather.LastFetch{}
		}
		return c.JSON(fiber.Map{"cities": cities})
	})
}

// ErrorHandler renders every error as JSON with a status derived from its kind.
func ErrorHandler(c *fiber.Ctx, err error) error {
	code := statusFor(err)
	if code == fiber.StatusInternalServerError {
		log.Printf("ERROR: %s %s: %v", c.Method(), c.Path(), err)
	}
	return c.Status(code).JSON(fiber.Map{
		"error":   true,
		"message": err.Error(),
	})
}

func statusFor(err error) int {
	var fe *fiber.Error
	var fetchErr *weather.FetchError
	var verr validator.ValidationErrors

	switch {
	case errors.As(err, &fe):
		return fe.Code
	case errors.As(err, &verr):
		return fiber.StatusBadRequest
	case errors.Is(err, weather.ErrNoCachedData):
		return fiber.StatusServiceUnavailable
	case errors.Is(err, providers.ErrCityNotFound):
		return fiber.StatusNotFound
	case errors.As(err, &fetchErr):
		return fiber.StatusBadGateway
	default:
		return fiber.StatusInternalServerError
	}
}

// streamNDJSON writes one JSON line per value received from ch until ch is
// closed, limit values were written (0 means no limit) or the client is gone.
func streamNDJSON[T any](w *bufio.Writer, ch <-chan T, limit int, render func(T) any) {
	ticker := time.NewTicker(keepAlive)
	defer ticker.Stop()

	enc := json.NewEncoder(w)
	for written := 0; limit == 0 || written < limit; {
		select {
		case v, ok := <-ch:
			if !ok {
				return
			}
			if err := enc.Encode(render(v)); err != nil {
				return
			}
			written++
		case <-ticker.C:
			if err := w.WriteByte('\n'); err != nil {
				return
			}
		}
		if err := w.Flush(); err != nil {
			return
		}
	}
}

type forecastQuery struct {
	City    string `validate:"required,max=100"`
	Refresh bool
}

func parseForecastQuery(c *fiber.Ctx, defaultCity string) (forecastQuery, error) {
	q := forecastQuery{City: c.Query("city", defaultCity)}

	if raw := c.Query("refresh"); raw != "" {
		refresh, err := strconv.ParseBool(raw)
		if err != nil {
			return q, fiber.NewError(fiber.StatusBadRequest, "refresh must be a boolean")
		}
		q.Refresh = refresh
	}

	if err := validate.Struct(q); err != nil {
		return q, err
	}
	return q, nil
}

type watchQuery struct {
	City  string `validate:"required,max=100"`
	Limit int    `validate:"gte=0"`
}

func parseWatchQuery(c *fiber.Ctx, defaultCity string) (watchQuery, error) {
	q := watchQuery{City: c.Query("city", defaultCity)}

	limit, err := parseLimit(c)
	if err != nil {
		return q, err
	}
	q.Limit = limit

	if err := validate.Struct(q); err != nil {
		return q, err
	}
	return q, nil
}

func parseLimit(c *fiber.Ctx) (int, error) {
	raw := c.Query("limit")
	if raw == "" {
		return 0, nil
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 0 {
		return 0, fiber.NewError(fiber.StatusBadRequest, "limit must be a non-negative integer")
	}
	return limit, nil
}
