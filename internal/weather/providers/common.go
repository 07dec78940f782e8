package providers

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"
)

var (
	// ErrCityNotFound is returned when the API does not know the requested city.
	ErrCityNotFound = errors.New("city not found")

	errRateLimited    = errors.New("rate limited")
	errServerError    = errors.New("server error")
	errUnexpected     = errors.New("unexpected status code")
	errCircuitOpen    = errors.New("circuit breaker open")
	errNoHTTPClient   = errors.New("http client not configured")
	errInvalidPayload = errors.New("invalid payload")
)

// RequestError is returned for every failed forecast request: transport
// failures, timeouts, error statuses and malformed payloads alike.
type RequestError struct {
	City       string
	StatusCode int // 0 when no response was received
	Err        error
}

func (e *RequestError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("forecast request for %q failed (status %d): %v", e.City, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("forecast request for %q failed: %v", e.City, e.Err)
}

func (e *RequestError) Unwrap() error {
	return e.Err
}

// doRequest waits for the rate limiter and executes the request through the
// circuit breaker. Transport errors, 429 and 5xx count as breaker failures;
// other statuses are returned to the caller with the body open.
func doRequest(
	ctx context.Context,
	client *http.Client,
	limiter *rate.Limiter,
	cb *gobreaker.CircuitBreaker,
	req *http.Request,
) (*http.Response, error) {
	if client == nil {
		return nil, errNoHTTPClient
	}

	if limiter != nil {
		if err := limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limit wait canceled: %w", err)
		}
	}

	// Ensure the request obeys context cancellation.
	req = req.WithContext(ctx)

	result, err := cb.Execute(func() (interface{}, error) {
		resp, execErr := client.Do(req)
		if execErr != nil {
			return nil, execErr
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			resp.Body.Close()
			return nil, errRateLimited
		}
		if resp.StatusCode >= 500 {
			resp.Body.Close()
			return nil, fmt.Errorf("%w: %d", errServerError, resp.StatusCode)
		}

		return resp, nil
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("%w: %v", errCircuitOpen, err)
		}
		return nil, err
	}

	resp, ok := result.(*http.Response)
	if !ok {
		return nil, fmt.Errorf("unexpected result type from circuit breaker")
	}
	return resp, nil
}
