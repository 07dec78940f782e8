package weather

import (
	"errors"
	"fmt"
)

var (
	// ErrNoCachedData is returned when a refresh is needed, the network is
	// unavailable and nothing is cached for the city.
	ErrNoCachedData = errors.New("network unavailable and no cached forecast")

	// ErrOffline is reported to the refresh failure hook when a refresh was
	// skipped for lack of network while cached data was served.
	ErrOffline = errors.New("network unavailable")

	// ErrSequenceConsumed is yielded when a forecast sequence is ranged more
	// than once.
	ErrSequenceConsumed = errors.New("forecast sequence already consumed")
)

// FetchError reports a failed remote fetch for a city with nothing cached.
type FetchError struct {
	City string
	Err  error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("failed to fetch forecast for %s: %v", e.City, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}
