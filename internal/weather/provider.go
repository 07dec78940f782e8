package weather

import (
	"context"
	"time"
)

// ForecastClient abstracts the remote forecast API.
type ForecastClient interface {
	FetchForecast(ctx context.Context, city string) (*ForecastResponse, error)
}

// Connectivity reports whether the network is currently reachable.
type Connectivity interface {
	Available(ctx context.Context) bool
}

// Store is the contract the sqlite and in-memory stores satisfy.
type Store interface {
	// ReadByCityOnce returns the entries of a city ordered by timestamp.
	ReadByCityOnce(ctx context.Context, city string) ([]ForecastEntry, error)
	// WatchByCity emits the current entries and again after every replace
	// of that city, until ctx is done.
	WatchByCity(ctx context.Context, city string) (<-chan []ForecastEntry, error)
	// ReplaceByCity deletes every entry of city and inserts entries.
	ReplaceByCity(ctx context.Context, city string, entries []ForecastEntry) error
	// LastFetch returns ok=false when the city was never fetched.
	LastFetch(ctx context.Context, city string) (fetchedAt time.Time, ok bool, err error)
	UpsertLastFetch(ctx context.Context, city string, fetchedAt time.Time) error
	// CommitFetch applies ReplaceByCity and UpsertLastFetch as one unit.
	CommitFetch(ctx context.Context, city string, entries []ForecastEntry, fetchedAt time.Time) error
	Cities(ctx context.Context) ([]LastFetch, error)
}
