package weather

import (
	"context"
	"fmt"
	"iter"
	"log"
	"slices"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"
)

// CacheTTL is the age after which a cached forecast is refreshed.
const CacheTTL = time.Hour

// DefaultFetchTimeout bounds a shared refresh once it is detached from the
// caller that started it.
const DefaultFetchTimeout = 30 * time.Second

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) {
		c.now = now
	}
}

// WithRefreshFailureHook registers fn to be called when a refresh fails, or
// is skipped while offline, and the caller was served cached data instead.
func WithRefreshFailureHook(fn func(city string, err error)) Option {
	return func(c *Coordinator) {
		c.onRefreshFailed = fn
	}
}

// WithFetchTimeout sets the timeout of a single fetch-and-store run.
func WithFetchTimeout(d time.Duration) Option {
	return func(c *Coordinator) {
		if d > 0 {
			c.fetchTimeout = d
		}
	}
}

// Coordinator decides between cached and remote forecasts and keeps the store
// in sync with the API.
type Coordinator struct {
	store   Store
	client  ForecastClient
	network Connectivity

	now             func() time.Time
	onRefreshFailed func(city string, err error)
	fetchTimeout    time.Duration

	// collapses concurrent refreshes of one city
	group singleflight.Group
}

// NewCoordinator creates a new Coordinator.
func NewCoordinator(store Store, client ForecastClient, network Connectivity, opts ...Option) *Coordinator {
	c := &Coordinator{
		store:        store,
		client:       client,
		network:      network,
		now:          time.Now,
		fetchTimeout: DefaultFetchTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// CacheExpired reports whether a forecast fetched at lastFetch is stale at now.
func CacheExpired(now, lastFetch time.Time) bool {
	return now.Sub(lastFetch) > CacheTTL
}

// GetForecast returns the snapshots to display for city.
//
// A non-empty cache is yielded first. When the cache is empty, expired or
// forceRefresh is set, the API is queried and the refreshed store content is
// yielded as a second snapshot. Errors are terminal and only surface when
// nothing was cached: ErrNoCachedData when offline, *FetchError when the
// fetch failed. The sequence can be ranged once.
func (c *Coordinator) GetForecast(ctx context.Context, city string, forceRefresh bool) iter.Seq2[Snapshot, error] {
	var consumed atomic.Bool

	return func(yield func(Snapshot, error) bool) {
		if consumed.Swap(true) {
			yield(Snapshot{}, ErrSequenceConsumed)
			return
		}

		cached, err := c.store.ReadByCityOnce(ctx, city)
		if err != nil {
			yield(Snapshot{}, fmt.Errorf("failed to read cached forecast: %w", err))
			return
		}

		lastFetch, ok, err := c.store.LastFetch(ctx, city)
		if err != nil {
			log.Printf("ERROR: reading last fetch for %s: %v", city, err)
			ok = false
		}
		if !ok {
			lastFetch = time.UnixMilli(0)
		}

		if len(cached) > 0 {
			snap := Snapshot{City: city, Origin: OriginCache, Entries: cached}
			if ok {
				snap.FetchedAt = lastFetch
			}
			if !yield(snap, nil) {
				return
			}
		}

		expired := CacheExpired(c.now(), lastFetch)
		if !forceRefresh && !expired && len(cached) > 0 {
			log.Printf("DEBUG: serving cached forecast for %s (%d slots)", city, len(cached))
			return
		}

		if !c.network.Available(ctx) {
			if len(cached) == 0 {
				yield(Snapshot{}, ErrNoCachedData)
				return
			}
			log.Printf("INFO: network unavailable; keeping cached forecast for %s", city)
			c.refreshFailed(city, ErrOffline)
			return
		}

		snap, err := c.refresh(ctx, city)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			if len(cached) == 0 {
				yield(Snapshot{}, &FetchError{City: city, Err: err})
				return
			}
			log.Printf("INFO: refresh failed for %s; keeping cached forecast: %v", city, err)
			c.refreshFailed(city, err)
			return
		}

		yield(snap, nil)
	}
}

// refresh runs fetchAndStore once per city at a time. The shared run is
// detached from ctx so a cancelled caller cannot abort a store write that
// other callers wait on.
func (c *Coordinator) refresh(ctx context.Context, city string) (Snapshot, error) {
	ch := c.group.DoChan(CityKey(city), func() (interface{}, error) {
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.fetchTimeout)
		defer cancel()
		return c.fetchAndStore(fctx, city)
	})

	select {
	case <-ctx.Done():
		return Snapshot{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return Snapshot{}, res.Err
		}
		snap := res.Val.(Snapshot)
		snap.Entries = slices.Clone(snap.Entries)
		return snap, nil
	}
}

func (c *Coordinator) fetchAndStore(ctx context.Context, city string) (Snapshot, error) {
	resp, err := c.client.FetchForecast(ctx, city)
	if err != nil {
		return Snapshot{}, err
	}

	resolved := resp.City.Name
	if resolved == "" {
		resolved = city
	}
	entries := EntriesFromResponse(resp, city)

	fetchedAt := c.now().Truncate(time.Millisecond)
	if err := c.store.CommitFetch(ctx, resolved, entries, fetchedAt); err != nil {
		return Snapshot{}, fmt.Errorf("failed to store forecast: %w", err)
	}

	fresh, err := c.store.ReadByCityOnce(ctx, resolved)
	if err != nil {
		return Snapshot{}, fmt.Errorf("failed to re-read forecast: %w", err)
	}

	log.Printf("DEBUG: stored %d slots for %s (requested %q)", len(fresh), resolved, city)
	return Snapshot{
		City:      resolved,
		Origin:    OriginRemote,
		FetchedAt: fetchedAt,
		Entries:   fresh,
	}, nil
}

func (c *Coordinator) refreshFailed(city string, err error) {
	if c.onRefreshFailed != nil {
		c.onRefreshFailed(city, err)
	}
}
