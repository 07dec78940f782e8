package store

import (
	"context"
	"sync"

	"github.com/i474232898/weather-forecast/internal/weather"
)

// watchHub fans replace notifications out to per-city watchers.
type watchHub struct {
	mu       sync.Mutex
	nextID   int
	watchers map[string]map[int]chan []weather.ForecastEntry
}

func newWatchHub() *watchHub {
	return &watchHub{watchers: make(map[string]map[int]chan []weather.ForecastEntry)}
}

// watch registers a watcher for city and primes it with initial. The returned
// channel is closed once ctx is done.
func (h *watchHub) watch(ctx context.Context, city string, initial []weather.ForecastEntry) <-chan []weather.ForecastEntry {
	key := weather.CityKey(city)
	ch := make(chan []weather.ForecastEntry, 1)
	ch <- initial

	h.mu.Lock()
	id := h.nextID
	h.nextID++
	if h.watchers[key] == nil {
		h.watchers[key] = make(map[int]chan []weather.ForecastEntry)
	}
	h.watchers[key][id] = ch
	h.mu.Unlock()

	go func() {
		<-ctx.Done()
		h.mu.Lock()
		defer h.mu.Unlock()
		delete(h.watchers[key], id)
		if len(h.watchers[key]) == 0 {
			delete(h.watchers, key)
		}
		close(ch)
	}()

	return ch
}

// publish delivers entries to every watcher of city. A watcher that has not
// consumed the previous list gets it replaced by the newer one.
func (h *watchHub) publish(city string, entries []weather.ForecastEntry) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, ch := range h.watchers[weather.CityKey(city)] {
		select {
		case <-ch:
		default:
		}
		ch <- cloneEntries(entries)
	}
}

func cloneEntries(entries []weather.ForecastEntry) []weather.ForecastEntry {
	out := make([]weather.ForecastEntry, len(entries))
	copy(out, entries)
	return out
}
