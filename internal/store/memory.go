package store

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/i474232898/weather-forecast/internal/weather"
)

var (
	// ErrNotFound is returned when no data is available for a given city.
	ErrNotFound = errors.New("no forecast data for city")
)

// cityForecast holds the ordered slots and the last fetch time of a city.
type cityForecast struct {
	name      string
	entries   []weather.ForecastEntry
	fetchedAt time.Time
	fetched   bool
}

// MemoryStore is a concurrency-safe, non-persistent forecast store.
type MemoryStore struct {
	mu sync.RWMutex

	// key: weather.CityKey(city)
	data map[string]*cityForecast

	hub *watchHub
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		data: make(map[string]*cityForecast),
		hub:  newWatchHub(),
	}
}

// ReadByCityOnce returns a copy of the slots stored for city.
func (s *MemoryStore) ReadByCityOnce(_ context.Context, city string) ([]weather.ForecastEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cf, ok := s.data[weather.CityKey(city)]
	if !ok {
		return []weather.ForecastEntry{}, nil
	}
	return cloneEntries(cf.entries), nil
}

// WatchByCity streams the slots of city after every replace.
func (s *MemoryStore) WatchByCity(ctx context.Context, city string) (<-chan []weather.ForecastEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var initial []weather.ForecastEntry
	if cf, ok := s.data[weather.CityKey(city)]; ok {
		initial = cloneEntries(cf.entries)
	} else {
		initial = []weather.ForecastEntry{}
	}
	return s.hub.watch(ctx, city, initial), nil
}

// Slot looks up a single slot by its key.
func (s *MemoryStore) Slot(_ context.Context, slotKey string) (weather.ForecastEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, cf := range s.data {
		for _, e := range cf.entries {
			if e.SlotKey == slotKey {
				return e, nil
			}
		}
	}
	return weather.ForecastEntry{}, ErrNotFound
}

// ReplaceByCity drops every slot of city and stores entries instead.
func (s *MemoryStore) ReplaceByCity(_ context.Context, city string, entries []weather.ForecastEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.replaceLocked(city, entries)
	return nil
}

// LastFetch returns when city was last fetched.
func (s *MemoryStore) LastFetch(_ context.Context, city string) (time.Time, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cf, ok := s.data[weather.CityKey(city)]
	if !ok || !cf.fetched {
		return time.Time{}, false, nil
	}
	return cf.fetchedAt, true, nil
}

// UpsertLastFetch records the last fetch time of city.
func (s *MemoryStore) UpsertLastFetch(_ context.Context, city string, fetchedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.upsertLocked(city, fetchedAt)
	return nil
}

// CommitFetch replaces the slots of city and records fetchedAt under one lock.
func (s *MemoryStore) CommitFetch(_ context.Context, city string, entries []weather.ForecastEntry, fetchedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.replaceLocked(city, entries)
	s.upsertLocked(city, fetchedAt)
	return nil
}

// Cities lists every city that has been fetched, most recent first.
func (s *MemoryStore) Cities(_ context.Context) ([]weather.LastFetch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []weather.LastFetch
	for _, cf := range s.data {
		if cf.fetched {
			result = append(result, weather.LastFetch{City: cf.name, FetchedAt: cf.fetchedAt})
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].FetchedAt.After(result[j].FetchedAt)
	})
	return result, nil
}

func (s *MemoryStore) entryLocked(city string) *cityForecast {
	key := weather.CityKey(city)
	cf, ok := s.data[key]
	if !ok {
		cf = &cityForecast{}
		s.data[key] = cf
	}
	cf.name = city
	return cf
}

func (s *MemoryStore) replaceLocked(city string, entries []weather.ForecastEntry) {
	cf := s.entryLocked(city)
	cf.entries = cloneEntries(entries)
	weather.SortEntries(cf.entries)
	s.hub.publish(city, cf.entries)
}

func (s *MemoryStore) upsertLocked(city string, fetchedAt time.Time) {
	cf := s.entryLocked(city)
	cf.fetchedAt = fetchedAt
	cf.fetched = true
}

var _ weather.Store = (*MemoryStore)(nil)
