package view

import (
	"errors"
	"iter"

	"github.com/i474232898/weather-forecast/internal/weather"
)

// Kind discriminates State.
type Kind string

const (
	KindLoading Kind = "loading"
	KindSuccess Kind = "success"
	KindError   Kind = "error"
	KindEmpty   Kind = "empty"
)

// State is what a display layer renders for one forecast request.
// Current and Forecast are set for KindSuccess, Message for KindError.
type State struct {
	Kind     Kind                    `json:"kind"`
	Current  *weather.ForecastEntry  `json:"current,omitempty"`
	Forecast []weather.ForecastEntry `json:"forecast,omitempty"`
	Origin   weather.Origin          `json:"origin,omitempty"`
	Message  string                  `json:"message,omitempty"`
}

// Loading is the state before the first snapshot arrives.
func Loading() State {
	return State{Kind: KindLoading}
}

// Project folds a snapshot into the previous state. The first slot becomes
// the current conditions and the remaining slots the forecast list. An empty
// snapshot does not hide an error already shown.
func Project(prev State, snap weather.Snapshot) State {
	if len(snap.Entries) == 0 {
		if prev.Kind == KindError {
			return prev
		}
		return State{Kind: KindEmpty, Origin: snap.Origin}
	}

	current := snap.Entries[0]
	return State{
		Kind:     KindSuccess,
		Current:  &current,
		Forecast: snap.Entries[1:],
		Origin:   snap.Origin,
	}
}

// Fail returns the error state for err.
func Fail(err error) State {
	msg := "unknown error"
	switch {
	case errors.Is(err, weather.ErrNoCachedData):
		msg = "No network connection and no saved forecast."
	case err != nil:
		msg = err.Error()
	}
	return State{Kind: KindError, Message: msg}
}

// Collect drains a forecast sequence, returning every snapshot, the final
// state and the terminal error if any.
func Collect(seq iter.Seq2[weather.Snapshot, error]) ([]weather.Snapshot, State, error) {
	state := Loading()
	var snapshots []weather.Snapshot
	for snap, err := range seq {
		if err != nil {
			return snapshots, Fail(err), err
		}
		snapshots = append(snapshots, snap)
		state = Project(state, snap)
	}
	if state.Kind == KindLoading {
		state = State{Kind: KindEmpty}
	}
	return snapshots, state, nil
}
