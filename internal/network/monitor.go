package network

import (
	"context"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/i474232898/weather-forecast/internal/scheduler"
)

// Prober checks connectivity once.
type Prober interface {
	Probe(ctx context.Context) bool
}

// DialProber reports the network as available when a TCP connection to Addr
// can be opened within Timeout.
type DialProber struct {
	Addr    string
	Timeout time.Duration
}

func (p DialProber) Probe(ctx context.Context) bool {
	d := net.Dialer{Timeout: p.Timeout}
	conn, err := d.DialContext(ctx, "tcp", p.Addr)
	if err != nil {
		return false
	}
	conn.Close()
	return true
}

// Monitor observes connectivity by polling a Prober.
type Monitor struct {
	prober   Prober
	interval time.Duration

	active atomic.Int32
	last   atomic.Bool
}

// NewMonitor creates a Monitor polling prober every interval while subscribed.
func NewMonitor(prober Prober, interval time.Duration) *Monitor {
	return &Monitor{prober: prober, interval: interval}
}

// Available returns the last value observed by an active subscription, or
// probes once when nobody is subscribed.
func (m *Monitor) Available(ctx context.Context) bool {
	if m.active.Load() > 0 {
		return m.last.Load()
	}
	return m.probe(ctx)
}

func (m *Monitor) probe(ctx context.Context) bool {
	ok := m.prober.Probe(ctx)
	m.last.Store(ok)
	return ok
}

// Observe subscribes to connectivity changes. The current value is delivered
// first; afterwards only changes are delivered. The subscription ends when
// ctx is done or Close is called.
func (m *Monitor) Observe(ctx context.Context) (*Subscription, error) {
	probeCtx, cancel := context.WithCancel(context.Background())
	sub := &Subscription{
		updates: make(chan bool, 1),
		done:    make(chan struct{}),
		cancel:  cancel,
		monitor: m,
	}

	m.active.Add(1)
	sub.lastSent = m.probe(ctx)
	sub.updates <- sub.lastSent

	job, err := scheduler.Start("network-probe", m.interval, func() {
		sub.check(probeCtx)
	})
	if err != nil {
		m.active.Add(-1)
		cancel()
		return nil, err
	}
	sub.job = job

	go func() {
		select {
		case <-ctx.Done():
			sub.Close()
		case <-sub.done:
		}
	}()

	return sub, nil
}

// Subscription is a live, deduplicated feed of connectivity values. It owns
// the polling job and releases it on Close.
type Subscription struct {
	updates chan bool
	done    chan struct{}
	cancel  context.CancelFunc
	monitor *Monitor
	job     *scheduler.Job

	mu       sync.Mutex
	closed   bool
	lastSent bool

	closeOnce sync.Once
}

// Updates returns the feed. It is closed after Close.
func (s *Subscription) Updates() <-chan bool {
	return s.updates
}

func (s *Subscription) check(ctx context.Context) {
	ok := s.monitor.probe(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || ok == s.lastSent {
		return
	}
	select {
	case s.updates <- ok:
		s.lastSent = ok
	case <-s.done:
	}
}

// Close stops polling and closes the feed.
func (s *Subscription) Close() {
	s.closeOnce.Do(func() {
		close(s.done)
		s.cancel()
		if s.job != nil {
			s.job.Stop()
		}

		s.mu.Lock()
		s.closed = true
		close(s.updates)
		s.mu.Unlock()

		s.monitor.active.Add(-1)
	})
}
