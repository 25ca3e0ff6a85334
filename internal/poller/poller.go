// Package poller drives a cpustat.Tracker on a fixed interval and hands each
// resulting reading to a set of sinks.
package poller

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/opd-ai/go-cpuload/internal/cpustat"
	"github.com/opd-ai/go-cpuload/internal/logging"
)

// Reading is one reported sample.
type Reading struct {
	Time    time.Time `json:"time"`
	Average float64   `json:"average"`
	Cores   []float64 `json:"cores"`
	// PerCore tells sinks whether the per-core loads or the average
	// should be reported.
	PerCore bool `json:"-"`
}

// Sink receives every reading produced by the poller.
type Sink interface {
	Consume(r Reading) error
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(r Reading) error

// Consume calls f(r).
func (f SinkFunc) Consume(r Reading) error { return f(r) }

// Options configures a Poller.
type Options struct {
	// Interval is the delay between samples. Zero means one second.
	Interval time.Duration
	PerCore  bool
	Sinks    []Sink
	Logger   logging.Logger
	// Now is used to stamp readings. Defaults to time.Now.
	Now func() time.Time
}

// Poller samples a tracker periodically. It is the only goroutine that
// mutates the tracker; Latest may be called concurrently.
type Poller struct {
	mu       sync.Mutex
	tracker  *cpustat.Tracker
	interval time.Duration
	perCore  bool
	sinks    []Sink
	latest   Reading
	hasData  bool
	running  bool

	log   logging.Logger
	now   func() time.Time
	reset chan struct{}
}

// New creates a Poller around tracker.
func New(tracker *cpustat.Tracker, opts Options) *Poller {
	if opts.Interval <= 0 {
		opts.Interval = time.Second
	}
	if opts.Logger == nil {
		opts.Logger = logging.Nop()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Poller{
		tracker:  tracker,
		interval: opts.Interval,
		perCore:  opts.PerCore,
		sinks:    slices.Clone(opts.Sinks),
		log:      opts.Logger,
		now:      opts.Now,
		reset:    make(chan struct{}, 1),
	}
}

// ErrRunning is returned by Run when the poller is already running.
var ErrRunning = errors.New("poller already running")

// Run samples until ctx is cancelled. Each iteration updates the tracker,
// reports the reading and then waits for the interval. A failed update is
// logged and returned, ending the loop. Cancellation returns nil.
func (p *Poller) Run(ctx context.Context) error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return ErrRunning
	}
	p.running = true
	p.mu.Unlock()

	defer func() {
		p.mu.Lock()
		p.running = false
		p.mu.Unlock()
	}()

	for ctx.Err() == nil {
		if err := p.Step(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}

		timer := time.NewTimer(p.Interval())
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-p.reset:
			timer.Stop()
		case <-timer.C:
		}
	}
	return nil
}

// Step performs a single update and reports the reading to every sink.
func (p *Poller) Step(ctx context.Context) error {
	p.mu.Lock()
	if err := p.tracker.Update(ctx); err != nil {
		p.mu.Unlock()
		p.log.Error("failed to update counters", "error", err)
		return fmt.Errorf("updating counters: %w", err)
	}
	sample, err := p.tracker.Sample()
	if err != nil {
		p.mu.Unlock()
		p.log.Error("failed to compute loads", "error", err)
		return fmt.Errorf("computing loads: %w", err)
	}

	r := Reading{
		Time:    p.now(),
		Average: sample.Average,
		Cores:   sample.Cores,
		PerCore: p.perCore,
	}
	p.latest = r
	p.hasData = true
	sinks := p.sinks
	p.mu.Unlock()

	p.log.Debug("sampled", "average", r.Average, "cores", len(r.Cores))

	for _, s := range sinks {
		if err := s.Consume(copyReading(r)); err != nil {
			p.log.Error("failed to report reading", "error", err)
			return fmt.Errorf("reporting: %w", err)
		}
	}
	return nil
}

// Latest returns the most recent reading. ok is false until the first
// successful step.
func (p *Poller) Latest() (r Reading, ok bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return copyReading(p.latest), p.hasData
}

// AddSink registers s for subsequent readings.
func (p *Poller) AddSink(s Sink) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sinks = append(slices.Clip(p.sinks), s)
}

// Interval returns the current sampling interval.
func (p *Poller) Interval() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.interval
}

// SetInterval changes the sampling interval. A running poller wakes up and
// takes the next sample immediately.
func (p *Poller) SetInterval(d time.Duration) {
	if d <= 0 {
		return
	}
	p.mu.Lock()
	changed := p.interval != d
	p.interval = d
	p.mu.Unlock()

	if changed {
		select {
		case p.reset <- struct{}{}:
		default:
		}
	}
}

// PerCore reports whether readings are flagged for per-core output.
func (p *Poller) PerCore() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.perCore
}

// SetPerCore switches between per-core and average reporting.
func (p *Poller) SetPerCore(b bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.perCore = b
}

func copyReading(r Reading) Reading {
	r.Cores = slices.Clone(r.Cores)
	return r
}
