// Package circuitbreaker implements a sliding-window circuit breaker for
// remote catalog upstreams. When the weighted error rate over the window
// crosses the trip ratio the breaker opens and planning calls fail
// immediately instead of stacking timeouts against a dead catalog.
package circuitbreaker

import (
	"sync"
	"time"
)

// State is the breaker position.
type State int

const (
	// StateClosed lets every call through.
	StateClosed State = iota
	// StateOpen rejects every call until the cooldown elapses.
	StateOpen
	// StateHalfOpen lets a single probe through.
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// Options tunes a Breaker.
type Options struct {
	TripRatio  float64       // weighted error rate that opens the breaker
	MinSamples int           // calls required in-window before it may open
	Window     time.Duration // sliding window length, capped at 60s
	Cooldown   time.Duration // time spent open before a probe is allowed
}

// DefaultOptions suit a remote STAC catalog: trip on a third of calls
// failing, but never on fewer than ten samples.
func DefaultOptions() Options {
	return Options{
		TripRatio:  0.30,
		MinSamples: 10,
		Window:     60 * time.Second,
		Cooldown:   30 * time.Second,
	}
}

// slot accumulates outcomes for one second of the window.
type slot struct {
	weight float64
	calls  int
}

// window is a ring of one-second slots. Fixed backing array, no
// allocation after construction.
type window struct {
	slots    [60]slot
	size     int
	head     int
	headTime int64 // unix second of the head slot
}

func newWindow(d time.Duration) window {
	secs := int(d / time.Second)
	if secs <= 0 || secs > 60 {
		secs = 60
	}
	return window{size: secs}
}

// advance rotates the head to nowSec, zeroing slots that fell out of
// the window.
func (w *window) advance(nowSec int64) {
	if w.headTime == 0 {
		w.headTime = nowSec
		return
	}
	gap := nowSec - w.headTime
	if gap <= 0 {
		return
	}
	stale := min(int(gap), w.size)
	for i := range stale {
		w.slots[(w.head+1+i)%w.size] = slot{}
	}
	w.head = (w.head + int(gap)) % w.size
	w.headTime = nowSec
}

func (w *window) record(weight float64, now time.Time) {
	w.advance(now.Unix())
	w.slots[w.head].calls++
	w.slots[w.head].weight += weight
}

func (w *window) errorRate(now time.Time) (rate float64, samples int) {
	w.advance(now.Unix())
	var weight float64
	var calls int
	for i := range w.size {
		weight += w.slots[i].weight
		calls += w.slots[i].calls
	}
	if calls == 0 {
		return 0, 0
	}
	return weight / float64(calls), calls
}

func (w *window) reset() {
	for i := range w.size {
		w.slots[i] = slot{}
	}
	w.head = 0
	w.headTime = 0
}

// Breaker is the state machine. All methods are safe for concurrent use.
type Breaker struct {
	mu       sync.Mutex
	state    State
	window   window
	openedAt time.Time
	probing  bool
	opts     Options
	now      func() time.Time
}

// New returns a closed Breaker with the given options.
func New(opts Options) *Breaker {
	return &Breaker{
		state:  StateClosed,
		window: newWindow(opts.Window),
		opts:   opts,
		now:    time.Now,
	}
}

// State reports the current position.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Allow reports whether a call may proceed. While open it returns false
// until the cooldown has elapsed, then admits exactly one probe.
func (b *Breaker) Allow() bool {
	now := b.now()
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		return true
	case StateOpen:
		if now.Sub(b.openedAt) >= b.opts.Cooldown {
			b.state = StateHalfOpen
			b.probing = true
			return true
		}
		return false
	case StateHalfOpen:
		if !b.probing {
			b.probing = true
			return true
		}
		return false
	}
	return false
}

// RecordSuccess notes a successful call. A successful half-open probe
// closes the breaker and clears the window.
func (b *Breaker) RecordSuccess() {
	now := b.now()
	b.mu.Lock()
	defer b.mu.Unlock()
	b.window.record(0, now)

	if b.state == StateHalfOpen {
		b.state = StateClosed
		b.probing = false
		b.window.reset()
	}
}

// RecordError notes a failed call with the given weight. Weight comes
// from Weigh; a zero weight still counts as a sample.
func (b *Breaker) RecordError(weight float64) {
	now := b.now()
	b.mu.Lock()
	defer b.mu.Unlock()
	b.window.record(weight, now)

	switch b.state {
	case StateClosed:
		rate, samples := b.window.errorRate(now)
		if samples >= b.opts.MinSamples && rate >= b.opts.TripRatio {
			b.state = StateOpen
			b.openedAt = now
		}
	case StateHalfOpen:
		b.state = StateOpen
		b.openedAt = now
		b.probing = false
	}
}
