// Package timeout implements the Timeout & Cancellation Manager: per-request
// deadlines with optional progress-reset semantics and a hard ceiling.
package timeout

import (
	"sync"
	"time"
)

// NoTimeout, passed as Options.Timeout, arms no soft deadline; a MaxTotal
// ceiling, if set, is still armed.
const NoTimeout = time.Duration(0)

// DefaultTimeout is applied when a caller asks for withDefaultTimeout
// instead of specifying one explicitly.
const DefaultTimeout = 60 * time.Second

// Options configures one request's deadline policy (§4.4).
type Options struct {
	Timeout         time.Duration // NoTimeout means no soft deadline
	ResetOnProgress bool
	MaxTotal        time.Duration // zero means no hard ceiling
}

// Deadline is the live, resettable timer for one outbound request. It is
// returned by Manager.Arm and must be stopped (via Stop, implicitly called
// by Fired's delivery) once the request resolves through any path.
type Deadline struct {
	mu        sync.Mutex
	opts      Options
	startedAt time.Time
	lastReset time.Time
	hardLimit time.Time // zero value means no ceiling
	timer     *time.Timer
	hardTimer *time.Timer
	fired     chan fireInfo
	stopped   bool
}

type fireInfo struct {
	elapsed time.Duration
	hard    bool
}

// Manager arms and tracks deadlines. It holds no global timer loop; each
// Deadline owns its own time.Timer, mirroring how the teacher's dispatcher
// uses one context per in-flight call rather than a shared scheduler.
type Manager struct{}

// NewManager returns a Manager. It carries no state of its own; it exists so
// the Session has a single named place that owns deadline policy, and so
// that call sites read as "the timeout manager arms a deadline" per the
// component design.
func NewManager() *Manager { return &Manager{} }

// Arm starts a deadline per opts. If opts.Timeout is NoTimeout and
// opts.MaxTotal is zero, it returns a Deadline that never fires (Fired()
// never receives).
func (m *Manager) Arm(opts Options) *Deadline {
	now := time.Now()
	d := &Deadline{
		opts:      opts,
		startedAt: now,
		lastReset: now,
		fired:     make(chan fireInfo, 1),
	}
	if opts.MaxTotal > 0 {
		d.hardLimit = now.Add(opts.MaxTotal)
		// The ceiling fires on its own schedule, independent of whether a
		// soft Timeout is set at all (§4.4: max_total is an option
		// independent of the soft per-attempt timeout).
		d.hardTimer = time.AfterFunc(opts.MaxTotal, func() { d.fire(true) })
	}

	if opts.Timeout > NoTimeout {
		d.timer = time.AfterFunc(opts.Timeout, func() { d.fire(false) })
	}

	return d
}

func (d *Deadline) fire(hard bool) {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return
	}
	d.stopped = true
	elapsed := time.Since(d.startedAt)
	d.mu.Unlock()

	d.fired <- fireInfo{elapsed: elapsed, hard: hard}
}

// Reset is called when a progress notification arrives for this request. If
// ResetOnProgress is not set, it is a no-op. It only ever extends the soft
// timer; the independent hard ceiling armed in Arm, if any, keeps running on
// its own schedule and fires regardless of how many times Reset is called.
func (d *Deadline) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped || !d.opts.ResetOnProgress || d.opts.Timeout <= NoTimeout {
		return
	}

	now := time.Now()
	d.lastReset = now

	// The independent hardTimer armed in Arm already fires at hardLimit
	// regardless of resets, so the soft timer just extends by the full
	// Timeout; whichever of the two timers fires first wins (fire guards
	// on d.stopped).
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.opts.Timeout, func() { d.fire(false) })
}

// Fired returns a channel that receives exactly once, when the deadline
// fires. It is never sent to if Stop is called first.
func (d *Deadline) Fired() <-chan fireInfo { return d.fired }

// Elapsed and Hard unpack a value received from Fired.
func (fi fireInfo) Elapsed() time.Duration { return fi.elapsed }
func (fi fireInfo) Hard() bool             { return fi.hard }

// Stop disarms the deadline. Safe to call more than once, and safe to call
// after the deadline has already fired (it is then a no-op).
func (d *Deadline) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}
	d.stopped = true
	if d.timer != nil {
		d.timer.Stop()
	}
	if d.hardTimer != nil {
		d.hardTimer.Stop()
	}
}
