package ratelimit

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
)

const (
	// Window is the length of one accounting window in the windowed modes.
	Window = 60 * time.Second
	// WindowCap is the number of calls admitted per window.
	WindowCap = 30
	// PaceInterval is the minimum spacing between dispatches in ModePace.
	PaceInterval = 2000 * time.Millisecond
)

// ErrUnsupportedMode is returned for any mode outside None, Burst and Pace.
var ErrUnsupportedMode = errors.New("unsupported rate limit mode")

// ErrRateLimited is matched by every *RateLimitError.
var ErrRateLimited = errors.New("rate limit exceeded")

// RateLimitError is returned by Check in ModeNone once the window cap is hit.
type RateLimitError struct {
	Remaining time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limit exceeded: window resets in %s", e.Remaining.Round(time.Millisecond))
}

func (e *RateLimitError) Unwrap() error {
	return ErrRateLimited
}

// Mode selects the throttling discipline of a Limiter.
type Mode int

const (
	// ModeNone counts calls per window and rejects once the cap is reached.
	ModeNone Mode = iota
	// ModeBurst counts calls per window and delays until the window ends once
	// the cap is reached.
	ModeBurst
	// ModePace spaces calls at least PaceInterval apart.
	ModePace
)

func (m Mode) String() string {
	switch m {
	case ModeNone:
		return "none"
	case ModeBurst:
		return "burst"
	case ModePace:
		return "pace"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

func (m Mode) valid() bool {
	return m == ModeNone || m == ModeBurst || m == ModePace
}

// ParseMode converts a config value ("none", "burst", "pace") into a Mode.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "none":
		return ModeNone, nil
	case "burst":
		return ModeBurst, nil
	case "pace":
		return ModePace, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnsupportedMode, s)
	}
}

// Action is the verdict of a single Check.
type Action int

const (
	// Proceed means the call may be dispatched now.
	Proceed Action = iota
	// Delay means the caller must wait Decision.Wait before dispatching.
	Delay
)

func (a Action) String() string {
	switch a {
	case Proceed:
		return "proceed"
	case Delay:
		return "delay"
	default:
		return fmt.Sprintf("Action(%d)", int(a))
	}
}

// Decision is the result of an admitted Check.
type Decision struct {
	Action Action
	Wait   time.Duration
}

// BurstWindow is the accounting window used by ModeNone and ModeBurst.
// A zero Start means no window has been opened yet.
type BurstWindow struct {
	Start time.Time `json:"start"`
	Count int       `json:"count"`
}

// PaceMark records the dispatch time of the last admitted call.
// A zero LastRequestAt means no call has been admitted yet.
type PaceMark struct {
	LastRequestAt time.Time `json:"last_request_at"`
}

// State is a point-in-time copy of a Limiter's tracking state.
type State struct {
	Mode   string      `json:"mode"`
	Window BurstWindow `json:"window"`
	Pace   PaceMark    `json:"pace"`
}

// Limiter is the per-agent rate-tracking state machine. Check runs
// check-and-update under one mutex, so a Limiter may be shared by
// concurrent callers.
type Limiter struct {
	mu     sync.Mutex
	mode   Mode
	window BurstWindow
	pace   PaceMark
	clock  Clock
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithClock replaces the system clock, typically with a fake in tests.
func WithClock(c Clock) Option {
	return func(l *Limiter) {
		l.clock = c
	}
}

// New creates a Limiter for mode. Unknown modes fail with ErrUnsupportedMode.
func New(mode Mode, opts ...Option) (*Limiter, error) {
	if !mode.valid() {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedMode, mode)
	}
	l := &Limiter{mode: mode}
	for _, o := range opts {
		o(l)
	}
	if l.clock == nil {
		l.clock = SystemClock()
	}
	return l, nil
}

// Mode returns the limiter's mode.
func (l *Limiter) Mode() Mode {
	return l.mode
}

// Clock returns the time source the limiter reads.
func (l *Limiter) Clock() Clock {
	if l.clock == nil {
		return SystemClock()
	}
	return l.clock
}

// Check decides whether the next call may go now, after a delay, or not at
// all. A rejection is returned as a *RateLimitError.
func (l *Limiter) Check() (Decision, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.mode.valid() {
		return Decision{}, fmt.Errorf("%w: %s", ErrUnsupportedMode, l.mode)
	}
	now := l.now()

	// Cold start is always free.
	if l.window.Start.IsZero() && l.pace.LastRequestAt.IsZero() {
		l.window = BurstWindow{Start: now, Count: 1}
		l.pace.LastRequestAt = now
		return Decision{Action: Proceed}, nil
	}

	switch l.mode {
	case ModeNone, ModeBurst:
		return l.checkWindow(now)
	default:
		d := l.checkPace(now)
		l.countWindow(now)
		return d, nil
	}
}

func (l *Limiter) now() time.Time {
	if l.clock == nil {
		return time.Now()
	}
	return l.clock.Now()
}

// checkWindow implements the windowed modes. Must be called with l.mu held.
func (l *Limiter) checkWindow(now time.Time) (Decision, error) {
	if l.window.Start.IsZero() || now.Sub(l.window.Start) >= Window {
		l.window = BurstWindow{Start: now, Count: 1}
		l.pace.LastRequestAt = now
		return Decision{Action: Proceed}, nil
	}

	if l.window.Count >= WindowCap {
		timeLeft := Window - now.Sub(l.window.Start)
		if l.mode == ModeNone {
			return Decision{}, &RateLimitError{Remaining: timeLeft}
		}
		// The delayed call is dispatched when the next window opens and is
		// the first call counted in it.
		l.window = BurstWindow{Start: l.window.Start.Add(Window), Count: 1}
		l.pace.LastRequestAt = now.Add(timeLeft)
		return Decision{Action: Delay, Wait: timeLeft}, nil
	}

	l.window.Count++
	// A window reserved by an earlier delay may not have opened yet.
	if wait := l.window.Start.Sub(now); wait > 0 {
		l.pace.LastRequestAt = l.window.Start
		return Decision{Action: Delay, Wait: wait}, nil
	}
	l.pace.LastRequestAt = now
	return Decision{Action: Proceed}, nil
}

// checkPace implements ModePace. Must be called with l.mu held.
func (l *Limiter) checkPace(now time.Time) Decision {
	if l.pace.LastRequestAt.IsZero() {
		l.pace.LastRequestAt = now
		return Decision{Action: Proceed}
	}

	elapsed := now.Sub(l.pace.LastRequestAt)
	if elapsed < PaceInterval {
		wait := PaceInterval - elapsed
		l.pace.LastRequestAt = now.Add(wait)
		return Decision{Action: Delay, Wait: wait}
	}

	l.pace.LastRequestAt = now
	return Decision{Action: Proceed}
}

// countWindow keeps the window bookkeeping current in ModePace without ever
// acting on it. Must be called with l.mu held.
func (l *Limiter) countWindow(now time.Time) {
	if l.window.Start.IsZero() || now.Sub(l.window.Start) >= Window {
		l.window = BurstWindow{Start: now, Count: 1}
		return
	}
	l.window.Count++
}

// Snapshot returns a copy of the current tracking state.
func (l *Limiter) Snapshot() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return State{
		Mode:   l.mode.String(),
		Window: l.window,
		Pace:   l.pace,
	}
}
