// Package device implements the per-peripheral layer that sits on top
// of a Transport and a Parser: lifecycle, communication watchdog, poll
// timer, and (for command/ack actuators) a pending-command slot plus
// queue. Each concrete device in this package holds the pieces it needs
// directly and supplies its own merge and dispatch logic.
package device

import (
	"math"
	"sync"
	"time"

	"github.com/ironfathom/stationctl/internal/logger"
)

// LifecycleState is the device's Offline/Initializing/Online/Error
// state, independent of the watchdog-driven connected sub-state.
type LifecycleState int

const (
	Offline LifecycleState = iota
	Initializing
	Online
	ErrorState
)

func (s LifecycleState) String() string {
	switch s {
	case Offline:
		return "Offline"
	case Initializing:
		return "Initializing"
	case Online:
		return "Online"
	case ErrorState:
		return "Error"
	default:
		return "Unknown"
	}
}

// Watchdog toggles a device's connected sub-state to false when it has
// not been re-armed within its timeout window, and restores it on the
// next arm.
type Watchdog struct {
	mu        sync.Mutex
	timer     *time.Timer
	timeout   time.Duration
	connected bool
	onChange  func(connected bool)
}

// NewWatchdog constructs a stopped watchdog; Arm starts it ticking.
func NewWatchdog(timeout time.Duration, onChange func(connected bool)) *Watchdog {
	return &Watchdog{timeout: timeout, onChange: onChange}
}

// Arm (re-)starts the countdown and marks the device connected if it
// was not already.
func (w *Watchdog) Arm() {
	w.mu.Lock()
	defer w.mu.Unlock()

	wasConnected := w.connected
	w.connected = true

	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.timeout, w.expire)

	if !wasConnected && w.onChange != nil {
		w.onChange(true)
	}
}

func (w *Watchdog) expire() {
	w.mu.Lock()
	w.connected = false
	cb := w.onChange
	w.mu.Unlock()
	if cb != nil {
		cb(false)
	}
}

// Stop disarms the watchdog and marks the device disconnected.
func (w *Watchdog) Stop() {
	w.mu.Lock()
	if w.timer != nil {
		w.timer.Stop()
	}
	wasConnected := w.connected
	w.connected = false
	w.mu.Unlock()
	if wasConnected && w.onChange != nil {
		w.onChange(false)
	}
}

// Connected reports the watchdog's current view of the link.
func (w *Watchdog) Connected() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.connected
}

// PollTimer issues a callback on a fixed interval until Stop is called.
// Ticks run on a dedicated goroutine and fn is called directly on it;
// the poll-based devices in this package send their read requests from
// that goroutine.
type PollTimer struct {
	ticker *time.Ticker
	stop   chan struct{}
}

// StartPollTimer begins calling fn every interval until Stop is called.
func StartPollTimer(interval time.Duration, fn func()) *PollTimer {
	pt := &PollTimer{
		ticker: time.NewTicker(interval),
		stop:   make(chan struct{}),
	}
	go func() {
		for {
			select {
			case <-pt.stop:
				return
			case <-pt.ticker.C:
				fn()
			}
		}
	}()
	return pt
}

// Stop halts the timer; safe to call once.
func (pt *PollTimer) Stop() {
	pt.ticker.Stop()
	close(pt.stop)
}

// Command is one queued actuator write awaiting ACK/NACK.
type Command struct {
	Bytes   []byte
	Timeout time.Duration
}

// CommandQueue serialises actuator writes: one command occupies the
// pending slot at a time; on ACK/NACK (ResolvePending) or timeout the
// slot clears and, after an inter-command delay, the next queued
// command is dispatched.
type CommandQueue struct {
	mu                sync.Mutex
	queue             []Command
	pending           *Command
	pendingTimer      *time.Timer
	interCommandDelay time.Duration
	send              func([]byte) error
	onTimeout         func(Command)
	log               logger.Logger
}

// NewCommandQueue constructs a queue that dispatches via send and
// reports non-fatal pending-command timeouts via onTimeout.
func NewCommandQueue(interCommandDelay time.Duration, send func([]byte) error, onTimeout func(Command), log logger.Logger) *CommandQueue {
	return &CommandQueue{
		interCommandDelay: interCommandDelay,
		send:              send,
		onTimeout:         onTimeout,
		log:               log,
	}
}

// Enqueue appends a command and dispatches it immediately if the
// pending slot is free.
func (q *CommandQueue) Enqueue(cmd Command) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.queue = append(q.queue, cmd)
	q.dispatchNextLocked()
}

func (q *CommandQueue) dispatchNextLocked() {
	if q.pending != nil || len(q.queue) == 0 {
		return
	}
	cmd := q.queue[0]
	q.queue = q.queue[1:]
	q.pending = &cmd

	if err := q.send(cmd.Bytes); err != nil {
		q.log.Warnf("actuator command send failed: %v", err)
		q.pending = nil
		go q.afterInterCommandDelay()
		return
	}

	q.pendingTimer = time.AfterFunc(cmd.Timeout, func() {
		q.mu.Lock()
		if q.pending == nil {
			q.mu.Unlock()
			return
		}
		timedOut := *q.pending
		q.pending = nil
		q.mu.Unlock()

		if q.onTimeout != nil {
			q.onTimeout(timedOut)
		}
		q.afterInterCommandDelay()
	})
}

// ResolvePending clears the pending slot on ACK or NACK and schedules
// the next queued command after the inter-command delay.
func (q *CommandQueue) ResolvePending() {
	q.mu.Lock()
	if q.pendingTimer != nil {
		q.pendingTimer.Stop()
	}
	hadPending := q.pending != nil
	q.pending = nil
	q.mu.Unlock()

	if hadPending {
		q.afterInterCommandDelay()
	}
}

func (q *CommandQueue) afterInterCommandDelay() {
	time.Sleep(q.interCommandDelay)
	q.mu.Lock()
	defer q.mu.Unlock()
	q.dispatchNextLocked()
}

// HasPending reports whether a command is currently awaiting ACK/NACK.
func (q *CommandQueue) HasPending() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.pending != nil
}

// fuzzyEqual compares two floats by adding 1.0 to both sides first, so
// that a true value of 0.0 still participates in the comparison with
// its full relative significance rather than comparing against the
// epsilon's absolute magnitude.
func fuzzyEqual(a, b float64) bool {
	p1, p2 := a+1.0, b+1.0
	return math.Abs(p1-p2)*1e12 <= math.Min(math.Abs(p1), math.Abs(p2))
}
