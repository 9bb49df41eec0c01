package game

import (
	"time"

	"github.com/jonboulle/clockwork"
)

// TimerKind distinguishes the two countdowns a question can be under.
type TimerKind string

const (
	// TimerQuestionSplash counts down the window for buzzing in.
	TimerQuestionSplash TimerKind = "questionSplash"
	// TimerPlayerAnswer counts down the buzzed player's answer deadline.
	TimerPlayerAnswer TimerKind = "playerAnswer"
)

// expiry is the synthetic event a fired timer injects into the engine queue.
// The epoch is captured at start time; the engine discards stale fires.
type expiry struct {
	Kind  TimerKind
	Epoch uint64
}

// countdown runs at most one pending timer for the session. Starting a timer of
// either kind first cancels any still-pending one. All methods are called from
// the engine goroutine only.
type countdown struct {
	clock  clockwork.Clock
	fire   func(expiry)
	timer  clockwork.Timer
	cancel chan struct{}
}

func newCountdown(clock clockwork.Clock, fire func(expiry)) *countdown {
	return &countdown{clock: clock, fire: fire}
}

func (c *countdown) start(kind TimerKind, d time.Duration, epoch uint64) {
	c.stop()

	timer := c.clock.NewTimer(d)
	cancel := make(chan struct{})
	c.timer = timer
	c.cancel = cancel

	go func() {
		select {
		case <-timer.Chan():
			c.fire(expiry{Kind: kind, Epoch: epoch})
		case <-cancel:
		}
	}()
}

// stop cancels the pending timer, if any, before the caller starts another or
// resets the session. Stopping synchronously keeps the one-active-timer
// invariant: the old timer is deregistered before a new one exists.
func (c *countdown) stop() {
	if c.cancel != nil {
		close(c.cancel)
		stopAndDrainTimer(c.timer)
		c.cancel = nil
		c.timer = nil
	}
}

// stopAndDrainTimer stops a timer and drains its channel so the waiting
// goroutine cannot leak, per the time.Timer.Stop documentation.
func stopAndDrainTimer(timer clockwork.Timer) {
	if !timer.Stop() {
		select {
		case <-timer.Chan():
		default:
		}
	}
}
