// Package presence tracks ephemeral typing state: a trailing debounce
// on the local user's keystrokes for outbound signaling, and a
// self-expiring display flag for the remote user's inbound signals.
package presence

import (
	"sync"
	"time"
)

type Config struct {
	// QuietPeriod is how long after the last keystroke a typing=false
	// signal is emitted.
	QuietPeriod time.Duration

	// DisplayExpiry bounds how long a remote typing indicator stays
	// visible without a follow-up signal, healing lost stop events.
	DisplayExpiry time.Duration
}

// Coordinator runs the two independent typing state machines. Emit is
// called with the outbound signal value; OnDisplayChange (optional) is
// called whenever the remote indicator flips.
type Coordinator struct {
	cfg             Config
	localUserID     string
	emit            func(isTyping bool)
	onDisplayChange func(userID string, visible bool)

	mu         sync.Mutex
	quietTimer *time.Timer
	expiry     *time.Timer
	displayed  bool
	remoteUser string
}

func NewCoordinator(cfg Config, localUserID string, emit func(isTyping bool)) *Coordinator {
	return &Coordinator{
		cfg:         cfg,
		localUserID: localUserID,
		emit:        emit,
	}
}

// SetDisplayHandler installs the inbound display callback. Must be
// called before any events flow.
func (c *Coordinator) SetDisplayHandler(fn func(userID string, visible bool)) {
	c.onDisplayChange = fn
}

// InputChanged feeds a change of the local composer. Non-empty input
// signals typing=true immediately and re-arms the quiet timer; empty
// input signals typing=false right away.
func (c *Coordinator) InputChanged(value string) {
	c.mu.Lock()
	if value == "" {
		c.stopQuietTimerLocked()
		c.mu.Unlock()
		c.emit(false)
		return
	}

	c.stopQuietTimerLocked()
	c.quietTimer = time.AfterFunc(c.cfg.QuietPeriod, func() {
		c.emit(false)
	})
	c.mu.Unlock()

	c.emit(true)
}

// MessageSubmitted signals typing=false immediately and cancels the
// quiet timer so no stale signal fires after a send.
func (c *Coordinator) MessageSubmitted() {
	c.mu.Lock()
	c.stopQuietTimerLocked()
	c.mu.Unlock()
	c.emit(false)
}

// HandleRemoteTyping applies an inbound typing signal. Signals from
// the local user are ignored. A true signal (re)arms the expiry timer.
func (c *Coordinator) HandleRemoteTyping(userID string, isTyping bool) {
	if userID == c.localUserID {
		return
	}

	c.mu.Lock()
	c.stopExpiryLocked()
	changed := c.displayed != isTyping
	c.displayed = isTyping
	c.remoteUser = userID
	if isTyping {
		c.expiry = time.AfterFunc(c.cfg.DisplayExpiry, func() {
			c.clearDisplay()
		})
	}
	fn := c.onDisplayChange
	c.mu.Unlock()

	if changed && fn != nil {
		fn(userID, isTyping)
	}
}

// MessageArrived clears the displayed indicator: an actual message
// implies typing has stopped.
func (c *Coordinator) MessageArrived() {
	c.clearDisplay()
}

// RemoteTyping reports whether the remote indicator is visible.
func (c *Coordinator) RemoteTyping() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.displayed
}

// Reset cancels both timers and hides the indicator without emitting
// anything. Used when the active conversation switches so stale timers
// cannot fire into the new conversation's state.
func (c *Coordinator) Reset() {
	c.mu.Lock()
	c.stopQuietTimerLocked()
	c.stopExpiryLocked()
	c.displayed = false
	c.remoteUser = ""
	c.mu.Unlock()
}

func (c *Coordinator) clearDisplay() {
	c.mu.Lock()
	c.stopExpiryLocked()
	changed := c.displayed
	c.displayed = false
	user := c.remoteUser
	fn := c.onDisplayChange
	c.mu.Unlock()

	if changed && fn != nil {
		fn(user, false)
	}
}

func (c *Coordinator) stopQuietTimerLocked() {
	if c.quietTimer != nil {
		c.quietTimer.Stop()
		c.quietTimer = nil
	}
}

func (c *Coordinator) stopExpiryLocked() {
	if c.expiry != nil {
		c.expiry.Stop()
		c.expiry = nil
	}
}
