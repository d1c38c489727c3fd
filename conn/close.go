package conn

import (
	"time"

	"github.com/caozhiyi/quicx-go/frame"
)

// Close is the application-initiated path into Closing.
func (c *Conn) Close(appCode uint64, reason string) {
	c.closeLocally(appCode, true, reason)
}

// closeLocally drives New/WaitInitial/Handshaking/Connected -> Closing,
// recording the CONNECTION_CLOSE this connection will (re)transmit until
// the 3xPTO closing timer moves it to Closed.
func (c *Conn) closeLocally(code uint64, appErr bool, reason string) {
	if c.state == StateClosing || c.state == StateDraining || c.state == StateClosed {
		return
	}
	c.state = StateClosing
	c.closeCode = code
	c.closeApp = appErr
	c.closeReason = reason
	c.closeLocal = true
	pto := c.detector.RTT.PTO(c.cfg.MaxAckDelay)
	c.timers.Add(time.Now().Add(3*pto), func(time.Time) {
		if c.state == StateClosing {
			c.state = StateClosed
		}
	})
	if c.sink != nil {
		c.sink.OnConnectionClose(code, appErr, reason)
	}
}

// onPeerConnectionClose implements Closing -> Draining on receipt of a
// peer CONNECTION_CLOSE, and also handles the Connected -> Closing ->
// Draining fast path for an unprompted peer close.
func (c *Conn) onPeerConnectionClose(now time.Time, f frame.ConnectionClose) {
	if c.state == StateClosed || c.state == StateDraining {
		return
	}
	if c.state != StateClosing {
		c.state = StateClosing
		c.closeCode = f.ErrorCode
		c.closeApp = f.IsApplication
		c.closeReason = f.Reason
		c.closeLocal = false
		if c.sink != nil {
			c.sink.OnConnectionClose(f.ErrorCode, f.IsApplication, f.Reason)
		}
	}
	c.enterDraining(now)
}

// closeConnectionCloseFrame builds the CONNECTION_CLOSE frame that
// buildCloseDatagram sends during Closing.
func (c *Conn) closeConnectionCloseFrame() frame.Frame {
	return &frame.ConnectionClose{IsApplication: c.closeApp, ErrorCode: c.closeCode, Reason: c.closeReason}
}

// enterDraining arms the 3xPTO drain timer and moves to Draining; no
// further packets are sent once draining (RFC 9000 §10.2).
func (c *Conn) enterDraining(now time.Time) {
	c.state = StateDraining
	pto := c.detector.RTT.PTO(c.cfg.MaxAckDelay)
	c.drainDeadline = now.Add(3 * pto)
	c.haveDrain = true
	c.timers.Add(c.drainDeadline, func(t time.Time) { c.state = StateClosed })
}

// armIdleTimer (re)schedules the idle-timeout callback, cancelling any
// previous one: any ack-eliciting packet received or sent resets the
// timer.
func (c *Conn) armIdleTimer(now time.Time) {
	timeout := c.effectiveIdleTimeout()
	if timeout <= 0 {
		return
	}
	if c.haveIdleTimer {
		c.timers.Remove(c.idleTimerID)
	}
	c.lastActivity = now
	c.idleTimerID = c.timers.Add(now.Add(timeout), c.onIdleTimeout)
	c.haveIdleTimer = true
}

// effectiveIdleTimeout is min(local, peer), ignoring a side that
// configured 0 (disabled).
func (c *Conn) effectiveIdleTimeout() time.Duration {
	local := c.cfg.MaxIdleTimeout
	if !c.havePeerParams || c.peerParams.MaxIdleTimeoutMs == 0 {
		return local
	}
	peer := time.Duration(c.peerParams.MaxIdleTimeoutMs) * time.Millisecond
	if local == 0 || peer < local {
		return peer
	}
	return local
}

// onIdleTimeout moves the connection to Closed without sending
// CONNECTION_CLOSE; expiry is silent by design.
func (c *Conn) onIdleTimeout(now time.Time) {
	if c.state == StateClosed {
		return
	}
	c.state = StateClosed
	if c.sink != nil {
		c.sink.OnConnectionClose(0, false, "idle timeout")
	}
}

// Tick runs every due timer callback (ACK delay, loss detection, PTO,
// idle, drain) and returns the next deadline the event loop should wait
// for, matching the timer.Wheel contract used at loop boundaries.
func (c *Conn) Tick(now time.Time) (time.Time, bool) {
	c.timers.Run(now)
	return c.timers.NextDeadline()
}
