package bond

import (
	"net"
	"time"
)

// Link is per-socket bonding state: remote endpoint, weight, and health
// bookkeeping. All operations are pure local state mutation — no I/O — per
// spec.md §4.3. LinkManager is the sole owner; never shared across
// goroutines, so no synchronization is needed here (spec.md §5).
type Link struct {
	Name   string
	Weight uint32

	remote        net.Addr
	downSince     time.Time
	hasDownSince  bool
	lastRx        time.Time
	hasLastRx     bool
	lastPingSent  time.Time
	hasLastPing   bool
	lastRTTMillis uint64
	hasRTT        bool
}

// NewLink creates a link with the given name and weight. remote is nil for
// a passive link (no configured endpoint yet).
func NewLink(name string, weight uint32, remote net.Addr) *Link {
	return &Link{Name: name, Weight: weight, remote: remote}
}

// Remote returns the link's current peer endpoint, or nil if unset
// (invariant 1 of spec.md §3: such a link is never a send target).
func (l *Link) Remote() net.Addr { return l.remote }

// SetRemote unconditionally sets the floated endpoint, independent of rx
// bookkeeping. Used by Manager.UpdateRemote for endpoint floating; the
// initial DNS-resolved endpoint is passed to NewLink instead.
func (l *Link) SetRemote(addr net.Addr) { l.remote = addr }

// LastRTTMillis returns the most recently measured round trip, and whether
// one has ever been recorded.
func (l *Link) LastRTTMillis() (uint64, bool) { return l.lastRTTMillis, l.hasRTT }

// DownSince returns when the link most recently transitioned to down, and
// whether it is currently in a down period.
func (l *Link) DownSince() (time.Time, bool) { return l.downSince, l.hasDownSince }

// IsAvailable implements the invariant-2 availability check of spec.md
// §3/§4.3:
//
//  1. No remote ⇒ unavailable.
//  2. If health probing is enabled (healthTimeout > 0) and too much silence
//     has elapsed since the last rx, or since the last ping sent with no rx
//     ever recorded, mark down now.
//  3. If currently within the backoff window since down_since, unavailable.
//  4. Otherwise available.
//
// now is supplied by the caller (via clockwork.Clock) so tests can drive it
// deterministically; onMarkDown, if non-nil, is called exactly once the
// moment the link transitions from up to down (the "log once" requirement).
func (l *Link) IsAvailable(now time.Time, errorBackoff, healthTimeout time.Duration, onMarkDown func(reason string)) bool {
	if l.remote == nil {
		return false
	}

	if healthTimeout > 0 {
		switch {
		case l.hasLastRx:
			if now.Sub(l.lastRx) > healthTimeout {
				l.markDown(now, "no rx", onMarkDown)
				return false
			}
		case l.hasLastPing:
			if now.Sub(l.lastPingSent) > healthTimeout {
				l.markDown(now, "no pong", onMarkDown)
				return false
			}
		default:
			// Neither rx nor ping ever recorded: silence alone does not
			// mark the link down.
		}
	}

	if l.hasDownSince && now.Sub(l.downSince) < errorBackoff {
		return false
	}

	return true
}

func (l *Link) markDown(now time.Time, reason string, onMarkDown func(string)) {
	wasUp := !l.hasDownSince
	l.hasDownSince = true
	l.downSince = now
	if wasUp && onMarkDown != nil {
		onMarkDown(reason)
	}
}

// RecordRx marks a packet (of any kind) received at now, floats the
// down-since state clear, and reports via onRecover whether this is a
// recovery transition.
func (l *Link) RecordRx(now time.Time, onRecover func()) {
	l.lastRx = now
	l.hasLastRx = true
	l.clearDown(onRecover)
}

// RecordPing marks a PING emitted at now.
func (l *Link) RecordPing(now time.Time) {
	l.lastPingSent = now
	l.hasLastPing = true
}

// RecordRTT stores the most recently measured round trip.
func (l *Link) RecordRTT(ms uint64) {
	l.lastRTTMillis = ms
	l.hasRTT = true
}

// RecordSendOK clears a down transition after a successful send.
func (l *Link) RecordSendOK(onRecover func()) {
	l.clearDown(onRecover)
}

// RecordSendError marks the link down at now after a failed send attempt.
func (l *Link) RecordSendError(now time.Time, onMarkDown func(string)) {
	l.markDown(now, "send error", onMarkDown)
}

func (l *Link) clearDown(onRecover func()) {
	if l.hasDownSince {
		l.hasDownSince = false
		if onRecover != nil {
			onRecover()
		}
	}
}
