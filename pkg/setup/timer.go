package setup

import (
	"sync"
	"time"
)

// sessionTimer is the single-shot provisioning deadline. It exists only
// while a session is active and fires at most once; Stop disarms it on
// every session-end path so no stale callback can run against a
// torn-down session.
type sessionTimer struct {
	mu       sync.Mutex
	timer    *time.Timer
	armed    bool
	onExpire func()
}

// newSessionTimer arms a deadline that calls onExpire after d.
func newSessionTimer(d time.Duration, onExpire func()) *sessionTimer {
	t := &sessionTimer{
		armed:    true,
		onExpire: onExpire,
	}
	t.timer = time.AfterFunc(d, t.expire)
	return t
}

func (t *sessionTimer) expire() {
	t.mu.Lock()
	if !t.armed {
		t.mu.Unlock()
		return
	}
	t.armed = false
	fn := t.onExpire
	t.mu.Unlock()

	fn()
}

// Stop disarms the deadline. Safe to call repeatedly and after expiry.
func (t *sessionTimer) Stop() {
	t.mu.Lock()
	if !t.armed {
		t.mu.Unlock()
		return
	}
	t.armed = false
	timer := t.timer
	t.mu.Unlock()

	timer.Stop()
}
