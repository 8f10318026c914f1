package neukoelln

import "time"

// Round tracks the death/respawn cycle. A local death starts a fixed
// countdown; expiry or an inbound game_restart resets the round. The
// inbound restart always wins over a running countdown.
type Round struct {
	active    bool
	remaining time.Duration
}

func NewRound() *Round {
	return &Round{active: true}
}

// Active reports whether the round is running (local player not dead).
func (r *Round) Active() bool { return r.active }

// Kill marks the round inactive and arms the countdown. A second Kill
// while counting down is ignored.
func (r *Round) Kill() {
	if !r.active {
		return
	}
	r.active = false
	r.remaining = RestartCountdown
}

// Advance burns countdown time. Reports whether the countdown just
// expired, meaning the caller must reset the round now.
func (r *Round) Advance(dt time.Duration) bool {
	if r.active {
		return false
	}
	r.remaining -= dt
	if r.remaining > 0 {
		return false
	}
	r.active = true
	return true
}

// ForceReset ends any countdown immediately, used when a peer's
// game_restart arrives.
func (r *Round) ForceReset() {
	r.active = true
	r.remaining = 0
}
