package nilo

import "sync"

// UnreadTracker keeps per-channel unread counters derived from the
// live delivery stream. State is client-local and ephemeral: it is
// rebuilt from scratch whenever the client reinitializes.
type UnreadTracker struct {
	mu     sync.Mutex
	active string
	counts map[string]int
}

// NewUnreadTracker creates a tracker with the given active channel.
func NewUnreadTracker(active string) *UnreadTracker {
	return &UnreadTracker{
		active: active,
		counts: make(map[string]int),
	}
}

// Observe records a delivered message. Messages for the active
// channel, or with no channel at all, never change any counter.
func (t *UnreadTracker) Observe(msg Message) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if msg.Channel == "" || msg.Channel == t.active {
		return
	}
	t.counts[msg.Channel]++
}

// Activate switches the active channel and resets its counter to
// zero, leaving all other counters untouched.
func (t *UnreadTracker) Activate(channelName string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.active = channelName
	delete(t.counts, channelName)
}

// Active returns the currently active channel.
func (t *UnreadTracker) Active() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.active
}

// Count returns the unread counter for a channel.
func (t *UnreadTracker) Count(channelName string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.counts[channelName]
}

// Counts returns a copy of all non-zero counters.
func (t *UnreadTracker) Counts() map[string]int {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make(map[string]int, len(t.counts))
	for name, n := range t.counts {
		out[name] = n
	}
	return out
}
