package nilo

import "testing"

func deliver(t *UnreadTracker, channelName string, n int) {
	for i := 0; i < n; i++ {
		t.Observe(Message{Channel: channelName, Username: "alice", Text: "x"})
	}
}

func TestUnreadIncrementsOnlyInactiveChannels(t *testing.T) {
	tracker := NewUnreadTracker("general")

	deliver(tracker, "feedback", 3)
	deliver(tracker, "general", 2)

	if got := tracker.Count("feedback"); got != 3 {
		t.Fatalf("counter[feedback] = %d, want 3", got)
	}
	if got := tracker.Count("general"); got != 0 {
		t.Fatalf("counter[general] = %d, want 0", got)
	}
}

func TestUnreadIgnoresChannellessMessages(t *testing.T) {
	tracker := NewUnreadTracker("general")

	tracker.Observe(Message{Username: "alice", Text: "no channel"})

	if counts := tracker.Counts(); len(counts) != 0 {
		t.Fatalf("expected no counters, got %v", counts)
	}
}

func TestActivateResetsOnlyThatChannel(t *testing.T) {
	tracker := NewUnreadTracker("general")

	deliver(tracker, "feedback", 3)
	deliver(tracker, "dm-bob", 1)

	tracker.Activate("feedback")

	if got := tracker.Count("feedback"); got != 0 {
		t.Fatalf("counter[feedback] = %d after activation, want 0", got)
	}
	if got := tracker.Count("dm-bob"); got != 1 {
		t.Fatalf("counter[dm-bob] = %d, want 1", got)
	}
	if got := tracker.Active(); got != "feedback" {
		t.Fatalf("active = %q, want feedback", got)
	}

	// Messages for the newly active channel no longer count.
	deliver(tracker, "feedback", 2)
	if got := tracker.Count("feedback"); got != 0 {
		t.Fatalf("counter[feedback] = %d, want 0", got)
	}
}
