package detection

import (
	"context"
	"testing"
	"time"
)

func TestWatcherNotifiesOnVersionBump(t *testing.T) {
	store := NewMemoryRuleStore()
	w := NewRulesWatcher(store, time.Second, discardLogger())

	// Drive poll directly instead of waiting on the ticker.
	last := w.poll(-1)

	rule := Rule{Kind: KindThresholdAmount, Threshold: 100, Active: true}
	if err := store.Create(context.Background(), &rule); err != nil {
		t.Fatal(err)
	}

	last = w.poll(last)
	select {
	case v := <-w.Changes():
		if v != 1 {
			t.Errorf("change version = %d, want 1", v)
		}
	default:
		t.Fatal("expected a change notification after rule creation")
	}

	// No mutation, no notification.
	w.poll(last)
	select {
	case v := <-w.Changes():
		t.Errorf("unexpected notification %d without a mutation", v)
	default:
	}
}

func TestWatcherCoalescesUnreadChanges(t *testing.T) {
	store := NewMemoryRuleStore()
	w := NewRulesWatcher(store, time.Second, discardLogger())

	last := w.poll(-1)
	for i := 0; i < 3; i++ {
		r := Rule{Kind: KindThresholdAmount, Threshold: float64(i), Active: true}
		if err := store.Create(context.Background(), &r); err != nil {
			t.Fatal(err)
		}
		last = w.poll(last)
	}

	// A slow reader sees only the latest version.
	select {
	case v := <-w.Changes():
		if v != 3 {
			t.Errorf("coalesced version = %d, want 3", v)
		}
	default:
		t.Fatal("expected a pending notification")
	}
}

func TestWatcherStartStop(t *testing.T) {
	store := NewMemoryRuleStore()
	w := NewRulesWatcher(store, time.Second, discardLogger())
	w.Start()
	w.Stop() // must not hang
}
