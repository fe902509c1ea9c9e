package storage

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestChangeNotifier_DeliversSignal(t *testing.T) {
	notifier := NewChangeNotifier()
	defer notifier.Close()

	sub := notifier.Subscribe()
	defer sub.Cancel()

	notifier.Notify()

	select {
	case <-sub.C:
	case <-time.After(time.Second):
		t.Fatal("expected a signal")
	}
}

func TestChangeNotifier_CoalescesBursts(t *testing.T) {
	notifier := NewChangeNotifier()
	defer notifier.Close()

	sub := notifier.Subscribe()
	defer sub.Cancel()

	// A burst with no consumer collapses into at most one pending signal
	for i := 0; i < 10; i++ {
		notifier.Notify()
	}

	<-sub.C
	select {
	case <-sub.C:
		t.Fatal("burst should have coalesced into a single signal")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestChangeNotifier_FansOut(t *testing.T) {
	notifier := NewChangeNotifier()
	defer notifier.Close()

	first := notifier.Subscribe()
	defer first.Cancel()
	second := notifier.Subscribe()
	defer second.Cancel()

	notifier.Notify()

	for _, sub := range []*Subscription{first, second} {
		select {
		case <-sub.C:
		case <-time.After(time.Second):
			t.Fatal("every subscriber should receive the signal")
		}
	}
}

func TestChangeNotifier_CancelledSubscriberIsSkipped(t *testing.T) {
	notifier := NewChangeNotifier()
	defer notifier.Close()

	sub := notifier.Subscribe()
	sub.Cancel()

	// Safe to cancel twice, and to notify with no live subscribers
	sub.Cancel()
	assert.NotPanics(t, func() { notifier.Notify() })
}
