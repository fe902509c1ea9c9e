package storage

import (
	"sync"
)

// Subscription is a cancellable stream of "something changed" signals. The
// channel carries no payload; subscribers are expected to re-query the store.
type Subscription struct {
	C chan struct{}

	notifier *ChangeNotifier
	id       int
	once     sync.Once
}

// Cancel removes the subscription from the notifier. It is safe to call more
// than once; the signal channel is closed on the first call.
func (s *Subscription) Cancel() {
	s.once.Do(func() {
		s.notifier.remove(s.id)
		close(s.C)
	})
}

// ChangeNotifier fans out row-level change signals from the capsule table to
// any number of subscribers. Signals are coalesced: a subscriber that has not
// drained its pending signal does not accumulate further ones.
type ChangeNotifier struct {
	mu     sync.Mutex
	subs   map[int]*Subscription
	nextID int
	closed bool
}

// NewChangeNotifier creates a new change notifier
func NewChangeNotifier() *ChangeNotifier {
	return &ChangeNotifier{
		subs: make(map[int]*Subscription),
	}
}

// Subscribe registers a new subscriber and returns its subscription
func (n *ChangeNotifier) Subscribe() *Subscription {
	n.mu.Lock()
	defer n.mu.Unlock()

	sub := &Subscription{
		C:        make(chan struct{}, 1),
		notifier: n,
		id:       n.nextID,
	}
	n.nextID++

	if n.closed {
		// A closed notifier hands out subscriptions that never fire, so
		// shutdown ordering does not matter to callers.
		return sub
	}

	n.subs[sub.id] = sub
	return sub
}

// Notify delivers a change signal to every subscriber without blocking.
// A subscriber with an undrained signal is skipped; the pending signal
// already covers this change.
func (n *ChangeNotifier) Notify() {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.closed {
		return
	}

	for _, sub := range n.subs {
		select {
		case sub.C <- struct{}{}:
		default:
		}
	}
}

// Close stops signal delivery and detaches all subscribers
func (n *ChangeNotifier) Close() {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.closed = true
	n.subs = make(map[int]*Subscription)
}

func (n *ChangeNotifier) remove(id int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	delete(n.subs, id)
}
