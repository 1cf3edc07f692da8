package progress

import "sync"

// broadcastCap bounds each subscriber's backlog. A slow subscriber that falls
// behind this many updates silently loses the intermediate ones — it will
// still observe the latest state via Current() or the next update that does
// make it through.
const broadcastCap = 16

// Tracker is the single owner of a restore's progress state. Exactly one
// worker goroutine should mutate a Tracker; any number of goroutines may
// read it concurrently via a Handle.
type Tracker struct {
	mu          sync.Mutex
	state       Progress
	subscribers []chan Progress
}

// NewTracker returns a Tracker initialized to the default (Collecting,
// zero-data) state.
func NewTracker() *Tracker {
	return &Tracker{}
}

// SetState replaces the entire snapshot — used once totals become known —
// and broadcasts the new state to all subscribers.
func (t *Tracker) SetState(p Progress) {
	t.mu.Lock()
	t.state = p
	t.mu.Unlock()
	t.broadcast(p)
}

// SetStatus mutates only the status field and broadcasts the result.
func (t *Tracker) SetStatus(s Status) {
	t.mu.Lock()
	t.state.Status = s
	snapshot := t.state
	t.mu.Unlock()
	t.broadcast(snapshot)
}

// Add applies a Count to the tracked state and broadcasts the result.
// A zero count is a no-op and is not broadcast.
func (t *Tracker) Add(c Count) {
	if c.Count == 0 {
		return
	}
	t.mu.Lock()
	t.state.Apply(c)
	snapshot := t.state
	t.mu.Unlock()
	t.broadcast(snapshot)
}

func (t *Tracker) broadcast(p Progress) {
	t.mu.Lock()
	subs := t.subscribers
	t.mu.Unlock()

	for _, ch := range subs {
		select {
		case ch <- p:
		default:
			// Lagged subscriber: drop the update. It will see the latest
			// value on its next successful receive or via Current().
		}
	}
}

// Handle gives read access to a Tracker: a snapshot read (taken under the
// tracker's mutex, not lock-free) plus the ability to open a new broadcast
// subscription.
type Handle struct {
	t *Tracker
}

// Handle returns a Handle bound to this Tracker.
func (t *Tracker) Handle() Handle {
	return Handle{t: t}
}

// Current returns the latest snapshot.
func (h Handle) Current() Progress {
	h.t.mu.Lock()
	defer h.t.mu.Unlock()
	return h.t.state
}

// Subscription is an open broadcast subscription. Callers must call Close
// when done to release the subscriber slot.
type Subscription struct {
	t  *Tracker
	ch chan Progress
}

// Subscribe opens a new broadcast subscription, bounded to broadcastCap
// pending updates.
func (h Handle) Subscribe() *Subscription {
	ch := make(chan Progress, broadcastCap)
	h.t.mu.Lock()
	h.t.subscribers = append(h.t.subscribers, ch)
	h.t.mu.Unlock()
	return &Subscription{t: h.t, ch: ch}
}

// C returns the channel of progress updates. The channel is never closed —
// callers select on this alongside a context's Done channel and stop reading
// once the restore reaches a terminal status.
func (s *Subscription) C() <-chan Progress {
	return s.ch
}

// Close unregisters the subscription from the tracker's broadcast list.
func (s *Subscription) Close() {
	s.t.mu.Lock()
	defer s.t.mu.Unlock()
	for i, ch := range s.t.subscribers {
		if ch == s.ch {
			s.t.subscribers = append(s.t.subscribers[:i], s.t.subscribers[i+1:]...)
			break
		}
	}
}
