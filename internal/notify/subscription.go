package notify

import (
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// DefaultBufferSize is the event buffer of each subscription.
const DefaultBufferSize = 64

// Filter selects the events a subscription receives. The zero Filter
// matches everything.
type Filter struct {
	// WatchID restricts events to one watch when not uuid.Nil.
	WatchID uuid.UUID
	// BaseDN and Scope restrict events by the reported entry DN. An empty
	// BaseDN matches all DNs.
	BaseDN string
	Scope  Scope
}

// MatchAll returns a filter that matches all events.
func MatchAll() Filter {
	return Filter{}
}

// MatchWatch returns a filter for the events of w only.
func MatchWatch(w *Watch) Filter {
	return Filter{WatchID: w.ID}
}

// MatchSubtree returns a filter for entries at or below baseDN.
func MatchSubtree(baseDN string) Filter {
	return Filter{BaseDN: baseDN, Scope: ScopeSubtree}
}

// Matches reports whether ev passes the filter.
func (f Filter) Matches(ev *ChangeEvent) bool {
	if ev == nil {
		return false
	}
	if f.WatchID != uuid.Nil && ev.WatchID != f.WatchID {
		return false
	}
	if f.BaseDN == "" {
		return true
	}

	dn := strings.ToLower(ev.DN)
	base := strings.ToLower(f.BaseDN)

	switch f.Scope {
	case ScopeBase:
		return dn == base
	case ScopeOneLevel:
		return isDirectChild(dn, base)
	case ScopeSubtree:
		return dn == base || strings.HasSuffix(dn, ","+base)
	}
	return false
}

func isDirectChild(dn, base string) bool {
	suffix := "," + base
	if !strings.HasSuffix(dn, suffix) {
		return false
	}
	prefix := strings.TrimSuffix(dn, suffix)
	return prefix != "" && !strings.Contains(prefix, ",")
}

// Subscription receives change events from a Notifier.
type Subscription struct {
	ID      uint64
	Filter  Filter
	Created time.Time

	n  *Notifier
	ch chan ChangeEvent

	mu      sync.Mutex
	closed  bool
	dropped atomic.Uint64
}

func newSubscription(n *Notifier, id uint64, filter Filter, bufferSize int) *Subscription {
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}
	return &Subscription{
		ID:      id,
		Filter:  filter,
		Created: time.Now(),
		n:       n,
		ch:      make(chan ChangeEvent, bufferSize),
	}
}

// Events returns the channel events arrive on. It is closed by
// Unsubscribe and when the Notifier closes.
func (s *Subscription) Events() <-chan ChangeEvent {
	return s.ch
}

// Unsubscribe detaches the subscription and closes its channel. Safe to
// call more than once.
func (s *Subscription) Unsubscribe() {
	s.n.unsubscribe(s.ID)
	s.close()
}

// Dropped returns the number of events lost because the buffer was full.
func (s *Subscription) Dropped() uint64 {
	return s.dropped.Load()
}

// send delivers ev without blocking. It returns false if the subscription
// is closed or its buffer is full.
func (s *Subscription) send(ev ChangeEvent) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	select {
	case s.ch <- ev:
		return true
	default:
		s.dropped.Add(1)
		return false
	}
}

func (s *Subscription) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.ch)
	}
}
