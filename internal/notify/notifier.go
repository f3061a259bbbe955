package notify

import (
	"context"
	"sync"

	"github.com/KilimcininKorOglu/adnotify/internal/logging"
	"github.com/KilimcininKorOglu/adnotify/internal/metrics"
)

// Notifier registers watches and fans their events out to subscribers.
// Events that arrive while nobody is subscribed are dropped.
//
// Close aborts every watch on the directory server. Callers should defer
// it, or hand the Notifier to Run so that cancellation tears it down.
type Notifier struct {
	registry   *Registry
	logger     logging.Logger
	metrics    *metrics.Metrics
	bufferSize int

	mu     sync.RWMutex
	subs   map[uint64]*Subscription
	nextID uint64
	closed bool
}

// Option configures a Notifier.
type Option func(*Notifier)

// WithLogger sets the logger.
func WithLogger(l logging.Logger) Option {
	return func(n *Notifier) { n.logger = l }
}

// WithMetrics records activity in m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(n *Notifier) { n.metrics = m }
}

// WithBufferSize sets the event buffer of each subscription.
func WithBufferSize(size int) Option {
	return func(n *Notifier) { n.bufferSize = size }
}

// NewNotifier returns a Notifier issuing searches on sess.
func NewNotifier(sess Session, opts ...Option) *Notifier {
	n := &Notifier{
		logger:     logging.NewNop(),
		bufferSize: DefaultBufferSize,
		subs:       make(map[uint64]*Subscription),
	}
	for _, opt := range opts {
		opt(n)
	}
	n.registry = NewRegistry(sess, n.logger.Named("registry"), n.metrics)
	return n
}

// Register starts watching target. Each call creates a new Watch, even
// for a target that is already watched.
//
// The returned error covers only a request that could not be sent. A
// server that refuses the search, for a missing target or insufficient
// rights, answers later; the refusal reaches subscribers as a final event
// whose Err wraps ErrWatchEnded.
func (n *Notifier) Register(ctx context.Context, target string, attributes []string, scope Scope) (*Watch, error) {
	// Holding the read lock across Open keeps Close from running between
	// the closed check and the watch entering the registry.
	n.mu.RLock()
	defer n.mu.RUnlock()
	if n.closed {
		return nil, ErrClosed
	}

	w, err := n.registry.Open(ctx, target, attributes, scope, n.publish)
	if err != nil {
		n.logger.Error("registration failed", "target", target, "error", err)
		return nil, err
	}
	n.logger.Info("registered notification request", "watch_id", w.ID.String(), "target", target, "attributes", w.Attributes)
	return w, nil
}

// Subscribe returns a subscription receiving the events that match filter.
func (n *Notifier) Subscribe(filter Filter) (*Subscription, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed {
		return nil, ErrClosed
	}
	n.nextID++
	sub := newSubscription(n, n.nextID, filter, n.bufferSize)
	n.subs[sub.ID] = sub
	return sub, nil
}

// OnChange calls fn for every event, in delivery order, from a dedicated
// goroutine. The returned function stops the callbacks. On a closed
// Notifier fn is never called.
func (n *Notifier) OnChange(fn func(ChangeEvent)) (cancel func()) {
	sub, err := n.Subscribe(MatchAll())
	if err != nil {
		return func() {}
	}
	go func() {
		for ev := range sub.Events() {
			fn(ev)
		}
	}()
	return sub.Unsubscribe
}

// Watches returns the watches currently open.
func (n *Notifier) Watches() []*Watch {
	return n.registry.Watches()
}

// Close aborts every watch, then closes every subscription. It is safe to
// call more than once.
func (n *Notifier) Close() error {
	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		return nil
	}
	n.closed = true
	n.mu.Unlock()

	n.registry.CloseAll()

	n.mu.Lock()
	subs := n.subs
	n.subs = make(map[uint64]*Subscription)
	n.mu.Unlock()
	for _, sub := range subs {
		sub.close()
	}

	n.logger.Debug("notifier closed", "subscribers", len(subs))
	return nil
}

// Run blocks until ctx is done and then closes the Notifier.
func (n *Notifier) Run(ctx context.Context) error {
	<-ctx.Done()
	return n.Close()
}

func (n *Notifier) unsubscribe(id uint64) {
	n.mu.Lock()
	delete(n.subs, id)
	n.mu.Unlock()
}

// publish hands ev to every matching subscriber without blocking.
func (n *Notifier) publish(ev ChangeEvent) {
	n.mu.RLock()
	defer n.mu.RUnlock()

	matched := false
	for _, sub := range n.subs {
		if !sub.Filter.Matches(&ev) {
			continue
		}
		matched = true
		if sub.send(ev) {
			n.metrics.EventDelivered()
		} else {
			n.metrics.EventDropped()
		}
	}
	if !matched {
		n.metrics.EventDropped()
		n.logger.Debug("no subscriber for event", "watch_id", ev.WatchID.String(), "dn", ev.DN)
	}
}
