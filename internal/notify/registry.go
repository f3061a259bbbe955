package notify

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"

	"github.com/KilimcininKorOglu/adnotify/internal/ldap"
	"github.com/KilimcininKorOglu/adnotify/internal/logging"
	"github.com/KilimcininKorOglu/adnotify/internal/metrics"
	"github.com/KilimcininKorOglu/adnotify/internal/session"
)

// Session is the part of a directory connection the registry needs.
// *session.Conn implements it.
type Session interface {
	Submit(ctx context.Context, req *session.SearchRequest) (*session.Operation, error)
	PartialResults(h session.Handle) ([]*ldap.SearchResultEntry, error)
	Abort(h session.Handle) error
}

type openWatch struct {
	watch *Watch
	op    *session.Operation
	stop  chan struct{}
	done  chan struct{}
}

// Registry tracks outstanding notification searches by handle and runs
// one pump goroutine per search that turns partial results into events.
//
// The open set is the only state shared between pumps and callers. A
// handle removed from it is never delivered to again.
type Registry struct {
	sess    Session
	logger  logging.Logger
	metrics *metrics.Metrics

	mu   sync.Mutex
	open map[session.Handle]*openWatch
}

// NewRegistry returns an empty registry. logger and m may be nil.
func NewRegistry(sess Session, logger logging.Logger, m *metrics.Metrics) *Registry {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Registry{
		sess:    sess,
		logger:  logger,
		metrics: m,
		open:    make(map[session.Handle]*openWatch),
	}
}

// Open submits a notification search for target and starts delivering its
// results to deliver. The search has no time limit. A *RegistrationError
// means the request was never sent; server-side refusals arrive through
// deliver as an event wrapping ErrWatchEnded.
//
// deliver is called from the watch's pump goroutine, one event at a time in
// the order the session reported them. It must not block for long and must
// not call CloseAll.
func (r *Registry) Open(ctx context.Context, target string, attributes []string, scope Scope, deliver func(ChangeEvent)) (*Watch, error) {
	attrs := uniqueAttributes(attributes)
	req := &session.SearchRequest{
		BaseDN:     target,
		Scope:      scope.ldap(),
		Filter:     ldap.PresentFilter("objectClass"),
		Attributes: attrs,
		Controls:   []ldap.Control{ldap.NotificationControl()},
	}

	op, err := r.sess.Submit(ctx, req)
	if err != nil {
		r.metrics.RegistrationFailed()
		return nil, &RegistrationError{Target: target, Err: err}
	}

	w := &Watch{
		ID:         uuid.New(),
		Target:     target,
		Attributes: attrs,
		Scope:      scope,
		Handle:     op.Handle,
		Created:    time.Now(),
	}
	ow := &openWatch{
		watch: w,
		op:    op,
		stop:  make(chan struct{}),
		done:  make(chan struct{}),
	}

	r.mu.Lock()
	r.open[op.Handle] = ow
	r.mu.Unlock()
	r.metrics.WatchOpened()

	r.logger.Debug("watch opened", "watch_id", w.ID.String(), "target", target, "scope", scope.String(), "handle", int(op.Handle))
	go r.pump(ow, deliver)
	return w, nil
}

// CloseAll aborts every open search and waits for the pumps to exit.
// Abort failures are logged and otherwise ignored. Calling it again with
// nothing open does nothing.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	open := r.open
	r.open = make(map[session.Handle]*openWatch)
	r.mu.Unlock()

	if len(open) == 0 {
		return
	}

	var result *multierror.Error
	for h, ow := range open {
		close(ow.stop)
		err := r.sess.Abort(h)
		if errors.Is(err, session.ErrUnknownHandle) {
			// Already finished on the session side.
			err = nil
		}
		if err != nil {
			result = multierror.Append(result, fmt.Errorf("abort %s: %w", ow.watch, err))
		}
		r.metrics.WatchAborted(err)
	}
	for _, ow := range open {
		<-ow.done
	}

	if err := result.ErrorOrNil(); err != nil {
		r.logger.Debug("ignoring abort failures", "error", err)
	}
	r.logger.Debug("closed watches", "count", len(open))
}

// Len returns the number of open watches.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.open)
}

// Watches returns the open watches in no particular order.
func (r *Registry) Watches() []*Watch {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Watch, 0, len(r.open))
	for _, ow := range r.open {
		out = append(out, ow.watch)
	}
	return out
}

func (r *Registry) isOpen(h session.Handle) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.open[h]
	return ok
}

// remove deletes h from the open set and reports whether it was there.
func (r *Registry) remove(h session.Handle) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.open[h]; !ok {
		return false
	}
	delete(r.open, h)
	return true
}

func (r *Registry) pump(ow *openWatch, deliver func(ChangeEvent)) {
	defer close(ow.done)

	for {
		select {
		case <-ow.stop:
			return
		case _, ok := <-ow.op.Ready:
			if !ok {
				r.finish(ow, deliver)
				return
			}
			r.drain(ow, deliver)
		}
	}
}

// drain fetches everything accumulated for the watch and delivers it.
// Results for a handle no longer in the open set are discarded.
func (r *Registry) drain(ow *openWatch, deliver func(ChangeEvent)) {
	h := ow.watch.Handle
	if !r.isOpen(h) {
		return
	}

	start := time.Now()
	entries, err := r.sess.PartialResults(h)
	r.metrics.ObserveFetch(start, err)
	if err != nil {
		r.logger.Warn("fetching partial results failed", "watch_id", ow.watch.ID.String(), "handle", int(h), "error", err)
		if r.isOpen(h) {
			deliver(errorEvent(ow.watch, err))
		}
		return
	}

	for _, entry := range entries {
		if !r.isOpen(h) {
			return
		}
		deliver(newEvent(ow.watch, entry))
	}
}

// finish handles a search the session completed without CloseAll: the
// server sent a final result or the connection dropped.
func (r *Registry) finish(ow *openWatch, deliver func(ChangeEvent)) {
	r.drain(ow, deliver)

	h := ow.watch.Handle
	if !r.remove(h) {
		return
	}

	_, err := ow.op.Result()
	r.metrics.WatchEnded(err)
	if errors.Is(err, session.ErrAbandoned) {
		return
	}

	ended := ErrWatchEnded
	if err != nil {
		ended = fmt.Errorf("%w: %w", ErrWatchEnded, err)
	}
	r.logger.Warn("watch ended", "watch_id", ow.watch.ID.String(), "target", ow.watch.Target, "error", ended)
	deliver(errorEvent(ow.watch, ended))
}
