package notify

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/KilimcininKorOglu/adnotify/internal/ldap"
	"github.com/KilimcininKorOglu/adnotify/internal/session"
)

const (
	targetX = "DC=srv5,DC=test.local,CN=MicrosoftDNS,DC=DomainDnsZones,DC=test,DC=local"
	targetY = "DC=web,DC=test.local,CN=MicrosoftDNS,DC=DomainDnsZones,DC=test,DC=local"
)

// fakeSession is a scripted Session. Tests push entries to a handle and
// end operations explicitly.
type fakeSession struct {
	mu        sync.Mutex
	next      int
	ops       map[session.Handle]*fakeOp
	submitted []*session.SearchRequest
	aborts    []session.Handle

	submitErr error
	fetchErr  error
	// abortErr makes Abort fail without finishing the operation, like a
	// session whose connection is already broken.
	abortErr error
}

type fakeOp struct {
	ready    chan struct{}
	entries  []*ldap.SearchResultEntry
	finished bool
	err      error
}

func newFakeSession() *fakeSession {
	return &fakeSession{ops: make(map[session.Handle]*fakeOp)}
}

func (f *fakeSession) Submit(ctx context.Context, req *session.SearchRequest) (*session.Operation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.submitErr != nil {
		return nil, f.submitErr
	}
	f.next++
	h := session.Handle(f.next)
	op := &fakeOp{ready: make(chan struct{}, 1)}
	f.ops[h] = op
	f.submitted = append(f.submitted, req)
	return session.NewOperation(h, op.ready, func() (*ldap.LDAPResult, error) {
		f.mu.Lock()
		defer f.mu.Unlock()
		return nil, op.err
	}), nil
}

func (f *fakeSession) PartialResults(h session.Handle) ([]*ldap.SearchResultEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	op, ok := f.ops[h]
	if !ok {
		return nil, session.ErrUnknownHandle
	}
	entries := op.entries
	op.entries = nil
	return entries, nil
}

func (f *fakeSession) Abort(h session.Handle) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.aborts = append(f.aborts, h)
	if f.abortErr != nil {
		return f.abortErr
	}
	op, ok := f.ops[h]
	if !ok || op.finished {
		return session.ErrUnknownHandle
	}
	f.finishLocked(op, session.ErrAbandoned)
	return nil
}

func (f *fakeSession) push(h session.Handle, entries ...*ldap.SearchResultEntry) {
	f.mu.Lock()
	defer f.mu.Unlock()
	op := f.ops[h]
	if op.finished {
		return
	}
	op.entries = append(op.entries, entries...)
	select {
	case op.ready <- struct{}{}:
	default:
	}
}

func (f *fakeSession) end(h session.Handle, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.finishLocked(f.ops[h], err)
}

func (f *fakeSession) finishLocked(op *fakeOp, err error) {
	if op.finished {
		return
	}
	op.finished = true
	op.err = err
	close(op.ready)
}

func (f *fakeSession) abortCount() map[session.Handle]int {
	f.mu.Lock()
	defer f.mu.Unlock()
	counts := make(map[session.Handle]int)
	for _, h := range f.aborts {
		counts[h]++
	}
	return counts
}

func (f *fakeSession) lastRequest() *session.SearchRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.submitted[len(f.submitted)-1]
}

func entry(dn string, attrs ...ldap.PartialAttribute) *ldap.SearchResultEntry {
	return &ldap.SearchResultEntry{ObjectName: dn, Attributes: attrs}
}

func dnsRecord(values ...[]byte) ldap.PartialAttribute {
	return ldap.PartialAttribute{Type: "dnsRecord", Values: values}
}

var (
	recordA   = []byte{0x04, 0x00, 0x01, 0x00, 0x05, 0xF0, 0x00, 0x00, 0x10, 0x00, 0x00, 0x00, 0x00, 0x00, 0x0E, 0x10, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0xC0, 0xA8, 0x01, 0x01}
	recordSOA = []byte{0x2C, 0x00, 0x06, 0x00, 0x05, 0xF0, 0x00, 0x00, 0x11, 0x00, 0x00, 0x00}
)

func recv(t *testing.T, ch <-chan ChangeEvent) ChangeEvent {
	t.Helper()
	select {
	case ev, ok := <-ch:
		if !ok {
			t.Fatal("channel closed")
		}
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
	}
	return ChangeEvent{}
}

func expectNone(t *testing.T, ch <-chan ChangeEvent) {
	t.Helper()
	select {
	case ev, ok := <-ch:
		if ok {
			t.Fatalf("unexpected event for %s", ev.Target)
		}
	case <-time.After(50 * time.Millisecond):
	}
}

var errBroken = errors.New("connection reset")

func uuidFor(t *testing.T, s string) uuid.UUID {
	t.Helper()
	id, err := uuid.Parse(s)
	if err != nil {
		t.Fatal(err)
	}
	return id
}
