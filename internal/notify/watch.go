package notify

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/KilimcininKorOglu/adnotify/internal/ldap"
	"github.com/KilimcininKorOglu/adnotify/internal/session"
)

// Errors.
var (
	ErrRegistration         = errors.New("notify: registration failed")
	ErrClosed               = errors.New("notify: notifier is closed")
	ErrWatchEnded           = errors.New("notify: watch ended by server")
	ErrNoSuchObject         = errors.New("notify: object does not exist")
	ErrNoReadableAttributes = errors.New("notify: object has no readable attributes")
)

// RegistrationError reports a notification search the session refused.
type RegistrationError struct {
	Target string
	Err    error
}

func (e *RegistrationError) Error() string {
	return fmt.Sprintf("notify: register %q: %v", e.Target, e.Err)
}

func (e *RegistrationError) Unwrap() error {
	return e.Err
}

// Is reports ErrRegistration so callers need not unwrap the type.
func (e *RegistrationError) Is(target error) bool {
	return target == ErrRegistration
}

// Scope controls which entries below the target a watch matches.
type Scope int

const (
	ScopeBase Scope = iota
	ScopeOneLevel
	ScopeSubtree
)

// ParseScope accepts the names used on the command line and in config
// files: base, one (onelevel) and sub (subtree).
func ParseScope(s string) (Scope, error) {
	switch strings.ToLower(s) {
	case "", "base":
		return ScopeBase, nil
	case "one", "onelevel":
		return ScopeOneLevel, nil
	case "sub", "subtree":
		return ScopeSubtree, nil
	}
	return ScopeBase, fmt.Errorf("notify: unknown scope %q", s)
}

func (s Scope) String() string {
	switch s {
	case ScopeBase:
		return "base"
	case ScopeOneLevel:
		return "one"
	case ScopeSubtree:
		return "sub"
	default:
		return fmt.Sprintf("Scope(%d)", int(s))
	}
}

func (s Scope) ldap() ldap.SearchScope {
	switch s {
	case ScopeOneLevel:
		return ldap.ScopeSingleLevel
	case ScopeSubtree:
		return ldap.ScopeWholeSubtree
	default:
		return ldap.ScopeBaseObject
	}
}

// Watch is one outstanding notification search. It is not modified after
// Register returns it.
type Watch struct {
	ID         uuid.UUID
	Target     string
	Attributes []string
	Scope      Scope
	Handle     session.Handle
	Created    time.Time
}

func (w *Watch) String() string {
	return fmt.Sprintf("watch %s on %q (%s, handle %d)", w.ID, w.Target, w.Scope, w.Handle)
}

// uniqueAttributes removes names that repeat case-insensitively, keeping
// the first spelling and the original order.
func uniqueAttributes(attrs []string) []string {
	seen := make(map[string]struct{}, len(attrs))
	out := make([]string, 0, len(attrs))
	for _, a := range attrs {
		key := strings.ToLower(a)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, a)
	}
	return out
}

// Entry is a directory entry with its attribute values copied out of the
// session's buffers.
type Entry struct {
	DN string
	// Attributes maps attribute names to values in server order.
	Attributes map[string][][]byte
}

func newEntry(e *ldap.SearchResultEntry) Entry {
	out := Entry{
		DN:         e.ObjectName,
		Attributes: make(map[string][][]byte, len(e.Attributes)),
	}
	for _, attr := range e.Attributes {
		vals := out.Attributes[attr.Type]
		for _, v := range attr.Values {
			vals = append(vals, append([]byte(nil), v...))
		}
		out.Attributes[attr.Type] = vals
	}
	return out
}

// NoAttributes reports whether the entry carries no attribute values.
func (e Entry) NoAttributes() bool {
	for _, vals := range e.Attributes {
		if len(vals) > 0 {
			return false
		}
	}
	return true
}

// Values returns the values of the named attribute, matching the name
// case-insensitively.
func (e Entry) Values(name string) [][]byte {
	if vals, ok := e.Attributes[name]; ok {
		return vals
	}
	for k, vals := range e.Attributes {
		if strings.EqualFold(k, name) {
			return vals
		}
	}
	return nil
}

// ChangeEvent is one notification delivered for a watch. The receiver
// owns it; nothing in this package keeps a reference after delivery.
//
// DN is the entry the server reported, which for one-level and subtree
// watches may differ from Target. NoAttributes is true when the fetch
// failed or the entry had nothing readable.
type ChangeEvent struct {
	Entry
	WatchID uuid.UUID
	Target  string
	// Err is set when the results could not be fetched or the server
	// ended the watch. Attributes is then empty.
	Err      error
	Received time.Time
}

func newEvent(w *Watch, e *ldap.SearchResultEntry) ChangeEvent {
	return ChangeEvent{
		Entry:    newEntry(e),
		WatchID:  w.ID,
		Target:   w.Target,
		Received: time.Now(),
	}
}

func errorEvent(w *Watch, err error) ChangeEvent {
	return ChangeEvent{
		Entry:    Entry{DN: w.Target, Attributes: map[string][][]byte{}},
		WatchID:  w.ID,
		Target:   w.Target,
		Err:      err,
		Received: time.Now(),
	}
}
