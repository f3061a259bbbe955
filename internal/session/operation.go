package session

import (
	"errors"

	"github.com/KilimcininKorOglu/adnotify/internal/ldap"
)

// Session errors.
var (
	ErrConnClosed    = errors.New("session: connection closed")
	ErrUnknownHandle = errors.New("session: unknown or finished operation handle")
	ErrAbandoned     = errors.New("session: operation abandoned")
)

// Handle identifies an asynchronous operation. It is the LDAP message ID
// of the request.
type Handle int

// SearchRequest is a search together with the request controls to send
// with it.
type SearchRequest struct {
	BaseDN     string
	Scope      ldap.SearchScope
	Filter     *ldap.Filter
	Attributes []string
	SizeLimit  int
	// TimeLimit is in seconds; zero means none.
	TimeLimit int
	Controls  []ldap.Control
}

func (r *SearchRequest) operation() (*ldap.RawOperation, error) {
	req := &ldap.SearchRequest{
		BaseObject:   r.BaseDN,
		Scope:        r.Scope,
		DerefAliases: ldap.DerefNever,
		SizeLimit:    r.SizeLimit,
		TimeLimit:    r.TimeLimit,
		Filter:       r.Filter,
		Attributes:   r.Attributes,
	}
	return req.Operation()
}

// Operation is an outstanding asynchronous search.
//
// Ready receives a value whenever new entries are available through
// PartialResults. Signals coalesce: one receive may stand for many
// entries. Ready is closed once the operation has finished, after which
// Result reports how it ended.
type Operation struct {
	Handle Handle
	Ready  <-chan struct{}
	result func() (*ldap.LDAPResult, error)
}

// NewOperation builds an Operation. Session implementations and test
// fakes use it; result is called only after ready is closed.
func NewOperation(h Handle, ready <-chan struct{}, result func() (*ldap.LDAPResult, error)) *Operation {
	return &Operation{Handle: h, Ready: ready, result: result}
}

// Result returns the final result. It is meaningful once Ready is closed.
func (o *Operation) Result() (*ldap.LDAPResult, error) {
	if o.result == nil {
		return nil, nil
	}
	return o.result()
}
