package notify

import (
	"context"
	"fmt"

	"github.com/KilimcininKorOglu/adnotify/internal/ldap"
	"github.com/KilimcininKorOglu/adnotify/internal/session"
)

// Searcher runs one-shot searches. *session.Conn implements it.
type Searcher interface {
	Search(ctx context.Context, req *session.SearchRequest) ([]*ldap.SearchResultEntry, error)
}

// Lookup reads attributes of the object at dn with a base search.
//
// A missing object yields ErrNoSuchObject. An object whose entry comes
// back empty, or which the server refuses to read, yields
// ErrNoReadableAttributes; the object may still exist and be watchable.
// In that case the returned Entry carries whatever DN the server gave.
func Lookup(ctx context.Context, s Searcher, dn string, attributes []string) (Entry, error) {
	entries, err := s.Search(ctx, &session.SearchRequest{
		BaseDN:     dn,
		Scope:      ldap.ScopeBaseObject,
		Filter:     ldap.PresentFilter("objectClass"),
		Attributes: uniqueAttributes(attributes),
	})
	switch {
	case ldap.IsResultCode(err, ldap.ResultNoSuchObject):
		return Entry{}, fmt.Errorf("%w: %s", ErrNoSuchObject, dn)
	case ldap.IsResultCode(err, ldap.ResultInsufficientAccessRights):
		return Entry{DN: dn}, fmt.Errorf("%w: %w", ErrNoReadableAttributes, err)
	case err != nil:
		return Entry{}, fmt.Errorf("lookup %s: %w", dn, err)
	}

	if len(entries) == 0 {
		return Entry{DN: dn}, fmt.Errorf("%w: %s", ErrNoReadableAttributes, dn)
	}
	entry := newEntry(entries[0])
	if entry.NoAttributes() {
		return entry, fmt.Errorf("%w: %s", ErrNoReadableAttributes, dn)
	}
	return entry, nil
}
