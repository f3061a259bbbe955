// Package session implements an LDAP client connection with asynchronous
// searches.
//
// A Conn owns one TCP (optionally TLS) connection and a reader goroutine
// that demultiplexes responses by message ID. Synchronous calls (Bind,
// Search) wait for the final response. Submit starts a search and returns
// an Operation whose Ready channel signals that entries are waiting:
//
//	op, err := conn.Submit(ctx, &session.SearchRequest{
//	    BaseDN:     dn,
//	    Scope:      ldap.ScopeBaseObject,
//	    Attributes: []string{"dnsRecord"},
//	    Controls:   []ldap.Control{ldap.NotificationControl()},
//	})
//	for range op.Ready {
//	    entries, _ := conn.PartialResults(op.Handle)
//	    ...
//	}
//	res, err := op.Result()
//
// Ready is closed when the operation finishes: the server sent
// SearchResultDone, the operation was aborted, or the connection closed.
// Entries received before that remain available to PartialResults.
//
// Abort sends an AbandonRequest. LDAP defines no response to an abandon,
// so the operation is finished locally with ErrAbandoned.
package session
