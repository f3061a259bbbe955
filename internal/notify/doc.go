// Package notify watches directory objects for changes using the Active
// Directory change notification control (1.2.840.113556.1.4.528).
//
// A Registry owns the outstanding notification searches. Each watch has a
// pump goroutine that waits on the session's ready signal, fetches the
// accumulated entries and converts them to ChangeEvent values:
//
//	n := notify.NewNotifier(conn, notify.WithLogger(logger))
//	defer n.Close()
//
//	sub, _ := n.Subscribe(notify.MatchAll())
//	w, err := n.Register(ctx, dn, []string{"dnsRecord"}, notify.ScopeBase)
//	if err != nil {
//	    return err
//	}
//	for ev := range sub.Events() {
//	    ...
//	}
//
// The Notifier fans events out to subscriptions without blocking; a full
// buffer or the lack of any subscriber drops the event. Close aborts every
// search on the server before closing the subscriptions, so no
// notification request outlives the Notifier.
//
// A fetch failure is reported as an event with Err set and no attributes.
// A watch the server ends on its own is reported once with an Err wrapping
// ErrWatchEnded.
package notify
