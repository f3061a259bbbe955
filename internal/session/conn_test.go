package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KilimcininKorOglu/adnotify/internal/ldap"
	"github.com/KilimcininKorOglu/adnotify/internal/session/sessiontest"
)

const (
	testDN   = "DC=srv5,DC=test.local,CN=MicrosoftDNS,DC=DomainDnsZones,DC=test,DC=local"
	bindDN   = "CN=svc,CN=Users,DC=test,DC=local"
	bindPass = "Passw0rd!"
)

var record = []byte{0x04, 0x00, 0x01, 0x00, 0x05, 0xF0, 0x00, 0x00, 0xC0, 0xA8, 0x01, 0x01}

func newTestConn(t *testing.T) (*sessiontest.Server, *Conn) {
	t.Helper()
	srv := sessiontest.NewServer()
	conn := NewConn(srv.Pipe(), Options{})
	t.Cleanup(func() {
		conn.Close()
		srv.Close()
	})
	return srv, conn
}

func notificationSearch() *SearchRequest {
	return &SearchRequest{
		BaseDN:     testDN,
		Scope:      ldap.ScopeBaseObject,
		Attributes: []string{"dnsRecord"},
		Controls:   []ldap.Control{ldap.NotificationControl()},
	}
}

func waitReady(t *testing.T, op *Operation) bool {
	t.Helper()
	select {
	case _, ok := <-op.Ready:
		return ok
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for operation")
		return false
	}
}

func TestBind(t *testing.T) {
	tests := []struct {
		name     string
		dn       string
		password string
		wantCode ldap.ResultCode
	}{
		{"valid credentials", bindDN, bindPass, ldap.ResultSuccess},
		{"wrong password", bindDN, "nope", ldap.ResultInvalidCredentials},
		{"unknown user", "CN=other,DC=test,DC=local", bindPass, ldap.ResultInvalidCredentials},
		{"anonymous", "", "", ldap.ResultInvalidCredentials},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, conn := newTestConn(t)
			srv.AddCredentials(bindDN, bindPass)

			err := conn.Bind(context.Background(), tt.dn, tt.password)
			if tt.wantCode == ldap.ResultSuccess {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, ldap.IsResultCode(err, tt.wantCode), "got %v", err)
		})
	}
}

func TestSearch(t *testing.T) {
	srv, conn := newTestConn(t)
	srv.SetObject(testDN,
		ldap.PartialAttribute{Type: "dnsRecord", Values: [][]byte{record}},
		ldap.PartialAttribute{Type: "name", Values: [][]byte{[]byte("srv5")}},
	)

	entries, err := conn.Search(context.Background(), &SearchRequest{
		BaseDN:     testDN,
		Scope:      ldap.ScopeBaseObject,
		Attributes: []string{"dnsRecord"},
	})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, testDN, entries[0].ObjectName)
	assert.Equal(t, [][]byte{record}, entries[0].Values("DNSRECORD"))
	assert.Empty(t, entries[0].Values("name"))

	_, err = conn.Search(context.Background(), &SearchRequest{BaseDN: "DC=missing,DC=test,DC=local"})
	require.Error(t, err)
	assert.True(t, ldap.IsResultCode(err, ldap.ResultNoSuchObject))
}

func TestSearchCancelAbandons(t *testing.T) {
	srv, conn := newTestConn(t)
	srv.SetObject(testDN)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	// A notification search never completes on its own.
	_, err := conn.Search(ctx, notificationSearch())
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	require.Eventually(t, func() bool { return len(srv.Abandoned()) == 1 }, 2*time.Second, 10*time.Millisecond)
}

func TestSubmitNotification(t *testing.T) {
	srv, conn := newTestConn(t)
	srv.SetObject(testDN, ldap.PartialAttribute{Type: "dnsRecord", Values: [][]byte{record}})

	op, err := conn.Submit(context.Background(), notificationSearch())
	require.NoError(t, err)
	require.Eventually(t, func() bool { return srv.ActiveNotifications() == 1 }, 2*time.Second, 10*time.Millisecond)

	searches := srv.Searches()
	require.Len(t, searches, 1)
	assert.Equal(t, ldap.ScopeBaseObject, searches[0].Scope)
	assert.Equal(t, []string{"dnsRecord"}, searches[0].Attributes)

	updated := append([]byte(nil), record...)
	updated[len(updated)-1] = 0x63
	srv.Modify(testDN, ldap.PartialAttribute{Type: "dnsRecord", Values: [][]byte{updated}})

	require.True(t, waitReady(t, op))
	entries, err := conn.PartialResults(op.Handle)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, [][]byte{updated}, entries[0].Values("dnsRecord"))

	// Drained; nothing further until the next change.
	entries, err = conn.PartialResults(op.Handle)
	require.NoError(t, err)
	assert.Empty(t, entries)

	require.NoError(t, conn.Abort(op.Handle))
	assert.False(t, waitReady(t, op))
	_, err = op.Result()
	assert.ErrorIs(t, err, ErrAbandoned)

	require.Eventually(t, func() bool {
		ids := srv.Abandoned()
		return len(ids) == 1 && ids[0] == int(op.Handle)
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, 0, srv.ActiveNotifications())

	assert.ErrorIs(t, conn.Abort(op.Handle), ErrUnknownHandle)
	_, err = conn.PartialResults(op.Handle)
	assert.ErrorIs(t, err, ErrUnknownHandle)
}

func TestSubmitRefused(t *testing.T) {
	tests := []struct {
		name     string
		setup    func(*sessiontest.Server)
		wantCode ldap.ResultCode
	}{
		{
			name:     "control not supported",
			setup:    func(s *sessiontest.Server) { s.SetObject(testDN); s.RefuseNotifications() },
			wantCode: ldap.ResultUnavailableCriticalExtension,
		},
		{
			name:     "no such object",
			setup:    func(*sessiontest.Server) {},
			wantCode: ldap.ResultNoSuchObject,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, conn := newTestConn(t)
			tt.setup(srv)

			op, err := conn.Submit(context.Background(), notificationSearch())
			require.NoError(t, err)
			assert.False(t, waitReady(t, op))

			_, err = op.Result()
			assert.True(t, ldap.IsResultCode(err, tt.wantCode), "got %v", err)

			// The finished operation is drained once, then forgotten.
			entries, err := conn.PartialResults(op.Handle)
			require.NoError(t, err)
			assert.Empty(t, entries)
			_, err = conn.PartialResults(op.Handle)
			assert.ErrorIs(t, err, ErrUnknownHandle)
			assert.ErrorIs(t, conn.Abort(op.Handle), ErrUnknownHandle)
		})
	}
}

func TestCloseFinishesOutstanding(t *testing.T) {
	srv, conn := newTestConn(t)
	srv.SetObject(testDN)

	op, err := conn.Submit(context.Background(), notificationSearch())
	require.NoError(t, err)

	require.NoError(t, conn.Close())
	assert.False(t, waitReady(t, op))
	_, err = op.Result()
	assert.ErrorIs(t, err, ErrConnClosed)

	_, err = conn.Submit(context.Background(), notificationSearch())
	assert.ErrorIs(t, err, ErrConnClosed)
	assert.NoError(t, conn.Close())
}

func TestServerDisconnect(t *testing.T) {
	srv, conn := newTestConn(t)
	srv.SetObject(testDN)

	op, err := conn.Submit(context.Background(), notificationSearch())
	require.NoError(t, err)
	require.Eventually(t, func() bool { return srv.ActiveNotifications() == 1 }, 2*time.Second, 10*time.Millisecond)

	srv.Close()

	select {
	case <-conn.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("connection did not notice the disconnect")
	}
	assert.ErrorIs(t, conn.Err(), ErrConnClosed)
	assert.False(t, waitReady(t, op))
	_, err = op.Result()
	assert.True(t, errors.Is(err, ErrConnClosed))
}

func TestSubmitCanceledContext(t *testing.T) {
	_, conn := newTestConn(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := conn.Submit(ctx, notificationSearch())
	assert.ErrorIs(t, err, context.Canceled)
}
