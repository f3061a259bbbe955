package main

import (
	"net"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/mitchellh/cli"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KilimcininKorOglu/adnotify/internal/ldap"
	"github.com/KilimcininKorOglu/adnotify/internal/session/sessiontest"
)

const (
	testTarget   = "DC=srv5,DC=test.local,CN=MicrosoftDNS,DC=DomainDnsZones,DC=test,DC=local"
	testBindDN   = "CN=amico,CN=Users,DC=test,DC=local"
	testPassword = "Passw0rd!"
)

var (
	recA1 = []byte{0x04, 0x00, 0x01, 0x00, 0x05, 0xF0, 0x00, 0x00, 0x10, 0x00, 0x00, 0x00, 0x00, 0x00, 0x0E, 0x10, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0xC0, 0xA8, 0x01, 0x01}
	recA2 = []byte{0x04, 0x00, 0x01, 0x00, 0x05, 0xF0, 0x00, 0x00, 0x11, 0x00, 0x00, 0x00, 0x00, 0x00, 0x0E, 0x10, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x0A, 0x00, 0x00, 0x07}
	recNS = []byte{0x10, 0x00, 0x02, 0x00, 0x05, 0xF0, 0x00, 0x00, 0x11, 0x00, 0x00, 0x00}
)

func TestMain(m *testing.M) {
	color.NoColor = true
	os.Exit(m.Run())
}

func records(values ...[]byte) ldap.PartialAttribute {
	return ldap.PartialAttribute{Type: "dnsRecord", Values: values}
}

// startServerStop runs a fake domain controller on a loopback port. The
// returned func stops it and may be called more than once.
func startServerStop(t *testing.T) (*sessiontest.Server, string, func()) {
	t.Helper()
	srv := sessiontest.NewServer()
	srv.AddCredentials(testBindDN, testPassword)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	srv.Listen(ln)
	stop := func() {
		ln.Close()
		srv.Close()
	}
	t.Cleanup(stop)
	return srv, ln.Addr().String(), stop
}

func startServer(t *testing.T) (*sessiontest.Server, string) {
	t.Helper()
	srv, addr, _ := startServerStop(t)
	return srv, addr
}

func directoryArgs(addr string, extra ...string) []string {
	args := []string{
		"-addr", addr,
		"-bind-dn", testBindDN,
		"-password", testPassword,
		"-timeout", "5s",
		"-log-level", "error",
		"-no-color",
	}
	return append(args, extra...)
}

type runningWatch struct {
	ui   *cli.MockUi
	stop chan struct{}
	code chan int
}

func startWatch(t *testing.T, addr string, extra ...string) *runningWatch {
	t.Helper()
	w := &runningWatch{
		ui:   cli.NewMockUi(),
		stop: make(chan struct{}),
		code: make(chan int, 1),
	}
	args := append(directoryArgs(addr, "-no-stdin"), extra...)
	args = append(args, testTarget)
	c := newWatchCommand(w.ui, nil, w.stop)
	go func() { w.code <- c.Run(args) }()
	return w
}

func (w *runningWatch) output() string {
	return w.ui.OutputWriter.String()
}

func (w *runningWatch) waitFor(t *testing.T, s string) {
	t.Helper()
	require.Eventually(t, func() bool {
		return strings.Contains(w.output(), s)
	}, 5*time.Second, 10*time.Millisecond, "waiting for %q in:\n%s", s, w.output())
}

func (w *runningWatch) exitCode(t *testing.T) int {
	t.Helper()
	select {
	case code := <-w.code:
		return code
	case <-time.After(5 * time.Second):
		t.Fatalf("watch did not exit, output:\n%s", w.output())
		return -1
	}
}

func TestWatchCommand(t *testing.T) {
	srv, addr := startServer(t)
	srv.SetObject(testTarget, records(recA1))

	w := startWatch(t, addr)
	w.waitFor(t, "[*] "+msgWaiting)
	require.Eventually(t, func() bool { return srv.ActiveNotifications() == 1 }, 5*time.Second, 10*time.Millisecond)

	out := w.output()
	assert.Contains(t, out, "[*] "+msgBind)
	assert.Contains(t, out, "[*] "+msgHasA+"192.168.1.1")
	assert.Contains(t, out, "[*] "+msgRegistered)

	srv.Modify(testTarget, records(recA1, recA2))
	w.waitFor(t, "[*] "+msgIP+"10.0.0.7")
	assert.Contains(t, w.output(), "[*] "+msgModified)

	srv.Modify(testTarget, records(recNS))
	w.waitFor(t, "[*] "+msgNoA)

	close(w.stop)
	assert.Equal(t, 0, w.exitCode(t))
	assert.Eventually(t, func() bool { return srv.ActiveNotifications() == 0 }, 5*time.Second, 10*time.Millisecond)

	searches := srv.Searches()
	require.Len(t, searches, 2)
	assert.Equal(t, ldap.ScopeBaseObject, searches[1].Scope)
	assert.Equal(t, []string{"dnsRecord"}, searches[1].Attributes)
}

func TestWatchCommandZone(t *testing.T) {
	srv, addr := startServer(t)
	srv.SetObject(testTarget, records(recA1))

	w := startWatch(t, addr, "-zone")
	w.waitFor(t, msgHasA+"srv5.test.local.\t3600\tIN\tA\t192.168.1.1")

	close(w.stop)
	assert.Equal(t, 0, w.exitCode(t))
}

func TestWatchCommandUnreadable(t *testing.T) {
	srv, addr := startServer(t)
	srv.SetObject(testTarget, records(recA1))
	srv.DenyRead(testTarget)

	w := startWatch(t, addr)
	w.waitFor(t, "[*] "+msgWaiting)
	assert.Contains(t, w.output(), "[!] "+msgNoReadInit)
	require.Eventually(t, func() bool { return srv.ActiveNotifications() == 1 }, 5*time.Second, 10*time.Millisecond)

	srv.Modify(testTarget, records(recA2))
	w.waitFor(t, "[!] "+msgNoReadEvent)
	assert.NotContains(t, w.output(), "10.0.0.7")

	close(w.stop)
	assert.Equal(t, 0, w.exitCode(t))
}

func TestWatchCommandFailures(t *testing.T) {
	tests := []struct {
		name    string
		setup   func(srv *sessiontest.Server)
		args    []string
		wantOut string
	}{
		{
			name:    "no such object",
			setup:   func(srv *sessiontest.Server) {},
			wantOut: "[!] " + msgNoObject,
		},
		{
			name: "bad password",
			setup: func(srv *sessiontest.Server) {
				srv.SetObject(testTarget, records(recA1))
			},
			args:    []string{"-password", "wrong"},
			wantOut: "[!] Bind failed:",
		},
		{
			name: "notifications refused",
			setup: func(srv *sessiontest.Server) {
				srv.SetObject(testTarget, records(recA1))
				srv.RefuseNotifications()
			},
			wantOut: "[!] The notification request ended:",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, addr := startServer(t)
			tt.setup(srv)

			w := startWatch(t, addr, tt.args...)
			assert.Equal(t, 1, w.exitCode(t))
			assert.Contains(t, w.output(), tt.wantOut)
		})
	}
}

func TestWatchCommandServerGone(t *testing.T) {
	srv, addr, stop := startServerStop(t)
	srv.SetObject(testTarget, records(recA1))

	w := startWatch(t, addr)
	w.waitFor(t, "[*] "+msgWaiting)
	require.Eventually(t, func() bool { return srv.ActiveNotifications() == 1 }, 5*time.Second, 10*time.Millisecond)

	stop()
	assert.Equal(t, 1, w.exitCode(t))
	out := w.output()
	assert.True(t,
		strings.Contains(out, "Connection to the domain controller was lost") ||
			strings.Contains(out, "The notification request ended"),
		out)
}

func TestWatchCommandStdin(t *testing.T) {
	srv, addr := startServer(t)
	srv.SetObject(testTarget, records(recA1))

	ui := cli.NewMockUi()
	c := newWatchCommand(ui, strings.NewReader("\n"), nil)
	code := c.Run(append(directoryArgs(addr), testTarget))
	assert.Equal(t, 0, code)
	assert.Contains(t, ui.OutputWriter.String(), msgWaiting)
}

func TestWatchCommandUsage(t *testing.T) {
	ui := cli.NewMockUi()
	c := newWatchCommand(ui, nil, nil)

	assert.Equal(t, 1, c.Run([]string{"-addr", "127.0.0.1"}))
	assert.Contains(t, ui.ErrorWriter.String(), "watch.target")

	ui = cli.NewMockUi()
	c = newWatchCommand(ui, nil, nil)
	assert.Equal(t, 1, c.Run([]string{"DC=a", "DC=b"}))
	assert.Contains(t, ui.ErrorWriter.String(), "too many arguments")

	assert.Contains(t, c.Help(), "-metrics-addr")
}

func TestLookupCommand(t *testing.T) {
	tests := []struct {
		name     string
		setup    func(srv *sessiontest.Server)
		args     []string
		wantCode int
		wantOut  string
	}{
		{
			name: "A record",
			setup: func(srv *sessiontest.Server) {
				srv.SetObject(testTarget, records(recA1, recNS, recA2))
			},
			wantOut: "[*] " + msgIP + "10.0.0.7",
		},
		{
			name: "zone lines",
			setup: func(srv *sessiontest.Server) {
				srv.SetObject(testTarget, records(recA1))
			},
			args:    []string{"-zone"},
			wantOut: "srv5.test.local.\t3600\tIN\tA\t192.168.1.1",
		},
		{
			name: "no A record",
			setup: func(srv *sessiontest.Server) {
				srv.SetObject(testTarget, records(recNS))
			},
			wantOut: "[*] " + msgNoA,
		},
		{
			name:     "no such object",
			setup:    func(srv *sessiontest.Server) {},
			wantCode: 1,
			wantOut:  "[!] " + msgNoObject,
		},
		{
			name: "unreadable",
			setup: func(srv *sessiontest.Server) {
				srv.SetObject(testTarget, records(recA1))
				srv.DenyRead(testTarget)
			},
			wantCode: 2,
			wantOut:  "[!] " + msgNoReadEvent,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, addr := startServer(t)
			tt.setup(srv)

			ui := cli.NewMockUi()
			args := append(directoryArgs(addr, tt.args...), testTarget)
			code := newLookupCommand(ui).Run(args)
			assert.Equal(t, tt.wantCode, code, ui.ErrorWriter.String())
			assert.Contains(t, ui.OutputWriter.String(), tt.wantOut)
		})
	}
}
