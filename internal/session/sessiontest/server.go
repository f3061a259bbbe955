// Package sessiontest provides an in-process directory server that speaks
// enough LDAP to exercise session.Conn and the notifier: simple bind, base
// searches, change notification searches, abandon and unbind.
package sessiontest

import (
	"bufio"
	"net"
	"strings"
	"sync"

	"github.com/KilimcininKorOglu/adnotify/internal/ber"
	"github.com/KilimcininKorOglu/adnotify/internal/ldap"
)

// Server is a fake domain controller. Objects are keyed by DN, compared
// case-insensitively. The zero value is not usable; call NewServer.
type Server struct {
	mu sync.Mutex
	// credentials maps bind DN to password. Empty accepts any bind.
	credentials map[string]string
	objects     map[string]*object
	unreadable  map[string]bool
	refuse      bool
	conns       map[*serverConn]struct{}
	abandoned   []int
	searches    []*ldap.SearchRequest
	wg          sync.WaitGroup
}

type object struct {
	dn    string
	attrs []ldap.PartialAttribute
}

type serverConn struct {
	nc      net.Conn
	writeMu sync.Mutex
	// notifications maps message ID to the normalized base DN watched.
	notifications map[int]notification
}

type notification struct {
	base  string
	attrs []string
}

// NewServer returns an empty server.
func NewServer() *Server {
	return &Server{
		credentials: make(map[string]string),
		objects:     make(map[string]*object),
		unreadable:  make(map[string]bool),
		conns:       make(map[*serverConn]struct{}),
	}
}

func norm(dn string) string {
	return strings.ToLower(strings.ReplaceAll(dn, " ", ""))
}

// AddCredentials makes binds require the given password for dn.
func (s *Server) AddCredentials(dn, password string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.credentials[norm(dn)] = password
}

// SetObject creates or replaces an object.
func (s *Server) SetObject(dn string, attrs ...ldap.PartialAttribute) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[norm(dn)] = &object{dn: dn, attrs: attrs}
}

// DenyRead makes searches for dn return the entry without attributes, as
// a server does when the read ACE is missing.
func (s *Server) DenyRead(dn string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.unreadable[norm(dn)] = true
}

// RefuseNotifications makes notification searches fail with
// unavailableCriticalExtension.
func (s *Server) RefuseNotifications() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refuse = true
}

// Modify replaces an object's attributes and pushes the new entry to
// every notification search watching it.
func (s *Server) Modify(dn string, attrs ...ldap.PartialAttribute) {
	s.mu.Lock()
	key := norm(dn)
	s.objects[key] = &object{dn: dn, attrs: attrs}
	type push struct {
		sc    *serverConn
		id    int
		entry *ldap.SearchResultEntry
	}
	var pushes []push
	for sc := range s.conns {
		for id, n := range sc.notifications {
			if n.base == key {
				pushes = append(pushes, push{sc, id, s.entryLocked(key, n.attrs)})
			}
		}
	}
	s.mu.Unlock()

	for _, p := range pushes {
		_ = p.sc.writeEntry(p.id, p.entry)
	}
}

// Abandoned returns the message IDs of abandoned operations.
func (s *Server) Abandoned() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]int(nil), s.abandoned...)
}

// Searches returns every search request received.
func (s *Server) Searches() []*ldap.SearchRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*ldap.SearchRequest(nil), s.searches...)
}

// ActiveNotifications counts notification searches that are still open.
func (s *Server) ActiveNotifications() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for sc := range s.conns {
		n += len(sc.notifications)
	}
	return n
}

// Pipe returns the client end of a new in-memory connection.
func (s *Server) Pipe() net.Conn {
	client, srv := net.Pipe()
	s.Serve(srv)
	return client
}

// Listen accepts connections on ln until it is closed.
func (s *Server) Listen(ln net.Listener) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			nc, err := ln.Accept()
			if err != nil {
				return
			}
			s.Serve(nc)
		}
	}()
}

// Serve handles nc in a new goroutine.
func (s *Server) Serve(nc net.Conn) {
	sc := &serverConn{nc: nc, notifications: make(map[int]notification)}
	s.mu.Lock()
	s.conns[sc] = struct{}{}
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer func() {
			s.mu.Lock()
			delete(s.conns, sc)
			s.mu.Unlock()
			nc.Close()
		}()
		s.serve(sc)
	}()
}

// Close drops every connection and waits for the handlers to exit.
func (s *Server) Close() {
	s.mu.Lock()
	for sc := range s.conns {
		sc.nc.Close()
	}
	s.mu.Unlock()
	s.wg.Wait()
}

func (s *Server) serve(sc *serverConn) {
	r := bufio.NewReader(sc.nc)
	for {
		data, err := ber.ReadPacket(r, 0)
		if err != nil {
			return
		}
		msg, err := ldap.ParseMessage(data)
		if err != nil {
			return
		}

		switch msg.Operation.Tag {
		case ldap.ApplicationBindRequest:
			s.handleBind(sc, msg)
		case ldap.ApplicationSearchRequest:
			s.handleSearch(sc, msg)
		case ldap.ApplicationAbandonRequest:
			id, err := ldap.ParseAbandonRequest(msg.Operation)
			if err != nil {
				return
			}
			s.mu.Lock()
			delete(sc.notifications, id)
			s.abandoned = append(s.abandoned, id)
			s.mu.Unlock()
		case ldap.ApplicationUnbindRequest:
			return
		default:
			_ = sc.writeResult(msg.ID, ldap.ApplicationExtendedResponse, ldap.ResultProtocolError, "unsupported operation")
		}
	}
}

func (s *Server) handleBind(sc *serverConn, msg *ldap.Message) {
	dn, password, err := parseBind(msg.Operation)
	if err != nil {
		_ = sc.writeResult(msg.ID, ldap.ApplicationBindResponse, ldap.ResultProtocolError, err.Error())
		return
	}

	s.mu.Lock()
	want, known := s.credentials[norm(dn)]
	open := len(s.credentials) == 0
	s.mu.Unlock()

	code := ldap.ResultSuccess
	diag := ""
	if !open && (!known || want != password) {
		code = ldap.ResultInvalidCredentials
		diag = "80090308: LdapErr: DSID-0C09044E, comment: AcceptSecurityContext error, data 52e"
	}
	_ = sc.writeResult(msg.ID, ldap.ApplicationBindResponse, code, diag)
}

func parseBind(op *ldap.RawOperation) (string, string, error) {
	dec := ber.NewDecoder(op.Data)
	if _, err := dec.ReadInteger(); err != nil {
		return "", "", err
	}
	dn, err := dec.ReadString()
	if err != nil {
		return "", "", err
	}
	_, password, err := dec.ReadElement()
	if err != nil {
		return "", "", err
	}
	return dn, string(password), nil
}

func (s *Server) handleSearch(sc *serverConn, msg *ldap.Message) {
	req, err := ldap.ParseSearchRequest(msg.Operation)
	if err != nil {
		_ = sc.writeResult(msg.ID, ldap.ApplicationSearchResultDone, ldap.ResultProtocolError, err.Error())
		return
	}
	_, notify := ldap.FindControl(msg.Controls, ldap.NotificationOID)
	key := norm(req.BaseObject)

	s.mu.Lock()
	s.searches = append(s.searches, req)
	_, exists := s.objects[key]
	refuse := s.refuse
	var entry *ldap.SearchResultEntry
	if exists && !notify {
		entry = s.entryLocked(key, req.Attributes)
	}
	if exists && notify && !refuse {
		sc.notifications[msg.ID] = notification{base: key, attrs: req.Attributes}
	}
	s.mu.Unlock()

	switch {
	case !exists:
		_ = sc.writeResult(msg.ID, ldap.ApplicationSearchResultDone, ldap.ResultNoSuchObject,
			"0000208D: NameErr: DSID-03100241, problem 2001 (NO_OBJECT), data 0")
	case notify && refuse:
		_ = sc.writeResult(msg.ID, ldap.ApplicationSearchResultDone, ldap.ResultUnavailableCriticalExtension,
			"00000057: LdapErr: DSID-0C090A9A, comment: Error processing control")
	case notify:
		// The server answers only when the object changes.
	default:
		if err := sc.writeEntry(msg.ID, entry); err != nil {
			return
		}
		_ = sc.writeResult(msg.ID, ldap.ApplicationSearchResultDone, ldap.ResultSuccess, "")
	}
}

// entryLocked builds the entry for the object at key, restricted to attrs.
func (s *Server) entryLocked(key string, attrs []string) *ldap.SearchResultEntry {
	obj := s.objects[key]
	entry := &ldap.SearchResultEntry{ObjectName: obj.dn}
	if s.unreadable[key] {
		return entry
	}
	for _, a := range obj.attrs {
		if wanted(a.Type, attrs) {
			entry.Attributes = append(entry.Attributes, a)
		}
	}
	return entry
}

func wanted(name string, attrs []string) bool {
	if len(attrs) == 0 {
		return true
	}
	for _, a := range attrs {
		if a == "*" || strings.EqualFold(a, name) {
			return true
		}
	}
	return false
}

func (sc *serverConn) writeEntry(id int, entry *ldap.SearchResultEntry) error {
	op, err := entry.Operation()
	if err != nil {
		return err
	}
	return sc.write(&ldap.Message{ID: id, Operation: op})
}

func (sc *serverConn) writeResult(id, tag int, code ldap.ResultCode, diag string) error {
	res := &ldap.LDAPResult{ResultCode: code, DiagnosticMessage: diag}
	op, err := res.Operation(tag)
	if err != nil {
		return err
	}
	return sc.write(&ldap.Message{ID: id, Operation: op})
}

func (sc *serverConn) write(msg *ldap.Message) error {
	data, err := msg.Encode()
	if err != nil {
		return err
	}
	sc.writeMu.Lock()
	defer sc.writeMu.Unlock()
	_, err = sc.nc.Write(data)
	return err
}
