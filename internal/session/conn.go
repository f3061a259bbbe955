package session

import (
	"bufio"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/KilimcininKorOglu/adnotify/internal/ber"
	"github.com/KilimcininKorOglu/adnotify/internal/ldap"
	"github.com/KilimcininKorOglu/adnotify/internal/logging"
)

// MaxMessageSize is the maximum size of an LDAP message (16 MB)
const MaxMessageSize = 16 * 1024 * 1024

const (
	defaultDialTimeout = 10 * time.Second
	unbindTimeout      = 2 * time.Second
)

// Options configures a connection.
type Options struct {
	// Address is host:port.
	Address string
	// TLS dials LDAPS. TLSConfig may be nil.
	TLS         bool
	TLSConfig   *tls.Config
	DialTimeout time.Duration
	Logger      logging.Logger
	// MaxMessageSize defaults to MaxMessageSize.
	MaxMessageSize int
}

// pendingOp tracks one request until its final response arrives and, for
// searches, until its entries have been drained.
type pendingOp struct {
	id       int
	entries  []*ldap.SearchResultEntry
	ready    chan struct{}
	done     chan struct{}
	finished bool
	result   *ldap.LDAPResult
	err      error
}

// Conn is an LDAP client connection. A single reader goroutine receives
// responses and routes them to pending operations by message ID.
type Conn struct {
	conn    net.Conn
	logger  logging.Logger
	maxSize int

	writeMu sync.Mutex

	mu       sync.Mutex
	nextID   int
	ops      map[int]*pendingOp
	closed   bool
	closeErr error

	readerDone chan struct{}
}

// Dial connects to the directory server.
func Dial(ctx context.Context, opts Options) (*Conn, error) {
	timeout := opts.DialTimeout
	if timeout == 0 {
		timeout = defaultDialTimeout
	}
	dialer := &net.Dialer{Timeout: timeout}
	nc, err := dialer.DialContext(ctx, "tcp", opts.Address)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", opts.Address, err)
	}

	if opts.TLS {
		cfg := opts.TLSConfig
		if cfg == nil {
			cfg = &tls.Config{MinVersion: tls.VersionTLS12}
		}
		if cfg.ServerName == "" && !cfg.InsecureSkipVerify {
			cfg = cfg.Clone()
			if host, _, err := net.SplitHostPort(opts.Address); err == nil {
				cfg.ServerName = host
			}
		}
		tc := tls.Client(nc, cfg)
		hctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		if err := tc.HandshakeContext(hctx); err != nil {
			nc.Close()
			return nil, fmt.Errorf("tls handshake with %s: %w", opts.Address, err)
		}
		nc = tc
	}

	return NewConn(nc, opts), nil
}

// NewConn wraps an established network connection and starts the reader.
func NewConn(nc net.Conn, opts Options) *Conn {
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	maxSize := opts.MaxMessageSize
	if maxSize <= 0 {
		maxSize = MaxMessageSize
	}

	c := &Conn{
		conn:       nc,
		logger:     logger.WithFields("remote", remoteAddr(nc)),
		maxSize:    maxSize,
		nextID:     1,
		ops:        make(map[int]*pendingOp),
		readerDone: make(chan struct{}),
	}
	go c.readLoop()
	return c
}

func remoteAddr(nc net.Conn) string {
	if addr := nc.RemoteAddr(); addr != nil {
		return addr.String()
	}
	return ""
}

// Bind performs a simple bind. An empty dn and password bind anonymously.
func (c *Conn) Bind(ctx context.Context, dn, password string) error {
	req := &ldap.BindRequest{Name: dn, Password: []byte(password)}
	op, err := req.Operation()
	if err != nil {
		return err
	}

	p, err := c.send(op, nil)
	if err != nil {
		return err
	}
	defer c.forget(p.id)

	if err := c.wait(ctx, p); err != nil {
		return err
	}
	if p.err != nil {
		return fmt.Errorf("bind as %q: %w", dn, p.err)
	}
	c.logger.Debug("bind successful", "dn", dn, "anonymous", req.IsAnonymous())
	return nil
}

// Search runs a search to completion and returns its entries. A
// non-success result is returned as an *ldap.ResultError.
func (c *Conn) Search(ctx context.Context, req *SearchRequest) ([]*ldap.SearchResultEntry, error) {
	op, err := req.operation()
	if err != nil {
		return nil, err
	}

	p, err := c.send(op, req.Controls)
	if err != nil {
		return nil, err
	}
	defer c.forget(p.id)

	if err := c.wait(ctx, p); err != nil {
		return nil, err
	}

	c.mu.Lock()
	entries := p.entries
	p.entries = nil
	c.mu.Unlock()

	if p.err != nil {
		return nil, p.err
	}
	return entries, nil
}

// Submit starts a search without waiting for it. The search has no
// client-side time limit; it ends when the server finishes it, when it is
// aborted, or when the connection closes. ctx only bounds sending the
// request.
func (c *Conn) Submit(ctx context.Context, req *SearchRequest) (*Operation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	op, err := req.operation()
	if err != nil {
		return nil, err
	}

	p, err := c.send(op, req.Controls)
	if err != nil {
		return nil, err
	}

	c.logger.Debug("submitted search", "message_id", p.id, "base", req.BaseDN, "controls", len(req.Controls))
	return NewOperation(Handle(p.id), p.ready, func() (*ldap.LDAPResult, error) {
		<-p.done
		return p.result, p.err
	}), nil
}

// PartialResults returns and clears the entries received for h since the
// previous call. Once the operation has finished and been drained the
// handle is forgotten.
func (c *Conn) PartialResults(h Handle) ([]*ldap.SearchResultEntry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	p, ok := c.ops[int(h)]
	if !ok {
		return nil, ErrUnknownHandle
	}
	entries := p.entries
	p.entries = nil
	if p.finished {
		delete(c.ops, p.id)
	}
	return entries, nil
}

// Abort abandons the operation identified by h. The server sends no
// response to an abandon. Aborting a finished or unknown handle returns
// ErrUnknownHandle.
func (c *Conn) Abort(h Handle) error {
	c.mu.Lock()
	p, ok := c.ops[int(h)]
	if !ok {
		c.mu.Unlock()
		return ErrUnknownHandle
	}
	delete(c.ops, p.id)
	if p.finished {
		c.mu.Unlock()
		return ErrUnknownHandle
	}
	c.finishLocked(p, nil, ErrAbandoned)
	c.mu.Unlock()

	op, err := ldap.AbandonRequest(p.id)
	if err != nil {
		return err
	}
	if _, err := c.write(op, nil); err != nil {
		return fmt.Errorf("abandon message %d: %w", p.id, err)
	}
	c.logger.Debug("abandoned operation", "message_id", p.id)
	return nil
}

// Close sends an UnbindRequest and closes the connection. Outstanding
// operations finish with ErrConnClosed.
func (c *Conn) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		<-c.readerDone
		return nil
	}
	c.mu.Unlock()

	_ = c.conn.SetWriteDeadline(time.Now().Add(unbindTimeout))
	if _, err := c.write(ldap.UnbindRequest(), nil); err != nil {
		c.logger.Debug("unbind failed", "error", err)
	}

	c.shutdown(ErrConnClosed)
	<-c.readerDone
	return nil
}

// Done is closed when the connection has shut down.
func (c *Conn) Done() <-chan struct{} {
	return c.readerDone
}

// Err returns the reason the connection shut down, or nil while it is open.
func (c *Conn) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closeErr
}

// send registers a pending operation and writes the request.
func (c *Conn) send(op *ldap.RawOperation, controls []ldap.Control) (*pendingOp, error) {
	p, err := c.write(op, controls)
	if err != nil {
		if p != nil {
			c.forget(p.id)
		}
		return nil, err
	}
	return p, nil
}

// write allocates a message ID, registers a pending operation for it
// unless the request has no response, and writes the message.
func (c *Conn) write(op *ldap.RawOperation, controls []ldap.Control) (*pendingOp, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, ErrConnClosed
	}
	id := c.allocIDLocked()

	var p *pendingOp
	if expectsResponse(op.Tag) {
		p = &pendingOp{
			id:    id,
			ready: make(chan struct{}, 1),
			done:  make(chan struct{}),
		}
		c.ops[id] = p
	}
	c.mu.Unlock()

	msg := &ldap.Message{ID: id, Operation: op, Controls: controls}
	data, err := msg.Encode()
	if err != nil {
		return p, err
	}

	c.writeMu.Lock()
	_, err = c.conn.Write(data)
	c.writeMu.Unlock()
	if err != nil {
		return p, fmt.Errorf("write %s: %w", ldap.OperationType(op.Tag), err)
	}
	return p, nil
}

func expectsResponse(tag int) bool {
	return tag != ldap.ApplicationAbandonRequest && tag != ldap.ApplicationUnbindRequest
}

func (c *Conn) allocIDLocked() int {
	for {
		id := c.nextID
		c.nextID++
		if c.nextID > ldap.MaxMessageID {
			c.nextID = 1
		}
		if _, inUse := c.ops[id]; !inUse {
			return id
		}
	}
}

// wait blocks until p finishes. If ctx ends first the request is
// abandoned.
func (c *Conn) wait(ctx context.Context, p *pendingOp) error {
	select {
	case <-p.done:
		return nil
	case <-ctx.Done():
		if err := c.Abort(Handle(p.id)); err != nil && !errors.Is(err, ErrUnknownHandle) {
			c.logger.Debug("abandon after cancellation failed", "message_id", p.id, "error", err)
		}
		return ctx.Err()
	}
}

func (c *Conn) forget(id int) {
	c.mu.Lock()
	delete(c.ops, id)
	c.mu.Unlock()
}

// finishLocked completes p. c.mu must be held.
func (c *Conn) finishLocked(p *pendingOp, result *ldap.LDAPResult, err error) {
	if p.finished {
		return
	}
	p.finished = true
	p.result = result
	p.err = err
	close(p.done)
	close(p.ready)
}

func (c *Conn) signalLocked(p *pendingOp) {
	select {
	case p.ready <- struct{}{}:
	default:
	}
}

func (c *Conn) readLoop() {
	defer close(c.readerDone)

	r := bufio.NewReader(c.conn)
	for {
		data, err := ber.ReadPacket(r, c.maxSize)
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) || errors.Is(err, io.ErrClosedPipe) {
				c.shutdown(ErrConnClosed)
			} else {
				c.logger.Warn("read error", "error", err)
				c.shutdown(fmt.Errorf("%w: %v", ErrConnClosed, err))
			}
			return
		}

		msg, err := ldap.ParseMessage(data)
		if err != nil {
			c.logger.Warn("protocol error", "error", err)
			c.shutdown(fmt.Errorf("%w: %v", ErrConnClosed, err))
			return
		}
		c.route(msg)
	}
}

func (c *Conn) route(msg *ldap.Message) {
	if msg.ID == 0 {
		// Unsolicited notification, typically a notice of disconnection.
		c.logger.Warn("unsolicited notification from server", "operation", msg.OperationType().String())
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	p, ok := c.ops[msg.ID]
	if !ok || p.finished {
		c.logger.Debug("response for unknown message", "message_id", msg.ID, "operation", msg.OperationType().String())
		return
	}

	switch msg.Operation.Tag {
	case ldap.ApplicationSearchResultEntry:
		entry, err := ldap.ParseSearchResultEntry(msg.Operation)
		if err != nil {
			c.finishLocked(p, nil, err)
			return
		}
		entry.Controls = msg.Controls
		p.entries = append(p.entries, entry)
		c.signalLocked(p)

	case ldap.ApplicationSearchResultReference:
		// Referrals are not chased.
		uris, err := ldap.ParseSearchResultReference(msg.Operation)
		if err != nil {
			c.finishLocked(p, nil, err)
			return
		}
		c.logger.Debug("search continuation reference", "message_id", msg.ID, "uris", uris)

	case ldap.ApplicationSearchResultDone:
		res, err := ldap.ParseSearchResultDone(msg.Operation)
		if err != nil {
			c.finishLocked(p, nil, err)
			return
		}
		c.finishLocked(p, res, res.Err())

	case ldap.ApplicationBindResponse:
		res, err := ldap.ParseBindResponse(msg.Operation)
		if err != nil {
			c.finishLocked(p, nil, err)
			return
		}
		c.finishLocked(p, res, res.Err())

	default:
		c.finishLocked(p, nil, fmt.Errorf("%w: %s", ldap.ErrUnexpectedOp, msg.OperationType()))
	}
}

// shutdown closes the socket once and fails every outstanding operation.
// Operations keep their buffered entries so they can still be drained.
func (c *Conn) shutdown(reason error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.closeErr = reason
	for _, p := range c.ops {
		c.finishLocked(p, nil, reason)
	}
	c.mu.Unlock()

	if err := c.conn.Close(); err != nil {
		c.logger.Debug("close error", "error", err)
	}
}
