package session

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/khaledhikmat/aicam-go/model"
	"github.com/khaledhikmat/aicam-go/service/config"
	"github.com/khaledhikmat/aicam-go/service/lgr"
	"golang.org/x/xerrors"
)

// ReadyByte is written to every accepted connection before registration.
const ReadyByte = '1'

// MaxLineSize bounds a single name or command line. A peer that sends a
// longer line is disconnected.
const MaxLineSize = 8 << 10

var (
	ErrSessionNotFound = xerrors.New("session not found")
	errNoName          = xerrors.New("no session name received")
)

type sessionConn struct {
	Session
	conn net.Conn
	wmu  sync.Mutex
}

// Channel accepts control connections and keeps a name -> session registry.
// The last registration for a name wins.
type Channel struct {
	regTimeout   time.Duration
	writeTimeout time.Duration
	maxLine      int
	errorStream  chan interface{}

	mu       sync.Mutex
	listener net.Listener
	sessions map[string]*sessionConn
	conns    map[net.Conn]struct{}
	handlers []Handler
	closed   bool

	joined   int
	left     int
	commands int
	logLines int
}

func NewChannel(params config.SessionParameters, errorStream chan interface{}) *Channel {
	regTimeout := time.Duration(params.RegistrationTimeout) * time.Second
	if regTimeout <= 0 {
		regTimeout = 10 * time.Second
	}
	writeTimeout := time.Duration(params.WriteTimeout) * time.Second
	if writeTimeout <= 0 {
		writeTimeout = 5 * time.Second
	}

	return &Channel{
		regTimeout:   regTimeout,
		writeTimeout: writeTimeout,
		maxLine:      MaxLineSize,
		errorStream:  errorStream,
		sessions:     map[string]*sessionConn{},
		conns:        map[net.Conn]struct{}{},
	}
}

func (c *Channel) AddHandler(h Handler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers = append(c.handlers, h)
}

// Listen binds the address and serves it in the background.
func (c *Channel) Listen(canxCtx context.Context, address string) (net.Addr, error) {
	l, err := net.Listen("tcp", address)
	if err != nil {
		return nil, xerrors.Errorf("listening on %s: %w", address, err)
	}

	go func() {
		if err := c.Serve(canxCtx, l); err != nil {
			c.report(model.GenError("session_channel", err, map[string]interface{}{"address": address}, "accept loop stopped"))
		}
	}()
	return l.Addr(), nil
}

// Serve accepts connections until the context is cancelled or Close is called.
func (c *Channel) Serve(canxCtx context.Context, l net.Listener) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		_ = l.Close()
		return nil
	}
	c.listener = l
	c.mu.Unlock()

	stop := context.AfterFunc(canxCtx, func() {
		_ = c.Close()
	})
	defer stop()

	lgr.Logger.Info("session channel accepting connections",
		slog.String("address", l.Addr().String()),
	)

	for {
		conn, err := l.Accept()
		if err != nil {
			if c.isClosed() || errors.Is(err, net.ErrClosed) {
				lgr.Logger.Info("session channel stopped")
				return nil
			}
			return err
		}
		go c.handleConn(conn)
	}
}

func (c *Channel) handleConn(conn net.Conn) {
	if !c.track(conn) {
		_ = conn.Close()
		return
	}
	defer c.untrack(conn)

	lgr.Logger.Debug("control connection accepted",
		slog.String("peer", conn.RemoteAddr().String()),
	)

	_ = conn.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	if _, err := conn.Write([]byte{ReadyByte}); err != nil {
		_ = conn.Close()
		return
	}
	_ = conn.SetWriteDeadline(time.Time{})

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, 512), c.maxLine)
	_ = conn.SetReadDeadline(time.Now().Add(c.regTimeout))
	var name string
	if scanner.Scan() {
		name = strings.TrimSpace(scanner.Text())
	}
	if name == "" {
		err := scanner.Err()
		if err == nil {
			err = errNoName
		}
		lgr.Logger.Warn("control connection closed before registration",
			slog.String("peer", conn.RemoteAddr().String()),
			slog.Any("error", lgr.WithTrace(err)),
		)
		_ = conn.Close()
		return
	}
	_ = conn.SetReadDeadline(time.Time{})

	sess := c.register(conn, name)
	if err := c.DmMsg(fmt.Sprintf("%s connected.", name), name); err != nil {
		return
	}

	c.receive(sess, scanner)
}

func (c *Channel) register(conn net.Conn, name string) *sessionConn {
	sess := &sessionConn{
		Session: Session{
			ID:       uuid.NewString(),
			Name:     name,
			Peer:     conn.RemoteAddr(),
			JoinedAt: time.Now(),
		},
		conn: conn,
	}

	c.mu.Lock()
	if old, ok := c.sessions[name]; ok {
		lgr.Logger.Warn("session name re-registered",
			slog.String("name", name),
			slog.String("previous", old.ID),
		)
	}
	c.sessions[name] = sess
	c.joined++
	c.mu.Unlock()

	lgr.Logger.Info("session registered",
		slog.String("name", name),
		slog.String("id", sess.ID),
		slog.String("peer", conn.RemoteAddr().String()),
	)
	return sess
}

func (c *Channel) receive(sess *sessionConn, scanner *bufio.Scanner) {
	defer c.teardown(sess)

	for scanner.Scan() {
		c.process(sess, scanner.Text())
	}

	switch err := scanner.Err(); {
	case errors.Is(err, bufio.ErrTooLong):
		lgr.Logger.Warn("session sent an oversized line",
			slog.String("name", sess.Name),
			slog.Int("limit", c.maxLine),
			slog.Any("error", lgr.WithTrace(err)),
		)
	case err != nil:
		lgr.Logger.Debug("session read ended",
			slog.String("name", sess.Name),
			slog.Any("error", err),
		)
	}
}

func (c *Channel) process(sess *sessionConn, line string) {
	line = strings.TrimSpace(line)
	if line == "" {
		return
	}

	var cmd Command
	if err := json.Unmarshal([]byte(line), &cmd); err != nil || cmd.Cmd == "" {
		c.mu.Lock()
		c.logLines++
		c.mu.Unlock()
		lgr.Logger.Info("session message",
			slog.String("name", sess.Name),
			slog.String("line", line),
		)
		return
	}

	c.mu.Lock()
	c.commands++
	handlers := append([]Handler(nil), c.handlers...)
	c.mu.Unlock()

	lgr.Logger.Debug("session command",
		slog.String("name", sess.Name),
		slog.String("cmd", cmd.Cmd),
	)
	for _, h := range handlers {
		c.dispatch(h, sess.Session, cmd)
	}
}

func (c *Channel) dispatch(h Handler, sess Session, cmd Command) {
	defer func() {
		if r := recover(); r != nil {
			err := lgr.WithTrace(xerrors.Errorf("handler panic: %v", r))
			lgr.Logger.Error("command handler panicked",
				slog.String("name", sess.Name),
				slog.String("cmd", cmd.Cmd),
				slog.Any("error", err),
			)
			c.report(model.GenError("session_handler", err, map[string]interface{}{
				"session": sess.Name,
				"cmd":     cmd.Cmd,
			}, "command handler panicked"))
		}
	}()

	h.Handle(sess, cmd)
}

// teardown removes the registry entry only if it still points at sess.
func (c *Channel) teardown(sess *sessionConn) {
	c.mu.Lock()
	if cur, ok := c.sessions[sess.Name]; ok && cur == sess {
		delete(c.sessions, sess.Name)
	}
	c.left++
	c.mu.Unlock()

	_ = sess.conn.Close()
	lgr.Logger.Info("session closed",
		slog.String("name", sess.Name),
		slog.String("id", sess.ID),
	)
}

// DmMsg sends msg to the named session followed by a newline. Strings and
// byte slices go out as-is, anything else is JSON-encoded. A failed write
// evicts the session.
func (c *Channel) DmMsg(msg interface{}, name string) error {
	c.mu.Lock()
	sess, ok := c.sessions[name]
	c.mu.Unlock()
	if !ok {
		return xerrors.Errorf("%s: %w", name, ErrSessionNotFound)
	}

	var payload []byte
	switch m := msg.(type) {
	case string:
		payload = []byte(m)
	case []byte:
		payload = m
	default:
		b, err := json.Marshal(m)
		if err != nil {
			return xerrors.Errorf("encoding message for %s: %w", name, err)
		}
		payload = b
	}
	payload = append(payload[:len(payload):len(payload)], '\n')

	sess.wmu.Lock()
	_ = sess.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	_, err := sess.conn.Write(payload)
	sess.wmu.Unlock()

	if err != nil {
		c.evict(sess, err)
		return xerrors.Errorf("writing to %s: %w", name, err)
	}
	return nil
}

func (c *Channel) evict(sess *sessionConn, cause error) {
	c.mu.Lock()
	if cur, ok := c.sessions[sess.Name]; ok && cur == sess {
		delete(c.sessions, sess.Name)
	}
	c.mu.Unlock()

	_ = sess.conn.Close()
	lgr.Logger.Warn("session evicted after write failure",
		slog.String("name", sess.Name),
		slog.String("id", sess.ID),
		slog.Any("error", lgr.WithTrace(cause)),
	)
}

// Sessions returns the registered names in sorted order.
func (c *Channel) Sessions() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	names := make([]string, 0, len(c.sessions))
	for name := range c.sessions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (c *Channel) Stats() model.SessionStats {
	names := c.Sessions()

	c.mu.Lock()
	defer c.mu.Unlock()
	return model.SessionStats{
		Name:     "session",
		Active:   len(names),
		Sessions: names,
		Joined:   c.joined,
		Left:     c.left,
		Commands: c.commands,
		LogLines: c.logLines,
	}
}

// Close stops accepting and closes every open connection.
func (c *Channel) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	l := c.listener
	conns := make([]net.Conn, 0, len(c.conns))
	for conn := range c.conns {
		conns = append(conns, conn)
	}
	c.mu.Unlock()

	var err error
	if l != nil {
		err = l.Close()
	}
	for _, conn := range conns {
		_ = conn.Close()
	}
	return err
}

func (c *Channel) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *Channel) track(conn net.Conn) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	c.conns[conn] = struct{}{}
	return true
}

func (c *Channel) untrack(conn net.Conn) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.conns, conn)
}

func (c *Channel) report(err interface{}) {
	if c.errorStream == nil {
		return
	}
	select {
	case c.errorStream <- err:
	default:
	}
}
