package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/dshills/mudstream/internal/logging"
	"github.com/dshills/mudstream/internal/telnet"
)

// Message is one item read from the server: either a data chunk or an
// option signal.
type Message struct {
	Data   []byte
	Signal telnet.Signal
}

// IsSignal reports whether the message carries a signal rather than data.
func (m Message) IsSignal() bool {
	return m.Signal != 0
}

// Options configures a Session.
type Options struct {
	// DialTimeout bounds connection setup (default 10s).
	DialTimeout time.Duration

	// MXP enables MXP negotiation.
	MXP bool

	// TerminalType is reported for TTYPE.
	TerminalType string

	// BufferSize is the read buffer size (default 4096).
	BufferSize int

	// Logger receives session logs.
	Logger *logging.Logger
}

// DefaultOptions returns the default session options.
func DefaultOptions() Options {
	return Options{
		DialTimeout:  10 * time.Second,
		MXP:          true,
		TerminalType: "mudstream",
		BufferSize:   4096,
	}
}

// Session is a live connection.
type Session struct {
	id   string
	addr string
	conn net.Conn
	tr   *telnet.Reader
	log  *logging.Logger
	opts Options

	wmu sync.Mutex

	messages chan Message
	done     chan struct{}
	started  atomic.Bool
	closed   atomic.Bool

	errMu sync.Mutex
	err   error
}

// Dial connects to addr.
func Dial(ctx context.Context, addr string, opts Options) (*Session, error) {
	if opts.DialTimeout <= 0 {
		opts.DialTimeout = DefaultOptions().DialTimeout
	}
	d := net.Dialer{Timeout: opts.DialTimeout}
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrDial, addr, err)
	}
	return New(conn, opts), nil
}

// New wraps an established connection.
func New(conn net.Conn, opts Options) *Session {
	if opts.BufferSize <= 0 {
		opts.BufferSize = DefaultOptions().BufferSize
	}
	log := opts.Logger
	if log == nil {
		log = logging.Null
	}

	s := &Session{
		id:       uuid.NewString(),
		addr:     conn.RemoteAddr().String(),
		conn:     conn,
		opts:     opts,
		messages: make(chan Message, 64),
		done:     make(chan struct{}),
	}
	s.log = log.WithComponent("session").WithField("session", s.id)
	s.tr = telnet.NewReader(conn, s,
		telnet.WithMXP(opts.MXP),
		telnet.WithTerminalType(opts.TerminalType),
		telnet.WithSignalHandler(s.signal),
		telnet.WithLogger(log),
	)
	return s
}

// ID returns the session's unique id.
func (s *Session) ID() string {
	return s.id
}

// Addr returns the remote address.
func (s *Session) Addr() string {
	return s.addr
}

// Messages returns the ordered stream of chunks and signals. It is closed
// when the connection ends; Err then reports why.
func (s *Session) Messages() <-chan Message {
	return s.messages
}

// Err returns the error that ended the read loop, or nil after a clean
// end of stream or Close.
func (s *Session) Err() error {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	return s.err
}

// Start begins reading. The read loop stops when ctx is cancelled, the
// server closes the connection, or Close is called.
func (s *Session) Start(ctx context.Context) error {
	if s.closed.Load() {
		return ErrClosed
	}
	if s.started.Swap(true) {
		return ErrAlreadyStarted
	}

	go func() {
		select {
		case <-ctx.Done():
			_ = s.Close()
		case <-s.done:
		}
	}()
	go s.readLoop()

	s.log.Info("connected to %s", s.addr)
	return nil
}

func (s *Session) readLoop() {
	defer close(s.messages)

	buf := make([]byte, s.opts.BufferSize)
	for {
		n, err := s.tr.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			if !s.deliver(Message{Data: chunk}) {
				return
			}
		}
		if err != nil {
			s.finish(err)
			return
		}
	}
}

func (s *Session) finish(err error) {
	if errors.Is(err, io.EOF) || s.closed.Load() {
		err = nil
	}
	s.errMu.Lock()
	s.err = err
	s.errMu.Unlock()
	if err != nil {
		s.log.Warn("read failed: %v", err)
	} else {
		s.log.Info("connection closed")
	}
}

// signal is called from the read loop between chunks.
func (s *Session) signal(sig telnet.Signal) {
	s.log.Debug("telnet signal %s", sig)
	s.deliver(Message{Signal: sig})
}

func (s *Session) deliver(m Message) bool {
	select {
	case s.messages <- m:
		return true
	case <-s.done:
		return false
	}
}

// Write sends raw bytes. It is the reply path for telnet negotiation and
// is safe for concurrent use.
func (s *Session) Write(p []byte) (int, error) {
	if s.closed.Load() {
		return 0, ErrClosed
	}
	s.wmu.Lock()
	defer s.wmu.Unlock()
	return s.conn.Write(p)
}

// Send writes one command line, CRLF terminated with IAC bytes doubled.
func (s *Session) Send(line string) error {
	data := telnet.Escape([]byte(line + "\r\n"))
	if _, err := s.Write(data); err != nil {
		return fmt.Errorf("sending command: %w", err)
	}
	return nil
}

// SetWindowSize reports the terminal size to the server when it asked for
// NAWS.
func (s *Session) SetWindowSize(width, height int) {
	s.tr.SetWindowSize(width, height)
}

// Close closes the connection. It is safe to call more than once.
func (s *Session) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	close(s.done)
	return s.conn.Close()
}
