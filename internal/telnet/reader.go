package telnet

import (
	"encoding/binary"
	"io"
	"sync"

	"github.com/dshills/mudstream/internal/logging"
)

// maxSubnegotiation bounds the buffered payload of one SB ... SE sequence.
const maxSubnegotiation = 4096

// Signal is an option state change reported to the owner of a Reader.
type Signal int

const (
	// SignalMarkupOn means the server started MXP.
	SignalMarkupOn Signal = iota + 1

	// SignalMarkupOff means MXP was turned off.
	SignalMarkupOff

	// SignalEchoOn means the server echoes input, typically a password
	// prompt.
	SignalEchoOn

	// SignalEchoOff means local echo resumes.
	SignalEchoOff
)

// String returns the signal name.
func (s Signal) String() string {
	switch s {
	case SignalMarkupOn:
		return "markup-on"
	case SignalMarkupOff:
		return "markup-off"
	case SignalEchoOn:
		return "echo-on"
	case SignalEchoOff:
		return "echo-off"
	default:
		return "unknown"
	}
}

type state int

const (
	stData state = iota
	stCR
	stIAC
	stNegotiate
	stSBOption
	stSBData
	stSBIAC
)

// ReaderOption configures a Reader.
type ReaderOption func(*Reader)

// WithMXP enables or refuses MXP negotiation. It is on by default.
func WithMXP(on bool) ReaderOption {
	return func(r *Reader) { r.mxp = on }
}

// WithTerminalType sets the TTYPE answer.
func WithTerminalType(ttype string) ReaderOption {
	return func(r *Reader) {
		if ttype != "" {
			r.ttype = ttype
		}
	}
}

// WithSignalHandler sets the receiver of option state changes.
func WithSignalHandler(fn func(Signal)) ReaderOption {
	return func(r *Reader) { r.onSignal = fn }
}

// WithLogger sets the logger.
func WithLogger(log *logging.Logger) ReaderOption {
	return func(r *Reader) {
		if log != nil {
			r.log = log
		}
	}
}

// Reader removes telnet framing from src.
//
// A signal is delivered at the start of the Read following the one that
// returned the data preceding it, so data and signals keep stream order
// when both are consumed from one goroutine.
type Reader struct {
	src   io.Reader
	reply io.Writer
	log   *logging.Logger

	mxp      bool
	ttype    string
	onSignal func(Signal)

	st  state
	cmd byte
	sb  []byte

	raw     []byte
	buf     []byte
	signals []Signal

	// local holds options we perform (WILL), remote those the server
	// performs (DO).
	local  map[byte]bool
	remote map[byte]bool

	err error

	mu          sync.Mutex
	naws        bool
	width       int
	height      int
	replyFailed bool
}

// NewReader creates a Reader over src writing negotiation replies to reply.
func NewReader(src io.Reader, reply io.Writer, opts ...ReaderOption) *Reader {
	r := &Reader{
		src:    src,
		reply:  reply,
		log:    logging.Null,
		mxp:    true,
		ttype:  "mudstream",
		local:  make(map[byte]bool),
		remote: make(map[byte]bool),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.log = r.log.WithComponent("telnet")
	return r
}

// Read implements io.Reader, returning only application data.
func (r *Reader) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	for {
		r.fireSignals()

		if len(r.raw) == 0 {
			if r.err != nil {
				err := r.err
				r.err = nil
				return 0, err
			}
			if cap(r.buf) < len(p) {
				r.buf = make([]byte, len(p))
			}
			n, err := r.src.Read(r.buf[:len(p)])
			if n == 0 {
				if err == nil {
					continue
				}
				return 0, err
			}
			r.raw = r.buf[:n]
			r.err = err
		}

		consumed, n := r.filter(r.raw, p)
		r.raw = r.raw[consumed:]
		if n > 0 {
			return n, nil
		}
	}
}

// Filter strips framing from a whole chunk and returns the data bytes.
// Signals are delivered before Filter returns.
func (r *Reader) Filter(chunk []byte) []byte {
	out := make([]byte, 0, len(chunk))
	tmp := make([]byte, len(chunk))
	for len(chunk) > 0 {
		consumed, n := r.filter(chunk, tmp)
		out = append(out, tmp[:n]...)
		chunk = chunk[consumed:]
		r.fireSignals()
	}
	return out
}

func (r *Reader) fireSignals() {
	if len(r.signals) == 0 {
		return
	}
	sigs := r.signals
	r.signals = nil
	if r.onSignal == nil {
		return
	}
	for _, s := range sigs {
		r.onSignal(s)
	}
}

// filter consumes bytes of in, writing data to out. It stops when in is
// exhausted, out is full, or a signal was raised.
func (r *Reader) filter(in, out []byte) (consumed, n int) {
	for consumed < len(in) && n < len(out) && len(r.signals) == 0 {
		b := in[consumed]
		consumed++

		switch r.st {
		case stData:
			switch b {
			case IAC:
				r.st = stIAC
			case '\r':
				r.st = stCR
				out[n] = b
				n++
			default:
				out[n] = b
				n++
			}

		case stCR:
			r.st = stData
			switch b {
			case 0:
			case IAC:
				r.st = stIAC
			default:
				out[n] = b
				n++
				if b == '\r' {
					r.st = stCR
				}
			}

		case stIAC:
			switch b {
			case IAC:
				out[n] = IAC
				n++
				r.st = stData
			case WILL, WONT, DO, DONT:
				r.cmd = b
				r.st = stNegotiate
			case SB:
				r.st = stSBOption
			default:
				// GA, NOP and the rest carry nothing for the decoder.
				r.log.Debug("IAC %s", CommandName(b))
				r.st = stData
			}

		case stNegotiate:
			r.negotiate(r.cmd, b)
			r.st = stData

		case stSBOption:
			r.sb = append(r.sb[:0], b)
			r.st = stSBData

		case stSBData:
			if b == IAC {
				r.st = stSBIAC
				continue
			}
			r.appendSB(b)

		case stSBIAC:
			switch b {
			case SE:
				r.subnegotiate(r.sb)
				r.sb = r.sb[:0]
				r.st = stData
			case IAC:
				r.appendSB(IAC)
				r.st = stSBData
			default:
				r.log.Debug("unexpected IAC %s inside subnegotiation", CommandName(b))
				r.st = stSBData
			}
		}
	}
	return consumed, n
}

func (r *Reader) appendSB(b byte) {
	if len(r.sb) >= maxSubnegotiation {
		if len(r.sb) == maxSubnegotiation {
			r.log.Warn("%v: option %s", ErrSubnegotiationTooLong, OptionName(r.sb[0]))
			r.sb = append(r.sb, b)
		}
		return
	}
	r.sb = append(r.sb, b)
}

// acceptRemote reports whether the server may enable opt.
func (r *Reader) acceptRemote(opt byte) bool {
	switch opt {
	case OptEcho, OptSGA:
		return true
	case OptMXP:
		return r.mxp
	}
	return false
}

// acceptLocal reports whether the client performs opt.
func (r *Reader) acceptLocal(opt byte) bool {
	switch opt {
	case OptTType, OptNAWS:
		return true
	case OptMXP:
		return r.mxp
	}
	return false
}

func (r *Reader) negotiate(cmd, opt byte) {
	r.log.Debug("server %s %s", CommandName(cmd), OptionName(opt))

	switch cmd {
	case WILL:
		if !r.acceptRemote(opt) {
			r.send(IAC, DONT, opt)
			return
		}
		if r.remote[opt] {
			return
		}
		r.remote[opt] = true
		r.send(IAC, DO, opt)
		if opt == OptEcho {
			r.raise(SignalEchoOn)
		}

	case WONT:
		if !r.remote[opt] {
			return
		}
		r.remote[opt] = false
		r.send(IAC, DONT, opt)
		if opt == OptEcho {
			r.raise(SignalEchoOff)
		}

	case DO:
		if !r.acceptLocal(opt) {
			r.send(IAC, WONT, opt)
			return
		}
		if r.local[opt] {
			return
		}
		r.local[opt] = true
		r.send(IAC, WILL, opt)
		switch opt {
		case OptMXP:
			r.raise(SignalMarkupOn)
		case OptNAWS:
			r.mu.Lock()
			r.naws = true
			r.mu.Unlock()
			r.sendWindowSize()
		}

	case DONT:
		if !r.local[opt] {
			return
		}
		r.local[opt] = false
		r.send(IAC, WONT, opt)
		switch opt {
		case OptMXP:
			r.raise(SignalMarkupOff)
		case OptNAWS:
			r.mu.Lock()
			r.naws = false
			r.mu.Unlock()
		}
	}
}

func (r *Reader) subnegotiate(sb []byte) {
	if len(sb) == 0 {
		return
	}
	switch sb[0] {
	case OptMXP:
		// IAC SB MXP IAC SE starts MXP whether or not DO came first.
		if !r.mxp {
			return
		}
		if !r.local[OptMXP] {
			r.local[OptMXP] = true
		}
		r.raise(SignalMarkupOn)

	case OptTType:
		if len(sb) >= 2 && sb[1] == ttypeSend {
			msg := []byte{IAC, SB, OptTType, ttypeIS}
			msg = append(msg, Escape([]byte(r.ttype))...)
			r.send(append(msg, IAC, SE)...)
		}

	default:
		r.log.Debug("ignoring subnegotiation for %s", OptionName(sb[0]))
	}
}

func (r *Reader) raise(s Signal) {
	r.signals = append(r.signals, s)
}

// SetWindowSize records the terminal size and reports it to the server
// once NAWS is agreed.
func (r *Reader) SetWindowSize(width, height int) {
	r.mu.Lock()
	r.width, r.height = width, height
	on := r.naws
	r.mu.Unlock()
	if on {
		r.sendWindowSize()
	}
}

func (r *Reader) sendWindowSize() {
	r.mu.Lock()
	w, h := r.width, r.height
	r.mu.Unlock()
	if w <= 0 || h <= 0 {
		return
	}
	var size [4]byte
	binary.BigEndian.PutUint16(size[0:], uint16(min(w, 0xffff)))
	binary.BigEndian.PutUint16(size[2:], uint16(min(h, 0xffff)))
	msg := []byte{IAC, SB, OptNAWS}
	msg = append(msg, Escape(size[:])...)
	r.send(append(msg, IAC, SE)...)
}

func (r *Reader) send(b ...byte) {
	if r.reply == nil {
		return
	}
	if _, err := r.reply.Write(b); err != nil {
		r.mu.Lock()
		first := !r.replyFailed
		r.replyFailed = true
		r.mu.Unlock()
		if first {
			r.log.Warn("negotiation reply failed: %v", err)
		}
	}
}
