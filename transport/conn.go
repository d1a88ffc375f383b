// Package transport wraps plaintext and TLS sockets behind one connection
// type with bounded polling, peek/consume reads and permanent shutdown.
//
// A Conn never blocks indefinitely: every read waits at most one poll
// interval and reports ErrWouldBlock when nothing arrived, leaving the retry
// budget to the caller. Any other error shuts the connection down for good.
package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"runtime"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/freekieb7/kiln/buffer"
)

type Flags uint8

const (
	TCP Flags = 1 << iota
	Server
	Secure
)

func (f Flags) Has(flag Flags) bool {
	return f&flag == flag
}

func (f Flags) String() string {
	s := "udp"
	if f.Has(TCP) {
		s = "tcp"
	}
	if f.Has(Secure) {
		s += "+tls"
	}
	if f.Has(Server) {
		s += " server"
	} else {
		s += " client"
	}
	return s
}

var (
	ErrWouldBlock  = errors.New("transport: would block")
	ErrClosed      = errors.New("transport: connection is shut down")
	ErrNotListener = errors.New("transport: not a listening connection")
	ErrNoAddress   = errors.New("transport: address did not resolve")
	ErrNoKeyPair   = errors.New("transport: secure server needs a key pair")
	ErrUnsupported = errors.New("transport: unsupported flag combination")
)

type Conn struct {
	flags  Flags
	opts   options
	dialer dialer

	raw net.Conn
	ln  net.Listener

	// in holds bytes read from the socket but not yet consumed.
	in *buffer.Buffer

	valid atomic.Bool
	once  sync.Once

	pending       handshaker
	handshakeOnce sync.Once
	handshakeErr  error

	mu  sync.Mutex
	err error

	remoteAddr string
	remotePort uint16
}

// Open resolves address and either listens on it (Server flag) or connects
// to it. Resolved candidates are tried in order; the last failure is
// returned when none of them works.
func Open(ctx context.Context, address string, port uint16, flags Flags, opts ...Option) (*Conn, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	d, err := newDialer(flags, address, o)
	if err != nil {
		return nil, err
	}

	ips, err := o.resolver.LookupIPAddr(ctx, address)
	if err != nil {
		return nil, fmt.Errorf("transport: resolve %s: %w", address, err)
	}
	if len(ips) == 0 {
		return nil, ErrNoAddress
	}

	network := "udp"
	if flags.Has(TCP) {
		network = "tcp"
	}

	lastErr := ErrNoAddress
	for _, ip := range ips {
		c := &Conn{
			flags:  flags,
			opts:   o,
			dialer: d,
			in:     buffer.New(o.readAhead),
		}

		switch {
		case flags.Has(Server) && flags.Has(TCP):
			c.ln, err = listenStream(ip, int(port))
		case flags.Has(Server):
			var pc *net.UDPConn
			if pc, err = net.ListenUDP(network, &net.UDPAddr{IP: ip.IP, Port: int(port), Zone: ip.Zone}); err == nil {
				c.raw = pc
			}
		default:
			addr := net.JoinHostPort(ip.String(), strconv.Itoa(int(port)))
			c.raw, err = d.dial(ctx, network, addr)
		}
		if err != nil {
			lastErr = err
			c.Shutdown()
			continue
		}

		c.valid.Store(true)
		c.setRemote()
		return c, nil
	}

	return nil, fmt.Errorf("transport: open %s:%d: %w", address, port, lastErr)
}

// Wrap adopts an established connection.
func Wrap(raw net.Conn, flags Flags, opts ...Option) *Conn {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	c := &Conn{
		flags:  flags,
		opts:   o,
		dialer: &plainDialer{},
		raw:    raw,
		in:     buffer.New(o.readAhead),
	}
	c.valid.Store(true)
	c.setRemote()

	return c
}

func (c *Conn) setRemote() {
	if c.raw == nil || c.raw.RemoteAddr() == nil {
		return
	}

	host, port, err := net.SplitHostPort(c.raw.RemoteAddr().String())
	if err != nil {
		c.remoteAddr = c.raw.RemoteAddr().String()
		return
	}

	p, _ := strconv.ParseUint(port, 10, 16)
	c.remoteAddr = host
	c.remotePort = uint16(p)
}

// Accept returns the next pending client, waiting at most one poll interval.
// Clients inherit the Secure flag and lose the Server flag. The TLS handshake
// of a secure client is deferred to Handshake or its first read or write, so
// a slow client never holds up the accept loop.
func (c *Conn) Accept() (*Conn, error) {
	if c.ln == nil {
		return nil, ErrNotListener
	}
	if !c.Valid() {
		return nil, ErrClosed
	}

	if dl, ok := c.ln.(interface{ SetDeadline(time.Time) error }); ok {
		dl.SetDeadline(time.Now().Add(c.opts.poll))
	}

	raw, err := c.ln.Accept()
	if err != nil {
		if isTimeout(err) {
			return nil, ErrWouldBlock
		}
		c.fail(err)
		return nil, err
	}

	stream := c.dialer.serve(raw)

	client := &Conn{
		flags:  c.flags &^ Server,
		opts:   c.opts,
		dialer: c.dialer,
		raw:    stream,
		in:     buffer.New(c.opts.readAhead),
	}
	if hs, ok := stream.(handshaker); ok {
		client.pending = hs
	}
	client.valid.Store(true)
	client.setRemote()

	return client, nil
}

type handshaker interface {
	HandshakeContext(ctx context.Context) error
}

// Handshake completes a deferred TLS handshake, bounded by the handshake
// timeout. It runs at most once; a failure shuts the connection down and is
// returned on every later call. Plaintext connections return nil.
func (c *Conn) Handshake(ctx context.Context) error {
	if c.pending == nil {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}

	c.handshakeOnce.Do(func() {
		hctx, cancel := context.WithTimeout(ctx, c.opts.handshakeTimeout)
		defer cancel()

		if err := c.pending.HandshakeContext(hctx); err != nil {
			c.handshakeErr = fmt.Errorf("transport: tls handshake: %w", err)
			c.fail(c.handshakeErr)
		}
	})
	return c.handshakeErr
}

func (c *Conn) Flags() Flags {
	return c.flags
}

func (c *Conn) Valid() bool {
	return c.valid.Load()
}

// Err returns the error that invalidated the connection, if any.
func (c *Conn) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.err
}

func (c *Conn) RemoteAddr() string {
	return c.remoteAddr
}

func (c *Conn) RemotePort() uint16 {
	return c.remotePort
}

// LocalPort reports the bound port, which matters when listening on port 0.
func (c *Conn) LocalPort() uint16 {
	var addr net.Addr
	switch {
	case c.ln != nil:
		addr = c.ln.Addr()
	case c.raw != nil:
		addr = c.raw.LocalAddr()
	default:
		return 0
	}

	_, port, err := net.SplitHostPort(addr.String())
	if err != nil {
		return 0
	}
	p, _ := strconv.ParseUint(port, 10, 16)
	return uint16(p)
}

// Readable reports whether at least one byte can be consumed, polling the
// socket for up to one poll interval.
func (c *Conn) Readable() bool {
	return c.poll() == nil
}

// Writable reports whether writes may still be attempted. Writes themselves
// are bounded by the write timeout.
func (c *Conn) Writable() bool {
	return c.Valid() && c.raw != nil
}

func (c *Conn) poll() error {
	if !c.Valid() {
		return ErrClosed
	}
	if c.raw == nil {
		return ErrNotListener
	}
	if err := c.Handshake(context.Background()); err != nil {
		return err
	}
	if c.in.Len() > 0 {
		return nil
	}

	c.raw.SetReadDeadline(time.Now().Add(c.opts.poll))
	_, err := c.in.Fill(c.raw)
	if c.in.Len() > 0 {
		return nil
	}

	if err == nil || isTimeout(err) {
		return ErrWouldBlock
	}

	c.fail(err)
	return err
}

func (c *Conn) ReadByte() (byte, error) {
	if err := c.poll(); err != nil {
		return 0, err
	}
	return c.in.ReadByte()
}

// PeekByte returns the next byte without consuming it.
func (c *Conn) PeekByte() (byte, error) {
	if err := c.poll(); err != nil {
		return 0, err
	}

	b, ok := c.in.PeekByte(0)
	if !ok {
		return 0, ErrWouldBlock
	}
	return b, nil
}

// Read consumes up to len(p) bytes. It returns ErrWouldBlock when nothing
// arrived within one poll interval.
func (c *Conn) Read(p []byte) (int, error) {
	if err := c.poll(); err != nil {
		return 0, err
	}
	return c.in.Read(p)
}

// PeekInto copies pending bytes into p without consuming them.
func (c *Conn) PeekInto(p []byte) (int, error) {
	if err := c.poll(); err != nil {
		return 0, err
	}
	return c.in.PeekAt(p, 0), nil
}

// ReadInto moves up to limit pending bytes into b.
func (c *Conn) ReadInto(b *buffer.Buffer, limit int) (int, error) {
	if err := c.poll(); err != nil {
		return 0, err
	}

	n := min(c.in.Len(), b.Space(), limit)
	if n <= 0 {
		return 0, nil
	}

	chunk := make([]byte, n)
	n, _ = c.in.Read(chunk)
	return b.Write(chunk[:n])
}

// ReadLine appends one line to b, without its terminator. Recognized
// terminators are "\n", "\r\n" and "\n\r". Each poll that yields nothing
// costs one unit of the budget; every consumed byte restores the full budget.
// It reports whether a terminator was found.
func (c *Conn) ReadLine(b *buffer.Buffer, units int) bool {
	remaining := units
	sawCR := false

	for remaining > 0 {
		ch, err := c.PeekByte()
		if err != nil {
			if errors.Is(err, ErrWouldBlock) {
				remaining--
				continue
			}
			return false
		}

		if ch == '\n' {
			c.in.TrimLeft(1)
			if sawCR {
				b.TrimRight(1)
			} else if next, ok := c.in.PeekByte(0); ok && next == '\r' {
				c.in.TrimLeft(1)
			}
			return true
		}

		if b.Space() == 0 {
			return false
		}

		c.in.TrimLeft(1)
		b.WriteByte(ch)
		sawCR = ch == '\r'
		remaining = units
	}

	return false
}

// Write sends all of p unless the connection fails first.
func (c *Conn) Write(p []byte) (int, error) {
	if c.raw == nil {
		return 0, ErrNotListener
	}
	if err := c.Handshake(context.Background()); err != nil {
		return 0, err
	}

	written := 0
	for written < len(p) {
		if !c.Valid() {
			return written, ErrClosed
		}

		c.raw.SetWriteDeadline(time.Now().Add(c.opts.writeTimeout))
		n, err := c.raw.Write(p[written:])
		written += n
		if err != nil {
			c.fail(err)
			return written, err
		}
		if n == 0 {
			runtime.Gosched()
		}
	}

	return written, nil
}

func (c *Conn) WriteByte(b byte) error {
	_, err := c.Write([]byte{b})
	return err
}

func (c *Conn) WriteString(s string) (int, error) {
	return c.Write([]byte(s))
}

// WriteBuffer drains b into the connection.
func (c *Conn) WriteBuffer(b *buffer.Buffer) (int64, error) {
	return b.WriteTo(c)
}

// Shutdown closes the connection gracefully. It is idempotent and permanent.
func (c *Conn) Shutdown() {
	c.shutdown(true)
}

func (c *Conn) fail(err error) {
	c.mu.Lock()
	if c.err == nil {
		c.err = err
	}
	c.mu.Unlock()

	if c.Valid() && !errors.Is(err, io.EOF) {
		c.opts.logger.Debug("connection failed", "remote", c.remoteAddr, "error", err)
	}

	c.shutdown(false)
}

func (c *Conn) shutdown(graceful bool) {
	c.once.Do(func() {
		c.valid.Store(false)

		if c.ln != nil {
			c.ln.Close()
		}

		if c.raw != nil {
			if graceful {
				c.linger()
			}
			c.raw.Close()
		}

		c.in.Clear()
	})
}

// linger half-closes the stream and drains what the peer still sends for one
// poll interval, so unread request bytes do not turn the close into a reset.
func (c *Conn) linger() {
	cw, ok := c.raw.(interface{ CloseWrite() error })
	if !ok || cw.CloseWrite() != nil {
		return
	}

	c.raw.SetReadDeadline(time.Now().Add(c.opts.poll))
	io.Copy(io.Discard, io.LimitReader(c.raw, 64*1024))
}

func isTimeout(err error) bool {
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}

	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
