package tlsstream

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"
)

// ErrPoisoned is reported by every operation on a Conn after a session
// operation panicked; the session state can no longer be trusted.
var ErrPoisoned = errors.New("tls stream poisoned by a panic during a TLS operation")

// ErrUnsupported is returned for a directional close the underlying
// stream cannot perform.
var ErrUnsupported = errors.New("operation not supported by underlying stream")

// Flusher is implemented by streams that buffer writes.
type Flusher interface {
	Flush() error
}

// PendingReader is implemented by streams that already hold bytes read
// off the wire ahead of the TLS session, for example the remainder of a
// buffered proxy CONNECT reply.
type PendingReader interface {
	// TakePending returns the buffered bytes and forgets them.
	TakePending() []byte
}

type closeReader interface {
	CloseRead() error
}

type closeWriter interface {
	CloseWrite() error
}

// Conn is a TLS session over an underlying stream, exposing the same
// capabilities as the stream itself.
//
// net/http reads a connection from one goroutine while writing it from
// another, so each direction has its own lock, held for exactly one
// Read or one Write. Deadlines, addresses and Close go straight to the
// underlying stream so they can interrupt a blocked call.
type Conn struct {
	stream net.Conn
	pipe   *recordPipe
	sess   Session

	readMu   sync.Mutex
	writeMu  sync.Mutex
	poisoned atomic.Bool

	closeOnce sync.Once
	closeErr  error
}

// Client wraps stream with a session created by newSession and runs the
// handshake. The stream is closed if the handshake fails.
func Client(ctx context.Context, stream net.Conn, newSession SessionFunc, serverName string) (*Conn, error) {
	c := newConn(stream, newSession, serverName)

	if err := c.handshake(ctx); err != nil {
		_ = stream.Close()
		return nil, fmt.Errorf("tls handshake with %s: %w", serverName, err)
	}

	return c, nil
}

func newConn(stream net.Conn, newSession SessionFunc, serverName string) *Conn {
	pipe := &recordPipe{Conn: stream}
	if pr, ok := stream.(PendingReader); ok {
		pipe.pending = pr.TakePending()
	}

	return &Conn{
		stream: stream,
		pipe:   pipe,
		sess:   newSession(pipe, serverName),
	}
}

func (c *Conn) handshake(ctx context.Context) error {
	c.readMu.Lock()
	defer c.readMu.Unlock()

	_, err := c.guard(&c.writeMu, "handshake", func() (int, error) {
		return 0, c.sess.HandshakeContext(ctx)
	})
	return err
}

// Read decrypts application data into p. The session pulls records
// through the record pipe, which drains pending bytes before the stream.
func (c *Conn) Read(p []byte) (int, error) {
	return c.guard(&c.readMu, "read", func() (int, error) {
		return c.sess.Read(p)
	})
}

// Write encrypts p and sends the resulting records to the stream.
func (c *Conn) Write(p []byte) (int, error) {
	return c.guard(&c.writeMu, "write", func() (int, error) {
		return c.sess.Write(p)
	})
}

// Flush flushes the underlying stream if it buffers writes. Records are
// already flushed after every session write, so this only matters for
// bytes written to the stream by other means.
func (c *Conn) Flush() error {
	_, err := c.guard(&c.writeMu, "flush", func() (int, error) {
		return 0, c.pipe.flush()
	})
	return err
}

// CloseWrite sends close_notify and then shuts down the write side of
// the underlying stream when it supports that.
func (c *Conn) CloseWrite() error {
	_, err := c.guard(&c.writeMu, "close write", func() (int, error) {
		if err := c.sess.CloseWrite(); err != nil {
			return 0, err
		}
		cw, ok := c.stream.(closeWriter)
		if !ok {
			return 0, nil
		}
		return 0, cw.CloseWrite()
	})
	return err
}

// CloseRead shuts down the read side of the underlying stream.
func (c *Conn) CloseRead() error {
	cr, ok := c.stream.(closeReader)
	if !ok {
		return c.opError("close read", ErrUnsupported)
	}
	return cr.CloseRead()
}

// Close closes the session, which closes the underlying stream.
func (c *Conn) Close() error {
	c.closeOnce.Do(func() {
		if c.poisoned.Load() {
			c.closeErr = c.stream.Close()
			return
		}
		c.closeErr = c.sess.Close()
	})
	return c.closeErr
}

// NegotiatedProtocol returns the ALPN protocol agreed in the handshake.
func (c *Conn) NegotiatedProtocol() string {
	c.readMu.Lock()
	defer c.readMu.Unlock()
	if c.poisoned.Load() {
		return ""
	}
	return c.sess.NegotiatedProtocol()
}

func (c *Conn) LocalAddr() net.Addr                { return c.stream.LocalAddr() }
func (c *Conn) RemoteAddr() net.Addr               { return c.stream.RemoteAddr() }
func (c *Conn) SetDeadline(t time.Time) error      { return c.stream.SetDeadline(t) }
func (c *Conn) SetReadDeadline(t time.Time) error  { return c.stream.SetReadDeadline(t) }
func (c *Conn) SetWriteDeadline(t time.Time) error { return c.stream.SetWriteDeadline(t) }

// guard runs fn under mu. A panic inside fn poisons the Conn and is
// reported as an I/O error instead of unwinding through the caller.
func (c *Conn) guard(mu *sync.Mutex, op string, fn func() (int, error)) (n int, err error) {
	mu.Lock()
	defer mu.Unlock()

	if c.poisoned.Load() {
		return 0, c.opError(op, ErrPoisoned)
	}

	defer func() {
		if r := recover(); r != nil {
			c.poisoned.Store(true)
			n, err = 0, c.opError(op, fmt.Errorf("%w: %v", ErrPoisoned, r))
		}
	}()

	return fn()
}

func (c *Conn) opError(op string, err error) error {
	return &net.OpError{
		Op:     op,
		Net:    "tls",
		Source: c.stream.LocalAddr(),
		Addr:   c.stream.RemoteAddr(),
		Err:    err,
	}
}

// recordPipe is the only path between the session and the stream.
type recordPipe struct {
	net.Conn
	pending []byte
}

func (p *recordPipe) Read(b []byte) (int, error) {
	if len(p.pending) > 0 {
		n := copy(b, p.pending)
		p.pending = p.pending[n:]
		return n, nil
	}
	return p.Conn.Read(b)
}

func (p *recordPipe) Write(b []byte) (int, error) {
	n, err := p.Conn.Write(b)
	if err != nil {
		return n, err
	}
	return n, p.flush()
}

func (p *recordPipe) flush() error {
	if f, ok := p.Conn.(Flusher); ok {
		return f.Flush()
	}
	return nil
}
