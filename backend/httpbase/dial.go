package httpbase

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/adamwoolhether/fetchr/tlsstream"
	"github.com/adamwoolhether/fetchr/transfer"
)

// ErrProxyRefused is returned when the proxy answers CONNECT with
// anything but 200.
var ErrProxyRefused = errors.New("proxy refused tunnel")

// connectTimeout returns the call's connect timeout, or 0 for none.
func (b *Base) connectTimeout(ctx context.Context) time.Duration {
	if call := CallFrom(ctx); call != nil && call.Limits.ConnectTimeout > 0 {
		return call.Limits.ConnectTimeout
	}
	return max(b.cfg.Limits.ConnectTimeout, 0)
}

func (b *Base) dial(ctx context.Context, network, addr string) (net.Conn, error) {
	d := net.Dialer{Timeout: b.connectTimeout(ctx), KeepAlive: 30 * time.Second}

	conn, err := d.DialContext(ctx, network, addr)
	if err != nil {
		if ctx.Err() == nil && isTimeout(err) {
			return nil, &transfer.TimeoutError{Op: "connect", Err: err}
		}
		return nil, err
	}
	return conn, nil
}

// TLSDialer returns a DialTLSContext function that connects to addr,
// through the call's proxy when it has one, and runs a TLS session from
// newSession over the stream. The whole sequence is bounded by the
// connect timeout, when there is one.
func (b *Base) TLSDialer(newSession tlsstream.SessionFunc) TLSDialFunc {
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		host, _, err := net.SplitHostPort(addr)
		if err != nil {
			return nil, fmt.Errorf("splitting %q: %w", addr, err)
		}

		cctx, cancel := ctx, context.CancelFunc(func() {})
		if timeout := b.connectTimeout(ctx); timeout > 0 {
			cctx, cancel = context.WithTimeout(ctx, timeout)
		}
		defer cancel()

		var stream net.Conn
		if call := CallFrom(ctx); call != nil && call.Proxy != nil {
			stream, err = b.Tunnel(cctx, call.Proxy.Addr(), addr)
		} else {
			stream, err = b.dial(cctx, network, addr)
		}
		if err == nil {
			var conn *tlsstream.Conn
			conn, err = tlsstream.Client(cctx, stream, newSession, host)
			if err == nil {
				return conn, nil
			}
		}

		if ctx.Err() == nil && errors.Is(cctx.Err(), context.DeadlineExceeded) {
			var te *transfer.TimeoutError
			if !errors.As(err, &te) {
				err = &transfer.TimeoutError{Op: "connect", Err: err}
			}
		}
		return nil, err
	}
}

// Tunnel opens an HTTP CONNECT tunnel to addr through the proxy at
// proxyAddr. Bytes the proxy sent after its reply are kept on the
// returned conn and handed to the TLS session first.
func (b *Base) Tunnel(ctx context.Context, proxyAddr, addr string) (net.Conn, error) {
	conn, err := b.dial(ctx, "tcp", proxyAddr)
	if err != nil {
		return nil, fmt.Errorf("dialing proxy %s: %w", proxyAddr, err)
	}

	// Unblock the CONNECT exchange when ctx ends.
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })

	req := &http.Request{
		Method: http.MethodConnect,
		URL:    &url.URL{Opaque: addr},
		Host:   addr,
		Header: http.Header{"User-Agent": {UserAgent}},
	}

	br := bufio.NewReader(conn)
	resp, err := func() (*http.Response, error) {
		if err := req.Write(conn); err != nil {
			return nil, err
		}
		return http.ReadResponse(br, req)
	}()

	if !stop() {
		return nil, context.Cause(ctx)
	}
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("proxy CONNECT %s: %w", addr, err)
	}
	if resp.StatusCode != http.StatusOK {
		_ = conn.Close()
		return nil, fmt.Errorf("%w: CONNECT %s: %s", ErrProxyRefused, addr, resp.Status)
	}

	bc := bufferedConn{Conn: conn}
	if n := br.Buffered(); n > 0 {
		bc.pending, _ = br.Peek(n)
	}

	return &bc, nil
}

// bufferedConn is a conn with bytes already read off the wire.
type bufferedConn struct {
	net.Conn
	pending []byte
}

func (c *bufferedConn) TakePending() []byte {
	p := c.pending
	c.pending = nil
	return p
}

func (c *bufferedConn) Read(p []byte) (int, error) {
	if len(c.pending) > 0 {
		n := copy(p, c.pending)
		c.pending = c.pending[n:]
		return n, nil
	}
	return c.Conn.Read(p)
}

func (c *bufferedConn) CloseWrite() error {
	if cw, ok := c.Conn.(interface{ CloseWrite() error }); ok {
		return cw.CloseWrite()
	}
	return nil
}

func (c *bufferedConn) CloseRead() error {
	if cr, ok := c.Conn.(interface{ CloseRead() error }); ok {
		return cr.CloseRead()
	}
	return nil
}
