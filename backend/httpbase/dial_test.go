package httpbase

import (
	"bufio"
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/adamwoolhether/fetchr/transfer"
)

// connectProxy accepts one connection, records the CONNECT request and
// answers with reply followed by early.
func connectProxy(t *testing.T, reply, early string) (addr string, requests <-chan *http.Request) {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { _ = ln.Close() })

	reqs := make(chan *http.Request, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()

		req, err := http.ReadRequest(bufio.NewReader(conn))
		if err != nil {
			return
		}
		reqs <- req

		_, _ = io.WriteString(conn, reply+early)
		// Hold the tunnel open until the client goes away.
		_, _ = io.Copy(io.Discard, conn)
	}()

	return ln.Addr().String(), reqs
}

func TestTunnel(t *testing.T) {
	addr, reqs := connectProxy(t, "HTTP/1.1 200 Connection established\r\n\r\n", "early")
	b := newTestBase(Config{})

	conn, err := b.Tunnel(t.Context(), addr, "origin.example:443")
	if err != nil {
		t.Fatalf("tunnel: %v", err)
	}
	defer conn.Close()

	req := <-reqs
	if req.Method != http.MethodConnect || req.Host != "origin.example:443" {
		t.Errorf("exp CONNECT origin.example:443, got %s %s", req.Method, req.Host)
	}

	bc, ok := conn.(*bufferedConn)
	if !ok {
		t.Fatalf("exp *bufferedConn, got %T", conn)
	}

	// The early bytes may arrive in the same segment as the reply or
	// right after it; either way they must be readable first.
	buf := make([]byte, len("early"))
	if _, err := io.ReadFull(bc, buf); err != nil {
		t.Fatalf("reading early bytes: %v", err)
	}
	if string(buf) != "early" {
		t.Errorf("exp %q, got %q", "early", buf)
	}
}

func TestTunnel_PendingHandedOver(t *testing.T) {
	c := &bufferedConn{pending: []byte("abc")}

	if got := c.TakePending(); string(got) != "abc" {
		t.Errorf("exp %q, got %q", "abc", got)
	}
	if got := c.TakePending(); got != nil {
		t.Errorf("exp nothing left, got %q", got)
	}
}

func TestTunnel_Refused(t *testing.T) {
	addr, _ := connectProxy(t, "HTTP/1.1 407 Proxy Authentication Required\r\nContent-Length: 0\r\n\r\n", "")
	b := newTestBase(Config{})

	_, err := b.Tunnel(t.Context(), addr, "origin.example:443")
	if !errors.Is(err, ErrProxyRefused) {
		t.Errorf("exp ErrProxyRefused, got %v", err)
	}
}

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func TestMapTimeout(t *testing.T) {
	stall := &transfer.TimeoutError{Op: "stall"}
	stalled, cancel := context.WithCancelCause(t.Context())
	cancel(stall)

	done, cancelDone := context.WithCancel(t.Context())
	cancelDone()

	testCases := []struct {
		name  string
		ctx   context.Context
		err   error
		expOp string
	}{
		{name: "watchdog cause wins", ctx: stalled, err: errors.New("read failed"), expOp: "stall"},
		{name: "net timeout is connect", ctx: t.Context(), err: &net.OpError{Op: "dial", Err: timeoutErr{}}, expOp: "connect"},
		{name: "plain error untouched", ctx: t.Context(), err: errors.New("refused")},
		{name: "cancelled untouched", ctx: done, err: &net.OpError{Op: "dial", Err: timeoutErr{}}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := mapTimeout(tc.ctx, tc.err)

			var te *transfer.TimeoutError
			isTE := errors.As(got, &te)
			if tc.expOp == "" {
				if isTE {
					t.Errorf("exp no timeout error, got %v", got)
				}
				return
			}
			if !isTE || te.Op != tc.expOp {
				t.Errorf("exp %s timeout, got %v", tc.expOp, got)
			}
		})
	}
}

func TestWatchdog(t *testing.T) {
	lim := Limits{LowSpeedLimit: 10, LowSpeedTime: 20 * time.Millisecond}

	t.Run("fires without progress", func(t *testing.T) {
		ctx, _, stop := startWatchdog(t.Context(), lim)
		defer stop()

		select {
		case <-ctx.Done():
		case <-time.After(5 * time.Second):
			t.Fatal("watchdog never fired")
		}

		var te *transfer.TimeoutError
		if !errors.As(context.Cause(ctx), &te) || te.Op != "stall" {
			t.Errorf("exp stall cause, got %v", context.Cause(ctx))
		}
	})

	t.Run("disabled", func(t *testing.T) {
		ctx, _, stop := startWatchdog(t.Context(), Limits{})

		select {
		case <-ctx.Done():
			t.Fatal("disabled watchdog fired")
		case <-time.After(50 * time.Millisecond):
		}

		stop()
		if ctx.Err() == nil {
			t.Error("exp stop to release the context")
		}
	})
}
