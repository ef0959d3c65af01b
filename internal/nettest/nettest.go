// Package nettest provides network fixtures for backend tests.
package nettest

import (
	"bufio"
	"io"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
)

// ConnectProxy is an HTTP CONNECT proxy that splices client connections
// to the requested target.
type ConnectProxy struct {
	Addr     string
	Tunnels  atomic.Int32
	lastHost atomic.Value
	listener net.Listener
	wg       sync.WaitGroup

	mu    sync.Mutex
	conns []net.Conn
}

// NewConnectProxy starts a proxy that is closed when the test ends.
func NewConnectProxy(t *testing.T) *ConnectProxy {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	p := ConnectProxy{Addr: ln.Addr().String(), listener: ln}
	p.wg.Go(p.serve)

	t.Cleanup(func() {
		_ = ln.Close()
		p.mu.Lock()
		for _, c := range p.conns {
			_ = c.Close()
		}
		p.mu.Unlock()
		p.wg.Wait()
	})

	return &p
}

// URL returns the proxy as an environment-style setting.
func (p *ConnectProxy) URL() string {
	return "http://" + p.Addr
}

// LastHost returns the target of the most recent CONNECT.
func (p *ConnectProxy) LastHost() string {
	h, _ := p.lastHost.Load().(string)
	return h
}

func (p *ConnectProxy) serve() {
	for {
		conn, err := p.listener.Accept()
		if err != nil {
			return
		}
		p.mu.Lock()
		p.conns = append(p.conns, conn)
		p.mu.Unlock()
		p.wg.Go(func() { p.handle(conn) })
	}
}

func (p *ConnectProxy) handle(client net.Conn) {
	defer client.Close()

	br := bufio.NewReader(client)
	req, err := http.ReadRequest(br)
	if err != nil {
		return
	}
	if req.Method != http.MethodConnect {
		_, _ = io.WriteString(client, "HTTP/1.1 405 Method Not Allowed\r\nContent-Length: 0\r\n\r\n")
		return
	}

	target, err := net.Dial("tcp", req.Host)
	if err != nil {
		_, _ = io.WriteString(client, "HTTP/1.1 502 Bad Gateway\r\nContent-Length: 0\r\n\r\n")
		return
	}
	defer target.Close()

	p.lastHost.Store(req.Host)
	p.Tunnels.Add(1)

	if _, err := io.WriteString(client, "HTTP/1.1 200 Connection established\r\n\r\n"); err != nil {
		return
	}

	done := make(chan struct{}, 2)
	go func() {
		_, _ = io.Copy(target, br)
		done <- struct{}{}
	}()
	go func() {
		_, _ = io.Copy(client, target)
		done <- struct{}{}
	}()
	<-done
}
