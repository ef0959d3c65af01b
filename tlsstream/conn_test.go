package tlsstream

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	utls "github.com/refraction-networking/utls"
)

func TestClient_HTTPOverAdapter(t *testing.T) {
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "hello over tls")
	}))
	t.Cleanup(srv.Close)

	pool := x509.NewCertPool()
	pool.AddCert(srv.Certificate())

	testCases := []struct {
		name    string
		session SessionFunc
	}{
		{
			name:    "crypto/tls",
			session: StdSession(&tls.Config{RootCAs: pool, NextProtos: []string{"http/1.1"}}),
		},
		{
			name:    "utls",
			session: UTLSSession(&utls.Config{RootCAs: pool, NextProtos: []string{"http/1.1"}}, utls.HelloGolang),
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var dialed atomic.Int32
			tr := &http.Transport{
				DialTLSContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
					dialed.Add(1)
					raw, err := (&net.Dialer{}).DialContext(ctx, network, addr)
					if err != nil {
						return nil, err
					}
					return Client(ctx, raw, tc.session, "example.com")
				},
			}
			t.Cleanup(tr.CloseIdleConnections)

			req, err := http.NewRequestWithContext(t.Context(), http.MethodGet, srv.URL, nil)
			if err != nil {
				t.Fatalf("creating request: %v", err)
			}

			resp, err := (&http.Client{Transport: tr}).Do(req)
			if err != nil {
				t.Fatalf("request failed: %v", err)
			}
			defer resp.Body.Close()

			body, err := io.ReadAll(resp.Body)
			if err != nil {
				t.Fatalf("reading body: %v", err)
			}

			if string(body) != "hello over tls" {
				t.Errorf("exp body %q, got %q", "hello over tls", body)
			}
			if dialed.Load() != 1 {
				t.Errorf("exp 1 dial, got %d", dialed.Load())
			}
		})
	}
}

func TestClient_HandshakeFailureClosesStream(t *testing.T) {
	srv := httptest.NewTLSServer(http.NotFoundHandler())
	t.Cleanup(srv.Close)

	raw, err := net.Dial("tcp", srv.Listener.Addr().String())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	stream := &fakeStream{Conn: raw}

	// An empty pool cannot verify the test server's certificate.
	_, err = Client(t.Context(), stream, StdSession(&tls.Config{RootCAs: x509.NewCertPool()}), "example.com")
	if err == nil {
		t.Fatal("exp handshake error, got nil")
	}
	if !stream.closed.Load() {
		t.Error("exp stream to be closed after failed handshake")
	}
}

func TestConn_DrainsPendingBeforeStream(t *testing.T) {
	c, peer := newPlainConn(t, "")
	c.pipe.pending = []byte("hello ")

	go func() { _, _ = peer.Write([]byte("world")) }()

	buf := make([]byte, 64)
	var got []byte
	for len(got) < len("hello world") {
		n, err := c.Read(buf)
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		got = append(got, buf[:n]...)
	}

	if string(got) != "hello world" {
		t.Errorf("exp %q, got %q", "hello world", got)
	}
}

func TestNewConn_TakesPendingFromStream(t *testing.T) {
	raw, peer := net.Pipe()
	t.Cleanup(func() { _ = peer.Close() })

	stream := &fakeStream{Conn: raw, pending: []byte("early")}
	c := newConn(stream, plainSessionFunc(""), "example.com")

	if string(c.pipe.pending) != "early" {
		t.Errorf("exp pending %q, got %q", "early", c.pipe.pending)
	}
	if stream.pending != nil {
		t.Errorf("exp stream pending to be taken, got %q", stream.pending)
	}
}

func TestConn_FlushesAfterWrite(t *testing.T) {
	c, peer := newPlainConn(t, "")

	go func() { _, _ = io.CopyN(io.Discard, peer, 4) }()

	if _, err := c.Write([]byte("ping")); err != nil {
		t.Fatalf("write: %v", err)
	}

	if got := c.stream.(*fakeStream).flushes.Load(); got != 1 {
		t.Errorf("exp 1 flush, got %d", got)
	}
}

func TestConn_ReadDoesNotBlockWrite(t *testing.T) {
	c, peer := newPlainConn(t, "")

	readDone := make(chan string, 1)
	go func() {
		buf := make([]byte, 4)
		n, _ := io.ReadFull(c, buf)
		readDone <- string(buf[:n])
	}()

	// Let the reader block inside the session.
	time.Sleep(20 * time.Millisecond)

	writeDone := make(chan error, 1)
	go func() {
		_, err := c.Write([]byte("ping"))
		writeDone <- err
	}()

	buf := make([]byte, 4)
	if _, err := io.ReadFull(peer, buf); err != nil {
		t.Fatalf("peer read: %v", err)
	}

	select {
	case err := <-writeDone:
		if err != nil {
			t.Fatalf("write: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("write blocked behind a pending read")
	}

	if _, err := peer.Write([]byte("pong")); err != nil {
		t.Fatalf("peer write: %v", err)
	}
	if got := <-readDone; got != "pong" {
		t.Errorf("exp %q, got %q", "pong", got)
	}
}

func TestConn_PanicPoisons(t *testing.T) {
	c, _ := newPlainConn(t, "read")

	_, err := c.Read(make([]byte, 8))
	if !errors.Is(err, ErrPoisoned) {
		t.Fatalf("exp ErrPoisoned, got %v", err)
	}

	var opErr *net.OpError
	if !errors.As(err, &opErr) {
		t.Fatalf("exp *net.OpError, got %T", err)
	}
	if opErr.Op != "read" {
		t.Errorf("exp op %q, got %q", "read", opErr.Op)
	}

	if _, err := c.Write([]byte("x")); !errors.Is(err, ErrPoisoned) {
		t.Errorf("exp poisoned write, got %v", err)
	}
	if _, err := c.Read(make([]byte, 8)); !errors.Is(err, ErrPoisoned) {
		t.Errorf("exp poisoned read, got %v", err)
	}

	if err := c.Close(); err != nil {
		t.Errorf("close: %v", err)
	}
	if !c.stream.(*fakeStream).closed.Load() {
		t.Error("exp stream closed")
	}
}

func TestClient_HandshakePanic(t *testing.T) {
	raw, peer := net.Pipe()
	t.Cleanup(func() { _ = peer.Close() })
	stream := &fakeStream{Conn: raw}

	_, err := Client(t.Context(), stream, plainSessionFunc("handshake"), "example.com")
	if !errors.Is(err, ErrPoisoned) {
		t.Fatalf("exp ErrPoisoned, got %v", err)
	}
	if !stream.closed.Load() {
		t.Error("exp stream closed after handshake panic")
	}
}

func TestConn_DirectionalClose(t *testing.T) {
	c, _ := newPlainConn(t, "")

	if err := c.CloseWrite(); err != nil {
		t.Fatalf("close write: %v", err)
	}
	if got := c.stream.(*fakeStream).closeWrites.Load(); got != 1 {
		t.Errorf("exp 1 close write, got %d", got)
	}

	if err := c.CloseRead(); !errors.Is(err, ErrUnsupported) {
		t.Errorf("exp ErrUnsupported from close read, got %v", err)
	}
}

func TestConn_ForwardsAddressesAndDeadlines(t *testing.T) {
	c, _ := newPlainConn(t, "")

	if c.RemoteAddr() != c.stream.RemoteAddr() {
		t.Errorf("exp remote addr %v, got %v", c.stream.RemoteAddr(), c.RemoteAddr())
	}

	if err := c.SetReadDeadline(time.Now().Add(10 * time.Millisecond)); err != nil {
		t.Fatalf("set deadline: %v", err)
	}

	_, err := c.Read(make([]byte, 1))
	var ne net.Error
	if !errors.As(err, &ne) || !ne.Timeout() {
		t.Errorf("exp timeout error, got %v", err)
	}
}

// =============================================================================

func newPlainConn(t *testing.T, panicOn string) (*Conn, net.Conn) {
	t.Helper()

	raw, peer := net.Pipe()
	t.Cleanup(func() { _ = peer.Close() })

	c, err := Client(t.Context(), &fakeStream{Conn: raw}, plainSessionFunc(panicOn), "example.com")
	if err != nil {
		t.Fatalf("client: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })

	return c, peer
}

type fakeStream struct {
	net.Conn
	pending     []byte
	flushes     atomic.Int32
	closeWrites atomic.Int32
	closed      atomic.Bool
}

func (s *fakeStream) TakePending() []byte {
	p := s.pending
	s.pending = nil
	return p
}

func (s *fakeStream) Flush() error {
	s.flushes.Add(1)
	return nil
}

func (s *fakeStream) CloseWrite() error {
	s.closeWrites.Add(1)
	return nil
}

func (s *fakeStream) Close() error {
	s.closed.Store(true)
	return s.Conn.Close()
}

// plainSession passes bytes through unchanged and panics in the named op.
type plainSession struct {
	transport net.Conn
	panicOn   string
}

func plainSessionFunc(panicOn string) SessionFunc {
	return func(transport net.Conn, _ string) Session {
		return &plainSession{transport: transport, panicOn: panicOn}
	}
}

func (s *plainSession) HandshakeContext(context.Context) error {
	if s.panicOn == "handshake" {
		panic("handshake state corrupted")
	}
	return nil
}

func (s *plainSession) Read(p []byte) (int, error) {
	if s.panicOn == "read" {
		panic("record state corrupted")
	}
	return s.transport.Read(p)
}

func (s *plainSession) Write(p []byte) (int, error) {
	return s.transport.Write(p)
}

func (s *plainSession) CloseWrite() error          { return nil }
func (s *plainSession) Close() error               { return s.transport.Close() }
func (s *plainSession) NegotiatedProtocol() string { return "" }

func TestPresetSpec_ALPN(t *testing.T) {
	testCases := []struct {
		name  string
		hello utls.ClientHelloID
		expOK bool
	}{
		{name: "chrome", hello: utls.HelloChrome_Auto, expOK: true},
		{name: "firefox", hello: utls.HelloFirefox_Auto, expOK: true},
		{name: "golang", hello: utls.HelloGolang},
		{name: "custom", hello: utls.HelloCustom},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			spec, ok := presetSpec(tc.hello, []string{"http/1.1"})
			if ok != tc.expOK {
				t.Fatalf("exp ok %t, got %t", tc.expOK, ok)
			}
			if !ok {
				return
			}

			var found bool
			for _, ext := range spec.Extensions {
				alpn, isALPN := ext.(*utls.ALPNExtension)
				if !isALPN {
					continue
				}
				found = true
				if len(alpn.AlpnProtocols) != 1 || alpn.AlpnProtocols[0] != "http/1.1" {
					t.Errorf("exp only http/1.1 advertised, got %v", alpn.AlpnProtocols)
				}
			}
			if !found {
				t.Error("exp the preset to carry an ALPN extension")
			}
		})
	}
}
