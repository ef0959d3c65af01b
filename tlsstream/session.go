package tlsstream

import (
	"context"
	"crypto/tls"
	"net"

	utls "github.com/refraction-networking/utls"
)

// Session is the client side of one TLS connection. It exchanges
// records over the transport it was created with and owns it until Close.
type Session interface {
	HandshakeContext(ctx context.Context) error
	Read(p []byte) (int, error)
	Write(p []byte) (int, error)
	// CloseWrite sends close_notify without closing the transport.
	CloseWrite() error
	Close() error
	NegotiatedProtocol() string
}

// SessionFunc starts a Session for serverName on top of transport.
type SessionFunc func(transport net.Conn, serverName string) Session

// StdSession returns a SessionFunc backed by crypto/tls. cfg may be nil;
// it is cloned per session and its ServerName defaults to the dialed host.
func StdSession(cfg *tls.Config) SessionFunc {
	return func(transport net.Conn, serverName string) Session {
		c := cfg.Clone()
		if c == nil {
			c = &tls.Config{}
		}
		if c.ServerName == "" {
			c.ServerName = serverName
		}
		return stdSession{tls.Client(transport, c)}
	}
}

type stdSession struct {
	*tls.Conn
}

func (s stdSession) NegotiatedProtocol() string {
	return s.ConnectionState().NegotiatedProtocol
}

// UTLSSession returns a SessionFunc backed by uTLS presenting the given
// ClientHello. cfg may be nil and is cloned per session. When cfg sets
// NextProtos, a browser preset's ALPN list is replaced with them, so a
// preset that advertises h2 still negotiates what the caller speaks.
func UTLSSession(cfg *utls.Config, hello utls.ClientHelloID) SessionFunc {
	return func(transport net.Conn, serverName string) Session {
		c := cfg.Clone()
		if c == nil {
			c = &utls.Config{}
		}
		if c.ServerName == "" {
			c.ServerName = serverName
		}

		if len(c.NextProtos) > 0 {
			if spec, ok := presetSpec(hello, c.NextProtos); ok {
				uc := utls.UClient(transport, c, utls.HelloCustom)
				if err := uc.ApplyPreset(&spec); err == nil {
					return utlsSession{uc}
				}
			}
		}

		return utlsSession{utls.UClient(transport, c, hello)}
	}
}

// presetSpec returns the ClientHelloSpec behind hello with its ALPN extension
// limited to protos. ok is false for ids without a spec, such as
// HelloGolang, which already honours Config.NextProtos.
func presetSpec(hello utls.ClientHelloID, protos []string) (utls.ClientHelloSpec, bool) {
	if hello == utls.HelloGolang || hello == utls.HelloCustom {
		return utls.ClientHelloSpec{}, false
	}

	spec, err := utls.UTLSIdToSpec(hello)
	if err != nil {
		return utls.ClientHelloSpec{}, false
	}

	for _, ext := range spec.Extensions {
		if alpn, ok := ext.(*utls.ALPNExtension); ok {
			alpn.AlpnProtocols = append([]string(nil), protos...)
		}
	}
	return spec, true
}

type utlsSession struct {
	*utls.UConn
}

func (s utlsSession) NegotiatedProtocol() string {
	return s.ConnectionState().NegotiatedProtocol
}
