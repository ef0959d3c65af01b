// Package tlsstream lets a TLS implementation wrap an arbitrary
// bidirectional stream while keeping the capabilities of a plain
// network connection, so connector code can treat encrypted and
// unencrypted streams the same way.
//
// # Wrapping a Stream
//
// [Client] hands the stream to a [Session] created by a [SessionFunc]
// and performs the handshake:
//
//	raw, err := dialer.DialContext(ctx, "tcp", addr)
//	conn, err := tlsstream.Client(ctx, raw, tlsstream.StdSession(nil), host)
//
// The returned [*Conn] is a [net.Conn] that also forwards directional
// close and flush to the underlying stream when it supports them.
//
// # TLS Implementations
//
// [StdSession] uses crypto/tls and [UTLSSession] uses
// github.com/refraction-networking/utls. Any implementation that can
// run a client handshake over a [net.Conn] fits behind [Session].
//
// # Root Certificates
//
// [SystemRoots] loads the PEM bundles listed in [CertFiles] the first
// time it is called and returns the same pool for the rest of the
// process.
package tlsstream
