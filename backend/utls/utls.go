//go:build !noutls

package utls

import (
	"fmt"

	tls "github.com/refraction-networking/utls"

	"github.com/adamwoolhether/fetchr/backend/httpbase"
	"github.com/adamwoolhether/fetchr/tlsstream"
	"github.com/adamwoolhether/fetchr/transfer"
)

// Available reports whether the backend is compiled in.
const Available = true

// New returns the utls backend. Without WithRoots or Config.RootCAs it
// trusts tlsstream.SystemRoots, falling back to the platform verifier
// when no bundle could be loaded.
func New(cfg httpbase.Config, opts ...Option) (transfer.Transport, error) {
	o, err := apply(opts)
	if err != nil {
		return nil, fmt.Errorf("applying option: %w", err)
	}

	b := httpbase.New(Name, cfg, nil)

	roots := o.roots
	if roots == nil {
		roots = cfg.RootCAs
	}
	if roots == nil {
		roots, err = tlsstream.SystemRoots()
		if err != nil {
			b.Config().Logger.Debug("using platform roots", "backend", Name, "error", err)
		}
	}

	tlsCfg := tls.Config{
		RootCAs:    roots,
		MinVersion: tls.VersionTLS12,
		NextProtos: []string{"http/1.1"},
	}

	dial := b.TLSDialer(tlsstream.UTLSSession(&tlsCfg, o.hello))
	b.SetClients(httpbase.Fresh(b.NewHandleFunc(dial)))

	return b, nil
}
