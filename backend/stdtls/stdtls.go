//go:build !nostdtls

package stdtls

import (
	"fmt"

	"github.com/adamwoolhether/fetchr/backend/httpbase"
	"github.com/adamwoolhether/fetchr/tlsstream"
	"github.com/adamwoolhether/fetchr/transfer"
)

// Available reports whether the backend is compiled in.
const Available = true

// New returns the stdtls backend. Every call gets a fresh client whose
// connections are closed when the call ends.
func New(cfg httpbase.Config, opts ...Option) (transfer.Transport, error) {
	o, err := apply(opts)
	if err != nil {
		return nil, fmt.Errorf("applying option: %w", err)
	}

	tlsCfg := o.tls
	if tlsCfg.RootCAs == nil && cfg.RootCAs != nil {
		tlsCfg = tlsCfg.Clone()
		tlsCfg.RootCAs = cfg.RootCAs
	}

	b := httpbase.New(Name, cfg, nil)
	dial := b.TLSDialer(tlsstream.StdSession(tlsCfg))
	b.SetClients(httpbase.Fresh(b.NewHandleFunc(dial)))

	return b, nil
}
