package fetchr

import (
	"fmt"

	"github.com/adamwoolhether/fetchr/backend/httpbase"
	"github.com/adamwoolhether/fetchr/backend/native"
	"github.com/adamwoolhether/fetchr/backend/stdtls"
	"github.com/adamwoolhether/fetchr/backend/utls"
	"github.com/adamwoolhether/fetchr/transfer"
)

// Backend identifies one transport implementation.
type Backend int

// Backends in priority order.
const (
	Native Backend = iota
	StdTLS
	UTLS
)

var backendNames = [...]string{
	Native: native.Name,
	StdTLS: stdtls.Name,
	UTLS:   utls.Name,
}

// Backends returns every backend in the order a download tries them.
func Backends() []Backend {
	return []Backend{Native, StdTLS, UTLS}
}

func (b Backend) String() string {
	if b < 0 || int(b) >= len(backendNames) {
		return fmt.Sprintf("Backend(%d)", int(b))
	}
	return backendNames[b]
}

// Available reports whether b is compiled into this build.
func (b Backend) Available() bool {
	switch b {
	case Native:
		return native.Available
	case StdTLS:
		return stdtls.Available
	case UTLS:
		return utls.Available
	}
	return false
}

// ParseBackend returns the backend called name.
func ParseBackend(name string) (Backend, error) {
	for _, b := range Backends() {
		if b.String() == name {
			return b, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownBackend, name)
}

func (b Backend) valid() bool {
	return b >= Native && b <= UTLS
}

// newTransport builds the implementation of b from cfg.
func newTransport(b Backend, cfg httpbase.Config) (transfer.Transport, error) {
	switch b {
	case Native:
		return native.New(cfg)
	case StdTLS:
		return stdtls.New(cfg)
	case UTLS:
		return utls.New(cfg)
	}
	return nil, fmt.Errorf("%w: %d", ErrUnknownBackend, int(b))
}
