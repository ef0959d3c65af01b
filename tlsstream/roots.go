package tlsstream

import (
	"crypto/x509"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sync"
)

// ErrNoRoots is returned when none of the candidate bundles could be loaded.
var ErrNoRoots = errors.New("no root certificate bundle loaded")

// CertFiles lists the PEM bundles tried by SystemRoots, in priority order.
var CertFiles = []string{
	"/etc/ssl/certs/ca-certificates.crt",                // Debian, Ubuntu, Gentoo, Arch
	"/etc/pki/tls/certs/ca-bundle.crt",                  // Fedora, RHEL 6
	"/etc/ssl/ca-bundle.pem",                            // OpenSUSE
	"/etc/pki/tls/cacert.pem",                           // OpenELEC
	"/etc/pki/ca-trust/extracted/pem/tls-ca-bundle.pem", // CentOS, RHEL 7
	"/etc/ssl/cert.pem",                                 // Alpine, macOS, OpenBSD
	"/usr/local/etc/ssl/cert.pem",                       // FreeBSD
	"/usr/local/share/certs/ca-root-nss.crt",            // FreeBSD
	"/data/data/com.termux/files/usr/etc/tls/cert.pem",  // Termux
}

var systemRoots = sync.OnceValues(func() (*x509.CertPool, error) {
	return LoadRoots(CertFiles)
})

// SystemRoots returns the pool built from CertFiles on first use. The
// pool is shared by every caller and must not be modified.
func SystemRoots() (*x509.CertPool, error) {
	return systemRoots()
}

// LoadRoots appends every readable PEM bundle in paths to a new pool.
// Missing files are skipped. It fails only when nothing was loaded.
func LoadRoots(paths []string) (*x509.CertPool, error) {
	pool := x509.NewCertPool()

	var loaded int
	var errs []error
	for _, path := range paths {
		pem, err := os.ReadFile(path)
		if err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				errs = append(errs, err)
			}
			continue
		}

		if pool.AppendCertsFromPEM(pem) {
			loaded++
		}
	}

	if loaded == 0 {
		if len(errs) == 0 {
			return nil, ErrNoRoots
		}
		return nil, fmt.Errorf("%w: %w", ErrNoRoots, errors.Join(errs...))
	}

	return pool, nil
}
