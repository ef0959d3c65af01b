// Package proxy derives the proxy a request should be routed through
// from the conventional *_proxy environment variables.
package proxy

import (
	"net"
	"net/url"
	"os"
	"strconv"
)

// DefaultPort is used when the proxy setting does not carry a port.
const DefaultPort = 8080

// Target is the host and port of a proxy server.
type Target struct {
	Host string
	Port int
}

// Addr returns the proxy address in host:port form.
func (t Target) Addr() string {
	return net.JoinHostPort(t.Host, strconv.Itoa(t.Port))
}

// URL returns the proxy as an http URL, suitable for [net/http.ProxyURL].
func (t Target) URL() *url.URL {
	return &url.URL{Scheme: "http", Host: t.Addr()}
}

// Resolver looks up proxy settings through Getenv.
// A zero Resolver reads the process environment.
type Resolver struct {
	Getenv func(key string) (string, bool)
}

// Resolve returns the proxy configured for u using the process environment.
func Resolve(u *url.URL) (Target, bool) {
	return Resolver{}.Resolve(u)
}

// Resolve returns the proxy configured for u's scheme.
//
// For https the lookup order is https_proxy, HTTPS_PROXY, http_proxy,
// all_proxy, ALL_PROXY. For http it is http_proxy, all_proxy, ALL_PROXY.
// Any other scheme only consults all_proxy and ALL_PROXY. The first
// variable that is set wins, even if its value turns out to be unusable:
// a setting that does not parse as a URL, or has no host, yields no proxy.
func (r Resolver) Resolve(u *url.URL) (Target, bool) {
	_, v, ok := r.Setting(u)
	if !ok {
		return Target{}, false
	}
	return Parse(v)
}

// Setting returns the first proxy variable set for u's scheme and its
// raw value, without interpreting it.
func (r Resolver) Setting(u *url.URL) (key, value string, ok bool) {
	var keys []string
	switch u.Scheme {
	case "https":
		keys = []string{"https_proxy", "HTTPS_PROXY", "http_proxy", "all_proxy", "ALL_PROXY"}
	case "http":
		keys = []string{"http_proxy", "all_proxy", "ALL_PROXY"}
	default:
		keys = []string{"all_proxy", "ALL_PROXY"}
	}

	getenv := r.Getenv
	if getenv == nil {
		getenv = os.LookupEnv
	}

	for _, key := range keys {
		if v, ok := getenv(key); ok {
			return key, v, true
		}
	}

	return "", "", false
}

// Parse extracts the proxy host and port from a setting such as
// "http://proxy.example:3128".
func Parse(setting string) (Target, bool) {
	pu, err := url.Parse(setting)
	if err != nil || pu.Scheme == "" {
		return Target{}, false
	}

	host := pu.Hostname()
	if host == "" {
		return Target{}, false
	}

	port := DefaultPort
	if p := pu.Port(); p != "" {
		n, err := strconv.Atoi(p)
		if err != nil || n <= 0 || n > 65535 {
			return Target{}, false
		}
		port = n
	}

	return Target{Host: host, Port: port}, true
}
