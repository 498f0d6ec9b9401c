// Package proxy relays requests for active hostnames to their origins.
package proxy

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/httputil"
	"net/url"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/parked-domain-tracker/internal/visitor"
)

// DefaultTimeout bounds a single origin round trip.
const DefaultTimeout = 30 * time.Second

// ErrUnknownHost is returned when no origin is configured for a hostname.
var ErrUnknownHost = errors.New("no origin configured for host")

// Forwarder maps active hostnames to origin URLs.
type Forwarder struct {
	origins map[string]*url.URL
	proxy   *httputil.ReverseProxy
	logger  *zap.Logger
}

// New builds a Forwarder. Keys of origins are hostnames and values are
// absolute http(s) URLs.
func New(origins map[string]string, timeout time.Duration, logger *zap.Logger) (*Forwarder, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	parsed := make(map[string]*url.URL, len(origins))
	for host, raw := range origins {
		u, err := url.Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("parse origin for %s: %w", host, err)
		}
		if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return nil, fmt.Errorf("origin for %s must be an absolute http(s) URL: %q", host, raw)
		}
		parsed[visitor.Hostname(host)] = u
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.ResponseHeaderTimeout = timeout
	transport.DialContext = (&net.Dialer{Timeout: timeout, KeepAlive: 30 * time.Second}).DialContext

	f := &Forwarder{origins: parsed, logger: logger}
	f.proxy = &httputil.ReverseProxy{
		Rewrite:      f.rewrite,
		Transport:    transport,
		ErrorHandler: f.handleError,
	}
	return f, nil
}

// Hosts lists the configured hostnames.
func (f *Forwarder) Hosts() []string {
	hosts := make([]string, 0, len(f.origins))
	for h := range f.origins {
		hosts = append(hosts, h)
	}
	sort.Strings(hosts)
	return hosts
}

// Origin returns the origin URL for host.
func (f *Forwarder) Origin(host string) (*url.URL, error) {
	u, ok := f.origins[visitor.Hostname(host)]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownHost, host)
	}
	return u, nil
}

// ServeHTTP forwards r to the origin of its host and copies the response back.
func (f *Forwarder) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if _, err := f.Origin(r.Host); err != nil {
		f.handleError(w, r, err)
		return
	}
	f.proxy.ServeHTTP(w, r)
}

func (f *Forwarder) rewrite(pr *httputil.ProxyRequest) {
	target, err := f.Origin(pr.In.Host)
	if err != nil {
		return
	}
	pr.SetURL(target)
	pr.Out.Host = pr.In.Host
}

func (f *Forwarder) handleError(w http.ResponseWriter, r *http.Request, err error) {
	f.logger.Error("origin request failed",
		zap.String("host", r.Host),
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
		zap.Error(err),
	)
	http.Error(w, http.StatusText(http.StatusBadGateway), http.StatusBadGateway)
}
