// Package httputil builds the HTTP clients used for release metadata and
// asset downloads.
package httputil

import (
	"fmt"
	"net"
	"net/http"
	"time"
)

// Options tunes NewClient. Zero fields take the defaults below.
type Options struct {
	// Timeout bounds a whole request including the body read.
	Timeout time.Duration

	// MaxRedirects caps the redirect chain. Release assets are served
	// through one or two hops to a CDN.
	MaxRedirects int

	// UserAgent is sent on every request when set.
	UserAgent string
}

const (
	defaultTimeout      = 30 * time.Second
	defaultMaxRedirects = 10
)

// NewClient returns a client with transparent decompression disabled and
// redirects restricted to public HTTPS endpoints.
func NewClient(opts Options) *http.Client {
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.MaxRedirects <= 0 {
		opts.MaxRedirects = defaultMaxRedirects
	}

	var rt http.RoundTripper = &http.Transport{
		Proxy:              http.ProxyFromEnvironment,
		DisableCompression: true,
		DialContext: (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 30 * time.Second,
		ExpectContinueTimeout: time.Second,
		MaxIdleConns:          4,
		IdleConnTimeout:       90 * time.Second,
	}
	if opts.UserAgent != "" {
		rt = &userAgentTransport{base: rt, agent: opts.UserAgent}
	}

	return &http.Client{
		Timeout:       opts.Timeout,
		Transport:     rt,
		CheckRedirect: redirectPolicy(opts.MaxRedirects, net.LookupIP),
	}
}

type userAgentTransport struct {
	base  http.RoundTripper
	agent string
}

func (t *userAgentTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Header.Get("User-Agent") == "" {
		req = req.Clone(req.Context())
		req.Header.Set("User-Agent", t.agent)
	}
	return t.base.RoundTrip(req)
}

// redirectPolicy refuses downgrades to plain HTTP and hops into private
// address space. Hostnames are resolved and every address is checked.
func redirectPolicy(max int, lookup func(string) ([]net.IP, error)) func(*http.Request, []*http.Request) error {
	return func(req *http.Request, via []*http.Request) error {
		if req.URL.Scheme != "https" {
			return fmt.Errorf("redirect to non-HTTPS URL is not allowed: %s", req.URL.Redacted())
		}
		if len(via) >= max {
			return fmt.Errorf("stopped after %d redirects", max)
		}

		host := req.URL.Hostname()
		if ip := net.ParseIP(host); ip != nil {
			return CheckPublicIP(ip)
		}
		ips, err := lookup(host)
		if err != nil {
			return fmt.Errorf("resolving redirect host %s: %w", host, err)
		}
		for _, ip := range ips {
			if err := CheckPublicIP(ip); err != nil {
				return fmt.Errorf("redirect host %s: %w", host, err)
			}
		}
		return nil
	}
}

// CheckPublicIP rejects loopback, private, link-local, multicast and
// unspecified addresses.
func CheckPublicIP(ip net.IP) error {
	var kind string
	switch {
	case ip.IsLoopback():
		kind = "loopback"
	case ip.IsPrivate():
		kind = "private"
	case ip.IsLinkLocalUnicast(), ip.IsLinkLocalMulticast():
		kind = "link-local"
	case ip.IsMulticast():
		kind = "multicast"
	case ip.IsUnspecified():
		kind = "unspecified"
	default:
		return nil
	}
	return fmt.Errorf("refusing redirect to %s address %s", kind, ip)
}
