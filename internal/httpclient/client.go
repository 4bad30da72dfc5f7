// Package httpclient builds HTTP clients hardened for requests whose
// targets come from user data, such as watcher webhook URLs.
package httpclient

import (
	"context"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/teranos/doxa/errors"
)

const maxRedirects = 10

// Options adjusts the protections. The zero value blocks private and
// loopback addresses and allows http and https.
type Options struct {
	// AllowPrivate permits loopback and RFC 1918 targets. Meant for
	// tests and deployments that webhook into their own network.
	AllowPrivate bool

	// Schemes overrides the allowed URL schemes.
	Schemes []string
}

// New returns an *http.Client that validates every request and redirect
// target: scheme allow-list, no credentials in the URL, and private
// address blocking enforced at dial time so DNS rebinding cannot slip a
// forbidden IP past the URL check.
func New(timeout time.Duration, opts Options) *http.Client {
	schemes := opts.Schemes
	if schemes == nil {
		schemes = []string{"http", "https"}
	}
	v := &validator{schemes: schemes, allowPrivate: opts.AllowPrivate}

	client := &http.Client{
		Timeout: timeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= maxRedirects {
				return errors.Newf("stopped after %d redirects", maxRedirects)
			}
			if err := v.validate(req.URL); err != nil {
				return errors.Wrap(err, "redirect blocked")
			}
			return nil
		},
	}

	if !opts.AllowPrivate {
		dialer := &net.Dialer{Timeout: 30 * time.Second, KeepAlive: 30 * time.Second}
		client.Transport = &http.Transport{
			DialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
				host, _, err := net.SplitHostPort(addr)
				if err != nil {
					return nil, errors.Wrap(err, "invalid address")
				}
				ips, err := net.DefaultResolver.LookupIP(ctx, "ip", host)
				if err != nil {
					return nil, errors.Wrapf(err, "failed to resolve host %q", host)
				}
				for _, ip := range ips {
					if isPrivateIP(ip) {
						return nil, errors.Newf("private address blocked: %s", ip)
					}
				}
				return dialer.DialContext(ctx, network, addr)
			},
			MaxIdleConns:          100,
			IdleConnTimeout:       90 * time.Second,
			TLSHandshakeTimeout:   10 * time.Second,
			ExpectContinueTimeout: 1 * time.Second,
		}
	}

	return client
}

// ValidateURL checks a URL string against the same rules New enforces,
// so callers can reject a bad target at configuration time instead of
// first delivery.
func ValidateURL(raw string, opts Options) error {
	u, err := url.Parse(raw)
	if err != nil {
		return errors.Wrap(err, "invalid URL")
	}
	schemes := opts.Schemes
	if schemes == nil {
		schemes = []string{"http", "https"}
	}
	v := &validator{schemes: schemes, allowPrivate: opts.AllowPrivate}
	return v.validate(u)
}

type validator struct {
	schemes      []string
	allowPrivate bool
}

func (v *validator) validate(u *url.URL) error {
	scheme := strings.ToLower(u.Scheme)
	allowed := false
	for _, s := range v.schemes {
		if scheme == s {
			allowed = true
			break
		}
	}
	if !allowed {
		return errors.Newf("scheme %q not allowed (allowed: %v)", scheme, v.schemes)
	}

	// http://evil.com@localhost/ style confusion
	if u.User != nil {
		return errors.New("URL must not carry credentials")
	}

	host := u.Hostname()
	if host == "" {
		return errors.New("URL missing hostname")
	}

	if !v.allowPrivate {
		if isLocalhost(host) {
			return errors.New("localhost access blocked")
		}
		if ip := net.ParseIP(host); ip != nil && isPrivateIP(ip) {
			return errors.Newf("private address blocked: %s", host)
		}
	}
	return nil
}

func isLocalhost(host string) bool {
	h := strings.ToLower(host)
	return h == "localhost" || strings.HasSuffix(h, ".localhost")
}

// isPrivateIP reports loopback, RFC 1918, link-local, and other
// special-use addresses.
func isPrivateIP(ip net.IP) bool {
	if ip.IsLoopback() || ip.IsPrivate() || ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() {
		return true
	}
	if ip.IsUnspecified() || ip.IsMulticast() {
		return true
	}
	if ip4 := ip.To4(); ip4 != nil {
		// 240.0.0.0/4 reserved
		return ip4[0] >= 240
	}
	return false
}
