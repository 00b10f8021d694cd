// Package urlvalidation checks URLs before they are stored or dialled.
package urlvalidation

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/netip"
	"net/url"
	"strings"
)

// Option configures ValidateWebhookURL.
type Option func(*options)

type options struct {
	allowPrivate bool
	lookup       func(ctx context.Context, host string) ([]netip.Addr, error)
}

// AllowPrivateIPs accepts hosts in private and loopback ranges. Tests and
// local development only.
func AllowPrivateIPs() Option {
	return func(o *options) { o.allowPrivate = true }
}

// WithLookup replaces the DNS resolver used for host names.
func WithLookup(fn func(ctx context.Context, host string) ([]netip.Addr, error)) Option {
	return func(o *options) { o.lookup = fn }
}

var blockedPrefixes = []netip.Prefix{
	netip.MustParsePrefix("0.0.0.0/8"),
	netip.MustParsePrefix("10.0.0.0/8"),
	netip.MustParsePrefix("100.64.0.0/10"),
	netip.MustParsePrefix("127.0.0.0/8"),
	netip.MustParsePrefix("169.254.0.0/16"),
	netip.MustParsePrefix("172.16.0.0/12"),
	netip.MustParsePrefix("192.0.0.0/24"),
	netip.MustParsePrefix("192.0.2.0/24"),
	netip.MustParsePrefix("192.168.0.0/16"),
	netip.MustParsePrefix("198.18.0.0/15"),
	netip.MustParsePrefix("198.51.100.0/24"),
	netip.MustParsePrefix("203.0.113.0/24"),
	netip.MustParsePrefix("224.0.0.0/4"),
	netip.MustParsePrefix("240.0.0.0/4"),
	netip.MustParsePrefix("::/128"),
	netip.MustParsePrefix("::1/128"),
	netip.MustParsePrefix("fc00::/7"),
	netip.MustParsePrefix("fe80::/10"),
	netip.MustParsePrefix("ff00::/8"),
}

// blocked reports whether addr must not receive outbound requests.
// IPv4-mapped IPv6 addresses are checked as IPv4.
func blocked(addr netip.Addr) bool {
	addr = addr.Unmap()
	for _, p := range blockedPrefixes {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}

// ValidateAbsolute checks that rawURL parses as an absolute URL with a
// scheme and something after it. Surrounding whitespace is ignored and no
// network lookups are made.
func ValidateAbsolute(rawURL string) error {
	trimmed := strings.TrimSpace(rawURL)
	if trimmed == "" {
		return errors.New("URL is empty")
	}
	u, err := url.Parse(trimmed)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	if !u.IsAbs() {
		return fmt.Errorf("URL %q is not absolute", rawURL)
	}
	if u.Host == "" && u.Opaque == "" && u.Path == "" {
		return fmt.Errorf("URL %q has no host", rawURL)
	}
	return nil
}

// ValidateWebhookURL checks that rawURL is an http(s) URL whose host does
// not resolve into a private or reserved range. It is applied to webhook
// endpoints and to the contact API base URL.
func ValidateWebhookURL(rawURL string, opts ...Option) error {
	o := options{lookup: defaultLookup}
	for _, opt := range opts {
		opt(&o)
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https":
	default:
		return fmt.Errorf("URL scheme %q not allowed; use http or https", u.Scheme)
	}
	host := u.Hostname()
	if host == "" {
		return errors.New("URL must have a hostname")
	}
	if o.allowPrivate {
		return nil
	}

	var addrs []netip.Addr
	if ip, err := netip.ParseAddr(host); err == nil {
		addrs = []netip.Addr{ip}
	} else {
		addrs, err = o.lookup(context.Background(), host)
		if err != nil {
			return fmt.Errorf("cannot resolve hostname %q: %w", host, err)
		}
	}
	for _, a := range addrs {
		if blocked(a) {
			return fmt.Errorf("URL resolves to private/reserved IP %s", a)
		}
	}
	return nil
}

func defaultLookup(ctx context.Context, host string) ([]netip.Addr, error) {
	return net.DefaultResolver.LookupNetIP(ctx, "ip", host)
}
