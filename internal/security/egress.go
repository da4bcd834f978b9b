// Package security holds the two safeguards around provider credentials:
// sealing API keys at rest and restricting where outbound provider traffic
// may connect.
package security

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"
)

// dnsTimeout bounds host resolution during dial.
const dnsTimeout = 500 * time.Millisecond

var (
	// ErrEgressBlocked is returned when a provider host resolves to a
	// private, loopback or metadata address.
	ErrEgressBlocked = errors.New("egress: connection to blocked IP range")
	// ErrEgressDNS is returned when resolution fails or times out.
	ErrEgressDNS = errors.New("egress: DNS resolution failed")
)

// blockedCIDRs covers loopback, RFC1918, link-local (instance metadata),
// CGN, multicast and reserved ranges.
var blockedCIDRs = []string{
	"127.0.0.0/8",
	"10.0.0.0/8",
	"172.16.0.0/12",
	"192.168.0.0/16",
	"169.254.0.0/16",
	"0.0.0.0/8",
	"100.64.0.0/10",
	"224.0.0.0/4",
	"240.0.0.0/4",
	"fc00::/7",
	"fe80::/10",
	"::1/128",
}

var blockedNets = mustParseCIDRs(blockedCIDRs)

func mustParseCIDRs(cidrs []string) []*net.IPNet {
	nets := make([]*net.IPNet, 0, len(cidrs))
	for _, c := range cidrs {
		_, n, err := net.ParseCIDR(c)
		if err != nil {
			panic(fmt.Sprintf("egress: bad CIDR %q: %v", c, err))
		}
		nets = append(nets, n)
	}
	return nets
}

// IsBlockedIP reports whether ip falls in a blocked range.
func IsBlockedIP(ip net.IP) bool {
	for _, n := range blockedNets {
		if n.Contains(ip) {
			return true
		}
	}
	return false
}

// Resolver abstracts DNS resolution for testability.
type Resolver interface {
	LookupIPAddr(ctx context.Context, host string) ([]net.IPAddr, error)
}

// GuardedDialer resolves the target host and refuses to connect when any
// resolved address is blocked. Checking every address (not just the first)
// defeats DNS answers that mix public and private records.
type GuardedDialer struct {
	Resolver Resolver
	Dialer   *net.Dialer
}

// DialContext implements the http.Transport DialContext hook.
func (g *GuardedDialer) DialContext(ctx context.Context, network, addr string) (net.Conn, error) {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return nil, fmt.Errorf("egress: invalid address %q: %w", addr, err)
	}

	dialer := g.Dialer
	if dialer == nil {
		dialer = &net.Dialer{}
	}

	if ip := net.ParseIP(host); ip != nil {
		if IsBlockedIP(ip) {
			return nil, fmt.Errorf("%w: %s", ErrEgressBlocked, ip)
		}
		return dialer.DialContext(ctx, network, addr)
	}

	resolver := g.Resolver
	if resolver == nil {
		resolver = net.DefaultResolver
	}
	dnsCtx, cancel := context.WithTimeout(ctx, dnsTimeout)
	defer cancel()

	addrs, err := resolver.LookupIPAddr(dnsCtx, host)
	if err != nil {
		return nil, fmt.Errorf("%w: host %q: %v", ErrEgressDNS, host, err)
	}
	if len(addrs) == 0 {
		return nil, fmt.Errorf("%w: host %q resolved to no addresses", ErrEgressDNS, host)
	}
	for _, a := range addrs {
		if IsBlockedIP(a.IP) {
			return nil, fmt.Errorf("%w: %s (resolved from %s)", ErrEgressBlocked, a.IP, host)
		}
	}

	return dialer.DialContext(ctx, network, net.JoinHostPort(addrs[0].IP.String(), port))
}

// NewGuardedHTTPClient returns an http.Client for provider APIs whose dials
// pass through GuardedDialer. Redirects are not followed: provider send
// endpoints never redirect, and a redirect would bypass the bearer-token
// host binding.
func NewGuardedHTTPClient(timeout time.Duration) *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.DialContext = (&GuardedDialer{}).DialContext
	return &http.Client{
		Transport: transport,
		Timeout:   timeout,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}
