// Package netutil holds the client's network helpers: a DNS lookup that
// survives a broken system resolver, and detection of networks where
// direct peer connections rarely work.
package netutil

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"
)

const (
	localTimeout  = time.Second
	publicTimeout = 2 * time.Second
)

// PublicDNS are raced when the system resolver fails.
var PublicDNS = []string{
	"1.1.1.1",                // Cloudflare
	"1.0.0.1",                // Cloudflare
	"[2606:4700:4700::1111]", // Cloudflare
	"8.8.8.8",                // Google
	"8.8.4.4",                // Google
	"[2001:4860:4860::8888]", // Google
	"9.9.9.9",                // Quad9
	"149.112.112.112",        // Quad9
	"208.67.222.222",         // Cisco OpenDNS
	"208.67.220.220",         // Cisco OpenDNS
}

var ErrNoAddress = errors.New("no addresses found")

// Resolver looks a host up locally first, then through Public.
type Resolver struct {
	Public []string

	// lookup replaces the per-server query in tests.
	lookup func(ctx context.Context, host, server string) ([]string, error)
}

// DefaultResolver races PublicDNS.
var DefaultResolver = &Resolver{Public: PublicDNS}

// Lookup returns one address for host, preferring IPv4.
func (r *Resolver) Lookup(ctx context.Context, host string) (string, error) {
	if ip := net.ParseIP(host); ip != nil {
		return host, nil
	}

	local, cancel := context.WithTimeout(ctx, localTimeout)
	ips, err := r.query(local, host, "")
	cancel()
	if err == nil {
		return pick(ips)
	}
	if len(r.Public) == 0 {
		return "", fmt.Errorf("resolve %s: %w", host, err)
	}
	return r.race(ctx, host)
}

// race asks every public server at once and keeps the first answer.
func (r *Resolver) race(ctx context.Context, host string) (string, error) {
	type answer struct {
		ip  string
		err error
	}
	ctx, cancel := context.WithTimeout(ctx, publicTimeout)
	defer cancel()

	answers := make(chan answer, len(r.Public))
	for _, server := range r.Public {
		go func() {
			ips, err := r.query(ctx, host, server)
			if err != nil {
				answers <- answer{err: err}
				return
			}
			ip, err := pick(ips)
			answers <- answer{ip: ip, err: err}
		}()
	}

	for range r.Public {
		select {
		case a := <-answers:
			if a.err == nil {
				return a.ip, nil
			}
		case <-ctx.Done():
			return "", fmt.Errorf("resolve %s: public DNS race: %w", host, ctx.Err())
		}
	}
	return "", fmt.Errorf("resolve %s: all %d public DNS servers failed", host, len(r.Public))
}

// query resolves through server, or the system resolver when server is empty.
func (r *Resolver) query(ctx context.Context, host, server string) ([]string, error) {
	if r.lookup != nil {
		return r.lookup(ctx, host, server)
	}
	res := &net.Resolver{}
	if server != "" {
		res.PreferGo = true
		res.Dial = func(ctx context.Context, network, _ string) (net.Conn, error) {
			var d net.Dialer
			return d.DialContext(ctx, network, net.JoinHostPort(trimBrackets(server), "53"))
		}
	}
	return res.LookupHost(ctx, host)
}

// DialContext resolves addr's host with Lookup and dials the result.
func (r *Resolver) DialContext(ctx context.Context, network, addr string) (net.Conn, error) {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return nil, err
	}
	ip, err := r.Lookup(ctx, host)
	if err != nil {
		return nil, fmt.Errorf("dns lookup failed: %w", err)
	}
	var d net.Dialer
	return d.DialContext(ctx, network, net.JoinHostPort(ip, port))
}

func pick(ips []string) (string, error) {
	if len(ips) == 0 {
		return "", ErrNoAddress
	}
	for _, ip := range ips {
		if parsed := net.ParseIP(ip); parsed != nil && parsed.To4() != nil {
			return ip, nil
		}
	}
	return ips[0], nil
}

func trimBrackets(s string) string {
	if len(s) > 1 && s[0] == '[' && s[len(s)-1] == ']' {
		return s[1 : len(s)-1]
	}
	return s
}
