package dynip

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/netip"
	"strings"
	"time"

	"github.com/miekg/dns"
)

// DefaultMyIPHost answers A queries with the address of the querying resolver,
// but only when the query arrives through the provider's DNS servers.
const DefaultMyIPHost = "myip.opendns.com"

// DNSResolver learns the public IP by asking the configured nameservers for the A record of Host.
//
// Queries are sent directly to the nameservers, which bypasses any local resolver cache.
// A name error (NXDOMAIN) or an answer without an A record means the nameservers do not belong to the provider.
// Every other failure is a ResolveError.
type DNSResolver struct {
	// Host is the name to look up. Defaults to DefaultMyIPHost.
	Host string
	// Servers are host:port or host addresses. When empty the servers from /etc/resolv.conf are used.
	Servers []string
	// Client defaults to a UDP client with a 5 second timeout.
	Client *dns.Client

	logger *slog.Logger
}

func (r *DNSResolver) SetLogger(l *slog.Logger) { r.logger = l }

// Resolve implements dynip.Resolver.
func (r *DNSResolver) Resolve(ctx context.Context) IP {
	logger := r.logger
	if logger == nil {
		logger = discard
	}
	host := r.Host
	if host == "" {
		host = DefaultMyIPHost
	}
	servers, err := r.servers()
	if err != nil {
		logger.Debug("no nameservers", "err", err)
		return ResolveError
	}
	client := r.Client
	if client == nil {
		client = &dns.Client{Timeout: 5 * time.Second}
	}

	m := new(dns.Msg)
	m.SetQuestion(dns.Fqdn(host), dns.TypeA)
	m.RecursionDesired = true

	var errs []error
	for _, server := range servers {
		resp, _, err := client.ExchangeContext(ctx, m, server)
		if err != nil {
			errs = append(errs, fmt.Errorf("query %s: %w", server, err))
			continue
		}
		ip := classifyAnswer(resp, host)
		logger.Debug("resolved public ip", "host", host, "server", server, "ip", ip)
		return ip
	}
	logger.Debug("dns lookup failed", "host", host, "err", errors.Join(errs...))
	return ResolveError
}

func classifyAnswer(resp *dns.Msg, host string) IP {
	switch resp.Rcode {
	case dns.RcodeSuccess:
	case dns.RcodeNameError:
		return NotUsingProvider
	default:
		return ResolveError
	}
	name := dns.Fqdn(host)
	// answers may come as a CNAME chain in any order
	for range resp.Answer {
		next := ""
		for _, rr := range resp.Answer {
			if !strings.EqualFold(rr.Header().Name, name) {
				continue
			}
			switch rr := rr.(type) {
			case *dns.A:
				if addr, ok := netip.AddrFromSlice(rr.A.To4()); ok {
					return Resolved(addr)
				}
			case *dns.CNAME:
				next = rr.Target
			}
		}
		if next == "" {
			break
		}
		name = next
	}
	return NotUsingProvider
}

func (r *DNSResolver) servers() ([]string, error) {
	if len(r.Servers) > 0 {
		out := make([]string, 0, len(r.Servers))
		for _, s := range r.Servers {
			out = append(out, withDNSPort(s, "53"))
		}
		return out, nil
	}
	cfg, err := dns.ClientConfigFromFile("/etc/resolv.conf")
	if err != nil {
		return nil, fmt.Errorf("reading resolv.conf: %w", err)
	}
	if len(cfg.Servers) == 0 {
		return nil, errors.New("resolv.conf lists no nameservers")
	}
	out := make([]string, 0, len(cfg.Servers))
	for _, s := range cfg.Servers {
		out = append(out, net.JoinHostPort(s, cfg.Port))
	}
	return out, nil
}

func withDNSPort(server, port string) string {
	if _, _, err := net.SplitHostPort(server); err == nil {
		return server
	}
	return net.JoinHostPort(server, port)
}
