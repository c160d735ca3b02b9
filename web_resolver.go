package dynip

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/netip"
	"net/url"
	"strings"
	"sync"
	"time"
)

// WebResolver constructs a resolver which uses external web services to look up the public IPv4 address.
//
// Each serviceURL must speak http and return status "200 OK",
// with a valid IPv4 address as the first line of the response body.
// All other responses are considered an error.
//
// If only one serviceURL is given,
// then the resolver will simply return the response.
// If multiple are given,
// then the resolver will request from up to three of them and only return an address if the first two non-error responses agreed on it.
//
// A web resolver cannot tell whether this host uses the provider's DNS servers,
// so it never reports NotUsingProvider; any failure is a ResolveError.
func WebResolver(serviceURL ...string) (Resolver, error) {
	var URLs []*url.URL
	for _, u := range serviceURL {
		pu, err := url.Parse(u)
		if err != nil {
			return nil, fmt.Errorf("error parsing URL: %w", err)
		}
		URLs = append(URLs, pu)
	}
	if len(URLs) == 0 {
		return nil, errors.New("no external IP lookup services were provided")
	}
	return &webResolver{serviceURLs: URLs}, nil
}

type webResolver struct {
	httpClient  *http.Client
	serviceURLs []*url.URL
	logger      *slog.Logger
}

func (wr *webResolver) SetLogger(l *slog.Logger)      { wr.logger = l }
func (wr *webResolver) SetHTTPClient(hc *http.Client) { wr.httpClient = hc }

// Resolve implements dynip.Resolver.
func (wr *webResolver) Resolve(ctx context.Context) IP {
	addr, err := wr.resolve(ctx)
	if err != nil {
		if wr.logger != nil {
			wr.logger.Debug("web ip lookup failed", "err", err)
		}
		return ResolveError
	}
	return Resolved(addr)
}

func (wr *webResolver) resolve(ctx context.Context) (netip.Addr, error) {
	// Asking three services and requiring two to agree makes us less likely to be affected by
	// service downtime, accidental caching, or a single service returning a wrong answer.
	if wr.serviceURLs == nil {
		return netip.Addr{}, errors.New("no external IP lookup services were provided")
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	type result struct {
		addr netip.Addr
		err  error
	}

	resolvercount := len(wr.serviceURLs)
	useCount := 3
	if resolvercount < useCount {
		useCount = resolvercount
	}
	results := make(chan result, useCount)

	var wg sync.WaitGroup
	wg.Add(useCount)
	for i := 0; i < useCount; i++ {
		u := wr.serviceURLs[i]
		go func() {
			defer wg.Done()
			r := result{}
			r.addr, r.err = wr.lookup(ctx, u)
			results <- r
		}()
	}
	go func() { wg.Wait(); close(results) }()

	resultCount := 0
	var errs []error
	var ip netip.Addr
	for r := range results {
		if r.err != nil {
			errs = append(errs, r.err)
			continue
		}
		resultCount++
		if useCount == 1 {
			return r.addr, nil
		}
		if !ip.IsValid() {
			ip = r.addr
			continue
		}
		if ip == r.addr {
			return ip, nil
		}
	}
	if resultCount < 2 {
		return netip.Addr{}, fmt.Errorf("not enough resolvers responded without errors: %w", errors.Join(errs...))
	}

	return netip.Addr{}, errors.New("IP resolvers did not agree on our IP")
}

func (wr *webResolver) lookup(ctx context.Context, url *url.URL) (netip.Addr, error) {
	// bounds every lookup even when the caller's context has no deadline and http.DefaultClient has no timeout
	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url.String(), nil)
	if err != nil {
		return netip.Addr{}, fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("Cache-Control", "no-cache")

	httpclient := wr.httpClient
	if httpclient == nil {
		httpclient = http.DefaultClient
	}

	resp, err := httpclient.Do(req)
	if err != nil {
		return netip.Addr{}, fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return netip.Addr{}, fmt.Errorf("http request returned %s", resp.Status)
	}

	scanner := bufio.NewReader(resp.Body)
	ipstring, _ := scanner.ReadString('\n')
	ip, err := netip.ParseAddr(strings.TrimSpace(ipstring))
	if err != nil {
		return netip.Addr{}, fmt.Errorf("error parsing IP address from response body: %w", err)
	}
	if !ip.Unmap().Is4() {
		return netip.Addr{}, fmt.Errorf("%s is not an IPv4 address", ip)
	}
	return ip.Unmap(), nil
}
