package dnspin

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/netip"
	"net/url"
	"time"
)

// DefaultIPSources are the public "echo my IP" services queried when
// WebResolver is constructed without arguments. They are independent
// operators; any one of them answering correctly is enough.
var DefaultIPSources = []string{
	"https://api.ipify.org",
	"https://checkip.amazonaws.com",
	"https://icanhazip.com",
	"https://ifconfig.me/ip",
	"https://ipv4.seeip.org",
}

// WebResolver constructs a resolver which uses external web services to look
// up this machine's public IPv4 address.
//
// Each serviceURL must speak http and return status "200 OK",
// with a valid IPv4 address as the first line of the response body.
// All other responses are considered an error.
//
// Services are tried strictly in order. The first response that parses as a
// valid IPv4 address is returned immediately and the remaining services are
// never contacted; a service that times out, errors, or returns garbage is
// skipped. Each service gets exactly one attempt - the diversity of the list
// stands in for per-service retries. Only when every service has been
// exhausted does Resolve fail, wrapping ErrNoSourceAvailable.
func WebResolver(serviceURL ...string) (Resolver, error) {
	if len(serviceURL) == 0 {
		serviceURL = DefaultIPSources
	}
	var URLs []*url.URL
	for _, u := range serviceURL {
		pu, err := url.Parse(u)
		if err != nil {
			return nil, fmt.Errorf("error parsing URL: %w", err)
		}
		URLs = append(URLs, pu)
	}
	return &webResolver{serviceURLs: URLs, timeout: 10 * time.Second}, nil
}

type webResolver struct {
	httpClient  *http.Client
	serviceURLs []*url.URL
	timeout     time.Duration
}

func (wr *webResolver) SetHTTPClient(httpclient *http.Client) {
	wr.httpClient = httpclient
}

// Resolve implements dnspin.Resolver.
func (wr *webResolver) Resolve(ctx context.Context) (netip.Addr, error) {
	if len(wr.serviceURLs) == 0 {
		return netip.Addr{}, fmt.Errorf("%w: no IP lookup services were provided", ErrNoSourceAvailable)
	}

	var errs []error
	for _, u := range wr.serviceURLs {
		addr, err := wr.lookup(ctx, u)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", u.Host, err))
			if ctx.Err() != nil {
				break
			}
			continue
		}
		return addr, nil
	}

	return netip.Addr{}, fmt.Errorf("%w: %w", ErrNoSourceAvailable, errors.Join(errs...))
}

func (wr *webResolver) lookup(ctx context.Context, url *url.URL) (netip.Addr, error) {
	// The per-request timeout ensures every call to Resolve eventually
	// completes even if the caller supplied context.Background and an
	// http.Client with no timeout.
	ctx, cancel := context.WithTimeout(ctx, wr.timeout)
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

	if resp.StatusCode != 200 {
		return netip.Addr{}, fmt.Errorf("http request returned %s", resp.Status)
	}

	scanner := bufio.NewReader(resp.Body)
	ipstring, _ := scanner.ReadString('\n')
	addr, err := ParseIPv4(ipstring)
	if err != nil {
		return netip.Addr{}, fmt.Errorf("error parsing IP address from response body: %w", err)
	}
	return addr, nil
}
