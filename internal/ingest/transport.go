// Package ingest plans raster ingestion from a STAC catalog: it searches
// a collection for one year and bounding box, picks the NDVI asset of
// every item, and writes a deterministic download manifest. Downloading
// and metric computation happen elsewhere.
package ingest

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/rs/dnscache"
	"golang.org/x/oauth2"
)

// newTransport returns a tuned *http.Transport with connection pooling
// and optional DNS caching for the catalog host.
func newTransport(resolver *dnscache.Resolver) *http.Transport {
	t := &http.Transport{
		MaxIdleConnsPerHost: 16,
		MaxConnsPerHost:     32,
		IdleConnTimeout:     90 * time.Second,
		ForceAttemptHTTP2:   true,
		TLSHandshakeTimeout: 5 * time.Second,
	}
	if resolver != nil {
		t.DialContext = func(ctx context.Context, network, addr string) (net.Conn, error) {
			host, port, err := net.SplitHostPort(addr)
			if err != nil {
				return nil, err
			}
			ips, err := resolver.LookupHost(ctx, host)
			if err != nil {
				return nil, err
			}
			var d net.Dialer
			return d.DialContext(ctx, network, net.JoinHostPort(ips[0], port))
		}
	}
	return t
}

// newHTTPClient builds the catalog client. A non-empty token wraps the
// transport in an oauth2 bearer layer for catalogs that require one.
func newHTTPClient(token string, resolver *dnscache.Resolver) *http.Client {
	base := &http.Client{
		Transport: newTransport(resolver),
		Timeout:   60 * time.Second,
	}
	if token == "" {
		return base
	}
	ctx := context.WithValue(context.Background(), oauth2.HTTPClient, base)
	return oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token}))
}
