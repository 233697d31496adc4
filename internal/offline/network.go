package offline

import (
	"context"
	"net/http"
	"net/url"

	"github.com/santoscsolutions/site/internal/fetch"
)

// NetworkFetcher adapts fetch.Client to Fetcher and classifies responses by
// origin.
type NetworkFetcher struct {
	client *fetch.Client
	origin *url.URL
}

// NewNetworkFetcher creates a fetcher for the given site origin. A nil
// client uses fetch defaults.
func NewNetworkFetcher(origin string, client *fetch.Client) (*NetworkFetcher, error) {
	o, err := parseOrigin(origin)
	if err != nil {
		return nil, err
	}
	if client == nil {
		client = fetch.NewClient(nil)
	}
	return &NetworkFetcher{client: client, origin: o}, nil
}

// Fetch performs the request. Non-2xx statuses are returned as responses.
func (f *NetworkFetcher) Fetch(ctx context.Context, req *http.Request) (*Response, error) {
	result, err := f.client.Do(ctx, req)
	if err != nil {
		return nil, err
	}
	return &Response{
		URL:    result.URL,
		Status: result.StatusCode,
		Header: result.Header,
		Body:   result.Body,
		Type:   f.classify(req.URL, result.Header),
		Source: SourceNetwork,
	}, nil
}

func (f *NetworkFetcher) classify(u *url.URL, header http.Header) ResponseType {
	if u.Scheme == f.origin.Scheme && u.Host == f.origin.Host {
		return TypeBasic
	}
	if header.Get("Access-Control-Allow-Origin") != "" {
		return TypeCORS
	}
	return TypeOpaque
}
