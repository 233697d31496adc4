// Package offline keeps a versioned local copy of the site's assets and
// decides, per request, whether to answer from the network or from cache.
package offline

import (
	"net/http"
	"strings"
)

// ResponseType mirrors the visibility classes a browser assigns to fetched
// responses.
type ResponseType string

const (
	TypeBasic  ResponseType = "basic"
	TypeCORS   ResponseType = "cors"
	TypeOpaque ResponseType = "opaque"
)

// Source records where a served response came from.
type Source string

const (
	SourceNetwork Source = "network"
	SourceCache   Source = "cache"
	SourceOffline Source = "offline"
)

// Response is a fully buffered HTTP response as stored in a cache.
type Response struct {
	URL    string       `json:"url"`
	Status int          `json:"status"`
	Header http.Header  `json:"header,omitempty"`
	Body   []byte       `json:"body,omitempty"`
	Type   ResponseType `json:"type"`

	// Source is set on the way out and never persisted.
	Source Source `json:"-"`
}

// OK reports whether the status is 2xx.
func (r *Response) OK() bool {
	return r.Status >= 200 && r.Status < 300
}

// Cacheable reports whether a runtime copy may be stored: same-origin and
// exactly 200.
func (r *Response) Cacheable() bool {
	return r.Type == TypeBasic && r.Status == http.StatusOK
}

// Clone returns a deep copy.
func (r *Response) Clone() *Response {
	if r == nil {
		return nil
	}
	out := *r
	out.Header = r.Header.Clone()
	if r.Body != nil {
		out.Body = append([]byte(nil), r.Body...)
	}
	return &out
}

func (r *Response) from(src Source) *Response {
	out := r.Clone()
	out.Source = src
	return out
}

// RequestKey is the identity a response is stored under.
func RequestKey(method, absoluteURL string) string {
	return strings.ToUpper(method) + " " + absoluteURL
}
