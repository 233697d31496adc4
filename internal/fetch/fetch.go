// Package fetch performs outbound HTTP requests for the offline cache and
// converts HTML fragments to plain text.
package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// DefaultTimeout is the default HTTP request timeout.
const DefaultTimeout = 15 * time.Second

// DefaultUserAgent is the user agent string for outbound requests.
const DefaultUserAgent = "Mozilla/5.0 (compatible; SantosSiteEdge/1.0)"

// DefaultMaxBodySize caps how much of a response body is buffered.
const DefaultMaxBodySize = 16 << 20

// Result holds a fully buffered response.
type Result struct {
	URL         string
	StatusCode  int
	Header      http.Header
	Body        []byte
	ContentType string
}

// OK reports whether the response status is 2xx.
func (r *Result) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// Error represents a transport-level failure. HTTP error statuses are not
// errors; callers inspect Result.StatusCode.
type Error struct {
	URL     string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("fetch error for %s: %s: %v", e.URL, e.Message, e.Cause)
	}
	return fmt.Sprintf("fetch error for %s: %s", e.URL, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Options configures the fetch behavior.
type Options struct {
	Timeout   time.Duration
	UserAgent string
	Headers   map[string]string
	// MaxBodySize rejects larger responses instead of truncating them.
	MaxBodySize int64
}

// DefaultOptions returns sensible defaults for fetching.
func DefaultOptions() *Options {
	return &Options{
		Timeout:     DefaultTimeout,
		UserAgent:   DefaultUserAgent,
		MaxBodySize: DefaultMaxBodySize,
	}
}

// Client performs requests with shared options.
type Client struct {
	http    *http.Client
	options *Options
}

// NewClient creates a client. A nil opts uses DefaultOptions.
func NewClient(opts *Options) *Client {
	if opts == nil {
		opts = DefaultOptions()
	}
	if opts.Timeout == 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.UserAgent == "" {
		opts.UserAgent = DefaultUserAgent
	}
	if opts.MaxBodySize <= 0 {
		opts.MaxBodySize = DefaultMaxBodySize
	}
	return &Client{
		http:    &http.Client{Timeout: opts.Timeout},
		options: opts,
	}
}

// Do sends req and buffers the response body. The request's own headers win
// over the client defaults.
func (c *Client) Do(ctx context.Context, req *http.Request) (*Result, error) {
	urlStr := req.URL.String()
	if req.URL.Scheme == "" || req.URL.Host == "" {
		return nil, &Error{URL: urlStr, Message: "invalid URL"}
	}

	out := req.Clone(ctx)
	out.RequestURI = ""
	if out.Header.Get("User-Agent") == "" {
		out.Header.Set("User-Agent", c.options.UserAgent)
	}
	for key, value := range c.options.Headers {
		if out.Header.Get(key) == "" {
			out.Header.Set(key, value)
		}
	}

	resp, err := c.http.Do(out)
	if err != nil {
		return nil, &Error{
			URL:     urlStr,
			Message: "HTTP request failed",
			Cause:   err,
		}
	}
	defer func() { _ = resp.Body.Close() }()

	limit := c.options.MaxBodySize
	body, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return nil, &Error{
			URL:     urlStr,
			Message: "failed to read response body",
			Cause:   err,
		}
	}
	if int64(len(body)) > limit {
		return nil, &Error{
			URL:     urlStr,
			Message: fmt.Sprintf("response body exceeds %d bytes", limit),
		}
	}

	return &Result{
		URL:         urlStr,
		StatusCode:  resp.StatusCode,
		Header:      resp.Header.Clone(),
		Body:        body,
		ContentType: resp.Header.Get("Content-Type"),
	}, nil
}

// Get is a convenience wrapper for a plain GET.
func (c *Client) Get(ctx context.Context, urlStr string) (*Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, urlStr, nil)
	if err != nil {
		return nil, &Error{
			URL:     urlStr,
			Message: "failed to create request",
			Cause:   err,
		}
	}
	return c.Do(ctx, req)
}

// PlainText strips markup from an HTML fragment and normalizes whitespace.
// Text that is not HTML comes back trimmed.
func PlainText(fragment string) string {
	if !strings.ContainsAny(fragment, "<&") {
		return cleanWhitespace(fragment)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return cleanWhitespace(fragment)
	}
	doc.Find("script, style, noscript").Remove()

	return cleanWhitespace(doc.Text())
}

// cleanWhitespace drops blank lines and trims the rest.
func cleanWhitespace(text string) string {
	lines := strings.Split(text, "\n")
	var cleaned []string
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line != "" {
			cleaned = append(cleaned, line)
		}
	}
	return strings.Join(cleaned, "\n")
}
