package fetchmcp

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	// DefaultTimeout bounds a single GET including reading the body.
	DefaultTimeout = 30 * time.Second
	// DefaultMaxBodyBytes is the largest body the fetcher will buffer (10MB).
	DefaultMaxBodyBytes = 10 * 1024 * 1024
	// DefaultUserAgent is sent when no other User-Agent is configured.
	DefaultUserAgent = "fetch-mcp/1.0 (+https://modelcontextprotocol.io)"
)

var (
	// ErrUnexpectedStatus is returned for responses outside the 2xx range.
	ErrUnexpectedStatus = errors.New("unexpected status code")
	// ErrUnsupportedContentType is returned for bodies that cannot be read as
	// text or extracted.
	ErrUnsupportedContentType = errors.New("unsupported content type")
	// ErrBodyTooLarge is returned when a body exceeds the configured limit.
	ErrBodyTooLarge = errors.New("response body too large")
)

// Document is a fetched response body together with what is needed to
// interpret it.
type Document struct {
	URL         *url.URL
	StatusCode  int
	ContentType string
	Body        []byte
}

// IsPDF reports whether the document was served as a PDF.
func (d *Document) IsPDF() bool {
	return isPDFContentType(d.ContentType)
}

// IsHTML reports whether the document was served as HTML or XHTML.
func (d *Document) IsHTML() bool {
	return isHTMLContentType(d.ContentType)
}

// Text returns the body as text. Bodies that are neither declared as text nor
// valid UTF-8 are rejected.
func (d *Document) Text() (string, error) {
	if !isTextContentType(d.ContentType) {
		if d.ContentType != "" || !utf8.Valid(d.Body) {
			return "", fmt.Errorf("%w: %s (expected text)", ErrUnsupportedContentType, d.ContentType)
		}
	}
	return string(d.Body), nil
}

// FetcherOptions configures a Fetcher. Zero values select the defaults.
type FetcherOptions struct {
	Timeout      time.Duration
	MaxBodyBytes int64
	UserAgent    string
	// Client overrides the HTTP client; Timeout is ignored when set.
	Client *http.Client
}

// Fetcher performs a single GET per call. It holds no per-request state and
// is safe for concurrent use.
type Fetcher struct {
	client       *http.Client
	maxBodyBytes int64
	userAgent    string
}

// NewFetcher returns a Fetcher configured from opts.
func NewFetcher(opts FetcherOptions) *Fetcher {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if opts.UserAgent == "" {
		opts.UserAgent = DefaultUserAgent
	}
	client := opts.Client
	if client == nil {
		client = &http.Client{Timeout: opts.Timeout}
	}
	return &Fetcher{
		client:       client,
		maxBodyBytes: opts.MaxBodyBytes,
		userAgent:    opts.UserAgent,
	}
}

// ParseURL checks that rawURL is an absolute http(s) URL.
func ParseURL(rawURL string) (*url.URL, error) {
	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}
	if parsedURL.Scheme == "" || parsedURL.Host == "" {
		return nil, fmt.Errorf("invalid URL: missing scheme or host")
	}
	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return nil, fmt.Errorf("invalid URL: unsupported scheme %q", parsedURL.Scheme)
	}
	return parsedURL, nil
}

// Fetch issues one GET to rawURL and buffers the body. Any non-2xx status is
// an error. No retries are attempted.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*Document, error) {
	parsedURL, err := ParseURL(rawURL)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, parsedURL.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/pdf;q=0.9,text/*;q=0.8,*/*;q=0.5")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch URL: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: %d", ErrUnexpectedStatus, resp.StatusCode)
	}

	if resp.ContentLength > f.maxBodyBytes {
		return nil, fmt.Errorf("%w: %d bytes (max %d bytes)", ErrBodyTooLarge, resp.ContentLength, f.maxBodyBytes)
	}

	// Read one byte past the limit to detect oversized bodies without a
	// Content-Length.
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(io.LimitReader(resp.Body, f.maxBodyBytes+1)); err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if int64(buf.Len()) > f.maxBodyBytes {
		return nil, fmt.Errorf("%w: exceeds %d bytes", ErrBodyTooLarge, f.maxBodyBytes)
	}

	// Relative links resolve against where we ended up after redirects.
	finalURL := parsedURL
	if resp.Request != nil && resp.Request.URL != nil {
		finalURL = resp.Request.URL
	}

	return &Document{
		URL:         finalURL,
		StatusCode:  resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Body:        buf.Bytes(),
	}, nil
}

func mediaType(contentType string) string {
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(contentType))
	}
	return mt
}

// isHTMLContentType checks if the content type indicates HTML content
func isHTMLContentType(contentType string) bool {
	ct := strings.ToLower(contentType)
	return strings.Contains(ct, "text/html") || strings.Contains(ct, "application/xhtml+xml")
}

// isTextContentType checks if the content type can be returned verbatim as text
func isTextContentType(contentType string) bool {
	mt := mediaType(contentType)
	switch {
	case strings.HasPrefix(mt, "text/"):
		return true
	case strings.HasSuffix(mt, "+xml"), strings.HasSuffix(mt, "+json"):
		return true
	}
	switch mt {
	case "application/json", "application/xml", "application/javascript",
		"application/ecmascript", "application/x-javascript", "application/x-ndjson":
		return true
	}
	return false
}
