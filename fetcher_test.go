package fetchmcp

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestFetcher_Fetch(t *testing.T) {
	tests := []struct {
		name                string
		handler             http.HandlerFunc
		expectedError       string
		expectedErr         error
		expectedBody        string
		expectedContentType string
	}{
		{
			name: "HTML body is returned unchanged",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "text/html; charset=utf-8")
				w.Write([]byte(`<html><body><p>Hello</p></body></html>`))
			},
			expectedBody:        `<html><body><p>Hello</p></body></html>`,
			expectedContentType: "text/html; charset=utf-8",
		},
		{
			name: "JSON body is accepted",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.Write([]byte(`{"ok": true}`))
			},
			expectedBody:        `{"ok": true}`,
			expectedContentType: "application/json",
		},
		{
			name: "204 is a success",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusNoContent)
			},
			expectedBody: "",
		},
		{
			name: "404 status returns error",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusNotFound)
			},
			expectedError: "unexpected status code: 404",
			expectedErr:   ErrUnexpectedStatus,
		},
		{
			name: "500 status returns error",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusInternalServerError)
			},
			expectedError: "unexpected status code: 500",
			expectedErr:   ErrUnexpectedStatus,
		},
		{
			name: "body too large via Content-Length",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Length", "2048")
				w.Write([]byte(strings.Repeat("a", 2048)))
			},
			expectedError: "response body too large",
			expectedErr:   ErrBodyTooLarge,
		},
		{
			name: "body too large without Content-Length",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "text/plain")
				w.(http.Flusher).Flush()
				w.Write([]byte(strings.Repeat("a", 2048)))
			},
			expectedError: "exceeds 1024 bytes",
			expectedErr:   ErrBodyTooLarge,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(tt.handler)
			defer server.Close()

			f := NewFetcher(FetcherOptions{Timeout: 5 * time.Second, MaxBodyBytes: 1024})
			doc, err := f.Fetch(context.Background(), server.URL)

			if tt.expectedError != "" {
				if err == nil {
					t.Errorf("expected error containing %q, got nil", tt.expectedError)
					return
				}
				if !strings.Contains(err.Error(), tt.expectedError) {
					t.Errorf("expected error containing %q, got %q", tt.expectedError, err.Error())
				}
				if tt.expectedErr != nil && !errors.Is(err, tt.expectedErr) {
					t.Errorf("expected error to wrap %v, got %v", tt.expectedErr, err)
				}
				return
			}

			if err != nil {
				t.Errorf("unexpected error: %v", err)
				return
			}

			if string(doc.Body) != tt.expectedBody {
				t.Errorf("expected body %q, got %q", tt.expectedBody, doc.Body)
			}
			if tt.expectedContentType != "" && doc.ContentType != tt.expectedContentType {
				t.Errorf("expected content type %q, got %q", tt.expectedContentType, doc.ContentType)
			}
		})
	}
}

func TestFetcher_Fetch_Headers(t *testing.T) {
	var gotUA, gotAccept string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		gotAccept = r.Header.Get("Accept")
		w.Header().Set("Content-Type", "text/plain")
		w.Write([]byte("ok"))
	}))
	defer server.Close()

	if _, err := NewFetcher(FetcherOptions{UserAgent: "tester/2.0"}).Fetch(context.Background(), server.URL); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotUA != "tester/2.0" {
		t.Errorf("expected User-Agent %q, got %q", "tester/2.0", gotUA)
	}
	if !strings.Contains(gotAccept, "text/html") {
		t.Errorf("expected Accept to include text/html, got %q", gotAccept)
	}

	if _, err := NewFetcher(FetcherOptions{}).Fetch(context.Background(), server.URL); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotUA != DefaultUserAgent {
		t.Errorf("expected default User-Agent %q, got %q", DefaultUserAgent, gotUA)
	}
}

func TestFetcher_Fetch_FollowsRedirects(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/old", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/new/page", http.StatusMovedPermanently)
	})
	mux.HandleFunc("/new/page", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte("<p>moved</p>"))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	doc, err := NewFetcher(FetcherOptions{}).Fetch(context.Background(), server.URL+"/old")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if doc.URL.Path != "/new/page" {
		t.Errorf("expected final URL path /new/page, got %q", doc.URL.Path)
	}
}

func TestFetcher_Fetch_InvalidURL(t *testing.T) {
	tests := []struct {
		name          string
		url           string
		expectedError string
	}{
		{
			name:          "missing scheme",
			url:           "example.com/page",
			expectedError: "missing scheme or host",
		},
		{
			name:          "missing host",
			url:           "http:///page",
			expectedError: "missing scheme or host",
		},
		{
			name:          "empty URL",
			url:           "",
			expectedError: "missing scheme or host",
		},
		{
			name:          "not a URL",
			url:           "not-a-url",
			expectedError: "missing scheme or host",
		},
		{
			name:          "unsupported scheme",
			url:           "ftp://example.com/file",
			expectedError: "unsupported scheme",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewFetcher(FetcherOptions{}).Fetch(context.Background(), tt.url)
			if err == nil {
				t.Errorf("expected error containing %q, got nil", tt.expectedError)
				return
			}
			if !strings.Contains(err.Error(), tt.expectedError) {
				t.Errorf("expected error containing %q, got %q", tt.expectedError, err.Error())
			}
		})
	}
}

func TestFetcher_Fetch_Timeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(100 * time.Millisecond)
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte("<html><body>Hello</body></html>"))
	}))
	defer server.Close()

	_, err := NewFetcher(FetcherOptions{Timeout: 10 * time.Millisecond}).Fetch(context.Background(), server.URL)
	if err == nil {
		t.Error("expected timeout error, got nil")
		return
	}
	errStr := err.Error()
	if !strings.Contains(errStr, "timeout") &&
		!strings.Contains(errStr, "deadline") &&
		!strings.Contains(errStr, "Timeout") {
		t.Errorf("expected timeout-related error, got %q", errStr)
	}
}

func TestFetcher_Fetch_ContextCancellation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(100 * time.Millisecond)
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte("<html><body>Hello</body></html>"))
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewFetcher(FetcherOptions{}).Fetch(ctx, server.URL)
	if err == nil {
		t.Error("expected context cancellation error, got nil")
	}
}

func TestDocument_Text(t *testing.T) {
	tests := []struct {
		name          string
		contentType   string
		body          []byte
		expectedError bool
	}{
		{"html", "text/html; charset=utf-8", []byte("<p>x</p>"), false},
		{"plain", "text/plain", []byte("hello"), false},
		{"json", "application/json", []byte(`{}`), false},
		{"vendor json", "application/vnd.api+json", []byte(`{}`), false},
		{"xml", "application/rss+xml", []byte(`<rss/>`), false},
		{"untyped utf-8", "", []byte("hello"), false},
		{"untyped binary", "", []byte{0xff, 0xfe, 0x00}, true},
		{"image", "image/png", []byte{0x89, 'P', 'N', 'G'}, true},
		{"pdf", "application/pdf", []byte("%PDF-1.4"), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := &Document{ContentType: tt.contentType, Body: tt.body}
			text, err := doc.Text()
			if tt.expectedError {
				if !errors.Is(err, ErrUnsupportedContentType) {
					t.Errorf("expected ErrUnsupportedContentType, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if text != string(tt.body) {
				t.Errorf("expected %q, got %q", tt.body, text)
			}
		})
	}
}
