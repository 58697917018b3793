package infrastructure

import (
	"net/http"
	"time"

	"github.com/yourusername/tiktock-go/internal/domain"
)

// BrowserHeaders holds the request headers sent with every page and media request
type BrowserHeaders struct {
	UserAgent      string
	AcceptLanguage string
}

// NewBrowserHeaders builds headers from resolver configuration, falling back to defaults
func NewBrowserHeaders(config *domain.ResolverConfig) BrowserHeaders {
	h := BrowserHeaders{
		UserAgent:      domain.DefaultUserAgent,
		AcceptLanguage: "en-US,en;q=0.5",
	}
	if config == nil {
		return h
	}
	if config.UserAgent != "" {
		h.UserAgent = config.UserAgent
	}
	if config.AcceptLanguage != "" {
		h.AcceptLanguage = config.AcceptLanguage
	}
	return h
}

// Apply sets the headers on req
func (h BrowserHeaders) Apply(req *http.Request) {
	req.Header.Set("User-Agent", h.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8")
	req.Header.Set("Accept-Language", h.AcceptLanguage)
	req.Header.Set("Connection", "keep-alive")
}

// NewHTTPClient returns a client shared by the resolver and fetcher.
// It has no overall timeout: media downloads are bounded by the remote server only.
func NewHTTPClient() *http.Client {
	return &http.Client{
		Transport: newTransport(),
	}
}

func newTransport() *http.Transport {
	t := http.DefaultTransport.(*http.Transport).Clone()
	t.MaxIdleConns = 10
	t.MaxIdleConnsPerHost = 4
	t.IdleConnTimeout = 90 * time.Second
	t.ResponseHeaderTimeout = 30 * time.Second
	return t
}
