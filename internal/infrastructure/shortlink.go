package infrastructure

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/yourusername/tiktock-go/internal/domain"
)

const defaultShortLinkTimeout = 10 * time.Second

// ShortLinkResolver follows vm./vt./t/ short links to the canonical video URL
type ShortLinkResolver struct {
	client  *http.Client
	headers BrowserHeaders
	timeout time.Duration
	logger  *zap.Logger
}

// NewShortLinkResolver creates a short-link resolver
func NewShortLinkResolver(client *http.Client, config *domain.ResolverConfig, logger *zap.Logger) *ShortLinkResolver {
	if client == nil {
		client = NewHTTPClient()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := defaultShortLinkTimeout
	if config != nil && config.ShortLinkTimeout > 0 {
		timeout = config.ShortLinkTimeout
	}
	return &ShortLinkResolver{
		client:  client,
		headers: NewBrowserHeaders(config),
		timeout: timeout,
		logger:  logger,
	}
}

// Resolve returns the URL the short link redirects to.
// Non-short links and any network failure return rawURL unchanged.
func (r *ShortLinkResolver) Resolve(ctx context.Context, rawURL string) string {
	if !domain.IsShortLink(rawURL) {
		return rawURL
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, rawURL, nil)
	if err != nil {
		return rawURL
	}
	r.headers.Apply(req)

	resp, err := r.client.Do(req)
	if err != nil {
		r.logger.Debug("Short link lookup failed",
			zap.String("url", rawURL),
			zap.Error(err))
		return rawURL
	}
	defer resp.Body.Close()

	if resp.Request == nil || resp.Request.URL == nil {
		return rawURL
	}

	resolved := resp.Request.URL.String()
	r.logger.Debug("Short link resolved",
		zap.String("url", rawURL),
		zap.String("resolved", resolved))
	return resolved
}
