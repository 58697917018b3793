package infrastructure

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/yourusername/tiktock-go/internal/domain"
)

// maxPageSize caps how much of a video page is read while searching for the asset URL
const maxPageSize = 16 << 20

// ExtractionPattern is one named strategy for finding the asset URL in a page
type ExtractionPattern struct {
	Name string
	// WatermarkFree marks fields that already point at the watermark-free asset
	WatermarkFree bool
	Regexp        *regexp.Regexp
}

// Match returns the first capture of the pattern in body
func (p ExtractionPattern) Match(body string) (string, bool) {
	match := p.Regexp.FindStringSubmatch(body)
	if len(match) < 2 || match[1] == "" {
		return "", false
	}
	return match[1], true
}

// DefaultExtractionPatterns are tried in order; the first pattern with a match wins.
func DefaultExtractionPatterns() []ExtractionPattern {
	return []ExtractionPattern{
		{Name: "playAddr", WatermarkFree: true, Regexp: regexp.MustCompile(`"playAddr":"([^"]+)"`)},
		{Name: "downloadAddr", Regexp: regexp.MustCompile(`"downloadAddr":"([^"]+)"`)},
		{Name: "video.downloadAddr", Regexp: regexp.MustCompile(`"video":\{"downloadAddr":"([^"]+)"`)},
	}
}

// PageResolver implements domain.LinkResolver by scraping the video page
type PageResolver struct {
	client    *http.Client
	headers   BrowserHeaders
	patterns  []ExtractionPattern
	watermark domain.WatermarkMode
	logger    *zap.Logger
}

// NewPageResolver creates a resolver using DefaultExtractionPatterns
func NewPageResolver(client *http.Client, config *domain.ResolverConfig, watermark domain.WatermarkMode, logger *zap.Logger) *PageResolver {
	if client == nil {
		client = NewHTTPClient()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if watermark == "" {
		watermark = domain.WatermarkRemove
	}
	return &PageResolver{
		client:    client,
		headers:   NewBrowserHeaders(config),
		patterns:  DefaultExtractionPatterns(),
		watermark: watermark,
		logger:    logger,
	}
}

// WithPatterns replaces the ordered extraction patterns
func (r *PageResolver) WithPatterns(patterns []ExtractionPattern) *PageResolver {
	r.patterns = patterns
	return r
}

// Resolve fetches pageURL and extracts the direct media URL
func (r *PageResolver) Resolve(ctx context.Context, pageURL string) (domain.MediaLocation, error) {
	body, err := r.fetchPage(ctx, pageURL)
	if err != nil {
		return domain.MediaLocation{}, domain.NewResolutionError("fetch failed", err)
	}

	raw, pattern, ok := r.match(body)
	if !ok {
		return domain.MediaLocation{}, domain.NewResolutionError("no video URL found", nil)
	}

	directURL := decodeEscapes(raw)
	if !pattern.WatermarkFree {
		directURL = r.rewriteWatermark(pageURL, directURL)
	}

	r.logger.Debug("Resolved media location",
		zap.String("url", pageURL),
		zap.String("pattern", pattern.Name))

	return domain.MediaLocation{DirectURL: directURL}, nil
}

func (r *PageResolver) fetchPage(ctx context.Context, pageURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", err
	}
	r.headers.Apply(req)

	resp, err := r.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("unexpected status %d for %s", resp.StatusCode, pageURL)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxPageSize))
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// match evaluates patterns in order; matches are never merged across patterns
func (r *PageResolver) match(body string) (string, ExtractionPattern, bool) {
	for _, p := range r.patterns {
		if raw, ok := p.Match(body); ok {
			return raw, p, true
		}
	}
	return "", ExtractionPattern{}, false
}

func (r *PageResolver) rewriteWatermark(pageURL, directURL string) string {
	if r.watermark == domain.WatermarkKeep {
		return directURL
	}
	if !strings.Contains(directURL, "/watermark/") {
		if r.watermark == domain.WatermarkRemoveWarn {
			r.logger.Warn("No watermark segment to rewrite, keeping original asset URL",
				zap.String("url", pageURL))
		}
		return directURL
	}
	return strings.Replace(directURL, "/watermark/", "/no-watermark/", 1)
}

// decodeEscapes turns a JSON-escaped string fragment (\u002F, \/, \u0026) into plain text
func decodeEscapes(raw string) string {
	var decoded string
	if err := json.Unmarshal([]byte(`"`+raw+`"`), &decoded); err == nil {
		return decoded
	}
	if unquoted, err := strconv.Unquote(`"` + strings.ReplaceAll(raw, `\/`, `/`) + `"`); err == nil {
		return unquoted
	}
	return raw
}
