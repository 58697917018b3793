package infrastructure

import (
	"context"
	"net/http"
	"net/http/httptest"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/tiktock-go/internal/domain"
)

func newPageServer(t *testing.T, status int, body string) (*httptest.Server, *http.Header) {
	t.Helper()
	var seen http.Header
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = r.Header.Clone()
		w.WriteHeader(status)
		w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)
	return server, &seen
}

func TestPageResolver_PrefersDeclaredOrderOverTextualOrder(t *testing.T) {
	// downloadAddr appears first in the page, playAddr is preferred.
	body := `{"downloadAddr":"https://cdn.example.com/watermark/dl.mp4","playAddr":"https://cdn.example.com/play.mp4"}`
	server, _ := newPageServer(t, http.StatusOK, body)

	resolver := NewPageResolver(server.Client(), nil, domain.WatermarkRemove, nil)
	loc, err := resolver.Resolve(context.Background(), server.URL+"/@user/video/1")

	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/play.mp4", loc.DirectURL)
}

func TestPageResolver_FallsBackToDownloadAddr(t *testing.T) {
	body := `<script>{"downloadAddr":"https:\/\/cdn.example.com\/watermark\/v.mp4?a=1&b=2"}</script>`
	server, _ := newPageServer(t, http.StatusOK, body)

	resolver := NewPageResolver(server.Client(), nil, domain.WatermarkRemove, nil)
	loc, err := resolver.Resolve(context.Background(), server.URL)

	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/no-watermark/v.mp4?a=1&b=2", loc.DirectURL)
}

func TestPageResolver_KeepWatermark(t *testing.T) {
	body := `{"downloadAddr":"https://cdn.example.com/watermark/v.mp4"}`
	server, _ := newPageServer(t, http.StatusOK, body)

	resolver := NewPageResolver(server.Client(), nil, domain.WatermarkKeep, nil)
	loc, err := resolver.Resolve(context.Background(), server.URL)

	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/watermark/v.mp4", loc.DirectURL)
}

func TestPageResolver_WatermarkRewriteIsBestEffort(t *testing.T) {
	body := `{"downloadAddr":"https://cdn.example.com/v/abc.mp4"}`
	server, _ := newPageServer(t, http.StatusOK, body)

	for _, mode := range []domain.WatermarkMode{domain.WatermarkRemove, domain.WatermarkRemoveWarn} {
		resolver := NewPageResolver(server.Client(), nil, mode, nil)
		loc, err := resolver.Resolve(context.Background(), server.URL)

		require.NoError(t, err)
		assert.Equal(t, "https://cdn.example.com/v/abc.mp4", loc.DirectURL)
	}
}

func TestPageResolver_NoPatternMatches(t *testing.T) {
	server, _ := newPageServer(t, http.StatusOK, `<html>nothing here</html>`)

	resolver := NewPageResolver(server.Client(), nil, domain.WatermarkRemove, nil)
	_, err := resolver.Resolve(context.Background(), server.URL)

	require.Error(t, err)
	assert.True(t, domain.IsKind(err, domain.KindResolution))
	assert.Equal(t, "no video URL found", domain.FailureReason(err))
}

func TestPageResolver_NonSuccessStatus(t *testing.T) {
	server, _ := newPageServer(t, http.StatusForbidden, `{"playAddr":"https://cdn.example.com/play.mp4"}`)

	resolver := NewPageResolver(server.Client(), nil, domain.WatermarkRemove, nil)
	_, err := resolver.Resolve(context.Background(), server.URL)

	require.Error(t, err)
	assert.True(t, domain.IsKind(err, domain.KindResolution))
	assert.Contains(t, err.Error(), "fetch failed")
	assert.Contains(t, domain.FailureReason(err), "unexpected status 403")
}

func TestPageResolver_SendsBrowserHeaders(t *testing.T) {
	server, seen := newPageServer(t, http.StatusOK, `{"playAddr":"https://cdn.example.com/play.mp4"}`)

	config := &domain.ResolverConfig{UserAgent: "test-agent/1.0"}
	resolver := NewPageResolver(server.Client(), config, domain.WatermarkRemove, nil)
	_, err := resolver.Resolve(context.Background(), server.URL)

	require.NoError(t, err)
	assert.Equal(t, "test-agent/1.0", seen.Get("User-Agent"))
	assert.Equal(t, "en-US,en;q=0.5", seen.Get("Accept-Language"))
	assert.Contains(t, seen.Get("Accept"), "text/html")
}

func TestPageResolver_CustomPatterns(t *testing.T) {
	server, _ := newPageServer(t, http.StatusOK, `data-src="https://cdn.example.com/custom.mp4"`)

	resolver := NewPageResolver(server.Client(), nil, domain.WatermarkRemove, nil).
		WithPatterns([]ExtractionPattern{
			{Name: "data-src", WatermarkFree: true, Regexp: regexp.MustCompile(`data-src="([^"]+)"`)},
		})
	loc, err := resolver.Resolve(context.Background(), server.URL)

	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/custom.mp4", loc.DirectURL)
}

func TestDecodeEscapes(t *testing.T) {
	tests := []struct {
		raw      string
		expected string
	}{
		{`https:\/\/cdn.example.com\/v.mp4`, "https://cdn.example.com/v.mp4"},
		{`https:\u002F\u002Fcdn.example.com\u002Fv.mp4`, "https://cdn.example.com/v.mp4"},
		{`https://cdn.example.com/v.mp4?a=1\u0026b=2`, "https://cdn.example.com/v.mp4?a=1&b=2"},
		{`https://cdn.example.com/v.mp4`, "https://cdn.example.com/v.mp4"},
		{`plain`, "plain"},
		{`bad\qescape`, `bad\qescape`},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			assert.Equal(t, tt.expected, decodeEscapes(tt.raw))
		})
	}
}
