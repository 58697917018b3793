//go:build integration

package integration

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/yourusername/tiktock-go/internal/app"
	"github.com/yourusername/tiktock-go/internal/domain"
	"github.com/yourusername/tiktock-go/internal/infrastructure"
)

const videoPayload = "not-really-an-mp4-but-long-enough-to-need-several-chunks"

// fakeSite serves TikTok pages, short links and CDN assets for every host.
//
//	vm.tiktok.com/ZTshort/          302 to www.tiktok.com/@carol/video/333
//	www.tiktok.com/@x/video/222     page without a video address
//	www.tiktok.com/@x/video/444     404
//	www.tiktok.com/@x/video/<id>    page pointing at cdn.tiktok.test/watermark/<id>.mp4
//	cdn.tiktok.test/no-watermark/*  the payload; /watermark/ assets are 403
func fakeSite(t *testing.T) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		host := r.Host
		switch {
		case strings.HasPrefix(host, "vm."):
			http.Redirect(w, r, "http://www.tiktok.com/@carol/video/333", http.StatusFound)

		case strings.HasPrefix(host, "cdn."):
			if !strings.HasPrefix(r.URL.Path, "/no-watermark/") {
				w.WriteHeader(http.StatusForbidden)
				return
			}
			w.Header().Set("Content-Length", strconv.Itoa(len(videoPayload)))
			w.Write([]byte(videoPayload))

		default:
			id := domain.ExtractID(r.URL.Path)
			switch id {
			case "222":
				fmt.Fprint(w, `<html><script>{"desc":"removed"}</script></html>`)
			case "444":
				w.WriteHeader(http.StatusNotFound)
			default:
				fmt.Fprintf(w, `<script>{"video":{"downloadAddr":"http://cdn.tiktok.test/watermark/%s.mp4"}}</script>`, id)
			}
		}
	}))
	t.Cleanup(server.Close)
	return server
}

// siteClient routes every request to server regardless of host
func siteClient(server *httptest.Server) *http.Client {
	client := infrastructure.NewHTTPClient()
	transport := client.Transport.(*http.Transport)
	transport.Proxy = nil
	addr := server.Listener.Addr().String()
	transport.DialContext = func(ctx context.Context, network, _ string) (net.Conn, error) {
		return (&net.Dialer{}).DialContext(ctx, network, addr)
	}
	return client
}

type stack struct {
	manager *app.DownloadManager
	repo    *infrastructure.SQLiteBatchRepository
	dir     string
}

func newStack(t *testing.T) *stack {
	t.Helper()
	server := fakeSite(t)
	client := siteClient(server)
	dir := t.TempDir()

	repo, err := infrastructure.NewSQLiteBatchRepository(filepath.Join(dir, "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })

	config := domain.DefaultConfig()
	fs := afero.NewOsFs()
	manager := app.NewDownloadManager(
		infrastructure.NewShortLinkResolver(client, &config.Resolver, zap.NewNop()),
		infrastructure.NewPageResolver(client, &config.Resolver, domain.WatermarkRemove, zap.NewNop()),
		infrastructure.NewHTTPStreamFetcher(client, &config.Resolver, fs, zap.NewNop()),
		fs,
		repo,
		nil,
		zap.NewNop(),
	)

	return &stack{manager: manager, repo: repo, dir: filepath.Join(dir, "videos")}
}

func (s *stack) options() domain.DownloadOptions {
	return domain.DownloadOptions{
		OutputDirectory:  s.dir,
		ChunkSizeBytes:   8,
		FilenameStrategy: domain.FilenameByTemplate,
		FilenameTemplate: "{index}_{author}_{id}",
	}
}
