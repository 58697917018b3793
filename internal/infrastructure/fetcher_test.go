package infrastructure

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/tiktock-go/internal/domain"
)

type progressCall struct {
	downloaded int64
	total      int64
}

func recordProgress(calls *[]progressCall) domain.ProgressSink {
	return domain.ProgressFunc(func(downloaded, total int64) {
		*calls = append(*calls, progressCall{downloaded, total})
	})
}

func newMediaServer(t *testing.T, payload []byte, withLength bool) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if withLength {
			w.Header().Set("Content-Length", strconv.Itoa(len(payload)))
		}
		w.Write(payload)
		if !withLength {
			w.(http.Flusher).Flush()
		}
	}))
	t.Cleanup(server.Close)
	return server
}

func TestHTTPStreamFetcher_WritesFileAndReportsProgress(t *testing.T) {
	payload := bytes.Repeat([]byte("x"), 10_000)
	server := newMediaServer(t, payload, true)
	fs := afero.NewMemMapFs()

	fetcher := NewHTTPStreamFetcher(server.Client(), nil, fs, nil)
	var calls []progressCall
	result, err := fetcher.Fetch(context.Background(), domain.MediaLocation{DirectURL: server.URL + "/v.mp4"}, domain.FetchRequest{
		OutputPath: "/out/v.mp4",
		ChunkSize:  1024,
		Progress:   recordProgress(&calls),
	})

	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, int64(len(payload)), result.SizeBytes)
	assert.Equal(t, "/out/v.mp4", result.Path)

	written, err := afero.ReadFile(fs, "/out/v.mp4")
	require.NoError(t, err)
	assert.Equal(t, payload, written)

	require.NotEmpty(t, calls)
	var sum, prev int64
	for _, c := range calls {
		assert.Equal(t, int64(len(payload)), c.total)
		assert.Greater(t, c.downloaded, prev)
		sum += c.downloaded - prev
		prev = c.downloaded
	}
	assert.Equal(t, result.SizeBytes, sum)
	assert.Equal(t, calls[len(calls)-1].total, calls[len(calls)-1].downloaded)
}

func TestHTTPStreamFetcher_NoContentLengthSkipsProgress(t *testing.T) {
	payload := bytes.Repeat([]byte("y"), 4096)
	server := newMediaServer(t, payload, false)
	fs := afero.NewMemMapFs()

	fetcher := NewHTTPStreamFetcher(server.Client(), nil, fs, nil)
	var calls []progressCall
	result, err := fetcher.Fetch(context.Background(), domain.MediaLocation{DirectURL: server.URL}, domain.FetchRequest{
		OutputPath: "/v.mp4",
		ChunkSize:  512,
		Progress:   recordProgress(&calls),
	})

	require.NoError(t, err)
	assert.Equal(t, int64(len(payload)), result.SizeBytes)
	assert.Empty(t, calls)
}

func TestHTTPStreamFetcher_SleepsPreDelay(t *testing.T) {
	server := newMediaServer(t, []byte("data"), true)

	fetcher := NewHTTPStreamFetcher(server.Client(), nil, afero.NewMemMapFs(), nil)
	var slept time.Duration
	fetcher.SetSleep(func(d time.Duration) { slept = d })

	_, err := fetcher.Fetch(context.Background(), domain.MediaLocation{DirectURL: server.URL}, domain.FetchRequest{
		OutputPath: "/v.mp4",
		PreDelay:   2 * time.Second,
	})

	require.NoError(t, err)
	assert.Equal(t, 2*time.Second, slept)
}

func TestHTTPStreamFetcher_HTTPErrorIsFetchError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()
	fs := afero.NewMemMapFs()

	fetcher := NewHTTPStreamFetcher(server.Client(), nil, fs, nil)
	_, err := fetcher.Fetch(context.Background(), domain.MediaLocation{DirectURL: server.URL}, domain.FetchRequest{OutputPath: "/v.mp4"})

	require.Error(t, err)
	assert.True(t, domain.IsKind(err, domain.KindFetch))
	assert.Contains(t, domain.FailureReason(err), "unexpected status 404")

	exists, _ := afero.Exists(fs, "/v.mp4")
	assert.False(t, exists)
}

func TestHTTPStreamFetcher_WriteErrorIsFetchError(t *testing.T) {
	server := newMediaServer(t, []byte("data"), true)

	fetcher := NewHTTPStreamFetcher(server.Client(), nil, afero.NewReadOnlyFs(afero.NewMemMapFs()), nil)
	_, err := fetcher.Fetch(context.Background(), domain.MediaLocation{DirectURL: server.URL}, domain.FetchRequest{OutputPath: "/v.mp4"})

	require.Error(t, err)
	assert.True(t, domain.IsKind(err, domain.KindFetch))
}

type failingReader struct {
	data []byte
	sent bool
}

func (r *failingReader) Read(p []byte) (int, error) {
	if !r.sent {
		r.sent = true
		return copy(p, r.data), nil
	}
	return 0, errors.New("connection reset by peer")
}

func TestCopyChunks_PartialWriteIsKept(t *testing.T) {
	var dst bytes.Buffer
	var calls []progressCall

	written, err := copyChunks(&dst, &failingReader{data: []byte("abc")}, 2, 10, recordProgress(&calls))

	require.Error(t, err)
	assert.Equal(t, int64(2), written)
	assert.Equal(t, "ab", dst.String())
	assert.Equal(t, []progressCall{{2, 10}}, calls)
}
