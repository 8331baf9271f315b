package core_test

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/DonovanMods/lion-launcher/internal/core"
	"github.com/DonovanMods/lion-launcher/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sha1Hex(data []byte) string {
	sum := sha1.Sum(data)
	return hex.EncodeToString(sum[:])
}

func fastDownloader() *core.Downloader {
	return core.NewDownloader(nil, core.WithRetryBackoff(time.Millisecond))
}

func openTarget(t *testing.T) *os.File {
	t.Helper()
	f, err := os.Create(filepath.Join(t.TempDir(), "download.part"))
	require.NoError(t, err)
	t.Cleanup(func() { f.Close() })
	return f
}

func readTarget(t *testing.T, f *os.File) []byte {
	t.Helper()
	data, err := os.ReadFile(f.Name())
	require.NoError(t, err)
	return data
}

func TestDownloader_DownloadTo_ReturnsChecksum(t *testing.T) {
	content := []byte("test file content for checksum")

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(content)
	}))
	defer server.Close()

	f := openTarget(t)

	result, err := fastDownloader().DownloadTo(context.Background(), server.URL, f, core.Expect{}, nil)
	require.NoError(t, err)

	assert.Equal(t, content, readTarget(t, f))
	assert.Equal(t, int64(len(content)), result.Size)
	assert.Equal(t, sha1Hex(content), result.Checksum)
	assert.Len(t, result.Checksum, 40)
}

func TestDownloader_DownloadTo_Progress(t *testing.T) {
	content := make([]byte, 1000)
	for i := range content {
		content[i] = byte(i % 256)
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", "1000")
		w.Write(content)
	}))
	defer server.Close()

	var lastProgress core.DownloadProgress
	progressFn := func(p core.DownloadProgress) {
		lastProgress = p
	}

	_, err := fastDownloader().DownloadTo(context.Background(), server.URL, openTarget(t), core.Expect{Size: 1000}, progressFn)
	require.NoError(t, err)

	assert.Equal(t, int64(1000), lastProgress.TotalBytes)
	assert.Equal(t, int64(1000), lastProgress.Downloaded)
	assert.InDelta(t, 100.0, lastProgress.Percentage, 0.1)
}

func TestDownloader_DownloadTo_ChecksumMismatch(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.Write([]byte("tampered"))
	}))
	defer server.Close()

	_, err := fastDownloader().DownloadTo(context.Background(), server.URL, openTarget(t), core.Expect{SHA1: sha1Hex([]byte("original"))}, nil)
	require.Error(t, err)

	var integrityErr *domain.IntegrityError
	require.True(t, errors.As(err, &integrityErr))
	assert.ErrorIs(t, err, domain.ErrIntegrity)
	assert.Equal(t, int32(1), attempts.Load(), "integrity failures are not retried")
}

func TestDownloader_DownloadTo_SizeMismatch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("short"))
	}))
	defer server.Close()

	_, err := fastDownloader().DownloadTo(context.Background(), server.URL, openTarget(t), core.Expect{Size: 99}, nil)
	assert.ErrorIs(t, err, domain.ErrIntegrity)
}

func TestDownloader_DownloadTo_CancelledContext(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", "1000000")
		// Write slowly so we can cancel
		for i := 0; i < 1000; i++ {
			select {
			case <-r.Context().Done():
				return
			default:
				w.Write(make([]byte, 1000))
				w.(http.Flusher).Flush()
			}
		}
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel() // Cancel immediately

	_, err := fastDownloader().DownloadTo(ctx, server.URL, openTarget(t), core.Expect{}, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDownloader_DownloadTo_NotFound(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	_, err := fastDownloader().DownloadTo(context.Background(), server.URL, openTarget(t), core.Expect{}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
	assert.ErrorIs(t, err, domain.ErrNetwork)
	assert.Equal(t, int32(1), attempts.Load(), "4xx is not retried")
}

func TestDownloader_DownloadTo_RetriesOnTransientError(t *testing.T) {
	content := []byte("ok after retries")
	var attempt atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := attempt.Add(1)
		if n == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		if n == 2 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Header().Set("Content-Length", strconv.Itoa(len(content)))
		w.Write(content)
	}))
	defer server.Close()

	f := openTarget(t)

	result, err := fastDownloader().DownloadTo(context.Background(), server.URL, f, core.Expect{SHA1: sha1Hex(content)}, nil)
	require.NoError(t, err)
	assert.Equal(t, 3, result.Attempts)
	assert.Equal(t, content, readTarget(t, f))
}

func TestDownloader_DownloadTo_RetriesExhausted(t *testing.T) {
	var attempt atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempt.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	d := core.NewDownloader(nil, core.WithMaxAttempts(4), core.WithRetryBackoff(time.Millisecond))
	_, err := d.DownloadTo(context.Background(), server.URL, openTarget(t), core.Expect{}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")

	var netErr *domain.NetworkError
	require.True(t, errors.As(err, &netErr))
	assert.Equal(t, 4, netErr.Attempts)
	assert.Equal(t, int32(4), attempt.Load())
}

func TestDownloader_DownloadTo_RetryDiscardsPartialBody(t *testing.T) {
	content := []byte("complete body")
	var attempt atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempt.Add(1) == 1 {
			// Promise more than is sent, then drop the connection
			w.Header().Set("Content-Length", "100")
			w.Write([]byte("garbage"))
			return
		}
		w.Write(content)
	}))
	defer server.Close()

	f := openTarget(t)
	result, err := fastDownloader().DownloadTo(context.Background(), server.URL, f, core.Expect{SHA1: sha1Hex(content)}, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Attempts)
	assert.Equal(t, content, readTarget(t, f))
}

func TestDownloader_DownloadTo_CustomHTTPClient(t *testing.T) {
	content := []byte("custom client test")

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Verify custom header is set
		assert.Equal(t, "TestAgent", r.Header.Get("User-Agent"))
		w.Write(content)
	}))
	defer server.Close()

	customClient := &http.Client{
		Transport: &testRoundTripper{
			header: "TestAgent",
			rt:     http.DefaultTransport,
		},
	}

	downloader := core.NewDownloader(customClient)

	_, err := downloader.DownloadTo(context.Background(), server.URL, openTarget(t), core.Expect{}, nil)
	require.NoError(t, err)
}

type testRoundTripper struct {
	header string
	rt     http.RoundTripper
}

func (t *testRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	req.Header.Set("User-Agent", t.header)
	return t.rt.RoundTrip(req)
}

func TestDownloader_DownloadTo_TruncatesExisting(t *testing.T) {
	content := []byte("short")

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(content)
	}))
	defer server.Close()

	f := openTarget(t)
	_, err := f.WriteString("much longer stale content")
	require.NoError(t, err)

	_, err = fastDownloader().DownloadTo(context.Background(), server.URL, f, core.Expect{}, nil)
	require.NoError(t, err)
	assert.Equal(t, content, readTarget(t, f))
}

func TestDownloader_DownloadTo_FileURL(t *testing.T) {
	content := []byte("embedded library")
	src := filepath.Join(t.TempDir(), "embedded.jar")
	require.NoError(t, os.WriteFile(src, content, 0644))

	f := openTarget(t)
	result, err := fastDownloader().DownloadTo(context.Background(), "file://"+filepath.ToSlash(src), f, core.Expect{SHA1: sha1Hex(content)}, nil)
	require.NoError(t, err)

	assert.Equal(t, int64(len(content)), result.Size)
	assert.Equal(t, content, readTarget(t, f))
}
