package core

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/DonovanMods/lion-launcher/internal/domain"
)

const (
	defaultMaxAttempts  = 3
	defaultRetryBackoff = 500 * time.Millisecond
)

// DownloadProgress represents the current state of a download
type DownloadProgress struct {
	TotalBytes int64   // Total size in bytes (0 if unknown)
	Downloaded int64   // Bytes downloaded so far in the current attempt
	Percentage float64 // Completion percentage (0-100)
}

// ProgressFunc is called periodically during download with progress updates
type ProgressFunc func(DownloadProgress)

// DownloadResult contains the outcome of a download
type DownloadResult struct {
	Size     int64  // Bytes downloaded
	Checksum string // SHA-1 of downloaded file
	Attempts int
}

// Expect describes what a download must look like to be accepted. Zero fields are not checked.
type Expect struct {
	SHA1 string
	Size int64
}

// Downloader handles HTTP file downloads with retries, verification and progress tracking
type Downloader struct {
	httpClient  *http.Client
	maxAttempts int
	backoff     time.Duration
}

// DownloaderOption configures a Downloader
type DownloaderOption func(*Downloader)

// WithMaxAttempts sets how many times a transient failure is attempted in total
func WithMaxAttempts(n int) DownloaderOption {
	return func(d *Downloader) {
		if n > 0 {
			d.maxAttempts = n
		}
	}
}

// WithRetryBackoff sets the delay before the first retry; it doubles for each further retry
func WithRetryBackoff(backoff time.Duration) DownloaderOption {
	return func(d *Downloader) {
		d.backoff = backoff
	}
}

// NewHTTPClient returns a client that also serves file:// URLs, which is how libraries embedded
// in loader installers are referenced
func NewHTTPClient() *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.RegisterProtocol("file", http.NewFileTransport(http.Dir("/")))
	return &http.Client{Transport: transport}
}

// NewDownloader creates a new Downloader with the given HTTP client
// If httpClient is nil, NewHTTPClient is used
func NewDownloader(httpClient *http.Client, opts ...DownloaderOption) *Downloader {
	if httpClient == nil {
		httpClient = NewHTTPClient()
	}
	d := &Downloader{
		httpClient:  httpClient,
		maxAttempts: defaultMaxAttempts,
		backoff:     defaultRetryBackoff,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// DownloadTo fetches url into an already open file, truncating it before every attempt.
// Transient failures (connection errors, timeouts, 429 and 5xx) are retried with exponential
// backoff; other HTTP errors fail immediately with a *domain.NetworkError. A body that does
// not match expect yields a *domain.IntegrityError and is never retried.
func (d *Downloader) DownloadTo(ctx context.Context, url string, file *os.File, expect Expect, progressFn ProgressFunc) (*DownloadResult, error) {
	var lastErr error
	var lastStatus int

	for attempt := 1; attempt <= d.maxAttempts; attempt++ {
		if attempt > 1 {
			wait := d.backoff << (attempt - 2)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(wait):
			}
		}

		if _, err := file.Seek(0, io.SeekStart); err != nil {
			return nil, fmt.Errorf("rewinding file: %w", err)
		}
		if err := file.Truncate(0); err != nil {
			return nil, fmt.Errorf("truncating file: %w", err)
		}

		written, sum, status, err := d.fetchOnce(ctx, url, file, progressFn)
		if err == nil {
			if expect.Size > 0 && written != expect.Size {
				return nil, &domain.IntegrityError{
					Path:     url,
					Expected: fmt.Sprintf("%d bytes", expect.Size),
					Actual:   fmt.Sprintf("%d bytes", written),
				}
			}
			if expect.SHA1 != "" && !strings.EqualFold(sum, expect.SHA1) {
				return nil, &domain.IntegrityError{Path: url, Expected: strings.ToLower(expect.SHA1), Actual: sum}
			}
			return &DownloadResult{Size: written, Checksum: sum, Attempts: attempt}, nil
		}

		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		lastErr, lastStatus = err, status
		if !retryable(status) {
			return nil, &domain.NetworkError{URL: url, StatusCode: status, Attempts: attempt, Err: err}
		}
	}

	return nil, &domain.NetworkError{URL: url, StatusCode: lastStatus, Attempts: d.maxAttempts, Err: lastErr}
}

// fetchOnce performs a single GET. status is the HTTP status when a non-200 response
// was received and zero for transport errors.
func (d *Downloader) fetchOnce(ctx context.Context, url string, w io.Writer, progressFn ProgressFunc) (int64, string, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, "", 0, fmt.Errorf("creating request: %w", err)
	}

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return 0, "", 0, fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return 0, "", resp.StatusCode, fmt.Errorf("HTTP error: %s", resp.Status)
	}

	hasher := sha1.New()
	reader := &progressReader{
		reader:     resp.Body,
		totalBytes: resp.ContentLength,
		progressFn: progressFn,
	}

	// TeeReader writes to both file and hasher
	written, err := io.Copy(w, io.TeeReader(reader, hasher))
	if err != nil {
		return written, "", 0, fmt.Errorf("downloading file: %w", err)
	}

	return written, hex.EncodeToString(hasher.Sum(nil)), 0, nil
}

// retryable reports whether a failed attempt with the given status may succeed later.
// Zero means the request never produced a response.
func retryable(status int) bool {
	return status == 0 || status == http.StatusTooManyRequests || status >= 500
}

// progressReader wraps an io.Reader to track download progress
type progressReader struct {
	reader     io.Reader
	totalBytes int64
	downloaded int64
	progressFn ProgressFunc
}

func (r *progressReader) Read(p []byte) (int, error) {
	n, err := r.reader.Read(p)
	if n > 0 {
		r.downloaded += int64(n)
		if r.progressFn != nil {
			progress := DownloadProgress{
				TotalBytes: r.totalBytes,
				Downloaded: r.downloaded,
			}
			if r.totalBytes > 0 {
				progress.Percentage = float64(r.downloaded) / float64(r.totalBytes) * 100
			}
			r.progressFn(progress)
		}
	}
	return n, err
}
