package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	retry "github.com/avast/retry-go/v5"
	"go.uber.org/zap"
)

const (
	_maxArtworkSize = 10 << 20
	_userAgent      = "ytmpresence/1.0"
)

// ErrTooLarge is returned for artwork bodies above 10 MB
var ErrTooLarge = errors.New("artwork exceeds 10 MB")

// HTTPFetcher downloads album art from the image CDN. Network failures, 429
// and 5xx responses are retried; every other rejection is final.
type HTTPFetcher struct {
	logger   *zap.Logger
	client   *http.Client
	attempts uint
	delay    time.Duration
}

// NewHTTPFetcher creates a fetcher with a 10s per-request timeout
func NewHTTPFetcher(logger *zap.Logger) *HTTPFetcher {
	return &HTTPFetcher{
		logger:   logger,
		client:   &http.Client{Timeout: 10 * time.Second},
		attempts: 3,
		delay:    250 * time.Millisecond,
	}
}

// Fetch returns the raw image bytes behind an http(s) artwork URL
func (f *HTTPFetcher) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("unsupported artwork url: %q", rawURL)
	}

	art, err := retry.NewWithData[[]byte](
		retry.Attempts(f.attempts),
		retry.Delay(f.delay),
		retry.LastErrorOnly(true),
		retry.Context(ctx),
		retry.OnRetry(func(n uint, err error) {
			f.logger.Debug("Retrying artwork download", zap.Uint("attempt", n+1), zap.Error(err))
		}),
	).Do(func() ([]byte, error) {
		return f.download(ctx, u.String())
	})
	if err != nil {
		return nil, err
	}

	f.logger.Debug("Artwork fetched", zap.Int("bytes", len(art)), zap.String("host", u.Host))
	return art, nil
}

// download makes a single attempt. Errors another attempt cannot fix are
// marked unrecoverable.
func (f *HTTPFetcher) download(ctx context.Context, target string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, retry.Unrecoverable(fmt.Errorf("failed to create request: %w", err))
	}
	req.Header.Set("User-Agent", _userAgent)
	req.Header.Set("Accept", "image/webp,image/*")

	resp, err := f.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, retry.Unrecoverable(err)
		}
		return nil, fmt.Errorf("network error: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError:
		return nil, fmt.Errorf("artwork server returned %d", resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return nil, retry.Unrecoverable(fmt.Errorf("unexpected status code: %d", resp.StatusCode))
	}

	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "image/") {
		return nil, retry.Unrecoverable(fmt.Errorf("url is not an image: %s", ct))
	}

	// One byte past the cap tells a full-size body from an oversized one
	art, err := io.ReadAll(io.LimitReader(resp.Body, _maxArtworkSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read body: %w", err)
	}
	if len(art) > _maxArtworkSize {
		return nil, retry.Unrecoverable(ErrTooLarge)
	}
	return art, nil
}
