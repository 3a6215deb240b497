// Package artwork upgrades YouTube Music thumbnail URLs to a size fit for the
// presence card and checks the result is a real, large enough image.
package artwork

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/genricoloni/ytmpresence/internal/domain"
	"go.uber.org/zap"
)

const (
	defaultSize = 544
	maxCached   = 256
)

// ErrUnusable is returned when neither the resized nor the original art validates
var ErrUnusable = errors.New("artwork unusable")

// googleusercontent thumbnails carry their size as "=w60-h60-..." or "=s60"
var (
	sizeToken   = regexp.MustCompile(`=w\d+-h\d+`)
	squareToken = regexp.MustCompile(`=s\d+(-|$)`)
)

type result struct {
	url string
	err error
}

// Resolver turns raw thumbnail URLs into validated display URLs
type Resolver struct {
	logger    *zap.Logger
	fetcher   domain.Fetcher
	processor domain.ImageProcessor
	size      int

	mu    sync.Mutex
	cache map[string]result
}

// NewResolver creates a resolver requesting size x size art
func NewResolver(logger *zap.Logger, fetcher domain.Fetcher, processor domain.ImageProcessor, size int) *Resolver {
	if size <= 0 {
		size = defaultSize
	}
	return &Resolver{
		logger:    logger,
		fetcher:   fetcher,
		processor: processor,
		size:      size,
		cache:     make(map[string]result),
	}
}

// Resolve returns the upsized URL when it validates, else the original URL
// when that validates, else ErrUnusable. Outcomes are cached per raw URL.
func (r *Resolver) Resolve(ctx context.Context, rawURL string) (string, error) {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return "", fmt.Errorf("%w: empty url", ErrUnusable)
	}

	r.mu.Lock()
	cached, ok := r.cache[rawURL]
	r.mu.Unlock()
	if ok {
		return cached.url, cached.err
	}

	res := r.resolve(ctx, rawURL)

	// A cancelled lookup says nothing about the art itself
	if ctx.Err() != nil {
		return "", ctx.Err()
	}

	r.mu.Lock()
	if len(r.cache) >= maxCached {
		r.cache = make(map[string]result)
	}
	r.cache[rawURL] = res
	r.mu.Unlock()

	return res.url, res.err
}

func (r *Resolver) resolve(ctx context.Context, rawURL string) result {
	candidate := Resize(rawURL, r.size)
	err := r.validate(ctx, candidate)
	if err == nil {
		return result{url: candidate}
	}
	if candidate == rawURL {
		return result{err: fmt.Errorf("%w: %v", ErrUnusable, err)}
	}
	r.logger.Debug("Resized artwork rejected, trying original",
		zap.String("url", candidate),
		zap.Error(err))

	if err := r.validate(ctx, rawURL); err != nil {
		return result{err: fmt.Errorf("%w: %v", ErrUnusable, err)}
	}
	return result{url: rawURL}
}

func (r *Resolver) validate(ctx context.Context, url string) error {
	data, err := r.fetcher.Fetch(ctx, url)
	if err != nil {
		return err
	}
	_, err = r.processor.Process(ctx, data)
	return err
}

// Resize rewrites the thumbnail size token. URLs without one are returned as is.
func Resize(rawURL string, size int) string {
	if sizeToken.MatchString(rawURL) {
		return sizeToken.ReplaceAllString(rawURL, fmt.Sprintf("=w%d-h%d", size, size))
	}
	if squareToken.MatchString(rawURL) {
		return squareToken.ReplaceAllString(rawURL, fmt.Sprintf("=s%d$1", size))
	}
	return rawURL
}
