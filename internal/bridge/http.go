package bridge

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/genricoloni/ytmpresence/internal/domain"
	"go.uber.org/zap"
)

// HTTPChannel posts envelopes to the relay's /messages endpoint
type HTTPChannel struct {
	logger   *zap.Logger
	endpoint string
	client   *http.Client
}

// NewHTTPChannel creates a channel targeting relayURL
func NewHTTPChannel(logger *zap.Logger, relayURL string) *HTTPChannel {
	return &HTTPChannel{
		logger:   logger,
		endpoint: strings.TrimRight(relayURL, "/") + "/messages",
		client: &http.Client{
			Timeout: 5 * time.Second,
		},
	}
}

// Send posts msg. Any non-2xx answer is an error.
func (c *HTTPChannel) Send(ctx context.Context, msg domain.Message) error {
	body, err := Encode(msg)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "ytmpresence-scraper/1.0")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("relay unreachable: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	c.logger.Debug("Message delivered", zap.String("type", string(msg.Type)))
	return nil
}
