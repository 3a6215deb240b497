package page

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	retry "github.com/avast/retry-go/v5"
	"github.com/coder/websocket"
	"go.uber.org/zap"
)

const (
	_maxSnapshotSize = 32 << 20
	_discoverTimeout = 2 * time.Second
	_snapshotTimeout = 3 * time.Second
)

// snapshotScript stamps computed display and media state on the elements the
// extractor looks at, then serializes the page.
const snapshotScript = `(() => {
  const mark = (el, name, value) => { try { el.setAttribute(name, String(value)); } catch (e) {} };
  document.querySelectorAll('video, audio').forEach((m) => {
    mark(m, 'data-ytmp-paused', m.paused);
    mark(m, 'data-ytmp-ended', m.ended);
  });
  document.querySelectorAll('ytmusic-player-bar, ytmusic-player-bar svg, ytmusic-player-bar path, .play-pause-button, .play-pause-button *').forEach((el) => {
    mark(el, 'data-ytmp-display', getComputedStyle(el).display);
  });
  return document.documentElement.outerHTML;
})()`

// Source produces DOM snapshots of the player page
type Source interface {
	Snapshot(ctx context.Context) (Document, error)
	Close() error
}

// DevToolsTarget is one entry of the /json target list
type DevToolsTarget struct {
	ID                   string `json:"id"`
	Type                 string `json:"type"`
	Title                string `json:"title"`
	URL                  string `json:"url"`
	WebSocketDebuggerURL string `json:"webSocketDebuggerUrl"`
}

type cdpRequest struct {
	ID     int64          `json:"id"`
	Method string         `json:"method"`
	Params map[string]any `json:"params,omitempty"`
}

type cdpResponse struct {
	ID     int64 `json:"id"`
	Result *struct {
		Result struct {
			Type  string          `json:"type"`
			Value json.RawMessage `json:"value"`
		} `json:"result"`
		ExceptionDetails *struct {
			Text string `json:"text"`
		} `json:"exceptionDetails"`
	} `json:"result"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// DevToolsSource snapshots a browser tab through the Chrome DevTools Protocol
type DevToolsSource struct {
	logger   *zap.Logger
	endpoint string
	match    string
	client   *http.Client

	attempts uint
	delay    time.Duration
	timeout  time.Duration

	mu     sync.Mutex
	conn   *websocket.Conn
	target string
	nextID int64
}

// NewDevToolsSource creates a source for the first page whose URL contains match.
// endpoint is the browser's remote debugging address, e.g. http://127.0.0.1:9222.
func NewDevToolsSource(logger *zap.Logger, endpoint, match string) *DevToolsSource {
	return &DevToolsSource{
		logger:   logger,
		endpoint: strings.TrimRight(endpoint, "/"),
		match:    match,
		client:   &http.Client{Timeout: _discoverTimeout},
		attempts: 3,
		delay:    200 * time.Millisecond,
		timeout:  _snapshotTimeout,
	}
}

// Snapshot evaluates the snapshot script in the tab and parses the result.
// A tab that does not answer within the snapshot timeout loses its connection.
func (s *DevToolsSource) Snapshot(ctx context.Context) (Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if s.conn == nil {
		if err := s.connect(ctx); err != nil {
			return nil, err
		}
	}

	html, err := s.evaluate(ctx, snapshotScript)
	if err != nil {
		s.dropConn()
		return nil, err
	}
	return ParseString(html)
}

// Close drops the DevTools connection
func (s *DevToolsSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dropConn()
	return nil
}

func (s *DevToolsSource) connect(ctx context.Context) error {
	target, err := s.discover(ctx)
	if err != nil {
		return err
	}

	conn, _, err := websocket.Dial(ctx, target.WebSocketDebuggerURL, nil)
	if err != nil {
		return fmt.Errorf("failed to dial devtools target: %w", err)
	}
	conn.SetReadLimit(_maxSnapshotSize)

	s.conn = conn
	if s.target != target.ID {
		s.logger.Info("Attached to player tab",
			zap.String("target", target.ID),
			zap.String("url", target.URL))
	}
	s.target = target.ID
	return nil
}

func (s *DevToolsSource) dropConn() {
	if s.conn == nil {
		return
	}
	_ = s.conn.Close(websocket.StatusNormalClosure, "")
	s.conn = nil
}

// discover lists the browser targets and picks the player tab
func (s *DevToolsSource) discover(ctx context.Context) (DevToolsTarget, error) {
	var found DevToolsTarget
	err := retry.New(
		retry.Attempts(s.attempts),
		retry.Delay(s.delay),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
		retry.Context(ctx),
	).Do(func() error {
		targets, err := s.listTargets(ctx)
		if err != nil {
			return err
		}
		for _, t := range targets {
			if t.Type == "page" && strings.Contains(t.URL, s.match) && t.WebSocketDebuggerURL != "" {
				found = t
				return nil
			}
		}
		return fmt.Errorf("no tab matching %q", s.match)
	})
	if err != nil {
		return DevToolsTarget{}, fmt.Errorf("devtools discovery failed: %w", err)
	}
	return found, nil
}

func (s *DevToolsSource) listTargets(ctx context.Context) ([]DevToolsTarget, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.endpoint+"/json", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("network error: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	var targets []DevToolsTarget
	if err := json.NewDecoder(resp.Body).Decode(&targets); err != nil {
		return nil, fmt.Errorf("failed to decode target list: %w", err)
	}
	return targets, nil
}

// evaluate runs expression with returnByValue and returns the string result
func (s *DevToolsSource) evaluate(ctx context.Context, expression string) (string, error) {
	s.nextID++
	id := s.nextID

	payload, err := json.Marshal(cdpRequest{
		ID:     id,
		Method: "Runtime.evaluate",
		Params: map[string]any{
			"expression":    expression,
			"returnByValue": true,
		},
	})
	if err != nil {
		return "", err
	}

	if err := s.conn.Write(ctx, websocket.MessageText, payload); err != nil {
		return "", fmt.Errorf("devtools write failed: %w", err)
	}

	for {
		_, data, err := s.conn.Read(ctx)
		if err != nil {
			return "", fmt.Errorf("devtools read failed: %w", err)
		}

		var resp cdpResponse
		if err := json.Unmarshal(data, &resp); err != nil {
			continue
		}
		// Events carry no id; stale replies carry an older one
		if resp.ID != id {
			continue
		}
		if resp.Error != nil {
			return "", fmt.Errorf("devtools error %d: %s", resp.Error.Code, resp.Error.Message)
		}
		if resp.Result == nil {
			return "", errors.New("devtools reply without result")
		}
		if resp.Result.ExceptionDetails != nil {
			return "", fmt.Errorf("snapshot script threw: %s", resp.Result.ExceptionDetails.Text)
		}

		var html string
		if err := json.Unmarshal(resp.Result.Result.Value, &html); err != nil {
			return "", fmt.Errorf("unexpected snapshot value of type %s", resp.Result.Result.Type)
		}
		return html, nil
	}
}
