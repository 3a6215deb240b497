package rpc

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/bwmarrin/discordgo"
	"github.com/genricoloni/ytmpresence/internal/domain"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// closeAuthenticationFailed is the gateway close code for a bad token
const closeAuthenticationFailed = 4004

// botSession is the slice of *discordgo.Session the bot transport uses
type botSession interface {
	Open() error
	Close() error
	UpdateStatusComplex(usd discordgo.UpdateStatusData) error
	AddHandler(handler interface{}) func()
}

// BotTransport shows the activity as a bot account's "Listening to" status
type BotTransport struct {
	logger     *zap.Logger
	token      string
	newSession func(token string) (botSession, error)

	mu      sync.Mutex
	session botSession
}

// NewBotTransport creates a gateway-backed transport for token
func NewBotTransport(logger *zap.Logger, token string) *BotTransport {
	return &BotTransport{
		logger: logger.With(zap.String("transport", "bot")),
		token:  token,
		newSession: func(token string) (botSession, error) {
			s, err := discordgo.New("Bot " + token)
			if err != nil {
				return nil, err
			}
			// Reconnects are the relay's job
			s.ShouldReconnectOnError = false
			s.Identify.Intents = discordgo.IntentsGuilds
			return s, nil
		},
	}
}

// Connect opens the gateway session
func (b *BotTransport) Connect(ctx context.Context) (<-chan error, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.session != nil {
		_ = b.session.Close()
		b.session = nil
	}

	if strings.TrimSpace(b.token) == "" {
		return nil, fmt.Errorf("%w: bot token is empty", ErrAuthentication)
	}

	s, err := b.newSession(b.token)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot session: %w", err)
	}

	lost := make(chan error, 1)
	var once sync.Once
	s.AddHandler(func(_ *discordgo.Session, _ *discordgo.Disconnect) {
		once.Do(func() {
			lost <- ErrConnectionClosed
			close(lost)
		})
	})

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := s.Open(); err != nil {
		if isBotAuthError(err) {
			return nil, fmt.Errorf("%w: %v", ErrAuthentication, err)
		}
		return nil, fmt.Errorf("gateway open failed: %w", err)
	}

	b.session = s
	b.logger.Info("Bot gateway session opened")
	return lost, nil
}

// SetActivity publishes the activity as a listening status
func (b *BotTransport) SetActivity(ctx context.Context, activity domain.Activity) error {
	return b.update(discordgo.UpdateStatusData{
		Status: string(discordgo.StatusOnline),
		Activities: []*discordgo.Activity{{
			Name:    activity.Details,
			Type:    discordgo.ActivityTypeListening,
			Details: activity.Details,
			State:   activity.State,
			Timestamps: discordgo.TimeStamps{
				StartTimestamp: activity.StartTimestamp,
			},
		}},
	})
}

// ClearActivity removes every activity from the status
func (b *BotTransport) ClearActivity(ctx context.Context) error {
	return b.update(discordgo.UpdateStatusData{
		Status:     string(discordgo.StatusOnline),
		Activities: []*discordgo.Activity{},
	})
}

func (b *BotTransport) update(usd discordgo.UpdateStatusData) error {
	b.mu.Lock()
	s := b.session
	b.mu.Unlock()

	if s == nil {
		return ErrNotConnected
	}
	if err := s.UpdateStatusComplex(usd); err != nil {
		if errors.Is(err, discordgo.ErrWSNotFound) {
			return fmt.Errorf("%w: %v", ErrNotConnected, err)
		}
		return err
	}
	return nil
}

// Close ends the gateway session
func (b *BotTransport) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.session == nil {
		return nil
	}
	err := b.session.Close()
	b.session = nil
	return err
}

func isBotAuthError(err error) bool {
	var ce *websocket.CloseError
	if errors.As(err, &ce) && ce.Code == closeAuthenticationFailed {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "4004") || strings.Contains(msg, "authentication failed")
}
