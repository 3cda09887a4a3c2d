// Package push opens per-match WebSocket channels to the upstream score
// service.
package push

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/coder/websocket"
	"go.uber.org/zap"

	"github.com/DoyleJ11/esports-livescore/internal/livescore"
)

const DefaultReadLimit = 64 << 10

type Config struct {
	// BaseURL of the score service, e.g. wss://scores.example.com.
	// Channels are opened at {BaseURL}/match/{matchID}.
	BaseURL    string
	ReadLimit  int64
	HTTPClient *http.Client
	Header     http.Header
	Logger     *zap.Logger
}

// Dialer implements livescore.Dialer.
type Dialer struct {
	base      *url.URL
	baseErr   error
	readLimit int64
	opts      *websocket.DialOptions
	logger    *zap.Logger
}

func NewDialer(cfg Config) *Dialer {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	readLimit := cfg.ReadLimit
	if readLimit <= 0 {
		readLimit = DefaultReadLimit
	}

	d := &Dialer{
		readLimit: readLimit,
		opts:      &websocket.DialOptions{HTTPClient: cfg.HTTPClient, HTTPHeader: cfg.Header},
		logger:    logger.Named("push"),
	}
	d.base, d.baseErr = parseBase(cfg.BaseURL)
	return d
}

func parseBase(raw string) (*url.URL, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, fmt.Errorf("no push url configured: %w", livescore.ErrPushUnsupported)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parse push url: %w: %w", livescore.ErrPushUnsupported, err)
	}
	switch u.Scheme {
	case "ws", "wss", "http", "https":
	default:
		return nil, fmt.Errorf("push url scheme %q: %w", u.Scheme, livescore.ErrPushUnsupported)
	}
	return u, nil
}

// Supported reports whether the dialer can build channels at all.
func (d *Dialer) Supported() bool { return d.baseErr == nil }

func (d *Dialer) Dial(ctx context.Context, matchID string) (livescore.Conn, error) {
	if d.baseErr != nil {
		return nil, d.baseErr
	}

	u := d.base.JoinPath("match", matchID)
	c, _, err := websocket.Dial(ctx, u.String(), d.opts)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", u.Redacted(), err)
	}
	c.SetReadLimit(d.readLimit)
	d.logger.Debug("push channel open", zap.String("match_id", matchID))
	return &Conn{c: c}, nil
}

// Conn adapts a websocket connection to livescore.Conn.
type Conn struct {
	c *websocket.Conn
}

func (c *Conn) Read(ctx context.Context) ([]byte, error) {
	_, data, err := c.c.Read(ctx)
	return data, err
}

func (c *Conn) Close() error {
	return c.c.Close(websocket.StatusNormalClosure, "bye")
}
