// Package hltv pulls live match snapshots from the public HLTV match API and
// normalizes them into livescore events.
//
// Requests go through a token bucket limiter so that many polled matches do
// not hammer the upstream.
package hltv

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/DoyleJ11/esports-livescore/internal/livescore"
)

const (
	DefaultBaseURL           = "https://hltv-api.vercel.app"
	DefaultRequestsPerMinute = 120
	DefaultTimeout           = 10 * time.Second

	// IDPrefix marks match ids that originate from HLTV listings.
	IDPrefix = "hltv-"
)

// ErrNotFound is returned for unknown matches. It wraps livescore.ErrNoData.
var ErrNotFound = fmt.Errorf("hltv match not found: %w", livescore.ErrNoData)

type Config struct {
	BaseURL           string
	RequestsPerMinute int
	Timeout           time.Duration
	HTTPClient        *http.Client
	Logger            *zap.Logger
	MaxRound          int
}

// Client implements livescore.Fetcher.
type Client struct {
	httpClient *http.Client
	baseURL    string
	limiter    *rate.Limiter
	logger     *zap.Logger
	maxRound   int
	now        func() time.Time
}

func NewClient(cfg Config) *Client {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}
	rpm := cfg.RequestsPerMinute
	if rpm <= 0 {
		rpm = DefaultRequestsPerMinute
	}
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	return &Client{
		httpClient: httpClient,
		baseURL:    baseURL,
		limiter:    rate.NewLimiter(rate.Limit(float64(rpm)/60.0), 1),
		logger:     logger.Named("hltv"),
		maxRound:   cfg.MaxRound,
		now:        time.Now,
	}
}

// NumericID strips the listing prefix from a match id.
func NumericID(matchID string) string {
	return strings.TrimPrefix(strings.TrimSpace(matchID), IDPrefix)
}

// Fetch returns the current snapshot for matchID.
func (c *Client) Fetch(ctx context.Context, matchID string) (livescore.Event, error) {
	id := NumericID(matchID)
	if id == "" {
		return livescore.Event{}, ErrNotFound
	}

	m, err := c.getMatch(ctx, id)
	if err != nil {
		return livescore.Event{}, err
	}
	c.logger.Debug("received match data", zap.String("match_id", matchID), zap.Int("maps", len(m.Maps)))
	return Normalize(matchID, m, c.maxRound, c.now()), nil
}

func (c *Client) getMatch(ctx context.Context, id string) (Match, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return Match{}, fmt.Errorf("rate limit wait: %w", err)
	}

	u := c.baseURL + "/api/match/" + url.PathEscape(id) + ".json"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return Match{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Match{}, fmt.Errorf("http request match %s: %w", id, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return Match{}, fmt.Errorf("read response body: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return Match{}, ErrNotFound
	case resp.StatusCode != http.StatusOK:
		return Match{}, fmt.Errorf("hltv match %s returned %d: %s", id, resp.StatusCode, truncate(body, 200))
	}

	var m Match
	if err := json.Unmarshal(body, &m); err != nil {
		return Match{}, fmt.Errorf("decode match %s: %w", id, err)
	}
	return m, nil
}

// IsNotFound reports whether err means the upstream does not know the match.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

func truncate(b []byte, maxLen int) string {
	if len(b) <= maxLen {
		return string(b)
	}
	return string(b[:maxLen]) + "..."
}
