package livescore

import (
	"context"
	"errors"
	"sync"
	"time"
)

var (
	// ErrPushUnsupported is returned by a Dialer that cannot build push
	// channels at all. The match is switched to polling right away.
	ErrPushUnsupported = errors.New("push transport unsupported")
	// ErrNoData is the absence value of a Fetcher.
	ErrNoData = errors.New("no live score available")
)

// Conn is one open push channel for a match.
type Conn interface {
	// Read blocks until the next message arrives, the channel fails or ctx is done.
	Read(ctx context.Context) ([]byte, error)
	Close() error
}

// Dialer opens push channels keyed by match id.
type Dialer interface {
	Dial(ctx context.Context, matchID string) (Conn, error)
}

// Fetcher pulls the current score for a match. Absence is reported as an
// error, usually wrapping ErrNoData.
type Fetcher interface {
	Fetch(ctx context.Context, matchID string) (Event, error)
}

type TransportKind string

const (
	TransportNone TransportKind = "none"
	TransportPush TransportKind = "push"
	TransportPoll TransportKind = "poll"
)

type transport interface {
	match() string
	kind() TransportKind
	stop() error
}

type pushTransport struct {
	matchID string
	cancel  context.CancelFunc

	mu     sync.Mutex
	conn   Conn
	closed bool
}

func (t *pushTransport) match() string       { return t.matchID }
func (t *pushTransport) kind() TransportKind { return TransportPush }

// attach hands the dialed conn to the transport. It reports false when the
// transport was stopped while dialing; the caller then owns the conn.
func (t *pushTransport) attach(conn Conn) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return false
	}
	t.conn = conn
	return true
}

func (t *pushTransport) stop() error {
	t.cancel()
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil
	}
	t.closed = true
	if t.conn == nil {
		return nil
	}
	return t.conn.Close()
}

func (t *pushTransport) run(ctx context.Context, d *Distributor) {
	conn, err := d.opts.Dialer.Dial(ctx, t.matchID)
	if err != nil {
		send(ctx, d, pushClosed{t: t, err: err})
		return
	}
	if !t.attach(conn) {
		_ = conn.Close()
		return
	}
	if !send(ctx, d, pushOpened{t: t}) {
		return
	}

	for {
		data, err := conn.Read(ctx)
		if err != nil {
			send(ctx, d, pushClosed{t: t, err: err})
			return
		}
		if !send(ctx, d, pushMessage{t: t, data: data}) {
			return
		}
	}
}

type pollTransport struct {
	matchID string
	cancel  context.CancelFunc
}

func (t *pollTransport) match() string       { return t.matchID }
func (t *pollTransport) kind() TransportKind { return TransportPoll }

func (t *pollTransport) stop() error {
	t.cancel()
	return nil
}

func (t *pollTransport) run(ctx context.Context, d *Distributor) {
	ticker := time.NewTicker(d.opts.PollInterval)
	defer ticker.Stop()

	for {
		ev, err := d.fetch(ctx, t.matchID)
		if !send(ctx, d, pollResult{t: t, ev: ev, err: err}) {
			return
		}
		// Nothing left to poll for once the series is over.
		if err == nil && ev.Status == StatusFinished {
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// send delivers a transport message to the distributor loop unless the
// transport has been stopped in the meantime.
func send(ctx context.Context, d *Distributor, m msg) bool {
	select {
	case d.inbox <- m:
		return true
	case <-ctx.Done():
		return false
	}
}
