package livescore

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

var errConnLost = errors.New("connection lost")

type fakeConn struct {
	msgs   chan []byte
	fail   chan struct{}
	closed chan struct{}

	failOnce  sync.Once
	closeOnce sync.Once
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		msgs:   make(chan []byte, 16),
		fail:   make(chan struct{}),
		closed: make(chan struct{}),
	}
}

func (c *fakeConn) Read(ctx context.Context) ([]byte, error) {
	select {
	case b := <-c.msgs:
		return b, nil
	case <-c.fail:
		return nil, errConnLost
	case <-c.closed:
		return nil, errors.New("use of closed conn")
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *fakeConn) Close() error {
	c.closeOnce.Do(func() { close(c.closed) })
	return nil
}

// drop simulates the server closing the connection.
func (c *fakeConn) drop() { c.failOnce.Do(func() { close(c.fail) }) }

func (c *fakeConn) isClosed() bool {
	select {
	case <-c.closed:
		return true
	default:
		return false
	}
}

type fakeDialer struct {
	mu    sync.Mutex
	err   error
	conns []*fakeConn
	dials atomic.Int32
}

func (f *fakeDialer) Dial(ctx context.Context, matchID string) (Conn, error) {
	f.dials.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	c := newFakeConn()
	f.conns = append(f.conns, c)
	return c, nil
}

func (f *fakeDialer) conn(i int) *fakeConn {
	f.mu.Lock()
	defer f.mu.Unlock()
	if i >= len(f.conns) {
		return nil
	}
	return f.conns[i]
}

func (f *fakeDialer) connCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.conns)
}

func (f *fakeDialer) setErr(err error) {
	f.mu.Lock()
	f.err = err
	f.mu.Unlock()
}

// fakeFetcher answers with respond(n) where n counts calls per match, from 1.
type fakeFetcher struct {
	mu      sync.Mutex
	calls   map[string]int
	respond func(matchID string, n int) (Event, error)
}

func newFakeFetcher(respond func(matchID string, n int) (Event, error)) *fakeFetcher {
	return &fakeFetcher{calls: map[string]int{}, respond: respond}
}

func (f *fakeFetcher) Fetch(ctx context.Context, matchID string) (Event, error) {
	f.mu.Lock()
	f.calls[matchID]++
	n := f.calls[matchID]
	f.mu.Unlock()
	return f.respond(matchID, n)
}

func (f *fakeFetcher) count(matchID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[matchID]
}

func liveAt(round int) func(string, int) (Event, error) {
	return func(id string, n int) (Event, error) {
		return Event{MatchID: id, CurrentMap: "Mirage", MapNumber: 1, Team1RoundsWon: round, Status: StatusLive}, nil
	}
}

// recorder collects events delivered to one observer.
type recorder struct {
	ch chan Event
}

func newRecorder() *recorder { return &recorder{ch: make(chan Event, 64)} }

func (r *recorder) observe(ev Event) { r.ch <- ev }

// helper: receive one event with a timeout so tests never hang
func recvEvent(t *testing.T, r *recorder, within time.Duration) Event {
	t.Helper()
	select {
	case ev := <-r.ch:
		return ev
	case <-time.After(within):
		t.Fatalf("timed out waiting for event")
		return Event{}
	}
}

func recvNoEvent(t *testing.T, r *recorder, within time.Duration) {
	t.Helper()
	select {
	case ev := <-r.ch:
		t.Fatalf("expected no event within %v, got %+v", within, ev)
	case <-time.After(within):
	}
}

func frame(round int) []byte {
	return []byte(`{"matchId":"m1","currentMap":"Inferno","mapNumber":2,"team1RoundsWon":` +
		strconv.Itoa(round) + `,"team2RoundsWon":3,"status":"live"}`)
}
