package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DoyleJ11/esports-livescore/internal/livescore"
	"github.com/DoyleJ11/esports-livescore/internal/types"
)

type fakeScores struct {
	mu       sync.Mutex
	fns      map[string]func(livescore.Event)
	unsubbed chan string
	snapshot *livescore.Event
}

func newFakeScores() *fakeScores {
	return &fakeScores{fns: map[string]func(livescore.Event){}, unsubbed: make(chan string, 4)}
}

func (f *fakeScores) Subscribe(matchID string, fn func(livescore.Event)) func() {
	f.mu.Lock()
	f.fns[matchID] = fn
	f.mu.Unlock()
	return func() { f.unsubbed <- matchID }
}

func (f *fakeScores) FetchOnce(ctx context.Context, matchID string) (livescore.Event, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.snapshot == nil {
		return livescore.Event{}, false
	}
	return *f.snapshot, true
}

func (f *fakeScores) publish(matchID string, ev livescore.Event) bool {
	f.mu.Lock()
	fn := f.fns[matchID]
	f.mu.Unlock()
	if fn == nil {
		return false
	}
	fn(ev)
	return true
}

func (f *fakeScores) subscribed(matchID string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fns[matchID] != nil
}

func dial(t *testing.T, srv *httptest.Server, query string) *websocket.Conn {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	conn, _, err := websocket.Dial(ctx, srv.URL+"/ws"+query, nil)
	require.NoError(t, err)
	return conn
}

// helper: read one server message with a timeout so tests never hang
func readMessage(t *testing.T, conn *websocket.Conn) types.ServerMessage {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, data, err := conn.Read(ctx)
	require.NoError(t, err)
	var m types.ServerMessage
	require.NoError(t, json.Unmarshal(data, &m))
	return m
}

func newServer(scores Scores) *httptest.Server {
	mux := http.NewServeMux()
	mux.Handle("/ws", Handler(scores, nil))
	return httptest.NewServer(mux)
}

func TestHandler_MissingMatch(t *testing.T) {
	srv := newServer(newFakeScores())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/ws")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHandler_RelaysEventsAndUnsubscribesOnClose(t *testing.T) {
	scores := newFakeScores()
	srv := newServer(scores)
	defer srv.Close()

	conn := dial(t, srv, "?match=m1")
	require.Eventually(t, func() bool { return scores.subscribed("m1") }, 2*time.Second, time.Millisecond)

	scores.publish("m1", livescore.Event{MatchID: "m1", Team1RoundsWon: 7, Status: livescore.StatusLive})

	m := readMessage(t, conn)
	assert.Equal(t, types.MsgLiveScore, m.Type)
	assert.Equal(t, "m1", m.MatchID)
	require.NotNil(t, m.Score)
	assert.Equal(t, 7, m.Score.Team1RoundsWon)

	require.NoError(t, conn.Close(websocket.StatusNormalClosure, "bye"))
	select {
	case id := <-scores.unsubbed:
		assert.Equal(t, "m1", id)
	case <-time.After(2 * time.Second):
		t.Fatalf("expected unsubscribe after client left")
	}
}

func TestHandler_InitialPaintFromFetchOnce(t *testing.T) {
	scores := newFakeScores()
	scores.snapshot = &livescore.Event{MatchID: "m1", CurrentMap: "Anubis", Status: livescore.StatusLive}
	srv := newServer(scores)
	defer srv.Close()

	conn := dial(t, srv, "?match=m1")
	defer conn.Close(websocket.StatusNormalClosure, "")

	m := readMessage(t, conn)
	assert.Equal(t, types.MsgLiveScore, m.Type)
	assert.Equal(t, "Anubis", m.Score.CurrentMap)
}

func TestHandler_ClientCommands(t *testing.T) {
	scores := newFakeScores()
	srv := newServer(scores)
	defer srv.Close()

	conn := dial(t, srv, "?match=m1")
	defer conn.Close(websocket.StatusNormalClosure, "")
	ctx := context.Background()

	require.NoError(t, conn.Write(ctx, websocket.MessageText, []byte("{")))
	m := readMessage(t, conn)
	assert.Equal(t, types.MsgError, m.Type)
	assert.Equal(t, "bad json", m.Error)

	require.NoError(t, conn.Write(ctx, websocket.MessageText, []byte(`{"type":"Dance"}`)))
	m = readMessage(t, conn)
	assert.Equal(t, "unknown type", m.Error)

	require.NoError(t, conn.Write(ctx, websocket.MessageText, []byte(`{"type":"Refresh"}`)))
	m = readMessage(t, conn)
	assert.Equal(t, types.MsgNoData, m.Type)
	assert.Equal(t, "m1", m.MatchID)
}
