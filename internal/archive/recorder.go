package archive

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/DoyleJ11/esports-livescore/internal/livescore"
)

// Scores is the distributor surface the Recorder decorates.
type Scores interface {
	Subscribe(matchID string, fn func(livescore.Event)) func()
	FetchOnce(ctx context.Context, matchID string) (livescore.Event, bool)
	Status(matchID string) (livescore.EntryStatus, bool)
}

// Sink receives snapshots and serves them back when upstream has nothing.
type Sink interface {
	Observe(ev livescore.Event)
	Latest(ctx context.Context, matchID string) (livescore.Event, error)
}

// Recorder archives every event of a watched match once, no matter how many
// clients watch it, and answers FetchOnce from the archive when upstream
// has no data.
type Recorder struct {
	inner  Scores
	sink   Sink
	logger *zap.Logger

	mu   sync.Mutex
	taps map[string]*tap
}

type tap struct {
	refs  int
	unsub func()
}

func NewRecorder(inner Scores, sink Sink, logger *zap.Logger) *Recorder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Recorder{
		inner:  inner,
		sink:   sink,
		logger: logger.Named("archive"),
		taps:   make(map[string]*tap),
	}
}

func (r *Recorder) Subscribe(matchID string, fn func(livescore.Event)) func() {
	r.mu.Lock()
	t := r.taps[matchID]
	if t == nil {
		t = &tap{unsub: r.inner.Subscribe(matchID, r.sink.Observe)}
		r.taps[matchID] = t
	}
	t.refs++
	r.mu.Unlock()

	unsub := r.inner.Subscribe(matchID, fn)

	var once sync.Once
	return func() {
		once.Do(func() {
			unsub()
			r.release(matchID, t)
		})
	}
}

func (r *Recorder) release(matchID string, t *tap) {
	r.mu.Lock()
	t.refs--
	last := t.refs == 0
	if last {
		delete(r.taps, matchID)
	}
	r.mu.Unlock()

	if last {
		t.unsub()
	}
}

func (r *Recorder) FetchOnce(ctx context.Context, matchID string) (livescore.Event, bool) {
	if ev, ok := r.inner.FetchOnce(ctx, matchID); ok {
		return ev, true
	}
	ev, err := r.sink.Latest(ctx, matchID)
	if err != nil {
		r.logger.Debug("no archived snapshot", zap.String("match_id", matchID), zap.Error(err))
		return livescore.Event{}, false
	}
	return ev, true
}

func (r *Recorder) Status(matchID string) (livescore.EntryStatus, bool) {
	return r.inner.Status(matchID)
}
