package livescore

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

const (
	DefaultReconnectDelay       = 3 * time.Second
	DefaultMaxReconnectAttempts = 5
	DefaultPollInterval         = 10 * time.Second
	DefaultMaxRound             = 50
)

type Options struct {
	Dialer  Dialer
	Fetcher Fetcher
	// PushSupported probes whether the push path may be used at subscribe
	// time. Nil means push is used whenever a Dialer is configured.
	PushSupported func() bool
	Logger        *zap.Logger

	ReconnectDelay       time.Duration
	MaxReconnectAttempts int
	PollInterval         time.Duration
	MaxRound             int
}

func (o Options) withDefaults() Options {
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	if o.ReconnectDelay <= 0 {
		o.ReconnectDelay = DefaultReconnectDelay
	}
	if o.MaxReconnectAttempts <= 0 {
		o.MaxReconnectAttempts = DefaultMaxReconnectAttempts
	}
	if o.PollInterval <= 0 {
		o.PollInterval = DefaultPollInterval
	}
	if o.MaxRound <= 0 {
		o.MaxRound = DefaultMaxRound
	}
	return o
}

// Loop messages. Everything that touches per-match state goes through the inbox.
type msg interface{ isDistributorMsg() }

type join struct {
	matchID string
	obs     *observer
}

type leave struct {
	matchID string
	obs     *observer
}

type pushOpened struct{ t *pushTransport }

type pushMessage struct {
	t    *pushTransport
	data []byte
}

type pushClosed struct {
	t   *pushTransport
	err error
}

type reconnectDue struct {
	e   *entry
	gen int
}

type pollResult struct {
	t   *pollTransport
	ev  Event
	err error
}

type getStatus struct {
	matchID string
	reply   chan statusReply
}

func (join) isDistributorMsg()         {}
func (leave) isDistributorMsg()        {}
func (pushOpened) isDistributorMsg()   {}
func (pushMessage) isDistributorMsg()  {}
func (pushClosed) isDistributorMsg()   {}
func (reconnectDue) isDistributorMsg() {}
func (pollResult) isDistributorMsg()   {}
func (getStatus) isDistributorMsg()    {}

type observer struct {
	id      string
	fn      func(Event)
	removed atomic.Bool
}

// entry is the state kept for one watched match.
type entry struct {
	matchID   string
	observers []*observer
	transport transport

	failures       int // consecutive push failures since the last open
	reconnectGen   int
	reconnectTimer *time.Timer
	pushDisabled   bool
	finished       bool
}

// EntryStatus is a read-only view of one watched match.
type EntryStatus struct {
	MatchID          string        `json:"matchId"`
	Observers        int           `json:"observers"`
	Transport        TransportKind `json:"transport"`
	PushFailures     int           `json:"pushFailures"`
	ReconnectPending bool          `json:"reconnectPending"`
	PushDisabled     bool          `json:"pushDisabled"`
	Finished         bool          `json:"finished"`
}

type statusReply struct {
	status EntryStatus
	ok     bool
}

// Distributor keeps at most one transport per match id and fans the
// normalized events out to every observer of that id.
type Distributor struct {
	opts    Options
	logger  *zap.Logger
	inbox   chan msg
	entries map[string]*entry // owned by loop

	ctx      context.Context
	cancel   context.CancelFunc
	done     chan struct{}
	shutOnce sync.Once
}

func NewDistributor(parent context.Context, opts Options) *Distributor {
	ctx, cancel := context.WithCancel(parent)
	opts = opts.withDefaults()

	d := &Distributor{
		opts:    opts,
		logger:  opts.Logger.Named("livescore"),
		inbox:   make(chan msg, 64),
		entries: make(map[string]*entry),
		ctx:     ctx,
		cancel:  cancel,
		done:    make(chan struct{}),
	}

	go d.loop()
	return d
}

// Subscribe registers fn for matchID and starts a transport if the match is
// not watched yet. It never blocks on I/O. The returned func removes fn; once
// it returns fn receives nothing more. It may be called from inside fn.
func (d *Distributor) Subscribe(matchID string, fn func(Event)) (unsubscribe func()) {
	if fn == nil || d.ctx.Err() != nil {
		return func() {}
	}

	o := &observer{id: uuid.NewString(), fn: fn}
	d.postAsync(join{matchID: matchID, obs: o})

	return func() {
		if o.removed.CompareAndSwap(false, true) {
			d.postAsync(leave{matchID: matchID, obs: o})
		}
	}
}

// FetchOnce pulls the current score without touching any subscription.
// The boolean is false when no snapshot could be produced.
func (d *Distributor) FetchOnce(ctx context.Context, matchID string) (Event, bool) {
	ev, err := d.fetch(ctx, matchID)
	if err != nil {
		d.logFetchError("fetch once failed", matchID, err)
		return Event{}, false
	}
	return ev, true
}

// Status reports the state kept for matchID. Must not be called from an
// observer callback.
func (d *Distributor) Status(matchID string) (EntryStatus, bool) {
	reply := make(chan statusReply, 1)
	select {
	case d.inbox <- getStatus{matchID: matchID, reply: reply}:
	case <-d.done:
		return EntryStatus{}, false
	}
	select {
	case r := <-reply:
		return r.status, r.ok
	case <-d.done:
		return EntryStatus{}, false
	}
}

// ShutdownAll stops every transport and timer and drops every observer.
// It is idempotent and waits for the loop to exit, so it must not be called
// from an observer callback.
func (d *Distributor) ShutdownAll() {
	d.shutOnce.Do(d.cancel)
	<-d.done
}

func (d *Distributor) loop() {
	defer close(d.done)
	for {
		select {
		case <-d.ctx.Done():
			d.teardownAll()
			return

		case m := <-d.inbox:
			switch msg := m.(type) {
			case join:
				d.handleJoin(msg)
			case leave:
				d.handleLeave(msg)
			case pushOpened:
				if e := d.current(msg.t); e != nil {
					e.failures = 0
					d.logger.Info("push connected", zap.String("match_id", e.matchID))
				}
			case pushMessage:
				d.handlePushMessage(msg)
			case pushClosed:
				d.handlePushClosed(msg)
			case reconnectDue:
				d.handleReconnectDue(msg)
			case pollResult:
				d.handlePollResult(msg)
			case getStatus:
				msg.reply <- d.status(msg.matchID)
			}
		}
	}
}

func (d *Distributor) handleJoin(m join) {
	if m.obs.removed.Load() {
		// Unsubscribed before the join was processed.
		return
	}
	e, ok := d.entries[m.matchID]
	if !ok {
		e = &entry{matchID: m.matchID}
		d.entries[m.matchID] = e
		d.logger.Info("watching match", zap.String("match_id", m.matchID))
	}
	e.observers = append(e.observers, m.obs)

	if e.transport == nil && e.reconnectTimer == nil && !e.finished {
		d.startTransport(e)
	}
}

func (d *Distributor) handleLeave(m leave) {
	e, ok := d.entries[m.matchID]
	if !ok {
		return
	}
	e.observers = slices.DeleteFunc(e.observers, func(o *observer) bool { return o == m.obs })
	if len(e.observers) > 0 {
		return
	}

	if err := d.teardown(e); err != nil {
		d.logger.Warn("closing transport", zap.String("match_id", e.matchID), zap.Error(err))
	}
	delete(d.entries, m.matchID)
	d.logger.Info("stopped watching match", zap.String("match_id", m.matchID))
}

func (d *Distributor) handlePushMessage(m pushMessage) {
	e := d.current(m.t)
	if e == nil {
		return
	}
	ev, err := ParseEvent(e.matchID, m.data, d.opts.MaxRound, time.Now())
	if err != nil {
		d.logger.Warn("dropping push message", zap.String("match_id", e.matchID), zap.Error(err))
		return
	}
	d.fanout(e, ev)
}

func (d *Distributor) handlePushClosed(m pushClosed) {
	_ = m.t.stop()
	e := d.current(m.t)
	if e == nil {
		return
	}
	e.transport = nil

	if errors.Is(m.err, ErrPushUnsupported) {
		d.logger.Info("push unsupported, polling", zap.String("match_id", e.matchID))
		e.pushDisabled = true
		d.startPoll(e)
		return
	}

	attempt := e.failures
	e.failures++
	if e.failures >= d.opts.MaxReconnectAttempts {
		d.logger.Warn("max reconnect attempts reached, polling",
			zap.String("match_id", e.matchID),
			zap.Int("failures", e.failures),
			zap.Error(m.err))
		e.pushDisabled = true
		d.startPoll(e)
		return
	}

	delay := d.opts.ReconnectDelay * time.Duration(attempt+1)
	e.reconnectGen++
	due := reconnectDue{e: e, gen: e.reconnectGen}
	e.reconnectTimer = time.AfterFunc(delay, func() {
		select {
		case d.inbox <- due:
		case <-d.ctx.Done():
		}
	})
	d.logger.Info("push closed, reconnect scheduled",
		zap.String("match_id", e.matchID),
		zap.Int("attempt", attempt+1),
		zap.Duration("delay", delay),
		zap.Error(m.err))
}

func (d *Distributor) handleReconnectDue(m reconnectDue) {
	e, ok := d.entries[m.e.matchID]
	if !ok || e != m.e || e.reconnectGen != m.gen {
		return
	}
	e.reconnectTimer = nil
	d.logger.Info("reconnecting push", zap.String("match_id", e.matchID), zap.Int("attempt", e.failures))
	d.startPush(e)
}

func (d *Distributor) handlePollResult(m pollResult) {
	e := d.current(m.t)
	if e == nil {
		return
	}
	if m.err != nil {
		d.logFetchError("poll tick skipped", e.matchID, m.err)
		return
	}

	d.fanout(e, m.ev)

	if m.ev.Status == StatusFinished {
		_ = m.t.stop()
		e.transport = nil
		e.finished = true
		d.logger.Info("match finished, polling stopped", zap.String("match_id", e.matchID))
	}
}

func (d *Distributor) startTransport(e *entry) {
	if !e.pushDisabled && d.pushSupported() {
		d.startPush(e)
		return
	}
	d.startPoll(e)
}

func (d *Distributor) pushSupported() bool {
	if d.opts.Dialer == nil {
		return false
	}
	return d.opts.PushSupported == nil || d.opts.PushSupported()
}

func (d *Distributor) startPush(e *entry) {
	ctx, cancel := context.WithCancel(d.ctx)
	t := &pushTransport{matchID: e.matchID, cancel: cancel}
	e.transport = t
	go t.run(ctx, d)
}

func (d *Distributor) startPoll(e *entry) {
	ctx, cancel := context.WithCancel(d.ctx)
	t := &pollTransport{matchID: e.matchID, cancel: cancel}
	e.transport = t
	d.logger.Info("polling started", zap.String("match_id", e.matchID), zap.Duration("interval", d.opts.PollInterval))
	go t.run(ctx, d)
}

// current returns the entry t belongs to, or nil when t has been replaced or
// torn down and its messages must be ignored.
func (d *Distributor) current(t transport) *entry {
	e, ok := d.entries[t.match()]
	if !ok || e.transport != t {
		return nil
	}
	return e
}

// fanout delivers ev to a snapshot of the observers, in registration order.
func (d *Distributor) fanout(e *entry, ev Event) {
	for _, o := range slices.Clone(e.observers) {
		if o.removed.Load() {
			continue
		}
		d.deliver(o, ev)
	}
}

func (d *Distributor) deliver(o *observer, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("observer panicked",
				zap.String("match_id", ev.MatchID),
				zap.String("observer_id", o.id),
				zap.Any("panic", r))
		}
	}()
	o.fn(ev)
}

func (d *Distributor) fetch(ctx context.Context, matchID string) (ev Event, err error) {
	if d.opts.Fetcher == nil {
		return Event{}, ErrNoData
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("fetcher panicked: %v", r)
		}
	}()

	ev, err = d.opts.Fetcher.Fetch(ctx, matchID)
	if err != nil {
		return Event{}, err
	}
	return ev.Normalize(matchID, d.opts.MaxRound, time.Now()), nil
}

func (d *Distributor) logFetchError(message, matchID string, err error) {
	if errors.Is(err, ErrNoData) || errors.Is(err, context.Canceled) {
		d.logger.Debug(message, zap.String("match_id", matchID), zap.Error(err))
		return
	}
	d.logger.Warn(message, zap.String("match_id", matchID), zap.Error(err))
}

func (d *Distributor) teardown(e *entry) error {
	var err error
	if e.transport != nil {
		err = e.transport.stop()
		e.transport = nil
	}
	if e.reconnectTimer != nil {
		e.reconnectTimer.Stop()
		e.reconnectTimer = nil
	}
	e.reconnectGen++
	e.failures = 0
	return err
}

func (d *Distributor) teardownAll() {
	var err error
	for id, e := range d.entries {
		err = multierr.Append(err, d.teardown(e))
		delete(d.entries, id)
	}
	if err != nil {
		d.logger.Warn("closing transports on shutdown", zap.Error(err))
	}
	d.logger.Info("all matches disconnected")
}

func (d *Distributor) status(matchID string) statusReply {
	e, ok := d.entries[matchID]
	if !ok {
		return statusReply{}
	}
	kind := TransportNone
	if e.transport != nil {
		kind = e.transport.kind()
	}
	return statusReply{
		ok: true,
		status: EntryStatus{
			MatchID:          e.matchID,
			Observers:        len(e.observers),
			Transport:        kind,
			PushFailures:     e.failures,
			ReconnectPending: e.reconnectTimer != nil,
			PushDisabled:     e.pushDisabled,
			Finished:         e.finished,
		},
	}
}

// postAsync enqueues m without ever blocking the caller, which may be the
// loop goroutine itself when called from an observer.
func (d *Distributor) postAsync(m msg) {
	select {
	case d.inbox <- m:
	case <-d.ctx.Done():
	default:
		go func() {
			select {
			case d.inbox <- m:
			case <-d.ctx.Done():
			}
		}()
	}
}
