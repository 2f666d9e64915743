// Package livequery keeps a document watch open. When the stream breaks it
// resubscribes with exponential backoff and reports a reconnecting status
// until the next snapshot arrives.
package livequery

import (
	"context"
	"sync"
	"time"

	"github.com/GoSim-25-26J-441/obras/internal/gateway"
	"github.com/GoSim-25-26J-441/obras/internal/logging"
)

type Status int

const (
	Connecting Status = iota
	Live
	Reconnecting
	Stopped
)

func (s Status) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Live:
		return "live"
	case Reconnecting:
		return "reconnecting"
	default:
		return "stopped"
	}
}

const (
	DefaultMinBackoff = 500 * time.Millisecond
	DefaultMaxBackoff = 30 * time.Second
)

type Options struct {
	MinBackoff time.Duration
	MaxBackoff time.Duration
	Logger     *logging.Logger
}

func (o Options) withDefaults() Options {
	if o.MinBackoff <= 0 {
		o.MinBackoff = DefaultMinBackoff
	}
	if o.MaxBackoff < o.MinBackoff {
		o.MaxBackoff = DefaultMaxBackoff
		if o.MaxBackoff < o.MinBackoff {
			o.MaxBackoff = o.MinBackoff
		}
	}
	if o.Logger == nil {
		o.Logger = logging.New("livequery")
	}
	return o
}

type Handle struct {
	cancel context.CancelFunc
	done   chan struct{}

	mu       sync.Mutex
	status   Status
	onStatus func(Status)
}

// Follow watches scope until Stop. onSnapshot and onStatus are called from
// store goroutines and must not block; neither is called after Stop returns.
func Follow(store gateway.DocumentStore, scope gateway.Scope, q gateway.Query,
	onSnapshot gateway.SnapshotFunc, onStatus func(Status), opts Options) *Handle {

	opts = opts.withDefaults()
	ctx, cancel := context.WithCancel(context.Background())
	h := &Handle{
		cancel:   cancel,
		done:     make(chan struct{}),
		status:   Connecting,
		onStatus: onStatus,
	}
	if onStatus != nil {
		onStatus(Connecting)
	}
	go h.run(ctx, store, scope, q, onSnapshot, opts)
	return h
}

func (h *Handle) Status() Status {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.status
}

// Stop unsubscribes and waits for the follower to exit. It is idempotent.
func (h *Handle) Stop() {
	h.cancel()
	<-h.done
	h.setStatus(Stopped)
}

func (h *Handle) setStatus(s Status) {
	h.mu.Lock()
	if h.status == s || h.status == Stopped {
		h.mu.Unlock()
		return
	}
	h.status = s
	fn := h.onStatus
	h.mu.Unlock()

	if fn != nil && s != Stopped {
		fn(s)
	}
}

func (h *Handle) run(ctx context.Context, store gateway.DocumentStore, scope gateway.Scope,
	q gateway.Query, onSnapshot gateway.SnapshotFunc, opts Options) {

	defer close(h.done)
	log := opts.Logger

	// deliverMu serialises callbacks with Stop: once ctx is cancelled and the
	// lock is released, nothing more reaches the caller.
	var deliverMu sync.Mutex
	backoff := opts.MinBackoff

	for {
		broken := make(chan error, 1)
		var gotSnapshot bool
		var snapMu sync.Mutex

		sub, err := store.Watch(ctx, scope, q, func(docs []gateway.Document) {
			deliverMu.Lock()
			defer deliverMu.Unlock()
			if ctx.Err() != nil {
				return
			}
			snapMu.Lock()
			gotSnapshot = true
			snapMu.Unlock()
			h.setStatus(Live)
			if onSnapshot != nil {
				onSnapshot(docs)
			}
		}, func(err error) {
			select {
			case broken <- err:
			default:
			}
		})

		if err == nil {
			select {
			case <-ctx.Done():
				sub.Unsubscribe()
				deliverMu.Lock()
				deliverMu.Unlock()
				return
			case err = <-broken:
				sub.Unsubscribe()
			}
		}

		if ctx.Err() != nil {
			return
		}

		snapMu.Lock()
		if gotSnapshot {
			backoff = opts.MinBackoff
		}
		snapMu.Unlock()

		log.LogWarnf("watch", "scope=%s retry_in=%s error=%v", scope, backoff, err)
		h.setStatus(Reconnecting)

		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}

		backoff *= 2
		if backoff > opts.MaxBackoff {
			backoff = opts.MaxBackoff
		}
	}
}
