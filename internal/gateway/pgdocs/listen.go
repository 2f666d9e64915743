package pgdocs

import (
	"context"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5"

	"github.com/GoSim-25-26J-441/obras/internal/gateway"
)

type listener struct {
	cancel context.CancelFunc
	done   chan struct{}
}

func (l *listener) stop() {
	l.cancel()
	<-l.done
}

// ensureListener starts the shared LISTEN connection once. LISTEN has been
// issued by the time it returns, so a watcher registered afterwards cannot
// miss a notification.
func (s *Store) ensureListener(ctx context.Context) error {
	s.startMu.Lock()
	defer s.startMu.Unlock()
	if s.listener != nil {
		return nil
	}

	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire listen connection: %w", err)
	}
	if _, err := conn.Exec(ctx, "LISTEN "+pgx.Identifier{notifyChannel}.Sanitize()); err != nil {
		conn.Release()
		return fmt.Errorf("listen: %w", err)
	}

	lctx, cancel := context.WithCancel(context.Background())
	l := &listener{cancel: cancel, done: make(chan struct{})}
	s.listener = l

	go func() {
		defer close(l.done)
		defer conn.Release()
		for {
			n, err := conn.Conn().WaitForNotification(lctx)
			if err != nil {
				if lctx.Err() != nil {
					return
				}
				s.listenerFailed(l, err)
				return
			}
			s.dispatch(n.Payload)
		}
	}()
	return nil
}

// listenerFailed drops a broken listener and fails every watcher so their
// owners resubscribe; the next Watch opens a fresh connection.
func (s *Store) listenerFailed(l *listener, err error) {
	s.startMu.Lock()
	if s.listener == l {
		s.listener = nil
	}
	s.startMu.Unlock()
	s.failAll(fmt.Errorf("listen connection lost: %w", err))
}

func (s *Store) dispatch(payload string) {
	s.mu.Lock()
	set := s.watchers[payload]
	ws := make([]*watch, 0, len(set))
	for w := range set {
		ws = append(ws, w)
	}
	s.mu.Unlock()

	for _, w := range ws {
		w.poke()
	}
}

func (s *Store) failAll(err error) {
	s.mu.Lock()
	var ws []*watch
	for _, set := range s.watchers {
		for w := range set {
			ws = append(ws, w)
		}
	}
	s.watchers = make(map[string]map[*watch]struct{})
	s.mu.Unlock()

	for _, w := range ws {
		w.fail(err)
	}
}

func (s *Store) Watch(ctx context.Context, scope gateway.Scope, q gateway.Query, onSnapshot gateway.SnapshotFunc, onError func(error)) (gateway.Subscription, error) {
	if err := s.ensureListener(ctx); err != nil {
		return nil, err
	}

	key := s.payload(scope)
	wctx, cancel := context.WithCancel(context.Background())
	w := &watch{
		store:      s,
		key:        key,
		scope:      scope,
		query:      q,
		onSnapshot: onSnapshot,
		onError:    onError,
		cancel:     cancel,
		wake:       make(chan struct{}, 1),
		failed:     make(chan error, 1),
		done:       make(chan struct{}),
	}

	s.mu.Lock()
	set := s.watchers[key]
	if set == nil {
		set = make(map[*watch]struct{})
		s.watchers[key] = set
	}
	set[w] = struct{}{}
	s.mu.Unlock()

	w.poke()
	go w.run(wctx)
	return w, nil
}

type watch struct {
	store      *Store
	key        string
	scope      gateway.Scope
	query      gateway.Query
	onSnapshot gateway.SnapshotFunc
	onError    func(error)

	cancel context.CancelFunc
	wake   chan struct{}
	failed chan error
	done   chan struct{}
	once   sync.Once
}

func (w *watch) poke() {
	select {
	case w.wake <- struct{}{}:
	default:
	}
}

func (w *watch) fail(err error) {
	select {
	case w.failed <- err:
	default:
	}
}

func (w *watch) run(ctx context.Context) {
	defer close(w.done)
	for {
		select {
		case <-ctx.Done():
			return
		case err := <-w.failed:
			if ctx.Err() == nil && w.onError != nil {
				w.onError(err)
			}
			return
		case <-w.wake:
			docs, err := w.store.List(ctx, w.scope, w.query)
			if ctx.Err() != nil {
				return
			}
			if err != nil {
				w.store.remove(w)
				if w.onError != nil {
					w.onError(err)
				}
				return
			}
			w.onSnapshot(docs)
		}
	}
}

func (w *watch) Unsubscribe() {
	w.once.Do(func() {
		w.store.remove(w)
		w.cancel()
		<-w.done
	})
}

func (s *Store) remove(w *watch) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if set, ok := s.watchers[w.key]; ok {
		delete(set, w)
		if len(set) == 0 {
			delete(s.watchers, w.key)
		}
	}
}
