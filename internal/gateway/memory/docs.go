package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/GoSim-25-26J-441/obras/internal/gateway"
)

// Docs is an in-memory document store with realtime watches.
type Docs struct {
	mu       sync.Mutex
	data     map[gateway.Scope]map[string]gateway.Fields
	watchers map[gateway.Scope]map[*watcher]struct{}
	closed   bool
}

func NewDocs() *Docs {
	return &Docs{
		data:     make(map[gateway.Scope]map[string]gateway.Fields),
		watchers: make(map[gateway.Scope]map[*watcher]struct{}),
	}
}

func (d *Docs) Create(_ context.Context, scope gateway.Scope, fields gateway.Fields) (string, error) {
	id := uuid.NewString()

	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return "", gateway.ErrClosed
	}
	coll := d.data[scope]
	if coll == nil {
		coll = make(map[string]gateway.Fields)
		d.data[scope] = coll
	}
	coll[id] = fields.Clone()
	d.notifyLocked(scope)
	d.mu.Unlock()

	return id, nil
}

func (d *Docs) Update(_ context.Context, scope gateway.Scope, id string, fields gateway.Fields) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return gateway.ErrClosed
	}
	cur, ok := d.data[scope][id]
	if !ok {
		return fmt.Errorf("update %s/%s: %w", scope, id, gateway.ErrNotFound)
	}
	d.data[scope][id] = cur.Merge(fields)
	d.notifyLocked(scope)
	return nil
}

func (d *Docs) Delete(_ context.Context, scope gateway.Scope, id string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return gateway.ErrClosed
	}
	if _, ok := d.data[scope][id]; !ok {
		return fmt.Errorf("delete %s/%s: %w", scope, id, gateway.ErrNotFound)
	}
	delete(d.data[scope], id)
	d.notifyLocked(scope)
	return nil
}

func (d *Docs) Watch(_ context.Context, scope gateway.Scope, q gateway.Query, onSnapshot gateway.SnapshotFunc, onError func(error)) (gateway.Subscription, error) {
	w := newWatcher(q, onSnapshot, onError)

	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil, gateway.ErrClosed
	}
	set := d.watchers[scope]
	if set == nil {
		set = make(map[*watcher]struct{})
		d.watchers[scope] = set
	}
	set[w] = struct{}{}
	w.offer(d.snapshotLocked(scope))
	d.mu.Unlock()

	return gateway.SubscriptionFunc(func() {
		d.mu.Lock()
		delete(d.watchers[scope], w)
		d.mu.Unlock()
		w.stop()
	}), nil
}

// Close ends every watch with gateway.ErrClosed.
func (d *Docs) Close() error {
	d.mu.Lock()
	d.closed = true
	var all []*watcher
	for _, set := range d.watchers {
		for w := range set {
			all = append(all, w)
		}
	}
	d.watchers = make(map[gateway.Scope]map[*watcher]struct{})
	d.mu.Unlock()

	for _, w := range all {
		w.fail(gateway.ErrClosed)
	}
	return nil
}

// Len reports how many documents a scope holds.
func (d *Docs) Len(scope gateway.Scope) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.data[scope])
}

func (d *Docs) snapshotLocked(scope gateway.Scope) []gateway.Document {
	coll := d.data[scope]
	docs := make([]gateway.Document, 0, len(coll))
	for id, f := range coll {
		docs = append(docs, gateway.Document{ID: id, Fields: f.Clone()})
	}
	return docs
}

func (d *Docs) notifyLocked(scope gateway.Scope) {
	if len(d.watchers[scope]) == 0 {
		return
	}
	docs := d.snapshotLocked(scope)
	for w := range d.watchers[scope] {
		cp := make([]gateway.Document, len(docs))
		copy(cp, docs)
		w.offer(cp)
	}
}

// watcher delivers snapshots on its own goroutine. Only the newest pending
// snapshot is kept since each one is the complete result set.
type watcher struct {
	query      gateway.Query
	onSnapshot gateway.SnapshotFunc
	onError    func(error)

	mu      sync.Mutex
	pending []gateway.Document
	has     bool
	err     error
	wake    chan struct{}
	done    chan struct{}
	once    sync.Once
}

func newWatcher(q gateway.Query, onSnapshot gateway.SnapshotFunc, onError func(error)) *watcher {
	w := &watcher{
		query:      q,
		onSnapshot: onSnapshot,
		onError:    onError,
		wake:       make(chan struct{}, 1),
		done:       make(chan struct{}),
	}
	go w.run()
	return w
}

func (w *watcher) offer(docs []gateway.Document) {
	w.mu.Lock()
	w.pending, w.has = docs, true
	w.mu.Unlock()
	w.signal()
}

func (w *watcher) fail(err error) {
	w.mu.Lock()
	w.err = err
	w.mu.Unlock()
	w.signal()
}

func (w *watcher) signal() {
	select {
	case w.wake <- struct{}{}:
	default:
	}
}

func (w *watcher) stop() {
	w.once.Do(func() { close(w.done) })
}

func (w *watcher) run() {
	for {
		select {
		case <-w.done:
			return
		case <-w.wake:
		}

		w.mu.Lock()
		docs, has, err := w.pending, w.has, w.err
		w.pending, w.has = nil, false
		w.mu.Unlock()

		select {
		case <-w.done:
			return
		default:
		}

		if has {
			gateway.SortDocuments(docs, w.query)
			w.onSnapshot(docs)
		}
		if err != nil {
			if w.onError != nil {
				w.onError(err)
			}
			w.stop()
			return
		}
	}
}

var _ gateway.DocumentStore = (*Docs)(nil)
