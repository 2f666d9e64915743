// Package gatewaytest wraps gateway stores to record calls and inject
// failures in tests.
package gatewaytest

import (
	"context"
	"sync"

	"github.com/GoSim-25-26J-441/obras/internal/gateway"
)

// Call is one recorded backend operation.
type Call struct {
	Op     string // create, update, delete, watch, unsubscribe, put, url
	Scope  gateway.Scope
	ID     string
	Key    string
	Fields gateway.Fields
}

// Journal is a call log shared by several wrappers so tests can assert the
// order of operations across stores.
type Journal struct {
	mu    sync.Mutex
	calls []Call
	fail  map[string]error
}

func NewJournal() *Journal {
	return &Journal{fail: make(map[string]error)}
}

// FailOn makes every later call of op return err. A nil err clears it.
func (j *Journal) FailOn(op string, err error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if err == nil {
		delete(j.fail, op)
		return
	}
	j.fail[op] = err
}

func (j *Journal) record(c Call) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.calls = append(j.calls, c)
	return j.fail[c.Op]
}

func (j *Journal) Calls() []Call {
	j.mu.Lock()
	defer j.mu.Unlock()
	out := make([]Call, len(j.calls))
	copy(out, j.calls)
	return out
}

// Ops lists recorded operation names, optionally only those in filter.
func (j *Journal) Ops(filter ...string) []string {
	keep := make(map[string]bool, len(filter))
	for _, f := range filter {
		keep[f] = true
	}
	var out []string
	for _, c := range j.Calls() {
		if len(filter) == 0 || keep[c.Op] {
			out = append(out, c.Op)
		}
	}
	return out
}

// Writes lists recorded create, update, delete, put and url calls.
func (j *Journal) Writes() []Call {
	var out []Call
	for _, c := range j.Calls() {
		switch c.Op {
		case "create", "update", "delete", "put", "url":
			out = append(out, c)
		}
	}
	return out
}

func (j *Journal) Reset() {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.calls = nil
}

type Docs struct {
	inner   gateway.DocumentStore
	journal *Journal

	mu      sync.Mutex
	watches map[*brokenable]struct{}
}

func NewDocs(inner gateway.DocumentStore, journal *Journal) *Docs {
	return &Docs{inner: inner, journal: journal, watches: make(map[*brokenable]struct{})}
}

func (d *Docs) Create(ctx context.Context, scope gateway.Scope, fields gateway.Fields) (string, error) {
	if err := d.journal.record(Call{Op: "create", Scope: scope, Fields: fields.Clone()}); err != nil {
		return "", err
	}
	return d.inner.Create(ctx, scope, fields)
}

func (d *Docs) Update(ctx context.Context, scope gateway.Scope, id string, fields gateway.Fields) error {
	if err := d.journal.record(Call{Op: "update", Scope: scope, ID: id, Fields: fields.Clone()}); err != nil {
		return err
	}
	return d.inner.Update(ctx, scope, id, fields)
}

func (d *Docs) Delete(ctx context.Context, scope gateway.Scope, id string) error {
	if err := d.journal.record(Call{Op: "delete", Scope: scope, ID: id}); err != nil {
		return err
	}
	return d.inner.Delete(ctx, scope, id)
}

func (d *Docs) Watch(ctx context.Context, scope gateway.Scope, q gateway.Query, onSnapshot gateway.SnapshotFunc, onError func(error)) (gateway.Subscription, error) {
	if err := d.journal.record(Call{Op: "watch", Scope: scope}); err != nil {
		return nil, err
	}

	b := &brokenable{onError: onError}
	sub, err := d.inner.Watch(ctx, scope, q, onSnapshot, b.report)
	if err != nil {
		return nil, err
	}
	b.inner = sub

	d.mu.Lock()
	d.watches[b] = struct{}{}
	d.mu.Unlock()

	return gateway.SubscriptionFunc(func() {
		d.mu.Lock()
		_, live := d.watches[b]
		delete(d.watches, b)
		d.mu.Unlock()
		if live {
			_ = d.journal.record(Call{Op: "unsubscribe", Scope: scope})
		}
		sub.Unsubscribe()
	}), nil
}

// BreakWatches ends every open watch with err, as a dropped connection would.
func (d *Docs) BreakWatches(err error) {
	d.mu.Lock()
	var all []*brokenable
	for b := range d.watches {
		all = append(all, b)
	}
	d.watches = make(map[*brokenable]struct{})
	d.mu.Unlock()

	for _, b := range all {
		b.inner.Unsubscribe()
		b.report(err)
	}
}

// OpenWatches reports how many watches are currently subscribed.
func (d *Docs) OpenWatches() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.watches)
}

type brokenable struct {
	inner   gateway.Subscription
	onError func(error)
	once    sync.Once
}

func (b *brokenable) report(err error) {
	b.once.Do(func() {
		if b.onError != nil {
			b.onError(err)
		}
	})
}

type Blobs struct {
	inner   gateway.BlobStore
	journal *Journal
}

func NewBlobs(inner gateway.BlobStore, journal *Journal) *Blobs {
	return &Blobs{inner: inner, journal: journal}
}

func (b *Blobs) Put(ctx context.Context, key string, blob gateway.Blob) (gateway.Location, error) {
	if err := b.journal.record(Call{Op: "put", Key: key}); err != nil {
		return "", err
	}
	return b.inner.Put(ctx, key, blob)
}

func (b *Blobs) URL(ctx context.Context, loc gateway.Location) (string, error) {
	if err := b.journal.record(Call{Op: "url", Key: string(loc)}); err != nil {
		return "", err
	}
	return b.inner.URL(ctx, loc)
}

var (
	_ gateway.DocumentStore = (*Docs)(nil)
	_ gateway.BlobStore     = (*Blobs)(nil)
)
