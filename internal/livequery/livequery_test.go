package livequery

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GoSim-25-26J-441/obras/internal/gateway"
	"github.com/GoSim-25-26J-441/obras/internal/gateway/gatewaytest"
	"github.com/GoSim-25-26J-441/obras/internal/gateway/memory"
)

var scope = gateway.Scope{OwnerID: "u1", Collection: "obras"}

type recorder struct {
	mu        sync.Mutex
	snapshots [][]gateway.Document
	statuses  []Status
}

func (r *recorder) snapshot(docs []gateway.Document) {
	r.mu.Lock()
	r.snapshots = append(r.snapshots, docs)
	r.mu.Unlock()
}

func (r *recorder) status(s Status) {
	r.mu.Lock()
	r.statuses = append(r.statuses, s)
	r.mu.Unlock()
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.snapshots)
}

func (r *recorder) last() []gateway.Document {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.snapshots) == 0 {
		return nil
	}
	return r.snapshots[len(r.snapshots)-1]
}

func (r *recorder) sawStatus(s Status) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, got := range r.statuses {
		if got == s {
			return true
		}
	}
	return false
}

func fastOptions() Options {
	return Options{MinBackoff: time.Millisecond, MaxBackoff: 4 * time.Millisecond}
}

func TestFollow_DeliversSnapshots(t *testing.T) {
	ctx := context.Background()
	docs := memory.NewDocs()
	rec := &recorder{}

	h := Follow(docs, scope, gateway.Query{OrderBy: "createdAt", Direction: gateway.Desc}, rec.snapshot, rec.status, fastOptions())
	defer h.Stop()

	require.Eventually(t, func() bool { return h.Status() == Live }, time.Second, time.Millisecond)

	_, err := docs.Create(ctx, scope, gateway.Fields{"nome": "Ponte"})
	require.NoError(t, err)

	require.Eventually(t, func() bool { return len(rec.last()) == 1 }, time.Second, time.Millisecond)
	assert.Equal(t, "Ponte", rec.last()[0].Fields.String("nome"))
	assert.True(t, rec.sawStatus(Connecting))
}

func TestFollow_ResubscribesAfterBreak(t *testing.T) {
	ctx := context.Background()
	journal := gatewaytest.NewJournal()
	docs := gatewaytest.NewDocs(memory.NewDocs(), journal)
	rec := &recorder{}

	h := Follow(docs, scope, gateway.Query{OrderBy: "createdAt"}, rec.snapshot, rec.status, fastOptions())
	defer h.Stop()
	require.Eventually(t, func() bool { return h.Status() == Live }, time.Second, time.Millisecond)

	journal.FailOn("watch", errors.New("unavailable"))
	docs.BreakWatches(errors.New("stream reset"))

	require.Eventually(t, func() bool { return h.Status() == Reconnecting }, time.Second, time.Millisecond)
	require.Eventually(t, func() bool { return len(journal.Ops("watch")) >= 3 }, time.Second, time.Millisecond)

	journal.FailOn("watch", nil)
	require.Eventually(t, func() bool { return h.Status() == Live }, time.Second, time.Millisecond)

	_, err := docs.Create(ctx, scope, gateway.Fields{"nome": "Casa"})
	require.NoError(t, err)
	require.Eventually(t, func() bool { return len(rec.last()) == 1 }, time.Second, time.Millisecond)
	assert.Equal(t, 1, docs.OpenWatches())
}

func TestHandle_Stop(t *testing.T) {
	ctx := context.Background()
	inner := memory.NewDocs()
	docs := gatewaytest.NewDocs(inner, gatewaytest.NewJournal())
	rec := &recorder{}

	h := Follow(docs, scope, gateway.Query{}, rec.snapshot, rec.status, fastOptions())
	require.Eventually(t, func() bool { return rec.count() == 1 }, time.Second, time.Millisecond)

	h.Stop()
	h.Stop()
	assert.Equal(t, Stopped, h.Status())
	assert.Zero(t, docs.OpenWatches())

	_, err := inner.Create(ctx, scope, gateway.Fields{"nome": "x"})
	require.NoError(t, err)
	time.Sleep(10 * time.Millisecond)
	assert.Equal(t, 1, rec.count())
}

func TestHandle_StopWhileBackingOff(t *testing.T) {
	journal := gatewaytest.NewJournal()
	journal.FailOn("watch", errors.New("down"))
	docs := gatewaytest.NewDocs(memory.NewDocs(), journal)

	h := Follow(docs, scope, gateway.Query{}, nil, nil, Options{MinBackoff: time.Hour})
	require.Eventually(t, func() bool { return h.Status() == Reconnecting }, time.Second, time.Millisecond)

	stopped := make(chan struct{})
	go func() {
		h.Stop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("Stop blocked during backoff")
	}
}

func TestOptions_Defaults(t *testing.T) {
	o := Options{}.withDefaults()
	assert.Equal(t, DefaultMinBackoff, o.MinBackoff)
	assert.Equal(t, DefaultMaxBackoff, o.MaxBackoff)

	o = Options{MinBackoff: time.Minute, MaxBackoff: time.Second}.withDefaults()
	assert.Equal(t, time.Minute, o.MaxBackoff)
}
