package redisdocs

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/GoSim-25-26J-441/obras/internal/gateway"
)

var errChannelClosed = errors.New("redis subscription closed")

type watch struct {
	store      *Store
	scope      gateway.Scope
	query      gateway.Query
	pubsub     *redis.PubSub
	onSnapshot gateway.SnapshotFunc
	onError    func(error)

	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

// run ends the watch through onError on the first receive error, so the
// caller resubscribes and reads the scope again.
func (w *watch) run(ctx context.Context) {
	defer close(w.done)

	if !w.reload(ctx) {
		return
	}

	for {
		msg, err := w.pubsub.Receive(ctx)
		if err != nil {
			w.fail(ctx, fmt.Errorf("%w: %v", errChannelClosed, err))
			return
		}
		switch msg.(type) {
		case *redis.Message, *redis.Subscription:
			// A Subscription past the first one means the client
			// resubscribed; writes may have been missed meanwhile.
			if !w.reload(ctx) {
				return
			}
		}
	}
}

func (w *watch) reload(ctx context.Context) bool {
	docs, err := w.store.List(ctx, w.scope, w.query)
	if err != nil {
		w.fail(ctx, err)
		return false
	}
	if ctx.Err() != nil {
		return false
	}
	w.onSnapshot(docs)
	return true
}

func (w *watch) fail(ctx context.Context, err error) {
	if ctx.Err() != nil {
		return
	}
	if w.onError != nil {
		w.onError(err)
	}
}

func (w *watch) Unsubscribe() {
	w.once.Do(func() {
		w.cancel()
		_ = w.pubsub.Close()
		<-w.done
	})
}
