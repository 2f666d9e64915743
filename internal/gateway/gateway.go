// Package gateway defines the backend the application talks to: identity,
// a per-user document store with realtime watches, and blob storage.
//
// Every adapter (firebase, redis, postgres, s3, memory) implements these
// interfaces; the rest of the application only sees this package.
package gateway

import (
	"context"
	"errors"
	"io"
)

var (
	ErrNotFound = errors.New("document not found")
	ErrClosed   = errors.New("backend closed")
)

// Identity is an authenticated user.
type Identity struct {
	UID   string `json:"uid"`
	Email string `json:"email"`
}

// IdentityListener receives the current identity, nil when signed out.
type IdentityListener func(id *Identity)

// AuthSession is one client's view of the identity provider.
type AuthSession interface {
	SignUp(ctx context.Context, email, password string) (*Identity, error)
	SignIn(ctx context.Context, email, password string) (*Identity, error)
	SignOut(ctx context.Context) error
	// OnIdentityChange calls fn once immediately with the current identity and
	// again on every change until the returned cancel func is called.
	OnIdentityChange(fn IdentityListener) (cancel func())
}

// Auth hands out independent sessions, one per browser workspace.
type Auth interface {
	NewSession() AuthSession
}

// Scope addresses one user's collection.
type Scope struct {
	OwnerID    string
	Collection string
}

func (s Scope) String() string {
	return s.OwnerID + "/" + s.Collection
}

type Direction int

const (
	Asc Direction = iota
	Desc
)

type Query struct {
	OrderBy   string
	Direction Direction
}

type Document struct {
	ID     string
	Fields Fields
}

// SnapshotFunc receives the full ordered result set of a watch.
type SnapshotFunc func(docs []Document)

// Subscription is the handle returned by Watch. Unsubscribe is idempotent.
type Subscription interface {
	Unsubscribe()
}

type DocumentStore interface {
	Create(ctx context.Context, scope Scope, fields Fields) (string, error)
	Update(ctx context.Context, scope Scope, id string, fields Fields) error
	Delete(ctx context.Context, scope Scope, id string) error
	// Watch delivers the current result set and then every change. onError is
	// called at most once, when the stream breaks; no snapshot follows it.
	Watch(ctx context.Context, scope Scope, q Query, onSnapshot SnapshotFunc, onError func(error)) (Subscription, error)
}

// Location identifies a stored blob inside its store.
type Location string

type Blob struct {
	Content     io.Reader
	Size        int64
	ContentType string
}

type BlobStore interface {
	Put(ctx context.Context, key string, blob Blob) (Location, error)
	URL(ctx context.Context, loc Location) (string, error)
}

// BlobServer is implemented by blob stores whose URLs point back at this
// application (the memory store). The web layer serves their content.
type BlobServer interface {
	Open(key string) (data []byte, contentType string, ok bool)
}

// Backend is the process-wide connection, opened once at startup.
type Backend struct {
	Name  string
	Auth  Auth
	Docs  DocumentStore
	Blobs BlobStore

	closers []func() error
}

// OnClose registers a cleanup run by Close in reverse order.
func (b *Backend) OnClose(fn func() error) {
	b.closers = append(b.closers, fn)
}

func (b *Backend) Close() error {
	var errs []error
	for i := len(b.closers) - 1; i >= 0; i-- {
		if err := b.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	b.closers = nil
	return errors.Join(errs...)
}

// SubscriptionFunc adapts a plain function to Subscription.
type SubscriptionFunc func()

func (f SubscriptionFunc) Unsubscribe() { f() }
