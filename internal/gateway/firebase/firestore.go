package firebase

import (
	"context"
	"fmt"
	"sync"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/GoSim-25-26J-441/obras/internal/gateway"
)

// Docs keeps each user's collections under artifacts/{appId}/users/{uid}.
type Docs struct {
	client *firestore.Client
	appID  string
}

func NewDocs(client *firestore.Client, appID string) *Docs {
	return &Docs{client: client, appID: appID}
}

// CollectionPath is the Firestore path of a scope.
func CollectionPath(appID string, scope gateway.Scope) string {
	return fmt.Sprintf("artifacts/%s/users/%s/%s", appID, scope.OwnerID, scope.Collection)
}

func (d *Docs) collection(scope gateway.Scope) *firestore.CollectionRef {
	return d.client.Collection(CollectionPath(d.appID, scope))
}

func (d *Docs) Create(ctx context.Context, scope gateway.Scope, fields gateway.Fields) (string, error) {
	ref, _, err := d.collection(scope).Add(ctx, map[string]interface{}(fields))
	if err != nil {
		return "", fmt.Errorf("failed to create document: %w", err)
	}
	return ref.ID, nil
}

func (d *Docs) Update(ctx context.Context, scope gateway.Scope, id string, fields gateway.Fields) error {
	updates := make([]firestore.Update, 0, len(fields))
	for k, v := range fields {
		updates = append(updates, firestore.Update{Path: k, Value: v})
	}
	if _, err := d.collection(scope).Doc(id).Update(ctx, updates); err != nil {
		if status.Code(err) == codes.NotFound {
			return fmt.Errorf("update %s/%s: %w", scope, id, gateway.ErrNotFound)
		}
		return fmt.Errorf("failed to update document: %w", err)
	}
	return nil
}

func (d *Docs) Delete(ctx context.Context, scope gateway.Scope, id string) error {
	if _, err := d.collection(scope).Doc(id).Delete(ctx, firestore.Exists); err != nil {
		if status.Code(err) == codes.NotFound {
			return fmt.Errorf("delete %s/%s: %w", scope, id, gateway.ErrNotFound)
		}
		return fmt.Errorf("failed to delete document: %w", err)
	}
	return nil
}

func (d *Docs) Watch(ctx context.Context, scope gateway.Scope, q gateway.Query, onSnapshot gateway.SnapshotFunc, onError func(error)) (gateway.Subscription, error) {
	query := d.collection(scope).Query
	if q.OrderBy != "" {
		dir := firestore.Asc
		if q.Direction == gateway.Desc {
			dir = firestore.Desc
		}
		query = query.OrderBy(q.OrderBy, dir)
	}

	wctx, cancel := context.WithCancel(context.Background())
	it := query.Snapshots(wctx)
	done := make(chan struct{})

	go func() {
		defer close(done)
		for {
			snap, err := it.Next()
			if err != nil {
				if wctx.Err() != nil || status.Code(err) == codes.Canceled {
					return
				}
				if onError != nil {
					onError(err)
				}
				return
			}

			refs, err := snap.Documents.GetAll()
			if err != nil {
				if wctx.Err() == nil && onError != nil {
					onError(err)
				}
				return
			}
			docs := make([]gateway.Document, 0, len(refs))
			for _, r := range refs {
				docs = append(docs, gateway.Document{ID: r.Ref.ID, Fields: gateway.Fields(r.Data())})
			}
			onSnapshot(docs)
		}
	}()

	var once sync.Once
	return gateway.SubscriptionFunc(func() {
		once.Do(func() {
			cancel()
			it.Stop()
			<-done
		})
	}), nil
}

var _ gateway.DocumentStore = (*Docs)(nil)
