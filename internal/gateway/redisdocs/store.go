// Package redisdocs stores documents in Redis hashes and announces writes
// on a pub/sub channel per scope.
package redisdocs

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/GoSim-25-26J-441/obras/internal/gateway"
)

const (
	docsKeyPrefix      = "obras:docs:"   // Hash of id -> JSON: obras:docs:{app}:{owner}:{collection}
	eventChannelPrefix = "obras:events:" // Pub/Sub channel per scope: obras:events:{app}:{owner}:{collection}
)

// Store implements gateway.DocumentStore on Redis.
type Store struct {
	client *redis.Client
	appID  string
}

func New(client *redis.Client, appID string) *Store {
	return &Store{client: client, appID: appID}
}

func (s *Store) Create(ctx context.Context, scope gateway.Scope, fields gateway.Fields) (string, error) {
	id := uuid.New().String()

	data, err := json.Marshal(fields)
	if err != nil {
		return "", fmt.Errorf("failed to marshal document: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, s.docsKey(scope), id, data)
	pipe.Publish(ctx, s.eventChannel(scope), id)
	if _, err := pipe.Exec(ctx); err != nil {
		return "", fmt.Errorf("failed to create document: %w", err)
	}

	return id, nil
}

// Update merges fields into an existing document. The read-modify-write runs
// under WATCH so a concurrent delete is not resurrected.
func (s *Store) Update(ctx context.Context, scope gateway.Scope, id string, fields gateway.Fields) error {
	key := s.docsKey(scope)

	txf := func(tx *redis.Tx) error {
		raw, err := tx.HGet(ctx, key, id).Result()
		if err == redis.Nil {
			return fmt.Errorf("update %s/%s: %w", scope, id, gateway.ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("failed to get document: %w", err)
		}

		var cur gateway.Fields
		if err := json.Unmarshal([]byte(raw), &cur); err != nil {
			return fmt.Errorf("failed to unmarshal document: %w", err)
		}
		data, err := json.Marshal(cur.Merge(fields))
		if err != nil {
			return fmt.Errorf("failed to marshal document: %w", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, key, id, data)
			pipe.Publish(ctx, s.eventChannel(scope), id)
			return nil
		})
		return err
	}

	if err := s.client.Watch(ctx, txf, key); err != nil {
		return err
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, scope gateway.Scope, id string) error {
	pipe := s.client.TxPipeline()
	del := pipe.HDel(ctx, s.docsKey(scope), id)
	pipe.Publish(ctx, s.eventChannel(scope), id)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}
	if del.Val() == 0 {
		return fmt.Errorf("delete %s/%s: %w", scope, id, gateway.ErrNotFound)
	}
	return nil
}

// List returns the scope's documents ordered by q.
func (s *Store) List(ctx context.Context, scope gateway.Scope, q gateway.Query) ([]gateway.Document, error) {
	raw, err := s.client.HGetAll(ctx, s.docsKey(scope)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}

	docs := make([]gateway.Document, 0, len(raw))
	for id, data := range raw {
		var f gateway.Fields
		if err := json.Unmarshal([]byte(data), &f); err != nil {
			return nil, fmt.Errorf("failed to unmarshal document %s: %w", id, err)
		}
		docs = append(docs, gateway.Document{ID: id, Fields: f})
	}
	gateway.SortDocuments(docs, q)
	return docs, nil
}

// Watch subscribes to the scope's channel before reading, so no write between
// the first read and the subscription is missed.
func (s *Store) Watch(ctx context.Context, scope gateway.Scope, q gateway.Query, onSnapshot gateway.SnapshotFunc, onError func(error)) (gateway.Subscription, error) {
	pubsub := s.client.Subscribe(ctx, s.eventChannel(scope))
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("failed to subscribe: %w", err)
	}

	wctx, cancel := context.WithCancel(context.Background())
	w := &watch{
		store:      s,
		scope:      scope,
		query:      q,
		pubsub:     pubsub,
		onSnapshot: onSnapshot,
		onError:    onError,
		cancel:     cancel,
		done:       make(chan struct{}),
	}
	go w.run(wctx)

	return w, nil
}

func (s *Store) docsKey(scope gateway.Scope) string {
	return fmt.Sprintf("%s%s:%s:%s", docsKeyPrefix, s.appID, scope.OwnerID, scope.Collection)
}

func (s *Store) eventChannel(scope gateway.Scope) string {
	return fmt.Sprintf("%s%s:%s:%s", eventChannelPrefix, s.appID, scope.OwnerID, scope.Collection)
}

var _ gateway.DocumentStore = (*Store)(nil)
