// Package pgdocs stores documents as JSONB rows in Postgres. Writes call
// pg_notify in the same transaction and a single LISTEN connection fans the
// notifications out to watchers.
package pgdocs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/GoSim-25-26J-441/obras/internal/gateway"
)

const notifyChannel = "obras_documents"

// Schema creates the documents table. It is idempotent.
const Schema = `
CREATE TABLE IF NOT EXISTS documents (
	app_id     TEXT        NOT NULL,
	owner_id   TEXT        NOT NULL,
	collection TEXT        NOT NULL,
	id         UUID        NOT NULL,
	fields     JSONB       NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	PRIMARY KEY (app_id, owner_id, collection, id)
);
`

type Store struct {
	pool  *pgxpool.Pool
	appID string

	mu       sync.Mutex
	watchers map[string]map[*watch]struct{}

	startMu  sync.Mutex
	listener *listener
}

func New(pool *pgxpool.Pool, appID string) *Store {
	return &Store{
		pool:     pool,
		appID:    appID,
		watchers: make(map[string]map[*watch]struct{}),
	}
}

// Migrate applies Schema.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("migrate documents: %w", err)
	}
	return nil
}

type notifyPayload struct {
	App        string `json:"app"`
	Owner      string `json:"owner"`
	Collection string `json:"collection"`
}

func (s *Store) payload(scope gateway.Scope) string {
	b, _ := json.Marshal(notifyPayload{App: s.appID, Owner: scope.OwnerID, Collection: scope.Collection})
	return string(b)
}

func (s *Store) Create(ctx context.Context, scope gateway.Scope, fields gateway.Fields) (string, error) {
	id := uuid.New().String()
	data, err := json.Marshal(fields)
	if err != nil {
		return "", fmt.Errorf("failed to marshal document: %w", err)
	}

	err = pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx,
			`INSERT INTO documents (app_id, owner_id, collection, id, fields) VALUES ($1, $2, $3, $4, $5)`,
			s.appID, scope.OwnerID, scope.Collection, id, data,
		); err != nil {
			return err
		}
		_, err := tx.Exec(ctx, `SELECT pg_notify($1, $2)`, notifyChannel, s.payload(scope))
		return err
	})
	if err != nil {
		return "", fmt.Errorf("failed to create document: %w", err)
	}
	return id, nil
}

func (s *Store) Update(ctx context.Context, scope gateway.Scope, id string, fields gateway.Fields) error {
	data, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("failed to marshal document: %w", err)
	}

	return s.write(ctx, scope, id, "update",
		`UPDATE documents SET fields = fields || $5::jsonb, updated_at = NOW()
		 WHERE app_id = $1 AND owner_id = $2 AND collection = $3 AND id = $4`,
		data,
	)
}

func (s *Store) Delete(ctx context.Context, scope gateway.Scope, id string) error {
	return s.write(ctx, scope, id, "delete",
		`DELETE FROM documents WHERE app_id = $1 AND owner_id = $2 AND collection = $3 AND id = $4`,
	)
}

func (s *Store) write(ctx context.Context, scope gateway.Scope, id, op, query string, extra ...any) error {
	if _, err := uuid.Parse(id); err != nil {
		return fmt.Errorf("%s %s/%s: %w", op, scope, id, gateway.ErrNotFound)
	}

	args := append([]any{s.appID, scope.OwnerID, scope.Collection, id}, extra...)
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, query, args...)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("%s %s/%s: %w", op, scope, id, gateway.ErrNotFound)
		}
		_, err = tx.Exec(ctx, `SELECT pg_notify($1, $2)`, notifyChannel, s.payload(scope))
		return err
	})
	if err != nil {
		if errors.Is(err, gateway.ErrNotFound) {
			return err
		}
		return fmt.Errorf("failed to %s document: %w", op, err)
	}
	return nil
}

// List returns the scope's documents ordered by q.
func (s *Store) List(ctx context.Context, scope gateway.Scope, q gateway.Query) ([]gateway.Document, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id::text, fields FROM documents WHERE app_id = $1 AND owner_id = $2 AND collection = $3`,
		s.appID, scope.OwnerID, scope.Collection,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	defer rows.Close()

	var docs []gateway.Document
	for rows.Next() {
		var id string
		var raw []byte
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		var f gateway.Fields
		if err := json.Unmarshal(raw, &f); err != nil {
			return nil, fmt.Errorf("failed to unmarshal document %s: %w", id, err)
		}
		docs = append(docs, gateway.Document{ID: id, Fields: f})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}

	gateway.SortDocuments(docs, q)
	return docs, nil
}

// Close stops the shared listener and breaks every watch.
func (s *Store) Close() error {
	s.startMu.Lock()
	l := s.listener
	s.listener = nil
	s.startMu.Unlock()

	if l != nil {
		l.stop()
	}
	s.failAll(gateway.ErrClosed)
	return nil
}

var _ gateway.DocumentStore = (*Store)(nil)
