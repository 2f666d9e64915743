package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/GoSim-25-26J-441/obras/internal/gateway"
	"github.com/GoSim-25-26J-441/obras/internal/livequery"
	"github.com/GoSim-25-26J-441/obras/internal/projects/domain"
)

// ProjectRepository provides persistence operations for projects
type ProjectRepository struct {
	docs gateway.DocumentStore
}

// NewProjectRepository creates a new project repository
func NewProjectRepository(docs gateway.DocumentStore) *ProjectRepository {
	return &ProjectRepository{docs: docs}
}

func scope(ownerID string) gateway.Scope {
	return gateway.Scope{OwnerID: ownerID, Collection: domain.Collection}
}

// Create inserts a project with createdAt equal to updatedAt.
func (r *ProjectRepository) Create(ctx context.Context, ownerID string, in domain.Input, now time.Time) (string, error) {
	fields := in.Fields(now)
	fields[domain.FieldCreatedAt] = now
	id, err := r.docs.Create(ctx, scope(ownerID), fields)
	if err != nil {
		return "", fmt.Errorf("create project: %w", err)
	}
	return id, nil
}

// Update rewrites the business fields and updatedAt; createdAt is kept.
func (r *ProjectRepository) Update(ctx context.Context, ownerID, id string, in domain.Input, now time.Time) error {
	if err := r.docs.Update(ctx, scope(ownerID), id, in.Fields(now)); err != nil {
		return fmt.Errorf("update project %s: %w", id, err)
	}
	return nil
}

func (r *ProjectRepository) Delete(ctx context.Context, ownerID, id string) error {
	if err := r.docs.Delete(ctx, scope(ownerID), id); err != nil {
		return fmt.Errorf("delete project %s: %w", id, err)
	}
	return nil
}

// Follow keeps the owner's projects, newest first, flowing into onProjects.
func (r *ProjectRepository) Follow(ownerID string, onProjects func([]domain.Project), onStatus func(livequery.Status), opts livequery.Options) *livequery.Handle {
	q := gateway.Query{OrderBy: domain.FieldCreatedAt, Direction: gateway.Desc}
	return livequery.Follow(r.docs, scope(ownerID), q, func(docs []gateway.Document) {
		out := make([]domain.Project, 0, len(docs))
		for _, d := range docs {
			out = append(out, domain.FromDocument(d))
		}
		onProjects(out)
	}, onStatus, opts)
}
