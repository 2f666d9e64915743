package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/GoSim-25-26J-441/obras/internal/gateway"
	"github.com/GoSim-25-26J-441/obras/internal/livequery"
	"github.com/GoSim-25-26J-441/obras/internal/receipts/domain"
)

// ReceiptRepository stores receipt files and their metadata records
type ReceiptRepository struct {
	docs  gateway.DocumentStore
	blobs gateway.BlobStore
}

func NewReceiptRepository(docs gateway.DocumentStore, blobs gateway.BlobStore) *ReceiptRepository {
	return &ReceiptRepository{docs: docs, blobs: blobs}
}

func scope(ownerID string) gateway.Scope {
	return gateway.Scope{OwnerID: ownerID, Collection: domain.Collection}
}

// StoreFile uploads the file content and returns its retrievable URL.
func (r *ReceiptRepository) StoreFile(ctx context.Context, key string, file domain.File) (string, error) {
	loc, err := r.blobs.Put(ctx, key, gateway.Blob{
		Content:     file.Content,
		Size:        file.Size,
		ContentType: file.ContentType,
	})
	if err != nil {
		return "", fmt.Errorf("store receipt file: %w", err)
	}
	url, err := r.blobs.URL(ctx, loc)
	if err != nil {
		return "", fmt.Errorf("resolve receipt url: %w", err)
	}
	return url, nil
}

// CreateRecord writes the metadata record of an uploaded file.
func (r *ReceiptRepository) CreateRecord(ctx context.Context, ownerID, obraID, url, nome string, now time.Time) (string, error) {
	id, err := r.docs.Create(ctx, scope(ownerID), gateway.Fields{
		domain.FieldObraID:     obraID,
		domain.FieldURL:        url,
		domain.FieldNome:       nome,
		domain.FieldUploadedAt: now,
	})
	if err != nil {
		return "", fmt.Errorf("create receipt: %w", err)
	}
	return id, nil
}

// Delete removes the metadata record only; the file stays in the blob store.
func (r *ReceiptRepository) Delete(ctx context.Context, ownerID, id string) error {
	if err := r.docs.Delete(ctx, scope(ownerID), id); err != nil {
		return fmt.Errorf("delete receipt %s: %w", id, err)
	}
	return nil
}

// Follow keeps the owner's receipts, newest upload first, flowing into onReceipts.
func (r *ReceiptRepository) Follow(ownerID string, onReceipts func([]domain.Receipt), onStatus func(livequery.Status), opts livequery.Options) *livequery.Handle {
	q := gateway.Query{OrderBy: domain.FieldUploadedAt, Direction: gateway.Desc}
	return livequery.Follow(r.docs, scope(ownerID), q, func(docs []gateway.Document) {
		out := make([]domain.Receipt, 0, len(docs))
		for _, d := range docs {
			out = append(out, domain.FromDocument(d))
		}
		onReceipts(out)
	}, onStatus, opts)
}
