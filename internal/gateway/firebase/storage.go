package firebase

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"cloud.google.com/go/storage"

	"github.com/GoSim-25-26J-441/obras/internal/gateway"
)

const defaultURLTTL = 7 * 24 * time.Hour // V4 signatures cannot outlive a week

type Blobs struct {
	bucket     *storage.BucketHandle
	bucketName string
	signed     bool
	ttl        time.Duration
}

func NewBlobs(bucket *storage.BucketHandle, bucketName string, signed bool, ttl time.Duration) *Blobs {
	if ttl <= 0 || ttl > defaultURLTTL {
		ttl = defaultURLTTL
	}
	return &Blobs{bucket: bucket, bucketName: bucketName, signed: signed, ttl: ttl}
}

func (b *Blobs) Put(ctx context.Context, key string, blob gateway.Blob) (gateway.Location, error) {
	w := b.bucket.Object(key).NewWriter(ctx)
	w.ContentType = blob.ContentType

	if _, err := io.Copy(w, blob.Content); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("failed to upload %s: %w", key, err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("failed to upload %s: %w", key, err)
	}
	return gateway.Location(key), nil
}

func (b *Blobs) URL(_ context.Context, loc gateway.Location) (string, error) {
	key := string(loc)
	if !b.signed {
		return PublicURL(b.bucketName, key), nil
	}

	u, err := b.bucket.SignedURL(key, &storage.SignedURLOptions{
		Scheme:  storage.SigningSchemeV4,
		Method:  http.MethodGet,
		Expires: time.Now().Add(b.ttl),
	})
	if err != nil {
		return "", fmt.Errorf("failed to sign url for %s: %w", key, err)
	}
	return u, nil
}

// PublicURL is the unauthenticated URL of an object in a public bucket.
func PublicURL(bucket, key string) string {
	parts := strings.Split(key, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return "https://storage.googleapis.com/" + bucket + "/" + strings.Join(parts, "/")
}

var _ gateway.BlobStore = (*Blobs)(nil)
