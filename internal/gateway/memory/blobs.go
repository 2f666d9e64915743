package memory

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"
	"sync"

	"github.com/GoSim-25-26J-441/obras/internal/gateway"
)

type blob struct {
	data        []byte
	contentType string
}

// Blobs keeps uploaded files in memory. URLs point at baseURL + "/blobs/",
// which the web layer serves through Open.
type Blobs struct {
	mu      sync.RWMutex
	items   map[string]blob
	baseURL string
}

func NewBlobs(baseURL string) *Blobs {
	return &Blobs{
		items:   make(map[string]blob),
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

func (b *Blobs) Put(_ context.Context, key string, in gateway.Blob) (gateway.Location, error) {
	if key == "" {
		return "", fmt.Errorf("put blob: empty key")
	}
	data, err := io.ReadAll(in.Content)
	if err != nil {
		return "", fmt.Errorf("put blob %s: %w", key, err)
	}

	b.mu.Lock()
	b.items[key] = blob{data: data, contentType: in.ContentType}
	b.mu.Unlock()

	return gateway.Location(key), nil
}

func (b *Blobs) URL(_ context.Context, loc gateway.Location) (string, error) {
	key := string(loc)
	b.mu.RLock()
	_, ok := b.items[key]
	b.mu.RUnlock()
	if !ok {
		return "", fmt.Errorf("blob %s: %w", key, gateway.ErrNotFound)
	}

	parts := strings.Split(key, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return b.baseURL + "/blobs/" + strings.Join(parts, "/"), nil
}

func (b *Blobs) Open(key string) ([]byte, string, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	item, ok := b.items[key]
	if !ok {
		return nil, "", false
	}
	return item.data, item.contentType, true
}

var (
	_ gateway.BlobStore  = (*Blobs)(nil)
	_ gateway.BlobServer = (*Blobs)(nil)
)
