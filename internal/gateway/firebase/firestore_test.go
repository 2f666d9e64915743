package firebase

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GoSim-25-26J-441/obras/internal/gateway"
)

// setupEmulatorDocs connects to FIRESTORE_EMULATOR_HOST and skips the test
// when it is unset. Each test gets its own app id.
func setupEmulatorDocs(t *testing.T) *Docs {
	if os.Getenv("FIRESTORE_EMULATOR_HOST") == "" {
		t.Skip("FIRESTORE_EMULATOR_HOST not set, skipping Firestore integration test")
	}

	client, err := firestore.NewClient(context.Background(), "demo-obras")
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	return NewDocs(client, "test-"+uuid.NewString())
}

func TestDocs_CRUDAndWatch(t *testing.T) {
	docs := setupEmulatorDocs(t)
	ctx := context.Background()
	scope := gateway.Scope{OwnerID: "u1", Collection: "obras"}

	var mu sync.Mutex
	var last []gateway.Document
	got := 0
	sub, err := docs.Watch(ctx, scope, gateway.Query{OrderBy: "createdAt", Direction: gateway.Desc},
		func(d []gateway.Document) {
			mu.Lock()
			defer mu.Unlock()
			last = d
			got++
		},
		func(err error) { t.Errorf("unexpected watch error: %v", err) },
	)
	require.NoError(t, err)
	defer sub.Unsubscribe()

	snapshot := func() []gateway.Document {
		mu.Lock()
		defer mu.Unlock()
		return last
	}
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return got >= 1
	}, 5*time.Second, 20*time.Millisecond)

	created := time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC)
	older, err := docs.Create(ctx, scope, gateway.Fields{"nome": "Ponte", "valor": "10000", "createdAt": created, "updatedAt": created})
	require.NoError(t, err)
	newer, err := docs.Create(ctx, scope, gateway.Fields{"nome": "Escola", "valor": "500", "createdAt": created.Add(time.Hour), "updatedAt": created.Add(time.Hour)})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		s := snapshot()
		return len(s) == 2 && s[0].ID == newer && s[1].ID == older
	}, 5*time.Second, 20*time.Millisecond)

	require.NoError(t, docs.Update(ctx, scope, older, gateway.Fields{"valor": "12000", "updatedAt": created.Add(2 * time.Hour)}))
	require.Eventually(t, func() bool {
		s := snapshot()
		return len(s) == 2 && s[1].Fields.String("valor") == "12000"
	}, 5*time.Second, 20*time.Millisecond)

	s := snapshot()
	assert.Equal(t, "Ponte", s[1].Fields.String("nome"))
	assert.True(t, created.Equal(s[1].Fields.Time("createdAt")), "update keeps createdAt")

	t.Run("missing documents", func(t *testing.T) {
		assert.ErrorIs(t, docs.Update(ctx, scope, "missing", gateway.Fields{"valor": "1"}), gateway.ErrNotFound)
		assert.ErrorIs(t, docs.Delete(ctx, scope, "missing"), gateway.ErrNotFound)
	})

	require.NoError(t, docs.Delete(ctx, scope, newer))
	require.Eventually(t, func() bool {
		s := snapshot()
		return len(s) == 1 && s[0].ID == older
	}, 5*time.Second, 20*time.Millisecond)
}

func TestBlobs_UnsignedURL(t *testing.T) {
	b := NewBlobs(nil, "obras-bucket", false, 0)
	assert.Equal(t, defaultURLTTL, b.ttl)

	u, err := b.URL(context.Background(), "recibos/u1/1_nota.pdf")
	require.NoError(t, err)
	assert.Equal(t, "https://storage.googleapis.com/obras-bucket/recibos/u1/1_nota.pdf", u)

	assert.Equal(t, time.Hour, NewBlobs(nil, "b", true, time.Hour).ttl)
	assert.Equal(t, defaultURLTTL, NewBlobs(nil, "b", true, 30*24*time.Hour).ttl)
}
