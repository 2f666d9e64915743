package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GoSim-25-26J-441/obras/internal/apperr"
	"github.com/GoSim-25-26J-441/obras/internal/eventloop"
	"github.com/GoSim-25-26J-441/obras/internal/gateway"
	"github.com/GoSim-25-26J-441/obras/internal/gateway/gatewaytest"
	"github.com/GoSim-25-26J-441/obras/internal/gateway/memory"
	"github.com/GoSim-25-26J-441/obras/internal/livequery"
	"github.com/GoSim-25-26J-441/obras/internal/receipts/domain"
	"github.com/GoSim-25-26J-441/obras/internal/receipts/repository"
)

type harness struct {
	t       *testing.T
	loop    *eventloop.Loop
	journal *gatewaytest.Journal
	docs    *gatewaytest.Docs
	reg     *Registry
}

func newHarness(t *testing.T, blobs gateway.BlobStore) *harness {
	t.Helper()
	loop := eventloop.New()
	journal := gatewaytest.NewJournal()
	docs := gatewaytest.NewDocs(memory.NewDocs(), journal)
	if blobs == nil {
		blobs = memory.NewBlobs("http://localhost:8080")
	}
	repo := repository.NewReceiptRepository(docs, gatewaytest.NewBlobs(blobs, journal))
	reg := NewRegistry(loop, repo, Options{
		Watch: livequery.Options{MinBackoff: time.Millisecond, MaxBackoff: 5 * time.Millisecond},
		Now:   func() time.Time { return time.UnixMilli(1700000000000) },
	})
	h := &harness{t: t, loop: loop, journal: journal, docs: docs, reg: reg}
	t.Cleanup(func() {
		h.onLoop(reg.Close)
		loop.Close()
	})
	h.onLoop(func() { reg.Subscribe("u1") })
	return h
}

func (h *harness) onLoop(fn func()) {
	h.t.Helper()
	require.NoError(h.t, h.loop.Do(context.Background(), fn))
}

func (h *harness) receipts() []domain.Receipt {
	var out []domain.Receipt
	h.onLoop(func() { out = h.reg.Receipts() })
	return out
}

func (h *harness) uploading() bool {
	var b bool
	h.onLoop(func() { b = h.reg.Uploading() })
	return b
}

func pdf(name string) *domain.File {
	return &domain.File{Name: name, ContentType: "application/pdf", Size: 3, Content: strings.NewReader("pdf")}
}

func TestRegistry_UploadOrder(t *testing.T) {
	h := newHarness(t, nil)

	require.NoError(t, h.reg.Upload(context.Background(), pdf("nota.pdf"), "obra-1"))

	writes := h.journal.Writes()
	require.Len(t, writes, 3)
	assert.Equal(t, "put", writes[0].Op)
	assert.Equal(t, "recibos/u1/1700000000000_nota.pdf", writes[0].Key)
	assert.Equal(t, "url", writes[1].Op)
	assert.Equal(t, "create", writes[2].Op)
	assert.Equal(t, "obra-1", writes[2].Fields[domain.FieldObraID])
	assert.Equal(t, "nota.pdf", writes[2].Fields[domain.FieldNome])
	assert.Equal(t, "http://localhost:8080/blobs/recibos/u1/1700000000000_nota.pdf", writes[2].Fields[domain.FieldURL])
	assert.False(t, h.uploading())

	require.Eventually(t, func() bool { return len(h.receipts()) == 1 }, time.Second, time.Millisecond)
	r := h.receipts()[0]
	assert.Equal(t, "obra-1", r.ObraID)
	assert.Equal(t, "nota.pdf", r.Nome)
}

func TestRegistry_UploadValidation(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	cases := []struct {
		name    string
		file    *domain.File
		project string
	}{
		{"no project", pdf("a.pdf"), ""},
		{"blank project", pdf("a.pdf"), "  "},
		{"no file", nil, "obra-1"},
		{"neither", nil, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := h.reg.Upload(ctx, tc.file, tc.project)
			assert.True(t, apperr.IsKind(err, apperr.KindValidation))
			assert.Equal(t, MsgSelectBoth, apperr.Message(err))
		})
	}
	assert.Empty(t, h.journal.Writes())
	assert.False(t, h.uploading())
}

func TestRegistry_UploadPutFailureLeavesNoRecord(t *testing.T) {
	h := newHarness(t, nil)
	h.journal.FailOn("put", errors.New("quota exceeded"))

	err := h.reg.Upload(context.Background(), pdf("a.pdf"), "obra-1")
	assert.Equal(t, MsgUploadFailed, apperr.Message(err))
	assert.Equal(t, []string{"put"}, h.journal.Ops("put", "url", "create"))
	assert.False(t, h.uploading())
}

func TestRegistry_UploadURLFailureLeavesNoRecord(t *testing.T) {
	h := newHarness(t, nil)
	h.journal.FailOn("url", errors.New("forbidden"))

	err := h.reg.Upload(context.Background(), pdf("a.pdf"), "obra-1")
	assert.Equal(t, MsgUploadFailed, apperr.Message(err))
	assert.Equal(t, []string{"put", "url"}, h.journal.Ops("put", "url", "create"))
	assert.False(t, h.uploading())
}

func TestRegistry_UploadRecordFailure(t *testing.T) {
	h := newHarness(t, nil)
	h.journal.FailOn("create", errors.New("unavailable"))

	err := h.reg.Upload(context.Background(), pdf("a.pdf"), "obra-1")
	assert.Equal(t, MsgUploadFailed, apperr.Message(err))
	assert.Equal(t, []string{"put", "url", "create"}, h.journal.Ops("put", "url", "create"))
	assert.False(t, h.uploading())
}

// slowBlobs blocks Put until released.
type slowBlobs struct {
	gateway.BlobStore
	entered chan struct{}
	release chan struct{}
}

func (s *slowBlobs) Put(ctx context.Context, key string, blob gateway.Blob) (gateway.Location, error) {
	close(s.entered)
	<-s.release
	return s.BlobStore.Put(ctx, key, blob)
}

func TestRegistry_UploadInFlight(t *testing.T) {
	slow := &slowBlobs{
		BlobStore: memory.NewBlobs("http://localhost:8080"),
		entered:   make(chan struct{}),
		release:   make(chan struct{}),
	}
	h := newHarness(t, slow)
	ctx := context.Background()

	done := make(chan error, 1)
	go func() { done <- h.reg.Upload(ctx, pdf("a.pdf"), "obra-1") }()
	<-slow.entered

	assert.True(t, h.uploading())
	err := h.reg.Upload(ctx, pdf("b.pdf"), "obra-1")
	assert.Equal(t, MsgUploadBusy, apperr.Message(err))

	close(slow.release)
	require.NoError(t, <-done)
	assert.False(t, h.uploading())
	assert.Len(t, h.journal.Ops("put"), 1)
}

func TestRegistry_UploadSignedOut(t *testing.T) {
	h := newHarness(t, nil)
	h.onLoop(func() { h.reg.Subscribe("") })

	err := h.reg.Upload(context.Background(), pdf("a.pdf"), "obra-1")
	assert.Equal(t, MsgUploadSignedOut, apperr.Message(err))
	assert.Empty(t, h.journal.Writes())
}

func TestRegistry_Delete(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	require.NoError(t, h.reg.Upload(ctx, pdf("a.pdf"), "obra-1"))
	require.Eventually(t, func() bool { return len(h.receipts()) == 1 }, time.Second, time.Millisecond)
	id := h.receipts()[0].ID
	h.journal.Reset()

	require.NoError(t, h.reg.Delete(ctx, id, false))
	assert.Empty(t, h.journal.Writes())

	require.NoError(t, h.reg.Delete(ctx, id, true))
	assert.Equal(t, []string{"delete"}, h.journal.Ops("delete", "put", "url", "create"))
	require.Eventually(t, func() bool { return len(h.receipts()) == 0 }, time.Second, time.Millisecond)

	h.journal.FailOn("delete", errors.New("boom"))
	err := h.reg.Delete(ctx, "other", true)
	assert.Equal(t, MsgDeleteFailed, apperr.Message(err))
}

func TestBlobKey(t *testing.T) {
	at := time.UnixMilli(42)
	assert.Equal(t, "recibos/u1/42_nota.pdf", domain.BlobKey("u1", at, "nota.pdf"))
	assert.Equal(t, "recibos/u1/42_nota.pdf", domain.BlobKey("u1", at, `C:\fakepath\nota.pdf`))
	assert.Equal(t, "recibos/u1/42_arquivo", domain.BlobKey("u1", at, ""))
}
