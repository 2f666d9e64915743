package workspace

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/GoSim-25-26J-441/obras/internal/gateway"
	"github.com/GoSim-25-26J-441/obras/internal/gateway/gatewaytest"
	"github.com/GoSim-25-26J-441/obras/internal/gateway/memory"
	"github.com/GoSim-25-26J-441/obras/internal/livequery"
	projdomain "github.com/GoSim-25-26J-441/obras/internal/projects/domain"
	recdomain "github.com/GoSim-25-26J-441/obras/internal/receipts/domain"
	recsvc "github.com/GoSim-25-26J-441/obras/internal/receipts/service"
)

type fixture struct {
	journal *gatewaytest.Journal
	docs    *gatewaytest.Docs
	deps    Deps
}

func newFixture() *fixture {
	journal := gatewaytest.NewJournal()
	docs := gatewaytest.NewDocs(memory.NewDocs(), journal)
	backend := &gateway.Backend{
		Name:  "test",
		Auth:  memory.NewAuth().WithCost(bcrypt.MinCost),
		Docs:  docs,
		Blobs: gatewaytest.NewBlobs(memory.NewBlobs("http://localhost"), journal),
	}
	return &fixture{
		journal: journal,
		docs:    docs,
		deps: Deps{
			Backend: backend,
			Watch:   livequery.Options{MinBackoff: time.Millisecond, MaxBackoff: 5 * time.Millisecond},
		},
	}
}

func newWorkspace(t *testing.T, f *fixture) *Workspace {
	t.Helper()
	w := New("ws-test", f.deps)
	t.Cleanup(w.Close)
	select {
	case <-w.Ready():
	case <-time.After(time.Second):
		t.Fatal("session check never completed")
	}
	return w
}

func view(t *testing.T, w *Workspace) View {
	t.Helper()
	v, err := w.View(context.Background())
	require.NoError(t, err)
	return v
}

func waitView(t *testing.T, w *Workspace, cond func(View) bool) View {
	t.Helper()
	var v View
	require.Eventually(t, func() bool {
		v = view(t, w)
		return cond(v)
	}, time.Second, time.Millisecond)
	return v
}

func TestWorkspace_PonteScenario(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	w := newWorkspace(t, f)

	v := view(t, w)
	assert.False(t, v.Checking)
	assert.False(t, v.Authenticated)

	require.NoError(t, w.SignUp(ctx, "a@b.com", "secret1"))
	v = view(t, w)
	require.True(t, v.Authenticated)
	assert.Equal(t, "a@b.com", v.UserEmail)

	require.NoError(t, w.SaveProject(ctx, projdomain.Form{Nome: "Ponte", Valor: "10000", Servicos: "2000", Vales: "500"}))
	v = waitView(t, w, func(v View) bool { return len(v.Projects) == 1 })
	p := v.Projects[0]
	assert.NotEmpty(t, p.ID)
	assert.Equal(t, "Ponte", p.Nome)
	assert.Equal(t, "R$ 10.000,00", p.Valor)
	assert.Equal(t, "R$ 2.000,00", p.Servicos)
	assert.Equal(t, "R$ 500,00", p.Vales)
	assert.Equal(t, projdomain.Form{}, v.Form, "a successful save clears the form")

	require.NoError(t, w.EditProject(ctx, p.ID))
	v = view(t, w)
	assert.Equal(t, p.ID, v.EditingID)
	assert.Equal(t, projdomain.Form{Nome: "Ponte", Valor: "10000", Servicos: "2000", Vales: "500"}, v.Form)

	f.journal.Reset()
	form := v.Form
	form.Valor = "12000"
	require.NoError(t, w.SaveProject(ctx, form))
	assert.Equal(t, []string{"update"}, f.journal.Ops("create", "update", "delete"))
	assert.Equal(t, p.ID, f.journal.Writes()[0].ID)

	v = waitView(t, w, func(v View) bool {
		return len(v.Projects) == 1 && v.Projects[0].Valor == "R$ 12.000,00"
	})
	assert.Equal(t, p.ID, v.Projects[0].ID)
	assert.Equal(t, "R$ 2.000,00", v.Projects[0].Servicos)
	assert.Equal(t, "R$ 500,00", v.Projects[0].Vales)
	assert.False(t, v.Editing())

	f.journal.Reset()
	require.NoError(t, w.DeleteProject(ctx, p.ID, false))
	assert.Empty(t, f.journal.Writes())
	require.NoError(t, w.DeleteProject(ctx, p.ID, true))
	assert.Equal(t, []string{"delete"}, f.journal.Ops("create", "update", "delete"))

	waitView(t, w, func(v View) bool { return len(v.Projects) == 0 })
}

func TestWorkspace_UploadWithoutProject(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	w := newWorkspace(t, f)
	require.NoError(t, w.SignUp(ctx, "a@b.com", "secret1"))
	f.journal.Reset()

	file := &recdomain.File{Name: "nota.pdf", Content: strings.NewReader("x")}
	err := w.UploadReceipt(ctx, file, "")
	require.Error(t, err)
	assert.Equal(t, recsvc.MsgSelectBoth, view(t, w).Banner)
	assert.Empty(t, f.journal.Writes())

	// The next attempted action clears the banner.
	require.NoError(t, w.CancelEdit(ctx))
	assert.Empty(t, view(t, w).Banner)
}

func TestWorkspace_OrphanedReceipt(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	w := newWorkspace(t, f)
	require.NoError(t, w.SignUp(ctx, "a@b.com", "secret1"))

	require.NoError(t, w.SaveProject(ctx, projdomain.Form{Nome: "Casa"}))
	id := waitView(t, w, func(v View) bool { return len(v.Projects) == 1 }).Projects[0].ID

	file := &recdomain.File{Name: "nota.pdf", ContentType: "application/pdf", Content: strings.NewReader("x")}
	require.NoError(t, w.UploadReceipt(ctx, file, id))
	v := waitView(t, w, func(v View) bool { return len(v.Receipts) == 1 })
	assert.Equal(t, "Casa", v.Receipts[0].ObraNome)
	assert.True(t, v.Receipts[0].ObraFound)
	assert.False(t, v.Uploading)

	require.NoError(t, w.DeleteProject(ctx, id, true))
	v = waitView(t, w, func(v View) bool { return len(v.Projects) == 0 })
	require.Len(t, v.Receipts, 1, "receipts of a deleted project are kept")
	assert.Equal(t, MsgProjectNotFound, v.Receipts[0].ObraNome)
	assert.False(t, v.Receipts[0].ObraFound)
}

func TestWorkspace_FailuresShowBanner(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	w := newWorkspace(t, f)

	err := w.SignIn(ctx, "a@b.com", "secret1")
	require.Error(t, err)
	v := view(t, w)
	assert.Equal(t, "E-mail ou senha incorretos.", v.Banner)
	assert.Equal(t, "a@b.com", v.EmailInput)
	assert.False(t, v.Authenticated)

	require.NoError(t, w.SignUp(ctx, "a@b.com", "secret1"))
	assert.Empty(t, view(t, w).Banner)

	f.journal.FailOn("create", errors.New("unavailable"))
	form := projdomain.Form{Nome: "Ponte", Valor: "1"}
	require.Error(t, w.SaveProject(ctx, form))
	v = view(t, w)
	assert.Equal(t, "Não foi possível salvar a obra. Tente novamente.", v.Banner)
	assert.Equal(t, form, v.Form, "typed text survives a failed save")

	require.Error(t, w.SaveProject(ctx, projdomain.Form{Nome: "  "}))
	assert.Equal(t, projdomain.MsgNameRequired, view(t, w).Banner)
}

func TestWorkspace_SignOutReleasesWatches(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	w := newWorkspace(t, f)

	require.NoError(t, w.SignUp(ctx, "a@b.com", "secret1"))
	require.Eventually(t, func() bool { return f.docs.OpenWatches() == 2 }, time.Second, time.Millisecond)
	require.NoError(t, w.SaveProject(ctx, projdomain.Form{Nome: "Ponte"}))
	waitView(t, w, func(v View) bool { return len(v.Projects) == 1 })

	require.NoError(t, w.SignOut(ctx))
	v := view(t, w)
	assert.False(t, v.Authenticated)
	assert.Empty(t, v.Projects)
	assert.Zero(t, f.docs.OpenWatches())

	require.NoError(t, w.SignIn(ctx, "a@b.com", "secret1"))
	waitView(t, w, func(v View) bool { return len(v.Projects) == 1 })

	w.Close()
	w.Close()
	assert.Zero(t, f.docs.OpenWatches())
}

func TestWorkspace_AuthModeAndListeners(t *testing.T) {
	ctx := context.Background()
	w := newWorkspace(t, newFixture())

	var mu sync.Mutex
	calls := 0
	cancel := w.OnChange(func() {
		mu.Lock()
		calls++
		mu.Unlock()
	})
	assert.Equal(t, 1, w.Watchers())

	require.NoError(t, w.SetAuthMode(ctx, ModeSignup))
	assert.Equal(t, ModeSignup, view(t, w).AuthMode)
	require.NoError(t, w.SetAuthMode(ctx, "bogus"))
	assert.Equal(t, ModeLogin, view(t, w).AuthMode)

	mu.Lock()
	assert.GreaterOrEqual(t, calls, 2)
	mu.Unlock()

	cancel()
	cancel()
	assert.Zero(t, w.Watchers())
}
