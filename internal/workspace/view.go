package workspace

import (
	"context"

	"github.com/GoSim-25-26J-441/obras/internal/livequery"
	"github.com/GoSim-25-26J-441/obras/internal/money"
	projdomain "github.com/GoSim-25-26J-441/obras/internal/projects/domain"
)

type ProjectRow struct {
	ID       string
	Nome     string
	Valor    string
	Servicos string
	Vales    string
	Editing  bool
}

type ReceiptCard struct {
	ID        string
	Nome      string
	URL       string
	ObraNome  string
	ObraFound bool
}

// View is an immutable snapshot of everything the page shows.
type View struct {
	Checking      bool
	Authenticated bool
	UserEmail     string

	Banner     string
	AuthMode   AuthMode
	EmailInput string

	Form      projdomain.Form
	EditingID string
	Projects  []ProjectRow
	Total     string

	SelectedProject string
	Uploading       bool
	Receipts        []ReceiptCard

	Reconnecting bool
}

func (v View) Editing() bool {
	return v.EditingID != ""
}

// View snapshots the workspace on its loop.
func (w *Workspace) View(ctx context.Context) (View, error) {
	var v View
	err := w.do(ctx, func() { v = w.snapshot() })
	return v, err
}

func (w *Workspace) snapshot() View {
	v := View{
		Checking:   !w.session.Checked(),
		Banner:     w.banner,
		AuthMode:   w.mode,
		EmailInput: w.email,
	}
	id := w.session.Identity()
	if v.Checking || id == nil {
		return v
	}

	v.Authenticated = true
	v.UserEmail = id.Email
	v.Form = w.form
	v.EditingID = w.projects.EditingID()
	v.SelectedProject = w.selected
	v.Uploading = w.receipts.Uploading()
	v.Reconnecting = w.projects.Status() == livequery.Reconnecting ||
		w.receipts.Status() == livequery.Reconnecting

	projects := w.projects.Projects()
	v.Projects = make([]ProjectRow, 0, len(projects))
	var valores []money.Amount
	for _, p := range projects {
		v.Projects = append(v.Projects, ProjectRow{
			ID:       p.ID,
			Nome:     p.Nome,
			Valor:    money.FormatBRL(p.Valor.Value),
			Servicos: money.FormatBRL(p.Servicos.Value),
			Vales:    money.FormatBRL(p.Vales.Value),
			Editing:  p.ID == v.EditingID,
		})
		valores = append(valores, p.Valor)
	}
	v.Total = money.FormatBRL(money.Sum(valores...))

	receipts := w.receipts.Receipts()
	v.Receipts = make([]ReceiptCard, 0, len(receipts))
	for _, r := range receipts {
		card := ReceiptCard{ID: r.ID, Nome: r.Nome, URL: r.URL, ObraNome: MsgProjectNotFound}
		if p, ok := w.projects.Lookup(r.ObraID); ok {
			card.ObraNome = p.Nome
			card.ObraFound = true
		}
		v.Receipts = append(v.Receipts, card)
	}
	return v
}
