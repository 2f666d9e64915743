package domain

import (
	"strings"
	"time"

	"github.com/GoSim-25-26J-441/obras/internal/apperr"
	"github.com/GoSim-25-26J-441/obras/internal/gateway"
	"github.com/GoSim-25-26J-441/obras/internal/money"
)

// Collection is the per-user document collection holding projects.
const Collection = "obras"

const (
	FieldNome      = "nome"
	FieldValor     = "valor"
	FieldServicos  = "servicos"
	FieldVales     = "vales"
	FieldCreatedAt = "createdAt"
	FieldUpdatedAt = "updatedAt"
)

const (
	MsgNameRequired = "O nome da obra é obrigatório"
	MsgInvalidValue = "Valor inválido: "
)

// Project is one construction project ("obra") owned by a user.
type Project struct {
	ID        string
	Nome      string
	Valor     money.Amount
	Servicos  money.Amount
	Vales     money.Amount
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Form is the text of the project form as the user typed it.
type Form struct {
	Nome     string
	Valor    string
	Servicos string
	Vales    string
}

// Input is a validated form.
type Input struct {
	Nome     string
	Valor    money.Amount
	Servicos money.Amount
	Vales    money.Amount
}

// Validate checks the name and the three amounts. The name is kept as typed;
// empty amounts become "0".
func (f Form) Validate() (Input, error) {
	if strings.TrimSpace(f.Nome) == "" {
		return Input{}, apperr.Validation(MsgNameRequired)
	}

	in := Input{Nome: f.Nome}
	for _, fld := range []struct {
		text string
		dst  *money.Amount
	}{
		{f.Valor, &in.Valor},
		{f.Servicos, &in.Servicos},
		{f.Vales, &in.Vales},
	} {
		a, err := money.ParseAmount(fld.text)
		if err != nil {
			return Input{}, apperr.Validation(MsgInvalidValue + strings.TrimSpace(fld.text))
		}
		*fld.dst = a
	}
	return in, nil
}

// Fields returns the business fields of in plus updatedAt.
func (in Input) Fields(now time.Time) gateway.Fields {
	return gateway.Fields{
		FieldNome:      in.Nome,
		FieldValor:     in.Valor.Text,
		FieldServicos:  in.Servicos.Text,
		FieldVales:     in.Vales.Text,
		FieldUpdatedAt: now,
	}
}

func FromDocument(doc gateway.Document) Project {
	f := doc.Fields
	return Project{
		ID:        doc.ID,
		Nome:      f.String(FieldNome),
		Valor:     money.AmountFromValue(f[FieldValor]),
		Servicos:  money.AmountFromValue(f[FieldServicos]),
		Vales:     money.AmountFromValue(f[FieldVales]),
		CreatedAt: f.Time(FieldCreatedAt),
		UpdatedAt: f.Time(FieldUpdatedAt),
	}
}

// Form returns the record's values as form text for editing.
func (p Project) Form() Form {
	return Form{
		Nome:     p.Nome,
		Valor:    p.Valor.Text,
		Servicos: p.Servicos.Text,
		Vales:    p.Vales.Text,
	}
}
