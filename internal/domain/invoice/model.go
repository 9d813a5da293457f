// Package invoice holds the invoice domain model and the enrichment rules
// applied to freshly scanned documents.
package invoice

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/FACorreiaa/fatura-tracker/internal/domain/ingest/qrparser"
)

// Status is the processing state of a stored invoice.
type Status string

const (
	StatusPending   Status = "pending"
	StatusProcessed Status = "processed"
	StatusPaid      Status = "paid"
	StatusDraft     Status = "draft"
)

// Valid reports whether s is one of the known states.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusProcessed, StatusPaid, StatusDraft:
		return true
	}
	return false
}

// Record is a stored invoice. Monetary values stay as the strings captured
// at ingestion; arithmetic happens in the service layer via pkg/ptnum.
type Record struct {
	ID             string `json:"id"`
	NumeroFatura   string `json:"numeroFatura,omitempty"`
	NomeCliente    string `json:"nomeCliente,omitempty"`
	NomeEmitente   string `json:"nomeEmitente,omitempty"`
	NIFEmitente    string `json:"nifEmitente,omitempty"`
	NIFAdquirente  string `json:"nifAdquirente,omitempty"`
	PaisEmitente   string `json:"paisEmitente,omitempty"`
	PaisAdquirente string `json:"paisAdquirente,omitempty"`

	DataFatura     string `json:"dataFatura,omitempty"`
	DataVencimento string `json:"dataVencimento,omitempty"`

	TipoDocumento   string `json:"tipoDocumento,omitempty"`
	CodigoDocumento string `json:"codigoDocumento,omitempty"`

	Total          string `json:"total,omitempty"`
	TotalIVA       string `json:"totalIVA,omitempty"`
	BaseTributavel string `json:"baseTributavel,omitempty"`
	Moeda          string `json:"moeda,omitempty"`

	IBAN           string `json:"iban,omitempty"`
	LinhaDigitavel string `json:"linhaDigitavel,omitempty"`
	Descricao      string `json:"descricao,omitempty"`
	Categoria      string `json:"categoria,omitempty"`

	RawQRContent string `json:"rawQRContent,omitempty"`

	Status    Status    `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// NewRecord creates a pending invoice from parsed QR fields, filling
// defaults the payload does not carry.
func NewRecord(f *qrparser.Fields) *Record {
	now := time.Now().UTC()
	r := &Record{
		ID:              fmt.Sprintf("INV-%s", uuid.New()),
		NumeroFatura:    f.NumeroDocumento,
		NomeEmitente:    f.NomeEmitente,
		NIFEmitente:     f.NIFEmitente,
		NIFAdquirente:   f.NIFAdquirente,
		PaisEmitente:    f.PaisEmitente,
		PaisAdquirente:  f.PaisAdquirente,
		DataFatura:      f.DataFatura,
		TipoDocumento:   f.TipoDocumento,
		CodigoDocumento: f.CodigoDocumento,
		Total:           f.Total,
		TotalIVA:        f.TotalIVA,
		BaseTributavel:  f.BaseTributavel,
		Moeda:           f.Moeda,
		IBAN:            f.IBAN,
		Descricao:       f.Descricao,
		RawQRContent:    f.RawContent,
		Status:          StatusPending,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if r.Moeda == "" {
		r.Moeda = "EUR"
	}
	return r
}

// UpdateInput carries a partial update; nil fields are left untouched.
// ID and CreatedAt are immutable by construction.
type UpdateInput struct {
	NumeroFatura   *string `json:"numeroFatura,omitempty"`
	NomeCliente    *string `json:"nomeCliente,omitempty"`
	NomeEmitente   *string `json:"nomeEmitente,omitempty"`
	NIFEmitente    *string `json:"nifEmitente,omitempty"`
	NIFAdquirente  *string `json:"nifAdquirente,omitempty"`
	DataFatura     *string `json:"dataFatura,omitempty"`
	DataVencimento *string `json:"dataVencimento,omitempty"`
	TipoDocumento  *string `json:"tipoDocumento,omitempty"`
	Total          *string `json:"total,omitempty"`
	TotalIVA       *string `json:"totalIVA,omitempty"`
	BaseTributavel *string `json:"baseTributavel,omitempty"`
	Moeda          *string `json:"moeda,omitempty"`
	IBAN           *string `json:"iban,omitempty"`
	LinhaDigitavel *string `json:"linhaDigitavel,omitempty"`
	Descricao      *string `json:"descricao,omitempty"`
	Categoria      *string `json:"categoria,omitempty"`
	Status         *Status `json:"status,omitempty"`
}

// Apply copies the set fields onto r and touches UpdatedAt.
func (in UpdateInput) Apply(r *Record) {
	set := func(dst *string, src *string) {
		if src != nil {
			*dst = *src
		}
	}
	set(&r.NumeroFatura, in.NumeroFatura)
	set(&r.NomeCliente, in.NomeCliente)
	set(&r.NomeEmitente, in.NomeEmitente)
	set(&r.NIFEmitente, in.NIFEmitente)
	set(&r.NIFAdquirente, in.NIFAdquirente)
	set(&r.DataFatura, in.DataFatura)
	set(&r.DataVencimento, in.DataVencimento)
	set(&r.TipoDocumento, in.TipoDocumento)
	set(&r.Total, in.Total)
	set(&r.TotalIVA, in.TotalIVA)
	set(&r.BaseTributavel, in.BaseTributavel)
	set(&r.Moeda, in.Moeda)
	set(&r.IBAN, in.IBAN)
	set(&r.LinhaDigitavel, in.LinhaDigitavel)
	set(&r.Descricao, in.Descricao)
	set(&r.Categoria, in.Categoria)
	if in.Status != nil {
		r.Status = *in.Status
	}
	r.UpdatedAt = time.Now().UTC()
}
