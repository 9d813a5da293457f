// Package repository provides invoice persistence. The JSON file store is
// the default backend; a PostgreSQL implementation is available for
// deployments that already run a database.
package repository

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"

	"github.com/FACorreiaa/fatura-tracker/internal/domain/invoice"
)

// ErrNotFound is returned when no invoice matches the given ID or number.
var ErrNotFound = errors.New("fatura não encontrada")

// Filter narrows and orders List results.
type Filter struct {
	Status        string
	NIFAdquirente string
	DataInicio    string // inclusive, on DataFatura (YYYY-MM-DD)
	DataFim       string // inclusive
	SortBy        string // createdAt (default), dataFatura, total, numeroFatura
	SortAsc       bool
	Page          int // 1-based, default 1
	Limit         int // default 20
}

// Page is one page of invoices plus pagination metadata.
type Page struct {
	Items      []*invoice.Record `json:"items"`
	Total      int               `json:"total"`
	Page       int               `json:"page"`
	Limit      int               `json:"limit"`
	TotalPages int               `json:"totalPages"`
	HasNext    bool              `json:"hasNext"`
	HasPrev    bool              `json:"hasPrev"`
}

// Stats aggregates the whole store.
type Stats struct {
	Total        int                    `json:"total"`
	PorStatus    map[invoice.Status]int `json:"porStatus"`
	ValorTotal   decimal.Decimal        `json:"valorTotal"`
	UltimaFatura *invoice.Record        `json:"ultimaFatura,omitempty"`
}

// InvoiceRepository is the persistence contract for invoices.
type InvoiceRepository interface {
	Create(ctx context.Context, rec *invoice.Record) error
	GetByID(ctx context.Context, id string) (*invoice.Record, error)
	GetByNumero(ctx context.Context, numero string) (*invoice.Record, error)
	List(ctx context.Context, f Filter) (*Page, error)
	All(ctx context.Context) ([]*invoice.Record, error)
	Update(ctx context.Context, id string, in invoice.UpdateInput) (*invoice.Record, error)
	UpdateStatus(ctx context.Context, id string, status invoice.Status) (*invoice.Record, error)
	Delete(ctx context.Context, id string) error
	Stats(ctx context.Context) (*Stats, error)
}

func (f *Filter) normalize() {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.Limit < 1 {
		f.Limit = 20
	}
	if f.SortBy == "" {
		f.SortBy = "createdAt"
	}
}
