package service

import (
	"fmt"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/simple"
	"github.com/blevesearch/bleve/v2/mapping"

	"github.com/FACorreiaa/fatura-tracker/internal/domain/invoice"
)

// searchDocument is the indexed projection of an invoice.
type searchDocument struct {
	NumeroFatura string `json:"numero_fatura"`
	NomeEmitente string `json:"nome_emitente"`
	NomeCliente  string `json:"nome_cliente"`
	Descricao    string `json:"descricao"`
	Categoria    string `json:"categoria"`
	Status       string `json:"status"`
}

// SearchHit is one search result with its relevance score.
type SearchHit struct {
	ID    string
	Score float64
}

// SearchIndex provides full-text search over invoices using an in-memory
// Bleve index. The store remains the source of truth; the index is rebuilt
// on startup and kept current on every mutation.
type SearchIndex struct {
	index   bleve.Index
	indexMu sync.RWMutex
}

// NewSearchIndex creates an empty in-memory index.
func NewSearchIndex() (*SearchIndex, error) {
	index, err := bleve.NewMemOnly(buildIndexMapping())
	if err != nil {
		return nil, fmt.Errorf("failed to create search index: %w", err)
	}
	return &SearchIndex{index: index}, nil
}

func buildIndexMapping() mapping.IndexMapping {
	textFieldMapping := bleve.NewTextFieldMapping()
	textFieldMapping.Analyzer = simple.Name

	keywordFieldMapping := bleve.NewTextFieldMapping()
	keywordFieldMapping.Analyzer = keyword.Name

	docMapping := bleve.NewDocumentMapping()
	docMapping.AddFieldMappingsAt("numero_fatura", keywordFieldMapping)
	docMapping.AddFieldMappingsAt("nome_emitente", textFieldMapping)
	docMapping.AddFieldMappingsAt("nome_cliente", textFieldMapping)
	docMapping.AddFieldMappingsAt("descricao", textFieldMapping)
	docMapping.AddFieldMappingsAt("categoria", keywordFieldMapping)
	docMapping.AddFieldMappingsAt("status", keywordFieldMapping)

	indexMapping := bleve.NewIndexMapping()
	indexMapping.DefaultMapping = docMapping
	indexMapping.DefaultAnalyzer = simple.Name
	return indexMapping
}

// Index adds or replaces one invoice in the index.
func (si *SearchIndex) Index(rec *invoice.Record) error {
	si.indexMu.Lock()
	defer si.indexMu.Unlock()

	if err := si.index.Index(rec.ID, toDocument(rec)); err != nil {
		return fmt.Errorf("failed to index invoice %s: %w", rec.ID, err)
	}
	return nil
}

// Remove deletes one invoice from the index.
func (si *SearchIndex) Remove(id string) error {
	si.indexMu.Lock()
	defer si.indexMu.Unlock()

	if err := si.index.Delete(id); err != nil {
		return fmt.Errorf("failed to remove invoice %s from index: %w", id, err)
	}
	return nil
}

// Rebuild replaces the index contents with the given invoices.
func (si *SearchIndex) Rebuild(records []*invoice.Record) error {
	si.indexMu.Lock()
	defer si.indexMu.Unlock()

	batch := si.index.NewBatch()
	for _, rec := range records {
		if err := batch.Index(rec.ID, toDocument(rec)); err != nil {
			return fmt.Errorf("failed to index invoice %s: %w", rec.ID, err)
		}
	}
	if err := si.index.Batch(batch); err != nil {
		return fmt.Errorf("failed to execute batch index: %w", err)
	}
	return nil
}

// Search runs a fuzzy full-text query and returns matching invoice IDs in
// relevance order.
func (si *SearchIndex) Search(query string, limit int) ([]SearchHit, error) {
	si.indexMu.RLock()
	defer si.indexMu.RUnlock()

	if limit <= 0 {
		limit = 10
	}

	matchQuery := bleve.NewMatchQuery(query)
	matchQuery.SetFuzziness(1)

	searchRequest := bleve.NewSearchRequest(matchQuery)
	searchRequest.Size = limit

	searchResults, err := si.index.Search(searchRequest)
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}

	hits := make([]SearchHit, 0, len(searchResults.Hits))
	for _, hit := range searchResults.Hits {
		hits = append(hits, SearchHit{ID: hit.ID, Score: hit.Score})
	}
	return hits, nil
}

// Close releases the index.
func (si *SearchIndex) Close() error {
	si.indexMu.Lock()
	defer si.indexMu.Unlock()
	return si.index.Close()
}

func toDocument(rec *invoice.Record) searchDocument {
	return searchDocument{
		NumeroFatura: rec.NumeroFatura,
		NomeEmitente: rec.NomeEmitente,
		NomeCliente:  rec.NomeCliente,
		Descricao:    rec.Descricao,
		Categoria:    rec.Categoria,
		Status:       string(rec.Status),
	}
}
