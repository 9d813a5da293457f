package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ingesthandler "github.com/FACorreiaa/fatura-tracker/internal/domain/ingest/handler"
	ingestsvc "github.com/FACorreiaa/fatura-tracker/internal/domain/ingest/service"
	invoicehandler "github.com/FACorreiaa/fatura-tracker/internal/domain/invoice/handler"
	"github.com/FACorreiaa/fatura-tracker/internal/domain/invoice/repository"
	invoicesvc "github.com/FACorreiaa/fatura-tracker/internal/domain/invoice/service"
	"github.com/FACorreiaa/fatura-tracker/pkg/config"
)

const sampleQR = "A:516562240*B:123456789*C:PT*D:FT*F:20251002*G:FT 2025/001234*N:230.00*O:1230.00"

func newTestServer(t *testing.T) *Server {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	repo, err := repository.NewJSONFileRepository(filepath.Join(t.TempDir(), "faturas.json"), logger)
	require.NoError(t, err)

	invoices, err := invoicesvc.NewInvoiceService(context.Background(), repo, logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = invoices.Close() })

	ingest := ingestsvc.NewIngestService(invoices, logger)

	return NewServer(
		config.ServerConfig{Host: "127.0.0.1", Port: 0, RateLimitPerSecond: 1000, RateLimitBurst: 1000},
		invoicehandler.NewInvoiceHandler(invoices, logger),
		ingesthandler.NewIngestHandler(ingest, logger),
		false,
		logger,
	)
}

func doJSON(t *testing.T, s *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	s.Router().ServeHTTP(w, req)
	return w
}

func envelope(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)

	w := doJSON(t, s, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"ok"`)
}

func TestScanAndListFlow(t *testing.T) {
	s := newTestServer(t)

	w := doJSON(t, s, http.MethodPost, "/api/scan", map[string]any{"content": sampleQR, "store": true})
	require.Equal(t, http.StatusOK, w.Code)

	body := envelope(t, w)
	require.Equal(t, true, body["success"])
	data := body["data"].(map[string]any)
	assert.Equal(t, true, data["detected"])

	record := data["record"].(map[string]any)
	id := record["id"].(string)
	assert.Equal(t, "FT 2025/001234", record["numeroFatura"])

	// Listing shows the stored invoice.
	w = doJSON(t, s, http.MethodGet, "/api/faturas", nil)
	require.Equal(t, http.StatusOK, w.Code)
	page := envelope(t, w)["data"].(map[string]any)
	assert.EqualValues(t, 1, page["total"])

	// Fetch by ID.
	w = doJSON(t, s, http.MethodGet, "/api/faturas/"+id, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	// Status transition.
	w = doJSON(t, s, http.MethodPatch, "/api/faturas/"+id+"/status", map[string]any{"status": "paid"})
	require.Equal(t, http.StatusOK, w.Code)
	updated := envelope(t, w)["data"].(map[string]any)
	assert.Equal(t, "paid", updated["status"])

	// Unknown status rejected.
	w = doJSON(t, s, http.MethodPatch, "/api/faturas/"+id+"/status", map[string]any{"status": "bogus"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// Session counters moved.
	w = doJSON(t, s, http.MethodGet, "/api/scan/session", nil)
	session := envelope(t, w)["data"].(map[string]any)
	assert.EqualValues(t, 1, session["parsed"])
}

func TestScanRejectsNonInvoice(t *testing.T) {
	s := newTestServer(t)

	w := doJSON(t, s, http.MethodPost, "/api/scan", map[string]any{"content": "https://example.com"})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestCreateUpdateDelete(t *testing.T) {
	s := newTestServer(t)

	w := doJSON(t, s, http.MethodPost, "/api/faturas", map[string]any{
		"numeroFatura": "FT 9",
		"total":        "50.00",
		"status":       "draft",
	})
	require.Equal(t, http.StatusCreated, w.Code)
	rec := envelope(t, w)["data"].(map[string]any)
	id := rec["id"].(string)
	assert.Equal(t, "draft", rec["status"])

	w = doJSON(t, s, http.MethodPut, "/api/faturas/"+id, map[string]any{"descricao": "material de escritório"})
	require.Equal(t, http.StatusOK, w.Code)
	rec = envelope(t, w)["data"].(map[string]any)
	assert.Equal(t, "material de escritório", rec["descricao"])

	// Document numbers with slashes travel escaped; plain ones hit the
	// numero route directly.
	w = doJSON(t, s, http.MethodGet, "/api/faturas/numero/FT%209", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, s, http.MethodDelete, "/api/faturas/"+id, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, s, http.MethodGet, "/api/faturas/"+id, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestStatsAndSearch(t *testing.T) {
	s := newTestServer(t)

	w := doJSON(t, s, http.MethodPost, "/api/scan", map[string]any{"content": sampleQR, "store": true})
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, s, http.MethodGet, "/api/faturas/stats", nil)
	require.Equal(t, http.StatusOK, w.Code)
	stats := envelope(t, w)["data"].(map[string]any)
	assert.EqualValues(t, 1, stats["total"])
	assert.Contains(t, stats["valorTotalFormatado"], "1,230.00")

	w = doJSON(t, s, http.MethodGet, "/api/faturas/search?q=AreLuna", nil)
	require.Equal(t, http.StatusOK, w.Code)
	results := envelope(t, w)["data"].([]any)
	assert.Len(t, results, 1)

	w = doJSON(t, s, http.MethodGet, "/api/faturas/search", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCSVImportEndpoint(t *testing.T) {
	s := newTestServer(t)

	csv := "Numero,Data,Cliente,NIF,Valor\nFT 1,2025-01-01,ACME,501442600,100"
	req := httptest.NewRequest(http.MethodPost, "/api/csv/import?store=true", strings.NewReader(csv))
	w := httptest.NewRecorder()
	s.Router().ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	data := envelope(t, w)["data"].(map[string]any)
	assert.EqualValues(t, 1, data["stored"])
}

func TestSAFTValidateEndpoint(t *testing.T) {
	s := newTestServer(t)

	xml := `<?xml version="1.0"?><AuditFile><Header><AuditFileVersion>1.04_01</AuditFileVersion></Header><SourceDocuments/></AuditFile>`
	req := httptest.NewRequest(http.MethodPost, "/api/saft/validate", strings.NewReader(xml))
	w := httptest.NewRecorder()
	s.Router().ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	data := envelope(t, w)["data"].(map[string]any)
	assert.Equal(t, true, data["valid"])
}

func TestExportEndpoints(t *testing.T) {
	s := newTestServer(t)

	w := doJSON(t, s, http.MethodPost, "/api/scan", map[string]any{"content": sampleQR, "store": true})
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, s, http.MethodGet, "/api/faturas/export/csv", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Disposition"), "attachment")
	assert.Contains(t, w.Body.String(), "FT 2025/001234")

	w = doJSON(t, s, http.MethodGet, "/api/saft/export", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "<InvoiceNo>FT 2025/001234</InvoiceNo>")

	w = doJSON(t, s, http.MethodGet, "/api/faturas/export/excel", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Body.Bytes())
}

func TestRateLimit(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	repo, err := repository.NewJSONFileRepository(filepath.Join(t.TempDir(), "faturas.json"), logger)
	require.NoError(t, err)

	invoices, err := invoicesvc.NewInvoiceService(context.Background(), repo, logger)
	require.NoError(t, err)
	defer invoices.Close()

	s := NewServer(
		config.ServerConfig{RateLimitPerSecond: 1, RateLimitBurst: 2},
		invoicehandler.NewInvoiceHandler(invoices, logger),
		ingesthandler.NewIngestHandler(ingestsvc.NewIngestService(invoices, logger), logger),
		false,
		logger,
	)

	codes := make([]int, 0, 4)
	for range 4 {
		w := doJSON(t, s, http.MethodGet, "/health", nil)
		codes = append(codes, w.Code)
	}
	assert.Contains(t, codes, http.StatusTooManyRequests)
}
