// Package handler exposes QR scanning, CSV import and SAF-T operations
// over HTTP.
package handler

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/FACorreiaa/fatura-tracker/internal/domain/ingest/service"
)

// maxUploadSize bounds SAF-T and CSV uploads.
const maxUploadSize = 32 << 20

// Response is the standard JSON envelope.
type Response struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

// IngestHandler serves the scan, CSV and SAF-T routes.
type IngestHandler struct {
	ingest *service.IngestService
	logger *slog.Logger
}

// NewIngestHandler creates the handler.
func NewIngestHandler(ingest *service.IngestService, logger *slog.Logger) *IngestHandler {
	return &IngestHandler{ingest: ingest, logger: logger}
}

// Register mounts the ingestion routes on the API group.
func (h *IngestHandler) Register(api *gin.RouterGroup) {
	scan := api.Group("/scan")
	{
		scan.POST("", h.Scan)
		scan.GET("/session", h.Session)
		scan.GET("/session/history", h.SessionHistory)
		scan.DELETE("/session", h.ResetSession)
	}

	saft := api.Group("/saft")
	{
		saft.POST("/extract", h.SAFTExtract)
		saft.POST("/validate", h.SAFTValidate)
		saft.POST("/header", h.SAFTHeader)
		saft.GET("/export", h.SAFTExport)
	}

	api.POST("/csv/import", h.CSVImport)
}

type scanRequest struct {
	Content string `json:"content" binding:"required"`
	Store   bool   `json:"store"`
}

// Scan handles POST /api/scan.
func (h *IngestHandler) Scan(c *gin.Context) {
	var req scanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.fail(c, http.StatusBadRequest, err)
		return
	}

	result, err := h.ingest.ScanQR(c.Request.Context(), req.Content, req.Store)
	if err != nil {
		h.fail(c, http.StatusInternalServerError, err)
		return
	}
	if !result.Detected {
		c.JSON(http.StatusUnprocessableEntity, Response{
			Success: false,
			Error:   "conteúdo não reconhecido como fatura AT",
			Data:    result,
		})
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: result})
}

// Session handles GET /api/scan/session.
func (h *IngestHandler) Session(c *gin.Context) {
	c.JSON(http.StatusOK, Response{Success: true, Data: h.ingest.Session()})
}

// SessionHistory handles GET /api/scan/session/history.
func (h *IngestHandler) SessionHistory(c *gin.Context) {
	c.JSON(http.StatusOK, Response{Success: true, Data: h.ingest.SessionHistory()})
}

// ResetSession handles DELETE /api/scan/session.
func (h *IngestHandler) ResetSession(c *gin.Context) {
	h.ingest.ResetSession()
	c.JSON(http.StatusOK, Response{Success: true, Message: "Sessão reiniciada"})
}

// SAFTExtract handles POST /api/saft/extract. Accepts the XML either as a
// multipart "file" field or as the raw request body; ?store=true persists
// the extracted invoices.
func (h *IngestHandler) SAFTExtract(c *gin.Context) {
	data, err := h.readUpload(c)
	if err != nil {
		h.fail(c, http.StatusBadRequest, err)
		return
	}

	result, err := h.ingest.ImportSAFT(c.Request.Context(), data, c.Query("store") == "true")
	if err != nil {
		h.fail(c, http.StatusUnprocessableEntity, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: result})
}

// SAFTValidate handles POST /api/saft/validate.
func (h *IngestHandler) SAFTValidate(c *gin.Context) {
	data, err := h.readUpload(c)
	if err != nil {
		h.fail(c, http.StatusBadRequest, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: h.ingest.ValidateSAFT(data)})
}

// SAFTHeader handles POST /api/saft/header.
func (h *IngestHandler) SAFTHeader(c *gin.Context) {
	data, err := h.readUpload(c)
	if err != nil {
		h.fail(c, http.StatusBadRequest, err)
		return
	}

	header, err := h.ingest.SAFTHeader(data)
	if err != nil {
		h.fail(c, http.StatusUnprocessableEntity, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: header})
}

// SAFTExport handles GET /api/saft/export.
func (h *IngestHandler) SAFTExport(c *gin.Context) {
	out, err := h.ingest.ExportSAFT(c.Request.Context())
	if err != nil {
		h.fail(c, http.StatusInternalServerError, err)
		return
	}

	filename := "saft-" + time.Now().Format("2006-01-02") + ".xml"
	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	c.Data(http.StatusOK, "application/xml; charset=utf-8", out)
}

// CSVImport handles POST /api/csv/import.
func (h *IngestHandler) CSVImport(c *gin.Context) {
	data, err := h.readUpload(c)
	if err != nil {
		h.fail(c, http.StatusBadRequest, err)
		return
	}

	result, err := h.ingest.ImportCSV(c.Request.Context(), data, c.Query("store") == "true")
	if err != nil {
		h.fail(c, http.StatusUnprocessableEntity, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: result})
}

// readUpload returns the multipart "file" field when present, the raw
// body otherwise.
func (h *IngestHandler) readUpload(c *gin.Context) ([]byte, error) {
	if file, err := c.FormFile("file"); err == nil {
		f, err := file.Open()
		if err != nil {
			return nil, err
		}
		defer f.Close()
		return io.ReadAll(io.LimitReader(f, maxUploadSize))
	}

	data, err := io.ReadAll(io.LimitReader(c.Request.Body, maxUploadSize))
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, errors.New("corpo do pedido vazio")
	}
	return data, nil
}

func (h *IngestHandler) fail(c *gin.Context, status int, err error) {
	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed",
			slog.String("path", c.FullPath()),
			slog.Any("error", err))
	}
	c.JSON(status, Response{Success: false, Error: err.Error()})
}
