// Package handler exposes invoice CRUD, search, stats and file exports
// over HTTP.
package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/FACorreiaa/fatura-tracker/internal/domain/ingest/csvparser"
	"github.com/FACorreiaa/fatura-tracker/internal/domain/ingest/qrparser"
	"github.com/FACorreiaa/fatura-tracker/internal/domain/invoice"
	"github.com/FACorreiaa/fatura-tracker/internal/domain/invoice/repository"
	"github.com/FACorreiaa/fatura-tracker/internal/domain/invoice/service"
)

// Response is the standard JSON envelope.
type Response struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

// InvoiceHandler serves the /api/faturas routes.
type InvoiceHandler struct {
	invoices *service.InvoiceService
	logger   *slog.Logger
}

// NewInvoiceHandler creates the handler.
func NewInvoiceHandler(invoices *service.InvoiceService, logger *slog.Logger) *InvoiceHandler {
	return &InvoiceHandler{invoices: invoices, logger: logger}
}

// Register mounts the invoice routes on the API group.
func (h *InvoiceHandler) Register(api *gin.RouterGroup) {
	faturas := api.Group("/faturas")
	{
		faturas.GET("", h.List)
		faturas.POST("", h.Create)
		faturas.GET("/stats", h.Stats)
		faturas.GET("/search", h.Search)
		faturas.GET("/export/csv", h.ExportCSV)
		faturas.GET("/export/excel", h.ExportExcel)
		faturas.GET("/numero/:numeroFatura", h.GetByNumero)
		faturas.GET("/:id", h.Get)
		faturas.PUT("/:id", h.Update)
		faturas.PATCH("/:id/status", h.UpdateStatus)
		faturas.DELETE("/:id", h.Delete)
	}
}

// List handles GET /api/faturas.
func (h *InvoiceHandler) List(c *gin.Context) {
	f := repository.Filter{
		Status:        c.Query("status"),
		NIFAdquirente: c.Query("nif"),
		DataInicio:    c.Query("dataInicio"),
		DataFim:       c.Query("dataFim"),
		SortBy:        c.Query("sortBy"),
		SortAsc:       c.Query("order") == "asc",
	}
	f.Page, _ = strconv.Atoi(c.Query("page"))
	f.Limit, _ = strconv.Atoi(c.Query("limit"))

	page, err := h.invoices.List(c.Request.Context(), f)
	if err != nil {
		h.fail(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: page})
}

// Get handles GET /api/faturas/:id.
func (h *InvoiceHandler) Get(c *gin.Context) {
	rec, err := h.invoices.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, statusFor(err), err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: rec})
}

// GetByNumero handles GET /api/faturas/numero/:numeroFatura.
func (h *InvoiceHandler) GetByNumero(c *gin.Context) {
	rec, err := h.invoices.GetByNumero(c.Request.Context(), c.Param("numeroFatura"))
	if err != nil {
		h.fail(c, statusFor(err), err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: rec})
}

// Create handles POST /api/faturas. The body carries the same partial
// fields as an update; everything else gets defaults.
func (h *InvoiceHandler) Create(c *gin.Context) {
	var in invoice.UpdateInput
	if err := c.ShouldBindJSON(&in); err != nil {
		h.fail(c, http.StatusBadRequest, err)
		return
	}

	rec := invoice.NewRecord(&qrparser.Fields{})
	in.Apply(rec)

	if err := h.invoices.Create(c.Request.Context(), rec); err != nil {
		h.fail(c, statusFor(err), err)
		return
	}
	c.JSON(http.StatusCreated, Response{Success: true, Message: "Fatura criada", Data: rec})
}

// Update handles PUT /api/faturas/:id.
func (h *InvoiceHandler) Update(c *gin.Context) {
	var in invoice.UpdateInput
	if err := c.ShouldBindJSON(&in); err != nil {
		h.fail(c, http.StatusBadRequest, err)
		return
	}

	rec, err := h.invoices.Update(c.Request.Context(), c.Param("id"), in)
	if err != nil {
		h.fail(c, statusFor(err), err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Message: "Fatura atualizada", Data: rec})
}

type statusRequest struct {
	Status invoice.Status `json:"status" binding:"required"`
}

// UpdateStatus handles PATCH /api/faturas/:id/status.
func (h *InvoiceHandler) UpdateStatus(c *gin.Context) {
	var req statusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.fail(c, http.StatusBadRequest, err)
		return
	}

	rec, err := h.invoices.UpdateStatus(c.Request.Context(), c.Param("id"), req.Status)
	if err != nil {
		h.fail(c, statusFor(err), err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Message: "Estado atualizado", Data: rec})
}

// Delete handles DELETE /api/faturas/:id.
func (h *InvoiceHandler) Delete(c *gin.Context) {
	if err := h.invoices.Delete(c.Request.Context(), c.Param("id")); err != nil {
		h.fail(c, statusFor(err), err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Message: "Fatura removida"})
}

// Stats handles GET /api/faturas/stats.
func (h *InvoiceHandler) Stats(c *gin.Context) {
	stats, err := h.invoices.Stats(c.Request.Context())
	if err != nil {
		h.fail(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: stats})
}

// Search handles GET /api/faturas/search?q=...&limit=...
func (h *InvoiceHandler) Search(c *gin.Context) {
	query := c.Query("q")
	if query == "" {
		h.fail(c, http.StatusBadRequest, errors.New("parâmetro q em falta"))
		return
	}
	limit, _ := strconv.Atoi(c.Query("limit"))

	results, err := h.invoices.Search(c.Request.Context(), query, limit)
	if err != nil {
		h.fail(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: results})
}

// ExportCSV handles GET /api/faturas/export/csv.
func (h *InvoiceHandler) ExportCSV(c *gin.Context) {
	records, err := h.invoices.ExportCSVRecords(c.Request.Context())
	if err != nil {
		h.fail(c, http.StatusInternalServerError, err)
		return
	}
	out, err := csvparser.Export(records)
	if err != nil {
		h.fail(c, http.StatusInternalServerError, err)
		return
	}

	filename := "faturas-" + time.Now().Format("2006-01-02") + ".csv"
	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	c.Data(http.StatusOK, "text/csv; charset=utf-8", out)
}

// ExportExcel handles GET /api/faturas/export/excel.
func (h *InvoiceHandler) ExportExcel(c *gin.Context) {
	records, err := h.invoices.ExportCSVRecords(c.Request.Context())
	if err != nil {
		h.fail(c, http.StatusInternalServerError, err)
		return
	}
	out, err := service.ExportExcel(records)
	if err != nil {
		h.fail(c, http.StatusInternalServerError, err)
		return
	}

	filename := "faturas-" + time.Now().Format("2006-01-02") + ".xlsx"
	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", out)
}

func (h *InvoiceHandler) fail(c *gin.Context, status int, err error) {
	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed",
			slog.String("path", c.FullPath()),
			slog.Any("error", err))
	}
	c.JSON(status, Response{Success: false, Error: err.Error()})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrInvalidStatus):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
