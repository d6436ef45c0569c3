package handler

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/stfrancis-sis/enrollment-api/internal/models"
	"github.com/stfrancis-sis/enrollment-api/internal/service"
	appErrors "github.com/stfrancis-sis/enrollment-api/pkg/errors"
	"github.com/stfrancis-sis/enrollment-api/pkg/response"
)

// ReceiptHandler exposes official receipt endpoints.
type ReceiptHandler struct {
	receipts *service.ReceiptService
}

// NewReceiptHandler constructs ReceiptHandler.
func NewReceiptHandler(receipts *service.ReceiptService) *ReceiptHandler {
	return &ReceiptHandler{receipts: receipts}
}

// List godoc
// @Summary List receipts
// @Tags Receipts
// @Produce json
// @Param invoiceId query string false "Filter by invoice"
// @Param from query string false "Issued on or after (YYYY-MM-DD)"
// @Param to query string false "Issued on or before (YYYY-MM-DD)"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /receipts [get]
func (h *ReceiptHandler) List(c *gin.Context) {
	var filter models.ReceiptFilter
	filter.InvoiceID = c.Query("invoiceId")
	if raw := c.Query("from"); raw != "" {
		if from, err := time.Parse("2006-01-02", raw); err == nil {
			filter.From = &from
		}
	}
	if raw := c.Query("to"); raw != "" {
		if to, err := time.Parse("2006-01-02", raw); err == nil {
			filter.To = &to
		}
	}
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		filter.PageSize = size
	}

	receipts, pagination, err := h.receipts.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, receipts, pagination)
}

// Get godoc
// @Summary Get receipt
// @Tags Receipts
// @Produce json
// @Param id path string true "Receipt ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /receipts/{id} [get]
func (h *ReceiptHandler) Get(c *gin.Context) {
	receipt, err := h.receipts.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, receipt, nil)
}

// Issue godoc
// @Summary Issue an official receipt
// @Tags Receipts
// @Accept json
// @Produce json
// @Param payload body service.IssueReceiptRequest true "Receipt payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /receipts [post]
func (h *ReceiptHandler) Issue(c *gin.Context) {
	var req service.IssueReceiptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	receipt, err := h.receipts.Issue(c.Request.Context(), req, actorIDFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, receipt)
}

// PDF godoc
// @Summary Download receipt PDF
// @Tags Receipts
// @Produce application/pdf
// @Param id path string true "Receipt ID"
// @Success 200 {file} binary
// @Failure 404 {object} response.Envelope
// @Router /receipts/{id}/pdf [get]
func (h *ReceiptHandler) PDF(c *gin.Context) {
	pdf, err := h.receipts.RenderPDF(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=receipt-%s.pdf", c.Param("id")))
	c.Data(http.StatusOK, "application/pdf", pdf)
}
