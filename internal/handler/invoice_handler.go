package handler

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/stfrancis-sis/enrollment-api/internal/models"
	"github.com/stfrancis-sis/enrollment-api/internal/service"
	appErrors "github.com/stfrancis-sis/enrollment-api/pkg/errors"
	"github.com/stfrancis-sis/enrollment-api/pkg/response"
)

// InvoiceHandler exposes invoice endpoints.
type InvoiceHandler struct {
	billing *service.BillingService
}

// NewInvoiceHandler constructs InvoiceHandler.
func NewInvoiceHandler(billing *service.BillingService) *InvoiceHandler {
	return &InvoiceHandler{billing: billing}
}

// List godoc
// @Summary List invoices
// @Tags Billing
// @Produce json
// @Param enrollmentId query string false "Filter by enrollment"
// @Param status query string false "Filter by status"
// @Param dueBefore query string false "Due before date (YYYY-MM-DD)"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /invoices [get]
func (h *InvoiceHandler) List(c *gin.Context) {
	var filter models.InvoiceFilter
	filter.EnrollmentID = c.Query("enrollmentId")
	filter.Status = models.InvoiceStatus(strings.ToUpper(c.Query("status")))
	if raw := c.Query("dueBefore"); raw != "" {
		if due, err := time.Parse("2006-01-02", raw); err == nil {
			filter.DueBefore = &due
		}
	}
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		filter.PageSize = size
	}
	filter.SortBy = c.Query("sort")
	filter.SortOrder = c.Query("order")

	invoices, pagination, err := h.billing.ListInvoices(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, invoices, pagination)
}

// Get godoc
// @Summary Get invoice with line items
// @Tags Billing
// @Produce json
// @Param id path string true "Invoice ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /invoices/{id} [get]
func (h *InvoiceHandler) Get(c *gin.Context) {
	invoice, items, err := h.billing.GetInvoice(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	detail := models.InvoiceDetail{Invoice: *invoice, Items: items}
	response.JSON(c, http.StatusOK, detail, nil)
}

// Issue godoc
// @Summary Issue an invoice for an enrollment
// @Description Idempotent: returns the existing invoice when one is already open
// @Tags Billing
// @Accept json
// @Produce json
// @Param payload body object true "Enrollment ID"
// @Success 201 {object} response.Envelope
// @Failure 412 {object} response.Envelope
// @Router /invoices [post]
func (h *InvoiceHandler) Issue(c *gin.Context) {
	var payload struct {
		EnrollmentID string `json:"enrollment_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "enrollment_id required"))
		return
	}
	invoice, err := h.billing.IssueInvoice(c.Request.Context(), payload.EnrollmentID, actorIDFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, invoice)
}

// Send godoc
// @Summary Send a draft invoice
// @Tags Billing
// @Produce json
// @Param id path string true "Invoice ID"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /invoices/{id}/send [put]
func (h *InvoiceHandler) Send(c *gin.Context) {
	invoice, err := h.billing.SendInvoice(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, invoice, nil)
}

// Cancel godoc
// @Summary Cancel an invoice
// @Tags Billing
// @Produce json
// @Param id path string true "Invoice ID"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /invoices/{id}/cancel [put]
func (h *InvoiceHandler) Cancel(c *gin.Context) {
	invoice, err := h.billing.CancelInvoice(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, invoice, nil)
}

// Statement godoc
// @Summary Download invoice statement PDF
// @Tags Billing
// @Produce application/pdf
// @Param id path string true "Invoice ID"
// @Param studentName query string false "Student name shown on the statement"
// @Success 200 {file} binary
// @Failure 404 {object} response.Envelope
// @Router /invoices/{id}/statement [get]
func (h *InvoiceHandler) Statement(c *gin.Context) {
	pdf, err := h.billing.RenderStatement(c.Request.Context(), c.Param("id"), c.Query("studentName"))
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=statement-%s.pdf", c.Param("id")))
	c.Data(http.StatusOK, "application/pdf", pdf)
}
