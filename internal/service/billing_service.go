package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/stfrancis-sis/enrollment-api/internal/events"
	"github.com/stfrancis-sis/enrollment-api/internal/models"
	appErrors "github.com/stfrancis-sis/enrollment-api/pkg/errors"
	"github.com/stfrancis-sis/enrollment-api/pkg/export"
)

type invoiceRepository interface {
	FindByID(ctx context.Context, id string) (*models.Invoice, error)
	FindByEnrollment(ctx context.Context, enrollmentID string) (*models.Invoice, error)
	ListItems(ctx context.Context, invoiceID string) ([]models.InvoiceItem, error)
	Create(ctx context.Context, invoice *models.Invoice, items []models.InvoiceItem) error
	UpdateReconciliation(ctx context.Context, invoice *models.Invoice) error
	UpdateStatus(ctx context.Context, id string, status models.InvoiceStatus) error
	List(ctx context.Context, filter models.InvoiceFilter) ([]models.InvoiceDetail, int, error)
}

type paymentStore interface {
	FindByID(ctx context.Context, id string) (*models.Payment, error)
	ListByInvoice(ctx context.Context, invoiceID string) ([]models.Payment, error)
	SumByInvoice(ctx context.Context, invoiceID string) (float64, error)
	Create(ctx context.Context, payment *models.Payment) error
	Update(ctx context.Context, payment *models.Payment) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, filter models.PaymentFilter) ([]models.Payment, int, error)
}

type billingEnrollmentStore interface {
	FindByID(ctx context.Context, id string) (*models.Enrollment, error)
	UpdatePaymentState(ctx context.Context, id string, status models.PaymentStatus, amountPaid, balance float64) error
}

type statementRenderer interface {
	RenderStatement(doc export.StatementDocument) ([]byte, error)
}

// RecordPaymentRequest captures a remittance posted by a cashier.
type RecordPaymentRequest struct {
	Amount    float64 `json:"amount" validate:"required,gt=0"`
	Method    string  `json:"method" validate:"required"`
	Reference string  `json:"reference"`
	PaidOn    string  `json:"paid_on"`
	Notes     string  `json:"notes" validate:"max=500"`
}

// UpdatePaymentRequest corrects a previously recorded payment.
type UpdatePaymentRequest struct {
	Amount float64 `json:"amount" validate:"required,gt=0"`
	Method string  `json:"method" validate:"required"`
	PaidOn string  `json:"paid_on"`
	Notes  string  `json:"notes" validate:"max=500"`
}

// BillingService issues invoices and keeps invoice and enrollment payment
// state consistent with the recorded payments. Reconciliation is a stateless
// recompute from the live payment sum, safe to run any number of times.
type BillingService struct {
	invoices         invoiceRepository
	payments         paymentStore
	enrollments      billingEnrollmentStore
	pdf              statementRenderer
	sink             events.Sink
	validator        *validator.Validate
	logger           *zap.Logger
	defaultDueDays   int
	allowOverpayment bool
}

// NewBillingService constructs BillingService.
func NewBillingService(invoices invoiceRepository, payments paymentStore, enrollments billingEnrollmentStore, pdf statementRenderer, sink events.Sink, validate *validator.Validate, logger *zap.Logger, defaultDueDays int, allowOverpayment bool) *BillingService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if sink == nil {
		sink = events.NopSink{}
	}
	if defaultDueDays <= 0 {
		defaultDueDays = 30
	}
	return &BillingService{
		invoices:         invoices,
		payments:         payments,
		enrollments:      enrollments,
		pdf:              pdf,
		sink:             sink,
		validator:        validate,
		logger:           logger,
		defaultDueDays:   defaultDueDays,
		allowOverpayment: allowOverpayment,
	}
}

// roundCents normalises a money amount to two decimal places so that float
// accumulation noise never flips a status comparison.
func roundCents(amount float64) float64 {
	return math.Round(amount*100) / 100
}

// IssueInvoice creates a DRAFT invoice from the fee breakdown stamped on the
// enrollment. It is idempotent: an existing non-cancelled invoice for the
// enrollment is returned as is.
func (s *BillingService) IssueInvoice(ctx context.Context, enrollmentID string, actorID *string) (*models.Invoice, error) {
	if existing, err := s.invoices.FindByEnrollment(ctx, enrollmentID); err == nil {
		return existing, nil
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to look up invoice")
	}

	enrollment, err := s.enrollments.FindByID(ctx, enrollmentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}

	items := invoiceItemsFor(enrollment)
	if len(items) == 0 {
		return nil, appErrors.Clone(appErrors.ErrInvoiceEmpty,
			fmt.Sprintf("enrollment %s has no billable fees", enrollment.Code))
	}

	var total float64
	for _, item := range items {
		total += item.Amount
	}
	total = roundCents(total)

	now := time.Now().UTC()
	invoice := &models.Invoice{
		EnrollmentID: enrollment.ID,
		Total:        total,
		AmountPaid:   0,
		Balance:      total,
		Status:       models.InvoiceStatusDraft,
		IssueDate:    now,
		DueDate:      now.AddDate(0, 0, s.defaultDueDays),
	}
	if err := s.invoices.Create(ctx, invoice, items); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create invoice")
	}

	s.sink.Emit(ctx, events.Event{
		Type:    events.TypeInvoiceIssued,
		ActorID: actorID,
		Invoice: invoice,
	})
	return invoice, nil
}

func invoiceItemsFor(enrollment *models.Enrollment) []models.InvoiceItem {
	components := []struct {
		description string
		amount      float64
	}{
		{"Tuition Fee", enrollment.TuitionFee},
		{"Miscellaneous Fee", enrollment.MiscFee},
		{"Other Fees", enrollment.OtherFee},
	}

	var items []models.InvoiceItem
	for _, c := range components {
		if c.amount <= 0 {
			continue
		}
		items = append(items, models.InvoiceItem{
			Description: fmt.Sprintf("%s - %s (%s)", c.description, enrollment.GradeLevel, enrollment.Code),
			Quantity:    1,
			UnitPrice:   roundCents(c.amount),
			Amount:      roundCents(c.amount),
		})
	}
	return items
}

// SendInvoice marks a DRAFT invoice as SENT, making it payable.
func (s *BillingService) SendInvoice(ctx context.Context, id string) (*models.Invoice, error) {
	invoice, err := s.getInvoice(ctx, id)
	if err != nil {
		return nil, err
	}
	if invoice.Status != models.InvoiceStatusDraft {
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition,
			fmt.Sprintf("only draft invoices can be sent, invoice is %s", invoice.Status))
	}
	if err := s.invoices.UpdateStatus(ctx, invoice.ID, models.InvoiceStatusSent); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to send invoice")
	}
	invoice.Status = models.InvoiceStatusSent
	return invoice, nil
}

// CancelInvoice voids an invoice. Fully paid invoices cannot be cancelled.
func (s *BillingService) CancelInvoice(ctx context.Context, id string) (*models.Invoice, error) {
	invoice, err := s.getInvoice(ctx, id)
	if err != nil {
		return nil, err
	}
	if invoice.Status == models.InvoiceStatusPaid {
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition, "paid invoices cannot be cancelled")
	}
	if invoice.Status == models.InvoiceStatusCancelled {
		return invoice, nil
	}
	if err := s.invoices.UpdateStatus(ctx, invoice.ID, models.InvoiceStatusCancelled); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to cancel invoice")
	}
	invoice.Status = models.InvoiceStatusCancelled
	return invoice, nil
}

// RecordPayment posts a remittance against an invoice and reconciles.
func (s *BillingService) RecordPayment(ctx context.Context, invoiceID string, req RecordPaymentRequest, actorID *string) (*models.Payment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payment payload")
	}
	method := models.PaymentMethod(strings.ToUpper(req.Method))
	if !method.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown payment method %q", req.Method))
	}

	invoice, err := s.getInvoice(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	if invoice.Status.IsClosed() {
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition,
			fmt.Sprintf("invoice %s accepts no further payments", invoice.Code))
	}

	items, err := s.invoices.ListItems(ctx, invoice.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load invoice items")
	}
	if len(items) == 0 {
		return nil, appErrors.Clone(appErrors.ErrInvoiceEmpty,
			fmt.Sprintf("invoice %s has no line items", invoice.Code))
	}

	amount := roundCents(req.Amount)
	if !s.allowOverpayment {
		paid, err := s.payments.SumByInvoice(ctx, invoice.ID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sum payments")
		}
		if roundCents(paid+amount) > invoice.Total {
			return nil, appErrors.Clone(appErrors.ErrValidation,
				fmt.Sprintf("payment of %.2f would exceed the invoice balance of %.2f", amount, roundCents(invoice.Total-paid)))
		}
	}

	paidOn, err := parsePaidOn(req.PaidOn)
	if err != nil {
		return nil, err
	}

	payment := &models.Payment{
		InvoiceID:  invoice.ID,
		Reference:  strings.TrimSpace(req.Reference),
		Amount:     amount,
		Method:     method,
		PaidOn:     paidOn,
		Notes:      strings.TrimSpace(req.Notes),
		ReceivedBy: actorID,
	}
	if err := s.payments.Create(ctx, payment); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record payment")
	}

	if _, err := s.Recompute(ctx, invoice.ID, actorID); err != nil {
		return nil, err
	}

	s.sink.Emit(ctx, events.Event{
		Type:    events.TypePaymentRecorded,
		ActorID: actorID,
		Payment: payment,
		Invoice: invoice,
	})
	return payment, nil
}

// UpdatePayment corrects a recorded payment and reconciles.
func (s *BillingService) UpdatePayment(ctx context.Context, id string, req UpdatePaymentRequest, actorID *string) (*models.Payment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payment payload")
	}
	method := models.PaymentMethod(strings.ToUpper(req.Method))
	if !method.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown payment method %q", req.Method))
	}

	payment, err := s.getPayment(ctx, id)
	if err != nil {
		return nil, err
	}
	paidOn := payment.PaidOn
	if req.PaidOn != "" {
		if paidOn, err = parsePaidOn(req.PaidOn); err != nil {
			return nil, err
		}
	}

	payment.Amount = roundCents(req.Amount)
	payment.Method = method
	payment.PaidOn = paidOn
	payment.Notes = strings.TrimSpace(req.Notes)
	if err := s.payments.Update(ctx, payment); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update payment")
	}

	if _, err := s.Recompute(ctx, payment.InvoiceID, actorID); err != nil {
		return nil, err
	}

	s.sink.Emit(ctx, events.Event{
		Type:    events.TypePaymentUpdated,
		ActorID: actorID,
		Payment: payment,
	})
	return payment, nil
}

// DeletePayment reverses a recorded payment and reconciles, restoring the
// invoice balance the payment had settled.
func (s *BillingService) DeletePayment(ctx context.Context, id string, actorID *string) error {
	payment, err := s.getPayment(ctx, id)
	if err != nil {
		return err
	}
	if err := s.payments.Delete(ctx, payment.ID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete payment")
	}

	if _, err := s.Recompute(ctx, payment.InvoiceID, actorID); err != nil {
		return err
	}

	s.sink.Emit(ctx, events.Event{
		Type:    events.TypePaymentReversed,
		ActorID: actorID,
		Payment: payment,
	})
	return nil
}

// Recompute derives the invoice's paid amount, balance and status from the
// live payment sum and cascades the result onto the owning enrollment.
// Cancelled invoices are left untouched. paid_at is stamped only on the
// first transition into PAID and cleared when the invoice leaves PAID.
func (s *BillingService) Recompute(ctx context.Context, invoiceID string, actorID *string) (*models.Invoice, error) {
	invoice, err := s.getInvoice(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	if invoice.Status == models.InvoiceStatusCancelled {
		return invoice, nil
	}

	paid, err := s.payments.SumByInvoice(ctx, invoice.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sum payments")
	}
	paid = roundCents(paid)
	balance := roundCents(invoice.Total - paid)

	previous := invoice.Status
	status := previous
	switch {
	case paid >= invoice.Total && invoice.Total > 0:
		status = models.InvoiceStatusPaid
	case paid > 0:
		status = models.InvoiceStatusPartiallyPaid
	default:
		// Every payment reversed: return to the payable state rather
		// than pretending the invoice was never sent.
		if previous == models.InvoiceStatusPaid || previous == models.InvoiceStatusPartiallyPaid {
			status = models.InvoiceStatusSent
		}
	}

	invoice.AmountPaid = paid
	invoice.Balance = balance
	invoice.Status = status
	if status == models.InvoiceStatusPaid {
		if invoice.PaidAt == nil {
			now := time.Now().UTC()
			invoice.PaidAt = &now
		}
	} else {
		invoice.PaidAt = nil
	}
	if err := s.invoices.UpdateReconciliation(ctx, invoice); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reconcile invoice")
	}

	if err := s.cascadeEnrollment(ctx, invoice, paid, balance); err != nil {
		return nil, err
	}

	if status == models.InvoiceStatusPaid && previous != models.InvoiceStatusPaid {
		enrollment, err := s.enrollments.FindByID(ctx, invoice.EnrollmentID)
		if err != nil {
			s.logger.Error("failed to load enrollment for fully paid event",
				zap.String("invoice_id", invoice.ID),
				zap.Error(err))
		}
		s.sink.Emit(ctx, events.Event{
			Type:       events.TypeInvoiceFullyPaid,
			ActorID:    actorID,
			Invoice:    invoice,
			Enrollment: enrollment,
		})
	}
	return invoice, nil
}

func (s *BillingService) cascadeEnrollment(ctx context.Context, invoice *models.Invoice, paid, balance float64) error {
	status := models.PaymentStatusPending
	switch {
	case paid >= invoice.Total && invoice.Total > 0:
		status = models.PaymentStatusPaid
	case paid > 0:
		status = models.PaymentStatusPartial
	}
	if err := s.enrollments.UpdatePaymentState(ctx, invoice.EnrollmentID, status, paid, balance); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update enrollment payment state")
	}
	return nil
}

// GetInvoice returns an invoice with its line items.
func (s *BillingService) GetInvoice(ctx context.Context, id string) (*models.Invoice, []models.InvoiceItem, error) {
	invoice, err := s.getInvoice(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	items, err := s.invoices.ListItems(ctx, invoice.ID)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load invoice items")
	}
	return invoice, items, nil
}

// ListInvoices returns invoices with pagination metadata.
func (s *BillingService) ListInvoices(ctx context.Context, filter models.InvoiceFilter) ([]models.InvoiceDetail, *models.Pagination, error) {
	invoices, total, err := s.invoices.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list invoices")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	return invoices, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// ListPayments returns payments with pagination metadata.
func (s *BillingService) ListPayments(ctx context.Context, filter models.PaymentFilter) ([]models.Payment, *models.Pagination, error) {
	payments, total, err := s.payments.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list payments")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	return payments, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

const exportPageSize = 100

// ExportPayments renders the filtered payments as a CSV collection report.
func (s *BillingService) ExportPayments(ctx context.Context, filter models.PaymentFilter) ([]byte, error) {
	var rows []map[string]string
	for page := 1; ; page++ {
		filter.Page = page
		filter.PageSize = exportPageSize
		payments, _, err := s.payments.List(ctx, filter)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list payments")
		}
		for _, p := range payments {
			rows = append(rows, map[string]string{
				"reference":  p.Reference,
				"invoice_id": p.InvoiceID,
				"amount":     fmt.Sprintf("%.2f", p.Amount),
				"method":     string(p.Method),
				"paid_on":    p.PaidOn.Format("2006-01-02"),
				"notes":      p.Notes,
			})
		}
		if len(payments) < exportPageSize {
			break
		}
	}

	csv, err := export.NewCSVExporter().Render(export.Dataset{
		Headers: []string{"reference", "invoice_id", "amount", "method", "paid_on", "notes"},
		Rows:    rows,
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render payment export")
	}
	return csv, nil
}

// RenderStatement produces a statement-of-account PDF for an invoice.
func (s *BillingService) RenderStatement(ctx context.Context, id, studentName string) ([]byte, error) {
	invoice, items, err := s.GetInvoice(ctx, id)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, appErrors.Clone(appErrors.ErrInvoiceEmpty,
			fmt.Sprintf("invoice %s has no line items", invoice.Code))
	}

	lines := make([]export.StatementLine, 0, len(items))
	for _, item := range items {
		lines = append(lines, export.StatementLine{
			Description: item.Description,
			Quantity:    item.Quantity,
			UnitPrice:   item.UnitPrice,
			Amount:      item.Amount,
		})
	}

	doc := export.StatementDocument{
		Code:        invoice.Code,
		StudentName: studentName,
		IssueDate:   invoice.IssueDate,
		DueDate:     invoice.DueDate,
		Lines:       lines,
		Total:       invoice.Total,
		AmountPaid:  invoice.AmountPaid,
		Balance:     invoice.Balance,
	}
	pdf, err := s.pdf.RenderStatement(doc)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render statement")
	}
	return pdf, nil
}

func (s *BillingService) getInvoice(ctx context.Context, id string) (*models.Invoice, error) {
	invoice, err := s.invoices.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "invoice not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load invoice")
	}
	return invoice, nil
}

func (s *BillingService) getPayment(ctx context.Context, id string) (*models.Payment, error) {
	payment, err := s.payments.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "payment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load payment")
	}
	return payment, nil
}

func parsePaidOn(raw string) (time.Time, error) {
	if raw == "" {
		return time.Now().UTC(), nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, appErrors.Clone(appErrors.ErrValidation,
		fmt.Sprintf("paid_on %q is not a valid date", raw))
}
