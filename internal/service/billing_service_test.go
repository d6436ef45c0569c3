package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/stfrancis-sis/enrollment-api/internal/events"
	"github.com/stfrancis-sis/enrollment-api/internal/models"
	appErrors "github.com/stfrancis-sis/enrollment-api/pkg/errors"
	"github.com/stfrancis-sis/enrollment-api/pkg/export"
)

type mockInvoiceRepo struct {
	invoice    *models.Invoice
	byEnroll   *models.Invoice
	items      []models.InvoiceItem
	created    *models.Invoice
	reconciled *models.Invoice
	newStatus  models.InvoiceStatus
}

func (m *mockInvoiceRepo) FindByID(ctx context.Context, id string) (*models.Invoice, error) {
	if m.invoice == nil {
		return nil, sql.ErrNoRows
	}
	copy := *m.invoice
	return &copy, nil
}

func (m *mockInvoiceRepo) FindByEnrollment(ctx context.Context, enrollmentID string) (*models.Invoice, error) {
	if m.byEnroll == nil {
		return nil, sql.ErrNoRows
	}
	return m.byEnroll, nil
}

func (m *mockInvoiceRepo) ListItems(ctx context.Context, invoiceID string) ([]models.InvoiceItem, error) {
	return m.items, nil
}

func (m *mockInvoiceRepo) Create(ctx context.Context, invoice *models.Invoice, items []models.InvoiceItem) error {
	invoice.ID = "inv-new"
	invoice.Code = "INV-2025-000042"
	m.created = invoice
	m.items = items
	return nil
}

func (m *mockInvoiceRepo) UpdateReconciliation(ctx context.Context, invoice *models.Invoice) error {
	m.reconciled = invoice
	m.invoice = invoice
	return nil
}

func (m *mockInvoiceRepo) UpdateStatus(ctx context.Context, id string, status models.InvoiceStatus) error {
	m.newStatus = status
	if m.invoice != nil {
		m.invoice.Status = status
	}
	return nil
}

func (m *mockInvoiceRepo) List(ctx context.Context, filter models.InvoiceFilter) ([]models.InvoiceDetail, int, error) {
	return nil, 0, nil
}

type mockPaymentStore struct {
	payment *models.Payment
	listed  []models.Payment
	sum     float64
	created *models.Payment
	updated *models.Payment
	deleted string
}

func (m *mockPaymentStore) FindByID(ctx context.Context, id string) (*models.Payment, error) {
	if m.payment == nil {
		return nil, sql.ErrNoRows
	}
	copy := *m.payment
	return &copy, nil
}

func (m *mockPaymentStore) ListByInvoice(ctx context.Context, invoiceID string) ([]models.Payment, error) {
	return nil, nil
}

func (m *mockPaymentStore) SumByInvoice(ctx context.Context, invoiceID string) (float64, error) {
	return m.sum, nil
}

func (m *mockPaymentStore) Create(ctx context.Context, payment *models.Payment) error {
	payment.ID = "pay-new"
	m.created = payment
	m.sum += payment.Amount
	return nil
}

func (m *mockPaymentStore) Update(ctx context.Context, payment *models.Payment) error {
	m.updated = payment
	return nil
}

func (m *mockPaymentStore) Delete(ctx context.Context, id string) error {
	m.deleted = id
	return nil
}

func (m *mockPaymentStore) List(ctx context.Context, filter models.PaymentFilter) ([]models.Payment, int, error) {
	if filter.Page > 1 {
		return nil, len(m.listed), nil
	}
	return m.listed, len(m.listed), nil
}

type mockBillingEnrollments struct {
	enrollment *models.Enrollment
	cascaded   bool
	status     models.PaymentStatus
	amountPaid float64
	balance    float64
}

func (m *mockBillingEnrollments) FindByID(ctx context.Context, id string) (*models.Enrollment, error) {
	if m.enrollment == nil {
		return nil, sql.ErrNoRows
	}
	return m.enrollment, nil
}

func (m *mockBillingEnrollments) UpdatePaymentState(ctx context.Context, id string, status models.PaymentStatus, amountPaid, balance float64) error {
	m.cascaded = true
	m.status = status
	m.amountPaid = amountPaid
	m.balance = balance
	return nil
}

type nopRenderer struct{}

func (nopRenderer) RenderStatement(doc export.StatementDocument) ([]byte, error) {
	return []byte("%PDF-1.4"), nil
}

func newBillingService(invoices *mockInvoiceRepo, payments *mockPaymentStore, enrollments *mockBillingEnrollments, sink *capturingSink, allowOverpayment bool) *BillingService {
	return NewBillingService(invoices, payments, enrollments, nopRenderer{}, sink, validator.New(), zap.NewNop(), 15, allowOverpayment)
}

func sentInvoice(total float64) *models.Invoice {
	return &models.Invoice{
		ID:           "inv-1",
		Code:         "INV-2025-000001",
		EnrollmentID: "enr-1",
		Total:        total,
		Balance:      total,
		Status:       models.InvoiceStatusSent,
		IssueDate:    time.Now().UTC(),
		DueDate:      time.Now().UTC().AddDate(0, 0, 15),
	}
}

func tuitionItem(amount float64) models.InvoiceItem {
	return models.InvoiceItem{ID: "item-1", InvoiceID: "inv-1", Description: "Tuition Fee - Grade 3 (ENR-2025-000001)", Quantity: 1, UnitPrice: amount, Amount: amount}
}

func TestIssueInvoiceBuildsItemsFromFees(t *testing.T) {
	invoices := &mockInvoiceRepo{}
	enrollments := &mockBillingEnrollments{enrollment: &models.Enrollment{
		ID: "enr-1", Code: "ENR-2025-000001", GradeLevel: "Grade 3",
		TuitionFee: 25000, MiscFee: 5000, OtherFee: 0,
	}}
	sink := &capturingSink{}
	svc := newBillingService(invoices, &mockPaymentStore{}, enrollments, sink, false)

	invoice, err := svc.IssueInvoice(context.Background(), "enr-1", nil)
	require.NoError(t, err)

	assert.Equal(t, models.InvoiceStatusDraft, invoice.Status)
	assert.Equal(t, 30000.0, invoice.Total)
	assert.Equal(t, 30000.0, invoice.Balance)
	assert.Equal(t, invoice.IssueDate.AddDate(0, 0, 15), invoice.DueDate)

	// The zero "Other Fees" component is skipped.
	require.Len(t, invoices.items, 2)
	assert.Contains(t, invoices.items[0].Description, "Tuition Fee")
	assert.Contains(t, invoices.items[1].Description, "Miscellaneous Fee")

	require.Len(t, sink.events, 1)
	assert.Equal(t, events.TypeInvoiceIssued, sink.events[0].Type)
}

func TestIssueInvoiceIdempotent(t *testing.T) {
	existing := sentInvoice(30000)
	invoices := &mockInvoiceRepo{byEnroll: existing}
	sink := &capturingSink{}
	svc := newBillingService(invoices, &mockPaymentStore{}, &mockBillingEnrollments{}, sink, false)

	invoice, err := svc.IssueInvoice(context.Background(), "enr-1", nil)
	require.NoError(t, err)
	assert.Equal(t, existing.ID, invoice.ID)
	assert.Nil(t, invoices.created)
	assert.Empty(t, sink.events)
}

func TestIssueInvoiceEmptyFees(t *testing.T) {
	enrollments := &mockBillingEnrollments{enrollment: &models.Enrollment{ID: "enr-1", Code: "ENR-2025-000001"}}
	svc := newBillingService(&mockInvoiceRepo{}, &mockPaymentStore{}, enrollments, &capturingSink{}, false)

	_, err := svc.IssueInvoice(context.Background(), "enr-1", nil)
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrInvoiceEmpty.Code, appErr.Code)
}

func TestSendInvoiceDraftOnly(t *testing.T) {
	invoice := sentInvoice(30000)
	invoice.Status = models.InvoiceStatusDraft
	invoices := &mockInvoiceRepo{invoice: invoice}
	svc := newBillingService(invoices, &mockPaymentStore{}, &mockBillingEnrollments{}, &capturingSink{}, false)

	sent, err := svc.SendInvoice(context.Background(), "inv-1")
	require.NoError(t, err)
	assert.Equal(t, models.InvoiceStatusSent, sent.Status)

	_, err = svc.SendInvoice(context.Background(), "inv-1")
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrInvalidTransition.Code, appErr.Code)
}

func TestCancelInvoicePaidBlocked(t *testing.T) {
	invoice := sentInvoice(30000)
	invoice.Status = models.InvoiceStatusPaid
	svc := newBillingService(&mockInvoiceRepo{invoice: invoice}, &mockPaymentStore{}, &mockBillingEnrollments{}, &capturingSink{}, false)

	_, err := svc.CancelInvoice(context.Background(), "inv-1")
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrInvalidTransition.Code, appErr.Code)
}

func TestCancelInvoiceIdempotent(t *testing.T) {
	invoice := sentInvoice(30000)
	invoice.Status = models.InvoiceStatusCancelled
	invoices := &mockInvoiceRepo{invoice: invoice}
	svc := newBillingService(invoices, &mockPaymentStore{}, &mockBillingEnrollments{}, &capturingSink{}, false)

	cancelled, err := svc.CancelInvoice(context.Background(), "inv-1")
	require.NoError(t, err)
	assert.Equal(t, models.InvoiceStatusCancelled, cancelled.Status)
	assert.Empty(t, invoices.newStatus)
}

func TestRecordPaymentPartial(t *testing.T) {
	invoices := &mockInvoiceRepo{invoice: sentInvoice(30000), items: []models.InvoiceItem{tuitionItem(30000)}}
	payments := &mockPaymentStore{}
	enrollments := &mockBillingEnrollments{enrollment: &models.Enrollment{ID: "enr-1"}}
	sink := &capturingSink{}
	svc := newBillingService(invoices, payments, enrollments, sink, false)

	payment, err := svc.RecordPayment(context.Background(), "inv-1", RecordPaymentRequest{
		Amount: 10000, Method: "cash", Reference: "OR-1001",
	}, nil)
	require.NoError(t, err)

	assert.Equal(t, models.PaymentMethodCash, payment.Method)
	require.NotNil(t, invoices.reconciled)
	assert.Equal(t, models.InvoiceStatusPartiallyPaid, invoices.reconciled.Status)
	assert.Equal(t, 10000.0, invoices.reconciled.AmountPaid)
	assert.Equal(t, 20000.0, invoices.reconciled.Balance)
	assert.Nil(t, invoices.reconciled.PaidAt)

	assert.True(t, enrollments.cascaded)
	assert.Equal(t, models.PaymentStatusPartial, enrollments.status)

	require.Len(t, sink.events, 1)
	assert.Equal(t, events.TypePaymentRecorded, sink.events[0].Type)
}

func TestRecordPaymentFullStampsPaidAtOnce(t *testing.T) {
	invoices := &mockInvoiceRepo{invoice: sentInvoice(30000), items: []models.InvoiceItem{tuitionItem(30000)}}
	payments := &mockPaymentStore{}
	enrollments := &mockBillingEnrollments{enrollment: &models.Enrollment{ID: "enr-1"}}
	sink := &capturingSink{}
	svc := newBillingService(invoices, payments, enrollments, sink, false)

	_, err := svc.RecordPayment(context.Background(), "inv-1", RecordPaymentRequest{Amount: 30000, Method: "GCASH"}, nil)
	require.NoError(t, err)

	require.NotNil(t, invoices.reconciled)
	assert.Equal(t, models.InvoiceStatusPaid, invoices.reconciled.Status)
	require.NotNil(t, invoices.reconciled.PaidAt)
	firstPaidAt := *invoices.reconciled.PaidAt
	assert.Equal(t, models.PaymentStatusPaid, enrollments.status)

	// Two events: the fully paid transition fires before payment.recorded.
	require.Len(t, sink.events, 2)
	assert.Equal(t, events.TypeInvoiceFullyPaid, sink.events[0].Type)
	assert.Equal(t, events.TypePaymentRecorded, sink.events[1].Type)

	// A second recompute must not move the stamp.
	_, err = svc.Recompute(context.Background(), "inv-1", nil)
	require.NoError(t, err)
	require.NotNil(t, invoices.reconciled.PaidAt)
	assert.Equal(t, firstPaidAt, *invoices.reconciled.PaidAt)
	// And no second fully paid event.
	require.Len(t, sink.events, 2)
}

func TestRecordPaymentOverpaymentBlocked(t *testing.T) {
	invoices := &mockInvoiceRepo{invoice: sentInvoice(30000), items: []models.InvoiceItem{tuitionItem(30000)}}
	payments := &mockPaymentStore{sum: 25000}
	svc := newBillingService(invoices, payments, &mockBillingEnrollments{}, &capturingSink{}, false)

	_, err := svc.RecordPayment(context.Background(), "inv-1", RecordPaymentRequest{Amount: 10000, Method: "CASH"}, nil)
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
	assert.Nil(t, payments.created)
}

func TestRecordPaymentOverpaymentAllowed(t *testing.T) {
	invoices := &mockInvoiceRepo{invoice: sentInvoice(30000), items: []models.InvoiceItem{tuitionItem(30000)}}
	payments := &mockPaymentStore{sum: 25000}
	enrollments := &mockBillingEnrollments{enrollment: &models.Enrollment{ID: "enr-1"}}
	svc := newBillingService(invoices, payments, enrollments, &capturingSink{}, true)

	_, err := svc.RecordPayment(context.Background(), "inv-1", RecordPaymentRequest{Amount: 10000, Method: "CASH"}, nil)
	require.NoError(t, err)
	assert.Equal(t, models.InvoiceStatusPaid, invoices.reconciled.Status)
	assert.Equal(t, 35000.0, invoices.reconciled.AmountPaid)
	assert.Equal(t, -5000.0, invoices.reconciled.Balance)
}

func TestRecordPaymentClosedInvoice(t *testing.T) {
	invoice := sentInvoice(30000)
	invoice.Status = models.InvoiceStatusPaid
	svc := newBillingService(&mockInvoiceRepo{invoice: invoice}, &mockPaymentStore{}, &mockBillingEnrollments{}, &capturingSink{}, false)

	_, err := svc.RecordPayment(context.Background(), "inv-1", RecordPaymentRequest{Amount: 100, Method: "CASH"}, nil)
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrInvalidTransition.Code, appErr.Code)
}

func TestRecordPaymentBadDate(t *testing.T) {
	invoices := &mockInvoiceRepo{invoice: sentInvoice(30000), items: []models.InvoiceItem{tuitionItem(30000)}}
	svc := newBillingService(invoices, &mockPaymentStore{}, &mockBillingEnrollments{}, &capturingSink{}, false)

	_, err := svc.RecordPayment(context.Background(), "inv-1", RecordPaymentRequest{Amount: 100, Method: "CASH", PaidOn: "31/08/2026"}, nil)
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
}

func TestDeleteLastPaymentRevertsToSent(t *testing.T) {
	invoice := sentInvoice(30000)
	invoice.Status = models.InvoiceStatusPartiallyPaid
	invoice.AmountPaid = 10000
	invoice.Balance = 20000
	invoices := &mockInvoiceRepo{invoice: invoice}
	payments := &mockPaymentStore{payment: &models.Payment{ID: "pay-1", InvoiceID: "inv-1", Amount: 10000}, sum: 0}
	enrollments := &mockBillingEnrollments{enrollment: &models.Enrollment{ID: "enr-1"}}
	sink := &capturingSink{}
	svc := newBillingService(invoices, payments, enrollments, sink, false)

	err := svc.DeletePayment(context.Background(), "pay-1", nil)
	require.NoError(t, err)
	assert.Equal(t, "pay-1", payments.deleted)

	require.NotNil(t, invoices.reconciled)
	assert.Equal(t, models.InvoiceStatusSent, invoices.reconciled.Status)
	assert.Zero(t, invoices.reconciled.AmountPaid)
	assert.Equal(t, 30000.0, invoices.reconciled.Balance)
	assert.Nil(t, invoices.reconciled.PaidAt)

	assert.Equal(t, models.PaymentStatusPending, enrollments.status)
	require.Len(t, sink.events, 1)
	assert.Equal(t, events.TypePaymentReversed, sink.events[0].Type)
}

func TestRecomputeLeavesCancelledAlone(t *testing.T) {
	invoice := sentInvoice(30000)
	invoice.Status = models.InvoiceStatusCancelled
	invoices := &mockInvoiceRepo{invoice: invoice}
	enrollments := &mockBillingEnrollments{}
	svc := newBillingService(invoices, &mockPaymentStore{sum: 10000}, enrollments, &capturingSink{}, false)

	out, err := svc.Recompute(context.Background(), "inv-1", nil)
	require.NoError(t, err)
	assert.Equal(t, models.InvoiceStatusCancelled, out.Status)
	assert.Nil(t, invoices.reconciled)
	assert.False(t, enrollments.cascaded)
}

func TestRecomputeZeroTotalNeverPaid(t *testing.T) {
	invoice := sentInvoice(0)
	invoices := &mockInvoiceRepo{invoice: invoice}
	enrollments := &mockBillingEnrollments{enrollment: &models.Enrollment{ID: "enr-1"}}
	svc := newBillingService(invoices, &mockPaymentStore{}, enrollments, &capturingSink{}, false)

	out, err := svc.Recompute(context.Background(), "inv-1", nil)
	require.NoError(t, err)
	assert.Equal(t, models.InvoiceStatusSent, out.Status)
	assert.Equal(t, models.PaymentStatusPending, enrollments.status)
}

func TestUpdatePaymentReconciles(t *testing.T) {
	invoice := sentInvoice(30000)
	invoice.Status = models.InvoiceStatusPartiallyPaid
	invoices := &mockInvoiceRepo{invoice: invoice}
	payments := &mockPaymentStore{payment: &models.Payment{ID: "pay-1", InvoiceID: "inv-1", Amount: 10000, Method: models.PaymentMethodCash, PaidOn: time.Now().UTC()}, sum: 30000}
	enrollments := &mockBillingEnrollments{enrollment: &models.Enrollment{ID: "enr-1"}}
	sink := &capturingSink{}
	svc := newBillingService(invoices, payments, enrollments, sink, false)

	updated, err := svc.UpdatePayment(context.Background(), "pay-1", UpdatePaymentRequest{Amount: 30000, Method: "BANK_TRANSFER"}, nil)
	require.NoError(t, err)

	assert.Equal(t, models.PaymentMethodBankTransfer, updated.Method)
	assert.Equal(t, models.InvoiceStatusPaid, invoices.reconciled.Status)
	assert.Equal(t, models.PaymentStatusPaid, enrollments.status)

	require.Len(t, sink.events, 2)
	assert.Equal(t, events.TypeInvoiceFullyPaid, sink.events[0].Type)
	assert.Equal(t, events.TypePaymentUpdated, sink.events[1].Type)
}

func TestExportPaymentsCSV(t *testing.T) {
	payments := &mockPaymentStore{listed: []models.Payment{
		{Reference: "PAY-20260801-AAAAAA", InvoiceID: "inv-1", Amount: 10000, Method: models.PaymentMethodCash, PaidOn: time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)},
		{Reference: "PAY-20260815-BBBBBB", InvoiceID: "inv-1", Amount: 5000.50, Method: models.PaymentMethodGCash, PaidOn: time.Date(2026, 8, 15, 0, 0, 0, 0, time.UTC)},
	}}
	svc := newBillingService(&mockInvoiceRepo{}, payments, &mockBillingEnrollments{}, &capturingSink{}, false)

	csv, err := svc.ExportPayments(context.Background(), models.PaymentFilter{})
	require.NoError(t, err)

	text := string(csv)
	assert.Contains(t, text, "reference,invoice_id,amount,method,paid_on,notes")
	assert.Contains(t, text, "PAY-20260801-AAAAAA,inv-1,10000.00,CASH,2026-08-01,")
	assert.Contains(t, text, "PAY-20260815-BBBBBB,inv-1,5000.50,GCASH,2026-08-15,")
}

func TestRoundCents(t *testing.T) {
	assert.Equal(t, 10.57, roundCents(10.565000000001))
	assert.Equal(t, 0.0, roundCents(0.001))
	assert.Equal(t, 100.0, roundCents(99.999999999))
}
