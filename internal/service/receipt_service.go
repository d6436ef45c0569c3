package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/stfrancis-sis/enrollment-api/internal/events"
	"github.com/stfrancis-sis/enrollment-api/internal/models"
	appErrors "github.com/stfrancis-sis/enrollment-api/pkg/errors"
	"github.com/stfrancis-sis/enrollment-api/pkg/export"
)

type receiptRepository interface {
	FindByID(ctx context.Context, id string) (*models.Receipt, error)
	Create(ctx context.Context, receipt *models.Receipt) error
	List(ctx context.Context, filter models.ReceiptFilter) ([]models.Receipt, int, error)
}

type receiptPaymentReader interface {
	FindByID(ctx context.Context, id string) (*models.Payment, error)
}

type receiptRenderer interface {
	RenderReceipt(doc export.ReceiptDocument) ([]byte, error)
}

// IssueReceiptRequest captures an official receipt issuance. When PaymentID
// is set the amount and particulars default from the payment record.
type IssueReceiptRequest struct {
	PaymentID   string  `json:"payment_id"`
	InvoiceID   string  `json:"invoice_id"`
	Amount      float64 `json:"amount"`
	IssuedTo    string  `json:"issued_to" validate:"required,max=200"`
	Particulars string  `json:"particulars" validate:"max=500"`
}

// ReceiptService issues immutable official receipts and renders them as
// PDFs. Receipts have their own yearly number sequence independent of
// payment references.
type ReceiptService struct {
	repo      receiptRepository
	payments  receiptPaymentReader
	pdf       receiptRenderer
	sink      events.Sink
	validator *validator.Validate
	logger    *zap.Logger
}

// NewReceiptService constructs ReceiptService.
func NewReceiptService(repo receiptRepository, payments receiptPaymentReader, pdf receiptRenderer, sink events.Sink, validate *validator.Validate, logger *zap.Logger) *ReceiptService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if sink == nil {
		sink = events.NopSink{}
	}
	return &ReceiptService{repo: repo, payments: payments, pdf: pdf, sink: sink, validator: validate, logger: logger}
}

// Issue writes a new official receipt. There is no update or delete path;
// corrections are handled by issuing a superseding receipt.
func (s *ReceiptService) Issue(ctx context.Context, req IssueReceiptRequest, actorID *string) (*models.Receipt, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid receipt payload")
	}

	receipt := &models.Receipt{
		Amount:      req.Amount,
		IssuedTo:    strings.TrimSpace(req.IssuedTo),
		Particulars: strings.TrimSpace(req.Particulars),
		IssuedBy:    actorID,
		IssuedAt:    time.Now().UTC(),
	}
	if req.InvoiceID != "" {
		invoiceID := req.InvoiceID
		receipt.InvoiceID = &invoiceID
	}

	if req.PaymentID != "" {
		payment, err := s.payments.FindByID(ctx, req.PaymentID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, appErrors.Clone(appErrors.ErrNotFound, "payment not found")
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load payment")
		}
		paymentID := payment.ID
		receipt.PaymentID = &paymentID
		if receipt.InvoiceID == nil {
			invoiceID := payment.InvoiceID
			receipt.InvoiceID = &invoiceID
		}
		if receipt.Amount <= 0 {
			receipt.Amount = payment.Amount
		}
		if receipt.Particulars == "" {
			receipt.Particulars = fmt.Sprintf("Payment %s via %s", payment.Reference, payment.Method)
		}
	}

	if receipt.Amount <= 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "receipt amount must be greater than zero")
	}
	if receipt.Particulars == "" {
		receipt.Particulars = "School fees"
	}

	if err := s.repo.Create(ctx, receipt); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to issue receipt")
	}

	s.sink.Emit(ctx, events.Event{
		Type:    events.TypeReceiptIssued,
		ActorID: actorID,
		Receipt: receipt,
	})
	return receipt, nil
}

// Get returns a receipt by ID.
func (s *ReceiptService) Get(ctx context.Context, id string) (*models.Receipt, error) {
	receipt, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "receipt not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load receipt")
	}
	return receipt, nil
}

// List returns receipts with pagination metadata.
func (s *ReceiptService) List(ctx context.Context, filter models.ReceiptFilter) ([]models.Receipt, *models.Pagination, error) {
	receipts, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list receipts")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	return receipts, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// RenderPDF renders the official receipt document.
func (s *ReceiptService) RenderPDF(ctx context.Context, id string) ([]byte, error) {
	receipt, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	doc := export.ReceiptDocument{
		Number:      receipt.Number,
		IssuedAt:    receipt.IssuedAt,
		IssuedTo:    receipt.IssuedTo,
		Particulars: receipt.Particulars,
		Amount:      receipt.Amount,
	}
	if receipt.PaymentID != nil {
		payment, err := s.payments.FindByID(ctx, *receipt.PaymentID)
		if err != nil {
			s.logger.Warn("failed to load payment for receipt rendering",
				zap.String("receipt_id", receipt.ID),
				zap.Error(err))
		} else {
			doc.Reference = payment.Reference
			doc.Method = string(payment.Method)
		}
	}

	pdf, err := s.pdf.RenderReceipt(doc)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render receipt")
	}
	return pdf, nil
}
