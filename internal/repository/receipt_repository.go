package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/stfrancis-sis/enrollment-api/internal/models"
)

// ReceiptNumberPrefix prefixes official receipt numbers (OR-2025-0001).
// Unlike enrollment and invoice codes, the sequence resets yearly.
const ReceiptNumberPrefix = "OR-"

const receiptColumns = `id, number, payment_id, invoice_id, amount, issued_to, particulars, issued_by, issued_at`

// ReceiptRepository handles persistence of official receipts.
type ReceiptRepository struct {
	db          *sqlx.DB
	codeRetries int
}

// NewReceiptRepository constructs the repository.
func NewReceiptRepository(db *sqlx.DB, codeRetries int) *ReceiptRepository {
	if codeRetries <= 0 {
		codeRetries = 3
	}
	return &ReceiptRepository{db: db, codeRetries: codeRetries}
}

// FindByID returns a receipt by its ID.
func (r *ReceiptRepository) FindByID(ctx context.Context, id string) (*models.Receipt, error) {
	query := "SELECT " + receiptColumns + " FROM receipts WHERE id = $1"
	var receipt models.Receipt
	if err := r.db.GetContext(ctx, &receipt, query, id); err != nil {
		return nil, err
	}
	return &receipt, nil
}

// Create persists a receipt, allocating the next sequential number within
// the current year. Receipts are immutable once written.
func (r *ReceiptRepository) Create(ctx context.Context, receipt *models.Receipt) error {
	if receipt.ID == "" {
		receipt.ID = uuid.NewString()
	}
	if receipt.IssuedAt.IsZero() {
		receipt.IssuedAt = time.Now().UTC()
	}

	prefix := fmt.Sprintf("%s%d-", ReceiptNumberPrefix, receipt.IssuedAt.Year())

	const query = `INSERT INTO receipts (id, number, payment_id, invoice_id, amount, issued_to, particulars, issued_by, issued_at)
        VALUES (:id, :number, :payment_id, :invoice_id, :amount, :issued_to, :particulars, :issued_by, :issued_at)`

	for attempt := 0; attempt <= r.codeRetries; attempt++ {
		number, err := nextCode(ctx, r.db, "receipts", "number", prefix, 4)
		if err != nil {
			return err
		}
		receipt.Number = number

		if _, err := r.db.NamedExecContext(ctx, query, receipt); err != nil {
			if isUniqueViolation(err) && attempt < r.codeRetries {
				continue
			}
			return fmt.Errorf("create receipt: %w", err)
		}
		return nil
	}
	return fmt.Errorf("create receipt: number allocation exhausted retries for %s", prefix)
}

// List returns receipts filtered by the provided criteria.
func (r *ReceiptRepository) List(ctx context.Context, filter models.ReceiptFilter) ([]models.Receipt, int, error) {
	base := "FROM receipts"
	var conditions []string
	var args []interface{}

	if filter.InvoiceID != "" {
		conditions = append(conditions, fmt.Sprintf("invoice_id = $%d", len(args)+1))
		args = append(args, filter.InvoiceID)
	}
	if filter.From != nil {
		conditions = append(conditions, fmt.Sprintf("issued_at >= $%d", len(args)+1))
		args = append(args, *filter.From)
	}
	if filter.To != nil {
		conditions = append(conditions, fmt.Sprintf("issued_at <= $%d", len(args)+1))
		args = append(args, *filter.To)
	}

	clause := ""
	if len(conditions) > 0 {
		clause = " WHERE " + strings.Join(conditions, " AND ")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf("SELECT %s %s ORDER BY number DESC LIMIT %d OFFSET %d",
		receiptColumns, base+clause, size, offset)

	var receipts []models.Receipt
	if err := r.db.SelectContext(ctx, &receipts, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list receipts: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base+clause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count receipts: %w", err)
	}
	return receipts, total, nil
}
