package repository

import (
	"context"
	"crypto/rand"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/stfrancis-sis/enrollment-api/internal/models"
)

const paymentColumns = `id, invoice_id, reference, amount, method, paid_on, notes, received_by, created_at, updated_at`

// PaymentRepository handles persistence of payments.
type PaymentRepository struct {
	db *sqlx.DB
}

// NewPaymentRepository constructs the repository.
func NewPaymentRepository(db *sqlx.DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

// FindByID returns a payment by its ID.
func (r *PaymentRepository) FindByID(ctx context.Context, id string) (*models.Payment, error) {
	query := "SELECT " + paymentColumns + " FROM payments WHERE id = $1"
	var payment models.Payment
	if err := r.db.GetContext(ctx, &payment, query, id); err != nil {
		return nil, err
	}
	return &payment, nil
}

// ListByInvoice returns every live payment recorded against an invoice.
func (r *PaymentRepository) ListByInvoice(ctx context.Context, invoiceID string) ([]models.Payment, error) {
	query := "SELECT " + paymentColumns + " FROM payments WHERE invoice_id = $1 ORDER BY paid_on ASC, created_at ASC"
	var payments []models.Payment
	if err := r.db.SelectContext(ctx, &payments, query, invoiceID); err != nil {
		return nil, fmt.Errorf("list payments: %w", err)
	}
	return payments, nil
}

// SumByInvoice totals the live payments for an invoice. Reconciliation
// always recomputes from this sum, never from stored deltas.
func (r *PaymentRepository) SumByInvoice(ctx context.Context, invoiceID string) (float64, error) {
	const query = "SELECT COALESCE(SUM(amount), 0) FROM payments WHERE invoice_id = $1"
	var sum float64
	if err := r.db.GetContext(ctx, &sum, query, invoiceID); err != nil {
		return 0, fmt.Errorf("sum payments: %w", err)
	}
	return sum, nil
}

// Create persists a new payment with a generated reference number.
func (r *PaymentRepository) Create(ctx context.Context, payment *models.Payment) error {
	if payment.ID == "" {
		payment.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	payment.CreatedAt = now
	payment.UpdatedAt = now
	if payment.PaidOn.IsZero() {
		payment.PaidOn = now
	}
	if payment.Reference == "" {
		payment.Reference = NewPaymentReference(payment.PaidOn)
	}

	const query = `INSERT INTO payments (id, invoice_id, reference, amount, method, paid_on, notes, received_by, created_at, updated_at)
        VALUES (:id, :invoice_id, :reference, :amount, :method, :paid_on, :notes, :received_by, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, payment); err != nil {
		return fmt.Errorf("create payment: %w", err)
	}
	return nil
}

// Update writes an existing payment's mutable fields.
func (r *PaymentRepository) Update(ctx context.Context, payment *models.Payment) error {
	payment.UpdatedAt = time.Now().UTC()
	const query = `UPDATE payments SET amount = :amount, method = :method, paid_on = :paid_on, notes = :notes,
        updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, payment); err != nil {
		return fmt.Errorf("update payment: %w", err)
	}
	return nil
}

// Delete removes a payment. The caller re-runs reconciliation afterwards,
// which restores the prior balance.
func (r *PaymentRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM payments WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("delete payment: %w", err)
	}
	return nil
}

// List returns payments filtered by the provided criteria.
func (r *PaymentRepository) List(ctx context.Context, filter models.PaymentFilter) ([]models.Payment, int, error) {
	base := "FROM payments"
	var conditions []string
	var args []interface{}

	if filter.InvoiceID != "" {
		conditions = append(conditions, fmt.Sprintf("invoice_id = $%d", len(args)+1))
		args = append(args, filter.InvoiceID)
	}
	if filter.Method != "" {
		conditions = append(conditions, fmt.Sprintf("method = $%d", len(args)+1))
		args = append(args, filter.Method)
	}
	if filter.From != nil {
		conditions = append(conditions, fmt.Sprintf("paid_on >= $%d", len(args)+1))
		args = append(args, *filter.From)
	}
	if filter.To != nil {
		conditions = append(conditions, fmt.Sprintf("paid_on <= $%d", len(args)+1))
		args = append(args, *filter.To)
	}

	clause := ""
	if len(conditions) > 0 {
		clause = " WHERE " + strings.Join(conditions, " AND ")
	}

	allowedSorts := map[string]string{
		"paid_on":   "paid_on",
		"amount":    "amount",
		"reference": "reference",
	}
	orderBy := allowedSorts[filter.SortBy]
	if orderBy == "" {
		orderBy = "paid_on"
	}
	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "DESC"
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

	query := fmt.Sprintf("SELECT %s %s ORDER BY %s %s LIMIT %d OFFSET %d",
		paymentColumns, base+clause, orderBy, order, size, offset)

	var payments []models.Payment
	if err := r.db.SelectContext(ctx, &payments, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list payments: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base+clause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count payments: %w", err)
	}
	return payments, total, nil
}

const referenceAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// NewPaymentReference builds a reference like PAY-20250115-7KQ2MX with a
// random suffix, unique enough for human lookup; the column's unique
// constraint backstops collisions.
func NewPaymentReference(paidOn time.Time) string {
	buf := make([]byte, 6)
	if _, err := rand.Read(buf); err != nil {
		// Fall back to a time-derived suffix if the entropy source fails.
		return fmt.Sprintf("PAY-%s-%06d", paidOn.Format("20060102"), time.Now().UnixNano()%1000000)
	}
	suffix := make([]byte, 6)
	for i, b := range buf {
		suffix[i] = referenceAlphabet[int(b)%len(referenceAlphabet)]
	}
	return fmt.Sprintf("PAY-%s-%s", paidOn.Format("20060102"), string(suffix))
}
