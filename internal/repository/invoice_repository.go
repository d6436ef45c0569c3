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

// InvoiceCodePrefix prefixes every invoice code (INV-2025010001).
const InvoiceCodePrefix = "INV-"

const invoiceColumns = `id, code, enrollment_id, total, amount_paid, balance, status, issue_date, due_date, paid_at, created_at, updated_at`

// InvoiceRepository handles persistence of invoices and their line items.
type InvoiceRepository struct {
	db          *sqlx.DB
	codeRetries int
}

// NewInvoiceRepository constructs the repository.
func NewInvoiceRepository(db *sqlx.DB, codeRetries int) *InvoiceRepository {
	if codeRetries <= 0 {
		codeRetries = 3
	}
	return &InvoiceRepository{db: db, codeRetries: codeRetries}
}

// FindByID returns an invoice by its ID.
func (r *InvoiceRepository) FindByID(ctx context.Context, id string) (*models.Invoice, error) {
	query := "SELECT " + invoiceColumns + " FROM invoices WHERE id = $1"
	var invoice models.Invoice
	if err := r.db.GetContext(ctx, &invoice, query, id); err != nil {
		return nil, err
	}
	return &invoice, nil
}

// FindByEnrollment returns the invoice owned by an enrollment.
func (r *InvoiceRepository) FindByEnrollment(ctx context.Context, enrollmentID string) (*models.Invoice, error) {
	query := "SELECT " + invoiceColumns + ` FROM invoices WHERE enrollment_id = $1 AND status <> $2
        ORDER BY created_at DESC LIMIT 1`
	var invoice models.Invoice
	if err := r.db.GetContext(ctx, &invoice, query, enrollmentID, models.InvoiceStatusCancelled); err != nil {
		return nil, err
	}
	return &invoice, nil
}

// ListItems returns the line items of an invoice.
func (r *InvoiceRepository) ListItems(ctx context.Context, invoiceID string) ([]models.InvoiceItem, error) {
	const query = `SELECT id, invoice_id, description, quantity, unit_price, amount FROM invoice_items WHERE invoice_id = $1 ORDER BY description`
	var items []models.InvoiceItem
	if err := r.db.SelectContext(ctx, &items, query, invoiceID); err != nil {
		return nil, fmt.Errorf("list invoice items: %w", err)
	}
	return items, nil
}

// Create persists an invoice with its line items in one transaction,
// allocating the next sequential code within the current month.
func (r *InvoiceRepository) Create(ctx context.Context, invoice *models.Invoice, items []models.InvoiceItem) error {
	if invoice.ID == "" {
		invoice.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	invoice.CreatedAt = now
	invoice.UpdatedAt = now

	prefix := InvoiceCodePrefix + now.Format("200601")

	const insertInvoice = `INSERT INTO invoices (id, code, enrollment_id, total, amount_paid, balance, status, issue_date, due_date, paid_at, created_at, updated_at)
        VALUES (:id, :code, :enrollment_id, :total, :amount_paid, :balance, :status, :issue_date, :due_date, :paid_at, :created_at, :updated_at)`
	const insertItem = `INSERT INTO invoice_items (id, invoice_id, description, quantity, unit_price, amount)
        VALUES (:id, :invoice_id, :description, :quantity, :unit_price, :amount)`

	for attempt := 0; attempt <= r.codeRetries; attempt++ {
		code, err := nextCode(ctx, r.db, "invoices", "code", prefix, 4)
		if err != nil {
			return err
		}
		invoice.Code = code

		tx, err := r.db.BeginTxx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin create invoice: %w", err)
		}

		if _, err := tx.NamedExecContext(ctx, insertInvoice, invoice); err != nil {
			_ = tx.Rollback()
			if isUniqueViolation(err) && attempt < r.codeRetries {
				continue
			}
			return fmt.Errorf("create invoice: %w", err)
		}

		for i := range items {
			items[i].InvoiceID = invoice.ID
			if items[i].ID == "" {
				items[i].ID = uuid.NewString()
			}
			if _, err := tx.NamedExecContext(ctx, insertItem, items[i]); err != nil {
				_ = tx.Rollback()
				return fmt.Errorf("create invoice item: %w", err)
			}
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit create invoice: %w", err)
		}
		return nil
	}
	return fmt.Errorf("create invoice: code allocation exhausted retries for %s", prefix)
}

// UpdateReconciliation writes the recomputed paid amount, balance, status
// and paid_at stamp.
func (r *InvoiceRepository) UpdateReconciliation(ctx context.Context, invoice *models.Invoice) error {
	invoice.UpdatedAt = time.Now().UTC()
	const query = `UPDATE invoices SET amount_paid = :amount_paid, balance = :balance, status = :status,
        paid_at = :paid_at, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, invoice); err != nil {
		return fmt.Errorf("update invoice reconciliation: %w", err)
	}
	return nil
}

// UpdateStatus writes an issuance-side status (SENT, CANCELLED, OVERDUE).
func (r *InvoiceRepository) UpdateStatus(ctx context.Context, id string, status models.InvoiceStatus) error {
	const query = `UPDATE invoices SET status = $2, updated_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, status, time.Now().UTC()); err != nil {
		return fmt.Errorf("update invoice status: %w", err)
	}
	return nil
}

// List returns invoices filtered by the provided criteria.
func (r *InvoiceRepository) List(ctx context.Context, filter models.InvoiceFilter) ([]models.InvoiceDetail, int, error) {
	base := `FROM invoices i
LEFT JOIN enrollments e ON e.id = i.enrollment_id
LEFT JOIN students s ON s.id = e.student_id`
	var conditions []string
	var args []interface{}

	if filter.EnrollmentID != "" {
		conditions = append(conditions, fmt.Sprintf("i.enrollment_id = $%d", len(args)+1))
		args = append(args, filter.EnrollmentID)
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("i.status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}
	if filter.DueBefore != nil {
		conditions = append(conditions, fmt.Sprintf("i.due_date < $%d", len(args)+1))
		args = append(args, *filter.DueBefore)
	}

	clause := ""
	if len(conditions) > 0 {
		clause = " WHERE " + strings.Join(conditions, " AND ")
	}

	allowedSorts := map[string]string{
		"issue_date": "i.issue_date",
		"due_date":   "i.due_date",
		"code":       "i.code",
		"balance":    "i.balance",
	}
	orderBy := allowedSorts[filter.SortBy]
	if orderBy == "" {
		orderBy = "i.issue_date"
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

	cols := prefixColumns(invoiceColumns, "i")
	query := fmt.Sprintf(`SELECT %s, e.code AS enrollment_code, s.full_name AS student_name
        %s ORDER BY %s %s LIMIT %d OFFSET %d`, cols, base+clause, orderBy, order, size, offset)

	var invoices []models.InvoiceDetail
	if err := r.db.SelectContext(ctx, &invoices, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list invoices: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base+clause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count invoices: %w", err)
	}
	return invoices, total, nil
}

// CollectionsSummary aggregates billing totals, excluding cancelled invoices.
func (r *InvoiceRepository) CollectionsSummary(ctx context.Context, schoolYear string) (*models.CollectionsSummary, error) {
	query := `SELECT COALESCE(SUM(i.total), 0) AS total_billed,
        COALESCE(SUM(i.amount_paid), 0) AS total_collected,
        COALESCE(SUM(i.balance), 0) AS total_outstanding,
        COUNT(*) AS invoice_count,
        COUNT(*) FILTER (WHERE i.status = 'PAID') AS paid_invoice_count
        FROM invoices i
        LEFT JOIN enrollments e ON e.id = i.enrollment_id
        LEFT JOIN enrollment_periods p ON p.id = e.period_id
        WHERE i.status <> 'CANCELLED'`
	var args []interface{}
	if schoolYear != "" {
		query += " AND p.school_year = $1"
		args = append(args, schoolYear)
	}

	var summary models.CollectionsSummary
	if err := r.db.GetContext(ctx, &summary, query, args...); err != nil {
		return nil, fmt.Errorf("collections summary: %w", err)
	}
	return &summary, nil
}
