package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/stfrancis-sis/enrollment-api/internal/models"
)

// EnrollmentCodePrefix prefixes every enrollment code. Codes look like
// ENR-2025010001 and the four digit suffix resets each month.
const EnrollmentCodePrefix = "ENR-"

const enrollmentColumns = `id, code, student_id, guardian_id, period_id, grade_level, type, payment_plan,
        status, payment_status, document_status, tuition_fee, misc_fee, other_fee, total_fee, amount_paid, balance,
        approved_at, approved_by, rejected_at, rejection_reason, enrolled_at, created_at, updated_at`

// EnrollmentRepository handles persistence of enrollments.
type EnrollmentRepository struct {
	db          *sqlx.DB
	codeRetries int
}

// NewEnrollmentRepository constructs the repository.
func NewEnrollmentRepository(db *sqlx.DB, codeRetries int) *EnrollmentRepository {
	if codeRetries <= 0 {
		codeRetries = 3
	}
	return &EnrollmentRepository{db: db, codeRetries: codeRetries}
}

// List returns enrollments filtered by the provided criteria.
func (r *EnrollmentRepository) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, int, error) {
	base := `FROM enrollments e
LEFT JOIN students s ON s.id = e.student_id
LEFT JOIN guardians g ON g.id = e.guardian_id
LEFT JOIN enrollment_periods p ON p.id = e.period_id`
	var conditions []string
	var args []interface{}

	if filter.StudentID != "" {
		conditions = append(conditions, fmt.Sprintf("e.student_id = $%d", len(args)+1))
		args = append(args, filter.StudentID)
	}
	if filter.GuardianID != "" {
		conditions = append(conditions, fmt.Sprintf("e.guardian_id = $%d", len(args)+1))
		args = append(args, filter.GuardianID)
	}
	if filter.PeriodID != "" {
		conditions = append(conditions, fmt.Sprintf("e.period_id = $%d", len(args)+1))
		args = append(args, filter.PeriodID)
	}
	if filter.GradeLevel != "" {
		conditions = append(conditions, fmt.Sprintf("e.grade_level = $%d", len(args)+1))
		args = append(args, filter.GradeLevel)
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("e.status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}
	if filter.PaymentStatus != "" {
		conditions = append(conditions, fmt.Sprintf("e.payment_status = $%d", len(args)+1))
		args = append(args, filter.PaymentStatus)
	}

	clause := ""
	if len(conditions) > 0 {
		clause = " WHERE " + strings.Join(conditions, " AND ")
	}

	allowedSorts := map[string]string{
		"created_at":   "e.created_at",
		"code":         "e.code",
		"student_name": "s.full_name",
		"grade_level":  "e.grade_level",
		"status":       "e.status",
	}
	sortBy := filter.SortBy
	if sortBy == "" {
		sortBy = "created_at"
	}
	orderBy := allowedSorts[sortBy]
	if orderBy == "" {
		orderBy = "e.created_at"
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

	cols := prefixColumns(enrollmentColumns, "e")
	query := fmt.Sprintf(`SELECT %s,
        s.full_name AS student_name, g.full_name AS guardian_name, p.name AS period_name, p.school_year AS school_year
        %s ORDER BY %s %s LIMIT %d OFFSET %d`, cols, base+clause, orderBy, order, size, offset)

	var enrollments []models.EnrollmentDetail
	if err := r.db.SelectContext(ctx, &enrollments, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list enrollments: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base+clause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count enrollments: %w", err)
	}
	return enrollments, total, nil
}

// FindByID returns an enrollment by its ID.
func (r *EnrollmentRepository) FindByID(ctx context.Context, id string) (*models.Enrollment, error) {
	query := fmt.Sprintf("SELECT %s FROM enrollments WHERE id = $1", enrollmentColumns)
	var enrollment models.Enrollment
	if err := r.db.GetContext(ctx, &enrollment, query, id); err != nil {
		return nil, err
	}
	return &enrollment, nil
}

// FindLatestByStudent returns the student's most recent enrollment, used for
// the grade regression check. sql.ErrNoRows when the student has none.
func (r *EnrollmentRepository) FindLatestByStudent(ctx context.Context, studentID string) (*models.Enrollment, error) {
	query := fmt.Sprintf(`SELECT %s FROM enrollments WHERE student_id = $1 AND status <> $2
        ORDER BY created_at DESC LIMIT 1`, enrollmentColumns)
	var enrollment models.Enrollment
	if err := r.db.GetContext(ctx, &enrollment, query, studentID, models.EnrollmentStatusRejected); err != nil {
		return nil, err
	}
	return &enrollment, nil
}

// ExistsWithStatus checks if the student has an enrollment in the given status.
func (r *EnrollmentRepository) ExistsWithStatus(ctx context.Context, studentID string, status models.EnrollmentStatus) (bool, error) {
	const query = "SELECT 1 FROM enrollments WHERE student_id = $1 AND status = $2 LIMIT 1"
	var exists int
	if err := r.db.GetContext(ctx, &exists, query, studentID, status); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("check enrollment status: %w", err)
	}
	return true, nil
}

// Create persists a new enrollment, allocating the next sequential code
// within the current month. Code collisions under concurrent creation are
// retried against the unique constraint.
func (r *EnrollmentRepository) Create(ctx context.Context, enrollment *models.Enrollment) error {
	if enrollment.ID == "" {
		enrollment.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if enrollment.CreatedAt.IsZero() {
		enrollment.CreatedAt = now
	}
	enrollment.UpdatedAt = now

	prefix := EnrollmentCodePrefix + now.Format("200601")

	query := fmt.Sprintf(`INSERT INTO enrollments (%s)
        VALUES (:id, :code, :student_id, :guardian_id, :period_id, :grade_level, :type, :payment_plan,
        :status, :payment_status, :document_status, :tuition_fee, :misc_fee, :other_fee, :total_fee, :amount_paid, :balance,
        :approved_at, :approved_by, :rejected_at, :rejection_reason, :enrolled_at, :created_at, :updated_at)`, enrollmentColumns)

	for attempt := 0; attempt <= r.codeRetries; attempt++ {
		code, err := nextCode(ctx, r.db, "enrollments", "code", prefix, 4)
		if err != nil {
			return err
		}
		enrollment.Code = code

		if _, err := r.db.NamedExecContext(ctx, query, enrollment); err != nil {
			if isUniqueViolation(err) && attempt < r.codeRetries {
				continue
			}
			return fmt.Errorf("create enrollment: %w", err)
		}
		return nil
	}
	return fmt.Errorf("create enrollment: code allocation exhausted retries for %s", prefix)
}

// UpdateStatus writes a status transition with its stamps.
func (r *EnrollmentRepository) UpdateStatus(ctx context.Context, enrollment *models.Enrollment) error {
	enrollment.UpdatedAt = time.Now().UTC()
	const query = `UPDATE enrollments SET status = :status, approved_at = :approved_at, approved_by = :approved_by,
        rejected_at = :rejected_at, rejection_reason = :rejection_reason, enrolled_at = :enrolled_at,
        updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, enrollment); err != nil {
		return fmt.Errorf("update enrollment status: %w", err)
	}
	return nil
}

// UpdateDocumentStatus writes the outcome of a document review.
func (r *EnrollmentRepository) UpdateDocumentStatus(ctx context.Context, id string, status models.DocumentStatus) error {
	const query = `UPDATE enrollments SET document_status = $2, updated_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, status, time.Now().UTC()); err != nil {
		return fmt.Errorf("update enrollment document status: %w", err)
	}
	return nil
}

// UpdatePaymentState copies reconciled billing figures onto the enrollment.
func (r *EnrollmentRepository) UpdatePaymentState(ctx context.Context, id string, status models.PaymentStatus, amountPaid, balance float64) error {
	const query = `UPDATE enrollments SET payment_status = $2, amount_paid = $3, balance = $4, updated_at = $5 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, status, amountPaid, balance, time.Now().UTC()); err != nil {
		return fmt.Errorf("update enrollment payment state: %w", err)
	}
	return nil
}

// BulkStatusError reports ids that block an all-or-nothing batch.
type BulkStatusError struct {
	Missing []string
	Invalid map[string]models.EnrollmentStatus
}

// Error implements the error interface.
func (e *BulkStatusError) Error() string {
	return fmt.Sprintf("bulk validation failed: %d missing, %d in invalid status", len(e.Missing), len(e.Invalid))
}

// ApproveAll approves every listed enrollment inside one transaction.
// Rows are locked and validated first; any missing or non-PENDING id aborts
// the whole batch with a BulkStatusError and no partial effects.
func (r *EnrollmentRepository) ApproveAll(ctx context.Context, ids []string, approvedBy string, approvedAt time.Time) ([]models.Enrollment, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin bulk approve: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	query, args, err := sqlx.In(fmt.Sprintf("SELECT %s FROM enrollments WHERE id IN (?) FOR UPDATE", enrollmentColumns), ids)
	if err != nil {
		return nil, fmt.Errorf("build bulk approve query: %w", err)
	}
	query = tx.Rebind(query)

	var rows []models.Enrollment
	if err := tx.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("lock enrollments: %w", err)
	}

	found := make(map[string]models.Enrollment, len(rows))
	for _, row := range rows {
		found[row.ID] = row
	}

	bulkErr := &BulkStatusError{Invalid: map[string]models.EnrollmentStatus{}}
	for _, id := range ids {
		row, ok := found[id]
		if !ok {
			bulkErr.Missing = append(bulkErr.Missing, id)
			continue
		}
		if row.Status != models.EnrollmentStatusPending {
			bulkErr.Invalid[id] = row.Status
		}
	}
	if len(bulkErr.Missing) > 0 || len(bulkErr.Invalid) > 0 {
		return nil, bulkErr
	}

	updateQuery, updateArgs, err := sqlx.In(
		"UPDATE enrollments SET status = ?, approved_at = ?, approved_by = ?, updated_at = ? WHERE id IN (?)",
		models.EnrollmentStatusApproved, approvedAt, approvedBy, approvedAt, ids)
	if err != nil {
		return nil, fmt.Errorf("build bulk approve update: %w", err)
	}
	updateQuery = tx.Rebind(updateQuery)
	if _, err := tx.ExecContext(ctx, updateQuery, updateArgs...); err != nil {
		return nil, fmt.Errorf("bulk approve enrollments: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit bulk approve: %w", err)
	}

	approved := make([]models.Enrollment, 0, len(ids))
	for _, id := range ids {
		row := found[id]
		row.Status = models.EnrollmentStatusApproved
		row.ApprovedAt = &approvedAt
		row.ApprovedBy = &approvedBy
		row.UpdatedAt = approvedAt
		approved = append(approved, row)
	}
	return approved, nil
}

// CountByStatus aggregates enrollments per status for a period.
func (r *EnrollmentRepository) CountByStatus(ctx context.Context, periodID string) ([]models.EnrollmentStatusCount, error) {
	query := "SELECT status, COUNT(*) AS count FROM enrollments"
	var args []interface{}
	if periodID != "" {
		query += " WHERE period_id = $1"
		args = append(args, periodID)
	}
	query += " GROUP BY status"

	var counts []models.EnrollmentStatusCount
	if err := r.db.SelectContext(ctx, &counts, query, args...); err != nil {
		return nil, fmt.Errorf("count enrollments by status: %w", err)
	}
	for i := range counts {
		counts[i].Label = counts[i].Status.Label()
	}
	return counts, nil
}

// HasBillingRecords reports whether an invoice or payment references the
// enrollment, the referential guard against hard deletion.
func (r *EnrollmentRepository) HasBillingRecords(ctx context.Context, id string) (bool, error) {
	const query = "SELECT 1 FROM invoices WHERE enrollment_id = $1 LIMIT 1"
	var exists int
	if err := r.db.GetContext(ctx, &exists, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("check billing records: %w", err)
	}
	return true, nil
}

// Delete removes an enrollment row. Callers must check HasBillingRecords
// first; the referential guard lives in the service layer.
func (r *EnrollmentRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, "DELETE FROM enrollments WHERE id = $1", id); err != nil {
		return fmt.Errorf("delete enrollment: %w", err)
	}
	return nil
}

// prefixColumns qualifies a comma separated column list with a table alias.
func prefixColumns(columns, alias string) string {
	parts := strings.Split(columns, ",")
	out := make([]string, len(parts))
	for i, part := range parts {
		out[i] = alias + "." + strings.TrimSpace(part)
	}
	return strings.Join(out, ", ")
}
