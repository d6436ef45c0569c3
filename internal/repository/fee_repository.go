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

const feeColumns = `id, grade_level, school_year, tuition_fee, misc_fee, other_fee, payment_terms, active, created_at, updated_at`

// FeeRepository handles persistence of grade level fee schedules.
type FeeRepository struct {
	db *sqlx.DB
}

// NewFeeRepository constructs the repository.
func NewFeeRepository(db *sqlx.DB) *FeeRepository {
	return &FeeRepository{db: db}
}

// FindActiveByGradeAndYear returns the active schedule for the exact
// (grade level, school year) pair. sql.ErrNoRows when unconfigured.
func (r *FeeRepository) FindActiveByGradeAndYear(ctx context.Context, grade models.GradeLevel, schoolYear string) (*models.GradeLevelFee, error) {
	query := "SELECT " + feeColumns + ` FROM grade_level_fees
        WHERE grade_level = $1 AND school_year = $2 AND active = TRUE LIMIT 1`
	var fee models.GradeLevelFee
	if err := r.db.GetContext(ctx, &fee, query, grade, schoolYear); err != nil {
		return nil, err
	}
	return &fee, nil
}

// FindByID returns a fee schedule by its ID.
func (r *FeeRepository) FindByID(ctx context.Context, id string) (*models.GradeLevelFee, error) {
	query := "SELECT " + feeColumns + " FROM grade_level_fees WHERE id = $1"
	var fee models.GradeLevelFee
	if err := r.db.GetContext(ctx, &fee, query, id); err != nil {
		return nil, err
	}
	return &fee, nil
}

// List returns fee schedules filtered by the provided criteria.
func (r *FeeRepository) List(ctx context.Context, filter models.FeeFilter) ([]models.GradeLevelFee, int, error) {
	base := "FROM grade_level_fees"
	var conditions []string
	var args []interface{}

	if filter.GradeLevel != "" {
		conditions = append(conditions, fmt.Sprintf("grade_level = $%d", len(args)+1))
		args = append(args, filter.GradeLevel)
	}
	if filter.SchoolYear != "" {
		conditions = append(conditions, fmt.Sprintf("school_year = $%d", len(args)+1))
		args = append(args, filter.SchoolYear)
	}
	if filter.Active != nil {
		conditions = append(conditions, fmt.Sprintf("active = $%d", len(args)+1))
		args = append(args, *filter.Active)
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

	query := fmt.Sprintf("SELECT %s %s ORDER BY school_year DESC, grade_level ASC LIMIT %d OFFSET %d",
		feeColumns, base+clause, size, offset)

	var fees []models.GradeLevelFee
	if err := r.db.SelectContext(ctx, &fees, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list fee schedules: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base+clause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count fee schedules: %w", err)
	}
	return fees, total, nil
}

// Create persists a new fee schedule.
func (r *FeeRepository) Create(ctx context.Context, fee *models.GradeLevelFee) error {
	if fee.ID == "" {
		fee.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	fee.CreatedAt = now
	fee.UpdatedAt = now
	const query = `INSERT INTO grade_level_fees (id, grade_level, school_year, tuition_fee, misc_fee, other_fee, payment_terms, active, created_at, updated_at)
        VALUES (:id, :grade_level, :school_year, :tuition_fee, :misc_fee, :other_fee, :payment_terms, :active, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, fee); err != nil {
		return fmt.Errorf("create fee schedule: %w", err)
	}
	return nil
}

// Update writes an existing fee schedule.
func (r *FeeRepository) Update(ctx context.Context, fee *models.GradeLevelFee) error {
	fee.UpdatedAt = time.Now().UTC()
	const query = `UPDATE grade_level_fees SET tuition_fee = :tuition_fee, misc_fee = :misc_fee, other_fee = :other_fee,
        payment_terms = :payment_terms, active = :active, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, fee); err != nil {
		return fmt.Errorf("update fee schedule: %w", err)
	}
	return nil
}

// Deactivate retires a fee schedule without deleting history.
func (r *FeeRepository) Deactivate(ctx context.Context, id string) error {
	const query = `UPDATE grade_level_fees SET active = FALSE, updated_at = $2 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, time.Now().UTC()); err != nil {
		return fmt.Errorf("deactivate fee schedule: %w", err)
	}
	return nil
}
