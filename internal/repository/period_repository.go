package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/stfrancis-sis/enrollment-api/internal/models"
)

// PeriodRepository reads enrollment periods.
type PeriodRepository struct {
	db *sqlx.DB
}

// NewPeriodRepository constructs the repository.
func NewPeriodRepository(db *sqlx.DB) *PeriodRepository {
	return &PeriodRepository{db: db}
}

const periodColumns = `id, name, school_year, starts_at, ends_at, active, created_at, updated_at`

// FindByID returns a period by its ID.
func (r *PeriodRepository) FindByID(ctx context.Context, id string) (*models.EnrollmentPeriod, error) {
	query := "SELECT " + periodColumns + " FROM enrollment_periods WHERE id = $1"
	var period models.EnrollmentPeriod
	if err := r.db.GetContext(ctx, &period, query, id); err != nil {
		return nil, err
	}
	return &period, nil
}

// FindActive returns the currently active period. sql.ErrNoRows when none
// is configured.
func (r *PeriodRepository) FindActive(ctx context.Context) (*models.EnrollmentPeriod, error) {
	query := "SELECT " + periodColumns + " FROM enrollment_periods WHERE active = TRUE ORDER BY starts_at DESC LIMIT 1"
	var period models.EnrollmentPeriod
	if err := r.db.GetContext(ctx, &period, query); err != nil {
		return nil, err
	}
	return &period, nil
}

// List returns all periods, newest first.
func (r *PeriodRepository) List(ctx context.Context) ([]models.EnrollmentPeriod, error) {
	query := "SELECT " + periodColumns + " FROM enrollment_periods ORDER BY starts_at DESC"
	var periods []models.EnrollmentPeriod
	if err := r.db.SelectContext(ctx, &periods, query); err != nil {
		return nil, err
	}
	return periods, nil
}
