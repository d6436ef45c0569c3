package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/stfrancis-sis/enrollment-api/internal/models"
)

type feeScheduleReader interface {
	FindActiveByGradeAndYear(ctx context.Context, grade models.GradeLevel, schoolYear string) (*models.GradeLevelFee, error)
}

// FeeResolver computes the fee breakdown stamped onto an enrollment at
// creation. A missing schedule is a soft condition: the resolver returns an
// all-zero breakdown rather than blocking enrollment, and the zero-fee
// enrollment is flagged for administrative follow up.
type FeeResolver struct {
	fees   feeScheduleReader
	logger *zap.Logger
}

// NewFeeResolver constructs the resolver.
func NewFeeResolver(fees feeScheduleReader, logger *zap.Logger) *FeeResolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FeeResolver{fees: fees, logger: logger}
}

// Resolve looks up the active schedule for the exact (grade level, school
// year) pair and computes the total.
func (r *FeeResolver) Resolve(ctx context.Context, grade models.GradeLevel, schoolYear string) (models.FeeBreakdown, error) {
	fee, err := r.fees.FindActiveByGradeAndYear(ctx, grade, schoolYear)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			r.logger.Warn("no fee schedule configured, proceeding with zero fees",
				zap.String("grade_level", string(grade)),
				zap.String("school_year", schoolYear))
			return models.FeeBreakdown{}, nil
		}
		return models.FeeBreakdown{}, fmt.Errorf("resolve fee schedule: %w", err)
	}

	return models.FeeBreakdown{
		Tuition: fee.TuitionFee,
		Misc:    fee.MiscFee,
		Other:   fee.OtherFee,
		Total:   fee.Total(),
	}, nil
}
