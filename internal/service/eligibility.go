package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/stfrancis-sis/enrollment-api/internal/models"
)

type eligibilityEnrollmentReader interface {
	ExistsWithStatus(ctx context.Context, studentID string, status models.EnrollmentStatus) (bool, error)
	FindLatestByStudent(ctx context.Context, studentID string) (*models.Enrollment, error)
}

// Violation messages surfaced by the eligibility checker, in rule order.
const (
	ViolationPeriodClosed    = "enrollment period is closed"
	ViolationPendingExists   = "student already has a pending enrollment"
	ViolationActiveExists    = "student already has an active enrollment"
	ViolationGradeRegression = "cannot enroll to a lower grade than the previous enrollment"
)

// EligibilityChecker evaluates submission rules in a fixed order and
// accumulates every violation. Callers surface only the head of the list;
// the full list is logged so registrars can see all problems.
type EligibilityChecker struct {
	enrollments       eligibilityEnrollmentReader
	requireOpenPeriod bool
	logger            *zap.Logger
}

// NewEligibilityChecker constructs the checker.
func NewEligibilityChecker(enrollments eligibilityEnrollmentReader, requireOpenPeriod bool, logger *zap.Logger) *EligibilityChecker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EligibilityChecker{enrollments: enrollments, requireOpenPeriod: requireOpenPeriod, logger: logger}
}

// Check returns the ordered list of violations for a prospective
// enrollment. An empty list means the submission is eligible.
func (c *EligibilityChecker) Check(ctx context.Context, period *models.EnrollmentPeriod, studentID string, targetGrade models.GradeLevel) ([]string, error) {
	var violations []string
	now := time.Now().UTC()

	if c.requireOpenPeriod {
		if period == nil || !period.IsOpen(now) {
			violations = append(violations, ViolationPeriodClosed)
		}
	}

	pending, err := c.enrollments.ExistsWithStatus(ctx, studentID, models.EnrollmentStatusPending)
	if err != nil {
		return nil, fmt.Errorf("check pending enrollment: %w", err)
	}
	if pending {
		violations = append(violations, ViolationPendingExists)
	}

	active, err := c.enrollments.ExistsWithStatus(ctx, studentID, models.EnrollmentStatusEnrolled)
	if err != nil {
		return nil, fmt.Errorf("check active enrollment: %w", err)
	}
	if active {
		violations = append(violations, ViolationActiveExists)
	}

	previous, err := c.enrollments.FindLatestByStudent(ctx, studentID)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("find previous enrollment: %w", err)
	}
	if previous != nil && !targetGrade.AtLeast(previous.GradeLevel) {
		violations = append(violations, fmt.Sprintf("%s (%s -> %s)", ViolationGradeRegression, previous.GradeLevel, targetGrade))
	}

	if len(violations) > 0 {
		c.logger.Info("enrollment eligibility violations",
			zap.String("student_id", studentID),
			zap.String("target_grade", string(targetGrade)),
			zap.Strings("violations", violations))
	}

	return violations, nil
}
