package service

import (
	"context"
	"database/sql"
	"errors"

	"go.uber.org/zap"

	"github.com/stfrancis-sis/enrollment-api/internal/models"
	appErrors "github.com/stfrancis-sis/enrollment-api/pkg/errors"
)

type studentDirectory interface {
	FindByID(ctx context.Context, id string) (*models.Student, error)
	FindGuardianByID(ctx context.Context, id string) (*models.Guardian, error)
	List(ctx context.Context, filter models.StudentFilter) ([]models.Student, int, error)
}

type periodLister interface {
	FindActive(ctx context.Context) (*models.EnrollmentPeriod, error)
	List(ctx context.Context) ([]models.EnrollmentPeriod, error)
}

// StudentService provides read access to students, guardians and enrollment
// periods for the registrar views.
type StudentService struct {
	students studentDirectory
	periods  periodLister
	logger   *zap.Logger
}

// NewStudentService constructs StudentService.
func NewStudentService(students studentDirectory, periods periodLister, logger *zap.Logger) *StudentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StudentService{students: students, periods: periods, logger: logger}
}

// List returns students with pagination metadata.
func (s *StudentService) List(ctx context.Context, filter models.StudentFilter) ([]models.Student, *models.Pagination, error) {
	students, total, err := s.students.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list students")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	return students, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Get returns a student by ID.
func (s *StudentService) Get(ctx context.Context, id string) (*models.Student, error) {
	student, err := s.students.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	return student, nil
}

// Guardian returns a guardian by ID.
func (s *StudentService) Guardian(ctx context.Context, id string) (*models.Guardian, error) {
	guardian, err := s.students.FindGuardianByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "guardian not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load guardian")
	}
	return guardian, nil
}

// Periods returns every enrollment period, newest first.
func (s *StudentService) Periods(ctx context.Context) ([]models.EnrollmentPeriod, error) {
	periods, err := s.periods.List(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list periods")
	}
	return periods, nil
}

// ActivePeriod returns the currently open enrollment period, nil when no
// period is active.
func (s *StudentService) ActivePeriod(ctx context.Context) (*models.EnrollmentPeriod, error) {
	period, err := s.periods.FindActive(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load active period")
	}
	return period, nil
}
