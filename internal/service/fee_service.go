package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/stfrancis-sis/enrollment-api/internal/models"
	appErrors "github.com/stfrancis-sis/enrollment-api/pkg/errors"
)

type feeScheduleStore interface {
	FindActiveByGradeAndYear(ctx context.Context, grade models.GradeLevel, schoolYear string) (*models.GradeLevelFee, error)
	FindByID(ctx context.Context, id string) (*models.GradeLevelFee, error)
	List(ctx context.Context, filter models.FeeFilter) ([]models.GradeLevelFee, int, error)
	Create(ctx context.Context, fee *models.GradeLevelFee) error
	Update(ctx context.Context, fee *models.GradeLevelFee) error
	Deactivate(ctx context.Context, id string) error
}

type feeAuditWriter interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// FeeScheduleRequest is the admin payload for creating or updating a
// fee schedule.
type FeeScheduleRequest struct {
	GradeLevel   string  `json:"grade_level" validate:"required"`
	SchoolYear   string  `json:"school_year" validate:"required,len=9"`
	TuitionFee   float64 `json:"tuition_fee" validate:"gte=0"`
	MiscFee      float64 `json:"misc_fee" validate:"gte=0"`
	OtherFee     float64 `json:"other_fee" validate:"gte=0"`
	PaymentTerms int     `json:"payment_terms" validate:"gte=1,lte=12"`
	Active       bool    `json:"active"`
}

// FeeService manages grade level fee schedules. Changes go straight to the
// audit trail since they move money for every future enrollment.
type FeeService struct {
	repo      feeScheduleStore
	audit     feeAuditWriter
	validator *validator.Validate
	logger    *zap.Logger
}

// NewFeeService constructs FeeService.
func NewFeeService(repo feeScheduleStore, audit feeAuditWriter, validate *validator.Validate, logger *zap.Logger) *FeeService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FeeService{repo: repo, audit: audit, validator: validate, logger: logger}
}

// List returns fee schedules with pagination metadata.
func (s *FeeService) List(ctx context.Context, filter models.FeeFilter) ([]models.GradeLevelFee, *models.Pagination, error) {
	fees, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list fee schedules")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	return fees, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Get returns one fee schedule.
func (s *FeeService) Get(ctx context.Context, id string) (*models.GradeLevelFee, error) {
	fee, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "fee schedule not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load fee schedule")
	}
	return fee, nil
}

// Create registers a new fee schedule. An active schedule for the same
// (grade level, school year) pair must not already exist.
func (s *FeeService) Create(ctx context.Context, req FeeScheduleRequest, actorID *string) (*models.GradeLevelFee, error) {
	grade, err := s.validate(req)
	if err != nil {
		return nil, err
	}

	if req.Active {
		if _, err := s.repo.FindActiveByGradeAndYear(ctx, grade, req.SchoolYear); err == nil {
			return nil, appErrors.Clone(appErrors.ErrConflict,
				fmt.Sprintf("an active schedule already exists for %s %s", grade, req.SchoolYear))
		} else if !errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check existing schedule")
		}
	}

	fee := &models.GradeLevelFee{
		GradeLevel:   grade,
		SchoolYear:   req.SchoolYear,
		TuitionFee:   roundCents(req.TuitionFee),
		MiscFee:      roundCents(req.MiscFee),
		OtherFee:     roundCents(req.OtherFee),
		PaymentTerms: req.PaymentTerms,
		Active:       req.Active,
	}
	if err := s.repo.Create(ctx, fee); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create fee schedule")
	}
	s.recordAudit(ctx, actorID, fee)
	return fee, nil
}

// Update writes an existing fee schedule's amounts and terms.
func (s *FeeService) Update(ctx context.Context, id string, req FeeScheduleRequest, actorID *string) (*models.GradeLevelFee, error) {
	if _, err := s.validate(req); err != nil {
		return nil, err
	}
	fee, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	fee.TuitionFee = roundCents(req.TuitionFee)
	fee.MiscFee = roundCents(req.MiscFee)
	fee.OtherFee = roundCents(req.OtherFee)
	fee.PaymentTerms = req.PaymentTerms
	fee.Active = req.Active
	if err := s.repo.Update(ctx, fee); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update fee schedule")
	}
	s.recordAudit(ctx, actorID, fee)
	return fee, nil
}

// Deactivate retires a fee schedule. Existing enrollments keep the fees
// stamped at submission.
func (s *FeeService) Deactivate(ctx context.Context, id string, actorID *string) error {
	fee, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.Deactivate(ctx, fee.ID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to deactivate fee schedule")
	}
	fee.Active = false
	s.recordAudit(ctx, actorID, fee)
	return nil
}

func (s *FeeService) validate(req FeeScheduleRequest) (models.GradeLevel, error) {
	if err := s.validator.Struct(req); err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid fee schedule payload")
	}
	grade := models.GradeLevel(req.GradeLevel)
	if !grade.Valid() {
		return "", appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown grade level %q", req.GradeLevel))
	}
	return grade, nil
}

func (s *FeeService) recordAudit(ctx context.Context, actorID *string, fee *models.GradeLevelFee) {
	if s.audit == nil {
		return
	}
	payload, err := json.Marshal(fee)
	if err != nil {
		s.logger.Warn("failed to marshal fee schedule for audit", zap.Error(err))
		return
	}
	entry := &models.AuditLog{
		UserID:     actorID,
		Action:     models.AuditActionFeeScheduleChange,
		Resource:   "grade_level_fees",
		ResourceID: &fee.ID,
		NewValues:  payload,
		CreatedAt:  time.Now().UTC(),
	}
	if err := s.audit.CreateAuditLog(ctx, entry); err != nil {
		s.logger.Warn("failed to write fee schedule audit entry",
			zap.String("fee_id", fee.ID),
			zap.Error(err))
	}
}
