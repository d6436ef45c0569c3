package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/stfrancis-sis/enrollment-api/internal/events"
	"github.com/stfrancis-sis/enrollment-api/internal/models"
	"github.com/stfrancis-sis/enrollment-api/internal/repository"
	appErrors "github.com/stfrancis-sis/enrollment-api/pkg/errors"
)

// Rejection reasons must be meaningful but bounded.
const (
	rejectReasonMinLen = 10
	rejectReasonMaxLen = 500
)

type enrollmentRepository interface {
	List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, int, error)
	FindByID(ctx context.Context, id string) (*models.Enrollment, error)
	Create(ctx context.Context, enrollment *models.Enrollment) error
	UpdateStatus(ctx context.Context, enrollment *models.Enrollment) error
	UpdateDocumentStatus(ctx context.Context, id string, status models.DocumentStatus) error
	ApproveAll(ctx context.Context, ids []string, approvedBy string, approvedAt time.Time) ([]models.Enrollment, error)
	HasBillingRecords(ctx context.Context, id string) (bool, error)
	Delete(ctx context.Context, id string) error
}

type studentStore interface {
	FindByID(ctx context.Context, id string) (*models.Student, error)
	FindGuardianByID(ctx context.Context, id string) (*models.Guardian, error)
	UpdateGradeLevel(ctx context.Context, id string, grade models.GradeLevel) error
}

type periodReader interface {
	FindByID(ctx context.Context, id string) (*models.EnrollmentPeriod, error)
	FindActive(ctx context.Context) (*models.EnrollmentPeriod, error)
}

type eligibilityChecker interface {
	Check(ctx context.Context, period *models.EnrollmentPeriod, studentID string, targetGrade models.GradeLevel) ([]string, error)
}

type feeResolver interface {
	Resolve(ctx context.Context, grade models.GradeLevel, schoolYear string) (models.FeeBreakdown, error)
}

type invoiceIssuer interface {
	IssueInvoice(ctx context.Context, enrollmentID string, actorID *string) (*models.Invoice, error)
}

// SubmitEnrollmentRequest describes a guardian's enrollment submission.
type SubmitEnrollmentRequest struct {
	StudentID   string `json:"student_id" validate:"required"`
	PeriodID    string `json:"period_id"`
	GradeLevel  string `json:"grade_level" validate:"required"`
	Type        string `json:"type" validate:"required"`
	PaymentPlan string `json:"payment_plan" validate:"required"`
}

// RejectEnrollmentRequest carries the mandatory rejection reason.
type RejectEnrollmentRequest struct {
	Reason string `json:"reason" validate:"required"`
}

// ReviewDocumentsRequest records the outcome of a document review.
type ReviewDocumentsRequest struct {
	Status string `json:"status" validate:"required"`
}

// BulkApproveRequest lists the enrollments to approve as one batch.
type BulkApproveRequest struct {
	EnrollmentIDs []string `json:"enrollment_ids" validate:"required,min=1"`
}

// EnrollmentService is the lifecycle engine. It validates transitions,
// triggers fee calculation on creation, stamps transition timestamps and
// emits lifecycle events; delivery side effects live behind the event sink.
type EnrollmentService struct {
	repo        enrollmentRepository
	students    studentStore
	periods     periodReader
	eligibility eligibilityChecker
	fees        feeResolver
	billing     invoiceIssuer
	sink        events.Sink
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewEnrollmentService constructs EnrollmentService.
func NewEnrollmentService(repo enrollmentRepository, students studentStore, periods periodReader, eligibility eligibilityChecker, fees feeResolver, billing invoiceIssuer, sink events.Sink, validate *validator.Validate, logger *zap.Logger) *EnrollmentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if sink == nil {
		sink = events.NopSink{}
	}
	return &EnrollmentService{
		repo:        repo,
		students:    students,
		periods:     periods,
		eligibility: eligibility,
		fees:        fees,
		billing:     billing,
		sink:        sink,
		validator:   validate,
		logger:      logger,
	}
}

// List returns enrollments with pagination metadata.
func (s *EnrollmentService) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, *models.Pagination, error) {
	enrollments, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list enrollments")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	pagination := &models.Pagination{Page: page, PageSize: size, TotalCount: total}
	return enrollments, pagination, nil
}

// Get returns a single enrollment.
func (s *EnrollmentService) Get(ctx context.Context, id string) (*models.Enrollment, error) {
	enrollment, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}
	return enrollment, nil
}

// Submit runs the eligibility checker and creates a PENDING enrollment with
// its fee breakdown resolved. Only the first violation is surfaced to the
// caller; the checker logs the full list.
func (s *EnrollmentService) Submit(ctx context.Context, req SubmitEnrollmentRequest, actorID *string) (*models.Enrollment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid enrollment payload")
	}

	grade := models.GradeLevel(req.GradeLevel)
	if !grade.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown grade level %q", req.GradeLevel))
	}
	enrollmentType := models.EnrollmentType(strings.ToUpper(req.Type))
	if !enrollmentType.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown enrollment type %q", req.Type))
	}
	plan := models.PaymentPlan(strings.ToUpper(req.PaymentPlan))
	if !plan.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown payment plan %q", req.PaymentPlan))
	}

	student, err := s.students.FindByID(ctx, req.StudentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	if !student.Active {
		return nil, appErrors.Clone(appErrors.ErrValidation, "student record is inactive")
	}

	period, err := s.resolvePeriod(ctx, req.PeriodID)
	if err != nil {
		return nil, err
	}

	violations, err := s.eligibility.Check(ctx, period, student.ID, grade)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check eligibility")
	}
	if len(violations) > 0 {
		return nil, appErrors.Clone(appErrors.ErrIneligibleEnrollment, violations[0])
	}

	breakdown, err := s.fees.Resolve(ctx, grade, period.SchoolYear)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve fees")
	}
	if breakdown.IsZero() {
		s.logger.Warn("creating zero-fee enrollment, flag for administrative follow up",
			zap.String("student_id", student.ID),
			zap.String("grade_level", string(grade)),
			zap.String("school_year", period.SchoolYear))
	}

	enrollment := &models.Enrollment{
		StudentID:      student.ID,
		GuardianID:     student.GuardianID,
		PeriodID:       period.ID,
		GradeLevel:     grade,
		Type:           enrollmentType,
		PaymentPlan:    plan,
		Status:         models.EnrollmentStatusPending,
		PaymentStatus:  models.PaymentStatusPending,
		DocumentStatus: models.DocumentStatusPending,
		TuitionFee:     breakdown.Tuition,
		MiscFee:        breakdown.Misc,
		OtherFee:       breakdown.Other,
		TotalFee:       breakdown.Total,
		AmountPaid:     0,
		Balance:        breakdown.Total,
	}
	if err := s.repo.Create(ctx, enrollment); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create enrollment")
	}

	s.sink.Emit(ctx, events.Event{
		Type:       events.TypeEnrollmentCreated,
		ActorID:    actorID,
		Enrollment: enrollment,
		ZeroFee:    breakdown.IsZero(),
	})
	return enrollment, nil
}

// Approve moves a PENDING enrollment to APPROVED, stamping the approval and
// promoting the student's recorded grade level.
func (s *EnrollmentService) Approve(ctx context.Context, id, actorID string) (*models.Enrollment, error) {
	enrollment, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if enrollment.Status != models.EnrollmentStatusPending {
		return nil, invalidTransition(enrollment.Status, models.EnrollmentStatusApproved)
	}

	now := time.Now().UTC()
	enrollment.Status = models.EnrollmentStatusApproved
	enrollment.ApprovedAt = &now
	enrollment.ApprovedBy = &actorID
	if err := s.repo.UpdateStatus(ctx, enrollment); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to approve enrollment")
	}

	if err := s.students.UpdateGradeLevel(ctx, enrollment.StudentID, enrollment.GradeLevel); err != nil {
		s.logger.Error("failed to promote student grade level after approval",
			zap.String("enrollment_id", enrollment.ID),
			zap.String("student_id", enrollment.StudentID),
			zap.Error(err))
	}

	s.sink.Emit(ctx, events.Event{
		Type:       events.TypeEnrollmentApproved,
		ActorID:    &actorID,
		Enrollment: enrollment,
	})
	return enrollment, nil
}

// Reject moves a PENDING enrollment to REJECTED. The reason is mandatory,
// 10 to 500 characters after trimming.
func (s *EnrollmentService) Reject(ctx context.Context, id, actorID string, req RejectEnrollmentRequest) (*models.Enrollment, error) {
	reason := strings.TrimSpace(req.Reason)
	if n := utf8.RuneCountInString(reason); n < rejectReasonMinLen || n > rejectReasonMaxLen {
		return nil, appErrors.Clone(appErrors.ErrValidation,
			fmt.Sprintf("rejection reason must be %d to %d characters", rejectReasonMinLen, rejectReasonMaxLen))
	}

	enrollment, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if enrollment.Status != models.EnrollmentStatusPending {
		return nil, invalidTransition(enrollment.Status, models.EnrollmentStatusRejected)
	}

	now := time.Now().UTC()
	enrollment.Status = models.EnrollmentStatusRejected
	enrollment.RejectedAt = &now
	enrollment.RejectionReason = &reason
	if err := s.repo.UpdateStatus(ctx, enrollment); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reject enrollment")
	}

	s.sink.Emit(ctx, events.Event{
		Type:       events.TypeEnrollmentRejected,
		ActorID:    &actorID,
		Enrollment: enrollment,
		Reason:     reason,
	})
	return enrollment, nil
}

// ReviewDocuments records the registrar's verdict on the submitted documents.
// Only VERIFIED and REJECTED can be set; terminal enrollments are closed to
// further review.
func (s *EnrollmentService) ReviewDocuments(ctx context.Context, id, actorID string, req ReviewDocumentsRequest) (*models.Enrollment, error) {
	status := models.DocumentStatus(strings.ToUpper(strings.TrimSpace(req.Status)))
	if status != models.DocumentStatusVerified && status != models.DocumentStatusRejected {
		return nil, appErrors.Clone(appErrors.ErrValidation,
			fmt.Sprintf("document status must be %s or %s", models.DocumentStatusVerified, models.DocumentStatusRejected))
	}

	enrollment, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if enrollment.Status.IsTerminal() {
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition,
			fmt.Sprintf("enrollment is in terminal status %s", enrollment.Status))
	}

	if err := s.repo.UpdateDocumentStatus(ctx, enrollment.ID, status); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update document status")
	}
	enrollment.DocumentStatus = status

	s.sink.Emit(ctx, events.Event{
		Type:       events.TypeDocumentsReviewed,
		ActorID:    &actorID,
		Enrollment: enrollment,
	})
	return enrollment, nil
}

// Advance moves an enrollment one step along the happy path. PENDING exits
// through Approve or Reject, never Advance; terminal states fail.
func (s *EnrollmentService) Advance(ctx context.Context, id, actorID string) (*models.Enrollment, error) {
	enrollment, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if enrollment.Status.IsTerminal() {
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition,
			fmt.Sprintf("enrollment is in terminal status %s", enrollment.Status))
	}
	if enrollment.Status == models.EnrollmentStatusPending {
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition, "pending enrollments are advanced via approve or reject")
	}

	next, ok := enrollment.Status.Next()
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition,
			fmt.Sprintf("no transition defined from status %s", enrollment.Status))
	}

	enrollment.Status = next
	if next == models.EnrollmentStatusEnrolled {
		now := time.Now().UTC()
		enrollment.EnrolledAt = &now
	}
	if err := s.repo.UpdateStatus(ctx, enrollment); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to advance enrollment")
	}

	if next == models.EnrollmentStatusReadyForPayment && s.billing != nil {
		if _, err := s.billing.IssueInvoice(ctx, enrollment.ID, &actorID); err != nil {
			// The transition is committed; the invoice can be issued
			// manually through the billing endpoint.
			s.logger.Error("failed to issue invoice for enrollment ready for payment",
				zap.String("enrollment_id", enrollment.ID),
				zap.Error(err))
		}
	}

	s.sink.Emit(ctx, events.Event{
		Type:       events.TypeEnrollmentAdvanced,
		ActorID:    &actorID,
		Enrollment: enrollment,
	})
	return enrollment, nil
}

// BulkApprove approves a batch of PENDING enrollments all-or-nothing.
// Every id is validated before any row mutates; a single invalid id fails
// the whole batch with per-id details.
func (s *EnrollmentService) BulkApprove(ctx context.Context, req BulkApproveRequest, actorID string) ([]models.Enrollment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid bulk approve payload")
	}

	ids := dedupe(req.EnrollmentIDs)
	approvedAt := time.Now().UTC()
	approved, err := s.repo.ApproveAll(ctx, ids, actorID, approvedAt)
	if err != nil {
		var bulkErr *repository.BulkStatusError
		if errors.As(err, &bulkErr) {
			return nil, appErrors.NewBulkError("bulk approve rejected, no enrollment was changed", bulkDetails(bulkErr))
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to bulk approve enrollments")
	}

	for i := range approved {
		enrollment := approved[i]
		if err := s.students.UpdateGradeLevel(ctx, enrollment.StudentID, enrollment.GradeLevel); err != nil {
			s.logger.Error("failed to promote student grade level after bulk approval",
				zap.String("enrollment_id", enrollment.ID),
				zap.String("student_id", enrollment.StudentID),
				zap.Error(err))
		}
		s.sink.Emit(ctx, events.Event{
			Type:       events.TypeEnrollmentApproved,
			ActorID:    &actorID,
			Enrollment: &approved[i],
		})
	}
	return approved, nil
}

// Delete hard-deletes an enrollment. Blocked while an invoice or payment
// references it; those records keep the application as their paper trail.
func (s *EnrollmentService) Delete(ctx context.Context, id string) error {
	enrollment, err := s.Get(ctx, id)
	if err != nil {
		return err
	}

	hasBilling, err := s.repo.HasBillingRecords(ctx, enrollment.ID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check billing records")
	}
	if hasBilling {
		return appErrors.Clone(appErrors.ErrConflict, "enrollment has billing records and cannot be deleted")
	}

	if err := s.repo.Delete(ctx, enrollment.ID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete enrollment")
	}
	return nil
}

func (s *EnrollmentService) resolvePeriod(ctx context.Context, periodID string) (*models.EnrollmentPeriod, error) {
	if periodID != "" {
		period, err := s.periods.FindByID(ctx, periodID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment period not found")
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment period")
		}
		return period, nil
	}

	period, err := s.periods.FindActive(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrIneligibleEnrollment, ViolationPeriodClosed)
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load active period")
	}
	return period, nil
}

func invalidTransition(from, to models.EnrollmentStatus) *appErrors.Error {
	return appErrors.Clone(appErrors.ErrInvalidTransition,
		fmt.Sprintf("cannot move enrollment from %s to %s", from, to))
}

func bulkDetails(bulkErr *repository.BulkStatusError) []appErrors.BulkErrorDetail {
	details := make([]appErrors.BulkErrorDetail, 0, len(bulkErr.Missing)+len(bulkErr.Invalid))
	for _, id := range bulkErr.Missing {
		details = append(details, appErrors.BulkErrorDetail{
			ID:      id,
			Code:    appErrors.ErrNotFound.Code,
			Message: "enrollment not found",
		})
	}
	invalidIDs := make([]string, 0, len(bulkErr.Invalid))
	for id := range bulkErr.Invalid {
		invalidIDs = append(invalidIDs, id)
	}
	sort.Strings(invalidIDs)
	for _, id := range invalidIDs {
		details = append(details, appErrors.BulkErrorDetail{
			ID:      id,
			Code:    appErrors.ErrInvalidTransition.Code,
			Message: fmt.Sprintf("status is %s, expected %s", bulkErr.Invalid[id], models.EnrollmentStatusPending),
		})
	}
	return details
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
