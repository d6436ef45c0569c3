package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/stfrancis-sis/enrollment-api/internal/events"
	"github.com/stfrancis-sis/enrollment-api/internal/models"
	"github.com/stfrancis-sis/enrollment-api/internal/repository"
	appErrors "github.com/stfrancis-sis/enrollment-api/pkg/errors"
)

type mockEnrollmentRepo struct {
	enrollments  map[string]*models.Enrollment
	created      *models.Enrollment
	updated      *models.Enrollment
	docStatus    models.DocumentStatus
	docUpdatedID string
	hasBilling   bool
	deletedID    string
	approveErr   error
	approved     []models.Enrollment
	approvedIDs  []string
}

func newMockEnrollmentRepo(seed ...*models.Enrollment) *mockEnrollmentRepo {
	repo := &mockEnrollmentRepo{enrollments: make(map[string]*models.Enrollment)}
	for _, e := range seed {
		repo.enrollments[e.ID] = e
	}
	return repo
}

func (m *mockEnrollmentRepo) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, int, error) {
	return nil, 0, nil
}

func (m *mockEnrollmentRepo) FindByID(ctx context.Context, id string) (*models.Enrollment, error) {
	e, ok := m.enrollments[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copy := *e
	return &copy, nil
}

func (m *mockEnrollmentRepo) Create(ctx context.Context, enrollment *models.Enrollment) error {
	enrollment.ID = "enr-new"
	enrollment.Code = "ENR-2025-000123"
	m.created = enrollment
	return nil
}

func (m *mockEnrollmentRepo) UpdateStatus(ctx context.Context, enrollment *models.Enrollment) error {
	m.updated = enrollment
	return nil
}

func (m *mockEnrollmentRepo) UpdateDocumentStatus(ctx context.Context, id string, status models.DocumentStatus) error {
	m.docUpdatedID = id
	m.docStatus = status
	return nil
}

func (m *mockEnrollmentRepo) HasBillingRecords(ctx context.Context, id string) (bool, error) {
	return m.hasBilling, nil
}

func (m *mockEnrollmentRepo) Delete(ctx context.Context, id string) error {
	m.deletedID = id
	delete(m.enrollments, id)
	return nil
}

func (m *mockEnrollmentRepo) ApproveAll(ctx context.Context, ids []string, approvedBy string, approvedAt time.Time) ([]models.Enrollment, error) {
	m.approvedIDs = ids
	if m.approveErr != nil {
		return nil, m.approveErr
	}
	return m.approved, nil
}

type mockStudentStore struct {
	student      *models.Student
	promotedTo   models.GradeLevel
	promoteCalls int
	promoteErr   error
}

func (m *mockStudentStore) FindByID(ctx context.Context, id string) (*models.Student, error) {
	if m.student == nil {
		return nil, sql.ErrNoRows
	}
	return m.student, nil
}

func (m *mockStudentStore) FindGuardianByID(ctx context.Context, id string) (*models.Guardian, error) {
	return nil, sql.ErrNoRows
}

func (m *mockStudentStore) UpdateGradeLevel(ctx context.Context, id string, grade models.GradeLevel) error {
	m.promoteCalls++
	m.promotedTo = grade
	return m.promoteErr
}

type mockPeriodReader struct {
	active *models.EnrollmentPeriod
	byID   *models.EnrollmentPeriod
}

func (m *mockPeriodReader) FindByID(ctx context.Context, id string) (*models.EnrollmentPeriod, error) {
	if m.byID == nil {
		return nil, sql.ErrNoRows
	}
	return m.byID, nil
}

func (m *mockPeriodReader) FindActive(ctx context.Context) (*models.EnrollmentPeriod, error) {
	if m.active == nil {
		return nil, sql.ErrNoRows
	}
	return m.active, nil
}

type mockChecker struct {
	violations []string
	err        error
}

func (m *mockChecker) Check(ctx context.Context, period *models.EnrollmentPeriod, studentID string, targetGrade models.GradeLevel) ([]string, error) {
	return m.violations, m.err
}

type mockFeeResolver struct {
	breakdown models.FeeBreakdown
	err       error
}

func (m *mockFeeResolver) Resolve(ctx context.Context, grade models.GradeLevel, schoolYear string) (models.FeeBreakdown, error) {
	return m.breakdown, m.err
}

type mockInvoiceIssuer struct {
	called       bool
	enrollmentID string
	err          error
}

func (m *mockInvoiceIssuer) IssueInvoice(ctx context.Context, enrollmentID string, actorID *string) (*models.Invoice, error) {
	m.called = true
	m.enrollmentID = enrollmentID
	if m.err != nil {
		return nil, m.err
	}
	return &models.Invoice{ID: "inv-1", EnrollmentID: enrollmentID}, nil
}

type capturingSink struct {
	events []events.Event
}

func (s *capturingSink) Emit(ctx context.Context, event events.Event) {
	s.events = append(s.events, event)
}

func activeStudent() *models.Student {
	return &models.Student{ID: "student-1", GuardianID: "guardian-1", GradeLevel: "Grade 2", Active: true}
}

func newEnrollmentService(repo *mockEnrollmentRepo, students *mockStudentStore, periods *mockPeriodReader, checker *mockChecker, fees *mockFeeResolver, billing *mockInvoiceIssuer, sink *capturingSink) *EnrollmentService {
	return NewEnrollmentService(repo, students, periods, checker, fees, billing, sink, validator.New(), zap.NewNop())
}

func TestSubmitCreatesPendingEnrollment(t *testing.T) {
	repo := newMockEnrollmentRepo()
	sink := &capturingSink{}
	svc := newEnrollmentService(repo, &mockStudentStore{student: activeStudent()}, &mockPeriodReader{active: openPeriod()},
		&mockChecker{}, &mockFeeResolver{breakdown: models.FeeBreakdown{Tuition: 25000, Misc: 5000, Other: 1500, Total: 31500}},
		&mockInvoiceIssuer{}, sink)

	actor := "user-1"
	enrollment, err := svc.Submit(context.Background(), SubmitEnrollmentRequest{
		StudentID:   "student-1",
		GradeLevel:  "Grade 3",
		Type:        "continuing",
		PaymentPlan: "quarterly",
	}, &actor)
	require.NoError(t, err)

	assert.Equal(t, models.EnrollmentStatusPending, enrollment.Status)
	assert.Equal(t, models.PaymentStatusPending, enrollment.PaymentStatus)
	assert.Equal(t, models.DocumentStatusPending, enrollment.DocumentStatus)
	assert.Equal(t, models.EnrollmentTypeContinuing, enrollment.Type)
	assert.Equal(t, models.PaymentPlanQuarterly, enrollment.PaymentPlan)
	assert.Equal(t, 31500.0, enrollment.TotalFee)
	assert.Equal(t, 31500.0, enrollment.Balance)
	assert.Zero(t, enrollment.AmountPaid)
	assert.Equal(t, "guardian-1", enrollment.GuardianID)

	require.Len(t, sink.events, 1)
	assert.Equal(t, events.TypeEnrollmentCreated, sink.events[0].Type)
	assert.False(t, sink.events[0].ZeroFee)
}

func TestSubmitZeroFeeStillSucceeds(t *testing.T) {
	repo := newMockEnrollmentRepo()
	sink := &capturingSink{}
	svc := newEnrollmentService(repo, &mockStudentStore{student: activeStudent()}, &mockPeriodReader{active: openPeriod()},
		&mockChecker{}, &mockFeeResolver{breakdown: models.FeeBreakdown{}}, &mockInvoiceIssuer{}, sink)

	enrollment, err := svc.Submit(context.Background(), SubmitEnrollmentRequest{
		StudentID:   "student-1",
		GradeLevel:  "Grade 3",
		Type:        "NEW",
		PaymentPlan: "ANNUAL",
	}, nil)
	require.NoError(t, err)
	assert.Zero(t, enrollment.TotalFee)

	require.Len(t, sink.events, 1)
	assert.True(t, sink.events[0].ZeroFee)
}

func TestSubmitSurfacesFirstViolation(t *testing.T) {
	svc := newEnrollmentService(newMockEnrollmentRepo(), &mockStudentStore{student: activeStudent()}, &mockPeriodReader{active: openPeriod()},
		&mockChecker{violations: []string{ViolationPendingExists, ViolationActiveExists}},
		&mockFeeResolver{}, &mockInvoiceIssuer{}, &capturingSink{})

	_, err := svc.Submit(context.Background(), SubmitEnrollmentRequest{
		StudentID:   "student-1",
		GradeLevel:  "Grade 3",
		Type:        "NEW",
		PaymentPlan: "ANNUAL",
	}, nil)
	require.Error(t, err)

	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrIneligibleEnrollment.Code, appErr.Code)
	assert.Equal(t, ViolationPendingExists, appErr.Message)
}

func TestSubmitNoActivePeriod(t *testing.T) {
	svc := newEnrollmentService(newMockEnrollmentRepo(), &mockStudentStore{student: activeStudent()}, &mockPeriodReader{},
		&mockChecker{}, &mockFeeResolver{}, &mockInvoiceIssuer{}, &capturingSink{})

	_, err := svc.Submit(context.Background(), SubmitEnrollmentRequest{
		StudentID:   "student-1",
		GradeLevel:  "Grade 3",
		Type:        "NEW",
		PaymentPlan: "ANNUAL",
	}, nil)

	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrIneligibleEnrollment.Code, appErr.Code)
	assert.Equal(t, ViolationPeriodClosed, appErr.Message)
}

func TestSubmitRejectsUnknownEnums(t *testing.T) {
	svc := newEnrollmentService(newMockEnrollmentRepo(), &mockStudentStore{student: activeStudent()}, &mockPeriodReader{active: openPeriod()},
		&mockChecker{}, &mockFeeResolver{}, &mockInvoiceIssuer{}, &capturingSink{})

	cases := []SubmitEnrollmentRequest{
		{StudentID: "student-1", GradeLevel: "Grade 99", Type: "NEW", PaymentPlan: "ANNUAL"},
		{StudentID: "student-1", GradeLevel: "Grade 3", Type: "WALK_IN", PaymentPlan: "ANNUAL"},
		{StudentID: "student-1", GradeLevel: "Grade 3", Type: "NEW", PaymentPlan: "WEEKLY"},
	}
	for _, req := range cases {
		_, err := svc.Submit(context.Background(), req, nil)
		var appErr *appErrors.Error
		require.ErrorAs(t, err, &appErr)
		assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
	}
}

func TestApprovePromotesGradeAndEmits(t *testing.T) {
	repo := newMockEnrollmentRepo(&models.Enrollment{ID: "enr-1", StudentID: "student-1", GradeLevel: "Grade 3", Status: models.EnrollmentStatusPending})
	students := &mockStudentStore{student: activeStudent()}
	sink := &capturingSink{}
	svc := newEnrollmentService(repo, students, &mockPeriodReader{}, &mockChecker{}, &mockFeeResolver{}, &mockInvoiceIssuer{}, sink)

	enrollment, err := svc.Approve(context.Background(), "enr-1", "registrar-1")
	require.NoError(t, err)

	assert.Equal(t, models.EnrollmentStatusApproved, enrollment.Status)
	require.NotNil(t, enrollment.ApprovedAt)
	require.NotNil(t, enrollment.ApprovedBy)
	assert.Equal(t, "registrar-1", *enrollment.ApprovedBy)
	assert.Equal(t, models.GradeLevel("Grade 3"), students.promotedTo)

	require.Len(t, sink.events, 1)
	assert.Equal(t, events.TypeEnrollmentApproved, sink.events[0].Type)
}

func TestApproveNonPendingFails(t *testing.T) {
	repo := newMockEnrollmentRepo(&models.Enrollment{ID: "enr-1", Status: models.EnrollmentStatusApproved})
	svc := newEnrollmentService(repo, &mockStudentStore{}, &mockPeriodReader{}, &mockChecker{}, &mockFeeResolver{}, &mockInvoiceIssuer{}, &capturingSink{})

	_, err := svc.Approve(context.Background(), "enr-1", "registrar-1")
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrInvalidTransition.Code, appErr.Code)
	assert.Nil(t, repo.updated)
}

func TestRejectReasonBounds(t *testing.T) {
	repo := newMockEnrollmentRepo(&models.Enrollment{ID: "enr-1", Status: models.EnrollmentStatusPending})
	svc := newEnrollmentService(repo, &mockStudentStore{}, &mockPeriodReader{}, &mockChecker{}, &mockFeeResolver{}, &mockInvoiceIssuer{}, &capturingSink{})

	_, err := svc.Reject(context.Background(), "enr-1", "registrar-1", RejectEnrollmentRequest{Reason: "too short"})
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)

	_, err = svc.Reject(context.Background(), "enr-1", "registrar-1", RejectEnrollmentRequest{Reason: strings.Repeat("x", 501)})
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)

	// 5 characters, 10 bytes: character count is what matters.
	_, err = svc.Reject(context.Background(), "enr-1", "registrar-1", RejectEnrollmentRequest{Reason: strings.Repeat("ñ", 5)})
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)

	_, err = svc.Reject(context.Background(), "enr-1", "registrar-1", RejectEnrollmentRequest{Reason: strings.Repeat("ñ", 500)})
	require.NoError(t, err)

	enrollment, err := svc.Reject(context.Background(), "enr-1", "registrar-1", RejectEnrollmentRequest{Reason: "  incomplete documents submitted  "})
	require.NoError(t, err)
	assert.Equal(t, models.EnrollmentStatusRejected, enrollment.Status)
	require.NotNil(t, enrollment.RejectionReason)
	assert.Equal(t, "incomplete documents submitted", *enrollment.RejectionReason)
	require.NotNil(t, enrollment.RejectedAt)
}

func TestReviewDocumentsMarksVerified(t *testing.T) {
	repo := newMockEnrollmentRepo(&models.Enrollment{ID: "enr-1", Status: models.EnrollmentStatusPending, DocumentStatus: models.DocumentStatusPending})
	sink := &capturingSink{}
	svc := newEnrollmentService(repo, &mockStudentStore{}, &mockPeriodReader{}, &mockChecker{}, &mockFeeResolver{}, &mockInvoiceIssuer{}, sink)

	enrollment, err := svc.ReviewDocuments(context.Background(), "enr-1", "registrar-1", ReviewDocumentsRequest{Status: "verified"})
	require.NoError(t, err)

	assert.Equal(t, models.DocumentStatusVerified, enrollment.DocumentStatus)
	assert.Equal(t, "enr-1", repo.docUpdatedID)
	assert.Equal(t, models.DocumentStatusVerified, repo.docStatus)
	require.Len(t, sink.events, 1)
	assert.Equal(t, events.TypeDocumentsReviewed, sink.events[0].Type)
}

func TestReviewDocumentsRejectsBadStatus(t *testing.T) {
	repo := newMockEnrollmentRepo(&models.Enrollment{ID: "enr-1", Status: models.EnrollmentStatusPending})
	svc := newEnrollmentService(repo, &mockStudentStore{}, &mockPeriodReader{}, &mockChecker{}, &mockFeeResolver{}, &mockInvoiceIssuer{}, &capturingSink{})

	for _, status := range []string{"PENDING", "APPROVED", ""} {
		_, err := svc.ReviewDocuments(context.Background(), "enr-1", "registrar-1", ReviewDocumentsRequest{Status: status})
		var appErr *appErrors.Error
		require.ErrorAs(t, err, &appErr)
		assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
	}
	assert.Empty(t, repo.docUpdatedID)
}

func TestReviewDocumentsTerminalFails(t *testing.T) {
	repo := newMockEnrollmentRepo(&models.Enrollment{ID: "enr-1", Status: models.EnrollmentStatusRejected})
	svc := newEnrollmentService(repo, &mockStudentStore{}, &mockPeriodReader{}, &mockChecker{}, &mockFeeResolver{}, &mockInvoiceIssuer{}, &capturingSink{})

	_, err := svc.ReviewDocuments(context.Background(), "enr-1", "registrar-1", ReviewDocumentsRequest{Status: "VERIFIED"})
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrInvalidTransition.Code, appErr.Code)
}

func TestAdvanceFromPendingFails(t *testing.T) {
	repo := newMockEnrollmentRepo(&models.Enrollment{ID: "enr-1", Status: models.EnrollmentStatusPending})
	svc := newEnrollmentService(repo, &mockStudentStore{}, &mockPeriodReader{}, &mockChecker{}, &mockFeeResolver{}, &mockInvoiceIssuer{}, &capturingSink{})

	_, err := svc.Advance(context.Background(), "enr-1", "registrar-1")
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrInvalidTransition.Code, appErr.Code)
}

func TestAdvanceTerminalFails(t *testing.T) {
	repo := newMockEnrollmentRepo(&models.Enrollment{ID: "enr-1", Status: models.EnrollmentStatusCompleted})
	svc := newEnrollmentService(repo, &mockStudentStore{}, &mockPeriodReader{}, &mockChecker{}, &mockFeeResolver{}, &mockInvoiceIssuer{}, &capturingSink{})

	_, err := svc.Advance(context.Background(), "enr-1", "registrar-1")
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrInvalidTransition.Code, appErr.Code)
}

func TestAdvanceToReadyForPaymentIssuesInvoice(t *testing.T) {
	repo := newMockEnrollmentRepo(&models.Enrollment{ID: "enr-1", Status: models.EnrollmentStatusApproved})
	issuer := &mockInvoiceIssuer{}
	sink := &capturingSink{}
	svc := newEnrollmentService(repo, &mockStudentStore{}, &mockPeriodReader{}, &mockChecker{}, &mockFeeResolver{}, issuer, sink)

	enrollment, err := svc.Advance(context.Background(), "enr-1", "registrar-1")
	require.NoError(t, err)

	assert.Equal(t, models.EnrollmentStatusReadyForPayment, enrollment.Status)
	assert.True(t, issuer.called)
	assert.Equal(t, "enr-1", issuer.enrollmentID)
	require.Len(t, sink.events, 1)
	assert.Equal(t, events.TypeEnrollmentAdvanced, sink.events[0].Type)
}

func TestAdvanceSucceedsWhenInvoiceIssueFails(t *testing.T) {
	repo := newMockEnrollmentRepo(&models.Enrollment{ID: "enr-1", Status: models.EnrollmentStatusApproved})
	issuer := &mockInvoiceIssuer{err: errors.New("billing down")}
	svc := newEnrollmentService(repo, &mockStudentStore{}, &mockPeriodReader{}, &mockChecker{}, &mockFeeResolver{}, issuer, &capturingSink{})

	enrollment, err := svc.Advance(context.Background(), "enr-1", "registrar-1")
	require.NoError(t, err)
	assert.Equal(t, models.EnrollmentStatusReadyForPayment, enrollment.Status)
	assert.True(t, issuer.called)
}

func TestAdvanceStampsEnrolledAt(t *testing.T) {
	repo := newMockEnrollmentRepo(&models.Enrollment{ID: "enr-1", Status: models.EnrollmentStatusPaid})
	svc := newEnrollmentService(repo, &mockStudentStore{}, &mockPeriodReader{}, &mockChecker{}, &mockFeeResolver{}, &mockInvoiceIssuer{}, &capturingSink{})

	enrollment, err := svc.Advance(context.Background(), "enr-1", "registrar-1")
	require.NoError(t, err)
	assert.Equal(t, models.EnrollmentStatusEnrolled, enrollment.Status)
	require.NotNil(t, enrollment.EnrolledAt)
}

func TestDeleteEnrollmentBlockedByBillingRecords(t *testing.T) {
	repo := newMockEnrollmentRepo(&models.Enrollment{ID: "enr-1", Status: models.EnrollmentStatusRejected})
	repo.hasBilling = true
	svc := newEnrollmentService(repo, &mockStudentStore{}, &mockPeriodReader{}, &mockChecker{}, &mockFeeResolver{}, &mockInvoiceIssuer{}, &capturingSink{})

	err := svc.Delete(context.Background(), "enr-1")
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrConflict.Code, appErr.Code)
	assert.Empty(t, repo.deletedID)
}

func TestDeleteEnrollmentWithoutBillingRecords(t *testing.T) {
	repo := newMockEnrollmentRepo(&models.Enrollment{ID: "enr-1", Status: models.EnrollmentStatusRejected})
	svc := newEnrollmentService(repo, &mockStudentStore{}, &mockPeriodReader{}, &mockChecker{}, &mockFeeResolver{}, &mockInvoiceIssuer{}, &capturingSink{})

	require.NoError(t, svc.Delete(context.Background(), "enr-1"))
	assert.Equal(t, "enr-1", repo.deletedID)

	err := svc.Delete(context.Background(), "enr-1")
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErr.Code)
}

func TestBulkApproveAllOrNothing(t *testing.T) {
	repo := newMockEnrollmentRepo()
	repo.approveErr = &repository.BulkStatusError{
		Missing: []string{"enr-9"},
		Invalid: map[string]models.EnrollmentStatus{
			"enr-2": models.EnrollmentStatusRejected,
			"enr-1": models.EnrollmentStatusApproved,
		},
	}
	svc := newEnrollmentService(repo, &mockStudentStore{}, &mockPeriodReader{}, &mockChecker{}, &mockFeeResolver{}, &mockInvoiceIssuer{}, &capturingSink{})

	_, err := svc.BulkApprove(context.Background(), BulkApproveRequest{EnrollmentIDs: []string{"enr-1", "enr-2", "enr-9"}}, "registrar-1")
	require.Error(t, err)

	var bulkErr *appErrors.BulkError
	require.ErrorAs(t, err, &bulkErr)
	require.Len(t, bulkErr.Details, 3)
	assert.Equal(t, "enr-9", bulkErr.Details[0].ID)
	assert.Equal(t, appErrors.ErrNotFound.Code, bulkErr.Details[0].Code)
	assert.Equal(t, "enr-1", bulkErr.Details[1].ID)
	assert.Equal(t, appErrors.ErrInvalidTransition.Code, bulkErr.Details[1].Code)
	assert.Equal(t, "enr-2", bulkErr.Details[2].ID)
	assert.Contains(t, bulkErr.Details[2].Message, "REJECTED")
}

func TestBulkApproveDeduplicatesAndEmits(t *testing.T) {
	repo := newMockEnrollmentRepo()
	repo.approved = []models.Enrollment{
		{ID: "enr-1", StudentID: "student-1", GradeLevel: "Grade 3", Status: models.EnrollmentStatusApproved},
		{ID: "enr-2", StudentID: "student-2", GradeLevel: "Grade 4", Status: models.EnrollmentStatusApproved},
	}
	students := &mockStudentStore{}
	sink := &capturingSink{}
	svc := newEnrollmentService(repo, students, &mockPeriodReader{}, &mockChecker{}, &mockFeeResolver{}, &mockInvoiceIssuer{}, sink)

	approved, err := svc.BulkApprove(context.Background(), BulkApproveRequest{EnrollmentIDs: []string{"enr-1", "enr-2", "enr-1"}}, "registrar-1")
	require.NoError(t, err)

	assert.Equal(t, []string{"enr-1", "enr-2"}, repo.approvedIDs)
	assert.Len(t, approved, 2)
	assert.Equal(t, 2, students.promoteCalls)
	require.Len(t, sink.events, 2)
	assert.Equal(t, events.TypeEnrollmentApproved, sink.events[0].Type)
}
