package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/stfrancis-sis/enrollment-api/internal/models"
	appErrors "github.com/stfrancis-sis/enrollment-api/pkg/errors"
)

type mockFeeStore struct {
	active      *models.GradeLevelFee
	byID        *models.GradeLevelFee
	created     *models.GradeLevelFee
	updated     *models.GradeLevelFee
	deactivated string
}

func (m *mockFeeStore) FindActiveByGradeAndYear(ctx context.Context, grade models.GradeLevel, schoolYear string) (*models.GradeLevelFee, error) {
	if m.active == nil {
		return nil, sql.ErrNoRows
	}
	return m.active, nil
}

func (m *mockFeeStore) FindByID(ctx context.Context, id string) (*models.GradeLevelFee, error) {
	if m.byID == nil {
		return nil, sql.ErrNoRows
	}
	copy := *m.byID
	return &copy, nil
}

func (m *mockFeeStore) List(ctx context.Context, filter models.FeeFilter) ([]models.GradeLevelFee, int, error) {
	return nil, 0, nil
}

func (m *mockFeeStore) Create(ctx context.Context, fee *models.GradeLevelFee) error {
	fee.ID = "fee-new"
	m.created = fee
	return nil
}

func (m *mockFeeStore) Update(ctx context.Context, fee *models.GradeLevelFee) error {
	m.updated = fee
	return nil
}

func (m *mockFeeStore) Deactivate(ctx context.Context, id string) error {
	m.deactivated = id
	return nil
}

type mockFeeAudit struct {
	logs []*models.AuditLog
}

func (m *mockFeeAudit) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	m.logs = append(m.logs, log)
	return nil
}

func validFeeRequest() FeeScheduleRequest {
	return FeeScheduleRequest{
		GradeLevel:   "Grade 3",
		SchoolYear:   "2025-2026",
		TuitionFee:   25000,
		MiscFee:      5000,
		OtherFee:     1500,
		PaymentTerms: 4,
		Active:       true,
	}
}

func TestFeeServiceCreateWritesAudit(t *testing.T) {
	store := &mockFeeStore{}
	audit := &mockFeeAudit{}
	svc := NewFeeService(store, audit, validator.New(), zap.NewNop())

	fee, err := svc.Create(context.Background(), validFeeRequest(), nil)
	require.NoError(t, err)

	assert.Equal(t, models.GradeLevel("Grade 3"), fee.GradeLevel)
	assert.Equal(t, 31500.0, fee.Total())
	require.Len(t, audit.logs, 1)
	assert.Equal(t, models.AuditActionFeeScheduleChange, audit.logs[0].Action)
	assert.Equal(t, "grade_level_fees", audit.logs[0].Resource)
}

func TestFeeServiceCreateRejectsDuplicateActive(t *testing.T) {
	store := &mockFeeStore{active: &models.GradeLevelFee{ID: "fee-1", GradeLevel: "Grade 3", SchoolYear: "2025-2026", Active: true}}
	svc := NewFeeService(store, &mockFeeAudit{}, validator.New(), zap.NewNop())

	_, err := svc.Create(context.Background(), validFeeRequest(), nil)
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrConflict.Code, appErr.Code)
	assert.Nil(t, store.created)
}

func TestFeeServiceCreateInactiveSkipsConflictCheck(t *testing.T) {
	store := &mockFeeStore{active: &models.GradeLevelFee{ID: "fee-1"}}
	svc := NewFeeService(store, &mockFeeAudit{}, validator.New(), zap.NewNop())

	req := validFeeRequest()
	req.Active = false
	fee, err := svc.Create(context.Background(), req, nil)
	require.NoError(t, err)
	assert.False(t, fee.Active)
}

func TestFeeServiceValidation(t *testing.T) {
	svc := NewFeeService(&mockFeeStore{}, &mockFeeAudit{}, validator.New(), zap.NewNop())

	req := validFeeRequest()
	req.SchoolYear = "2025"
	_, err := svc.Create(context.Background(), req, nil)
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)

	req = validFeeRequest()
	req.GradeLevel = "Grade 99"
	_, err = svc.Create(context.Background(), req, nil)
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)

	req = validFeeRequest()
	req.PaymentTerms = 0
	_, err = svc.Create(context.Background(), req, nil)
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
}

func TestFeeServiceDeactivate(t *testing.T) {
	store := &mockFeeStore{byID: &models.GradeLevelFee{ID: "fee-1", Active: true}}
	audit := &mockFeeAudit{}
	svc := NewFeeService(store, audit, validator.New(), zap.NewNop())

	require.NoError(t, svc.Deactivate(context.Background(), "fee-1", nil))
	assert.Equal(t, "fee-1", store.deactivated)
	require.Len(t, audit.logs, 1)
}

func TestFeeResolverResolvesActiveSchedule(t *testing.T) {
	store := &mockFeeStore{active: &models.GradeLevelFee{
		GradeLevel: "Grade 3", SchoolYear: "2025-2026",
		TuitionFee: 25000, MiscFee: 5000, OtherFee: 1500,
	}}
	resolver := NewFeeResolver(store, zap.NewNop())

	breakdown, err := resolver.Resolve(context.Background(), "Grade 3", "2025-2026")
	require.NoError(t, err)
	assert.Equal(t, 25000.0, breakdown.Tuition)
	assert.Equal(t, 31500.0, breakdown.Total)
	assert.False(t, breakdown.IsZero())
}

func TestFeeResolverMissingScheduleIsZero(t *testing.T) {
	resolver := NewFeeResolver(&mockFeeStore{}, zap.NewNop())

	breakdown, err := resolver.Resolve(context.Background(), "Grade 3", "2025-2026")
	require.NoError(t, err)
	assert.True(t, breakdown.IsZero())
}
