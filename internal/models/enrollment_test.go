package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEnrollmentStatusHappyPath(t *testing.T) {
	order := []EnrollmentStatus{
		EnrollmentStatusPending,
		EnrollmentStatusApproved,
		EnrollmentStatusReadyForPayment,
		EnrollmentStatusPaid,
		EnrollmentStatusEnrolled,
		EnrollmentStatusCompleted,
	}
	for i := 0; i < len(order)-1; i++ {
		next, ok := order[i].Next()
		assert.True(t, ok, "expected transition from %s", order[i])
		assert.Equal(t, order[i+1], next)
	}
}

func TestEnrollmentStatusTerminal(t *testing.T) {
	assert.True(t, EnrollmentStatusCompleted.IsTerminal())
	assert.True(t, EnrollmentStatusRejected.IsTerminal())
	assert.False(t, EnrollmentStatusEnrolled.IsTerminal())

	_, ok := EnrollmentStatusCompleted.Next()
	assert.False(t, ok)
	_, ok = EnrollmentStatusRejected.Next()
	assert.False(t, ok)
}

func TestEnrollmentStatusCanTransitionTo(t *testing.T) {
	assert.True(t, EnrollmentStatusPending.CanTransitionTo(EnrollmentStatusApproved))
	assert.True(t, EnrollmentStatusPending.CanTransitionTo(EnrollmentStatusRejected))
	assert.False(t, EnrollmentStatusPending.CanTransitionTo(EnrollmentStatusPaid))
	assert.False(t, EnrollmentStatusApproved.CanTransitionTo(EnrollmentStatusRejected))
	assert.False(t, EnrollmentStatusRejected.CanTransitionTo(EnrollmentStatusPending))
}

func TestEnrollmentStatusLabels(t *testing.T) {
	assert.True(t, EnrollmentStatusReadyForPayment.Valid())
	assert.False(t, EnrollmentStatus("SHIPPED").Valid())
	assert.Equal(t, "Ready for Payment", EnrollmentStatusReadyForPayment.Label())
	assert.Equal(t, "danger", EnrollmentStatusRejected.Category())
}

func TestDocumentStatus(t *testing.T) {
	assert.True(t, DocumentStatusVerified.Valid())
	assert.False(t, DocumentStatus("LOST").Valid())
	assert.True(t, DocumentStatusVerified.IsVerified())
	assert.False(t, DocumentStatusPending.IsVerified())
	assert.Equal(t, "Documents Pending", DocumentStatusPending.Label())
	assert.Equal(t, "danger", DocumentStatusRejected.Category())
}
