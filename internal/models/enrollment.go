package models

import "time"

// EnrollmentStatus represents the lifecycle of an enrollment application.
type EnrollmentStatus string

// Enrollment lifecycle states. PENDING is the sole initial state; COMPLETED
// and REJECTED are terminal.
const (
	EnrollmentStatusPending         EnrollmentStatus = "PENDING"
	EnrollmentStatusApproved        EnrollmentStatus = "APPROVED"
	EnrollmentStatusReadyForPayment EnrollmentStatus = "READY_FOR_PAYMENT"
	EnrollmentStatusPaid            EnrollmentStatus = "PAID"
	EnrollmentStatusEnrolled        EnrollmentStatus = "ENROLLED"
	EnrollmentStatusCompleted       EnrollmentStatus = "COMPLETED"
	EnrollmentStatusRejected        EnrollmentStatus = "REJECTED"
)

// enrollmentStatusOrder is the happy-path progression. REJECTED branches off
// PENDING and is not part of the ordered chain.
var enrollmentStatusOrder = []EnrollmentStatus{
	EnrollmentStatusPending,
	EnrollmentStatusApproved,
	EnrollmentStatusReadyForPayment,
	EnrollmentStatusPaid,
	EnrollmentStatusEnrolled,
	EnrollmentStatusCompleted,
}

var enrollmentStatusLabels = map[EnrollmentStatus]string{
	EnrollmentStatusPending:         "Pending Review",
	EnrollmentStatusApproved:        "Approved",
	EnrollmentStatusReadyForPayment: "Ready for Payment",
	EnrollmentStatusPaid:            "Paid",
	EnrollmentStatusEnrolled:        "Enrolled",
	EnrollmentStatusCompleted:       "Completed",
	EnrollmentStatusRejected:        "Rejected",
}

var enrollmentStatusCategories = map[EnrollmentStatus]string{
	EnrollmentStatusPending:         "warning",
	EnrollmentStatusApproved:        "info",
	EnrollmentStatusReadyForPayment: "info",
	EnrollmentStatusPaid:            "success",
	EnrollmentStatusEnrolled:        "success",
	EnrollmentStatusCompleted:       "secondary",
	EnrollmentStatusRejected:        "danger",
}

// Valid reports whether the status is a member of the closed set.
func (s EnrollmentStatus) Valid() bool {
	_, ok := enrollmentStatusLabels[s]
	return ok
}

// Label returns the human readable form of the status.
func (s EnrollmentStatus) Label() string {
	return enrollmentStatusLabels[s]
}

// Category returns the display bucket used by dashboards.
func (s EnrollmentStatus) Category() string {
	return enrollmentStatusCategories[s]
}

// IsTerminal reports whether no further transition is defined.
func (s EnrollmentStatus) IsTerminal() bool {
	return s == EnrollmentStatusCompleted || s == EnrollmentStatusRejected
}

// Next returns the following status on the happy path. The second return is
// false for terminal states and REJECTED.
func (s EnrollmentStatus) Next() (EnrollmentStatus, bool) {
	for i, status := range enrollmentStatusOrder {
		if status == s && i+1 < len(enrollmentStatusOrder) {
			return enrollmentStatusOrder[i+1], true
		}
	}
	return "", false
}

// CanTransitionTo reports whether target is reachable in a single step.
func (s EnrollmentStatus) CanTransitionTo(target EnrollmentStatus) bool {
	if s == EnrollmentStatusPending && target == EnrollmentStatusRejected {
		return true
	}
	next, ok := s.Next()
	return ok && next == target
}

// PaymentStatus tracks how much of an enrollment's fees has been settled.
type PaymentStatus string

const (
	PaymentStatusPending PaymentStatus = "PENDING"
	PaymentStatusPartial PaymentStatus = "PARTIAL"
	PaymentStatusPaid    PaymentStatus = "PAID"
)

// DocumentStatus tracks verification of the documents submitted with an
// enrollment application.
type DocumentStatus string

const (
	DocumentStatusPending  DocumentStatus = "PENDING"
	DocumentStatusVerified DocumentStatus = "VERIFIED"
	DocumentStatusRejected DocumentStatus = "REJECTED"
)

var documentStatusLabels = map[DocumentStatus]string{
	DocumentStatusPending:  "Documents Pending",
	DocumentStatusVerified: "Documents Verified",
	DocumentStatusRejected: "Documents Rejected",
}

var documentStatusCategories = map[DocumentStatus]string{
	DocumentStatusPending:  "warning",
	DocumentStatusVerified: "success",
	DocumentStatusRejected: "danger",
}

// Valid reports whether the document status is a member of the closed set.
func (s DocumentStatus) Valid() bool {
	_, ok := documentStatusLabels[s]
	return ok
}

// Label returns the human readable form of the document status.
func (s DocumentStatus) Label() string {
	return documentStatusLabels[s]
}

// Category returns the display bucket used by dashboards.
func (s DocumentStatus) Category() string {
	return documentStatusCategories[s]
}

// IsVerified reports whether the documents passed review.
func (s DocumentStatus) IsVerified() bool {
	return s == DocumentStatusVerified
}

// EnrollmentType classifies the kind of application.
type EnrollmentType string

const (
	EnrollmentTypeNew        EnrollmentType = "NEW"
	EnrollmentTypeContinuing EnrollmentType = "CONTINUING"
	EnrollmentTypeReturnee   EnrollmentType = "RETURNEE"
	EnrollmentTypeTransferee EnrollmentType = "TRANSFEREE"
)

// Valid reports whether the enrollment type is known.
func (t EnrollmentType) Valid() bool {
	switch t {
	case EnrollmentTypeNew, EnrollmentTypeContinuing, EnrollmentTypeReturnee, EnrollmentTypeTransferee:
		return true
	}
	return false
}

// PaymentPlan is the installment scheme chosen at submission.
type PaymentPlan string

const (
	PaymentPlanAnnual    PaymentPlan = "ANNUAL"
	PaymentPlanSemestral PaymentPlan = "SEMESTRAL"
	PaymentPlanQuarterly PaymentPlan = "QUARTERLY"
	PaymentPlanMonthly   PaymentPlan = "MONTHLY"
)

// Valid reports whether the payment plan is known.
func (p PaymentPlan) Valid() bool {
	switch p {
	case PaymentPlanAnnual, PaymentPlanSemestral, PaymentPlanQuarterly, PaymentPlanMonthly:
		return true
	}
	return false
}

// Enrollment is one student's application for one enrollment period.
type Enrollment struct {
	ID              string           `db:"id" json:"id"`
	Code            string           `db:"code" json:"code"`
	StudentID       string           `db:"student_id" json:"student_id"`
	GuardianID      string           `db:"guardian_id" json:"guardian_id"`
	PeriodID        string           `db:"period_id" json:"period_id"`
	GradeLevel      GradeLevel       `db:"grade_level" json:"grade_level"`
	Type            EnrollmentType   `db:"type" json:"type"`
	PaymentPlan     PaymentPlan      `db:"payment_plan" json:"payment_plan"`
	Status          EnrollmentStatus `db:"status" json:"status"`
	PaymentStatus   PaymentStatus    `db:"payment_status" json:"payment_status"`
	DocumentStatus  DocumentStatus   `db:"document_status" json:"document_status"`
	TuitionFee      float64          `db:"tuition_fee" json:"tuition_fee"`
	MiscFee         float64          `db:"misc_fee" json:"misc_fee"`
	OtherFee        float64          `db:"other_fee" json:"other_fee"`
	TotalFee        float64          `db:"total_fee" json:"total_fee"`
	AmountPaid      float64          `db:"amount_paid" json:"amount_paid"`
	Balance         float64          `db:"balance" json:"balance"`
	ApprovedAt      *time.Time       `db:"approved_at" json:"approved_at,omitempty"`
	ApprovedBy      *string          `db:"approved_by" json:"approved_by,omitempty"`
	RejectedAt      *time.Time       `db:"rejected_at" json:"rejected_at,omitempty"`
	RejectionReason *string          `db:"rejection_reason" json:"rejection_reason,omitempty"`
	EnrolledAt      *time.Time       `db:"enrolled_at" json:"enrolled_at,omitempty"`
	CreatedAt       time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time        `db:"updated_at" json:"updated_at"`
}

// EnrollmentDetail enriches Enrollment with student and period info.
type EnrollmentDetail struct {
	Enrollment
	StudentName  string `db:"student_name" json:"student_name"`
	GuardianName string `db:"guardian_name" json:"guardian_name"`
	PeriodName   string `db:"period_name" json:"period_name"`
	SchoolYear   string `db:"school_year" json:"school_year"`
}

// EnrollmentFilter provides filters for listing enrollments.
type EnrollmentFilter struct {
	StudentID     string
	GuardianID    string
	PeriodID      string
	GradeLevel    GradeLevel
	Status        EnrollmentStatus
	PaymentStatus PaymentStatus
	Page          int
	PageSize      int
	SortBy        string
	SortOrder     string
}
