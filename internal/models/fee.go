package models

import "time"

// GradeLevelFee is the fee schedule for one grade level in one school year.
type GradeLevelFee struct {
	ID           string     `db:"id" json:"id"`
	GradeLevel   GradeLevel `db:"grade_level" json:"grade_level"`
	SchoolYear   string     `db:"school_year" json:"school_year"`
	TuitionFee   float64    `db:"tuition_fee" json:"tuition_fee"`
	MiscFee      float64    `db:"misc_fee" json:"misc_fee"`
	OtherFee     float64    `db:"other_fee" json:"other_fee"`
	PaymentTerms int        `db:"payment_terms" json:"payment_terms"`
	Active       bool       `db:"active" json:"active"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updated_at"`
}

// Total sums the schedule's components.
func (f GradeLevelFee) Total() float64 {
	return f.TuitionFee + f.MiscFee + f.OtherFee
}

// FeeBreakdown is the computed fee set stamped onto an enrollment at creation.
type FeeBreakdown struct {
	Tuition float64 `json:"tuition"`
	Misc    float64 `json:"misc"`
	Other   float64 `json:"other"`
	Total   float64 `json:"total"`
}

// IsZero reports whether no schedule backed the breakdown.
func (b FeeBreakdown) IsZero() bool {
	return b.Total == 0 && b.Tuition == 0 && b.Misc == 0 && b.Other == 0
}

// FeeFilter provides filters for listing fee schedules.
type FeeFilter struct {
	GradeLevel GradeLevel
	SchoolYear string
	Active     *bool
	Page       int
	PageSize   int
}
