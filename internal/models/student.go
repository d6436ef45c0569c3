package models

import "time"

// Student is a referenced identity record. The enrollment engine only
// mutates its recorded grade level, on approval.
type Student struct {
	ID         string     `db:"id" json:"id"`
	LRN        string     `db:"lrn" json:"lrn"`
	FullName   string     `db:"full_name" json:"full_name"`
	BirthDate  *time.Time `db:"birth_date" json:"birth_date,omitempty"`
	GradeLevel GradeLevel `db:"grade_level" json:"grade_level"`
	GuardianID string     `db:"guardian_id" json:"guardian_id"`
	Active     bool       `db:"active" json:"active"`
	CreatedAt  time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time  `db:"updated_at" json:"updated_at"`
}

// Guardian is the person financially responsible for one or more students.
type Guardian struct {
	ID        string    `db:"id" json:"id"`
	FullName  string    `db:"full_name" json:"full_name"`
	Email     string    `db:"email" json:"email"`
	Phone     string    `db:"phone" json:"phone"`
	UserID    *string   `db:"user_id" json:"user_id,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// StudentFilter captures filtering criteria for listing students.
type StudentFilter struct {
	GuardianID string
	GradeLevel GradeLevel
	Active     *bool
	Search     string
	Page       int
	PageSize   int
	SortBy     string
	SortOrder  string
}
