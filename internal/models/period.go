package models

import "time"

// EnrollmentPeriod is the bounded window during which submissions for a
// school year are accepted.
type EnrollmentPeriod struct {
	ID         string    `db:"id" json:"id"`
	Name       string    `db:"name" json:"name"`
	SchoolYear string    `db:"school_year" json:"school_year"`
	StartsAt   time.Time `db:"starts_at" json:"starts_at"`
	EndsAt     time.Time `db:"ends_at" json:"ends_at"`
	Active     bool      `db:"active" json:"active"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time `db:"updated_at" json:"updated_at"`
}

// IsOpen reports whether submissions are accepted at the given instant.
func (p EnrollmentPeriod) IsOpen(at time.Time) bool {
	return p.Active && !at.Before(p.StartsAt) && !at.After(p.EndsAt)
}
