package models

// EnrollmentStatusCount is one slice of the enrollment dashboard.
type EnrollmentStatusCount struct {
	Status EnrollmentStatus `db:"status" json:"status"`
	Label  string           `json:"label"`
	Count  int              `db:"count" json:"count"`
}

// CollectionsSummary aggregates billing figures for a school year.
type CollectionsSummary struct {
	TotalBilled      float64 `db:"total_billed" json:"total_billed"`
	TotalCollected   float64 `db:"total_collected" json:"total_collected"`
	TotalOutstanding float64 `db:"total_outstanding" json:"total_outstanding"`
	InvoiceCount     int     `db:"invoice_count" json:"invoice_count"`
	PaidInvoiceCount int     `db:"paid_invoice_count" json:"paid_invoice_count"`
}

// DashboardStats is the cached dashboard payload.
type DashboardStats struct {
	SchoolYear  string                  `json:"school_year"`
	Enrollments []EnrollmentStatusCount `json:"enrollments"`
	Collections CollectionsSummary      `json:"collections"`
}
