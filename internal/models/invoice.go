package models

import "time"

// InvoiceStatus represents the billing state of an invoice.
type InvoiceStatus string

const (
	InvoiceStatusDraft         InvoiceStatus = "DRAFT"
	InvoiceStatusSent          InvoiceStatus = "SENT"
	InvoiceStatusPartiallyPaid InvoiceStatus = "PARTIALLY_PAID"
	InvoiceStatusPaid          InvoiceStatus = "PAID"
	InvoiceStatusCancelled     InvoiceStatus = "CANCELLED"
	InvoiceStatusOverdue       InvoiceStatus = "OVERDUE"
)

var invoiceStatusLabels = map[InvoiceStatus]string{
	InvoiceStatusDraft:         "Draft",
	InvoiceStatusSent:          "Sent",
	InvoiceStatusPartiallyPaid: "Partially Paid",
	InvoiceStatusPaid:          "Paid",
	InvoiceStatusCancelled:     "Cancelled",
	InvoiceStatusOverdue:       "Overdue",
}

// Valid reports whether the status is a member of the closed set.
func (s InvoiceStatus) Valid() bool {
	_, ok := invoiceStatusLabels[s]
	return ok
}

// Label returns the human readable form of the status.
func (s InvoiceStatus) Label() string {
	return invoiceStatusLabels[s]
}

// IsClosed reports whether the invoice accepts no further payments.
func (s InvoiceStatus) IsClosed() bool {
	return s == InvoiceStatusPaid || s == InvoiceStatusCancelled
}

// Invoice is the billable instrument derived from an approved enrollment.
// Balance is always recomputed from total and amount paid, never stored as
// an independent source of truth.
type Invoice struct {
	ID           string        `db:"id" json:"id"`
	Code         string        `db:"code" json:"code"`
	EnrollmentID string        `db:"enrollment_id" json:"enrollment_id"`
	Total        float64       `db:"total" json:"total"`
	AmountPaid   float64       `db:"amount_paid" json:"amount_paid"`
	Balance      float64       `db:"balance" json:"balance"`
	Status       InvoiceStatus `db:"status" json:"status"`
	IssueDate    time.Time     `db:"issue_date" json:"issue_date"`
	DueDate      time.Time     `db:"due_date" json:"due_date"`
	PaidAt       *time.Time    `db:"paid_at" json:"paid_at,omitempty"`
	CreatedAt    time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time     `db:"updated_at" json:"updated_at"`
}

// InvoiceItem is a single billable line on an invoice.
type InvoiceItem struct {
	ID          string  `db:"id" json:"id"`
	InvoiceID   string  `db:"invoice_id" json:"invoice_id"`
	Description string  `db:"description" json:"description"`
	Quantity    int     `db:"quantity" json:"quantity"`
	UnitPrice   float64 `db:"unit_price" json:"unit_price"`
	Amount      float64 `db:"amount" json:"amount"`
}

// InvoiceDetail enriches an invoice with its items and enrollment context.
type InvoiceDetail struct {
	Invoice
	EnrollmentCode string        `db:"enrollment_code" json:"enrollment_code"`
	StudentName    string        `db:"student_name" json:"student_name"`
	Items          []InvoiceItem `json:"items"`
}

// InvoiceFilter provides filters for listing invoices.
type InvoiceFilter struct {
	EnrollmentID string
	Status       InvoiceStatus
	DueBefore    *time.Time
	Page         int
	PageSize     int
	SortBy       string
	SortOrder    string
}
