package models

import "time"

// PaymentMethod is the remittance channel used by the payer.
type PaymentMethod string

const (
	PaymentMethodCash         PaymentMethod = "CASH"
	PaymentMethodBankTransfer PaymentMethod = "BANK_TRANSFER"
	PaymentMethodGCash        PaymentMethod = "GCASH"
	PaymentMethodOther        PaymentMethod = "OTHER"
)

// Valid reports whether the payment method is known.
func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentMethodCash, PaymentMethodBankTransfer, PaymentMethodGCash, PaymentMethodOther:
		return true
	}
	return false
}

// Payment is a single recorded remittance against an invoice.
type Payment struct {
	ID         string        `db:"id" json:"id"`
	InvoiceID  string        `db:"invoice_id" json:"invoice_id"`
	Reference  string        `db:"reference" json:"reference"`
	Amount     float64       `db:"amount" json:"amount"`
	Method     PaymentMethod `db:"method" json:"method"`
	PaidOn     time.Time     `db:"paid_on" json:"paid_on"`
	Notes      string        `db:"notes" json:"notes"`
	ReceivedBy *string       `db:"received_by" json:"received_by,omitempty"`
	CreatedAt  time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time     `db:"updated_at" json:"updated_at"`
}

// PaymentFilter provides filters for listing payments.
type PaymentFilter struct {
	InvoiceID string
	Method    PaymentMethod
	From      *time.Time
	To        *time.Time
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
