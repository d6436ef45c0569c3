package models

import "time"

// Receipt is an immutable proof-of-payment record with its own sequential
// numbering. It may exist without a Payment row for manually recorded
// payments.
type Receipt struct {
	ID          string    `db:"id" json:"id"`
	Number      string    `db:"number" json:"number"`
	PaymentID   *string   `db:"payment_id" json:"payment_id,omitempty"`
	InvoiceID   *string   `db:"invoice_id" json:"invoice_id,omitempty"`
	Amount      float64   `db:"amount" json:"amount"`
	IssuedTo    string    `db:"issued_to" json:"issued_to"`
	Particulars string    `db:"particulars" json:"particulars"`
	IssuedBy    *string   `db:"issued_by" json:"issued_by,omitempty"`
	IssuedAt    time.Time `db:"issued_at" json:"issued_at"`
}

// ReceiptFilter provides filters for listing receipts.
type ReceiptFilter struct {
	InvoiceID string
	From      *time.Time
	To        *time.Time
	Page      int
	PageSize  int
}
