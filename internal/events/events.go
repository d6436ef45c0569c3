package events

import (
	"context"
	"time"

	"github.com/stfrancis-sis/enrollment-api/internal/models"
)

// Type names a lifecycle event emitted by the enrollment or billing engines.
type Type string

const (
	TypeEnrollmentCreated  Type = "enrollment.created"
	TypeEnrollmentApproved Type = "enrollment.approved"
	TypeEnrollmentRejected Type = "enrollment.rejected"
	TypeEnrollmentAdvanced Type = "enrollment.advanced"
	TypeDocumentsReviewed  Type = "enrollment.documents_reviewed"
	TypeInvoiceIssued      Type = "invoice.issued"
	TypeInvoiceFullyPaid   Type = "invoice.fully_paid"
	TypePaymentRecorded    Type = "payment.recorded"
	TypePaymentUpdated     Type = "payment.updated"
	TypePaymentReversed    Type = "payment.reversed"
	TypeReceiptIssued      Type = "receipt.issued"
)

// Event carries the mutated entity and relevant context. The engines emit
// events and never perform delivery side effects themselves.
type Event struct {
	ID         string             `json:"id"`
	Type       Type               `json:"type"`
	OccurredAt time.Time          `json:"occurred_at"`
	ActorID    *string            `json:"actor_id,omitempty"`
	Enrollment *models.Enrollment `json:"enrollment,omitempty"`
	Invoice    *models.Invoice    `json:"invoice,omitempty"`
	Payment    *models.Payment    `json:"payment,omitempty"`
	Receipt    *models.Receipt    `json:"receipt,omitempty"`
	Reason     string             `json:"reason,omitempty"`
	ZeroFee    bool               `json:"zero_fee,omitempty"`
}

// Sink receives lifecycle events. Implementations must never fail the
// emitting state transition; delivery problems are theirs to log and retry.
type Sink interface {
	Emit(ctx context.Context, event Event)
}

// Subscriber reacts to a dispatched event.
type Subscriber interface {
	Name() string
	Handle(ctx context.Context, event Event) error
}

// NopSink discards events. Useful in tests.
type NopSink struct{}

// Emit implements Sink.
func (NopSink) Emit(context.Context, Event) {}
