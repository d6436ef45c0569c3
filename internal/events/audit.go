package events

import (
	"context"
	"encoding/json"

	"github.com/stfrancis-sis/enrollment-api/internal/models"
)

type auditWriter interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

var auditActions = map[Type]string{
	TypeEnrollmentCreated:  models.AuditActionEnrollmentSubmit,
	TypeEnrollmentApproved: models.AuditActionEnrollmentApprove,
	TypeEnrollmentRejected: models.AuditActionEnrollmentReject,
	TypeEnrollmentAdvanced: models.AuditActionEnrollmentAdvance,
	TypeDocumentsReviewed:  models.AuditActionDocumentReview,
	TypeInvoiceIssued:      models.AuditActionInvoiceIssue,
	TypeInvoiceFullyPaid:   models.AuditActionInvoiceFullyPaid,
	TypePaymentRecorded:    models.AuditActionPaymentRecord,
	TypePaymentUpdated:     models.AuditActionPaymentUpdate,
	TypePaymentReversed:    models.AuditActionPaymentDelete,
	TypeReceiptIssued:      models.AuditActionReceiptIssue,
}

// AuditRecorder persists an audit row for every lifecycle event. It runs
// synchronously so the trail is written before the response leaves.
type AuditRecorder struct {
	repo auditWriter
}

// NewAuditRecorder constructs the recorder.
func NewAuditRecorder(repo auditWriter) *AuditRecorder {
	return &AuditRecorder{repo: repo}
}

// Name implements Subscriber.
func (r *AuditRecorder) Name() string { return "audit" }

// Handle implements Subscriber.
func (r *AuditRecorder) Handle(ctx context.Context, event Event) error {
	action, ok := auditActions[event.Type]
	if !ok {
		return nil
	}

	resource, resourceID := event.subject()
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}

	return r.repo.CreateAuditLog(ctx, &models.AuditLog{
		UserID:     event.ActorID,
		Action:     action,
		Resource:   resource,
		ResourceID: resourceID,
		NewValues:  payload,
		CreatedAt:  event.OccurredAt,
	})
}

func (e Event) subject() (string, *string) {
	switch {
	case e.Receipt != nil:
		return "receipts", &e.Receipt.ID
	case e.Payment != nil:
		return "payments", &e.Payment.ID
	case e.Invoice != nil:
		return "invoices", &e.Invoice.ID
	case e.Enrollment != nil:
		return "enrollments", &e.Enrollment.ID
	}
	return "events", nil
}
