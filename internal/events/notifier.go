package events

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/stfrancis-sis/enrollment-api/internal/models"
)

type guardianReader interface {
	FindGuardianByID(ctx context.Context, id string) (*models.Guardian, error)
}

// Mailer delivers a single message. Implementations own retry semantics
// below the queue's own retries.
type Mailer interface {
	Send(ctx context.Context, to, subject, body string) error
}

// LogMailer writes outbound mail to the log instead of delivering it.
// Stands in until an SMTP/provider mailer is configured.
type LogMailer struct {
	logger *zap.Logger
}

// NewLogMailer constructs a LogMailer.
func NewLogMailer(logger *zap.Logger) *LogMailer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogMailer{logger: logger}
}

// Send implements Mailer.
func (m *LogMailer) Send(_ context.Context, to, subject, body string) error {
	m.logger.Info("outbound_mail",
		zap.String("to", to),
		zap.String("subject", subject),
		zap.String("body", body))
	return nil
}

// GuardianNotifier emails guardians about enrollment and billing milestones.
// Registered as an async subscriber; delivery failure never affects the
// already committed transition.
type GuardianNotifier struct {
	guardians guardianReader
	mailer    Mailer
	from      string
	logger    *zap.Logger
}

// NewGuardianNotifier constructs the notifier.
func NewGuardianNotifier(guardians guardianReader, mailer Mailer, from string, logger *zap.Logger) *GuardianNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GuardianNotifier{guardians: guardians, mailer: mailer, from: from, logger: logger}
}

// Name implements Subscriber.
func (n *GuardianNotifier) Name() string { return "guardian-notifier" }

// Handle implements Subscriber.
func (n *GuardianNotifier) Handle(ctx context.Context, event Event) error {
	if event.Enrollment == nil {
		return nil
	}
	subject, body := n.compose(event)
	if subject == "" {
		return nil
	}

	guardian, err := n.guardians.FindGuardianByID(ctx, event.Enrollment.GuardianID)
	if err != nil {
		return fmt.Errorf("load guardian %s: %w", event.Enrollment.GuardianID, err)
	}
	if guardian.Email == "" {
		n.logger.Debug("guardian has no email, skipping notification",
			zap.String("guardian_id", guardian.ID),
			zap.String("event_type", string(event.Type)))
		return nil
	}

	return n.mailer.Send(ctx, guardian.Email, subject, body)
}

func (n *GuardianNotifier) compose(event Event) (string, string) {
	e := event.Enrollment
	switch event.Type {
	case TypeEnrollmentCreated:
		return "Enrollment application received",
			fmt.Sprintf("We received enrollment %s for %s. It is now pending review.", e.Code, e.GradeLevel)
	case TypeEnrollmentApproved:
		return "Enrollment approved",
			fmt.Sprintf("Enrollment %s has been approved. Please settle the fees to proceed.", e.Code)
	case TypeEnrollmentRejected:
		return "Enrollment rejected",
			fmt.Sprintf("Enrollment %s was rejected. Reason: %s", e.Code, event.Reason)
	case TypeInvoiceFullyPaid:
		return "Payment complete",
			fmt.Sprintf("All fees for enrollment %s are fully paid. Thank you.", e.Code)
	}
	return "", ""
}
