package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/stfrancis-sis/enrollment-api/internal/models"
)

type recordingSubscriber struct {
	name   string
	events []Event
	err    error
}

func (s *recordingSubscriber) Name() string { return s.name }

func (s *recordingSubscriber) Handle(ctx context.Context, event Event) error {
	s.events = append(s.events, event)
	return s.err
}

func TestDispatcherFillsIDAndTimestamp(t *testing.T) {
	sub := &recordingSubscriber{name: "first"}
	d := NewDispatcher([]Subscriber{sub}, nil, DispatcherConfig{}, zap.NewNop())

	d.Emit(context.Background(), Event{Type: TypeEnrollmentCreated})

	require.Len(t, sub.events, 1)
	assert.NotEmpty(t, sub.events[0].ID)
	assert.False(t, sub.events[0].OccurredAt.IsZero())
}

func TestDispatcherKeepsProvidedID(t *testing.T) {
	sub := &recordingSubscriber{name: "first"}
	d := NewDispatcher([]Subscriber{sub}, nil, DispatcherConfig{}, zap.NewNop())

	d.Emit(context.Background(), Event{ID: "evt-1", Type: TypeEnrollmentCreated})

	require.Len(t, sub.events, 1)
	assert.Equal(t, "evt-1", sub.events[0].ID)
}

func TestDispatcherFailureDoesNotStopOthers(t *testing.T) {
	failing := &recordingSubscriber{name: "failing", err: errors.New("audit store down")}
	healthy := &recordingSubscriber{name: "healthy"}
	d := NewDispatcher([]Subscriber{failing, healthy}, nil, DispatcherConfig{}, zap.NewNop())

	d.Emit(context.Background(), Event{Type: TypePaymentRecorded})

	assert.Len(t, failing.events, 1)
	assert.Len(t, healthy.events, 1)
}

type capturingAuditWriter struct {
	logs []*models.AuditLog
	err  error
}

func (w *capturingAuditWriter) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	w.logs = append(w.logs, log)
	return w.err
}

func TestAuditRecorderWritesRow(t *testing.T) {
	writer := &capturingAuditWriter{}
	recorder := NewAuditRecorder(writer)
	actor := "user-1"

	err := recorder.Handle(context.Background(), Event{
		ID:      "evt-1",
		Type:    TypeEnrollmentApproved,
		ActorID: &actor,
		Enrollment: &models.Enrollment{
			ID:     "enr-1",
			Status: models.EnrollmentStatusApproved,
		},
	})
	require.NoError(t, err)

	require.Len(t, writer.logs, 1)
	log := writer.logs[0]
	assert.Equal(t, models.AuditActionEnrollmentApprove, log.Action)
	assert.Equal(t, "enrollments", log.Resource)
	require.NotNil(t, log.ResourceID)
	assert.Equal(t, "enr-1", *log.ResourceID)
	require.NotNil(t, log.UserID)
	assert.Equal(t, "user-1", *log.UserID)

	var payload map[string]any
	require.NoError(t, json.Unmarshal(log.NewValues, &payload))
	assert.Equal(t, string(TypeEnrollmentApproved), payload["type"])
}

func TestAuditRecorderPrefersInnermostSubject(t *testing.T) {
	writer := &capturingAuditWriter{}
	recorder := NewAuditRecorder(writer)

	err := recorder.Handle(context.Background(), Event{
		Type:       TypePaymentRecorded,
		Payment:    &models.Payment{ID: "pay-1"},
		Invoice:    &models.Invoice{ID: "inv-1"},
		Enrollment: &models.Enrollment{ID: "enr-1"},
	})
	require.NoError(t, err)

	require.Len(t, writer.logs, 1)
	assert.Equal(t, "payments", writer.logs[0].Resource)
	require.NotNil(t, writer.logs[0].ResourceID)
	assert.Equal(t, "pay-1", *writer.logs[0].ResourceID)
}

func TestAuditRecorderIgnoresUnknownType(t *testing.T) {
	writer := &capturingAuditWriter{}
	recorder := NewAuditRecorder(writer)

	err := recorder.Handle(context.Background(), Event{Type: Type("something.else")})
	require.NoError(t, err)
	assert.Empty(t, writer.logs)
}
