package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stfrancis-sis/enrollment-api/internal/models"
)

func newMockDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return sqlx.NewDb(db, "postgres"), mock
}

func TestPaymentRepositorySumByInvoice(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPaymentRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COALESCE(SUM(amount), 0) FROM payments WHERE invoice_id = $1")).
		WithArgs("inv-1").
		WillReturnRows(sqlmock.NewRows([]string{"coalesce"}).AddRow(12500.50))

	sum, err := repo.SumByInvoice(context.Background(), "inv-1")
	require.NoError(t, err)
	assert.Equal(t, 12500.50, sum)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentRepositoryCreateFillsDefaults(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPaymentRepository(db)

	mock.ExpectExec("INSERT INTO payments").
		WillReturnResult(sqlmock.NewResult(0, 1))

	payment := &models.Payment{
		InvoiceID: "inv-1",
		Amount:    5000,
		Method:    models.PaymentMethodCash,
	}
	require.NoError(t, repo.Create(context.Background(), payment))

	assert.NotEmpty(t, payment.ID)
	assert.False(t, payment.PaidOn.IsZero())
	assert.Regexp(t, `^PAY-\d{8}-[A-Z2-9]{6}$`, payment.Reference)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentRepositoryCreateKeepsReference(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPaymentRepository(db)

	mock.ExpectExec("INSERT INTO payments").
		WillReturnResult(sqlmock.NewResult(0, 1))

	payment := &models.Payment{
		InvoiceID: "inv-1",
		Reference: "OR-1001",
		Amount:    5000,
		Method:    models.PaymentMethodCash,
		PaidOn:    time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC),
	}
	require.NoError(t, repo.Create(context.Background(), payment))
	assert.Equal(t, "OR-1001", payment.Reference)
}

func TestPaymentRepositoryDelete(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPaymentRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM payments WHERE id = $1")).
		WithArgs("pay-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Delete(context.Background(), "pay-1"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestNewPaymentReferenceFormat(t *testing.T) {
	paidOn := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)
	ref := NewPaymentReference(paidOn)
	assert.Regexp(t, `^PAY-20260831-[A-Z2-9]{6}$`, ref)

	// Ambiguous glyphs never appear in the suffix.
	for _, banned := range []string{"0", "1", "I", "O"} {
		assert.NotContains(t, ref[13:], banned)
	}
}

func TestNextCodeSequencing(t *testing.T) {
	db, mock := newMockDB(t)

	query := regexp.QuoteMeta("SELECT code FROM enrollments WHERE code LIKE $1 ORDER BY code DESC LIMIT 1")

	// Empty scope starts the sequence at one.
	mock.ExpectQuery(query).WithArgs("ENR-202601%").WillReturnRows(sqlmock.NewRows([]string{"code"}))
	code, err := nextCode(context.Background(), db, "enrollments", "code", "ENR-202601", 4)
	require.NoError(t, err)
	assert.Equal(t, "ENR-2026010001", code)

	// An existing max code advances by one.
	mock.ExpectQuery(query).WithArgs("ENR-202601%").
		WillReturnRows(sqlmock.NewRows([]string{"code"}).AddRow("ENR-2026010042"))
	code, err = nextCode(context.Background(), db, "enrollments", "code", "ENR-202601", 4)
	require.NoError(t, err)
	assert.Equal(t, "ENR-2026010043", code)

	require.NoError(t, mock.ExpectationsWereMet())
}
