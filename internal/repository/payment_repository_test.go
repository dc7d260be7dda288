package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/proedge/enrollment-api/internal/models"
)

func TestPaymentCreateDefaults(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewPaymentRepository(db)

	mock.ExpectExec("INSERT INTO payments").WillReturnResult(sqlmock.NewResult(1, 1))

	enrollmentID := "e1"
	payment := &models.Payment{
		EnrollmentID: &enrollmentID,
		Provider:     models.PaymentProviderRazorpay,
		OrderID:      "order_abc",
		Amount:       45000,
	}
	err := repo.Create(context.Background(), payment)
	require.NoError(t, err)
	assert.NotEmpty(t, payment.ID)
	assert.Equal(t, models.PaymentStatusInitiated, payment.Status)
	assert.Equal(t, "INR", payment.Currency)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentFindByOrderID(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewPaymentRepository(db)

	now := time.Now()
	enrollmentID := "e1"
	rows := sqlmock.NewRows([]string{"id", "enrollment_id", "provider", "order_id", "provider_payment_id", "signature", "amount", "currency", "status", "created_at", "updated_at"}).
		AddRow("p1", enrollmentID, models.PaymentProviderRazorpay, "order_abc", nil, nil, int64(45000), "INR", string(models.PaymentStatusInitiated), now, now)
	mock.ExpectQuery("SELECT (.+) FROM payments WHERE order_id = \\$1 LIMIT 1").
		WithArgs("order_abc").
		WillReturnRows(rows)

	payment, err := repo.FindByOrderID(context.Background(), "order_abc")
	require.NoError(t, err)
	assert.Equal(t, "p1", payment.ID)
	assert.Equal(t, int64(45000), payment.Amount)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentFindByOrderIDNotFound(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewPaymentRepository(db)

	mock.ExpectQuery("SELECT (.+) FROM payments WHERE order_id = \\$1 LIMIT 1").
		WithArgs("order_missing").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.FindByOrderID(context.Background(), "order_missing")
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentMarkSuccessTx(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewPaymentRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE payments SET status = $2, provider_payment_id = $3, signature = $4, updated_at = $5 WHERE id = $1")).
		WithArgs("p1", models.PaymentStatusSuccess, "pay_xyz", "sig", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	tx, err := db.Beginx()
	require.NoError(t, err)
	err = repo.MarkSuccessTx(context.Background(), tx, "p1", "pay_xyz", "sig")
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentMarkFailed(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewPaymentRepository(db)

	providerPaymentID := "pay_xyz"
	mock.ExpectExec("UPDATE payments SET status").
		WithArgs("p1", models.PaymentStatusFailed, &providerPaymentID, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.MarkFailed(context.Background(), "p1", &providerPaymentID)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentList(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewPaymentRepository(db)

	now := time.Now()
	invoiceNo := "INV-1001"
	rows := sqlmock.NewRows([]string{"id", "enrollment_id", "provider", "order_id", "provider_payment_id", "signature", "amount", "currency", "status", "created_at", "updated_at",
		"student_name", "student_email", "course_title", "invoice_no"}).
		AddRow("p1", "e1", models.PaymentProviderRazorpay, "order_abc", "pay_xyz", "sig", int64(45000), "INR", string(models.PaymentStatusSuccess), now, now,
			"Asha Rao", "asha@example.com", "Physics Foundation", invoiceNo)
	mock.ExpectQuery("SELECT p.id, (.+) FROM payments p").
		WithArgs(models.PaymentStatusSuccess).
		WillReturnRows(rows)
	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM payments p").
		WithArgs(models.PaymentStatusSuccess).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	list, total, err := repo.List(context.Background(), models.PaymentFilter{Status: models.PaymentStatusSuccess})
	require.NoError(t, err)
	assert.Len(t, list, 1)
	assert.Equal(t, 1, total)
	require.NotNil(t, list[0].InvoiceNo)
	assert.Equal(t, "INV-1001", *list[0].InvoiceNo)
	assert.NoError(t, mock.ExpectationsWereMet())
}
