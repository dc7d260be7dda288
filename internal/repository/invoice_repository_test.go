package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/proedge/enrollment-api/internal/models"
)

func TestInvoiceCreateTx(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewInvoiceRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO invoices").WillReturnResult(sqlmock.NewResult(1, 1))

	tx, err := db.Beginx()
	require.NoError(t, err)

	invoice := &models.Invoice{PaymentID: "p1", InvoiceNo: "INV-1001", Amount: 45000, Tax: 8100, Total: 53100}
	err = repo.CreateTx(context.Background(), tx, invoice)
	require.NoError(t, err)
	assert.NotEmpty(t, invoice.ID)
	assert.False(t, invoice.IssuedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInvoiceCreateTxDuplicatePayment(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewInvoiceRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO invoices").
		WillReturnError(&pq.Error{Code: "23505", Constraint: "invoices_payment_id_key"})

	tx, err := db.Beginx()
	require.NoError(t, err)

	err = repo.CreateTx(context.Background(), tx, &models.Invoice{PaymentID: "p1", InvoiceNo: "INV-1002"})
	assert.True(t, errors.Is(err, ErrDuplicate))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInvoiceFindByPaymentID(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewInvoiceRepository(db)

	rows := sqlmock.NewRows([]string{"id", "payment_id", "invoice_no", "amount", "tax", "total", "pdf_path", "issued_at"}).
		AddRow("i1", "p1", "INV-1001", int64(45000), int64(8100), int64(53100), nil, time.Now())
	mock.ExpectQuery("SELECT (.+) FROM invoices WHERE payment_id = \\$1 LIMIT 1").
		WithArgs("p1").
		WillReturnRows(rows)

	invoice, err := repo.FindByPaymentID(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, "INV-1001", invoice.InvoiceNo)
	assert.Equal(t, int64(53100), invoice.Total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInvoiceSetPDFPath(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewInvoiceRepository(db)

	mock.ExpectExec("UPDATE invoices SET pdf_path").
		WithArgs("i1", "invoices/INV-1001.pdf").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.SetPDFPath(context.Background(), "i1", "invoices/INV-1001.pdf")
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
