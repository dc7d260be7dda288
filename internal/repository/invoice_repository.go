package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/proedge/enrollment-api/internal/models"
)

const invoiceColumns = `id, payment_id, invoice_no, amount, tax, total, pdf_path, issued_at`

// InvoiceRepository handles persistence of invoices. Invoices are immutable
// after creation except for the PDF path backfill.
type InvoiceRepository struct {
	db *sqlx.DB
}

// NewInvoiceRepository constructs the repository.
func NewInvoiceRepository(db *sqlx.DB) *InvoiceRepository {
	return &InvoiceRepository{db: db}
}

// CreateTx persists a new invoice inside the caller's transaction.
func (r *InvoiceRepository) CreateTx(ctx context.Context, tx *sqlx.Tx, invoice *models.Invoice) error {
	if invoice.ID == "" {
		invoice.ID = uuid.NewString()
	}
	if invoice.IssuedAt.IsZero() {
		invoice.IssuedAt = time.Now().UTC()
	}
	const query = `INSERT INTO invoices (id, payment_id, invoice_no, amount, tax, total, pdf_path, issued_at)
        VALUES (:id, :payment_id, :invoice_no, :amount, :tax, :total, :pdf_path, :issued_at)`
	if _, err := tx.NamedExecContext(ctx, query, invoice); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("create invoice: %w", ErrDuplicate)
		}
		return fmt.Errorf("create invoice: %w", err)
	}
	return nil
}

// FindByPaymentID returns the invoice issued for a payment, if any.
func (r *InvoiceRepository) FindByPaymentID(ctx context.Context, paymentID string) (*models.Invoice, error) {
	query := fmt.Sprintf("SELECT %s FROM invoices WHERE payment_id = $1 LIMIT 1", invoiceColumns)
	var invoice models.Invoice
	if err := r.db.GetContext(ctx, &invoice, query, paymentID); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find invoice by payment: %w", err)
	}
	return &invoice, nil
}

// FindByInvoiceNo returns an invoice by its human-readable number.
func (r *InvoiceRepository) FindByInvoiceNo(ctx context.Context, invoiceNo string) (*models.Invoice, error) {
	query := fmt.Sprintf("SELECT %s FROM invoices WHERE invoice_no = $1 LIMIT 1", invoiceColumns)
	var invoice models.Invoice
	if err := r.db.GetContext(ctx, &invoice, query, invoiceNo); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find invoice by number: %w", err)
	}
	return &invoice, nil
}

// SetPDFPath backfills the rendered document location.
func (r *InvoiceRepository) SetPDFPath(ctx context.Context, id, pdfPath string) error {
	const query = `UPDATE invoices SET pdf_path = $2 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, pdfPath); err != nil {
		return fmt.Errorf("set invoice pdf path: %w", err)
	}
	return nil
}
