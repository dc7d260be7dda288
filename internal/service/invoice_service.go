package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"os"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/proedge/enrollment-api/internal/models"
	"github.com/proedge/enrollment-api/internal/repository"
	"github.com/proedge/enrollment-api/pkg/config"
	appErrors "github.com/proedge/enrollment-api/pkg/errors"
	"github.com/proedge/enrollment-api/pkg/export"
	"github.com/proedge/enrollment-api/pkg/jobs"
)

type invoiceRepository interface {
	CreateTx(ctx context.Context, tx *sqlx.Tx, invoice *models.Invoice) error
	FindByPaymentID(ctx context.Context, paymentID string) (*models.Invoice, error)
	FindByInvoiceNo(ctx context.Context, invoiceNo string) (*models.Invoice, error)
	SetPDFPath(ctx context.Context, id, pdfPath string) error
}

type counterTxAllocator interface {
	NextTx(ctx context.Context, tx *sqlx.Tx, name string, start int64) (int64, error)
}

type invoiceRenderer interface {
	Render(doc export.InvoiceDocument) ([]byte, error)
}

type invoiceStorage interface {
	Save(filename string, data []byte) (string, error)
	Open(filename string) (*os.File, error)
}

type invoiceSigner interface {
	Generate(invoiceNo, relPath string) (string, time.Time, error)
	Parse(token string) (invoiceNo, relPath string, expiresAt time.Time, err error)
}

type renderJobPayload struct {
	InvoiceID string
	Document  export.InvoiceDocument
}

// InvoiceService issues invoices and renders their PDF documents. Issuance
// happens inside the payment confirmation transaction so the invoice number
// sequence never skips on rollback; PDF rendering runs on a background queue
// because the document is presentation only.
type InvoiceService struct {
	invoices invoiceRepository
	counters counterTxAllocator
	renderer invoiceRenderer
	storage  invoiceStorage
	signer   invoiceSigner
	queue    *jobs.Queue
	logger   *zap.Logger
	config   config.InvoiceConfig
}

// NewInvoiceService constructs an InvoiceService instance.
func NewInvoiceService(invoices invoiceRepository, counters counterTxAllocator, renderer invoiceRenderer, storage invoiceStorage, signer invoiceSigner, logger *zap.Logger, cfg config.InvoiceConfig, queueCfg jobs.QueueConfig) *InvoiceService {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &InvoiceService{
		invoices: invoices,
		counters: counters,
		renderer: renderer,
		storage:  storage,
		signer:   signer,
		logger:   logger,
		config:   cfg,
	}
	queueCfg.Logger = logger
	s.queue = jobs.NewQueue("invoice-pdf", s.handleRenderJob, queueCfg)
	return s
}

// Start launches the PDF render workers.
func (s *InvoiceService) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Stop drains the PDF render workers.
func (s *InvoiceService) Stop() {
	s.queue.Stop()
}

// IssueTx creates the invoice for a successful payment inside the caller's
// transaction. The tax is computed on the paid amount at the configured rate,
// rounding half up.
func (s *InvoiceService) IssueTx(ctx context.Context, tx *sqlx.Tx, payment *models.Payment) (*models.Invoice, error) {
	seq, err := s.counters.NextTx(ctx, tx, repository.CounterInvoiceNo, 1001)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to allocate invoice number")
	}

	tax := int64(math.Round(float64(payment.Amount) * s.config.TaxPercent / 100))
	invoice := &models.Invoice{
		PaymentID: payment.ID,
		InvoiceNo: fmt.Sprintf("INV-%d", seq),
		Amount:    payment.Amount,
		Tax:       tax,
		Total:     payment.Amount + tax,
	}
	if err := s.invoices.CreateTx(ctx, tx, invoice); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "payment already invoiced")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create invoice")
	}
	return invoice, nil
}

// FindByPaymentID returns the invoice issued for a payment, if any.
func (s *InvoiceService) FindByPaymentID(ctx context.Context, paymentID string) (*models.Invoice, error) {
	invoice, err := s.invoices.FindByPaymentID(ctx, paymentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "no invoice for payment")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch invoice")
	}
	return invoice, nil
}

// EnqueueRender schedules the PDF for background rendering. Failure to
// enqueue is logged, not surfaced: the invoice record is already committed
// and the document can be regenerated.
func (s *InvoiceService) EnqueueRender(invoice *models.Invoice, doc export.InvoiceDocument) {
	doc.InvoiceNo = invoice.InvoiceNo
	doc.IssuedAt = invoice.IssuedAt
	doc.Amount = invoice.Amount
	doc.Tax = invoice.Tax
	doc.Total = invoice.Total
	job := jobs.Job{
		ID:      invoice.ID,
		Type:    "invoice.render",
		Payload: renderJobPayload{InvoiceID: invoice.ID, Document: doc},
	}
	if err := s.queue.Enqueue(job); err != nil {
		s.logger.Error("failed to enqueue invoice render", zap.String("invoice_no", invoice.InvoiceNo), zap.Error(err))
	}
}

func (s *InvoiceService) handleRenderJob(ctx context.Context, job jobs.Job) error {
	payload, ok := job.Payload.(renderJobPayload)
	if !ok {
		s.logger.Error("invoice render job has unexpected payload", zap.String("job_id", job.ID))
		return nil
	}

	data, err := s.renderer.Render(payload.Document)
	if err != nil {
		return fmt.Errorf("render invoice %s: %w", payload.Document.InvoiceNo, err)
	}

	filename := payload.Document.InvoiceNo + ".pdf"
	relPath, err := s.storage.Save(filename, data)
	if err != nil {
		return fmt.Errorf("store invoice %s: %w", payload.Document.InvoiceNo, err)
	}

	if err := s.invoices.SetPDFPath(ctx, payload.InvoiceID, relPath); err != nil {
		return fmt.Errorf("record invoice pdf path: %w", err)
	}
	s.logger.Info("invoice pdf rendered", zap.String("invoice_no", payload.Document.InvoiceNo), zap.String("path", relPath))
	return nil
}

// DownloadURL returns a signed, expiring download token for an invoice PDF.
func (s *InvoiceService) DownloadURL(invoice *models.Invoice) (string, time.Time, error) {
	if invoice.PDFPath == nil || *invoice.PDFPath == "" {
		return "", time.Time{}, appErrors.Clone(appErrors.ErrNotFound, "invoice document not ready yet")
	}
	token, expiresAt, err := s.signer.Generate(invoice.InvoiceNo, *invoice.PDFPath)
	if err != nil {
		return "", time.Time{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign download url")
	}
	return token, expiresAt, nil
}

// OpenByToken validates a signed token and opens the referenced PDF. The
// token's path claim must match the stored invoice path so a valid signature
// cannot be replayed against another document.
func (s *InvoiceService) OpenByToken(ctx context.Context, token string) (*os.File, string, error) {
	invoiceNo, relPath, _, err := s.signer.Parse(token)
	if err != nil {
		return nil, "", appErrors.Clone(appErrors.ErrUnauthorized, "invalid or expired download token")
	}

	invoice, err := s.invoices.FindByInvoiceNo(ctx, invoiceNo)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, "", appErrors.Clone(appErrors.ErrNotFound, "invoice not found")
		}
		return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch invoice")
	}
	if invoice.PDFPath == nil || *invoice.PDFPath != relPath {
		return nil, "", appErrors.Clone(appErrors.ErrUnauthorized, "download token does not match invoice")
	}

	file, err := s.storage.Open(relPath)
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open invoice document")
	}
	return file, invoiceNo + ".pdf", nil
}
