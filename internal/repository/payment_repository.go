package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/proedge/enrollment-api/internal/models"
)

const paymentColumns = `id, enrollment_id, provider, order_id, provider_payment_id, signature, amount, currency, status, created_at, updated_at`

// PaymentRepository handles persistence of payment attempts.
type PaymentRepository struct {
	db *sqlx.DB
}

// NewPaymentRepository constructs the repository.
func NewPaymentRepository(db *sqlx.DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

const insertPaymentQuery = `INSERT INTO payments (id, enrollment_id, provider, order_id, provider_payment_id, signature, amount, currency, status, created_at, updated_at)
        VALUES (:id, :enrollment_id, :provider, :order_id, :provider_payment_id, :signature, :amount, :currency, :status, :created_at, :updated_at)`

// Create persists a new payment record.
func (r *PaymentRepository) Create(ctx context.Context, payment *models.Payment) error {
	preparePayment(payment)
	if _, err := r.db.NamedExecContext(ctx, insertPaymentQuery, payment); err != nil {
		return fmt.Errorf("create payment: %w", err)
	}
	return nil
}

// CreateTx persists a new payment record inside the caller's transaction.
func (r *PaymentRepository) CreateTx(ctx context.Context, tx *sqlx.Tx, payment *models.Payment) error {
	preparePayment(payment)
	if _, err := tx.NamedExecContext(ctx, insertPaymentQuery, payment); err != nil {
		return fmt.Errorf("create payment: %w", err)
	}
	return nil
}

func preparePayment(payment *models.Payment) {
	if payment.ID == "" {
		payment.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if payment.CreatedAt.IsZero() {
		payment.CreatedAt = now
	}
	payment.UpdatedAt = now
	if payment.Status == "" {
		payment.Status = models.PaymentStatusInitiated
	}
	if payment.Currency == "" {
		payment.Currency = "INR"
	}
}

// FindByOrderID returns a payment by its gateway order id.
func (r *PaymentRepository) FindByOrderID(ctx context.Context, orderID string) (*models.Payment, error) {
	query := fmt.Sprintf("SELECT %s FROM payments WHERE order_id = $1 LIMIT 1", paymentColumns)
	var payment models.Payment
	if err := r.db.GetContext(ctx, &payment, query, orderID); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find payment by order id: %w", err)
	}
	return &payment, nil
}

// MarkFailed marks a payment attempt as failed.
func (r *PaymentRepository) MarkFailed(ctx context.Context, id string, providerPaymentID *string) error {
	const query = `UPDATE payments SET status = $2, provider_payment_id = COALESCE($3, provider_payment_id), updated_at = $4 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, models.PaymentStatusFailed, providerPaymentID, time.Now().UTC()); err != nil {
		return fmt.Errorf("mark payment failed: %w", err)
	}
	return nil
}

// MarkSuccessTx records a successful capture inside the caller's transaction.
func (r *PaymentRepository) MarkSuccessTx(ctx context.Context, tx *sqlx.Tx, id string, providerPaymentID, signature string) error {
	const query = `UPDATE payments SET status = $2, provider_payment_id = $3, signature = $4, updated_at = $5 WHERE id = $1`
	if _, err := tx.ExecContext(ctx, query, id, models.PaymentStatusSuccess, providerPaymentID, signature, time.Now().UTC()); err != nil {
		return fmt.Errorf("mark payment success: %w", err)
	}
	return nil
}

// List returns payments enriched with enrollment context.
func (r *PaymentRepository) List(ctx context.Context, filter models.PaymentFilter) ([]models.PaymentDetail, int, error) {
	base := `FROM payments p
LEFT JOIN enrollments e ON e.id = p.enrollment_id
LEFT JOIN users u ON u.id = e.user_id
LEFT JOIN courses c ON c.id = e.course_id
LEFT JOIN invoices i ON i.payment_id = p.id`
	var conditions []string
	var args []interface{}

	if filter.UserID != "" {
		conditions = append(conditions, fmt.Sprintf("e.user_id = $%d", len(args)+1))
		args = append(args, filter.UserID)
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("p.status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}
	if filter.Provider != "" {
		conditions = append(conditions, fmt.Sprintf("p.provider = $%d", len(args)+1))
		args = append(args, filter.Provider)
	}

	clause := ""
	if len(conditions) > 0 {
		clause = " WHERE " + strings.Join(conditions, " AND ")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT p.id, p.enrollment_id, p.provider, p.order_id, p.provider_payment_id, p.signature, p.amount, p.currency, p.status, p.created_at, p.updated_at,
        u.full_name AS student_name, u.email AS student_email, c.title AS course_title, i.invoice_no AS invoice_no
        %s ORDER BY p.created_at DESC LIMIT %d OFFSET %d`, base+clause, size, offset)

	var payments []models.PaymentDetail
	if err := r.db.SelectContext(ctx, &payments, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list payments: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base+clause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count payments: %w", err)
	}
	return payments, total, nil
}
