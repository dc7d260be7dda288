package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/proedge/enrollment-api/internal/dto"
	"github.com/proedge/enrollment-api/internal/gateway"
	"github.com/proedge/enrollment-api/internal/models"
	"github.com/proedge/enrollment-api/internal/repository"
	appErrors "github.com/proedge/enrollment-api/pkg/errors"
	"github.com/proedge/enrollment-api/pkg/export"
)

// Payment modes accepted on admission requests. Online modes route through
// the gateway; offline modes are recorded as settled on the spot.
const (
	PayModeUPI          = "UPI"
	PayModeCard         = "Card"
	PayModeNetbanking   = "Netbanking"
	PayModeOnline       = "Online"
	PayModeCash         = "Cash"
	PayModeBankTransfer = "Bank Transfer"
	PayModeCheque       = "Cheque"
)

// Payment options controlling how much of the fee is collected up front.
const (
	PayOptionFull        = "Pay in Full"
	PayOptionAdvance     = "Payment in Advance"
	PayOptionInstallment = "Pay in Installments"
)

type txProvider interface {
	BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error)
}

type admissionUserRepository interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
	Update(ctx context.Context, user *models.User) error
	SetStatusTx(ctx context.Context, tx *sqlx.Tx, id string, status models.UserStatus) error
}

type admissionCourseRepository interface {
	FindByID(ctx context.Context, id string) (*models.Course, error)
}

type admissionBatchRepository interface {
	FindByID(ctx context.Context, id string) (*models.Batch, error)
}

type admissionEnrollmentRepository interface {
	ExistsActive(ctx context.Context, userID, courseID string) (bool, error)
	Create(ctx context.Context, enrollment *models.Enrollment) error
	FindByID(ctx context.Context, id string) (*models.Enrollment, error)
	UpdateStatusTx(ctx context.Context, tx *sqlx.Tx, id string, status models.EnrollmentStatus) error
	List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, int, error)
}

type admissionPaymentRepository interface {
	Create(ctx context.Context, payment *models.Payment) error
	CreateTx(ctx context.Context, tx *sqlx.Tx, payment *models.Payment) error
	FindByOrderID(ctx context.Context, orderID string) (*models.Payment, error)
	MarkFailed(ctx context.Context, id string, providerPaymentID *string) error
	MarkSuccessTx(ctx context.Context, tx *sqlx.Tx, id string, providerPaymentID, signature string) error
	List(ctx context.Context, filter models.PaymentFilter) ([]models.PaymentDetail, int, error)
}

type identityResolver interface {
	Resolve(ctx context.Context, req dto.AdmissionRequest) (*models.User, error)
}

type discountResolver interface {
	Apply(ctx context.Context, code string, price int64) (*Discount, error)
	RecordUse(ctx context.Context, referralID string) error
}

type invoiceIssuer interface {
	IssueTx(ctx context.Context, tx *sqlx.Tx, payment *models.Payment) (*models.Invoice, error)
	FindByPaymentID(ctx context.Context, paymentID string) (*models.Invoice, error)
	EnqueueRender(invoice *models.Invoice, doc export.InvoiceDocument)
}

type notifier interface {
	NotifyEnrollmentConfirmed(note EnrollmentConfirmedNote)
	NotifyPaymentFailed(note PaymentFailedNote)
}

// AdmissionService orchestrates the enrollment pipeline: identity, referral
// discount, enrollment, payment and invoice.
type AdmissionService struct {
	tx            txProvider
	users         admissionUserRepository
	courses       admissionCourseRepository
	batches       admissionBatchRepository
	enrollments   admissionEnrollmentRepository
	payments      admissionPaymentRepository
	identity      identityResolver
	referrals     discountResolver
	invoices      invoiceIssuer
	gateway       gateway.PaymentGateway
	notifications notifier
	metrics       *MetricsService
	validator     *validator.Validate
	logger        *zap.Logger
}

// NewAdmissionService constructs an AdmissionService instance.
func NewAdmissionService(
	tx txProvider,
	users admissionUserRepository,
	courses admissionCourseRepository,
	batches admissionBatchRepository,
	enrollments admissionEnrollmentRepository,
	payments admissionPaymentRepository,
	identity identityResolver,
	referrals discountResolver,
	invoices invoiceIssuer,
	gw gateway.PaymentGateway,
	notifications notifier,
	metrics *MetricsService,
	validate *validator.Validate,
	logger *zap.Logger,
) *AdmissionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &AdmissionService{
		tx:            tx,
		users:         users,
		courses:       courses,
		batches:       batches,
		enrollments:   enrollments,
		payments:      payments,
		identity:      identity,
		referrals:     referrals,
		invoices:      invoices,
		gateway:       gw,
		notifications: notifications,
		metrics:       metrics,
		validator:     validate,
		logger:        logger,
	}
}

func isOnlineMode(mode string) (bool, error) {
	switch mode {
	case PayModeUPI, PayModeCard, PayModeNetbanking, PayModeOnline:
		return true, nil
	case PayModeCash, PayModeBankTransfer, PayModeCheque:
		return false, nil
	default:
		return false, appErrors.Clone(appErrors.ErrUnsupportedPayMode, "unsupported payment mode: "+mode)
	}
}

// chargeableAmount picks how much to collect now based on the payment
// option. Anything non-positive falls back to the full fee.
func chargeableAmount(req dto.AdmissionRequest, adjustedFee, coursePrice int64) int64 {
	var amount int64
	switch req.PaymentOption {
	case PayOptionFull, "":
		amount = adjustedFee
	case PayOptionAdvance:
		if req.AdvanceAmount != nil {
			amount = *req.AdvanceAmount
		}
	case PayOptionInstallment:
		if req.Installment1Amount != nil {
			amount = *req.Installment1Amount
		}
	default:
		amount = adjustedFee
	}
	if amount <= 0 {
		amount = adjustedFee
	}
	if amount <= 0 {
		amount = coursePrice
	}
	return amount
}

// Initiate runs the admission pipeline up to the point where money changes
// hands. Online modes return a gateway order for client checkout; offline
// modes settle immediately and return the invoice number.
func (s *AdmissionService) Initiate(ctx context.Context, req dto.AdmissionRequest) (*dto.AdmissionResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid admission payload")
	}
	online, err := isOnlineMode(req.PaymentMode)
	if err != nil {
		return nil, err
	}

	course, err := s.courses.FindByID(ctx, req.CourseID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrCourseNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch course")
	}
	if !course.Active {
		return nil, appErrors.Clone(appErrors.ErrCourseNotFound, "course is not open for enrollment")
	}
	if req.BatchID != nil && *req.BatchID != "" {
		if _, err := s.batches.FindByID(ctx, *req.BatchID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, appErrors.Clone(appErrors.ErrNotFound, "batch not found")
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch batch")
		}
	}

	user, err := s.identity.Resolve(ctx, req)
	if err != nil {
		return nil, err
	}

	enrolled, err := s.enrollments.ExistsActive(ctx, user.ID, course.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check enrollment")
	}
	if enrolled {
		return nil, appErrors.Clone(appErrors.ErrAlreadyEnrolled, "student is already enrolled in this course")
	}

	// Submitted fee fields take precedence over the catalog price. A
	// referral discount is always recomputed server-side from the base fee.
	baseFee := course.Price
	if req.OriginalFees != nil && *req.OriginalFees > 0 {
		baseFee = *req.OriginalFees
	}
	adjustedFee := baseFee
	if req.TotalFees != nil && *req.TotalFees > 0 {
		adjustedFee = *req.TotalFees
	}
	var discount *Discount
	if strings.TrimSpace(req.ReferralCode) != "" {
		discount, err = s.referrals.Apply(ctx, req.ReferralCode, baseFee)
		if err != nil {
			return nil, err
		}
		adjustedFee = discount.AdjustedFee
	}
	amount := chargeableAmount(req, adjustedFee, course.Price)

	enrollment := &models.Enrollment{UserID: user.ID, CourseID: course.ID, BatchID: req.BatchID}
	if err := s.enrollments.Create(ctx, enrollment); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, appErrors.Clone(appErrors.ErrAlreadyEnrolled, "student is already enrolled in this course")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create enrollment")
	}

	// Snapshot the fee context onto the student profile only once the
	// enrollment row exists, so a lost duplicate race leaves the user intact.
	user.CourseName = &course.Title
	if discount != nil {
		user.ReferralAmount = &discount.Amount
	}
	if err := s.users.Update(ctx, user); err != nil {
		s.logger.Warn("failed to snapshot fee details", zap.String("user_id", user.ID), zap.Error(err))
	}

	if discount != nil {
		if err := s.referrals.RecordUse(ctx, discount.ReferralID); err != nil {
			s.logger.Warn("failed to record referral usage", zap.String("referral_id", discount.ReferralID), zap.Error(err))
		}
	}
	s.metrics.RecordAdmission(req.PaymentMode)

	studentID := ""
	if user.StudentID != nil {
		studentID = *user.StudentID
	}
	result := &dto.AdmissionResult{
		EnrollmentID: enrollment.ID,
		UserID:       user.ID,
		StudentID:    studentID,
		Amount:       amount,
	}

	if online {
		return s.initiateOnline(ctx, result, enrollment, amount)
	}
	return s.initiateOffline(ctx, result, user, course, enrollment, amount, req.PaymentMode)
}

func (s *AdmissionService) initiateOnline(ctx context.Context, result *dto.AdmissionResult, enrollment *models.Enrollment, amount int64) (*dto.AdmissionResult, error) {
	order, err := s.gateway.CreateOrder(ctx, amount, enrollment.ID)
	if err != nil {
		// Enrollment stays PENDING; the client may retry initiation.
		s.logger.Warn("gateway order failed, enrollment left pending", zap.String("enrollment_id", enrollment.ID), zap.Error(err))
		return nil, err
	}

	payment := &models.Payment{
		EnrollmentID: &enrollment.ID,
		Provider:     models.PaymentProviderRazorpay,
		OrderID:      order.ID,
		Amount:       amount,
		Currency:     order.Currency,
	}
	if err := s.payments.Create(ctx, payment); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record payment")
	}

	keyID := s.gateway.KeyID()
	result.Currency = order.Currency
	result.OrderID = &order.ID
	result.GatewayKeyID = &keyID
	return result, nil
}

func (s *AdmissionService) initiateOffline(ctx context.Context, result *dto.AdmissionResult, user *models.User, course *models.Course, enrollment *models.Enrollment, amount int64, mode string) (*dto.AdmissionResult, error) {
	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to begin transaction")
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	payment := &models.Payment{
		EnrollmentID: &enrollment.ID,
		Provider:     models.PaymentProviderManual,
		OrderID:      "manual_" + uuid.NewString(),
		Amount:       amount,
		Status:       models.PaymentStatusSuccess,
	}
	if err := s.payments.CreateTx(ctx, tx, payment); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record payment")
	}

	invoice, err := s.invoices.IssueTx(ctx, tx, payment)
	if err != nil {
		return nil, err
	}
	if err := s.enrollments.UpdateStatusTx(ctx, tx, enrollment.ID, models.EnrollmentStatusActive); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to activate enrollment")
	}
	if err := s.users.SetStatusTx(ctx, tx, user.ID, models.UserStatusActive); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to activate account")
	}
	if err := tx.Commit(); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit admission")
	}
	committed = true

	s.metrics.RecordPayment(models.PaymentProviderManual, string(models.PaymentStatusSuccess))
	s.metrics.RecordActivation()
	s.afterConfirmation(user, course, payment, invoice)

	result.Currency = payment.Currency
	result.InvoiceNo = &invoice.InvoiceNo
	s.logger.Info("offline admission settled",
		zap.String("enrollment_id", enrollment.ID),
		zap.String("invoice_no", invoice.InvoiceNo),
		zap.String("mode", mode))
	return result, nil
}

// Confirm settles an online payment after client-side checkout. The
// signature is checked before anything is touched; a replayed confirmation
// returns the already-issued invoice.
func (s *AdmissionService) Confirm(ctx context.Context, req dto.VerifyPaymentRequest) (*dto.ConfirmationResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid verification payload")
	}
	if !s.gateway.VerifySignature(req.OrderID, req.PaymentID, req.Signature) {
		s.logger.Warn("payment signature rejected", zap.String("order_id", req.OrderID))
		return nil, appErrors.Clone(appErrors.ErrInvalidSignature, "payment signature verification failed")
	}
	return s.settle(ctx, req.OrderID, req.PaymentID, req.Signature)
}

// HandleWebhook processes a gateway notification whose body HMAC was already
// verified at the transport boundary.
func (s *AdmissionService) HandleWebhook(ctx context.Context, payload dto.WebhookPayload) error {
	entity := payload.Payload.Payment.Entity
	switch payload.Event {
	case "payment.captured":
		_, err := s.settle(ctx, entity.OrderID, entity.ID, "")
		if err != nil {
			s.metrics.RecordWebhookEvent(payload.Event, "error")
			return err
		}
		s.metrics.RecordWebhookEvent(payload.Event, "ok")
		return nil
	case "payment.failed":
		payment, err := s.payments.FindByOrderID(ctx, entity.OrderID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				s.metrics.RecordWebhookEvent(payload.Event, "unknown_order")
				return appErrors.Clone(appErrors.ErrPaymentNotFound, "no payment for order")
			}
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch payment")
		}
		if payment.Status == models.PaymentStatusSuccess {
			// Late failure event after capture; keep the settled state.
			s.metrics.RecordWebhookEvent(payload.Event, "ignored")
			return nil
		}
		providerPaymentID := entity.ID
		if err := s.payments.MarkFailed(ctx, payment.ID, &providerPaymentID); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to mark payment failed")
		}
		s.metrics.RecordPayment(payment.Provider, string(models.PaymentStatusFailed))
		s.metrics.RecordWebhookEvent(payload.Event, "ok")
		s.notifyFailure(ctx, payment)
		return nil
	default:
		s.metrics.RecordWebhookEvent(payload.Event, "ignored")
		return nil
	}
}

// settle transitions an INITIATED payment to SUCCESS together with its
// enrollment, account and invoice in one transaction.
func (s *AdmissionService) settle(ctx context.Context, orderID, providerPaymentID, signature string) (*dto.ConfirmationResult, error) {
	payment, err := s.payments.FindByOrderID(ctx, orderID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrPaymentNotFound, "no payment found for order")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch payment")
	}

	user, course, enrollment, err := s.paymentContext(ctx, payment)
	if err != nil {
		return nil, err
	}

	if payment.Status == models.PaymentStatusSuccess {
		invoice, err := s.invoices.FindByPaymentID(ctx, payment.ID)
		if err != nil {
			return nil, err
		}
		return s.confirmationResult(user, course, enrollment, invoice), nil
	}

	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to begin transaction")
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	if err := s.payments.MarkSuccessTx(ctx, tx, payment.ID, providerPaymentID, signature); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to mark payment success")
	}
	invoice, err := s.invoices.IssueTx(ctx, tx, payment)
	if err != nil {
		return nil, err
	}
	if enrollment != nil {
		if err := s.enrollments.UpdateStatusTx(ctx, tx, enrollment.ID, models.EnrollmentStatusActive); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to activate enrollment")
		}
	}
	if user != nil {
		if err := s.users.SetStatusTx(ctx, tx, user.ID, models.UserStatusActive); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to activate account")
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit confirmation")
	}
	committed = true

	s.metrics.RecordPayment(payment.Provider, string(models.PaymentStatusSuccess))
	s.metrics.RecordActivation()
	s.afterConfirmation(user, course, payment, invoice)
	s.logger.Info("payment confirmed",
		zap.String("order_id", orderID),
		zap.String("invoice_no", invoice.InvoiceNo))
	return s.confirmationResult(user, course, enrollment, invoice), nil
}

// paymentContext loads the enrollment, user and course behind a payment.
// Lookups are best effort: a missing row degrades the result, it does not
// block settlement.
func (s *AdmissionService) paymentContext(ctx context.Context, payment *models.Payment) (*models.User, *models.Course, *models.Enrollment, error) {
	if payment.EnrollmentID == nil {
		return nil, nil, nil, nil
	}
	enrollment, err := s.enrollments.FindByID(ctx, *payment.EnrollmentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, nil, appErrors.Clone(appErrors.ErrEnrollmentNotFound, "enrollment not found for payment")
		}
		return nil, nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch enrollment")
	}

	user, err := s.users.FindByID(ctx, enrollment.UserID)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch user")
	}
	course, err := s.courses.FindByID(ctx, enrollment.CourseID)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch course")
	}
	return user, course, enrollment, nil
}

func (s *AdmissionService) confirmationResult(user *models.User, course *models.Course, enrollment *models.Enrollment, invoice *models.Invoice) *dto.ConfirmationResult {
	result := &dto.ConfirmationResult{
		InvoiceNo: invoice.InvoiceNo,
		Amount:    invoice.Amount,
	}
	if enrollment != nil {
		result.EnrollmentID = enrollment.ID
	}
	if user != nil {
		result.StudentName = user.FullName
		result.StudentEmail = user.Email
	}
	if course != nil {
		result.CourseTitle = course.Title
	}
	return result
}

func (s *AdmissionService) afterConfirmation(user *models.User, course *models.Course, payment *models.Payment, invoice *models.Invoice) {
	doc := export.InvoiceDocument{
		Provider: payment.Provider,
		OrderID:  payment.OrderID,
		Currency: payment.Currency,
	}
	note := EnrollmentConfirmedNote{InvoiceNo: invoice.InvoiceNo, Amount: invoice.Total}
	if user != nil {
		doc.StudentName = user.FullName
		doc.Email = user.Email
		if user.StudentID != nil {
			doc.StudentID = *user.StudentID
		}
		note.StudentName = user.FullName
		note.StudentEmail = user.Email
	}
	if course != nil {
		doc.CourseTitle = course.Title
		note.CourseTitle = course.Title
	}
	s.invoices.EnqueueRender(invoice, doc)
	if s.notifications != nil {
		s.notifications.NotifyEnrollmentConfirmed(note)
	}
}

func (s *AdmissionService) notifyFailure(ctx context.Context, payment *models.Payment) {
	if s.notifications == nil {
		return
	}
	note := PaymentFailedNote{OrderID: payment.OrderID, Amount: payment.Amount}
	if user, _, _, err := s.paymentContext(ctx, payment); err == nil && user != nil {
		note.StudentEmail = user.Email
	}
	s.notifications.NotifyPaymentFailed(note)
}

// ListEnrollments returns enrollments for the admin console.
func (s *AdmissionService) ListEnrollments(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, int, error) {
	list, total, err := s.enrollments.List(ctx, filter)
	if err != nil {
		return nil, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list enrollments")
	}
	return list, total, nil
}

// ListPayments returns payment history for the admin console.
func (s *AdmissionService) ListPayments(ctx context.Context, filter models.PaymentFilter) ([]models.PaymentDetail, int, error) {
	list, total, err := s.payments.List(ctx, filter)
	if err != nil {
		return nil, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list payments")
	}
	return list, total, nil
}
